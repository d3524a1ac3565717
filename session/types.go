// Package session models backend named sessions and the capability
// interfaces the party layer depends on.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	transporthttp "github.com/ceskypane/abwars/transport/http"
)

var (
	ErrBackendRejected = errors.New("session: backend rejected request")
	ErrUnknownTopic    = errors.New("session: unknown notification topic")
)

type Type int

const (
	TypeParty Type = iota + 1
	TypeGame
)

func (t Type) String() string {
	switch t {
	case TypeParty:
		return "party"
	case TypeGame:
		return "game"
	default:
		return "unknown"
	}
}

// Well-known named session slots.
const (
	PartySessionName = "PartySession"
	GameSessionName  = "GameSession"
)

type MemberStatus string

const (
	StatusInvited   MemberStatus = "INVITED"
	StatusJoined    MemberStatus = "JOINED"
	StatusConnected MemberStatus = "CONNECTED"
	StatusLeft      MemberStatus = "LEFT"
	StatusKicked    MemberStatus = "KICKED"
	StatusRejected  MemberStatus = "REJECTED"
	StatusDropped   MemberStatus = "DROPPED"
)

// Active reports whether the member counts towards the roster.
func (s MemberStatus) Active() bool {
	return s == StatusJoined || s == StatusConnected
}

type Member struct {
	ID     string
	Status MemberStatus
}

type NamedSession struct {
	ID        string
	Name      string
	Type      Type
	LeaderID  string
	Members   []Member
	Version   int
	UpdatedAt time.Time
}

func (s NamedSession) Clone() NamedSession {
	out := s
	out.Members = append([]Member(nil), s.Members...)
	return out
}

// ActiveMembers returns the ids of members currently in the roster.
func (s NamedSession) ActiveMembers() []string {
	out := make([]string, 0, len(s.Members))
	for _, m := range s.Members {
		if m.Status.Active() {
			out = append(out, m.ID)
		}
	}

	return out
}

func (s NamedSession) HasMember(id string) bool {
	for _, m := range s.Members {
		if m.ID == id && m.Status.Active() {
			return true
		}
	}

	return false
}

// SearchResult addresses a joinable session.
type SearchResult struct {
	SessionID string
	Type      Type
	LeaderID  string
}

type Invite struct {
	SessionType Type
	SenderID    string
	Session     SearchResult
}

type JoinResult int

const (
	JoinSuccess JoinResult = iota
	JoinSessionIsFull
	JoinSessionDoesNotExist
	JoinAlreadyInSession
	JoinUnknownError
)

func (r JoinResult) String() string {
	switch r {
	case JoinSuccess:
		return "success"
	case JoinSessionIsFull:
		return "session_is_full"
	case JoinSessionDoesNotExist:
		return "session_does_not_exist"
	case JoinAlreadyInSession:
		return "already_in_session"
	default:
		return "unknown_error"
	}
}

// JoinResultFromError classifies a join failure.
func JoinResultFromError(err error) JoinResult {
	if err == nil {
		return JoinSuccess
	}

	var apiErr *transporthttp.APIError
	if !errors.As(err, &apiErr) {
		return JoinUnknownError
	}

	switch {
	case apiErr.StatusCode == 404:
		return JoinSessionDoesNotExist
	case strings.Contains(strings.ToLower(apiErr.Message), "full"):
		return JoinSessionIsFull
	case apiErr.StatusCode == 409:
		return JoinAlreadyInSession
	default:
		return JoinUnknownError
	}
}

// Backend is the blocking session service. Callers run it off the loop.
type Backend interface {
	CreateParty(ctx context.Context, localUser string) (NamedSession, error)
	JoinParty(ctx context.Context, localUser, sessionID string) (NamedSession, error)
	LeaveSession(ctx context.Context, localUser, sessionID string) error
	SendInvite(ctx context.Context, sessionID, invitee string) error
	RejectInvite(ctx context.Context, sessionID string) error
	KickMember(ctx context.Context, sessionID, target string) error
	PromoteLeader(ctx context.Context, sessionID, leaderID string) error
	RestoreActiveSessions(ctx context.Context, localUser string) ([]NamedSession, error)
}

// Handler receives backend session notifications on the run loop.
type Handler interface {
	ParticipantsChanged(sessionName, memberID string, joined bool)
	SessionUpdated(sessionName string, s NamedSession)
	InviteReceived(localUser, senderID string, invite Invite)
	InviteRejected(sessionName, rejecterID string)
	// Kicked reports removal from the session identified by sessionID.
	Kicked(sessionName, sessionID string)
}
