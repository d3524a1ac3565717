package events

import "time"

type Name string

const (
	EventClientReady        Name = "client.ready"
	EventClientDisconnected Name = "client.disconnected"

	EventAuthRefreshed     Name = "auth.refreshed"
	EventAuthRefreshFailed Name = "auth.refresh_failed"

	EventLobbyConnected    Name = "lobby.connected"
	EventLobbyDisconnected Name = "lobby.disconnected"
	EventLobbyReconnecting Name = "lobby.reconnecting"
	EventLobbyError        Name = "lobby.error"
	EventLobbyNotification Name = "lobby.notification"

	EventPartyCreated        Name = "party.created"
	EventPartyLeft           Name = "party.left"
	EventPartyJoined         Name = "party.joined"
	EventPartyUpdated        Name = "party.updated"
	EventPartyInviteSent     Name = "party.invite_sent"
	EventPartyInviteReceived Name = "party.invite_received"
	EventPartyInviteRejected Name = "party.invite_rejected"
	EventPartyKicked         Name = "party.kicked"
	EventPartyMemberChanged  Name = "party.member_changed"
	EventPartyLeaderChanged  Name = "party.leader_changed"

	EventFTUEShown     Name = "ftue.shown"
	EventFTUEClosed    Name = "ftue.closed"
	EventFTUEValidated Name = "ftue.validated"
)

type Event interface {
	Name() Name
	Timestamp() time.Time
}

type Base struct {
	At time.Time
}

func (b Base) Timestamp() time.Time {
	return b.At
}

func Now() Base {
	return Base{At: time.Now().UTC()}
}

type ClientReady struct {
	Base
	UserID string
}

func (e ClientReady) Name() Name {
	return EventClientReady
}

type ClientDisconnected struct {
	Base
	Err error
}

func (e ClientDisconnected) Name() Name {
	return EventClientDisconnected
}

type AuthRefreshed struct {
	Base
	ExpiresAt time.Time
}

func (e AuthRefreshed) Name() Name {
	return EventAuthRefreshed
}

type AuthRefreshFailed struct {
	Base
	Err   error
	Fatal bool
}

func (e AuthRefreshFailed) Name() Name {
	return EventAuthRefreshFailed
}

type LobbyConnected struct {
	Base
	Endpoint       string
	LobbySessionID string
}

func (e LobbyConnected) Name() Name {
	return EventLobbyConnected
}

type LobbyDisconnected struct {
	Base
	Err error
}

func (e LobbyDisconnected) Name() Name {
	return EventLobbyDisconnected
}

type LobbyReconnecting struct {
	Base
	Attempt int
	Delay   time.Duration
	Err     error
}

func (e LobbyReconnecting) Name() Name {
	return EventLobbyReconnecting
}

type LobbyError struct {
	Base
	Err   error
	Fatal bool
}

func (e LobbyError) Name() Name {
	return EventLobbyError
}

type LobbyNotification struct {
	Base
	Topic   string
	Payload string
}

func (e LobbyNotification) Name() Name {
	return EventLobbyNotification
}

type PartyCreated struct {
	Base
	PartyID string
	Err     error
}

func (e PartyCreated) Name() Name {
	return EventPartyCreated
}

type PartyLeft struct {
	Base
	PartyID string
	Err     error
}

func (e PartyLeft) Name() Name {
	return EventPartyLeft
}

type PartyJoined struct {
	Base
	PartyID string
	Result  string
	Err     error
}

func (e PartyJoined) Name() Name {
	return EventPartyJoined
}

type PartyUpdated struct {
	Base
	PartyID  string
	LeaderID string
	Members  int
}

func (e PartyUpdated) Name() Name {
	return EventPartyUpdated
}

type PartyInviteSent struct {
	Base
	SenderID  string
	InviteeID string
	Err       error
}

func (e PartyInviteSent) Name() Name {
	return EventPartyInviteSent
}

type PartyInviteReceived struct {
	Base
	PartyID  string
	SenderID string
}

func (e PartyInviteReceived) Name() Name {
	return EventPartyInviteReceived
}

type PartyInviteRejected struct {
	Base
	PartyID    string
	RejecterID string
}

func (e PartyInviteRejected) Name() Name {
	return EventPartyInviteRejected
}

type PartyKicked struct {
	Base
	PartyID string
}

func (e PartyKicked) Name() Name {
	return EventPartyKicked
}

type PartyMemberChanged struct {
	Base
	MemberID string
	Joined   bool
}

func (e PartyMemberChanged) Name() Name {
	return EventPartyMemberChanged
}

type PartyLeaderChanged struct {
	Base
	LeaderID string
}

func (e PartyLeaderChanged) Name() Name {
	return EventPartyLeaderChanged
}

type FTUEShown struct {
	Base
	DialogueID string
	Index      int
}

func (e FTUEShown) Name() Name {
	return EventFTUEShown
}

type FTUEClosed struct {
	Base
}

func (e FTUEClosed) Name() Name {
	return EventFTUEClosed
}

type FTUEValidated struct {
	Base
	DialogueID string
	Valid      bool
	Err        error
}

func (e FTUEValidated) Name() Name {
	return EventFTUEValidated
}
