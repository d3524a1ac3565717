package session

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/ceskypane/abwars/logging"
)

const publicPath = "/session/v1/public/namespaces/"

// JSONDoer is satisfied by transport/http.Client.
type JSONDoer interface {
	DoJSON(ctx context.Context, method, url, route string, in, out any) error
}

type HTTPConfig struct {
	BaseURL       string
	Namespace     string
	PartyTemplate string
	JoinType      string
	Logger        logging.Logger
}

func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		PartyTemplate: "unreal-party",
		JoinType:      "INVITE_ONLY",
	}
}

// HTTPBackend implements Backend against the session service REST API.
type HTTPBackend struct {
	doer JSONDoer
	cfg  HTTPConfig
	log  logging.Logger
}

func NewHTTPBackend(doer JSONDoer, cfg HTTPConfig) (*HTTPBackend, error) {
	defaults := DefaultHTTPConfig()
	if cfg.PartyTemplate == "" {
		cfg.PartyTemplate = defaults.PartyTemplate
	}

	if cfg.JoinType == "" {
		cfg.JoinType = defaults.JoinType
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.BaseURL == "" || cfg.Namespace == "" || doer == nil {
		return nil, oops.Code("SESSION_CONFIG").
			With("base_url", cfg.BaseURL).
			With("namespace", cfg.Namespace).
			Errorf("session: base url, namespace and transport are required")
	}

	return &HTTPBackend{doer: doer, cfg: cfg, log: logging.Component(cfg.Logger, "session")}, nil
}

type partyMemberPayload struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type partyPayload struct {
	ID                string               `json:"id"`
	LeaderID          string               `json:"leaderID"`
	Members           []partyMemberPayload `json:"members"`
	ConfigurationName string               `json:"configurationName,omitempty"`
	Version           int                  `json:"version"`
	UpdatedAt         string               `json:"updatedAt,omitempty"`
}

func (p partyPayload) named() NamedSession {
	out := NamedSession{
		ID:       p.ID,
		Name:     PartySessionName,
		Type:     TypeParty,
		LeaderID: p.LeaderID,
		Version:  p.Version,
	}

	for _, m := range p.Members {
		out.Members = append(out.Members, Member{ID: m.ID, Status: MemberStatus(strings.ToUpper(m.Status))})
	}

	if p.UpdatedAt != "" {
		if ts, err := time.Parse(time.RFC3339Nano, p.UpdatedAt); err == nil {
			out.UpdatedAt = ts.UTC()
		}
	}

	return out
}

type createPartyRequest struct {
	ConfigurationName string   `json:"configurationName"`
	JoinType          string   `json:"joinType"`
	Members           []string `json:"members"`
}

func (b *HTTPBackend) CreateParty(ctx context.Context, localUser string) (NamedSession, error) {
	var out partyPayload
	req := createPartyRequest{ConfigurationName: b.cfg.PartyTemplate, JoinType: b.cfg.JoinType, Members: []string{localUser}}
	if err := b.doer.DoJSON(ctx, http.MethodPost, b.url("party"), "session.create_party", req, &out); err != nil {
		return NamedSession{}, b.rejected("create_party", err, "local_user", localUser)
	}

	return out.named(), nil
}

func (b *HTTPBackend) JoinParty(ctx context.Context, localUser, sessionID string) (NamedSession, error) {
	var out partyPayload
	if err := b.doer.DoJSON(ctx, http.MethodPost, b.url("parties", sessionID, "users", "me", "join"), "session.join_party", nil, &out); err != nil {
		return NamedSession{}, b.rejected("join_party", err, "local_user", localUser, "session_id", sessionID)
	}

	return out.named(), nil
}

func (b *HTTPBackend) LeaveSession(ctx context.Context, localUser, sessionID string) error {
	if err := b.doer.DoJSON(ctx, http.MethodDelete, b.url("parties", sessionID, "users", "me", "leave"), "session.leave_party", nil, nil); err != nil {
		return b.rejected("leave_party", err, "local_user", localUser, "session_id", sessionID)
	}

	return nil
}

func (b *HTTPBackend) SendInvite(ctx context.Context, sessionID, invitee string) error {
	body := map[string]string{"userID": invitee}
	if err := b.doer.DoJSON(ctx, http.MethodPost, b.url("parties", sessionID, "invite"), "session.invite", body, nil); err != nil {
		return b.rejected("invite", err, "session_id", sessionID, "target", invitee)
	}

	return nil
}

func (b *HTTPBackend) RejectInvite(ctx context.Context, sessionID string) error {
	if err := b.doer.DoJSON(ctx, http.MethodPost, b.url("parties", sessionID, "users", "me", "reject"), "session.reject", nil, nil); err != nil {
		return b.rejected("reject", err, "session_id", sessionID)
	}

	return nil
}

func (b *HTTPBackend) KickMember(ctx context.Context, sessionID, target string) error {
	if err := b.doer.DoJSON(ctx, http.MethodDelete, b.url("parties", sessionID, "users", target, "kick"), "session.kick", nil, nil); err != nil {
		return b.rejected("kick", err, "session_id", sessionID, "target", target)
	}

	return nil
}

func (b *HTTPBackend) PromoteLeader(ctx context.Context, sessionID, leaderID string) error {
	body := map[string]string{"leaderID": leaderID}
	if err := b.doer.DoJSON(ctx, http.MethodPost, b.url("parties", sessionID, "leader"), "session.promote", body, nil); err != nil {
		return b.rejected("promote", err, "session_id", sessionID, "target", leaderID)
	}

	return nil
}

func (b *HTTPBackend) RestoreActiveSessions(ctx context.Context, localUser string) ([]NamedSession, error) {
	var out struct {
		Data []partyPayload `json:"data"`
	}

	if err := b.doer.DoJSON(ctx, http.MethodGet, b.url("users", "me", "parties"), "session.restore", nil, &out); err != nil {
		return nil, b.rejected("restore", err, "local_user", localUser)
	}

	sessions := make([]NamedSession, 0, len(out.Data))
	for _, p := range out.Data {
		sessions = append(sessions, p.named())
	}

	b.log.Debug("restored active sessions", logging.F("count", len(sessions)))
	return sessions, nil
}

func (b *HTTPBackend) url(parts ...string) string {
	escaped := make([]string, 0, len(parts))
	for _, part := range parts {
		escaped = append(escaped, url.PathEscape(part))
	}

	return b.cfg.BaseURL + publicPath + url.PathEscape(b.cfg.Namespace) + "/" + strings.Join(escaped, "/")
}

// rejected wraps err so both ErrBackendRejected and the transport error
// survive errors.Is / errors.As.
func (b *HTTPBackend) rejected(op string, err error, kv ...string) error {
	builder := oops.Code("SESSION_BACKEND_REJECTED").With("op", op)
	for i := 0; i+1 < len(kv); i += 2 {
		builder = builder.With(kv[i], kv[i+1])
	}

	return builder.Wrap(fmt.Errorf("%w: %w", ErrBackendRejected, err))
}
