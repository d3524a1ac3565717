package client

import (
	"context"

	"github.com/ceskypane/abwars/ftue"
	"github.com/ceskypane/abwars/session"
)

// Predefined validator names every client answers.
const (
	CheckSignedIn       = "auth.signed_in"
	CheckLobbyConnected = "lobby.connected"
	CheckInParty        = "party.in_party"
	CheckPartyLeader    = "party.is_leader"
	CheckPartyHasOthers = "party.has_others"
)

// Argument names resolvable in dialogue text.
const (
	ArgUserID      = "user_id"
	ArgDisplayName = "display_name"
	ArgNamespace   = "namespace"
	ArgPartyID     = "party_id"
)

func (c *Client) checks(extra ftue.CheckerFunc) ftue.CheckerFunc {
	checks := ftue.CheckerFunc{
		CheckSignedIn: func(ctx context.Context) (bool, error) {
			_, ok, err := c.tokens.Load(ctx)
			return ok, err
		},
		CheckLobbyConnected: func(context.Context) (bool, error) {
			return c.lobbyUp.Load(), nil
		},
		CheckInParty: func(context.Context) (bool, error) {
			return c.state.InParty(), nil
		},
		CheckPartyLeader: func(context.Context) (bool, error) {
			party, ok := c.state.Get(session.PartySessionName)
			if !ok {
				return false, nil
			}

			userID, _ := tokenIdentity{store: c.tokens}.UniqueID(0)
			return userID != "" && party.LeaderID == userID, nil
		},
		CheckPartyHasOthers: func(context.Context) (bool, error) {
			party, ok := c.state.Get(session.PartySessionName)
			return ok && len(party.ActiveMembers()) > 1, nil
		},
	}

	for name, check := range extra {
		checks[name] = check
	}

	return checks
}

// argument resolves predefined dialogue arguments.
func (c *Client) argument(name string) string {
	switch name {
	case ArgUserID:
		id, _ := tokenIdentity{store: c.tokens}.UniqueID(0)
		return id
	case ArgDisplayName:
		tokens, ok, err := c.tokens.Load(context.Background())
		if err != nil || !ok {
			return ""
		}

		if tokens.DisplayName != "" {
			return tokens.DisplayName
		}

		if info, cached := c.users.Cached(tokens.UserID); cached {
			return info.Name()
		}

		return ""
	case ArgNamespace:
		return c.cfg.Namespace
	case ArgPartyID:
		party, ok := c.state.Get(session.PartySessionName)
		if !ok {
			return ""
		}

		return party.ID
	}

	return ""
}
