package session

import (
	"context"
	"encoding/json"

	"github.com/ceskypane/abwars/internal/runloop"
	"github.com/ceskypane/abwars/lobby"
	"github.com/ceskypane/abwars/logging"
)

// Lobby notification topics for party sessions.
const (
	TopicPartyInvited        = "OnPartyInvited"
	TopicPartyJoined         = "OnPartyJoined"
	TopicPartyMembersChanged = "OnPartyMembersChanged"
	TopicPartyUpdated        = "OnPartyUpdated"
	TopicPartyKicked         = "OnPartyKicked"
	TopicPartyRejected       = "OnPartyRejected"
)

type partyNotification struct {
	PartyID    string        `json:"partyID"`
	SenderID   string        `json:"senderID"`
	JoinerID   string        `json:"joinerID"`
	LeaverID   string        `json:"leaverID"`
	RejectedID string        `json:"rejectedID"`
	Party      *partyPayload `json:"party"`
}

// LobbyDecoder turns lobby notifications into State updates and Handler
// calls. Every notification is handled on the run loop.
type LobbyDecoder struct {
	sched    runloop.Scheduler
	state    *State
	notifier *Notifier
	log      logging.Logger
}

func NewLobbyDecoder(sched runloop.Scheduler, state *State, notifier *Notifier, logger logging.Logger) *LobbyDecoder {
	if state == nil {
		state = NewState()
	}

	if notifier == nil {
		notifier = NewNotifier()
	}

	return &LobbyDecoder{
		sched:    sched,
		state:    state,
		notifier: notifier,
		log:      logging.Component(logger, "session"),
	}
}

func (d *LobbyDecoder) DispatchNotification(_ context.Context, n lobby.Notification) {
	if !d.sched.Post(func() { d.handle(n) }) {
		d.log.Warn("session notification dropped, loop closed", logging.F("topic", n.Topic))
	}
}

func (d *LobbyDecoder) handle(n lobby.Notification) {
	if err := d.Decode(n); err != nil {
		d.log.Debug("session notification ignored", logging.F("topic", n.Topic), logging.F("error", err.Error()))
	}
}

// Decode applies n immediately. Callers must already be on the loop.
func (d *LobbyDecoder) Decode(n lobby.Notification) error {
	var payload partyNotification
	if len(n.Payload) > 0 {
		if err := json.Unmarshal(n.Payload, &payload); err != nil {
			return err
		}
	}

	switch n.Topic {
	case TopicPartyInvited:
		d.notifier.InviteReceived(n.To, payload.SenderID, Invite{
			SessionType: TypeParty,
			SenderID:    payload.SenderID,
			Session:     SearchResult{SessionID: payload.PartyID, Type: TypeParty, LeaderID: payload.SenderID},
		})
	case TopicPartyJoined, TopicPartyMembersChanged, TopicPartyUpdated:
		d.applySnapshot(payload)
	case TopicPartyKicked:
		if current, ok := d.state.Get(PartySessionName); ok && payload.PartyID != "" && current.ID != payload.PartyID {
			return nil
		}

		sessionID := payload.PartyID
		if removed, ok := d.state.Remove(PartySessionName); ok {
			sessionID = removed.ID
		}

		d.notifier.Kicked(PartySessionName, sessionID)
	case TopicPartyRejected:
		d.notifier.InviteRejected(PartySessionName, payload.RejectedID)
	default:
		return ErrUnknownTopic
	}

	return nil
}

func (d *LobbyDecoder) applySnapshot(payload partyNotification) {
	if payload.Party == nil {
		if payload.JoinerID != "" {
			d.notifier.ParticipantsChanged(PartySessionName, payload.JoinerID, true)
		}

		if payload.LeaverID != "" {
			d.notifier.ParticipantsChanged(PartySessionName, payload.LeaverID, false)
		}

		return
	}

	next := payload.Party.named()
	diff := d.state.Apply(next)
	if diff.Stale {
		return
	}

	raised := map[string]bool{}
	for _, id := range diff.Joined {
		raised[id] = true
		d.notifier.ParticipantsChanged(PartySessionName, id, true)
	}

	for _, id := range diff.Left {
		raised[id] = true
		d.notifier.ParticipantsChanged(PartySessionName, id, false)
	}

	// The backend also names the affected member. Repeats are expected and
	// filtered by the party member status cache.
	if payload.JoinerID != "" && !raised[payload.JoinerID] {
		d.notifier.ParticipantsChanged(PartySessionName, payload.JoinerID, true)
	}

	if payload.LeaverID != "" && !raised[payload.LeaverID] {
		d.notifier.ParticipantsChanged(PartySessionName, payload.LeaverID, false)
	}

	d.notifier.SessionUpdated(PartySessionName, next)
}
