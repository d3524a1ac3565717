package party

import (
	"github.com/ceskypane/abwars/events"
	"github.com/ceskypane/abwars/logging"
	"github.com/ceskypane/abwars/prompt"
	"github.com/ceskypane/abwars/session"
)

var _ session.Handler = (*Session)(nil)

// ParticipantsChanged handles a member joining or leaving the party.
// Repeated callbacks with an unchanged status for a member are dropped.
func (s *Session) ParticipantsChanged(sessionName, memberID string, joined bool) {
	if s.closed || sessionName != session.PartySessionName || memberID == "" {
		return
	}

	if prev, ok := s.memberStatus[memberID]; ok && prev == joined {
		suppressedTotal.Inc()
		s.log.Debug("duplicate member change suppressed", logging.F("member", memberID), logging.F("joined", joined))
		return
	}

	s.memberStatus[memberID] = joined
	s.emit(events.PartyMemberChanged{Base: events.Now(), MemberID: memberID, Joined: joined})
	s.refreshWidgets()

	if local, _ := s.localID(); memberID != local {
		key, kind := prompt.KeyPartyMemberLeft, "member_left"
		if joined {
			key, kind = prompt.KeyPartyMemberJoined, "member_joined"
		}

		s.withUser(memberID, func(name, avatar string) {
			s.push(kind, prompt.Notification{Message: s.catalog.Text(key, name), AvatarURL: avatar})
		})
	}

	s.displayCurrentLeader()
}

func (s *Session) SessionUpdated(sessionName string, updated session.NamedSession) {
	if s.closed || sessionName != session.PartySessionName {
		return
	}

	s.emit(events.PartyUpdated{Base: events.Now(), PartyID: updated.ID, LeaderID: updated.LeaderID, Members: len(updated.ActiveMembers())})
	s.refreshWidgets()
	s.displayCurrentLeader()
}

// InviteReceived shows an actionable notification for a party invite.
func (s *Session) InviteReceived(_ string, senderID string, invite session.Invite) {
	if s.closed || invite.SessionType != session.TypeParty {
		return
	}

	if local, _ := s.localID(); senderID == "" || senderID == local {
		return
	}

	s.emit(events.PartyInviteReceived{Base: events.Now(), PartyID: invite.Session.SessionID, SenderID: senderID})

	localUser := s.cfg.LocalUser
	s.withUser(senderID, func(name, avatar string) {
		s.push("invite_received", prompt.Notification{
			Message:     s.catalog.Text(prompt.KeyPartyInviteReceived, name),
			AvatarURL:   avatar,
			Interactive: true,
			Buttons: []prompt.Button{
				{Label: s.catalog.Text(prompt.KeyAccept), OnClick: func() {
					s.later(func() {
						if !s.closed {
							s.displayJoinConfirmation(localUser, invite)
						}
					})
				}},
				{Label: s.catalog.Text(prompt.KeyReject), OnClick: func() {
					s.later(func() {
						if !s.closed {
							s.RejectInvite(localUser, invite, nil)
						}
					})
				}},
			},
		})
	})
}

func (s *Session) InviteRejected(sessionName, rejecterID string) {
	if s.closed || sessionName != session.PartySessionName || rejecterID == "" {
		return
	}

	current, _ := s.Current()
	s.emit(events.PartyInviteRejected{Base: events.Now(), PartyID: current.ID, RejecterID: rejecterID})
	s.withUser(rejecterID, func(name, avatar string) {
		s.push("invite_rejected", prompt.Notification{Message: s.catalog.Text(prompt.KeyPartyInviteRejected, name), AvatarURL: avatar})
	})
}

// Kicked clears the party. The decoder may already have dropped it from the
// shared state, so the removed id arrives with the notification.
func (s *Session) Kicked(sessionName, sessionID string) {
	if s.closed || sessionName != session.PartySessionName {
		return
	}

	partyID := sessionID
	if current, ok := s.state.Get(session.PartySessionName); ok && (sessionID == "" || current.ID == sessionID) {
		s.state.Remove(session.PartySessionName)
		partyID = current.ID
	}

	s.lastLeader = ""
	s.memberStatus = map[string]bool{}
	s.refreshWidgets()
	s.emit(events.PartyKicked{Base: events.Now(), PartyID: partyID})
	s.push("kicked", prompt.Notification{Message: s.catalog.Text(prompt.KeyPartyKicked)})
}

// displayCurrentLeader announces the leader once per change.
func (s *Session) displayCurrentLeader() {
	leader := s.Leader()
	if leader == "" || leader == s.lastLeader {
		return
	}

	s.lastLeader = leader
	s.emit(events.PartyLeaderChanged{Base: events.Now(), LeaderID: leader})
	s.refreshWidgets()

	s.withUser(leader, func(name, avatar string) {
		s.push("new_leader", prompt.Notification{Message: s.catalog.Text(prompt.KeyPartyNewLeader, name), AvatarURL: avatar})
	})
}

// applyLocal stores a locally derived snapshot and routes it through the
// same handling a backend notification gets.
func (s *Session) applyLocal(next session.NamedSession) {
	diff := s.state.Apply(next)
	if diff.Stale {
		return
	}

	for _, id := range diff.Joined {
		s.ParticipantsChanged(session.PartySessionName, id, true)
	}

	for _, id := range diff.Left {
		s.ParticipantsChanged(session.PartySessionName, id, false)
	}

	s.SessionUpdated(session.PartySessionName, next)
}
