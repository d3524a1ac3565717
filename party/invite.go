package party

import (
	"context"
	"errors"

	"github.com/samber/oops"

	"github.com/ceskypane/abwars/events"
	"github.com/ceskypane/abwars/logging"
	"github.com/ceskypane/abwars/prompt"
	"github.com/ceskypane/abwars/session"
)

// SendInvite invites invitee to the current party, creating one first when
// the player is not in a party. A failed create fails the invite without
// sending anything.
func (s *Session) SendInvite(localUser int, invitee string, done Done) {
	if done == nil {
		done = func(error) {}
	}

	fail := func(err error) {
		observe(opInvite, err)
		s.later(func() { done(err) })
	}

	userID, ok := s.resolve(localUser)
	if !ok {
		fail(invalidContext(localUser, opInvite))
		return
	}

	if invitee == "" {
		fail(invalidTarget(localUser, opInvite))
		return
	}

	if s.backend == nil {
		fail(noBackend(opInvite))
		return
	}

	s.setInviting(true)

	finish := func(err error) {
		s.setInviting(false)
		observe(opInvite, err)
		s.emit(events.PartyInviteSent{Base: events.Now(), SenderID: userID, InviteeID: invitee, Err: err})

		if err != nil {
			s.log.Warn("party invite failed", logging.F("invitee", invitee), logging.F("error", err.Error()))
			s.push("invite_failed", prompt.Notification{Message: s.catalog.Text(prompt.KeyPartyInviteFailed)})
		} else {
			s.push("invite_sent", prompt.Notification{Message: s.catalog.Text(prompt.KeyPartyInviteSent)})
		}

		done(err)
	}

	send := func(partyID string) {
		s.call(opInvite, func(ctx context.Context) error {
			return s.backend.SendInvite(ctx, partyID, invitee)
		}, finish)
	}

	if current, ok := s.Current(); ok {
		send(current.ID)
		return
	}

	s.CreateParty(localUser, func(created session.NamedSession, err error) {
		if err != nil {
			finish(oops.Code("PARTY_INVITE_FAILED").With("local_user", localUser).With("target", invitee).Wrap(err))
			return
		}

		send(created.ID)
	})
}

// RejectInvite declines invite.
func (s *Session) RejectInvite(localUser int, invite session.Invite, done Done) {
	if done == nil {
		done = func(error) {}
	}

	fail := func(err error) {
		observe(opReject, err)
		s.later(func() { done(err) })
	}

	if s.identity == nil || !s.identity.HasController(localUser) {
		fail(invalidContext(localUser, opReject))
		return
	}

	if _, ok := s.resolve(localUser); !ok {
		fail(invalidContext(localUser, opReject))
		return
	}

	if invite.Session.SessionID == "" {
		fail(invalidTarget(localUser, opReject))
		return
	}

	if s.backend == nil {
		fail(noBackend(opReject))
		return
	}

	s.call(opReject, func(ctx context.Context) error {
		return s.backend.RejectInvite(ctx, invite.Session.SessionID)
	}, func(err error) {
		observe(opReject, err)
		done(err)
	})
}

// KickMember removes target from the current party.
func (s *Session) KickMember(localUser int, target string, done Done) {
	s.memberCommand(opKick, localUser, target, done, func(ctx context.Context, partyID string) error {
		return s.backend.KickMember(ctx, partyID, target)
	}, func() {
		current, ok := s.Current()
		if !ok {
			return
		}

		for i := range current.Members {
			if current.Members[i].ID == target {
				current.Members[i].Status = session.StatusKicked
			}
		}

		s.applyLocal(current)
	}, prompt.KeyPartyKickFailed)
}

// PromoteLeader hands party leadership to newLeader.
func (s *Session) PromoteLeader(localUser int, newLeader string, done Done) {
	s.memberCommand(opPromote, localUser, newLeader, done, func(ctx context.Context, partyID string) error {
		return s.backend.PromoteLeader(ctx, partyID, newLeader)
	}, func() {
		current, ok := s.Current()
		if !ok {
			return
		}

		current.LeaderID = newLeader
		s.applyLocal(current)
	}, prompt.KeyPartyPromoteFailed)
}

// memberCommand runs a leader action against target. The completion is
// detached before done runs, so repeated calls never stack.
func (s *Session) memberCommand(op string, localUser int, target string, done Done, fn func(ctx context.Context, partyID string) error, applied func(), failKey prompt.Key) {
	if done == nil {
		done = func(error) {}
	}

	fail := func(err error) {
		observe(op, err)
		s.later(func() { done(err) })
	}

	if _, ok := s.resolve(localUser); !ok {
		fail(invalidContext(localUser, op))
		return
	}

	if target == "" {
		fail(invalidTarget(localUser, op))
		return
	}

	if s.backend == nil {
		fail(noBackend(op))
		return
	}

	current, ok := s.Current()
	if !ok {
		fail(notInParty(localUser))
		return
	}

	pending := done
	s.call(op, func(ctx context.Context) error {
		return fn(ctx, current.ID)
	}, func(err error) {
		complete := pending
		pending = nil
		if complete == nil {
			return
		}

		observe(op, err)
		if err != nil {
			s.log.Warn("party member command failed", logging.F("op", op), logging.F("target", target), logging.F("error", err.Error()))
			if !errors.Is(err, ErrClosed) {
				s.push(op+"_failed", prompt.Notification{Message: s.catalog.Text(failKey)})
			}
		} else {
			applied()
		}

		complete(err)
	})
}

// displayJoinConfirmation joins directly when the player is alone or not in
// a party, and asks first otherwise.
func (s *Session) displayJoinConfirmation(localUser int, invite session.Invite) {
	current, ok := s.Current()
	if !ok || len(current.ActiveMembers()) <= 1 {
		s.JoinParty(localUser, invite.Session, nil)
		return
	}

	if s.sink == nil {
		s.JoinParty(localUser, invite.Session, nil)
		return
	}

	s.sink.ShowDialoguePopUp(prompt.PopUp{
		Title:   s.catalog.Text(prompt.KeyPartyJoinTitle),
		Message: s.catalog.Text(prompt.KeyPartyJoinConfirm),
		Kind:    prompt.PopUpYesNo,
		OnResponse: func(r prompt.Response) {
			s.later(func() {
				if s.closed {
					return
				}

				if r == prompt.Confirmed {
					s.JoinParty(localUser, invite.Session, nil)
					return
				}

				s.RejectInvite(localUser, invite, nil)
			})
		},
	})
}
