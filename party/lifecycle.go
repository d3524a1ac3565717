package party

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/oops"

	"github.com/ceskypane/abwars/errutil"
	"github.com/ceskypane/abwars/events"
	"github.com/ceskypane/abwars/logging"
	"github.com/ceskypane/abwars/prompt"
	"github.com/ceskypane/abwars/session"
)

type restoreState int

const (
	restoreIdle restoreState = iota
	restoreRunning
	restoreDone
)

const (
	opCreate  = "create"
	opJoin    = "join"
	opLeave   = "leave"
	opInvite  = "invite"
	opReject  = "reject"
	opKick    = "kick"
	opPromote = "promote"
	opRestore = "restore"
)

// begin claims the lifecycle slot for op, or reports who holds it.
func (s *Session) begin(op string) error {
	if s.running != "" {
		return inProgress(op, s.running)
	}

	s.running = op
	return nil
}

func (s *Session) end() {
	s.running = ""
}

// CreateParty leaves the current party if there is one, then creates a new
// party led by localUser.
func (s *Session) CreateParty(localUser int, done CreateDone) {
	if done == nil {
		done = func(session.NamedSession, error) {}
	}

	fail := func(err error) {
		observe(opCreate, err)
		s.later(func() { done(session.NamedSession{}, err) })
	}

	userID, ok := s.resolve(localUser)
	if !ok {
		fail(invalidContext(localUser, opCreate))
		return
	}

	if s.backend == nil {
		fail(noBackend(opCreate))
		return
	}

	if err := s.begin(opCreate); err != nil {
		fail(err)
		return
	}

	finish := func(created session.NamedSession, err error) {
		s.end()
		observe(opCreate, err)
		if err != nil {
			errutil.LogError(s.log, "create party failed", err)
		}

		s.emit(events.PartyCreated{Base: events.Now(), PartyID: created.ID, Err: err})
		done(created, err)
	}

	create := func() {
		var created session.NamedSession
		s.call(opCreate, func(ctx context.Context) error {
			var err error
			created, err = s.backend.CreateParty(ctx, userID)
			return err
		}, func(err error) {
			if err != nil {
				finish(session.NamedSession{}, oops.Code("PARTY_CREATE_FAILED").With("local_user", localUser).Wrap(errors.Join(ErrCreateFailed, err)))
				return
			}

			s.adopt(created)
			s.log.Info("party created", logging.F("party_id", created.ID), logging.F("leader", created.LeaderID))
			finish(created, nil)
		})
	}

	current, inParty := s.Current()
	if !inParty {
		create()
		return
	}

	s.leave(userID, current.ID, func(err error) {
		if err != nil {
			finish(session.NamedSession{}, oops.Code("PARTY_CREATE_FAILED").With("local_user", localUser).Wrap(errors.Join(ErrCreateFailed, chainInterrupted(opCreate, err))))
			return
		}

		create()
	})
}

// LeaveParty leaves the current party.
func (s *Session) LeaveParty(localUser int, done Done) {
	if done == nil {
		done = func(error) {}
	}

	fail := func(err error) {
		observe(opLeave, err)
		s.later(func() { done(err) })
	}

	userID, ok := s.resolve(localUser)
	if !ok {
		fail(invalidContext(localUser, opLeave))
		return
	}

	if s.backend == nil {
		fail(noBackend(opLeave))
		return
	}

	current, inParty := s.Current()
	if !inParty {
		fail(notInParty(localUser))
		return
	}

	if err := s.begin(opLeave); err != nil {
		fail(err)
		return
	}

	s.leave(userID, current.ID, func(err error) {
		s.end()
		observe(opLeave, err)
		done(err)
	})
}

// leave tears down partyID. Cached party state is only cleared when partyID
// is the party this client currently holds.
func (s *Session) leave(userID, partyID string, then func(err error)) {
	s.call(opLeave, func(ctx context.Context) error {
		return s.backend.LeaveSession(ctx, userID, partyID)
	}, func(err error) {
		if err == nil {
			if current, ok := s.Current(); ok && current.ID == partyID {
				s.state.Remove(session.PartySessionName)
				s.lastLeader = ""
				s.memberStatus = map[string]bool{}
				s.refreshWidgets()
			}

			s.log.Info("party left", logging.F("party_id", partyID))
		}

		s.emit(events.PartyLeft{Base: events.Now(), PartyID: partyID, Err: err})
		then(err)
	})
}

// JoinParty leaves the current party if there is one, then joins target.
func (s *Session) JoinParty(localUser int, target session.SearchResult, done JoinDone) {
	if done == nil {
		done = func(session.JoinResult, error) {}
	}

	fail := func(err error) {
		observe(opJoin, err)
		s.later(func() { done(session.JoinUnknownError, err) })
	}

	userID, ok := s.resolve(localUser)
	if !ok {
		fail(invalidContext(localUser, opJoin))
		return
	}

	if target.SessionID == "" {
		fail(invalidTarget(localUser, opJoin))
		return
	}

	if s.backend == nil {
		fail(noBackend(opJoin))
		return
	}

	if err := s.begin(opJoin); err != nil {
		fail(err)
		return
	}

	finish := func(result session.JoinResult, err error) {
		s.end()
		observe(opJoin, err)
		s.emit(events.PartyJoined{Base: events.Now(), PartyID: target.SessionID, Result: result.String(), Err: err})
		if err != nil && !errors.Is(err, ErrClosed) {
			errutil.LogError(s.log, "join party failed", err)
			s.push("join_failed", prompt.Notification{Message: s.catalog.Text(prompt.KeyPartyJoinFailed, result.String())})
		}

		done(result, err)
	}

	join := func() {
		var joined session.NamedSession
		s.call(opJoin, func(ctx context.Context) error {
			var err error
			joined, err = s.backend.JoinParty(ctx, userID, target.SessionID)
			return err
		}, func(err error) {
			if err != nil {
				finish(session.JoinResultFromError(err), err)
				return
			}

			s.adopt(joined)
			s.log.Info("party joined", logging.F("party_id", joined.ID), logging.F("leader", joined.LeaderID))
			finish(session.JoinSuccess, nil)
		})
	}

	current, inParty := s.Current()
	if !inParty {
		join()
		return
	}

	s.leave(userID, current.ID, func(err error) {
		if err != nil {
			finish(session.JoinUnknownError, chainInterrupted(opJoin, err))
			return
		}

		join()
	})
}

// adopt caches a party this client created or joined. The leader is recorded
// so it is not announced, and the member status cache starts empty.
func (s *Session) adopt(next session.NamedSession) {
	if next.Name == "" {
		next.Name = session.PartySessionName
	}

	s.state.Apply(next)
	s.lastLeader = next.LeaderID
	s.memberStatus = map[string]bool{}
	s.refreshWidgets()
	s.emit(events.PartyUpdated{Base: events.Now(), PartyID: next.ID, LeaderID: next.LeaderID, Members: len(next.ActiveMembers())})
}

// HandleLobbyConnected restores the player's active sessions once per
// session lifetime and leaves the first restored party this client does not
// already hold. Later connects (lobby reconnects) are no-ops, so a network
// blip never takes the player out of a live party.
func (s *Session) HandleLobbyConnected(localUser int, done Done) {
	if done == nil {
		done = func(error) {}
	}

	userID, ok := s.resolve(localUser)
	if !ok {
		err := invalidContext(localUser, opRestore)
		s.later(func() { done(err) })
		return
	}

	if s.backend == nil {
		err := noBackend(opRestore)
		s.later(func() { done(err) })
		return
	}

	if s.restore != restoreIdle {
		s.later(func() { done(nil) })
		return
	}

	s.restore = restoreRunning

	var restored []session.NamedSession
	s.call(opRestore, func(ctx context.Context) error {
		var err error
		restored, err = s.backend.RestoreActiveSessions(ctx, userID)
		return err
	}, func(err error) {
		observe(opRestore, err)
		if err != nil {
			s.restore = restoreIdle
			done(err)
			return
		}

		s.restore = restoreDone

		stale, found := s.staleParty(restored)
		if !found {
			done(nil)
			return
		}

		s.log.Info("leaving restored party", logging.F("party_id", stale.ID), logging.F("restored", len(restored)))
		s.leave(userID, stale.ID, func(err error) {
			observe(opLeave, err)
			if err != nil {
				done(fmt.Errorf("leave restored party %s: %w", stale.ID, err))
				return
			}

			done(nil)
		})
	})
}

// staleParty picks the first restored party other than the one cached as
// current.
func (s *Session) staleParty(restored []session.NamedSession) (session.NamedSession, bool) {
	current, inParty := s.Current()
	for _, candidate := range restored {
		if candidate.ID == "" || (inParty && candidate.ID == current.ID) {
			continue
		}

		if candidate.Type != 0 && candidate.Type != session.TypeParty {
			continue
		}

		return candidate, true
	}

	return session.NamedSession{}, false
}
