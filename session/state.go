package session

import (
	"sync"
	"time"
)

// Diff describes what an Apply changed.
type Diff struct {
	Joined        []string
	Left          []string
	LeaderChanged bool
	Created       bool
	Stale         bool
}

func (d Diff) Empty() bool {
	return len(d.Joined) == 0 && len(d.Left) == 0 && !d.LeaderChanged && !d.Created
}

// State caches named sessions by name.
type State struct {
	mu       sync.RWMutex
	sessions map[string]NamedSession
	now      func() time.Time
}

func NewState() *State {
	return &State{sessions: map[string]NamedSession{}, now: time.Now}
}

func (s *State) Get(name string) (NamedSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[name]
	if !ok {
		return NamedSession{}, false
	}

	return sess.Clone(), true
}

func (s *State) InParty() bool {
	_, ok := s.Get(PartySessionName)
	return ok
}

// Apply replaces the cached session named next.Name. A snapshot of the same
// session with a lower version is ignored.
func (s *State) Apply(next NamedSession) Diff {
	if next.Name == "" {
		next.Name = PartySessionName
	}

	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = s.now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[next.Name]
	if ok && current.ID == next.ID && next.Version < current.Version {
		return Diff{Stale: true}
	}

	diff := Diff{Created: !ok || current.ID != next.ID}

	before := map[string]bool{}
	if ok && current.ID == next.ID {
		for _, id := range current.ActiveMembers() {
			before[id] = true
		}
	}

	after := map[string]bool{}
	for _, id := range next.ActiveMembers() {
		after[id] = true
		if !before[id] {
			diff.Joined = append(diff.Joined, id)
		}
	}

	if ok && current.ID == next.ID {
		for _, id := range current.ActiveMembers() {
			if !after[id] {
				diff.Left = append(diff.Left, id)
			}
		}
	}

	diff.LeaderChanged = !ok || current.LeaderID != next.LeaderID
	s.sessions[next.Name] = next.Clone()

	return diff
}

func (s *State) Remove(name string) (NamedSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[name]
	if ok {
		delete(s.sessions, name)
	}

	return sess, ok
}
