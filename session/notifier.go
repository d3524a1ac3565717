package session

import (
	"sort"
	"sync"
)

// Notifier fans session notifications out to subscribed handlers.
type Notifier struct {
	mu       sync.Mutex
	next     uint64
	handlers map[uint64]Handler
}

func NewNotifier() *Notifier {
	return &Notifier{handlers: map[uint64]Handler{}}
}

type Subscription struct {
	id       uint64
	notifier *Notifier
	once     sync.Once
}

// Cancel unregisters the handler. It is safe to call more than once.
func (s *Subscription) Cancel() {
	if s == nil || s.notifier == nil {
		return
	}

	s.once.Do(func() {
		s.notifier.mu.Lock()
		defer s.notifier.mu.Unlock()

		delete(s.notifier.handlers, s.id)
	})
}

func (n *Notifier) Subscribe(h Handler) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.next++
	n.handlers[n.next] = h

	return &Subscription{id: n.next, notifier: n}
}

func (n *Notifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return len(n.handlers)
}

// each calls fn for every handler in subscription order. The handler set is
// copied first so handlers may cancel themselves.
func (n *Notifier) each(fn func(Handler)) {
	n.mu.Lock()
	ids := make([]uint64, 0, len(n.handlers))
	for id := range n.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, n.handlers[id])
	}
	n.mu.Unlock()

	for _, h := range handlers {
		fn(h)
	}
}

func (n *Notifier) ParticipantsChanged(sessionName, memberID string, joined bool) {
	n.each(func(h Handler) { h.ParticipantsChanged(sessionName, memberID, joined) })
}

func (n *Notifier) SessionUpdated(sessionName string, s NamedSession) {
	n.each(func(h Handler) { h.SessionUpdated(sessionName, s.Clone()) })
}

func (n *Notifier) InviteReceived(localUser, senderID string, invite Invite) {
	n.each(func(h Handler) { h.InviteReceived(localUser, senderID, invite) })
}

func (n *Notifier) InviteRejected(sessionName, rejecterID string) {
	n.each(func(h Handler) { h.InviteRejected(sessionName, rejecterID) })
}

func (n *Notifier) Kicked(sessionName, sessionID string) {
	n.each(func(h Handler) { h.Kicked(sessionName, sessionID) })
}
