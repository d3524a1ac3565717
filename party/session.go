package party

import (
	"context"

	"golang.org/x/text/language"

	"github.com/ceskypane/abwars/errutil"
	"github.com/ceskypane/abwars/events"
	"github.com/ceskypane/abwars/internal/runloop"
	"github.com/ceskypane/abwars/logging"
	"github.com/ceskypane/abwars/prompt"
	"github.com/ceskypane/abwars/session"
	"github.com/ceskypane/abwars/userinfo"
)

type lookup struct {
	userID string
	fn     func(name, avatar string)
}

type Session struct {
	cfg      Config
	sched    runloop.Scheduler
	run      runloop.Runner
	backend  session.Backend
	state    *session.State
	users    UserResolver
	sink     prompt.Sink
	identity Identity
	bus      *events.Bus
	widgets  Affordances
	catalog  *prompt.Catalog
	log      logging.Logger

	sub *session.Subscription

	// running names the lifecycle operation (create, join, leave) in flight.
	running string
	// restore tracks the once per lifetime stale party cleanup.
	restore restoreState

	lastLeader   string
	memberStatus map[string]bool
	lookups      []lookup
	friend       string
	inviting     bool
	closed       bool
}

func NewSession(deps Deps, cfg Config) *Session {
	defaults := DefaultConfig()
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = defaults.OperationTimeout
	}

	if cfg.Catalog == nil {
		cfg.Catalog = prompt.NewCatalog(language.English)
	}

	if deps.Runner == nil {
		deps.Runner = runloop.Go
	}

	if deps.State == nil {
		deps.State = session.NewState()
	}

	s := &Session{
		cfg:          cfg,
		sched:        deps.Scheduler,
		run:          deps.Runner,
		backend:      deps.Backend,
		state:        deps.State,
		users:        deps.Users,
		sink:         deps.Sink,
		identity:     deps.Identity,
		bus:          deps.Bus,
		widgets:      deps.Widgets,
		catalog:      cfg.Catalog,
		log:          logging.Component(cfg.Logger, "party"),
		memberStatus: map[string]bool{},
	}

	if deps.Notifier != nil {
		s.sub = deps.Notifier.Subscribe(s)
	}

	return s
}

// Close unsubscribes from session notifications. Completions still in flight
// are delivered with ErrClosed and leave the cached state untouched.
func (s *Session) Close() {
	if s.closed {
		return
	}

	s.closed = true
	s.sub.Cancel()
}

func (s *Session) Current() (session.NamedSession, bool) {
	return s.state.Get(session.PartySessionName)
}

func (s *Session) Members() []string {
	current, ok := s.Current()
	if !ok {
		return nil
	}

	return current.ActiveMembers()
}

func (s *Session) Leader() string {
	current, ok := s.Current()
	if !ok {
		return ""
	}

	return current.LeaderID
}

func (s *Session) IsInParty(userID string) bool {
	current, ok := s.Current()
	return ok && current.HasMember(userID)
}

func (s *Session) IsLeader(userID string) bool {
	leader := s.Leader()
	return leader != "" && leader == userID
}

func (s *Session) localID() (string, bool) {
	if s.identity == nil {
		return "", false
	}

	return s.identity.UniqueID(s.cfg.LocalUser)
}

func (s *Session) resolve(localUser int) (string, bool) {
	if s.identity == nil {
		return "", false
	}

	return s.identity.UniqueID(localUser)
}

// later runs fn on the next tick.
func (s *Session) later(fn func()) {
	if !s.sched.Post(fn) {
		s.log.Warn("party completion dropped, loop closed")
	}
}

// call runs fn on the runner and hands its error to then on the loop.
func (s *Session) call(op string, fn func(ctx context.Context) error, then func(err error)) {
	s.run(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.OperationTimeout)
		err := fn(ctx)
		cancel()

		s.later(func() {
			if s.closed {
				then(ErrClosed)
				return
			}

			if err != nil {
				s.log.Warn("party backend call failed", append(errutil.Fields(err), logging.F("op", op))...)
			}

			then(err)
		})
	})
}

func (s *Session) emit(evt events.Event) {
	if s.bus == nil {
		return
	}

	_ = s.bus.Emit(evt)
}

func (s *Session) push(kind string, n prompt.Notification) {
	notificationsTotal.WithLabelValues(kind).Inc()
	if s.sink == nil {
		return
	}

	s.sink.PushNotification(n)
}

// withUser resolves one user's display data, falling back to the default
// name when the lookup fails. Lookups run one at a time so the cache never
// replaces a party lookup with another.
func (s *Session) withUser(userID string, fn func(name, avatar string)) {
	s.lookups = append(s.lookups, lookup{userID: userID, fn: fn})
	if len(s.lookups) == 1 {
		s.nextLookup()
	}
}

func (s *Session) nextLookup() {
	if len(s.lookups) == 0 {
		return
	}

	l := s.lookups[0]
	deliver := func(name, avatar string) {
		s.lookups = s.lookups[1:]
		if !s.closed {
			l.fn(name, avatar)
		}

		s.nextLookup()
	}

	fallback := func() { deliver(userinfo.DefaultDisplayName(l.userID), "") }
	if s.users == nil {
		s.later(fallback)
		return
	}

	local, _ := s.localID()
	s.users.Query(local, []string{l.userID}, func(infos []userinfo.Info, err error) {
		if err != nil || len(infos) == 0 {
			fallback()
			return
		}

		deliver(infos[0].Name(), infos[0].AvatarURL)
	})
}
