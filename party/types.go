// Package party runs the party session state machine for one local player.
//
// A Session is confined to the run loop it is built with: every exported
// method must be called from that loop, and every completion is delivered on
// a later tick of it. Backend calls run through the Runner and post their
// results back.
package party

import (
	"time"

	"github.com/ceskypane/abwars/events"
	"github.com/ceskypane/abwars/internal/runloop"
	"github.com/ceskypane/abwars/logging"
	"github.com/ceskypane/abwars/prompt"
	"github.com/ceskypane/abwars/session"
	"github.com/ceskypane/abwars/userinfo"
)

// Generated friend-detail buttons.
const (
	WidgetInvite  = "btn_invite_to_party"
	WidgetKick    = "btn_kick_from_party"
	WidgetPromote = "btn_promote_party_leader"
)

// Identity resolves local players.
type Identity interface {
	UniqueID(localUser int) (string, bool)
	HasController(localUser int) bool
}

// StaticIdentity is a single local player with a fixed id.
type StaticIdentity struct {
	UserID string
}

func (s StaticIdentity) UniqueID(localUser int) (string, bool) {
	if localUser != 0 || s.UserID == "" {
		return "", false
	}

	return s.UserID, true
}

func (s StaticIdentity) HasController(localUser int) bool {
	return localUser == 0
}

// Affordances toggles generated widgets by name.
type Affordances interface {
	SetVisible(widget string, visible bool)
	SetEnabled(widget string, enabled bool)
}

// UserResolver is satisfied by *userinfo.Cache.
type UserResolver interface {
	Query(localUser string, ids []string, done userinfo.Completion)
}

type (
	Done       func(err error)
	CreateDone func(s session.NamedSession, err error)
	JoinDone   func(result session.JoinResult, err error)
)

type Config struct {
	LocalUser        int
	OperationTimeout time.Duration
	Catalog          *prompt.Catalog
	Logger           logging.Logger
}

func DefaultConfig() Config {
	return Config{OperationTimeout: 15 * time.Second}
}

// Deps are the collaborators a Session is composed from. Backend, Identity
// and Scheduler are required for operations to succeed; the rest may be nil.
type Deps struct {
	Scheduler runloop.Scheduler
	Runner    runloop.Runner
	Backend   session.Backend
	State     *session.State
	Notifier  *session.Notifier
	Users     UserResolver
	Sink      prompt.Sink
	Identity  Identity
	Bus       *events.Bus
	Widgets   Affordances
}
