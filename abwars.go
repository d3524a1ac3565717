// Package abwars is the client-side party and tutorial orchestration layer of
// AccelByte Wars.
package abwars

import (
	"context"

	"github.com/ceskypane/abwars/events"
	"github.com/ceskypane/abwars/ftue"
	"github.com/ceskypane/abwars/party"
	"github.com/ceskypane/abwars/userinfo"
)

// Runtime is the control surface front ends drive. Party and Tutorial are
// loop-confined: call them only from functions handed to Post.
type Runtime interface {
	Login(ctx context.Context) error
	Run(ctx context.Context) error

	Post(fn func()) bool
	Bus() *events.Bus
	LobbyConnected() bool

	Party() *party.Session
	Tutorial() *ftue.Queue
	Users() *userinfo.Cache
}
