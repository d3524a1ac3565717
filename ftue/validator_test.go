package ftue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceskypane/abwars/errutil"
	"github.com/ceskypane/abwars/events"
	"github.com/ceskypane/abwars/internal/runloop"
)

type verdict struct {
	calls int
	valid bool
	err   error
}

func (v *verdict) done(_ *Dialogue, valid bool, err error) {
	v.calls++
	v.valid = valid
	v.err = err
}

func newTestValidator(checker Checker, bus *events.Bus) (*Validator, *runloop.Manual) {
	m := runloop.NewManual()
	return NewValidator(m, runloop.Inline, checker, bus, ValidatorConfig{}), m
}

func TestValidateNoneCompletesNextTick(t *testing.T) {
	v, m := newTestValidator(nil, nil)
	d := &Dialogue{ID: "welcome"}

	var got verdict
	v.Validate(d, v.NewScope(), got.done)

	assert.Equal(t, 0, got.calls)
	m.Drain()

	assert.Equal(t, 1, got.calls)
	assert.True(t, got.valid)
	assert.Equal(t, Valid, d.Result())
}

func TestValidateCustomCompletesExactlyOnce(t *testing.T) {
	v, m := newTestValidator(nil, nil)
	d := &Dialogue{ID: "invite", Validator: ValidatorSpec{
		Kind: ValidatorCustom,
		Custom: func(done func(bool)) {
			done(false)
			done(true)
		},
	}}

	var got verdict
	v.Validate(d, v.NewScope(), got.done)
	m.Drain()

	assert.Equal(t, 1, got.calls)
	assert.False(t, got.valid)
	assert.NoError(t, got.err)
	assert.Equal(t, Invalid, d.Result())
}

func TestValidateTimeoutMarksInvalid(t *testing.T) {
	v, m := newTestValidator(nil, nil)

	var late func(bool)
	d := &Dialogue{ID: "slow", Validator: ValidatorSpec{
		Kind:    ValidatorCustom,
		Timeout: 5 * time.Millisecond,
		Custom:  func(done func(bool)) { late = done },
	}}

	var got verdict
	v.Validate(d, v.NewScope(), got.done)

	require.Eventually(t, func() bool { return m.Pending() == 1 }, time.Second, time.Millisecond)
	m.Drain()

	require.Equal(t, 1, got.calls)
	assert.False(t, got.valid)
	assert.ErrorIs(t, got.err, ErrValidationTimeout)
	assert.Equal(t, "FTUE_VALIDATION_TIMEOUT", errutil.Code(got.err))
	assert.Equal(t, Invalid, d.Result())

	late(true)
	m.Drain()
	assert.Equal(t, 1, got.calls)
}

func TestInterruptSuppressesLateCompletion(t *testing.T) {
	v, m := newTestValidator(nil, nil)

	var pending func(bool)
	d := &Dialogue{ID: "party", Validator: ValidatorSpec{
		Kind:   ValidatorCustom,
		Custom: func(done func(bool)) { pending = done },
	}}

	scope := v.NewScope()
	var got verdict
	v.Validate(d, scope, got.done)

	scope.Interrupt()
	pending(true)
	m.Drain()

	assert.Equal(t, 0, got.calls)
	assert.Equal(t, Unvalidated, d.Result())
}

func TestValidatePredefined(t *testing.T) {
	checker := CheckerFunc{
		"lobby.connected": func(context.Context) (bool, error) { return true, nil },
		"config.version":  func(context.Context) (bool, error) { return false, errors.New("backend down") },
	}
	v, m := newTestValidator(checker, nil)

	ok := &Dialogue{ID: "a", Validator: ValidatorSpec{Kind: ValidatorPredefined, Predefined: "lobby.connected"}}
	failing := &Dialogue{ID: "b", Validator: ValidatorSpec{Kind: ValidatorPredefined, Predefined: "config.version"}}
	unknown := &Dialogue{ID: "c", Validator: ValidatorSpec{Kind: ValidatorPredefined, Predefined: "nope"}}

	var gotOK, gotFailing, gotUnknown verdict
	v.Validate(ok, nil, gotOK.done)
	v.Validate(failing, nil, gotFailing.done)
	v.Validate(unknown, nil, gotUnknown.done)
	m.Drain()

	assert.True(t, gotOK.valid)
	assert.False(t, gotFailing.valid)
	assert.Equal(t, "FTUE_PREDEFINED_FAILED", errutil.Code(gotFailing.err))
	assert.False(t, gotUnknown.valid)
	assert.ErrorIs(t, gotUnknown.err, ErrUnknownPredefined)
}

func TestValidatePredefinedWithoutChecker(t *testing.T) {
	v, m := newTestValidator(nil, nil)
	d := &Dialogue{ID: "a", Validator: ValidatorSpec{Kind: ValidatorPredefined, Predefined: "x"}}

	var got verdict
	v.Validate(d, nil, got.done)
	m.Drain()

	assert.ErrorIs(t, got.err, ErrNoChecker)
	assert.Equal(t, Invalid, d.Result())
}

func TestValidateAllRunsSequentially(t *testing.T) {
	v, m := newTestValidator(nil, nil)

	var (
		started []string
		pending []func(bool)
	)
	custom := func(id string) *Dialogue {
		return &Dialogue{ID: id, Validator: ValidatorSpec{Kind: ValidatorCustom, Custom: func(done func(bool)) {
			started = append(started, id)
			pending = append(pending, done)
		}}}
	}

	a, b := custom("a"), custom("b")
	finished := false
	v.ValidateAll([]*Dialogue{a, b}, v.NewScope(), func() { finished = true })

	assert.Equal(t, []string{"a"}, started)

	pending[0](true)
	m.Drain()
	assert.Equal(t, []string{"a", "b"}, started)
	assert.False(t, finished)

	pending[1](false)
	m.Drain()
	assert.True(t, finished)
	assert.Equal(t, Valid, a.Result())
	assert.Equal(t, Invalid, b.Result())
}

func TestValidateAllEmptyCompletesNextTick(t *testing.T) {
	v, m := newTestValidator(nil, nil)

	finished := false
	v.ValidateAll(nil, v.NewScope(), func() { finished = true })
	assert.False(t, finished)

	m.Drain()
	assert.True(t, finished)
}

func TestValidateEmitsEvent(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	sub, err := bus.Subscribe(4)
	require.NoError(t, err)
	defer sub.Cancel()

	v, m := newTestValidator(nil, bus)
	v.Validate(&Dialogue{ID: "welcome"}, nil, nil)
	m.Drain()

	select {
	case evt := <-sub.C:
		validated, ok := evt.(events.FTUEValidated)
		require.True(t, ok)
		assert.Equal(t, "welcome", validated.DialogueID)
		assert.True(t, validated.Valid)
	case <-time.After(time.Second):
		t.Fatalf("expected validation event")
	}
}
