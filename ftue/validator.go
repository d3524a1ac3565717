package ftue

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"

	"github.com/ceskypane/abwars/events"
	"github.com/ceskypane/abwars/internal/runloop"
	"github.com/ceskypane/abwars/logging"
)

var (
	ErrValidationTimeout = errors.New("ftue: validation timed out")
	ErrUnknownPredefined = errors.New("ftue: unknown predefined validator")
	ErrNoChecker         = errors.New("ftue: no predefined checker")
)

const DefaultValidationTimeout = 5 * time.Second

// Checker runs service-backed predefined validations. It may block.
type Checker interface {
	CheckPredefined(ctx context.Context, name string) (bool, error)
}

// CheckerFunc adapts a map of named checks to Checker.
type CheckerFunc map[string]func(ctx context.Context) (bool, error)

func (c CheckerFunc) CheckPredefined(ctx context.Context, name string) (bool, error) {
	check, ok := c[name]
	if !ok {
		return false, oops.Code("FTUE_UNKNOWN_PREDEFINED").With("validator", name).Wrap(ErrUnknownPredefined)
	}

	return check(ctx)
}

// ValidateDone receives the verdict for one dialogue. err is set for timeouts
// and checker failures; valid is false in that case.
type ValidateDone func(d *Dialogue, valid bool, err error)

// Scope is the validating owner. Interrupting it retires every validation
// started through it.
type Scope struct {
	interrupted bool
}

func (s *Scope) Interrupt() {
	if s != nil {
		s.interrupted = true
	}
}

func (s *Scope) Interrupted() bool {
	return s != nil && s.interrupted
}

type ValidatorConfig struct {
	Timeout time.Duration
	Logger  logging.Logger
}

type Validator struct {
	sched   runloop.Scheduler
	run     runloop.Runner
	checker Checker
	bus     *events.Bus
	timeout time.Duration
	log     logging.Logger
}

func NewValidator(sched runloop.Scheduler, run runloop.Runner, checker Checker, bus *events.Bus, cfg ValidatorConfig) *Validator {
	if run == nil {
		run = runloop.Go
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultValidationTimeout
	}

	return &Validator{
		sched:   sched,
		run:     run,
		checker: checker,
		bus:     bus,
		timeout: cfg.Timeout,
		log:     logging.Component(cfg.Logger, "ftue.validator"),
	}
}

// NewScope hands out a fresh validation owner.
func (v *Validator) NewScope() *Scope {
	return &Scope{}
}

// Validate decides d's eligibility and calls done exactly once on the loop,
// unless scope is interrupted first.
func (v *Validator) Validate(d *Dialogue, scope *Scope, done ValidateDone) {
	var (
		finished bool
		stop     func() bool
	)

	finish := func(valid bool, err error) {
		if finished {
			return
		}

		finished = true
		if stop != nil {
			stop()
		}

		if scope.Interrupted() {
			validationsTotal.WithLabelValues("interrupted").Inc()
			return
		}

		v.record(d, valid, err)
		if done != nil {
			done(d, valid, err)
		}
	}

	post := func(valid bool, err error) {
		v.sched.Post(func() { finish(valid, err) })
	}

	switch d.Validator.Kind {
	case ValidatorNone:
		post(true, nil)
		return
	case ValidatorCustom:
		if d.Validator.Custom == nil {
			post(true, nil)
			return
		}
	case ValidatorPredefined:
		if v.checker == nil {
			post(false, oops.Code("FTUE_NO_CHECKER").With("dialogue", d.ID).Wrap(ErrNoChecker))
			return
		}
	}

	timeout := d.Validator.Timeout
	if timeout <= 0 {
		timeout = v.timeout
	}

	stop = runloop.After(v.sched, timeout, func() {
		finish(false, oops.Code("FTUE_VALIDATION_TIMEOUT").
			With("dialogue", d.ID).
			With("timeout", timeout.String()).
			Wrap(ErrValidationTimeout))
	})

	if d.Validator.Kind == ValidatorCustom {
		d.Validator.Custom(func(valid bool) { post(valid, nil) })
		return
	}

	name := d.Validator.Predefined
	v.run(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		valid, err := v.checker.CheckPredefined(ctx, name)
		if err != nil {
			err = oops.Code("FTUE_PREDEFINED_FAILED").With("dialogue", d.ID).With("validator", name).Wrap(err)
			valid = false
		}

		post(valid, err)
	})
}

// ValidateAll validates ds one after another, then calls done. Nothing is
// reported once scope is interrupted.
func (v *Validator) ValidateAll(ds []*Dialogue, scope *Scope, done func()) {
	pending := make([]*Dialogue, len(ds))
	copy(pending, ds)

	var step func(i int)
	step = func(i int) {
		if scope.Interrupted() {
			return
		}

		if i >= len(pending) {
			if done != nil {
				done()
			}
			return
		}

		v.Validate(pending[i], scope, func(*Dialogue, bool, error) { step(i + 1) })
	}

	if len(pending) == 0 {
		v.sched.Post(func() { step(0) })
		return
	}

	step(0)
}

func (v *Validator) record(d *Dialogue, valid bool, err error) {
	d.result = Invalid
	if valid {
		d.result = Valid
	}

	outcome := d.result.String()
	if errors.Is(err, ErrValidationTimeout) {
		outcome = "timeout"
	}
	validationsTotal.WithLabelValues(outcome).Inc()

	if err != nil {
		v.log.Warn("dialogue validation failed",
			logging.F("dialogue", d.ID),
			logging.F("error", err.Error()))
	}

	if v.bus != nil && !v.bus.IsClosed() {
		_ = v.bus.Emit(events.FTUEValidated{Base: events.Now(), DialogueID: d.ID, Valid: valid, Err: err})
	}
}
