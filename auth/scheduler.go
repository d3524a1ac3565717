package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/ceskypane/abwars/errutil"
	"github.com/ceskypane/abwars/events"
	"github.com/ceskypane/abwars/internal/backoff"
	"github.com/ceskypane/abwars/logging"
)

type Refresher interface {
	Refresh(ctx context.Context, current TokenSet) (TokenSet, error)
}

type SchedulerConfig struct {
	TokenStore             TokenStore
	Refresher              Refresher
	Bus                    *events.Bus
	RefreshSkew            time.Duration
	MinRefreshInterval     time.Duration
	RefreshRetryMinBackoff time.Duration
	RefreshRetryMaxBackoff time.Duration
	Now                    func() time.Time
	After                  func(d time.Duration) <-chan time.Time
	Logger                 logging.Logger
}

// RefreshScheduler keeps the stored IAM session fresh. It refreshes ahead of
// expiry from Run and on demand when a backend rejects the bearer token, and
// serializes both paths so a refresh token is only ever spent once.
type RefreshScheduler struct {
	cfg SchedulerConfig
	mu  sync.Mutex
}

func NewRefreshScheduler(cfg SchedulerConfig) (*RefreshScheduler, error) {
	if cfg.TokenStore == nil {
		return nil, errors.New("auth: token store is required")
	}

	if cfg.Refresher == nil {
		return nil, errors.New("auth: refresher is required")
	}

	if cfg.Bus == nil {
		cfg.Bus = events.NewBus()
	}

	if cfg.RefreshSkew <= 0 {
		cfg.RefreshSkew = 30 * time.Second
	}

	if cfg.MinRefreshInterval <= 0 {
		cfg.MinRefreshInterval = time.Second
	}

	if cfg.RefreshRetryMinBackoff <= 0 {
		cfg.RefreshRetryMinBackoff = 250 * time.Millisecond
	}

	if cfg.RefreshRetryMaxBackoff <= 0 {
		cfg.RefreshRetryMaxBackoff = 5 * time.Second
	}

	if cfg.RefreshRetryMaxBackoff < cfg.RefreshRetryMinBackoff {
		cfg.RefreshRetryMaxBackoff = cfg.RefreshRetryMinBackoff
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if cfg.After == nil {
		cfg.After = time.After
	}

	cfg.Logger = logging.Component(cfg.Logger, "auth")

	return &RefreshScheduler{cfg: cfg}, nil
}

// AccessToken returns the stored bearer token, refreshing first when it is
// inside the skew window.
func (s *RefreshScheduler) AccessToken(ctx context.Context) (string, error) {
	tokens, ok, err := s.cfg.TokenStore.Load(ctx)
	if err != nil {
		return "", err
	}

	if !ok {
		return "", ErrNoToken
	}

	if !tokens.ExpiresWithin(s.cfg.Now(), s.cfg.RefreshSkew) {
		return tokens.AccessToken, nil
	}

	updated, err := s.refresh(ctx, tokens.AccessToken)
	if err != nil {
		return "", err
	}

	return updated.AccessToken, nil
}

// Refresh exchanges the stored refresh token for a new session.
func (s *RefreshScheduler) Refresh(ctx context.Context) error {
	_, err := s.refresh(ctx, "")
	return err
}

// refresh skips the grant when another caller already replaced the token
// that stale names.
func (s *RefreshScheduler) refresh(ctx context.Context, stale string) (TokenSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok, err := s.cfg.TokenStore.Load(ctx)
	if err != nil {
		return TokenSet{}, oops.Code("AUTH_STORE").Wrapf(err, "load token set")
	}

	if !ok {
		return TokenSet{}, ErrNoToken
	}

	if stale != "" && current.AccessToken != stale && !current.ExpiresWithin(s.cfg.Now(), s.cfg.RefreshSkew) {
		return current, nil
	}

	if current.RefreshToken == "" {
		s.fail(ErrNoRefreshToken)
		return TokenSet{}, ErrNoRefreshToken
	}

	updated, err := s.cfg.Refresher.Refresh(ctx, current)
	if err != nil {
		s.fail(err)
		return TokenSet{}, err
	}

	if updated.UserID == "" {
		updated.UserID = current.UserID
	}

	if err := s.cfg.TokenStore.Save(ctx, updated); err != nil {
		wrapped := oops.Code("AUTH_STORE").Wrapf(err, "save token set")
		s.fail(wrapped)
		return TokenSet{}, wrapped
	}

	s.cfg.Logger.Info("token refreshed", logging.F("expires_at", updated.ExpiresAt.UTC().Format(time.RFC3339)))
	s.emit(events.AuthRefreshed{Base: events.Base{At: s.cfg.Now().UTC()}, ExpiresAt: updated.ExpiresAt})

	return updated, nil
}

func (s *RefreshScheduler) fail(err error) {
	fatal := IsFatal(err)
	if fatal {
		errutil.LogError(s.cfg.Logger, "fatal refresh failure", err)
	} else {
		s.cfg.Logger.Warn("transient refresh failure", errutil.Fields(err)...)
	}

	s.emit(events.AuthRefreshFailed{Base: events.Base{At: s.cfg.Now().UTC()}, Err: err, Fatal: fatal})
}

// Run refreshes ahead of expiry until ctx ends or a refresh fails fatally.
func (s *RefreshScheduler) Run(ctx context.Context) error {
	retry := backoff.Policy{Min: s.cfg.RefreshRetryMinBackoff, Max: s.cfg.RefreshRetryMaxBackoff}
	failures := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		delay := s.cfg.MinRefreshInterval
		tokens, ok, err := s.cfg.TokenStore.Load(ctx)
		switch {
		case err != nil:
			s.cfg.Logger.Warn("token load failed", errutil.Fields(err)...)
		case ok:
			delay = tokens.ExpiresAt.Add(-s.cfg.RefreshSkew).Sub(s.cfg.Now())
		}

		if failures > 0 {
			delay = retry.Delay(failures - 1)
		}

		if !s.wait(ctx, delay) {
			return ctx.Err()
		}

		if !ok {
			continue
		}

		if _, err := s.refresh(ctx, ""); err != nil {
			if IsFatal(err) {
				return err
			}

			failures++
			continue
		}

		failures = 0
	}
}

func (s *RefreshScheduler) wait(ctx context.Context, d time.Duration) bool {
	if d < s.cfg.MinRefreshInterval {
		d = s.cfg.MinRefreshInterval
	}

	select {
	case <-ctx.Done():
		return false
	case <-s.cfg.After(d):
		return true
	}
}

func (s *RefreshScheduler) emit(evt events.Event) {
	_ = s.cfg.Bus.Emit(evt)
}
