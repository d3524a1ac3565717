// Package client composes the party, user info, lobby and tutorial layers on
// one run loop.
package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"golang.org/x/text/language"

	"github.com/ceskypane/abwars"
	"github.com/ceskypane/abwars/auth"
	"github.com/ceskypane/abwars/auth/iam"
	"github.com/ceskypane/abwars/errutil"
	"github.com/ceskypane/abwars/events"
	"github.com/ceskypane/abwars/ftue"
	"github.com/ceskypane/abwars/internal/runloop"
	"github.com/ceskypane/abwars/lobby"
	"github.com/ceskypane/abwars/logging"
	"github.com/ceskypane/abwars/party"
	"github.com/ceskypane/abwars/prompt"
	"github.com/ceskypane/abwars/session"
	transporthttp "github.com/ceskypane/abwars/transport/http"
	"github.com/ceskypane/abwars/userinfo"
)

var (
	ErrAlreadyStarted = errors.New("client: already started")
	ErrNoCredentials  = errors.New("client: no credentials")
)

// Deps are the platform pieces a client cannot build itself. Every field is
// optional.
type Deps struct {
	HTTPClient *http.Client
	TokenStore auth.TokenStore
	Sink       prompt.Sink
	Surface    ftue.Surface
	Linker     ftue.Linker
	Widgets    party.Affordances
	Dialer     lobby.Dialer
	Dispatcher lobby.Dispatcher
	Bindings   ftue.Bindings
	Checks     ftue.CheckerFunc
	Registerer prometheus.Registerer
	Logger     logging.Logger
}

type Client struct {
	cfg Config
	log logging.Logger

	bus  *events.Bus
	loop *runloop.Loop

	tokens  auth.TokenStore
	oauth   *iam.Client
	refresh *auth.RefreshScheduler
	http    *transporthttp.Client

	state    *session.State
	notifier *session.Notifier
	backend  *session.HTTPBackend
	decoder  *session.LobbyDecoder
	users    *userinfo.Cache
	lobby    *lobby.Client
	party    *party.Session

	validator *ftue.Validator
	tutorial  *ftue.Queue

	lobbyUp atomic.Bool

	runMu   sync.Mutex
	started bool
	wg      sync.WaitGroup
}

func NewClient(cfg Config, deps Deps) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logging.Component(deps.Logger, "client")

	tokens := deps.TokenStore
	if tokens == nil {
		tokens = auth.NewMemoryTokenStore()
	}

	c := &Client{
		cfg:      cfg,
		log:      log,
		bus:      events.NewBus(),
		loop:     runloop.New(),
		tokens:   tokens,
		state:    session.NewState(),
		notifier: session.NewNotifier(),
	}

	var provider transporthttp.TokenProvider = &storeTokens{store: tokens}
	if cfg.ClientID != "" {
		oauth, err := iam.NewClient(iam.Config{
			BaseURL:      cfg.BaseURL,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			HTTPClient:   deps.HTTPClient,
		})
		if err != nil {
			return nil, err
		}

		scheduler, err := auth.NewRefreshScheduler(auth.SchedulerConfig{
			TokenStore: tokens,
			Refresher:  iam.Refresher{Client: oauth},
			Bus:        c.bus,
			Logger:     deps.Logger,
		})
		if err != nil {
			return nil, err
		}

		c.oauth = oauth
		c.refresh = scheduler
		provider = scheduler
	}

	c.http = transporthttp.NewClient(deps.HTTPClient, provider, transporthttp.Config{UserAgent: "abwars"})

	backend, err := session.NewHTTPBackend(c.http, session.HTTPConfig{
		BaseURL:       cfg.BaseURL,
		Namespace:     cfg.Namespace,
		PartyTemplate: cfg.PartyTemplate,
		Logger:        deps.Logger,
	})
	if err != nil {
		return nil, err
	}
	c.backend = backend

	profiles, err := userinfo.NewHTTPProvider(c.http, cfg.BaseURL, cfg.Namespace)
	if err != nil {
		return nil, err
	}

	c.users = userinfo.NewCache(c.loop, runloop.Go, profiles, userinfo.Config{QueryTimeout: cfg.UserInfoTimeout, Logger: deps.Logger})
	c.decoder = session.NewLobbyDecoder(c.loop, c.state, c.notifier, deps.Logger)

	catalog := prompt.NewCatalog(language.Make(cfg.Language))

	sink := deps.Sink
	if sink == nil {
		sink = prompt.NewLogSink(deps.Logger, prompt.Declined)
	}

	c.party = party.NewSession(party.Deps{
		Scheduler: c.loop,
		Runner:    runloop.Go,
		Backend:   backend,
		State:     c.state,
		Notifier:  c.notifier,
		Users:     c.users,
		Sink:      sink,
		Identity:  tokenIdentity{store: tokens},
		Bus:       c.bus,
		Widgets:   deps.Widgets,
	}, party.Config{OperationTimeout: cfg.OperationTimeout, Catalog: catalog, Logger: deps.Logger})

	if cfg.LobbyURL != "" {
		lobbyCfg := lobby.DefaultConfig()
		lobbyCfg.Endpoint = cfg.LobbyURL
		lobbyCfg.MaxReconnectAttempts = cfg.ReconnectAttempts
		lobbyCfg.Logger = deps.Logger

		dispatcher := &chainDispatcher{items: []lobby.Dispatcher{c.decoder, deps.Dispatcher}}
		c.lobby = lobby.NewClient(lobbyCfg, c.bus, provider, dispatcher, deps.Dialer)
	}

	surface := deps.Surface
	if surface == nil {
		surface = newLogSurface(deps.Logger)
	}

	c.validator = ftue.NewValidator(c.loop, runloop.Go, c.checks(deps.Checks), c.bus, ftue.ValidatorConfig{
		Timeout: cfg.ValidationTimeout,
		Logger:  deps.Logger,
	})

	c.tutorial = ftue.NewQueue(ftue.QueueDeps{
		Validator: c.validator,
		Surface:   surface,
		Linker:    deps.Linker,
		Sink:      sink,
		Bus:       c.bus,
	}, ftue.QueueConfig{
		AlwaysOn:  func() bool { return cfg.FTUEAlwaysOn },
		Arguments: c.argument,
		Catalog:   catalog,
		Logger:    deps.Logger,
	})

	if cfg.FTUEPath != "" {
		tutorialCfg, err := ftue.LoadConfigFile(cfg.FTUEPath)
		if err != nil {
			return nil, err
		}

		dialogues, err := tutorialCfg.Build(deps.Bindings)
		if err != nil {
			return nil, err
		}

		c.loop.Post(func() { c.tutorial.AddDialogues(dialogues...) })
	}

	if deps.Registerer != nil {
		transporthttp.RegisterMetrics(deps.Registerer)
		userinfo.RegisterMetrics(deps.Registerer)
		party.RegisterMetrics(deps.Registerer)
		ftue.RegisterMetrics(deps.Registerer)
	}

	return c, nil
}

// Login signs in with the configured password grant. Without credentials it
// expects the token store to already hold a session.
func (c *Client) Login(ctx context.Context) error {
	if c.oauth != nil && c.cfg.Username != "" {
		tokens, err := c.oauth.TokenByPassword(ctx, iam.PasswordGrant{Username: c.cfg.Username, Password: c.cfg.Password})
		if err != nil {
			return oops.Code("CLIENT_LOGIN_FAILED").With("username", c.cfg.Username).Wrap(err)
		}

		return c.tokens.Save(ctx, tokens)
	}

	_, ok, err := c.tokens.Load(ctx)
	if err != nil {
		return err
	}

	if !ok {
		return oops.Code("CLIENT_NO_CREDENTIALS").Wrap(ErrNoCredentials)
	}

	return nil
}

// Run drives the client until ctx is done. A client runs once.
func (c *Client) Run(ctx context.Context) error {
	c.runMu.Lock()
	if c.started {
		c.runMu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.runMu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sub, err := c.bus.SubscribeMatching(c.cfg.EventBuffer, events.Any(
		events.IsName(events.EventLobbyConnected),
		events.IsName(events.EventLobbyDisconnected),
		events.IsName(events.EventLobbyError),
	))
	if err != nil {
		return err
	}

	c.wg.Add(1)
	go c.watchLobby(sub)

	if c.refresh != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if err := c.refresh.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				errutil.LogError(c.log, "token refresh stopped", err)
			}
		}()
	}

	if c.lobby != nil {
		if err := c.lobby.Connect(runCtx); err != nil {
			sub.Cancel()
			c.wg.Wait()
			return err
		}
	}

	c.loop.Post(c.tutorial.Activate)

	userID, _ := tokenIdentity{store: c.tokens}.UniqueID(0)
	_ = c.bus.Emit(events.ClientReady{Base: events.Now(), UserID: userID})
	c.log.Info("client ready", logging.F("user_id", userID))

	err = c.loop.Run(runCtx)
	c.shutdown(sub)

	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

func (c *Client) shutdown(sub *events.Subscription) {
	c.tutorial.Deactivate()
	c.party.Close()

	if c.lobby != nil {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ShutdownTimeout)
		if err := c.lobby.Close(ctx); err != nil {
			errutil.LogError(c.log, "lobby close", err)
		}
		cancel()
	}

	sub.Cancel()
	c.wg.Wait()

	_ = c.bus.Emit(events.ClientDisconnected{Base: events.Now()})
	c.bus.Close()
}

// watchLobby tracks lobby connectivity and hands every connect to the party
// session, which runs its stale party cleanup only on the first one.
func (c *Client) watchLobby(sub *events.Subscription) {
	defer c.wg.Done()

	for evt := range sub.C {
		switch e := evt.(type) {
		case events.LobbyConnected:
			c.lobbyUp.Store(true)
			c.loop.Post(func() {
				c.party.HandleLobbyConnected(0, func(err error) {
					if err != nil {
						errutil.LogError(c.log, "restore sessions after lobby connect", err)
					}
				})
			})
		case events.LobbyDisconnected:
			c.lobbyUp.Store(false)
		case events.LobbyError:
			if e.Fatal {
				c.lobbyUp.Store(false)
				errutil.LogError(c.log, "lobby gave up", e.Err)
			}
		}
	}
}

// Post runs fn on the client loop. Party and tutorial calls must go through it.
func (c *Client) Post(fn func()) bool {
	return c.loop.Post(fn)
}

func (c *Client) Bus() *events.Bus {
	return c.bus
}

func (c *Client) Party() *party.Session {
	return c.party
}

func (c *Client) Tutorial() *ftue.Queue {
	return c.tutorial
}

func (c *Client) Users() *userinfo.Cache {
	return c.users
}

func (c *Client) LobbyConnected() bool {
	return c.lobbyUp.Load()
}

var _ abwars.Runtime = (*Client)(nil)
