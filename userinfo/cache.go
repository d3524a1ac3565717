package userinfo

import (
	"context"
	"time"

	"github.com/samber/oops"

	"github.com/ceskypane/abwars/internal/runloop"
	"github.com/ceskypane/abwars/logging"
)

type Config struct {
	QueryTimeout time.Duration
	Logger       logging.Logger
}

type request struct {
	localUser string
	ids       []string
	done      Completion
}

// Cache must only be used from the run loop it was built with.
type Cache struct {
	sched    runloop.Scheduler
	run      runloop.Runner
	provider Provider
	cfg      Config
	log      logging.Logger

	entries  map[string]Info
	inFlight map[string]bool
	pending  *request
}

func NewCache(sched runloop.Scheduler, run runloop.Runner, provider Provider, cfg Config) *Cache {
	if run == nil {
		run = runloop.Go
	}

	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 10 * time.Second
	}

	return &Cache{
		sched:    sched,
		run:      run,
		provider: provider,
		cfg:      cfg,
		log:      logging.Component(cfg.Logger, "userinfo"),
		entries:  map[string]Info{},
	}
}

// Cached returns the entry for id without querying.
func (c *Cache) Cached(id string) (Info, bool) {
	info, ok := c.entries[id]
	return info, ok
}

// Query resolves ids and calls done on a later tick. Only one backend query
// runs at a time; a call made while one is in flight replaces the waiting
// request, and the replaced completion is never called.
func (c *Cache) Query(localUser string, ids []string, done Completion) {
	if done == nil {
		done = func([]Info, error) {}
	}

	ids = dedupe(ids)
	if cached, ok := c.lookup(ids); ok {
		cacheHits.Add(float64(len(ids)))
		c.sched.Post(func() { done(cached, nil) })
		return
	}

	req := &request{localUser: localUser, ids: ids, done: done}
	if c.inFlight != nil {
		if c.pending != nil {
			c.log.Debug("pending user info query replaced", logging.F("dropped_ids", len(c.pending.ids)))
			queriesTotal.WithLabelValues("replaced").Inc()
		}

		c.pending = req
		return
	}

	c.pending = req
	c.start(req)
}

func (c *Cache) start(req *request) {
	if c.provider == nil {
		c.pending = nil
		err := oops.Code("USERINFO_NO_PROVIDER").Wrap(ErrNoProvider)
		c.sched.Post(func() { req.done(nil, err) })
		return
	}

	c.inFlight = make(map[string]bool, len(req.ids))
	for _, id := range req.ids {
		c.inFlight[id] = true
	}
	cacheMisses.Add(float64(len(req.ids)))

	ids := append([]string(nil), req.ids...)
	c.run(func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.QueryTimeout)
		infos, err := c.provider.BulkUserInfo(ctx, req.localUser, ids)
		cancel()

		c.sched.Post(func() { c.complete(infos, err) })
	})
}

func (c *Cache) complete(infos []Info, err error) {
	asked := c.inFlight
	c.inFlight = nil
	if err == nil {
		for _, info := range infos {
			if info.UserID == "" {
				continue
			}

			c.entries[info.UserID] = info
		}
	}

	req := c.pending
	c.pending = nil
	if req == nil {
		return
	}

	if err != nil {
		queriesTotal.WithLabelValues("error").Inc()
		c.log.Warn("user info query failed", logging.F("ids", len(req.ids)), logging.F("error", err.Error()))
		req.done(nil, oops.Code("USERINFO_QUERY_FAILED").With("local_user", req.localUser).Wrap(err))
		return
	}

	queriesTotal.WithLabelValues("ok").Inc()
	if !c.covered(req.ids, asked) {
		// The replacing caller asked for ids the finished query did not cover.
		c.pending = req
		c.start(req)
		return
	}

	req.done(c.resolved(req.ids), nil)
}

// covered reports whether every id is cached or was part of the finished
// query, resolved or not.
func (c *Cache) covered(ids []string, asked map[string]bool) bool {
	for _, id := range ids {
		if _, ok := c.entries[id]; !ok && !asked[id] {
			return false
		}
	}

	return true
}

func (c *Cache) lookup(ids []string) ([]Info, bool) {
	out := make([]Info, 0, len(ids))
	for _, id := range ids {
		info, ok := c.entries[id]
		if !ok {
			return nil, false
		}

		out = append(out, info)
	}

	return out, true
}

func (c *Cache) resolved(ids []string) []Info {
	out := make([]Info, 0, len(ids))
	for _, id := range ids {
		if info, ok := c.entries[id]; ok {
			out = append(out, info)
		}
	}

	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}

		seen[id] = true
		out = append(out, id)
	}

	return out
}
