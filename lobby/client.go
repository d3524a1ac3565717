// Package lobby maintains the websocket to the lobby service and hands
// backend notifications to a dispatcher.
package lobby

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ceskypane/abwars/events"
	"github.com/ceskypane/abwars/internal/backoff"
	"github.com/ceskypane/abwars/logging"
)

var (
	ErrNotRunning              = errors.New("lobby: client not running")
	ErrReconnectBudgetExceeded = errors.New("lobby: reconnect attempts exhausted")
	ErrKeepAliveBlocked        = errors.New("lobby: keepalive queue is full")
)

const sessionIDHeader = "X-Ab-LobbySessionID"

type outbound struct {
	messageType int
	data        []byte
}

type Client struct {
	cfg         Config
	bus         *events.Bus
	tokenSource TokenSource
	dispatcher  Dispatcher
	dialer      Dialer
	sleep       func(time.Duration)
	logger      logging.Logger

	sendCh chan outbound

	mu      sync.Mutex
	conn    Conn
	running bool
	cancel  context.CancelFunc

	wg sync.WaitGroup
}

func NewClient(cfg Config, bus *events.Bus, tokenSource TokenSource, dispatcher Dispatcher, dialer Dialer) *Client {
	if bus == nil {
		bus = events.NewBus()
	}

	defaults := DefaultConfig()
	if cfg.WriteBuffer <= 0 {
		cfg.WriteBuffer = defaults.WriteBuffer
	}

	if cfg.MinReconnectDelay <= 0 {
		cfg.MinReconnectDelay = defaults.MinReconnectDelay
	}

	if cfg.MaxReconnectDelay <= 0 {
		cfg.MaxReconnectDelay = defaults.MaxReconnectDelay
	}

	if cfg.MaxReconnectDelay < cfg.MinReconnectDelay {
		cfg.MaxReconnectDelay = cfg.MinReconnectDelay
	}

	if dialer == nil {
		dialer = &gorillaDialer{dialer: websocket.DefaultDialer}
	}

	return &Client{
		cfg:         cfg,
		bus:         bus,
		tokenSource: tokenSource,
		dispatcher:  dispatcher,
		dialer:      dialer,
		sleep:       time.Sleep,
		logger:      logging.Component(cfg.Logger, "lobby"),
		sendCh:      make(chan outbound, cfg.WriteBuffer),
	}
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true

	c.wg.Add(1)
	go c.supervisor(runCtx)
	c.logger.Info("lobby supervisor started", logging.F("endpoint", c.cfg.Endpoint))

	return nil
}

func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}

	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Send queues msg, assigning a request id when it has none, and returns the id.
func (c *Client) Send(ctx context.Context, msg Message) (string, error) {
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()

	if !running {
		return "", ErrNotRunning
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case c.sendCh <- outbound{messageType: websocket.TextMessage, data: []byte(msg.Encode())}:
		return msg.ID, nil
	}
}

func (c *Client) supervisor(ctx context.Context) {
	defer c.wg.Done()
	defer c.markStopped()

	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return
		}

		connected, err := c.connectAndRun(ctx)
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return
		}

		if connected {
			failures = 0
		}

		failures++
		delay := backoff.Exponential(failures-1, c.cfg.MinReconnectDelay, c.cfg.MaxReconnectDelay)

		c.logger.Warn("lobby disconnected, scheduling reconnect",
			logging.F("attempt", failures),
			logging.F("delay", delay.String()),
			logging.F("error", err.Error()),
		)

		_ = c.bus.Emit(events.LobbyReconnecting{Base: events.Now(), Attempt: failures, Delay: delay, Err: err})

		if c.cfg.MaxReconnectAttempts > 0 && failures > c.cfg.MaxReconnectAttempts {
			reconnectErr := fmt.Errorf("%w: attempts=%d last_error=%v", ErrReconnectBudgetExceeded, failures-1, err)
			c.logger.Error("lobby reconnect budget exhausted", logging.F("attempts", failures-1), logging.F("error", err.Error()))
			_ = c.bus.Emit(events.LobbyError{Base: events.Now(), Err: reconnectErr, Fatal: true})
			return
		}

		_ = c.bus.Emit(events.LobbyError{Base: events.Now(), Err: err})

		if !c.sleepContext(ctx, delay) {
			return
		}
	}
}

// connectAndRun reports whether the dial succeeded along with the error that
// ended the connection.
func (c *Client) connectAndRun(ctx context.Context) (bool, error) {
	headers := http.Header{}
	token, err := c.accessToken(ctx)
	if err != nil {
		return false, err
	}

	if token != "" {
		headers.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.Endpoint, headers)
	if err != nil {
		return false, err
	}

	lobbySessionID := ""
	if resp != nil {
		lobbySessionID = resp.Header.Get(sessionIDHeader)
	}

	c.setConn(conn)
	c.logger.Info("lobby connected", logging.F("endpoint", c.cfg.Endpoint), logging.F("lobby_session_id", lobbySessionID))
	_ = c.bus.Emit(events.LobbyConnected{Base: events.Now(), Endpoint: c.cfg.Endpoint, LobbySessionID: lobbySessionID})

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 3)
	go c.readLoop(loopCtx, conn, errCh)
	go c.writeLoop(loopCtx, conn, errCh)
	if c.cfg.KeepAliveInterval > 0 {
		go c.keepAliveLoop(loopCtx, errCh)
	}

	if c.cfg.Availability != "" {
		c.announceStatus()
	}

	err = <-errCh
	_ = conn.Close()
	c.clearConn(conn)
	_ = c.bus.Emit(events.LobbyDisconnected{Base: events.Now(), Err: err})
	if err != nil {
		c.logger.Warn("lobby transport disconnected", logging.F("error", err.Error()))
	}

	return true, err
}

func (c *Client) announceStatus() {
	msg := Message{
		Type: TypeSetUserStatusRequest,
		ID:   uuid.NewString(),
		Fields: map[string]string{
			"availability": c.cfg.Availability,
			"activity":     c.cfg.Activity,
		},
	}

	select {
	case c.sendCh <- outbound{messageType: websocket.TextMessage, data: []byte(msg.Encode())}:
	default:
		c.logger.Warn("lobby status announcement dropped")
	}
}

func (c *Client) readLoop(ctx context.Context, conn Conn, errCh chan<- error) {
	for {
		if c.cfg.ReadDeadline > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadDeadline))
		}

		_, payload, err := conn.ReadMessage()
		if err != nil {
			errCh <- err
			return
		}

		msg, err := ParseMessage(string(payload))
		if err != nil {
			c.logger.Debug("lobby frame ignored", logging.F("error", err.Error()))
			continue
		}

		switch msg.Type {
		case TypeMessageNotif:
			n, err := msg.Notification()
			if err != nil {
				c.logger.Warn("lobby notification undecodable", logging.F("id", msg.ID), logging.F("error", err.Error()))
				continue
			}

			if c.dispatcher != nil {
				c.dispatcher.DispatchNotification(ctx, n)
			}

			_ = c.bus.Emit(events.LobbyNotification{Base: events.Now(), Topic: n.Topic, Payload: string(n.Payload)})
		case TypeSetUserStatusResponse:
			if code := msg.Code(); code != 0 {
				c.logger.Warn("lobby status rejected", logging.F("id", msg.ID), logging.F("code", code))
			}
		case TypeDisconnectNotif:
			errCh <- fmt.Errorf("lobby: server requested disconnect: %s", msg.Get("message"))
			return
		default:
			c.logger.Debug("lobby message", logging.F("type", msg.Type), logging.F("id", msg.ID))
		}
	}
}

func (c *Client) writeLoop(ctx context.Context, conn Conn, errCh chan<- error) {
	for {
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
			return
		case out := <-c.sendCh:
			if c.cfg.WriteDeadline > 0 {
				_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteDeadline))
			}

			if err := conn.WriteMessage(out.messageType, out.data); err != nil {
				errCh <- err
				return
			}
		}
	}
}

func (c *Client) keepAliveLoop(ctx context.Context, errCh chan<- error) {
	t := time.NewTicker(c.cfg.KeepAliveInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			select {
			case <-ctx.Done():
				return
			case c.sendCh <- outbound{messageType: websocket.PingMessage}:
			default:
				errCh <- ErrKeepAliveBlocked
				return
			}
		}
	}
}

func (c *Client) setConn(conn Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn = conn
}

func (c *Client) clearConn(conn Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == conn {
		c.conn = nil
	}
}

func (c *Client) markStopped() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.running = false
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	c.logger.Info("lobby supervisor stopped")
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	if c.tokenSource == nil {
		return "", nil
	}

	return c.tokenSource.AccessToken(ctx)
}

func (c *Client) sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	done := make(chan struct{})
	go func() {
		c.sleep(d)
		close(done)
	}()

	select {
	case <-ctx.Done():
		return false
	case <-done:
		return true
	}
}

type gorillaDialer struct {
	dialer *websocket.Dialer
}

func (d *gorillaDialer) DialContext(ctx context.Context, endpoint string, header http.Header) (Conn, *http.Response, error) {
	c, resp, err := d.dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return nil, resp, err
	}

	return &gorillaConn{conn: c}, resp, nil
}

type gorillaConn struct {
	conn *websocket.Conn
}

func (c *gorillaConn) ReadMessage() (int, []byte, error) {
	return c.conn.ReadMessage()
}

func (c *gorillaConn) WriteMessage(messageType int, data []byte) error {
	if messageType == websocket.PingMessage {
		return c.conn.WriteControl(websocket.PingMessage, data, time.Now().Add(5*time.Second))
	}

	return c.conn.WriteMessage(messageType, data)
}

func (c *gorillaConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *gorillaConn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

func (c *gorillaConn) Close() error {
	return c.conn.Close()
}
