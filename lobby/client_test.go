package lobby

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ceskypane/abwars/events"
)

type fakeTokenSource struct {
	token string
}

func (f fakeTokenSource) AccessToken(context.Context) (string, error) {
	return f.token, nil
}

type recordingDispatcher struct {
	mu    sync.Mutex
	notes []Notification
}

func (d *recordingDispatcher) DispatchNotification(_ context.Context, n Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.notes = append(d.notes, n)
}

func (d *recordingDispatcher) Snapshot() []Notification {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]Notification(nil), d.notes...)
}

func TestClientEndToEndDispatchesNotifications(t *testing.T) {
	upgrader := websocket.Upgrader{}
	serverErr := make(chan error, 1)
	authHeader := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader <- r.Header.Get("Authorization")

		header := http.Header{}
		header.Set(sessionIDHeader, "lobby-session-1")
		conn, err := upgrader.Upgrade(w, r, header)
		if err != nil {
			serverErr <- err
			return
		}
		defer conn.Close()

		if err := expectClientFrame(conn, "type: setUserStatusRequest"); err != nil {
			serverErr <- err
			return
		}

		payload := base64.StdEncoding.EncodeToString([]byte(`{"partyID":"p1","inviterID":"u2"}`))
		frame := "type: messageNotif\nid: n1\nfrom: system\nto: u1\ntopic: OnPartyInvited\npayload: " + payload
		_ = conn.WriteMessage(websocket.TextMessage, []byte(frame))

		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	endpoint := "ws" + strings.TrimPrefix(srv.URL, "http")
	bus := events.NewBus()
	dispatcher := &recordingDispatcher{}

	cfg := DefaultConfig()
	cfg.Endpoint = endpoint
	cfg.MinReconnectDelay = time.Millisecond
	cfg.MaxReconnectDelay = time.Millisecond
	cfg.KeepAliveInterval = 0

	c := NewClient(cfg, bus, fakeTokenSource{token: "access-token"}, dispatcher, nil)
	c.sleep = func(time.Duration) {}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	connectedEvt, err := waitForEvent(bus, events.EventLobbyConnected, time.Second)
	if err != nil {
		t.Fatalf("wait connected: %v", err)
	}

	if got := connectedEvt.(events.LobbyConnected).LobbySessionID; got != "lobby-session-1" {
		t.Fatalf("unexpected lobby session id: %q", got)
	}

	notifEvt, err := waitForEvent(bus, events.EventLobbyNotification, time.Second)
	if err != nil {
		t.Fatalf("wait notification: %v", err)
	}

	notif := notifEvt.(events.LobbyNotification)
	if notif.Topic != "OnPartyInvited" || !strings.Contains(notif.Payload, `"partyID":"p1"`) {
		t.Fatalf("unexpected notification event: %+v", notif)
	}

	notes := dispatcher.Snapshot()
	if len(notes) != 1 || notes[0].Topic != "OnPartyInvited" {
		t.Fatalf("expected dispatcher to receive one invite, got %+v", notes)
	}

	if got := <-authHeader; got != "Bearer access-token" {
		t.Fatalf("unexpected auth header: %q", got)
	}

	select {
	case err := <-serverErr:
		t.Fatalf("server assertion failed: %v", err)
	default:
	}

	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func waitForEvent(bus *events.Bus, name events.Name, timeout time.Duration) (events.Event, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return bus.WaitFor(ctx, events.IsName(name))
}

func expectClientFrame(conn *websocket.Conn, contains string) error {
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		return err
	}

	if !strings.Contains(string(payload), contains) {
		return errors.New("unexpected client frame: " + string(payload))
	}

	return nil
}

type fakeDialer struct {
	mu        sync.Mutex
	attempts  int
	failUntil int
	conn      Conn
}

func (d *fakeDialer) DialContext(_ context.Context, _ string, _ http.Header) (Conn, *http.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.attempts++
	if d.attempts <= d.failUntil || d.conn == nil {
		return nil, nil, errors.New("dial failed")
	}

	return d.conn, nil, nil
}

func (d *fakeDialer) Attempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.attempts
}

type fakeConn struct {
	readCh    chan []byte
	writeCh   chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		readCh:  make(chan []byte, 1),
		writeCh: make(chan []byte, 8),
		closeCh: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case <-c.closeCh:
		return 0, nil, errors.New("closed")
	case payload := <-c.readCh:
		return websocket.TextMessage, payload, nil
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)

	select {
	case <-c.closeCh:
		return errors.New("closed")
	case c.writeCh <- buf:
		return nil
	}
}

func (c *fakeConn) SetReadDeadline(time.Time) error {
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error {
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closeCh)
	})

	return nil
}

func TestClientReconnectsThenConnects(t *testing.T) {
	bus := events.NewBus()
	sub, err := bus.Subscribe(64)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Cancel()

	dialer := &fakeDialer{failUntil: 2, conn: newFakeConn()}

	c := NewClient(Config{
		Endpoint:          "wss://lobby.example",
		MinReconnectDelay: time.Millisecond,
		MaxReconnectDelay: time.Millisecond,
	}, bus, fakeTokenSource{token: "abc"}, nil, dialer)
	c.sleep = func(time.Duration) {}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	seenConnected := false
	seenReconnecting := false
	deadline := time.NewTimer(time.Second)
	defer deadline.Stop()

	for !(seenConnected && seenReconnecting) {
		select {
		case evt := <-sub.C:
			switch evt.Name() {
			case events.EventLobbyConnected:
				seenConnected = true
			case events.EventLobbyReconnecting:
				seenReconnecting = true
			}
		case <-deadline.C:
			t.Fatalf("expected both connected and reconnecting events")
		}
	}

	if dialer.Attempts() < 3 {
		t.Fatalf("expected reconnect attempts, got %d", dialer.Attempts())
	}

	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestClientStopsWhenReconnectBudgetExceeded(t *testing.T) {
	bus := events.NewBus()
	dialer := &fakeDialer{}

	c := NewClient(Config{
		Endpoint:             "wss://lobby.example",
		MinReconnectDelay:    time.Millisecond,
		MaxReconnectDelay:    time.Millisecond,
		MaxReconnectAttempts: 2,
	}, bus, nil, nil, dialer)
	c.sleep = func(time.Duration) {}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()

	fatal := make(chan events.Event, 1)
	go func() {
		evt, _ := bus.WaitFor(waitCtx, func(evt events.Event) bool {
			lobbyErr, ok := evt.(events.LobbyError)
			return ok && lobbyErr.Fatal
		})
		fatal <- evt
	}()

	time.Sleep(10 * time.Millisecond)
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	evt := <-fatal
	if evt == nil {
		t.Fatalf("expected fatal lobby error")
	}

	if !errors.Is(evt.(events.LobbyError).Err, ErrReconnectBudgetExceeded) {
		t.Fatalf("unexpected error: %v", evt.(events.LobbyError).Err)
	}

	if dialer.Attempts() != 3 {
		t.Fatalf("expected 3 dial attempts, got %d", dialer.Attempts())
	}
}

func TestClientSendWritesFrameWithGeneratedID(t *testing.T) {
	bus := events.NewBus()
	conn := newFakeConn()
	dialer := &fakeDialer{conn: conn}

	c := NewClient(Config{
		Endpoint:          "wss://lobby.example",
		MinReconnectDelay: time.Millisecond,
		MaxReconnectDelay: time.Millisecond,
	}, bus, fakeTokenSource{token: "abc"}, nil, dialer)
	c.sleep = func(time.Duration) {}

	if _, err := c.Send(context.Background(), Message{Type: "friendsStatusRequest"}); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning before connect, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	if _, err := waitForEvent(bus, events.EventLobbyConnected, time.Second); err != nil {
		t.Fatalf("wait connected: %v", err)
	}

	id, err := c.Send(context.Background(), Message{Type: "friendsStatusRequest"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if id == "" {
		t.Fatalf("expected generated id")
	}

	deadline := time.After(time.Second)
	for {
		select {
		case payload := <-conn.writeCh:
			text := string(payload)
			if !strings.HasPrefix(text, "type: friendsStatusRequest") {
				continue
			}

			if !strings.Contains(text, "id: "+id) {
				t.Fatalf("frame missing id: %s", text)
			}

			if err := c.Close(context.Background()); err != nil {
				t.Fatalf("close: %v", err)
			}
			return
		case <-deadline:
			t.Fatalf("timed out waiting for frame write")
		}
	}
}
