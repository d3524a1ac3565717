package lobby

import (
	"context"
	"net/http"
	"time"

	"github.com/ceskypane/abwars/logging"
)

type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Notification is a decoded messageNotif frame.
type Notification struct {
	ID      string
	From    string
	To      string
	Topic   string
	Payload []byte
	SentAt  time.Time
}

type Dispatcher interface {
	DispatchNotification(ctx context.Context, n Notification)
}

type DispatcherFunc func(ctx context.Context, n Notification)

func (f DispatcherFunc) DispatchNotification(ctx context.Context, n Notification) {
	f(ctx, n)
}

type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type Dialer interface {
	DialContext(ctx context.Context, endpoint string, header http.Header) (Conn, *http.Response, error)
}

type Config struct {
	Endpoint             string
	WriteBuffer          int
	MinReconnectDelay    time.Duration
	MaxReconnectDelay    time.Duration
	MaxReconnectAttempts int
	ReadDeadline         time.Duration
	WriteDeadline        time.Duration
	KeepAliveInterval    time.Duration

	// Availability is announced with setUserStatusRequest after every
	// successful connect. Empty disables the announcement.
	Availability string
	Activity     string

	Logger logging.Logger
}

func DefaultConfig() Config {
	return Config{
		WriteBuffer:       64,
		MinReconnectDelay: 200 * time.Millisecond,
		MaxReconnectDelay: 3 * time.Second,
		KeepAliveInterval: 30 * time.Second,
		Availability:      "availability",
		Activity:          "AccelByte Wars",
	}
}
