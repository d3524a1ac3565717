package lobby

import (
	"encoding/base64"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidMessage = errors.New("lobby: invalid message")

// Message types used by the client.
const (
	TypeMessageNotif          = "messageNotif"
	TypeConnectNotif          = "connectNotif"
	TypeDisconnectNotif       = "disconnectNotif"
	TypeSetUserStatusRequest  = "setUserStatusRequest"
	TypeSetUserStatusResponse = "setUserStatusResponse"
)

// Message is one lobby frame: newline separated "key: value" pairs with the
// type and id fields first.
type Message struct {
	Type   string
	ID     string
	Fields map[string]string
}

func (m Message) Get(key string) string {
	if m.Fields == nil {
		return ""
	}

	return m.Fields[key]
}

// Code returns the numeric response code, or 0 when absent.
func (m Message) Code() int {
	code, err := strconv.Atoi(m.Get("code"))
	if err != nil {
		return 0
	}

	return code
}

func ParseMessage(raw string) (Message, error) {
	msg := Message{Fields: map[string]string{}}

	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return Message{}, ErrInvalidMessage
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "type":
			msg.Type = value
		case "id":
			msg.ID = value
		default:
			msg.Fields[key] = value
		}
	}

	if msg.Type == "" {
		return Message{}, ErrInvalidMessage
	}

	return msg, nil
}

func (m Message) Encode() string {
	var b strings.Builder
	b.WriteString("type: " + m.Type)
	if m.ID != "" {
		b.WriteString("\nid: " + m.ID)
	}

	keys := make([]string, 0, len(m.Fields))
	for key := range m.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		b.WriteString("\n" + key + ": " + m.Fields[key])
	}

	return b.String()
}

func (m Message) Notification() (Notification, error) {
	if m.Type != TypeMessageNotif {
		return Notification{}, ErrInvalidMessage
	}

	n := Notification{
		ID:    m.ID,
		From:  m.Get("from"),
		To:    m.Get("to"),
		Topic: m.Get("topic"),
	}

	if raw := m.Get("payload"); raw != "" {
		payload, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return Notification{}, err
		}

		n.Payload = payload
	}

	if sentAt := m.Get("sentAt"); sentAt != "" {
		if ts, err := time.Parse(time.RFC3339Nano, sentAt); err == nil {
			n.SentAt = ts.UTC()
		}
	}

	return n, nil
}
