package prompt

import (
	"sync"

	"github.com/ceskypane/abwars/logging"
)

// LogSink writes notifications to a logger. Pop-ups are answered with a
// fixed response so headless runs never stall.
type LogSink struct {
	log      logging.Logger
	response Response
}

func NewLogSink(logger logging.Logger, response Response) *LogSink {
	return &LogSink{log: logging.Component(logger, "prompt"), response: response}
}

func (s *LogSink) PushNotification(n Notification) {
	labels := make([]string, 0, len(n.Buttons))
	for _, b := range n.Buttons {
		labels = append(labels, b.Label)
	}

	s.log.Info("notification",
		logging.F("message", n.Message),
		logging.F("interactive", n.Interactive),
		logging.F("buttons", labels),
	)
}

func (s *LogSink) ShowDialoguePopUp(p PopUp) {
	s.log.Info("popup", logging.F("title", p.Title), logging.F("message", p.Message), logging.F("response", s.response.String()))
	if p.OnResponse != nil {
		p.OnResponse(s.response)
	}
}

// Recorder keeps every notification and pop-up it receives.
type Recorder struct {
	mu            sync.Mutex
	notifications []Notification
	popUps        []PopUp
}

func (r *Recorder) PushNotification(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.notifications = append(r.notifications, n)
}

func (r *Recorder) ShowDialoguePopUp(p PopUp) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.popUps = append(r.popUps, p)
}

func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Notification(nil), r.notifications...)
}

func (r *Recorder) PopUps() []PopUp {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]PopUp(nil), r.popUps...)
}

// Messages returns the text of every notification in order.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.notifications))
	for _, n := range r.notifications {
		out = append(out, n.Message)
	}

	return out
}
