package client

import (
	"github.com/ceskypane/abwars/ftue"
	"github.com/ceskypane/abwars/logging"
)

// logSurface is the headless tutorial surface: dialogues go to the log and no
// widget is ever resolvable, so highlighted dialogues are skipped.
type logSurface struct {
	log logging.Logger
}

func newLogSurface(logger logging.Logger) *logSurface {
	return &logSurface{log: logging.Component(logger, "ftue.surface")}
}

func (s *logSurface) Widgets(string) []ftue.Widget {
	return nil
}

func (s *logSurface) Present(v ftue.View) {
	s.log.Info("dialogue",
		logging.F("dialogue", v.DialogueID),
		logging.F("message", v.Message),
		logging.F("index", v.Index),
		logging.F("count", v.Count),
	)
}

func (s *logSurface) Dismiss() {
	s.log.Debug("dialogue dismissed")
}

func (s *logSurface) SetOpenButtonVisible(visible bool) {
	s.log.Debug("open button", logging.F("visible", visible))
}
