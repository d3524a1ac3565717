package ftue

import (
	"errors"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
	"golang.org/x/text/language"

	"github.com/ceskypane/abwars/events"
	"github.com/ceskypane/abwars/logging"
	"github.com/ceskypane/abwars/prompt"
)

var ErrWidgetNotFound = errors.New("ftue: highlight widget not found")

type State int

const (
	Closed State = iota
	Showing
	Paused
)

func (s State) String() string {
	switch s {
	case Showing:
		return "showing"
	case Paused:
		return "paused"
	default:
		return "closed"
	}
}

// Widget is an on-screen element a dialogue can point at.
type Widget interface {
	Name() string
	Visible() bool
	SetHighlighted(on bool)
}

type ViewButton struct {
	Label   string
	OnClick func()
}

// View is everything the surface needs to draw one dialogue.
type View struct {
	DialogueID   string
	Message      string
	Buttons      []ViewButton
	NextLabel    string
	ShowPrevious bool
	Interrupting bool
	AnchorX      float64
	AnchorY      float64
	X, Y         float64
	Index        int
	Count        int
}

// Surface presents dialogues and looks up highlight targets.
type Surface interface {
	Widgets(class string) []Widget
	Present(v View)
	Dismiss()
	SetOpenButtonVisible(visible bool)
}

// Linker opens hyperlink buttons.
type Linker interface {
	OpenURL(url string) error
}

type QueueConfig struct {
	// AlwaysOn replays already shown dialogues on every pass.
	AlwaysOn  func() bool
	Arguments ArgumentProvider
	Catalog   *prompt.Catalog
	Logger    logging.Logger
}

type QueueDeps struct {
	Validator *Validator
	Surface   Surface
	Linker    Linker
	Sink      prompt.Sink
	Bus       *events.Bus
}

// Queue drives sequential display of tutorial dialogues. All methods must be
// called on the loop that owns the validator's scheduler.
type Queue struct {
	cfg       QueueConfig
	validator *Validator
	surface   Surface
	linker    Linker
	sink      prompt.Sink
	bus       *events.Bus
	catalog   *prompt.Catalog
	log       logging.Logger

	dialogues []*Dialogue
	active    []*Dialogue
	skipped   map[*Dialogue]bool
	state     State
	index     int
	last      *Dialogue
	lit       Widget
	scope     *Scope
	patterns  map[string]glob.Glob
}

func NewQueue(deps QueueDeps, cfg QueueConfig) *Queue {
	if cfg.Catalog == nil {
		cfg.Catalog = prompt.NewCatalog(language.English)
	}

	q := &Queue{
		cfg:       cfg,
		validator: deps.Validator,
		surface:   deps.Surface,
		linker:    deps.Linker,
		sink:      deps.Sink,
		bus:       deps.Bus,
		catalog:   cfg.Catalog,
		log:       logging.Component(cfg.Logger, "ftue"),
		skipped:   map[*Dialogue]bool{},
		patterns:  map[string]glob.Glob{},
	}

	if q.validator != nil {
		q.scope = q.validator.NewScope()
	}

	return q
}

func (q *Queue) State() State {
	return q.state
}

// Index is the cursor into the current pass.
func (q *Queue) Index() int {
	return q.index
}

func (q *Queue) Current() (*Dialogue, bool) {
	if q.state == Closed || q.index >= len(q.active) {
		return nil, false
	}

	return q.active[q.index], true
}

func (q *Queue) Dialogues() []*Dialogue {
	out := make([]*Dialogue, len(q.dialogues))
	copy(out, q.dialogues)
	return out
}

// Activate validates every cached dialogue and then shows the first time
// pass. It retires any validation still running from a previous activation.
func (q *Queue) Activate() {
	q.scope.Interrupt()
	q.scope = q.validator.NewScope()

	q.validator.ValidateAll(q.dialogues, q.scope, func() {
		q.prune()
		q.Show(true)
	})
}

// Deactivate interrupts pending validation and closes the queue.
func (q *Queue) Deactivate() {
	q.scope.Interrupt()
	q.Close()
}

// AddDialogues caches ds and validates the new entries.
func (q *Queue) AddDialogues(ds ...*Dialogue) {
	var added []*Dialogue
	for _, d := range ds {
		if d == nil || q.cached(d) {
			continue
		}

		q.dialogues = append(q.dialogues, d)
		added = append(added, d)
	}

	if len(added) == 0 {
		return
	}

	q.validator.ValidateAll(added, q.scope, func() {
		q.prune()
		q.refreshOpenButton()
	})
}

// RemoveAssociatedDialogues drops every dialogue that targets widgetClass and
// reports how many were removed.
func (q *Queue) RemoveAssociatedDialogues(widgetClass string) int {
	current, showing := q.Current()

	kept := make([]*Dialogue, 0, len(q.dialogues))
	removed := 0
	closing := false
	for _, d := range q.dialogues {
		if d.targets(widgetClass) {
			removed++
			closing = closing || (showing && d == current)
			continue
		}

		kept = append(kept, d)
	}
	q.dialogues = kept

	if closing {
		q.Close()
		return removed
	}

	q.prune()
	q.refreshOpenButton()

	return removed
}

// Show starts a new pass at the first eligible dialogue. An explicit request
// (firstTime false) with nothing to show reports that to the player.
func (q *Queue) Show(firstTime bool) bool {
	if q.state != Closed {
		q.reset()
	}

	q.active = q.eligible()
	q.skipped = map[*Dialogue]bool{}

	if len(q.active) == 0 {
		if !firstTime && q.sink != nil {
			q.sink.PushNotification(prompt.Notification{Message: q.catalog.Text(prompt.KeyFTUENoneAvailable)})
		}

		q.refreshOpenButton()
		return false
	}

	q.surface.SetOpenButtonVisible(false)
	q.state = Showing
	q.index = 0

	return q.forward(0)
}

// Next advances the cursor. Moving past the last dialogue closes the queue.
func (q *Queue) Next() {
	if q.state != Showing {
		return
	}

	if q.index >= len(q.active)-1 {
		q.Close()
		return
	}

	q.forward(q.index + 1)
}

// Previous steps back. At the first dialogue it stays put.
func (q *Queue) Previous() {
	if q.state != Showing || q.index <= 0 {
		return
	}

	for i := q.index - 1; i >= 0; i-- {
		if q.skipped[q.active[i]] {
			continue
		}

		if q.InitializeDialogue(q.active[i]) {
			q.index = i
			return
		}

		q.skipped[q.active[i]] = true
	}

	q.Close()
}

// Pause hides the current dialogue and keeps the cursor.
func (q *Queue) Pause() {
	if q.state != Showing {
		return
	}

	q.clearHighlight()
	q.surface.Dismiss()
	q.state = Paused
}

// Resume redisplays the dialogue under the cursor.
func (q *Queue) Resume() {
	if q.state != Paused {
		return
	}

	q.state = Showing
	if q.InitializeDialogue(q.active[q.index]) {
		return
	}

	q.skipped[q.active[q.index]] = true
	if q.index >= len(q.active)-1 {
		q.Close()
		return
	}

	q.forward(q.index + 1)
}

func (q *Queue) Close() {
	wasOpen := q.state != Closed

	q.reset()
	q.prune()
	q.refreshOpenButton()

	if wasOpen && q.bus != nil && !q.bus.IsClosed() {
		_ = q.bus.Emit(events.FTUEClosed{Base: events.Now()})
	}
}

// InitializeDialogue puts d on screen. It reports false when d's highlight
// target cannot be resolved, which callers treat as a skip.
func (q *Queue) InitializeDialogue(d *Dialogue) bool {
	q.clearHighlight()

	if d.Highlight != nil {
		w, err := q.resolve(d.Highlight)
		if err != nil {
			dialoguesSkipped.Inc()
			q.log.Debug("dialogue skipped", logging.F("dialogue", d.ID), logging.F("error", err.Error()))
			return false
		}

		w.SetHighlighted(true)
		q.lit = w
	}

	index := q.indexOf(d)
	x, y := Anchor(d.Horizontal, d.Vertical)

	view := View{
		DialogueID:   d.ID,
		Message:      d.FormattedMessage(q.cfg.Arguments),
		NextLabel:    q.catalog.Text(prompt.KeyFTUENext),
		ShowPrevious: index > 0,
		Interrupting: d.Interrupting,
		AnchorX:      x,
		AnchorY:      y,
		X:            d.X,
		Y:            d.Y,
		Index:        index,
		Count:        len(q.active),
	}

	if index >= len(q.active)-1 {
		view.NextLabel = q.catalog.Text(prompt.KeyFTUEClose)
	}

	for _, b := range d.Buttons {
		view.Buttons = append(view.Buttons, ViewButton{Label: b.FormattedLabel(q.cfg.Arguments), OnClick: q.action(d, b)})
	}

	q.surface.Present(view)

	if q.last != d {
		if q.last != nil && q.last.OnDeactivate != nil {
			q.last.OnDeactivate()
		}

		if d.OnActivate != nil {
			d.OnActivate()
		}

		q.last = d
	}

	if d.Terminator && d.Group != nil {
		d.Group.SetAlreadyShown(true)
	}

	if !d.Repeatable() {
		d.alreadyShown = true
	}

	dialoguesShown.WithLabelValues(d.ID).Inc()
	if q.bus != nil && !q.bus.IsClosed() {
		_ = q.bus.Emit(events.FTUEShown{Base: events.Now(), DialogueID: d.ID, Index: index})
	}

	return true
}

func (q *Queue) forward(from int) bool {
	for i := from; i < len(q.active); i++ {
		if q.skipped[q.active[i]] {
			continue
		}

		if q.InitializeDialogue(q.active[i]) {
			q.index = i
			return true
		}

		q.skipped[q.active[i]] = true
	}

	q.Close()
	return false
}

func (q *Queue) reset() {
	q.clearHighlight()

	if q.last != nil && q.last.OnDeactivate != nil {
		q.last.OnDeactivate()
	}
	q.last = nil

	if q.state != Closed {
		q.surface.Dismiss()
	}

	q.state = Closed
	q.index = 0
	q.active = nil
}

func (q *Queue) eligible() []*Dialogue {
	alwaysOn := q.cfg.AlwaysOn != nil && q.cfg.AlwaysOn()

	out := make([]*Dialogue, 0, len(q.dialogues))
	for _, d := range q.dialogues {
		if d.result != Valid || !moduleActive(d) {
			continue
		}

		if d.alreadyShown && !d.Repeatable() && !alwaysOn {
			continue
		}

		out = append(out, d)
	}

	sortDialogues(out)
	return out
}

// prune forgets dialogues that can no longer be shown: their module went
// inactive or their validator rejected them.
func (q *Queue) prune() {
	kept := q.dialogues[:0]
	for _, d := range q.dialogues {
		if d.result == Invalid || !moduleActive(d) {
			continue
		}

		kept = append(kept, d)
	}

	for i := len(kept); i < len(q.dialogues); i++ {
		q.dialogues[i] = nil
	}
	q.dialogues = kept
}

func (q *Queue) refreshOpenButton() {
	if q.state != Closed {
		return
	}

	q.surface.SetOpenButtonVisible(len(q.dialogues) > 0)
}

func (q *Queue) resolve(h *Highlight) (Widget, error) {
	matcher, err := q.pattern(h.Name)
	if err != nil {
		return nil, err
	}

	for _, w := range q.surface.Widgets(h.Class) {
		if !matcher.Match(w.Name()) {
			continue
		}

		if !w.Visible() {
			return nil, oops.Code("FTUE_WIDGET_HIDDEN").With("class", h.Class).With("name", w.Name()).Wrap(ErrWidgetNotFound)
		}

		return w, nil
	}

	return nil, oops.Code("FTUE_WIDGET_NOT_FOUND").With("class", h.Class).With("name", h.Name).Wrap(ErrWidgetNotFound)
}

func (q *Queue) pattern(name string) (glob.Glob, error) {
	if name == "" {
		name = "*"
	}

	if g, ok := q.patterns[name]; ok {
		return g, nil
	}

	g, err := glob.Compile(name)
	if err != nil {
		return nil, oops.Code("FTUE_BAD_PATTERN").With("pattern", name).Wrap(err)
	}

	q.patterns[name] = g
	return g, nil
}

func (q *Queue) action(d *Dialogue, b Button) func() {
	if b.Action == ActionCustom {
		return func() {
			if b.OnClick == nil {
				q.log.Warn("dialogue button has no action", logging.F("dialogue", d.ID), logging.F("button", b.Label))
				return
			}

			b.OnClick()
		}
	}

	return func() {
		url := b.FormattedURL(q.cfg.Arguments)
		if q.linker == nil || url == "" {
			q.log.Warn("dialogue hyperlink unavailable", logging.F("dialogue", d.ID), logging.F("url", url))
			return
		}

		if err := q.linker.OpenURL(url); err != nil {
			q.log.Warn("open dialogue hyperlink", logging.F("url", url), logging.F("error", err.Error()))
		}
	}
}

func (q *Queue) clearHighlight() {
	if q.lit != nil {
		q.lit.SetHighlighted(false)
		q.lit = nil
	}
}

func (q *Queue) indexOf(d *Dialogue) int {
	for i, candidate := range q.active {
		if candidate == d {
			return i
		}
	}

	return 0
}

func (q *Queue) cached(d *Dialogue) bool {
	for _, candidate := range q.dialogues {
		if candidate == d {
			return true
		}
	}

	return false
}

func moduleActive(d *Dialogue) bool {
	return d.Module == nil || d.Module.IsActiveAndDependenciesChecked()
}
