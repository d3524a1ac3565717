// Package ftue sequences first-time tutorial dialogues: validation, ordering,
// highlighting and navigation.
package ftue

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

type HorizontalAnchor int

const (
	HMiddle HorizontalAnchor = iota
	HLeft
	HRight
)

type VerticalAnchor int

const (
	VMiddle VerticalAnchor = iota
	VTop
	VBottom
)

// Anchor maps the anchors to normalized screen coordinates.
func Anchor(h HorizontalAnchor, v VerticalAnchor) (x, y float64) {
	switch h {
	case HLeft:
		x = 0
	case HRight:
		x = 1
	default:
		x = 0.5
	}

	switch v {
	case VTop:
		y = 0
	case VBottom:
		y = 1
	default:
		y = 0.5
	}

	return x, y
}

// Module is the tutorial module that owns a dialogue.
type Module interface {
	Name() string
	IsActiveAndDependenciesChecked() bool
	IsFTUEAlwaysActive() bool
}

type StaticModule struct {
	ID           string
	Active       bool
	AlwaysActive bool
}

func (m StaticModule) Name() string { return m.ID }

func (m StaticModule) IsActiveAndDependenciesChecked() bool { return m.Active }

func (m StaticModule) IsFTUEAlwaysActive() bool { return m.AlwaysActive }

// Argument is a positional format argument. Predefined names are resolved
// through an ArgumentProvider at display time.
type Argument struct {
	Value      string
	Predefined string
}

type ArgumentProvider func(name string) string

func (a Argument) resolve(provider ArgumentProvider) string {
	if a.Predefined != "" && provider != nil {
		return provider(a.Predefined)
	}

	return a.Value
}

type ButtonAction int

const (
	ActionHyperlink ButtonAction = iota
	ActionCustom
)

type Button struct {
	Label     string
	LabelArgs []Argument
	Action    ButtonAction
	URL       string
	URLArgs   []Argument
	OnClick   func()
}

func (b Button) FormattedLabel(provider ArgumentProvider) string {
	return formatPositional(b.Label, b.LabelArgs, provider, false)
}

func (b Button) FormattedURL(provider ArgumentProvider) string {
	return formatPositional(b.URL, b.URLArgs, provider, false)
}

type Highlight struct {
	Class string
	// Name is matched as a glob pattern against widget names.
	Name string
}

type ValidatorKind int

const (
	ValidatorNone ValidatorKind = iota
	ValidatorCustom
	ValidatorPredefined
)

// CustomCheck reports validity by calling done exactly once, from any
// goroutine.
type CustomCheck func(done func(valid bool))

type ValidatorSpec struct {
	Kind       ValidatorKind
	Predefined string
	Custom     CustomCheck
	Timeout    time.Duration
}

type ValidationResult int

const (
	Unvalidated ValidationResult = iota
	Valid
	Invalid
)

func (r ValidationResult) String() string {
	switch r {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	default:
		return "unvalidated"
	}
}

type Group struct {
	ID              string
	Order           int
	ForceAlwaysShow bool
	Module          Module
	Dialogues       []*Dialogue

	alreadyShown bool
}

// SetAlreadyShown marks the group and every dialogue in it.
func (g *Group) SetAlreadyShown(shown bool) {
	g.alreadyShown = shown
	for _, d := range g.Dialogues {
		d.alreadyShown = shown
	}
}

func (g *Group) AlreadyShown() bool {
	return g.alreadyShown
}

type Dialogue struct {
	ID            string
	Module        Module
	Validator     ValidatorSpec
	Message       string
	MessageArgs   []Argument
	Buttons       []Button
	Highlight     *Highlight
	Horizontal    HorizontalAnchor
	Vertical      VerticalAnchor
	X, Y          float64
	Interrupting  bool
	TargetWidgets []string
	Order         int

	Group      *Group
	GroupOrder int
	Instigator bool
	Terminator bool

	OnActivate   func()
	OnDeactivate func()

	alreadyShown bool
	result       ValidationResult
}

func (d *Dialogue) AlreadyShown() bool {
	return d.alreadyShown
}

func (d *Dialogue) SetAlreadyShown(shown bool) {
	d.alreadyShown = shown
}

func (d *Dialogue) Result() ValidationResult {
	return d.result
}

// Repeatable reports whether the dialogue is shown again after it was seen.
func (d *Dialogue) Repeatable() bool {
	if d.Group != nil && d.Group.ForceAlwaysShow {
		return true
	}

	return d.Module != nil && d.Module.IsFTUEAlwaysActive()
}

// FormattedMessage substitutes {n} placeholders with bold arguments.
func (d *Dialogue) FormattedMessage(provider ArgumentProvider) string {
	return formatPositional(d.Message, d.MessageArgs, provider, true)
}

func (d *Dialogue) targets(widgetClass string) bool {
	for _, target := range d.TargetWidgets {
		if target == widgetClass {
			return true
		}
	}

	return false
}

func formatPositional(format string, args []Argument, provider ArgumentProvider, bold bool) string {
	if len(args) == 0 {
		return format
	}

	pairs := make([]string, 0, len(args)*2)
	for i, arg := range args {
		value := arg.resolve(provider)
		if bold {
			value = "<bold>" + value + "</>"
		}

		pairs = append(pairs, "{"+strconv.Itoa(i)+"}", value)
	}

	return strings.NewReplacer(pairs...).Replace(format)
}

// sortDialogues orders by group priority, then dialogue priority. Ties keep
// their configured order.
func sortDialogues(ds []*Dialogue) {
	sort.SliceStable(ds, func(i, j int) bool {
		if ds[i].GroupOrder != ds[j].GroupOrder {
			return ds[i].GroupOrder < ds[j].GroupOrder
		}

		return ds[i].Order < ds[j].Order
	})
}
