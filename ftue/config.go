package ftue

import (
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("ftue: invalid config")

// Config is the on-disk description of tutorial modules and their dialogues.
type Config struct {
	AlwaysOn  bool             `yaml:"always_on"`
	Modules   []ModuleConfig   `yaml:"modules"`
	Groups    []GroupConfig    `yaml:"groups"`
	Dialogues []DialogueConfig `yaml:"dialogues"`
}

type ModuleConfig struct {
	Name         string `yaml:"name"`
	Active       *bool  `yaml:"active"`
	AlwaysActive bool   `yaml:"always_active"`
}

type GroupConfig struct {
	ID              string           `yaml:"id"`
	Order           int              `yaml:"order"`
	ForceAlwaysShow bool             `yaml:"force_always_show"`
	Module          string           `yaml:"module"`
	Dialogues       []DialogueConfig `yaml:"dialogues"`
}

type ArgumentConfig struct {
	Value      string `yaml:"value"`
	Predefined string `yaml:"predefined"`
}

type ButtonConfig struct {
	Label     string           `yaml:"label"`
	LabelArgs []ArgumentConfig `yaml:"label_args"`
	Action    string           `yaml:"action"`
	URL       string           `yaml:"url"`
	URLArgs   []ArgumentConfig `yaml:"url_args"`
}

type ValidatorEntry struct {
	Kind    string        `yaml:"kind"`
	Name    string        `yaml:"name"`
	Timeout time.Duration `yaml:"timeout"`
}

type HighlightConfig struct {
	Class string `yaml:"class"`
	Name  string `yaml:"name"`
}

type DialogueConfig struct {
	ID            string           `yaml:"id"`
	Module        string           `yaml:"module"`
	Message       string           `yaml:"message"`
	Args          []ArgumentConfig `yaml:"args"`
	Validator     ValidatorEntry   `yaml:"validator"`
	Highlight     *HighlightConfig `yaml:"highlight"`
	Horizontal    string           `yaml:"horizontal"`
	Vertical      string           `yaml:"vertical"`
	X             float64          `yaml:"x"`
	Y             float64          `yaml:"y"`
	Interrupting  *bool            `yaml:"interrupting"`
	TargetWidgets []string         `yaml:"target_widgets"`
	Order         int              `yaml:"order"`
	Buttons       []ButtonConfig   `yaml:"buttons"`
}

// Bindings supplies the code half of a config: custom checks, button
// callbacks and activation hooks keyed by dialogue id.
type Bindings struct {
	Checks       map[string]CustomCheck
	Actions      map[string]func()
	OnActivate   map[string]func()
	OnDeactivate map[string]func()
}

func LoadConfig(r io.Reader) (*Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, oops.Code("FTUE_CONFIG_PARSE").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func LoadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, oops.Code("FTUE_CONFIG_OPEN").With("path", path).Wrap(err)
	}
	defer f.Close()

	return LoadConfig(f)
}

// Validate checks references and patterns without building anything.
func (c *Config) Validate() error {
	modules := map[string]bool{}
	for _, m := range c.Modules {
		if m.Name == "" {
			return invalidConfig("module without name", "")
		}
		modules[m.Name] = true
	}

	ids := map[string]bool{}
	check := func(d DialogueConfig, module string) error {
		if d.ID == "" {
			return invalidConfig("dialogue without id", "")
		}

		if ids[d.ID] {
			return invalidConfig("duplicate dialogue id", d.ID)
		}
		ids[d.ID] = true

		if module != "" && !modules[module] {
			return invalidConfig("unknown module "+module, d.ID)
		}

		kind, err := parseValidatorKind(d.Validator.Kind)
		if err != nil {
			return invalidConfig(err.Error(), d.ID)
		}

		if kind == ValidatorPredefined && d.Validator.Name == "" {
			return invalidConfig("predefined validator without name", d.ID)
		}

		if len(d.Buttons) > 2 {
			return invalidConfig("more than two buttons", d.ID)
		}

		for _, b := range d.Buttons {
			if _, err := parseAction(b.Action); err != nil {
				return invalidConfig(err.Error(), d.ID)
			}
		}

		if _, err := parseHorizontal(d.Horizontal); err != nil {
			return invalidConfig(err.Error(), d.ID)
		}

		if _, err := parseVertical(d.Vertical); err != nil {
			return invalidConfig(err.Error(), d.ID)
		}

		if d.Highlight != nil && d.Highlight.Name != "" {
			if _, err := glob.Compile(d.Highlight.Name); err != nil {
				return invalidConfig("bad highlight pattern", d.ID)
			}
		}

		return nil
	}

	for _, g := range c.Groups {
		if g.Module != "" && !modules[g.Module] {
			return invalidConfig("unknown module "+g.Module, g.ID)
		}

		for _, d := range g.Dialogues {
			module := d.Module
			if module == "" {
				module = g.Module
			}

			if err := check(d, module); err != nil {
				return err
			}
		}
	}

	for _, d := range c.Dialogues {
		if err := check(d, d.Module); err != nil {
			return err
		}
	}

	return nil
}

// Build turns the config into dialogues in configured order. Group members get
// the group's priority and its first and last dialogues open and close it.
func (c *Config) Build(b Bindings) ([]*Dialogue, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	modules := map[string]Module{}
	for _, m := range c.Modules {
		active := m.Active == nil || *m.Active
		modules[m.Name] = StaticModule{ID: m.Name, Active: active, AlwaysActive: m.AlwaysActive}
	}

	var out []*Dialogue
	for _, gc := range c.Groups {
		group := &Group{ID: gc.ID, Order: gc.Order, ForceAlwaysShow: gc.ForceAlwaysShow, Module: modules[gc.Module]}

		for i, dc := range gc.Dialogues {
			if dc.Module == "" {
				dc.Module = gc.Module
			}

			d := buildDialogue(dc, modules, b)
			d.Group = group
			d.GroupOrder = gc.Order
			d.Instigator = i == 0
			d.Terminator = i == len(gc.Dialogues)-1

			group.Dialogues = append(group.Dialogues, d)
			out = append(out, d)
		}
	}

	for _, dc := range c.Dialogues {
		out = append(out, buildDialogue(dc, modules, b))
	}

	return out, nil
}

func buildDialogue(dc DialogueConfig, modules map[string]Module, b Bindings) *Dialogue {
	kind, _ := parseValidatorKind(dc.Validator.Kind)
	h, _ := parseHorizontal(dc.Horizontal)
	v, _ := parseVertical(dc.Vertical)

	d := &Dialogue{
		ID:      dc.ID,
		Module:  modules[dc.Module],
		Message: dc.Message,
		Validator: ValidatorSpec{
			Kind:       kind,
			Predefined: dc.Validator.Name,
			Custom:     b.Checks[dc.ID],
			Timeout:    dc.Validator.Timeout,
		},
		Horizontal:    h,
		Vertical:      v,
		X:             dc.X,
		Y:             dc.Y,
		Interrupting:  dc.Interrupting == nil || *dc.Interrupting,
		TargetWidgets: dc.TargetWidgets,
		Order:         dc.Order,
		MessageArgs:   buildArgs(dc.Args),
		OnActivate:    b.OnActivate[dc.ID],
		OnDeactivate:  b.OnDeactivate[dc.ID],
	}

	for _, bc := range dc.Buttons {
		action, _ := parseAction(bc.Action)
		d.Buttons = append(d.Buttons, Button{
			Label:     bc.Label,
			LabelArgs: buildArgs(bc.LabelArgs),
			Action:    action,
			URL:       bc.URL,
			URLArgs:   buildArgs(bc.URLArgs),
			OnClick:   b.Actions[dc.ID],
		})
	}

	if dc.Highlight != nil {
		d.Highlight = &Highlight{Class: dc.Highlight.Class, Name: dc.Highlight.Name}
	}

	return d
}

func buildArgs(in []ArgumentConfig) []Argument {
	if len(in) == 0 {
		return nil
	}

	out := make([]Argument, len(in))
	for i, a := range in {
		out[i] = Argument{Value: a.Value, Predefined: a.Predefined}
	}

	return out
}

func parseValidatorKind(s string) (ValidatorKind, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return ValidatorNone, nil
	case "custom":
		return ValidatorCustom, nil
	case "predefined":
		return ValidatorPredefined, nil
	}

	return ValidatorNone, errors.New("unknown validator kind " + s)
}

func parseAction(s string) (ButtonAction, error) {
	switch strings.ToLower(s) {
	case "", "hyperlink":
		return ActionHyperlink, nil
	case "action", "custom":
		return ActionCustom, nil
	}

	return ActionHyperlink, errors.New("unknown button action " + s)
}

func parseHorizontal(s string) (HorizontalAnchor, error) {
	switch strings.ToLower(s) {
	case "", "middle":
		return HMiddle, nil
	case "left":
		return HLeft, nil
	case "right":
		return HRight, nil
	}

	return HMiddle, errors.New("unknown horizontal anchor " + s)
}

func parseVertical(s string) (VerticalAnchor, error) {
	switch strings.ToLower(s) {
	case "", "middle":
		return VMiddle, nil
	case "top":
		return VTop, nil
	case "bottom":
		return VBottom, nil
	}

	return VMiddle, errors.New("unknown vertical anchor " + s)
}

func invalidConfig(reason, dialogue string) error {
	return oops.Code("FTUE_CONFIG_INVALID").
		With("reason", reason).
		With("dialogue", dialogue).
		Wrap(ErrInvalidConfig)
}
