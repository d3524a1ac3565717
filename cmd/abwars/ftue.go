package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/ceskypane/abwars/ftue"
	"github.com/ceskypane/abwars/internal/runloop"
	"github.com/ceskypane/abwars/logging"
	"github.com/ceskypane/abwars/prompt"
)

// NewFTUECmd creates the ftue command group.
func NewFTUECmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ftue",
		Short: "Check and preview tutorial dialogue configs",
	}

	cmd.AddCommand(newFTUECheckCmd())
	cmd.AddCommand(newFTUEPreviewCmd())

	return cmd
}

func newFTUECheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Validate a tutorial config without connecting anywhere",
		Long: `Parses a tutorial config, checks module references, validator kinds,
anchors and highlight patterns, and lists the dialogues it defines.
Exits non-zero when the config is invalid.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFTUECheck(cmd.OutOrStdout(), args[0])
		},
	}
}

func runFTUECheck(out io.Writer, path string) error {
	cfg, err := ftue.LoadConfigFile(path)
	if err != nil {
		return err
	}

	dialogues, err := cfg.Build(ftue.Bindings{})
	if err != nil {
		return err
	}

	for _, d := range dialogues {
		group := "-"
		if d.Group != nil {
			group = d.Group.ID
		}

		fmt.Fprintf(out, "%-24s group=%-16s validator=%s\n", d.ID, group, validatorLabel(d.Validator))
	}

	fmt.Fprintf(out, "%d dialogues ok\n", len(dialogues))
	return nil
}

func validatorLabel(v ftue.ValidatorSpec) string {
	switch v.Kind {
	case ftue.ValidatorCustom:
		return "custom"
	case ftue.ValidatorPredefined:
		return "predefined:" + v.Predefined
	default:
		return "none"
	}
}

type previewOptions struct {
	widgets  []string
	failing  []string
	alwaysOn bool
	lang     string
}

func newFTUEPreviewCmd() *cobra.Command {
	var opts previewOptions

	cmd := &cobra.Command{
		Use:   "preview <file>",
		Short: "Walk through a tutorial config as a player would see it",
		Long: `Runs every dialogue through validation and the display queue and
prints each one in order. Predefined validators pass unless named with --fail.
Highlight targets resolve only when listed with --widget Class/name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFTUEPreview(cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.widgets, "widget", nil, "resolvable highlight target as Class/name (repeatable)")
	cmd.Flags().StringSliceVar(&opts.failing, "fail", nil, "predefined validator names that report invalid")
	cmd.Flags().BoolVar(&opts.alwaysOn, "always-on", false, "replay dialogues already shown")
	cmd.Flags().StringVar(&opts.lang, "lang", "en", "language for button labels")

	return cmd
}

func runFTUEPreview(out io.Writer, path string, opts previewOptions) error {
	cfg, err := ftue.LoadConfigFile(path)
	if err != nil {
		return err
	}

	dialogues, err := cfg.Build(ftue.Bindings{})
	if err != nil {
		return err
	}

	failing := map[string]bool{}
	for _, name := range opts.failing {
		failing[name] = true
	}

	checker := previewChecker(failing)
	loop := runloop.NewManual()
	sink := &prompt.Recorder{}

	validator := ftue.NewValidator(loop, runloop.Inline, checker, nil, ftue.ValidatorConfig{})
	queue := ftue.NewQueue(ftue.QueueDeps{
		Validator: validator,
		Surface:   newTextSurface(out, opts.widgets),
		Sink:      sink,
	}, ftue.QueueConfig{
		AlwaysOn:  func() bool { return opts.alwaysOn || cfg.AlwaysOn },
		Arguments: func(name string) string { return "<" + name + ">" },
		Catalog:   prompt.NewCatalog(language.Make(opts.lang)),
		Logger:    logging.NopLogger{},
	})

	queue.AddDialogues(dialogues...)
	loop.Drain()

	for _, d := range dialogues {
		if d.Result() != ftue.Valid {
			fmt.Fprintf(out, "skipped %s: validation %s\n", d.ID, d.Result())
		}
	}

	queue.Show(false)
	for queue.State() == ftue.Showing {
		queue.Next()
	}

	for _, msg := range sink.Messages() {
		fmt.Fprintln(out, msg)
	}

	return nil
}

type previewChecker map[string]bool

func (c previewChecker) CheckPredefined(_ context.Context, name string) (bool, error) {
	return !c[name], nil
}

// textSurface prints dialogues as plain text.
type textSurface struct {
	out     io.Writer
	widgets map[string][]ftue.Widget
	lit     string
}

func newTextSurface(out io.Writer, specs []string) *textSurface {
	s := &textSurface{out: out, widgets: map[string][]ftue.Widget{}}

	for _, spec := range specs {
		class, name, ok := strings.Cut(spec, "/")
		if !ok {
			class, name = spec, ""
		}

		s.widgets[class] = append(s.widgets[class], &textWidget{surface: s, name: name})
	}

	return s
}

func (s *textSurface) Widgets(class string) []ftue.Widget {
	return s.widgets[class]
}

func (s *textSurface) Present(v ftue.View) {
	fmt.Fprintf(s.out, "[%d/%d] %s\n", v.Index+1, v.Count, v.DialogueID)
	fmt.Fprintf(s.out, "    %s\n", v.Message)

	if s.lit != "" {
		fmt.Fprintf(s.out, "    highlight: %s\n", s.lit)
	}

	labels := make([]string, 0, len(v.Buttons)+1)
	for _, b := range v.Buttons {
		labels = append(labels, b.Label)
	}
	labels = append(labels, v.NextLabel)

	fmt.Fprintf(s.out, "    buttons: %s\n", strings.Join(labels, " | "))
}

func (s *textSurface) Dismiss() {}

func (s *textSurface) SetOpenButtonVisible(bool) {}

type textWidget struct {
	surface *textSurface
	name    string
}

func (w *textWidget) Name() string { return w.name }

func (w *textWidget) Visible() bool { return true }

func (w *textWidget) SetHighlighted(on bool) {
	if on {
		w.surface.lit = w.name
		return
	}

	if w.surface.lit == w.name {
		w.surface.lit = ""
	}
}
