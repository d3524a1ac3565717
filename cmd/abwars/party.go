package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ceskypane/abwars/client"
	"github.com/ceskypane/abwars/events"
	"github.com/ceskypane/abwars/logging"
	"github.com/ceskypane/abwars/prompt"
)

// NewPartyCmd creates the party command group.
func NewPartyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "party",
		Short: "Run the party session client",
	}

	cmd.AddCommand(newPartyWatchCmd())

	return cmd
}

type watchOptions struct {
	members     []string
	leaders     []string
	invitesFrom []string
	topics      []string
}

func newPartyWatchCmd() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sign in, connect to the lobby and print party events until interrupted",
		Long: `Signs in with the configured credentials, connects to the lobby,
leaves any stale party restored on connect and prints every client event.
Invitations are declined automatically. Filter flags narrow the output to
matching events; events matching any filter are printed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runPartyWatch(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.members, "member", nil, "print joins and leaves of this member (repeatable)")
	cmd.Flags().StringSliceVar(&opts.leaders, "leader", nil, "print leader changes to this user (repeatable)")
	cmd.Flags().StringSliceVar(&opts.invitesFrom, "invites-from", nil, "print invites sent by this user; empty matches any sender")
	cmd.Flags().StringSliceVar(&opts.topics, "topic", nil, "print raw lobby notifications with this topic (repeatable)")

	return cmd
}

// filter builds the subscription predicate. nil means every event.
func (o watchOptions) filter() events.Predicate {
	var preds []events.Predicate

	for _, id := range o.members {
		preds = append(preds, events.PartyMemberChangedFor(id, true), events.PartyMemberChangedFor(id, false))
	}

	for _, id := range o.leaders {
		preds = append(preds, events.PartyLeaderIs(id))
	}

	for _, id := range o.invitesFrom {
		preds = append(preds, events.InviteReceivedFrom(id))
	}

	for _, topic := range o.topics {
		preds = append(preds, events.LobbyTopic(topic))
	}

	if len(preds) == 0 {
		return nil
	}

	return events.Any(preds...)
}

func runPartyWatch(ctx context.Context, out, errOut io.Writer, opts watchOptions) error {
	cfg, err := client.LoadConfig(configFile)
	if err != nil {
		return err
	}

	if logFormat != "" {
		cfg.LogFormat = logFormat
	}

	logger := logging.NewSlog(logging.Setup("abwars", version, cfg.LogFormat, errOut))

	c, err := client.NewClient(cfg, client.Deps{
		Sink:       prompt.NewLogSink(logger, prompt.Declined),
		Registerer: prometheus.DefaultRegisterer,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	if err := c.Login(ctx); err != nil {
		return err
	}

	sub, err := c.Bus().SubscribeMatching(cfg.EventBuffer, opts.filter())
	if err != nil {
		return err
	}

	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for evt := range sub.C {
			fmt.Fprintln(out, describe(evt))
		}
	}()

	err = c.Run(ctx)
	sub.Cancel()
	<-printed

	return err
}

func describe(evt events.Event) string {
	ts := evt.Timestamp().Format("15:04:05.000")

	switch e := evt.(type) {
	case events.PartyUpdated:
		return fmt.Sprintf("%s %s party=%s leader=%s members=%d", ts, e.Name(), e.PartyID, e.LeaderID, e.Members)
	case events.PartyMemberChanged:
		return fmt.Sprintf("%s %s member=%s joined=%t", ts, e.Name(), e.MemberID, e.Joined)
	case events.PartyLeaderChanged:
		return fmt.Sprintf("%s %s leader=%s", ts, e.Name(), e.LeaderID)
	case events.PartyInviteReceived:
		return fmt.Sprintf("%s %s party=%s from=%s", ts, e.Name(), e.PartyID, e.SenderID)
	case events.LobbyConnected:
		return fmt.Sprintf("%s %s endpoint=%s", ts, e.Name(), e.Endpoint)
	case events.LobbyError:
		return fmt.Sprintf("%s %s fatal=%t err=%v", ts, e.Name(), e.Fatal, e.Err)
	}

	return fmt.Sprintf("%s %s", ts, evt.Name())
}
