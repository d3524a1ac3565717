package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var (
	configFile string
	logFormat  string
)

// NewRootCmd creates the root command for the abwars CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "abwars",
		Short: "AccelByte Wars party and tutorial client",
		Long: `abwars runs the AccelByte Wars party session client headless and
checks or previews first-time tutorial dialogue configs.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "client config file path")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: json or text (overrides config)")

	cmd.AddCommand(NewFTUECmd())
	cmd.AddCommand(NewPartyCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// NewVersionCmd creates the version subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Printf("abwars %s (commit: %s, built: %s)\n", version, commit, date)
			return nil
		},
	}
}
