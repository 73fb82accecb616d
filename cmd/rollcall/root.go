package main

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath      string
	debug           bool
	dryRun          bool
	installBrowsers bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "rollcall",
		Short: "rollcall performs a human-paced forum check-in session",
		Long: "rollcall logs into the configured forum, answers the security\n" +
			"question when one is set, performs the daily check-in, optionally\n" +
			"browses and replies like a person would, and reports the outcome.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(flags)
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to the .env configuration file (default: ./.env when present)")
	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Force debug logging")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Validate configuration and print the plan without launching a browser")
	cmd.Flags().BoolVar(&flags.installBrowsers, "install-browsers", false, "Download Playwright browsers before launching")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newNotifyTestCmd(flags))

	return cmd
}
