package main

import (
	"time"

	"github.com/spf13/cobra"
)

type globalFlags struct {
	socket   string
	config   string
	timeout  time.Duration
	codec    string
	logLevel string
	json     bool
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	ctx := newCommandContext(flags)

	rootCmd := &cobra.Command{
		Use:           "reipc",
		Short:         "JSON-RPC over Unix domain sockets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.load(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.socket, "socket", "", "Path to the node IPC socket (default $RPC_SOCKET or config)")
	pf.StringVarP(&flags.config, "config", "c", "", "Configuration file path")
	pf.DurationVar(&flags.timeout, "timeout", 0, "Per-call timeout, 0 for none (default from config)")
	pf.StringVar(&flags.codec, "codec", "", "Wire codec: json or msgpack (default from config)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error, off (default from config)")
	pf.BoolVar(&flags.json, "json", false, "Emit JSON even on a terminal")

	rootCmd.AddCommand(newCallCommand(ctx))
	rootCmd.AddCommand(newBenchCommand(ctx))

	return rootCmd
}
