package main

import (
	"fmt"
	"os"
	"time"

	"slotbook/internal/config"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

type globalFlags struct {
	configPath string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "slotbook",
		Short:         "Appointment availability engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", os.Getenv("SLOTBOOK_CONFIG_PATH"), "path to config.yaml")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(newServeCmd(flags))
	root.AddCommand(newSlotsCmd(flags))
	root.AddCommand(newSyncCmd(flags))
	root.AddCommand(newVersionCmd())

	return root
}

func newLogger(level string) zerolog.Logger {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return logger.Level(lvl)
}

// setup loads the config and builds the logger shared by all commands.
func (f *globalFlags) setup() (*config.Config, zerolog.Logger, error) {
	logger := newLogger(f.logLevel)
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, logger, fmt.Errorf("load config: %w", err)
	}
	return cfg, logger, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "slotbook %s (commit=%s, built=%s)\n", Version, CommitSHA, BuildDate)
		},
	}
}
