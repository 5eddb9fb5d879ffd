package main

import (
	"shopping-agent/internal/di"
	"shopping-agent/internal/infrastructure/env"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "agent",
		Short:         "Headless shopping agent driven by a vision model",
		Version:       di.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")
	root.PersistentFlags().Bool("headless", true, "run Chromium without a window; overrides HEADLESS")
	root.PersistentFlags().Int("max-iterations", 0, "iteration cap per mission; overrides MAX_ITERATIONS")

	root.AddCommand(newRunCmd(), newServeCmd())
	return root
}

// loadConfig reads the environment and applies any flags set on the command
// line on top of it.
func loadConfig(cmd *cobra.Command) di.Config {
	cfg := di.ConfigFromEnv(env.NewEnvService())

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("headless") {
		cfg.Browser.Headless, _ = flags.GetBool("headless")
	}
	if flags.Changed("max-iterations") {
		cfg.MaxIterations, _ = flags.GetInt("max-iterations")
	}
	return cfg
}
