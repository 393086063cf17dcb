// mqttclient is a long-running MQTT client with automatic reconnection,
// a bounded inbound pipeline and an optional diagnostics endpoint.
//
//	mqttclient --config configs/config.yaml
//	mqttclient publish sensors/temp 21.5 --qos 1
//	mqttclient migrate status
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aGit2048/virtual-debugger/internal/infrastructure/config"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// configEnvVar names the config file when --config is not given.
const configEnvVar = "MQTTCLIENT_CONFIG"

func main() {
	// Cancelled on Ctrl+C and SIGTERM so every command shuts down cleanly.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "mqttclient",
		Short: "Resilient MQTT client",
		Long: `mqttclient connects to an MQTT broker, subscribes to the configured
topics and keeps the session alive across broker outages.

Configuration is read from a YAML file and MQTTCLIENT_* environment
variables. A .env file is loaded first when present.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return config.LoadEnvFile(flags.envFile)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), flags.resolveConfigPath())
		},
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to the YAML config file (default $"+configEnvVar+", or built-in defaults)")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file loaded before the config; missing files are ignored")

	root.AddCommand(newPublishCmd(flags))
	root.AddCommand(newMigrateCmd(flags))
	root.AddCommand(newVersionCmd())

	return root
}

// resolveConfigPath prefers --config, then MQTTCLIENT_CONFIG. An empty
// result means built-in defaults plus environment overrides.
func (f *globalFlags) resolveConfigPath() string {
	if f.configPath != "" {
		return f.configPath
	}
	return os.Getenv(configEnvVar)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mqttclient %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
