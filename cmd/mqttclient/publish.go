package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aGit2048/virtual-debugger/internal/infrastructure/config"
	"github.com/aGit2048/virtual-debugger/internal/infrastructure/logging"
	"github.com/aGit2048/virtual-debugger/internal/message"
)

type publishFlags struct {
	qos      int
	retain   bool
	count    int
	interval time.Duration
}

func (f publishFlags) validate() error {
	if f.qos < 0 || !message.QoS(f.qos).Valid() { //nolint:gosec // sign checked first
		return fmt.Errorf("--qos must be 0, 1, or 2")
	}
	if f.count < 1 {
		return fmt.Errorf("--count must be at least 1")
	}
	if f.interval < 0 {
		return fmt.Errorf("--interval must not be negative")
	}
	return nil
}

func newPublishCmd(global *globalFlags) *cobra.Command {
	flags := publishFlags{}

	cmd := &cobra.Command{
		Use:   "publish <topic> <payload>",
		Short: "Publish a message and exit",
		Long: `Connects with the configured broker settings, publishes the payload
--count times and disconnects. Useful for smoke-testing a broker.`,
		Args: cobra.ExactArgs(2),
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return flags.validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return publish(cmd.Context(), global.resolveConfigPath(), args[0], []byte(args[1]), flags)
		},
	}

	cmd.Flags().IntVar(&flags.qos, "qos", int(message.AtLeastOnce), "delivery QoS (0, 1, 2)")
	cmd.Flags().BoolVar(&flags.retain, "retain", false, "ask the broker to retain the message")
	cmd.Flags().IntVar(&flags.count, "count", 1, "number of times to publish")
	cmd.Flags().DurationVar(&flags.interval, "interval", 0, "pause between publishes")

	return cmd
}

// publish is a one-shot session: no journal and no diagnostics server.
func publish(ctx context.Context, configPath, topic string, payload []byte, flags publishFlags) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := logging.New(cfg.Logging, version)

	s, err := buildStack(ctx, cfg, log, false)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.client.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}

	qos := message.QoS(flags.qos) //nolint:gosec // validated in PreRunE
	for i := 0; i < flags.count; i++ {
		if i > 0 && flags.interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(flags.interval):
			}
		}

		if flags.retain {
			err = s.client.PublishRetained(ctx, topic, payload, qos)
		} else {
			err = s.client.Publish(ctx, topic, payload, qos)
		}
		if err != nil {
			return fmt.Errorf("publish %d/%d: %w", i+1, flags.count, err)
		}
	}

	log.Info("published", "topic", topic, "count", flags.count, "qos", flags.qos, "retain", flags.retain)
	return s.client.Disconnect(ctx)
}
