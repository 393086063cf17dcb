package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/aGit2048/virtual-debugger/internal/client"
	"github.com/aGit2048/virtual-debugger/internal/diagnostics"
	"github.com/aGit2048/virtual-debugger/internal/infrastructure/config"
	"github.com/aGit2048/virtual-debugger/internal/infrastructure/database"
	"github.com/aGit2048/virtual-debugger/internal/infrastructure/influxdb"
	"github.com/aGit2048/virtual-debugger/internal/infrastructure/logging"
	"github.com/aGit2048/virtual-debugger/internal/infrastructure/mqtt"
	"github.com/aGit2048/virtual-debugger/internal/journal"
	"github.com/aGit2048/virtual-debugger/internal/message"
	"github.com/aGit2048/virtual-debugger/internal/pipeline"
	"github.com/aGit2048/virtual-debugger/internal/telemetry"
)

// run starts the long-running client and blocks until ctx is cancelled.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: YAML file, or "" for defaults plus environment overrides
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting mqttclient",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	s, err := buildStack(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer s.close()

	s.client.SetMessageHandler(func(_ context.Context, msg message.Message) error {
		log.Info("message received",
			"topic", msg.Topic,
			"qos", int(msg.QoS),
			"retain", msg.Retain,
			"bytes", len(msg.Payload),
		)
		return nil
	})
	s.client.SetErrorHandler(func(msg message.Message, err error) {
		log.Warn("message handler failed", "topic", msg.Topic, "error", err)
	})

	if cfg.Diagnostics.Enabled {
		srv, err := startDiagnostics(ctx, cfg, log, s)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing diagnostics server", "error", closeErr)
			}
		}()
	}

	if err := s.client.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	opts := s.client.Options()
	log.Info("MQTT connected",
		"broker", opts.Address(),
		"client_id", opts.ClientID,
	)

	for _, sub := range cfg.MQTT.Subscriptions {
		if err := s.client.Subscribe(ctx, sub.Topic, message.QoS(sub.QoS)); err != nil { //nolint:gosec // validated by config.Validate
			return fmt.Errorf("subscribing to %s: %w", sub.Topic, err)
		}
		log.Info("subscribed", "topic", sub.Topic, "qos", sub.QoS)
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred closes run in reverse: diagnostics, client, journal, InfluxDB.
	return nil
}

// stack is every component built from one Config.
type stack struct {
	client   *client.Client
	registry *prometheus.Registry // nil when Prometheus is disabled
	events   journal.Repository   // nil when the journal is disabled
	closers  []func()
}

// close releases components in reverse order of construction.
func (s *stack) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// buildStack wires telemetry, the optional journal and the client. On error
// everything built so far is released.
func buildStack(ctx context.Context, cfg *config.Config, log *logging.Logger, withJournal bool) (_ *stack, err error) {
	s := &stack{}
	defer func() {
		if err != nil {
			s.close()
		}
	}()

	opts := client.OptionsFromConfig(cfg.MQTT)

	monitor, err := s.setupTelemetry(ctx, cfg.Telemetry, opts.ClientID, log)
	if err != nil {
		return nil, err
	}

	var recorder journal.Recorder
	if withJournal && cfg.Journal.Enabled {
		repo, err := s.openJournal(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		s.events = repo
		recorder = repo
	}

	c, err := client.New(client.Deps{
		Options:   opts,
		Transport: mqtt.NewFactory(log.Component("transport")),
		Logger:    log.Component("client"),
		Monitor:   monitor,
		Journal:   recorder,
		Inbound: pipeline.Config{
			Capacity:      cfg.Inbound.QueueCapacity,
			Workers:       cfg.Inbound.Workers,
			ShutdownGrace: cfg.Inbound.ShutdownGrace,
		},
		PoolCapacity: cfg.Pool.Capacity,
	})
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}
	s.client = c
	s.closers = append(s.closers, func() {
		log.Info("closing MQTT client")
		if closeErr := c.Close(); closeErr != nil {
			log.Error("error closing MQTT client", "error", closeErr)
		}
	})

	return s, nil
}

func (s *stack) setupTelemetry(ctx context.Context, cfg config.TelemetryConfig, clientID string, log *logging.Logger) (*telemetry.Monitor, error) {
	monitor := telemetry.NewMonitor()

	if cfg.Prometheus.Enabled {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		sink, err := telemetry.NewPrometheusSink(s.registry, cfg.Prometheus.Namespace)
		if err != nil {
			return nil, fmt.Errorf("registering prometheus metrics: %w", err)
		}
		monitor.AddSink(sink)
	}

	if !cfg.InfluxDB.Enabled {
		log.Info("InfluxDB disabled")
		return monitor, nil
	}

	influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB)
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	influxClient.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	s.closers = append(s.closers, func() {
		log.Info("closing InfluxDB connection")
		if closeErr := influxClient.Close(); closeErr != nil {
			log.Error("error closing InfluxDB", "error", closeErr)
		}
	})
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)

	monitor.AddSink(telemetry.NewInfluxSink(influxClient, clientID))
	return monitor, nil
}

func (s *stack) openJournal(ctx context.Context, cfg config.DatabaseConfig, log *logging.Logger) (*journal.SQLiteRepository, error) {
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s.closers = append(s.closers, func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	})

	if err := db.Migrate(ctx, journal.Migrations()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("connection journal ready", "path", db.Path())

	return journal.NewSQLiteRepository(db.DB), nil
}

func startDiagnostics(ctx context.Context, cfg *config.Config, log *logging.Logger, s *stack) (*diagnostics.Server, error) {
	deps := diagnostics.Deps{
		Config:  cfg.Diagnostics,
		Logger:  log.Component("diagnostics"),
		Client:  s.client,
		Version: version,
	}
	if s.events != nil {
		deps.Events = s.events
	}
	if s.registry != nil {
		deps.Metrics = s.registry
	}

	srv, err := diagnostics.New(deps)
	if err != nil {
		return nil, fmt.Errorf("creating diagnostics server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting diagnostics server: %w", err)
	}
	return srv, nil
}
