package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "MQTTCLIENT_"

// Config is the root configuration structure for the MQTT client.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Inbound     InboundConfig     `yaml:"inbound"`
	Pool        PoolConfig        `yaml:"pool"`
	Database    DatabaseConfig    `yaml:"database"`
	Journal     JournalConfig     `yaml:"journal"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker        MQTTBrokerConfig     `yaml:"broker"`
	Auth          MQTTAuthConfig       `yaml:"auth"`
	Session       MQTTSessionConfig    `yaml:"session"`
	Reconnect     MQTTReconnectConfig  `yaml:"reconnect"`
	Will          *MQTTWillConfig      `yaml:"will,omitempty"`
	QoS           int                  `yaml:"qos"`
	Subscriptions []SubscriptionConfig `yaml:"subscriptions"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"` // empty generates client_<uuid>

	// InsecureSkipVerify accepts any broker certificate. Development only.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTSessionConfig contains session-level settings.
type MQTTSessionConfig struct {
	CleanSession bool          `yaml:"clean_session"`
	KeepAlive    time.Duration `yaml:"keep_alive"`
	Timeout      time.Duration `yaml:"timeout"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Delay       time.Duration `yaml:"delay"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// MQTTWillConfig is the last-will message published by the broker on an
// unclean disconnect.
type MQTTWillConfig struct {
	Topic   string `yaml:"topic"`
	Payload string `yaml:"payload"`
	QoS     int    `yaml:"qos"`
	Retain  bool   `yaml:"retain"`
}

// SubscriptionConfig is a topic filter subscribed to by the run command.
type SubscriptionConfig struct {
	Topic string `yaml:"topic"`
	QoS   int    `yaml:"qos"`
}

// InboundConfig sizes the inbound processing pipeline.
type InboundConfig struct {
	QueueCapacity int           `yaml:"queue_capacity"`
	Workers       int           `yaml:"workers"` // 0 means 2 x GOMAXPROCS
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
}

// PoolConfig sizes the outbound message pool.
type PoolConfig struct {
	Capacity int `yaml:"capacity"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// JournalConfig controls the connection lifecycle journal.
type JournalConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TelemetryConfig contains metric sink settings.
type TelemetryConfig struct {
	Prometheus PrometheusConfig `yaml:"prometheus"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
}

// PrometheusConfig controls the Prometheus sink.
type PrometheusConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// DiagnosticsConfig contains the diagnostics HTTP listener settings.
type DiagnosticsConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults), skipped when path is empty
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: MQTTCLIENT_SECTION_KEY
// For example: MQTTCLIENT_MQTT_HOST, MQTTCLIENT_DATABASE_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for defaults only
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the default configuration.
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "127.0.0.1",
				Port: 1883,
			},
			Session: MQTTSessionConfig{
				CleanSession: true,
				KeepAlive:    30 * time.Second,
				Timeout:      10 * time.Second,
			},
			Reconnect: MQTTReconnectConfig{
				Enabled:     true,
				Delay:       5 * time.Second,
				MaxAttempts: 10,
			},
			QoS: 1,
		},
		Inbound: InboundConfig{
			QueueCapacity: 10000,
			ShutdownGrace: 5 * time.Second,
		},
		Pool: PoolConfig{
			Capacity: 1000,
		},
		Database: DatabaseConfig{
			Path:        "./data/mqttclient.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Telemetry: TelemetryConfig{
			Prometheus: PrometheusConfig{
				Enabled:   true,
				Namespace: "mqttclient",
			},
			InfluxDB: InfluxDBConfig{
				BatchSize:     100,
				FlushInterval: 10,
			},
		},
		Diagnostics: DiagnosticsConfig{
			Host: "127.0.0.1",
			Port: 9090,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: MQTTCLIENT_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	var errs []string

	setString := func(key string, dst *string) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s: %v", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s: %v", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	// MQTT
	setString("MQTT_HOST", &cfg.MQTT.Broker.Host)
	setInt("MQTT_PORT", &cfg.MQTT.Broker.Port)
	setBool("MQTT_TLS", &cfg.MQTT.Broker.TLS)
	setString("MQTT_CLIENT_ID", &cfg.MQTT.Broker.ClientID)
	setString("MQTT_USERNAME", &cfg.MQTT.Auth.Username)
	setString("MQTT_PASSWORD", &cfg.MQTT.Auth.Password)

	// Database
	setString("DATABASE_PATH", &cfg.Database.Path)

	// InfluxDB
	setString("INFLUXDB_URL", &cfg.Telemetry.InfluxDB.URL)
	setString("INFLUXDB_TOKEN", &cfg.Telemetry.InfluxDB.Token)

	// Diagnostics
	setInt("DIAGNOSTICS_PORT", &cfg.Diagnostics.Port)

	// Logging
	setString("LOG_LEVEL", &cfg.Logging.Level)

	if len(errs) > 0 {
		return fmt.Errorf("invalid values: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks the configuration for errors.
//
// Every problem is collected so a single run reports all of them.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Auth.Password != "" && c.MQTT.Auth.Username == "" {
		errs = append(errs, "mqtt.auth.username is required when a password is set")
	}
	if c.MQTT.Session.Timeout <= 0 {
		errs = append(errs, "mqtt.session.timeout must be positive")
	}
	if c.MQTT.Session.KeepAlive < 0 {
		errs = append(errs, "mqtt.session.keep_alive must not be negative")
	}
	if c.MQTT.Reconnect.Enabled {
		if c.MQTT.Reconnect.Delay <= 0 {
			errs = append(errs, "mqtt.reconnect.delay must be positive")
		}
		if c.MQTT.Reconnect.MaxAttempts < 1 {
			errs = append(errs, "mqtt.reconnect.max_attempts must be at least 1")
		}
	}
	if w := c.MQTT.Will; w != nil {
		if w.Topic == "" {
			errs = append(errs, "mqtt.will.topic is required")
		}
		if w.QoS < 0 || w.QoS > 2 {
			errs = append(errs, "mqtt.will.qos must be 0, 1, or 2")
		}
	}
	for i, s := range c.MQTT.Subscriptions {
		if s.Topic == "" {
			errs = append(errs, fmt.Sprintf("mqtt.subscriptions[%d].topic is required", i))
		}
		if s.QoS < 0 || s.QoS > 2 {
			errs = append(errs, fmt.Sprintf("mqtt.subscriptions[%d].qos must be 0, 1, or 2", i))
		}
	}

	// Inbound / pool validation
	if c.Inbound.QueueCapacity < 1 {
		errs = append(errs, "inbound.queue_capacity must be at least 1")
	}
	if c.Inbound.Workers < 0 {
		errs = append(errs, "inbound.workers must not be negative")
	}
	if c.Pool.Capacity < 1 {
		errs = append(errs, "pool.capacity must be at least 1")
	}

	// Journal validation
	if c.Journal.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the journal is enabled")
	}

	// InfluxDB validation
	if c.Telemetry.InfluxDB.Enabled {
		if c.Telemetry.InfluxDB.URL == "" {
			errs = append(errs, "telemetry.influxdb.url is required when enabled")
		}
		if c.Telemetry.InfluxDB.Bucket == "" {
			errs = append(errs, "telemetry.influxdb.bucket is required when enabled")
		}
	}

	// Diagnostics validation
	if c.Diagnostics.Enabled && (c.Diagnostics.Port < 1 || c.Diagnostics.Port > 65535) {
		errs = append(errs, "diagnostics.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the diagnostics read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.Diagnostics.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the diagnostics write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.Diagnostics.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the diagnostics idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.Diagnostics.Timeouts.Idle) * time.Second
}
