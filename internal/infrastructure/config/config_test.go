package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
mqtt:
  broker:
    host: "broker.local"
    port: 8883
    tls: true
    client_id: "test-client"
  session:
    clean_session: false
    keep_alive: 60s
    timeout: 15s
  reconnect:
    enabled: true
    delay: 2s
    max_attempts: 4
  will:
    topic: "clients/test-client/status"
    payload: "offline"
    qos: 1
    retain: true
  subscriptions:
    - topic: "sensors/#"
      qos: 1
inbound:
  queue_capacity: 500
  workers: 3
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if !cfg.MQTT.Broker.TLS {
		t.Error("MQTT.Broker.TLS = false, want true")
	}
	if cfg.MQTT.Session.KeepAlive != 60*time.Second {
		t.Errorf("MQTT.Session.KeepAlive = %v, want 60s", cfg.MQTT.Session.KeepAlive)
	}
	if cfg.MQTT.Reconnect.Delay != 2*time.Second {
		t.Errorf("MQTT.Reconnect.Delay = %v, want 2s", cfg.MQTT.Reconnect.Delay)
	}
	if cfg.MQTT.Will == nil || cfg.MQTT.Will.Topic != "clients/test-client/status" {
		t.Errorf("MQTT.Will = %+v, want topic clients/test-client/status", cfg.MQTT.Will)
	}
	if len(cfg.MQTT.Subscriptions) != 1 || cfg.MQTT.Subscriptions[0].Topic != "sensors/#" {
		t.Errorf("MQTT.Subscriptions = %+v", cfg.MQTT.Subscriptions)
	}
	if cfg.Inbound.QueueCapacity != 500 || cfg.Inbound.Workers != 3 {
		t.Errorf("Inbound = %+v, want capacity 500 workers 3", cfg.Inbound)
	}

	// Unset sections keep their defaults.
	if cfg.Pool.Capacity != 1000 {
		t.Errorf("Pool.Capacity = %d, want 1000", cfg.Pool.Capacity)
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
mqtt:
  broker:
    host: ""
  qos: 5
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	for _, want := range []string{"mqtt.broker.host", "mqtt.qos"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Load() error missing %q: %v", want, err)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid config", func(*Config) {}, false},
		{"missing host", func(c *Config) { c.MQTT.Broker.Host = "" }, true},
		{"invalid port low", func(c *Config) { c.MQTT.Broker.Port = 0 }, true},
		{"invalid port high", func(c *Config) { c.MQTT.Broker.Port = 70000 }, true},
		{"invalid QoS", func(c *Config) { c.MQTT.QoS = 3 }, true},
		{"password without username", func(c *Config) { c.MQTT.Auth.Password = "secret" }, true},
		{"zero timeout", func(c *Config) { c.MQTT.Session.Timeout = 0 }, true},
		{"zero reconnect delay", func(c *Config) { c.MQTT.Reconnect.Delay = 0 }, true},
		{"zero reconnect attempts", func(c *Config) { c.MQTT.Reconnect.MaxAttempts = 0 }, true},
		{"reconnect disabled ignores delay", func(c *Config) {
			c.MQTT.Reconnect.Enabled = false
			c.MQTT.Reconnect.Delay = 0
		}, false},
		{"will without topic", func(c *Config) { c.MQTT.Will = &MQTTWillConfig{QoS: 1} }, true},
		{"subscription without topic", func(c *Config) {
			c.MQTT.Subscriptions = []SubscriptionConfig{{Topic: "", QoS: 0}}
		}, true},
		{"zero queue capacity", func(c *Config) { c.Inbound.QueueCapacity = 0 }, true},
		{"negative workers", func(c *Config) { c.Inbound.Workers = -1 }, true},
		{"zero pool capacity", func(c *Config) { c.Pool.Capacity = 0 }, true},
		{"journal without database", func(c *Config) {
			c.Journal.Enabled = true
			c.Database.Path = ""
		}, true},
		{"influxdb without url", func(c *Config) { c.Telemetry.InfluxDB.Enabled = true }, true},
		{"diagnostics bad port", func(c *Config) {
			c.Diagnostics.Enabled = true
			c.Diagnostics.Port = 0
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		Diagnostics: DiagnosticsConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("MQTTCLIENT_DATABASE_PATH", "/custom/path.db")
	t.Setenv("MQTTCLIENT_MQTT_HOST", "mqtt.example.com")
	t.Setenv("MQTTCLIENT_MQTT_PORT", "8883")
	t.Setenv("MQTTCLIENT_MQTT_TLS", "true")
	t.Setenv("MQTTCLIENT_MQTT_USERNAME", "testuser")
	t.Setenv("MQTTCLIENT_MQTT_PASSWORD", "testpass")
	t.Setenv("MQTTCLIENT_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("MQTTCLIENT_LOG_LEVEL", "debug")

	if err := applyEnvOverrides(cfg); err != nil {
		t.Fatalf("applyEnvOverrides() error = %v", err)
	}

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if !cfg.MQTT.Broker.TLS {
		t.Error("MQTT.Broker.TLS = false, want true")
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.Telemetry.InfluxDB.Token != "secret-token" {
		t.Errorf("Telemetry.InfluxDB.Token = %q, want %q", cfg.Telemetry.InfluxDB.Token, "secret-token")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestApplyEnvOverrides_InvalidNumber(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("MQTTCLIENT_MQTT_PORT", "not-a-port")
	t.Setenv("MQTTCLIENT_MQTT_TLS", "maybe")

	err := applyEnvOverrides(cfg)
	if err == nil {
		t.Fatal("applyEnvOverrides() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "MQTTCLIENT_MQTT_PORT") || !strings.Contains(err.Error(), "MQTTCLIENT_MQTT_TLS") {
		t.Errorf("applyEnvOverrides() error = %v, want both keys reported", err)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want unchanged 1883", cfg.MQTT.Broker.Port)
	}
}

func TestLoadEnvFile(t *testing.T) {
	tmpDir := t.TempDir()
	envPath := filepath.Join(tmpDir, ".env")
	if err := os.WriteFile(envPath, []byte("MQTTCLIENT_TEST_DOTENV=from-file\n"), 0600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("MQTTCLIENT_TEST_DOTENV") })

	if err := LoadEnvFile(envPath); err != nil {
		t.Fatalf("LoadEnvFile() error = %v", err)
	}
	if got := os.Getenv("MQTTCLIENT_TEST_DOTENV"); got != "from-file" {
		t.Errorf("MQTTCLIENT_TEST_DOTENV = %q, want %q", got, "from-file")
	}

	if err := LoadEnvFile(filepath.Join(tmpDir, "missing.env")); err != nil {
		t.Errorf("LoadEnvFile(missing) error = %v, want nil", err)
	}
	if err := LoadEnvFile(""); err != nil {
		t.Errorf("LoadEnvFile(\"\") error = %v, want nil", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig().Validate() error = %v", err)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Reconnect.Delay != 5*time.Second || cfg.MQTT.Reconnect.MaxAttempts != 10 {
		t.Errorf("defaultConfig reconnect = %+v, want 5s x 10", cfg.MQTT.Reconnect)
	}
	if cfg.Inbound.QueueCapacity != 10000 {
		t.Errorf("defaultConfig Inbound.QueueCapacity = %d, want 10000", cfg.Inbound.QueueCapacity)
	}
}
