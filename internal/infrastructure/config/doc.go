// Package config handles loading and validating the MQTT client configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with MQTTCLIENT_* environment variables
//   - Validation of required fields (all problems reported together)
//   - Default value handling
//
// Security Considerations:
//   - Broker passwords and InfluxDB tokens should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - insecure_skip_verify must stay false outside development
//
// Usage:
//
//	cfg, err := config.Load("configs/mqttclient.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.MQTT.Broker.Host)
package config
