// Package logging provides structured logging for the MQTT client.
//
// It wraps log/slog with the service defaults every entry carries
// (service, version) and a component attribute per subsystem.
//
// Configured via the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Attributes whose key contains password, token or secret are written as
// [REDACTED].
package logging
