// Package logging provides structured logging for AquaSense Core.
//
// It wraps log/slog so every component logs with the same handler,
// level and default fields (service, version).
//
// Configuration comes from the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("correction loop started", "sensors", 3)
//
// Never log broker passwords or the InfluxDB token.
package logging
