// Package config handles loading and validating AquaSense Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields and the sensor registry
//   - Default value handling
//
// Security Considerations:
//   - Broker credentials and the InfluxDB token should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Correction.ControlTopic)
//
// An invalid sensor list (unknown type, inverted range, duplicate topic)
// is rejected here so the correction loop never starts with a bad registry.
package config
