package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Sensor types recognised by the correction loop.
const (
	SensorTypeTemperature = "temperature"
	SensorTypeOxygen      = "oxygen"
	SensorTypePH          = "ph"
)

// Config is the root configuration structure for AquaSense Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Aquarium   AquariumConfig   `yaml:"aquarium"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Correction CorrectionConfig `yaml:"correction"`
}

// AquariumConfig identifies the tank this instance controls.
type AquariumConfig struct {
	// ID is the aquariums.id row the sensors and devices belong to.
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`

	// Provision creates missing aquarium, sensor and device rows at startup.
	Provision bool `yaml:"provision"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
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

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MetricsConfig controls the observability listener (/metrics, /healthz).
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// CorrectionConfig contains the correction loop settings.
type CorrectionConfig struct {
	// ControlTopic is the shared topic actuator commands are published on.
	ControlTopic string `yaml:"control_topic"`

	// SettleDelayInRangeMS is the pause after an in-range reading before
	// the loop moves on to the next sensor.
	SettleDelayInRangeMS int `yaml:"settle_delay_in_range_ms"`

	// CorrectionSettleDelayMS is the assumed actuator settling time.
	CorrectionSettleDelayMS int `yaml:"correction_settle_delay_ms"`

	// PostCorrectionDelayMS is the pause after switching an actuator off.
	PostCorrectionDelayMS int `yaml:"post_correction_delay_ms"`

	// Sensors is the round-robin registry. Order matters.
	Sensors []SensorConfig `yaml:"sensors"`
}

// SensorConfig binds a feed topic to a sensor type, an actuator and a safe range.
type SensorConfig struct {
	Topic      string      `yaml:"topic"`
	SensorType string      `yaml:"sensor_type"`
	DeviceName string      `yaml:"device_name"`
	Range      RangeConfig `yaml:"range"`
}

// RangeConfig is an inclusive acceptable value range.
type RangeConfig struct {
	Lower float64 `yaml:"lower"`
	Upper float64 `yaml:"upper"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: AQUASENSE_SECTION_KEY
// For example: AQUASENSE_DATABASE_PATH, AQUASENSE_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration.
// It is valid as-is and mirrors the stock three-sensor tank.
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Aquarium: AquariumConfig{
			ID:        1,
			Name:      "Main tank",
			Provision: true,
		},
		Database: DatabaseConfig{
			Path:        "./data/aquasense.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "aquasense-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Host: "127.0.0.1",
			Port: 9464,
		},
		Correction: CorrectionConfig{
			ControlTopic:            "aquarium/device/control",
			SettleDelayInRangeMS:    3000,
			CorrectionSettleDelayMS: 6000,
			PostCorrectionDelayMS:   1000,
			Sensors: []SensorConfig{
				{
					Topic:      "aquarium/sensor/temperature",
					SensorType: SensorTypeTemperature,
					DeviceName: "thermostat",
					Range:      RangeConfig{Lower: 22, Upper: 28},
				},
				{
					Topic:      "aquarium/sensor/oxygen",
					SensorType: SensorTypeOxygen,
					DeviceName: "aerator",
					Range:      RangeConfig{Lower: 4, Upper: 10},
				},
				{
					Topic:      "aquarium/sensor/ph",
					SensorType: SensorTypePH,
					DeviceName: "phController",
					Range:      RangeConfig{Lower: 5, Upper: 8},
				},
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AQUASENSE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("AQUASENSE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("AQUASENSE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("AQUASENSE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("AQUASENSE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("AQUASENSE_METRICS_HOST"); v != "" {
		cfg.Metrics.Host = v
	}
}

// Validate checks the configuration for errors.
// All problems are reported together rather than stopping at the first.
func (c *Config) Validate() error {
	var errs []string

	if c.Aquarium.ID <= 0 {
		errs = append(errs, "aquarium.id must be positive")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		errs = append(errs, "metrics.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	errs = append(errs, c.Correction.validate()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (c *CorrectionConfig) validate() []string {
	var errs []string

	if c.ControlTopic == "" {
		errs = append(errs, "correction.control_topic is required")
	}
	if c.SettleDelayInRangeMS < 0 || c.CorrectionSettleDelayMS < 0 || c.PostCorrectionDelayMS < 0 {
		errs = append(errs, "correction delays cannot be negative")
	}
	if len(c.Sensors) == 0 {
		errs = append(errs, "correction.sensors must contain at least one sensor")
	}

	seen := make(map[string]bool, len(c.Sensors))
	for i, s := range c.Sensors {
		prefix := fmt.Sprintf("correction.sensors[%d]", i)
		if s.Topic == "" {
			errs = append(errs, prefix+".topic is required")
		} else if seen[s.Topic] {
			errs = append(errs, fmt.Sprintf("%s.topic %q is duplicated", prefix, s.Topic))
		}
		seen[s.Topic] = true

		switch s.SensorType {
		case SensorTypeTemperature, SensorTypeOxygen, SensorTypePH:
		default:
			errs = append(errs, fmt.Sprintf("%s.sensor_type %q is not one of temperature, oxygen, ph", prefix, s.SensorType))
		}

		if s.DeviceName == "" {
			errs = append(errs, prefix+".device_name is required")
		}
		if s.Range.Lower > s.Range.Upper {
			errs = append(errs, prefix+".range.lower must not exceed range.upper")
		}
	}

	return errs
}

// SettleDelayInRange returns the in-range settle delay as a Duration.
func (c CorrectionConfig) SettleDelayInRange() time.Duration {
	return time.Duration(c.SettleDelayInRangeMS) * time.Millisecond
}

// CorrectionSettleDelay returns the actuator settle delay as a Duration.
func (c CorrectionConfig) CorrectionSettleDelay() time.Duration {
	return time.Duration(c.CorrectionSettleDelayMS) * time.Millisecond
}

// PostCorrectionDelay returns the post-correction delay as a Duration.
func (c CorrectionConfig) PostCorrectionDelay() time.Duration {
	return time.Duration(c.PostCorrectionDelayMS) * time.Millisecond
}

// Addr returns the host:port the observability listener binds to.
func (c MetricsConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
