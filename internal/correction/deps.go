package correction

import (
	"context"
	"time"
)

// Gateway is the persistence the loop needs. aquarium.SQLiteRepository
// implements it.
type Gateway interface {
	UpdateSensorValue(ctx context.Context, sensorType string, value float64) error

	// ResolveSensorID returns aquarium.ErrSensorNotFound (wrapped) when no
	// sensor row has the given type.
	ResolveSensorID(ctx context.Context, sensorType string) (int64, error)

	AppendLog(ctx context.Context, sensorID int64, message string) error
	UpdateDeviceStatus(ctx context.Context, name, status string) error
}

// Publisher sends actuator commands. The MQTT client implements it and
// returns once the publish has completed or timed out.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Telemetry receives readings and completed corrections. It is optional;
// the InfluxDB client implements it.
type Telemetry interface {
	WriteReading(aquariumID int64, sensorType, topic string, value float64, inRange bool)
	WriteCorrection(aquariumID int64, sensorType, device string, from, target float64, duration time.Duration)
}

// Logger is the logging interface used by the loop.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopTelemetry struct{}

func (noopTelemetry) WriteReading(int64, string, string, float64, bool) {}
func (noopTelemetry) WriteCorrection(int64, string, string, float64, float64, time.Duration) {}
