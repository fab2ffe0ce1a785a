package aquarium

import "time"

// Device status values.
const (
	StatusOn  = "on"
	StatusOff = "off"
)

// Aquarium is a tank that owns sensors and devices.
type Aquarium struct {
	ID            int64  `json:"id"`
	UserID        *int64 `json:"user_id,omitempty"`
	Name          string `json:"name"`
	Specification string `json:"specification,omitempty"`
}

// Sensor is the latest known value for one sensor type in an aquarium.
// Value is nil until the first reading arrives.
type Sensor struct {
	ID         int64    `json:"id"`
	AquariumID int64    `json:"aquarium_id"`
	Type       string   `json:"type"`
	Value      *float64 `json:"value"`
}

// Device is an actuator (heater, aerator, doser) and its last recorded status.
type Device struct {
	ID         int64  `json:"id"`
	AquariumID int64  `json:"aquarium_id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
}

// LogEntry is one line of the append-only correction audit trail.
type LogEntry struct {
	ID        int64     `json:"id"`
	SensorID  int64     `json:"sensor_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// LogFilter controls which log entries ListLogs returns.
type LogFilter struct {
	SensorID int64 // optional: 0 means all sensors
	Limit    int   // default 50, max 200
	Offset   int
}

// LogListResult is one page of log entries, most recent first.
type LogListResult struct {
	Logs   []LogEntry `json:"logs"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// ProvisionSpec lists the rows an aquarium needs for the correction loop to
// have something to update.
type ProvisionSpec struct {
	AquariumID   int64
	AquariumName string
	SensorTypes  []string
	DeviceNames  []string
}
