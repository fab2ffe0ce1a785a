package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementReadings    = "sensor_readings"
	measurementCorrections = "corrections"
)

// WriteReading records one accepted sensor reading.
//
//	client.WriteReading(1, "temperature", "aquarium/sensor/temperature", 25.3, true)
func (c *Client) WriteReading(aquariumID int64, sensorType, topic string, value float64, inRange bool) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(readingPoint(aquariumID, sensorType, topic, value, inRange, time.Now()))
}

// WriteCorrection records a completed corrective action: the device that was
// switched, the out-of-range value and the bound the sensor was set to.
func (c *Client) WriteCorrection(aquariumID int64, sensorType, device string, from, target float64, duration time.Duration) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(correctionPoint(aquariumID, sensorType, device, from, target, duration, time.Now()))
}

func readingPoint(aquariumID int64, sensorType, topic string, value float64, inRange bool, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementReadings,
		map[string]string{
			"aquarium_id": strconv.FormatInt(aquariumID, 10),
			"sensor_type": sensorType,
			"topic":       topic,
		},
		map[string]interface{}{
			"value":    value,
			"in_range": inRange,
		},
		ts,
	)
}

func correctionPoint(aquariumID int64, sensorType, device string, from, target float64, duration time.Duration, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementCorrections,
		map[string]string{
			"aquarium_id": strconv.FormatInt(aquariumID, 10),
			"sensor_type": sensorType,
			"device":      device,
		},
		map[string]interface{}{
			"from":        from,
			"target":      target,
			"duration_ms": duration.Milliseconds(),
		},
		ts,
	)
}
