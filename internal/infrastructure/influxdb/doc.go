// Package influxdb provides InfluxDB connectivity for AquaSense Core.
//
// It wraps the official influxdb-client-go v2 library and records two
// measurements:
//
//	sensor_readings  tags: aquarium_id, sensor_type, topic   fields: value, in_range
//	corrections      tags: aquarium_id, sensor_type, device  fields: from, target, duration_ms
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteReading(1, "oxygen", "aquarium/sensor/oxygen", 6.2, true)
//
// # Error Handling
//
// Writes are non-blocking and batched (batch_size, flush_interval); batch
// errors are delivered to the SetOnError callback. Connection and health
// check errors are returned directly. Telemetry is optional: every write is
// a no-op on a disconnected or nil Client.
package influxdb
