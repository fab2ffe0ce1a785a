// Package aquarium is the SQLite persistence gateway for aquarium state:
// sensor values, device status and the correction audit log.
//
// The correction loop only needs four operations (UpdateSensorValue,
// ResolveSensorID, AppendLog, UpdateDeviceStatus). Sensors and devices are
// addressed by type and name rather than id, matching how the registry
// names them; when several aquariums share a type, all rows are updated.
//
// Logs are append-only. Nothing in this package deletes them.
package aquarium
