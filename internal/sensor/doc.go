// Package sensor holds the sensor-device registry: which feed topic reports
// which sensor type, which device corrects it, and the acceptable range.
//
// The registry is built once at startup and never mutated. Its order is the
// round-robin order the correction loop visits sensors in.
package sensor
