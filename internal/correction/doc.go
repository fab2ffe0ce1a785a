// Package correction implements the sensor correction control loop.
//
// The loop keeps a cursor into the sensor registry and accepts readings only
// from the active sensor's topic, one at a time. An accepted reading is
// stored; if it is inside the sensor's range the loop waits a settle delay
// and moves to the next sensor. Otherwise it corrects:
//
//	resolve sensor id
//	log "Device <dev> turned on to correct <type> from <value> to <target>"
//	publish <dev>_on
//	wait correction settle delay
//	store target as the sensor value
//	log "Device <dev> turned off after correcting <type>"
//	set device status off
//	publish <dev>_off
//	wait post-correction delay
//
// Any failure aborts the cycle where it stands: the gate is cleared, the
// cursor stays put, and the next reading on the same topic starts over. An
// actuator switched on before the failure is not switched back off.
package correction
