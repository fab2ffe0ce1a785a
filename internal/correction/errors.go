package correction

import (
	"errors"
	"fmt"
)

// ErrMalformedReading is returned when a payload is not a decimal number.
var ErrMalformedReading = errors.New("correction: malformed reading")

// Cycle stages, used in StageError and as the "stage" metric label.
const (
	StageParse          = "parse"
	StageUpdateSensor   = "update_sensor"
	StageSettle         = "settle"
	StageResolveSensor  = "resolve_sensor"
	StageLogOn          = "log_on"
	StagePublishOn      = "publish_on"
	StageCorrectionWait = "correction_wait"
	StageUpdateTarget   = "update_target"
	StageLogOff         = "log_off"
	StageDeviceStatus   = "device_status"
	StagePublishOff     = "publish_off"
	StagePostCorrection = "post_correction"
)

// StageError records which step of a cycle failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("correction %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}
