package sensor

import "errors"

// Registry validation errors. All are startup-fatal.
var (
	ErrEmptyRegistry  = errors.New("sensor: registry has no entries")
	ErrEmptyTopic     = errors.New("sensor: topic is empty")
	ErrEmptyDevice    = errors.New("sensor: device name is empty")
	ErrUnknownType    = errors.New("sensor: unknown sensor type")
	ErrInvalidRange   = errors.New("sensor: range lower bound exceeds upper bound")
	ErrDuplicateTopic = errors.New("sensor: duplicate topic")
)
