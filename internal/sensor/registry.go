package sensor

import (
	"fmt"
	"strings"

	"github.com/nerrad567/aquasense-core/internal/infrastructure/config"
)

// Type is the kind of quantity a sensor measures.
type Type string

// Supported sensor types.
const (
	TypeTemperature Type = config.SensorTypeTemperature
	TypeOxygen      Type = config.SensorTypeOxygen
	TypePH          Type = config.SensorTypePH
)

// Valid reports whether t is a supported sensor type.
func (t Type) Valid() bool {
	switch t {
	case TypeTemperature, TypeOxygen, TypePH:
		return true
	}
	return false
}

// Range is an inclusive acceptable interval [Lower, Upper].
type Range struct {
	Lower float64
	Upper float64
}

// Contains reports whether lower <= v <= upper. Both bounds are in range.
func (r Range) Contains(v float64) bool {
	return v >= r.Lower && v <= r.Upper
}

// Target returns the bound a value is corrected to: the lower bound when the
// value is below range, otherwise the upper bound.
func (r Range) Target(v float64) float64 {
	if v < r.Lower {
		return r.Lower
	}
	return r.Upper
}

// Entry maps one feed topic to the sensor it reports and the device that
// corrects it.
type Entry struct {
	Topic      string
	SensorType Type
	DeviceName string
	Range      Range
}

// Registry is the ordered, immutable list of entries. Order defines the
// round-robin sequence.
type Registry struct {
	entries []Entry
}

// NewRegistry validates entries and returns a registry that owns a copy.
func NewRegistry(entries []Entry) (*Registry, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyRegistry
	}

	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		if err := e.validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if seen[e.Topic] {
			return nil, fmt.Errorf("entry %d: %w: %s", i, ErrDuplicateTopic, e.Topic)
		}
		seen[e.Topic] = true
	}

	owned := make([]Entry, len(entries))
	copy(owned, entries)
	return &Registry{entries: owned}, nil
}

// FromConfig builds a registry from the correction.sensors config section.
func FromConfig(sensors []config.SensorConfig) (*Registry, error) {
	entries := make([]Entry, 0, len(sensors))
	for _, s := range sensors {
		entries = append(entries, Entry{
			Topic:      s.Topic,
			SensorType: Type(s.SensorType),
			DeviceName: s.DeviceName,
			Range:      Range{Lower: s.Range.Lower, Upper: s.Range.Upper},
		})
	}
	return NewRegistry(entries)
}

func (e Entry) validate() error {
	if strings.TrimSpace(e.Topic) == "" {
		return ErrEmptyTopic
	}
	if !e.SensorType.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownType, e.SensorType)
	}
	if strings.TrimSpace(e.DeviceName) == "" {
		return ErrEmptyDevice
	}
	if e.Range.Lower > e.Range.Upper {
		return fmt.Errorf("%w: lower %v > upper %v", ErrInvalidRange, e.Range.Lower, e.Range.Upper)
	}
	return nil
}

// EntryAt returns the entry at index modulo Size, so a cursor can be used
// directly without bounds checks.
func (r *Registry) EntryAt(index int) Entry {
	n := len(r.entries)
	i := index % n
	if i < 0 {
		i += n
	}
	return r.entries[i]
}

// Size returns the number of entries.
func (r *Registry) Size() int {
	return len(r.entries)
}

// Entries returns a copy of all entries in order.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// TopicsToSubscribe returns every entry's topic in registry order.
func (r *Registry) TopicsToSubscribe() []string {
	topics := make([]string, len(r.entries))
	for i, e := range r.entries {
		topics[i] = e.Topic
	}
	return topics
}

// DeviceNames returns the distinct controlling devices in registry order.
func (r *Registry) DeviceNames() []string {
	seen := make(map[string]bool, len(r.entries))
	var names []string
	for _, e := range r.entries {
		if !seen[e.DeviceName] {
			seen[e.DeviceName] = true
			names = append(names, e.DeviceName)
		}
	}
	return names
}

// SensorTypes returns the distinct sensor types in registry order.
func (r *Registry) SensorTypes() []Type {
	seen := make(map[Type]bool, len(r.entries))
	var types []Type
	for _, e := range r.entries {
		if !seen[e.SensorType] {
			seen[e.SensorType] = true
			types = append(types, e.SensorType)
		}
	}
	return types
}
