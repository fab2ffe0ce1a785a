package mqtt

import "fmt"

// TopicPrefixSystem is the base for Core's own topics. Sensor and control
// topics come from the correction config.
const TopicPrefixSystem = "aquasense/system"

// Topics provides builders for AquaSense MQTT topics.
type Topics struct{}

// SystemStatus returns the Core presence topic (online/offline, LWT).
//
// Example: aquasense/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}
