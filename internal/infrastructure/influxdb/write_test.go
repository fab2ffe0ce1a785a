package influxdb

import (
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

func TestReadingPoint(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	line := write.PointToLineProtocol(readingPoint(3, "temperature", "aquarium/sensor/temperature", 25.5, true, ts), time.Second)

	for _, want := range []string{
		"sensor_readings,",
		"aquarium_id=3",
		"sensor_type=temperature",
		"topic=aquarium/sensor/temperature",
		"value=25.5",
		"in_range=true",
		" 1700000000",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line protocol %q missing %q", line, want)
		}
	}
}

func TestCorrectionPoint(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	line := write.PointToLineProtocol(correctionPoint(1, "oxygen", "aerator", 2, 4, 7*time.Second, ts), time.Second)

	for _, want := range []string{
		"corrections,",
		"device=aerator",
		"sensor_type=oxygen",
		"from=2",
		"target=4",
		"duration_ms=7000i",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line protocol %q missing %q", line, want)
		}
	}
}
