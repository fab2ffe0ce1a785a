package correction

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "aquasense"

// Metrics holds the loop's Prometheus collectors.
type Metrics struct {
	messages   *prometheus.CounterVec
	cycles     *prometheus.CounterVec
	aborts     *prometheus.CounterVec
	commands   *prometheus.CounterVec
	lastValue  *prometheus.GaugeVec
	inFlight   prometheus.Gauge
	cursor     prometheus.Gauge
	cycleTimes *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_total",
			Help:      "Inbound sensor messages by outcome (accepted, busy, inactive_topic).",
		}, []string{"outcome"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cycles_total",
			Help:      "Finished correction cycles by sensor type and result.",
		}, []string{"sensor_type", "result"}),
		aborts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cycle_aborts_total",
			Help:      "Aborted cycles by sensor type and failing stage.",
		}, []string{"sensor_type", "stage"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "actuator_commands_total",
			Help:      "Actuator commands published by device and command.",
		}, []string{"device", "command"}),
		lastValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "sensor_value",
			Help:      "Last accepted reading per sensor type.",
		}, []string{"sensor_type"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "cycle_in_flight",
			Help:      "1 while a cycle is being processed.",
		}),
		cursor: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "cursor",
			Help:      "Registry index of the active sensor.",
		}),
		cycleTimes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of finished cycles including settle delays.",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 7, 10, 15, 30},
		}, []string{"result"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.messages, m.cycles, m.aborts, m.commands,
			m.lastValue, m.inFlight, m.cursor, m.cycleTimes,
		)
	}
	return m
}
