package correction

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/aquasense-core/internal/sensor"
)

// deviceStatusOff is written to the device row when a correction completes.
const deviceStatusOff = "off"

// Config holds the loop's tunables.
type Config struct {
	AquariumID   int64
	ControlTopic string
	QoS          byte

	// SettleDelayInRange is waited after an in-range reading before moving on.
	SettleDelayInRange time.Duration

	// CorrectionSettleDelay is how long the device runs before it is switched off.
	CorrectionSettleDelay time.Duration

	// PostCorrectionDelay is waited after the off command before moving on.
	PostCorrectionDelay time.Duration
}

// Status is a point-in-time snapshot of the loop.
type Status struct {
	Cursor          int       `json:"cursor"`
	ActiveTopic     string    `json:"active_topic"`
	ActiveSensor    string    `json:"active_sensor"`
	Busy            bool      `json:"busy"`
	CycleID         string    `json:"cycle_id,omitempty"`
	CyclesCompleted uint64    `json:"cycles_completed"`
	CyclesAborted   uint64    `json:"cycles_aborted"`
	Corrections     uint64    `json:"corrections"`
	Dropped         uint64    `json:"dropped"`
	LastError       string    `json:"last_error,omitempty"`
	LastCycleAt     time.Time `json:"last_cycle_at"`
}

// reading is an accepted message handed from the broker goroutine to Run.
type reading struct {
	cycleID string
	entry   sensor.Entry
	payload []byte
}

// Loop visits the registry's sensors in round-robin order and corrects
// out-of-range readings one sensor at a time.
//
// Only the active entry's topic is accepted, and only while no cycle is in
// flight; everything else is dropped. The cursor moves to the next entry
// only after a cycle completes. A failed cycle leaves the cursor in place so
// the next reading on the same topic retries it.
//
// Thread Safety: HandleMessage and Status are safe for concurrent use.
// Run must be called from exactly one goroutine.
type Loop struct {
	registry  *sensor.Registry
	gateway   Gateway
	publisher Publisher
	telemetry Telemetry
	metrics   *Metrics
	logger    Logger
	cfg       Config

	work chan reading

	mu              sync.Mutex
	cursor          int
	busy            bool
	cycleID         string
	cyclesCompleted uint64
	cyclesAborted   uint64
	corrections     uint64
	dropped         uint64
	lastErr         string
	lastCycleAt     time.Time
}

// NewLoop creates a loop over registry. Telemetry, metrics and logger are
// optional and set with the Set* methods before Run.
func NewLoop(registry *sensor.Registry, gateway Gateway, publisher Publisher, cfg Config) *Loop {
	return &Loop{
		registry:  registry,
		gateway:   gateway,
		publisher: publisher,
		telemetry: noopTelemetry{},
		metrics:   NewMetrics(nil),
		logger:    noopLogger{},
		cfg:       cfg,
		// At most one reading is ever outstanding: the gate is set before
		// the send and cleared only after Run has consumed it.
		work: make(chan reading, 1),
	}
}

// SetLogger sets the logger.
func (l *Loop) SetLogger(logger Logger) {
	if logger != nil {
		l.logger = logger
	}
}

// SetTelemetry sets the telemetry sink.
func (l *Loop) SetTelemetry(t Telemetry) {
	if t != nil {
		l.telemetry = t
	}
}

// SetMetrics replaces the default unregistered collectors.
func (l *Loop) SetMetrics(m *Metrics) {
	if m != nil {
		l.metrics = m
	}
}

// HandleMessage is the broker callback for every registered topic.
//
// The gate check and set happen under one lock, so two deliveries can never
// both start a cycle. Dropped messages are not errors.
func (l *Loop) HandleMessage(topic string, payload []byte) error {
	l.mu.Lock()
	if l.busy {
		l.dropped++
		l.mu.Unlock()
		l.metrics.messages.WithLabelValues("busy").Inc()
		return nil
	}

	entry := l.registry.EntryAt(l.cursor)
	if topic != entry.Topic {
		l.dropped++
		l.mu.Unlock()
		l.metrics.messages.WithLabelValues("inactive_topic").Inc()
		return nil
	}

	cycleID := uuid.NewString()
	l.busy = true
	l.cycleID = cycleID
	l.mu.Unlock()

	l.metrics.messages.WithLabelValues("accepted").Inc()
	l.metrics.inFlight.Set(1)

	// Paho may reuse the message buffer once the handler returns.
	buf := make([]byte, len(payload))
	copy(buf, payload)

	l.work <- reading{cycleID: cycleID, entry: entry, payload: buf}
	return nil
}

// Run processes accepted readings until ctx is cancelled. Cancellation
// during a cycle aborts it without advancing the cursor.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("correction loop started",
		"sensors", l.registry.Size(),
		"active_topic", l.registry.EntryAt(0).Topic,
	)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("correction loop stopped")
			return nil
		case r := <-l.work:
			l.process(ctx, r)
		}
	}
}

// Status returns a snapshot of the loop state.
func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := l.registry.EntryAt(l.cursor)
	return Status{
		Cursor:          l.cursor,
		ActiveTopic:     entry.Topic,
		ActiveSensor:    string(entry.SensorType),
		Busy:            l.busy,
		CycleID:         l.cycleID,
		CyclesCompleted: l.cyclesCompleted,
		CyclesAborted:   l.cyclesAborted,
		Corrections:     l.corrections,
		Dropped:         l.dropped,
		LastError:       l.lastErr,
		LastCycleAt:     l.lastCycleAt,
	}
}

func (l *Loop) process(ctx context.Context, r reading) {
	start := time.Now()
	sensorType := string(r.entry.SensorType)
	log := l.cycleLogger(r)

	corrected, err := l.runCycle(ctx, r, log)
	elapsed := time.Since(start)

	if err != nil {
		stage := "unknown"
		var se *StageError
		if errors.As(err, &se) {
			stage = se.Stage
		}
		log.Error("correction cycle aborted", "stage", stage, "error", err)
		l.metrics.aborts.WithLabelValues(sensorType, stage).Inc()
		l.metrics.cycleTimes.WithLabelValues("aborted").Observe(elapsed.Seconds())
		l.finish(false, corrected, err)
		return
	}

	result := "in_range"
	if corrected {
		result = "corrected"
	}
	l.metrics.cycles.WithLabelValues(sensorType, result).Inc()
	l.metrics.cycleTimes.WithLabelValues(result).Observe(elapsed.Seconds())
	log.Debug("correction cycle complete", "result", result, "duration", elapsed)
	l.finish(true, corrected, nil)
}

// finish clears the gate and, if the cycle completed, advances the cursor.
func (l *Loop) finish(advance, corrected bool, err error) {
	l.mu.Lock()
	if advance {
		l.cursor = (l.cursor + 1) % l.registry.Size()
		l.cyclesCompleted++
		if corrected {
			l.corrections++
		}
	} else {
		l.cyclesAborted++
		l.lastErr = err.Error()
	}
	l.busy = false
	l.cycleID = ""
	l.lastCycleAt = time.Now()
	cursor := l.cursor
	l.mu.Unlock()

	l.metrics.inFlight.Set(0)
	l.metrics.cursor.Set(float64(cursor))
}

// runCycle ingests one reading and, if it is out of range, drives the
// device. It reports whether a correction was performed.
func (l *Loop) runCycle(ctx context.Context, r reading, log Logger) (bool, error) {
	value, err := parseReading(r.payload)
	if err != nil {
		return false, stageErr(StageParse, err)
	}

	sensorType := string(r.entry.SensorType)
	log.Info("reading received", "value", value)

	if err := l.gateway.UpdateSensorValue(ctx, sensorType, value); err != nil {
		return false, stageErr(StageUpdateSensor, err)
	}

	inRange := r.entry.Range.Contains(value)
	l.metrics.lastValue.WithLabelValues(sensorType).Set(value)
	l.telemetry.WriteReading(l.cfg.AquariumID, sensorType, r.entry.Topic, value, inRange)

	if inRange {
		if err := wait(ctx, l.cfg.SettleDelayInRange); err != nil {
			return false, stageErr(StageSettle, err)
		}
		return false, nil
	}

	if err := l.correct(ctx, r.entry, value, log); err != nil {
		return false, err
	}
	return true, nil
}

// correct runs the on, wait, off sequence. Any failure stops it where it
// is; nothing already done is undone.
func (l *Loop) correct(ctx context.Context, entry sensor.Entry, value float64, log Logger) error {
	start := time.Now()
	sensorType := string(entry.SensorType)
	device := entry.DeviceName
	target := entry.Range.Target(value)

	sensorID, err := l.gateway.ResolveSensorID(ctx, sensorType)
	if err != nil {
		return stageErr(StageResolveSensor, err)
	}

	if err := l.gateway.AppendLog(ctx, sensorID, turnedOnMessage(device, sensorType, value, target)); err != nil {
		return stageErr(StageLogOn, err)
	}

	if err := l.command(device, "on"); err != nil {
		return stageErr(StagePublishOn, err)
	}
	log.Info("device turned on", "device", device, "from", value, "target", target)

	if err := wait(ctx, l.cfg.CorrectionSettleDelay); err != nil {
		return stageErr(StageCorrectionWait, err)
	}

	if err := l.gateway.UpdateSensorValue(ctx, sensorType, target); err != nil {
		return stageErr(StageUpdateTarget, err)
	}

	if err := l.gateway.AppendLog(ctx, sensorID, turnedOffMessage(device, sensorType)); err != nil {
		return stageErr(StageLogOff, err)
	}

	if err := l.gateway.UpdateDeviceStatus(ctx, device, deviceStatusOff); err != nil {
		return stageErr(StageDeviceStatus, err)
	}

	if err := l.command(device, "off"); err != nil {
		return stageErr(StagePublishOff, err)
	}
	log.Info("device turned off", "device", device)

	if err := wait(ctx, l.cfg.PostCorrectionDelay); err != nil {
		return stageErr(StagePostCorrection, err)
	}

	l.telemetry.WriteCorrection(l.cfg.AquariumID, sensorType, device, value, target, time.Since(start))
	return nil
}

// command publishes "<device>_<action>" on the control topic.
func (l *Loop) command(device, action string) error {
	payload := device + "_" + action
	if err := l.publisher.Publish(l.cfg.ControlTopic, []byte(payload), l.cfg.QoS, false); err != nil {
		return fmt.Errorf("publishing %s: %w", payload, err)
	}
	l.metrics.commands.WithLabelValues(device, action).Inc()
	return nil
}

func (l *Loop) cycleLogger(r reading) Logger {
	return attrLogger{
		base:  l.logger,
		attrs: []any{"cycle_id", r.cycleID, "topic", r.entry.Topic, "sensor_type", string(r.entry.SensorType)},
	}
}

// attrLogger prepends fixed attributes to every entry.
type attrLogger struct {
	base  Logger
	attrs []any
}

func (a attrLogger) with(args []any) []any {
	out := make([]any, 0, len(a.attrs)+len(args))
	return append(append(out, a.attrs...), args...)
}

func (a attrLogger) Debug(msg string, args ...any) { a.base.Debug(msg, a.with(args)...) }
func (a attrLogger) Info(msg string, args ...any)  { a.base.Info(msg, a.with(args)...) }
func (a attrLogger) Warn(msg string, args ...any)  { a.base.Warn(msg, a.with(args)...) }
func (a attrLogger) Error(msg string, args ...any) { a.base.Error(msg, a.with(args)...) }

// parseReading accepts a plain decimal payload such as "25.4". NaN and
// infinities are rejected since they can never be in range.
func parseReading(payload []byte) (float64, error) {
	s := strings.TrimSpace(string(payload))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrMalformedReading, s)
	}
	return v, nil
}

func turnedOnMessage(device, sensorType string, from, to float64) string {
	return fmt.Sprintf("Device %s turned on to correct %s from %s to %s",
		device, sensorType, formatValue(from), formatValue(to))
}

func turnedOffMessage(device, sensorType string) string {
	return fmt.Sprintf("Device %s turned off after correcting %s", device, sensorType)
}

// formatValue prints the shortest decimal that round-trips: 2, 7.5, 8.25.
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// wait sleeps for d or until ctx is cancelled.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
