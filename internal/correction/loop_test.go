package correction

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nerrad567/aquasense-core/internal/sensor"
)

// ─── Mock Dependencies ──────────────────────────────────────────────────────

// mockGateway records every call as a readable string.
type mockGateway struct {
	mu      sync.Mutex
	calls   []string
	counts  map[string]int
	failOn  map[string]int // method -> 1-based call number that fails
	entered chan struct{}  // signalled when UpdateSensorValue starts, if set
	release chan struct{}  // UpdateSensorValue blocks on this, if set
	ids     map[string]int64
}

func newMockGateway() *mockGateway {
	return &mockGateway{
		counts: make(map[string]int),
		failOn: make(map[string]int),
		ids:    map[string]int64{"temperature": 1, "oxygen": 2, "ph": 3},
	}
}

var errDBDown = errors.New("database is locked")

func (m *mockGateway) record(method, call string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[method]++
	if n, ok := m.failOn[method]; ok && n == m.counts[method] {
		return errDBDown
	}
	m.calls = append(m.calls, call)
	return nil
}

func (m *mockGateway) UpdateSensorValue(_ context.Context, sensorType string, value float64) error {
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.release != nil {
		<-m.release
	}
	return m.record("UpdateSensorValue", fmt.Sprintf("UpdateSensorValue %s %v", sensorType, value))
}

func (m *mockGateway) ResolveSensorID(_ context.Context, sensorType string) (int64, error) {
	if err := m.record("ResolveSensorID", "ResolveSensorID "+sensorType); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.ids[sensorType]
	if !ok {
		return 0, errors.New("aquarium: sensor not found")
	}
	return id, nil
}

func (m *mockGateway) AppendLog(_ context.Context, sensorID int64, message string) error {
	return m.record("AppendLog", fmt.Sprintf("AppendLog %d %s", sensorID, message))
}

func (m *mockGateway) UpdateDeviceStatus(_ context.Context, name, status string) error {
	return m.record("UpdateDeviceStatus", fmt.Sprintf("UpdateDeviceStatus %s %s", name, status))
}

func (m *mockGateway) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// mockPublisher captures published commands.
type mockPublisher struct {
	mu       sync.Mutex
	messages []published
	failOn   string // payload to fail on
	onPub    func(payload string)
}

type published struct {
	Topic    string
	Payload  string
	QoS      byte
	Retained bool
}

func (m *mockPublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	if m.failOn != "" && string(payload) == m.failOn {
		m.mu.Unlock()
		return errors.New("MQTT publish failed")
	}
	m.messages = append(m.messages, published{topic, string(payload), qos, retained})
	hook := m.onPub
	m.mu.Unlock()

	if hook != nil {
		hook(string(payload))
	}
	return nil
}

func (m *mockPublisher) Payloads() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.messages))
	for _, msg := range m.messages {
		out = append(out, msg.Payload)
	}
	return out
}

// mockTelemetry counts telemetry writes.
type mockTelemetry struct {
	mu          sync.Mutex
	readings    []bool // inRange per reading
	corrections []float64
}

func (m *mockTelemetry) WriteReading(_ int64, _, _ string, _ float64, inRange bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readings = append(m.readings, inRange)
}

func (m *mockTelemetry) WriteCorrection(_ int64, _, _ string, _, target float64, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.corrections = append(m.corrections, target)
}

// ─── Helpers ────────────────────────────────────────────────────────────────

const testControlTopic = "aquarium/device/control"

var (
	temperatureEntry = sensor.Entry{Topic: "aquarium/sensor/temperature", SensorType: sensor.TypeTemperature, DeviceName: "thermostat", Range: sensor.Range{Lower: 22, Upper: 28}}
	oxygenEntry      = sensor.Entry{Topic: "aquarium/sensor/oxygen", SensorType: sensor.TypeOxygen, DeviceName: "aerator", Range: sensor.Range{Lower: 4, Upper: 10}}
	phEntry          = sensor.Entry{Topic: "aquarium/sensor/ph", SensorType: sensor.TypePH, DeviceName: "phController", Range: sensor.Range{Lower: 5, Upper: 8}}
)

func testRegistry(t *testing.T, entries ...sensor.Entry) *sensor.Registry {
	t.Helper()
	if len(entries) == 0 {
		entries = []sensor.Entry{temperatureEntry, oxygenEntry, phEntry}
	}
	reg, err := sensor.NewRegistry(entries)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return reg
}

func testConfig() Config {
	return Config{AquariumID: 1, ControlTopic: testControlTopic, QoS: 1}
}

// startLoop runs the loop until the test ends.
func startLoop(t *testing.T, l *Loop) context.CancelFunc {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx) //nolint:errcheck // Run only returns nil
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

// waitForCycles blocks until n cycles have finished and the gate is clear.
func waitForCycles(t *testing.T, l *Loop, n uint64) Status {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s := l.Status()
		if !s.Busy && s.CyclesCompleted+s.CyclesAborted >= n {
			return s
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d cycles; status = %+v", n, l.Status())
	return Status{}
}

func send(t *testing.T, l *Loop, topic, payload string) {
	t.Helper()
	if err := l.HandleMessage(topic, []byte(payload)); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
}

// ─── Cycle Behaviour ────────────────────────────────────────────────────────

func TestLoop_InRangeReading(t *testing.T) {
	gw := newMockGateway()
	pub := &mockPublisher{}
	tel := &mockTelemetry{}
	l := NewLoop(testRegistry(t), gw, pub, testConfig())
	l.SetTelemetry(tel)
	startLoop(t, l)

	send(t, l, temperatureEntry.Topic, "25")
	s := waitForCycles(t, l, 1)

	if want := []string{"UpdateSensorValue temperature 25"}; !reflect.DeepEqual(gw.Calls(), want) {
		t.Errorf("gateway calls = %q, want %q", gw.Calls(), want)
	}
	if len(pub.Payloads()) != 0 {
		t.Errorf("published %q, want nothing for an in-range reading", pub.Payloads())
	}
	if s.Cursor != 1 || s.CyclesCompleted != 1 || s.Corrections != 0 {
		t.Errorf("status = %+v, want cursor 1, 1 completed, 0 corrections", s)
	}
	if !reflect.DeepEqual(tel.readings, []bool{true}) {
		t.Errorf("telemetry readings = %v, want [true]", tel.readings)
	}
}

func TestLoop_BoundsAreInRange(t *testing.T) {
	for _, payload := range []string{"22", "28"} {
		t.Run(payload, func(t *testing.T) {
			pub := &mockPublisher{}
			l := NewLoop(testRegistry(t, temperatureEntry), newMockGateway(), pub, testConfig())
			startLoop(t, l)

			send(t, l, temperatureEntry.Topic, payload)
			waitForCycles(t, l, 1)

			if len(pub.Payloads()) != 0 {
				t.Errorf("published %q for boundary value %s", pub.Payloads(), payload)
			}
		})
	}
}

func TestLoop_BelowRangeCorrection(t *testing.T) {
	gw := newMockGateway()
	pub := &mockPublisher{}
	tel := &mockTelemetry{}
	l := NewLoop(testRegistry(t, oxygenEntry, phEntry), gw, pub, testConfig())
	l.SetTelemetry(tel)
	startLoop(t, l)

	send(t, l, oxygenEntry.Topic, "2")
	s := waitForCycles(t, l, 1)

	wantCalls := []string{
		"UpdateSensorValue oxygen 2",
		"ResolveSensorID oxygen",
		"AppendLog 2 Device aerator turned on to correct oxygen from 2 to 4",
		"UpdateSensorValue oxygen 4",
		"AppendLog 2 Device aerator turned off after correcting oxygen",
		"UpdateDeviceStatus aerator off",
	}
	if !reflect.DeepEqual(gw.Calls(), wantCalls) {
		t.Errorf("gateway calls =\n%q\nwant\n%q", gw.Calls(), wantCalls)
	}

	pub.mu.Lock()
	msgs := append([]published(nil), pub.messages...)
	pub.mu.Unlock()
	wantMsgs := []published{
		{testControlTopic, "aerator_on", 1, false},
		{testControlTopic, "aerator_off", 1, false},
	}
	if !reflect.DeepEqual(msgs, wantMsgs) {
		t.Errorf("published = %+v, want %+v", msgs, wantMsgs)
	}

	if s.Cursor != 1 || s.Corrections != 1 {
		t.Errorf("status = %+v, want cursor 1 and 1 correction", s)
	}
	if !reflect.DeepEqual(tel.corrections, []float64{4}) {
		t.Errorf("telemetry corrections = %v, want [4]", tel.corrections)
	}
}

func TestLoop_AboveRangeCorrection(t *testing.T) {
	gw := newMockGateway()
	pub := &mockPublisher{}
	l := NewLoop(testRegistry(t, phEntry), gw, pub, testConfig())
	startLoop(t, l)

	send(t, l, phEntry.Topic, "9")
	s := waitForCycles(t, l, 1)

	calls := gw.Calls()
	if len(calls) != 6 {
		t.Fatalf("gateway calls = %q, want 6", calls)
	}
	if calls[2] != "AppendLog 3 Device phController turned on to correct ph from 9 to 8" {
		t.Errorf("on log = %q", calls[2])
	}
	if calls[3] != "UpdateSensorValue ph 8" {
		t.Errorf("target update = %q, want value overwritten with upper bound", calls[3])
	}
	if want := []string{"phController_on", "phController_off"}; !reflect.DeepEqual(pub.Payloads(), want) {
		t.Errorf("published = %q, want %q", pub.Payloads(), want)
	}
	// Single-entry registry wraps back to 0.
	if s.Cursor != 0 || s.CyclesCompleted != 1 {
		t.Errorf("status = %+v, want wrapped cursor 0 after one completed cycle", s)
	}
}

func TestLoop_FractionalValuesInLog(t *testing.T) {
	gw := newMockGateway()
	l := NewLoop(testRegistry(t, temperatureEntry), gw, &mockPublisher{}, testConfig())
	startLoop(t, l)

	send(t, l, temperatureEntry.Topic, " 29.75\n")
	waitForCycles(t, l, 1)

	want := "AppendLog 1 Device thermostat turned on to correct temperature from 29.75 to 28"
	if calls := gw.Calls(); len(calls) < 3 || calls[2] != want {
		t.Errorf("gateway calls = %q, want third call %q", calls, want)
	}
}

// ─── Gating ─────────────────────────────────────────────────────────────────

func TestLoop_TopicGating(t *testing.T) {
	gw := newMockGateway()
	l := NewLoop(testRegistry(t), gw, &mockPublisher{}, testConfig())
	startLoop(t, l)

	send(t, l, oxygenEntry.Topic, "2")
	send(t, l, phEntry.Topic, "9")
	send(t, l, "aquarium/sensor/unknown", "1")

	s := l.Status()
	if s.Dropped != 3 || s.Busy {
		t.Errorf("status = %+v, want 3 dropped and idle", s)
	}
	if len(gw.Calls()) != 0 {
		t.Errorf("gateway calls = %q, want none for inactive topics", gw.Calls())
	}
	if s.Cursor != 0 {
		t.Errorf("cursor = %d, want 0", s.Cursor)
	}
}

func TestLoop_SingleFlight(t *testing.T) {
	gw := newMockGateway()
	gw.entered = make(chan struct{}, 1)
	gw.release = make(chan struct{})
	l := NewLoop(testRegistry(t, temperatureEntry), gw, &mockPublisher{}, testConfig())
	startLoop(t, l)

	send(t, l, temperatureEntry.Topic, "25")
	<-gw.entered

	// The first cycle is blocked inside the gateway; everything else drops.
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.HandleMessage(temperatureEntry.Topic, []byte("30")) //nolint:errcheck // always nil
		}()
	}
	wg.Wait()

	if s := l.Status(); !s.Busy || s.Dropped != 10 {
		t.Errorf("status = %+v, want busy with 10 dropped", s)
	}

	close(gw.release)
	s := waitForCycles(t, l, 1)

	if want := []string{"UpdateSensorValue temperature 25"}; !reflect.DeepEqual(gw.Calls(), want) {
		t.Errorf("gateway calls = %q, want only the first reading", gw.Calls())
	}
	if s.CyclesCompleted != 1 {
		t.Errorf("CyclesCompleted = %d, want 1", s.CyclesCompleted)
	}
}

func TestLoop_RoundRobin(t *testing.T) {
	gw := newMockGateway()
	l := NewLoop(testRegistry(t), gw, &mockPublisher{}, testConfig())
	startLoop(t, l)

	steps := []struct {
		topic      string
		payload    string
		wantCursor int
	}{
		{temperatureEntry.Topic, "25", 1},
		{oxygenEntry.Topic, "6", 2},
		{phEntry.Topic, "7", 0},
		{temperatureEntry.Topic, "23", 1},
	}

	for i, step := range steps {
		// A reading for the sensor after the active one is ignored.
		send(t, l, l.registry.EntryAt(l.Status().Cursor+1).Topic, "1")

		send(t, l, step.topic, step.payload)
		s := waitForCycles(t, l, uint64(i+1))
		if s.Cursor != step.wantCursor {
			t.Fatalf("step %d: cursor = %d, want %d", i, s.Cursor, step.wantCursor)
		}
	}

	if got := len(gw.Calls()); got != len(steps) {
		t.Errorf("gateway calls = %d, want %d (one update per accepted reading)", got, len(steps))
	}
}

// waitUntil polls cond until it holds or a second passes.
func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func TestLoop_GateHeldDuringInRangeSettle(t *testing.T) {
	const settle = 250 * time.Millisecond

	gw := newMockGateway()
	cfg := testConfig()
	cfg.SettleDelayInRange = settle
	l := NewLoop(testRegistry(t), gw, &mockPublisher{}, cfg)
	startLoop(t, l)

	start := time.Now()
	send(t, l, temperatureEntry.Topic, "25")
	waitUntil(t, "sensor update", func() bool { return len(gw.Calls()) == 1 })

	s := l.Status()
	if !s.Busy || s.Cursor != 0 {
		t.Fatalf("status while settling = %+v, want busy at cursor 0", s)
	}
	if _, err := uuid.Parse(s.CycleID); err != nil {
		t.Errorf("CycleID = %q, want a full UUID: %v", s.CycleID, err)
	}

	// Neither the active topic nor the next one may start a cycle mid-settle.
	send(t, l, temperatureEntry.Topic, "26")
	send(t, l, oxygenEntry.Topic, "5")
	if s := l.Status(); !s.Busy || s.Cursor != 0 || s.Dropped != 2 {
		t.Errorf("status after mid-settle messages = %+v, want busy at cursor 0 with 2 dropped", s)
	}

	s = waitForCycles(t, l, 1)
	if elapsed := time.Since(start); elapsed < settle {
		t.Errorf("cursor advanced after %v, want at least %v", elapsed, settle)
	}
	if s.Cursor != 1 || s.CyclesCompleted != 1 {
		t.Errorf("status = %+v, want cursor 1 after the settle delay", s)
	}
	if want := []string{"UpdateSensorValue temperature 25"}; !reflect.DeepEqual(gw.Calls(), want) {
		t.Errorf("gateway calls = %q, want only the first reading", gw.Calls())
	}
}

func TestLoop_GateHeldDuringCorrectionWaits(t *testing.T) {
	const (
		correctionDelay = 250 * time.Millisecond
		postDelay       = 250 * time.Millisecond
	)

	gw := newMockGateway()
	pub := &mockPublisher{}
	var (
		mu       sync.Mutex
		sentAt   = make(map[string]time.Time)
		startsAt time.Time
	)
	pub.onPub = func(payload string) {
		mu.Lock()
		sentAt[payload] = time.Now()
		mu.Unlock()
	}

	cfg := testConfig()
	cfg.CorrectionSettleDelay = correctionDelay
	cfg.PostCorrectionDelay = postDelay
	l := NewLoop(testRegistry(t, oxygenEntry, phEntry), gw, pub, cfg)
	startLoop(t, l)

	startsAt = time.Now()
	send(t, l, oxygenEntry.Topic, "2")

	// Between the on and off commands.
	waitUntil(t, "aerator_on", func() bool { return contains(pub.Payloads(), "aerator_on") })
	send(t, l, oxygenEntry.Topic, "3")
	send(t, l, phEntry.Topic, "6")
	if s := l.Status(); !s.Busy || s.Cursor != 0 || s.Dropped != 2 {
		t.Errorf("status during correction wait = %+v, want busy at cursor 0 with 2 dropped", s)
	}
	if contains(pub.Payloads(), "aerator_off") {
		t.Fatal("aerator_off published before the correction delay elapsed")
	}

	// After the off command, before the post-correction delay ends.
	waitUntil(t, "aerator_off", func() bool { return contains(pub.Payloads(), "aerator_off") })
	send(t, l, oxygenEntry.Topic, "3")
	send(t, l, phEntry.Topic, "6")
	if s := l.Status(); !s.Busy || s.Cursor != 0 || s.Dropped != 4 {
		t.Errorf("status during post-correction delay = %+v, want busy at cursor 0 with 4 dropped", s)
	}

	s := waitForCycles(t, l, 1)
	if s.Cursor != 1 || s.Corrections != 1 {
		t.Errorf("status = %+v, want cursor 1 with 1 correction", s)
	}

	mu.Lock()
	on, off := sentAt["aerator_on"], sentAt["aerator_off"]
	mu.Unlock()
	if gap := off.Sub(on); gap < correctionDelay {
		t.Errorf("off sent %v after on, want at least %v", gap, correctionDelay)
	}
	if total := time.Since(startsAt); total < correctionDelay+postDelay {
		t.Errorf("cycle finished after %v, want at least %v", total, correctionDelay+postDelay)
	}
	if got := pub.Payloads(); !reflect.DeepEqual(got, []string{"aerator_on", "aerator_off"}) {
		t.Errorf("published %q, want one on and one off", got)
	}
	if n := len(gw.Calls()); n != 6 {
		t.Errorf("gateway calls = %q, want the 6 calls of one correction", gw.Calls())
	}
}

// ─── Failure Handling ───────────────────────────────────────────────────────

func TestLoop_FailureLeavesCursor(t *testing.T) {
	tests := []struct {
		name          string
		payload       string
		failGateway   map[string]int
		failPublish   string
		wantStage     string
		wantPublished []string
	}{
		{
			name:      "malformed payload",
			payload:   "abc",
			wantStage: StageParse,
		},
		{
			name:      "NaN payload",
			payload:   "NaN",
			wantStage: StageParse,
		},
		{
			name:        "ingest fails",
			payload:     "2",
			failGateway: map[string]int{"UpdateSensorValue": 1},
			wantStage:   StageUpdateSensor,
		},
		{
			name:        "sensor id unresolved",
			payload:     "2",
			failGateway: map[string]int{"ResolveSensorID": 1},
			wantStage:   StageResolveSensor,
		},
		{
			name:        "on log fails",
			payload:     "2",
			failGateway: map[string]int{"AppendLog": 1},
			wantStage:   StageLogOn,
		},
		{
			name:        "on publish fails",
			payload:     "2",
			failPublish: "aerator_on",
			wantStage:   StagePublishOn,
		},
		{
			name:          "target update fails mid-correction",
			payload:       "2",
			failGateway:   map[string]int{"UpdateSensorValue": 2},
			wantStage:     StageUpdateTarget,
			wantPublished: []string{"aerator_on"},
		},
		{
			name:          "off log fails",
			payload:       "2",
			failGateway:   map[string]int{"AppendLog": 2},
			wantStage:     StageLogOff,
			wantPublished: []string{"aerator_on"},
		},
		{
			name:          "device status fails",
			payload:       "2",
			failGateway:   map[string]int{"UpdateDeviceStatus": 1},
			wantStage:     StageDeviceStatus,
			wantPublished: []string{"aerator_on"},
		},
		{
			name:          "off publish fails",
			payload:       "2",
			failPublish:   "aerator_off",
			wantStage:     StagePublishOff,
			wantPublished: []string{"aerator_on"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newMockGateway()
			for k, v := range tt.failGateway {
				gw.failOn[k] = v
			}
			pub := &mockPublisher{failOn: tt.failPublish}
			l := NewLoop(testRegistry(t, oxygenEntry, phEntry), gw, pub, testConfig())
			startLoop(t, l)

			send(t, l, oxygenEntry.Topic, tt.payload)
			s := waitForCycles(t, l, 1)

			if s.Cursor != 0 || s.Busy || s.CyclesAborted != 1 || s.CyclesCompleted != 0 {
				t.Errorf("status = %+v, want cursor 0, idle, 1 aborted", s)
			}
			if s.LastError == "" {
				t.Error("LastError empty after abort")
			}
			got := pub.Payloads()
			if len(got) == 0 {
				got = nil
			}
			if !reflect.DeepEqual(got, tt.wantPublished) {
				t.Errorf("published = %q, want %q", got, tt.wantPublished)
			}
			if v := testutil.ToFloat64(l.metrics.aborts.WithLabelValues("oxygen", tt.wantStage)); v != 1 {
				t.Errorf("aborts{stage=%s} = %v, want 1", tt.wantStage, v)
			}

			// The same topic is still active, so the next reading retries.
			send(t, l, oxygenEntry.Topic, "6")
			s = waitForCycles(t, l, 2)
			if s.Cursor != 1 || s.CyclesCompleted != 1 {
				t.Errorf("after retry status = %+v, want cursor 1 and 1 completed", s)
			}
		})
	}
}

func TestLoop_ShutdownAbortsCycle(t *testing.T) {
	gw := newMockGateway()
	pub := &mockPublisher{}
	cfg := testConfig()
	cfg.CorrectionSettleDelay = time.Hour

	onSent := make(chan struct{}, 1)
	pub.onPub = func(payload string) {
		if payload == "aerator_on" {
			onSent <- struct{}{}
		}
	}

	l := NewLoop(testRegistry(t, oxygenEntry, phEntry), gw, pub, cfg)
	cancel := startLoop(t, l)

	send(t, l, oxygenEntry.Topic, "2")
	<-onSent
	cancel()

	s := waitForCycles(t, l, 1)
	if s.Cursor != 0 || s.CyclesAborted != 1 {
		t.Errorf("status = %+v, want aborted with cursor 0", s)
	}
	if want := []string{"aerator_on"}; !reflect.DeepEqual(pub.Payloads(), want) {
		t.Errorf("published = %q, want %q", pub.Payloads(), want)
	}
}

// ─── Metrics ────────────────────────────────────────────────────────────────

func TestLoop_Metrics(t *testing.T) {
	l := NewLoop(testRegistry(t, oxygenEntry, phEntry), newMockGateway(), &mockPublisher{}, testConfig())
	startLoop(t, l)

	send(t, l, phEntry.Topic, "7") // inactive
	send(t, l, oxygenEntry.Topic, "2")
	waitForCycles(t, l, 1)

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"accepted", testutil.ToFloat64(l.metrics.messages.WithLabelValues("accepted")), 1},
		{"inactive", testutil.ToFloat64(l.metrics.messages.WithLabelValues("inactive_topic")), 1},
		{"corrected", testutil.ToFloat64(l.metrics.cycles.WithLabelValues("oxygen", "corrected")), 1},
		{"aerator on", testutil.ToFloat64(l.metrics.commands.WithLabelValues("aerator", "on")), 1},
		{"aerator off", testutil.ToFloat64(l.metrics.commands.WithLabelValues("aerator", "off")), 1},
		{"last value", testutil.ToFloat64(l.metrics.lastValue.WithLabelValues("oxygen")), 2},
		{"in flight", testutil.ToFloat64(l.metrics.inFlight), 0},
		{"cursor", testutil.ToFloat64(l.metrics.cursor), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

// ─── Helpers Under Test ─────────────────────────────────────────────────────

func TestParseReading(t *testing.T) {
	tests := []struct {
		payload string
		want    float64
		wantErr bool
	}{
		{"25", 25, false},
		{"7.35", 7.35, false},
		{" -1.5 \n", -1.5, false},
		{"1e1", 10, false},
		{"", 0, true},
		{"abc", 0, true},
		{"25abc", 0, true},
		{"Inf", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			got, err := parseReading([]byte(tt.payload))
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedReading) {
					t.Errorf("parseReading(%q) error = %v, want ErrMalformedReading", tt.payload, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("parseReading(%q) = %v, %v; want %v", tt.payload, got, err, tt.want)
			}
		})
	}
}

func TestLogMessages(t *testing.T) {
	if got := turnedOnMessage("aerator", "oxygen", 2, 4); got != "Device aerator turned on to correct oxygen from 2 to 4" {
		t.Errorf("turnedOnMessage = %q", got)
	}
	if got := turnedOnMessage("thermostat", "temperature", 30.5, 28); got != "Device thermostat turned on to correct temperature from 30.5 to 28" {
		t.Errorf("turnedOnMessage = %q", got)
	}
	if got := turnedOffMessage("phController", "ph"); got != "Device phController turned off after correcting ph" {
		t.Errorf("turnedOffMessage = %q", got)
	}
}

func TestWait_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := wait(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("wait() error = %v, want context.Canceled", err)
	}
	if err := wait(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("wait(0) on cancelled ctx error = %v, want context.Canceled", err)
	}
	if err := wait(context.Background(), 0); err != nil {
		t.Errorf("wait(0) error = %v, want nil", err)
	}
}
