package alerts

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelLalu20/hydro-hero/internal/actuator"
	"github.com/AngelLalu20/hydro-hero/internal/clock"
	"github.com/AngelLalu20/hydro-hero/internal/config"
	"github.com/AngelLalu20/hydro-hero/internal/flow"
	"github.com/AngelLalu20/hydro-hero/internal/sensors"
	"github.com/AngelLalu20/hydro-hero/internal/store"
)

type fakeFlow struct {
	s flow.Snapshot
}

func (f *fakeFlow) Snapshot() flow.Snapshot { return f.s }

type fakeSensors struct {
	q sensors.QualitySnapshot
	h sensors.HealthSnapshot
}

func (f *fakeSensors) Quality() sensors.QualitySnapshot { return f.q }
func (f *fakeSensors) Health() sensors.HealthSnapshot   { return f.h }

type harness struct {
	engine  *Engine
	clk     *clock.Manual
	flow    *fakeFlow
	sensors *fakeSensors
	alerts  *store.AlertStore
	events  *store.EventLog
	act     *actuator.Recorder
	closes  int
}

func newHarness(t *testing.T, autoShutdown bool) *harness {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	h := &harness{
		clk:     clock.NewManual(time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC)),
		flow:    &fakeFlow{},
		sensors: &fakeSensors{},
		alerts:  store.NewAlertStore(),
		events:  store.NewEventLog(),
		act:     &actuator.Recorder{},
	}
	// Healthy defaults so unrelated rules stay quiet.
	now := h.clk.Now()
	h.flow.s.LastUsage = now
	h.sensors.q = sensors.QualitySnapshot{TemperatureC: 20, PH: 7.2, Time: now}
	h.sensors.h = sensors.HealthSnapshot{FreeMemory: 100000, SignalDBM: -50, Time: now}

	cfg := config.Default()
	h.engine = NewEngine(Options{
		Thresholds:   cfg.Thresholds,
		Billing:      cfg.Billing,
		AutoShutdown: autoShutdown,
		Clock:        h.clk,
		Log:          log,
		Alerts:       h.alerts,
		Events:       h.events,
		Actuator:     h.act,
		CloseValve:   func() { h.closes++ },
		Flow:         h.flow,
		Sensors:      h.sensors,
	})
	return h
}

// touch keeps the no-usage rule quiet while tests advance the clock.
func (h *harness) touch() {
	h.flow.s.LastUsage = h.clk.Now()
}

func activeOfType(s *store.AlertStore, t store.AlertType) []store.Alert {
	var out []store.Alert
	for _, a := range s.Active() {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

func TestHighFlowFiresOnceWhileActive(t *testing.T) {
	h := newHarness(t, true)

	h.flow.s.RateLPM = 30 // ceiling is 25
	h.engine.Evaluate()
	h.engine.Evaluate()
	h.engine.Evaluate()

	fired := activeOfType(h.alerts, store.AlertHighFlow)
	require.Len(t, fired, 1, "duplicate insertion suppressed while active")
	assert.Equal(t, store.SeverityHigh, fired[0].Severity)

	// Severity >= high triggers the buzzer and notification exactly once.
	assert.Equal(t, []store.Severity{store.SeverityHigh}, h.act.Sounds)
	assert.Len(t, h.act.Notified, 1)
}

func TestHighFlowClearsAndRefires(t *testing.T) {
	h := newHarness(t, true)

	h.flow.s.RateLPM = 30
	h.engine.Evaluate()
	require.Len(t, activeOfType(h.alerts, store.AlertHighFlow), 1)

	h.flow.s.RateLPM = 5
	h.engine.Evaluate()
	assert.Empty(t, activeOfType(h.alerts, store.AlertHighFlow))

	h.flow.s.RateLPM = 30
	h.engine.Evaluate()
	assert.Len(t, activeOfType(h.alerts, store.AlertHighFlow), 1)
}

func TestLeakFiresAfterWindowAndClosesValve(t *testing.T) {
	h := newHarness(t, true)

	// In the leak band: above 0.3, below 25.
	h.flow.s.RateLPM = 2

	h.engine.Evaluate() // timer starts
	assert.Empty(t, activeOfType(h.alerts, store.AlertLeak))

	h.clk.Advance(30 * time.Minute)
	h.touch()
	h.engine.Evaluate()
	assert.Empty(t, activeOfType(h.alerts, store.AlertLeak), "window not yet elapsed")

	h.clk.Advance(31 * time.Minute)
	h.touch()
	h.engine.Evaluate()

	fired := activeOfType(h.alerts, store.AlertLeak)
	require.Len(t, fired, 1)
	assert.Equal(t, store.SeverityCritical, fired[0].Severity)
	assert.Equal(t, 1, h.closes)

	// Still in band: dedup holds and the valve is not re-commanded.
	h.clk.Advance(10 * time.Minute)
	h.touch()
	h.engine.Evaluate()
	assert.Len(t, activeOfType(h.alerts, store.AlertLeak), 1)
	assert.Equal(t, 1, h.closes)
}

func TestLeakTimerResetsWhenLeavingBand(t *testing.T) {
	h := newHarness(t, true)

	h.flow.s.RateLPM = 2
	h.engine.Evaluate()

	// Halfway through the window the flow stops: timer resets, no alert.
	h.clk.Advance(30 * time.Minute)
	h.touch()
	h.flow.s.RateLPM = 0
	h.engine.Evaluate()

	// Back in band: the full window applies again.
	h.flow.s.RateLPM = 2
	h.engine.Evaluate()
	h.clk.Advance(45 * time.Minute)
	h.touch()
	h.engine.Evaluate()

	assert.Empty(t, activeOfType(h.alerts, store.AlertLeak))
	assert.Zero(t, h.closes)
}

func TestLeakAutoShutdownDisabled(t *testing.T) {
	h := newHarness(t, false)

	h.flow.s.RateLPM = 2
	h.engine.Evaluate()
	h.clk.Advance(2 * time.Hour)
	h.touch()
	h.engine.Evaluate()

	require.Len(t, activeOfType(h.alerts, store.AlertLeak), 1)
	assert.Zero(t, h.closes, "auto-shutdown off leaves the valve alone")
}

func TestNoUsageAlert(t *testing.T) {
	h := newHarness(t, true)

	h.engine.Evaluate()
	assert.Empty(t, activeOfType(h.alerts, store.AlertNoUsage))

	// A day with the taps shut.
	h.clk.Advance(25 * time.Hour)
	h.engine.Evaluate()

	fired := activeOfType(h.alerts, store.AlertNoUsage)
	require.Len(t, fired, 1)
	assert.Equal(t, store.SeverityMedium, fired[0].Severity)

	// Usage resumes: cleared.
	h.touch()
	h.flow.s.RateLPM = 3
	h.engine.Evaluate()
	assert.Empty(t, activeOfType(h.alerts, store.AlertNoUsage))
}

func TestSuddenDropSampledIndependently(t *testing.T) {
	h := newHarness(t, true)

	h.flow.s.RateLPM = 10
	h.engine.SampleDrop() // establishes the prior sample

	h.clk.Advance(time.Minute)
	h.flow.s.RateLPM = 2 // 80% drop
	h.engine.SampleDrop()

	fired := activeOfType(h.alerts, store.AlertSuddenDrop)
	require.Len(t, fired, 1)
	assert.Equal(t, store.SeverityHigh, fired[0].Severity)
	assert.InDelta(t, 80.0, fired[0].Value, 1e-9)
}

func TestSuddenDropIgnoresTrivialBase(t *testing.T) {
	h := newHarness(t, true)

	h.flow.s.RateLPM = 0.5 // below the evaluation floor
	h.engine.SampleDrop()

	h.clk.Advance(time.Minute)
	h.flow.s.RateLPM = 0
	h.engine.SampleDrop()

	assert.Empty(t, activeOfType(h.alerts, store.AlertSuddenDrop))
}

func TestQualityRules(t *testing.T) {
	h := newHarness(t, true)

	h.sensors.q.TemperatureC = 45 // above 40
	h.sensors.q.PH = 5.9          // below 6.5
	h.engine.Evaluate()

	assert.Len(t, activeOfType(h.alerts, store.AlertTempRange), 1)
	assert.Len(t, activeOfType(h.alerts, store.AlertPHRange), 1)

	h.sensors.q.TemperatureC = 20
	h.sensors.q.PH = 7.0
	h.engine.Evaluate()

	assert.Empty(t, activeOfType(h.alerts, store.AlertTempRange))
	assert.Empty(t, activeOfType(h.alerts, store.AlertPHRange))
}

func TestQualitySkippedWithoutSnapshot(t *testing.T) {
	h := newHarness(t, true)

	h.sensors.q = sensors.QualitySnapshot{} // zero Time: never sampled
	h.engine.Evaluate()

	assert.Empty(t, activeOfType(h.alerts, store.AlertTempRange))
	assert.Empty(t, activeOfType(h.alerts, store.AlertPHRange))
}

func TestBudgetRule(t *testing.T) {
	h := newHarness(t, true)

	// Default budget 45/month: daily share 1.5.
	h.flow.s.DailyCost = 2.0
	h.engine.Evaluate()

	require.Len(t, activeOfType(h.alerts, store.AlertBudget), 1)
	assert.True(t, h.engine.BudgetExceeded())

	h.flow.s.DailyCost = 0.5
	h.engine.Evaluate()
	assert.Empty(t, activeOfType(h.alerts, store.AlertBudget))
	assert.False(t, h.engine.BudgetExceeded())
}

func TestSystemHealthRules(t *testing.T) {
	h := newHarness(t, true)

	h.sensors.h.FreeMemory = 10000 // floor is 20000
	h.sensors.h.SignalDBM = -90    // floor is -80
	h.engine.Evaluate()

	mem := activeOfType(h.alerts, store.AlertLowMemory)
	sig := activeOfType(h.alerts, store.AlertWeakSignal)
	require.Len(t, mem, 1)
	require.Len(t, sig, 1)
	assert.Equal(t, store.SeverityHigh, mem[0].Severity)
	assert.Equal(t, store.SeverityMedium, sig[0].Severity)
}

func TestRaiseLogsEvent(t *testing.T) {
	h := newHarness(t, true)

	h.flow.s.RateLPM = 30
	h.engine.Evaluate()

	var raised int
	for _, e := range h.events.Events() {
		if e.Type == store.EventAlertRaised {
			raised++
		}
	}
	assert.Equal(t, 1, raised)
}
