// Package alerts evaluates the detection rules over flow, statistics and
// sensor snapshots. Every rule is independent and carries its own
// hysteresis state; all of them report through a single creation primitive
// that handles dedup and actuator side effects.
package alerts

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AngelLalu20/hydro-hero/internal/actuator"
	"github.com/AngelLalu20/hydro-hero/internal/clock"
	"github.com/AngelLalu20/hydro-hero/internal/config"
	"github.com/AngelLalu20/hydro-hero/internal/flow"
	"github.com/AngelLalu20/hydro-hero/internal/sensors"
	"github.com/AngelLalu20/hydro-hero/internal/store"
)

// minDropBaseLPM is the smallest prior rate the sudden-drop rule will
// evaluate against; below this the percentage is dominated by noise.
const minDropBaseLPM = 1.0

// FlowReader provides the current flow snapshot.
type FlowReader interface {
	Snapshot() flow.Snapshot
}

// SensorReader provides the last-good external sensor snapshots.
type SensorReader interface {
	Quality() sensors.QualitySnapshot
	Health() sensors.HealthSnapshot
}

// Engine runs the detection rules. Evaluate is dispatched by the
// cooperative scheduler every 5 s; SampleDrop on its own 60 s cadence.
type Engine struct {
	th           config.ThresholdConfig
	billing      config.BillingConfig
	autoShutdown bool

	clk    clock.Clock
	log    *logrus.Logger
	alerts *store.AlertStore
	events *store.EventLog
	act    actuator.Actuator

	// closeValve commands the device valve shut on a confirmed leak.
	closeValve func()

	flow    FlowReader
	sensors SensorReader

	started time.Time

	// Per-rule hysteresis. Only touched from the cooperative context.
	leakStart  time.Time
	prevRate   float64
	prevValid  bool
	budgetOver bool
}

// Options carries the boot-time wiring for the engine.
type Options struct {
	Thresholds   config.ThresholdConfig
	Billing      config.BillingConfig
	AutoShutdown bool
	Clock        clock.Clock
	Log          *logrus.Logger
	Alerts       *store.AlertStore
	Events       *store.EventLog
	Actuator     actuator.Actuator
	CloseValve   func()
	Flow         FlowReader
	Sensors      SensorReader
}

func NewEngine(opts Options) *Engine {
	return &Engine{
		th:           opts.Thresholds,
		billing:      opts.Billing,
		autoShutdown: opts.AutoShutdown,
		clk:          opts.Clock,
		log:          opts.Log,
		alerts:       opts.Alerts,
		events:       opts.Events,
		act:          opts.Actuator,
		closeValve:   opts.CloseValve,
		flow:         opts.Flow,
		sensors:      opts.Sensors,
		started:      opts.Clock.Now(),
	}
}

// Evaluate runs every rule once. Rules that find their condition cleared
// deactivate their alert type, re-arming dedup for the next firing.
func (e *Engine) Evaluate() {
	now := e.clk.Now()
	fs := e.flow.Snapshot()

	e.checkHighFlow(fs, now)
	e.checkLeak(fs, now)
	e.checkNoUsage(fs, now)
	e.checkQuality(now)
	e.checkBudget(fs, now)
	e.checkHealth(now)
}

func (e *Engine) checkHighFlow(fs flow.Snapshot, now time.Time) {
	if fs.RateLPM > e.th.MaxFlowLPM {
		e.Raise(store.Alert{
			Type:      store.AlertHighFlow,
			Value:     fs.RateLPM,
			Threshold: e.th.MaxFlowLPM,
			Time:      now,
			Severity:  store.SeverityHigh,
		})
		return
	}
	e.Clear(store.AlertHighFlow, "")
}

// checkLeak is the edge-triggered window timer: entering the band between
// the leak threshold and the high-flow ceiling starts it, leaving the band
// resets it to idle, and staying in-band past the anomaly window fires.
func (e *Engine) checkLeak(fs flow.Snapshot, now time.Time) {
	inBand := fs.RateLPM > e.th.LeakFlowLPM && fs.RateLPM < e.th.MaxFlowLPM
	if !inBand {
		e.leakStart = time.Time{}
		e.Clear(store.AlertLeak, "")
		return
	}

	if e.leakStart.IsZero() {
		e.leakStart = now
		return
	}

	if now.Sub(e.leakStart) < e.th.AnomalyWindow() {
		return
	}

	_, inserted := e.Raise(store.Alert{
		Type:      store.AlertLeak,
		Value:     fs.RateLPM,
		Threshold: e.th.LeakFlowLPM,
		Time:      now,
		Severity:  store.SeverityCritical,
	})
	if inserted && e.autoShutdown && e.closeValve != nil {
		e.closeValve()
	}
}

func (e *Engine) checkNoUsage(fs flow.Snapshot, now time.Time) {
	last := fs.LastUsage
	if last.IsZero() {
		last = e.started
	}
	idle := now.Sub(last)
	if idle >= e.th.NoUsageWindow() {
		e.Raise(store.Alert{
			Type:      store.AlertNoUsage,
			Value:     idle.Hours(),
			Threshold: float64(e.th.NoUsageHours),
			Time:      now,
			Severity:  store.SeverityMedium,
		})
		return
	}
	e.Clear(store.AlertNoUsage, "")
}

func (e *Engine) checkQuality(now time.Time) {
	q := e.sensors.Quality()
	if q.Time.IsZero() {
		// No quality snapshot yet; skip rather than judge zero values.
		return
	}

	if q.TemperatureC < e.th.TempMinC || q.TemperatureC > e.th.TempMaxC {
		e.Raise(store.Alert{
			Type:     store.AlertTempRange,
			Value:    q.TemperatureC,
			Time:     now,
			Severity: store.SeverityHigh,
		})
	} else {
		e.Clear(store.AlertTempRange, "")
	}

	if q.PH < e.th.PHMin || q.PH > e.th.PHMax {
		e.Raise(store.Alert{
			Type:     store.AlertPHRange,
			Value:    q.PH,
			Time:     now,
			Severity: store.SeverityHigh,
		})
	} else {
		e.Clear(store.AlertPHRange, "")
	}
}

func (e *Engine) checkBudget(fs flow.Snapshot, now time.Time) {
	share := e.billing.MonthlyBudget / 30
	if share > 0 && fs.DailyCost > share {
		e.budgetOver = true
		e.Raise(store.Alert{
			Type:      store.AlertBudget,
			Value:     fs.DailyCost,
			Threshold: share,
			Time:      now,
			Severity:  store.SeverityMedium,
		})
		return
	}
	e.budgetOver = false
	e.Clear(store.AlertBudget, "")
}

func (e *Engine) checkHealth(now time.Time) {
	h := e.sensors.Health()
	if h.Time.IsZero() {
		return
	}

	if h.FreeMemory < e.th.MinFreeMemory {
		e.Raise(store.Alert{
			Type:      store.AlertLowMemory,
			Value:     float64(h.FreeMemory),
			Threshold: float64(e.th.MinFreeMemory),
			Time:      now,
			Severity:  store.SeverityHigh,
		})
	} else {
		e.Clear(store.AlertLowMemory, "")
	}

	if h.SignalDBM < e.th.MinSignalDBM {
		e.Raise(store.Alert{
			Type:      store.AlertWeakSignal,
			Value:     float64(h.SignalDBM),
			Threshold: float64(e.th.MinSignalDBM),
			Time:      now,
			Severity:  store.SeverityMedium,
		})
	} else {
		e.Clear(store.AlertWeakSignal, "")
	}
}

// SampleDrop compares the current rate against the one recorded a minute
// ago. Dispatched on its own 60 s cadence, independent of Evaluate.
func (e *Engine) SampleDrop() {
	now := e.clk.Now()
	cur := e.flow.Snapshot().RateLPM

	prev, valid := e.prevRate, e.prevValid
	e.prevRate = cur
	e.prevValid = true

	if !valid || prev < minDropBaseLPM {
		return
	}

	drop := (prev - cur) / prev * 100
	if drop >= e.th.SuddenDropPercent {
		e.Raise(store.Alert{
			Type:      store.AlertSuddenDrop,
			Value:     drop,
			Threshold: e.th.SuddenDropPercent,
			Time:      now,
			Severity:  store.SeverityHigh,
		})
		return
	}
	e.Clear(store.AlertSuddenDrop, "")
}

// BudgetExceeded reports the budget flag consumed by the presentation
// layer.
func (e *Engine) BudgetExceeded() bool { return e.budgetOver }

// Raise is the single alert-creation primitive. Dedup happens in the
// store: an equivalent active record suppresses insertion and no side
// effects run. Severity high and above additionally sounds the buzzer and
// dispatches an external notification, as commands to the actuator.
func (e *Engine) Raise(a store.Alert) (store.Alert, bool) {
	stored, inserted := e.alerts.Add(a)
	if !inserted {
		return stored, false
	}

	e.log.WithFields(logrus.Fields{
		"type":     stored.Type,
		"zone":     stored.Zone,
		"severity": stored.Severity.String(),
	}).Warn(stored.Message())

	e.events.Append(store.Event{
		Type:     store.EventAlertRaised,
		Message:  stored.Message(),
		Time:     stored.Time,
		Priority: stored.Severity,
		Source:   "alerts",
	})

	if stored.Severity >= store.SeverityHigh {
		e.act.SoundAlert(stored.Severity)
		e.act.Notify(stored)
	}
	return stored, true
}

// Clear deactivates alerts of the given type and zone. Quiet when nothing
// was active.
func (e *Engine) Clear(t store.AlertType, zone string) {
	if n := e.alerts.Deactivate(t, zone); n > 0 {
		e.events.Append(store.Event{
			Type:     store.EventAlertCleared,
			Message:  string(t) + " condition cleared",
			Time:     e.clk.Now(),
			Priority: store.SeverityLow,
			Source:   "alerts",
		})
	}
}
