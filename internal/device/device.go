// Package device owns the application-state aggregate: every pipeline
// component, the boot-time task list, the valve state and the operations
// exposed to the presentation layer. There are no package-level globals;
// collaborators receive the Device and read snapshots.
package device

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AngelLalu20/hydro-hero/internal/actuator"
	"github.com/AngelLalu20/hydro-hero/internal/alerts"
	"github.com/AngelLalu20/hydro-hero/internal/clock"
	"github.com/AngelLalu20/hydro-hero/internal/config"
	"github.com/AngelLalu20/hydro-hero/internal/flow"
	"github.com/AngelLalu20/hydro-hero/internal/predict"
	"github.com/AngelLalu20/hydro-hero/internal/pulse"
	"github.com/AngelLalu20/hydro-hero/internal/sched"
	"github.com/AngelLalu20/hydro-hero/internal/sensors"
	"github.com/AngelLalu20/hydro-hero/internal/stats"
	"github.com/AngelLalu20/hydro-hero/internal/store"
	"github.com/AngelLalu20/hydro-hero/internal/zones"
)

// Status is the aggregate summary served by the dashboard and the console.
type Status struct {
	ValveOpen      bool             `json:"valve_open"`
	TimeSynced     bool             `json:"time_synced"`
	ActiveAlerts   int              `json:"active_alerts"`
	Unacknowledged int              `json:"unacknowledged_alerts"`
	BudgetAlert    bool             `json:"budget_alert"`
	UptimeSeconds  float64          `json:"uptime_seconds"`
	Flow           flow.Snapshot    `json:"flow"`
	Statistics     stats.Snapshot   `json:"statistics"`
	Prediction     predict.Snapshot `json:"prediction"`
	Zones          []zones.Status   `json:"zones"`
}

// Device is the owned aggregate. Construct once at boot with New.
type Device struct {
	cfg *config.Config
	log *logrus.Logger
	clk clock.Clock
	act actuator.Actuator

	counter   *pulse.Counter
	flow      *flow.Updater
	stats     *stats.Engine
	predict   *predict.Engine
	engine    *alerts.Engine
	zones     *zones.Monitor
	alerts    *store.AlertStore
	events    *store.EventLog
	sampler   *sensors.Sampler
	scheduler *sched.Scheduler

	mu         sync.Mutex
	valveOpen  bool
	timeSynced atomic.Bool
	booted     time.Time
}

// New builds and wires the whole pipeline and registers the static task
// list. The valve is commanded closed before anything else runs; that is
// the safety default.
func New(cfg *config.Config, clk clock.Clock, act actuator.Actuator, src sensors.Source, log *logrus.Logger) *Device {
	d := &Device{
		cfg:    cfg,
		log:    log,
		clk:    clk,
		act:    act,
		alerts: store.NewAlertStore(),
		events: store.NewEventLog(),
		booted: clk.Now(),
	}

	d.counter = pulse.NewCounter(cfg.Meter.PulsesPerLitre)
	d.flow = flow.NewUpdater(d.counter, clk, cfg.Billing.CostPerLitre, d.timeSynced.Load, log)
	d.stats = stats.NewEngine()
	d.predict = predict.NewEngine(clk, d.timeSynced.Load)
	d.sampler = sensors.NewSampler(src, clk, d.events, log)

	d.flow.OnDayEnd(func(litres float64, now time.Time) {
		d.stats.RecordDay(litres)
		d.predict.RecordDay(litres)
		d.events.Append(store.Event{
			Type:     store.EventPeriodReset,
			Message:  fmt.Sprintf("daily total closed at %.1f litres", litres),
			Time:     now,
			Priority: store.SeverityLow,
			Source:   "flow",
		})
	})

	d.engine = alerts.NewEngine(alerts.Options{
		Thresholds:   cfg.Thresholds,
		Billing:      cfg.Billing,
		AutoShutdown: cfg.Valve.AutoShutdown,
		Clock:        clk,
		Log:          log,
		Alerts:       d.alerts,
		Events:       d.events,
		Actuator:     act,
		CloseValve:   func() { d.SetValve(false, "leak auto-shutdown") },
		Flow:         d.flow,
		Sensors:      d.sampler,
	})

	d.zones = zones.NewMonitor(cfg.Zones, clk, d.engine, d.sampler.Zones)

	d.scheduler = sched.New(clk, log)
	d.scheduler.OnPanic(func(name string, v any) {
		d.events.Append(store.Event{
			Type:     store.EventTaskPanic,
			Message:  fmt.Sprintf("task %s panicked: %v", name, v),
			Time:     clk.Now(),
			Priority: store.SeverityHigh,
			Source:   "scheduler",
		})
	})
	d.registerTasks()

	// Safety default before the first dispatch.
	act.SetValve(false)
	d.events.Append(store.Event{
		Type:     store.EventBoot,
		Message:  "device booted, valve closed",
		Time:     d.booted,
		Priority: store.SeverityLow,
		Source:   "device",
	})

	return d
}

// registerTasks builds the static task list. Membership is fixed after
// boot; only enabled/lastRun mutate from here on.
func (d *Device) registerTasks() {
	// Statistics sampling is deliberately sequenced after the flow tick
	// inside one task body; tasks must not rely on sibling ordering.
	d.scheduler.Register("flow-update", d.cfg.Meter.TickInterval(), func() {
		d.flow.Tick()
		d.stats.AddSample(d.flow.Snapshot().RateLPM)
	})
	d.scheduler.Register("alert-engine", 5*time.Second, d.engine.Evaluate)
	d.scheduler.Register("drop-sampler", time.Minute, d.engine.SampleDrop)
	d.scheduler.Register("zone-monitor", 30*time.Second, d.zones.Check)
	d.scheduler.Register("rollover", time.Minute, d.flow.Rollover)
	d.scheduler.Register("prediction", time.Hour, d.predict.Recompute)
	d.scheduler.Register("led-status", 2*time.Second, d.refreshLED)
}

func (d *Device) refreshLED() {
	highest, any := d.alerts.HighestActiveSeverity()
	rate := d.flow.Snapshot().RateLPM
	d.act.SetStatusLED(actuator.PatternFor(highest, any, rate, d.cfg.Thresholds.MaxFlowLPM))
}

// Run starts the external sampler and drives the cooperative loop until
// ctx is cancelled.
func (d *Device) Run(ctx context.Context) error {
	if err := d.sampler.Start(d.cfg.Sampler.Spec); err != nil {
		return err
	}
	defer d.sampler.Stop()

	return d.scheduler.Run(ctx, 100*time.Millisecond)
}

// Counter exposes the pulse counter; the sensor edge callback calls
// Counter().Pulse() and nothing else.
func (d *Device) Counter() *pulse.Counter { return d.counter }

// Scheduler exposes the dispatcher for harnesses that drive ticks
// manually.
func (d *Device) Scheduler() *sched.Scheduler { return d.scheduler }

// Sampler exposes the external sensor collaborator.
func (d *Device) Sampler() *sensors.Sampler { return d.sampler }

// Events returns the audit trail.
func (d *Device) Events() []store.Event { return d.events.Events() }

// EventLog exposes the audit log for boot-time collaborators.
func (d *Device) EventLog() *store.EventLog { return d.events }

// Alerts returns all retained alert records.
func (d *Device) Alerts() []store.Alert { return d.alerts.All() }

// ActiveAlerts returns the active alert records.
func (d *Device) ActiveAlerts() []store.Alert { return d.alerts.Active() }

// FlowSnapshot returns the current flow state.
func (d *Device) FlowSnapshot() flow.Snapshot { return d.flow.Snapshot() }

// StatisticsSnapshot returns the current running statistics.
func (d *Device) StatisticsSnapshot() stats.Snapshot { return d.stats.Snapshot() }

// PredictionSnapshot returns the current forecast.
func (d *Device) PredictionSnapshot() predict.Snapshot { return d.predict.Snapshot() }

// ZoneSnapshot returns the per-zone status list.
func (d *Device) ZoneSnapshot() []zones.Status { return d.zones.Snapshot() }

// MarkTimeSynced records that wall-calendar time is trustworthy, enabling
// the hourly-usage bucket and the seasonal forecast factor.
func (d *Device) MarkTimeSynced() {
	if d.timeSynced.Swap(true) {
		return
	}
	d.events.Append(store.Event{
		Type:     store.EventTimeSynced,
		Message:  "wall-clock time synchronized",
		Time:     d.clk.Now(),
		Priority: store.SeverityLow,
		Source:   "device",
	})
	d.log.Info("time synchronized")
}

// TimeSynced reports whether calendar-gated logic is enabled.
func (d *Device) TimeSynced() bool { return d.timeSynced.Load() }

// ValveOpen reports the last commanded valve state.
func (d *Device) ValveOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.valveOpen
}

// SetValve commands the valve and records the change. Idempotent: a
// repeated command in the same state is dropped.
func (d *Device) SetValve(open bool, reason string) {
	d.mu.Lock()
	if d.valveOpen == open {
		d.mu.Unlock()
		return
	}
	d.valveOpen = open
	d.mu.Unlock()

	d.act.SetValve(open)
	state := "closed"
	if open {
		state = "open"
	}
	d.events.Append(store.Event{
		Type:     store.EventValve,
		Message:  fmt.Sprintf("valve %s (%s)", state, reason),
		Time:     d.clk.Now(),
		Priority: store.SeverityMedium,
		Source:   "device",
	})
	d.log.WithFields(logrus.Fields{"open": open, "reason": reason}).Info("valve state changed")
}

// ToggleValve flips the valve and returns the new state.
func (d *Device) ToggleValve() bool {
	next := !d.ValveOpen()
	d.SetValve(next, "operator toggle")
	return next
}

// ResetCounters zeroes consumption totals and running statistics.
func (d *Device) ResetCounters() {
	d.flow.ResetCounters()
	d.stats.Reset()
	d.events.Append(store.Event{
		Type:     store.EventCounterReset,
		Message:  "consumption counters reset by operator",
		Time:     d.clk.Now(),
		Priority: store.SeverityMedium,
		Source:   "device",
	})
}

// AcknowledgeAlert marks a single alert by id.
func (d *Device) AcknowledgeAlert(id string) bool {
	return d.alerts.Acknowledge(id)
}

// AcknowledgeAllAlerts marks every active alert and returns the count.
func (d *Device) AcknowledgeAllAlerts() int {
	return d.alerts.AcknowledgeAll()
}

// StatusSummary assembles the aggregate status view.
func (d *Device) StatusSummary() Status {
	active := d.alerts.Active()
	unacked := 0
	for _, a := range active {
		if !a.Acknowledged {
			unacked++
		}
	}

	return Status{
		ValveOpen:      d.ValveOpen(),
		TimeSynced:     d.TimeSynced(),
		ActiveAlerts:   len(active),
		Unacknowledged: unacked,
		BudgetAlert:    d.engine.BudgetExceeded(),
		UptimeSeconds:  d.clk.Now().Sub(d.booted).Seconds(),
		Flow:           d.flow.Snapshot(),
		Statistics:     d.stats.Snapshot(),
		Prediction:     d.predict.Snapshot(),
		Zones:          d.zones.Snapshot(),
	}
}
