// Package flow turns drained pulse counts into rate and consumption state.
//
// The Updater is driven by the cooperative scheduler at a nominal 1 s
// cadence but always converts with the actual wall-clock delta since the
// previous tick, so dispatch jitter does not bias litres-per-second.
package flow

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AngelLalu20/hydro-hero/internal/clock"
	"github.com/AngelLalu20/hydro-hero/internal/pulse"
)

// noiseFloorLPM is the minimum rate treated as real usage. Anything below
// is sensor noise and does not refresh the last-usage timestamp.
const noiseFloorLPM = 0.05

// Snapshot is the read-only view of flow state handed to collaborators.
type Snapshot struct {
	FlowLPS       float64    `json:"flow_lps"`
	RateLPM       float64    `json:"rate_lpm"`
	TotalLitres   float64    `json:"total_litres"`
	DailyLitres   float64    `json:"daily_litres"`
	WeeklyLitres  float64    `json:"weekly_litres"`
	MonthlyLitres float64    `json:"monthly_litres"`
	YearlyLitres  float64    `json:"yearly_litres"`
	DailyCost     float64    `json:"daily_cost"`
	MonthlyCost   float64    `json:"monthly_cost"`
	HourlyUsage   [24]float64 `json:"hourly_usage"`
	LastUsage     time.Time  `json:"last_usage"`
	DayIndex      int        `json:"day_index"`
}

// DayEndFunc observes a completed day's total just before the daily
// counter resets.
type DayEndFunc func(dailyLitres float64, now time.Time)

// Updater owns all consumption totals. All methods run on the cooperative
// main context except Snapshot, which the presentation layer may call from
// any goroutine.
type Updater struct {
	mu      sync.Mutex
	counter *pulse.Counter
	clk     clock.Clock
	log     *logrus.Logger

	costPerLitre float64
	timeSynced   func() bool

	state     Snapshot
	lastTick  time.Time
	dayStart  time.Time
	onDayEnd  []DayEndFunc
}

// NewUpdater wires the updater to its pulse counter. timeSynced gates
// calendar-dependent work (the hourly usage bucket); pass a func returning
// false until wall time is available.
func NewUpdater(counter *pulse.Counter, clk clock.Clock, costPerLitre float64, timeSynced func() bool, log *logrus.Logger) *Updater {
	if timeSynced == nil {
		timeSynced = func() bool { return false }
	}
	return &Updater{
		counter:      counter,
		clk:          clk,
		log:          log,
		costPerLitre: costPerLitre,
		timeSynced:   timeSynced,
	}
}

// OnDayEnd registers a day-boundary observer. Boot-time only.
func (u *Updater) OnDayEnd(fn DayEndFunc) {
	u.onDayEnd = append(u.onDayEnd, fn)
}

// Tick drains the pulse counter and folds the volume into every
// granularity. Zero pulses is a normal reading, reported as zero flow.
func (u *Updater) Tick() {
	now := u.clk.Now()
	edges := u.counter.Drain()

	u.mu.Lock()
	defer u.mu.Unlock()

	if u.lastTick.IsZero() {
		// First tick establishes the baseline; the drained edges have no
		// elapsed window to convert against.
		u.lastTick = now
		u.dayStart = now
		return
	}

	elapsed := now.Sub(u.lastTick)
	u.lastTick = now
	if elapsed <= 0 {
		return
	}

	volume := u.counter.Volume(edges)
	lps := volume / elapsed.Seconds()
	u.state.FlowLPS = lps
	u.state.RateLPM = lps * 60

	u.state.TotalLitres += volume
	u.state.DailyLitres += volume
	u.state.WeeklyLitres += volume
	u.state.MonthlyLitres += volume
	u.state.YearlyLitres += volume

	if u.state.RateLPM > noiseFloorLPM {
		u.state.LastUsage = now
	}
	if u.timeSynced() {
		u.state.HourlyUsage[now.Hour()] += volume
	}
}

// Rollover closes out elapsed 24 h periods. Driven by a scheduled task on
// a 1 minute cadence; boundaries are measured from the first tick, so the
// appliance does not depend on calendar sync for resets.
func (u *Updater) Rollover() {
	now := u.clk.Now()

	u.mu.Lock()
	if u.dayStart.IsZero() || now.Sub(u.dayStart) < 24*time.Hour {
		u.mu.Unlock()
		return
	}

	daily := u.state.DailyLitres
	u.dayStart = u.dayStart.Add(24 * time.Hour)
	u.state.DayIndex++
	day := u.state.DayIndex

	u.state.DailyLitres = 0
	u.state.HourlyUsage = [24]float64{}
	if day%7 == 0 {
		u.state.WeeklyLitres = 0
	}
	if day%30 == 0 {
		u.state.MonthlyLitres = 0
	}
	if day%365 == 0 {
		u.state.YearlyLitres = 0
	}
	u.mu.Unlock()

	// Observers run outside the lock; they read their own state, not ours.
	for _, fn := range u.onDayEnd {
		fn(daily, now)
	}

	u.log.WithFields(logrus.Fields{
		"day":    day,
		"litres": daily,
	}).Info("daily rollover")
}

// Snapshot returns a copy of the current state with derived costs filled
// in. Cost is plain multiplication; it is computed here so the totals stay
// authoritative.
func (u *Updater) Snapshot() Snapshot {
	u.mu.Lock()
	defer u.mu.Unlock()

	s := u.state
	s.DailyCost = s.DailyLitres * u.costPerLitre
	s.MonthlyCost = s.MonthlyLitres * u.costPerLitre
	return s
}

// ResetCounters zeroes every total and the instantaneous rate. Operator
// initiated; period boundaries are unaffected.
func (u *Updater) ResetCounters() {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.state = Snapshot{}
	u.counter.Drain()
	u.log.Info("consumption counters reset")
}
