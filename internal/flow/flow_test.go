package flow

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelLalu20/hydro-hero/internal/clock"
	"github.com/AngelLalu20/hydro-hero/internal/pulse"
)

func newTestUpdater(t *testing.T, synced bool) (*Updater, *pulse.Counter, *clock.Manual) {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	clk := clock.NewManual(time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC))
	counter := pulse.NewCounter(450)
	u := NewUpdater(counter, clk, 0.004, func() bool { return synced }, log)
	return u, counter, clk
}

func TestRateConversion(t *testing.T) {
	u, counter, clk := newTestUpdater(t, false)

	u.Tick() // baseline

	for i := 0; i < 900; i++ {
		counter.Pulse()
	}
	clk.Advance(60 * time.Second)
	u.Tick()

	s := u.Snapshot()
	// 900 pulses / 450 ppl = 2 L over 60 s.
	assert.InDelta(t, 2.0/60.0, s.FlowLPS, 1e-9)
	assert.InDelta(t, 2.0, s.RateLPM, 1e-9)
	assert.InDelta(t, 2.0, s.TotalLitres, 1e-9)
	assert.InDelta(t, 2.0, s.DailyLitres, 1e-9)
}

func TestElapsedUsesWallClockNotNominal(t *testing.T) {
	u, counter, clk := newTestUpdater(t, false)

	u.Tick()

	// Scheduler stalled: 2 s elapsed instead of the nominal 1 s.
	for i := 0; i < 450; i++ {
		counter.Pulse()
	}
	clk.Advance(2 * time.Second)
	u.Tick()

	// 1 L over 2 s, not over 1 s.
	assert.InDelta(t, 0.5, u.Snapshot().FlowLPS, 1e-9)
}

func TestZeroPulsesIsZeroFlow(t *testing.T) {
	u, _, clk := newTestUpdater(t, false)

	u.Tick()
	clk.Advance(time.Second)
	u.Tick()

	s := u.Snapshot()
	assert.Zero(t, s.FlowLPS)
	assert.Zero(t, s.RateLPM)
	assert.Zero(t, s.TotalLitres)
}

func addLitres(u *Updater, counter *pulse.Counter, clk *clock.Manual, litres float64) {
	for i := 0; i < int(litres*450); i++ {
		counter.Pulse()
	}
	clk.Advance(time.Second)
	u.Tick()
}

func TestPeriodRollovers(t *testing.T) {
	u, counter, clk := newTestUpdater(t, false)
	u.Tick()

	var dayEnds []float64
	u.OnDayEnd(func(litres float64, now time.Time) {
		dayEnds = append(dayEnds, litres)
	})

	addLitres(u, counter, clk, 10)
	require.InDelta(t, 10, u.Snapshot().DailyLitres, 1e-6)

	// Before the boundary nothing resets.
	clk.Advance(23 * time.Hour)
	u.Rollover()
	assert.InDelta(t, 10, u.Snapshot().DailyLitres, 1e-6)

	// Past 24 h: daily resets, total survives, the observer saw the
	// closed day.
	clk.Advance(2 * time.Hour)
	u.Rollover()
	s := u.Snapshot()
	assert.Zero(t, s.DailyLitres)
	assert.InDelta(t, 10, s.TotalLitres, 1e-6)
	require.Len(t, dayEnds, 1)
	assert.InDelta(t, 10, dayEnds[0], 1e-6)

	// Six more day boundaries: weekly resets at day 7.
	for day := 2; day <= 7; day++ {
		addLitres(u, counter, clk, 5)
		clk.Advance(25 * time.Hour)
		u.Rollover()
	}
	s = u.Snapshot()
	assert.Zero(t, s.WeeklyLitres)
	assert.NotZero(t, s.TotalLitres)
	assert.Equal(t, 7, s.DayIndex)
}

func TestMonthlyResetClearsCost(t *testing.T) {
	u, counter, clk := newTestUpdater(t, false)
	u.Tick()

	for day := 1; day <= 30; day++ {
		addLitres(u, counter, clk, 2)
		clk.Advance(25 * time.Hour)
		u.Rollover()
	}

	s := u.Snapshot()
	assert.Zero(t, s.MonthlyLitres)
	assert.Zero(t, s.MonthlyCost)
	assert.NotZero(t, s.TotalLitres)
}

func TestHourlyBucketGatedOnTimeSync(t *testing.T) {
	unsynced, counter, clk := newTestUpdater(t, false)
	unsynced.Tick()
	addLitres(unsynced, counter, clk, 1)

	sum := 0.0
	for _, v := range unsynced.Snapshot().HourlyUsage {
		sum += v
	}
	assert.Zero(t, sum, "hourly bucket requires calendar time")

	synced, counter2, clk2 := newTestUpdater(t, true)
	synced.Tick()
	addLitres(synced, counter2, clk2, 1)

	s := synced.Snapshot()
	assert.InDelta(t, 1.0, s.HourlyUsage[clk2.Now().Hour()], 1e-6)
}

func TestResetCountersClearsEverything(t *testing.T) {
	u, counter, clk := newTestUpdater(t, false)
	u.Tick()
	addLitres(u, counter, clk, 3)

	u.ResetCounters()

	s := u.Snapshot()
	assert.Zero(t, s.TotalLitres)
	assert.Zero(t, s.DailyLitres)
	assert.Zero(t, s.RateLPM)
}
