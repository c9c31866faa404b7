package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunningAverage(t *testing.T) {
	e := NewEngine()

	e.AddSample(2)
	e.AddSample(4)
	e.AddSample(6)

	s := e.Snapshot()
	assert.InDelta(t, 4.0, s.Average, 1e-9)
	assert.Equal(t, int64(3), s.SampleCount)
}

func TestPeakAndMin(t *testing.T) {
	e := NewEngine()

	// Idle zero-flow readings must not seed the minimum.
	e.AddSample(0)
	e.AddSample(8)
	e.AddSample(3)
	e.AddSample(0)
	e.AddSample(12)

	s := e.Snapshot()
	assert.InDelta(t, 12.0, s.Peak, 1e-9)
	assert.InDelta(t, 3.0, s.Min, 1e-9)
}

func TestPercentilesRequireFullBatch(t *testing.T) {
	e := NewEngine()

	for i := 1; i <= SampleWindow-1; i++ {
		e.AddSample(float64(i))
	}
	assert.False(t, e.Snapshot().PercentilesValid, "99 samples are not a batch")

	e.AddSample(float64(SampleWindow))

	s := e.Snapshot()
	require.True(t, s.PercentilesValid)
	// Samples 1..100: rank extraction from the sorted window.
	assert.InDelta(t, 10.0, s.P10, 1e-9)
	assert.InDelta(t, 25.0, s.P25, 1e-9)
	assert.InDelta(t, 50.0, s.P50, 1e-9)
	assert.InDelta(t, 75.0, s.P75, 1e-9)
	assert.InDelta(t, 90.0, s.P90, 1e-9)
}

func TestStalePercentilesRetainedBetweenBatches(t *testing.T) {
	e := NewEngine()

	for i := 1; i <= SampleWindow; i++ {
		e.AddSample(float64(i))
	}
	first := e.Snapshot()

	// Half of the next batch: values change but percentiles hold.
	for i := 0; i < SampleWindow/2; i++ {
		e.AddSample(1000)
	}
	second := e.Snapshot()
	assert.Equal(t, first.P50, second.P50)
	assert.True(t, second.PercentilesValid)

	// Completing the batch recomputes.
	for i := 0; i < SampleWindow/2; i++ {
		e.AddSample(1000)
	}
	third := e.Snapshot()
	assert.InDelta(t, 1000.0, third.P50, 1e-9)
}

func TestWeeklyAverageAndTrend(t *testing.T) {
	e := NewEngine()

	e.RecordDay(100)
	s := e.Snapshot()
	assert.InDelta(t, 100.0, s.WeeklyAvgLitres, 1e-9)
	assert.Zero(t, s.TrendPercent, "no prior average to trend against")

	e.RecordDay(200)
	s = e.Snapshot()
	assert.InDelta(t, 150.0, s.WeeklyAvgLitres, 1e-9)
	// (150 - 100) / 100 * 100
	assert.InDelta(t, 50.0, s.TrendPercent, 1e-9)
	assert.Equal(t, 2, s.DaysRecorded)
}

func TestDailyRingKeepsSevenDays(t *testing.T) {
	e := NewEngine()

	for i := 0; i < 10; i++ {
		e.RecordDay(float64(i * 10))
	}

	s := e.Snapshot()
	assert.Equal(t, DailyWindow, s.DaysRecorded)
	// Days 3..9 remain: average of 30..90.
	assert.InDelta(t, 60.0, s.WeeklyAvgLitres, 1e-9)
}

func TestReset(t *testing.T) {
	e := NewEngine()

	for i := 1; i <= SampleWindow; i++ {
		e.AddSample(float64(i))
	}
	e.RecordDay(50)

	e.Reset()

	s := e.Snapshot()
	assert.Zero(t, s.Average)
	assert.Zero(t, s.SampleCount)
	assert.False(t, s.PercentilesValid)
	assert.Zero(t, s.WeeklyAvgLitres)
}
