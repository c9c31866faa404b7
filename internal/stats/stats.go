// Package stats maintains running consumption statistics over the flow
// samples produced each tick.
package stats

import (
	"sort"
	"sync"

	"github.com/AngelLalu20/hydro-hero/internal/ring"
)

const (
	// SampleWindow is the percentile batch size. Percentiles are only
	// recomputed when a full batch has accumulated; between batches the
	// previous values are retained rather than invalidated.
	SampleWindow = 100

	// DailyWindow is the trend lookback in days.
	DailyWindow = 7
)

// Snapshot is the read-only statistics view.
type Snapshot struct {
	Average     float64 `json:"average_lpm"`
	Peak        float64 `json:"peak_lpm"`
	Min         float64 `json:"min_lpm"`
	SampleCount int64   `json:"sample_count"`

	P10              float64 `json:"p10"`
	P25              float64 `json:"p25"`
	P50              float64 `json:"p50"`
	P75              float64 `json:"p75"`
	P90              float64 `json:"p90"`
	PercentilesValid bool    `json:"percentiles_valid"`

	WeeklyAvgLitres float64 `json:"weekly_avg_litres"`
	TrendPercent    float64 `json:"trend_percent"`
	DaysRecorded    int     `json:"days_recorded"`
}

// Engine consumes one flow-rate sample per tick and one daily total per
// day. Snapshot may be called from the presentation layer concurrently.
type Engine struct {
	mu sync.Mutex

	n      int64
	avg    float64
	peak   float64
	min    float64
	minSet bool

	samples    *ring.Buffer[float64]
	sinceBatch int
	pct        [5]float64
	pctValid   bool

	daily *ring.Buffer[float64]
	state Snapshot
}

func NewEngine() *Engine {
	return &Engine{
		samples: ring.New[float64](SampleWindow),
		daily:   ring.New[float64](DailyWindow),
	}
}

// AddSample folds one flow-rate reading (L/min) into the running
// statistics. The mean uses the incremental form so no sample history is
// needed; min ignores zero-flow idle readings so it reflects actual usage.
func (e *Engine) AddSample(rate float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.n++
	e.avg += (rate - e.avg) / float64(e.n)

	if rate > e.peak {
		e.peak = rate
	}
	if rate > 0 && (!e.minSet || rate < e.min) {
		e.min = rate
		e.minSet = true
	}

	e.samples.Push(rate)
	e.sinceBatch++
	if e.sinceBatch >= SampleWindow && e.samples.Full() {
		e.computePercentiles()
		e.sinceBatch = 0
	}
}

// computePercentiles sorts a copy of the full window and extracts the
// rank-based percentile elements. Caller holds the lock.
func (e *Engine) computePercentiles() {
	sorted := e.samples.Snapshot()
	sort.Float64s(sorted)

	// Rank indices within the 100-slot window.
	e.pct[0] = sorted[9]
	e.pct[1] = sorted[24]
	e.pct[2] = sorted[49]
	e.pct[3] = sorted[74]
	e.pct[4] = sorted[89]
	e.pctValid = true
}

// RecordDay advances the 7-slot daily ring with a completed day's litres
// and recomputes the weekly average and trend. Wired to the flow updater's
// day-end callback, so it runs once per simulated day.
func (e *Engine) RecordDay(litres float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	prior := e.dailyAverage()
	e.daily.Push(litres)
	weekly := e.dailyAverage()

	e.state.WeeklyAvgLitres = weekly
	e.state.DaysRecorded = e.daily.Len()
	if prior > 0 {
		e.state.TrendPercent = (weekly - prior) / prior * 100
	}
}

// dailyAverage averages the daily ring. Caller holds the lock.
func (e *Engine) dailyAverage() float64 {
	if e.daily.Len() == 0 {
		return 0
	}
	sum := 0.0
	e.daily.Each(func(i int, v float64) { sum += v })
	return sum / float64(e.daily.Len())
}

// Snapshot returns a copy of the current statistics.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.state
	s.Average = e.avg
	s.Peak = e.peak
	if e.minSet {
		s.Min = e.min
	}
	s.SampleCount = e.n
	s.P10, s.P25, s.P50, s.P75, s.P90 = e.pct[0], e.pct[1], e.pct[2], e.pct[3], e.pct[4]
	s.PercentilesValid = e.pctValid
	return s
}

// Reset clears all running statistics. Operator initiated alongside a
// counter reset.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.n = 0
	e.avg = 0
	e.peak = 0
	e.min = 0
	e.minSet = false
	e.samples = ring.New[float64](SampleWindow)
	e.sinceBatch = 0
	e.pct = [5]float64{}
	e.pctValid = false
	e.daily = ring.New[float64](DailyWindow)
	e.state = Snapshot{}
}
