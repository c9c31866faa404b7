// Package predict produces the weighted 7-day consumption forecast.
package predict

import (
	"math"
	"sync"
	"time"

	"github.com/AngelLalu20/hydro-hero/internal/clock"
	"github.com/AngelLalu20/hydro-hero/internal/ring"
)

// historyDays is the forecast lookback window.
const historyDays = 7

// weights is the fixed per-day-age vector, most recent day first. The
// values sum to 1.0.
var weights = [historyDays]float64{0.30, 0.20, 0.15, 0.12, 0.10, 0.08, 0.05}

const (
	summerFactor = 1.20
	winterFactor = 0.85
)

// Snapshot is the read-only forecast view.
type Snapshot struct {
	DailyLitres    float64   `json:"daily_litres"`
	WeeklyLitres   float64   `json:"weekly_litres"`
	MonthlyLitres  float64   `json:"monthly_litres"`
	SeasonalFactor float64   `json:"seasonal_factor"`
	Confidence     float64   `json:"confidence"`
	DaysOfHistory  int       `json:"days_of_history"`
	ComputedAt     time.Time `json:"computed_at"`
}

// Engine keeps a 7-slot ring of daily totals and recomputes the forecast
// on an hourly cadence.
type Engine struct {
	mu sync.Mutex

	clk        clock.Clock
	timeSynced func() bool

	daily *ring.Buffer[float64]
	state Snapshot
}

// NewEngine wires the forecast. The seasonal multiplier needs calendar
// time; while timeSynced reports false it stays neutral.
func NewEngine(clk clock.Clock, timeSynced func() bool) *Engine {
	if timeSynced == nil {
		timeSynced = func() bool { return false }
	}
	return &Engine{
		clk:        clk,
		timeSynced: timeSynced,
		daily:      ring.New[float64](historyDays),
		state:      Snapshot{SeasonalFactor: 1.0},
	}
}

// RecordDay stores a completed day's litres. Wired to the flow updater's
// day-end callback.
func (e *Engine) RecordDay(litres float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.daily.Push(litres)
}

// Recompute rebuilds the forecast from the current history. Scheduled
// hourly; cheap enough that calling it more often is harmless.
func (e *Engine) Recompute() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clk.Now()
	history := e.daily.Snapshot() // oldest first
	n := len(history)

	s := Snapshot{
		SeasonalFactor: 1.0,
		DaysOfHistory:  n,
		ComputedAt:     now,
	}

	if n == 0 {
		e.state = s
		return
	}

	// Weighted sum, most recent day heaviest. With partial history the
	// unused weight mass is renormalized over the days we do have.
	weighted, mass := 0.0, 0.0
	for age := 0; age < n && age < historyDays; age++ {
		v := history[n-1-age]
		weighted += v * weights[age]
		mass += weights[age]
	}
	predicted := weighted / mass

	if e.timeSynced() {
		s.SeasonalFactor = seasonalFactor(now.Month())
		predicted *= s.SeasonalFactor
	}

	s.DailyLitres = predicted
	s.WeeklyLitres = predicted * 7
	s.MonthlyLitres = predicted * 30
	s.Confidence = confidence(history)
	e.state = s
}

// Snapshot returns the latest forecast.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// seasonalFactor is a coarse per-month multiplier: elevated through summer,
// reduced through winter, neutral otherwise.
func seasonalFactor(m time.Month) float64 {
	switch {
	case m >= time.June && m <= time.August:
		return summerFactor
	case m == time.December || m <= time.February:
		return winterFactor
	default:
		return 1.0
	}
}

// confidence scores forecast quality as 100 − (stddev/mean × 100), clamped
// to [0,100]. A flat history scores near 100; high variance collapses the
// score.
func confidence(history []float64) float64 {
	n := float64(len(history))
	if n == 0 {
		return 0
	}

	mean := 0.0
	for _, v := range history {
		mean += v
	}
	mean /= n
	if mean <= 0 {
		return 0
	}

	variance := 0.0
	for _, v := range history {
		d := v - mean
		variance += d * d
	}
	variance /= n

	c := 100 - math.Sqrt(variance)/mean*100
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
