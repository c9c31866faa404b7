// Package zones applies the leak window pattern independently per
// sub-zone, using each zone's own threshold and a shorter default window.
package zones

import (
	"sync"
	"time"

	"github.com/AngelLalu20/hydro-hero/internal/clock"
	"github.com/AngelLalu20/hydro-hero/internal/config"
	"github.com/AngelLalu20/hydro-hero/internal/sensors"
	"github.com/AngelLalu20/hydro-hero/internal/store"
)

// Raiser is the shared alert-creation primitive; the zone monitor never
// inserts alerts on its own.
type Raiser interface {
	Raise(a store.Alert) (store.Alert, bool)
	Clear(t store.AlertType, zone string)
}

// Status is one zone's read-only state.
type Status struct {
	Name        string    `json:"name"`
	RateLPM     float64   `json:"rate_lpm"`
	DailyLitres float64   `json:"daily_litres"`
	Threshold   float64   `json:"threshold_lpm"`
	Leaking     bool      `json:"leaking"`
	LeakSince   time.Time `json:"leak_since,omitempty"`
}

type zoneState struct {
	cfg       config.ZoneConfig
	rate      float64
	daily     float64
	leakStart time.Time
	leaking   bool
}

// Monitor tracks every configured zone as an independent small state
// machine.
type Monitor struct {
	mu sync.Mutex

	clk    clock.Clock
	raiser Raiser
	usage  func() []sensors.ZoneUsage
	zones  []*zoneState
}

// NewMonitor builds the per-zone state from boot configuration. usage
// supplies the latest zone readings from the external sampler.
func NewMonitor(cfgs []config.ZoneConfig, clk clock.Clock, raiser Raiser, usage func() []sensors.ZoneUsage) *Monitor {
	m := &Monitor{clk: clk, raiser: raiser, usage: usage}
	for _, c := range cfgs {
		m.zones = append(m.zones, &zoneState{cfg: c})
	}
	return m
}

// Check refreshes each zone from the sampler and advances its leak timer:
// flow above the zone threshold starts the timer, dropping below resets
// it, and exceeding the window fires a zone-scoped critical alert.
func (m *Monitor) Check() {
	now := m.clk.Now()
	readings := m.usage()

	m.mu.Lock()
	defer m.mu.Unlock()

	byName := make(map[string]sensors.ZoneUsage, len(readings))
	for _, r := range readings {
		byName[r.Zone] = r
	}

	for _, z := range m.zones {
		if r, ok := byName[z.cfg.Name]; ok {
			z.rate = r.RateLPM
			z.daily = r.DailyLitres
		}

		if z.rate <= z.cfg.LeakFlowLPM {
			z.leakStart = time.Time{}
			if z.leaking {
				z.leaking = false
				m.raiser.Clear(store.AlertZoneLeak, z.cfg.Name)
			}
			continue
		}

		if z.leakStart.IsZero() {
			z.leakStart = now
			continue
		}

		if now.Sub(z.leakStart) < z.cfg.LeakWindow() {
			continue
		}

		z.leaking = true
		m.raiser.Raise(store.Alert{
			Type:      store.AlertZoneLeak,
			Zone:      z.cfg.Name,
			Value:     z.rate,
			Threshold: z.cfg.LeakFlowLPM,
			Time:      now,
			Severity:  store.SeverityCritical,
		})
	}
}

// Snapshot returns the per-zone status for the presentation layer.
func (m *Monitor) Snapshot() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Status, len(m.zones))
	for i, z := range m.zones {
		out[i] = Status{
			Name:        z.cfg.Name,
			RateLPM:     z.rate,
			DailyLitres: z.daily,
			Threshold:   z.cfg.LeakFlowLPM,
			Leaking:     z.leaking,
			LeakSince:   z.leakStart,
		}
	}
	return out
}
