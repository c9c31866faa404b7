package zones

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelLalu20/hydro-hero/internal/clock"
	"github.com/AngelLalu20/hydro-hero/internal/config"
	"github.com/AngelLalu20/hydro-hero/internal/sensors"
	"github.com/AngelLalu20/hydro-hero/internal/store"
)

type fakeRaiser struct {
	raised  []store.Alert
	cleared []string
}

func (f *fakeRaiser) Raise(a store.Alert) (store.Alert, bool) {
	for _, r := range f.raised {
		if r.Type == a.Type && r.Zone == a.Zone {
			return r, false
		}
	}
	f.raised = append(f.raised, a)
	return a, true
}

func (f *fakeRaiser) Clear(t store.AlertType, zone string) {
	f.cleared = append(f.cleared, zone)
	kept := f.raised[:0]
	for _, r := range f.raised {
		if !(r.Type == t && r.Zone == zone) {
			kept = append(kept, r)
		}
	}
	f.raised = kept
}

type zoneHarness struct {
	mon    *Monitor
	clk    *clock.Manual
	raiser *fakeRaiser
	usage  []sensors.ZoneUsage
}

func newZoneHarness() *zoneHarness {
	h := &zoneHarness{
		clk:    clock.NewManual(time.Unix(10000, 0)),
		raiser: &fakeRaiser{},
	}
	cfgs := []config.ZoneConfig{
		{Name: "kitchen", LeakFlowLPM: 0.3, LeakWindowMin: 30},
		{Name: "garden", LeakFlowLPM: 0.5, LeakWindowMin: 30},
	}
	h.mon = NewMonitor(cfgs, h.clk, h.raiser, func() []sensors.ZoneUsage { return h.usage })
	return h
}

func (h *zoneHarness) set(zone string, rate float64) {
	for i, u := range h.usage {
		if u.Zone == zone {
			h.usage[i].RateLPM = rate
			return
		}
	}
	h.usage = append(h.usage, sensors.ZoneUsage{Zone: zone, RateLPM: rate})
}

func TestZoneLeakFiresAfterWindow(t *testing.T) {
	h := newZoneHarness()

	h.set("kitchen", 1.0)
	h.mon.Check()
	assert.Empty(t, h.raiser.raised)

	h.clk.Advance(31 * time.Minute)
	h.mon.Check()

	require.Len(t, h.raiser.raised, 1)
	a := h.raiser.raised[0]
	assert.Equal(t, store.AlertZoneLeak, a.Type)
	assert.Equal(t, "kitchen", a.Zone)
	assert.Equal(t, store.SeverityCritical, a.Severity)
	assert.InDelta(t, 0.3, a.Threshold, 1e-9)
}

func TestZoneTimersIndependent(t *testing.T) {
	h := newZoneHarness()

	// Kitchen starts leaking now; garden only 20 minutes later.
	h.set("kitchen", 1.0)
	h.mon.Check()

	h.clk.Advance(20 * time.Minute)
	h.set("garden", 2.0)
	h.mon.Check()

	h.clk.Advance(11 * time.Minute)
	h.mon.Check()

	require.Len(t, h.raiser.raised, 1, "only the kitchen window has elapsed")
	assert.Equal(t, "kitchen", h.raiser.raised[0].Zone)

	h.clk.Advance(20 * time.Minute)
	h.mon.Check()
	assert.Len(t, h.raiser.raised, 2)
}

func TestZoneThresholdPerZone(t *testing.T) {
	h := newZoneHarness()

	// 0.4 LPM is above the kitchen threshold but below the garden one.
	h.set("kitchen", 0.4)
	h.set("garden", 0.4)
	h.mon.Check()
	h.clk.Advance(31 * time.Minute)
	h.mon.Check()

	require.Len(t, h.raiser.raised, 1)
	assert.Equal(t, "kitchen", h.raiser.raised[0].Zone)
}

func TestZoneClearsWhenFlowStops(t *testing.T) {
	h := newZoneHarness()

	h.set("kitchen", 1.0)
	h.mon.Check()
	h.clk.Advance(31 * time.Minute)
	h.mon.Check()
	require.Len(t, h.raiser.raised, 1)

	h.set("kitchen", 0.0)
	h.mon.Check()

	assert.Empty(t, h.raiser.raised)
	assert.Equal(t, []string{"kitchen"}, h.raiser.cleared)

	// Flow resumes: the full window applies again before a new alert.
	h.set("kitchen", 1.0)
	h.mon.Check()
	h.clk.Advance(29 * time.Minute)
	h.mon.Check()
	assert.Empty(t, h.raiser.raised)
}

func TestZoneTimerResetsBelowThreshold(t *testing.T) {
	h := newZoneHarness()

	h.set("kitchen", 1.0)
	h.mon.Check()

	h.clk.Advance(20 * time.Minute)
	h.set("kitchen", 0.1)
	h.mon.Check()

	h.set("kitchen", 1.0)
	h.mon.Check()
	h.clk.Advance(25 * time.Minute)
	h.mon.Check()

	assert.Empty(t, h.raiser.raised)
}

func TestZoneSnapshot(t *testing.T) {
	h := newZoneHarness()

	h.set("kitchen", 1.0)
	h.usage[0].DailyLitres = 42
	h.mon.Check()
	h.clk.Advance(31 * time.Minute)
	h.mon.Check()

	snap := h.mon.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "kitchen", snap[0].Name)
	assert.True(t, snap[0].Leaking)
	assert.InDelta(t, 42.0, snap[0].DailyLitres, 1e-9)
	assert.False(t, snap[1].Leaking)
}
