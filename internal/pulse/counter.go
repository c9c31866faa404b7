// Package pulse owns the interrupt-shared edge counter for the flow sensor.
//
// The sensor callback runs asynchronously to the cooperative loop; the only
// operation it is allowed to perform is Pulse(). The combined read-and-reset
// happens on the main context via a single atomic exchange, so no edge is
// ever lost or counted twice across the drain boundary.
package pulse

import "sync/atomic"

// Counter accumulates raw sensor edges and converts drained counts to
// volume using the calibration constant.
type Counter struct {
	edges          atomic.Int64
	pulsesPerLitre float64
}

// NewCounter returns a Counter calibrated at pulsesPerLitre.
func NewCounter(pulsesPerLitre float64) *Counter {
	return &Counter{pulsesPerLitre: pulsesPerLitre}
}

// Pulse records one sensor edge. Safe to call from any goroutine; this is
// the only method the sensor callback may touch.
func (c *Counter) Pulse() {
	c.edges.Add(1)
}

// Drain atomically reads and zeroes the edge count. Each edge is observed
// by exactly one Drain call.
func (c *Counter) Drain() int64 {
	return c.edges.Swap(0)
}

// Peek returns the undrained edge count without consuming it.
func (c *Counter) Peek() int64 {
	return c.edges.Load()
}

// Volume converts a drained edge count to litres.
func (c *Counter) Volume(edges int64) float64 {
	return float64(edges) / c.pulsesPerLitre
}

// PulsesPerLitre reports the calibration constant.
func (c *Counter) PulsesPerLitre() float64 {
	return c.pulsesPerLitre
}
