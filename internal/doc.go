// Package hydrohero implements the firmware-style daemon for the
// Hydro-Hero flow-metering appliance.
//
// # Architecture
//
// The pipeline is structured into several key packages:
//   - pulse: interrupt-shared edge counter with atomic drain
//   - flow: pulse-to-volume conversion and consumption totals
//   - sched: cooperative task dispatcher driving all periodic work
//   - stats: running statistics and percentile windows
//   - predict: weighted 7-day consumption forecast
//   - alerts: multi-rule detection engine with per-rule hysteresis
//   - zones: per-zone leak monitoring
//   - store: fixed-capacity alert and event ring buffers
//   - device: the owned application-state aggregate and operations
//   - server, console: dashboard API and line-oriented operator surface
//
// Two execution contexts exist: the sensor edge callback, which only
// increments the pulse counter, and the cooperative main loop, which runs
// every scheduled task to completion. The pulse counter is the only state
// shared between them.
//
// For more information about specific packages, see their respective
// documentation.
package hydrohero
