// Package actuator defines the command surface toward the physical
// outputs: shutoff valve, buzzer, status LED and external notification.
// The detection pipeline only emits commands; drivers live behind this
// interface.
package actuator

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/AngelLalu20/hydro-hero/internal/store"
)

// LEDPattern selects the status LED behavior.
type LEDPattern int

const (
	// LEDHeartbeat is the idle pulse: device healthy, nothing active.
	LEDHeartbeat LEDPattern = iota
	LEDSlowBlink
	LEDMediumBlink
	LEDFastBlink
)

func (p LEDPattern) String() string {
	switch p {
	case LEDHeartbeat:
		return "heartbeat"
	case LEDSlowBlink:
		return "slow"
	case LEDMediumBlink:
		return "medium"
	case LEDFastBlink:
		return "fast"
	default:
		return "unknown"
	}
}

// PatternFor picks the LED tier from the current alert and flow picture:
// fast for an active critical, medium for an active high or a rate above
// the ceiling, slow for any other active alert, heartbeat when idle.
func PatternFor(highest store.Severity, anyActive bool, rateLPM, maxFlowLPM float64) LEDPattern {
	switch {
	case anyActive && highest >= store.SeverityCritical:
		return LEDFastBlink
	case (anyActive && highest >= store.SeverityHigh) || rateLPM > maxFlowLPM:
		return LEDMediumBlink
	case anyActive:
		return LEDSlowBlink
	default:
		return LEDHeartbeat
	}
}

// Actuator is the command interface toward the hardware collaborators.
// Implementations must be non-blocking; a stalled call here stalls the
// whole cooperative loop.
type Actuator interface {
	SetValve(open bool)
	SoundAlert(severity store.Severity)
	SetStatusLED(pattern LEDPattern)
	Notify(alert store.Alert)
}

// Log is the reference implementation: commands become structured log
// lines. On real hardware this is swapped for the relay/buzzer/LED
// drivers.
type Log struct {
	logger *logrus.Logger
}

func NewLog(logger *logrus.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) SetValve(open bool) {
	l.logger.WithField("open", open).Info("valve command")
}

func (l *Log) SoundAlert(severity store.Severity) {
	l.logger.WithField("severity", severity.String()).Info("buzzer command")
}

func (l *Log) SetStatusLED(pattern LEDPattern) {
	l.logger.WithField("pattern", pattern.String()).Debug("status led command")
}

func (l *Log) Notify(alert store.Alert) {
	l.logger.WithFields(logrus.Fields{
		"type":     alert.Type,
		"severity": alert.Severity.String(),
		"message":  alert.Message(),
	}).Warn("notification dispatch")
}

// Recorder captures commands for tests.
type Recorder struct {
	mu sync.Mutex

	ValveCommands []bool
	Sounds        []store.Severity
	LEDPatterns   []LEDPattern
	Notified      []store.Alert
}

func (r *Recorder) SetValve(open bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ValveCommands = append(r.ValveCommands, open)
}

func (r *Recorder) SoundAlert(severity store.Severity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sounds = append(r.Sounds, severity)
}

func (r *Recorder) SetStatusLED(pattern LEDPattern) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.LEDPatterns = append(r.LEDPatterns, pattern)
}

func (r *Recorder) Notify(alert store.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Notified = append(r.Notified, alert)
}

// LastLED returns the most recent LED command, if any.
func (r *Recorder) LastLED() (LEDPattern, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.LEDPatterns) == 0 {
		return 0, false
	}
	return r.LEDPatterns[len(r.LEDPatterns)-1], true
}

// LastValve returns the most recent valve command, if any.
func (r *Recorder) LastValve() (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ValveCommands) == 0 {
		return false, false
	}
	return r.ValveCommands[len(r.ValveCommands)-1], true
}
