// Package sensors is the external sampling collaborator: water quality,
// system health and per-zone usage snapshots refreshed on their own cron
// cadence, independent of the cooperative loop.
package sensors

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/AngelLalu20/hydro-hero/internal/clock"
	"github.com/AngelLalu20/hydro-hero/internal/store"
)

// QualitySnapshot is one water-quality reading.
type QualitySnapshot struct {
	TemperatureC float64   `json:"temperature_c"`
	PH           float64   `json:"ph"`
	TurbidityNTU float64   `json:"turbidity_ntu"`
	TDSPPM       float64   `json:"tds_ppm"`
	Time         time.Time `json:"time"`
}

// HealthSnapshot is one system-health reading.
type HealthSnapshot struct {
	FreeMemory uint64    `json:"free_memory"`
	SignalDBM  int       `json:"signal_dbm"`
	Time       time.Time `json:"time"`
}

// ZoneUsage is one zone's current reading from the zone meters.
type ZoneUsage struct {
	Zone        string  `json:"zone"`
	RateLPM     float64 `json:"rate_lpm"`
	DailyLitres float64 `json:"daily_litres"`
}

// Source produces raw readings. Implementations may fail transiently; the
// Sampler retains the last good snapshot on failure.
type Source interface {
	ReadQuality() (QualitySnapshot, error)
	ReadHealth() (HealthSnapshot, error)
	ReadZones() ([]ZoneUsage, error)
}

// Sampler refreshes snapshots from a Source on a cron cadence and serves
// the last good values to the detection pipeline. A failed refresh keeps
// the previous snapshot and logs a medium-priority event.
type Sampler struct {
	mu sync.RWMutex

	source Source
	clk    clock.Clock
	log    *logrus.Logger
	events *store.EventLog
	cron   *cron.Cron

	quality QualitySnapshot
	health  HealthSnapshot
	zones   []ZoneUsage
}

func NewSampler(source Source, clk clock.Clock, events *store.EventLog, log *logrus.Logger) *Sampler {
	return &Sampler{
		source: source,
		clk:    clk,
		log:    log,
		events: events,
		cron:   cron.New(cron.WithSeconds()),
	}
}

// Start schedules periodic refreshes using a six-field cron spec and takes
// an immediate first sample so the pipeline never sees zero-value
// snapshots.
func (s *Sampler) Start(spec string) error {
	s.Refresh()
	if _, err := s.cron.AddFunc(spec, s.Refresh); err != nil {
		return fmt.Errorf("invalid sampler cron spec %q: %w", spec, err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the refresh schedule.
func (s *Sampler) Stop() {
	s.cron.Stop()
}

// Refresh pulls fresh readings from the source. Each reading degrades
// independently: a failure retains the previous snapshot.
func (s *Sampler) Refresh() {
	now := s.clk.Now()

	if q, err := s.source.ReadQuality(); err != nil {
		s.degrade("quality", err, now)
	} else {
		q.Time = now
		s.mu.Lock()
		s.quality = q
		s.mu.Unlock()
	}

	if h, err := s.source.ReadHealth(); err != nil {
		s.degrade("health", err, now)
	} else {
		h.Time = now
		s.mu.Lock()
		s.health = h
		s.mu.Unlock()
	}

	if z, err := s.source.ReadZones(); err != nil {
		s.degrade("zones", err, now)
	} else {
		s.mu.Lock()
		s.zones = z
		s.mu.Unlock()
	}
}

func (s *Sampler) degrade(kind string, err error, now time.Time) {
	s.log.WithError(err).WithField("sensor", kind).Warn("sensor refresh failed, retaining last snapshot")
	s.events.Append(store.Event{
		Type:     store.EventSensorFailed,
		Message:  fmt.Sprintf("%s refresh failed: %v", kind, err),
		Time:     now,
		Priority: store.SeverityMedium,
		Source:   "sensors",
	})
}

// Quality returns the last good water-quality snapshot.
func (s *Sampler) Quality() QualitySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.quality
}

// Health returns the last good system-health snapshot.
func (s *Sampler) Health() HealthSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.health
}

// Zones returns the last good per-zone readings.
func (s *Sampler) Zones() []ZoneUsage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ZoneUsage, len(s.zones))
	copy(out, s.zones)
	return out
}
