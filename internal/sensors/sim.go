package sensors

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// SimSource generates plausible readings for bench runs and development
// machines without the physical probes attached.
type SimSource struct {
	mu    sync.Mutex
	rng   *rand.Rand
	zones []string

	daily map[string]float64
}

// NewSimSource seeds a deterministic simulator over the given zone names.
func NewSimSource(seed int64, zones []string) *SimSource {
	return &SimSource{
		rng:   rand.New(rand.NewSource(seed)),
		zones: zones,
		daily: make(map[string]float64),
	}
}

func (s *SimSource) ReadQuality() (QualitySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return QualitySnapshot{
		TemperatureC: 18 + s.rng.Float64()*6,
		PH:           6.8 + s.rng.Float64()*1.2,
		TurbidityNTU: s.rng.Float64() * 3,
		TDSPPM:       150 + s.rng.Float64()*100,
	}, nil
}

func (s *SimSource) ReadHealth() (HealthSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return HealthSnapshot{
		FreeMemory: 150000 + uint64(s.rng.Intn(50000)),
		SignalDBM:  -45 - s.rng.Intn(25),
	}, nil
}

func (s *SimSource) ReadZones() ([]ZoneUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ZoneUsage, len(s.zones))
	for i, name := range s.zones {
		rate := 0.0
		// Zones are idle most of the time.
		if s.rng.Float64() < 0.2 {
			rate = s.rng.Float64() * 8
		}
		s.daily[name] += rate / 60 // one-minute worth of flow
		out[i] = ZoneUsage{Zone: name, RateLPM: rate, DailyLitres: s.daily[name]}
	}
	return out, nil
}

// RunPulseSim plays the role of the sensor interrupt on machines without
// the hall sensor attached: it fires pulse edges in bursty usage patterns
// until ctx is cancelled. ratePulsesPerSec caps the burst intensity.
func RunPulseSim(ctx context.Context, fire func(), seed int64, ratePulsesPerSec int) {
	rng := rand.New(rand.NewSource(seed))
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	inUse := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Flip between idle and usage with a bias toward staying put,
			// approximating taps opening and closing.
			if rng.Float64() < 0.02 {
				inUse = !inUse
			}
			if !inUse {
				continue
			}
			n := rng.Intn(ratePulsesPerSec/10 + 1)
			for i := 0; i < n; i++ {
				fire()
			}
		}
	}
}
