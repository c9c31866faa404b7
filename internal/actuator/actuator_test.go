package actuator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AngelLalu20/hydro-hero/internal/store"
)

func TestPatternFor(t *testing.T) {
	tests := []struct {
		name      string
		highest   store.Severity
		anyActive bool
		rateLPM   float64
		want      LEDPattern
	}{
		{"idle heartbeat", store.SeverityLow, false, 0, LEDHeartbeat},
		{"critical active", store.SeverityCritical, true, 0, LEDFastBlink},
		{"high active", store.SeverityHigh, true, 0, LEDMediumBlink},
		{"flow over ceiling without alert", store.SeverityLow, false, 30, LEDMediumBlink},
		{"medium alert", store.SeverityMedium, true, 0, LEDSlowBlink},
		{"low alert", store.SeverityLow, true, 0, LEDSlowBlink},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PatternFor(tt.highest, tt.anyActive, tt.rateLPM, 25.0)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMultiFansOut(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	m := Multi{a, b}

	m.SetValve(true)
	m.SoundAlert(store.SeverityCritical)
	m.SetStatusLED(LEDFastBlink)
	m.Notify(store.Alert{Type: store.AlertLeak})

	for _, r := range []*Recorder{a, b} {
		assert.Equal(t, []bool{true}, r.ValveCommands)
		assert.Equal(t, []store.Severity{store.SeverityCritical}, r.Sounds)
		assert.Equal(t, []LEDPattern{LEDFastBlink}, r.LEDPatterns)
		assert.Len(t, r.Notified, 1)
	}
}
