package actuator

import "github.com/AngelLalu20/hydro-hero/internal/store"

// Multi fans every command out to each actuator in order. Used to drive
// the hardware outputs and the dashboard notifier from one command.
type Multi []Actuator

func (m Multi) SetValve(open bool) {
	for _, a := range m {
		a.SetValve(open)
	}
}

func (m Multi) SoundAlert(severity store.Severity) {
	for _, a := range m {
		a.SoundAlert(severity)
	}
}

func (m Multi) SetStatusLED(pattern LEDPattern) {
	for _, a := range m {
		a.SetStatusLED(pattern)
	}
}

func (m Multi) Notify(alert store.Alert) {
	for _, a := range m {
		a.Notify(alert)
	}
}
