package server

import (
	"github.com/AngelLalu20/hydro-hero/internal/actuator"
	"github.com/AngelLalu20/hydro-hero/internal/store"
)

// HubNotifier adapts the WebSocket hub to the actuator's notification
// channel: fired alerts reach connected dashboards immediately, while
// valve, buzzer and LED commands stay with the hardware actuator.
type HubNotifier struct {
	hub *Hub
}

func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) SetValve(bool)                    {}
func (n *HubNotifier) SoundAlert(store.Severity)        {}
func (n *HubNotifier) SetStatusLED(actuator.LEDPattern) {}

func (n *HubNotifier) Notify(alert store.Alert) {
	n.hub.BroadcastAlert(alert)
}
