package store

import (
	"sync"
	"time"

	"github.com/AngelLalu20/hydro-hero/internal/ring"
)

// EventCapacity is the fixed size of the audit event ring.
const EventCapacity = 100

// EventType tags an audit entry.
type EventType string

const (
	EventBoot          EventType = "boot"
	EventConfigDefault EventType = "config_default"
	EventValve         EventType = "valve"
	EventCounterReset  EventType = "counter_reset"
	EventPeriodReset   EventType = "period_reset"
	EventSensorFailed  EventType = "sensor_failed"
	EventTaskPanic     EventType = "task_panic"
	EventTimeSynced    EventType = "time_synced"
	EventAlertRaised   EventType = "alert_raised"
	EventAlertCleared  EventType = "alert_cleared"
)

// Event is one append-only audit record. No dedup: every occurrence is kept
// until the ring overwrites it.
type Event struct {
	Type     EventType `json:"type"`
	Message  string    `json:"message"`
	Time     time.Time `json:"time"`
	Priority Severity  `json:"priority"`
	Source   string    `json:"source"`
}

// EventLog is the capacity-100 audit trail.
type EventLog struct {
	mu  sync.Mutex
	buf *ring.Buffer[Event]
}

func NewEventLog() *EventLog {
	return &EventLog{buf: ring.New[Event](EventCapacity)}
}

// Append records an event.
func (l *EventLog) Append(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf.Push(e)
}

// Events returns the retained records, oldest first.
func (l *EventLog) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.Snapshot()
}

// Len reports how many records are retained.
func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.Len()
}
