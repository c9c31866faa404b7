// Package store holds the fixed-capacity alert and event buffers.
//
// Records are structured: a type tag plus numeric parameters. Human-readable
// text is produced by Message() at the presentation boundary, so the
// detection pipeline never concatenates strings.
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AngelLalu20/hydro-hero/internal/ring"
)

// AlertCapacity is the fixed size of the alert ring. The oldest record is
// overwritten once the ring wraps.
const AlertCapacity = 50

// Severity is one of exactly four ordinal levels.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// AlertType tags a detection rule.
type AlertType string

const (
	AlertHighFlow   AlertType = "high_flow"
	AlertLeak       AlertType = "leak"
	AlertNoUsage    AlertType = "no_usage"
	AlertSuddenDrop AlertType = "sudden_drop"
	AlertTempRange  AlertType = "temp_range"
	AlertPHRange    AlertType = "ph_range"
	AlertBudget     AlertType = "budget"
	AlertLowMemory  AlertType = "low_memory"
	AlertWeakSignal AlertType = "weak_signal"
	AlertZoneLeak   AlertType = "zone_leak"
)

// Alert is one detection-rule firing. Value and Threshold carry the numbers
// that tripped the rule; Zone is set only for zone-scoped alerts.
type Alert struct {
	ID           string    `json:"id"`
	Type         AlertType `json:"type"`
	Zone         string    `json:"zone,omitempty"`
	Value        float64   `json:"value"`
	Threshold    float64   `json:"threshold"`
	Time         time.Time `json:"time"`
	Severity     Severity  `json:"severity"`
	Acknowledged bool      `json:"acknowledged"`
	Active       bool      `json:"active"`
}

// Message renders the alert for operators. Formatting is deliberately kept
// out of the detection rules.
func (a Alert) Message() string {
	switch a.Type {
	case AlertHighFlow:
		return fmt.Sprintf("high water flow: %.1f L/min exceeds %.1f L/min", a.Value, a.Threshold)
	case AlertLeak:
		return fmt.Sprintf("possible leak: continuous flow of %.2f L/min", a.Value)
	case AlertNoUsage:
		return fmt.Sprintf("no water usage for %.0f hours", a.Value)
	case AlertSuddenDrop:
		return fmt.Sprintf("sudden flow drop of %.0f%%", a.Value)
	case AlertTempRange:
		return fmt.Sprintf("water temperature %.1f°C out of range", a.Value)
	case AlertPHRange:
		return fmt.Sprintf("water pH %.2f out of range", a.Value)
	case AlertBudget:
		return fmt.Sprintf("daily cost %.2f over budget share %.2f", a.Value, a.Threshold)
	case AlertLowMemory:
		return fmt.Sprintf("free memory low: %.0f bytes", a.Value)
	case AlertWeakSignal:
		return fmt.Sprintf("signal strength weak: %.0f dBm", a.Value)
	case AlertZoneLeak:
		return fmt.Sprintf("zone %q: continuous flow of %.2f L/min", a.Zone, a.Value)
	default:
		return string(a.Type)
	}
}

// dedupKey identifies equivalent alerts: same rule, same zone. Numeric
// parameters vary between evaluations and do not make two alerts distinct.
func (a Alert) dedupKey() string {
	return string(a.Type) + "/" + a.Zone
}

// AlertStore is the capacity-50 ring of alert records. Records are never
// physically removed; they are deactivated and eventually overwritten by
// wraparound. Safe for concurrent use: the HTTP layer reads while the
// cooperative loop writes.
type AlertStore struct {
	mu  sync.Mutex
	buf *ring.Buffer[Alert]
}

func NewAlertStore() *AlertStore {
	return &AlertStore{buf: ring.New[Alert](AlertCapacity)}
}

// Add inserts a new alert unless an equivalent active record already
// exists. It returns the stored alert and whether it was inserted;
// suppressed duplicates return the existing record.
func (s *AlertStore) Add(a Alert) (Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := a.dedupKey()
	var existing Alert
	found := false
	s.buf.Each(func(i int, v Alert) {
		if v.Active && v.dedupKey() == key {
			existing = v
			found = true
		}
	})
	if found {
		return existing, false
	}

	a.ID = uuid.NewString()
	a.Active = true
	a.Acknowledged = false
	s.buf.Push(a)
	return a, true
}

// Active returns the active alerts, oldest first.
func (s *AlertStore) Active() []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Alert
	s.buf.Each(func(i int, v Alert) {
		if v.Active {
			out = append(out, v)
		}
	})
	return out
}

// All returns every record still held by the ring, oldest first.
func (s *AlertStore) All() []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Snapshot()
}

// Unacknowledged returns active alerts the operator has not acknowledged.
func (s *AlertStore) Unacknowledged() []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Alert
	s.buf.Each(func(i int, v Alert) {
		if v.Active && !v.Acknowledged {
			out = append(out, v)
		}
	})
	return out
}

// Acknowledge marks the alert with the given id. It reports whether the
// id matched a live record.
func (s *AlertStore) Acknowledge(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok := false
	s.buf.Each(func(i int, v Alert) {
		if v.ID == id && !v.Acknowledged {
			v.Acknowledged = true
			s.buf.Replace(i, v)
			ok = true
		}
	})
	return ok
}

// AcknowledgeAll marks every active alert and returns how many changed.
func (s *AlertStore) AcknowledgeAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	s.buf.Each(func(i int, v Alert) {
		if v.Active && !v.Acknowledged {
			v.Acknowledged = true
			s.buf.Replace(i, v)
			n++
		}
	})
	return n
}

// Deactivate clears the active flag on alerts of the given type and zone,
// re-arming dedup for the next firing. Returns how many records changed.
func (s *AlertStore) Deactivate(t AlertType, zone string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := string(t) + "/" + zone
	n := 0
	s.buf.Each(func(i int, v Alert) {
		if v.Active && v.dedupKey() == key {
			v.Active = false
			s.buf.Replace(i, v)
			n++
		}
	})
	return n
}

// HighestActiveSeverity returns the maximum severity among active alerts
// and whether any alert is active at all.
func (s *AlertStore) HighestActiveSeverity() (Severity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	max := SeverityLow
	any := false
	s.buf.Each(func(i int, v Alert) {
		if v.Active {
			if !any || v.Severity > max {
				max = v.Severity
			}
			any = true
		}
	})
	return max, any
}
