package device

import (
	"fmt"
	"strings"
)

// Exec runs one line command. The console and any other line-oriented
// surface share this path; it maps directly onto the device operations.
func (d *Device) Exec(line string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "reset":
		d.ResetCounters()
		return "counters reset", nil

	case "valve on":
		d.SetValve(true, "console command")
		return "valve open", nil

	case "valve off":
		d.SetValve(false, "console command")
		return "valve closed", nil

	case "status":
		return d.formatStatus(), nil

	case "ack":
		n := d.AcknowledgeAllAlerts()
		return fmt.Sprintf("%d alerts acknowledged", n), nil

	case "help":
		return "commands: reset | valve on | valve off | status | ack | help", nil

	case "":
		return "", nil

	default:
		return "", fmt.Errorf("unknown command %q", line)
	}
}

func (d *Device) formatStatus() string {
	s := d.StatusSummary()

	valve := "closed"
	if s.ValveOpen {
		valve = "open"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "valve: %s\n", valve)
	fmt.Fprintf(&b, "flow: %.2f L/min\n", s.Flow.RateLPM)
	fmt.Fprintf(&b, "today: %.1f L (%.2f cost)\n", s.Flow.DailyLitres, s.Flow.DailyCost)
	fmt.Fprintf(&b, "total: %.1f L\n", s.Flow.TotalLitres)
	fmt.Fprintf(&b, "alerts: %d active, %d unacknowledged\n", s.ActiveAlerts, s.Unacknowledged)
	fmt.Fprintf(&b, "forecast: %.1f L/day (confidence %.0f%%)", s.Prediction.DailyLitres, s.Prediction.Confidence)
	return b.String()
}
