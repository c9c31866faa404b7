package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics are the request-level counters exposed on /metrics.
type HTTPMetrics struct {
	Requests *prometheus.CounterVec
	Latency  *prometheus.HistogramVec
}

func NewHTTPMetrics() *HTTPMetrics {
	return &HTTPMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hydrohero_http_requests_total",
			Help: "HTTP requests served, by path.",
		}, []string{"path"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hydrohero_http_request_duration_seconds",
			Help:    "HTTP request latency, by path.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
	}
}

// Register adds the metrics to a registry.
func (m *HTTPMetrics) Register(reg prometheus.Registerer) {
	reg.MustRegister(m.Requests, m.Latency)
}

// deviceCollector exports the live pipeline state as gauges without a
// scrape-time task in the cooperative loop: Collect pulls snapshots on
// demand.
type deviceCollector struct {
	dev DeviceAPI

	rate         *prometheus.Desc
	totalLitres  *prometheus.Desc
	dailyLitres  *prometheus.Desc
	activeAlerts *prometheus.Desc
	valveOpen    *prometheus.Desc
	confidence   *prometheus.Desc
}

// NewDeviceCollector returns a prometheus.Collector over the device
// snapshots.
func NewDeviceCollector(dev DeviceAPI) prometheus.Collector {
	return &deviceCollector{
		dev:          dev,
		rate:         prometheus.NewDesc("hydrohero_flow_rate_lpm", "Instantaneous flow rate in litres per minute.", nil, nil),
		totalLitres:  prometheus.NewDesc("hydrohero_total_litres", "Cumulative consumption in litres.", nil, nil),
		dailyLitres:  prometheus.NewDesc("hydrohero_daily_litres", "Consumption since the last day boundary.", nil, nil),
		activeAlerts: prometheus.NewDesc("hydrohero_active_alerts", "Number of active alerts.", nil, nil),
		valveOpen:    prometheus.NewDesc("hydrohero_valve_open", "1 when the valve is commanded open.", nil, nil),
		confidence:   prometheus.NewDesc("hydrohero_forecast_confidence", "Forecast confidence score 0-100.", nil, nil),
	}
}

func (c *deviceCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.rate
	ch <- c.totalLitres
	ch <- c.dailyLitres
	ch <- c.activeAlerts
	ch <- c.valveOpen
	ch <- c.confidence
}

func (c *deviceCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.dev.StatusSummary()

	valve := 0.0
	if s.ValveOpen {
		valve = 1
	}

	ch <- prometheus.MustNewConstMetric(c.rate, prometheus.GaugeValue, s.Flow.RateLPM)
	ch <- prometheus.MustNewConstMetric(c.totalLitres, prometheus.CounterValue, s.Flow.TotalLitres)
	ch <- prometheus.MustNewConstMetric(c.dailyLitres, prometheus.GaugeValue, s.Flow.DailyLitres)
	ch <- prometheus.MustNewConstMetric(c.activeAlerts, prometheus.GaugeValue, float64(s.ActiveAlerts))
	ch <- prometheus.MustNewConstMetric(c.valveOpen, prometheus.GaugeValue, valve)
	ch <- prometheus.MustNewConstMetric(c.confidence, prometheus.GaugeValue, s.Prediction.Confidence)
}
