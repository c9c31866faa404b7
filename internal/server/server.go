// Package server exposes the dashboard API over HTTP: read-only snapshots
// of the pipeline, the operator operations, a live WebSocket stream and
// Prometheus metrics. It only reads snapshots and calls device operations;
// no detection logic lives here.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/AngelLalu20/hydro-hero/internal/config"
	"github.com/AngelLalu20/hydro-hero/internal/device"
	"github.com/AngelLalu20/hydro-hero/internal/flow"
	"github.com/AngelLalu20/hydro-hero/internal/predict"
	"github.com/AngelLalu20/hydro-hero/internal/stats"
	"github.com/AngelLalu20/hydro-hero/internal/store"
	"github.com/AngelLalu20/hydro-hero/internal/zones"
)

// DeviceAPI is the slice of the device aggregate the dashboard needs.
type DeviceAPI interface {
	StatusSummary() device.Status
	FlowSnapshot() flow.Snapshot
	StatisticsSnapshot() stats.Snapshot
	PredictionSnapshot() predict.Snapshot
	ZoneSnapshot() []zones.Status
	Alerts() []store.Alert
	ActiveAlerts() []store.Alert
	Events() []store.Event
	ResetCounters()
	ToggleValve() bool
	SetValve(open bool, reason string)
	AcknowledgeAlert(id string) bool
	AcknowledgeAllAlerts() int
}

// Server is the HTTP presentation layer.
type Server struct {
	dev DeviceAPI
	cfg config.ServerConfig
	log *logrus.Logger
	hub *Hub

	router  chi.Router
	metrics *HTTPMetrics
}

// New assembles the router with the full middleware chain: request ID
// first, rate limiting early, then logging, metrics and the response
// cache last so errors are never cached.
func New(dev DeviceAPI, hub *Hub, cfg config.ServerConfig, log *logrus.Logger) (*Server, error) {
	s := &Server{
		dev:     dev,
		cfg:     cfg,
		log:     log,
		hub:     hub,
		metrics: NewHTTPMetrics(),
	}

	reg := prometheus.NewRegistry()
	s.metrics.Register(reg)
	reg.MustRegister(NewDeviceCollector(dev))

	cache, err := Cache(cfg.CacheSize, time.Duration(cfg.CacheTTL)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("response cache: %w", err)
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(RateLimit(cfg.RateLimit, cfg.RateLimitBurst))
	r.Use(Logging(log))
	r.Use(Metrics(s.metrics))

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(cache)
			r.Get("/status", s.handleStatus)
			r.Get("/flow", s.handleFlow)
			r.Get("/statistics", s.handleStatistics)
			r.Get("/prediction", s.handlePrediction)
			r.Get("/zones", s.handleZones)
			r.Get("/alerts", s.handleAlerts)
			r.Get("/events", s.handleEvents)
		})

		r.Post("/reset", s.handleReset)
		r.Post("/valve", s.handleValve)
		r.Post("/alerts/ack", s.handleAckAll)
		r.Post("/alerts/{id}/ack", s.handleAck)
	})

	r.Get("/ws", hub.ServeWS)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s.router = r
	return s, nil
}

// Handler exposes the assembled router.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully. It also
// pushes periodic flow frames to the WebSocket hub.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}

	go s.hub.Run(ctx)
	go s.streamFlow(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("dashboard listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) streamFlow(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.hub.BroadcastFrame("flow", s.dev.FlowSnapshot())
		}
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.dev.StatusSummary())
}

func (s *Server) handleFlow(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.dev.FlowSnapshot())
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.dev.StatisticsSnapshot())
}

func (s *Server) handlePrediction(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.dev.PredictionSnapshot())
}

func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.dev.ZoneSnapshot())
}

// handleAlerts serves active alerts by default; ?all=1 includes retained
// inactive records. Messages are rendered here, at the presentation
// boundary.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	var alerts []store.Alert
	if r.URL.Query().Get("all") == "1" {
		alerts = s.dev.Alerts()
	} else {
		alerts = s.dev.ActiveAlerts()
	}

	type alertView struct {
		store.Alert
		Text string `json:"text"`
	}
	out := make([]alertView, len(alerts))
	for i, a := range alerts {
		out[i] = alertView{a, a.Message()}
	}
	s.respond(w, out)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.dev.Events())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.dev.ResetCounters()
	s.respond(w, map[string]string{"result": "counters reset"})
}

// handleValve accepts {"open": bool} or, with no body, toggles.
func (s *Server) handleValve(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Open *bool `json:"open"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Open != nil {
		s.dev.SetValve(*body.Open, "dashboard")
		s.respond(w, map[string]bool{"open": *body.Open})
		return
	}
	s.respond(w, map[string]bool{"open": s.dev.ToggleValve()})
}

func (s *Server) handleAckAll(w http.ResponseWriter, r *http.Request) {
	n := s.dev.AcknowledgeAllAlerts()
	s.respond(w, map[string]int{"acknowledged": n})
}

func (s *Server) handleAck(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.dev.AcknowledgeAlert(id) {
		http.Error(w, "alert not found", http.StatusNotFound)
		return
	}
	s.respond(w, map[string]string{"acknowledged": id})
}

func (s *Server) respond(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Error("response encode failed")
	}
}
