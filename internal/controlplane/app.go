// Package controlplane exposes the core's live state over HTTP and
// websocket: status, event history, current threat scores, backup
// listing, restore/quarantine actions, and runtime configuration,
// structured as an explicit application context rather than
// package-level globals.
package controlplane

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/tarekazabou/ransomguard/internal/config"
	"github.com/tarekazabou/ransomguard/internal/eventlog"
	"github.com/tarekazabou/ransomguard/internal/procctl"
	"github.com/tarekazabou/ransomguard/internal/recovery"
	"github.com/tarekazabou/ransomguard/internal/response"
	"github.com/tarekazabou/ransomguard/internal/scoring"
	"github.com/tarekazabou/ransomguard/internal/vault"
)

// ThreatSnapshot is the latest known score for one tracked PID, as
// rendered to the dashboard.
type ThreatSnapshot struct {
	PID         int32     `json:"pid"`
	ProcessName string    `json:"process_name"`
	Score       int       `json:"score"`
	Level       string    `json:"level"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// App is the explicit, dependency-injected application context behind
// every HTTP handler. Nothing in this package reads or writes package
// level state.
type App struct {
	Router *mux.Router

	events     *eventlog.Store
	vault      *vault.Vault
	recovery   *recovery.Recovery
	engine     *response.Engine
	controller procctl.Controller
	hub        *Hub
	startedAt  time.Time

	mu       sync.RWMutex
	cfg      map[string]any
	onConfig func(map[string]any)
	threats  map[int32]ThreatSnapshot

	log *logrus.Entry
}

// New builds an App and wires its routes. controller is used directly by
// the dashboard's manual quarantine action (POST /api/quarantine with a
// pid), independent of the response engine's own safe-mode confirm/deny
// plumbing, which continues to go through engine.
func New(events *eventlog.Store, v *vault.Vault, rec *recovery.Recovery, engine *response.Engine, controller procctl.Controller, hub *Hub, cfg config.Config, onConfig func(map[string]any)) *App {
	a := &App{
		Router:     mux.NewRouter(),
		events:     events,
		vault:      v,
		recovery:   rec,
		engine:     engine,
		controller: controller,
		hub:        hub,
		startedAt:  time.Now(),
		cfg:        configToMap(cfg),
		onConfig:   onConfig,
		threats:    make(map[int32]ThreatSnapshot),
		log:        logrus.WithField("component", "controlplane"),
	}
	a.routes()
	return a
}

func (a *App) routes() {
	a.Router.HandleFunc("/api/status", a.handleStatus).Methods(http.MethodGet)
	a.Router.HandleFunc("/api/events", a.handleEvents).Methods(http.MethodGet)
	a.Router.HandleFunc("/api/threats", a.handleThreats).Methods(http.MethodGet)
	a.Router.HandleFunc("/api/backups", a.handleBackups).Methods(http.MethodGet)
	a.Router.HandleFunc("/api/restore", a.handleRestore).Methods(http.MethodPost)
	a.Router.HandleFunc("/api/quarantine", a.handleQuarantine).Methods(http.MethodPost)
	a.Router.HandleFunc("/api/config", a.handleGetConfig).Methods(http.MethodGet)
	a.Router.HandleFunc("/api/config", a.handlePutConfig).Methods(http.MethodPut)
	a.Router.HandleFunc("/ws/live", a.hub.ServeWS)
	a.Router.Handle("/metrics", promhttp.Handler())
}

// RecordThreat updates the live threat snapshot for one PID, called by
// the detection pipeline after every scoring pass, and publishes it to
// connected dashboard clients.
func (a *App) RecordThreat(score scoring.Score) {
	snap := ThreatSnapshot{PID: score.PID, ProcessName: score.ProcessName, Score: score.Value, Level: string(score.Level), UpdatedAt: time.Now()}

	a.mu.Lock()
	a.threats[score.PID] = snap
	a.mu.Unlock()

	a.hub.Publish(Broadcast{Type: "file_event", Data: snap})
}

func configToMap(cfg config.Config) map[string]any {
	return map[string]any{
		"window_seconds":        float64(cfg.WindowSeconds),
		"entropy_delta":         cfg.EntropyDelta,
		"vault_path":            cfg.VaultPath,
		"event_log_path":        cfg.EventLogPath,
		"entropy_baseline_path": cfg.EntropyBaselinePath,
		"retention_hours":       float64(cfg.RetentionHours),
		"safe_mode":             cfg.SafeMode,
		"tuning_path":           cfg.TuningPath,
		"alert_webhook_url":     cfg.AlertWebhookURL,
		"incident_output_dir":   cfg.IncidentOutputDir,
		"dashboard_host":        cfg.DashboardHost,
		"dashboard_port":        float64(cfg.DashboardPort),
		"log_level":             cfg.LogLevel,
		"monitor_only":          cfg.MonitorOnly,
		"dashboard_only":        cfg.DashboardOnly,
	}
}
