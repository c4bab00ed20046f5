package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tarekazabou/ransomguard/internal/config"
	"github.com/tarekazabou/ransomguard/internal/controlplane"
	"github.com/tarekazabou/ransomguard/internal/entropy"
	"github.com/tarekazabou/ransomguard/internal/eventlog"
	"github.com/tarekazabou/ransomguard/internal/incident"
	"github.com/tarekazabou/ransomguard/internal/metrics"
	"github.com/tarekazabou/ransomguard/internal/pattern"
	"github.com/tarekazabou/ransomguard/internal/pipeline"
	"github.com/tarekazabou/ransomguard/internal/procctl"
	"github.com/tarekazabou/ransomguard/internal/recovery"
	"github.com/tarekazabou/ransomguard/internal/response"
	"github.com/tarekazabou/ransomguard/internal/scoring"
	"github.com/tarekazabou/ransomguard/internal/tuning"
	"github.com/tarekazabou/ransomguard/internal/vault"
	"github.com/tarekazabou/ransomguard/internal/watch"
)

var version = "0.1.0"

var (
	cfgFile       string
	flagHost      string
	flagPort      int
	flagLogLevel  string
	monitorOnly   bool
	dashboardOnly bool
)

var rootCmd = &cobra.Command{
	Use:     "ransomguard",
	Short:   "Host-resident ransomware behavior detector and responder",
	Long:    `ransomguard watches a filesystem for the behavioral signature of ransomware — mass modification, entropy spikes, extension rewrites, directory sweeps — and escalates from logging through quarantine to termination and auto-restore.`,
	Version: version,
	RunE:    run,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagHost, "host", "", "dashboard bind host (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagPort, "port", 0, "dashboard bind port (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&monitorOnly, "monitor-only", false, "run detection without the HTTP dashboard")
	rootCmd.PersistentFlags().BoolVar(&dashboardOnly, "dashboard-only", false, "serve the dashboard over existing stores without watching the filesystem")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flagHost != "" {
		cfg.DashboardHost = flagHost
	}
	if flagPort != 0 {
		cfg.DashboardPort = flagPort
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if monitorOnly {
		cfg.MonitorOnly = true
	}
	if dashboardOnly {
		cfg.DashboardOnly = true
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}
	log := logrus.WithField("component", "main")

	overrides, err := tuning.Load(cfg.TuningPath)
	if err != nil {
		return fmt.Errorf("load tuning overrides: %w", err)
	}

	eventStore, err := eventlog.Open(cfg.EventLogPath)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer eventStore.Close()

	baselineStore, err := entropy.OpenBaselineStore(cfg.EntropyBaselinePath)
	if err != nil {
		return fmt.Errorf("open entropy baseline store: %w", err)
	}
	defer baselineStore.Close()
	analyzer := entropy.NewAnalyzer(baselineStore, cfg.EntropyDelta)

	v, err := vault.Open(cfg.VaultPath)
	if err != nil {
		return fmt.Errorf("open vault: %w", err)
	}
	defer v.Close()

	rec := recovery.New(v)
	controller := procctl.NewGopsutilController()
	detector := pattern.NewDetector(cfg.Window(), overrides.Thresholds())
	alerts := response.NewAlertSystem(cfg.AlertWebhookURL)
	incidents := incident.NewGenerator(incident.Config{OutputDir: cfg.IncidentOutputDir, Formats: []string{"markdown", "json"}})
	engine := response.New(response.Options{
		Vault: v, Recovery: rec, Controller: controller,
		Alerts: alerts, Incidents: incidents, SafeMode: cfg.SafeMode,
	})

	metricsRegistry := metrics.NewRegistry(prometheus.DefaultRegisterer)
	weights := overrides.Weights()

	hub := controlplane.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx.Done())

	app := controlplane.New(eventStore, v, rec, engine, controller, hub, cfg, nil)

	handler := func(ev eventlog.Event) {
		metricsRegistry.EventsIngested.WithLabelValues(string(ev.Type)).Inc()
		if err := eventStore.Append(ev); err != nil {
			log.WithError(err).Warn("failed to persist event")
		}

		detector.RecordEvent(ev)
		if !ev.HasPID {
			return
		}

		indicators := detector.Evaluate(ev.PID)
		score := scoring.ScoreIndicators(ev.PID, detector.ProcessName(ev.PID), indicators, weights)
		app.RecordThreat(score)
		metricsRegistry.ActiveTrackers.Set(float64(detector.TrackedPIDCount()))

		if score.Value <= 30 {
			return
		}
		start := time.Now()
		result := engine.Respond(ev.PID, score.ProcessName, score, detector.AffectedPaths(ev.PID), time.Now())
		metricsRegistry.ResponseDuration.Observe(time.Since(start).Seconds())
		metricsRegistry.Escalations.WithLabelValues(fmt.Sprintf("%d", result.Level)).Inc()
	}

	pl := pipeline.New(8, 1024, handler)
	pl.Start(ctx)
	defer pl.Shutdown()

	var watcher *watch.Watcher
	if !cfg.DashboardOnly {
		watcher, err = watch.New(cfg.WatchPaths, analyzer, nil)
		if err != nil {
			return fmt.Errorf("start filesystem watcher: %w", err)
		}
		defer watcher.Close()

		go func() {
			for ev := range watcher.Events() {
				pl.Submit(ev)
			}
		}()
	}

	var server *http.Server
	if !cfg.MonitorOnly {
		server = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.DashboardHost, cfg.DashboardPort),
			Handler: app.Router,
		}
		go func() {
			log.WithField("addr", server.Addr).Info("dashboard listening")
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("dashboard server stopped")
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	cancel()
	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}
	return nil
}
