package response

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// AlertLevel is the severity of one emitted Alert.
type AlertLevel string

const (
	AlertInfo      AlertLevel = "INFO"
	AlertWarning   AlertLevel = "WARNING"
	AlertCritical  AlertLevel = "CRITICAL"
	AlertEmergency AlertLevel = "EMERGENCY"
)

// Alert is one emitted notification.
type Alert struct {
	Timestamp time.Time
	Level     AlertLevel
	Message   string
	PID       int32
}

// AlertSystem always logs every alert, and best-effort delivers
// CRITICAL/EMERGENCY alerts through a desktop notification and an optional
// outbound webhook. Delivery failures never block the caller — alerting is
// never on the critical path of the detection pipeline.
type AlertSystem struct {
	mu  sync.Mutex
	log []Alert

	webhookURL string
	httpClient *http.Client
	logger     *logrus.Entry
}

// NewAlertSystem builds an AlertSystem. webhookURL may be empty, in which
// case only logging and desktop notification are attempted.
func NewAlertSystem(webhookURL string) *AlertSystem {
	return &AlertSystem{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     logrus.WithField("component", "alerts"),
	}
}

// Send records alert, logs it, and best-effort delivers it out of band.
func (a *AlertSystem) Send(alert Alert) {
	a.mu.Lock()
	a.log = append(a.log, alert)
	a.mu.Unlock()

	entry := a.logger.WithFields(logrus.Fields{"level": alert.Level, "pid": alert.PID})
	switch alert.Level {
	case AlertEmergency, AlertCritical:
		entry.Error(alert.Message)
	case AlertWarning:
		entry.Warn(alert.Message)
	default:
		entry.Info(alert.Message)
	}

	if alert.Level == AlertCritical || alert.Level == AlertEmergency {
		go a.desktopNotify(alert)
		if a.webhookURL != "" {
			go a.postWebhook(alert)
		}
	}
}

// Alerts returns a snapshot copy of the alert log, optionally filtered by
// level.
func (a *AlertSystem) Alerts(level AlertLevel) []Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Alert, 0, len(a.log))
	for _, al := range a.log {
		if level == "" || al.Level == level {
			out = append(out, al)
		}
	}
	return out
}

func (a *AlertSystem) desktopNotify(alert Alert) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("notify-send", string(alert.Level), alert.Message)
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", alert.Message, alert.Level)
		cmd = exec.Command("osascript", "-e", script)
	default:
		return // log-only on unsupported platforms
	}
	if err := cmd.Run(); err != nil {
		a.logger.WithError(err).Debug("desktop notification failed")
	}
}

func (a *AlertSystem) postWebhook(alert Alert) {
	body, err := json.Marshal(alert)
	if err != nil {
		a.logger.WithError(err).Debug("marshal webhook alert failed")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, bytes.NewReader(body))
	if err != nil {
		a.logger.WithError(err).Debug("build webhook request failed")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.logger.WithError(err).Debug("webhook delivery failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		a.logger.WithField("status", resp.StatusCode).Debug("webhook rejected alert")
	}
}
