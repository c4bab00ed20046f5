package controlplane

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tarekazabou/ransomguard/internal/config"
	"github.com/tarekazabou/ransomguard/internal/eventlog"
	"github.com/tarekazabou/ransomguard/internal/incident"
	"github.com/tarekazabou/ransomguard/internal/procctl"
	"github.com/tarekazabou/ransomguard/internal/recovery"
	"github.com/tarekazabou/ransomguard/internal/response"
	"github.com/tarekazabou/ransomguard/internal/vault"
)

type noopController struct {
	suspended []int32
}

func (c *noopController) Suspend(pid int32) procctl.Action {
	c.suspended = append(c.suspended, pid)
	return procctl.Action{Action: "suspend", PID: pid, Success: true}
}
func (c *noopController) Resume(pid int32) procctl.Action          { return procctl.Action{Action: "resume", PID: pid, Success: true} }
func (c *noopController) Terminate(pid int32) procctl.Action       { return procctl.Action{Action: "terminate", PID: pid, Success: true} }
func (c *noopController) BlockExecutable(pid int32) procctl.Action { return procctl.Action{Action: "block_executable", PID: pid, Success: true} }
func (c *noopController) ProcessTree(pid int32) ([]procctl.ProcessInfo, error) {
	return []procctl.ProcessInfo{{PID: pid}}, nil
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	app, _ := newTestAppWithController(t)
	return app
}

func newTestAppWithController(t *testing.T) (*App, *noopController) {
	t.Helper()
	dir := t.TempDir()

	store, err := eventlog.Open(filepath.Join(dir, "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	v, err := vault.Open(filepath.Join(dir, "vault"))
	require.NoError(t, err)
	t.Cleanup(func() { v.Close() })

	rec := recovery.New(v)
	alerts := response.NewAlertSystem("")
	incidents := incident.NewGenerator(incident.Config{OutputDir: dir})
	controller := &noopController{}
	engine := response.New(response.Options{Vault: v, Recovery: rec, Controller: controller, Alerts: alerts, Incidents: incidents, SafeMode: true})

	hub := NewHub()
	stop := make(chan struct{})
	go hub.Run(stop)
	t.Cleanup(func() { close(stop) })

	cfg, err := config.Load("")
	require.NoError(t, err)

	return New(store, v, rec, engine, controller, hub, cfg, nil), controller
}

func TestStatusEndpointReportsUptimeAndPendingState(t *testing.T) {
	app := newTestApp(t)
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body, "uptime_seconds")
	require.Equal(t, false, body["pending_response"])
}

func TestConfigGetThenPutDeepMerges(t *testing.T) {
	app := newTestApp(t)

	getReq := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	getRec := httptest.NewRecorder()
	app.Router.ServeHTTP(getRec, getReq)
	require.Equal(t, http.StatusOK, getRec.Code)

	body, _ := json.Marshal(map[string]any{"safe_mode": false})
	putReq := httptest.NewRequest(http.MethodPut, "/api/config", bytes.NewReader(body))
	putRec := httptest.NewRecorder()
	app.Router.ServeHTTP(putRec, putReq)
	require.Equal(t, http.StatusOK, putRec.Code)

	var merged map[string]any
	require.NoError(t, json.Unmarshal(putRec.Body.Bytes(), &merged))
	require.Equal(t, false, merged["safe_mode"])
	require.Equal(t, "127.0.0.1", merged["dashboard_host"])
}

func TestQuarantineWithoutPendingReturnsConflict(t *testing.T) {
	app := newTestApp(t)
	body, _ := json.Marshal(quarantineRequest{Action: "confirm"})
	req := httptest.NewRequest(http.MethodPost, "/api/quarantine", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestQuarantineSuspendCallsControllerDirectly(t *testing.T) {
	app, controller := newTestAppWithController(t)
	body, _ := json.Marshal(quarantineRequest{Action: "suspend", PID: 777})
	req := httptest.NewRequest(http.MethodPost, "/api/quarantine", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []int32{777}, controller.suspended)
}

func TestQuarantineSuspendRequiresPID(t *testing.T) {
	app := newTestApp(t)
	body, _ := json.Marshal(quarantineRequest{Action: "suspend"})
	req := httptest.NewRequest(http.MethodPost, "/api/quarantine", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRestoreRequiresIDOrPath(t *testing.T) {
	app := newTestApp(t)
	body, _ := json.Marshal(restoreRequest{})
	req := httptest.NewRequest(http.MethodPost, "/api/restore", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBackupsEndpointReturnsEmptyListInitially(t *testing.T) {
	app := newTestApp(t)
	req := httptest.NewRequest(http.MethodGet, "/api/backups", nil)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, "null", rec.Body.String())
}
