package controlplane

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/tarekazabou/ransomguard/internal/config"
	"github.com/tarekazabou/ransomguard/internal/errs"
	"github.com/tarekazabou/ransomguard/internal/eventlog"
	"github.com/tarekazabou/ransomguard/internal/vault"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusForErr maps a classified internal error to an HTTP status, so
// storage and integrity failures surfacing from internal/vault and
// internal/recovery aren't all flattened to a blanket 500.
func statusForErr(err error) int {
	switch errs.KindOf(err) {
	case errs.ValidationFailure:
		return http.StatusBadRequest
	case errs.IntegrityFailure:
		return http.StatusConflict
	case errs.IOUnavailable, errs.PersistenceFailure, errs.ProcessControlFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeClassifiedError(w http.ResponseWriter, err error) {
	writeError(w, statusForErr(err), err.Error())
}

func (a *App) handleStatus(w http.ResponseWriter, r *http.Request) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"uptime_seconds":   time.Since(a.startedAt).Seconds(),
		"tracked_pids":     len(a.threats),
		"pending_response": a.engine.HasPending(),
	})
}

func (a *App) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := eventlog.Query{}

	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since timestamp, expected RFC3339")
			return
		}
		q.Since = t
	}
	if evType := r.URL.Query().Get("type"); evType != "" {
		q.Type = eventlog.Type(evType)
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		q.Limit = n
	}

	events, err := a.events.Find(q)
	if err != nil {
		writeClassifiedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (a *App) handleThreats(w http.ResponseWriter, r *http.Request) {
	a.mu.RLock()
	snaps := make([]ThreatSnapshot, 0, len(a.threats))
	for _, s := range a.threats {
		snaps = append(snaps, s)
	}
	a.mu.RUnlock()
	writeJSON(w, http.StatusOK, snaps)
}

func (a *App) handleBackups(w http.ResponseWriter, r *http.Request) {
	f := vault.BackupFilter{
		OriginalPath: r.URL.Query().Get("path"),
		ProcessName:  r.URL.Query().Get("process"),
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		f.Limit = n
	}

	backups, err := a.vault.GetBackups(f)
	if err != nil {
		writeClassifiedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, backups)
}

type restoreRequest struct {
	ID           int64  `json:"id"`
	OriginalPath string `json:"original_path"`
	LatestOnly   bool   `json:"latest_only"`
}

func (a *App) handleRestore(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ID != 0 {
		result := a.recovery.RestoreByID(req.ID)
		a.hub.Publish(Broadcast{Type: "restore", Data: result})
		writeJSON(w, http.StatusOK, result)
		return
	}
	if req.OriginalPath != "" {
		results, err := a.recovery.RestoreByPath(req.OriginalPath, req.LatestOnly)
		if err != nil {
			writeClassifiedError(w, err)
			return
		}
		a.hub.Publish(Broadcast{Type: "restore", Data: results})
		writeJSON(w, http.StatusOK, results)
		return
	}
	writeError(w, http.StatusBadRequest, "request must set id or original_path")
}

type quarantineRequest struct {
	Action string `json:"action"` // "confirm", "deny", or "suspend"
	PID    int32  `json:"pid"`    // required for "suspend"
}

// handleQuarantine serves two distinct actions under one endpoint: the
// operator's manual "suspend this pid right now" command, independent of
// any pending engine state, and the safe-mode confirm/deny plumbing that
// releases the engine's own deferred containment.
func (a *App) handleQuarantine(w http.ResponseWriter, r *http.Request) {
	var req quarantineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch req.Action {
	case "suspend":
		if req.PID == 0 {
			writeError(w, http.StatusBadRequest, "pid is required for suspend")
			return
		}
		action := a.controller.Suspend(req.PID)
		a.hub.Publish(Broadcast{Type: "quarantine", Data: action})
		writeJSON(w, http.StatusOK, action)
	case "confirm":
		result := a.engine.Confirm(time.Now())
		if result == nil {
			writeError(w, http.StatusConflict, "no response is pending confirmation")
			return
		}
		a.hub.Publish(Broadcast{Type: "quarantine", Data: result})
		writeJSON(w, http.StatusOK, result)
	case "deny":
		result := a.engine.Deny()
		if result == nil {
			writeError(w, http.StatusConflict, "no response is pending confirmation")
			return
		}
		a.hub.Publish(Broadcast{Type: "quarantine", Data: result})
		writeJSON(w, http.StatusOK, result)
	default:
		writeError(w, http.StatusBadRequest, `action must be "suspend", "confirm", or "deny"`)
	}
}

func (a *App) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	writeJSON(w, http.StatusOK, a.cfg)
}

func (a *App) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var override map[string]any
	if err := json.NewDecoder(r.Body).Decode(&override); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a.mu.Lock()
	merged := config.DeepMerge(a.cfg, override)
	a.cfg = merged
	onConfig := a.onConfig
	a.mu.Unlock()

	if onConfig != nil {
		onConfig(merged)
	}
	a.hub.Publish(Broadcast{Type: "config_updated", Data: merged})
	writeJSON(w, http.StatusOK, merged)
}
