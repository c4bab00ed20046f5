// Package response implements the escalation ladder that turns a threat
// score into concrete action: logging, alerting, snapshotting, suspending,
// and ultimately terminating and blocking the offending process, with an
// optional safe-mode gate before anything destructive runs.
package response

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tarekazabou/ransomguard/internal/incident"
	"github.com/tarekazabou/ransomguard/internal/procctl"
	"github.com/tarekazabou/ransomguard/internal/recovery"
	"github.com/tarekazabou/ransomguard/internal/scoring"
	"github.com/tarekazabou/ransomguard/internal/vault"
)

// Engine turns one PID's threat Score into action. It holds references to
// the vault, recovery, and the process controller; none of those refer
// back to it, so everything below it stays ignorant of response policy.
type Engine struct {
	vault      *vault.Vault
	recovery   *recovery.Recovery
	controller procctl.Controller
	alerts     *AlertSystem
	incidents  *incident.Generator
	safeMode   bool

	mu                 sync.Mutex
	pending            *Result
	pendingPID         int32
	pendingProcessName string
	pendingPaths       []string
	log                *logrus.Entry
}

// Options configures a new Engine.
type Options struct {
	Vault      *vault.Vault
	Recovery   *recovery.Recovery
	Controller procctl.Controller
	Alerts     *AlertSystem
	Incidents  *incident.Generator
	SafeMode   bool
}

// New builds an Engine. SafeMode gates levels 3 and 4 behind an explicit
// Confirm call.
func New(opts Options) *Engine {
	return &Engine{
		vault:      opts.Vault,
		recovery:   opts.Recovery,
		controller: opts.Controller,
		alerts:     opts.Alerts,
		incidents:  opts.Incidents,
		safeMode:   opts.SafeMode,
		log:        logrus.WithField("component", "response"),
	}
}

// Respond runs the cumulative escalation ladder for one scored process.
// affectedPaths is every distinct file path the Pattern Detector has seen
// touched by pid within its current tracking window; it drives the
// level-2 and level-3 snapshot steps.
func (e *Engine) Respond(pid int32, processName string, score scoring.Score, affectedPaths []string, now time.Time) *Result {
	level := EscalationFor(score.Value)
	result := &Result{Timestamp: now, Score: score, Level: level}

	if level >= LevelMonitor {
		e.level1Monitor(result, pid, processName)
	}
	if level >= LevelWarn {
		e.level2Warn(result, pid, processName, affectedPaths, now)
	}

	if level < LevelContain {
		return result
	}

	if e.safeMode {
		e.requestConfirmation(result, pid, processName, affectedPaths)
		return result
	}

	e.level3Contain(result, pid, processName, affectedPaths, now)
	if level >= LevelTerminate {
		e.level4Terminate(result, pid, processName, now)
	}
	return result
}

// requestConfirmation defers levels 3/4 behind an operator decision. At
// most one response is ever pending at a time; a new level-3+ detection
// while one is already pending replaces it rather than queuing, since the
// newer detection reflects the process's current behavior.
func (e *Engine) requestConfirmation(result *Result, pid int32, processName string, affectedPaths []string) {
	result.PendingConfirmation = true

	e.mu.Lock()
	e.pending = result
	e.pendingPID = pid
	e.pendingProcessName = processName
	e.pendingPaths = affectedPaths
	e.mu.Unlock()

	alert := Alert{
		Timestamp: result.Timestamp,
		Level:     AlertCritical,
		Message:   fmt.Sprintf("process %s (pid %d) scored %d: confirmation required before containment", processName, pid, result.Score.Value),
		PID:       pid,
	}
	e.alerts.Send(alert)
	result.Alerts = append(result.Alerts, alert)
}

// Confirm executes the deferred levels 3 and (if applicable) 4 for the
// currently pending result. It is a no-op if nothing is pending.
func (e *Engine) Confirm(now time.Time) *Result {
	e.mu.Lock()
	result := e.pending
	pid := e.pendingPID
	processName := e.pendingProcessName
	paths := e.pendingPaths
	e.pending = nil
	e.mu.Unlock()

	if result == nil {
		return nil
	}

	result.PendingConfirmation = false
	result.Confirmed = true
	e.level3Contain(result, pid, processName, paths, now)
	if result.Level >= LevelTerminate {
		e.level4Terminate(result, pid, processName, now)
	}
	return result
}

// Deny clears the pending confirmation without running levels 3/4.
func (e *Engine) Deny() *Result {
	e.mu.Lock()
	result := e.pending
	e.pending = nil
	e.mu.Unlock()

	if result == nil {
		return nil
	}
	result.PendingConfirmation = false
	result.Denied = true
	return result
}

// HasPending reports whether a confirmation is outstanding.
func (e *Engine) HasPending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending != nil
}

func (e *Engine) level1Monitor(result *Result, pid int32, processName string) {
	result.Actions = append(result.Actions, ActionOutcome{
		Name: "monitor", Success: true,
		Detail: fmt.Sprintf("tracking %s (pid %d), score %d", processName, pid, result.Score.Value),
	})
}

// level2Warn alerts, snapshots every affected path (reason
// "level2_warning"), and records the process tree. A snapshot failure is
// logged and recorded but never aborts the warn cycle.
func (e *Engine) level2Warn(result *Result, pid int32, processName string, affectedPaths []string, now time.Time) {
	alert := Alert{
		Timestamp: result.Timestamp,
		Level:     AlertWarning,
		Message:   fmt.Sprintf("process %s (pid %d) flagged suspicious, score %d", processName, pid, result.Score.Value),
		PID:       pid,
	}
	e.alerts.Send(alert)
	result.Alerts = append(result.Alerts, alert)

	for _, path := range affectedPaths {
		rec, err := e.vault.CreateSnapshot(path, "level2_warning", processName, now)
		if err != nil {
			result.Actions = append(result.Actions, ActionOutcome{Name: "snapshot", Success: false, Detail: fmt.Sprintf("%s: %v", path, err)})
			e.log.WithError(err).WithField("path", path).Warn("warn-level snapshot failed")
			continue
		}
		result.Actions = append(result.Actions, ActionOutcome{Name: "snapshot", Success: true, Detail: fmt.Sprintf("%s -> backup #%d", path, rec.ID)})
	}

	tree, err := e.controller.ProcessTree(pid)
	if err != nil {
		result.Actions = append(result.Actions, ActionOutcome{Name: "process_tree", Success: false, Detail: err.Error()})
		return
	}
	result.Actions = append(result.Actions, ActionOutcome{
		Name: "process_tree", Success: true,
		Detail: fmt.Sprintf("%d processes in tree", len(tree)),
	})
}

// level3Contain snapshots every affected path and suspends the process.
// A snapshot or suspend failure is logged and recorded but never aborts
// the response cycle — containment proceeds best-effort across all paths.
func (e *Engine) level3Contain(result *Result, pid int32, processName string, affectedPaths []string, now time.Time) {
	for _, path := range affectedPaths {
		rec, err := e.vault.CreateSnapshot(path, "emergency_quarantine", processName, now)
		if err != nil {
			result.Actions = append(result.Actions, ActionOutcome{Name: "snapshot", Success: false, Detail: fmt.Sprintf("%s: %v", path, err)})
			e.log.WithError(err).WithField("path", path).Warn("containment snapshot failed")
			continue
		}
		result.Actions = append(result.Actions, ActionOutcome{Name: "snapshot", Success: true, Detail: fmt.Sprintf("%s -> backup #%d", path, rec.ID)})
	}

	action := e.controller.Suspend(pid)
	result.ProcessActions = append(result.ProcessActions, action)
	result.Actions = append(result.Actions, ActionOutcome{Name: "suspend", Success: action.Success, Detail: string(action.Failure)})
}

// level4Terminate terminates the process, blocks its executable, restores
// every file the process touched from the containment snapshots, and
// writes an incident report.
func (e *Engine) level4Terminate(result *Result, pid int32, processName string, now time.Time) {
	term := e.controller.Terminate(pid)
	result.ProcessActions = append(result.ProcessActions, term)
	result.Actions = append(result.Actions, ActionOutcome{Name: "terminate", Success: term.Success, Detail: string(term.Failure)})

	block := e.controller.BlockExecutable(pid)
	result.ProcessActions = append(result.ProcessActions, block)
	result.Actions = append(result.Actions, ActionOutcome{Name: "block_executable", Success: block.Success, Detail: string(block.Failure)})

	restored, err := e.recovery.RestoreByProcess(processName)
	if err != nil {
		result.Actions = append(result.Actions, ActionOutcome{Name: "auto_restore", Success: false, Detail: err.Error()})
	} else {
		for _, r := range restored {
			result.Actions = append(result.Actions, ActionOutcome{
				Name: "auto_restore", Success: r.Success,
				Detail: fmt.Sprintf("%s (integrity %d)", r.OriginalPath, r.Integrity),
			})
		}
	}

	e.alerts.Send(Alert{
		Timestamp: now, Level: AlertEmergency, PID: pid,
		Message: fmt.Sprintf("process %s (pid %d) terminated and blocked, score %d", processName, pid, result.Score.Value),
	})

	if e.incidents == nil {
		return
	}
	report := incident.New(now, pid, processName, result.Score.Value, string(result.Score.Level), result.Score.TriggeredIndicators)
	report.ProcessBlocked = block.Success
	for _, a := range result.Actions {
		report.Actions = append(report.Actions, incident.ActionRecord{Name: a.Name, Success: a.Success, Detail: a.Detail})
	}
	for _, r := range restored {
		report.Files = append(report.Files, incident.FileRecord{
			Path: r.OriginalPath, Restored: r.Success, Integrity: integrityLabel(r.Integrity),
		})
	}
	if _, err := e.incidents.Generate(report); err != nil {
		e.log.WithError(err).Warn("incident report generation failed")
	}
	result.Incident = report
}

func integrityLabel(status recovery.IntegrityStatus) string {
	switch status {
	case recovery.IntegrityOK:
		return "OK"
	case recovery.IntegrityFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}
