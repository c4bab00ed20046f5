package response

import (
	"time"

	"github.com/tarekazabou/ransomguard/internal/incident"
	"github.com/tarekazabou/ransomguard/internal/procctl"
	"github.com/tarekazabou/ransomguard/internal/scoring"
)

// EscalationLevel is the cumulative response tier driven by a threat score.
type EscalationLevel int

const (
	LevelNone     EscalationLevel = 0
	LevelMonitor  EscalationLevel = 1
	LevelWarn     EscalationLevel = 2
	LevelContain  EscalationLevel = 3
	LevelTerminate EscalationLevel = 4
)

// EscalationFor maps a clamped [0,100] threat score to the level whose
// actions the engine should cumulatively apply.
func EscalationFor(score int) EscalationLevel {
	switch {
	case score <= 30:
		return LevelNone
	case score <= 50:
		return LevelMonitor
	case score <= 70:
		return LevelWarn
	case score <= 85:
		return LevelContain
	default:
		return LevelTerminate
	}
}

// ActionOutcome records the result of one concrete response action.
type ActionOutcome struct {
	Name    string
	Success bool
	Detail  string
}

// Result is the full outcome of one response cycle for one PID.
type Result struct {
	Timestamp           time.Time
	Score               scoring.Score
	Level               EscalationLevel
	Actions             []ActionOutcome
	Alerts              []Alert
	ProcessActions      []procctl.Action
	Incident            *incident.Report
	PendingConfirmation bool
	Confirmed           bool
	Denied              bool
}
