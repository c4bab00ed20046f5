// Package incident builds the forensic write-up produced whenever the
// response engine reaches its top escalation level: what triggered the
// response, what was done about it, and what happened to the files
// involved.
package incident

import (
	"time"

	"github.com/google/uuid"
)

// ActionRecord is one response action taken during the incident, rendered
// verbatim into the report body.
type ActionRecord struct {
	Name    string
	Success bool
	Detail  string
}

// FileRecord is one file the engine snapshotted or restored as part of the
// incident.
type FileRecord struct {
	Path      string
	BackupID  int64
	Restored  bool
	Integrity string
}

// Report is one complete incident write-up.
type Report struct {
	ID            string
	GeneratedAt   time.Time
	PID           int32
	ProcessName   string
	ThreatScore   int
	ThreatLevel   string
	Indicators    map[string]string
	Actions       []ActionRecord
	Files         []FileRecord
	ProcessBlocked bool
}

// New builds a Report with a fresh ID and a GeneratedAt timestamp supplied
// by the caller (the package never calls time.Now directly, keeping report
// construction deterministic for callers that need it, e.g. tests).
func New(generatedAt time.Time, pid int32, processName string, threatScore int, threatLevel string, indicators map[string]string) *Report {
	return &Report{
		ID:          uuid.NewString(),
		GeneratedAt: generatedAt,
		PID:         pid,
		ProcessName: processName,
		ThreatScore: threatScore,
		ThreatLevel: threatLevel,
		Indicators:  indicators,
	}
}
