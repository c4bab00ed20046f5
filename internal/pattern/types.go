package pattern

import (
	"strings"
	"time"

	"github.com/tarekazabou/ransomguard/internal/eventlog"
)

// NullPID is the sentinel bucket for events with no attributed process.
const NullPID int32 = -1

// DefaultWindow is the sliding time window over which events count toward
// indicators.
const DefaultWindow = 10 * time.Second

// SuspiciousExtensions is the fixed, case-insensitive set of
// ransomware-associated filename suffixes used by extension_manipulation
// and deletion_pattern.
var SuspiciousExtensions = map[string]struct{}{
	".locked": {}, ".encrypted": {}, ".crypto": {}, ".crypt": {}, ".enc": {},
	".ransom": {}, ".rnsmwr": {}, ".cerber": {}, ".locky": {}, ".zepto": {},
	".odin": {}, ".thor": {}, ".aesir": {}, ".zzzzz": {}, ".wallet": {},
	".petya": {}, ".cry": {}, ".wncry": {}, ".wcry": {}, ".wanna": {},
	".xtbl": {}, ".onion": {},
}

// TempDirMarkers are case-insensitive substrings of a directory path that
// mark it as a likely staging/temp location for suspicious_process.
var TempDirMarkers = []string{"temp", "tmp", "downloads", "appdata", "local"}

func containsTempMarker(dir string, markers []string) bool {
	lower := strings.ToLower(dir)
	for _, marker := range markers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Thresholds are the tunable cutoffs behind the six indicator checks.
// DefaultThresholds matches the baseline ransomware-behavior defaults
// exactly; a tuning overrides file may replace any subset of them.
type Thresholds struct {
	MassModificationCount int     // trigger when len(modified) exceeds this
	EntropySpikeCount     int     // trigger when at least this many spikes seen
	EntropyDeltaMin       float64 // per-event entropy delta counted as a spike
	ExtensionRenameCount  int     // trigger when at least this many suspicious renames seen
	DirectoryCount        int     // trigger when at least this many directories touched
	Extensions            map[string]struct{}
	TempMarkers           []string
}

// DefaultThresholds returns the baseline detection thresholds.
func DefaultThresholds() Thresholds {
	ext := make(map[string]struct{}, len(SuspiciousExtensions))
	for k, v := range SuspiciousExtensions {
		ext[k] = v
	}
	markers := make([]string, len(TempDirMarkers))
	copy(markers, TempDirMarkers)

	return Thresholds{
		MassModificationCount: 20,
		EntropySpikeCount:     3,
		EntropyDeltaMin:       2.0,
		ExtensionRenameCount:  3,
		DirectoryCount:        4,
		Extensions:            ext,
		TempMarkers:           markers,
	}
}

func (th Thresholds) isSuspiciousExtension(ext string) bool {
	_, ok := th.Extensions[strings.ToLower(ext)]
	return ok
}

// Tracker is the mutable, per-process sliding-window aggregate the Pattern
// Detector owns exclusively.
type Tracker struct {
	ProcessName string

	all       []eventlog.Event // full chronological queue, oldest first
	modified  []eventlog.Event
	created   []eventlog.Event
	deleted   []eventlog.Event
	moved     []eventlog.Event
	extChange []eventlog.Event

	directoriesTouched map[string]struct{}
}

func newTracker() *Tracker {
	return &Tracker{directoriesTouched: make(map[string]struct{})}
}
