package pattern

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tarekazabou/ransomguard/internal/eventlog"
)

// IndicatorResult is the outcome of one behavioral check: whether it fired,
// and a human-readable detail describing why.
type IndicatorResult struct {
	Triggered bool
	Detail    string
}

// Indicator names, used as map keys from Evaluate.
const (
	MassModification       = "mass_modification"
	EntropySpike           = "entropy_spike"
	ExtensionManipulation  = "extension_manipulation"
	DirectoryTraversal     = "directory_traversal"
	SuspiciousProcess      = "suspicious_process"
	DeletionPattern        = "deletion_pattern"
)

// Detector owns one Tracker per PID and evaluates the six behavioral
// indicators over each tracker's sliding window. It is the single consumer
// of the event stream; callers serialize ingestion themselves (the pipeline
// guarantees one goroutine per PID, see internal/pipeline).
type Detector struct {
	mu         sync.Mutex
	trackers   map[int32]*Tracker
	window     time.Duration
	thresholds Thresholds
}

// NewDetector builds a Detector with the given sliding window and
// thresholds. A non-positive window uses DefaultWindow; a zero-value
// Thresholds (Extensions == nil) uses DefaultThresholds.
func NewDetector(window time.Duration, thresholds Thresholds) *Detector {
	if window <= 0 {
		window = DefaultWindow
	}
	if thresholds.Extensions == nil {
		thresholds = DefaultThresholds()
	}
	return &Detector{trackers: make(map[int32]*Tracker), window: window, thresholds: thresholds}
}

func pidKey(ev eventlog.Event) int32 {
	if !ev.HasPID {
		return NullPID
	}
	return ev.PID
}

// RecordEvent appends ev to its PID's tracker, prunes events older than the
// sliding window, and refreshes the tracked process name.
func (d *Detector) RecordEvent(ev eventlog.Event) {
	pid := pidKey(ev)

	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.trackers[pid]
	if !ok {
		t = newTracker()
		d.trackers[pid] = t
	}

	t.all = append(t.all, ev)
	switch ev.Type {
	case eventlog.Modified:
		t.modified = append(t.modified, ev)
	case eventlog.Created:
		t.created = append(t.created, ev)
	case eventlog.Deleted:
		t.deleted = append(t.deleted, ev)
	case eventlog.Moved:
		t.moved = append(t.moved, ev)
	case eventlog.ExtensionChanged:
		t.extChange = append(t.extChange, ev)
	}

	if ev.ProcessName != "" {
		t.ProcessName = ev.ProcessName
	}

	d.prune(t, time.Now())
}

// prune drops events older than the sliding window and rebuilds
// directoriesTouched from the surviving chronological queue only — never
// from the type-specific lists, which would miss directories touched by
// event types that aren't individually pruned here.
func (d *Detector) prune(t *Tracker, now time.Time) {
	cutoff := now.Add(-d.window)

	t.all = dropBefore(t.all, cutoff)
	t.modified = dropBefore(t.modified, cutoff)
	t.created = dropBefore(t.created, cutoff)
	t.deleted = dropBefore(t.deleted, cutoff)
	t.moved = dropBefore(t.moved, cutoff)
	t.extChange = dropBefore(t.extChange, cutoff)

	dirs := make(map[string]struct{}, len(t.directoriesTouched))
	for _, ev := range t.all {
		dirs[filepath.Dir(ev.Path)] = struct{}{}
	}
	t.directoriesTouched = dirs
}

func dropBefore(events []eventlog.Event, cutoff time.Time) []eventlog.Event {
	i := 0
	for i < len(events) && events[i].Timestamp.Before(cutoff) {
		i++
	}
	if i == 0 {
		return events
	}
	out := make([]eventlog.Event, len(events)-i)
	copy(out, events[i:])
	return out
}

// Evaluate runs all six indicators against pid's current tracker state. An
// unknown PID (no tracker yet, or pruned to empty and never re-seen) returns
// all indicators false.
func (d *Detector) Evaluate(pid int32) map[string]IndicatorResult {
	d.mu.Lock()
	t, ok := d.trackers[pid]
	var snapshot *Tracker
	if ok {
		snapshot = t
	}
	d.mu.Unlock()

	results := map[string]IndicatorResult{
		MassModification:      {},
		EntropySpike:          {},
		ExtensionManipulation: {},
		DirectoryTraversal:    {},
		SuspiciousProcess:     {},
		DeletionPattern:       {},
	}
	if snapshot == nil {
		return results
	}

	th := d.thresholds
	results[MassModification] = checkMassModification(snapshot, th)
	results[EntropySpike] = checkEntropySpike(snapshot, th)
	results[ExtensionManipulation] = checkExtensionManipulation(snapshot, th)
	results[DirectoryTraversal] = checkDirectoryTraversal(snapshot, th)
	results[SuspiciousProcess] = checkSuspiciousProcess(snapshot, th)
	results[DeletionPattern] = checkDeletionPattern(snapshot, th)
	return results
}

// TrackedPIDCount returns the number of distinct PIDs currently holding a
// tracker, i.e. seen within the sliding window.
func (d *Detector) TrackedPIDCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.trackers)
}

// ProcessName returns the last-seen name for pid, or "" if unknown.
func (d *Detector) ProcessName(pid int32) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.trackers[pid]; ok {
		return t.ProcessName
	}
	return ""
}

// AffectedPaths returns every distinct file path currently in pid's
// tracking window, for callers that need to act on the files a process
// has touched (snapshotting ahead of containment, for example).
func (d *Detector) AffectedPaths(pid int32) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.trackers[pid]
	if !ok {
		return nil
	}

	seen := make(map[string]struct{})
	var paths []string
	for _, ev := range t.all {
		if ev.IsDirectory {
			continue
		}
		if _, dup := seen[ev.Path]; dup {
			continue
		}
		seen[ev.Path] = struct{}{}
		paths = append(paths, ev.Path)
	}
	return paths
}

func checkMassModification(t *Tracker, th Thresholds) IndicatorResult {
	n := len(t.modified)
	if n > th.MassModificationCount {
		return IndicatorResult{true, fmt.Sprintf("%d modified events in window", n)}
	}
	return IndicatorResult{}
}

func checkEntropySpike(t *Tracker, th Thresholds) IndicatorResult {
	count := 0
	for _, ev := range t.modified {
		if ev.EntropyDelta != nil && *ev.EntropyDelta >= th.EntropyDeltaMin {
			count++
		}
	}
	if count >= th.EntropySpikeCount {
		return IndicatorResult{true, fmt.Sprintf("%d modifications with entropy delta >= %.1f", count, th.EntropyDeltaMin)}
	}
	return IndicatorResult{}
}

func checkExtensionManipulation(t *Tracker, th Thresholds) IndicatorResult {
	count := 0
	for _, ev := range t.extChange {
		if th.isSuspiciousExtension(ev.Extension) {
			count++
		}
	}
	if count >= th.ExtensionRenameCount {
		return IndicatorResult{true, fmt.Sprintf("%d renames to suspicious extensions", count)}
	}
	return IndicatorResult{}
}

func checkDirectoryTraversal(t *Tracker, th Thresholds) IndicatorResult {
	n := len(t.directoriesTouched)
	if n >= th.DirectoryCount {
		return IndicatorResult{true, fmt.Sprintf("%d distinct directories touched", n)}
	}
	return IndicatorResult{}
}

func checkSuspiciousProcess(t *Tracker, th Thresholds) IndicatorResult {
	for dir := range t.directoriesTouched {
		if containsTempMarker(dir, th.TempMarkers) {
			return IndicatorResult{true, "touched a temp/downloads/appdata-like directory: " + dir}
		}
	}
	return IndicatorResult{}
}

func checkDeletionPattern(t *Tracker, th Thresholds) IndicatorResult {
	deletedStems := make(map[string]struct{}, len(t.deleted))
	for _, ev := range t.deleted {
		deletedStems[stem(ev.Path)] = struct{}{}
	}
	for _, ev := range t.created {
		if !th.isSuspiciousExtension(ev.Extension) {
			continue
		}
		if _, ok := deletedStems[stem(ev.Path)]; ok {
			return IndicatorResult{true, "created suspicious-extension file matching a deleted file's name: " + ev.Path}
		}
	}
	return IndicatorResult{}
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

