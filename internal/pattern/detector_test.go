package pattern

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarekazabou/ransomguard/internal/eventlog"
)

func ev(pid int32, typ eventlog.Type, path string, at time.Time) eventlog.Event {
	return eventlog.Event{Timestamp: at, Type: typ, Path: path, PID: pid, HasPID: true}
}

func TestUnknownPIDEvaluatesAllFalse(t *testing.T) {
	d := NewDetector(DefaultWindow, Thresholds{})
	results := d.Evaluate(42)
	for name, r := range results {
		assert.False(t, r.Triggered, "indicator %s should be false for unknown pid", name)
	}
}

// TestMassModificationThreshold mirrors seed scenario 3.
func TestMassModificationThreshold(t *testing.T) {
	d := NewDetector(DefaultWindow, Thresholds{})
	now := time.Now()
	for i := 0; i < 21; i++ {
		d.RecordEvent(ev(100, eventlog.Modified, fmt.Sprintf("/home/u/file%d.txt", i), now))
	}

	results := d.Evaluate(100)
	assert.True(t, results[MassModification].Triggered)
	assert.False(t, results[EntropySpike].Triggered)
}

func TestSlidingWindowPrunesOldEvents(t *testing.T) {
	d := NewDetector(50*time.Millisecond, Thresholds{})
	old := time.Now().Add(-time.Second)
	d.RecordEvent(ev(1, eventlog.Modified, "/a/b.txt", old))

	// Force a prune via a fresh event long after the window closed.
	d.RecordEvent(ev(1, eventlog.Modified, "/a/c.txt", time.Now()))

	results := d.Evaluate(1)
	assert.False(t, results[MassModification].Triggered)
	require.Len(t, d.trackers[1].modified, 1)
	assert.Equal(t, "/a/c.txt", d.trackers[1].modified[0].Path)
}

func TestDirectoriesTouchedRebuiltFromSurvivingQueue(t *testing.T) {
	d := NewDetector(50*time.Millisecond, Thresholds{})
	base := time.Now()
	d.RecordEvent(ev(5, eventlog.Created, "/a/x.txt", base.Add(-time.Second)))
	d.RecordEvent(ev(5, eventlog.Modified, "/b/y.txt", base.Add(-time.Second)))
	d.RecordEvent(ev(5, eventlog.Deleted, "/c/z.txt", base))

	results := d.Evaluate(5)
	// only /c should have survived the window relative to "now" at RecordEvent time
	assert.False(t, results[DirectoryTraversal].Triggered)
	assert.Equal(t, map[string]struct{}{"/c": {}}, d.trackers[5].directoriesTouched)
}

func TestExtensionManipulationRequiresThreeSuspiciousRenames(t *testing.T) {
	d := NewDetector(DefaultWindow, Thresholds{})
	now := time.Now()
	for i := 0; i < 3; i++ {
		e := ev(9, eventlog.ExtensionChanged, fmt.Sprintf("/docs/f%d.locked", i), now)
		e.Extension = ".locked"
		d.RecordEvent(e)
	}
	results := d.Evaluate(9)
	assert.True(t, results[ExtensionManipulation].Triggered)
}

func TestDeletionPatternMatchesStem(t *testing.T) {
	d := NewDetector(DefaultWindow, Thresholds{})
	now := time.Now()
	d.RecordEvent(ev(3, eventlog.Deleted, "/docs/report.docx", now))
	created := ev(3, eventlog.Created, "/docs/report.locked", now)
	created.Extension = ".locked"
	d.RecordEvent(created)

	results := d.Evaluate(3)
	assert.True(t, results[DeletionPattern].Triggered)
}

func TestSuspiciousProcessDetectsTempDirectory(t *testing.T) {
	d := NewDetector(DefaultWindow, Thresholds{})
	now := time.Now()
	d.RecordEvent(ev(4, eventlog.Modified, "/home/user/AppData/Local/evil.exe.tmp", now))

	results := d.Evaluate(4)
	assert.True(t, results[SuspiciousProcess].Triggered)
}

func TestRepeatedEvaluateWithoutNewEventsIsIdempotent(t *testing.T) {
	d := NewDetector(DefaultWindow, Thresholds{})
	now := time.Now()
	for i := 0; i < 25; i++ {
		d.RecordEvent(ev(11, eventlog.Modified, fmt.Sprintf("/x/%d.txt", i), now))
	}

	first := d.Evaluate(11)
	second := d.Evaluate(11)
	assert.Equal(t, first, second)
}

// TestCriticalCombination mirrors seed scenario 4: enough independent
// indicators fire that the raw weighted sum would clamp to 100.
func TestCriticalCombination(t *testing.T) {
	d := NewDetector(DefaultWindow, Thresholds{})
	now := time.Now()

	dirs := []string{"/a", "/b", "/c", "/tmp/staging"}
	for i := 0; i < 21; i++ {
		dir := dirs[i%len(dirs)]
		delta := 2.5
		e := ev(77, eventlog.Modified, fmt.Sprintf("%s/file%d.txt", dir, i), now)
		if i < 3 {
			e.EntropyDelta = &delta
		}
		d.RecordEvent(e)
	}
	for i := 0; i < 3; i++ {
		e := ev(77, eventlog.ExtensionChanged, fmt.Sprintf("/a/f%d.locked", i), now)
		e.Extension = ".locked"
		d.RecordEvent(e)
	}

	results := d.Evaluate(77)
	require.True(t, results[MassModification].Triggered)
	require.True(t, results[EntropySpike].Triggered)
	require.True(t, results[ExtensionManipulation].Triggered)
	require.True(t, results[DirectoryTraversal].Triggered)
	require.True(t, results[SuspiciousProcess].Triggered)
}

func TestTrackedPIDCountReflectsDistinctPIDsInWindow(t *testing.T) {
	d := NewDetector(DefaultWindow, Thresholds{})
	require.Equal(t, 0, d.TrackedPIDCount())

	now := time.Now()
	d.RecordEvent(ev(1, eventlog.Modified, "/a/1.txt", now))
	d.RecordEvent(ev(2, eventlog.Modified, "/a/2.txt", now))
	d.RecordEvent(ev(1, eventlog.Modified, "/a/3.txt", now))

	require.Equal(t, 2, d.TrackedPIDCount())
}
