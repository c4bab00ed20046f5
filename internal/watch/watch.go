// Package watch turns raw filesystem notifications into the eventlog.Event
// shape the rest of the core consumes, recursively watching a set of
// root directories with fsnotify the way a hot-reload config watcher
// watches its tree.
package watch

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/tarekazabou/ransomguard/internal/entropy"
	"github.com/tarekazabou/ransomguard/internal/eventlog"
)

// Watcher recursively watches a set of root paths and emits eventlog.Event
// values as files are created, modified, removed, or renamed.
type Watcher struct {
	fsw      *fsnotify.Watcher
	analyzer *entropy.Analyzer
	pidOf    func(path string) (pid int32, processName string, ok bool)
	log      *logrus.Entry

	sizeCache map[string]int64

	// pendingRenameFrom/pendingRenameAt track the departure side of a
	// rename (fsnotify only ever reports one path per event) so the
	// immediately-following Create for the same directory can be paired
	// with it to detect an extension change, the way a single
	// src_path/dest_path moved event would upstream.
	pendingRenameFrom string
	pendingRenameAt   time.Time
}

// renamePairWindow bounds how long a departed path is remembered waiting
// for its paired Create; an unrelated create arriving after this long is
// never treated as that rename's destination.
const renamePairWindow = 2 * time.Second

// New builds a Watcher over roots. pidOf resolves the PID and process
// name attributable to a path's change; a nil pidOf leaves every event
// attributed to no PID (HasPID false, which pattern.Detector buckets under
// pattern.NullPID).
func New(roots []string, analyzer *entropy.Analyzer, pidOf func(string) (int32, string, bool)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{fsw: fsw, analyzer: analyzer, pidOf: pidOf, log: logrus.WithField("component", "watch"), sizeCache: make(map[string]int64)}
	for _, root := range roots {
		if err := w.addRecursive(root); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable subtrees rather than aborting the whole walk
		}
		if info.IsDir() {
			return w.fsw.Add(path)
		}
		w.sizeCache[path] = info.Size()
		return nil
	})
}

// Events returns the channel of translated events. Callers should range
// over it until Close.
func (w *Watcher) Events() <-chan eventlog.Event {
	out := make(chan eventlog.Event, 256)
	go w.run(out)
	return out
}

func (w *Watcher) run(out chan<- eventlog.Event) {
	defer close(out)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			for _, translated := range w.translate(ev) {
				out <- translated
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("watcher error")
		}
	}
}

func (w *Watcher) translate(ev fsnotify.Event) []eventlog.Event {
	out := eventlog.Event{
		Timestamp: time.Now(),
		Path:      ev.Name,
		Extension: strings.ToLower(filepath.Ext(ev.Name)),
	}
	if w.pidOf != nil {
		if pid, name, ok := w.pidOf(ev.Name); ok {
			out.PID, out.ProcessName, out.HasPID = pid, name, true
		}
	}

	info, statErr := os.Stat(ev.Name)
	if info != nil && info.IsDir() {
		out.IsDirectory = true
		if ev.Op&fsnotify.Create != 0 {
			_ = w.fsw.Add(ev.Name)
		}
	}

	var extra []eventlog.Event

	switch {
	case ev.Op&fsnotify.Create != 0:
		out.Type = eventlog.Created
		if info != nil {
			out.SizeAfter = ptrInt64(info.Size())
			w.sizeCache[ev.Name] = info.Size()
		}
		w.recordEntropy(&out, ev.Name, true)

		if !out.IsDirectory {
			if changed, ok := w.matchRenameDestination(ev.Name, out); ok {
				extra = append(extra, changed)
			}
		}

	case ev.Op&fsnotify.Write != 0:
		out.Type = eventlog.Modified
		if before, ok := w.sizeCache[ev.Name]; ok {
			out.SizeBefore = ptrInt64(before)
		}
		if info != nil {
			out.SizeAfter = ptrInt64(info.Size())
			w.sizeCache[ev.Name] = info.Size()
		}
		w.recordEntropy(&out, ev.Name, false)

	case ev.Op&fsnotify.Remove != 0:
		out.Type = eventlog.Deleted
		delete(w.sizeCache, ev.Name)
		if w.analyzer != nil {
			_ = w.analyzer.OnDelete(ev.Name)
		}

	case ev.Op&fsnotify.Rename != 0:
		out.Type = eventlog.Moved
		out.OldPath = ev.Name
		delete(w.sizeCache, ev.Name)
		w.pendingRenameFrom = ev.Name
		w.pendingRenameAt = out.Timestamp

	default:
		return nil
	}

	if statErr != nil && out.Type != eventlog.Deleted && out.Type != eventlog.Moved {
		// Best effort: a vanished file between the notification and the
		// stat call still produces a usable, if incomplete, event.
		w.log.WithError(statErr).Debug("stat after fs event failed")
	}
	return append([]eventlog.Event{out}, extra...)
}

// matchRenameDestination pairs a Create at newPath with the most recent
// Rename departure, if one is still pending, same directory, and within
// renamePairWindow. fsnotify reports a rename's old and new paths as two
// independent events rather than one paired move, so this reassembles
// them to detect the rename-to-suspicious-extension pattern (for example
// report.docx -> report.docx.locked) that a single combined event would
// otherwise expose directly.
func (w *Watcher) matchRenameDestination(newPath string, created eventlog.Event) (eventlog.Event, bool) {
	oldPath := w.pendingRenameFrom
	pendingAt := w.pendingRenameAt
	w.pendingRenameFrom = ""

	if oldPath == "" || oldPath == newPath {
		return eventlog.Event{}, false
	}
	if created.Timestamp.Sub(pendingAt) > renamePairWindow {
		return eventlog.Event{}, false
	}
	if filepath.Dir(oldPath) != filepath.Dir(newPath) {
		return eventlog.Event{}, false
	}

	oldExt := strings.ToLower(filepath.Ext(oldPath))
	if oldExt == created.Extension {
		return eventlog.Event{}, false
	}

	return eventlog.Event{
		Timestamp:   created.Timestamp,
		Type:        eventlog.ExtensionChanged,
		Path:        newPath,
		OldPath:     oldPath,
		Extension:   created.Extension,
		PID:         created.PID,
		ProcessName: created.ProcessName,
		HasPID:      created.HasPID,
	}, true
}

func (w *Watcher) recordEntropy(out *eventlog.Event, path string, created bool) {
	if w.analyzer == nil {
		return
	}
	var result entropy.Result
	var err error
	if created {
		result, err = w.analyzer.OnCreate(path)
	} else {
		result, err = w.analyzer.AnalyzeModification(path)
	}
	if err != nil {
		return
	}
	out.EntropyAfter = ptrFloat64(result.After)
	if result.Before != nil {
		out.EntropyDelta = ptrFloat64(result.Delta)
	}
}

func ptrInt64(v int64) *int64     { return &v }
func ptrFloat64(v float64) *float64 { return &v }

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
