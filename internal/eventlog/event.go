// Package eventlog defines the FileEvent record produced by the OS
// file-system shim and the durable, append-only store that persists it.
package eventlog

import "time"

// Type is the kind of file-system operation a FileEvent describes.
type Type string

const (
	Created          Type = "created"
	Modified         Type = "modified"
	Deleted          Type = "deleted"
	Moved            Type = "moved"
	ExtensionChanged Type = "extension_changed"
)

// Event is an immutable record of one observed file-system operation. It is
// produced externally by the OS shim, consumed once by the pipeline, and
// persisted verbatim to the event log.
type Event struct {
	Timestamp    time.Time
	Type         Type
	Path         string
	OldPath      string // set for Moved / ExtensionChanged
	Extension    string
	PID          int32
	HasPID       bool
	ProcessName  string
	SizeBefore   *int64
	SizeAfter    *int64
	EntropyAfter *float64
	EntropyDelta *float64
	IsDirectory  bool
}
