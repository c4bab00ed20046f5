// Package procctl defines the process-control capability the core consumes
// as a small external interface, and a default implementation backed by
// gopsutil. Process introspection itself is explicitly out of scope for the
// core: the Response Engine only ever talks to the Controller interface.
package procctl

import "time"

// FailureKind classifies why a process-control call didn't succeed.
type FailureKind string

const (
	NoFailure       FailureKind = ""
	NoSuchProcess   FailureKind = "no_such_process"
	AccessDenied    FailureKind = "access_denied"
	ZombieProcess   FailureKind = "zombie_process"
	OtherFailure    FailureKind = "other"
)

// Action is a timestamped record of one process-control call.
type Action struct {
	Timestamp time.Time
	Action    string // "suspend", "resume", "terminate", "block_executable"
	PID       int32
	Success   bool
	Failure   FailureKind
	Error     string
}

// ProcessInfo is one node in a process tree.
type ProcessInfo struct {
	PID    int32
	Name   string
	Status string
	Exe    string
}

// Controller is the capability set the Response Engine requires from an OS
// process-control adapter. Calls are synchronous; repeated suspend on an
// already-suspended process is expected to return success-with-no-change,
// which any real adapter is responsible for normalizing.
type Controller interface {
	Suspend(pid int32) Action
	Resume(pid int32) Action
	Terminate(pid int32) Action
	BlockExecutable(pid int32) Action
	ProcessTree(pid int32) ([]ProcessInfo, error)
}
