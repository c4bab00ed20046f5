package procctl

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// GopsutilController implements Controller using gopsutil's process
// package, mirroring the original Python system's use of psutil
// function-for-function: suspend/resume via SIGSTOP/SIGCONT, terminate via
// SIGTERM, block_executable resolving the process's own executable path
// onto a deny list.
type GopsutilController struct {
	mu        sync.Mutex
	blocklist map[string]struct{}
}

// NewGopsutilController returns a ready-to-use Controller.
func NewGopsutilController() *GopsutilController {
	return &GopsutilController{blocklist: make(map[string]struct{})}
}

func classifyError(err error) FailureKind {
	if err == nil {
		return NoFailure
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such process") || strings.Contains(msg, "not found"):
		return NoSuchProcess
	case strings.Contains(msg, "permission") || strings.Contains(msg, "access"):
		return AccessDenied
	case strings.Contains(msg, "zombie"):
		return ZombieProcess
	default:
		return OtherFailure
	}
}

func (c *GopsutilController) action(name string, pid int32, err error) Action {
	a := Action{Timestamp: time.Now(), Action: name, PID: pid, Success: err == nil}
	if err != nil {
		a.Failure = classifyError(err)
		a.Error = err.Error()
	}
	return a
}

// Suspend sends SIGSTOP (via gopsutil's platform-appropriate Suspend call).
func (c *GopsutilController) Suspend(pid int32) Action {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return c.action("suspend", pid, err)
	}
	return c.action("suspend", pid, proc.Suspend())
}

// Resume sends SIGCONT.
func (c *GopsutilController) Resume(pid int32) Action {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return c.action("resume", pid, err)
	}
	return c.action("resume", pid, proc.Resume())
}

// Terminate sends SIGTERM.
func (c *GopsutilController) Terminate(pid int32) Action {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return c.action("terminate", pid, err)
	}
	return c.action("terminate", pid, proc.Terminate())
}

// BlockExecutable resolves pid's executable path and records it on an
// in-memory deny list. A real deployment would persist this list and wire
// it into an OS-level execution-prevention hook; that enforcement mechanism
// is outside the core's scope.
func (c *GopsutilController) BlockExecutable(pid int32) Action {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return c.action("block_executable", pid, err)
	}
	exe, err := proc.Exe()
	if err != nil {
		return c.action("block_executable", pid, err)
	}

	c.mu.Lock()
	c.blocklist[exe] = struct{}{}
	c.mu.Unlock()

	return c.action("block_executable", pid, nil)
}

// IsBlocked reports whether exe has been added to the deny list.
func (c *GopsutilController) IsBlocked(exe string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, blocked := c.blocklist[exe]
	return blocked
}

// ProcessTree returns pid and every descendant, recursively.
func (c *GopsutilController) ProcessTree(pid int32) ([]ProcessInfo, error) {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return nil, fmt.Errorf("process tree for pid %d: %w", pid, err)
	}

	var out []ProcessInfo
	var walk func(p *process.Process) error
	walk = func(p *process.Process) error {
		name, _ := p.Name()
		status, _ := p.Status()
		exe, _ := p.Exe()
		statusStr := ""
		if len(status) > 0 {
			statusStr = status[0]
		}
		out = append(out, ProcessInfo{PID: p.Pid, Name: name, Status: statusStr, Exe: exe})

		children, err := p.Children()
		if err != nil {
			return nil // no children or access denied; not fatal to the walk
		}
		for _, child := range children {
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(proc); err != nil {
		return nil, err
	}
	return out, nil
}

