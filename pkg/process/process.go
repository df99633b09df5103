// Package process queries the OS process table and stops processes with
// signal escalation.
package process

import (
	"fmt"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// MaxPID is the largest PID a Linux kernel can hand out (PID_MAX_LIMIT).
const MaxPID = 4194304

// IsProcessAlive checks if a process with the given PID is still running.
// It uses a signal-sending method that works on Unix-like systems (macOS, Linux).
func IsProcessAlive(pid int) bool {
	// PID 0 or less is invalid.
	if pid <= 0 {
		return false
	}

	// Signal 0 checks for existence without delivering anything.
	// EPERM means the process exists but belongs to someone else.
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}

// Record is a point-in-time snapshot of one process.
type Record struct {
	PID         int    `json:"pid"`
	Name        string `json:"name"`
	CommandLine string `json:"command_line"`
}

func (r Record) String() string {
	return fmt.Sprintf("%d %s", r.PID, r.CommandLine)
}

// ParseSignal accepts "TERM", "SIGTERM", "term" or "15".
func ParseSignal(s string) (syscall.Signal, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return unix.SIGTERM, nil
	}
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err == nil && fmt.Sprint(n) == s {
		if n <= 0 || n > 64 {
			return 0, fmt.Errorf("invalid signal number: %d", n)
		}
		return syscall.Signal(n), nil
	}
	if !strings.HasPrefix(s, "SIG") {
		s = "SIG" + s
	}
	sig := unix.SignalNum(s)
	if sig == 0 {
		return 0, fmt.Errorf("unknown signal: %s", s)
	}
	return sig, nil
}

// signalFlag renders a signal for kill/pkill, e.g. "-TERM".
func signalFlag(sig syscall.Signal) string {
	if name := unix.SignalName(sig); name != "" {
		return "-" + strings.TrimPrefix(name, "SIG")
	}
	return fmt.Sprintf("-%d", int(sig))
}
