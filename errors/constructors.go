package errors

import (
	"fmt"
	"os/exec"
)

// NotSpecified creates an error for a required field that was left empty
func NotSpecified(field string) *HopError {
	return New(ErrCodeNotSpecified, fmt.Sprintf("%s not specified", field)).
		WithDetail("field", field)
}

// InvalidPort creates an invalid port error
func InvalidPort(port int) *HopError {
	return New(ErrCodeInvalidPort, fmt.Sprintf("invalid port %d (must be 1-65535)", port)).
		WithDetail("port", port)
}

// InvalidTunnelSpec creates an invalid tunnel specification error
func InvalidTunnelSpec(reason string) *HopError {
	return New(ErrCodeInvalidTunnelSpec, fmt.Sprintf("invalid tunnel: %s", reason))
}

// ConflictingOptions creates an error for mutually exclusive options
func ConflictingOptions(a, b string) *HopError {
	return New(ErrCodeConflictingOptions, fmt.Sprintf("options %s and %s cannot be combined", a, b)).
		WithDetail("options", []string{a, b})
}

// IdentityFileNotFound creates an error for a missing identity file
func IdentityFileNotFound(path string) *HopError {
	return New(ErrCodeIdentityFileNotFound, fmt.Sprintf("identity file not found: %s", path)).
		WithDetail("path", path)
}

// MissingCredentials creates an error for a remote target without user or identity
func MissingCredentials(host, missing string) *HopError {
	return New(ErrCodeMissingCredentials, fmt.Sprintf("no %s configured for host %s", missing, host)).
		WithDetail("host", host).
		WithDetail("missing", missing)
}

// AlreadyRunning creates a lock contention error
func AlreadyRunning(name string, pid int) *HopError {
	return New(ErrCodeAlreadyRunning, fmt.Sprintf("%s is already running with PID %d", name, pid)).
		WithDetail("name", name).
		WithDetail("pid", pid)
}

// Busy creates an error for a target path occupied by other processes
func Busy(path string, pids []int) *HopError {
	return New(ErrCodeBusy, fmt.Sprintf("path %s is busy (processes %v)", path, pids)).
		WithDetail("path", path).
		WithDetail("pids", pids)
}

// KillFailed creates an error for a process that survived signal escalation
func KillFailed(target string) *HopError {
	return New(ErrCodeKillFailed, fmt.Sprintf("failed to kill %s", target)).
		WithDetail("target", target)
}

// CommandFailed creates a command execution failure error
func CommandFailed(cmd string, err error) *HopError {
	hopErr := Wrap(err, ErrCodeExecutionFailed, fmt.Sprintf("command failed: %s", cmd)).
		WithDetail("command", cmd)

	// Extract exit code if available
	if exitErr, ok := err.(*exec.ExitError); ok {
		hopErr = hopErr.WithDetail("exitCode", exitErr.ExitCode())
	}

	return hopErr
}

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *HopError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *HopError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}
