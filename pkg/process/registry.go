package process

import (
	"context"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/grovetools/hop/command"
	"github.com/grovetools/hop/errors"
)

// Finder is the read-only view of the process table used by the lock,
// the terminator and the git wrapper.
type Finder interface {
	FindByName(ctx context.Context, pattern string) ([]int, error)
	Describe(ctx context.Context, pid int) (*Record, error)
}

// Registry enumerates processes through pgrep and ps.
type Registry struct {
	builder *command.SafeBuilder
}

// NewRegistry creates a Registry that spawns pgrep/ps through exec.
func NewRegistry(exec command.Executor) *Registry {
	if exec == nil {
		exec = &command.RealExecutor{}
	}
	return &Registry{builder: command.NewSafeBuilderWithExecutor(exec)}
}

// FindByName returns the PIDs whose full command line matches the extended
// regular expression pattern, in ascending order. The calling process is
// never included. No match is not an error.
func (r *Registry) FindByName(ctx context.Context, pattern string) ([]int, error) {
	if pattern == "" {
		return nil, errors.NotSpecified("process pattern")
	}

	cmd, err := r.builder.Build(ctx, "pgrep", "-f", "--", pattern)
	if err != nil {
		return nil, err
	}
	out, err := cmd.Run()
	if err != nil {
		// pgrep exits 1 when nothing matched
		if out != nil && out.ExitCode == 1 {
			return []int{}, nil
		}
		return nil, errors.WithOperation(err, "process.FindByName")
	}

	self := os.Getpid()
	pids := make([]int, 0, len(out.Lines()))
	for _, line := range out.Lines() {
		pid, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || pid == self {
			continue
		}
		pids = append(pids, pid)
	}
	sort.Ints(pids)
	return pids, nil
}

// Describe returns the live process with the given PID, or nil if no such
// process exists.
func (r *Registry) Describe(ctx context.Context, pid int) (*Record, error) {
	if pid <= 0 || pid > MaxPID {
		return nil, nil
	}

	cmd, err := r.builder.Build(ctx, "ps", "-ww", "-o", "pid=,comm=,args=", "-p", strconv.Itoa(pid))
	if err != nil {
		return nil, err
	}
	out, err := cmd.Run()
	if err != nil {
		// ps exits 1 when the PID is not in the table
		if out != nil && out.ExitCode == 1 && len(strings.TrimSpace(string(out.Data))) == 0 {
			return nil, nil
		}
		return nil, errors.WithOperation(err, "process.Describe")
	}

	for _, line := range out.Lines() {
		if rec, ok := parsePSLine(line); ok && rec.PID == pid {
			return rec, nil
		}
	}
	return nil, nil
}

// parsePSLine parses "  PID COMM ARGS..." as printed by ps -o pid=,comm=,args=.
func parsePSLine(line string) (*Record, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil, false
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, false
	}

	rest := strings.TrimSpace(line)
	rest = strings.TrimSpace(rest[len(fields[0]):])
	rest = strings.TrimSpace(rest[len(fields[1]):])

	rec := &Record{PID: pid, Name: fields[1], CommandLine: rest}
	if rec.CommandLine == "" {
		rec.CommandLine = rec.Name
	}
	return rec, true
}

// MatchesName reports whether a process record belongs to the program
// called name. ps truncates comm to 15 characters on Linux, so the first
// argument of the command line is checked as well.
func (r Record) MatchesName(name string) bool {
	if name == "" {
		return false
	}
	if r.Name == name || (len(name) > 15 && r.Name == name[:15]) {
		return true
	}
	fields := strings.Fields(r.CommandLine)
	for i, f := range fields {
		if i > 1 {
			break
		}
		if baseName(f) == name {
			return true
		}
	}
	return false
}

func baseName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}
