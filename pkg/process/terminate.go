package process

import (
	"context"
	"fmt"
	"strconv"
	"syscall"
	"time"

	"github.com/grovetools/hop/command"
	"github.com/grovetools/hop/errors"
	"github.com/grovetools/hop/logging"
	"github.com/sirupsen/logrus"
)

// DefaultInterval is the pause between liveness checks.
const DefaultInterval = time.Second

// Target identifies what to stop: a single PID or every process whose
// command line matches a pattern.
type Target struct {
	pid     int
	pattern string
}

// PID targets one process.
func PID(pid int) Target {
	return Target{pid: pid}
}

// Name targets all processes matching pattern (see Registry.FindByName).
func Name(pattern string) Target {
	return Target{pattern: pattern}
}

func (t Target) String() string {
	if t.pattern != "" {
		return fmt.Sprintf("processes matching %q", t.pattern)
	}
	return fmt.Sprintf("PID %d", t.pid)
}

// TerminateOptions controls a Terminate call.
type TerminateOptions struct {
	// Signal is sent first. Zero means SIGTERM.
	Signal syscall.Signal
	// VerifyAttempts is how many times to re-check that the target died.
	// Zero skips verification. A negative value verifies |VerifyAttempts|
	// times and escalates to SIGKILL when the target survives.
	VerifyAttempts int
	// UseSudo sends signals through "sudo -n kill".
	UseSudo bool
	// Interval is the pause around each liveness check. Zero means DefaultInterval.
	Interval time.Duration
}

// Terminator stops processes and escalates to SIGKILL when asked to.
type Terminator struct {
	finder Finder
	exec   command.Executor
	logger *logrus.Entry

	// alive and sleep are replaceable in tests.
	alive func(pid int) bool
	sleep func(ctx context.Context, d time.Duration) error
}

// NewTerminator creates a Terminator that signals through kill(1).
func NewTerminator(exec command.Executor, finder Finder) *Terminator {
	if exec == nil {
		exec = &command.RealExecutor{}
	}
	if finder == nil {
		finder = NewRegistry(exec)
	}
	return &Terminator{
		finder: finder,
		exec:   exec,
		logger: logging.NewLogger("process"),
		alive:  IsProcessAlive,
		sleep:  sleepContext,
	}
}

// Terminate sends opts.Signal to target and optionally verifies that it
// died. Signalling a target that is already gone is a no-op success.
func (t *Terminator) Terminate(ctx context.Context, target Target, opts TerminateOptions) error {
	sig := opts.Signal
	if sig == 0 {
		sig = syscall.SIGTERM
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	pids, err := t.resolve(ctx, target)
	if err != nil {
		return errors.WithOperation(err, "process.Terminate")
	}
	if len(pids) == 0 {
		t.logger.WithField("target", target.String()).Debug("Target already gone, nothing to signal")
		return nil
	}

	log := t.logger.WithFields(logrus.Fields{
		"target": target.String(),
		"pids":   pids,
		"signal": signalFlag(sig),
	})
	log.Debug("Sending signal")
	if err := t.signal(ctx, pids, sig, opts.UseSudo); err != nil {
		return errors.WithOperation(err, "process.Terminate")
	}

	if opts.VerifyAttempts == 0 {
		return nil
	}
	attempts := opts.VerifyAttempts
	if attempts < 0 {
		attempts = -attempts
	}

	remaining, err := t.waitGone(ctx, pids, attempts, interval)
	if err != nil {
		return errors.WithOperation(err, "process.Terminate")
	}
	if len(remaining) == 0 {
		return nil
	}
	if opts.VerifyAttempts > 0 || sig == syscall.SIGKILL {
		return errors.KillFailed(target.String()).WithDetail("pids", remaining)
	}

	log.WithField("remaining", remaining).Warn("Target survived, escalating to SIGKILL")
	if err := t.signal(ctx, remaining, syscall.SIGKILL, opts.UseSudo); err != nil {
		return errors.WithOperation(err, "process.Terminate")
	}
	remaining, err = t.waitGone(ctx, remaining, attempts, interval)
	if err != nil {
		return errors.WithOperation(err, "process.Terminate")
	}
	if len(remaining) > 0 {
		return errors.KillFailed(target.String()).WithDetail("pids", remaining)
	}
	return nil
}

// resolve returns the live PIDs behind target.
func (t *Terminator) resolve(ctx context.Context, target Target) ([]int, error) {
	if target.pattern == "" {
		if target.pid <= 0 {
			return nil, errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("invalid PID %d", target.pid))
		}
		if !t.alive(target.pid) {
			return nil, nil
		}
		return []int{target.pid}, nil
	}
	return t.finder.FindByName(ctx, target.pattern)
}

// signal runs "kill -SIG pid...". A non-zero exit is ignored when every
// PID has vanished in the meantime.
func (t *Terminator) signal(ctx context.Context, pids []int, sig syscall.Signal, sudo bool) error {
	var exec command.Executor = t.exec
	if sudo {
		exec = &command.SudoExecutor{Inner: t.exec}
	}

	args := []string{signalFlag(sig)}
	for _, pid := range pids {
		args = append(args, strconv.Itoa(pid))
	}
	cmd, err := command.NewSafeBuilderWithExecutor(exec).Build(ctx, "kill", args...)
	if err != nil {
		return err
	}
	if _, err := cmd.Run(); err != nil {
		if errors.Is(err, errors.ErrCodeExecutionFailed) && len(t.living(pids)) == 0 {
			return nil
		}
		return err
	}
	return nil
}

// waitGone polls until every PID is dead or attempts run out, sleeping
// before and after each check. It returns the PIDs still alive.
func (t *Terminator) waitGone(ctx context.Context, pids []int, attempts int, interval time.Duration) ([]int, error) {
	remaining := pids
	for i := 0; i < attempts; i++ {
		if err := t.sleep(ctx, interval); err != nil {
			return remaining, err
		}
		remaining = t.living(remaining)
		if len(remaining) == 0 {
			return nil, nil
		}
		if err := t.sleep(ctx, interval); err != nil {
			return remaining, err
		}
	}
	return remaining, nil
}

func (t *Terminator) living(pids []int) []int {
	var out []int
	for _, pid := range pids {
		if t.alive(pid) {
			out = append(out, pid)
		}
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
