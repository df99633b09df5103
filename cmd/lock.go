package cmd

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/grovetools/hop/cli"
	"github.com/grovetools/hop/command"
	"github.com/grovetools/hop/errors"
	"github.com/grovetools/hop/logging"
	"github.com/grovetools/hop/pkg/cleanup"
	"github.com/grovetools/hop/pkg/lock"
	"github.com/grovetools/hop/pkg/process"
	"github.com/spf13/cobra"
)

// NewLockCmd creates the `lock` command group.
func NewLockCmd(hooks *cleanup.Registry) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Run jobs under a single-instance PID lock",
		Long: `Locks are PID files named after the job in hop's run directory. A lock
left behind by a dead process, or by a process that is no longer the named
job, is discarded. When the job is already running hop exits with 201.`,
	}
	cmd.AddCommand(newLockRunCmd(hooks), newLockStatusCmd(hooks), newLockWaitCmd(hooks))
	return cmd
}

// newLock creates the lock for a job run by `hop lock run`. The PID file
// holds hop's own PID, so the owner is a hop process whose arguments name
// the job.
func newLock(a *app, name string) *lock.Lock {
	program := filepath.Base(os.Args[0])
	return lock.New(lock.Options{
		Name:    name,
		Dir:     a.layout.RunDir(),
		Finder:  a.finder,
		Cleanup: a.hooks,
		Owner: func(rec *process.Record) bool {
			return rec.MatchesName(program) && runsJob(rec.CommandLine, name)
		},
	})
}

// runsJob reports whether a hop command line is "... lock run <name> ...".
func runsJob(commandLine, name string) bool {
	fields := strings.Fields(commandLine)
	for i := 0; i+2 < len(fields); i++ {
		if fields[i] == "lock" && fields[i+1] == "run" && fields[i+2] == name {
			return true
		}
	}
	return false
}

func newLockRunCmd(hooks *cleanup.Registry) *cobra.Command {
	return &cobra.Command{
		Use:   "run <name> -- <command>...",
		Short: "Run a command while holding the named lock",
		Example: `# Skip tonight's backup if last night's is still running
hop lock run backup -- /usr/local/bin/backup.sh --full`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, hooks)
			if err != nil {
				return err
			}
			l := newLock(a, args[0])
			if err := l.Acquire(cmd.Context()); err != nil {
				return err
			}
			defer func() {
				if err := l.Release(); err != nil {
					a.logger.WithError(err).Warn("Failed to release lock")
				}
			}()

			c, err := command.NewSafeBuilderWithExecutor(a.exec).Build(cmd.Context(), args[1], args[2:]...)
			if err != nil {
				return err
			}
			child, err := c.WithStdin(cmd.InOrStdin()).WithOutput(cmd.OutOrStdout(), cmd.ErrOrStderr()).Start()
			if err != nil {
				return err
			}
			a.logger.WithField("pid", child.Process.Pid).Debug("Started locked job")
			if err := child.Wait(); err != nil {
				return errors.CommandFailed(c.String(), err)
			}
			return nil
		},
	}
}

func newLockStatusCmd(hooks *cleanup.Registry) *cobra.Command {
	return &cobra.Command{
		Use:   "status <name>",
		Short: "Report whether the named job is running",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, hooks)
			if err != nil {
				return err
			}
			l := newLock(a, args[0])
			running, pid, err := l.Status(cmd.Context())
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(cmd, map[string]interface{}{
					"name":    l.Name(),
					"path":    l.Path(),
					"running": running,
					"pid":     pid,
				})
			}
			console := logging.NewConsole(cmd.OutOrStdout())
			if running {
				console.Success(l.Name()+" is running", map[string]interface{}{"pid": pid})
			} else {
				console.Idle(l.Name()+" is not running", nil)
			}
			return nil
		},
	}
}

func newLockWaitCmd(hooks *cleanup.Registry) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "wait <name>",
		Short: "Block until the named job is no longer running",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, hooks)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			if err := newLock(a, args[0]).Wait(ctx); err != nil {
				if stderrors.Is(err, context.DeadlineExceeded) {
					return errors.Busy(args[0], nil).WithDetail("timeout", timeout.String())
				}
				return err
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up after this long (exit 202)")
	return cmd
}
