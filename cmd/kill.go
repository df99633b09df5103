package cmd

import (
	"strconv"

	"github.com/grovetools/hop/logging"
	"github.com/grovetools/hop/pkg/cleanup"
	"github.com/grovetools/hop/pkg/process"
	"github.com/spf13/cobra"
)

// NewKillCmd creates the `kill` command.
func NewKillCmd(hooks *cleanup.Registry) *cobra.Command {
	var (
		signal   string
		attempts int
		escalate bool
		sudo     bool
	)

	cmd := &cobra.Command{
		Use:   "kill <pid|pattern>",
		Short: "Signal a process and optionally escalate to SIGKILL",
		Long: `Sends a signal to a PID, or to every process whose command line matches a
pattern. With --attempts hop re-checks that the targets died; with
--escalate survivors get SIGKILL after those checks.

Examples:
  hop kill 4242
  hop kill --attempts 5 --escalate 'autossh.*db1'
  hop kill --signal HUP --sudo 'nginx: master'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, hooks)
			if err != nil {
				return err
			}
			sig, err := process.ParseSignal(signal)
			if err != nil {
				return err
			}

			target := process.Name(args[0])
			if pid, err := strconv.Atoi(args[0]); err == nil {
				target = process.PID(pid)
			}

			verify := attempts
			if escalate {
				if verify == 0 {
					verify = 3
				}
				verify = -verify
			}

			err = a.terminator().Terminate(cmd.Context(), target, process.TerminateOptions{
				Signal:         sig,
				VerifyAttempts: verify,
				UseSudo:        sudo,
				Interval:       a.cfg.Terminate.Interval.Std(),
			})
			if err != nil {
				return err
			}
			a.logger.WithField("target", target.String()).Debug("Terminated")
			logging.NewConsole(cmd.OutOrStdout()).Success("Signalled "+target.String(), nil)
			return nil
		},
	}
	cmd.Flags().StringVarP(&signal, "signal", "s", "TERM", "Signal to send first")
	cmd.Flags().IntVar(&attempts, "attempts", 0, "Liveness checks after signalling")
	cmd.Flags().BoolVar(&escalate, "escalate", false, "Send SIGKILL to survivors")
	cmd.Flags().BoolVar(&sudo, "sudo", false, "Signal through sudo -n kill")
	return cmd
}
