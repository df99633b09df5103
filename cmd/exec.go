package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/grovetools/hop/cli"
	"github.com/grovetools/hop/pkg/cleanup"
	"github.com/spf13/cobra"
)

// NewExecCmd creates the `exec` command.
func NewExecCmd(hooks *cleanup.Registry) *cobra.Command {
	var accepted []int

	cmd := &cobra.Command{
		Use:   "exec <host|-> -- <command>...",
		Short: "Run a command on a host, or locally with -",
		Long: `Runs a command over ssh, jumping through any configured proxies, and
prints its output. Inline keys given with --identity-stdin are written to a
private file for the duration of the command and removed afterwards.

Examples:
  # Run on a host from hop.yml
  hop exec db1 -- uptime

  # Ad-hoc host through a jump host
  hop exec ops@10.0.0.5 --proxy bastion -i ~/.ssh/ops -- df -h

  # Treat grep's "no match" as success
  hop exec db1 --accept-exit-code 0,1 -- grep ERROR /var/log/app.log

  # Run locally
  hop exec - -- ls /tmp`,
		Args: cobra.MinimumNArgs(2),
	}
	target := addTargetFlags(cmd)
	cmd.Flags().IntSliceVar(&accepted, "accept-exit-code", []int{0}, "Exit codes treated as success")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, hooks)
		if err != nil {
			return err
		}
		d, err := target.resolve(cmd, a, args[0])
		if err != nil {
			return err
		}
		defaultIdentity(d)

		res, err := a.executor(accepted).Run(cmd.Context(), d, strings.Join(args[1:], " "))
		if res != nil {
			if cli.GetOptions(cmd).JSONOutput {
				data, jsonErr := json.MarshalIndent(map[string]interface{}{
					"lines":     res.Lines,
					"exit_code": res.ExitCode,
				}, "", "  ")
				if jsonErr != nil {
					return jsonErr
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
			} else {
				for _, line := range res.Lines {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
			}
		}
		return err
	}
	return cmd
}
