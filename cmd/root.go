package cmd

import (
	"github.com/grovetools/hop/cli"
	"github.com/grovetools/hop/pkg/cleanup"
	"github.com/grovetools/hop/pkg/profiling"
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the hop command tree. Hooks registered by
// subcommands run when the process exits or is interrupted.
func NewRootCmd(hooks *cleanup.Registry) *cobra.Command {
	root := cli.NewStandardCommand("hop", "Build and run ssh command lines through jump hosts")
	root.Long = `hop builds ssh, scp, ssh-copy-id and autossh command lines for hosts
reached through any number of jump hosts, runs commands on them, manages
tunnels, and coordinates local processes with PID locks and signal
escalation.

Hosts, proxies and defaults live in hop.yml. Run 'hop config schema' for
the full format.`

	root.AddCommand(
		NewExecCmd(hooks),
		NewRenderCmd(hooks),
		NewTunnelCmd(hooks),
		NewPsCmd(hooks),
		NewKillCmd(hooks),
		NewLockCmd(hooks),
		NewGitCmd(hooks),
		NewKnownHostsCmd(hooks),
		NewConfigCmd(),
		NewPathsCmd(),
		NewLogsCmd(),
		cli.NewVersionCommand("hop"),
	)

	profiling.NewCobraProfiler().Attach(root)
	cli.ApplyStyledHelpRecursive(root)
	return root
}
