package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/grovetools/hop/cli"
	"github.com/grovetools/hop/pkg/cleanup"
	"github.com/grovetools/hop/pkg/sshcmd"
	"github.com/spf13/cobra"
)

// NewRenderCmd creates the `render` command.
func NewRenderCmd(hooks *cleanup.Registry) *cobra.Command {
	var (
		tool       string
		register   bool
		background bool
		terminal   bool
		noTerminal bool
	)

	cmd := &cobra.Command{
		Use:   "render <host> [-- args...]",
		Short: "Print the command line for a host without running it",
		Long: `Prints the ssh, scp, autossh or ssh-copy-id command line hop would run,
with every proxy hop nested into a ProxyCommand.

Examples:
  hop render db1
  hop render db1 --tool scp -- ./dump.sql :/tmp/dump.sql
  hop render db1 --tool autossh --json`,
		Args: cobra.MinimumNArgs(1),
	}
	target := addTargetFlags(cmd)
	cmd.Flags().StringVar(&tool, "tool", "ssh", "Tool to render: ssh, scp, autossh, or ssh-copy-id")
	cmd.Flags().BoolVar(&register, "register-hosts", false, "Record proxy host keys with ssh-keyscan while rendering")
	cmd.Flags().BoolVar(&background, "background", false, "Run in the background")
	cmd.Flags().BoolVarP(&terminal, "tty", "t", false, "Force a terminal")
	cmd.Flags().BoolVarP(&noTerminal, "no-tty", "T", false, "Disable the terminal")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, hooks)
		if err != nil {
			return err
		}
		t, err := sshcmd.ParseTool(tool)
		if err != nil {
			return err
		}
		d, err := target.resolve(cmd, a, args[0])
		if err != nil {
			return err
		}
		if d != nil {
			d.Options.Background = d.Options.Background || background
			d.Options.ForceTerminal = terminal
			d.Options.DisableTerminal = noTerminal
		}

		line, err := a.builder(register).Build(cmd.Context(), d, t, args[1:]...)
		if err != nil {
			return err
		}

		if cli.GetOptions(cmd).JSONOutput {
			data, err := json.MarshalIndent(map[string]interface{}{
				"argv":       line.Argv,
				"background": line.Background,
				"command":    line.String(),
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), line.String())
		return nil
	}
	return cmd
}
