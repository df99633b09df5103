package cmd

import (
	"fmt"

	"github.com/grovetools/hop/pkg/cleanup"
	"github.com/grovetools/hop/pkg/sshcmd"
	"github.com/spf13/cobra"
)

// NewKnownHostsCmd creates the `known-hosts` command group.
func NewKnownHostsCmd(hooks *cleanup.Registry) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "known-hosts",
		Short: "Manage hop's known-hosts file",
	}

	var port int
	add := &cobra.Command{
		Use:   "add <host>",
		Short: "Scan a host's keys and append any that are not yet recorded",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, hooks)
			if err != nil {
				return err
			}
			host, p := args[0], port
			if a.cfg.HasHost(host) {
				d, err := a.cfg.Descriptor(host)
				if err != nil {
					return err
				}
				host = d.Host
				if p == 0 {
					p = d.EffectivePort()
				}
			}
			if p == 0 {
				p = sshcmd.DefaultPort
			}

			reg := a.registrar()
			if err := reg.Register(cmd.Context(), host, p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded keys for %s:%d in %s\n", host, p, reg.File())
			return nil
		},
	}
	add.Flags().IntVarP(&port, "port", "p", 0, "SSH port")

	path := &cobra.Command{
		Use:   "path",
		Short: "Print the known-hosts file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, hooks)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.layout.KnownHostsFile())
			return nil
		},
	}

	cmd.AddCommand(add, path)
	return cmd
}
