package cmd

import (
	"github.com/grovetools/hop/errors"
	"github.com/grovetools/hop/logging"
	"github.com/grovetools/hop/pkg/cleanup"
	"github.com/grovetools/hop/pkg/sshcmd"
	"github.com/spf13/cobra"
)

// NewTunnelCmd creates the `tunnel` command.
func NewTunnelCmd(hooks *cleanup.Registry) *cobra.Command {
	var (
		sourcePort int
		targetHost string
		targetPort int
		persist    bool
	)

	cmd := &cobra.Command{
		Use:   "tunnel <host>",
		Short: "Open a local port forward through a host",
		Long: `Starts "ssh -f -N -g -L source:target_host:target_port" against the host.
A persistent tunnel outlives hop. Otherwise hop stays in the foreground and
stops the tunnel when interrupted. Non-persistent tunnels cannot be combined
with proxies.

Examples:
  # Forward local 8080 to port 80 on the host itself, until Ctrl-C
  hop tunnel web1 --source-port 8080 --target-host localhost --target-port 80

  # Leave a tunnel running through a bastion
  hop tunnel db1 --proxy bastion --source-port 5433 --target-host localhost --target-port 5432 --persist`,
		Args: cobra.ExactArgs(1),
	}
	target := addTargetFlags(cmd)
	cmd.Flags().IntVar(&sourcePort, "source-port", 0, "Local port to listen on")
	cmd.Flags().StringVar(&targetHost, "target-host", "", "Host to forward to, as seen from the remote end")
	cmd.Flags().IntVar(&targetPort, "target-port", 0, "Port to forward to")
	cmd.Flags().BoolVar(&persist, "persist", false, "Keep the tunnel after hop exits")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, hooks)
		if err != nil {
			return err
		}
		d, err := target.resolve(cmd, a, args[0])
		if err != nil {
			return err
		}
		if d == nil {
			return errors.NotSpecified("host")
		}
		defaultIdentity(d)

		if cmd.Flags().Changed("source-port") || d.Tunnel == nil {
			d.Tunnel = &sshcmd.Tunnel{
				SourcePort: sourcePort,
				TargetHost: targetHost,
				TargetPort: targetPort,
				Persist:    persist,
			}
		} else if cmd.Flags().Changed("persist") {
			d.Tunnel.Persist = persist
		}

		if err := a.executor(nil).Start(cmd.Context(), d, ""); err != nil {
			return err
		}

		console := logging.NewConsole(cmd.OutOrStdout())
		fields := map[string]interface{}{"forward": d.Tunnel.Forward(), "via": d.String()}
		if d.Tunnel.Persist {
			console.Success("Tunnel running in the background", fields)
			return nil
		}
		console.Success("Tunnel open", fields)
		console.Hint("Press Ctrl-C to close it.")
		<-cmd.Context().Done()
		return nil
	}
	return cmd
}
