package cmd

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/grovetools/hop/errors"
	"github.com/grovetools/hop/pkg/identity"
	"github.com/grovetools/hop/pkg/sshcmd"
	"github.com/spf13/cobra"
)

// targetFlags are the ad-hoc connection flags shared by commands that
// take a host argument.
type targetFlags struct {
	port           int
	user           string
	identityFile   string
	identityStdin  bool
	proxies        []string
	connectTimeout time.Duration
	options        []string
}

func addTargetFlags(cmd *cobra.Command) *targetFlags {
	f := &targetFlags{}
	cmd.Flags().IntVarP(&f.port, "port", "p", 0, "SSH port")
	cmd.Flags().StringVarP(&f.user, "user", "u", "", "Login user")
	cmd.Flags().StringVarP(&f.identityFile, "identity", "i", "", "Private key file")
	cmd.Flags().BoolVar(&f.identityStdin, "identity-stdin", false, "Read the private key from stdin")
	cmd.Flags().StringSliceVar(&f.proxies, "proxy", nil, "Jump host, as a configured name or [user@]host[:port] (repeatable)")
	cmd.Flags().DurationVar(&f.connectTimeout, "connect-timeout", 0, "ssh ConnectTimeout")
	cmd.Flags().StringArrayVarP(&f.options, "option", "o", nil, "Extra ssh option as key=value (repeatable)")
	return f
}

// resolve turns a host argument into a descriptor. "-" and "" mean the
// local machine and return nil. Configured names are looked up first;
// anything else is parsed as [user@]host[:port]. Flags override both.
func (f *targetFlags) resolve(cmd *cobra.Command, a *app, arg string) (*sshcmd.Descriptor, error) {
	if arg == "" || arg == "-" {
		return nil, nil
	}

	d, err := a.lookup(arg)
	if err != nil {
		return nil, err
	}

	if f.port != 0 {
		d.Port = f.port
	}
	if f.user != "" {
		d.User = f.user
	}
	if f.identityFile != "" {
		d.IdentityFile = f.identityFile
	}
	if f.identityStdin {
		m, err := identity.FromReader(cmd.InOrStdin())
		if err != nil {
			return nil, err
		}
		d.IdentityFile = ""
		d.Identity = m
	}
	if f.connectTimeout > 0 {
		d.Options.ConnectTimeout = f.connectTimeout
	}
	d.Options.Extra = append(d.Options.Extra, f.options...)

	if len(f.proxies) > 0 {
		d.Proxies = nil
		for _, name := range f.proxies {
			proxy, err := a.lookup(name)
			if err != nil {
				return nil, err
			}
			proxy.Tunnel = nil
			d.Proxies = append(d.Proxies, *proxy)
		}
	}
	return d, nil
}

// lookup resolves a configured host name or parses an address.
func (a *app) lookup(name string) (*sshcmd.Descriptor, error) {
	if a.cfg.HasHost(name) {
		return a.cfg.Descriptor(name)
	}

	d, err := parseAddress(name)
	if err != nil {
		return nil, err
	}
	if d.Port == 0 {
		d.Port = a.cfg.Defaults.Port
	}
	d.Options.ConnectTimeout = a.cfg.Defaults.ConnectTimeout.Std()
	d.Options.StrictHostKeyChecking = a.cfg.Defaults.StrictHostKeyChecking
	return d, nil
}

// parseAddress parses [user@]host[:port].
func parseAddress(s string) (*sshcmd.Descriptor, error) {
	d := &sshcmd.Descriptor{}
	if at := strings.LastIndex(s, "@"); at >= 0 {
		d.User, s = s[:at], s[at+1:]
	}
	if colon := strings.LastIndex(s, ":"); colon >= 0 && !strings.Contains(s[:colon], ":") {
		port, err := strconv.Atoi(s[colon+1:])
		if err != nil {
			return nil, errors.New(errors.ErrCodeInvalidPort, "invalid port in "+s).WithDetail("address", s)
		}
		d.Port, s = port, s[:colon]
	}
	if s == "" {
		return nil, errors.NotSpecified("host")
	}
	d.Host = s
	return d, nil
}

// defaultIdentity fills the identity from HOP_IDENTITY_FILE when nothing
// else supplied one.
func defaultIdentity(d *sshcmd.Descriptor) {
	if d == nil || d.IdentityFile != "" || d.Identity != nil {
		return
	}
	d.IdentityFile = os.Getenv("HOP_IDENTITY_FILE")
}
