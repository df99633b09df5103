// Package sshcmd renders connection descriptors into argument vectors for
// ssh, scp, ssh-copy-id and autossh, including chained ProxyCommand hops.
package sshcmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/grovetools/hop/command"
	"github.com/grovetools/hop/errors"
	"github.com/grovetools/hop/pkg/identity"
)

// DefaultPort is used when a descriptor leaves Port at zero.
const DefaultPort = 22

const maxTunnelHostLength = 253

// Tool names a binary the builder can render for.
type Tool string

const (
	ToolSSH     Tool = "ssh"
	ToolSCP     Tool = "scp"
	ToolCopyID  Tool = "ssh-copy-id"
	ToolAutoSSH Tool = "autossh"
)

// ParseTool converts a tool name from the command line.
func ParseTool(name string) (Tool, error) {
	switch Tool(name) {
	case ToolSSH, ToolSCP, ToolCopyID, ToolAutoSSH:
		return Tool(name), nil
	case "":
		return ToolSSH, nil
	}
	return "", errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("unknown tool %q", name)).
		WithDetail("tool", name)
}

// Descriptor describes one remote endpoint and how to reach it.
type Descriptor struct {
	Host         string
	Port         int
	User         string
	IdentityFile string
	// Identity holds inline key material. The builder never reads it; the
	// remote executor materializes it into IdentityFile first.
	Identity *identity.Material
	Options  Options
	Tunnel   *Tunnel
	// Proxies are hops in connection order: the first entry is reached
	// directly from the local machine.
	Proxies []Descriptor
}

// Options are ssh flags and -o settings.
type Options struct {
	ConnectTimeout        time.Duration
	StrictHostKeyChecking *bool
	KnownHostsFile        string
	ServerAliveInterval   time.Duration

	ForceTerminal   bool
	DisableTerminal bool
	Background      bool
	NoCommand       bool
	RemoteConnect   bool

	// Extra holds raw key=value pairs each rendered as -o key=value.
	Extra []string
}

// Tunnel is a local port forward (-L).
type Tunnel struct {
	SourcePort int
	TargetHost string
	TargetPort int
	// Persist marks tunnels that outlive the process that opened them.
	Persist bool
}

// Forward renders the -L argument.
func (t *Tunnel) Forward() string {
	return fmt.Sprintf("%d:%s:%d", t.SourcePort, t.TargetHost, t.TargetPort)
}

func (t *Tunnel) validate() error {
	switch {
	case t.SourcePort == 0:
		return errors.InvalidTunnelSpec("source port missing")
	case t.TargetPort == 0:
		return errors.InvalidTunnelSpec("target port missing")
	case t.TargetHost == "":
		return errors.InvalidTunnelSpec("target host missing")
	case !validPort(t.SourcePort):
		return errors.InvalidTunnelSpec(fmt.Sprintf("source port %d out of range", t.SourcePort)).
			WithDetail("port", t.SourcePort)
	case !validPort(t.TargetPort):
		return errors.InvalidTunnelSpec(fmt.Sprintf("target port %d out of range", t.TargetPort)).
			WithDetail("port", t.TargetPort)
	case len(t.TargetHost) > maxTunnelHostLength:
		return errors.InvalidTunnelSpec("target host longer than 253 characters")
	}
	if err := command.ValidateHostname(t.TargetHost); err != nil {
		return errors.InvalidTunnelSpec(err.Error())
	}
	return nil
}

// EffectivePort returns Port, or DefaultPort when unset.
func (d *Descriptor) EffectivePort() int {
	if d.Port == 0 {
		return DefaultPort
	}
	return d.Port
}

// Destination renders [user@]host.
func (d *Descriptor) Destination() string {
	if d.User == "" {
		return d.Host
	}
	return d.User + "@" + d.Host
}

// IsLocal reports whether the descriptor means "run on this machine".
func (d *Descriptor) IsLocal() bool {
	return d == nil || d.Host == ""
}

// String describes the endpoint for logs. It never includes key material.
func (d *Descriptor) String() string {
	if d.IsLocal() {
		return "local"
	}
	return d.Destination() + ":" + strconv.Itoa(d.EffectivePort())
}

// validateEndpoint checks the fields shared by targets and proxy hops.
func validateEndpoint(d *Descriptor, role string) error {
	if d.Host == "" {
		return errors.NotSpecified(role + " host")
	}
	if err := command.ValidateHostname(d.Host); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, role+" host rejected").
			WithDetail("host", d.Host)
	}
	if d.User != "" {
		if err := command.ValidateUsername(d.User); err != nil {
			return errors.Wrap(err, errors.ErrCodeInvalidInput, role+" user rejected").
				WithDetail("user", d.User)
		}
	}
	if d.Port != 0 && !validPort(d.Port) {
		return errors.InvalidPort(d.Port)
	}
	if d.IdentityFile != "" {
		if _, err := os.Stat(d.IdentityFile); err != nil {
			return errors.IdentityFileNotFound(d.IdentityFile)
		}
	}
	return nil
}

func validPort(port int) bool {
	return port >= 1 && port <= 65535
}
