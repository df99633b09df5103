package sshcmd

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/grovetools/hop/errors"
	"github.com/grovetools/hop/logging"
	"github.com/grovetools/hop/pkg/profiling"
	"github.com/sirupsen/logrus"
)

// HostKeyRegistrar records a host's key before ssh connects to it.
type HostKeyRegistrar interface {
	Register(ctx context.Context, host string, port int) error
}

// CommandLine is a rendered invocation.
type CommandLine struct {
	Argv []string
	// Background is set for tools without a fork flag whose caller asked
	// for background execution.
	Background bool
}

// Name returns the binary to run.
func (c *CommandLine) Name() string {
	return c.Argv[0]
}

// Args returns the arguments after the binary.
func (c *CommandLine) Args() []string {
	return c.Argv[1:]
}

// String renders the command line as one shell string.
func (c *CommandLine) String() string {
	s := Join(c.Argv)
	if c.Background {
		s += " &"
	}
	return s
}

// Builder renders descriptors into command lines.
type Builder struct {
	registrar      HostKeyRegistrar
	knownHostsFile string
	logger         *logrus.Entry
}

// NewBuilder creates a Builder. registrar may be nil, in which case proxy
// host keys are not registered.
func NewBuilder(registrar HostKeyRegistrar) *Builder {
	return &Builder{
		registrar: registrar,
		logger:    logging.NewLogger("sshcmd"),
	}
}

// WithKnownHostsFile sets the known_hosts file used by proxy hops that do
// not name their own. It should be the file the registrar appends to.
func (b *Builder) WithKnownHostsFile(path string) *Builder {
	b.knownHostsFile = path
	return b
}

// Build validates d and renders it for tool with args appended. For ssh and
// autossh args form the remote command; for scp they are the transfer
// operands, and an operand starting with ':' is prefixed with the target.
func (b *Builder) Build(ctx context.Context, d *Descriptor, tool Tool, args ...string) (*CommandLine, error) {
	if d == nil {
		return nil, errors.NotSpecified("host")
	}
	defer profiling.Start(ctx, "sshcmd.build "+string(tool)).Stop()
	if err := validateTarget(d, tool, args); err != nil {
		return nil, err
	}

	chain := flatten(d.Proxies)
	if d.Tunnel != nil && !d.Tunnel.Persist && len(chain) > 0 {
		return nil, errors.InvalidTunnelSpec("a non-persistent tunnel cannot be combined with proxies").
			WithDetail("proxies", len(chain))
	}

	proxy, err := b.proxyCommand(ctx, chain)
	if err != nil {
		return nil, err
	}

	var line *CommandLine
	switch tool {
	case ToolSSH, ToolAutoSSH:
		line = b.renderSSH(d, tool, proxy, args)
	case ToolSCP:
		line = b.renderSCP(d, proxy, args)
	case ToolCopyID:
		line = b.renderCopyID(d, proxy)
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown tool "+string(tool))
	}

	b.logger.WithFields(logrus.Fields{
		"tool":    tool,
		"target":  d.String(),
		"proxies": len(chain),
	}).Debug("Rendered command line")
	return line, nil
}

func validateTarget(d *Descriptor, tool Tool, args []string) error {
	if err := validateEndpoint(d, "target"); err != nil {
		return err
	}
	if d.Tunnel != nil {
		if err := d.Tunnel.validate(); err != nil {
			return err
		}
	}
	if d.Options.ForceTerminal && d.Options.DisableTerminal {
		return errors.ConflictingOptions("force terminal", "disable terminal")
	}

	switch tool {
	case ToolSSH, ToolAutoSSH:
		if (d.Tunnel != nil || d.Options.NoCommand) && len(args) > 0 {
			return errors.ConflictingOptions("no remote command", "remote command")
		}
	case ToolSCP:
		if d.Tunnel != nil {
			return errors.ConflictingOptions("tunnel", string(tool))
		}
		if len(args) < 2 {
			return errors.New(errors.ErrCodeInvalidInput, "scp needs a source and a destination")
		}
	case ToolCopyID:
		if d.Tunnel != nil {
			return errors.ConflictingOptions("tunnel", string(tool))
		}
		if len(args) > 0 {
			return errors.ConflictingOptions("remote command", string(tool))
		}
	}
	return nil
}

// renderSSH renders:
//
//	ssh [-t|-T] [-f] [-N] [-g] -p PORT [-i KEY] [-o ...] [-L FWD] [-o ProxyCommand=...] DEST [ARGS]
func (b *Builder) renderSSH(d *Descriptor, tool Tool, proxy string, args []string) *CommandLine {
	argv := []string{string(tool)}
	if tool == ToolAutoSSH {
		argv = append(argv, "-M", "0")
	}

	opts := d.Options
	if d.Tunnel != nil {
		opts.Background = true
		opts.NoCommand = true
		opts.RemoteConnect = true
	}
	switch {
	case opts.ForceTerminal:
		argv = append(argv, "-t")
	case opts.DisableTerminal:
		argv = append(argv, "-T")
	}
	if opts.Background {
		argv = append(argv, "-f")
	}
	if opts.NoCommand {
		argv = append(argv, "-N")
	}
	if opts.RemoteConnect {
		argv = append(argv, "-g")
	}

	argv = append(argv, "-p", strconv.Itoa(d.EffectivePort()))
	argv = append(argv, identityArgs(d)...)
	argv = append(argv, settingArgs(d.Options, "")...)
	if d.Tunnel != nil {
		argv = append(argv, "-L", d.Tunnel.Forward())
	}
	if proxy != "" {
		argv = append(argv, "-o", "ProxyCommand="+proxy)
	}
	argv = append(argv, d.Destination())
	argv = append(argv, args...)
	return &CommandLine{Argv: argv}
}

func (b *Builder) renderSCP(d *Descriptor, proxy string, args []string) *CommandLine {
	argv := []string{string(ToolSCP), "-P", strconv.Itoa(d.EffectivePort())}
	argv = append(argv, identityArgs(d)...)
	argv = append(argv, settingArgs(d.Options, "")...)
	if proxy != "" {
		argv = append(argv, "-o", "ProxyCommand="+proxy)
	}
	for _, arg := range args {
		if strings.HasPrefix(arg, ":") {
			arg = d.Destination() + arg
		}
		argv = append(argv, arg)
	}
	return &CommandLine{Argv: argv, Background: d.Options.Background}
}

func (b *Builder) renderCopyID(d *Descriptor, proxy string) *CommandLine {
	argv := []string{string(ToolCopyID), "-p", strconv.Itoa(d.EffectivePort())}
	argv = append(argv, identityArgs(d)...)
	argv = append(argv, settingArgs(d.Options, "")...)
	if proxy != "" {
		argv = append(argv, "-o", "ProxyCommand="+proxy)
	}
	argv = append(argv, d.Destination())
	return &CommandLine{Argv: argv, Background: d.Options.Background}
}

// proxyCommand renders the ProxyCommand value for a chain of hops, nearest
// first. Hop k carries hop k-1 as its own ProxyCommand, so the returned
// string holds len(chain) ProxyCommand clauses once the target's own -o is
// counted. Each embedding adds one level of shell quoting and doubles '%'
// so inner %h:%p tokens are expanded by the ssh that runs them.
func (b *Builder) proxyCommand(ctx context.Context, chain []Descriptor) (string, error) {
	var inner string
	for i := range chain {
		hop := &chain[i]
		if err := validateEndpoint(hop, "proxy"); err != nil {
			return "", errors.WithOperation(err, "sshcmd.proxyCommand")
		}
		if b.registrar != nil {
			if err := b.registrar.Register(ctx, hop.Host, hop.EffectivePort()); err != nil {
				return "", errors.WithOperation(err, "sshcmd.proxyCommand")
			}
		}

		argv := []string{string(ToolSSH), "-p", strconv.Itoa(hop.EffectivePort())}
		argv = append(argv, identityArgs(hop)...)
		argv = append(argv, settingArgs(hop.Options, b.knownHostsFile)...)
		if inner != "" {
			argv = append(argv, "-o", "ProxyCommand="+escapePercent(inner))
		}
		argv = append(argv, "-W", "%h:%p", hop.Destination())
		inner = Join(argv)
	}
	return inner, nil
}

func identityArgs(d *Descriptor) []string {
	if d.IdentityFile == "" {
		return nil
	}
	return []string{"-i", d.IdentityFile}
}

// settingArgs renders the -o settings. knownHosts is used when opts does
// not name a known_hosts file.
func settingArgs(opts Options, knownHosts string) []string {
	var argv []string
	if opts.ConnectTimeout > 0 {
		argv = append(argv, "-o", "ConnectTimeout="+seconds(opts.ConnectTimeout))
	}
	if opts.StrictHostKeyChecking != nil {
		value := "no"
		if *opts.StrictHostKeyChecking {
			value = "yes"
		}
		argv = append(argv, "-o", "StrictHostKeyChecking="+value)
	}
	if opts.KnownHostsFile != "" {
		knownHosts = opts.KnownHostsFile
	}
	if knownHosts != "" {
		argv = append(argv, "-o", "UserKnownHostsFile="+knownHosts)
	}
	if opts.ServerAliveInterval > 0 {
		argv = append(argv, "-o", "ServerAliveInterval="+seconds(opts.ServerAliveInterval))
	}
	for _, extra := range opts.Extra {
		argv = append(argv, "-o", extra)
	}
	return argv
}

// seconds rounds d up to whole seconds.
func seconds(d time.Duration) string {
	return strconv.Itoa(int((d + time.Second - 1) / time.Second))
}

// flatten expands hops that carry their own proxies into one ordered chain.
func flatten(proxies []Descriptor) []Descriptor {
	var chain []Descriptor
	for _, p := range proxies {
		chain = append(chain, flatten(p.Proxies)...)
		p.Proxies = nil
		chain = append(chain, p)
	}
	return chain
}
