// Package remote runs commands on a host described by an sshcmd.Descriptor,
// or locally when no host is given.
package remote

import (
	"context"
	"regexp"
	"time"

	"github.com/grovetools/hop/command"
	"github.com/grovetools/hop/errors"
	"github.com/grovetools/hop/logging"
	"github.com/grovetools/hop/pkg/profiling"
	"github.com/grovetools/hop/pkg/cleanup"
	"github.com/grovetools/hop/pkg/identity"
	"github.com/grovetools/hop/pkg/paths"
	"github.com/grovetools/hop/pkg/process"
	"github.com/grovetools/hop/pkg/sshcmd"
	"github.com/sirupsen/logrus"
)

var knownHostsWarning = regexp.MustCompile(`^Warning: Permanently added .* to the list of known hosts\.?\s*$`)

// Result is the captured output of one command.
type Result struct {
	Lines    []string
	ExitCode int
}

// Options wires an Executor. Zero fields get defaults.
type Options struct {
	Builder    *sshcmd.Builder
	Identities *identity.Store
	Cleanup    *cleanup.Registry
	Terminator *process.Terminator
	Exec       command.Executor
	// AcceptedExitCodes lists exit codes treated as success. Defaults to 0.
	AcceptedExitCodes []int
	// Timeout bounds each command. Defaults to command.DefaultTimeout.
	Timeout time.Duration
}

// Executor runs commands and tears down the credentials and tunnels it
// created for them.
type Executor struct {
	builder    *sshcmd.Builder
	identities *identity.Store
	hooks      *cleanup.Registry
	terminator *process.Terminator
	spawner    *command.SafeBuilder
	accepted   []int
	logger     *logrus.Entry
}

// New creates an Executor.
func New(opts Options) *Executor {
	if opts.Exec == nil {
		opts.Exec = &command.RealExecutor{}
	}
	if opts.Builder == nil {
		opts.Builder = sshcmd.NewBuilder(nil)
	}
	if opts.Identities == nil {
		opts.Identities = identity.NewStore(paths.Default().KeysDir())
	}
	if opts.Cleanup == nil {
		opts.Cleanup = cleanup.New()
	}
	if opts.Terminator == nil {
		opts.Terminator = process.NewTerminator(opts.Exec, nil)
	}
	if len(opts.AcceptedExitCodes) == 0 {
		opts.AcceptedExitCodes = []int{0}
	}

	spawner := command.NewSafeBuilderWithExecutor(opts.Exec)
	if opts.Timeout > 0 {
		spawner.SetDefaultTimeout(opts.Timeout)
	}
	return &Executor{
		builder:    opts.Builder,
		identities: opts.Identities,
		hooks:      opts.Cleanup,
		terminator: opts.Terminator,
		spawner:    spawner,
		accepted:   opts.AcceptedExitCodes,
		logger:     logging.NewLogger("remote"),
	}
}

// Cleanup returns the registry holding tunnel and identity hooks.
func (e *Executor) Cleanup() *cleanup.Registry {
	return e.hooks
}

// Run executes cmd on d and waits for it. A nil descriptor or one without a
// host runs cmd locally through sh -c. Known-hosts warnings are removed
// from the output.
func (e *Executor) Run(ctx context.Context, d *sshcmd.Descriptor, cmd string) (*Result, error) {
	res, err := e.run(ctx, d, cmd)
	if err != nil {
		return res, errors.WithOperation(err, "remote.Run")
	}
	return res, nil
}

// Output is Run returning only the output lines.
func (e *Executor) Output(ctx context.Context, d *sshcmd.Descriptor, cmd string) ([]string, error) {
	res, err := e.Run(ctx, d, cmd)
	if err != nil {
		return nil, err
	}
	return res.Lines, nil
}

func (e *Executor) run(ctx context.Context, d *sshcmd.Descriptor, cmd string) (*Result, error) {
	defer profiling.Start(ctx, "remote.run "+d.String()).Stop()
	if d.IsLocal() {
		if cmd == "" {
			return nil, errors.NotSpecified("command")
		}
		c, err := e.spawner.Build(ctx, "sh", "-c", cmd)
		if err != nil {
			return nil, err
		}
		e.logger.WithField("command", cmd).Debug("Running local command")
		return e.collect(c.Run())
	}

	target, release, err := e.prepare(d)
	if err != nil {
		return nil, err
	}
	defer release()

	var args []string
	if cmd != "" {
		args = []string{cmd}
	}
	line, err := e.builder.Build(ctx, target, sshcmd.ToolSSH, args...)
	if err != nil {
		return nil, err
	}
	c, err := e.spawner.Build(ctx, line.Name(), line.Args()...)
	if err != nil {
		return nil, err
	}

	e.logger.WithField("target", target.String()).Debug("Running remote command")
	res, err := e.collect(c.Run())
	if err != nil {
		return res, err
	}
	e.watchTunnel(target)
	return res, nil
}

// Start launches a command that keeps running after Start returns: a
// tunnel or a descriptor with Background set. ssh forks on its own (-f),
// so Start returns once it has authenticated.
func (e *Executor) Start(ctx context.Context, d *sshcmd.Descriptor, cmd string) error {
	if d.IsLocal() {
		return errors.WithOperation(errors.NotSpecified("host"), "remote.Start")
	}
	if d.Tunnel == nil && !d.Options.Background {
		return errors.WithOperation(
			errors.New(errors.ErrCodeInvalidInput, "nothing to start in the background: set a tunnel or background"),
			"remote.Start")
	}
	_, err := e.run(ctx, d, cmd)
	return errors.WithOperation(err, "remote.Start")
}

// prepare checks credentials and materializes inline key material. The
// returned release removes any key file it wrote; it is also registered as
// a cleanup hook in case the process is stopped first.
func (e *Executor) prepare(d *sshcmd.Descriptor) (*sshcmd.Descriptor, func(), error) {
	if d.User == "" {
		return nil, nil, errors.MissingCredentials(d.Host, "user")
	}
	if d.IdentityFile == "" && d.Identity == nil {
		return nil, nil, errors.MissingCredentials(d.Host, "identity")
	}

	target := *d
	if target.IdentityFile != "" {
		return &target, func() {}, nil
	}

	if err := d.Identity.Validate(); err != nil {
		return nil, nil, err
	}
	path, err := e.identities.Materialize(d.Identity)
	if err != nil {
		return nil, nil, err
	}
	target.IdentityFile = path
	target.Identity = nil

	remove := func() error { return e.identities.Remove(path) }
	handle := e.hooks.Register("identity "+path, remove)
	release := func() {
		e.hooks.Unregister(handle)
		if err := remove(); err != nil {
			e.logger.WithError(err).WithField("path", path).Warn("Failed to remove identity file")
		}
	}
	return &target, release, nil
}

// PinIdentity writes d's inline key material to a key file once and
// points d at it, so every later Run on d reuses the same file. The file is
// removed by the cleanup registry. Descriptors that already name an
// identity file are left alone.
func (e *Executor) PinIdentity(d *sshcmd.Descriptor) error {
	if d.IsLocal() || d.Identity == nil || d.IdentityFile != "" {
		return nil
	}
	if err := d.Identity.Validate(); err != nil {
		return errors.WithOperation(err, "remote.PinIdentity")
	}
	path, err := e.identities.Materialize(d.Identity)
	if err != nil {
		return errors.WithOperation(err, "remote.PinIdentity")
	}
	e.hooks.Register("identity "+path, func() error { return e.identities.Remove(path) })
	d.IdentityFile = path
	d.Identity = nil
	e.logger.WithField("target", d.String()).Debug("Pinned identity file for this run")
	return nil
}

// watchTunnel registers a hook that stops a non-persistent tunnel's ssh
// process on shutdown. The process is found by its -L clause.
func (e *Executor) watchTunnel(d *sshcmd.Descriptor) {
	if d.Tunnel == nil || d.Tunnel.Persist {
		return
	}
	pattern := TunnelPattern(d.Tunnel)
	e.hooks.Register("tunnel "+d.Tunnel.Forward(), func() error {
		return e.terminator.Terminate(context.Background(), process.Name(pattern), process.TerminateOptions{
			VerifyAttempts: -3,
		})
	})
	e.logger.WithField("forward", d.Tunnel.Forward()).Debug("Registered tunnel teardown")
}

// TunnelPattern is the pgrep pattern matching the ssh process that owns t.
func TunnelPattern(t *sshcmd.Tunnel) string {
	return "-L " + regexp.QuoteMeta(t.Forward()) + "( |$)"
}

// collect turns a spawn result into a Result, applying the accepted exit
// codes and dropping known-hosts warnings.
func (e *Executor) collect(out *command.Output, err error) (*Result, error) {
	if out == nil {
		return nil, err
	}
	res := &Result{Lines: stripWarnings(out.Lines()), ExitCode: out.ExitCode}
	if out.ExitCode >= 0 && e.isAccepted(out.ExitCode) {
		return res, nil
	}
	if err == nil {
		err = errors.New(errors.ErrCodeExecutionFailed, "command exited with an unaccepted code")
	}
	if hopErr, ok := err.(*errors.HopError); ok {
		hopErr.WithDetail("exitCode", out.ExitCode)
	}
	return res, err
}

func (e *Executor) isAccepted(code int) bool {
	for _, c := range e.accepted {
		if c == code {
			return true
		}
	}
	return false
}

func stripWarnings(lines []string) []string {
	out := lines[:0]
	for _, line := range lines {
		if knownHostsWarning.MatchString(line) {
			continue
		}
		out = append(out, line)
	}
	return out
}
