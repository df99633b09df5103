package cmd

import (
	"github.com/grovetools/hop/cli"
	"github.com/grovetools/hop/command"
	"github.com/grovetools/hop/config"
	"github.com/grovetools/hop/git"
	"github.com/grovetools/hop/pkg/cleanup"
	"github.com/grovetools/hop/pkg/identity"
	"github.com/grovetools/hop/pkg/knownhosts"
	"github.com/grovetools/hop/pkg/paths"
	"github.com/grovetools/hop/pkg/process"
	"github.com/grovetools/hop/pkg/remote"
	"github.com/grovetools/hop/pkg/sshcmd"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// app wires the hop packages for one command invocation.
type app struct {
	cfg    *config.Config
	layout paths.Layout
	hooks  *cleanup.Registry
	exec   command.Executor
	finder *process.Registry
	logger *logrus.Entry
}

func newApp(cmd *cobra.Command, hooks *cleanup.Registry) (*app, error) {
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return nil, err
	}
	layout := cfg.Layout()
	logger := cli.GetLogger(cmd)
	if err := layout.EnsureDirs(); err != nil {
		logger.WithError(err).Warn("Failed to create hop directories")
	}

	exec := &command.RealExecutor{}
	return &app{
		cfg:    cfg,
		layout: layout,
		hooks:  hooks,
		exec:   exec,
		finder: process.NewRegistry(exec),
		logger: logger,
	}, nil
}

// registrar records proxy host keys in hop's own known-hosts file.
func (a *app) registrar() *knownhosts.Registrar {
	return knownhosts.NewRegistrar(a.layout.KnownHostsFile(), a.exec)
}

// builder renders command lines. register=false skips ssh-keyscan for
// callers that only print.
func (a *app) builder(register bool) *sshcmd.Builder {
	var reg sshcmd.HostKeyRegistrar = knownhosts.NopRegistrar{}
	if register {
		reg = a.registrar()
	}
	return sshcmd.NewBuilder(reg).WithKnownHostsFile(a.layout.KnownHostsFile())
}

func (a *app) terminator() *process.Terminator {
	return process.NewTerminator(a.exec, a.finder)
}

// executor creates a remote executor accepting the given exit codes.
func (a *app) executor(accepted []int) *remote.Executor {
	return remote.New(remote.Options{
		Builder:           a.builder(true),
		Identities:        identity.NewStore(a.layout.KeysDir()),
		Cleanup:           a.hooks,
		Terminator:        a.terminator(),
		Exec:              a.exec,
		AcceptedExitCodes: accepted,
		Timeout:           a.cfg.Defaults.CommandTimeout.Std(),
	})
}

func (a *app) gitClient() *git.Client {
	client := git.NewClient(a.executor(nil), a.finder)
	client.Retries = a.cfg.Git.Retries
	client.RetryDelay = a.cfg.Git.RetryDelay.Std()
	return client
}
