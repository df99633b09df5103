// Package git runs git against local or remote checkouts, waiting for other
// git processes on the same path to finish first.
package git

import (
	"context"
	"regexp"
	"time"

	"github.com/grovetools/hop/command"
	"github.com/grovetools/hop/errors"
	"github.com/grovetools/hop/logging"
	"github.com/grovetools/hop/pkg/process"
	"github.com/grovetools/hop/pkg/remote"
	"github.com/grovetools/hop/pkg/sshcmd"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultRetries is how many times WaitIdle re-checks a busy path.
	DefaultRetries = 10
	// DefaultRetryDelay is the pause between those checks.
	DefaultRetryDelay = 5 * time.Second
)

// Client runs git commands through a remote.Executor.
type Client struct {
	Retries    int
	RetryDelay time.Duration

	exec      *remote.Executor
	finder    process.Finder
	validator *command.SafeBuilder
	logger    *logrus.Entry
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewClient creates a Client. A nil finder uses the pgrep/ps registry.
func NewClient(exec *remote.Executor, finder process.Finder) *Client {
	if finder == nil {
		finder = process.NewRegistry(nil)
	}
	return &Client{
		Retries:    DefaultRetries,
		RetryDelay: DefaultRetryDelay,
		exec:       exec,
		finder:     finder,
		validator:  command.NewSafeBuilder(),
		logger:     logging.NewLogger("git"),
		sleep:      sleepContext,
	}
}

// WaitIdle blocks while other git processes reference path on this
// machine. After Retries further checks it fails with BUSY.
func (c *Client) WaitIdle(ctx context.Context, path string) error {
	pattern := busyPattern(path)
	for attempt := 0; ; attempt++ {
		pids, err := c.finder.FindByName(ctx, pattern)
		if err != nil {
			return errors.WithOperation(err, "git.WaitIdle")
		}
		if len(pids) == 0 {
			return nil
		}
		if attempt >= c.Retries {
			return errors.Busy(path, pids)
		}

		c.logger.WithFields(logrus.Fields{
			"path":    path,
			"pids":    pids,
			"attempt": attempt + 1,
		}).Warn("Path busy, waiting for other git processes")
		if err := c.sleep(ctx, c.RetryDelay); err != nil {
			return err
		}
	}
}

// busyPattern matches a git process whose command line mentions path.
func busyPattern(path string) string {
	return `^([^ ]*/)?git .*` + regexp.QuoteMeta(path)
}

// Run executes git -C path args on d. Local runs wait for the path to be
// idle first. Inline key material on d is pinned to a key file on first
// use, so a Client can run several commands against one descriptor.
func (c *Client) Run(ctx context.Context, d *sshcmd.Descriptor, path string, args ...string) (*remote.Result, error) {
	if path == "" {
		return nil, errors.NotSpecified("repository path")
	}
	if d.IsLocal() {
		if err := c.WaitIdle(ctx, path); err != nil {
			return nil, err
		}
	} else if err := c.exec.PinIdentity(d); err != nil {
		return nil, errors.WithOperation(err, "git.Run")
	}
	argv := append([]string{"git", "-C", path}, args...)
	res, err := c.exec.Run(ctx, d, sshcmd.Join(argv))
	if err != nil {
		return res, errors.WithOperation(err, "git.Run")
	}
	return res, nil
}

// Pull runs git pull, optionally from a given remote and branch.
func (c *Client) Pull(ctx context.Context, d *sshcmd.Descriptor, path, remoteName, branch string) error {
	args := []string{"pull"}
	for _, ref := range []string{remoteName, branch} {
		if ref == "" {
			continue
		}
		if err := c.validator.Validate("gitRef", ref); err != nil {
			return errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid git ref")
		}
		args = append(args, ref)
	}
	_, err := c.Run(ctx, d, path, args...)
	return err
}

// Fetch runs git fetch --prune.
func (c *Client) Fetch(ctx context.Context, d *sshcmd.Descriptor, path string) error {
	_, err := c.Run(ctx, d, path, "fetch", "--prune")
	return err
}

// Clone clones url into path.
func (c *Client) Clone(ctx context.Context, d *sshcmd.Descriptor, url, path string) error {
	if url == "" {
		return errors.NotSpecified("repository URL")
	}
	if path == "" {
		return errors.NotSpecified("repository path")
	}
	if d.IsLocal() {
		if err := c.WaitIdle(ctx, path); err != nil {
			return err
		}
	}
	if _, err := c.exec.Run(ctx, d, sshcmd.Join([]string{"git", "clone", "--", url, path})); err != nil {
		return errors.WithOperation(err, "git.Clone")
	}
	return nil
}

// CurrentBranch returns the checked out branch.
func (c *Client) CurrentBranch(ctx context.Context, d *sshcmd.Descriptor, path string) (string, error) {
	res, err := c.Run(ctx, d, path, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	if len(res.Lines) == 0 {
		return "", errors.New(errors.ErrCodeExecutionFailed, "git printed no branch")
	}
	return res.Lines[len(res.Lines)-1], nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
