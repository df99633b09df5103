package command

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/grovetools/hop/errors"
)

const (
	// DefaultTimeout is the default command execution timeout
	DefaultTimeout = 2 * time.Minute

	// MaxTimeout is the maximum allowed timeout
	MaxTimeout = 10 * time.Minute
)

var (
	hostnameRe = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9._:%-]*[a-zA-Z0-9\]])?$|^\[[0-9a-fA-F:.%]+\]$`)
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9._-]*\$?$`)
	gitRefRe   = regexp.MustCompile(`^[a-zA-Z0-9/_.-]+$`)
)

// SafeBuilder provides secure command execution with validation
type SafeBuilder struct {
	defaultTimeout time.Duration
	validators     map[string]func(string) error
	executor       Executor
}

// NewSafeBuilder creates a new SafeBuilder instance with a RealExecutor
func NewSafeBuilder() *SafeBuilder {
	return NewSafeBuilderWithExecutor(&RealExecutor{})
}

// NewSafeBuilderWithExecutor creates a new SafeBuilder with a custom Executor
func NewSafeBuilderWithExecutor(exec Executor) *SafeBuilder {
	return &SafeBuilder{
		defaultTimeout: DefaultTimeout,
		validators:     makeDefaultValidators(),
		executor:       exec,
	}
}

// SetDefaultTimeout changes the timeout applied to newly built commands.
// Values above MaxTimeout are capped.
func (sb *SafeBuilder) SetDefaultTimeout(timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}
	sb.defaultTimeout = timeout
}

// makeDefaultValidators returns the default set of validators
func makeDefaultValidators() map[string]func(string) error {
	return map[string]func(string) error{
		"hostname": ValidateHostname,
		"username": ValidateUsername,
		"fileName": validateFileName,
		"gitRef":   validateGitRef,
	}
}

// ValidateHostname ensures a host name or address is safe to place on a command line
func ValidateHostname(host string) error {
	if host == "" {
		return fmt.Errorf("hostname cannot be empty")
	}
	if len(host) > 253 {
		return fmt.Errorf("hostname too long: %d characters (max 253)", len(host))
	}
	if strings.HasPrefix(host, "-") || !hostnameRe.MatchString(host) {
		return fmt.Errorf("invalid hostname: %s", host)
	}
	return nil
}

// ValidateUsername ensures a login name is safe to place on a command line
func ValidateUsername(user string) error {
	if user == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if !usernameRe.MatchString(user) {
		return fmt.Errorf("invalid username: %s", user)
	}
	return nil
}

// validateFileName ensures file paths are safe
func validateFileName(path string) error {
	if path == "" {
		return fmt.Errorf("file path cannot be empty")
	}

	// Prevent directory traversal
	if strings.Contains(path, "..") {
		return fmt.Errorf("file path cannot contain '..'")
	}

	// Prevent command injection via shell metacharacters
	if strings.ContainsAny(path, ";|&$`") {
		return fmt.Errorf("file path contains invalid characters")
	}

	return nil
}

// validateGitRef ensures git references are safe
func validateGitRef(ref string) error {
	if ref == "" {
		return fmt.Errorf("git ref cannot be empty")
	}

	if !gitRefRe.MatchString(ref) || strings.HasPrefix(ref, "-") {
		return fmt.Errorf("invalid git ref: %s", ref)
	}

	return nil
}

// Command represents a safe command configuration
type Command struct {
	ctx      context.Context
	name     string
	args     []string
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
	timeout  time.Duration
	executor Executor
}

// Output is what a finished command wrote to stdout and stderr, interleaved.
type Output struct {
	Data     []byte
	ExitCode int
}

// Lines returns the output split into lines.
func (o *Output) Lines() []string {
	if o == nil {
		return nil
	}
	return Lines(o.Data)
}

// Lines splits command output into lines, dropping the trailing newline.
func Lines(data []byte) []string {
	text := strings.TrimRight(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	if text == "" {
		return []string{}
	}
	return strings.Split(text, "\n")
}

// Build creates a new command with validation
func (sb *SafeBuilder) Build(ctx context.Context, name string, args ...string) (*Command, error) {
	// Validate command name
	if name == "" {
		return nil, errors.NotSpecified("command name")
	}

	return &Command{
		ctx:      ctx,
		name:     name,
		args:     args,
		timeout:  sb.defaultTimeout,
		executor: sb.executor,
	}, nil
}

// WithTimeout sets a custom timeout for the command
func (c *Command) WithTimeout(timeout time.Duration) *Command {
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}
	c.timeout = timeout
	return c
}

// WithStdin feeds r to the command's standard input
func (c *Command) WithStdin(r io.Reader) *Command {
	c.stdin = r
	return c
}

// WithOutput connects a started command's stdout and stderr. Run captures
// output itself and ignores these.
func (c *Command) WithOutput(stdout, stderr io.Writer) *Command {
	c.stdout = stdout
	c.stderr = stderr
	return c
}

// Validate validates specific arguments
func (sb *SafeBuilder) Validate(argType string, value string) error {
	validator, exists := sb.validators[argType]
	if !exists {
		return fmt.Errorf("no validator for argument type: %s", argType)
	}

	return validator(value)
}

// String renders the command for logs and error messages.
func (c *Command) String() string {
	return strings.TrimSpace(c.name + " " + strings.Join(c.args, " "))
}

// Exec creates and returns an exec.Cmd bound to ctx
func (c *Command) Exec(ctx context.Context) *exec.Cmd {
	cmd := c.executor.CommandContext(ctx, c.name, c.args...) //nolint:gosec // SafeBuilder provides validation
	if c.stdin != nil {
		cmd.Stdin = c.stdin
	}
	cmd.Stdout = c.stdout
	cmd.Stderr = c.stderr
	return cmd
}

// Run executes the command and waits for it to finish. The returned Output
// is non-nil whenever the process was started, including on a non-zero
// exit, so callers that accept other exit codes can inspect ExitCode.
func (c *Command) Run() (*Output, error) {
	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()

	var buf bytes.Buffer
	cmd := c.Exec(ctx)
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	if err == nil {
		return &Output{Data: buf.Bytes()}, nil
	}

	if stderrors.Is(err, exec.ErrNotFound) {
		return nil, errors.Wrap(err, errors.ErrCodeCommandNotFound, fmt.Sprintf("command not found: %s", c.name)).
			WithDetail("command", c.name)
	}
	if ctx.Err() == context.DeadlineExceeded {
		return &Output{Data: buf.Bytes(), ExitCode: -1}, errors.CommandFailed(c.String(), ctx.Err()).
			WithDetail("timeout", c.timeout.String())
	}

	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		return &Output{Data: buf.Bytes(), ExitCode: exitErr.ExitCode()}, errors.CommandFailed(c.String(), exitErr)
	}
	return nil, errors.CommandFailed(c.String(), err)
}

// Start launches the command without waiting for it. The process is not
// bound to the command timeout.
func (c *Command) Start() (*exec.Cmd, error) {
	cmd := c.Exec(c.ctx)
	if err := cmd.Start(); err != nil {
		if stderrors.Is(err, exec.ErrNotFound) {
			return nil, errors.Wrap(err, errors.ErrCodeCommandNotFound, fmt.Sprintf("command not found: %s", c.name)).
				WithDetail("command", c.name)
		}
		return nil, errors.CommandFailed(c.String(), err)
	}
	return cmd, nil
}
