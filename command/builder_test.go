package command

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/grovetools/hop/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateHostname(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple host", "db1", false},
		{"fqdn", "db1.example.com", false},
		{"ipv4", "10.0.0.12", false},
		{"bracketed ipv6", "[fe80::1]", false},
		{"empty", "", true},
		{"leading hyphen", "-oProxyCommand=sh", true},
		{"spaces", "db1 example", true},
		{"command injection", "db1;rm -rf /", true},
		{"too long", strings.Repeat("a", 254), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHostname(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateHostname(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "ops", false},
		{"with dot and dash", "deploy.bot-1", false},
		{"machine account", "host$", false},
		{"empty", "", true},
		{"at sign", "ops@db1", true},
		{"leading hyphen", "-l", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUsername(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateFileName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid path", "/path/to/file.txt", false},
		{"relative path", "relative/path.txt", false},
		{"directory traversal", "../etc/passwd", true},
		{"command injection semicolon", "file.txt; rm -rf /", true},
		{"command injection pipe", "file.txt | cat", true},
		{"command injection dollar", "$(whoami)", true},
		{"empty path", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFileName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateFileName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateGitRef(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid branch", "main", false},
		{"valid with slash", "feature/add-button", false},
		{"valid tag", "v1.0.0", false},
		{"empty ref", "", true},
		{"option injection", "--upload-pack=sh", true},
		{"spaces", "my branch", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateGitRef(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateGitRef(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestSafeBuilder_Build(t *testing.T) {
	sb := NewSafeBuilder()
	ctx := context.Background()

	t.Run("valid command", func(t *testing.T) {
		cmd, err := sb.Build(ctx, "echo", "hello")
		require.NoError(t, err)
		assert.Equal(t, "echo", cmd.name)
		assert.Equal(t, []string{"hello"}, cmd.args)
		assert.Equal(t, "echo hello", cmd.String())
	})

	t.Run("empty command name", func(t *testing.T) {
		_, err := sb.Build(ctx, "")
		assert.True(t, errors.Is(err, errors.ErrCodeNotSpecified))
	})
}

func TestSafeBuilder_Validate(t *testing.T) {
	sb := NewSafeBuilder()

	assert.NoError(t, sb.Validate("hostname", "db1.example.com"))
	assert.Error(t, sb.Validate("hostname", "db1 && id"))
	assert.Error(t, sb.Validate("unknownType", "value"))
}

func TestSetDefaultTimeout(t *testing.T) {
	sb := NewSafeBuilder()

	sb.SetDefaultTimeout(30 * time.Second)
	assert.Equal(t, 30*time.Second, sb.defaultTimeout)

	sb.SetDefaultTimeout(time.Hour)
	assert.Equal(t, MaxTimeout, sb.defaultTimeout)

	sb.SetDefaultTimeout(0)
	assert.Equal(t, MaxTimeout, sb.defaultTimeout, "non-positive timeout is ignored")
}

func TestCommand_WithTimeout(t *testing.T) {
	sb := NewSafeBuilder()

	cmd, err := sb.Build(context.Background(), "sleep", "1")
	require.NoError(t, err)

	cmd = cmd.WithTimeout(time.Second)
	assert.Equal(t, time.Second, cmd.timeout)

	cmd = cmd.WithTimeout(20 * time.Minute)
	assert.Equal(t, MaxTimeout, cmd.timeout)
}

func TestCommandRun(t *testing.T) {
	sb := NewSafeBuilder()
	ctx := context.Background()

	t.Run("captures stdout and stderr", func(t *testing.T) {
		cmd, err := sb.Build(ctx, "sh", "-c", "echo hello; echo oops >&2")
		require.NoError(t, err)

		out, err := cmd.Run()
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"hello", "oops"}, out.Lines())
		assert.Equal(t, 0, out.ExitCode)
	})

	t.Run("non-zero exit keeps output", func(t *testing.T) {
		cmd, err := sb.Build(ctx, "sh", "-c", "echo partial; exit 3")
		require.NoError(t, err)

		out, err := cmd.Run()
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrCodeExecutionFailed))
		require.NotNil(t, out)
		assert.Equal(t, 3, out.ExitCode)
		assert.Equal(t, []string{"partial"}, out.Lines())
		assert.Equal(t, 3, errors.Details(err)["exitCode"])
	})

	t.Run("missing binary", func(t *testing.T) {
		cmd, err := sb.Build(ctx, "hop-definitely-not-installed")
		require.NoError(t, err)

		_, err = cmd.Run()
		assert.True(t, errors.Is(err, errors.ErrCodeCommandNotFound))
	})

	t.Run("stdin", func(t *testing.T) {
		cmd, err := sb.Build(ctx, "cat")
		require.NoError(t, err)

		out, err := cmd.WithStdin(strings.NewReader("hello\n")).Run()
		require.NoError(t, err)
		assert.Equal(t, []string{"hello"}, out.Lines())
	})
}

func TestCommandTimeout(t *testing.T) {
	sb := NewSafeBuilder()

	cmd, err := sb.Build(context.Background(), "sleep", "10")
	require.NoError(t, err)

	start := time.Now()
	_, err = cmd.WithTimeout(100 * time.Millisecond).Run()
	duration := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeExecutionFailed))
	assert.Equal(t, "100ms", errors.Details(err)["timeout"])

	// Allow some margin for execution overhead
	if duration > 2*time.Second {
		t.Errorf("command took too long to timeout: %v", duration)
	}
}

func TestLines(t *testing.T) {
	assert.Equal(t, []string{}, Lines(nil))
	assert.Equal(t, []string{"a", "b"}, Lines([]byte("a\nb\n")))
	assert.Equal(t, []string{"a", "", "b"}, Lines([]byte("a\r\n\r\nb")))
}

func TestSudoExecutor(t *testing.T) {
	e := &SudoExecutor{}
	cmd := e.Command("kill", "-TERM", "42")
	assert.Equal(t, []string{"sudo", "-n", "kill", "-TERM", "42"}, cmd.Args)
}

func TestCommandStart(t *testing.T) {
	sb := NewSafeBuilder()
	ctx := context.Background()

	tests := []struct {
		name     string
		command  string
		args     []string
		stdin    string
		wantOut  string
		wantCode errors.ErrorCode
		waitErr  bool
	}{
		{name: "streams stdin to stdout", command: "cat", stdin: "nightly\n", wantOut: "nightly\n"},
		{name: "stderr kept apart", command: "sh", args: []string{"-c", "echo out; echo err >&2"}, wantOut: "out\n"},
		{name: "non-zero exit surfaces on wait", command: "sh", args: []string{"-c", "exit 3"}, waitErr: true},
		{name: "missing binary", command: "nonexistent-command-xyz", wantCode: errors.ErrCodeCommandNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := sb.Build(ctx, tt.command, tt.args...)
			require.NoError(t, err)

			var stdout, stderr bytes.Buffer
			child, err := c.WithStdin(strings.NewReader(tt.stdin)).WithOutput(&stdout, &stderr).Start()
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantCode))
				return
			}
			require.NoError(t, err)

			err = child.Wait()
			if tt.waitErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOut, stdout.String())
		})
	}
}
