package testutil

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// RequireBinary skips the test if name is not on PATH
func RequireBinary(t *testing.T, name string) {
	t.Helper()

	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available", name)
	}
}

// InitGitRepo initializes a git repository in the given directory
func InitGitRepo(t *testing.T, dir string) {
	t.Helper()

	RunGitCommand(t, dir, "init")
	RunGitCommand(t, dir, "config", "user.name", "Test User")
	RunGitCommand(t, dir, "config", "user.email", "test@example.com")

	// Create initial commit
	testFile := filepath.Join(dir, "README.md")
	if err := os.WriteFile(testFile, []byte("# Test Project\n"), 0600); err != nil {
		t.Fatalf("Failed to create README: %v", err)
	}

	RunGitCommand(t, dir, "add", ".")
	RunGitCommand(t, dir, "commit", "-m", "Initial commit")

	// Ensure we have a main branch (rename from master if needed)
	cmd := exec.Command("git", "branch", "-m", "main")
	cmd.Dir = dir
	_ = cmd.Run() // Ignore error as branch might already be named main
}

// RunGitCommand runs a git command in the given directory
func RunGitCommand(t *testing.T, dir string, args ...string) {
	t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to run git %v: %v\n%s", args, err, out)
	}
}

// RandomString generates a random string of the specified length
func RandomString(length int) string {
	bytes := make([]byte, length/2+1)
	if _, err := rand.Read(bytes); err != nil {
		panic(err)
	}
	return hex.EncodeToString(bytes)[:length]
}

// FakeBin writes an executable shell script called name into dir.
func FakeBin(t *testing.T, dir, name, script string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	content := "#!/bin/sh\n" + script + "\n"
	if err := os.WriteFile(path, []byte(content), 0755); err != nil {
		t.Fatalf("Failed to write fake binary %s: %v", name, err)
	}
	return path
}

// Call is one command observed by a RecordingExecutor.
type Call struct {
	Name string
	Args []string
}

// String joins the call into a single line for assertions.
func (c Call) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// RecordingExecutor records every command and resolves binaries from
// BinDir first, so tests can stand in for ssh, ps, pgrep and friends.
type RecordingExecutor struct {
	BinDir string

	mu    sync.Mutex
	calls []Call
}

// Command creates an exec.Cmd and records it.
func (e *RecordingExecutor) Command(name string, args ...string) *exec.Cmd {
	return e.CommandContext(context.Background(), name, args...)
}

// CommandContext creates a context-aware exec.Cmd and records it.
func (e *RecordingExecutor) CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	e.mu.Lock()
	e.calls = append(e.calls, Call{Name: name, Args: append([]string(nil), args...)})
	e.mu.Unlock()

	path := name
	if e.BinDir != "" {
		if _, err := os.Stat(filepath.Join(e.BinDir, name)); err == nil {
			path = filepath.Join(e.BinDir, name)
		}
	}
	cmd := exec.CommandContext(ctx, path, args...)
	if e.BinDir != "" {
		cmd.Env = append(os.Environ(), "PATH="+e.BinDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
	return cmd
}

// Calls returns a copy of the recorded calls.
func (e *RecordingExecutor) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// CallsTo returns the recorded calls of a single binary.
func (e *RecordingExecutor) CallsTo(name string) []Call {
	var out []Call
	for _, c := range e.Calls() {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}
