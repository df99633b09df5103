package process

import (
	"context"
	"os/exec"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/grovetools/hop/errors"
	"github.com/grovetools/hop/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTable simulates the process table: kill(1) calls recorded by the
// RecordingExecutor flip liveness according to the rules below.
type fakeTable struct {
	mu          sync.Mutex
	alive       map[int]bool
	ignoresTerm map[int]bool
	ignoresKill map[int]bool
	sleeps      int
}

func (f *fakeTable) isAlive(pid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive[pid]
}

func (f *fakeTable) sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	f.sleeps++
	f.mu.Unlock()
	return ctx.Err()
}

// deliver applies the signals recorded so far.
func (f *fakeTable) deliver(calls []testutil.Call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range calls {
		if c.Name != "kill" || len(c.Args) < 2 {
			continue
		}
		for _, arg := range c.Args[1:] {
			var pid int
			for _, r := range arg {
				pid = pid*10 + int(r-'0')
			}
			switch c.Args[0] {
			case "-TERM":
				if !f.ignoresTerm[pid] {
					f.alive[pid] = false
				}
			case "-KILL":
				if !f.ignoresKill[pid] {
					f.alive[pid] = false
				}
			}
		}
	}
}

type fakeFinder struct {
	pids []int
}

func (f *fakeFinder) FindByName(ctx context.Context, pattern string) ([]int, error) {
	return f.pids, nil
}

func (f *fakeFinder) Describe(ctx context.Context, pid int) (*Record, error) {
	return nil, nil
}

// newFakeTerminator wires a Terminator to a fake kill binary that always
// succeeds and a fake process table updated after every kill call.
func newFakeTerminator(t *testing.T, table *fakeTable, finder Finder) (*Terminator, *testutil.RecordingExecutor) {
	t.Helper()
	bin := t.TempDir()
	testutil.FakeBin(t, bin, "kill", "exit 0")
	testutil.FakeBin(t, bin, "sudo", `shift; exec "$@"`)
	rec := &testutil.RecordingExecutor{BinDir: bin}

	term := NewTerminator(rec, finder)
	term.alive = func(pid int) bool {
		table.deliver(rec.Calls())
		return table.isAlive(pid)
	}
	term.sleep = table.sleep
	return term, rec
}

func TestTerminateAlreadyDeadIsNoop(t *testing.T) {
	table := &fakeTable{alive: map[int]bool{}}
	term, rec := newFakeTerminator(t, table, &fakeFinder{})

	err := term.Terminate(context.Background(), PID(4242), TerminateOptions{VerifyAttempts: -3})
	require.NoError(t, err)
	assert.Empty(t, rec.CallsTo("kill"), "no signal for a dead PID")

	// Calling again is just as quiet
	require.NoError(t, term.Terminate(context.Background(), PID(4242), TerminateOptions{}))
	assert.Empty(t, rec.CallsTo("kill"))
}

func TestTerminateWithoutVerification(t *testing.T) {
	table := &fakeTable{alive: map[int]bool{100: true}, ignoresTerm: map[int]bool{100: true}}
	term, rec := newFakeTerminator(t, table, &fakeFinder{})

	err := term.Terminate(context.Background(), PID(100), TerminateOptions{})
	require.NoError(t, err)
	require.Len(t, rec.CallsTo("kill"), 1)
	assert.Equal(t, "kill -TERM 100", rec.CallsTo("kill")[0].String())
	assert.Zero(t, table.sleeps)
}

func TestTerminateVerifiesDeath(t *testing.T) {
	table := &fakeTable{alive: map[int]bool{100: true}}
	term, rec := newFakeTerminator(t, table, &fakeFinder{})

	err := term.Terminate(context.Background(), PID(100), TerminateOptions{VerifyAttempts: 3})
	require.NoError(t, err)
	assert.Len(t, rec.CallsTo("kill"), 1)
	assert.Equal(t, 1, table.sleeps, "one sleep before the first successful check")
}

func TestTerminateFailsWithoutEscalation(t *testing.T) {
	table := &fakeTable{alive: map[int]bool{100: true}, ignoresTerm: map[int]bool{100: true}}
	term, rec := newFakeTerminator(t, table, &fakeFinder{})

	err := term.Terminate(context.Background(), PID(100), TerminateOptions{VerifyAttempts: 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeKillFailed))
	assert.Len(t, rec.CallsTo("kill"), 1, "positive attempts never escalate")
	assert.Equal(t, 4, table.sleeps, "sleep before and after each check")
}

func TestTerminateEscalatesToKill(t *testing.T) {
	table := &fakeTable{alive: map[int]bool{100: true}, ignoresTerm: map[int]bool{100: true}}
	term, rec := newFakeTerminator(t, table, &fakeFinder{})

	err := term.Terminate(context.Background(), PID(100), TerminateOptions{VerifyAttempts: -2})
	require.NoError(t, err)

	kills := rec.CallsTo("kill")
	require.Len(t, kills, 2)
	assert.Equal(t, "kill -TERM 100", kills[0].String())
	assert.Equal(t, "kill -KILL 100", kills[1].String())
}

func TestTerminateKillFailedAfterEscalation(t *testing.T) {
	table := &fakeTable{
		alive:       map[int]bool{100: true},
		ignoresTerm: map[int]bool{100: true},
		ignoresKill: map[int]bool{100: true},
	}
	term, rec := newFakeTerminator(t, table, &fakeFinder{})

	err := term.Terminate(context.Background(), PID(100), TerminateOptions{VerifyAttempts: -1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeKillFailed))
	assert.Equal(t, []int{100}, errors.Details(err)["pids"])
	assert.Len(t, rec.CallsTo("kill"), 2, "exactly one escalation")
}

func TestTerminateByName(t *testing.T) {
	table := &fakeTable{alive: map[int]bool{10: true, 11: true}}
	term, rec := newFakeTerminator(t, table, &fakeFinder{pids: []int{10, 11}})

	err := term.Terminate(context.Background(), Name("ssh -L 8080"), TerminateOptions{VerifyAttempts: -1})
	require.NoError(t, err)
	require.Len(t, rec.CallsTo("kill"), 1)
	assert.Equal(t, "kill -TERM 10 11", rec.CallsTo("kill")[0].String())
}

func TestTerminateByNameNoMatch(t *testing.T) {
	table := &fakeTable{alive: map[int]bool{}}
	term, rec := newFakeTerminator(t, table, &fakeFinder{})

	require.NoError(t, term.Terminate(context.Background(), Name("nothing"), TerminateOptions{}))
	assert.Empty(t, rec.CallsTo("kill"))
}

func TestTerminateWithSudo(t *testing.T) {
	table := &fakeTable{alive: map[int]bool{100: true}}
	term, rec := newFakeTerminator(t, table, &fakeFinder{})

	require.NoError(t, term.Terminate(context.Background(), PID(100), TerminateOptions{UseSudo: true}))
	sudo := rec.CallsTo("sudo")
	require.Len(t, sudo, 1)
	assert.Equal(t, "sudo -n kill -TERM 100", sudo[0].String())
}

func TestTerminateInvalidPID(t *testing.T) {
	term, _ := newFakeTerminator(t, &fakeTable{alive: map[int]bool{}}, &fakeFinder{})
	err := term.Terminate(context.Background(), PID(0), TerminateOptions{})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestTerminateRealProcess(t *testing.T) {
	testutil.RequireBinary(t, "kill")

	// The child ignores SIGTERM so only the escalation can stop it.
	cmd := exec.Command("sh", "-c", "trap '' TERM; while true; do sleep 0.1; done")
	require.NoError(t, cmd.Start())
	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()
	t.Cleanup(func() {
		_ = cmd.Process.Signal(syscall.SIGKILL)
		<-done
	})

	// Give the shell time to install its trap.
	time.Sleep(200 * time.Millisecond)

	term := NewTerminator(nil, nil)
	err := term.Terminate(context.Background(), PID(cmd.Process.Pid), TerminateOptions{
		VerifyAttempts: -5,
		Interval:       50 * time.Millisecond,
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("process still running after escalation")
	}
}
