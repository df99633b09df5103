package process

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"testing"

	"github.com/grovetools/hop/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsProcessAlive(t *testing.T) {
	assert.True(t, IsProcessAlive(os.Getpid()))
	assert.False(t, IsProcessAlive(0))
	assert.False(t, IsProcessAlive(-1))

	cmd := exec.Command("sh", "-c", "exit 0")
	require.NoError(t, cmd.Run())
	assert.False(t, IsProcessAlive(cmd.Process.Pid), "reaped child must not be alive")
}

func TestParseSignal(t *testing.T) {
	tests := []struct {
		in      string
		want    syscall.Signal
		wantErr bool
	}{
		{"", syscall.SIGTERM, false},
		{"TERM", syscall.SIGTERM, false},
		{"sigkill", syscall.SIGKILL, false},
		{"HUP", syscall.SIGHUP, false},
		{"9", syscall.SIGKILL, false},
		{"0", 0, true},
		{"NOPE", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSignal(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSignalFlag(t *testing.T) {
	assert.Equal(t, "-TERM", signalFlag(syscall.SIGTERM))
	assert.Equal(t, "-KILL", signalFlag(syscall.SIGKILL))
}

func TestParsePSLine(t *testing.T) {
	rec, ok := parsePSLine("  1234 bash            /bin/bash -c  sleep 100")
	require.True(t, ok)
	assert.Equal(t, 1234, rec.PID)
	assert.Equal(t, "bash", rec.Name)
	assert.Equal(t, "/bin/bash -c  sleep 100", rec.CommandLine)

	_, ok = parsePSLine("garbage")
	assert.False(t, ok)
}

func TestRecordMatchesName(t *testing.T) {
	tests := []struct {
		name   string
		record Record
		script string
		want   bool
	}{
		{"same comm", Record{Name: "backup", CommandLine: "backup --full"}, "backup", true},
		{"interpreter argv1", Record{Name: "bash", CommandLine: "/bin/bash /usr/local/bin/backup"}, "backup", true},
		{"unrelated bash", Record{Name: "bash", CommandLine: "bash"}, "backup", false},
		{"truncated comm", Record{Name: "nightly-backup-", CommandLine: "x"}, "nightly-backup-job", true},
		{"empty script", Record{Name: "bash"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.record.MatchesName(tt.script))
		})
	}
}

func TestRegistryFindByNameWithFakePgrep(t *testing.T) {
	bin := t.TempDir()
	testutil.FakeBin(t, bin, "pgrep", `
case "$3" in
  nomatch) exit 1 ;;
  broken) echo "pgrep: bad regex" >&2; exit 2 ;;
esac
printf '30\n10\n`+strconv.Itoa(os.Getpid())+`\n20\n'`)

	exec := &testutil.RecordingExecutor{BinDir: bin}
	reg := NewRegistry(exec)
	ctx := context.Background()

	pids, err := reg.FindByName(ctx, "worker")
	require.NoError(t, err)
	assert.Equal(t, []int{10, 20, 30}, pids, "sorted and without own PID")
	assert.Equal(t, "pgrep -f -- worker", exec.Calls()[0].String())

	pids, err = reg.FindByName(ctx, "nomatch")
	require.NoError(t, err)
	assert.Empty(t, pids)

	_, err = reg.FindByName(ctx, "broken")
	assert.Error(t, err)

	_, err = reg.FindByName(ctx, "")
	assert.Error(t, err)
}

func TestRegistryDescribeWithFakePS(t *testing.T) {
	bin := t.TempDir()
	testutil.FakeBin(t, bin, "ps", `
if [ "$5" = "1234" ]; then
  echo " 1234 bash            bash"
  exit 0
fi
exit 1`)

	reg := NewRegistry(&testutil.RecordingExecutor{BinDir: bin})
	ctx := context.Background()

	rec, err := reg.Describe(ctx, 1234)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "bash", rec.Name)

	rec, err = reg.Describe(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, rec)

	rec, err = reg.Describe(ctx, MaxPID+1)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRegistryAgainstRealProcessTable(t *testing.T) {
	testutil.RequireBinary(t, "ps")
	testutil.RequireBinary(t, "pgrep")

	marker := "hop-registry-test-" + testutil.RandomString(8)
	cmd := exec.Command("sh", "-c", "sleep 30; true # "+marker)
	require.NoError(t, cmd.Start())
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})

	reg := NewRegistry(nil)
	ctx := context.Background()

	pids, err := reg.FindByName(ctx, marker)
	require.NoError(t, err)
	assert.Contains(t, pids, cmd.Process.Pid)

	rec, err := reg.Describe(ctx, cmd.Process.Pid)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, cmd.Process.Pid, rec.PID)
	assert.Contains(t, rec.CommandLine, marker)
}
