package cmd

import (
	"testing"

	"github.com/grovetools/hop/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunsJob(t *testing.T) {
	assert.True(t, runsJob("/usr/local/bin/hop lock run backup -- backup.sh --full", "backup"))
	assert.True(t, runsJob("hop -v lock run backup -- x", "backup"))
	assert.False(t, runsJob("hop lock run backup-full -- x", "backup"))
	assert.False(t, runsJob("hop lock status backup", "backup"))
	assert.False(t, runsJob("hop lock run", "backup"))
}

func TestLockCommands(t *testing.T) {
	cfgPath := writeConfig(t)

	tests := []struct {
		name     string
		args     []string
		wantOut  string
		wantCode errors.ErrorCode
	}{
		{
			name:    "run streams the job's output",
			args:    []string{"lock", "run", "--config", cfgPath, "backup", "--", "sh", "-c", "echo nightly backup done"},
			wantOut: "nightly backup done\n",
		},
		{
			name:     "run reports a failing job",
			args:     []string{"lock", "run", "--config", cfgPath, "backup", "--", "sh", "-c", "exit 4"},
			wantCode: errors.ErrCodeExecutionFailed,
		},
		{
			name:     "run reports a missing binary",
			args:     []string{"lock", "run", "--config", cfgPath, "backup", "--", "hop-no-such-binary"},
			wantCode: errors.ErrCodeCommandNotFound,
		},
		{
			name:    "status without a PID file",
			args:    []string{"lock", "status", "--config", cfgPath, "backup"},
			wantOut: "○ backup is not running\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runRoot(t, tt.args...)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantCode), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out, tt.wantOut)
		})
	}
}
