package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grovetools/hop/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFlag(t *testing.T) {
	t.Setenv("HOP_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "hop.yml")
	require.NoError(t, os.WriteFile(path, []byte("hosts:\n  db1: {host: db1.example.com, user: ops}\n"), 0644))

	cmd := NewStandardCommand("hop", "test")
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--verbose"}))

	opts := GetOptions(cmd)
	assert.Equal(t, path, opts.ConfigFile)
	assert.True(t, opts.Verbose)

	cfg, err := LoadConfig(cmd)
	require.NoError(t, err)
	assert.True(t, cfg.HasHost("db1"))
}

func TestLoadConfigMissingFlagFile(t *testing.T) {
	cmd := NewStandardCommand("hop", "test")
	require.NoError(t, cmd.ParseFlags([]string{"--config", filepath.Join(t.TempDir(), "nope.yml")}))

	_, err := LoadConfig(cmd)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigNotFound))
}

func TestLoadConfigDefaultsWithoutFile(t *testing.T) {
	t.Setenv("HOP_HOME", t.TempDir())
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cmd := NewStandardCommand("hop", "test")
	cfg, err := LoadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, 22, cfg.Defaults.Port)
	assert.Empty(t, cfg.Hosts)
}
