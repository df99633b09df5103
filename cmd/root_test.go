package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/grovetools/hop/pkg/cleanup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `version: "1"
hosts:
  bastion:
    host: bastion.example.com
    user: jump
  db1:
    host: db1.example.com
    user: ops
    port: 2222
    proxies: [bastion]
`

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOP_HOME", t.TempDir())

	root := NewRootCmd(cleanup.New())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hop.yml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o644))
	return path
}

func TestRenderCommand(t *testing.T) {
	cfgPath := writeConfig(t)

	out, err := runRoot(t, "render", "--config", cfgPath, "db1", "--", "uptime")
	require.NoError(t, err)
	assert.Contains(t, out, "ssh -p 2222")
	assert.Contains(t, out, "ProxyCommand=")
	assert.Contains(t, out, "jump@bastion.example.com")
	assert.Contains(t, out, "ops@db1.example.com uptime")
}

func TestRenderCommandJSON(t *testing.T) {
	cfgPath := writeConfig(t)

	out, err := runRoot(t, "render", "--config", cfgPath, "--json", "--tool", "scp", "db1", "--", "./a", ":/tmp/a")
	require.NoError(t, err)

	var result struct {
		Argv       []string `json:"argv"`
		Background bool     `json:"background"`
		Command    string   `json:"command"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.NotEmpty(t, result.Argv)
	assert.Equal(t, "scp", result.Argv[0])
	assert.Contains(t, result.Argv, "-P")
	assert.Equal(t, "ops@db1.example.com:/tmp/a", result.Argv[len(result.Argv)-1])
	assert.False(t, result.Background)
}

func TestRenderRejectsUnknownTool(t *testing.T) {
	cfgPath := writeConfig(t)

	_, err := runRoot(t, "render", "--config", cfgPath, "--tool", "telnet", "db1")
	require.Error(t, err)
}

func TestConfigValidateCommand(t *testing.T) {
	cfgPath := writeConfig(t)

	out, err := runRoot(t, "config", "validate", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid (2 hosts)")
}

func TestPathsCommandJSON(t *testing.T) {
	out, err := runRoot(t, "paths", "--json")
	require.NoError(t, err)

	var result PathsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.NotEmpty(t, result.ConfigDir)
	assert.Equal(t, filepath.Join(result.DataDir, "run"), result.RunDir)
}

func TestSubcommandsRegistered(t *testing.T) {
	root := NewRootCmd(cleanup.New())
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"exec", "render", "tunnel", "ps", "kill", "lock", "git", "known-hosts", "config", "paths", "logs", "version"} {
		assert.Contains(t, names, want)
	}
}
