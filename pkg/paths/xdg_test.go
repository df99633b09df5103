package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHopHomeOverridesXDG(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOP_HOME", home)
	t.Setenv("XDG_DATA_HOME", "/should/not/be/used")

	assert.Equal(t, filepath.Join(home, "config", "hop"), ConfigDir())
	assert.Equal(t, filepath.Join(home, "data", "hop"), DataDir())
	assert.Equal(t, filepath.Join(home, "state", "hop", "logs"), LogDir())
}

func TestXDGDataHome(t *testing.T) {
	t.Setenv("HOP_HOME", "")
	t.Setenv("XDG_DATA_HOME", "/xdg/data")

	assert.Equal(t, "/xdg/data/hop", DataDir())
}

func TestLayout(t *testing.T) {
	l := Layout{DataDir: "/srv/hop"}

	assert.Equal(t, "/srv/hop/run", l.RunDir())
	assert.Equal(t, "/srv/hop/ssh/keys", l.KeysDir())
	assert.Equal(t, "/srv/hop/ssh/known_hosts", l.KnownHostsFile())
}

func TestEnsureDirs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOP_HOME", home)

	l := Default()
	require.NoError(t, l.EnsureDirs())

	assert.DirExists(t, l.RunDir())
	assert.DirExists(t, l.KeysDir())
	assert.DirExists(t, LogDir())
}
