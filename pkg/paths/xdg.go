// Package paths provides XDG-compliant path resolution for hop.
//
// Resolution order:
// 1. HOP_HOME (portable root) → $HOP_HOME/{config,data,state,cache}
// 2. XDG env vars → $XDG_*_HOME/hop
// 3. Platform defaults → ~/.config/hop, ~/.local/share/hop, etc.
package paths

import (
	"os"
	"path/filepath"
)

// getConfigHome returns the base config home directory.
func getConfigHome() string {
	if hopHome := os.Getenv("HOP_HOME"); hopHome != "" {
		return filepath.Join(hopHome, "config")
	}
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return xdgConfigHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config")
	}
	return ""
}

// getDataHome returns the base data home directory.
func getDataHome() string {
	if hopHome := os.Getenv("HOP_HOME"); hopHome != "" {
		return filepath.Join(hopHome, "data")
	}
	if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
		return xdgDataHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "share")
	}
	return ""
}

// getStateHome returns the base state home directory.
func getStateHome() string {
	if hopHome := os.Getenv("HOP_HOME"); hopHome != "" {
		return filepath.Join(hopHome, "state")
	}
	if xdgStateHome := os.Getenv("XDG_STATE_HOME"); xdgStateHome != "" {
		return xdgStateHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "state")
	}
	return ""
}

// ConfigDir returns the hop configuration directory.
// Used for the global hop.yml.
func ConfigDir() string {
	base := getConfigHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, "hop")
}

// DataDir returns the hop data directory.
// Holds lock files, identity keys and the known-hosts file.
func DataDir() string {
	base := getDataHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, "hop")
}

// StateDir returns the hop state directory.
// Used for logs.
func StateDir() string {
	base := getStateHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, "hop")
}

// LogDir returns the directory for hop log files.
func LogDir() string {
	state := StateDir()
	if state == "" {
		return ""
	}
	return filepath.Join(state, "logs")
}

// Layout is the fixed file layout below a data directory.
type Layout struct {
	DataDir string
}

// Default returns the layout rooted at DataDir().
func Default() Layout {
	return Layout{DataDir: DataDir()}
}

// RunDir holds one PID file per script name.
func (l Layout) RunDir() string {
	return filepath.Join(l.DataDir, "run")
}

// KeysDir holds short-lived identity key files.
func (l Layout) KeysDir() string {
	return filepath.Join(l.DataDir, "ssh", "keys")
}

// KnownHostsFile is the append-only known-hosts file used for proxy hops.
func (l Layout) KnownHostsFile() string {
	return filepath.Join(l.DataDir, "ssh", "known_hosts")
}

// EnsureDirs creates all hop directories if they don't exist.
// The keys directory is restricted to the owner.
func (l Layout) EnsureDirs() error {
	dirs := []struct {
		path string
		mode os.FileMode
	}{
		{ConfigDir(), 0755},
		{l.DataDir, 0755},
		{l.RunDir(), 0755},
		{filepath.Dir(l.KeysDir()), 0700},
		{l.KeysDir(), 0700},
		{LogDir(), 0755},
	}

	for _, dir := range dirs {
		if dir.path == "" {
			continue
		}
		if err := os.MkdirAll(dir.path, dir.mode); err != nil {
			return err
		}
	}
	return nil
}
