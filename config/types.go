package config

import (
	"fmt"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
)

// Duration is a time.Duration written as a Go duration string ("10s", "2m").
type Duration time.Duration

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText renders the duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// JSONSchema describes Duration as a pattern-checked string.
func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
		Description: "Go duration string such as 10s or 2m",
	}
}

// Defaults apply to every host entry that leaves the field unset.
type Defaults struct {
	Port                  int      `yaml:"port,omitempty" toml:"port,omitempty" json:"port,omitempty" jsonschema:"minimum=1,maximum=65535,description=SSH port used when a host has none"`
	ConnectTimeout        Duration `yaml:"connect_timeout,omitempty" toml:"connect_timeout,omitempty" json:"connect_timeout,omitempty" jsonschema:"description=ssh ConnectTimeout"`
	StrictHostKeyChecking *bool    `yaml:"strict_host_key_checking,omitempty" toml:"strict_host_key_checking,omitempty" json:"strict_host_key_checking,omitempty" jsonschema:"description=ssh StrictHostKeyChecking"`
	CommandTimeout        Duration `yaml:"command_timeout,omitempty" toml:"command_timeout,omitempty" json:"command_timeout,omitempty" jsonschema:"description=Upper bound for a single command"`
}

// TunnelConfig is a local port forward attached to a host.
type TunnelConfig struct {
	SourcePort int    `yaml:"source_port" toml:"source_port" json:"source_port" jsonschema:"required,minimum=1,maximum=65535"`
	TargetHost string `yaml:"target_host" toml:"target_host" json:"target_host" jsonschema:"required"`
	TargetPort int    `yaml:"target_port" toml:"target_port" json:"target_port" jsonschema:"required,minimum=1,maximum=65535"`
	Persist    bool   `yaml:"persist,omitempty" toml:"persist,omitempty" json:"persist,omitempty" jsonschema:"description=Keep the tunnel after the command finishes"`
}

// Host is a named connection target.
type Host struct {
	Host         string        `yaml:"host" toml:"host" json:"host" jsonschema:"required,description=Hostname or address"`
	Port         int           `yaml:"port,omitempty" toml:"port,omitempty" json:"port,omitempty" jsonschema:"minimum=1,maximum=65535"`
	User         string        `yaml:"user,omitempty" toml:"user,omitempty" json:"user,omitempty"`
	IdentityFile string        `yaml:"identity_file,omitempty" toml:"identity_file,omitempty" json:"identity_file,omitempty" jsonschema:"description=Path to the private key; ~ is expanded"`
	Proxies      []string      `yaml:"proxies,omitempty" toml:"proxies,omitempty" json:"proxies,omitempty" jsonschema:"description=Names of hosts to jump through in order"`
	Tunnel       *TunnelConfig `yaml:"tunnel,omitempty" toml:"tunnel,omitempty" json:"tunnel,omitempty"`
	Options      []string      `yaml:"options,omitempty" toml:"options,omitempty" json:"options,omitempty" jsonschema:"description=Extra ssh -o key=value settings"`
}

// GitConfig tunes the git client.
type GitConfig struct {
	Retries    int      `yaml:"retries,omitempty" toml:"retries,omitempty" json:"retries,omitempty" jsonschema:"minimum=0,description=Busy checks before giving up"`
	RetryDelay Duration `yaml:"retry_delay,omitempty" toml:"retry_delay,omitempty" json:"retry_delay,omitempty"`
}

// TerminateConfig tunes signal escalation.
type TerminateConfig struct {
	Interval Duration `yaml:"interval,omitempty" toml:"interval,omitempty" json:"interval,omitempty" jsonschema:"description=Pause around each liveness check"`
}

// Config is the parsed hop.yml.
type Config struct {
	Version   string          `yaml:"version" toml:"version" json:"version" jsonschema:"description=Configuration version (e.g. '1')"`
	DataDir   string          `yaml:"data_dir,omitempty" toml:"data_dir,omitempty" json:"data_dir,omitempty" jsonschema:"description=Overrides the data directory"`
	Defaults  Defaults        `yaml:"defaults,omitempty" toml:"defaults,omitempty" json:"defaults,omitempty"`
	Hosts     map[string]Host `yaml:"hosts,omitempty" toml:"hosts,omitempty" json:"hosts,omitempty"`
	Git       GitConfig       `yaml:"git,omitempty" toml:"git,omitempty" json:"git,omitempty"`
	Terminate TerminateConfig `yaml:"terminate,omitempty" toml:"terminate,omitempty" json:"terminate,omitempty"`

	// Extensions holds per-component settings such as "logging".
	Extensions map[string]interface{} `yaml:"extensions,omitempty" toml:"extensions,omitempty" json:"extensions,omitempty"`

	// Path is the file the project layer came from.
	Path string `yaml:"-" toml:"-" json:"-"`
}

// SetDefaults fills unset fields with built-in values.
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = "1"
	}
	if c.Defaults.Port == 0 {
		c.Defaults.Port = 22
	}
	if c.Git.Retries == 0 {
		c.Git.Retries = 10
	}
	if c.Git.RetryDelay == 0 {
		c.Git.RetryDelay = Duration(5 * time.Second)
	}
	if c.Terminate.Interval == 0 {
		c.Terminate.Interval = Duration(time.Second)
	}
}

// UnmarshalExtension decodes the extensions entry for key into target.
// A missing key leaves target untouched.
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
