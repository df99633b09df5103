package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/grovetools/hop/command"
	"github.com/grovetools/hop/errors"
)

// Validate checks host entries and their proxy references.
func (c *Config) Validate() error {
	if c.Defaults.Port < 0 || c.Defaults.Port > 65535 {
		return errors.ConfigInvalid(fmt.Sprintf("defaults.port %d is out of range", c.Defaults.Port)).
			WithDetail("field", "defaults.port")
	}
	if c.Git.Retries < 0 {
		return errors.ConfigInvalid("git.retries cannot be negative").WithDetail("field", "git.retries")
	}

	for _, name := range c.HostNames() {
		if err := c.validateHost(name, c.Hosts[name]); err != nil {
			return err
		}
	}

	for _, name := range c.HostNames() {
		if _, err := c.Descriptor(name); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateHost(name string, h Host) error {
	invalid := func(reason string) *errors.HopError {
		return errors.ConfigInvalid(fmt.Sprintf("host '%s': %s", name, reason)).WithDetail("host", name)
	}

	if strings.TrimSpace(name) == "" {
		return errors.ConfigInvalid("host names cannot be empty")
	}
	if h.Host == "" {
		return invalid("host is required")
	}
	if err := command.ValidateHostname(h.Host); err != nil {
		return invalid(err.Error())
	}
	if h.User != "" {
		if err := command.ValidateUsername(h.User); err != nil {
			return invalid(err.Error())
		}
	}
	if h.Port < 0 || h.Port > 65535 {
		return invalid(fmt.Sprintf("port %d is out of range", h.Port))
	}
	for _, proxy := range h.Proxies {
		if _, ok := c.Hosts[proxy]; !ok {
			return invalid(fmt.Sprintf("unknown proxy '%s'", proxy)).WithDetail("proxy", proxy)
		}
	}
	if t := h.Tunnel; t != nil {
		if t.SourcePort < 1 || t.SourcePort > 65535 || t.TargetPort < 1 || t.TargetPort > 65535 {
			return invalid("tunnel ports must be between 1 and 65535")
		}
		if t.TargetHost == "" {
			return invalid("tunnel.target_host is required")
		}
	}
	for _, opt := range h.Options {
		if !strings.Contains(opt, "=") {
			return invalid(fmt.Sprintf("option %q is not key=value", opt))
		}
	}
	return nil
}

// HostNames returns the configured host names in sorted order.
func (c *Config) HostNames() []string {
	names := make([]string, 0, len(c.Hosts))
	for name := range c.Hosts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
