package config

import (
	"fmt"
	"strings"

	"github.com/grovetools/hop/errors"
	"github.com/grovetools/hop/pkg/sshcmd"
)

// HasHost reports whether name is a configured host.
func (c *Config) HasHost(name string) bool {
	_, ok := c.Hosts[name]
	return ok
}

// Descriptor resolves the named host, and its proxies by name, into a
// connection descriptor. Proxy cycles are CONFIG_INVALID.
func (c *Config) Descriptor(name string) (*sshcmd.Descriptor, error) {
	return c.resolve(name, nil)
}

func (c *Config) resolve(name string, stack []string) (*sshcmd.Descriptor, error) {
	for i, seen := range stack {
		if seen == name {
			cycle := append(append([]string{}, stack[i:]...), name)
			return nil, errors.ConfigInvalid(fmt.Sprintf("proxy cycle: %s", strings.Join(cycle, " -> "))).
				WithDetail("host", stack[0]).
				WithDetail("cycle", cycle)
		}
	}

	h, ok := c.Hosts[name]
	if !ok {
		return nil, errors.ConfigInvalid(fmt.Sprintf("unknown host '%s'", name)).WithDetail("host", name)
	}

	d := &sshcmd.Descriptor{
		Host:         h.Host,
		Port:         h.Port,
		User:         h.User,
		IdentityFile: expandHome(h.IdentityFile),
		Options: sshcmd.Options{
			ConnectTimeout:        c.Defaults.ConnectTimeout.Std(),
			StrictHostKeyChecking: c.Defaults.StrictHostKeyChecking,
			Extra:                 append([]string(nil), h.Options...),
		},
	}
	if d.Port == 0 {
		d.Port = c.Defaults.Port
	}
	if t := h.Tunnel; t != nil {
		d.Tunnel = &sshcmd.Tunnel{
			SourcePort: t.SourcePort,
			TargetHost: t.TargetHost,
			TargetPort: t.TargetPort,
			Persist:    t.Persist,
		}
	}

	stack = append(stack, name)
	for _, proxyName := range h.Proxies {
		proxy, err := c.resolve(proxyName, stack)
		if err != nil {
			return nil, err
		}
		// A hop is a plain jump host even when its own entry has a tunnel.
		proxy.Tunnel = nil
		d.Proxies = append(d.Proxies, *proxy)
	}
	return d, nil
}
