package config

// mergeConfigs merges override configuration into base. Host entries and
// extensions are replaced per key.
func mergeConfigs(base, override *Config) *Config {
	result := *base

	if override.Version != "" {
		result.Version = override.Version
	}
	if override.DataDir != "" {
		result.DataDir = override.DataDir
	}

	// Merge defaults
	if override.Defaults.Port != 0 {
		result.Defaults.Port = override.Defaults.Port
	}
	if override.Defaults.ConnectTimeout != 0 {
		result.Defaults.ConnectTimeout = override.Defaults.ConnectTimeout
	}
	if override.Defaults.StrictHostKeyChecking != nil {
		result.Defaults.StrictHostKeyChecking = override.Defaults.StrictHostKeyChecking
	}
	if override.Defaults.CommandTimeout != 0 {
		result.Defaults.CommandTimeout = override.Defaults.CommandTimeout
	}

	if len(override.Hosts) > 0 {
		hosts := make(map[string]Host, len(base.Hosts)+len(override.Hosts))
		for name, h := range base.Hosts {
			hosts[name] = h
		}
		for name, h := range override.Hosts {
			hosts[name] = h
		}
		result.Hosts = hosts
	}

	if override.Git.Retries != 0 {
		result.Git.Retries = override.Git.Retries
	}
	if override.Git.RetryDelay != 0 {
		result.Git.RetryDelay = override.Git.RetryDelay
	}
	if override.Terminate.Interval != 0 {
		result.Terminate.Interval = override.Terminate.Interval
	}

	if len(override.Extensions) > 0 {
		extensions := make(map[string]interface{}, len(base.Extensions)+len(override.Extensions))
		for key, value := range base.Extensions {
			extensions[key] = value
		}
		for key, value := range override.Extensions {
			extensions[key] = value
		}
		result.Extensions = extensions
	}

	return &result
}
