package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/grovetools/hop/errors"
	"github.com/grovetools/hop/pkg/paths"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// configNames are searched in order in every directory.
var configNames = []string{
	"hop.yml",
	"hop.yaml",
	"hop.toml",
	".hop.yml",
}

// Load reads, validates and defaults a single configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}

	cfg, err := LoadFromBytes(data, formatOf(path))
	if err != nil {
		return nil, err
	}
	cfg.Path = path
	return cfg, nil
}

// LoadDefault loads the configuration visible from the working directory.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to get current directory")
	}

	return LoadFrom(cwd)
}

// LoadFrom loads configuration with hierarchical merging starting from the given directory:
// 1. Global config (<config dir>/hop.yml) - base layer
// 2. Project config found upward from startDir - overrides global
func LoadFrom(startDir string) (*Config, error) {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return LoadFromWithLogger(startDir, logger)
}

// LoadFromWithLogger is LoadFrom with a caller-supplied logger.
func LoadFromWithLogger(startDir string, logger *logrus.Logger) (*Config, error) {
	projectPath, err := FindConfigFile(startDir)
	if err != nil {
		return nil, err
	}

	var layers []*Config

	globalPath := globalConfigPath()
	if globalPath != "" && globalPath != projectPath {
		if _, err := os.Stat(globalPath); err == nil {
			logger.WithField("path", globalPath).Debug("Loading global configuration")
			global, err := readLayer(globalPath)
			if err != nil {
				logger.WithError(err).Warn("Failed to parse global configuration, continuing without it")
			} else {
				layers = append(layers, global)
			}
		}
	}

	logger.WithField("path", projectPath).Debug("Loading project configuration")
	project, err := readLayer(projectPath)
	if err != nil {
		return nil, err
	}
	layers = append(layers, project)

	final := &Config{}
	for _, layer := range layers {
		final = mergeConfigs(final, layer)
	}
	final.Path = projectPath

	if err := finish(final); err != nil {
		return nil, errors.WithOperation(err, "config.Load")
	}

	if logger.IsLevelEnabled(logrus.DebugLevel) {
		if data, err := yaml.Marshal(final); err == nil {
			logger.Debugf("Merged configuration:\n%s", string(data))
		}
	}
	return final, nil
}

// LoadFromBytes parses, validates and defaults configuration data.
// format is "yaml" or "toml".
func LoadFromBytes(data []byte, format string) (*Config, error) {
	doc, err := decodeDocument(data, format)
	if err != nil {
		return nil, err
	}

	validator, err := NewSchemaValidator()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create validator")
	}
	if err := validator.Validate(doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "schema validation failed")
	}

	cfg, err := decodeConfig(data, format)
	if err != nil {
		return nil, err
	}
	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindConfigFile searches startDir and its parents for a hop config file,
// then falls back to the global one.
func FindConfigFile(startDir string) (string, error) {
	dir := startDir
	for {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if global := globalConfigPath(); global != "" {
		if info, err := os.Stat(global); err == nil && !info.IsDir() {
			return global, nil
		}
	}

	return "", errors.ConfigNotFound(startDir).WithDetail("searchPath", startDir)
}

// finish applies defaults and semantic validation.
func finish(cfg *Config) error {
	cfg.SetDefaults()
	return cfg.Validate()
}

// readLayer parses one file without defaults so layers merge cleanly.
func readLayer(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}
	format := formatOf(path)

	doc, err := decodeDocument(data, format)
	if err != nil {
		return nil, withPath(err, path)
	}
	validator, err := NewSchemaValidator()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create validator")
	}
	if err := validator.Validate(doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "schema validation failed").
			WithDetail("path", path)
	}

	cfg, err := decodeConfig(data, format)
	if err != nil {
		return nil, withPath(err, path)
	}
	return cfg, nil
}

func withPath(err error, path string) error {
	if hopErr, ok := err.(*errors.HopError); ok {
		return hopErr.WithDetail("path", path)
	}
	return err
}

// decodeDocument parses data into a generic tree for schema validation.
func decodeDocument(data []byte, format string) (interface{}, error) {
	expanded := []byte(expandEnvVars(string(data)))

	var doc map[string]interface{}
	var err error
	if format == "toml" {
		err = toml.Unmarshal(expanded, &doc)
	} else {
		err = yaml.Unmarshal(expanded, &doc)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse "+strings.ToUpper(format)+" configuration")
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}
	return doc, nil
}

func decodeConfig(data []byte, format string) (*Config, error) {
	expanded := []byte(expandEnvVars(string(data)))

	var cfg Config
	var err error
	if format == "toml" {
		dec := toml.NewDecoder(bytes.NewReader(expanded))
		err = dec.Decode(&cfg)
	} else {
		err = yaml.Unmarshal(expanded, &cfg)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse "+strings.ToUpper(format)+" configuration")
	}
	return &cfg, nil
}

func formatOf(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return "toml"
	}
	return "yaml"
}

// expandEnvVars replaces ${VAR} with environment variable values
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		varName := envVarRegex.FindStringSubmatch(match)[1]

		// Handle default values: ${VAR:-default}
		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]
		defaultValue := ""
		if len(parts) > 1 {
			defaultValue = parts[1]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}

// globalConfigPath returns <config dir>/hop.yml.
func globalConfigPath() string {
	dir := paths.ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "hop.yml")
}

// Layout returns the file layout for this configuration, honouring data_dir.
func (c *Config) Layout() paths.Layout {
	if c.DataDir != "" {
		return paths.Layout{DataDir: expandHome(c.DataDir)}
	}
	return paths.Default()
}

// JSON renders the configuration for --json output.
func (c *Config) JSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// expandHome expands a leading ~ in file paths.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
