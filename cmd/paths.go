package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/grovetools/hop/cli"
	"github.com/grovetools/hop/logging"
	"github.com/grovetools/hop/pkg/paths"
	"github.com/spf13/cobra"
)

// PathsOutput lists the directories and files hop uses.
type PathsOutput struct {
	ConfigDir      string `json:"config_dir"`
	DataDir        string `json:"data_dir"`
	StateDir       string `json:"state_dir"`
	RunDir         string `json:"run_dir"`
	KeysDir        string `json:"keys_dir"`
	KnownHostsFile string `json:"known_hosts_file"`
	LogDir         string `json:"log_dir"`
}

// NewPathsCmd creates the `paths` command.
func NewPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print the paths used by hop",
		Long: `Print the directories and files hop uses, in JSON.

HOP_HOME moves everything under one root; otherwise the XDG base
directories apply. data_dir in hop.yml overrides the data directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			layout := cfg.Layout()
			output := PathsOutput{
				ConfigDir:      paths.ConfigDir(),
				DataDir:        layout.DataDir,
				StateDir:       paths.StateDir(),
				RunDir:         layout.RunDir(),
				KeysDir:        layout.KeysDir(),
				KnownHostsFile: layout.KnownHostsFile(),
				LogDir:         paths.LogDir(),
			}

			var logCfg logging.Config
			if err := cfg.UnmarshalExtension("logging", &logCfg); err == nil {
				if file := logging.LogFilePath(logCfg); file != "" {
					output.LogDir = filepath.Dir(file)
				}
			}

			if err := printJSON(cmd, output); err != nil {
				return fmt.Errorf("failed to marshal paths to JSON: %w", err)
			}
			return nil
		},
	}
}
