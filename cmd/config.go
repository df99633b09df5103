package cmd

import (
	"fmt"

	"github.com/grovetools/hop/cli"
	"github.com/grovetools/hop/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCmd creates the `config` command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate hop.yml",
	}

	schema := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for hop.yml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	validate := &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a config file, or the one hop would load",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				cfg *config.Config
				err error
			)
			if len(args) == 1 {
				cfg, err = config.Load(args[0])
			} else if path := cli.GetOptions(cmd).ConfigFile; path != "" {
				cfg, err = config.Load(path)
			} else {
				cfg, err = config.LoadDefault()
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid (%d hosts)\n", cfg.Path, len(cfg.Hosts))
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration",
		Long: `Shows the configuration after merging the global hop.yml with the project
file and applying defaults. This is useful for debugging configuration issues.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				data, err := cfg.JSON()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			if cfg.Path != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# Source: %s\n", cfg.Path)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.AddCommand(schema, validate, show)
	return cmd
}
