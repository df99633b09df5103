package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/grovetools/hop/cli"
	"github.com/grovetools/hop/errors"
	"github.com/grovetools/hop/pkg/cleanup"
	"github.com/spf13/cobra"
)

// NewPsCmd creates the `ps` command group.
func NewPsCmd(hooks *cleanup.Registry) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ps",
		Short: "Find and describe local processes",
	}

	find := &cobra.Command{
		Use:   "find <pattern>",
		Short: "List PIDs whose full command line matches a pattern",
		Example: `hop ps find 'autossh.*db1'
hop ps find -- '-L 8080:localhost:80'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, hooks)
			if err != nil {
				return err
			}
			pids, err := a.finder.FindByName(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(cmd, pids)
			}
			for _, pid := range pids {
				fmt.Fprintln(cmd.OutOrStdout(), pid)
			}
			return nil
		},
	}

	describe := &cobra.Command{
		Use:   "describe <pid>",
		Short: "Show the name and command line of a process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := strconv.Atoi(args[0])
			if err != nil || pid <= 0 {
				return errors.New(errors.ErrCodeInvalidInput, "PID must be a positive integer").WithDetail("pid", args[0])
			}
			a, err := newApp(cmd, hooks)
			if err != nil {
				return err
			}
			rec, err := a.finder.Describe(cmd.Context(), pid)
			if err != nil {
				return err
			}
			if rec == nil {
				return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("no process with PID %d", pid)).WithDetail("pid", pid)
			}
			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(cmd, rec)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "PID:     %d\nName:    %s\nCommand: %s\n", rec.PID, rec.Name, rec.CommandLine)
			return nil
		},
	}

	cmd.AddCommand(find, describe)
	return cmd
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
