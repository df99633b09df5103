package cmd

import (
	"fmt"

	"github.com/grovetools/hop/cli"
	"github.com/grovetools/hop/pkg/cleanup"
	"github.com/spf13/cobra"
)

// NewGitCmd creates the `git` command group.
func NewGitCmd(hooks *cleanup.Registry) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "git",
		Short: "Run git in a checkout on a host, or locally with -",
		Long: `Local checkouts are only touched once no other git process references
them; hop re-checks a configurable number of times and exits with 202 when
the checkout stays busy.`,
	}
	cmd.AddCommand(newGitStatusCmd(hooks), newGitPullCmd(hooks), newGitFetchCmd(hooks), newGitCloneCmd(hooks))
	return cmd
}

func newGitStatusCmd(hooks *cleanup.Registry) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "status <host|-> <path>",
		Short:   "Summarize the state of a checkout",
		Example: "hop git status web1 /srv/app\nhop git status - . --json",
		Args:    cobra.ExactArgs(2),
	}
	target := addTargetFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, hooks)
		if err != nil {
			return err
		}
		d, err := target.resolve(cmd, a, args[0])
		if err != nil {
			return err
		}
		defaultIdentity(d)

		client := a.gitClient()
		status, err := client.Status(cmd.Context(), d, args[1])
		if err != nil {
			return err
		}
		if cli.GetOptions(cmd).JSONOutput {
			return printJSON(cmd, status)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Repository: %s\n", client.RepoName(cmd.Context(), d, args[1]))
		fmt.Fprintf(out, "Branch:     %s\n", status.Branch)
		if status.HasUpstream {
			fmt.Fprintf(out, "Upstream:   %d ahead, %d behind\n", status.AheadCount, status.BehindCount)
		} else {
			fmt.Fprintln(out, "Upstream:   none")
		}
		if status.IsDirty {
			fmt.Fprintf(out, "Changes:    %d staged, %d modified, %d untracked\n",
				status.StagedCount, status.ModifiedCount, status.UntrackedCount)
		} else {
			fmt.Fprintln(out, "Changes:    clean")
		}
		return nil
	}
	return cmd
}

func newGitPullCmd(hooks *cleanup.Registry) *cobra.Command {
	var remoteName, branch string
	cmd := &cobra.Command{
		Use:     "pull <host|-> <path>",
		Short:   "Pull a branch into a checkout",
		Example: "hop git pull web1 /srv/app --branch release",
		Args:    cobra.ExactArgs(2),
	}
	target := addTargetFlags(cmd)
	cmd.Flags().StringVar(&remoteName, "remote", "origin", "Remote to pull from")
	cmd.Flags().StringVar(&branch, "branch", "main", "Branch to pull")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, hooks)
		if err != nil {
			return err
		}
		d, err := target.resolve(cmd, a, args[0])
		if err != nil {
			return err
		}
		defaultIdentity(d)
		return a.gitClient().Pull(cmd.Context(), d, args[1], remoteName, branch)
	}
	return cmd
}

func newGitFetchCmd(hooks *cleanup.Registry) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <host|-> <path>",
		Short: "Fetch and prune all remotes of a checkout",
		Args:  cobra.ExactArgs(2),
	}
	target := addTargetFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, hooks)
		if err != nil {
			return err
		}
		d, err := target.resolve(cmd, a, args[0])
		if err != nil {
			return err
		}
		defaultIdentity(d)
		return a.gitClient().Fetch(cmd.Context(), d, args[1])
	}
	return cmd
}

func newGitCloneCmd(hooks *cleanup.Registry) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "clone <host|-> <url> <path>",
		Short:   "Clone a repository on a host",
		Example: "hop git clone web1 git@github.com:acme/app.git /srv/app",
		Args:    cobra.ExactArgs(3),
	}
	target := addTargetFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, hooks)
		if err != nil {
			return err
		}
		d, err := target.resolve(cmd, a, args[0])
		if err != nil {
			return err
		}
		defaultIdentity(d)
		return a.gitClient().Clone(cmd.Context(), d, args[1], args[2])
	}
	return cmd
}
