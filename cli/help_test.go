package cli

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
)

func TestWrapText(t *testing.T) {
	assert.Equal(t, "short", wrapText("short", 20))
	assert.Equal(t, "one two\nthree four", wrapText("one two three four", 10))
	assert.Equal(t, "keep\nbreaks", wrapText("keep\nbreaks", 20))
}

func TestParseDescription(t *testing.T) {
	desc, examples := parseDescription("Run a command on a host.\n\nExamples:\n  hop exec db1 -- uptime")
	assert.Equal(t, "Run a command on a host.", desc)
	assert.Equal(t, "hop exec db1 -- uptime", examples)

	desc, examples = parseDescription("No examples here.")
	assert.Equal(t, "No examples here.", desc)
	assert.Empty(t, examples)
}

func TestParseChoices(t *testing.T) {
	desc, choices := parseChoices("Tool to render: ssh, scp, autossh, or ssh-copy-id")
	assert.Equal(t, "Tool to render:", desc)
	assert.Equal(t, []string{"ssh", "scp", "autossh", "ssh-copy-id"}, choices)

	desc, choices = parseChoices("Signal to send first")
	assert.Equal(t, "Signal to send first", desc)
	assert.Nil(t, choices)
}

func TestStyledHelp(t *testing.T) {
	root := NewStandardCommand("hop", "Build and run ssh command lines")
	lockCmd := &cobra.Command{Use: "lock", Short: "Single-instance locks"}
	run := &cobra.Command{
		Use:     "run <name> -- <command>",
		Short:   "Run a command while holding a lock",
		Example: "# nightly backup\nhop lock run backup -- ./backup.sh",
		Run:     func(cmd *cobra.Command, args []string) {},
	}
	run.Flags().Duration("timeout", 0, "Give up after this long")
	lockCmd.AddCommand(run)
	root.AddCommand(lockCmd)
	ApplyStyledHelpRecursive(root)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"lock", "run", "--help"})
	assert.NoError(t, root.Execute())

	help := out.String()
	assert.Contains(t, help, "HOP LOCK RUN")
	assert.Contains(t, help, "USAGE")
	assert.Contains(t, help, "FLAGS")
	assert.Contains(t, help, "--timeout")
	assert.Contains(t, help, "EXAMPLES")
	assert.Contains(t, help, "# nightly backup")

	out.Reset()
	root.SetArgs([]string{"--help"})
	assert.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "COMMANDS")
	assert.Contains(t, out.String(), "Single-instance locks")
}
