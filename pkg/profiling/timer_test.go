package profiling

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderNesting(t *testing.T) {
	r := NewRecorder()
	outer := r.Start("remote.run")
	inner := r.Start("sshcmd.build")
	inner.Stop()
	sibling := r.Start("ssh")
	sibling.Stop()
	outer.Stop()
	r.Start("after").Stop()

	var buf bytes.Buffer
	r.Summarize(&buf)
	out := buf.String()

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "--- timing ---", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "total "))
	assert.True(t, strings.HasPrefix(lines[2], "- remote.run ("))
	assert.True(t, strings.HasPrefix(lines[3], "  - sshcmd.build ("))
	assert.True(t, strings.HasPrefix(lines[4], "  - ssh ("))
	assert.True(t, strings.HasPrefix(lines[5], "- after ("))
}

func TestStartWithoutRecorder(t *testing.T) {
	s := Start(context.Background(), "noop")
	s.Stop()
	assert.Nil(t, FromContext(context.Background()))
}

func TestStartFromContext(t *testing.T) {
	r := NewRecorder()
	ctx := NewContext(context.Background(), r)
	assert.Same(t, r, FromContext(ctx))

	Start(ctx, "config.load").Stop()

	var buf bytes.Buffer
	r.Summarize(&buf)
	assert.Contains(t, buf.String(), "- config.load (")
}

func TestCobraProfilerTiming(t *testing.T) {
	root := &cobra.Command{Use: "hop"}
	child := &cobra.Command{
		Use: "work",
		RunE: func(cmd *cobra.Command, args []string) error {
			Start(cmd.Context(), "work.step").Stop()
			return nil
		},
	}
	root.AddCommand(child)
	NewCobraProfiler().Attach(root)

	var stderr bytes.Buffer
	root.SetErr(&stderr)
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"work", "--timing"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	assert.Contains(t, stderr.String(), "--- timing ---")
	assert.Contains(t, stderr.String(), "- work.step (")
}
