package profiling

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/spf13/cobra"
)

// CobraProfiler adds --timing, --cpu-profile and --mem-profile to a root
// command.
type CobraProfiler struct {
	cpuProfilePath string
	memProfilePath string
	timing         bool

	cpuProfileFile *os.File
	recorder       *Recorder
}

// NewCobraProfiler creates a profiler with no flags bound yet.
func NewCobraProfiler() *CobraProfiler {
	return &CobraProfiler{}
}

// Attach registers the flags on root and installs the persistent hooks.
func (p *CobraProfiler) Attach(root *cobra.Command) {
	root.PersistentFlags().StringVar(&p.cpuProfilePath, "cpu-profile", "", "Write a CPU profile to file")
	root.PersistentFlags().StringVar(&p.memProfilePath, "mem-profile", "", "Write a heap profile to file")
	root.PersistentFlags().BoolVar(&p.timing, "timing", false, "Print a timing summary to stderr on exit")
	root.PersistentPreRunE = p.PreRun
	root.PersistentPostRun = p.PostRun
}

// PreRun starts the CPU profile and puts a Recorder on the command context
// when --timing is set.
func (p *CobraProfiler) PreRun(cmd *cobra.Command, args []string) error {
	if p.timing {
		p.recorder = NewRecorder()
		cmd.SetContext(NewContext(cmd.Context(), p.recorder))
	}

	if p.cpuProfilePath != "" {
		f, err := os.Create(p.cpuProfilePath)
		if err != nil {
			return fmt.Errorf("could not create CPU profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return fmt.Errorf("could not start CPU profile: %w", err)
		}
		p.cpuProfileFile = f
	}
	return nil
}

// PostRun writes the profiles and the timing summary.
func (p *CobraProfiler) PostRun(cmd *cobra.Command, args []string) {
	stderr := cmd.ErrOrStderr()

	if p.cpuProfileFile != nil {
		pprof.StopCPUProfile()
		p.cpuProfileFile.Close()
		p.cpuProfileFile = nil
		fmt.Fprintf(stderr, "CPU profile written to %s\n", p.cpuProfilePath)
	}

	if p.memProfilePath != "" {
		if err := writeHeapProfile(p.memProfilePath); err != nil {
			fmt.Fprintf(stderr, "could not write memory profile: %v\n", err)
		} else {
			fmt.Fprintf(stderr, "Memory profile written to %s\n", p.memProfilePath)
		}
	}

	if p.recorder != nil {
		p.recorder.Summarize(stderr)
	}
}

func writeHeapProfile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	runtime.GC()
	return pprof.WriteHeapProfile(f)
}
