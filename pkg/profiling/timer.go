// Package profiling records nested timing spans for one command run and
// wires CPU and heap profiles into cobra.
package profiling

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// Stopper ends a span.
type Stopper interface {
	Stop()
}

type span struct {
	name     string
	start    time.Time
	duration time.Duration
	children []*span
	recorder *Recorder
}

func (s *span) Stop() {
	s.recorder.end(s, time.Since(s.start))
}

// Recorder collects spans. Spans nest by start order: a span started while
// another is open becomes its child.
type Recorder struct {
	mu    sync.Mutex
	root  *span
	stack []*span
}

// NewRecorder starts a recorder whose root span begins now.
func NewRecorder() *Recorder {
	r := &Recorder{}
	r.root = &span{name: "total", start: time.Now(), recorder: r}
	r.stack = []*span{r.root}
	return r
}

// Start opens a span named name.
func (r *Recorder) Start(name string) Stopper {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &span{name: name, start: time.Now(), recorder: r}
	parent := r.stack[len(r.stack)-1]
	parent.children = append(parent.children, s)
	r.stack = append(r.stack, s)
	return s
}

func (r *Recorder) end(s *span, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s.duration = d
	for i := len(r.stack) - 1; i > 0; i-- {
		if r.stack[i] == s {
			r.stack = r.stack[:i]
			return
		}
	}
}

// Summarize writes the span tree with each span's share of the total.
func (r *Recorder) Summarize(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.root.duration == 0 {
		r.root.duration = time.Since(r.root.start)
	}
	fmt.Fprintln(w, "--- timing ---")
	fmt.Fprintf(w, "total %v\n", r.root.duration.Round(100*time.Microsecond))
	for _, child := range sorted(r.root.children) {
		printSpan(w, child, 0, r.root.duration)
	}
}

func printSpan(w io.Writer, s *span, depth int, total time.Duration) {
	pct := 0.0
	if total > 0 {
		pct = float64(s.duration) / float64(total) * 100
	}
	fmt.Fprintf(w, "%s- %s (%v, %.1f%%)\n", strings.Repeat("  ", depth), s.name, s.duration.Round(100*time.Microsecond), pct)
	for _, child := range sorted(s.children) {
		printSpan(w, child, depth+1, total)
	}
}

func sorted(spans []*span) []*span {
	out := append([]*span(nil), spans...)
	sort.Slice(out, func(i, j int) bool { return out[i].start.Before(out[j].start) })
	return out
}

type recorderKey struct{}

// NewContext returns ctx carrying r.
func NewContext(ctx context.Context, r *Recorder) context.Context {
	return context.WithValue(ctx, recorderKey{}, r)
}

// FromContext returns the recorder in ctx, or nil.
func FromContext(ctx context.Context) *Recorder {
	if ctx == nil {
		return nil
	}
	r, _ := ctx.Value(recorderKey{}).(*Recorder)
	return r
}

// Start opens a span on the recorder in ctx. Without one it does nothing.
func Start(ctx context.Context, name string) Stopper {
	if r := FromContext(ctx); r != nil {
		return r.Start(name)
	}
	return noopStopper{}
}

type noopStopper struct{}

func (noopStopper) Stop() {}
