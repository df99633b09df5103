// Package cleanup runs registered shutdown hooks once, on normal exit or
// when the process is asked to stop.
package cleanup

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/grovetools/hop/logging"
	"github.com/sirupsen/logrus"
)

// Hook releases one resource.
type Hook func() error

// Handle identifies a registered hook.
type Handle uint64

type entry struct {
	handle Handle
	name   string
	fn     Hook
}

// Registry holds hooks until they run or are unregistered.
type Registry struct {
	mu     sync.Mutex
	next   Handle
	hooks  []entry
	logger *logrus.Entry
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{logger: logging.NewLogger("cleanup")}
}

// Register adds fn under name and returns a handle for Unregister.
func (r *Registry) Register(name string, fn Hook) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.hooks = append(r.hooks, entry{handle: r.next, name: name, fn: fn})
	return r.next
}

// Unregister removes a hook that has not run yet. It reports whether the
// hook was still registered.
func (r *Registry) Unregister(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.hooks {
		if e.handle == h {
			r.hooks = append(r.hooks[:i], r.hooks[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of pending hooks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hooks)
}

// Run executes pending hooks newest first. Each hook runs at most once;
// failures are logged and do not stop the remaining hooks.
func (r *Registry) Run() {
	r.mu.Lock()
	hooks := r.hooks
	r.hooks = nil
	r.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		e := hooks[i]
		if err := e.fn(); err != nil {
			r.logger.WithError(err).WithField("hook", e.name).Warn("Cleanup hook failed")
			continue
		}
		r.logger.WithField("hook", e.name).Debug("Cleanup hook ran")
	}
}

// HandleSignals runs the hooks when one of sigs arrives (SIGINT and SIGTERM
// when none are given) and then cancels the returned context. Call stop to
// detach the handler.
func (r *Registry) HandleSignals(ctx context.Context, sigs ...os.Signal) (context.Context, func()) {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)

	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case sig := <-ch:
			r.logger.WithField("signal", sig.String()).Info("Received stop signal")
			r.Run()
			cancel()
		case <-ctx.Done():
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			signal.Stop(ch)
			cancel()
			<-done
		})
	}
	return ctx, stop
}
