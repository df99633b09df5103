// Package lock keeps a named job from running twice on one machine using a
// PID file under the run directory.
package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"
	"github.com/grovetools/hop/errors"
	"github.com/grovetools/hop/logging"
	"github.com/grovetools/hop/pkg/cleanup"
	"github.com/grovetools/hop/pkg/paths"
	"github.com/grovetools/hop/pkg/process"
	"github.com/sirupsen/logrus"
)

const guardRetryDelay = 50 * time.Millisecond

// held lists the PID files open in this process. A file naming our own PID
// that is not listed was left by an earlier process that had the same PID.
var held = struct {
	sync.Mutex
	paths map[string]bool
}{paths: map[string]bool{}}

func setHeld(path string, on bool) {
	held.Lock()
	defer held.Unlock()
	if on {
		held.paths[path] = true
	} else {
		delete(held.paths, path)
	}
}

func isHeld(path string) bool {
	held.Lock()
	defer held.Unlock()
	return held.paths[path]
}

// State is the lock's position in its CLOSED -> OPEN -> CLOSED cycle.
type State int

const (
	Closed State = iota
	Open
)

func (s State) String() string {
	if s == Open {
		return "open"
	}
	return "closed"
}

// Options configures a Lock.
type Options struct {
	// Name is the job identity. Defaults to the base name of os.Args[0].
	Name string
	// Dir holds the PID files. Defaults to the data run directory.
	Dir string
	// Finder resolves a stored PID to a live process. Defaults to the
	// pgrep/ps backed registry.
	Finder process.Finder
	// Cleanup, when set, receives a hook that releases the lock on shutdown.
	Cleanup *cleanup.Registry
	// PollInterval bounds how long Wait goes without re-checking the file.
	PollInterval time.Duration
	// Owner reports whether a live process recorded in the PID file is
	// running this job. Defaults to a process name match against Name.
	Owner func(rec *process.Record) bool
}

// Lock is one job's PID file. It is safe for concurrent use.
type Lock struct {
	name   string
	path   string
	finder process.Finder
	hooks  *cleanup.Registry
	poll   time.Duration
	owner  func(rec *process.Record) bool
	logger *logrus.Entry

	mu    sync.Mutex
	state State
	hook  cleanup.Handle
}

// New creates a Lock in the Closed state. Nothing touches disk until Acquire.
func New(opts Options) *Lock {
	name := opts.Name
	if name == "" {
		name = filepath.Base(os.Args[0])
	}
	dir := opts.Dir
	if dir == "" {
		dir = paths.Default().RunDir()
	}
	finder := opts.Finder
	if finder == nil {
		finder = process.NewRegistry(nil)
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = time.Second
	}
	owner := opts.Owner
	if owner == nil {
		owner = func(rec *process.Record) bool { return rec.MatchesName(name) }
	}
	return &Lock{
		name:   name,
		path:   filepath.Join(dir, name+".pid"),
		finder: finder,
		hooks:  opts.Cleanup,
		poll:   poll,
		owner:  owner,
		logger: logging.NewLogger("lock").WithField("name", name),
	}
}

// Name returns the job identity.
func (l *Lock) Name() string { return l.name }

// Path returns the PID file path.
func (l *Lock) Path() string { return l.path }

// State returns the current state.
func (l *Lock) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Acquire records the calling process as the job's owner. It fails with
// ALREADY_RUNNING when the PID file names a live process running this job
// and with DOUBLE_ACQUIRE when this Lock is already open. Stale files are
// discarded.
func (l *Lock) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == Open {
		return errors.New(errors.ErrCodeDoubleAcquire, fmt.Sprintf("lock %s already acquired", l.name)).
			WithDetail("name", l.name)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create run directory")
	}

	guard := flock.New(l.path + ".lock")
	locked, err := guard.TryLockContext(ctx, guardRetryDelay)
	if err != nil || !locked {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to lock PID file").
			WithDetail("path", l.path)
	}
	defer func() { _ = guard.Unlock() }()

	if err := l.checkExisting(ctx); err != nil {
		return err
	}

	pid := os.Getpid()
	if err := os.WriteFile(l.path, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to write PID file").
			WithDetail("path", l.path)
	}

	l.state = Open
	setHeld(l.path, true)
	if l.hooks != nil {
		l.hook = l.hooks.Register("lock "+l.name, l.releaseOnShutdown)
	}
	l.logger.WithField("pid", pid).Debug("Lock acquired")
	return nil
}

// checkExisting inspects a PID file left by an earlier run and removes it
// unless its owner is still running.
func (l *Lock) checkExisting(ctx context.Context) error {
	content, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to read PID file")
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(content)))
	if err != nil || pid <= 0 || pid > process.MaxPID {
		l.discard(logrus.Fields{"content": strings.TrimSpace(string(content))})
		return nil
	}
	if pid == os.Getpid() {
		if isHeld(l.path) {
			return errors.AlreadyRunning(l.name, pid)
		}
		l.discard(logrus.Fields{"pid": pid, "reason": "recycled own PID"})
		return nil
	}

	rec, err := l.finder.Describe(ctx, pid)
	if err != nil {
		l.logger.WithError(err).WithField("pid", pid).Warn("Process lookup failed, treating lock owner as not running")
		l.discard(logrus.Fields{"pid": pid})
		return nil
	}
	if rec != nil && l.owner(rec) {
		return errors.AlreadyRunning(l.name, pid)
	}

	fields := logrus.Fields{"pid": pid}
	if rec != nil {
		fields["command"] = rec.Name
	}
	l.discard(fields)
	return nil
}

func (l *Lock) discard(fields logrus.Fields) {
	l.logger.WithFields(fields).Warn("stale lock discarded")
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		l.logger.WithError(err).Warn("Failed to remove stale PID file")
	}
}

// Release removes the PID file. It fails with RELEASE_WITHOUT_ACQUIRE when
// the lock is not open.
func (l *Lock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != Open {
		return errors.New(errors.ErrCodeReleaseWithoutAcquire, fmt.Sprintf("lock %s was not acquired", l.name)).
			WithDetail("name", l.name)
	}

	// Leave the file alone if another process has taken it over.
	if pid, err := readPID(l.path); err == nil && pid != os.Getpid() {
		l.logger.WithField("pid", pid).Warn("PID file owned by another process, leaving it")
	} else if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to remove PID file")
	}

	if l.hooks != nil {
		l.hooks.Unregister(l.hook)
	}
	setHeld(l.path, false)
	l.state = Closed
	l.logger.Debug("Lock released")
	return nil
}

func (l *Lock) releaseOnShutdown() error {
	err := l.Release()
	if errors.Is(err, errors.ErrCodeReleaseWithoutAcquire) {
		return nil
	}
	return err
}

// Status reports whether the job named by this lock is running and the PID
// stored in its file.
func (l *Lock) Status(ctx context.Context) (bool, int, error) {
	pid, err := readPID(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, 0, nil
		}
		if _, ok := err.(*strconv.NumError); ok {
			return false, 0, nil
		}
		return false, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to read PID file")
	}
	if pid <= 0 || pid > process.MaxPID {
		return false, pid, nil
	}
	if pid == os.Getpid() {
		return isHeld(l.path), pid, nil
	}

	rec, err := l.finder.Describe(ctx, pid)
	if err != nil {
		return process.IsProcessAlive(pid), pid, nil
	}
	return rec != nil && l.owner(rec), pid, nil
}

// Wait blocks until the job is no longer running: its PID file is removed
// or left behind by a dead process.
func (l *Lock) Wait(ctx context.Context) error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create run directory")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create watcher")
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to watch run directory")
	}

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		running, pid, err := l.Status(ctx)
		if err != nil {
			return err
		}
		if !running {
			return nil
		}
		l.logger.WithField("pid", pid).Debug("Waiting for lock owner to exit")

	wait:
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Clean(event.Name) == l.path && event.Op&(fsnotify.Remove|fsnotify.Rename|fsnotify.Write) != 0 {
					break wait
				}
			case err, ok := <-watcher.Errors:
				if ok {
					l.logger.WithError(err).Warn("Watcher error")
				}
			case <-ticker.C:
				break wait
			}
		}
	}
}

func readPID(path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(content)))
}
