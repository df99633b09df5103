// Package knownhosts records host keys scanned with ssh-keyscan in an
// append-only known_hosts file.
package knownhosts

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
	"github.com/grovetools/hop/command"
	"github.com/grovetools/hop/errors"
	"github.com/grovetools/hop/logging"
	"github.com/grovetools/hop/pkg/profiling"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Registrar appends scanned host keys to a known_hosts file.
type Registrar struct {
	file    string
	builder *command.SafeBuilder
	logger  *logrus.Entry
}

// NewRegistrar creates a Registrar writing to file. A nil exec uses the
// real ssh-keyscan.
func NewRegistrar(file string, exec command.Executor) *Registrar {
	if exec == nil {
		exec = &command.RealExecutor{}
	}
	return &Registrar{
		file:    file,
		builder: command.NewSafeBuilderWithExecutor(exec),
		logger:  logging.NewLogger("knownhosts"),
	}
}

// File returns the known_hosts path.
func (r *Registrar) File() string {
	return r.file
}

// Register scans host:port and appends keys not yet recorded for it. The
// file is never truncated.
func (r *Registrar) Register(ctx context.Context, host string, port int) error {
	if err := r.builder.Validate("hostname", host); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "refusing to scan host").
			WithDetail("host", host)
	}
	address := knownhosts.Normalize(net.JoinHostPort(host, strconv.Itoa(port)))
	defer profiling.Start(ctx, "knownhosts.register "+address).Stop()
	log := r.logger.WithField("address", address)

	scanned, err := r.scan(ctx, host, port)
	if err != nil {
		return errors.WithOperation(err, "knownhosts.Register")
	}
	if len(scanned) == 0 {
		return errors.New(errors.ErrCodeExecutionFailed, "ssh-keyscan returned no host keys").
			WithDetail("address", address)
	}

	if err := os.MkdirAll(filepath.Dir(r.file), 0700); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create known_hosts directory")
	}

	// ssh-keyscan ran unlocked; only the read-compare-append is serialized.
	fileLock := flock.New(r.file + ".lock")
	if err := fileLock.Lock(); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to lock known_hosts")
	}
	defer func() { _ = fileLock.Unlock() }()

	known, err := r.recorded(address)
	if err != nil {
		return err
	}

	var lines []string
	for _, key := range scanned {
		if known[string(key.Marshal())] {
			continue
		}
		known[string(key.Marshal())] = true
		lines = append(lines, knownhosts.Line([]string{address}, key))
	}
	if len(lines) == 0 {
		log.Debug("Host keys already known")
		return nil
	}

	f, err := os.OpenFile(r.file, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to open known_hosts")
	}
	defer f.Close()
	if _, err := f.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to append to known_hosts")
	}

	log.WithField("keys", len(lines)).Info("Registered host keys")
	return nil
}

// scan runs ssh-keyscan and returns the keys it printed.
func (r *Registrar) scan(ctx context.Context, host string, port int) ([]ssh.PublicKey, error) {
	cmd, err := r.builder.Build(ctx, "ssh-keyscan", "-p", strconv.Itoa(port), host)
	if err != nil {
		return nil, err
	}
	out, err := cmd.Run()
	if err != nil {
		return nil, err
	}

	var keys []ssh.PublicKey
	for _, line := range out.Lines() {
		_, key, ok := parseLine(line)
		if ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// recorded returns the keys already stored for address, keyed by their
// wire encoding. Hashed entries cannot be matched and are ignored.
func (r *Registrar) recorded(address string) (map[string]bool, error) {
	known := map[string]bool{}
	data, err := os.ReadFile(r.file)
	if os.IsNotExist(err) {
		return known, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to read known_hosts")
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		hosts, key, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		for _, h := range hosts {
			if knownhosts.Normalize(h) == address {
				known[string(key.Marshal())] = true
			}
		}
	}
	return known, scanner.Err()
}

// parseLine parses one known_hosts line, skipping comments, markers and
// anything unparsable.
func parseLine(line string) ([]string, ssh.PublicKey, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, nil, false
	}
	marker, hosts, key, _, _, err := ssh.ParseKnownHosts([]byte(line))
	if err != nil || marker != "" || key == nil {
		return nil, nil, false
	}
	return hosts, key, true
}

// NopRegistrar accepts every host without scanning.
type NopRegistrar struct{}

// Register does nothing.
func (NopRegistrar) Register(ctx context.Context, host string, port int) error {
	return nil
}
