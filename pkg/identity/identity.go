// Package identity holds private key material in locked memory and turns
// it into short-lived key files for ssh -i.
package identity

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"
	"github.com/grovetools/hop/errors"
	"github.com/grovetools/hop/logging"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
)

const tokenLength = 8

// Material is raw private key bytes kept in a memguard buffer. It is
// single use: materializing it destroys the buffer.
type Material struct {
	buf *memguard.LockedBuffer
}

// FromBytes moves key into locked memory and wipes the caller's slice.
func FromBytes(key []byte) *Material {
	return &Material{buf: memguard.NewBufferFromBytes(key)}
}

// FromReader reads a key from r, e.g. stdin.
func FromReader(r io.Reader) (*Material, error) {
	buf, err := memguard.NewBufferFromEntireReader(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidIdentity, "failed to read key material")
	}
	return &Material{buf: buf}, nil
}

// Validate checks that the material parses as an SSH private key.
// Passphrase-protected keys are accepted.
func (m *Material) Validate() error {
	if m == nil || m.Destroyed() || m.buf.Size() == 0 {
		return errors.New(errors.ErrCodeInvalidIdentity, "key material is empty")
	}
	if _, err := ssh.ParseRawPrivateKey(m.buf.Bytes()); err != nil {
		var missing *ssh.PassphraseMissingError
		if stderrors.As(err, &missing) {
			return nil
		}
		// The parser error never echoes key bytes.
		return errors.Wrap(err, errors.ErrCodeInvalidIdentity, "key material is not a private key")
	}
	return nil
}

// Destroy wipes the key bytes. It is safe to call more than once.
func (m *Material) Destroy() {
	if m != nil && m.buf != nil {
		m.buf.Destroy()
	}
}

// Destroyed reports whether the key bytes have been wiped.
func (m *Material) Destroyed() bool {
	return m == nil || m.buf == nil || !m.buf.IsAlive()
}

// Store writes key files below a single directory.
type Store struct {
	dir    string
	logger *logrus.Entry
}

// NewStore creates a Store rooted at dir (normally paths.Layout.KeysDir).
func NewStore(dir string) *Store {
	return &Store{dir: dir, logger: logging.NewLogger("identity")}
}

// Dir returns the directory key files are written to.
func (s *Store) Dir() string {
	return s.dir
}

// Materialize writes m to a new file readable only by the owner and
// returns its path. The file is created 0600, written, then set to 0400.
// m is destroyed whether or not the write succeeds.
func (s *Store) Materialize(m *Material) (string, error) {
	defer m.Destroy()

	if m.Destroyed() {
		return "", errors.New(errors.ErrCodeInvalidIdentity, "key material already used")
	}
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "failed to create key directory").
			WithDetail("path", s.dir)
	}

	var (
		path string
		file *os.File
		err  error
	)
	for attempt := 0; attempt < 5; attempt++ {
		path = filepath.Join(s.dir, newToken())
		file, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if err == nil || !os.IsExist(err) {
			break
		}
	}
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "failed to create key file").
			WithDetail("dir", s.dir)
	}

	if _, err := file.Write(m.buf.Bytes()); err != nil {
		_ = file.Close()
		_ = s.Remove(path)
		return "", errors.Wrap(err, errors.ErrCodeInternal, "failed to write key file")
	}
	if err := file.Close(); err != nil {
		_ = s.Remove(path)
		return "", errors.Wrap(err, errors.ErrCodeInternal, "failed to write key file")
	}
	if err := os.Chmod(path, 0400); err != nil {
		_ = s.Remove(path)
		return "", errors.Wrap(err, errors.ErrCodeInternal, "failed to restrict key file permissions")
	}

	s.logger.WithField("path", path).Debug("Materialized identity file")
	return path, nil
}

// Remove deletes a key file written by Materialize. A missing file is not
// an error.
func (s *Store) Remove(path string) error {
	if err := os.Chmod(path, 0600); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to reset key file permissions: %w", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove key file: %w", err)
	}
	s.logger.WithField("path", path).Debug("Removed identity file")
	return nil
}

func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:tokenLength]
}
