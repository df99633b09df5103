package logging

import (
	"io"
	"os"
	"sync/atomic"
)

// consoleSink is the console writer shared by every logger. Loggers hold
// the sink rather than the writer behind it, so SetGlobalOutput reaches
// loggers that already exist.
type consoleSink struct {
	target atomic.Pointer[io.Writer]
}

func newConsoleSink(w io.Writer) *consoleSink {
	s := &consoleSink{}
	s.target.Store(&w)
	return s
}

func (s *consoleSink) Write(p []byte) (int, error) {
	return (*s.target.Load()).Write(p)
}

var console = newConsoleSink(os.Stderr)

// SetGlobalOutput redirects console output of every logger. Tests use it
// to capture log lines.
func SetGlobalOutput(w io.Writer) {
	console.target.Store(&w)
}

// GetGlobalOutput returns the shared console sink.
func GetGlobalOutput() io.Writer {
	return console
}
