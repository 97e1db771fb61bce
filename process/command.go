package process

import (
	"io"
	"time"
)

// Command describes one subprocess invocation.
type Command struct {
	// Binary is an executable path or a name resolved through PATH.
	Binary string
	Args   []string
	Dir    string
	// Env holds extra key=value pairs added to the parent environment.
	Env   []string
	Stdin io.Reader
	// GracePeriod separates SIGTERM from SIGKILL on cancellation. Default 5s.
	GracePeriod time.Duration
	// MaxOutput caps captured stdout in bytes. Zero means unlimited.
	MaxOutput int64
}

// Result is the outcome of a finished subprocess.
type Result struct {
	Stdout []byte
	Stderr []byte
	// ExitCode is -1 when the process was killed.
	ExitCode int
	Duration time.Duration
}
