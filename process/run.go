package process

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// ErrOutputTooLarge is returned when stdout exceeds Command.MaxOutput.
var ErrOutputTooLarge = stderrors.New("process: output too large")

// Run starts cmd and waits for it. Cancelling ctx sends SIGTERM to the
// process group, then SIGKILL after the grace period.
func Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Binary == "" {
		return nil, fmt.Errorf("process: binary is required")
	}
	grace := cmd.GracePeriod
	if grace == 0 {
		grace = 5 * time.Second
	}

	c := exec.CommandContext(ctx, cmd.Binary, cmd.Args...) //nolint:gosec // running configured programs is the purpose
	c.Dir = cmd.Dir
	c.Env = mergeEnv(cmd.Env)
	c.Stdin = cmd.Stdin

	var stderr bytes.Buffer
	stdout := &limitedBuffer{limit: cmd.MaxOutput}
	c.Stdout = stdout
	c.Stderr = &stderr

	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		return syscall.Kill(-c.Process.Pid, syscall.SIGTERM)
	}
	c.WaitDelay = grace

	start := time.Now()
	err := c.Run()
	res := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: c.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}
	switch {
	case err == nil && stdout.overflow:
		return res, fmt.Errorf("%w: more than %d bytes", ErrOutputTooLarge, cmd.MaxOutput)
	case err == nil:
		return res, nil
	case ctx.Err() != nil:
		return res, fmt.Errorf("process: killed by context: %w", ctx.Err())
	default:
		return res, fmt.Errorf("process: %s exited with %d: %w", cmd.Binary, res.ExitCode, err)
	}
}

func mergeEnv(extra []string) []string {
	if len(extra) == 0 {
		return nil
	}
	return append(os.Environ(), extra...)
}

// limitedBuffer keeps at most limit bytes and remembers whether more
// were written.
type limitedBuffer struct {
	bytes.Buffer
	limit    int64
	overflow bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if b.limit <= 0 {
		return b.Buffer.Write(p)
	}
	room := b.limit - int64(b.Len())
	if int64(len(p)) > room {
		b.overflow = true
		if room > 0 {
			b.Buffer.Write(p[:room])
		}
		return len(p), nil
	}
	return b.Buffer.Write(p)
}
