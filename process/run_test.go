package process_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/mediaflow/process"
)

func TestRun(t *testing.T) {
	tests := []struct {
		name     string
		cmd      process.Command
		stdout   string
		stderr   string
		exitCode int
		wantErr  bool
	}{
		{
			name:   "args",
			cmd:    process.Command{Binary: "echo", Args: []string{"0.5", "1.5"}},
			stdout: "0.5 1.5",
		},
		{
			name:   "stdin",
			cmd:    process.Command{Binary: "cat", Stdin: strings.NewReader("a transcript")},
			stdout: "a transcript",
		},
		{
			name:   "env",
			cmd:    process.Command{Binary: "sh", Args: []string{"-c", "echo $MODEL"}, Env: []string{"MODEL=clip"}},
			stdout: "clip",
		},
		{
			name:   "stderr is kept apart",
			cmd:    process.Command{Binary: "sh", Args: []string{"-c", "echo warming up >&2; echo '[1]'"}},
			stdout: "[1]",
			stderr: "warming up",
		},
		{
			name:     "non-zero exit",
			cmd:      process.Command{Binary: "sh", Args: []string{"-c", "echo bad input >&2; exit 3"}},
			stderr:   "bad input",
			exitCode: 3,
			wantErr:  true,
		},
		{
			name:    "no binary",
			cmd:     process.Command{},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := process.Run(context.Background(), tt.cmd)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if res == nil {
				res = &process.Result{}
			}
			if got := strings.TrimSpace(string(res.Stdout)); got != tt.stdout {
				t.Fatalf("stdout = %q, want %q", got, tt.stdout)
			}
			if got := strings.TrimSpace(string(res.Stderr)); got != tt.stderr {
				t.Fatalf("stderr = %q, want %q", got, tt.stderr)
			}
			if res.ExitCode != tt.exitCode {
				t.Fatalf("exit code = %d, want %d", res.ExitCode, tt.exitCode)
			}
		})
	}
}

func TestRun_CancelKillsProcess(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := process.Run(ctx, process.Command{
		Binary:      "sleep",
		Args:        []string{"10"},
		GracePeriod: 500 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected an error after cancellation")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("process outlived its context by %v", elapsed)
	}
}

func TestRun_Duration(t *testing.T) {
	res, err := process.Run(context.Background(), process.Command{Binary: "sleep", Args: []string{"0.1"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Duration < 50*time.Millisecond {
		t.Fatalf("duration = %v, expected at least the sleep", res.Duration)
	}
}

func TestRun_MaxOutput(t *testing.T) {
	tests := []struct {
		name    string
		limit   int64
		want    string
		wantErr bool
	}{
		{name: "unlimited", limit: 0, want: "abcdef"},
		{name: "fits", limit: 6, want: "abcdef"},
		{name: "truncated", limit: 3, want: "abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := process.Run(context.Background(), process.Command{
				Binary:    "printf",
				Args:      []string{"abcdef"},
				MaxOutput: tt.limit,
			})
			if tt.wantErr != errors.Is(err, process.ErrOutputTooLarge) {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got := string(res.Stdout); got != tt.want {
				t.Fatalf("stdout = %q, want %q", got, tt.want)
			}
		})
	}
}
