package predict

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// Result is what a finished process left behind.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Process is a started external process.
type Process interface {
	// Wait blocks until the process exits and its output streams are drained.
	// A non-zero exit is reported through Result.ExitCode, not as an error.
	Wait() (Result, error)
	// Kill terminates the process without giving it a chance to clean up.
	Kill() error
}

// Runner starts external processes. Arguments are passed as separate argv
// entries; no shell is involved.
type Runner interface {
	Start(ctx context.Context, name string, args []string) (Process, error)
}

// DefaultWaitDelay bounds how long Wait keeps reading output after the
// process is gone, for grandchildren that inherited stdout.
const DefaultWaitDelay = 500 * time.Millisecond

// ExecRunner runs processes on the host with os/exec.
type ExecRunner struct {
	Dir       string   // working directory, empty means current
	Env       []string // nil inherits the server environment
	WaitDelay time.Duration
}

func (r ExecRunner) Start(_ context.Context, name string, args []string) (Process, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = r.Dir
	cmd.Env = r.Env
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}

	p := &execProcess{cmd: cmd}
	cmd.Stdout = &p.stdout
	cmd.Stderr = &p.stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return p, nil
}

type execProcess struct {
	cmd            *exec.Cmd
	stdout, stderr bytes.Buffer
}

func (p *execProcess) Wait() (Result, error) {
	err := p.cmd.Wait()
	res := Result{Stdout: p.stdout.Bytes(), Stderr: p.stderr.Bytes()}
	if errors.Is(err, exec.ErrWaitDelay) {
		return res, nil
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, err
	}
	return res, nil
}

func (p *execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}
