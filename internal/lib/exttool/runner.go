package exttool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/leejw51crypto/crypto-chain-bot/internal/lib/misc"
)

var ErrExternalToolFailure = errors.New("external tool failed")

// Invocation describes a single run of an external binary.
type Invocation struct {
	Name  string
	Args  []string
	Stdin []byte
	// Env holds KEY=VALUE pairs added on top of the inherited environment.
	Env []string
	// Mounts are host paths the tool has to be able to see - only relevant when the tool runs in a container.
	Mounts []string
}

func (inv Invocation) String() string {
	return strings.Join(append([]string{inv.Name}, inv.Args...), " ")
}

// Runner runs an external tool to completion and returns its standard output.  A tool exiting non-zero
// results in an error matching ErrExternalToolFailure.
type Runner interface {
	Run(ctx context.Context, inv Invocation) ([]byte, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, inv Invocation) ([]byte, error)

func (f RunnerFunc) Run(ctx context.Context, inv Invocation) ([]byte, error) {
	return f(ctx, inv)
}

// ToolError is returned when a tool couldn't be started or exited non-zero.
type ToolError struct {
	Tool     string
	ExitCode int
	Output   string
	Err      error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
	if e.Err != nil && e.ExitCode < 0 {
		msg = fmt.Sprintf("%s failed to run: %v", e.Tool, e.Err)
	}
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *ToolError) Is(target error) bool {
	return target == ErrExternalToolFailure
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// ExecRunner runs tools as local child processes.
type ExecRunner struct {
	logger *slog.Logger
}

func NewExecRunner(logger *slog.Logger) *ExecRunner {
	return &ExecRunner{logger: logger}
}

func (r *ExecRunner) Run(ctx context.Context, inv Invocation) ([]byte, error) {
	cmd := exec.CommandContext(ctx, inv.Name, inv.Args...)
	cmd.Env = append(os.Environ(), inv.Env...)
	if inv.Stdin != nil {
		cmd.Stdin = bytes.NewReader(inv.Stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	misc.Debugf(r.logger, "executing: %s", inv)
	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return stdout.Bytes(), &ToolError{
			Tool:     filepath.Base(inv.Name),
			ExitCode: exitCode,
			Output:   strings.TrimSpace(stdout.String() + stderr.String()),
			Err:      err,
		}
	}
	return stdout.Bytes(), nil
}

// DockerRunner rewrites an invocation into `docker run` of Image, bind mounting every requested path at
// the same location inside the container so file arguments stay valid.
type DockerRunner struct {
	Next  Runner
	Image string
	// User is passed as --user (uid:gid) so files created in mounts stay owned by the caller.
	User string
}

func (d *DockerRunner) Run(ctx context.Context, inv Invocation) ([]byte, error) {
	return d.Next.Run(ctx, d.Wrap(inv))
}

// Wrap returns the docker invocation that runs inv.
func (d *DockerRunner) Wrap(inv Invocation) Invocation {
	args := []string{"run", "-i", "--rm"}
	for _, mount := range inv.Mounts {
		args = append(args, "-v", mount+":"+mount)
	}
	for _, env := range inv.Env {
		args = append(args, "--env", env)
	}
	if d.User != "" {
		args = append(args, "--user", d.User)
	}
	args = append(args, d.Image, filepath.Base(inv.Name))
	args = append(args, inv.Args...)
	return Invocation{Name: "docker", Args: args, Stdin: inv.Stdin}
}
