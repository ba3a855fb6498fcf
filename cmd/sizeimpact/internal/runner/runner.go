// Package runner executes the project's install and build commands.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/albertocavalcante/sizeimpact/internal/log"
)

// ErrEmptyCommand is returned when there is no command to run.
var ErrEmptyCommand = errors.New("empty command")

// DefaultShell interprets commands.
const DefaultShell = "sh"

// Runner runs shell commands inside a project directory.
type Runner struct {
	dir    string
	shell  string
	stdout io.Writer
	stderr io.Writer
}

// Option configures a Runner.
type Option func(*Runner)

// WithShell sets the shell used to interpret commands.
func WithShell(shell string) Option {
	return func(r *Runner) {
		r.shell = shell
	}
}

// WithOutput redirects command output.
// Used primarily for testing.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(r *Runner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// New creates a Runner that executes commands in dir.
func New(dir string, opts ...Option) *Runner {
	r := &Runner{
		dir:    dir,
		shell:  DefaultShell,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes command and returns after it completes.
// A non-zero exit status is reported as an error.
func (r *Runner) Run(ctx context.Context, command string) error {
	cmd, err := r.command(ctx, command)
	if err != nil {
		return err
	}
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("command %q failed: %w", command, err)
	}
	return nil
}

// RunWithOutput executes command and captures its combined output.
func (r *Runner) RunWithOutput(ctx context.Context, command string) ([]byte, error) {
	cmd, err := r.command(ctx, command)
	if err != nil {
		return nil, err
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("command %q failed: %w", command, err)
	}
	return out, nil
}

func (r *Runner) command(ctx context.Context, command string) (*exec.Cmd, error) {
	if strings.TrimSpace(command) == "" {
		return nil, ErrEmptyCommand
	}
	log.Component("runner").Info("running command", "command", command, "dir", r.dir)

	cmd := exec.CommandContext(ctx, r.shell, "-c", command)
	cmd.Dir = r.dir
	return cmd, nil
}
