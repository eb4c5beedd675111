package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ExecutablePlaceholder is replaced with the executable name in build commands.
const ExecutablePlaceholder = "{exe}"

// BuildOutcome is the result of building one executable.
type BuildOutcome struct {
	// Success is true iff the build command exited with code 0.
	Success bool

	// ExitCode is the build command's exit code, -1 if it never ran.
	ExitCode int

	// Output is the combined stdout/stderr diagnostics.
	Output []byte

	Duration time.Duration

	// Err is a *BuildFailureError when Success is false.
	Err error
}

// Builder compiles exactly one named executable.
type Builder interface {
	Build(ctx context.Context, exe string) BuildOutcome
}

// CommandBuilder runs an external build command synchronously.
type CommandBuilder struct {
	// Command is the argv template; every "{exe}" is replaced with the
	// executable name. For example: cargo build --release --bin {exe}.
	Command []string

	// Dir is the working directory of the build.
	Dir string

	// Env is appended to the inherited environment when non-empty.
	Env []string
}

// NewCommandBuilder returns a CommandBuilder running command in dir.
func NewCommandBuilder(command []string, dir string) *CommandBuilder {
	return &CommandBuilder{Command: command, Dir: dir}
}

// Build runs the build command for exe and waits for it to finish.
func (b *CommandBuilder) Build(ctx context.Context, exe string) BuildOutcome {
	if len(b.Command) == 0 {
		return BuildOutcome{ExitCode: -1, Err: &BuildFailureError{Executable: exe, ExitCode: -1, Cause: errors.New("build command is empty")}}
	}
	argv := expandArgs(b.Command, map[string]string{ExecutablePlaceholder: exe})

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = b.Dir
	if len(b.Env) > 0 {
		cmd.Env = append(cmd.Environ(), b.Env...)
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err := cmd.Run()
	outcome := BuildOutcome{Output: out.Bytes(), Duration: time.Since(start)}
	if err == nil {
		outcome.Success = true
		return outcome
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		outcome.ExitCode = exitErr.ExitCode()
		outcome.Err = &BuildFailureError{Executable: exe, ExitCode: outcome.ExitCode}
		return outcome
	}
	outcome.ExitCode = -1
	outcome.Err = &BuildFailureError{Executable: exe, ExitCode: -1, Cause: fmt.Errorf("starting build: %w", err)}
	return outcome
}

// expandArgs substitutes placeholders in every argument of tmpl.
func expandArgs(tmpl []string, values map[string]string) []string {
	out := make([]string, len(tmpl))
	for i, arg := range tmpl {
		for k, v := range values {
			arg = strings.ReplaceAll(arg, k, v)
		}
		out[i] = arg
	}
	return out
}
