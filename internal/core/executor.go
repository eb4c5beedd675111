package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"
)

const (
	// DatasetPlaceholder is replaced with the dataset path in run arguments.
	DatasetPlaceholder = "{dataset}"

	// DatasetNamePlaceholder is replaced with the dataset name in run arguments.
	DatasetNamePlaceholder = "{dataset_name}"
)

// RunOutcome is the result of one measurement invocation.
type RunOutcome struct {
	Stdout []byte
	Stderr []byte

	// ExitCode is the process exit code. 0 indicates success.
	ExitCode int

	// Elapsed is the wall-clock time of the invocation. It is reported, never
	// used for decisions.
	Elapsed time.Duration
}

// MeasurementRunner executes one executable against one dataset.
type MeasurementRunner interface {
	Run(ctx context.Context, exePath string, dataset Dataset) (*RunOutcome, error)
}

// ProcessRunner runs measurement executables as child processes.
//
// The executable writes its artifact relative to Dir, so Dir is normally the
// artifact data directory.
type ProcessRunner struct {
	// Dir is the working directory of the measurement.
	Dir string

	// Args is the argument template. Empty means a single "{dataset}" argument.
	Args []string

	// Env is appended to the inherited environment when non-empty.
	Env []string

	// Progress, when set, receives a live copy of the child's stdout.
	Progress io.Writer
}

// NewProcessRunner returns a ProcessRunner executing in dir.
func NewProcessRunner(dir string) *ProcessRunner {
	return &ProcessRunner{Dir: dir}
}

// Run invokes exePath with the dataset argument and waits for it to exit.
//
// A non-zero exit is reported through RunOutcome.ExitCode, not as an error.
// An error means the process could not be started or was cancelled; in the
// latter case the whole process group is killed before returning.
func (r *ProcessRunner) Run(ctx context.Context, exePath string, dataset Dataset) (*RunOutcome, error) {
	if exePath == "" {
		return nil, fmt.Errorf("executable path is empty")
	}
	tmpl := r.Args
	if len(tmpl) == 0 {
		tmpl = []string{DatasetPlaceholder}
	}
	args := expandArgs(tmpl, map[string]string{
		DatasetPlaceholder:     dataset.Path,
		DatasetNamePlaceholder: dataset.Name,
	})

	cmd := exec.Command(exePath, args...)
	cmd.Dir = r.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}
	setProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	if r.Progress != nil {
		cmd.Stdout = io.MultiWriter(&stdout, r.Progress)
	} else {
		cmd.Stdout = &stdout
	}
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start measurement: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var err error
	select {
	case <-ctx.Done():
		killProcessGroup(cmd)
		<-done
		return nil, fmt.Errorf("measurement cancelled: %w", ctx.Err())
	case err = <-done:
	}
	elapsed := time.Since(start)

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to execute measurement: %w", err)
		}
		exitCode = exitErr.ExitCode()
	}

	return &RunOutcome{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode,
		Elapsed:  elapsed,
	}, nil
}
