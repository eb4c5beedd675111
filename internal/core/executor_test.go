package core

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestCommandBuilder_SubstitutesExecutable(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	b := NewCommandBuilder([]string{"sh", "-c", `echo "building $0"; touch "$0.built"`, "{exe}"}, dir)

	out := b.Build(context.Background(), "solverA")
	if !out.Success || out.Err != nil || out.ExitCode != 0 {
		t.Fatalf("expected success, got %+v", out)
	}
	if !strings.Contains(string(out.Output), "building solverA") {
		t.Fatalf("expected captured output, got %q", out.Output)
	}
	if _, err := os.Stat(filepath.Join(dir, "solverA.built")); err != nil {
		t.Fatalf("build did not run in its directory: %v", err)
	}
}

func TestCommandBuilder_NonZeroExitIsBuildFailure(t *testing.T) {
	requireShell(t)
	b := NewCommandBuilder([]string{"sh", "-c", "echo 'error: mismatched types' >&2; exit 101"}, t.TempDir())

	out := b.Build(context.Background(), "solverA")
	if out.Success {
		t.Fatalf("expected failure")
	}
	if out.ExitCode != 101 {
		t.Fatalf("expected exit code 101, got %d", out.ExitCode)
	}
	if !errors.Is(out.Err, ErrBuildFailure) {
		t.Fatalf("expected ErrBuildFailure, got %v", out.Err)
	}
	if !strings.Contains(string(out.Output), "mismatched types") {
		t.Fatalf("expected stderr in diagnostics, got %q", out.Output)
	}
}

func TestCommandBuilder_MissingProgramIsBuildFailure(t *testing.T) {
	b := NewCommandBuilder([]string{filepath.Join(t.TempDir(), "no-such-cargo")}, "")
	out := b.Build(context.Background(), "solverA")
	if out.Success || out.ExitCode != -1 || !errors.Is(out.Err, ErrBuildFailure) {
		t.Fatalf("unexpected outcome %+v", out)
	}

	empty := NewCommandBuilder(nil, "")
	if out := empty.Build(context.Background(), "solverA"); out.Success || !errors.Is(out.Err, ErrBuildFailure) {
		t.Fatalf("empty command must fail, got %+v", out)
	}
}

func TestProcessRunner_PassesDatasetAndRunsInDir(t *testing.T) {
	requireShell(t)
	bin := t.TempDir()
	data := t.TempDir()
	exe := writeScript(t, bin, "solverA", `name=$(basename "$1")
echo "measuring $name"
printf 'n,t\n1,2\n' > "solverA-$name.txt"
`)
	var progress bytes.Buffer
	r := NewProcessRunner(data)
	r.Progress = &progress

	out, err := r.Run(context.Background(), exe, NewDataset("/inputs/graphX"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.ExitCode != 0 {
		t.Fatalf("unexpected exit code %d (stderr=%s)", out.ExitCode, out.Stderr)
	}
	if !strings.Contains(string(out.Stdout), "measuring graphX") || progress.String() != string(out.Stdout) {
		t.Fatalf("stdout=%q progress=%q", out.Stdout, progress.String())
	}
	if _, err := os.Stat(filepath.Join(data, "solverA-graphX.txt")); err != nil {
		t.Fatalf("artifact not written relative to Dir: %v", err)
	}
	if out.Elapsed <= 0 {
		t.Fatalf("expected positive elapsed time")
	}
}

func TestProcessRunner_ArgumentTemplate(t *testing.T) {
	requireShell(t)
	bin := t.TempDir()
	exe := writeScript(t, bin, "echoer", `echo "$@"`)
	r := NewProcessRunner(t.TempDir())
	r.Args = []string{"--input", DatasetPlaceholder, "--label", DatasetNamePlaceholder}

	out, err := r.Run(context.Background(), exe, Dataset{Name: "graphX", Path: "/d/graphX"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := strings.TrimSpace(string(out.Stdout)); got != "--input /d/graphX --label graphX" {
		t.Fatalf("unexpected args %q", got)
	}
}

func TestProcessRunner_NonZeroExitIsNotAnError(t *testing.T) {
	requireShell(t)
	exe := writeScript(t, t.TempDir(), "crash", "echo boom >&2; exit 7\n")
	out, err := NewProcessRunner(t.TempDir()).Run(context.Background(), exe, NewDataset("g"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.ExitCode != 7 || strings.TrimSpace(string(out.Stderr)) != "boom" {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestProcessRunner_StartFailureIsError(t *testing.T) {
	_, err := NewProcessRunner(t.TempDir()).Run(context.Background(), filepath.Join(t.TempDir(), "missing"), NewDataset("g"))
	if err == nil {
		t.Fatalf("expected start error")
	}
}

func TestProcessRunner_CancellationKillsProcessGroup(t *testing.T) {
	requireShell(t)
	exe := writeScript(t, t.TempDir(), "sleeper", "sleep 30 &\nwait\n")
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewProcessRunner(t.TempDir()).Run(ctx, exe, NewDataset("g"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if time.Since(start) > 10*time.Second {
		t.Fatalf("cancellation did not stop the measurement promptly")
	}
}
