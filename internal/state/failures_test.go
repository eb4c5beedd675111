package state

import (
	"errors"
	"fmt"
	"testing"
)

func TestFailureFromError_ClassifiesRegistryFailure(t *testing.T) {
	f, err := failureFromError(&RegistryFailureError{Code: "RegistryWrite", Message: "disk full"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.FailureClass != FailureClassRegistry || f.Executable != nil || f.ErrorCode != "RegistryWrite" {
		t.Fatalf("unexpected failure: %#v", f)
	}
}

func TestFailureFromError_ClassifiesExecutionFailure(t *testing.T) {
	f, err := failureFromError(&ExecutionFailureError{Executable: "solverA", Code: "PairFailed", Message: "exit 2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.FailureClass != FailureClassExecution || f.Executable == nil || *f.Executable != "solverA" {
		t.Fatalf("unexpected failure: %#v", f)
	}
}

func TestFailureFromError_ClassifiesSystemFailure(t *testing.T) {
	f, err := failureFromError(&SystemFailureError{Code: "Interrupted", Message: "signal"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.FailureClass != FailureClassSystem || f.Executable != nil || f.ErrorCode != "Interrupted" {
		t.Fatalf("unexpected failure: %#v", f)
	}
}

func TestFailureFromError_FindsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("session: %w", &ExecutionFailureError{Executable: "solverB", Message: "boom"})
	f, err := failureFromError(wrapped)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.FailureClass != FailureClassExecution || f.ErrorCode != "ExecutionFailure" {
		t.Fatalf("unexpected failure: %#v", f)
	}
}

func TestFailureFromError_UnknownIsSystem(t *testing.T) {
	f, err := failureFromError(errors.New("mystery"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.FailureClass != FailureClassSystem || f.ErrorCode != "UnknownError" || f.ErrorMessage != "mystery" {
		t.Fatalf("unexpected failure: %#v", f)
	}
}

func TestFailureFromError_RejectsNil(t *testing.T) {
	if _, err := failureFromError(nil); err == nil {
		t.Fatalf("expected error for nil input")
	}
}
