package state

import (
	"errors"
	"fmt"
)

// RegistryFailureError represents a registry that could not be opened or
// persisted for reasons other than recoverable corruption.
type RegistryFailureError struct {
	Code    string
	Message string
	Cause   error
}

func (e *RegistryFailureError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("registry failure (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("registry failure: %s", e.Message)
}

func (e *RegistryFailureError) Unwrap() error { return e.Cause }

// ExecutionFailureError represents a pair whose build or measurement failed.
type ExecutionFailureError struct {
	Executable string
	Code       string
	Message    string
	Cause      error
}

func (e *ExecutionFailureError) Error() string {
	if e == nil {
		return ""
	}
	if e.Executable != "" && e.Code != "" {
		return fmt.Sprintf("execution failure executable=%s (%s): %s", e.Executable, e.Code, e.Message)
	}
	if e.Executable != "" {
		return fmt.Sprintf("execution failure executable=%s: %s", e.Executable, e.Message)
	}
	return fmt.Sprintf("execution failure: %s", e.Message)
}

func (e *ExecutionFailureError) Unwrap() error { return e.Cause }

// SystemFailureError represents interruption, panics and other process-level
// failures.
type SystemFailureError struct {
	Code    string
	Message string
	Cause   error
}

func (e *SystemFailureError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("system failure (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("system failure: %s", e.Message)
}

func (e *SystemFailureError) Unwrap() error { return e.Cause }

func failureFromError(err error) (Failure, error) {
	if err == nil {
		return Failure{}, errors.New("nil error")
	}

	var rf *RegistryFailureError
	if errors.As(err, &rf) && rf != nil {
		return Failure{
			FailureClass: FailureClassRegistry,
			ErrorCode:    nonEmptyOr(rf.Code, "RegistryFailure"),
			ErrorMessage: nonEmptyOr(rf.Message, rf.Error()),
		}, nil
	}

	var ef *ExecutionFailureError
	if errors.As(err, &ef) && ef != nil {
		var exe *string
		if ef.Executable != "" {
			n := ef.Executable
			exe = &n
		}
		return Failure{
			FailureClass: FailureClassExecution,
			Executable:   exe,
			ErrorCode:    nonEmptyOr(ef.Code, "ExecutionFailure"),
			ErrorMessage: nonEmptyOr(ef.Message, ef.Error()),
		}, nil
	}

	var sf *SystemFailureError
	if errors.As(err, &sf) && sf != nil {
		return Failure{
			FailureClass: FailureClassSystem,
			ErrorCode:    nonEmptyOr(sf.Code, "SystemFailure"),
			ErrorMessage: nonEmptyOr(sf.Message, sf.Error()),
		}, nil
	}

	// Unknown errors are classified as system failures.
	return Failure{
		FailureClass: FailureClassSystem,
		ErrorCode:    "UnknownError",
		ErrorMessage: err.Error(),
	}, nil
}

func nonEmptyOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
