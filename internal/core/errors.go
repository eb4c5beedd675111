package core

import (
	"errors"
	"fmt"
)

var (
	ErrUnreadableExecutable = errors.New("unreadable executable")
	ErrBuildFailure         = errors.New("build failure")
	ErrCorruptRegistry      = errors.New("corrupt registry")
	ErrConflictingRunMode   = errors.New("conflicting run mode")
	ErrRegistryWrite        = errors.New("registry write failure")

	errNotExecutable = errors.New("missing or not an executable file")
)

// UnreadableExecutableError reports an executable that could not be hashed.
// It is never fatal: the executable is treated as not up to date.
type UnreadableExecutableError struct {
	Path  string
	Cause error
}

func (e *UnreadableExecutableError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s: %v", ErrUnreadableExecutable, e.Path, e.Cause)
}

func (e *UnreadableExecutableError) Is(target error) bool { return target == ErrUnreadableExecutable }

func (e *UnreadableExecutableError) Unwrap() error { return e.Cause }

// BuildFailureError reports a build that exited non-zero or could not start.
type BuildFailureError struct {
	Executable string
	ExitCode   int
	Cause      error
}

func (e *BuildFailureError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", ErrBuildFailure, e.Executable, e.Cause)
	}
	return fmt.Sprintf("%s: %s: exit code %d", ErrBuildFailure, e.Executable, e.ExitCode)
}

func (e *BuildFailureError) Is(target error) bool { return target == ErrBuildFailure }

func (e *BuildFailureError) Unwrap() error { return e.Cause }

// CorruptRegistryError reports a registry file that exists but cannot be decoded.
type CorruptRegistryError struct {
	Path  string
	Cause error
}

func (e *CorruptRegistryError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s: %v", ErrCorruptRegistry, e.Path, e.Cause)
}

func (e *CorruptRegistryError) Is(target error) bool { return target == ErrCorruptRegistry }

func (e *CorruptRegistryError) Unwrap() error { return e.Cause }

// ConflictingRunModeError is returned when force and prohibit are both set.
// It is fatal to the whole session.
type ConflictingRunModeError struct {
	Mode RunModeConfig
}

func (e *ConflictingRunModeError) Error() string {
	return fmt.Sprintf("%s: force and prohibit are mutually exclusive", ErrConflictingRunMode)
}

func (e *ConflictingRunModeError) Is(target error) bool { return target == ErrConflictingRunMode }

// RegistryWriteError reports a digest that could not be persisted after a
// successful run. The in-memory registry is left as it was before the write.
type RegistryWriteError struct {
	Path       string
	Executable string
	Cause      error
}

func (e *RegistryWriteError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s: recording %s: %v", ErrRegistryWrite, e.Path, e.Executable, e.Cause)
}

func (e *RegistryWriteError) Is(target error) bool { return target == ErrRegistryWrite }

func (e *RegistryWriteError) Unwrap() error { return e.Cause }

// PanicError carries a panic recovered while a session was processing pairs.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("panic: %v", e.Value)
}
