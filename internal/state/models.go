package state

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type SessionStatus string

const (
	SessionRunning     SessionStatus = "running"
	SessionCompleted   SessionStatus = "completed"
	SessionFailed      SessionStatus = "failed"
	SessionInterrupted SessionStatus = "interrupted"
)

// PairRecord is the persisted outcome of one (executable, dataset) pair.
type PairRecord struct {
	Executable    string `json:"executable"`
	Dataset       string `json:"dataset"`
	Decision      string `json:"decision"`
	Reason        string `json:"reason"`
	Failed        bool   `json:"failed"`
	ExitCode      *int   `json:"exit_code"`
	ElapsedMillis int64  `json:"elapsed_ms"`
	Digest        string `json:"digest,omitempty"`
	Error         string `json:"error,omitempty"`
}

func (p PairRecord) Validate() error {
	var errs []error
	if strings.TrimSpace(p.Executable) == "" {
		errs = append(errs, errors.New("executable is required"))
	}
	if strings.TrimSpace(p.Dataset) == "" {
		errs = append(errs, errors.New("dataset is required"))
	}
	switch p.Decision {
	case "SKIPPED", "EXECUTED":
	default:
		errs = append(errs, fmt.Errorf("invalid decision %q", p.Decision))
	}
	if p.ElapsedMillis < 0 {
		errs = append(errs, errors.New("elapsed_ms must be >= 0"))
	}
	return errors.Join(errs...)
}

// Session is the persisted metadata of one orchestration session.
//
// Pairs is always serialized as an array, in request order.
type Session struct {
	SessionID         string        `json:"session_id"`
	ManifestHash      string        `json:"manifest_hash"`
	StartTime         time.Time     `json:"start_time"`
	EndTime           *time.Time    `json:"end_time"`
	Mode              string        `json:"mode"`
	Status            SessionStatus `json:"status"`
	RegistryRecovered bool          `json:"registry_recovered"`
	Pairs             []PairRecord  `json:"pairs"`
}

func (s Session) Validate() error {
	var errs []error
	if strings.TrimSpace(s.SessionID) == "" {
		errs = append(errs, errors.New("session_id is required"))
	}
	if strings.TrimSpace(s.ManifestHash) == "" {
		errs = append(errs, errors.New("manifest_hash is required"))
	}
	if s.StartTime.IsZero() {
		errs = append(errs, errors.New("start_time is required"))
	}
	if s.EndTime != nil && s.EndTime.Before(s.StartTime) {
		errs = append(errs, errors.New("end_time must not precede start_time"))
	}
	switch s.Mode {
	case "incremental", "force", "prohibit":
	default:
		errs = append(errs, fmt.Errorf("invalid mode %q", s.Mode))
	}
	switch s.Status {
	case SessionRunning, SessionCompleted, SessionFailed, SessionInterrupted:
	default:
		errs = append(errs, fmt.Errorf("invalid status %q", s.Status))
	}
	if s.Pairs == nil {
		errs = append(errs, errors.New("pairs must be an array (not null)"))
	}
	for i, p := range s.Pairs {
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("pairs[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

type FailureClass string

const (
	FailureClassRegistry  FailureClass = "registry"
	FailureClassExecution FailureClass = "execution"
	FailureClassSystem    FailureClass = "system"
)

// Failure is the recorded reason a session ended abnormally.
type Failure struct {
	FailureClass FailureClass `json:"failure_class"`
	Executable   *string      `json:"executable,omitempty"`
	ErrorCode    string       `json:"error_code"`
	ErrorMessage string       `json:"error_message"`
}

func (f Failure) Validate() error {
	var errs []error
	switch f.FailureClass {
	case FailureClassRegistry, FailureClassExecution, FailureClassSystem:
	default:
		errs = append(errs, fmt.Errorf("invalid failure_class %q", f.FailureClass))
	}
	if f.Executable != nil && strings.TrimSpace(*f.Executable) == "" {
		errs = append(errs, errors.New("executable must not be empty when provided"))
	}
	if strings.TrimSpace(f.ErrorCode) == "" {
		errs = append(errs, errors.New("error_code is required"))
	}
	if strings.TrimSpace(f.ErrorMessage) == "" {
		errs = append(errs, errors.New("error_message is required"))
	}
	return errors.Join(errs...)
}
