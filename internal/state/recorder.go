package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Recorder writes session.json and failure.json documents through a Store.
//
// Callers provide session metadata and, on abnormal termination, the
// triggering error; the recorder classifies the error and persists it.
type Recorder struct {
	Store *Store
}

// NewSessionID returns a random UUIDv4 session identifier.
func (r *Recorder) NewSessionID() string {
	return uuid.NewString()
}

// StartSession persists the initial record of a session.
func (r *Recorder) StartSession(s Session) error {
	if r == nil || r.Store == nil {
		return errors.New("Store is required")
	}
	if s.StartTime.IsZero() {
		s.StartTime = time.Now().UTC()
	}
	if s.Status == "" {
		s.Status = SessionRunning
	}
	if s.Pairs == nil {
		s.Pairs = []PairRecord{}
	}
	return r.Store.SaveSession(s)
}

// FinishSession stamps the end time and final status and persists the record.
func (r *Recorder) FinishSession(s Session, status SessionStatus, when time.Time) error {
	if r == nil || r.Store == nil {
		return errors.New("Store is required")
	}
	end := when.UTC()
	s.EndTime = &end
	s.Status = status
	if s.Pairs == nil {
		s.Pairs = []PairRecord{}
	}
	if err := r.Store.SaveSession(s); err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	return nil
}

// RecordFailure classifies err and writes failure.json for the session.
func (r *Recorder) RecordFailure(sessionID string, err error) error {
	if r == nil || r.Store == nil {
		return errors.New("Store is required")
	}
	f, ferr := failureFromError(err)
	if ferr != nil {
		return ferr
	}
	return r.Store.SaveFailure(sessionID, f)
}
