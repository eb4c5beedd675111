package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Store provides persistent storage for session history under:
//
//	<baseDir>/sessions/<session-id>/session.json
//	<baseDir>/sessions/<session-id>/failure.json
//
// All writes are atomic and durable (file sync + atomic rename + dir sync).
type Store struct {
	baseDir string
}

func NewStore(baseDir string) (*Store, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, errors.New("baseDir is required")
	}
	return &Store{baseDir: baseDir}, nil
}

func (s *Store) sessionsRootDir() string {
	return filepath.Join(s.baseDir, "sessions")
}

func (s *Store) sessionDir(id string) string {
	return filepath.Join(s.sessionsRootDir(), id)
}

func (s *Store) sessionPath(id string) string {
	return filepath.Join(s.sessionDir(id), "session.json")
}

func (s *Store) failurePath(id string) string {
	return filepath.Join(s.sessionDir(id), "failure.json")
}

// ListSessionIDs returns all session IDs currently present on disk, sorted
// lexicographically.
func (s *Store) ListSessionIDs() ([]string, error) {
	if s == nil {
		return nil, errors.New("nil Store")
	}
	entries, err := os.ReadDir(s.sessionsRootDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := strings.TrimSpace(e.Name())
		if name == "" {
			continue
		}
		ids = append(ids, name)
	}
	sort.Strings(ids)
	return ids, nil
}

// ListSessions loads every readable session, oldest first. Sessions that fail
// to load are returned in skipped rather than aborting the listing.
func (s *Store) ListSessions() (sessions []Session, skipped []string, err error) {
	ids, err := s.ListSessionIDs()
	if err != nil {
		return nil, nil, err
	}
	for _, id := range ids {
		sess, lerr := s.LoadSession(id)
		if lerr != nil {
			skipped = append(skipped, id)
			continue
		}
		sessions = append(sessions, sess)
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		if !sessions[i].StartTime.Equal(sessions[j].StartTime) {
			return sessions[i].StartTime.Before(sessions[j].StartTime)
		}
		return sessions[i].SessionID < sessions[j].SessionID
	})
	return sessions, skipped, nil
}

func (s *Store) SaveSession(sess Session) error {
	if sess.Pairs == nil {
		sess.Pairs = []PairRecord{}
	}
	if err := sess.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}
	if err := ensureDirDurable(s.sessionDir(sess.SessionID), 0o755); err != nil {
		return fmt.Errorf("ensure session dir: %w", err)
	}
	data, err := jsonMarshalStable(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := writeFileAtomicDurable(s.sessionPath(sess.SessionID), data, 0o644); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

func (s *Store) LoadSession(id string) (Session, error) {
	var sess Session
	if strings.TrimSpace(id) == "" {
		return Session{}, errors.New("sessionID is required")
	}
	if err := readJSONStrict(s.sessionPath(id), &sess); err != nil {
		return Session{}, err
	}
	if err := sess.Validate(); err != nil {
		return Session{}, fmt.Errorf("invalid session on disk: %w", err)
	}
	return sess, nil
}

func (s *Store) SaveFailure(id string, failure Failure) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("sessionID is required")
	}
	if err := failure.Validate(); err != nil {
		return fmt.Errorf("invalid failure: %w", err)
	}
	if err := ensureDirDurable(s.sessionDir(id), 0o755); err != nil {
		return fmt.Errorf("ensure session dir: %w", err)
	}
	data, err := jsonMarshalStable(failure)
	if err != nil {
		return fmt.Errorf("marshal failure: %w", err)
	}
	if err := writeFileAtomicDurable(s.failurePath(id), data, 0o644); err != nil {
		return fmt.Errorf("write failure: %w", err)
	}
	return nil
}

func (s *Store) LoadFailure(id string) (Failure, error) {
	var failure Failure
	if strings.TrimSpace(id) == "" {
		return Failure{}, errors.New("sessionID is required")
	}
	if err := readJSONStrict(s.failurePath(id), &failure); err != nil {
		return Failure{}, err
	}
	if err := failure.Validate(); err != nil {
		return Failure{}, fmt.Errorf("invalid failure on disk: %w", err)
	}
	return failure, nil
}

func jsonMarshalStable(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func readJSONStrict(path string, dst any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	// Ensure no trailing junk.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON: trailing content")
	}
	return nil
}

func ensureDirDurable(dir string, perm os.FileMode) error {
	if err := os.MkdirAll(dir, perm); err != nil {
		return err
	}
	// Best-effort durability: sync the directory and its parent.
	if err := fsyncDir(dir); err != nil {
		return err
	}
	parent := filepath.Dir(dir)
	if parent != dir {
		if err := fsyncDir(parent); err != nil {
			return err
		}
	}
	return nil
}

func writeFileAtomicDurable(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return fsyncDir(dir)
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
