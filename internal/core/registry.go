package core

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

// RegistryVersion is the current registry file format version.
const RegistryVersion = 1

// registryFile is the on-disk form of the registry.
//
//	{"version": 1, "digests": {"<executable>": "<32 hex chars>"}}
type registryFile struct {
	Version int               `json:"version"`
	Digests map[string]string `json:"digests"`
}

// Registry maps executable names to the digest of the binary that last
// completed a measurement run successfully.
//
// A Registry is owned by exactly one session; it is not safe for concurrent
// use and provides no cross-process locking.
type Registry struct {
	path    string
	digests map[string]Digest
}

// NewRegistry returns an empty registry that persists to path.
func NewRegistry(path string) *Registry {
	return &Registry{path: path, digests: make(map[string]Digest)}
}

// LoadRegistry reads the registry file at path.
//
// An absent or empty file yields an empty registry. A file that exists but
// cannot be read or decoded yields a *CorruptRegistryError and a nil registry;
// callers decide whether to recover with NewRegistry.
func LoadRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("registry path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewRegistry(path), nil
		}
		return nil, &CorruptRegistryError{Path: path, Cause: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return NewRegistry(path), nil
	}

	var rf registryFile
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rf); err != nil {
		return nil, &CorruptRegistryError{Path: path, Cause: err}
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, &CorruptRegistryError{Path: path, Cause: errors.New("trailing content")}
	}
	if rf.Version != RegistryVersion {
		return nil, &CorruptRegistryError{Path: path, Cause: fmt.Errorf("unsupported version %d", rf.Version)}
	}

	reg := NewRegistry(path)
	for name, hexDigest := range rf.Digests {
		if strings.TrimSpace(name) == "" {
			return nil, &CorruptRegistryError{Path: path, Cause: errors.New("empty executable name")}
		}
		d, err := ParseDigest(hexDigest)
		if err != nil {
			return nil, &CorruptRegistryError{Path: path, Cause: err}
		}
		reg.digests[name] = d
	}
	return reg, nil
}

// Path returns the file the registry persists to.
func (r *Registry) Path() string { return r.path }

// Len returns the number of recorded executables.
func (r *Registry) Len() int { return len(r.digests) }

// Lookup returns the recorded digest for exe.
func (r *Registry) Lookup(exe string) (Digest, bool) {
	d, ok := r.digests[exe]
	return d, ok
}

// Names returns the recorded executable names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.digests))
	for name := range r.digests {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Record stores d for exe and persists the registry immediately, so a crash
// later in the session loses at most the in-flight update.
func (r *Registry) Record(exe string, d Digest) error {
	if strings.TrimSpace(exe) == "" {
		return errors.New("executable name is required")
	}
	prev, had := r.digests[exe]
	r.digests[exe] = d
	if err := r.Save(); err != nil {
		if had {
			r.digests[exe] = prev
		} else {
			delete(r.digests, exe)
		}
		return err
	}
	return nil
}

// Forget removes the entry for exe and persists the registry. Forgetting an
// unknown executable is a no-op that still rewrites the file.
func (r *Registry) Forget(exe string) (bool, error) {
	prev, had := r.digests[exe]
	delete(r.digests, exe)
	if err := r.Save(); err != nil {
		if had {
			r.digests[exe] = prev
		}
		return false, err
	}
	return had, nil
}

// Save serializes the full mapping and atomically replaces the registry file.
func (r *Registry) Save() error {
	rf := registryFile{Version: RegistryVersion, Digests: make(map[string]string, len(r.digests))}
	for name, d := range r.digests {
		rf.Digests[name] = d.String()
	}
	// encoding/json sorts map keys, so identical mappings give identical bytes.
	data, err := json.MarshalIndent(rf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling registry: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("creating registry directory: %w", err)
	}
	if err := writeFileAtomic(r.path, data, 0o644); err != nil {
		return fmt.Errorf("writing registry: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	tmp, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	_ = tmp.Sync() // best-effort durability
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
