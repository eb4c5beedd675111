package core

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

type detectorFixture struct {
	detector *Detector
	key      ArtifactKey
}

func newDetectorFixture(t *testing.T) detectorFixture {
	t.Helper()
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return detectorFixture{
		detector: &Detector{
			Resolver:  &ExecutableResolver{BinDir: filepath.Join(dir, "bin"), GOOS: runtime.GOOS},
			Registry:  NewRegistry(filepath.Join(dataDir, ".plotdata.json")),
			Artifacts: ArtifactLayout{DataDir: dataDir},
		},
		key: ArtifactKey{Executable: "solverA", Dataset: "graphX"},
	}
}

func (f detectorFixture) writeBinary(t *testing.T, content string, perm os.FileMode) {
	t.Helper()
	path := f.detector.Resolver.Path(f.key.Executable)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatalf("write binary: %v", err)
	}
	if err := os.Chmod(path, perm); err != nil {
		t.Fatalf("chmod: %v", err)
	}
}

func (f detectorFixture) writeArtifact(t *testing.T) {
	t.Helper()
	if err := os.WriteFile(f.detector.Artifacts.Path(f.key), []byte("a,b\n"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
}

func (f detectorFixture) recordCurrent(t *testing.T) {
	t.Helper()
	d, err := DigestOf(f.detector.Resolver.Path(f.key.Executable))
	if err != nil {
		t.Fatalf("DigestOf: %v", err)
	}
	if err := f.detector.Registry.Record(f.key.Executable, d); err != nil {
		t.Fatalf("Record: %v", err)
	}
}

func TestDetector_Reasons(t *testing.T) {
	f := newDetectorFixture(t)

	if got := f.detector.Check(f.key); got.Reason != StaleBinaryMissing || got.Fresh() {
		t.Fatalf("missing binary: %+v", got)
	}
	if got := f.detector.Check(f.key); !errors.Is(got.Err, ErrUnreadableExecutable) {
		t.Fatalf("missing binary should carry ErrUnreadableExecutable, got %v", got.Err)
	}

	f.writeBinary(t, "v1", 0o755)
	if got := f.detector.Check(f.key); got.Reason != StaleNoEntry {
		t.Fatalf("no entry: %+v", got)
	}

	f.recordCurrent(t)
	if got := f.detector.Check(f.key); got.Reason != StaleArtifactMissing || !got.UpToDate || got.ArtifactExists {
		t.Fatalf("artifact missing: %+v", got)
	}

	f.writeArtifact(t)
	got := f.detector.Check(f.key)
	if !got.Fresh() || got.Reason != StaleNone {
		t.Fatalf("expected fresh: %+v", got)
	}

	f.writeBinary(t, "v2", 0o755)
	if got := f.detector.Check(f.key); got.Reason != StaleDigestChanged || got.Fresh() {
		t.Fatalf("digest changed: %+v", got)
	}
}

func TestDetector_IsUpToDateIgnoresArtifacts(t *testing.T) {
	f := newDetectorFixture(t)
	f.writeBinary(t, "v1", 0o755)
	f.recordCurrent(t)

	if !f.detector.IsUpToDate(f.key.Executable) {
		t.Fatalf("expected up to date without an artifact")
	}
	if f.detector.ArtifactExists(f.key) {
		t.Fatalf("expected no artifact")
	}
}

func TestDetector_NonExecutableIsStale(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("execute bits are not meaningful on windows")
	}
	f := newDetectorFixture(t)
	f.writeBinary(t, "v1", 0o755)
	f.recordCurrent(t)
	f.writeArtifact(t)
	f.writeBinary(t, "v1", 0o644)

	got := f.detector.Check(f.key)
	if got.Fresh() || got.Reason != StaleBinaryMissing {
		t.Fatalf("non-executable file must be stale: %+v", got)
	}
}

func TestDetector_DirectoryArtifactDoesNotCount(t *testing.T) {
	f := newDetectorFixture(t)
	if err := os.MkdirAll(f.detector.Artifacts.Path(f.key), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if f.detector.ArtifactExists(f.key) {
		t.Fatalf("a directory is not an artifact")
	}
}
