package core

// StaleReason explains why a pair is not fresh. The zero value means fresh.
type StaleReason string

const (
	StaleNone            StaleReason = ""
	StaleBinaryMissing   StaleReason = "binary-missing"
	StaleNoEntry         StaleReason = "no-registry-entry"
	StaleDigestChanged   StaleReason = "digest-changed"
	StaleArtifactMissing StaleReason = "artifact-missing"
)

// Freshness is the combined result of the binary and artifact checks.
type Freshness struct {
	// UpToDate is true when the current binary digest matches the registry.
	UpToDate bool

	// ArtifactExists is true when the pair's artifact file is present.
	ArtifactExists bool

	// Reason is the first failing condition, binary checks before artifact.
	Reason StaleReason

	// Current is the binary's digest, zero when it could not be computed.
	Current Digest

	// Err holds the UnreadableExecutableError when the binary could not be hashed.
	Err error
}

// Fresh reports whether the pair can be skipped without a forced rerun.
func (f Freshness) Fresh() bool {
	return f.UpToDate && f.ArtifactExists
}

// Detector decides whether an executable and its artifacts are still valid.
type Detector struct {
	Resolver  *ExecutableResolver
	Registry  *Registry
	Artifacts ArtifactLayout
}

// IsUpToDate reports whether exe's current binary matches its registry entry.
// It fails closed: a missing, non-executable, or unreadable binary is stale.
func (d *Detector) IsUpToDate(exe string) bool {
	up, _, _, _ := d.binaryState(exe)
	return up
}

// ArtifactExists reports whether the artifact for key is on disk.
func (d *Detector) ArtifactExists(key ArtifactKey) bool {
	return d.Artifacts.Exists(key)
}

// Check evaluates both freshness conditions for key.
func (d *Detector) Check(key ArtifactKey) Freshness {
	up, reason, current, err := d.binaryState(key.Executable)
	f := Freshness{
		UpToDate:       up,
		ArtifactExists: d.ArtifactExists(key),
		Reason:         reason,
		Current:        current,
		Err:            err,
	}
	if f.Reason == StaleNone && !f.ArtifactExists {
		f.Reason = StaleArtifactMissing
	}
	return f
}

func (d *Detector) binaryState(exe string) (bool, StaleReason, Digest, error) {
	path := d.Resolver.Path(exe)
	if !isExecutable(path, d.Resolver.GOOS) {
		return false, StaleBinaryMissing, Digest{}, &UnreadableExecutableError{Path: path, Cause: errNotExecutable}
	}
	current, err := DigestOf(path)
	if err != nil {
		return false, StaleBinaryMissing, Digest{}, err
	}
	recorded, ok := d.Registry.Lookup(exe)
	if !ok {
		return false, StaleNoEntry, current, nil
	}
	if recorded != current {
		return false, StaleDigestChanged, current, nil
	}
	return true, StaleNone, current, nil
}
