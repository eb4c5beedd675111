package core

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"benchweaver/internal/trace"
)

// Decision is the terminal state of one pair within a session.
type Decision string

const (
	DecisionPending  Decision = "PENDING"
	DecisionSkipped  Decision = "SKIPPED"
	DecisionExecuted Decision = "EXECUTED"
)

// Reason codes attached to decisions. Stale reasons from the Detector are
// also used verbatim as execution reasons.
const (
	ReasonBuildFailed = "build-failed"
	ReasonUpToDate    = "up-to-date"
	ReasonProhibited  = "prohibited"
	ReasonForced      = "forced"
)

// Pair is one requested measurement.
type Pair struct {
	Executable string
	Dataset    Dataset
}

// Key returns the artifact key of the pair.
func (p Pair) Key() ArtifactKey {
	return ArtifactKey{Executable: p.Executable, Dataset: p.Dataset.Name}
}

// PairResult is the outcome of processing one pair.
type PairResult struct {
	Pair     Pair
	Decision Decision
	Reason   string

	// Build is the build outcome. It is always populated.
	Build BuildOutcome

	// Freshness is populated only when the build succeeded.
	Freshness Freshness

	// Run is populated when the measurement process ran to completion.
	Run *RunOutcome

	// Recorded is the digest written to the registry after a successful run.
	Recorded Digest

	// Failed is true for build failures and for executed measurements that
	// did not complete successfully.
	Failed bool
	Err    error
}

// SessionResult aggregates the ordered results of a session.
type SessionResult struct {
	ID      string
	Mode    RunModeConfig
	Results []PairResult
}

// Count returns the number of results with decision d.
func (r SessionResult) Count(d Decision) int {
	n := 0
	for _, res := range r.Results {
		if res.Decision == d {
			n++
		}
	}
	return n
}

// Failures returns the number of failed pairs.
func (r SessionResult) Failures() int {
	n := 0
	for _, res := range r.Results {
		if res.Failed {
			n++
		}
	}
	return n
}

// SessionOptions configures OpenSession.
type SessionOptions struct {
	// ID identifies the session in logs and history.
	ID string

	Mode         RunModeConfig
	RegistryPath string
	Resolver     *ExecutableResolver
	Artifacts    ArtifactLayout
	Builder      Builder
	Runner       MeasurementRunner

	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// Trace receives one event per pair. Optional.
	Trace trace.Sink
}

// Session processes an ordered list of pairs against one registry.
//
// A Session owns its registry exclusively and must not be shared between
// goroutines.
type Session struct {
	id       string
	mode     RunModeConfig
	registry *Registry
	detector *Detector
	resolver *ExecutableResolver
	builder  Builder
	runner   MeasurementRunner
	logger   *zap.Logger
	sink     trace.Sink
	seq      int

	registryRecovered bool
}

// OpenSession validates the run mode and loads the registry.
//
// A conflicting run mode is returned before anything is read from disk. A
// corrupt registry is logged and replaced with an empty one, which makes every
// pair in the session stale.
func OpenSession(opts SessionOptions) (*Session, error) {
	if err := opts.Mode.Validate(); err != nil {
		return nil, err
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ID != "" {
		logger = logger.With(zap.String("session", opts.ID))
	}

	s := &Session{
		id:       opts.ID,
		mode:     opts.Mode,
		resolver: opts.Resolver,
		builder:  opts.Builder,
		runner:   opts.Runner,
		logger:   logger,
		sink:     opts.Trace,
	}

	reg, err := LoadRegistry(opts.RegistryPath)
	if err != nil {
		if !errors.Is(err, ErrCorruptRegistry) {
			return nil, err
		}
		logger.Warn("Registry is corrupt; continuing with an empty registry",
			zap.String("path", opts.RegistryPath), zap.Error(err))
		reg = NewRegistry(opts.RegistryPath)
		s.registryRecovered = true
	}
	s.registry = reg
	s.detector = &Detector{Resolver: opts.Resolver, Registry: reg, Artifacts: opts.Artifacts}
	return s, nil
}

func (o SessionOptions) validate() error {
	var errs []error
	if strings.TrimSpace(o.RegistryPath) == "" {
		errs = append(errs, errors.New("registry path is required"))
	}
	if o.Resolver == nil {
		errs = append(errs, errors.New("executable resolver is required"))
	}
	if o.Builder == nil {
		errs = append(errs, errors.New("builder is required"))
	}
	if o.Runner == nil {
		errs = append(errs, errors.New("measurement runner is required"))
	}
	return errors.Join(errs...)
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Registry exposes the session's registry for reporting.
func (s *Session) Registry() *Registry { return s.registry }

// Detector exposes the session's staleness detector.
func (s *Session) Detector() *Detector { return s.detector }

// RegistryRecovered reports whether a corrupt registry was replaced on open.
func (s *Session) RegistryRecovered() bool { return s.registryRecovered }

// RunAll processes pairs strictly in order. Per-pair failures are reported in
// the results. The error is either the context's error, when the session was
// cancelled before or during any pair, or a *PanicError. In both cases the
// results processed so far are returned as well.
func (s *Session) RunAll(ctx context.Context, pairs []Pair) (res SessionResult, err error) {
	out := SessionResult{ID: s.id, Mode: s.mode, Results: make([]PairResult, 0, len(pairs))}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Session panicked", zap.Int("processed", len(out.Results)), zap.Any("panic", r))
			res, err = out, &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	s.logger.Info("Session started",
		zap.String("mode", s.mode.String()),
		zap.Int("pairs", len(pairs)),
		zap.Int("registry_entries", s.registry.Len()))

	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			return out, s.interrupted(out, err)
		}
		out.Results = append(out.Results, s.Process(ctx, p))
	}
	// A cancellation that lands during the last build or run still ends the
	// session as interrupted.
	if err := ctx.Err(); err != nil {
		return out, s.interrupted(out, err)
	}

	s.logger.Info("Session finished",
		zap.Int("executed", out.Count(DecisionExecuted)),
		zap.Int("skipped", out.Count(DecisionSkipped)),
		zap.Int("failed", out.Failures()))
	return out, nil
}

func (s *Session) interrupted(out SessionResult, err error) error {
	s.logger.Warn("Session interrupted", zap.Int("processed", len(out.Results)), zap.Error(err))
	return err
}

// Process takes one pair from PENDING to SKIPPED or EXECUTED.
//
// The build always runs first. A failed build skips the pair without looking
// at freshness. Otherwise the pair is skipped when it is fresh and not forced,
// or when runs are prohibited; in every other case the measurement runs and,
// on success, the binary's digest is recorded.
func (s *Session) Process(ctx context.Context, p Pair) PairResult {
	res := PairResult{Pair: p, Decision: DecisionPending}
	log := s.logger.With(zap.String("executable", p.Executable), zap.String("dataset", p.Dataset.Name))
	key := p.Key()

	res.Build = s.builder.Build(ctx, p.Executable)
	if !res.Build.Success {
		res.Decision = DecisionSkipped
		res.Reason = ReasonBuildFailed
		res.Failed = true
		res.Err = res.Build.Err
		if res.Err == nil {
			res.Err = &BuildFailureError{Executable: p.Executable, ExitCode: res.Build.ExitCode}
		}
		log.Warn("Skipping measurement: build failed",
			zap.String("decision", string(res.Decision)),
			zap.String("reason", res.Reason),
			zap.Int("exit_code", res.Build.ExitCode),
			zap.String("diagnostics", tail(res.Build.Output, 2048)),
			zap.Error(res.Err))
		s.record(trace.EventPairFailed, key, res.Reason)
		return res
	}
	log.Debug("Build succeeded",
		zap.Duration("duration", res.Build.Duration),
		zap.String("diagnostics", tail(res.Build.Output, 2048)))

	res.Freshness = s.detector.Check(key)
	if res.Freshness.Err != nil {
		log.Debug("Executable not readable; treating as stale", zap.Error(res.Freshness.Err))
	}

	fresh := res.Freshness.Fresh()
	if (fresh && !s.mode.Force) || s.mode.Prohibit {
		res.Decision = DecisionSkipped
		res.Reason = ReasonUpToDate
		if s.mode.Prohibit {
			res.Reason = ReasonProhibited
		}
		log.Info("Skipping measurement",
			zap.String("decision", string(res.Decision)),
			zap.String("reason", res.Reason),
			zap.Bool("fresh", fresh))
		s.record(trace.EventPairSkipped, key, res.Reason)
		return res
	}

	res.Decision = DecisionExecuted
	res.Reason = string(res.Freshness.Reason)
	if fresh {
		res.Reason = ReasonForced
	}
	exePath := s.resolver.Path(p.Executable)
	log.Info("Running measurement", zap.String("reason", res.Reason), zap.String("path", exePath))

	out, err := s.runner.Run(ctx, exePath, p.Dataset)
	if err != nil {
		return s.fail(log, res, key, fmt.Errorf("running %s: %w", p.Executable, err))
	}
	res.Run = out
	if out.ExitCode != 0 {
		log.Error("Measurement stderr", zap.String("stderr", tail(out.Stderr, 2048)))
		return s.fail(log, res, key, fmt.Errorf("measurement %s exited with code %d", p.Executable, out.ExitCode))
	}

	digest, err := DigestOf(exePath)
	if err != nil {
		return s.fail(log, res, key, fmt.Errorf("fingerprinting %s after run: %w", p.Executable, err))
	}
	if err := s.registry.Record(p.Executable, digest); err != nil {
		return s.fail(log, res, key, &RegistryWriteError{Path: s.registry.Path(), Executable: p.Executable, Cause: err})
	}
	res.Recorded = digest

	if !s.detector.ArtifactExists(key) {
		log.Warn("Measurement finished without producing its artifact",
			zap.String("artifact", s.detector.Artifacts.Path(key)))
	}
	log.Info("Measurement finished",
		zap.String("decision", string(res.Decision)),
		zap.String("reason", res.Reason),
		zap.Duration("elapsed", out.Elapsed),
		zap.String("digest", digest.String()))
	s.record(trace.EventPairExecuted, key, res.Reason)
	return res
}

func (s *Session) fail(log *zap.Logger, res PairResult, key ArtifactKey, err error) PairResult {
	res.Failed = true
	res.Err = err
	fields := []zap.Field{
		zap.String("decision", string(res.Decision)),
		zap.String("reason", res.Reason),
		zap.Error(err),
	}
	if res.Run != nil {
		fields = append(fields, zap.Int("exit_code", res.Run.ExitCode), zap.Duration("elapsed", res.Run.Elapsed))
	}
	log.Error("Measurement failed; registry left unchanged", fields...)
	s.record(trace.EventPairFailed, key, res.Reason)
	return res
}

func (s *Session) record(kind trace.EventKind, key ArtifactKey, reason string) {
	trace.SafeRecord(s.sink, trace.Event{
		Seq:        s.seq,
		Kind:       kind,
		Executable: key.Executable,
		Dataset:    key.Dataset,
		Reason:     reason,
	})
	s.seq++
}

// PairStatus is a read-only freshness report for one pair.
type PairStatus struct {
	Pair      Pair
	Freshness Freshness
	Artifact  string
}

// Status checks every pair without building or running anything.
func (s *Session) Status(pairs []Pair) []PairStatus {
	out := make([]PairStatus, 0, len(pairs))
	for _, p := range pairs {
		key := p.Key()
		out = append(out, PairStatus{
			Pair:      p,
			Freshness: s.detector.Check(key),
			Artifact:  s.detector.Artifacts.Path(key),
		})
	}
	return out
}

// tail returns at most the last n bytes of b as a string, starting on a rune
// boundary.
func tail(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	start := len(b) - n
	for start < len(b) && !utf8.RuneStart(b[start]) {
		start++
	}
	return "..." + string(b[start:])
}
