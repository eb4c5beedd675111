package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"benchweaver/internal/config"
	"benchweaver/internal/core"
	"benchweaver/internal/state"
	"benchweaver/internal/trace"
)

type runFlags struct {
	force     bool
	prohibit  bool
	only      []string
	tracePath string
	progress  bool
}

func (a *app) runCommand() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build every executable and measure the stale pairs",
		Long: `Builds each executable named in the manifest, then runs it against each of
its datasets unless the binary is unchanged since the last successful run and
the artifact is still present.

  --force     measure every pair that built successfully
  --prohibit  never measure; only build and report`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.executeRun(cmd.Context(), f)
		},
	}
	cmd.Flags().BoolVar(&f.force, "force", false, "measure every pair regardless of freshness")
	cmd.Flags().BoolVar(&f.prohibit, "prohibit", false, "never run measurements")
	cmd.Flags().StringSliceVar(&f.only, "only", nil, "restrict the session to these executables")
	cmd.Flags().StringVar(&f.tracePath, "trace", "", "write the canonical decision trace to this file")
	cmd.Flags().BoolVar(&f.progress, "progress", false, "stream measurement stdout to stderr")
	return cmd
}

// executeRun maps a run invocation onto one orchestration session.
//
// Responsibilities:
//   - Reject a conflicting run mode before anything is read or written.
//   - Record the session in the state store (best effort).
//   - Finalize the trace file even on interruption or panic.
//   - Translate session outcomes to semantic exit codes.
func (a *app) executeRun(ctx context.Context, f runFlags) (execErr error) {
	mode := core.RunModeConfig{Force: f.force, Prohibit: f.prohibit}
	if err := mode.Validate(); err != nil {
		a.logger.Error("Refusing to start session", zap.Error(err))
		return withExit(ExitConfigError, err)
	}

	m, err := a.loadManifest()
	if err != nil {
		return err
	}
	pairs, err := m.Pairs(f.only...)
	if err != nil {
		return withExit(ExitInvalidInvocation, err)
	}

	rec := a.sessionRecorder(m)
	sessionID := rec.NewSessionID()
	logger := a.logger.With(zap.String("session", sessionID))

	var sink *trace.Recorder
	if f.tracePath != "" {
		sink = trace.NewRecorder()
	}

	runner := core.NewProcessRunner(m.DataDir)
	runner.Args = m.Run.Args
	runner.Env = m.Run.Env
	if f.progress {
		runner.Progress = a.opts.Stderr
	}
	builder := core.NewCommandBuilder(m.Build.Command, m.Build.Dir)

	opts := core.SessionOptions{
		ID:           sessionID,
		Mode:         mode,
		RegistryPath: m.Registry,
		Resolver:     resolverFor(m),
		Artifacts:    layoutFor(m),
		Builder:      builder,
		Runner:       runner,
		Logger:       a.logger,
	}
	if sink != nil {
		opts.Trace = sink
	}
	sess, err := core.OpenSession(opts)
	if err != nil {
		return withExit(ExitConfigError, fmt.Errorf("open session: %w", err))
	}
	// Measurements run inside the data directory and write their artifacts there.
	if err := os.MkdirAll(m.DataDir, 0o755); err != nil {
		return withExit(ExitConfigError, fmt.Errorf("create data dir: %w", err))
	}

	record := state.Session{
		SessionID:         sessionID,
		ManifestHash:      m.Hash(),
		StartTime:         time.Now().UTC(),
		Mode:              mode.String(),
		Status:            state.SessionRunning,
		RegistryRecovered: sess.RegistryRecovered(),
		Pairs:             []state.PairRecord{},
	}
	if err := rec.StartSession(record); err != nil {
		logger.Warn("Session history disabled", zap.String("state_dir", m.StateDir), zap.Error(err))
		rec = nil
	}

	defer func() {
		if err := writeTrace(f.tracePath, sink, m.Hash()); err != nil {
			logger.Error("Failed to write trace", zap.String("path", f.tracePath), zap.Error(err))
			if execErr == nil {
				execErr = withExit(ExitInternalError, fmt.Errorf("write trace: %w", err))
			}
		}
	}()
	// RunAll recovers its own panics; this covers reporting after it returns.
	defer func() {
		if r := recover(); r != nil {
			execErr = withExit(ExitInternalError, fmt.Errorf("panic: %v", r))
			a.finishSession(logger, rec, record, state.SessionFailed,
				&state.SystemFailureError{Code: "Panic", Message: fmt.Sprintf("panic: %v", r)})
		}
	}()

	result, runErr := sess.RunAll(ctx, pairs)
	a.result.Session = &result
	record.Pairs = pairRecords(result.Results)

	var pe *core.PanicError
	switch {
	case errors.As(runErr, &pe):
		logger.Error("Session aborted by panic", zap.ByteString("stack", pe.Stack))
		a.finishSession(logger, rec, record, state.SessionFailed,
			&state.SystemFailureError{Code: "Panic", Message: pe.Error(), Cause: pe})
		printResults(a.opts.Stdout, result)
		return withExit(ExitInternalError, pe)
	case runErr != nil:
		a.finishSession(logger, rec, record, state.SessionInterrupted,
			&state.SystemFailureError{Code: "Interrupted", Message: runErr.Error(), Cause: runErr})
		printResults(a.opts.Stdout, result)
		return withExit(ExitInternalError, fmt.Errorf("session interrupted: %w", runErr))
	}

	if n := result.Failures(); n > 0 {
		a.finishSession(logger, rec, record, state.SessionFailed, pairFailure(result))
		printResults(a.opts.Stdout, result)
		return exitf(ExitPairFailure, "%d of %d pairs failed", n, len(result.Results))
	}
	a.finishSession(logger, rec, record, state.SessionCompleted, nil)
	printResults(a.opts.Stdout, result)
	return nil
}

// pairFailure classifies the first failed pair of a session for failure.json.
// A digest that could not be persisted takes precedence because it leaves the
// registry behind the artifacts on disk.
func pairFailure(res core.SessionResult) error {
	var first *core.PairResult
	for i := range res.Results {
		r := &res.Results[i]
		if !r.Failed {
			continue
		}
		if errors.Is(r.Err, core.ErrRegistryWrite) {
			return &state.RegistryFailureError{Code: "RegistryWriteFailed", Message: r.Err.Error(), Cause: r.Err}
		}
		if first == nil {
			first = r
		}
	}
	if first == nil {
		return nil
	}
	code := "MeasurementFailed"
	if first.Reason == core.ReasonBuildFailed {
		code = "BuildFailed"
	}
	msg := code
	if first.Err != nil {
		msg = first.Err.Error()
	}
	return &state.ExecutionFailureError{Executable: first.Pair.Executable, Code: code, Message: msg, Cause: first.Err}
}

func (a *app) sessionRecorder(m *config.Manifest) *state.Recorder {
	st, err := state.NewStore(m.StateDir)
	if err != nil {
		// NewStore only rejects an empty directory, which Load never yields.
		a.logger.Warn("Session history disabled", zap.Error(err))
	}
	return &state.Recorder{Store: st}
}

// finishSession persists the final session record. History is best effort:
// failures are logged, never returned.
func (a *app) finishSession(logger *zap.Logger, rec *state.Recorder, s state.Session, status state.SessionStatus, failure error) {
	if rec == nil {
		return
	}
	if err := rec.FinishSession(s, status, time.Now()); err != nil {
		logger.Warn("Failed to record session", zap.Error(err))
	}
	if failure != nil {
		if err := rec.RecordFailure(s.SessionID, failure); err != nil {
			logger.Warn("Failed to record session failure", zap.Error(err))
		}
	}
}

func pairRecords(results []core.PairResult) []state.PairRecord {
	out := make([]state.PairRecord, 0, len(results))
	for _, r := range results {
		pr := state.PairRecord{
			Executable: r.Pair.Executable,
			Dataset:    r.Pair.Dataset.Name,
			Decision:   string(r.Decision),
			Reason:     r.Reason,
			Failed:     r.Failed,
		}
		if r.Run != nil {
			code := r.Run.ExitCode
			pr.ExitCode = &code
			pr.ElapsedMillis = r.Run.Elapsed.Milliseconds()
		}
		if !r.Recorded.IsZero() {
			pr.Digest = r.Recorded.String()
		}
		if r.Err != nil {
			pr.Error = r.Err.Error()
		}
		out = append(out, pr)
	}
	return out
}

func printResults(w io.Writer, res core.SessionResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, r := range res.Results {
		status := string(r.Decision)
		if r.Failed {
			status += " (failed)"
		}
		elapsed := "-"
		if r.Run != nil {
			elapsed = r.Run.Elapsed.Round(time.Millisecond).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Pair.Executable, r.Pair.Dataset.Name, status, r.Reason, elapsed)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "executed=%d skipped=%d failed=%d\n",
		res.Count(core.DecisionExecuted), res.Count(core.DecisionSkipped), res.Failures())
}

// writeTrace writes the canonical trace of the recorded decisions. A nil
// recorder means tracing was not requested.
func writeTrace(path string, rec *trace.Recorder, manifestHash string) error {
	if rec == nil || path == "" {
		return nil
	}
	b, err := rec.Trace(manifestHash).CanonicalJSON()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create trace dir: %w", err)
	}
	return writeFileAtomic(path, b, 0o644)
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
