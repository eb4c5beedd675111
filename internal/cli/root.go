// Package cli wires the benchweaver commands onto the core orchestrator.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"benchweaver/internal/config"
	"benchweaver/internal/core"
)

// Options configures a CLI invocation.
type Options struct {
	Stdout io.Writer
	Stderr io.Writer

	// Logger, when set, is used instead of building one from the global
	// flags.
	Logger *zap.Logger
}

// CLIResult is the outcome of one invocation.
type CLIResult struct {
	ExitCode int

	// Session is set by the run command once the session has started.
	Session *core.SessionResult
}

type app struct {
	opts Options

	manifestPath string
	verbose      bool
	logFormat    string

	logger *zap.Logger
	ownLog bool
	result CLIResult
}

// Run is a high-level CLI entrypoint suitable for black-box tests.
// It accepts the argument slice (excluding argv[0]) and returns the semantic
// exit code plus any error.
func Run(ctx context.Context, args []string, opts Options) (CLIResult, error) {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	a := &app{opts: opts}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)

	err := root.ExecuteContext(ctx)
	a.result.ExitCode = ExitCode(err)
	return a.result, err
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "benchweaver",
		Short: "Rebuild and re-measure only what changed",
		Long: `benchweaver runs measurement executables against datasets and caches the
results. A pair is measured again only when its binary changed since the last
successful run or its artifact is missing.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("verbose") {
				v, err := config.Bool(config.EnvVerbose, false)
				if err != nil {
					return withExit(ExitInvalidInvocation, err)
				}
				a.verbose = v
			}
			if a.opts.Logger != nil {
				a.logger = a.opts.Logger
				return nil
			}
			logger, err := newLogger(a.opts.Stderr, a.verbose, a.logFormat)
			if err != nil {
				return withExit(ExitInvalidInvocation, err)
			}
			a.logger = logger
			a.ownLog = true
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.ownLog && a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&a.manifestPath, "manifest", "m",
		config.String(config.EnvManifest, "benchweaver.yaml"), "experiment manifest (.yaml, .yml or .hcl)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "json", "log encoding: json or console")

	root.AddCommand(
		a.runCommand(),
		a.statusCommand(),
		a.registryCommand(),
		a.artifactCommand(),
		a.historyCommand(),
	)
	return root
}

// newLogger builds the production logger, writing to w.
func newLogger(w io.Writer, verbose bool, format string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	var enc zapcore.Encoder
	switch format {
	case "", "json":
		enc = zapcore.NewJSONEncoder(cfg.EncoderConfig)
	case "console":
		ec := zap.NewDevelopmentEncoderConfig()
		enc = zapcore.NewConsoleEncoder(ec)
	default:
		return nil, fmt.Errorf("unknown log format %q (want json or console)", format)
	}
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), cfg.Level)), nil
}

// loadManifest loads the manifest named by --manifest.
func (a *app) loadManifest() (*config.Manifest, error) {
	m, err := config.Load(a.manifestPath)
	if err != nil {
		return nil, withExit(ExitConfigError, err)
	}
	a.logger.Debug("Loaded manifest",
		zap.String("path", m.Path),
		zap.Int("experiments", len(m.Experiments)),
		zap.String("manifest_hash", m.Hash()))
	return m, nil
}

func resolverFor(m *config.Manifest) *core.ExecutableResolver {
	return core.NewExecutableResolver(m.BinDir)
}

func layoutFor(m *config.Manifest) core.ArtifactLayout {
	return core.ArtifactLayout{DataDir: m.DataDir}
}
