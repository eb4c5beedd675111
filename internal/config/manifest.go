// Package config loads the experiment manifest that drives a benchweaver
// session: where binaries and artifacts live, how executables are built and
// run, and which (executable, dataset) pairs to measure.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"benchweaver/internal/core"
)

// Defaults mirror the layout of a cargo workspace with an eval/ tree.
const (
	DefaultBinDir       = "target/release"
	DefaultDataDir      = "eval/data"
	DefaultRegistryName = ".plotdata.json"
	DefaultStateDir     = ".benchweaver"
)

// DefaultBuildCommand builds one binary of a cargo workspace.
var DefaultBuildCommand = []string{"cargo", "build", "--release", "--bin", core.ExecutablePlaceholder}

// ErrInvalidManifest is wrapped by every load and validation failure.
var ErrInvalidManifest = errors.New("invalid manifest")

type BuildConfig struct {
	Command []string `yaml:"command"`
	Dir     string   `yaml:"dir"`
}

type RunConfig struct {
	Args []string `yaml:"args"`
	Env  []string `yaml:"env"`
}

// Experiment lists the datasets one executable is measured against.
type Experiment struct {
	Executable string   `yaml:"executable"`
	Datasets   []string `yaml:"datasets"`
}

// Manifest is the resolved session configuration. After Load every path
// field is absolute.
type Manifest struct {
	Root       string `yaml:"root"`
	BinDir     string `yaml:"bin_dir"`
	DataDir    string `yaml:"data_dir"`
	DatasetDir string `yaml:"dataset_dir"`
	Registry   string `yaml:"registry"`
	StateDir   string `yaml:"state_dir"`

	Build       BuildConfig  `yaml:"build"`
	Run         RunConfig    `yaml:"run"`
	Experiments []Experiment `yaml:"experiments"`

	// Path is the file the manifest was loaded from.
	Path string `yaml:"-"`
}

// Load reads the manifest at path, applies defaults and environment
// overrides, resolves relative paths against the manifest's directory and
// validates the result.
func Load(path string) (*Manifest, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: path is empty", ErrInvalidManifest)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	var m *Manifest
	switch strings.ToLower(filepath.Ext(abs)) {
	case ".yaml", ".yml":
		m, err = decodeYAML(abs)
	case ".hcl":
		m, err = decodeHCL(abs)
	default:
		return nil, fmt.Errorf("%w: unsupported manifest extension %q (want .yaml, .yml or .hcl)", ErrInvalidManifest, filepath.Ext(abs))
	}
	if err != nil {
		return nil, err
	}
	m.Path = abs

	m.ApplyEnv()
	if err := m.resolve(filepath.Dir(abs)); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	return m, nil
}

func decodeYAML(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidManifest, path, err)
	}
	return &m, nil
}

// resolve fills defaults and makes every path absolute. Relative paths are
// taken relative to Root, which itself defaults to baseDir.
func (m *Manifest) resolve(baseDir string) error {
	root, err := resolveUnder(baseDir, m.Root, ".")
	if err != nil {
		return err
	}
	m.Root = root

	if m.BinDir, err = resolveUnder(root, m.BinDir, DefaultBinDir); err != nil {
		return err
	}
	if m.DataDir, err = resolveUnder(root, m.DataDir, DefaultDataDir); err != nil {
		return err
	}
	if m.DatasetDir, err = resolveUnder(root, m.DatasetDir, "."); err != nil {
		return err
	}
	if m.StateDir, err = resolveUnder(root, m.StateDir, DefaultStateDir); err != nil {
		return err
	}
	if strings.TrimSpace(m.Registry) == "" {
		m.Registry = filepath.Join(m.DataDir, DefaultRegistryName)
	} else if m.Registry, err = resolveUnder(root, m.Registry, ""); err != nil {
		return err
	}
	if m.Build.Dir, err = resolveUnder(root, m.Build.Dir, "."); err != nil {
		return err
	}
	if len(m.Build.Command) == 0 {
		m.Build.Command = append([]string(nil), DefaultBuildCommand...)
	}

	for i := range m.Experiments {
		ds := m.Experiments[i].Datasets
		for j, d := range ds {
			if strings.TrimSpace(d) == "" {
				continue
			}
			if ds[j], err = resolveUnder(m.DatasetDir, d, ""); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolveUnder returns p (or def when p is empty) as an absolute path,
// joining relative values onto base.
func resolveUnder(base, p, def string) (string, error) {
	if strings.TrimSpace(p) == "" {
		p = def
	}
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("%w: path must not be empty", ErrInvalidManifest)
	}
	clean := filepath.Clean(p)
	if filepath.IsAbs(clean) {
		return clean, nil
	}
	return filepath.Clean(filepath.Join(base, clean)), nil
}

// Validate reports every problem with the manifest at once.
func (m *Manifest) Validate() error {
	var errs []error
	if len(m.Build.Command) == 0 || strings.TrimSpace(m.Build.Command[0]) == "" {
		errs = append(errs, errors.New("build.command must name a program"))
	}
	if len(m.Experiments) == 0 {
		errs = append(errs, errors.New("at least one experiment is required"))
	}

	seenExe := make(map[string]bool)
	for i, e := range m.Experiments {
		name := strings.TrimSpace(e.Executable)
		switch {
		case name == "":
			errs = append(errs, fmt.Errorf("experiments[%d]: executable is required", i))
		case strings.ContainsAny(name, `/\`):
			errs = append(errs, fmt.Errorf("experiments[%d]: executable %q must be a bare name", i, name))
		case seenExe[name]:
			errs = append(errs, fmt.Errorf("experiments[%d]: executable %q listed twice", i, name))
		}
		seenExe[name] = true

		if len(e.Datasets) == 0 {
			errs = append(errs, fmt.Errorf("experiments[%d]: at least one dataset is required", i))
		}
		// Two datasets with the same base name would share an artifact.
		seenDataset := make(map[string]string)
		for j, d := range e.Datasets {
			if strings.TrimSpace(d) == "" {
				errs = append(errs, fmt.Errorf("experiments[%d].datasets[%d]: path is required", i, j))
				continue
			}
			ds := core.NewDataset(d)
			if prev, ok := seenDataset[ds.Name]; ok {
				errs = append(errs, fmt.Errorf("experiments[%d].datasets[%d]: %s collides with %s", i, j, d, prev))
				continue
			}
			seenDataset[ds.Name] = d
		}
	}
	return errors.Join(errs...)
}

// Pairs returns the requested measurements in manifest order. When only is
// non-empty the result is restricted to those executables, keeping manifest
// order; naming an executable the manifest does not list is an error.
func (m *Manifest) Pairs(only ...string) ([]core.Pair, error) {
	want := make(map[string]bool, len(only))
	for _, name := range only {
		want[name] = true
	}
	for _, name := range only {
		if !m.hasExecutable(name) {
			return nil, fmt.Errorf("%w: unknown executable %q", ErrInvalidManifest, name)
		}
	}

	var pairs []core.Pair
	for _, e := range m.Experiments {
		if len(want) > 0 && !want[e.Executable] {
			continue
		}
		for _, d := range e.Datasets {
			pairs = append(pairs, core.Pair{Executable: e.Executable, Dataset: core.NewDataset(d)})
		}
	}
	return pairs, nil
}

// Executables returns the executable names in manifest order.
func (m *Manifest) Executables() []string {
	out := make([]string, 0, len(m.Experiments))
	for _, e := range m.Experiments {
		out = append(out, e.Executable)
	}
	return out
}

func (m *Manifest) hasExecutable(name string) bool {
	for _, e := range m.Experiments {
		if e.Executable == name {
			return true
		}
	}
	return false
}

// Hash identifies the requested measurement set. It covers executable and
// dataset names in order, not machine-specific paths.
func (m *Manifest) Hash() string {
	type entry struct {
		Executable string `json:"executable"`
		Dataset    string `json:"dataset"`
	}
	entries := []entry{}
	for _, e := range m.Experiments {
		for _, d := range e.Datasets {
			entries = append(entries, entry{Executable: e.Executable, Dataset: core.NewDataset(d).Name})
		}
	}
	// Marshalling a slice of flat structs cannot fail.
	b, _ := json.Marshal(entries)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
