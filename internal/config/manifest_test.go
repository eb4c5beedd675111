package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const yamlManifest = `
experiments:
  - executable: solverA
    datasets: [graphs/graphX, graphs/graphY]
  - executable: solverB
    datasets: [graphs/graphX]
`

func TestLoad_YAMLAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	m, err := Load(writeManifest(t, dir, "bench.yaml", yamlManifest))
	require.NoError(t, err)

	assert.Equal(t, dir, m.Root)
	assert.Equal(t, filepath.Join(dir, "target", "release"), m.BinDir)
	assert.Equal(t, filepath.Join(dir, "eval", "data"), m.DataDir)
	assert.Equal(t, filepath.Join(dir, "eval", "data", ".plotdata.json"), m.Registry)
	assert.Equal(t, filepath.Join(dir, ".benchweaver"), m.StateDir)
	assert.Equal(t, dir, m.Build.Dir)
	assert.Equal(t, DefaultBuildCommand, m.Build.Command)
}

func TestLoad_HCLMatchesYAML(t *testing.T) {
	dir := t.TempDir()
	hcl := `
build {
  command = ["make", "{exe}"]
}

experiment "solverA" {
  datasets = ["graphs/graphX", "graphs/graphY"]
}

experiment "solverB" {
  datasets = ["graphs/graphX"]
}
`
	fromHCL, err := Load(writeManifest(t, dir, "bench.hcl", hcl))
	require.NoError(t, err)
	fromYAML, err := Load(writeManifest(t, dir, "bench.yaml", yamlManifest))
	require.NoError(t, err)

	assert.Equal(t, []string{"make", "{exe}"}, fromHCL.Build.Command)
	assert.Equal(t, fromYAML.Experiments, fromHCL.Experiments)
	assert.Equal(t, fromYAML.Hash(), fromHCL.Hash())
}

func TestLoad_RelativePathsResolveAgainstRoot(t *testing.T) {
	dir := t.TempDir()
	m, err := Load(writeManifest(t, dir, "bench.yml", `
root: project
bin_dir: out/bin
data_dir: /abs/data
dataset_dir: inputs
registry: reg.json
experiments:
  - executable: solverA
    datasets: [g1]
`))
	require.NoError(t, err)

	root := filepath.Join(dir, "project")
	assert.Equal(t, root, m.Root)
	assert.Equal(t, filepath.Join(root, "out", "bin"), m.BinDir)
	assert.Equal(t, filepath.Clean("/abs/data"), m.DataDir)
	assert.Equal(t, filepath.Join(root, "reg.json"), m.Registry)
	assert.Equal(t, []string{filepath.Join(root, "inputs", "g1")}, m.Experiments[0].Datasets)
}

func TestLoad_EnvOverridesPaths(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvBinDir, "custom/bin")
	t.Setenv(EnvRegistry, filepath.Join(dir, "elsewhere.json"))

	m, err := Load(writeManifest(t, dir, "bench.yaml", yamlManifest))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "custom", "bin"), m.BinDir)
	assert.Equal(t, filepath.Join(dir, "elsewhere.json"), m.Registry)
}

func TestLoad_ValidationAggregatesProblems(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(writeManifest(t, dir, "bench.yaml", `
experiments:
  - executable: bin/solverA
    datasets: []
  - executable: solverB
    datasets: [a/graphX, b/graphX]
  - executable: solverB
    datasets: [c]
`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidManifest))
	assert.Contains(t, err.Error(), "must be a bare name")
	assert.Contains(t, err.Error(), "at least one dataset is required")
	assert.Contains(t, err.Error(), "collides with")
	assert.Contains(t, err.Error(), "listed twice")
}

func TestLoad_RejectsUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(writeManifest(t, dir, "bench.toml", ""))
	require.ErrorIs(t, err, ErrInvalidManifest)
}

func TestLoad_RejectsMalformedHCL(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(writeManifest(t, dir, "bench.hcl", `experiment "x" {`))
	require.ErrorIs(t, err, ErrInvalidManifest)
}

func TestPairs_OrderAndSelection(t *testing.T) {
	dir := t.TempDir()
	m, err := Load(writeManifest(t, dir, "bench.yaml", yamlManifest))
	require.NoError(t, err)

	pairs, err := m.Pairs()
	require.NoError(t, err)
	require.Len(t, pairs, 3)
	assert.Equal(t, "solverA", pairs[0].Executable)
	assert.Equal(t, "graphX", pairs[0].Dataset.Name)
	assert.Equal(t, "graphY", pairs[1].Dataset.Name)
	assert.Equal(t, "solverB", pairs[2].Executable)

	only, err := m.Pairs("solverB")
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, "solverB", only[0].Executable)

	_, err = m.Pairs("nope")
	require.ErrorIs(t, err, ErrInvalidManifest)
}

func TestHash_IgnoresMachinePaths(t *testing.T) {
	a := &Manifest{Experiments: []Experiment{{Executable: "s", Datasets: []string{"/x/graphX"}}}}
	b := &Manifest{Experiments: []Experiment{{Executable: "s", Datasets: []string{"/y/graphX"}}}}
	c := &Manifest{Experiments: []Experiment{{Executable: "s", Datasets: []string{"/y/graphY"}}}}

	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())
	assert.Len(t, a.Hash(), 64)
}

func TestEnvBool(t *testing.T) {
	v, err := Bool(EnvVerbose, false)
	require.NoError(t, err)
	assert.False(t, v)

	t.Setenv(EnvVerbose, "true")
	v, err = Bool(EnvVerbose, false)
	require.NoError(t, err)
	assert.True(t, v)

	t.Setenv(EnvVerbose, "maybe")
	_, err = Bool(EnvVerbose, false)
	assert.Error(t, err)
}
