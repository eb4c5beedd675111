package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// hclManifest is the decoding shape of an .hcl manifest:
//
//	bin_dir  = "target/release"
//	data_dir = "eval/data"
//
//	build {
//	  command = ["cargo", "build", "--release", "--bin", "{exe}"]
//	}
//
//	experiment "solverA" {
//	  datasets = ["graphs/graphX"]
//	}
type hclManifest struct {
	Root        string           `hcl:"root,optional"`
	BinDir      string           `hcl:"bin_dir,optional"`
	DataDir     string           `hcl:"data_dir,optional"`
	DatasetDir  string           `hcl:"dataset_dir,optional"`
	Registry    string           `hcl:"registry,optional"`
	StateDir    string           `hcl:"state_dir,optional"`
	Build       *hclBuild        `hcl:"build,block"`
	Run         *hclRun          `hcl:"run,block"`
	Experiments []*hclExperiment `hcl:"experiment,block"`
}

type hclBuild struct {
	Command []string `hcl:"command,optional"`
	Dir     string   `hcl:"dir,optional"`
}

type hclRun struct {
	Args []string `hcl:"args,optional"`
	Env  []string `hcl:"env,optional"`
}

type hclExperiment struct {
	Executable string   `hcl:"executable,label"`
	Datasets   []string `hcl:"datasets"`
}

func decodeHCL(path string) (*Manifest, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: failed to parse HCL file %s: %w", ErrInvalidManifest, path, diags)
	}

	var parsed hclManifest
	diags = gohcl.DecodeBody(file.Body, nil, &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: failed to decode HCL file %s: %w", ErrInvalidManifest, path, diags)
	}

	m := &Manifest{
		Root:       parsed.Root,
		BinDir:     parsed.BinDir,
		DataDir:    parsed.DataDir,
		DatasetDir: parsed.DatasetDir,
		Registry:   parsed.Registry,
		StateDir:   parsed.StateDir,
	}
	if parsed.Build != nil {
		m.Build = BuildConfig{Command: parsed.Build.Command, Dir: parsed.Build.Dir}
	}
	if parsed.Run != nil {
		m.Run = RunConfig{Args: parsed.Run.Args, Env: parsed.Run.Env}
	}
	for _, e := range parsed.Experiments {
		m.Experiments = append(m.Experiments, Experiment{Executable: e.Executable, Datasets: e.Datasets})
	}
	return m, nil
}
