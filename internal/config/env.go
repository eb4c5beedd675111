package config

import (
	"fmt"
	"os"
	"strconv"
)

// Environment variables read by the CLI and by Load.
const (
	EnvManifest = "BENCHWEAVER_MANIFEST"
	EnvBinDir   = "BENCHWEAVER_BIN_DIR"
	EnvDataDir  = "BENCHWEAVER_DATA_DIR"
	EnvRegistry = "BENCHWEAVER_REGISTRY"
	EnvStateDir = "BENCHWEAVER_STATE_DIR"
	EnvVerbose  = "BENCHWEAVER_VERBOSE"
)

func String(key string, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func Bool(key string, def bool) (bool, error) {
	if v, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("parse %s: %w", key, err)
		}
		return b, nil
	}
	return def, nil
}

// ApplyEnv replaces path fields with their environment overrides. Relative
// override values are resolved like manifest values, against Root.
func (m *Manifest) ApplyEnv() {
	m.BinDir = String(EnvBinDir, m.BinDir)
	m.DataDir = String(EnvDataDir, m.DataDir)
	m.Registry = String(EnvRegistry, m.Registry)
	m.StateDir = String(EnvStateDir, m.StateDir)
}
