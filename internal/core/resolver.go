package core

import (
	"os"
	"path/filepath"
	"runtime"
)

// ExecutableResolver maps an executable name to its platform-specific path.
//
// The mapping is a pure function of the name, BinDir, and GOOS.
type ExecutableResolver struct {
	// BinDir is the directory the build places executables in.
	BinDir string

	// GOOS selects the native executable suffix.
	GOOS string
}

// NewExecutableResolver returns a resolver for the host platform.
func NewExecutableResolver(binDir string) *ExecutableResolver {
	return &ExecutableResolver{BinDir: binDir, GOOS: runtime.GOOS}
}

// Path returns the expected location of exe's binary.
func (r *ExecutableResolver) Path(exe string) string {
	return filepath.Join(r.BinDir, exe+ExecutableSuffix(r.GOOS))
}

// ExecutableSuffix returns the native executable file extension for goos.
func ExecutableSuffix(goos string) string {
	if goos == "windows" {
		return ".exe"
	}
	return ""
}

// isExecutable reports whether path is a regular file that the host would
// run. Outside windows at least one execute bit must be set.
func isExecutable(path, goos string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if !info.Mode().IsRegular() {
		return false
	}
	if goos == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
