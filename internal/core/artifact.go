package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ArtifactExtension is the suffix of every measurement artifact.
const ArtifactExtension = ".txt"

// Dataset is an input the measurement executable is run against.
type Dataset struct {
	// Name identifies the dataset in artifact paths and logs.
	Name string

	// Path is passed to the executable as its argument.
	Path string
}

// NewDataset derives the dataset name from the base name of path.
func NewDataset(path string) Dataset {
	clean := filepath.Clean(path)
	return Dataset{Name: filepath.Base(clean), Path: clean}
}

// ArtifactKey identifies the artifact produced by one (executable, dataset) pair.
type ArtifactKey struct {
	Executable string
	Dataset    string
}

func (k ArtifactKey) String() string {
	return k.Executable + "-" + k.Dataset
}

// ArtifactLayout maps artifact keys to files under DataDir.
//
// Layout:
//
//	{DataDir}/{executable}-{dataset}.txt
type ArtifactLayout struct {
	DataDir string
}

// Path returns the deterministic artifact path for key.
func (l ArtifactLayout) Path(key ArtifactKey) string {
	return filepath.Join(l.DataDir, key.String()+ArtifactExtension)
}

// Exists reports whether the artifact for key is present. Only existence is
// checked; the content is never inspected.
func (l ArtifactLayout) Exists(key ArtifactKey) bool {
	info, err := os.Stat(l.Path(key))
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// ArtifactTable is a produced result table handed to downstream consumers.
// Its schema is owned by the measurement executables.
type ArtifactTable struct {
	Header []string
	Rows   [][]string
}

// Column returns the values of the named column, or false if the header has
// no such column.
func (t *ArtifactTable) Column(name string) ([]string, bool) {
	idx := -1
	for i, h := range t.Header {
		if strings.TrimSpace(h) == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}
	out := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		if idx < len(row) {
			out = append(out, row[idx])
		} else {
			out = append(out, "")
		}
	}
	return out, true
}

// ReadArtifact parses the comma-separated artifact at path. The first record
// is the header. Rows may have fewer fields than the header.
func ReadArtifact(path string) (*ArtifactTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening artifact: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("artifact %s is empty", path)
		}
		return nil, fmt.Errorf("reading artifact header: %w", err)
	}
	table := &ArtifactTable{Header: header, Rows: [][]string{}}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading artifact %s: %w", path, err)
		}
		table.Rows = append(table.Rows, rec)
	}
	return table, nil
}
