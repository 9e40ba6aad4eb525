// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package output writes the per-member metadata and citation CSV files.
package output

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/citeconv/pkg/types"
)

// csvRecord is a row type that knows its own columns.
type csvRecord interface {
	Header() []string
	Record() []string
}

// Writer places metadata rows under MetaDir and citation edges under
// CitationsDir, one file per member in each.
type Writer struct {
	MetaDir      string
	CitationsDir string
}

// NewWriter creates both output directories.
func NewWriter(metaDir, citationsDir string) (*Writer, error) {
	for _, dir := range []string{metaDir, citationsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}
	}
	return &Writer{MetaDir: metaDir, CitationsDir: citationsDir}, nil
}

// Written reports which files a Write produced; empty paths were skipped.
type Written struct {
	MetaPath      string
	CitationsPath string
}

// Write replaces the member's output files. A file with nothing to write
// is not created, and one left by an earlier attempt is removed.
func (w *Writer) Write(member string, rows []types.MetaRow, edges []types.CitationEdge) (Written, error) {
	name := BaseName(member) + ".csv"
	var out Written

	metaPath := filepath.Join(w.MetaDir, name)
	if len(rows) > 0 {
		if err := writeCSV(metaPath, rows); err != nil {
			return Written{}, fmt.Errorf("writing metadata for %s: %w", member, err)
		}
		out.MetaPath = metaPath
	} else if err := removeStale(metaPath); err != nil {
		return Written{}, fmt.Errorf("removing stale metadata for %s: %w", member, err)
	}

	citationsPath := filepath.Join(w.CitationsDir, name)
	if len(edges) > 0 {
		if err := writeCSV(citationsPath, edges); err != nil {
			return out, fmt.Errorf("writing citations for %s: %w", member, err)
		}
		out.CitationsPath = citationsPath
	} else if err := removeStale(citationsPath); err != nil {
		return out, fmt.Errorf("removing stale citations for %s: %w", member, err)
	}
	return out, nil
}

func removeStale(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// BaseName strips directories and every ".json", ".tar" and ".gz" from a
// member name.
func BaseName(member string) string {
	base := filepath.Base(member)
	for _, ext := range []string{".json", ".tar", ".gz"} {
		base = strings.ReplaceAll(base, ext, "")
	}
	return base
}

// writeCSV writes a header taken from the first item, then every item,
// through a temp file renamed into place.
func writeCSV[T csvRecord](path string, items []T) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".output-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	cw := csv.NewWriter(tmpFile)
	writeErr := cw.Write(items[0].Header())
	for _, it := range items {
		if writeErr != nil {
			break
		}
		writeErr = cw.Write(it.Record())
	}
	if writeErr == nil {
		cw.Flush()
		writeErr = cw.Error()
	}
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing rows: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
