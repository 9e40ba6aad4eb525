// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package idmanager

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadWanted reads a CSV of DOIs to process. The column named "id" is used
// when present, the first column otherwise. Values are normalized to
// canonical "doi:" ids; malformed ones are ignored.
func LoadWanted(path string) (map[string]bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening wanted list: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading wanted list header: %w", err)
	}

	col := 0
	wanted := make(map[string]bool)
	hasHeader := false
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), "id") {
			col, hasHeader = i, true
			break
		}
	}
	if !hasHeader {
		addWanted(wanted, header, col)
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading wanted list: %w", err)
		}
		addWanted(wanted, rec, col)
	}
	return wanted, nil
}

func addWanted(set map[string]bool, rec []string, col int) {
	if col >= len(rec) {
		return
	}
	if doi, ok := NormalizeDOI(rec[col]); ok {
		set[SchemeDOI+":"+doi] = true
	}
}
