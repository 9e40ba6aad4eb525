// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package meta

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pdiddy/citeconv/internal/idmanager"
)

// OrcidIndex finds the ORCID of a named author of one of ids.
type OrcidIndex interface {
	Lookup(ids []string, name string) string
}

// indexedAuthor is one "Family, Given [orcid]" entry.
type indexedAuthor struct {
	family string
	orcid  string
}

// DOIOrcidIndex maps canonical DOIs to their known authors.
type DOIOrcidIndex map[string][]indexedAuthor

var orcidInValue = regexp.MustCompile(`\[(?:orcid:)?(\d{4}-\d{4}-\d{4}-\d{3}[\dXx])\]`)

// Lookup returns "orcid:..." for the first author of any DOI in ids whose
// family name occurs in name, or "".
func (idx DOIOrcidIndex) Lookup(ids []string, name string) string {
	lname := strings.ToLower(name)
	for _, id := range ids {
		for _, a := range idx[id] {
			if a.family != "" && strings.Contains(lname, a.family) {
				return idmanager.SchemeORCID + ":" + a.orcid
			}
		}
	}
	return ""
}

// LoadOrcidIndex reads a DOI→ORCID CSV (columns id and value) or every
// .csv file of a directory.
func LoadOrcidIndex(path string) (DOIOrcidIndex, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("opening ORCID index: %w", err)
	}

	files := []string{path}
	if info.IsDir() {
		files, err = filepath.Glob(filepath.Join(path, "*.csv"))
		if err != nil {
			return nil, fmt.Errorf("listing ORCID index: %w", err)
		}
	}

	idx := DOIOrcidIndex{}
	for _, f := range files {
		if err := idx.load(f); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func (idx DOIOrcidIndex) load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	cols := columnIndex(header)
	idCol, valueCol := cols["id"], cols["value"]
	if idCol < 0 || valueCol < 0 {
		return fmt.Errorf("ORCID index %s: want columns id, value", path)
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		doi, ok := idmanager.NormalizeDOI(field(rec, idCol))
		if !ok {
			continue
		}
		value := field(rec, valueCol)
		m := orcidInValue.FindStringSubmatch(value)
		if m == nil {
			continue
		}
		family, _, _ := strings.Cut(value[:strings.Index(value, "[")], ",")
		key := idmanager.SchemeDOI + ":" + doi
		idx[key] = append(idx[key], indexedAuthor{
			family: strings.ToLower(strings.TrimSpace(family)),
			orcid:  strings.ToUpper(m[1]),
		})
	}
}
