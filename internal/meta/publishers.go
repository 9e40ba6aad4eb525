// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package meta

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Publisher is one entry of the publishers mapping.
type Publisher struct {
	ID     string
	Name   string
	Prefix string
}

// String renders the publisher as "Name [crossref:ID]".
func (p Publisher) String() string {
	if p.ID == "" {
		return p.Name
	}
	return p.Name + " [crossref:" + p.ID + "]"
}

// PublisherIndex finds the publisher owning a DOI prefix.
type PublisherIndex interface {
	ForDOI(doi string) (Publisher, bool)
}

// PrefixIndex maps DOI prefixes ("10.1016") to publishers.
type PrefixIndex map[string]Publisher

// ForDOI looks up the prefix of a normalized DOI.
func (idx PrefixIndex) ForDOI(doi string) (Publisher, bool) {
	prefix, _, ok := strings.Cut(doi, "/")
	if !ok {
		return Publisher{}, false
	}
	p, ok := idx[prefix]
	return p, ok
}

// LoadPublishers reads a CSV with id, name and prefix columns.
func LoadPublishers(path string) (PrefixIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening publishers mapping: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return PrefixIndex{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading publishers header: %w", err)
	}
	cols := columnIndex(header)
	idCol, nameCol, prefixCol := cols["id"], cols["name"], cols["prefix"]
	if idCol < 0 || nameCol < 0 || prefixCol < 0 {
		return nil, fmt.Errorf("publishers mapping %s: want columns id, name, prefix", path)
	}

	idx := PrefixIndex{}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading publishers mapping: %w", err)
		}
		prefix := strings.ToLower(strings.TrimSpace(field(rec, prefixCol)))
		if prefix == "" {
			continue
		}
		idx[prefix] = Publisher{
			ID:     strings.TrimSpace(field(rec, idCol)),
			Name:   cleanText(field(rec, nameCol)),
			Prefix: prefix,
		}
	}
	return idx, nil
}

// columnIndex maps lower-cased header names to positions; missing names
// read as -1.
func columnIndex(header []string) map[string]int {
	cols := map[string]int{"id": -1, "name": -1, "prefix": -1, "value": -1}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return cols
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}
