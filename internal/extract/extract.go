// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract turns the newline-delimited citation records of one dump
// member into metadata rows and citation edges.
package extract

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/segmentio/encoding/json"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/pdiddy/citeconv/internal/logger"
	"github.com/pdiddy/citeconv/pkg/types"
)

// maxLineSize bounds a single record line.
const maxLineSize = 64 << 20

// Normalizer maps raw identifiers to canonical ones tagged with their
// cached validity.
type Normalizer interface {
	NormalizeAll(ctx context.Context, raws []types.RawIdentifier) []types.NormalizedIdentifier
	ResolveBulk(ctx context.Context, raws []types.RawIdentifier, kind types.IDKind) types.ValidityList
}

// RowBuilder decides whether an entity with identifiers still to validate
// is admissible and returns its metadata row.
type RowBuilder interface {
	BuildRow(ctx context.Context, eu types.EntityUpdate) (*types.MetaRow, bool)
}

// Result holds everything one member produced.
type Result struct {
	Rows  []types.MetaRow
	Edges []types.CitationEdge

	// Lines counts non-empty lines read; Citations those that were
	// well-formed "Cites" records.
	Lines     int
	Citations int
}

// Extractor processes citation records.
type Extractor struct {
	ids  Normalizer
	rows RowBuilder
	log  logger.Logger
}

// New returns an Extractor. A nil log discards output.
func New(ids Normalizer, rows RowBuilder, log logger.Logger) *Extractor {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &Extractor{ids: ids, rows: rows, log: log}
}

// ProcessLines reads records from r until EOF. Malformed and non-citation
// lines are skipped; only read errors and cancellation are returned.
func (x *Extractor) ProcessLines(ctx context.Context, r io.Reader) (*Result, error) {
	res := &Result{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		res.Lines++

		rows, edge, ok := x.ProcessRecord(ctx, line)
		if !ok {
			continue
		}
		res.Citations++
		res.Rows = append(res.Rows, rows...)
		if edge != nil {
			res.Edges = append(res.Edges, *edge)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}

	x.log.Debug("records processed",
		zap.Int("lines", res.Lines),
		zap.Int("citations", res.Citations),
		zap.Int("rows", len(res.Rows)),
		zap.Int("edges", len(res.Edges)))
	return res, nil
}

// ProcessRecord handles one JSON line. It reports false when the line is
// not a well-formed "Cites" record. Rows are returned for sides that went
// through row construction; the edge is nil unless both sides have a
// representative identifier.
func (x *Extractor) ProcessRecord(ctx context.Context, line []byte) ([]types.MetaRow, *types.CitationEdge, bool) {
	if !gjson.ValidBytes(line) || gjson.GetBytes(line, "relationship.name").String() != types.RelationCites {
		return nil, nil, false
	}
	var rec types.CitationRecord
	if err := json.Unmarshal(line, &rec); err != nil || !rec.IsCitation() {
		return nil, nil, false
	}

	br, ra := harvestIDs(line)
	lists := [2]types.ValidityList{
		x.ids.ResolveBulk(ctx, br, types.KindResource),
		x.ids.ResolveBulk(ctx, ra, types.KindAgent),
	}

	if rec.Source == nil || rec.Target == nil {
		return nil, nil, true
	}
	sourceIDs := x.ids.NormalizeAll(ctx, rec.Source.Identifier)
	targetIDs := x.ids.NormalizeAll(ctx, rec.Target.Identifier)
	if len(sourceIDs) == 0 || len(targetIDs) == 0 {
		return nil, nil, true
	}

	var rows []types.MetaRow
	citing, row := x.representative(ctx, *rec.Source, sourceIDs, lists)
	if row != nil {
		rows = append(rows, *row)
	}
	cited, row := x.representative(ctx, *rec.Target, targetIDs, lists)
	if row != nil {
		rows = append(rows, *row)
	}

	if citing == "" || cited == "" {
		return rows, nil, true
	}
	return rows, &types.CitationEdge{Citing: citing, Cited: cited}, true
}

// representative picks the id standing for one side of a citation. Any
// unresolved id forces row construction, whose first id is then used;
// otherwise the first valid id is used directly.
func (x *Extractor) representative(ctx context.Context, e types.Entity, ids []types.NormalizedIdentifier, lists [2]types.ValidityList) (string, *types.MetaRow) {
	part := types.Partition(ids)

	if len(part.ToBeValidated) > 0 {
		e.Identifier = nil
		row, ok := x.rows.BuildRow(ctx, types.EntityUpdate{Entity: e, Identifier: part, ValidityLists: lists})
		if !ok || row == nil {
			return "", nil
		}
		rep := firstToken(row.ID)
		if rep == "" {
			return "", nil
		}
		return rep, row
	}
	if len(part.Valid) > 0 {
		return part.Valid[0].ID, nil
	}
	return "", nil
}

func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
