// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package meta builds the entity metadata rows that carry identifiers still
// needing validation into the metadata table.
package meta

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/pdiddy/citeconv/internal/idmanager"
	"github.com/pdiddy/citeconv/pkg/types"
)

// Builder turns an entity and its identifier partition into a MetaRow.
type Builder struct {
	ids        *idmanager.Manager
	publishers PublisherIndex
	orcids     OrcidIndex
}

// NewBuilder returns a Builder resolving identifiers through ids. Either
// index may be nil.
func NewBuilder(ids *idmanager.Manager, publishers PublisherIndex, orcids OrcidIndex) *Builder {
	return &Builder{ids: ids, publishers: publishers, orcids: orcids}
}

// BuildRow returns a row for the entity, or false when none of its
// identifiers is admissible. Valid identifiers are kept, unresolved ones
// are validated (the record's resource summary counts as a validation) and
// invalid ones dropped. The first id of the row is its representative.
func (b *Builder) BuildRow(ctx context.Context, eu types.EntityUpdate) (*types.MetaRow, bool) {
	resources := eu.ValidityLists[0]
	agents := eu.ValidityLists[1]

	var ids []string
	for _, id := range eu.Identifier.Valid {
		ids = append(ids, id.ID)
	}
	for _, id := range eu.Identifier.ToBeValidated {
		if resources.Knows(id.ID) || b.ids.Admit(ctx, id) {
			ids = append(ids, id.ID)
		}
	}
	if len(ids) == 0 {
		return nil, false
	}

	e := eu.Entity
	return &types.MetaRow{
		ID:        strings.Join(ids, " "),
		Title:     cleanText(e.Title),
		Author:    b.authors(ctx, e.Creator, ids, agents),
		PubDate:   NormalizeDate(e.PublicationDate),
		Type:      EntityType(e.ObjectType, e.ObjectSubType),
		Publisher: b.publisher(e.Publisher, ids),
	}, true
}

// authors renders creators as "Name [orcid:...]" joined by "; ". A
// creator's own ORCID is used when admissible; otherwise the DOI→ORCID
// index is consulted by family name.
func (b *Builder) authors(ctx context.Context, creators []types.Creator, ids []string, agents types.ValidityList) string {
	var out []string
	for _, c := range creators {
		name := cleanText(c.Name)
		if name == "" {
			continue
		}
		orcid := b.creatorORCID(ctx, c.Identifier, agents)
		if orcid == "" && b.orcids != nil {
			orcid = b.orcids.Lookup(ids, name)
		}
		if orcid != "" {
			name += " [" + orcid + "]"
		}
		out = append(out, name)
	}
	return strings.Join(out, "; ")
}

func (b *Builder) creatorORCID(ctx context.Context, raws []types.RawIdentifier, agents types.ValidityList) string {
	for _, raw := range raws {
		n, ok := b.ids.Normalize(ctx, raw)
		if !ok || n.Scheme != idmanager.SchemeORCID {
			continue
		}
		if agents.Knows(n.ID) || b.ids.Admit(ctx, n) {
			return n.ID
		}
	}
	return ""
}

// publisher prefers the mapped publisher of the first DOI, then the names
// in the record.
func (b *Builder) publisher(pubs []types.Publisher, ids []string) string {
	if b.publishers != nil {
		for _, id := range ids {
			if !strings.HasPrefix(id, idmanager.SchemeDOI+":") {
				continue
			}
			if p, ok := b.publishers.ForDOI(strings.TrimPrefix(id, idmanager.SchemeDOI+":")); ok {
				return p.String()
			}
		}
	}
	var names []string
	for _, p := range pubs {
		if n := cleanText(p.Name); n != "" {
			names = append(names, n)
		}
	}
	return strings.Join(names, "; ")
}

var datePattern = regexp.MustCompile(`^(\d{4})(?:-(\d{2})(?:-(\d{2}))?)?`)

// NormalizeDate reduces a date string to YYYY, YYYY-MM or YYYY-MM-DD,
// dropping any part that isn't a real calendar value.
func NormalizeDate(s string) string {
	m := datePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return ""
	}
	year, month, day := m[1], m[2], m[3]
	if day != "" {
		if _, err := time.Parse("2006-01-02", year+"-"+month+"-"+day); err == nil {
			return year + "-" + month + "-" + day
		}
	}
	if month != "" {
		if _, err := time.Parse("2006-01", year+"-"+month); err == nil {
			return year + "-" + month
		}
	}
	return year
}

// EntityType maps Scholix object types to metadata table types.
func EntityType(objectType, subType string) string {
	sub := strings.ToLower(strings.TrimSpace(subType))
	switch {
	case strings.Contains(sub, "journal") || sub == "article":
		return "journal article"
	case strings.Contains(sub, "conference") || strings.Contains(sub, "proceeding"):
		return "proceedings article"
	case strings.Contains(sub, "chapter") || strings.Contains(sub, "part of book"):
		return "book chapter"
	case strings.Contains(sub, "book"):
		return "book"
	case strings.Contains(sub, "thesis") || strings.Contains(sub, "dissertation"):
		return "dissertation"
	case strings.Contains(sub, "report"):
		return "report"
	}

	switch strings.ToLower(strings.TrimSpace(objectType)) {
	case "dataset":
		return "dataset"
	case "software", "other":
		return "other"
	}
	return ""
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
