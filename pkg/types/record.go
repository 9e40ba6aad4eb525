// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Validity is the tri-state disposition of a normalized identifier.
type Validity int8

const (
	// Unresolved means the identifier was never checked, or checked with no
	// cached disposition yet.
	Unresolved Validity = iota
	Valid
	Invalid
)

func (v Validity) String() string {
	switch v {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	default:
		return "unresolved"
	}
}

// ValidityOf converts a cached boolean into a Validity.
func ValidityOf(valid bool) Validity {
	if valid {
		return Valid
	}
	return Invalid
}

// IDKind separates bibliographic resource identifiers from agent identifiers.
type IDKind string

const (
	KindResource IDKind = "br"
	KindAgent    IDKind = "ra"
)

// RelationCites is the relationship name of records that express a citation.
const RelationCites = "Cites"

// RawIdentifier is a scheme-tagged identifier as it appears in a dump record.
type RawIdentifier struct {
	ID     string `json:"identifier"`
	Schema string `json:"schema"`
	URL    string `json:"url,omitempty"`
}

// NormalizedIdentifier is a canonical scheme-qualified identifier
// (e.g. "doi:10.1000/xyz") together with its validity state.
type NormalizedIdentifier struct {
	ID       string   `json:"id"`
	Scheme   string   `json:"scheme"`
	Validity Validity `json:"valid"`
}

// Relationship describes how a record's source relates to its target.
type Relationship struct {
	Name    string `json:"name"`
	Schema  string `json:"schema,omitempty"`
	Inverse string `json:"inverse,omitempty"`
}

// Creator is an author of a bibliographic entity.
type Creator struct {
	Name       string          `json:"name"`
	Identifier []RawIdentifier `json:"identifier,omitempty"`
}

// Publisher names the publisher of a bibliographic entity.
type Publisher struct {
	Name string `json:"name"`
}

// Entity is the source or target side of a citation record.
type Entity struct {
	Identifier      []RawIdentifier `json:"identifier"`
	ObjectType      string          `json:"objectType,omitempty"`
	ObjectSubType   string          `json:"objectSubType,omitempty"`
	Title           string          `json:"title,omitempty"`
	Creator         []Creator       `json:"creator,omitempty"`
	PublicationDate string          `json:"publicationDate,omitempty"`
	Publisher       []Publisher     `json:"publisher,omitempty"`
}

// CitationRecord is one line of a dump member.
type CitationRecord struct {
	Relationship *Relationship `json:"relationship,omitempty"`
	Source       *Entity       `json:"source,omitempty"`
	Target       *Entity       `json:"target,omitempty"`
}

// IsCitation reports whether the record's relationship is a "Cites" relation.
func (r CitationRecord) IsCitation() bool {
	return r.Relationship != nil && r.Relationship.Name == RelationCites
}

// IdentifierPartition splits an entity's normalized identifiers by validity.
type IdentifierPartition struct {
	Valid         []NormalizedIdentifier `json:"valid"`
	NotValid      []NormalizedIdentifier `json:"not_valid"`
	ToBeValidated []NormalizedIdentifier `json:"to_be_val"`
}

// Partition buckets ids by validity state, keeping input order.
func Partition(ids []NormalizedIdentifier) IdentifierPartition {
	var p IdentifierPartition
	for _, id := range ids {
		switch id.Validity {
		case Valid:
			p.Valid = append(p.Valid, id)
		case Invalid:
			p.NotValid = append(p.NotValid, id)
		default:
			p.ToBeValidated = append(p.ToBeValidated, id)
		}
	}
	return p
}

// ValidityList summarises the cache's disposition for a whole identifier
// set of one kind.
type ValidityList struct {
	Kind    IDKind   `json:"kind"`
	Valid   []string `json:"valid"`
	Invalid []string `json:"invalid"`
}

// Knows reports whether id is listed as valid.
func (l ValidityList) Knows(id string) bool {
	for _, v := range l.Valid {
		if v == id {
			return true
		}
	}
	return false
}

// EntityUpdate is an entity whose raw identifier list has been replaced by
// its validity partition, handed to row construction.
type EntityUpdate struct {
	// Entity carries the original attributes; its Identifier list is empty.
	Entity Entity

	Identifier IdentifierPartition

	// ValidityLists holds the record-wide br and ra summaries, in that order.
	ValidityLists [2]ValidityList
}

// MetaRow is one entity metadata row of the output table.
type MetaRow struct {
	ID        string
	Title     string
	Author    string
	PubDate   string
	Venue     string
	Volume    string
	Issue     string
	Page      string
	Type      string
	Publisher string
	Editor    string
}

var metaHeader = []string{"id", "title", "author", "pub_date", "venue", "volume", "issue", "page", "type", "publisher", "editor"}

// Header returns the CSV column names.
func (MetaRow) Header() []string { return metaHeader }

// Record returns the CSV values in Header order.
func (r MetaRow) Record() []string {
	return []string{r.ID, r.Title, r.Author, r.PubDate, r.Venue, r.Volume, r.Issue, r.Page, r.Type, r.Publisher, r.Editor}
}

// CitationEdge links a citing entity to a cited one by representative ids.
type CitationEdge struct {
	Citing string
	Cited  string
}

var edgeHeader = []string{"citing", "referenced"}

// Header returns the CSV column names.
func (CitationEdge) Header() []string { return edgeHeader }

// Record returns the CSV values in Header order.
func (e CitationEdge) Record() []string { return []string{e.Citing, e.Cited} }
