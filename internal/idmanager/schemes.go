// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package idmanager

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/pdiddy/citeconv/pkg/types"
)

// Canonical scheme names used as identifier prefixes.
const (
	SchemeDOI   = "doi"
	SchemePMCID = "pmcid"
	SchemePMID  = "pmid"
	SchemeArxiv = "arxiv"
	SchemeORCID = "orcid"
)

// schemeAliases maps the schema labels found in dumps to canonical schemes.
var schemeAliases = map[string]string{
	"doi":    SchemeDOI,
	"pmc":    SchemePMCID,
	"pmcid":  SchemePMCID,
	"pmid":   SchemePMID,
	"pubmed": SchemePMID,
	"arxiv":  SchemeArxiv,
	"orcid":  SchemeORCID,
}

var (
	doiPattern   = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)
	pmcidPattern = regexp.MustCompile(`^PMC\d{1,10}$`)
	pmidPattern  = regexp.MustCompile(`^\d{1,9}$`)
	arxivPattern = regexp.MustCompile(`^(\d{4}\.\d{4,5}(?:v\d+)?)$`)
	orcidPattern = regexp.MustCompile(`^\d{4}-\d{4}-\d{4}-\d{3}[\dX]$`)
)

var doiPrefixes = []string{
	"https://doi.org/", "http://doi.org/",
	"https://dx.doi.org/", "http://dx.doi.org/",
	"doi.org/", "doi:",
}

// Scheme returns the canonical scheme for a dump schema label, or "" when
// the scheme is not managed.
func Scheme(schema string) string {
	return schemeAliases[strings.ToLower(strings.TrimSpace(schema))]
}

// KindOf returns whether a canonical scheme names a bibliographic resource
// or a responsible agent.
func KindOf(scheme string) types.IDKind {
	if scheme == SchemeORCID {
		return types.KindAgent
	}
	return types.KindResource
}

// Canonical normalizes value under scheme and returns the prefixed
// identifier (e.g. "doi:10.1000/xyz"). It reports false for unmanaged
// schemes and malformed values.
func Canonical(schema, value string) (string, string, bool) {
	scheme := Scheme(schema)
	var norm string
	var ok bool
	switch scheme {
	case SchemeDOI:
		norm, ok = NormalizeDOI(value)
	case SchemePMCID:
		norm, ok = normalizePMCID(value)
	case SchemePMID:
		norm, ok = normalizePMID(value)
	case SchemeArxiv:
		norm, ok = normalizeArxiv(value)
	case SchemeORCID:
		norm, ok = normalizeORCID(value)
	}
	if !ok {
		return "", "", false
	}
	return scheme, scheme + ":" + norm, true
}

// NormalizeDOI lower-cases a DOI and strips resolver prefixes and
// percent-encoding.
func NormalizeDOI(value string) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, p := range doiPrefixes {
		if strings.HasPrefix(v, p) {
			v = strings.TrimPrefix(v, p)
			break
		}
	}
	if unescaped, err := url.PathUnescape(v); err == nil {
		v = unescaped
	}
	v = strings.Join(strings.Fields(v), "")
	return v, doiPattern.MatchString(v)
}

func normalizePMCID(value string) (string, bool) {
	v := strings.ToUpper(strings.TrimSpace(value))
	v = stripURL(v, "HTTPS://WWW.NCBI.NLM.NIH.GOV/PMC/ARTICLES/", "HTTPS://PMC.NCBI.NLM.NIH.GOV/ARTICLES/", "PMCID:")
	return v, pmcidPattern.MatchString(v)
}

func normalizePMID(value string) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	v = stripURL(v, "https://pubmed.ncbi.nlm.nih.gov/", "pmid:")
	v = strings.TrimLeft(v, "0")
	return v, pmidPattern.MatchString(v)
}

func normalizeArxiv(value string) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	v = stripURL(v, "https://arxiv.org/abs/", "http://arxiv.org/abs/", "arxiv:")
	m := arxivPattern.FindStringSubmatch(v)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func normalizeORCID(value string) (string, bool) {
	v := strings.ToUpper(strings.TrimSpace(value))
	v = stripURL(v, "HTTPS://ORCID.ORG/", "HTTP://ORCID.ORG/", "ORCID:")
	if !orcidPattern.MatchString(v) {
		return "", false
	}
	return v, orcidChecksumOK(v)
}

// stripURL removes the first matching prefix and any trailing slash.
func stripURL(v string, prefixes ...string) string {
	for _, p := range prefixes {
		if strings.HasPrefix(v, p) {
			v = strings.TrimPrefix(v, p)
			break
		}
	}
	return strings.TrimSuffix(v, "/")
}

// orcidChecksumOK verifies the ISO 7064 11,2 check character.
func orcidChecksumOK(orcid string) bool {
	digits := strings.ReplaceAll(orcid, "-", "")
	total := 0
	for _, r := range digits[:15] {
		total = (total + int(r-'0')) * 2
	}
	check := (12 - total%11) % 11
	want := byte('0' + check)
	if check == 10 {
		want = 'X'
	}
	return digits[15] == want
}
