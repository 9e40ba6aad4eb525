// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package idmanager

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/segmentio/encoding/json"

	"github.com/pdiddy/citeconv/internal/httputil"
	"github.com/pdiddy/citeconv/pkg/types"
)

// Authority endpoints. Declared as vars so tests can substitute httptest
// servers.
var (
	doiHandleBase = "https://doi.org/api/handles/"
	idconvBase    = "https://www.ncbi.nlm.nih.gov/pmc/utils/idconv/v1.0/"
	orcidBase     = "https://pub.orcid.org/v3.0/"
	arxivAPIBase  = "https://export.arxiv.org/api/query"
)

// HTTPAuthority checks identifiers against their registration agencies:
// the DOI handle API, NCBI's ID converter for PMCID and PMID, the ORCID
// public API and the arXiv export API.
type HTTPAuthority struct {
	client *httputil.Client
}

var _ Authority = (*HTTPAuthority)(nil)

// NewHTTPAuthority returns an authority issuing requests through client.
func NewHTTPAuthority(client *httputil.Client) *HTTPAuthority {
	return &HTTPAuthority{client: client}
}

// Exists reports whether the identifier is registered. Unexpected HTTP
// statuses and transport failures are returned as errors.
func (a *HTTPAuthority) Exists(ctx context.Context, id types.NormalizedIdentifier) (bool, error) {
	value := strings.TrimPrefix(id.ID, id.Scheme+":")
	switch id.Scheme {
	case SchemeDOI:
		return a.doiExists(ctx, value)
	case SchemePMCID, SchemePMID:
		return a.ncbiExists(ctx, value)
	case SchemeORCID:
		return a.orcidExists(ctx, value)
	case SchemeArxiv:
		return a.arxivExists(ctx, value)
	default:
		return false, fmt.Errorf("no authority for scheme %q", id.Scheme)
	}
}

func (a *HTTPAuthority) get(ctx context.Context, rawURL, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return a.client.Do(ctx, req)
}

type handleResponse struct {
	ResponseCode int `json:"responseCode"`
}

// doiHandleURL escapes each "/"-separated segment so that "?", "#" and "%"
// in a DOI stay part of the handle.
func doiHandleURL(doi string) string {
	segments := strings.Split(doi, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return doiHandleBase + strings.Join(segments, "/")
}

func (a *HTTPAuthority) doiExists(ctx context.Context, doi string) (bool, error) {
	resp, err := a.get(ctx, doiHandleURL(doi), "application/json")
	if err != nil {
		return false, fmt.Errorf("DOI handle request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return false, nil
	case http.StatusOK:
	default:
		return false, fmt.Errorf("DOI handle API returned HTTP %d", resp.StatusCode)
	}

	var hr handleResponse
	if err := json.NewDecoder(resp.Body).Decode(&hr); err != nil {
		return false, fmt.Errorf("parsing DOI handle response: %w", err)
	}
	// 1 means the handle was found; 100 means it wasn't.
	return hr.ResponseCode == 1, nil
}

type idconvResponse struct {
	Status  string `json:"status"`
	Records []struct {
		PMCID  string `json:"pmcid"`
		PMID   string `json:"pmid"`
		Status string `json:"status"`
	} `json:"records"`
}

func (a *HTTPAuthority) ncbiExists(ctx context.Context, value string) (bool, error) {
	q := url.Values{}
	q.Set("ids", value)
	q.Set("format", "json")
	resp, err := a.get(ctx, idconvBase+"?"+q.Encode(), "application/json")
	if err != nil {
		return false, fmt.Errorf("NCBI idconv request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("NCBI idconv returned HTTP %d", resp.StatusCode)
	}

	var ir idconvResponse
	if err := json.NewDecoder(resp.Body).Decode(&ir); err != nil {
		return false, fmt.Errorf("parsing NCBI idconv response: %w", err)
	}
	if ir.Status != "" && ir.Status != "ok" {
		return false, nil
	}
	for _, r := range ir.Records {
		if r.Status != "error" {
			return true, nil
		}
	}
	return false, nil
}

func (a *HTTPAuthority) orcidExists(ctx context.Context, orcid string) (bool, error) {
	resp, err := a.get(ctx, orcidBase+orcid, "application/json")
	if err != nil {
		return false, fmt.Errorf("ORCID request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("ORCID API returned HTTP %d", resp.StatusCode)
	}
}

type arxivFeed struct {
	Entries []struct {
		ID    string `xml:"id"`
		Title string `xml:"title"`
	} `xml:"entry"`
}

func (a *HTTPAuthority) arxivExists(ctx context.Context, arxivID string) (bool, error) {
	resp, err := a.get(ctx, arxivAPIBase+"?id_list="+url.QueryEscape(arxivID), "")
	if err != nil {
		return false, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return false, fmt.Errorf("parsing arXiv response: %w", err)
	}
	if len(feed.Entries) == 0 {
		return false, nil
	}
	e := feed.Entries[0]
	return e.Title != "Error" && !strings.Contains(e.ID, "/api/errors"), nil
}
