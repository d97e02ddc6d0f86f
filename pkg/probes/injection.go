package probes

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/apivet/apivet/pkg/defaults"
	"github.com/apivet/apivet/pkg/finding"
	"github.com/apivet/apivet/pkg/httpclient"
)

// injectionPayloads are error-based detection payloads. They surface
// parser errors; they do not extract data.
var injectionPayloads = []string{
	`'`,
	`' OR '1'='1`,
	`1; --`,
	`" OR ""="`,
}

// sqlErrorMarkers identify database errors leaking into responses.
var sqlErrorMarkers = []string{
	"sql syntax",
	"sqlite3",
	"mysql_fetch",
	"pg_query",
	"ora-01756",
	"syntax error at or near",
	"unclosed quotation mark",
	"operationalerror",
}

// searchPaths are endpoints that commonly pass a query parameter into a
// datastore.
var searchPaths = []string{"/api/search?q=%s", "/search?q=%s", "/api/users?name=%s"}

// Injection checks for Injection weaknesses (API10, mapped from the
// 2019 taxonomy's API8): database errors triggered by metacharacters.
type Injection struct {
	client *http.Client
}

// NewInjection creates the probe. A nil client uses the shared default.
func NewInjection(client *http.Client) *Injection {
	if client == nil {
		client = httpclient.Default()
	}
	return &Injection{client: client}
}

func (p *Injection) Descriptor() Descriptor {
	return Descriptor{
		Name:            "injection",
		Category:        "API10:2023",
		DefaultSeverity: finding.SeverityCritical,
		Description:     "Injection",
	}
}

func (p *Injection) Execute(ctx context.Context, target string, headers map[string]string) ([]finding.Finding, error) {
	d := p.Descriptor()
	var out []finding.Finding

scan:
	for _, pathPattern := range searchPaths {
		for _, payload := range injectionPayloads {
			path := strings.Replace(pathPattern, "%s", url.QueryEscape(payload), 1)
			probeURL := joinURL(target, path)

			req, err := newRequest(ctx, http.MethodGet, probeURL, headers, nil)
			if err != nil {
				return nil, err
			}
			resp, err := p.client.Do(req)
			if err != nil {
				return nil, err
			}
			body := readBody(resp)

			marker := sqlErrorIn(body)
			if marker == "" {
				continue
			}
			out = append(out, finding.Finding{
				Test:           d.Name,
				Category:       d.Category,
				Status:         finding.StatusVulnerable,
				Severity:       d.DefaultSeverity,
				URL:            probeURL,
				Method:         http.MethodGet,
				Description:    "Database error leaked for metacharacter input (likely injectable)",
				Evidence:       truncate("marker: "+marker, defaults.MaxEvidenceLen),
				Recommendation: "Use parameterized queries and return generic error responses",
			})
			continue scan // one hit per endpoint is enough evidence
		}
	}

	if len(out) == 0 {
		out = append(out, finding.Finding{
			Test:        d.Name,
			Category:    d.Category,
			Status:      finding.StatusPassed,
			URL:         target,
			Method:      http.MethodGet,
			Description: "No database errors surfaced for metacharacter inputs",
		})
	}
	return out, nil
}

func sqlErrorIn(body string) string {
	lower := strings.ToLower(body)
	for _, marker := range sqlErrorMarkers {
		if strings.Contains(lower, marker) {
			return marker
		}
	}
	return ""
}
