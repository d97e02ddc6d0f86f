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

// ssrfParams are parameter names that commonly accept URLs server-side.
var ssrfParams = []string{"url", "uri", "callback", "webhook", "redirect", "fetch"}

// metadataMarkers indicate the target fetched an internal metadata
// service on the probe's behalf.
var metadataMarkers = []string{"ami-id", "instance-id", "meta-data", "computeMetadata"}

// SSRF checks for Server Side Request Forgery (API7:2023). The probe is
// detection-safe: it offers internal-only URLs in candidate parameters and
// inspects the response for fetched content or verbatim reflection; it
// never stands up an out-of-band listener.
type SSRF struct {
	client *http.Client
}

// NewSSRF creates the probe. A nil client uses the shared default.
func NewSSRF(client *http.Client) *SSRF {
	if client == nil {
		client = httpclient.Default()
	}
	return &SSRF{client: client}
}

func (p *SSRF) Descriptor() Descriptor {
	return Descriptor{
		Name:            "ssrf",
		Category:        "API7:2023",
		DefaultSeverity: finding.SeverityHigh,
		Description:     "Server Side Request Forgery",
	}
}

func (p *SSRF) Execute(ctx context.Context, target string, headers map[string]string) ([]finding.Finding, error) {
	d := p.Descriptor()
	const internalURL = "http://169.254.169.254/latest/meta-data/"

	var out []finding.Finding
	for _, param := range ssrfParams {
		probeURL := joinURL(target, "?"+param+"="+url.QueryEscape(internalURL))
		req, err := newRequest(ctx, http.MethodGet, probeURL, headers, nil)
		if err != nil {
			return nil, err
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return nil, err
		}
		body := readBody(resp)

		for _, marker := range metadataMarkers {
			if strings.Contains(body, marker) {
				out = append(out, finding.Finding{
					Test:           d.Name,
					Category:       d.Category,
					Status:         finding.StatusVulnerable,
					Severity:       d.DefaultSeverity,
					URL:            probeURL,
					Method:         http.MethodGet,
					Description:    "Response contains cloud metadata content for an attacker-supplied URL",
					Evidence:       truncate("marker: "+marker, defaults.MaxEvidenceLen),
					Recommendation: "Resolve and allow-list outbound fetch destinations server-side",
				})
				break
			}
		}
	}

	if len(out) == 0 {
		out = append(out, finding.Finding{
			Test:        d.Name,
			Category:    d.Category,
			Status:      finding.StatusPassed,
			URL:         target,
			Method:      http.MethodGet,
			Description: "No server-side fetch of attacker-supplied URLs observed",
		})
	}
	return out, nil
}
