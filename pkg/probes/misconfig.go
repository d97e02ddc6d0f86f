package probes

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/apivet/apivet/pkg/defaults"
	"github.com/apivet/apivet/pkg/finding"
	"github.com/apivet/apivet/pkg/httpclient"
)

// requiredHeaders are the security headers an API response is expected to
// carry. Missing entries are reported together as one finding.
var requiredHeaders = []string{
	"X-Content-Type-Options",
	"X-Frame-Options",
	"Strict-Transport-Security",
	"Content-Security-Policy",
	"Cache-Control",
}

// bannerHeaders leak implementation detail when present.
var bannerHeaders = []string{"Server", "X-Powered-By", "X-AspNet-Version", "X-Runtime"}

// Misconfig checks for Security Misconfiguration (API8:2023): missing
// security headers, verbose banners, permissive CORS, and enabled TRACE.
type Misconfig struct {
	client *http.Client
}

// NewMisconfig creates the probe. A nil client uses the shared default.
func NewMisconfig(client *http.Client) *Misconfig {
	if client == nil {
		client = httpclient.Default()
	}
	return &Misconfig{client: client}
}

func (p *Misconfig) Descriptor() Descriptor {
	return Descriptor{
		Name:            "misconfig",
		Category:        "API8:2023",
		DefaultSeverity: finding.SeverityLow,
		Description:     "Security Misconfiguration",
	}
}

func (p *Misconfig) Execute(ctx context.Context, target string, headers map[string]string) ([]finding.Finding, error) {
	d := p.Descriptor()

	req, err := newRequest(ctx, http.MethodGet, target, headers, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	readBody(resp)

	var out []finding.Finding

	var missing []string
	for _, h := range requiredHeaders {
		if resp.Header.Get(h) == "" {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		out = append(out, finding.Finding{
			Test:           d.Name,
			Category:       d.Category,
			Status:         finding.StatusVulnerable,
			Severity:       d.DefaultSeverity,
			URL:            target,
			Method:         http.MethodGet,
			Description:    "Security headers missing from responses",
			Evidence:       truncate(strings.Join(missing, ", "), defaults.MaxEvidenceLen),
			Recommendation: "Set standard security headers on every API response",
		})
	}

	for _, h := range bannerHeaders {
		if v := resp.Header.Get(h); v != "" {
			out = append(out, finding.Finding{
				Test:           d.Name,
				Category:       d.Category,
				Status:         finding.StatusInfo,
				URL:            target,
				Method:         http.MethodGet,
				Description:    "Response header discloses implementation detail",
				Evidence:       truncate(fmt.Sprintf("%s: %s", h, v), defaults.MaxEvidenceLen),
				Recommendation: "Suppress or genericize version banners",
			})
		}
	}

	if f, err := p.checkCORS(ctx, target, headers, d); err != nil {
		return nil, err
	} else if f != nil {
		out = append(out, *f)
	}

	if f, err := p.checkTrace(ctx, target, headers, d); err != nil {
		return nil, err
	} else if f != nil {
		out = append(out, *f)
	}

	if len(out) == 0 {
		out = append(out, finding.Finding{
			Test:        d.Name,
			Category:    d.Category,
			Status:      finding.StatusPassed,
			URL:         target,
			Method:      http.MethodGet,
			Description: "No configuration weaknesses detected",
		})
	}
	return out, nil
}

// checkCORS sends a cross-origin request from an arbitrary origin; a
// wildcard or echoed origin combined with credentials support is reported.
func (p *Misconfig) checkCORS(ctx context.Context, target string, headers map[string]string, d Descriptor) (*finding.Finding, error) {
	const origin = "https://evil.example"
	req, err := newRequest(ctx, http.MethodGet, target, headers, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Origin", origin)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	readBody(resp)

	acao := resp.Header.Get("Access-Control-Allow-Origin")
	if acao != "*" && acao != origin {
		return nil, nil
	}
	sev := finding.SeverityLow
	desc := "CORS allows arbitrary origins"
	if resp.Header.Get("Access-Control-Allow-Credentials") == "true" {
		sev = finding.SeverityMedium
		desc = "CORS allows arbitrary origins with credentials"
	}
	return &finding.Finding{
		Test:           d.Name,
		Category:       d.Category,
		Status:         finding.StatusVulnerable,
		Severity:       sev,
		URL:            target,
		Method:         http.MethodGet,
		Description:    desc,
		Evidence:       truncate("Access-Control-Allow-Origin: "+acao, defaults.MaxEvidenceLen),
		Recommendation: "Allow-list trusted origins; never reflect the request origin",
	}, nil
}

func (p *Misconfig) checkTrace(ctx context.Context, target string, headers map[string]string, d Descriptor) (*finding.Finding, error) {
	req, err := newRequest(ctx, "TRACE", target, headers, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	readBody(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}
	return &finding.Finding{
		Test:           d.Name,
		Category:       d.Category,
		Status:         finding.StatusVulnerable,
		Severity:       finding.SeverityLow,
		URL:            target,
		Method:         "TRACE",
		Description:    "TRACE method enabled",
		Evidence:       "TRACE -> 200",
		Recommendation: "Disable TRACE on API servers and intermediaries",
	}, nil
}
