package probes

import (
	"context"
	"fmt"
	"net/http"

	"github.com/apivet/apivet/pkg/defaults"
	"github.com/apivet/apivet/pkg/finding"
	"github.com/apivet/apivet/pkg/httpclient"
)

// adminPaths are administrative surfaces that must never answer an
// anonymous request with content.
var adminPaths = []string{
	"/api/admin",
	"/admin",
	"/api/admin/users",
	"/api/users/all",
	"/api/config",
	"/api/internal",
	"/management",
	"/actuator",
}

// FuncAuth checks for Broken Function Level Authorization (API5:2023):
// administrative functions reachable without privilege.
type FuncAuth struct {
	client *http.Client
}

// NewFuncAuth creates the probe. A nil client uses the shared default.
func NewFuncAuth(client *http.Client) *FuncAuth {
	if client == nil {
		client = httpclient.Default()
	}
	return &FuncAuth{client: client}
}

func (p *FuncAuth) Descriptor() Descriptor {
	return Descriptor{
		Name:            "func-auth",
		Category:        "API5:2023",
		DefaultSeverity: finding.SeverityHigh,
		Description:     "Broken Function Level Authorization",
	}
}

func (p *FuncAuth) Execute(ctx context.Context, target string, headers map[string]string) ([]finding.Finding, error) {
	d := p.Descriptor()
	anon := stripAuth(headers)

	var out []finding.Finding
	for _, path := range adminPaths {
		url := joinURL(target, path)
		req, err := newRequest(ctx, http.MethodGet, url, anon, nil)
		if err != nil {
			return nil, err
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return nil, err
		}
		body := readBody(resp)

		if resp.StatusCode != http.StatusOK || len(body) == 0 {
			continue
		}
		out = append(out, finding.Finding{
			Test:           d.Name,
			Category:       d.Category,
			Status:         finding.StatusVulnerable,
			Severity:       d.DefaultSeverity,
			URL:            url,
			Method:         http.MethodGet,
			Description:    "Administrative endpoint responds to anonymous requests",
			Evidence:       truncate(fmt.Sprintf("%s -> 200 (%d bytes)", path, len(body)), defaults.MaxEvidenceLen),
			Recommendation: "Gate administrative functions behind role checks, not obscurity",
		})
	}

	if len(out) == 0 {
		out = append(out, finding.Finding{
			Test:        d.Name,
			Category:    d.Category,
			Status:      finding.StatusPassed,
			URL:         target,
			Method:      http.MethodGet,
			Description: "No anonymously reachable administrative endpoints detected",
		})
	}
	return out, nil
}
