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

// weakCredentials are the classic default pairs tried against a login
// endpoint. Three attempts keeps the probe detection-safe: it tests the
// policy, it does not brute-force.
var weakCredentials = []struct{ user, pass string }{
	{"admin", "password"},
	{"admin", "123456"},
	{"admin", "admin"},
}

var loginPaths = []string{"/api/login", "/login", "/api/auth/login", "/api/v1/login"}

// BrokenAuth checks for Broken Authentication (API2:2023): weak default
// credentials accepted at login, and authenticated resources served
// identically without credentials.
type BrokenAuth struct {
	client *http.Client
}

// NewBrokenAuth creates the probe. A nil client uses the shared default.
func NewBrokenAuth(client *http.Client) *BrokenAuth {
	if client == nil {
		client = httpclient.Default()
	}
	return &BrokenAuth{client: client}
}

func (p *BrokenAuth) Descriptor() Descriptor {
	return Descriptor{
		Name:            "broken-auth",
		Category:        "API2:2023",
		DefaultSeverity: finding.SeverityCritical,
		Description:     "Broken Authentication",
	}
}

func (p *BrokenAuth) Execute(ctx context.Context, target string, headers map[string]string) ([]finding.Finding, error) {
	d := p.Descriptor()
	var out []finding.Finding

	if f, err := p.checkWeakCredentials(ctx, target, headers, d); err != nil {
		return nil, err
	} else if f != nil {
		out = append(out, *f)
	}

	if f, err := p.checkMissingEnforcement(ctx, target, headers, d); err != nil {
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
			Description: "Authentication appears to be enforced; weak default credentials rejected",
		})
	}
	return out, nil
}

// checkWeakCredentials posts default credential pairs to discovered login
// endpoints; a 2xx response carrying a token marks the endpoint vulnerable.
func (p *BrokenAuth) checkWeakCredentials(ctx context.Context, target string, headers map[string]string, d Descriptor) (*finding.Finding, error) {
	for _, path := range loginPaths {
		url := joinURL(target, path)
		for _, cred := range weakCredentials {
			body := fmt.Sprintf(`{"username":%q,"password":%q}`, cred.user, cred.pass)
			req, err := newRequest(ctx, http.MethodPost, url, headers, strings.NewReader(body))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := p.client.Do(req)
			if err != nil {
				return nil, err
			}
			respBody := readBody(resp)

			if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusMethodNotAllowed {
				break // endpoint shape doesn't exist, try the next path
			}
			if resp.StatusCode < 300 && strings.Contains(strings.ToLower(respBody), "token") {
				return &finding.Finding{
					Test:        d.Name,
					Category:    d.Category,
					Status:      finding.StatusVulnerable,
					Severity:    finding.SeverityCritical,
					URL:         url,
					Method:      http.MethodPost,
					Description: "Login endpoint accepts weak default credentials",
					Evidence: truncate(fmt.Sprintf("%s/%s accepted with status %d",
						cred.user, cred.pass, resp.StatusCode), defaults.MaxEvidenceLen),
					Recommendation: "Enforce password policy, lockouts, and credential stuffing protections",
				}, nil
			}
		}
	}
	return nil, nil
}

// checkMissingEnforcement re-requests the target without its credential
// headers. If the caller supplied credentials and the anonymous response
// is also 2xx, authentication is decorative.
func (p *BrokenAuth) checkMissingEnforcement(ctx context.Context, target string, headers map[string]string, d Descriptor) (*finding.Finding, error) {
	anon := stripAuth(headers)
	if len(anon) == len(headers) {
		return nil, nil // no credentials supplied, nothing to compare
	}

	status := func(h map[string]string) (int, error) {
		req, err := newRequest(ctx, http.MethodGet, target, h, nil)
		if err != nil {
			return 0, err
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return 0, err
		}
		readBody(resp)
		return resp.StatusCode, nil
	}

	withAuth, err := status(headers)
	if err != nil {
		return nil, err
	}
	withoutAuth, err := status(anon)
	if err != nil {
		return nil, err
	}

	if withAuth < 300 && withoutAuth < 300 {
		return &finding.Finding{
			Test:        d.Name,
			Category:    d.Category,
			Status:      finding.StatusVulnerable,
			Severity:    finding.SeverityHigh,
			URL:         target,
			Method:      http.MethodGet,
			Description: "Target serves the same resource with and without the supplied credentials",
			Evidence: truncate(fmt.Sprintf("authenticated -> %d, anonymous -> %d",
				withAuth, withoutAuth), defaults.MaxEvidenceLen),
			Recommendation: "Require and validate credentials on every request to protected resources",
		}, nil
	}
	return nil, nil
}
