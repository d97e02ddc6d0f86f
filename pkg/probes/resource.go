package probes

import (
	"context"
	"fmt"
	"net/http"

	"github.com/apivet/apivet/pkg/defaults"
	"github.com/apivet/apivet/pkg/finding"
	"github.com/apivet/apivet/pkg/httpclient"
)

// rateLimitHeaders are the headers a rate-limited API is expected to
// advertise on ordinary responses.
var rateLimitHeaders = []string{
	"X-RateLimit-Limit",
	"X-Rate-Limit-Limit",
	"RateLimit-Limit",
	"Retry-After",
}

// ResourceConsumption checks for Unrestricted Resource Consumption
// (API4:2023): absent rate limiting signals and unbounded page sizes.
type ResourceConsumption struct {
	client *http.Client

	// burst is the number of rapid requests used to look for throttling.
	// Small on purpose; the probe detects the absence of a policy, it
	// does not load-test the target.
	burst int
}

// NewResourceConsumption creates the probe. A nil client uses the shared default.
func NewResourceConsumption(client *http.Client) *ResourceConsumption {
	if client == nil {
		client = httpclient.Default()
	}
	return &ResourceConsumption{client: client, burst: 3}
}

func (p *ResourceConsumption) Descriptor() Descriptor {
	return Descriptor{
		Name:            "resource-consumption",
		Category:        "API4:2023",
		DefaultSeverity: finding.SeverityMedium,
		Description:     "Unrestricted Resource Consumption",
	}
}

func (p *ResourceConsumption) Execute(ctx context.Context, target string, headers map[string]string) ([]finding.Finding, error) {
	d := p.Descriptor()
	var out []finding.Finding

	throttled := false
	advertised := false
	for i := 0; i < p.burst; i++ {
		req, err := newRequest(ctx, http.MethodGet, target, headers, nil)
		if err != nil {
			return nil, err
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return nil, err
		}
		readBody(resp)

		if resp.StatusCode == http.StatusTooManyRequests {
			throttled = true
		}
		for _, h := range rateLimitHeaders {
			if resp.Header.Get(h) != "" {
				advertised = true
			}
		}
	}

	switch {
	case throttled:
		out = append(out, finding.Finding{
			Test:        d.Name,
			Category:    d.Category,
			Status:      finding.StatusPassed,
			URL:         target,
			Method:      http.MethodGet,
			Description: "Target throttles rapid requests (429 observed)",
		})
	case advertised:
		out = append(out, finding.Finding{
			Test:        d.Name,
			Category:    d.Category,
			Status:      finding.StatusPassed,
			URL:         target,
			Method:      http.MethodGet,
			Description: "Rate limit headers advertised on responses",
		})
	default:
		out = append(out, finding.Finding{
			Test:        d.Name,
			Category:    d.Category,
			Status:      finding.StatusVulnerable,
			Severity:    d.DefaultSeverity,
			URL:         target,
			Method:      http.MethodGet,
			Description: "No rate limiting signals observed on rapid consecutive requests",
			Evidence: truncate(fmt.Sprintf("%d requests answered without 429 or rate limit headers", p.burst),
				defaults.MaxEvidenceLen),
			Recommendation: "Apply request rate limits and advertise them via RateLimit headers",
		})
	}

	if f, err := p.checkUnboundedPaging(ctx, target, headers, d); err != nil {
		return nil, err
	} else if f != nil {
		out = append(out, *f)
	}

	return out, nil
}

// checkUnboundedPaging asks for an absurd page size; a 200 that echoes the
// limit back suggests the parameter is not clamped server-side.
func (p *ResourceConsumption) checkUnboundedPaging(ctx context.Context, target string, headers map[string]string, d Descriptor) (*finding.Finding, error) {
	const hugeLimit = "1000000"
	url := joinURL(target, "/api/users?limit="+hugeLimit)

	req, err := newRequest(ctx, http.MethodGet, url, headers, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	body := readBody(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}
	if !containsToken(body, hugeLimit) {
		return nil, nil
	}
	return &finding.Finding{
		Test:           d.Name,
		Category:       d.Category,
		Status:         finding.StatusInfo,
		URL:            url,
		Method:         http.MethodGet,
		Description:    "Collection endpoint appears to accept unbounded page size parameters",
		Evidence:       truncate("limit="+hugeLimit+" accepted with 200", defaults.MaxEvidenceLen),
		Recommendation: "Clamp pagination parameters to a server-side maximum",
	}, nil
}

func containsToken(body, token string) bool {
	for i := 0; i+len(token) <= len(body); i++ {
		if body[i:i+len(token)] == token {
			return true
		}
	}
	return false
}
