package probes

import (
	"context"
	"fmt"
	"net/http"

	"github.com/apivet/apivet/pkg/defaults"
	"github.com/apivet/apivet/pkg/finding"
	"github.com/apivet/apivet/pkg/httpclient"
)

// objectPaths are common object-by-identifier endpoint shapes. The probe
// requests two adjacent identifiers anonymously; distinct 200 responses
// for both mean object-level authorization is not enforced.
var objectPaths = []string{
	"/api/user/%s",
	"/api/users/%s",
	"/users/%s",
	"/api/v1/users/%s",
	"/api/orders/%s",
	"/api/accounts/%s",
}

// BOLA checks for Broken Object Level Authorization (API1:2023).
type BOLA struct {
	client *http.Client
}

// NewBOLA creates the probe. A nil client uses the shared default.
func NewBOLA(client *http.Client) *BOLA {
	if client == nil {
		client = httpclient.Default()
	}
	return &BOLA{client: client}
}

func (p *BOLA) Descriptor() Descriptor {
	return Descriptor{
		Name:            "bola",
		Category:        "API1:2023",
		DefaultSeverity: finding.SeverityHigh,
		Description:     "Broken Object Level Authorization",
	}
}

func (p *BOLA) Execute(ctx context.Context, target string, headers map[string]string) ([]finding.Finding, error) {
	d := p.Descriptor()
	anon := stripAuth(headers)

	var out []finding.Finding
	for _, pattern := range objectPaths {
		urlA := joinURL(target, fmt.Sprintf(pattern, "1"))
		urlB := joinURL(target, fmt.Sprintf(pattern, "2"))

		bodyA, statusA, err := p.get(ctx, urlA, anon)
		if err != nil {
			return nil, err
		}
		if statusA != http.StatusOK {
			continue
		}
		bodyB, statusB, err := p.get(ctx, urlB, anon)
		if err != nil {
			return nil, err
		}
		if statusB != http.StatusOK || bodyA == bodyB {
			continue
		}

		out = append(out, finding.Finding{
			Test:        d.Name,
			Category:    d.Category,
			Status:      finding.StatusVulnerable,
			Severity:    d.DefaultSeverity,
			URL:         urlB,
			Method:      http.MethodGet,
			Description: "Object endpoint returns distinct records for arbitrary identifiers without authorization",
			Evidence: truncate(fmt.Sprintf("GET id=1 -> %d, GET id=2 -> %d with different bodies",
				statusA, statusB), defaults.MaxEvidenceLen),
			Recommendation: "Enforce per-object authorization checks tied to the authenticated principal",
		})
	}

	if len(out) == 0 {
		out = append(out, finding.Finding{
			Test:        d.Name,
			Category:    d.Category,
			Status:      finding.StatusPassed,
			URL:         target,
			Method:      http.MethodGet,
			Description: "No anonymously enumerable object endpoints detected",
		})
	}
	return out, nil
}

func (p *BOLA) get(ctx context.Context, url string, headers map[string]string) (string, int, error) {
	req, err := newRequest(ctx, http.MethodGet, url, headers, nil)
	if err != nil {
		return "", 0, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	return readBody(resp), resp.StatusCode, nil
}
