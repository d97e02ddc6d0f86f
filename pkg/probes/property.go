package probes

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/apivet/apivet/pkg/defaults"
	"github.com/apivet/apivet/pkg/finding"
	"github.com/apivet/apivet/pkg/httpclient"
	"github.com/apivet/apivet/pkg/jsonutil"
)

// sensitiveKeys are response fields that indicate excessive data exposure
// when returned to an unprivileged caller.
var sensitiveKeys = []string{
	"password", "password_hash", "ssn", "secret", "api_key", "apikey",
	"token", "credit_card", "balance", "is_admin", "isadmin", "role",
}

// restrictedProperties are fields a client should never be able to set;
// the probe offers them on a create call and checks whether they are
// echoed back honored (mass assignment).
var restrictedProperties = map[string]any{
	"role":    "admin",
	"isAdmin": true,
	"balance": 9999,
}

// PropertyAuth checks for Broken Object Property Level Authorization
// (API3:2023): sensitive fields leaking out, and restricted fields
// writable by the client.
type PropertyAuth struct {
	client *http.Client
}

// NewPropertyAuth creates the probe. A nil client uses the shared default.
func NewPropertyAuth(client *http.Client) *PropertyAuth {
	if client == nil {
		client = httpclient.Default()
	}
	return &PropertyAuth{client: client}
}

func (p *PropertyAuth) Descriptor() Descriptor {
	return Descriptor{
		Name:            "property-auth",
		Category:        "API3:2023",
		DefaultSeverity: finding.SeverityMedium,
		Description:     "Broken Object Property Level Authorization",
	}
}

func (p *PropertyAuth) Execute(ctx context.Context, target string, headers map[string]string) ([]finding.Finding, error) {
	d := p.Descriptor()
	var out []finding.Finding

	if f, err := p.checkExposure(ctx, target, headers, d); err != nil {
		return nil, err
	} else if f != nil {
		out = append(out, *f)
	}

	if f, err := p.checkMassAssignment(ctx, target, headers, d); err != nil {
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
			Description: "No sensitive property exposure or mass assignment detected",
		})
	}
	return out, nil
}

func (p *PropertyAuth) checkExposure(ctx context.Context, target string, headers map[string]string, d Descriptor) (*finding.Finding, error) {
	for _, path := range []string{"", "/api/user/1", "/api/users/1"} {
		url := target
		if path != "" {
			url = joinURL(target, path)
		}
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
			continue
		}

		leaked := sensitiveKeysIn(body)
		if len(leaked) == 0 {
			continue
		}
		return &finding.Finding{
			Test:           d.Name,
			Category:       d.Category,
			Status:         finding.StatusVulnerable,
			Severity:       d.DefaultSeverity,
			URL:            url,
			Method:         http.MethodGet,
			Description:    "Response exposes sensitive object properties",
			Evidence:       truncate("fields: "+strings.Join(leaked, ", "), defaults.MaxEvidenceLen),
			Recommendation: "Return explicit response schemas; never serialize internal models directly",
		}, nil
	}
	return nil, nil
}

func (p *PropertyAuth) checkMassAssignment(ctx context.Context, target string, headers map[string]string, d Descriptor) (*finding.Finding, error) {
	payload := map[string]any{"name": "probe", "email": "probe@example.com"}
	for k, v := range restrictedProperties {
		payload[k] = v
	}
	body, err := jsonutil.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := joinURL(target, "/api/users")
	req, err := newRequest(ctx, http.MethodPost, url, headers, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	respBody := readBody(resp)
	if resp.StatusCode >= 300 {
		return nil, nil
	}

	var echoed map[string]any
	if err := jsonutil.Unmarshal([]byte(respBody), &echoed); err != nil {
		return nil, nil // not a JSON echo, inconclusive
	}

	var honored []string
	for k, want := range restrictedProperties {
		if got, ok := echoed[k]; ok && fmt.Sprint(got) == fmt.Sprint(want) {
			honored = append(honored, k)
		}
	}
	if len(honored) == 0 {
		return nil, nil
	}
	sort.Strings(honored)

	return &finding.Finding{
		Test:           d.Name,
		Category:       d.Category,
		Status:         finding.StatusVulnerable,
		Severity:       finding.SeverityHigh,
		URL:            url,
		Method:         http.MethodPost,
		Description:    "Create endpoint honors client-supplied restricted properties (mass assignment)",
		Evidence:       truncate("accepted: "+strings.Join(honored, ", "), defaults.MaxEvidenceLen),
		Recommendation: "Bind request bodies to allow-listed input schemas, not storage models",
	}, nil
}

func sensitiveKeysIn(body string) []string {
	lower := strings.ToLower(body)
	var leaked []string
	for _, key := range sensitiveKeys {
		if strings.Contains(lower, `"`+key+`"`) {
			leaked = append(leaked, key)
		}
	}
	return leaked
}
