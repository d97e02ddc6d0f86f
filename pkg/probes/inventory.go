package probes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spaolacci/murmur3"

	"github.com/apivet/apivet/pkg/defaults"
	"github.com/apivet/apivet/pkg/finding"
	"github.com/apivet/apivet/pkg/httpclient"
)

// docPaths are publicly reachable API documentation locations.
var docPaths = []string{
	"/api-docs",
	"/swagger.json",
	"/swagger/v1/swagger.json",
	"/openapi.json",
	"/v2/api-docs",
	"/graphql",
}

// versionPaths reveal version sprawl when several generations answer.
var versionPaths = []string{"/api/v1", "/api/v2", "/api/v3", "/v1", "/v2"}

// Inventory checks for Improper Inventory Management (API9:2023): exposed
// documentation, stale API generations, and fingerprintable assets.
type Inventory struct {
	client *http.Client
}

// NewInventory creates the probe. A nil client uses the shared default.
func NewInventory(client *http.Client) *Inventory {
	if client == nil {
		client = httpclient.Default()
	}
	return &Inventory{client: client}
}

func (p *Inventory) Descriptor() Descriptor {
	return Descriptor{
		Name:            "inventory",
		Category:        "API9:2023",
		DefaultSeverity: finding.SeverityMedium,
		Description:     "Improper Inventory Management",
	}
}

func (p *Inventory) Execute(ctx context.Context, target string, headers map[string]string) ([]finding.Finding, error) {
	d := p.Descriptor()
	var out []finding.Finding

	for _, path := range docPaths {
		url := joinURL(target, path)
		body, status, err := p.get(ctx, url, headers)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK || !looksLikeAPIDoc(body) {
			continue
		}
		out = append(out, finding.Finding{
			Test:           d.Name,
			Category:       d.Category,
			Status:         finding.StatusVulnerable,
			Severity:       d.DefaultSeverity,
			URL:            url,
			Method:         http.MethodGet,
			Description:    "API documentation publicly accessible",
			Evidence:       truncate(fmt.Sprintf("%s -> 200 (%d bytes)", path, len(body)), defaults.MaxEvidenceLen),
			Recommendation: "Restrict documentation endpoints in production environments",
		})
	}

	var generations []string
	for _, path := range versionPaths {
		_, status, err := p.get(ctx, joinURL(target, path), headers)
		if err != nil {
			return nil, err
		}
		if status == http.StatusOK {
			generations = append(generations, path)
		}
	}
	if len(generations) > 1 {
		out = append(out, finding.Finding{
			Test:           d.Name,
			Category:       d.Category,
			Status:         finding.StatusInfo,
			URL:            target,
			Method:         http.MethodGet,
			Description:    "Multiple API generations answer requests",
			Evidence:       truncate(strings.Join(generations, ", "), defaults.MaxEvidenceLen),
			Recommendation: "Retire or gate superseded API versions",
		})
	}

	if f, err := p.fingerprintFavicon(ctx, target, headers, d); err != nil {
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
			Description: "No exposed documentation or version sprawl detected",
		})
	}
	return out, nil
}

// fingerprintFavicon hashes the favicon with murmur3, the convention used
// by shodan-style framework fingerprint databases. The hash is reported
// as inventory evidence, not matched against any database here.
func (p *Inventory) fingerprintFavicon(ctx context.Context, target string, headers map[string]string, d Descriptor) (*finding.Finding, error) {
	url := joinURL(target, "/favicon.ico")
	req, err := newRequest(ctx, http.MethodGet, url, headers, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, nil
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, defaults.MaxBodySample))
	if err != nil || len(raw) == 0 {
		return nil, nil
	}

	hash := int32(murmur3.Sum32(raw))
	return &finding.Finding{
		Test:           d.Name,
		Category:       d.Category,
		Status:         finding.StatusInfo,
		URL:            url,
		Method:         http.MethodGet,
		Description:    "Favicon served; framework fingerprintable by favicon hash",
		Evidence:       fmt.Sprintf("mmh3: %d", hash),
		Recommendation: "Serve a neutral favicon or none on API hosts",
	}, nil
}

func (p *Inventory) get(ctx context.Context, url string, headers map[string]string) (string, int, error) {
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

func looksLikeAPIDoc(body string) bool {
	lower := strings.ToLower(body)
	for _, marker := range []string{"swagger", "openapi", "\"paths\"", "graphql"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
