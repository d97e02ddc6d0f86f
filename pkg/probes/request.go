package probes

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/apivet/apivet/pkg/defaults"
)

// newRequest builds a request carrying the configured headers and the
// scanner User-Agent. Caller-supplied headers win over defaults.
func newRequest(ctx context.Context, method, rawURL string, headers map[string]string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", defaults.UserAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// readBody drains up to defaults.MaxBodySample bytes of a response body
// and closes it, so the connection can be reused.
func readBody(resp *http.Response) string {
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, defaults.MaxBodySample))
	// Drain any remainder so keep-alive connections return to the pool.
	_, _ = io.Copy(io.Discard, resp.Body)
	return string(b)
}

// joinURL appends a path (which may carry a query string) to the target
// base URL.
func joinURL(target, path string) string {
	u, err := url.Parse(target)
	if err != nil {
		return strings.TrimRight(target, "/") + path
	}
	base := strings.TrimRight(u.Path, "/")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		u.Path = base + path[:i]
		u.RawQuery = path[i+1:]
	} else {
		u.Path = base + path
		u.RawQuery = ""
	}
	return u.String()
}

// truncate clamps s for use as display evidence.
func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// stripAuth returns a copy of headers without credential-bearing entries.
// Several probes re-issue requests anonymously to test enforcement.
func stripAuth(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		switch http.CanonicalHeaderKey(k) {
		case "Authorization", "Cookie", "X-Api-Key":
			continue
		}
		out[k] = v
	}
	return out
}
