package probes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/apivet/apivet/pkg/finding"
)

// vulnerableHandler mimics a deliberately weak API: open admin panel,
// anonymous object access, weak login, mass assignment, leaky search.
func vulnerableHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/user/1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"1","name":"Alice","balance":100}`))
	})
	mux.HandleFunc("/api/user/2", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"2","name":"Bob","balance":200}`))
	})
	mux.HandleFunc("/api/admin", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"Admin panel","sensitive_data":"oops"}`))
	})
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token":"abc123"}`))
	})
	mux.HandleFunc("/api/search", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if strings.ContainsAny(q, `'"`) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"SQL syntax error near '` + q + `'"}`))
			return
		}
		w.Write([]byte(`{"results":[]}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"ok"}`))
	})
	return mux
}

// hardenedHandler answers 401 everywhere and sets security headers.
func hardenedHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Strict-Transport-Security", "max-age=63072000")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("X-RateLimit-Limit", "100")
		w.WriteHeader(http.StatusUnauthorized)
	})
}

func TestRegistryOrderAndLookup(t *testing.T) {
	t.Parallel()

	r := DefaultRegistry(nil)
	names := r.Names()
	if len(names) != 9 {
		t.Fatalf("Len = %d, want 9", len(names))
	}
	if names[0] != "bola" || names[len(names)-1] != "injection" {
		t.Errorf("registration order not preserved: %v", names)
	}
	if _, ok := r.Get("injection"); !ok {
		t.Error("Get(injection) failed")
	}
	if r.Has("no-such-probe") {
		t.Error("Has(no-such-probe) = true")
	}
}

func TestRegistryReregisterKeepsPosition(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(NewBOLA(nil))
	r.Register(NewInjection(nil))
	r.Register(NewBOLA(nil)) // replace, not append
	if got := r.Names(); len(got) != 2 || got[0] != "bola" {
		t.Errorf("Names = %v, want [bola injection]", got)
	}
}

func TestBOLADetectsAnonymousObjectAccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(vulnerableHandler())
	defer srv.Close()

	got, err := NewBOLA(srv.Client()).Execute(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !hasStatus(got, finding.StatusVulnerable) {
		t.Errorf("expected VULNERABLE finding, got %+v", got)
	}
}

func TestBrokenAuthDetectsWeakLogin(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(vulnerableHandler())
	defer srv.Close()

	got, err := NewBrokenAuth(srv.Client()).Execute(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	f := firstWithStatus(got, finding.StatusVulnerable)
	if f == nil {
		t.Fatalf("expected VULNERABLE finding, got %+v", got)
	}
	if f.Severity != finding.SeverityCritical {
		t.Errorf("Severity = %s, want CRITICAL", f.Severity)
	}
}

func TestInjectionDetectsLeakedSQLError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(vulnerableHandler())
	defer srv.Close()

	got, err := NewInjection(srv.Client()).Execute(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !hasStatus(got, finding.StatusVulnerable) {
		t.Errorf("expected VULNERABLE finding, got %+v", got)
	}
}

func TestMisconfigReportsMissingHeaders(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(vulnerableHandler())
	defer srv.Close()

	got, err := NewMisconfig(srv.Client()).Execute(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	f := firstWithStatus(got, finding.StatusVulnerable)
	if f == nil {
		t.Fatal("expected VULNERABLE finding for missing headers")
	}
	if !strings.Contains(f.Evidence, "X-Content-Type-Options") {
		t.Errorf("Evidence = %q, want missing header list", f.Evidence)
	}
}

func TestProbesPassAgainstHardenedTarget(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(hardenedHandler())
	defer srv.Close()

	for _, name := range []string{"bola", "broken-auth", "func-auth", "injection"} {
		p, ok := DefaultRegistry(srv.Client()).Get(name)
		if !ok {
			t.Fatalf("probe %s missing", name)
		}
		got, err := p.Execute(context.Background(), srv.URL, nil)
		if err != nil {
			t.Fatalf("%s: Execute: %v", name, err)
		}
		if hasStatus(got, finding.StatusVulnerable) {
			t.Errorf("%s: unexpected VULNERABLE against hardened target: %+v", name, got)
		}
		if len(got) == 0 {
			t.Errorf("%s: no findings; probes must report PASSED explicitly", name)
		}
	}
}

func TestAllFindingsSatisfyInvariants(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(vulnerableHandler())
	defer srv.Close()

	for _, d := range DefaultRegistry(srv.Client()).Descriptors() {
		p, _ := DefaultRegistry(srv.Client()).Get(d.Name)
		got, err := p.Execute(context.Background(), srv.URL, map[string]string{"Authorization": "Bearer x"})
		if err != nil {
			t.Fatalf("%s: Execute: %v", d.Name, err)
		}
		for _, f := range got {
			if err := f.Validate(); err != nil {
				t.Errorf("%s: invalid finding: %v", d.Name, err)
			}
		}
	}
}

func hasStatus(fs []finding.Finding, s finding.Status) bool {
	return firstWithStatus(fs, s) != nil
}

func firstWithStatus(fs []finding.Finding, s finding.Status) *finding.Finding {
	for i := range fs {
		if fs[i].Status == s {
			return &fs[i]
		}
	}
	return nil
}
