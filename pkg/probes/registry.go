package probes

import "net/http"

// DefaultRegistry returns the built-in OWASP API Top-10 probe pack in
// taxonomy order. All probes share the given HTTP client; nil selects
// the package default.
func DefaultRegistry(client *http.Client) *Registry {
	r := NewRegistry()
	r.Register(NewBOLA(client))
	r.Register(NewBrokenAuth(client))
	r.Register(NewPropertyAuth(client))
	r.Register(NewResourceConsumption(client))
	r.Register(NewFuncAuth(client))
	r.Register(NewSSRF(client))
	r.Register(NewMisconfig(client))
	r.Register(NewInventory(client))
	r.Register(NewInjection(client))
	return r
}
