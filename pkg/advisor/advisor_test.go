package advisor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apivet/apivet/pkg/probes"
)

var allProbes = []string{
	"bola", "broken-auth", "property-auth", "resource-consumption",
	"func-auth", "ssrf", "misconfig", "inventory", "injection",
}

func TestHeuristicOrdersBySeverity(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(probes.DefaultRegistry(nil))
	plan, err := h.Propose(context.Background(), "http://t", nil, allProbes)
	require.NoError(t, err)
	require.Len(t, plan.PriorityOrder, len(allProbes))

	// CRITICAL defaults first, then HIGH in registry order.
	assert.Equal(t, "broken-auth", plan.PriorityOrder[0])
	assert.Equal(t, "injection", plan.PriorityOrder[1])
	assert.Equal(t, "bola", plan.PriorityOrder[2])
	assert.Equal(t, "misconfig", plan.PriorityOrder[len(plan.PriorityOrder)-1])
}

func TestHeuristicUnknownNamesKeepPosition(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(probes.DefaultRegistry(nil))
	plan, err := h.Propose(context.Background(), "http://t", nil, []string{"mystery", "injection"})
	require.NoError(t, err)
	assert.Equal(t, []string{"injection", "mystery"}, plan.PriorityOrder)
}

func TestOpenAIPropose(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "/chat/completions", r.URL.Path)
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":
			"Here is the plan:\n{\"priority_order\": [\"broken-auth\", \"bola\", \"made-up\"], \"rationale\": \"auth first\"}"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAI("test-key", "")
	c.BaseURL = srv.URL

	plan, err := c.Propose(context.Background(), "http://t", nil, allProbes)
	require.NoError(t, err)
	assert.Equal(t, []string{"broken-auth", "bola"}, plan.PriorityOrder)
	assert.Equal(t, "auth first", plan.Rationale)
}

func TestAnthropicPropose(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.NotEmpty(t, r.Header.Get("anthropic-version"))
		w.Write([]byte(`{"content":[{"text":"{\"priority_order\":[\"ssrf\",\"ssrf\",\"injection\"]}"}]}`))
	}))
	defer srv.Close()

	c := NewAnthropic("test-key", "")
	c.BaseURL = srv.URL

	plan, err := c.Propose(context.Background(), "http://t", nil, allProbes)
	require.NoError(t, err)
	assert.Equal(t, []string{"ssrf", "injection"}, plan.PriorityOrder) // deduplicated
}

func TestProposeUnavailableOnServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewOpenAI("test-key", "")
	c.BaseURL = srv.URL

	_, err := c.Propose(context.Background(), "http://t", nil, allProbes)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestProposeUnavailableWithoutKey(t *testing.T) {
	t.Parallel()

	_, err := NewOpenAI("", "").Propose(context.Background(), "http://t", nil, allProbes)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = NewAnthropic("", "").Propose(context.Background(), "http://t", nil, allProbes)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestProposeUnavailableOnGarbageReply(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"I cannot help with that."}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAI("test-key", "")
	c.BaseURL = srv.URL

	_, err := c.Propose(context.Background(), "http://t", nil, allProbes)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNewFromEnv(t *testing.T) {
	t.Parallel()

	a, err := NewFromEnv("", "", "")
	require.NoError(t, err)
	assert.Nil(t, a)

	a, err = NewFromEnv(ProviderOpenAI, "k", "")
	require.NoError(t, err)
	assert.Equal(t, "openai", a.Name())

	_, err = NewFromEnv("cohere", "k", "")
	assert.Error(t, err)
}
