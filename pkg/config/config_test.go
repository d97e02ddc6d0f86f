package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apivet/apivet/pkg/defaults"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]string{"-u", "http://api.example"})
	require.NoError(t, err)

	assert.Equal(t, "http://api.example", cfg.Target)
	assert.Equal(t, defaults.Concurrency, cfg.Concurrency)
	assert.Equal(t, float64(defaults.RateLimit), cfg.RateLimit)
	assert.Equal(t, defaults.ProbeTimeout, cfg.ProbeTimeout.Std())
	assert.Equal(t, "console", cfg.Format)
	assert.Empty(t, cfg.Probes)
}

func TestParseSchemeDefaulting(t *testing.T) {
	cfg, err := Parse([]string{"-u", "api.example/"})
	require.NoError(t, err)
	assert.Equal(t, "https://api.example", cfg.Target)
}

func TestParseRepeatableHeaders(t *testing.T) {
	cfg, err := Parse([]string{
		"-u", "http://api.example",
		"-H", "Authorization: Bearer tok",
		"-H", "X-Api-Key:secret",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"Authorization": "Bearer tok",
		"X-Api-Key":     "secret",
	}, cfg.Headers)
}

func TestParseBadHeader(t *testing.T) {
	_, err := Parse([]string{"-u", "http://api.example", "-H", "NotAHeader"})
	assert.Error(t, err)
}

func TestParseProbeSelection(t *testing.T) {
	cfg, err := Parse([]string{"-u", "http://api.example", "-probes", "bola, injection ,"})
	require.NoError(t, err)
	assert.Equal(t, []string{"bola", "injection"}, cfg.Probes)
}

func TestParseProfileWithFlagOverride(t *testing.T) {
	profile := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(profile, []byte(`
target: http://from-profile.example
concurrency: 8
probe_timeout: 5s
format: json
headers:
  X-Env: staging
`), 0o644))

	cfg, err := Parse([]string{"-config", profile, "-u", "http://from-flag.example"})
	require.NoError(t, err)

	assert.Equal(t, "http://from-flag.example", cfg.Target)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, 5*time.Second, cfg.ProbeTimeout.Std())
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "staging", cfg.Headers["X-Env"])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing target", []string{}, "target is required"},
		{"bad scheme", []string{"-u", "ftp://api.example"}, "scheme"},
		{"bad advisor", []string{"-u", "http://api.example", "-advisor", "cohere"}, "advisor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNormalizeTarget(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"api.example", "https://api.example"},
		{"http://api.example/", "http://api.example"},
		{" api.example/base/ ", "https://api.example/base"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeTarget(tt.in), tt.in)
	}
}
