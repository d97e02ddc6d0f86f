// Package config holds CLI and profile configuration for a scan.
package config

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/apivet/apivet/pkg/defaults"
)

// Duration wraps time.Duration so YAML profiles can say "30s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the underlying time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the resolved scan configuration: profile file values
// overridden by command-line flags.
type Config struct {
	Target  string            `yaml:"target"`
	Probes  []string          `yaml:"probes"`
	Headers map[string]string `yaml:"headers"`

	Concurrency  int      `yaml:"concurrency"`
	RateLimit    float64  `yaml:"rate_limit"`
	ProbeTimeout Duration `yaml:"probe_timeout"`

	Advisor      string `yaml:"advisor"`       // "", "openai", "anthropic"
	AdvisorModel string `yaml:"advisor_model"` // provider default when empty

	Format  string `yaml:"format"` // json, console, html, pdf
	Output  string `yaml:"output"` // file path; "-" or empty means stdout
	ShowAll bool   `yaml:"show_all"`

	MetricsPort  int    `yaml:"metrics_port"`  // 0 disables the Prometheus hook
	OTelEndpoint string `yaml:"otel_endpoint"` // "" disables the OTel hook

	Verbose bool `yaml:"verbose"`
	NoColor bool `yaml:"no_color"`
}

// headerFlag collects repeatable -H "Name: value" flags.
type headerFlag struct {
	headers map[string]string
}

func (h *headerFlag) String() string {
	var parts []string
	for k, v := range h.headers {
		parts = append(parts, k+": "+v)
	}
	return strings.Join(parts, "; ")
}

func (h *headerFlag) Set(value string) error {
	name, val, ok := strings.Cut(value, ":")
	if !ok {
		return fmt.Errorf("header must be 'Name: value', got %q", value)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("empty header name in %q", value)
	}
	if h.headers == nil {
		h.headers = make(map[string]string)
	}
	h.headers[name] = strings.TrimSpace(val)
	return nil
}

// Parse builds the configuration from command-line arguments. A profile
// given with -config is loaded first; explicit flags win over it.
func Parse(args []string) (*Config, error) {
	cfg := &Config{
		Concurrency:  defaults.Concurrency,
		RateLimit:    defaults.RateLimit,
		ProbeTimeout: Duration(defaults.ProbeTimeout),
		Format:       "console",
	}

	fs := flag.NewFlagSet(defaults.ToolName, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	configPath := fs.String("config", "", "YAML profile to load before flags")
	target := fs.String("u", "", "target base URL")
	probesCSV := fs.String("probes", "", "comma-separated probe names (default: all)")
	var hf headerFlag
	fs.Var(&hf, "H", "request header 'Name: value' (repeatable)")
	concurrency := fs.Int("c", 0, "worker pool size")
	rateLimit := fs.Float64("rate", 0, "max probe starts per second (negative disables)")
	probeTimeout := fs.Duration("timeout", 0, "per-probe timeout")
	adv := fs.String("advisor", "", "plan advisor provider (openai, anthropic)")
	advModel := fs.String("advisor-model", "", "override the advisor model")
	format := fs.String("format", "", "report format (console, json, html, pdf)")
	output := fs.String("o", "", "report file (default stdout)")
	showAll := fs.Bool("all", false, "include passed checks in console output")
	metricsPort := fs.Int("metrics-port", 0, "serve Prometheus metrics on this port")
	otelEndpoint := fs.String("otel", "", "OTLP gRPC endpoint for trace export")
	verbose := fs.Bool("v", false, "verbose logging")
	noColor := fs.Bool("no-color", false, "disable colored output")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *configPath != "" {
		if err := cfg.loadProfile(*configPath); err != nil {
			return nil, err
		}
	}

	if *target != "" {
		cfg.Target = *target
	}
	if *probesCSV != "" {
		cfg.Probes = splitCSV(*probesCSV)
	}
	if len(hf.headers) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string)
		}
		for k, v := range hf.headers {
			cfg.Headers[k] = v
		}
	}
	if *concurrency != 0 {
		cfg.Concurrency = *concurrency
	}
	if *rateLimit != 0 {
		cfg.RateLimit = *rateLimit
	}
	if *probeTimeout != 0 {
		cfg.ProbeTimeout = Duration(*probeTimeout)
	}
	if *adv != "" {
		cfg.Advisor = *adv
	}
	if *advModel != "" {
		cfg.AdvisorModel = *advModel
	}
	if *format != "" {
		cfg.Format = *format
	}
	if *output != "" {
		cfg.Output = *output
	}
	if *showAll {
		cfg.ShowAll = true
	}
	if *metricsPort != 0 {
		cfg.MetricsPort = *metricsPort
	}
	if *otelEndpoint != "" {
		cfg.OTelEndpoint = *otelEndpoint
	}
	if *verbose {
		cfg.Verbose = true
	}
	if *noColor {
		cfg.NoColor = true
	}

	cfg.Target = NormalizeTarget(cfg.Target)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadProfile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read profile: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse profile %s: %w", path, err)
	}
	return nil
}

// NormalizeTarget defaults the scheme to https and strips a trailing
// slash so probes can join paths uniformly.
func NormalizeTarget(target string) string {
	target = strings.TrimSpace(target)
	if target == "" {
		return ""
	}
	if !strings.Contains(target, "://") {
		target = "https://" + target
	}
	return strings.TrimRight(target, "/")
}

// Validate rejects configurations that cannot start a scan.
func (c *Config) Validate() error {
	if c.Target == "" {
		return fmt.Errorf("target is required (-u)")
	}
	u, err := url.Parse(c.Target)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid target URL: %s", c.Target)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("target scheme must be http or https: %s", c.Target)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	switch c.Advisor {
	case "", "openai", "anthropic":
	default:
		return fmt.Errorf("unknown advisor provider: %s", c.Advisor)
	}
	return nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
