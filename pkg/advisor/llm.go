package advisor

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/apivet/apivet/pkg/jsonutil"
)

// Provider identifies an LLM backend.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

const (
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultAnthropicModel = "claude-3-5-haiku-20241022"
	llmHTTPTimeout        = 60 * time.Second
)

const systemPrompt = "You are an API security scan coordinator. Given a target and the " +
	"available checks, reply with JSON only: " +
	`{"priority_order": ["check", ...], "rationale": "one sentence"}. ` +
	"Order checks so the likeliest critical weaknesses are tested first."

func userPrompt(target string, headers map[string]string, probeNames []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Target: %s\n", target)
	if len(headers) > 0 {
		fmt.Fprintf(&sb, "Authenticated: yes (%d headers supplied)\n", len(headers))
	} else {
		sb.WriteString("Authenticated: no\n")
	}
	fmt.Fprintf(&sb, "Available checks: %s\n", strings.Join(probeNames, ", "))
	sb.WriteString("Propose the execution order.")
	return sb.String()
}

// extractJSON pulls the first JSON object out of a model reply that may
// be wrapped in prose or a code fence.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// OpenAI asks the OpenAI chat completions API for a plan.
type OpenAI struct {
	APIKey     string
	Model      string
	BaseURL    string
	httpClient *http.Client
}

// NewOpenAI creates an OpenAI-backed advisor. An empty model selects
// the default.
func NewOpenAI(apiKey, model string) *OpenAI {
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{
		APIKey:     apiKey,
		Model:      model,
		BaseURL:    "https://api.openai.com/v1",
		httpClient: &http.Client{Timeout: llmHTTPTimeout},
	}
}

func (c *OpenAI) Name() string { return string(ProviderOpenAI) }

type openAIRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

func (c *OpenAI) Propose(ctx context.Context, target string, headers map[string]string, probeNames []string) (*Plan, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("%w: missing OpenAI API key", ErrUnavailable)
	}

	body, err := jsonutil.Marshal(openAIRequest{
		Model: c.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(target, headers, probeNames)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: openai status %d", ErrUnavailable, resp.StatusCode)
	}

	var parsed openAIResponse
	if err := jsonutil.UnmarshalRead(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion", ErrUnavailable)
	}
	return parsePlan(parsed.Choices[0].Message.Content, probeNames)
}

// Anthropic asks the Anthropic messages API for a plan.
type Anthropic struct {
	APIKey     string
	Model      string
	BaseURL    string
	httpClient *http.Client
}

// NewAnthropic creates an Anthropic-backed advisor. An empty model
// selects the default.
func NewAnthropic(apiKey, model string) *Anthropic {
	if model == "" {
		model = defaultAnthropicModel
	}
	return &Anthropic{
		APIKey:     apiKey,
		Model:      model,
		BaseURL:    "https://api.anthropic.com/v1",
		httpClient: &http.Client{Timeout: llmHTTPTimeout},
	}
}

func (c *Anthropic) Name() string { return string(ProviderAnthropic) }

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (c *Anthropic) Propose(ctx context.Context, target string, headers map[string]string, probeNames []string) (*Plan, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("%w: missing Anthropic API key", ErrUnavailable)
	}

	body, err := jsonutil.Marshal(anthropicRequest{
		Model:     c.Model,
		MaxTokens: 512,
		System:    systemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: userPrompt(target, headers, probeNames)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: anthropic status %d", ErrUnavailable, resp.StatusCode)
	}

	var parsed anthropicResponse
	if err := jsonutil.UnmarshalRead(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(parsed.Content) == 0 {
		return nil, fmt.Errorf("%w: empty completion", ErrUnavailable)
	}
	return parsePlan(parsed.Content[0].Text, probeNames)
}

func parsePlan(reply string, probeNames []string) (*Plan, error) {
	raw := extractJSON(reply)
	if raw == "" {
		return nil, fmt.Errorf("%w: no JSON in model reply", ErrUnavailable)
	}
	var plan Plan
	if err := jsonutil.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, fmt.Errorf("%w: malformed plan: %v", ErrUnavailable, err)
	}
	plan2 := sanitizePlan(&plan, probeNames)
	if len(plan2.PriorityOrder) == 0 {
		return nil, fmt.Errorf("%w: plan names no known checks", ErrUnavailable)
	}
	return plan2, nil
}

// NewFromEnv builds an advisor for the named provider, or nil when
// provider is empty.
func NewFromEnv(provider Provider, apiKey, model string) (Advisor, error) {
	switch provider {
	case "":
		return nil, nil
	case ProviderOpenAI:
		return NewOpenAI(apiKey, model), nil
	case ProviderAnthropic:
		return NewAnthropic(apiKey, model), nil
	default:
		return nil, fmt.Errorf("unknown advisor provider: %s", provider)
	}
}
