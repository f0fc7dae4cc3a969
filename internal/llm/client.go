// Package llm provides chat-completion clients for the language models used
// by query translation and result interpretation.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Provider names accepted in configuration.
const (
	ProviderOpenAI = "openai"
	ProviderQwen   = "qwen"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	qwenEndpoint         = "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"
	requestTimeout       = 30 * time.Second
)

// Config selects and parameterizes a provider.
type Config struct {
	Provider    string  `koanf:"provider"`
	APIKey      string  `koanf:"api_key"`
	BaseURL     string  `koanf:"base_url"`
	Model       string  `koanf:"model"`
	Temperature float64 `koanf:"temperature"`
	MaxTokens   int     `koanf:"max_tokens"`
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client produces one completion for a system/user prompt pair.
type Client interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

// New builds the client for the configured provider.
func New(cfg Config) (Client, error) {
	httpClient := &http.Client{Timeout: requestTimeout}
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		return &openAIClient{cfg: cfg, http: httpClient}, nil
	case ProviderQwen:
		return &qwenClient{cfg: cfg, http: httpClient}, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q (supported: openai, qwen)", cfg.Provider)
	}
}

// openAIClient speaks the OpenAI chat-completions protocol. It also covers
// any compatible gateway via cfg.BaseURL.
type openAIClient struct {
	cfg  Config
	http *http.Client
}

type openAIRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type openAIResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

func (c *openAIClient) Chat(ctx context.Context, system, user string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("llm api key is not configured")
	}
	base := c.cfg.BaseURL
	if base == "" {
		base = defaultOpenAIBaseURL
	}

	body := openAIRequest{
		Model: c.cfg.Model,
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}

	var resp openAIResponse
	if err := postJSON(ctx, c.http, strings.TrimSuffix(base, "/")+"/chat/completions", c.cfg.APIKey, body, &resp); err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai response contained no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// qwenClient speaks the DashScope text-generation protocol, which wraps the
// messages in an input/parameters envelope.
type qwenClient struct {
	cfg  Config
	http *http.Client
}

type qwenRequest struct {
	Model string `json:"model"`
	Input struct {
		Messages []Message `json:"messages"`
	} `json:"input"`
	Parameters struct {
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
	} `json:"parameters"`
}

type qwenResponse struct {
	Output struct {
		Choices []struct {
			Message Message `json:"message"`
		} `json:"choices"`
	} `json:"output"`
}

func (c *qwenClient) Chat(ctx context.Context, system, user string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("llm api key is not configured")
	}

	var body qwenRequest
	body.Model = c.cfg.Model
	body.Input.Messages = []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
	body.Parameters.Temperature = c.cfg.Temperature
	body.Parameters.MaxTokens = c.cfg.MaxTokens

	endpoint := c.cfg.BaseURL
	if endpoint == "" {
		endpoint = qwenEndpoint
	}

	var resp qwenResponse
	if err := postJSON(ctx, c.http, endpoint, c.cfg.APIKey, body, &resp); err != nil {
		return "", fmt.Errorf("qwen request failed: %w", err)
	}
	if len(resp.Output.Choices) == 0 {
		return "", fmt.Errorf("qwen response contained no choices")
	}
	return strings.TrimSpace(resp.Output.Choices[0].Message.Content), nil
}

func postJSON(ctx context.Context, client *http.Client, url, apiKey string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
