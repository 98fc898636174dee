package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultOpenRouterURL   = "https://openrouter.ai/api/v1/chat/completions"
	DefaultOpenRouterModel = "deepseek/deepseek-chat"
)

// OpenRouterProvider calls an OpenAI-compatible chat completions endpoint.
type OpenRouterProvider struct {
	model       string
	apiKey      string
	url         string
	temperature float64
	maxTokens   int
	referer     string
	title       string
	httpClient  *http.Client
}

var _ Provider = (*OpenRouterProvider)(nil)

// ChatRequest is the chat completions request body.
type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
	Stream         bool            `json:"stream"`
}

type Message struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

type ResponseFormat struct {
	Type string `json:"type"`
}

// ChatResponse is the subset of the completions response we read.
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewOpenRouterProvider creates a provider from cfg.
func NewOpenRouterProvider(cfg Config) *OpenRouterProvider {
	url := cfg.BaseURL
	if url == "" {
		url = DefaultOpenRouterURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenRouterModel
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &OpenRouterProvider{
		model:       model,
		apiKey:      cfg.APIKey,
		url:         url,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		referer:     "http://localhost",
		title:       "Financial Lookup App - AI Analysis",
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// Name returns "openrouter".
func (p *OpenRouterProvider) Name() string {
	return "openrouter"
}

// GenerateResponse posts a system and user message and returns the first choice.
func (p *OpenRouterProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	apiKey := stringOption(options, "api_key", p.apiKey)
	if apiKey == "" {
		return "", fmt.Errorf("openrouter API key not set")
	}

	reqBody := ChatRequest{
		Model:       stringOption(options, "model", p.model),
		Temperature: floatOption(options, "temperature", p.temperature),
		MaxTokens:   intOption(options, "max_tokens", p.maxTokens),
	}
	if systemPrompt != "" {
		reqBody.Messages = append(reqBody.Messages, Message{Content: systemPrompt, Role: "system"})
	}
	reqBody.Messages = append(reqBody.Messages, Message{Content: prompt, Role: "user"})
	if wantsJSON(options) {
		reqBody.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}

	jsonBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(jsonBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("HTTP-Referer", p.referer)
	req.Header.Set("X-Title", p.title)

	res, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openrouter request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openrouter API error: status=%d body=%s", res.StatusCode, string(body))
	}

	var response ChatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to parse openrouter response: %w", err)
	}
	if response.Error != nil {
		return "", fmt.Errorf("openrouter API error: %s", response.Error.Message)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("openrouter: no choices: %w", ErrEmptyResponse)
	}
	if response.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openrouter: %w", ErrEmptyResponse)
	}
	return response.Choices[0].Message.Content, nil
}
