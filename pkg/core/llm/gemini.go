package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("LLM returned no text")

// GeminiProvider calls the Gemini API through the GenAI SDK. The client is
// created on first use and reused.
type GeminiProvider struct {
	model       string
	apiKey      string
	baseURL     string
	temperature float64
	maxTokens   int
	timeout     time.Duration

	mu     sync.Mutex
	client *genai.Client
}

var _ Provider = (*GeminiProvider)(nil)

// NewGeminiProvider builds a provider from cfg. BaseURL overrides the API
// endpoint.
func NewGeminiProvider(cfg Config) *GeminiProvider {
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiProvider{
		model:       model,
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
	}
}

// Name returns "gemini".
func (p *GeminiProvider) Name() string {
	return "gemini"
}

func (p *GeminiProvider) genaiClient(ctx context.Context) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}

	cc := &genai.ClientConfig{APIKey: p.apiKey, Backend: genai.BackendGeminiAPI}
	if p.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	p.client = client
	return client, nil
}

// GenerateResponse runs one generateContent call. Options may override
// "model", "temperature" and "max_tokens"; a json_object response_format
// asks for application/json output.
func (p *GeminiProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	if p.apiKey == "" {
		return "", fmt.Errorf("gemini API key not set")
	}
	client, err := p.genaiClient(ctx)
	if err != nil {
		return "", err
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	gc := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(floatOption(options, "temperature", p.temperature))),
	}
	if n := intOption(options, "max_tokens", p.maxTokens); n > 0 {
		gc.MaxOutputTokens = int32(n)
	}
	if wantsJSON(options) {
		gc.ResponseMIMEType = "application/json"
	}
	if systemPrompt != "" {
		gc.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	model := stringOption(options, "model", p.model)
	result, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), gc)
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", model, err)
	}
	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("gemini %s: %w", model, ErrEmptyResponse)
	}
	return text, nil
}
