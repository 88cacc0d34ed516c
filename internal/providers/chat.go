package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	ChatClientName = "chat"

	DefaultChatBaseURL     = "https://api.siliconflow.cn/v1"
	DefaultChatModel       = "Qwen/Qwen2.5-7B-Instruct"
	DefaultChatTemperature = 0.3
	DefaultChatMaxTokens   = 4000
	DefaultChatTimeout     = 120 * time.Second
)

// ChatConfig holds configuration for an OpenAI-compatible chat client.
type ChatConfig struct {
	BaseURL           string
	APIKey            string
	Model             string
	Temperature       float64
	MaxTokens         int
	Timeout           time.Duration
	RequestsPerMinute int // 0 disables client-side limiting
	Retry             RetryPolicy
	HTTPClient        *http.Client // Optional (tests)
	Logger            *slog.Logger
}

// ChatClient calls POST {base}/chat/completions and implements Translator.
type ChatClient struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
	limiter     *RateLimiter
	logger      *slog.Logger

	mu    sync.RWMutex
	retry RetryPolicy
}

// NewChatClient creates a chat client, filling defaults.
func NewChatClient(cfg ChatConfig) *ChatClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultChatBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultChatModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultChatTemperature
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultChatMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultChatTimeout
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &ChatClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      httpClient,
		limiter:     NewRateLimiter(cfg.RequestsPerMinute),
		logger:      cfg.Logger.With("provider", ChatClientName),
		retry:       cfg.Retry,
	}
}

// Name returns the client identifier.
func (c *ChatClient) Name() string {
	return ChatClientName
}

// Model returns the default model.
func (c *ChatClient) Model() string {
	return c.model
}

// SetRetryPolicy swaps the policy used by subsequent calls.
func (c *ChatClient) SetRetryPolicy(p RetryPolicy) {
	c.mu.Lock()
	c.retry = p
	c.mu.Unlock()
}

// RetryPolicy returns the current policy.
func (c *ChatClient) RetryPolicy() RetryPolicy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.retry
}

// RateLimiterStatus reports the client-side limiter.
func (c *ChatClient) RateLimiterStatus() RateLimiterStatus {
	return c.limiter.Status()
}

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Chat sends one completion request through the retry policy.
func (c *ChatClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, fmt.Errorf("chat request requires at least one message")
	}

	body := &chatCompletionRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if body.Model == "" {
		body.Model = c.model
	}
	if body.Temperature == 0 {
		body.Temperature = c.temperature
	}
	if body.MaxTokens == 0 {
		body.MaxTokens = c.maxTokens
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	start := time.Now()
	resp, attempts, err := RetryCount(ctx, c.RetryPolicy(), func(ctx context.Context) (*chatCompletionResponse, error) {
		return c.doRequest(ctx, payload)
	})
	if err != nil {
		c.logger.Warn("chat completion failed", "model", body.Model, "attempts", attempts, "error", err)
		return nil, err
	}

	model := resp.Model
	if model == "" {
		model = body.Model
	}
	return &ChatResult{
		Content:          resp.Choices[0].Message.Content,
		ModelUsed:        model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		Attempts:         attempts,
		ExecutionTime:    time.Since(start),
	}, nil
}

// doRequest makes a single attempt.
func (c *ChatClient) doRequest(ctx context.Context, payload []byte) (*chatCompletionResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Op: "chat completion", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Op: "read chat response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests {
			c.limiter.Record429()
		}
		return nil, newStatusError(ChatClientName, resp, respBody)
	}

	var out chatCompletionResponse
	if err := decodeValidated(respBody, chatCompletionValidator, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Translate implements Translator.
func (c *ChatClient) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	out, _, err := c.TranslateWithModel(ctx, text, sourceLang, targetLang, "")
	return out, err
}

// TranslateWithModel translates with an explicit model ("" uses the
// configured one) and reports the model that answered.
func (c *ChatClient) TranslateWithModel(ctx context.Context, text, sourceLang, targetLang, model string) (string, string, error) {
	result, err := c.Chat(ctx, &ChatRequest{
		Messages: []Message{{Role: "user", Content: TranslationPrompt(text, sourceLang, targetLang)}},
		Model:    model,
	})
	if err != nil {
		return "", "", err
	}
	out := strings.TrimSpace(result.Content)
	if out == "" {
		return "", result.ModelUsed, ErrEmptyContent
	}
	return out, result.ModelUsed, nil
}

var _ Translator = (*ChatClient)(nil)
