package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAITTSName         = "openai"
	openAITTSDefaultModel = openai.SpeechModelTTS1HD
	openAITTSDefaultVoice = "onyx"
)

// OpenAITTSConfig holds configuration for the OpenAI TTS client.
type OpenAITTSConfig struct {
	APIKey     string
	Model      string  // "tts-1-hd" (default), "tts-1", "gpt-4o-mini-tts"
	Voice      string  // "onyx" (default)
	Speed      float64 // 0.25-4.0
	Timeout    time.Duration
	Retry      RetryPolicy
	BaseURL    string       // Optional (tests)
	HTTPClient *http.Client // Optional (tests)
	Logger     *slog.Logger
}

// OpenAITTSClient implements SpeechSynthesizer using the official OpenAI SDK.
// Retries are driven by RetryPolicy; the SDK's own retry loop is disabled.
type OpenAITTSClient struct {
	model  string
	voice  string
	speed  float64
	client openai.Client
	logger *slog.Logger

	mu    sync.RWMutex
	retry RetryPolicy
}

// NewOpenAITTSClient creates a new OpenAI TTS client.
func NewOpenAITTSClient(cfg OpenAITTSConfig) *OpenAITTSClient {
	if cfg.Model == "" {
		cfg.Model = openAITTSDefaultModel
	}
	if cfg.Voice == "" {
		cfg.Voice = openAITTSDefaultVoice
	}
	if cfg.Speed <= 0 {
		cfg.Speed = 1.0
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
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

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAITTSClient{
		model:  cfg.Model,
		voice:  cfg.Voice,
		speed:  cfg.Speed,
		client: openai.NewClient(opts...),
		logger: cfg.Logger.With("provider", OpenAITTSName),
		retry:  cfg.Retry,
	}
}

// Name returns the provider identifier.
func (c *OpenAITTSClient) Name() string {
	return OpenAITTSName
}

// SetRetryPolicy swaps the policy used by subsequent calls.
func (c *OpenAITTSClient) SetRetryPolicy(p RetryPolicy) {
	c.mu.Lock()
	c.retry = p
	c.mu.Unlock()
}

func (c *OpenAITTSClient) retryPolicy() RetryPolicy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.retry
}

// HealthCheck verifies the OpenAI API is reachable and the API key is valid.
func (c *OpenAITTSClient) HealthCheck(ctx context.Context) error {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("openai models list failed: %w", mapOpenAIError(err))
	}
	if page == nil {
		return fmt.Errorf("openai models list returned nil response")
	}
	return nil
}

// Synthesize converts text to audio using the OpenAI speech endpoint.
func (c *OpenAITTSClient) Synthesize(ctx context.Context, req *SpeechRequest) (*SpeechResult, error) {
	start := time.Now()
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}

	voice := strings.TrimSpace(req.Voice)
	if voice == "" || strings.Contains(voice, "-") {
		// Locale-style voice names ("zh-CN-XiaoxiaoNeural") belong to other providers.
		voice = c.voice
	}
	speed := req.Speed
	if speed <= 0 {
		speed = c.speed
	}
	format := normalizeOpenAIFormat(req.Format)

	params := openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(c.model),
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: format,
		Speed:          openai.Float(speed),
	}

	audio, err := Retry(ctx, c.retryPolicy(), func(ctx context.Context) ([]byte, error) {
		resp, err := c.client.Audio.Speech.New(ctx, params)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, mapOpenAIError(err)
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &TransportError{Op: "read openai audio", Err: err}
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}

	return &SpeechResult{
		Audio:         audio,
		Format:        openAIResultFormat(format),
		CharCount:     len([]rune(text)),
		ExecutionTime: time.Since(start),
	}, nil
}

// Voices returns the built-in OpenAI TTS voice names.
func (c *OpenAITTSClient) Voices() []string {
	return []string{
		"alloy", "ash", "ballad", "coral", "echo", "fable", "nova",
		"onyx", "sage", "shimmer", "verse", "marin", "cedar",
	}
}

func normalizeOpenAIFormat(format string) openai.AudioSpeechNewParamsResponseFormat {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "opus":
		return openai.AudioSpeechNewParamsResponseFormatOpus
	case "aac":
		return openai.AudioSpeechNewParamsResponseFormatAAC
	case "flac":
		return openai.AudioSpeechNewParamsResponseFormatFLAC
	case "wav":
		return openai.AudioSpeechNewParamsResponseFormatWAV
	default:
		return openai.AudioSpeechNewParamsResponseFormatMP3
	}
}

func openAIResultFormat(format openai.AudioSpeechNewParamsResponseFormat) string {
	switch format {
	case openai.AudioSpeechNewParamsResponseFormatOpus:
		return "opus"
	case openai.AudioSpeechNewParamsResponseFormatAAC:
		return "aac"
	case openai.AudioSpeechNewParamsResponseFormatFLAC:
		return "flac"
	case openai.AudioSpeechNewParamsResponseFormatWAV:
		return "wav"
	default:
		return "mp3"
	}
}

// mapOpenAIError converts SDK errors into the package's taxonomy so the
// retry policy can classify them.
func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		se := &StatusError{
			Provider:   OpenAITTSName,
			StatusCode: apiErr.StatusCode,
			Body:       apiErr.Message,
		}
		if apiErr.Response != nil {
			se.RetryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
		return se
	}
	return &TransportError{Op: "openai speech", Err: err}
}

var _ SpeechSynthesizer = (*OpenAITTSClient)(nil)
