package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"
)

const (
	F5TTSName = "f5tts"

	DefaultF5TTSURL          = "http://f5tts-service:8001"
	DefaultF5TTSPollInterval = 2 * time.Second
	DefaultF5TTSTimeout      = 300 * time.Second
)

// F5 task states.
const (
	f5StatusCompleted = "completed"
	f5StatusFailed    = "failed"
)

// F5TTSConfig holds configuration for the F5-TTS service client.
type F5TTSConfig struct {
	BaseURL      string
	Speed        float64
	RefAudioURL  string
	RefText      string
	PollInterval time.Duration
	Timeout      time.Duration // overall budget for submit + poll + download
	Retry        RetryPolicy
	HTTPClient   *http.Client // Optional (tests)
	Logger       *slog.Logger
}

// F5TTSClient talks to the asynchronous F5-TTS service: submit a task,
// poll until it settles, then download the rendered WAV.
type F5TTSClient struct {
	baseURL      string
	speed        float64
	refAudioURL  string
	refText      string
	pollInterval time.Duration
	timeout      time.Duration
	client       *http.Client
	logger       *slog.Logger

	mu    sync.RWMutex
	retry RetryPolicy
}

// NewF5TTSClient creates an F5-TTS client, filling defaults.
func NewF5TTSClient(cfg F5TTSConfig) *F5TTSClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultF5TTSURL
	}
	if cfg.Speed <= 0 {
		cfg.Speed = 1.0
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultF5TTSPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultF5TTSTimeout
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

	return &F5TTSClient{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		speed:        cfg.Speed,
		refAudioURL:  cfg.RefAudioURL,
		refText:      cfg.RefText,
		pollInterval: cfg.PollInterval,
		timeout:      cfg.Timeout,
		client:       httpClient,
		logger:       cfg.Logger.With("provider", F5TTSName),
		retry:        cfg.Retry,
	}
}

// Name returns the provider identifier.
func (c *F5TTSClient) Name() string {
	return F5TTSName
}

// SetRetryPolicy swaps the policy used by subsequent calls.
func (c *F5TTSClient) SetRetryPolicy(p RetryPolicy) {
	c.mu.Lock()
	c.retry = p
	c.mu.Unlock()
}

func (c *F5TTSClient) retryPolicy() RetryPolicy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.retry
}

type f5SubmitRequest struct {
	Text          string  `json:"text"`
	Language      string  `json:"language"`
	Speed         float64 `json:"speed"`
	RemoveSilence bool    `json:"remove_silence"`
	RefAudioURL   string  `json:"ref_audio_url,omitempty"`
	RefText       string  `json:"ref_text,omitempty"`
}

type f5SubmitResponse struct {
	TaskID string `json:"task_id"`
}

type f5StatusResponse struct {
	Status       string  `json:"status"`
	AudioURL     *string `json:"audio_url"`
	ErrorMessage *string `json:"error_message"`
}

// SynthesisFailedError is a task the service itself reported as failed.
type SynthesisFailedError struct {
	TaskID  string
	Message string
}

func (e *SynthesisFailedError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "unknown error"
	}
	return fmt.Sprintf("speech synthesis task %s failed: %s", e.TaskID, msg)
}

// Synthesize implements SpeechSynthesizer.
func (c *F5TTSClient) Synthesize(ctx context.Context, req *SpeechRequest) (*SpeechResult, error) {
	start := time.Now()
	if req == nil || strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("text is required")
	}
	speed := req.Speed
	if speed <= 0 {
		speed = c.speed
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	taskID, err := c.submit(ctx, &f5SubmitRequest{
		Text:          req.Text,
		Language:      "auto",
		Speed:         speed,
		RemoveSilence: true,
		RefAudioURL:   c.refAudioURL,
		RefText:       c.refText,
	})
	if err != nil {
		return nil, err
	}
	logger := c.logger.With("f5_task_id", taskID)
	logger.Debug("synthesis submitted", "chars", len([]rune(req.Text)))

	audioURL, err := c.await(ctx, taskID)
	if err != nil {
		return nil, err
	}

	audio, err := c.download(ctx, path.Base(audioURL))
	if err != nil {
		return nil, err
	}
	logger.Debug("synthesis downloaded", "bytes", len(audio), "elapsed", time.Since(start))

	return &SpeechResult{
		Audio:         audio,
		Format:        "wav",
		CharCount:     len([]rune(req.Text)),
		ExecutionTime: time.Since(start),
	}, nil
}

func (c *F5TTSClient) submit(ctx context.Context, body *f5SubmitRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	return Retry(ctx, c.retryPolicy(), func(ctx context.Context) (string, error) {
		respBody, err := c.do(ctx, http.MethodPost, "/tts", payload)
		if err != nil {
			return "", err
		}
		var out f5SubmitResponse
		if err := decodeValidated(respBody, f5SubmitValidator, &out); err != nil {
			return "", err
		}
		return out.TaskID, nil
	})
}

// await polls the task until it completes and returns its audio URL.
func (c *F5TTSClient) await(ctx context.Context, taskID string) (string, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		status, err := Retry(ctx, c.retryPolicy(), func(ctx context.Context) (*f5StatusResponse, error) {
			respBody, err := c.do(ctx, http.MethodGet, "/task/"+taskID, nil)
			if err != nil {
				return nil, err
			}
			var out f5StatusResponse
			if err := decodeValidated(respBody, f5StatusValidator, &out); err != nil {
				return nil, err
			}
			return &out, nil
		})
		if err != nil {
			return "", c.timeoutError(ctx, taskID, err)
		}

		switch status.Status {
		case f5StatusCompleted:
			if status.AudioURL == nil || *status.AudioURL == "" {
				return "", fmt.Errorf("%w: task %s completed without audio_url", ErrMalformedResponse, taskID)
			}
			return *status.AudioURL, nil
		case f5StatusFailed:
			msg := ""
			if status.ErrorMessage != nil {
				msg = *status.ErrorMessage
			}
			return "", &SynthesisFailedError{TaskID: taskID, Message: msg}
		}

		select {
		case <-ctx.Done():
			return "", c.timeoutError(ctx, taskID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *F5TTSClient) timeoutError(ctx context.Context, taskID string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("speech synthesis task %s did not finish within %s: %w", taskID, c.timeout, err)
	}
	return err
}

func (c *F5TTSClient) download(ctx context.Context, filename string) ([]byte, error) {
	return Retry(ctx, c.retryPolicy(), func(ctx context.Context) ([]byte, error) {
		return c.do(ctx, http.MethodGet, "/audio/"+filename, nil)
	})
}

// do performs one request and returns the body of a 200 response.
func (c *F5TTSClient) do(ctx context.Context, method, p string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+p, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Op: method + " " + p, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Op: method + " " + p, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError(F5TTSName, resp, respBody)
	}
	return respBody, nil
}

var _ SpeechSynthesizer = (*F5TTSClient)(nil)
