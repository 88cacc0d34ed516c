package providers

import (
	"context"
	"time"
)

// Translator turns a chunk of source text into the target language.
type Translator interface {
	// Translate returns the translated text. Implementations run their own
	// retry policy; the returned error is already classified.
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)

	// Name returns the client identifier (e.g., "chat").
	Name() string
}

// SpeechSynthesizer renders one text segment to audio bytes.
type SpeechSynthesizer interface {
	// Name returns the provider identifier (e.g., "f5tts", "openai").
	Name() string

	// Synthesize blocks until audio is ready or ctx is done.
	Synthesize(ctx context.Context, req *SpeechRequest) (*SpeechResult, error)
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ChatRequest is a request to an OpenAI-compatible chat completion endpoint.
type ChatRequest struct {
	Messages []Message `json:"messages"`

	// Model selection (uses client default if empty)
	Model string `json:"model,omitempty"`

	// Generation parameters (client defaults if zero)
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// ChatResult is the parsed completion.
type ChatResult struct {
	Content   string `json:"content"`
	ModelUsed string `json:"model_used"`

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`

	Attempts      int           `json:"attempts"`
	ExecutionTime time.Duration `json:"execution_time"`
}

// SpeechRequest is one synthesis call.
type SpeechRequest struct {
	Text   string
	Voice  string  // provider default if empty
	Speed  float64 // provider default if zero
	Format string  // "mp3", "wav"; provider default if empty
}

// SpeechResult holds synthesized audio.
type SpeechResult struct {
	Audio         []byte
	Format        string // file extension of Audio, without the dot
	CharCount     int
	ExecutionTime time.Duration
}
