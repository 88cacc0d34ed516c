package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// ErrNoDefault is returned when no default value exists for a config key.
var ErrNoDefault = errors.New("no default exists")

// Entry is one documented configuration key.
type Entry struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Description string `json:"description" yaml:"description"`
}

// DefaultEntries returns every configuration key with its default.
func DefaultEntries() []Entry {
	return []Entry{
		// Server
		{Key: "server.host", Value: "127.0.0.1", Description: "Address the HTTP server binds to"},
		{Key: "server.port", Value: "8080", Description: "Port the HTTP server listens on"},
		{Key: "storage_dir", Value: "", Description: "Artifact directory (empty: {home}/storage)"},

		// Translation
		{Key: "translation.base_url", Value: "https://api.siliconflow.cn/v1", Description: "OpenAI-compatible chat completions base URL"},
		{Key: "translation.api_key", Value: "${SILICONFLOW_API_KEY}", Description: "Translation API key (uses environment variable)"},
		{Key: "translation.model", Value: "Qwen/Qwen2.5-7B-Instruct", Description: "Translation model"},
		{Key: "translation.timeout_seconds", Value: 120, Description: "HTTP timeout per translation request"},
		{Key: "translation.temperature", Value: 0.3, Description: "Sampling temperature"},
		{Key: "translation.max_tokens", Value: 4000, Description: "Completion token limit"},
		{Key: "translation.requests_per_minute", Value: 60, Description: "Client-side rate limit (0 disables)"},
		{Key: "translation.source_lang", Value: "en", Description: "Source language code"},
		{Key: "translation.target_lang", Value: "zh", Description: "Target language code"},

		// Retry
		{Key: "retry.max_attempts", Value: 3, Description: "Attempts per remote call"},
		{Key: "retry.transport_delay_seconds", Value: 10, Description: "Wait after a network failure"},
		{Key: "retry.server_error_delay_seconds", Value: 5, Description: "Wait after a 5xx response"},

		// TTS
		{Key: "tts.provider", Value: "f5tts", Description: "Speech provider: f5tts or openai"},
		{Key: "tts.f5tts_url", Value: "http://f5tts-service:8001", Description: "F5-TTS service URL"},
		{Key: "tts.voice", Value: "zh-CN-XiaoxiaoNeural", Description: "Voice requested from the provider"},
		{Key: "tts.speed", Value: 1.0, Description: "Speech speed multiplier"},
		{Key: "tts.ref_audio_url", Value: "", Description: "F5-TTS reference audio URL"},
		{Key: "tts.ref_text", Value: "", Description: "Transcript of the reference audio"},
		{Key: "tts.poll_interval_seconds", Value: 2, Description: "F5-TTS task poll interval"},
		{Key: "tts.timeout_seconds", Value: 300, Description: "Budget for one synthesis request"},
		{Key: "tts.openai.api_key", Value: "${OPENAI_API_KEY}", Description: "OpenAI API key (uses environment variable)"},
		{Key: "tts.openai.model", Value: "tts-1-hd", Description: "OpenAI speech model"},
		{Key: "tts.openai.voice", Value: "onyx", Description: "OpenAI voice"},

		// Pipeline
		{Key: "pipeline.chunk_size", Value: 1000, Description: "Max characters per translation chunk"},
		{Key: "pipeline.speech_segment_size", Value: 1000, Description: "Max characters per synthesis request"},
		{Key: "pipeline.chunk_delay_ms", Value: 500, Description: "Pause between translation chunks"},
		{Key: "pipeline.max_workers", Value: 4, Description: "Concurrent audio merge workers"},
		{Key: "pipeline.queue_size", Value: 100, Description: "Queued audio operations before rejecting"},
		{Key: "pipeline.job_timeout_minutes", Value: 120, Description: "Upper bound for one chapter job"},

		// Tasks
		{Key: "tasks.cleanup_interval_minutes", Value: 60, Description: "How often finished tasks are swept"},
		{Key: "tasks.max_age_hours", Value: 24, Description: "How long finished tasks are kept"},

		// NATS
		{Key: "nats.url", Value: "", Description: "NATS server for the artifact mirror (empty disables)"},
		{Key: "nats.bucket", Value: "narrate-artifacts", Description: "JetStream object store bucket"},
	}
}

// GetDefault returns the default entry for a key.
// Returns nil if no default exists for the key.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}

// DefaultValue returns the default value for a key.
func DefaultValue(key string) (any, error) {
	def := GetDefault(key)
	if def == nil {
		return nil, fmt.Errorf("%w for key %q", ErrNoDefault, key)
	}
	return def.Value, nil
}

// setDefaults registers every entry with v.
func setDefaults(v *viper.Viper) {
	for _, entry := range DefaultEntries() {
		v.SetDefault(entry.Key, entry.Value)
	}
}

// DefaultConfig returns configuration with every key at its default.
func DefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; a failure here is a programming error.
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return &cfg
}
