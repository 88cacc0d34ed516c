package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/jackzampolin/narrate/internal/providers"
)

// Config holds narrate configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Server      ServerCfg      `mapstructure:"server" yaml:"server"`
	StorageDir  string         `mapstructure:"storage_dir" yaml:"storage_dir"` // default {home}/storage
	Translation TranslationCfg `mapstructure:"translation" yaml:"translation"`
	Retry       RetryCfg       `mapstructure:"retry" yaml:"retry"`
	TTS         TTSCfg         `mapstructure:"tts" yaml:"tts"`
	Pipeline    PipelineCfg    `mapstructure:"pipeline" yaml:"pipeline"`
	Tasks       TasksCfg       `mapstructure:"tasks" yaml:"tasks"`
	NATS        NATSCfg        `mapstructure:"nats" yaml:"nats"`
}

// ServerCfg is the HTTP listen address.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// TranslationCfg configures the chat-completions translation provider.
type TranslationCfg struct {
	BaseURL           string  `mapstructure:"base_url" yaml:"base_url"`
	APIKey            string  `mapstructure:"api_key" yaml:"api_key"` // supports ${ENV_VAR} syntax
	Model             string  `mapstructure:"model" yaml:"model"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	Temperature       float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens         int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	RequestsPerMinute int     `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	SourceLang        string  `mapstructure:"source_lang" yaml:"source_lang"`
	TargetLang        string  `mapstructure:"target_lang" yaml:"target_lang"`
}

// RetryCfg is the remote call retry policy.
type RetryCfg struct {
	MaxAttempts             int `mapstructure:"max_attempts" yaml:"max_attempts"`
	TransportDelaySeconds   int `mapstructure:"transport_delay_seconds" yaml:"transport_delay_seconds"`
	ServerErrorDelaySeconds int `mapstructure:"server_error_delay_seconds" yaml:"server_error_delay_seconds"`
}

// TTSCfg selects and configures the speech provider.
type TTSCfg struct {
	Provider            string    `mapstructure:"provider" yaml:"provider"` // "f5tts" or "openai"
	F5TTSURL            string    `mapstructure:"f5tts_url" yaml:"f5tts_url"`
	Voice               string    `mapstructure:"voice" yaml:"voice"`
	Speed               float64   `mapstructure:"speed" yaml:"speed"`
	RefAudioURL         string    `mapstructure:"ref_audio_url" yaml:"ref_audio_url"`
	RefText             string    `mapstructure:"ref_text" yaml:"ref_text"`
	PollIntervalSeconds int       `mapstructure:"poll_interval_seconds" yaml:"poll_interval_seconds"`
	TimeoutSeconds      int       `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	OpenAI              OpenAICfg `mapstructure:"openai" yaml:"openai"`
}

// OpenAICfg configures the OpenAI speech provider.
type OpenAICfg struct {
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
	Model  string `mapstructure:"model" yaml:"model"`
	Voice  string `mapstructure:"voice" yaml:"voice"`
}

// PipelineCfg sizes and paces chapter jobs.
type PipelineCfg struct {
	ChunkSize         int `mapstructure:"chunk_size" yaml:"chunk_size"`
	SpeechSegmentSize int `mapstructure:"speech_segment_size" yaml:"speech_segment_size"`
	ChunkDelayMs      int `mapstructure:"chunk_delay_ms" yaml:"chunk_delay_ms"`
	MaxWorkers        int `mapstructure:"max_workers" yaml:"max_workers"`
	QueueSize         int `mapstructure:"queue_size" yaml:"queue_size"`
	JobTimeoutMinutes int `mapstructure:"job_timeout_minutes" yaml:"job_timeout_minutes"`
}

// TasksCfg controls finished task garbage collection.
type TasksCfg struct {
	CleanupIntervalMinutes int `mapstructure:"cleanup_interval_minutes" yaml:"cleanup_interval_minutes"`
	MaxAgeHours            int `mapstructure:"max_age_hours" yaml:"max_age_hours"`
}

// NATSCfg configures the optional JetStream artifact mirror.
type NATSCfg struct {
	URL    string `mapstructure:"url" yaml:"url"` // empty disables the mirror
	Bucket string `mapstructure:"bucket" yaml:"bucket"`
}

// Supported TTS providers.
const (
	TTSProviderF5     = "f5tts"
	TTSProviderOpenAI = "openai"
)

// Validate checks values the pipeline cannot run without.
func (c *Config) Validate() error {
	switch c.TTS.Provider {
	case TTSProviderF5, TTSProviderOpenAI:
	default:
		return fmt.Errorf("invalid tts.provider %q (expected %s or %s)", c.TTS.Provider, TTSProviderF5, TTSProviderOpenAI)
	}
	if c.Pipeline.ChunkSize <= 0 {
		return fmt.Errorf("pipeline.chunk_size must be positive, got %d", c.Pipeline.ChunkSize)
	}
	if c.Pipeline.SpeechSegmentSize <= 0 {
		return fmt.Errorf("pipeline.speech_segment_size must be positive, got %d", c.Pipeline.SpeechSegmentSize)
	}
	if c.Pipeline.MaxWorkers <= 0 {
		return fmt.Errorf("pipeline.max_workers must be positive, got %d", c.Pipeline.MaxWorkers)
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be positive, got %d", c.Retry.MaxAttempts)
	}
	return nil
}

// StoragePath resolves storage_dir against the home directory.
func (c *Config) StoragePath(homePath string) string {
	if c.StorageDir == "" {
		return filepath.Join(homePath, "storage")
	}
	return c.StorageDir
}

// RetryPolicy converts the retry section.
func (c *Config) RetryPolicy() providers.RetryPolicy {
	return providers.RetryPolicy{
		MaxAttempts:      c.Retry.MaxAttempts,
		TransportDelay:   seconds(c.Retry.TransportDelaySeconds),
		ServerErrorDelay: seconds(c.Retry.ServerErrorDelaySeconds),
	}
}

// ChatConfig converts the translation section, resolving the API key.
func (c *Config) ChatConfig() providers.ChatConfig {
	return providers.ChatConfig{
		BaseURL:           c.Translation.BaseURL,
		APIKey:            ResolveEnvVars(c.Translation.APIKey),
		Model:             c.Translation.Model,
		Temperature:       c.Translation.Temperature,
		MaxTokens:         c.Translation.MaxTokens,
		Timeout:           seconds(c.Translation.TimeoutSeconds),
		RequestsPerMinute: c.Translation.RequestsPerMinute,
		Retry:             c.RetryPolicy(),
	}
}

// F5TTSConfig converts the F5 part of the tts section.
func (c *Config) F5TTSConfig() providers.F5TTSConfig {
	return providers.F5TTSConfig{
		BaseURL:      c.TTS.F5TTSURL,
		Speed:        c.TTS.Speed,
		RefAudioURL:  c.TTS.RefAudioURL,
		RefText:      c.TTS.RefText,
		PollInterval: seconds(c.TTS.PollIntervalSeconds),
		Timeout:      seconds(c.TTS.TimeoutSeconds),
		Retry:        c.RetryPolicy(),
	}
}

// OpenAITTSConfig converts the OpenAI part of the tts section.
func (c *Config) OpenAITTSConfig() providers.OpenAITTSConfig {
	return providers.OpenAITTSConfig{
		APIKey:  ResolveEnvVars(c.TTS.OpenAI.APIKey),
		Model:   c.TTS.OpenAI.Model,
		Voice:   c.TTS.OpenAI.Voice,
		Speed:   c.TTS.Speed,
		Timeout: seconds(c.TTS.TimeoutSeconds),
		Retry:   c.RetryPolicy(),
	}
}

// ChunkDelay is the pause between translated chunks.
func (c *Config) ChunkDelay() time.Duration {
	return time.Duration(c.Pipeline.ChunkDelayMs) * time.Millisecond
}

// JobTimeout bounds a single chapter job.
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.Pipeline.JobTimeoutMinutes) * time.Minute
}

// CleanupInterval is how often finished tasks are swept.
func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.Tasks.CleanupIntervalMinutes) * time.Minute
}

// MaxTaskAge is how long finished tasks are kept.
func (c *Config) MaxTaskAge() time.Duration {
	return time.Duration(c.Tasks.MaxAgeHours) * time.Hour
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
