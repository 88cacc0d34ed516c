package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configFile, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return configFile
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		t.Setenv("TEST_API_KEY", "secret123")
		if got := ResolveEnvVars("${TEST_API_KEY}"); got != "secret123" {
			t.Errorf("expected secret123, got %s", got)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		if got := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}"); got != "" {
			t.Errorf("expected empty string, got %s", got)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		if got := ResolveEnvVars("literal-value"); got != "literal-value" {
			t.Errorf("expected literal-value, got %s", got)
		}
	})
}

func TestNewManager(t *testing.T) {
	t.Run("loads from config file", func(t *testing.T) {
		configFile := writeConfig(t, `
pipeline:
  chunk_size: 800
tts:
  provider: openai
`)
		mgr, err := NewManager(configFile, nil)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		cfg := mgr.Get()
		if cfg.Pipeline.ChunkSize != 800 {
			t.Errorf("expected chunk_size 800, got %d", cfg.Pipeline.ChunkSize)
		}
		if cfg.TTS.Provider != TTSProviderOpenAI {
			t.Errorf("expected openai, got %s", cfg.TTS.Provider)
		}
		// Untouched keys keep their defaults.
		if cfg.Pipeline.SpeechSegmentSize != 1000 || cfg.Retry.MaxAttempts != 3 {
			t.Errorf("defaults not applied: %+v", cfg.Pipeline)
		}
		if mgr.ConfigFileUsed() != configFile {
			t.Errorf("unexpected config file: %s", mgr.ConfigFileUsed())
		}
	})

	t.Run("environment overrides file", func(t *testing.T) {
		configFile := writeConfig(t, "pipeline:\n  chunk_size: 800\n")
		t.Setenv("NARRATE_PIPELINE_CHUNK_SIZE", "640")
		t.Setenv("NARRATE_TRANSLATION_MODEL", "deepseek-ai/DeepSeek-V3")

		mgr, err := NewManager(configFile, nil)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		cfg := mgr.Get()
		if cfg.Pipeline.ChunkSize != 640 {
			t.Errorf("expected env override 640, got %d", cfg.Pipeline.ChunkSize)
		}
		if cfg.Translation.Model != "deepseek-ai/DeepSeek-V3" {
			t.Errorf("expected env model, got %s", cfg.Translation.Model)
		}
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		configFile := writeConfig(t, "tts:\n  provider: espeak\n")
		if _, err := NewManager(configFile, nil); err == nil || !strings.Contains(err.Error(), "tts.provider") {
			t.Fatalf("expected tts.provider error, got %v", err)
		}
	})

	t.Run("rejects malformed file", func(t *testing.T) {
		configFile := writeConfig(t, "pipeline: [unclosed\n")
		if _, err := NewManager(configFile, nil); err == nil {
			t.Fatal("expected parse error")
		}
	})
}

func TestManager_OnChange_Multiple(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "retry:\n  max_attempts: 2\n"), nil)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})

	mgr.mu.RLock()
	if len(mgr.callbacks) != 3 {
		t.Errorf("expected 3 callbacks, got %d", len(mgr.callbacks))
	}
	mgr.mu.RUnlock()
}

func TestManager_Get_ThreadSafe(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "retry:\n  max_attempts: 2\n"), nil)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				_ = mgr.Get().Retry.MaxAttempts
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestManager_WatchConfig(t *testing.T) {
	configFile := writeConfig(t, "pipeline:\n  chunk_delay_ms: 500\n")

	mgr, err := NewManager(configFile, nil)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	if mgr.Get().ChunkDelay() != 500*time.Millisecond {
		t.Fatalf("initial value mismatch: %s", mgr.Get().ChunkDelay())
	}

	var callbackCount atomic.Int32
	var lastValue atomic.Int64
	mgr.OnChange(func(cfg *Config) {
		callbackCount.Add(1)
		lastValue.Store(int64(cfg.Pipeline.ChunkDelayMs))
	})

	mgr.WatchConfig()

	// Give fsnotify time to set up the watcher
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(configFile, []byte("pipeline:\n  chunk_delay_ms: 50\n"), 0o644); err != nil {
		t.Fatalf("failed to write updated config file: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && callbackCount.Load() == 0 {
		time.Sleep(50 * time.Millisecond)
	}

	if callbackCount.Load() == 0 {
		t.Fatal("callback was not invoked after config file change")
	}
	if got := mgr.Get().ChunkDelay(); got != 50*time.Millisecond {
		t.Errorf("config not updated: got %s", got)
	}
	if lastValue.Load() != 50 {
		t.Errorf("callback received wrong value: %d", lastValue.Load())
	}
}

func TestManager_ReloadKeepsPreviousOnError(t *testing.T) {
	configFile := writeConfig(t, "pipeline:\n  chunk_size: 700\n")
	mgr, err := NewManager(configFile, nil)
	if err != nil {
		t.Fatal(err)
	}
	called := false
	mgr.OnChange(func(*Config) { called = true })

	if err := os.WriteFile(configFile, []byte("pipeline:\n  chunk_size: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := mgr.v.ReadInConfig(); err != nil {
		t.Fatal(err)
	}
	mgr.reload(configFile)

	if called {
		t.Error("callbacks should not run for an invalid config")
	}
	if mgr.Get().Pipeline.ChunkSize != 700 {
		t.Errorf("previous config should stay active, got %d", mgr.Get().Pipeline.ChunkSize)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"# narrate configuration", "chunk_size: 1000", "${SILICONFLOW_API_KEY}", "provider: f5tts"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("default config missing %q", want)
		}
	}

	// The written file loads back to the defaults.
	mgr, err := NewManager(path, nil)
	if err != nil {
		t.Fatalf("failed to load written default: %v", err)
	}
	if mgr.Get().TTS.F5TTSURL != "http://f5tts-service:8001" {
		t.Errorf("unexpected f5 url: %s", mgr.Get().TTS.F5TTSURL)
	}
}
