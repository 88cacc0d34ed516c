package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/narrate/internal/config"
	"github.com/jackzampolin/narrate/internal/server/endpoints"
	"github.com/jackzampolin/narrate/internal/testutil"
)

func TestServer_FullLifecycle(t *testing.T) {
	ts := startTestServer(t)
	url := ts.cfg.URL()

	t.Run("health_endpoint", func(t *testing.T) {
		resp, err := http.Get(url + "/health")
		if err != nil {
			t.Fatalf("health check failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("health status = %d, want %d", resp.StatusCode, http.StatusOK)
		}

		var health endpoints.HealthResponse
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if health.Status != "ok" {
			t.Errorf("health.Status = %q, want %q", health.Status, "ok")
		}
	})

	t.Run("ready_endpoint", func(t *testing.T) {
		resp, err := http.Get(url + "/ready")
		if err != nil {
			t.Fatalf("ready check failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("ready status = %d, want %d", resp.StatusCode, http.StatusOK)
		}

		var health endpoints.HealthResponse
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if health.Catalog != "ok" {
			t.Errorf("health.Catalog = %q, want %q", health.Catalog, "ok")
		}
	})

	t.Run("status_endpoint", func(t *testing.T) {
		status, err := testutil.GetStatus(url)
		if err != nil {
			t.Fatalf("GetStatus() error = %v", err)
		}
		if status.Server != "running" {
			t.Errorf("status.Server = %q, want running", status.Server)
		}
		if status.Providers.Translator != "mock" {
			t.Errorf("translator = %q, want mock", status.Providers.Translator)
		}
		if status.Providers.DefaultTTS != "mock" {
			t.Errorf("default tts = %q, want mock", status.Providers.DefaultTTS)
		}
		if status.Mirror {
			t.Error("mirror should be disabled without nats.url")
		}
	})

	t.Run("library_created_in_home", func(t *testing.T) {
		if _, err := os.Stat(filepath.Join(ts.cfg.HomeDir, "library.db")); err != nil {
			t.Errorf("library.db not created: %v", err)
		}
		if _, err := os.Stat(filepath.Join(ts.cfg.HomeDir, "storage")); err != nil {
			t.Errorf("storage dir not created: %v", err)
		}
	})

	t.Run("services_available", func(t *testing.T) {
		svc := ts.srv.Services()
		if svc == nil {
			t.Fatal("Services() returned nil")
		}
		if svc.Catalog == nil || svc.Storage == nil || svc.Tasks == nil || svc.Pool == nil {
			t.Error("core services not initialized")
		}
	})

	t.Run("is_running", func(t *testing.T) {
		if !ts.srv.IsRunning() {
			t.Error("IsRunning() = false, want true")
		}
	})

	ts.stop(t)

	t.Run("not_running_after_shutdown", func(t *testing.T) {
		if ts.srv.IsRunning() {
			t.Error("IsRunning() = true after shutdown, want false")
		}
	})

	t.Run("port_released_after_shutdown", func(t *testing.T) {
		client := &http.Client{Timeout: time.Second}
		if _, err := client.Get(url + "/health"); err == nil {
			t.Error("server still answering after shutdown")
		}
	})
}

func TestServer_ConfigHotReload(t *testing.T) {
	ts := startTestServer(t)

	reloaded := make(chan int, 1)
	ts.srv.configMgr.OnChange(func(c *config.Config) {
		if c.Pipeline.ChunkSize != 300 {
			return
		}
		select {
		case reloaded <- c.Pipeline.ChunkSize:
		default:
		}
	})

	updated := strings.Replace(testConfig, "chunk_size: 200", "chunk_size: 300", 1)
	testutil.WriteFile(t, ts.cfg.HomeDir, "config.yaml", updated)

	select {
	case <-reloaded:
		if got := ts.srv.configMgr.Get().Pipeline.ChunkSize; got != 300 {
			t.Errorf("Get().Pipeline.ChunkSize = %d, want 300", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("config change was not picked up")
	}

	ts.stop(t)
}
