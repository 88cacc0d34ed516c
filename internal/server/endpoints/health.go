package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/narrate/internal/api"
	"github.com/jackzampolin/narrate/internal/jobs"
	"github.com/jackzampolin/narrate/internal/providers"
	"github.com/jackzampolin/narrate/internal/svcctx"
)

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Catalog string `json:"catalog,omitempty"`
	FFmpeg  string `json:"ffmpeg,omitempty"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
}

// ReadyEndpoint handles GET /ready.
type ReadyEndpoint struct {
	// CheckFFmpeg reports whether the audio tools are installed.
	CheckFFmpeg func() error
}

func (e *ReadyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/ready", e.handler
}

func (e *ReadyEndpoint) RequiresInit() bool { return false }

func (e *ReadyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Catalog: "ok", FFmpeg: "ok"}
	status := http.StatusOK

	catalog := svcctx.CatalogFrom(r.Context())
	switch {
	case catalog == nil:
		resp.Catalog = "not_initialized"
		status = http.StatusServiceUnavailable
	case catalog.Ping(r.Context()) != nil:
		resp.Catalog = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	if e.CheckFFmpeg != nil {
		if err := e.CheckFFmpeg(); err != nil {
			resp.FFmpeg = "missing"
			status = http.StatusServiceUnavailable
		}
	}

	if status != http.StatusOK {
		resp.Status = "degraded"
	}
	writeJSON(w, status, resp)
}

func (e *ReadyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "Check server readiness (catalog and ffmpeg)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/ready", &resp); err != nil {
				return err
			}
			fmt.Printf("Status:  %s\n", resp.Status)
			fmt.Printf("Catalog: %s\n", resp.Catalog)
			fmt.Printf("FFmpeg:  %s\n", resp.FFmpeg)
			return nil
		},
	}
}

// StatusResponse is the detailed status response.
type StatusResponse struct {
	Server      string                       `json:"server"`
	Providers   providers.RegistryStatus     `json:"providers"`
	RateLimiter *providers.RateLimiterStatus `json:"rate_limiter,omitempty"`
	Pool        *jobs.PoolStatus             `json:"pool,omitempty"`
	ActiveTasks int                          `json:"active_tasks"`
	Mirror      bool                         `json:"mirror"`
	ConfigFile  string                       `json:"config_file,omitempty"`
}

type rateLimited interface {
	RateLimiterStatus() providers.RateLimiterStatus
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct{}

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresInit() bool { return false }

func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := StatusResponse{Server: "running"}

	if registry := svcctx.RegistryFrom(ctx); registry != nil {
		resp.Providers = registry.Status()
		if t, err := registry.Translator(); err == nil {
			if rl, ok := t.(rateLimited); ok {
				st := rl.RateLimiterStatus()
				resp.RateLimiter = &st
			}
		}
	}
	if pool := svcctx.PoolFrom(ctx); pool != nil {
		st := pool.Status()
		resp.Pool = &st
	}
	if store := svcctx.TasksFrom(ctx); store != nil {
		resp.ActiveTasks = len(store.ListActive())
	}
	if st := svcctx.StorageFrom(ctx); st != nil {
		resp.Mirror = st.Mirrored()
	}
	if cfg := svcctx.ConfigFrom(ctx); cfg != nil {
		resp.ConfigFile = cfg.ConfigFileUsed()
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get detailed server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
