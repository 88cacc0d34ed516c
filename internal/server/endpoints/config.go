package endpoints

import (
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/narrate/internal/api"
	"github.com/jackzampolin/narrate/internal/config"
	"github.com/jackzampolin/narrate/internal/svcctx"
)

// ConfigResponse is the active configuration. ${ENV} references are shown
// as written; literal API keys are redacted.
type ConfigResponse struct {
	ConfigFile string         `json:"config_file,omitempty"`
	Config     *config.Config `json:"config"`
}

// GetConfigEndpoint handles GET /api/config.
type GetConfigEndpoint struct{}

func (e *GetConfigEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/config", e.handler
}

func (e *GetConfigEndpoint) RequiresInit() bool { return false }

func (e *GetConfigEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	mgr := svcctx.ConfigFrom(r.Context())
	if mgr == nil {
		writeError(w, http.StatusServiceUnavailable, "config not loaded")
		return
	}
	cfg := *mgr.Get()
	cfg.Translation.APIKey = redactKey(cfg.Translation.APIKey)
	cfg.TTS.OpenAI.APIKey = redactKey(cfg.TTS.OpenAI.APIKey)
	writeJSON(w, http.StatusOK, ConfigResponse{ConfigFile: mgr.ConfigFileUsed(), Config: &cfg})
}

func redactKey(key string) string {
	if key == "" || strings.HasPrefix(key, "${") {
		return key
	}
	return "[redacted]"
}

func (e *GetConfigEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the server's active configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ConfigResponse
			if err := client.Get(cmd.Context(), "/api/config", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
