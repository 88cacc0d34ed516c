package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/narrate/internal/config"
	"github.com/jackzampolin/narrate/internal/home"
	"github.com/jackzampolin/narrate/internal/server"
)

var (
	serveHost     string
	servePort     string
	serveLogLevel string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the narrate server",
	Long: `Start the narrate HTTP server.

The server opens the book catalog and artifact storage under the home
directory and runs translation and narration tasks in the background.
On shutdown (Ctrl+C or SIGTERM) running tasks are cancelled and marked failed.

The server provides:
  - /health - Basic server health check
  - /ready  - Readiness check (catalog and ffmpeg)
  - /status - Providers, rate limiter and worker pool

Examples:
  narrate serve                    # Start on the configured port (8080)
  narrate serve --port 3000        # Start on custom port
  narrate serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		level, err := parseLogLevel(serveLogLevel)
		if err != nil {
			return err
		}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		}))

		// Get home directory
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		// Prefer the home config when no file is given
		file := cfgFile
		if file == "" && h.ConfigExists() {
			file = h.ConfigPath()
		}
		cfgMgr, err := config.NewManager(file, logger)
		if err != nil {
			return err
		}
		if used := cfgMgr.ConfigFileUsed(); used != "" {
			logger.Info("loaded config", "file", used)
		} else {
			logger.Info("no config file found, using defaults (run narrate init)")
		}

		srv, err := server.New(server.Config{
			Host:          serveHost,
			Port:          servePort,
			Home:          h,
			ConfigManager: cfgMgr,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default: server.host from config)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default: server.port from config)")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "info", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(serveCmd)
}
