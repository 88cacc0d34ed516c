package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/narrate/internal/api"
	"github.com/jackzampolin/narrate/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "narrate",
	Short: "Translate books chapter by chapter and turn them into audiobooks",
	Long: `Narrate imports books as ordered XHTML chapters, translates them with an
OpenAI-compatible chat model and narrates the translations with a speech
provider.

The pipeline includes:
  - Chunked chapter translation with rate limiting and retries
  - Speech synthesis (F5-TTS or OpenAI) merged into chapter MP3s
  - Whole-book merges, playlists and split files for streaming
  - Background tasks with progress you can poll over HTTP`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.narrate/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "narrate home directory (default: ~/.narrate)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "text", "output format: text, yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
