package endpoints

import (
	"github.com/jackzampolin/narrate/internal/api"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	// CheckFFmpeg backs the readiness probe. Nil skips the check.
	CheckFFmpeg func() error
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{CheckFFmpeg: cfg.CheckFFmpeg},
		&StatusEndpoint{},
		&GetConfigEndpoint{},

		// Task endpoints
		&ListTasksEndpoint{},
		&GetTaskEndpoint{},

		// Book catalog endpoints
		&ImportBookEndpoint{},
		&ListBooksEndpoint{},
		&GetBookEndpoint{},
		&DeleteBookEndpoint{},
		&GetChapterEndpoint{},

		// Translation endpoints
		&TranslateChapterEndpoint{},
		&GetTranslationEndpoint{},
		&TranslateTextEndpoint{},

		// Chapter audio endpoints
		&GenerateChapterAudioEndpoint{},
		&ChapterAudioInfoEndpoint{},
		&SplitChapterEndpoint{},
		&AudioFileEndpoint{},

		// Book audio endpoints
		&MergeBookEndpoint{},
		&PlaylistEndpoint{},
		&AudioStatsEndpoint{},
		&CleanupAudioEndpoint{},
		&ExportEPUBEndpoint{},
		&ExportFileEndpoint{},
	}
}

// NewRegistry registers every endpoint and describes the command groups.
func NewRegistry(cfg Config) *api.Registry {
	r := api.NewRegistry()
	for _, ep := range All(cfg) {
		r.Register(ep)
	}
	r.DescribeGroup("books", "Book catalog and book audio commands")
	r.DescribeGroup("chapters", "Chapter translation and narration commands")
	r.DescribeGroup("tasks", "Background task commands")
	return r
}
