// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/jackzampolin/narrate/internal/config"
	"github.com/jackzampolin/narrate/internal/home"
	"github.com/jackzampolin/narrate/internal/jobs"
	"github.com/jackzampolin/narrate/internal/jobs/book_audio"
	"github.com/jackzampolin/narrate/internal/jobs/chapter_audio"
	"github.com/jackzampolin/narrate/internal/jobs/translate_chapter"
	"github.com/jackzampolin/narrate/internal/library"
	"github.com/jackzampolin/narrate/internal/providers"
	"github.com/jackzampolin/narrate/internal/storage"
	"github.com/jackzampolin/narrate/internal/tasks"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Config       *config.Manager
	Tasks        tasks.Store
	Catalog      *library.Catalog
	Storage      *storage.Store
	Registry     *providers.Registry
	Pool         *jobs.Pool
	Translator   *translate_chapter.Orchestrator
	ChapterAudio *chapter_audio.Orchestrator
	BookAudio    *book_audio.Service
	Logger       *slog.Logger
	Home         *home.Dir
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// ConfigFrom extracts the config manager from context.
func ConfigFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.Config
	}
	return nil
}

// TasksFrom extracts the task registry from context.
func TasksFrom(ctx context.Context) tasks.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Tasks
	}
	return nil
}

// CatalogFrom extracts the book catalog from context.
func CatalogFrom(ctx context.Context) *library.Catalog {
	if s := ServicesFrom(ctx); s != nil {
		return s.Catalog
	}
	return nil
}

// StorageFrom extracts the artifact store from context.
func StorageFrom(ctx context.Context) *storage.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Storage
	}
	return nil
}

// RegistryFrom extracts the provider registry from context.
func RegistryFrom(ctx context.Context) *providers.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Registry
	}
	return nil
}

// PoolFrom extracts the audio worker pool from context.
func PoolFrom(ctx context.Context) *jobs.Pool {
	if s := ServicesFrom(ctx); s != nil {
		return s.Pool
	}
	return nil
}

// TranslatorFrom extracts the chapter translation orchestrator from context.
func TranslatorFrom(ctx context.Context) *translate_chapter.Orchestrator {
	if s := ServicesFrom(ctx); s != nil {
		return s.Translator
	}
	return nil
}

// ChapterAudioFrom extracts the chapter audio orchestrator from context.
func ChapterAudioFrom(ctx context.Context) *chapter_audio.Orchestrator {
	if s := ServicesFrom(ctx); s != nil {
		return s.ChapterAudio
	}
	return nil
}

// BookAudioFrom extracts the book audio service from context.
func BookAudioFrom(ctx context.Context) *book_audio.Service {
	if s := ServicesFrom(ctx); s != nil {
		return s.BookAudio
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}
