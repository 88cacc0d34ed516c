// Package book_audio works on the merged chapter files of a book: the
// whole-book merge, playlists, statistics, cleanup and progressive
// loading splits.
package book_audio

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackzampolin/narrate/internal/audio"
	"github.com/jackzampolin/narrate/internal/jobs"
	"github.com/jackzampolin/narrate/internal/library"
	"github.com/jackzampolin/narrate/internal/storage"
)

const (
	DefaultChapterGap     = 2000 * time.Millisecond
	DefaultBookBitrate    = "192k"
	DefaultSegmentSeconds = 300
)

// Tags written into a merged book.
var bookTags = audio.Tags{
	"title":  "Complete Audiobook",
	"artist": "narrate",
	"genre":  "Audiobook",
}

// MissingChapterError is returned when a chapter to merge has no audio.
type MissingChapterError struct {
	ChapterID string
}

func (e *MissingChapterError) Error() string {
	return fmt.Sprintf("audio for chapter %s not found", e.ChapterID)
}

// Unwrap lets callers match storage.ErrNotFound.
func (e *MissingChapterError) Unwrap() error {
	return storage.ErrNotFound
}

// Catalog is the part of the library the service reads.
type Catalog interface {
	Book(ctx context.Context, bookID string) (*library.Book, error)
	Chapters(ctx context.Context, bookID string) ([]library.Chapter, error)
}

// Config configures a Service.
type Config struct {
	Storage *storage.Store
	Catalog Catalog
	Encoder audio.Encoder
	Pool    *jobs.Pool
	Gap     time.Duration // silence between chapters (default 2s)
	Bitrate string        // default 192k
	Logger  *slog.Logger
}

// Service runs book level audio operations synchronously.
type Service struct {
	storage *storage.Store
	catalog Catalog
	encoder audio.Encoder
	pool    *jobs.Pool
	gap     time.Duration
	bitrate string
	logger  *slog.Logger
}

// New creates a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Storage == nil || cfg.Catalog == nil || cfg.Encoder == nil || cfg.Pool == nil {
		return nil, fmt.Errorf("book_audio: storage, catalog, encoder and pool are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		storage: cfg.Storage,
		catalog: cfg.Catalog,
		encoder: cfg.Encoder,
		pool:    cfg.Pool,
		gap:     cfg.Gap,
		bitrate: cfg.Bitrate,
		logger:  logger.With("component", "book_audio"),
	}
	if s.gap <= 0 {
		s.gap = DefaultChapterGap
	}
	if s.bitrate == "" {
		s.bitrate = DefaultBookBitrate
	}
	return s, nil
}

// Metadata is written next to a merged book.
type Metadata struct {
	BookID         string    `json:"book_id"`
	ChapterIDs     []string  `json:"chapter_ids"`
	TotalDuration  float64   `json:"total_duration"`
	MergedFilename string    `json:"merged_filename"`
	CreatedAt      time.Time `json:"created_at"`
	ChapterCount   int       `json:"chapter_count"`
}

// MergeBook joins the chapter files of bookID in the given order. With no
// chapter IDs the catalog order is used. Every chapter must already have
// merged audio.
func (s *Service) MergeBook(ctx context.Context, bookID string, chapterIDs []string) (*Metadata, error) {
	if len(chapterIDs) == 0 {
		chapters, err := s.catalog.Chapters(ctx, bookID)
		if err != nil {
			return nil, err
		}
		for _, ch := range chapters {
			chapterIDs = append(chapterIDs, ch.ID)
		}
	}
	if len(chapterIDs) == 0 {
		return nil, fmt.Errorf("book %s has no chapters to merge", bookID)
	}

	inputs := make([]string, len(chapterIDs))
	for i, chapterID := range chapterIDs {
		key := storage.AudioKey(storage.ChapterAudioFile(bookID, chapterID))
		ok, err := s.storage.FS.Exists(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &MissingChapterError{ChapterID: chapterID}
		}
		if inputs[i], err = s.storage.Path(key); err != nil {
			return nil, err
		}
	}

	filename := storage.BookAudioFile(bookID)
	output, err := s.storage.Path(storage.AudioKey(filename))
	if err != nil {
		return nil, err
	}

	var result *audio.MergeResult
	err = s.pool.Run(ctx, "merge-book", func(ctx context.Context) error {
		var err error
		result, err = audio.Merge(ctx, s.encoder, inputs, output, audio.ConcatOptions{
			Gap:     s.gap,
			Bitrate: s.bitrate,
			Tags:    bookTags,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to merge book %s: %w", bookID, err)
	}
	s.storage.Publish(ctx, storage.AudioKey(filename))

	meta := &Metadata{
		BookID:         bookID,
		ChapterIDs:     chapterIDs,
		TotalDuration:  result.Duration.Seconds(),
		MergedFilename: filename,
		CreatedAt:      result.CreatedAt,
		ChapterCount:   len(chapterIDs),
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := s.storage.Put(ctx, storage.AudioKey(storage.BookMetadataFile(bookID)), data); err != nil {
		return nil, fmt.Errorf("failed to write metadata: %w", err)
	}

	s.logger.Info("book merged", "book_id", bookID, "chapters", len(chapterIDs), "file", filename, "duration", result.Duration)
	return meta, nil
}

// probe reads a file's duration on the worker pool.
func (s *Service) probe(ctx context.Context, key string) (time.Duration, error) {
	path, err := s.storage.Path(key)
	if err != nil {
		return 0, err
	}
	var d time.Duration
	err = s.pool.Run(ctx, "probe", func(ctx context.Context) error {
		var err error
		d, err = s.encoder.Probe(ctx, path)
		return err
	})
	return d, err
}
