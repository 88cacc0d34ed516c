package book_audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jackzampolin/narrate/internal/epub"
	"github.com/jackzampolin/narrate/internal/jobs/chapter_audio"
	"github.com/jackzampolin/narrate/internal/storage"
)

// ErrNothingTranslated is returned when an export finds no translated chapter.
var ErrNothingTranslated = errors.New("book has no translated chapters")

// ExportOptions tunes an EPUB export.
type ExportOptions struct {
	Language     string // defaults to zh
	Narrator     string
	IncludeAudio bool
}

// Export describes a written EPUB.
type Export struct {
	BookID           string `json:"book_id"`
	Filename         string `json:"filename"`
	URL              string `json:"url"`
	Chapters         int    `json:"chapters"`
	NarratedChapters int    `json:"narrated_chapters"`
	Size             int64  `json:"size"`
}

// ExportEPUB packages the translated chapters of bookID as an EPUB 3
// book. Chapters with audio and segment timings get a media overlay so
// reading systems can highlight text while playing. Untranslated chapters
// are left out.
func (s *Service) ExportEPUB(ctx context.Context, bookID string, opts ExportOptions) (*Export, error) {
	book, err := s.catalog.Book(ctx, bookID)
	if err != nil {
		return nil, err
	}
	chapters, err := s.catalog.Chapters(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if opts.Language == "" {
		opts.Language = "zh"
	}

	var out []epub.Chapter
	narrated := 0
	for _, ch := range chapters {
		data, err := s.storage.Get(ctx, storage.TranslationKey(bookID, ch.ID))
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read translation of %s: %w", ch.ID, err)
		}

		ec := epub.Chapter{
			ID:         fmt.Sprintf("ch_%03d", len(out)+1),
			Title:      ch.Title,
			Paragraphs: paragraphs(string(data)),
		}
		if opts.IncludeAudio {
			if err := s.attachAudio(ctx, bookID, ch.ID, &ec); err != nil {
				return nil, err
			}
			if ec.Audio != nil {
				narrated++
			}
		}
		out = append(out, ec)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNothingTranslated, bookID)
	}

	builder := epub.NewBuilder(epub.Book{
		ID:        book.ID,
		Title:     book.Title,
		Author:    book.Author,
		Language:  opts.Language,
		Narrator:  opts.Narrator,
		CreatedAt: book.CreatedAt,
	}, out)

	var data []byte
	err = s.pool.Run(ctx, "export-epub", func(ctx context.Context) error {
		buf, err := builder.BuildToBuffer()
		if err != nil {
			return err
		}
		data = buf.Bytes()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build epub for %s: %w", bookID, err)
	}

	filename := storage.EPUBFile(bookID)
	if err := s.storage.Put(ctx, storage.ExportKey(filename), data); err != nil {
		return nil, fmt.Errorf("failed to write epub: %w", err)
	}

	s.logger.Info("epub exported", "book_id", bookID, "chapters", len(out), "narrated", narrated, "size", len(data))
	return &Export{
		BookID:           bookID,
		Filename:         filename,
		URL:              storage.ExportURL(filename),
		Chapters:         len(out),
		NarratedChapters: narrated,
		Size:             int64(len(data)),
	}, nil
}

// attachAudio adds the chapter's audio and overlay clips when both the
// merged file and its timings exist. The paragraphs are replaced by the
// synthesized segments so every clip points at its own text.
func (s *Service) attachAudio(ctx context.Context, bookID, chapterID string, ec *epub.Chapter) error {
	key := storage.AudioKey(storage.ChapterAudioFile(bookID, chapterID))
	ok, err := s.storage.Exists(ctx, key)
	if err != nil || !ok {
		return err
	}
	timings, err := chapter_audio.LoadTimings(ctx, s.storage, bookID, chapterID)
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.Debug("chapter audio without timings, exporting text only", "chapter_id", chapterID)
		return nil
	}
	if err != nil {
		return err
	}
	path, err := s.storage.Path(key)
	if err != nil {
		return err
	}

	paras := make([]string, len(timings.Segments))
	clips := make([]epub.Clip, len(timings.Segments))
	for i, seg := range timings.Segments {
		paras[i] = seg.Text
		clips[i] = epub.Clip{
			Paragraph: i,
			StartMS:   seconds2ms(seg.Start),
			EndMS:     seconds2ms(seg.End),
		}
	}
	ec.Paragraphs = paras
	ec.Audio = &epub.ChapterAudio{
		File:       path,
		DurationMS: seconds2ms(timings.Duration),
		Clips:      clips,
	}
	return nil
}

func seconds2ms(s float64) int {
	return int(math.Round(s * 1000))
}

// paragraphs returns the non-empty lines of a translation.
func paragraphs(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
