package book_audio

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackzampolin/narrate/internal/storage"
)

// PlaylistItem is one playable chapter.
type PlaylistItem struct {
	ChapterID    string  `json:"chapter_id"`
	ChapterTitle string  `json:"chapter_title"`
	AudioURL     string  `json:"audio_url"`
	Duration     float64 `json:"duration"`
	Order        int     `json:"order"`
}

// Playlist lists the chapters of a book that have audio, in catalog order.
type Playlist struct {
	BookID        string         `json:"book_id"`
	BookTitle     string         `json:"book_title"`
	TotalDuration float64        `json:"total_duration"`
	Items         []PlaylistItem `json:"items"`
}

// Playlist builds the playlist of bookID. Chapters without audio are skipped.
func (s *Service) Playlist(ctx context.Context, bookID string) (*Playlist, error) {
	book, err := s.catalog.Book(ctx, bookID)
	if err != nil {
		return nil, err
	}
	chapters, err := s.catalog.Chapters(ctx, bookID)
	if err != nil {
		return nil, err
	}

	pl := &Playlist{BookID: book.ID, BookTitle: book.Title, Items: []PlaylistItem{}}
	for _, ch := range chapters {
		filename := storage.ChapterAudioFile(bookID, ch.ID)
		key := storage.AudioKey(filename)
		if _, err := s.storage.Stat(key); errors.Is(err, storage.ErrNotFound) {
			continue
		}
		d, err := s.probe(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to probe %s: %w", filename, err)
		}
		pl.Items = append(pl.Items, PlaylistItem{
			ChapterID:    ch.ID,
			ChapterTitle: ch.Title,
			AudioURL:     storage.AudioURL(filename),
			Duration:     d.Seconds(),
			Order:        ch.Position,
		})
		pl.TotalDuration += d.Seconds()
	}
	return pl, nil
}
