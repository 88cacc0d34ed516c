package book_audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackzampolin/narrate/internal/storage"
)

// FileStats describes one audio file of a book.
type FileStats struct {
	Filename string  `json:"filename"`
	Size     int64   `json:"size"`
	Duration float64 `json:"duration"`
	URL      string  `json:"url"`
}

// Stats summarizes the audio files of a book.
type Stats struct {
	BookID        string      `json:"book_id"`
	ChapterCount  int         `json:"chapter_count"`
	TotalSize     int64       `json:"total_size"`
	TotalDuration float64     `json:"total_duration"`
	Files         []FileStats `json:"files"`
}

const splitMarker = "_seg_"

// bookFiles returns the MP3 files in the audio area that belong to bookID:
// the audio of its catalog chapters, their split pieces and the whole-book
// merge. Names are matched exactly so a book whose safe name extends
// bookID's never leaks in.
func (s *Service) bookFiles(ctx context.Context, bookID string) ([]storage.ObjectInfo, error) {
	chapters, err := s.catalog.Chapters(ctx, bookID)
	if err != nil {
		return nil, err
	}
	owned := map[string]bool{storage.BookAudioFile(bookID): true}
	var pieces []string
	for _, ch := range chapters {
		name := storage.ChapterAudioFile(bookID, ch.ID)
		owned[name] = true
		pieces = append(pieces, strings.TrimSuffix(name, ".mp3")+splitMarker)
	}

	infos, err := s.storage.List(ctx, storage.AudioPrefix)
	if err != nil {
		return nil, err
	}
	var out []storage.ObjectInfo
	for _, info := range infos {
		if owned[info.Name] || isSplitPiece(info.Name, pieces) {
			out = append(out, info)
		}
	}
	return out, nil
}

func isSplitPiece(name string, prefixes []string) bool {
	if !strings.HasSuffix(name, ".mp3") {
		return false
	}
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Stats reports every MP3 of bookID. The chapter count leaves out the
// whole-book merge and split pieces.
func (s *Service) Stats(ctx context.Context, bookID string) (*Stats, error) {
	files, err := s.bookFiles(ctx, bookID)
	if err != nil {
		return nil, err
	}

	complete := storage.BookAudioFile(bookID)
	st := &Stats{BookID: bookID, Files: []FileStats{}}
	for _, f := range files {
		d, err := s.probe(ctx, f.Key)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to probe %s: %w", f.Name, err)
		}
		st.Files = append(st.Files, FileStats{
			Filename: f.Name,
			Size:     f.Size,
			Duration: d.Seconds(),
			URL:      storage.AudioURL(f.Name),
		})
		st.TotalSize += f.Size
		st.TotalDuration += d.Seconds()
		if f.Name != complete && !strings.Contains(f.Name, splitMarker) {
			st.ChapterCount++
		}
	}
	return st, nil
}

// Cleanup deletes audio of bookID: the named chapters, or with no chapter
// IDs every file of the book including the merge metadata. Segment
// timings of the affected chapters go with their audio. Files that cannot
// be deleted are skipped.
func (s *Service) Cleanup(ctx context.Context, bookID string, chapterIDs []string) ([]string, error) {
	var names []string
	if len(chapterIDs) > 0 {
		for _, id := range chapterIDs {
			names = append(names, storage.ChapterAudioFile(bookID, id))
		}
	} else {
		files, err := s.bookFiles(ctx, bookID)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			names = append(names, f.Name)
		}
		names = append(names, storage.BookMetadataFile(bookID))
	}

	deleted := []string{}
	for _, name := range names {
		err := s.storage.Delete(ctx, storage.AudioKey(name))
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				s.logger.Warn("failed to delete audio file", "file", name, "error", err)
			}
			continue
		}
		deleted = append(deleted, name)
	}
	s.deleteTimings(ctx, bookID, chapterIDs)
	s.logger.Info("audio cleanup", "book_id", bookID, "deleted", len(deleted))
	return deleted, nil
}

func (s *Service) deleteTimings(ctx context.Context, bookID string, chapterIDs []string) {
	if len(chapterIDs) == 0 {
		chapters, err := s.catalog.Chapters(ctx, bookID)
		if err != nil {
			s.logger.Warn("failed to list chapters for timings cleanup", "book_id", bookID, "error", err)
			return
		}
		for _, ch := range chapters {
			chapterIDs = append(chapterIDs, ch.ID)
		}
	}
	for _, id := range chapterIDs {
		err := s.storage.Delete(ctx, storage.TimingsKey(bookID, id))
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("failed to delete timings", "chapter_id", id, "error", err)
		}
	}
}
