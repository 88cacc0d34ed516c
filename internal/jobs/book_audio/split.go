package book_audio

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackzampolin/narrate/internal/audio"
	"github.com/jackzampolin/narrate/internal/storage"
)

// SplitFile is one progressive-loading piece of a chapter.
type SplitFile struct {
	SegmentID int     `json:"segment_id"`
	Filename  string  `json:"filename"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Duration  float64 `json:"duration"`
	URL       string  `json:"url"`
}

// SplitChapter cuts a chapter's merged audio into pieces of at most
// segmentSeconds (default 300) for progressive loading.
func (s *Service) SplitChapter(ctx context.Context, bookID, chapterID string, segmentSeconds int) ([]SplitFile, error) {
	if segmentSeconds <= 0 {
		segmentSeconds = DefaultSegmentSeconds
	}

	filename := storage.ChapterAudioFile(bookID, chapterID)
	key := storage.AudioKey(filename)
	if _, err := s.storage.Stat(key); errors.Is(err, storage.ErrNotFound) {
		return nil, &MissingChapterError{ChapterID: chapterID}
	} else if err != nil {
		return nil, err
	}
	input, err := s.storage.Path(key)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(input)
	base := strings.TrimSuffix(filename, ".mp3")

	var pieces []audio.Piece
	err = s.pool.Run(ctx, "split-chapter", func(ctx context.Context) error {
		var err error
		pieces, err = audio.Split(ctx, s.encoder, input, time.Duration(segmentSeconds)*time.Second, chapterBitrate, func(i int) string {
			return filepath.Join(dir, fmt.Sprintf("%s%s%03d.mp3", base, splitMarker, i+1))
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to split %s: %w", filename, err)
	}

	out := make([]SplitFile, len(pieces))
	for i, p := range pieces {
		name := filepath.Base(p.Path)
		s.storage.Publish(ctx, storage.AudioKey(name))
		out[i] = SplitFile{
			SegmentID: p.Index + 1,
			Filename:  name,
			StartTime: p.Start.Seconds(),
			EndTime:   p.End.Seconds(),
			Duration:  p.Duration().Seconds(),
			URL:       storage.AudioURL(name),
		}
	}
	return out, nil
}

// chapterBitrate matches the bitrate chapters are encoded at.
const chapterBitrate = "128k"
