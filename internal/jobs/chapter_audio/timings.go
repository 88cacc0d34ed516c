package chapter_audio

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackzampolin/narrate/internal/storage"
)

// Timings places every synthesized segment of a chapter on the merged
// audio's timeline. It is written next to the chapter audio and read by
// the EPUB export to build media overlays.
type Timings struct {
	BookID    string          `json:"book_id"`
	ChapterID string          `json:"chapter_id"`
	AudioFile string          `json:"audio_file"`
	Duration  float64         `json:"duration"`
	Segments  []SegmentTiming `json:"segments"`
}

// SegmentTiming is one segment's text and its window in seconds.
type SegmentTiming struct {
	Index int     `json:"index"`
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// buildTimings lays segments end to end with gap between neighbours,
// matching how they were merged.
func buildTimings(segments []Segment, gap time.Duration) []SegmentTiming {
	out := make([]SegmentTiming, len(segments))
	var at time.Duration
	for i, s := range segments {
		if i > 0 {
			at += gap
		}
		out[i] = SegmentTiming{
			Index: s.Index,
			Text:  s.Text,
			Start: at.Seconds(),
			End:   (at + s.Duration).Seconds(),
		}
		at += s.Duration
	}
	return out
}

func (o *Orchestrator) saveTimings(ctx context.Context, t *Timings) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return o.storage.Put(ctx, storage.TimingsKey(t.BookID, t.ChapterID), data)
}

// LoadTimings reads the segment timings of a narrated chapter, or returns
// storage.ErrNotFound.
func LoadTimings(ctx context.Context, st *storage.Store, bookID, chapterID string) (*Timings, error) {
	data, err := st.Get(ctx, storage.TimingsKey(bookID, chapterID))
	if err != nil {
		return nil, err
	}
	var t Timings
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to decode timings of %s/%s: %w", bookID, chapterID, err)
	}
	return &t, nil
}
