// Package chapter_audio narrates translated chapters.
//
// The translation is cut into sentence-aligned segments, each segment is
// synthesized and written to a scratch directory, and the segments are
// merged in order into one MP3 per chapter.
package chapter_audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jackzampolin/narrate/internal/audio"
	"github.com/jackzampolin/narrate/internal/jobs"
	"github.com/jackzampolin/narrate/internal/providers"
	"github.com/jackzampolin/narrate/internal/segment"
	"github.com/jackzampolin/narrate/internal/storage"
	"github.com/jackzampolin/narrate/internal/tasks"
)

// JobType is the lock namespace for chapter narration.
const JobType = string(tasks.KindAudio)

const (
	DefaultSegmentGap = 500 * time.Millisecond
	DefaultBitrate    = "128k"
	DefaultJobTimeout = 2 * time.Hour

	// synthesisShare is the part of progress covered by synthesis; the
	// merge accounts for the rest.
	synthesisShare = 0.8

	segmentsPrefix = storage.AudioPrefix + "/segments"
)

var (
	// ErrTranslationMissing is returned when a chapter has not been translated yet.
	ErrTranslationMissing = errors.New("translation not found")
	// ErrEmptyTranslation is returned when the stored translation has no text.
	ErrEmptyTranslation = errors.New("translation is empty")
)

// Segment is one synthesized piece of a chapter.
type Segment struct {
	Index    int
	Text     string
	Path     string
	Duration time.Duration
}

// Config configures an Orchestrator.
type Config struct {
	Tasks       tasks.Store
	Storage     *storage.Store
	Synthesizer providers.SpeechSynthesizer
	Encoder     audio.Encoder
	Pool        *jobs.Pool
	Locks       *jobs.KeyedLocker // optional; one is created when nil

	SegmentSize int           // max runes per synthesis request (default 1000)
	Voice       string        // provider default if empty
	Speed       float64       // provider default if zero
	Gap         time.Duration // silence between segments (default 500ms)
	Bitrate     string        // default 128k
	JobTimeout  time.Duration

	BaseContext context.Context
	Logger      *slog.Logger
}

// Orchestrator schedules chapter narration jobs.
type Orchestrator struct {
	tasks       tasks.Store
	storage     *storage.Store
	synthesizer providers.SpeechSynthesizer
	encoder     audio.Encoder
	pool        *jobs.Pool
	locks       *jobs.KeyedLocker
	segmentSize int
	voice       string
	speed       float64
	gap         time.Duration
	bitrate     string
	jobTimeout  time.Duration
	baseCtx     context.Context
	logger      *slog.Logger

	wg sync.WaitGroup
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Tasks == nil || cfg.Storage == nil || cfg.Synthesizer == nil || cfg.Encoder == nil || cfg.Pool == nil {
		return nil, fmt.Errorf("chapter_audio: tasks, storage, synthesizer, encoder and pool are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		tasks:       cfg.Tasks,
		storage:     cfg.Storage,
		synthesizer: cfg.Synthesizer,
		encoder:     cfg.Encoder,
		pool:        cfg.Pool,
		locks:       cfg.Locks,
		segmentSize: cfg.SegmentSize,
		voice:       cfg.Voice,
		speed:       cfg.Speed,
		gap:         cfg.Gap,
		bitrate:     cfg.Bitrate,
		jobTimeout:  cfg.JobTimeout,
		baseCtx:     cfg.BaseContext,
		logger:      logger.With("job", JobType, "tts", cfg.Synthesizer.Name()),
	}
	if o.locks == nil {
		o.locks = jobs.NewKeyedLocker()
	}
	if o.segmentSize <= 0 {
		o.segmentSize = segment.DefaultSpeechLength
	}
	if o.gap <= 0 {
		o.gap = DefaultSegmentGap
	}
	if o.bitrate == "" {
		o.bitrate = DefaultBitrate
	}
	if o.jobTimeout <= 0 {
		o.jobTimeout = DefaultJobTimeout
	}
	if o.baseCtx == nil {
		o.baseCtx = context.Background()
	}
	return o, nil
}

// GenerateChapterAudio starts narrating a translated chapter and returns
// the task ID. It fails immediately with ErrTranslationMissing when the
// chapter has no stored translation.
func (o *Orchestrator) GenerateChapterAudio(ctx context.Context, bookID, chapterID string) (string, error) {
	ok, err := o.storage.Exists(ctx, storage.TranslationKey(bookID, chapterID))
	if err != nil {
		return "", fmt.Errorf("failed to check translation: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrTranslationMissing, bookID, chapterID)
	}

	task, err := o.tasks.Create(tasks.KindAudio, bookID, chapterID)
	if err != nil {
		return "", fmt.Errorf("failed to create task: %w", err)
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(task.ID, bookID, chapterID)
	}()
	return task.ID, nil
}

// Wait blocks until every started job has returned.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) run(taskID, bookID, chapterID string) {
	logger := o.logger.With("task_id", taskID, "book_id", bookID, "chapter_id", chapterID)
	ctx, cancel := context.WithTimeout(o.baseCtx, o.jobTimeout)
	defer cancel()

	if err := o.execute(ctx, logger, taskID, bookID, chapterID); err != nil {
		logger.Error("chapter audio failed", "error", err)
		if serr := o.tasks.SetError(taskID, err.Error()); serr != nil {
			logger.Warn("failed to record task failure", "error", serr)
		}
	}
}

func (o *Orchestrator) execute(ctx context.Context, logger *slog.Logger, taskID, bookID, chapterID string) error {
	unlock, err := o.locks.Lock(ctx, jobs.ChapterKey(JobType, bookID, chapterID))
	if err != nil {
		return fmt.Errorf("waiting for chapter lock: %w", err)
	}
	defer unlock()

	if err := o.tasks.SetStatus(taskID, tasks.StatusInProgress); err != nil {
		return err
	}

	data, err := o.storage.Get(ctx, storage.TranslationKey(bookID, chapterID))
	if err != nil {
		return fmt.Errorf("failed to read translation: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return ErrEmptyTranslation
	}

	pieces := segment.SplitSpeech(text, o.segmentSize)
	if len(pieces) == 0 {
		return ErrEmptyTranslation
	}
	logger.Info("synthesizing chapter", "segments", len(pieces))

	segDir, err := o.storage.Dir(segmentsPrefix + "/" + taskID)
	if err != nil {
		return err
	}
	defer func() {
		if err := os.RemoveAll(segDir); err != nil {
			logger.Warn("failed to remove segment files", "dir", segDir, "error", err)
		}
	}()

	segments := make([]Segment, 0, len(pieces))
	for i, piece := range pieces {
		seg, err := o.synthesize(ctx, segDir, i, piece)
		if err != nil {
			return fmt.Errorf("segment %d/%d: %w", i+1, len(pieces), err)
		}
		segments = append(segments, seg)
		if err := o.tasks.SetProgress(taskID, synthesisShare*float64(i+1)/float64(len(pieces))); err != nil {
			return err
		}
	}

	filename := storage.ChapterAudioFile(bookID, chapterID)
	key := storage.AudioKey(filename)
	output, err := o.storage.Path(key)
	if err != nil {
		return err
	}
	if _, err := o.storage.Dir(storage.AudioPrefix); err != nil {
		return err
	}

	result, err := o.merge(ctx, segments, output)
	if err != nil {
		return err
	}
	for i, d := range result.InputDurations {
		segments[i].Duration = d
	}

	duration := result.Duration
	err = o.pool.Run(ctx, "probe-chapter", func(ctx context.Context) error {
		probed, err := o.encoder.Probe(ctx, output)
		if err != nil {
			return err
		}
		duration = probed
		return nil
	})
	if err != nil {
		logger.Warn("failed to probe merged chapter, using computed duration", "error", err)
	}

	o.storage.Publish(ctx, key)

	err = o.saveTimings(ctx, &Timings{
		BookID:    bookID,
		ChapterID: chapterID,
		AudioFile: filename,
		Duration:  duration.Seconds(),
		Segments:  buildTimings(segments, o.gap),
	})
	if err != nil {
		logger.Warn("failed to save segment timings", "error", err)
	}

	if err := o.tasks.Complete(taskID, &tasks.Result{
		AudioURL: storage.AudioURL(filename),
		Duration: duration.Seconds(),
	}); err != nil {
		return err
	}
	logger.Info("chapter audio completed", "file", filename, "duration", duration, "segments", len(segments))
	return nil
}

func (o *Orchestrator) synthesize(ctx context.Context, dir string, index int, text string) (Segment, error) {
	res, err := o.synthesizer.Synthesize(ctx, &providers.SpeechRequest{
		Text:  text,
		Voice: o.voice,
		Speed: o.speed,
	})
	if err != nil {
		return Segment{}, err
	}
	if len(res.Audio) == 0 {
		return Segment{}, fmt.Errorf("synthesizer returned no audio")
	}

	format := res.Format
	if format == "" {
		format = "wav"
	}
	path := filepath.Join(dir, fmt.Sprintf("segment_%04d.%s", index, format))
	if err := os.WriteFile(path, res.Audio, 0o644); err != nil {
		return Segment{}, fmt.Errorf("failed to write segment: %w", err)
	}
	return Segment{Index: index, Text: text, Path: path}, nil
}

// merge joins segments in index order on the worker pool.
func (o *Orchestrator) merge(ctx context.Context, segments []Segment, output string) (*audio.MergeResult, error) {
	inputs := make([]string, len(segments))
	for _, s := range segments {
		inputs[s.Index] = s.Path
	}

	var result *audio.MergeResult
	err := o.pool.Run(ctx, "merge-chapter", func(ctx context.Context) error {
		var err error
		result, err = audio.Merge(ctx, o.encoder, inputs, output, audio.ConcatOptions{
			Gap:     o.gap,
			Bitrate: o.bitrate,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to merge segments: %w", err)
	}
	return result, nil
}

// ChapterAudio describes the merged audio of a chapter.
type ChapterAudio struct {
	Filename string  `json:"filename"`
	AudioURL string  `json:"audio_url"`
	Duration float64 `json:"duration"`
	FileSize int64   `json:"file_size"`
}

// ChapterAudioInfo reports the merged audio of a chapter, or
// storage.ErrNotFound when it has not been generated.
func (o *Orchestrator) ChapterAudioInfo(ctx context.Context, bookID, chapterID string) (*ChapterAudio, error) {
	filename := storage.ChapterAudioFile(bookID, chapterID)
	info, err := o.storage.Stat(storage.AudioKey(filename))
	if err != nil {
		return nil, err
	}

	var duration time.Duration
	err = o.pool.Run(ctx, "probe-chapter", func(ctx context.Context) error {
		path, err := o.storage.Path(info.Key)
		if err != nil {
			return err
		}
		duration, err = o.encoder.Probe(ctx, path)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to probe %s: %w", filename, err)
	}
	return &ChapterAudio{
		Filename: filename,
		AudioURL: storage.AudioURL(filename),
		Duration: duration.Seconds(),
		FileSize: info.Size,
	}, nil
}
