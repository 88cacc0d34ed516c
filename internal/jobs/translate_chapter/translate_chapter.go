// Package translate_chapter translates whole chapters in the background.
//
// A chapter is cleaned, split into bounded chunks and translated one chunk
// at a time. The joined translation is only persisted once every chunk
// succeeded; any failure leaves the task failed and nothing on disk.
package translate_chapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackzampolin/narrate/internal/jobs"
	"github.com/jackzampolin/narrate/internal/library"
	"github.com/jackzampolin/narrate/internal/providers"
	"github.com/jackzampolin/narrate/internal/segment"
	"github.com/jackzampolin/narrate/internal/storage"
	"github.com/jackzampolin/narrate/internal/tasks"
	"github.com/jackzampolin/narrate/internal/textnorm"
)

// JobType is the lock namespace for chapter translation.
const JobType = string(tasks.KindTranslation)

const (
	DefaultChunkSize  = 1000
	DefaultChunkDelay = 500 * time.Millisecond
	DefaultJobTimeout = 2 * time.Hour

	// ResultSeparator joins translated chunks.
	ResultSeparator = "\n\n"
)

// ErrEmptyChapter is returned when a chapter has no text after cleaning.
var ErrEmptyChapter = errors.New("chapter has no text")

// Config configures an Orchestrator.
type Config struct {
	Tasks      tasks.Store
	Source     library.ChapterSource
	Translator providers.Translator
	Storage    storage.Sink
	Locks      *jobs.KeyedLocker // optional; one is created when nil

	SourceLang string // default "en"
	TargetLang string // default "zh"
	ChunkSize  int
	ChunkDelay time.Duration
	JobTimeout time.Duration

	// BaseContext is the parent of every job context. Cancelling it
	// stops running jobs. Defaults to context.Background().
	BaseContext context.Context
	Logger      *slog.Logger
}

// Orchestrator schedules chapter translations and tracks them as tasks.
type Orchestrator struct {
	tasks      tasks.Store
	source     library.ChapterSource
	translator providers.Translator
	storage    storage.Sink
	locks      *jobs.KeyedLocker
	sourceLang string
	targetLang string
	jobTimeout time.Duration
	baseCtx    context.Context
	logger     *slog.Logger

	mu         sync.RWMutex
	chunkSize  int
	chunkDelay time.Duration

	wg sync.WaitGroup
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Tasks == nil || cfg.Source == nil || cfg.Translator == nil || cfg.Storage == nil {
		return nil, fmt.Errorf("translate_chapter: tasks, source, translator and storage are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		tasks:      cfg.Tasks,
		source:     cfg.Source,
		translator: cfg.Translator,
		storage:    cfg.Storage,
		locks:      cfg.Locks,
		sourceLang: cfg.SourceLang,
		targetLang: cfg.TargetLang,
		jobTimeout: cfg.JobTimeout,
		baseCtx:    cfg.BaseContext,
		logger:     logger.With("job", JobType),
		chunkSize:  cfg.ChunkSize,
		chunkDelay: cfg.ChunkDelay,
	}
	if o.locks == nil {
		o.locks = jobs.NewKeyedLocker()
	}
	if o.sourceLang == "" {
		o.sourceLang = "en"
	}
	if o.targetLang == "" {
		o.targetLang = "zh"
	}
	if o.jobTimeout <= 0 {
		o.jobTimeout = DefaultJobTimeout
	}
	if o.baseCtx == nil {
		o.baseCtx = context.Background()
	}
	if o.chunkSize <= 0 {
		o.chunkSize = DefaultChunkSize
	}
	if o.chunkDelay < 0 {
		o.chunkDelay = 0
	}
	return o, nil
}

// SetPacing updates chunk size and inter-chunk delay for jobs started
// afterwards. Non-positive sizes keep the current value.
func (o *Orchestrator) SetPacing(chunkSize int, delay time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if chunkSize > 0 {
		o.chunkSize = chunkSize
	}
	if delay >= 0 {
		o.chunkDelay = delay
	}
}

func (o *Orchestrator) pacing() (int, time.Duration) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.chunkSize, o.chunkDelay
}

// TranslateChapter registers a pending task and starts translating in
// the background. It returns as soon as the task exists.
func (o *Orchestrator) TranslateChapter(ctx context.Context, bookID, chapterID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	task, err := o.tasks.Create(tasks.KindTranslation, bookID, chapterID)
	if err != nil {
		return "", fmt.Errorf("failed to create task: %w", err)
	}

	chunkSize, delay := o.pacing()
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(task.ID, bookID, chapterID, chunkSize, delay)
	}()
	return task.ID, nil
}

// Wait blocks until every started job has returned.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) run(taskID, bookID, chapterID string, chunkSize int, delay time.Duration) {
	logger := o.logger.With("task_id", taskID, "book_id", bookID, "chapter_id", chapterID)
	ctx, cancel := context.WithTimeout(o.baseCtx, o.jobTimeout)
	defer cancel()

	if err := o.execute(ctx, logger, taskID, bookID, chapterID, chunkSize, delay); err != nil {
		logger.Error("chapter translation failed", "error", err)
		if serr := o.tasks.SetError(taskID, err.Error()); serr != nil {
			logger.Warn("failed to record task failure", "error", serr)
		}
	}
}

func (o *Orchestrator) execute(ctx context.Context, logger *slog.Logger, taskID, bookID, chapterID string, chunkSize int, delay time.Duration) error {
	unlock, err := o.locks.Lock(ctx, jobs.ChapterKey(JobType, bookID, chapterID))
	if err != nil {
		return fmt.Errorf("waiting for chapter lock: %w", err)
	}
	defer unlock()

	if err := o.tasks.SetStatus(taskID, tasks.StatusInProgress); err != nil {
		return err
	}

	raw, err := o.source.ChapterContent(ctx, bookID, chapterID)
	if err != nil {
		return fmt.Errorf("failed to load chapter: %w", err)
	}
	text := textnorm.CleanHTML(raw)
	if strings.TrimSpace(text) == "" {
		return ErrEmptyChapter
	}

	chunks := segment.Split(text, chunkSize)
	logger.Info("translating chapter", "chunks", len(chunks), "chars", len([]rune(text)))

	results := make([]string, len(chunks))
	for i, chunk := range chunks {
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if strings.TrimSpace(chunk.Text) != "" {
			translated, err := o.translator.Translate(ctx, chunk.Text, o.sourceLang, o.targetLang)
			if err != nil {
				return fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
			}
			results[chunk.Index] = o.spoken(translated)
		}

		if err := o.tasks.SetProgress(taskID, float64(i+1)/float64(len(chunks))); err != nil {
			return err
		}
		logger.Debug("chunk translated", "chunk", i+1, "of", len(chunks))
	}

	joined := joinResults(results)
	key := storage.TranslationKey(bookID, chapterID)
	if err := o.storage.Put(ctx, key, []byte(joined)); err != nil {
		return fmt.Errorf("failed to persist translation: %w", err)
	}
	if err := o.tasks.Complete(taskID, nil); err != nil {
		return err
	}
	logger.Info("chapter translation completed", "key", key)
	return nil
}

// spoken rewrites Arabic numerals as Chinese numerals when translating
// into Chinese. Other target languages are returned unchanged.
func (o *Orchestrator) spoken(text string) string {
	if !strings.HasPrefix(strings.ToLower(o.targetLang), "zh") {
		return text
	}
	return textnorm.VerbalizeNumbers(text)
}

// joinResults joins non-empty results in index order.
func joinResults(results []string) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if r != "" {
			parts = append(parts, r)
		}
	}
	return strings.Join(parts, ResultSeparator)
}

// TextResult is the outcome of a direct text translation.
type TextResult struct {
	OriginalText   string `json:"original_text"`
	TranslatedText string `json:"translated_text"`
	SourceLang     string `json:"source_lang"`
	TargetLang     string `json:"target_lang"`
	ModelUsed      string `json:"model_used"`
}

type modelTranslator interface {
	TranslateWithModel(ctx context.Context, text, sourceLang, targetLang, model string) (string, string, error)
}

// TranslateText translates text synchronously without creating a task.
// model overrides the provider default when the translator supports it.
func (o *Orchestrator) TranslateText(ctx context.Context, text, model string) (*TextResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text is required")
	}

	var (
		translated string
		used       = model
		err        error
	)
	if mt, ok := o.translator.(modelTranslator); ok {
		translated, used, err = mt.TranslateWithModel(ctx, text, o.sourceLang, o.targetLang, model)
	} else {
		translated, err = o.translator.Translate(ctx, text, o.sourceLang, o.targetLang)
	}
	if err != nil {
		return nil, err
	}
	if used == "" {
		used = o.translator.Name()
	}
	return &TextResult{
		OriginalText:   text,
		TranslatedText: o.spoken(translated),
		SourceLang:     o.sourceLang,
		TargetLang:     o.targetLang,
		ModelUsed:      used,
	}, nil
}

// Result reads a persisted chapter translation.
func (o *Orchestrator) Result(ctx context.Context, bookID, chapterID string) (string, error) {
	data, err := o.storage.Get(ctx, storage.TranslationKey(bookID, chapterID))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
