package translate_chapter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/narrate/internal/library"
	"github.com/jackzampolin/narrate/internal/providers"
	"github.com/jackzampolin/narrate/internal/storage"
	"github.com/jackzampolin/narrate/internal/tasks"
)

const threeParagraphs = `<?xml version="1.0"?><html><body>` +
	`<p>Chapter 2.1</p><p>Second paragraph.</p><p>Third one here.</p>` +
	`</body></html>`

type mapSource map[string]string

func (m mapSource) ChapterContent(_ context.Context, bookID, chapterID string) (string, error) {
	c, ok := m[bookID+"/"+chapterID]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", library.ErrNotFound, bookID, chapterID)
	}
	return c, nil
}

type fixture struct {
	orch       *Orchestrator
	tasks      *tasks.MemoryStore
	storage    *storage.FS
	translator *providers.MockTranslator
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		tasks:      tasks.NewMemoryStore(nil),
		storage:    fs,
		translator: providers.NewMockTranslator(),
	}
	cfg := Config{
		Tasks:      f.tasks,
		Source:     mapSource{"book/ch1.xhtml": threeParagraphs},
		Translator: f.translator,
		Storage:    fs,
		ChunkSize:  20,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	f.orch, err = New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func (f *fixture) task(t *testing.T, id string) *tasks.Task {
	t.Helper()
	task, err := f.tasks.Get(id)
	if err != nil {
		t.Fatalf("Get(%s) error = %v", id, err)
	}
	return task
}

func TestTranslateChapter_Success(t *testing.T) {
	f := newFixture(t, nil)

	id, err := f.orch.TranslateChapter(context.Background(), "book", "ch1.xhtml")
	if err != nil {
		t.Fatalf("TranslateChapter() error = %v", err)
	}
	f.orch.Wait()

	task := f.task(t, id)
	if task.Status != tasks.StatusCompleted || task.Progress != 1.0 || task.CompletedAt == nil {
		t.Fatalf("unexpected task: %+v", task)
	}

	calls := f.translator.Calls()
	if len(calls) != 3 {
		t.Fatalf("expected 3 chunk translations, got %d: %q", len(calls), calls)
	}

	got, err := f.orch.Result(context.Background(), "book", "ch1.xhtml")
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}
	want := "译:Chapter 二点一\n\n译:Second paragraph.\n\n译:Third one here."
	if got != want {
		t.Errorf("unexpected translation:\n got %q\nwant %q", got, want)
	}
}

func TestTranslateChapter_FailurePersistsNothing(t *testing.T) {
	f := newFixture(t, nil)
	f.translator.FailAt = 2
	f.translator.Err = &providers.StatusError{Provider: "chat", StatusCode: 401}

	id, err := f.orch.TranslateChapter(context.Background(), "book", "ch1.xhtml")
	if err != nil {
		t.Fatal(err)
	}
	f.orch.Wait()

	task := f.task(t, id)
	if task.Status != tasks.StatusFailed {
		t.Fatalf("expected failed, got %s", task.Status)
	}
	if !strings.Contains(task.ErrorMessage, "chunk 2/3") {
		t.Errorf("error should name the chunk: %q", task.ErrorMessage)
	}
	if task.Progress < 0.33 || task.Progress > 0.34 {
		t.Errorf("expected progress of one chunk, got %f", task.Progress)
	}
	if len(f.translator.Calls()) != 2 {
		t.Errorf("remaining chunks should be skipped, got %d calls", len(f.translator.Calls()))
	}
	if _, err := f.orch.Result(context.Background(), "book", "ch1.xhtml"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected no persisted translation, got %v", err)
	}
}

func TestTranslateChapter_UnknownChapter(t *testing.T) {
	f := newFixture(t, nil)

	id, err := f.orch.TranslateChapter(context.Background(), "book", "missing.xhtml")
	if err != nil {
		t.Fatal(err)
	}
	f.orch.Wait()

	task := f.task(t, id)
	if task.Status != tasks.StatusFailed || !strings.Contains(task.ErrorMessage, "not found") {
		t.Fatalf("unexpected task: %+v", task)
	}
}

func TestTranslateChapter_EmptyChapter(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.Source = mapSource{"book/blank": "<html><body><p> </p></body></html>"}
	})

	id, _ := f.orch.TranslateChapter(context.Background(), "book", "blank")
	f.orch.Wait()
	if task := f.task(t, id); task.Status != tasks.StatusFailed {
		t.Fatalf("expected failed, got %s", task.Status)
	}
}

func TestTranslateChapter_ShutdownFailsRunningJob(t *testing.T) {
	base, cancel := context.WithCancel(context.Background())
	f := newFixture(t, func(c *Config) { c.BaseContext = base })
	f.translator.Latency = time.Minute

	// The request context ending must not stop the job; shutdown does.
	reqCtx, reqCancel := context.WithCancel(context.Background())
	id, err := f.orch.TranslateChapter(reqCtx, "book", "ch1.xhtml")
	if err != nil {
		t.Fatal(err)
	}
	reqCancel()

	time.Sleep(20 * time.Millisecond)
	if task := f.task(t, id); task.Status != tasks.StatusInProgress {
		t.Fatalf("expected in_progress after request ended, got %s", task.Status)
	}

	cancel()
	f.orch.Wait()
	task := f.task(t, id)
	if task.Status != tasks.StatusFailed || !strings.Contains(task.ErrorMessage, "context canceled") {
		t.Fatalf("unexpected task after shutdown: %+v", task)
	}
}

func TestTranslateChapter_ChunkDelay(t *testing.T) {
	f := newFixture(t, nil)
	f.orch.SetPacing(0, 15*time.Millisecond)

	start := time.Now()
	id, _ := f.orch.TranslateChapter(context.Background(), "book", "ch1.xhtml")
	f.orch.Wait()

	if task := f.task(t, id); task.Status != tasks.StatusCompleted {
		t.Fatalf("expected completed, got %s: %s", task.Status, task.ErrorMessage)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("expected two pauses between three chunks, took %s", elapsed)
	}
}

func TestTranslateText(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.orch.TranslateText(context.Background(), "It costs 25 coins.", "")
	if err != nil {
		t.Fatalf("TranslateText() error = %v", err)
	}
	if res.TranslatedText != "译:It costs 二十五 coins." {
		t.Errorf("unexpected translation: %q", res.TranslatedText)
	}
	if res.SourceLang != "en" || res.TargetLang != "zh" || res.ModelUsed != providers.MockClientName {
		t.Errorf("unexpected metadata: %+v", res)
	}
	if f.tasks.Len() != 0 {
		t.Error("direct translation should not create a task")
	}

	if _, err := f.orch.TranslateText(context.Background(), "   ", ""); err == nil {
		t.Error("expected error for empty text")
	}
}

func TestTranslateText_NumeralsFollowTargetLang(t *testing.T) {
	tests := []struct {
		lang string
		want string
	}{
		{lang: "zh", want: "译:It costs 二十五 coins."},
		{lang: "zh-CN", want: "译:It costs 二十五 coins."},
		{lang: "en", want: "译:It costs 25 coins."},
		{lang: "fr", want: "译:It costs 25 coins."},
	}
	for _, tt := range tests {
		t.Run(tt.lang, func(t *testing.T) {
			f := newFixture(t, func(cfg *Config) { cfg.TargetLang = tt.lang })

			res, err := f.orch.TranslateText(context.Background(), "It costs 25 coins.", "")
			if err != nil {
				t.Fatalf("TranslateText() error = %v", err)
			}
			if res.TranslatedText != tt.want {
				t.Errorf("expected %q, got %q", tt.want, res.TranslatedText)
			}
		})
	}
}

func TestTranslateChapter_KeepsDigitsForNonChinese(t *testing.T) {
	f := newFixture(t, func(cfg *Config) { cfg.TargetLang = "en" })

	id, err := f.orch.TranslateChapter(context.Background(), "book", "ch1.xhtml")
	if err != nil {
		t.Fatalf("TranslateChapter() error = %v", err)
	}
	f.orch.Wait()
	if task := f.task(t, id); task.Status != tasks.StatusCompleted {
		t.Fatalf("expected completed, got %s: %s", task.Status, task.ErrorMessage)
	}

	text, err := f.orch.Result(context.Background(), "book", "ch1.xhtml")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "2.1") {
		t.Errorf("expected digits kept for an English target, got %q", text)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}
