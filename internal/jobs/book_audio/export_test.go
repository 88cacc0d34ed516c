package book_audio

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/narrate/internal/jobs/chapter_audio"
	"github.com/jackzampolin/narrate/internal/storage"
)

func (f *fixture) addTranslation(t *testing.T, chapterID, text string) {
	t.Helper()
	if err := f.store.Put(context.Background(), storage.TranslationKey("book", chapterID), []byte(text)); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) addTimings(t *testing.T, chapterID string, segs ...chapter_audio.SegmentTiming) {
	t.Helper()
	tm := chapter_audio.Timings{BookID: "book", ChapterID: chapterID, Segments: segs}
	if len(segs) > 0 {
		tm.Duration = segs[len(segs)-1].End
	}
	data, err := json.Marshal(tm)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.store.Put(context.Background(), storage.TimingsKey("book", chapterID), data); err != nil {
		t.Fatal(err)
	}
}

func unzip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("not a zip archive: %v", err)
	}
	files := make(map[string]string)
	for _, zf := range zr.File {
		rc, err := zf.Open()
		if err != nil {
			t.Fatal(err)
		}
		b, _ := io.ReadAll(rc)
		rc.Close()
		files[zf.Name] = string(b)
	}
	return files
}

func TestExportEPUB(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addTranslation(t, "ch1", "第一句。\n第二句。")
	f.addTranslation(t, "ch2", "只有文字。\n\n第二段。")
	f.addChapterAudio(t, "ch1", 3*time.Second)
	f.addTimings(t, "ch1",
		chapter_audio.SegmentTiming{Index: 0, Text: "第一句。", Start: 0, End: 1.25},
		chapter_audio.SegmentTiming{Index: 1, Text: "第二句。", Start: 1.75, End: 3},
	)

	exp, err := f.svc.ExportEPUB(ctx, "book", ExportOptions{Narrator: "f5tts", IncludeAudio: true})
	if err != nil {
		t.Fatalf("ExportEPUB() error = %v", err)
	}
	if exp.Filename != "book.epub" || exp.URL != "/storage/exports/book.epub" {
		t.Errorf("unexpected export names: %+v", exp)
	}
	if exp.Chapters != 2 || exp.NarratedChapters != 1 {
		t.Errorf("chapters = %d narrated = %d, want 2 and 1", exp.Chapters, exp.NarratedChapters)
	}

	data, err := f.store.Get(ctx, storage.ExportKey(exp.Filename))
	if err != nil {
		t.Fatalf("export not stored: %v", err)
	}
	if int64(len(data)) != exp.Size {
		t.Errorf("Size = %d, stored %d bytes", exp.Size, len(data))
	}

	files := unzip(t, data)
	if files["OEBPS/audio/ch_001.mp3"] != "ch1" {
		t.Error("chapter audio not packaged")
	}
	if !strings.Contains(files["OEBPS/smil/ch_001.smil"], `clipBegin="1.750s" clipEnd="3.000s"`) {
		t.Errorf("unexpected overlay:\n%s", files["OEBPS/smil/ch_001.smil"])
	}
	if _, ok := files["OEBPS/smil/ch_002.smil"]; ok {
		t.Error("text-only chapter got an overlay")
	}
	if !strings.Contains(files["OEBPS/chapters/ch_002.xhtml"], `<p id="p1">第二段。</p>`) {
		t.Errorf("text chapter paragraphs wrong:\n%s", files["OEBPS/chapters/ch_002.xhtml"])
	}
	if !strings.Contains(files["OEBPS/content.opf"], "<dc:title>Moby Dick</dc:title>") {
		t.Error("book title missing from package document")
	}
}

func TestExportEPUB_TextOnly(t *testing.T) {
	f := newFixture(t)
	f.addTranslation(t, "ch2", "文字。")
	f.addChapterAudio(t, "ch2", time.Second)

	exp, err := f.svc.ExportEPUB(context.Background(), "book", ExportOptions{})
	if err != nil {
		t.Fatalf("ExportEPUB() error = %v", err)
	}
	if exp.Chapters != 1 || exp.NarratedChapters != 0 {
		t.Errorf("unexpected export: %+v", exp)
	}
}

func TestExportEPUB_NothingTranslated(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ExportEPUB(context.Background(), "book", ExportOptions{IncludeAudio: true})
	if !errors.Is(err, ErrNothingTranslated) {
		t.Errorf("ExportEPUB() error = %v, want ErrNothingTranslated", err)
	}
}

func TestCleanup_RemovesTimings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addChapterAudio(t, "ch1", time.Second)
	f.addTimings(t, "ch1", chapter_audio.SegmentTiming{Text: "a", End: 1})

	if _, err := f.svc.Cleanup(ctx, "book", nil); err != nil {
		t.Fatal(err)
	}
	if ok, _ := f.store.Exists(ctx, storage.TimingsKey("book", "ch1")); ok {
		t.Error("timings survived cleanup")
	}
}
