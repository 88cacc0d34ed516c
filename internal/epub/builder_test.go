package epub

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip.NewReader() error = %v", err)
	}
	if len(zr.File) == 0 || zr.File[0].Name != "mimetype" {
		t.Fatal("mimetype must be the first entry")
	}
	if zr.File[0].Method != zip.Store {
		t.Error("mimetype must be stored uncompressed")
	}

	files := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		files[f.Name] = string(b)
	}
	return files
}

func TestBuilder_TextOnly(t *testing.T) {
	book := Book{ID: "demo", Title: "Tom & Jerry", Author: "Anon", Language: "en", CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	chapters := []Chapter{
		{ID: "ch_001", Title: "One", Paragraphs: []string{"First <para>.", "Second."}},
		{ID: "ch_002", Title: "Two", Paragraphs: []string{"Third."}},
	}

	b := NewBuilder(book, chapters)
	if b.HasAudio() {
		t.Error("HasAudio() = true for text-only book")
	}
	buf, err := b.BuildToBuffer()
	if err != nil {
		t.Fatalf("BuildToBuffer() error = %v", err)
	}
	files := readZip(t, buf.Bytes())

	if files["mimetype"] != "application/epub+zip" {
		t.Errorf("mimetype = %q", files["mimetype"])
	}
	for _, name := range []string{"META-INF/container.xml", "OEBPS/content.opf", "OEBPS/nav.xhtml", "OEBPS/toc.ncx", "OEBPS/chapters/ch_001.xhtml", "OEBPS/chapters/ch_002.xhtml"} {
		if _, ok := files[name]; !ok {
			t.Errorf("missing %s", name)
		}
	}

	opf := files["OEBPS/content.opf"]
	if !strings.Contains(opf, "<dc:title>Tom &amp; Jerry</dc:title>") {
		t.Error("title not escaped in package document")
	}
	if !strings.Contains(opf, "2024-01-02T03:04:05Z") {
		t.Error("modified timestamp not taken from CreatedAt")
	}
	if strings.Contains(opf, "media-overlay") {
		t.Error("text-only book should not reference media overlays")
	}
	if strings.Index(opf, `idref="ch_001"`) > strings.Index(opf, `idref="ch_002"`) {
		t.Error("spine out of order")
	}

	ch1 := files["OEBPS/chapters/ch_001.xhtml"]
	if !strings.Contains(ch1, `<p id="p0">First &lt;para&gt;.</p>`) {
		t.Errorf("chapter paragraph not rendered with id:\n%s", ch1)
	}
}

func TestBuilder_MediaOverlay(t *testing.T) {
	mp3 := filepath.Join(t.TempDir(), "ch.mp3")
	if err := os.WriteFile(mp3, []byte("ID3-fake-audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	chapters := []Chapter{{
		ID:         "ch_001",
		Title:      "One",
		Paragraphs: []string{"Hello.", "World."},
		Audio: &ChapterAudio{
			File:       mp3,
			DurationMS: 3500,
			Clips: []Clip{
				{Paragraph: 0, StartMS: 0, EndMS: 1500},
				{Paragraph: 1, StartMS: 2000, EndMS: 3500},
			},
		},
	}}

	b := NewBuilder(Book{ID: "demo", Title: "Demo", Narrator: "mock"}, chapters)
	if !b.HasAudio() {
		t.Fatal("HasAudio() = false")
	}
	buf, err := b.BuildToBuffer()
	if err != nil {
		t.Fatalf("BuildToBuffer() error = %v", err)
	}
	files := readZip(t, buf.Bytes())

	if files["OEBPS/audio/ch_001.mp3"] != "ID3-fake-audio" {
		t.Error("audio not copied into the container")
	}

	opf := files["OEBPS/content.opf"]
	for _, want := range []string{
		`media-overlay="ch_001_overlay"`,
		`<meta property="media:duration">00:00:03.500</meta>`,
		`refines="#ch_001_overlay"`,
		`<meta property="media:narrator">mock</meta>`,
		`href="audio/ch_001.mp3" media-type="audio/mpeg"`,
	} {
		if !strings.Contains(opf, want) {
			t.Errorf("package document missing %q", want)
		}
	}

	smil := files["OEBPS/smil/ch_001.smil"]
	if !strings.Contains(smil, `<text src="../chapters/ch_001.xhtml#p1"/>`) {
		t.Error("SMIL does not reference paragraph p1")
	}
	if !strings.Contains(smil, `clipBegin="2.000s" clipEnd="3.500s"`) {
		t.Errorf("SMIL clip times wrong:\n%s", smil)
	}
	if !strings.Contains(files["OEBPS/styles/style.css"], "-epub-media-overlay-active") {
		t.Error("stylesheet missing overlay highlight class")
	}
}

func TestBuilder_StableIdentifier(t *testing.T) {
	build := func() string {
		buf, err := NewBuilder(Book{ID: "demo", Title: "Demo"}, []Chapter{{ID: "ch_001", Title: "One"}}).BuildToBuffer()
		if err != nil {
			t.Fatalf("BuildToBuffer() error = %v", err)
		}
		files := readZip(t, buf.Bytes())
		opf := files["OEBPS/content.opf"]
		start := strings.Index(opf, "urn:uuid:")
		return opf[start : start+len("urn:uuid:")+36]
	}

	if a, b := build(), build(); a != b {
		t.Errorf("identifier changed between builds: %s vs %s", a, b)
	}
}

func TestBuilder_NoChapters(t *testing.T) {
	_, err := NewBuilder(Book{Title: "Empty"}, nil).BuildToBuffer()
	if !errors.Is(err, ErrNoChapters) {
		t.Errorf("BuildToBuffer() error = %v, want ErrNoChapters", err)
	}
}

func TestFormatClockTime(t *testing.T) {
	tests := []struct {
		ms   int
		want string
	}{
		{0, "00:00:00.000"},
		{1500, "00:00:01.500"},
		{3723004, "01:02:03.004"},
	}
	for _, tt := range tests {
		if got := formatClockTime(tt.ms); got != tt.want {
			t.Errorf("formatClockTime(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}
