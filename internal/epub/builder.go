// Package epub writes EPUB 3 files of translated books. Chapters that have
// narration get Media Overlays, so reading systems can play the audio and
// highlight each paragraph as it is read.
package epub

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ErrNoChapters is returned when a builder has nothing to write.
var ErrNoChapters = errors.New("epub has no chapters")

// Book contains the metadata needed for epub generation.
type Book struct {
	ID        string
	Title     string
	Author    string
	Language  string // BCP 47 tag (e.g., "en")
	Narrator  string // only written when some chapter has audio
	CreatedAt time.Time
}

// Chapter is one spine item.
type Chapter struct {
	ID         string // XML-safe identifier (e.g., "ch_001")
	Title      string
	Paragraphs []string
	Audio      *ChapterAudio // nil for text-only chapters
}

// Builder creates ePub 3.0 files.
type Builder struct {
	book     Book
	chapters []Chapter
	uid      string
}

// NewBuilder creates a new epub builder.
func NewBuilder(book Book, chapters []Chapter) *Builder {
	return &Builder{
		book:     book,
		chapters: chapters,
	}
}

// HasAudio reports whether any chapter carries a media overlay.
func (b *Builder) HasAudio() bool {
	for _, ch := range b.chapters {
		if ch.Audio != nil {
			return true
		}
	}
	return false
}

// Build generates the epub and writes it to the specified path.
func (b *Builder) Build(outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	return b.WriteTo(f)
}

// WriteTo writes the epub to a writer.
func (b *Builder) WriteTo(w io.Writer) error {
	if len(b.chapters) == 0 {
		return ErrNoChapters
	}

	zw := zip.NewWriter(w)

	// mimetype must be first and uncompressed
	if err := b.writeStored(zw, "mimetype", []byte("application/epub+zip")); err != nil {
		return err
	}

	parts := []struct {
		name    string
		content string
	}{
		{"META-INF/container.xml", containerXML},
		{"OEBPS/content.opf", b.generatePackage()},
		{"OEBPS/nav.xhtml", b.generateNavigation()},
		{"OEBPS/toc.ncx", b.generateNCX()},
		{"OEBPS/styles/style.css", b.stylesheet()},
	}
	for _, p := range parts {
		if err := writeText(zw, p.name, p.content); err != nil {
			return err
		}
	}

	for _, ch := range b.chapters {
		if err := writeText(zw, "OEBPS/chapters/"+ch.ID+".xhtml", b.generateChapterXHTML(ch)); err != nil {
			return fmt.Errorf("failed to write chapter %s: %w", ch.ID, err)
		}
		if ch.Audio == nil {
			continue
		}
		if err := writeText(zw, "OEBPS/smil/"+ch.ID+".smil", generateSMIL(ch.ID, *ch.Audio)); err != nil {
			return fmt.Errorf("failed to write SMIL for %s: %w", ch.ID, err)
		}
		if err := b.writeAudioFile(zw, ch.ID, *ch.Audio); err != nil {
			return fmt.Errorf("failed to write audio for %s: %w", ch.ID, err)
		}
	}

	return zw.Close()
}

// BuildToBuffer generates the epub and returns it as a byte buffer.
func (b *Builder) BuildToBuffer() (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	if err := b.WriteTo(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

func writeText(zw *zip.Writer, name, content string) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	_, err = io.WriteString(w, content)
	return err
}

// writeStored adds an uncompressed entry.
func (b *Builder) writeStored(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	_, err = w.Write(data)
	return err
}

// writeAudioFile copies the chapter MP3 into the container. Audio gains
// nothing from deflate, so it is stored.
func (b *Builder) writeAudioFile(zw *zip.Writer, chapterID string, audio ChapterAudio) error {
	f, err := os.Open(audio.File)
	if err != nil {
		return fmt.Errorf("failed to open audio file %s: %w", audio.File, err)
	}
	defer f.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{Name: "OEBPS/" + audioHref(chapterID), Method: zip.Store})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

func audioHref(chapterID string) string {
	return "audio/" + chapterID + ".mp3"
}

// generateUUID returns the publication identifier. It is stable per book
// ID so re-exports replace the same title in reading systems.
func (b *Builder) generateUUID() string {
	if b.uid != "" {
		return b.uid
	}
	if b.book.ID != "" {
		b.uid = "urn:uuid:" + uuid.NewSHA1(uuid.NameSpaceURL, []byte("narrate:"+b.book.ID)).String()
	} else {
		b.uid = "urn:uuid:" + uuid.New().String()
	}
	return b.uid
}

func (b *Builder) stylesheet() string {
	if !b.HasAudio() {
		return defaultStylesheet
	}
	return defaultStylesheet + `
/* Media Overlay active text highlighting */
.-epub-media-overlay-active {
  background-color: #ffffcc;
}
`
}

const defaultStylesheet = `/* narrate ePub Stylesheet */

body {
  font-family: Georgia, "Times New Roman", serif;
  font-size: 1em;
  line-height: 1.6;
  margin: 1em;
  text-align: justify;
}

h1 {
  font-family: "Helvetica Neue", Helvetica, Arial, sans-serif;
  font-size: 1.8em;
  font-weight: bold;
  margin-top: 1.5em;
  margin-bottom: 0.5em;
  text-align: left;
  border-bottom: 1px solid #ccc;
  padding-bottom: 0.3em;
}

p {
  margin: 0.5em 0;
  text-indent: 1.5em;
}

h1 + p {
  text-indent: 0;
}
`
