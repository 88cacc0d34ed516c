// Package storage persists pipeline artifacts (translations, audio,
// metadata) under slash-separated keys.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a key has no object.
	ErrNotFound = errors.New("object not found")

	// ErrInvalidKey is returned for keys that would escape the storage root.
	ErrInvalidKey = errors.New("invalid storage key")
)

// Sink is a keyed blob store.
type Sink interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// SafeName makes an identifier usable as a single path element.
// Chapter IDs are often relative paths ("OEBPS/ch1.xhtml").
func SafeName(id string) string {
	return strings.NewReplacer("/", "_", `\`, "_", ":", "_").Replace(id)
}

// BookAudioName is the chapter slot taken by the whole-book merge
// ("{book}_complete.mp3").
const BookAudioName = "complete"

// CheckChapterIDs rejects chapter IDs of one book whose audio names would
// collide: an ID whose safe name is BookAudioName, or two IDs that differ
// only in characters SafeName folds ("a/b" and "a_b").
func CheckChapterIDs(chapterIDs []string) error {
	seen := make(map[string]string, len(chapterIDs))
	for _, id := range chapterIDs {
		name := SafeName(id)
		if name == BookAudioName {
			return fmt.Errorf("%w: chapter id %q is reserved", ErrInvalidKey, id)
		}
		if prev, ok := seen[name]; ok {
			return fmt.Errorf("%w: chapter ids %q and %q share the name %q", ErrInvalidKey, prev, id, name)
		}
		seen[name] = id
	}
	return nil
}

// Key layout.
const (
	TranslationsPrefix = "translations"
	AudioPrefix        = "audio"
	TimingsPrefix      = "timings"
	ExportsPrefix      = "exports"
)

// TranslationKey is where a chapter translation is stored.
func TranslationKey(bookID, chapterID string) string {
	return TranslationsPrefix + "/" + SafeName(bookID) + "/" + SafeName(chapterID) + ".txt"
}

// TimingsKey is where the segment timings of a narrated chapter are stored.
func TimingsKey(bookID, chapterID string) string {
	return TimingsPrefix + "/" + SafeName(bookID) + "/" + SafeName(chapterID) + ".json"
}

// ExportKey is the key of a file in the exports area.
func ExportKey(filename string) string {
	return ExportsPrefix + "/" + filename
}

// EPUBFile names the EPUB export of a book.
func EPUBFile(bookID string) string {
	return SafeName(bookID) + ".epub"
}

// ExportURLPrefix is where the HTTP server exposes the exports area.
const ExportURLPrefix = "/storage/exports/"

// ExportURL is the public URL of a file in the exports area.
func ExportURL(filename string) string {
	return ExportURLPrefix + filename
}

// AudioKey is the key of a file in the audio area.
func AudioKey(filename string) string {
	return AudioPrefix + "/" + filename
}

// AudioURLPrefix is where the HTTP server exposes the audio area.
const AudioURLPrefix = "/storage/audio/"

// ChapterAudioFile names the merged audio of one chapter.
func ChapterAudioFile(bookID, chapterID string) string {
	return SafeName(bookID) + "_" + SafeName(chapterID) + ".mp3"
}

// BookAudioFile names the merged audio of a whole book.
func BookAudioFile(bookID string) string {
	return SafeName(bookID) + "_" + BookAudioName + ".mp3"
}

// BookMetadataFile names the metadata written next to a book merge.
func BookMetadataFile(bookID string) string {
	return SafeName(bookID) + "_metadata.json"
}

// AudioURL is the public URL of a file in the audio area.
func AudioURL(filename string) string {
	return AudioURLPrefix + filename
}
