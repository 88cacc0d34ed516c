// Package library is the book catalog: books, their ordered chapters and
// the raw chapter XHTML the pipelines read from.
package library

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for unknown books or chapters.
var ErrNotFound = errors.New("not found")

// ChapterSource supplies raw chapter markup.
type ChapterSource interface {
	ChapterContent(ctx context.Context, bookID, chapterID string) (string, error)
}

// Book is a catalog entry.
type Book struct {
	ID        string    `json:"book_id"`
	Title     string    `json:"title"`
	Author    string    `json:"author,omitempty"`
	SourceDir string    `json:"source_dir,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	ChapterCount int       `json:"chapter_count"`
	Chapters     []Chapter `json:"chapters,omitempty"`
}

// Chapter is one ordered chapter of a book. Content is only populated
// when explicitly requested.
type Chapter struct {
	ID       string `json:"chapter_id"`
	Title    string `json:"title"`
	Position int    `json:"order"`
	Content  string `json:"-"`
}
