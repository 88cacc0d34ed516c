package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jackzampolin/narrate/internal/storage"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS books (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	author TEXT NOT NULL DEFAULT '',
	source_dir TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS chapters (
	book_id TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
	chapter_id TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	position INTEGER NOT NULL,
	content TEXT NOT NULL,
	PRIMARY KEY (book_id, chapter_id)
);

CREATE INDEX IF NOT EXISTS idx_chapters_position ON chapters(book_id, position);
`

// Catalog is a SQLite-backed book catalog.
type Catalog struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the catalog at path. Use ":memory:" in tests.
func Open(path string, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	// ":memory:" databases are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create catalog schema: %w", err)
	}
	return &Catalog{db: db, logger: logger.With("component", "library")}, nil
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Ping checks the database is usable.
func (c *Catalog) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// AddBook inserts a book and its chapters in one transaction. Chapter
// positions are taken from slice order. An empty book ID gets a UUID.
func (c *Catalog) AddBook(ctx context.Context, book *Book, chapters []Chapter) (*Book, error) {
	if book.Title == "" {
		return nil, fmt.Errorf("book title is required")
	}
	if len(chapters) == 0 {
		return nil, fmt.Errorf("book %q has no chapters", book.Title)
	}
	ids := make([]string, len(chapters))
	for i, ch := range chapters {
		ids[i] = ch.ID
	}
	if err := storage.CheckChapterIDs(ids); err != nil {
		return nil, err
	}
	out := *book
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO books (id, title, author, source_dir, created_at) VALUES (?, ?, ?, ?, ?)`,
		out.ID, out.Title, out.Author, out.SourceDir, out.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to insert book: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chapters (book_id, chapter_id, title, position, content) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare chapter insert: %w", err)
	}
	defer stmt.Close()

	out.Chapters = make([]Chapter, 0, len(chapters))
	for i, ch := range chapters {
		if ch.ID == "" {
			return nil, fmt.Errorf("chapter %d has no id", i)
		}
		if _, err := stmt.ExecContext(ctx, out.ID, ch.ID, ch.Title, i, ch.Content); err != nil {
			return nil, fmt.Errorf("failed to insert chapter %s: %w", ch.ID, err)
		}
		out.Chapters = append(out.Chapters, Chapter{ID: ch.ID, Title: ch.Title, Position: i})
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit book: %w", err)
	}
	out.ChapterCount = len(out.Chapters)

	c.logger.Info("book added", "book_id", out.ID, "title", out.Title, "chapters", out.ChapterCount)
	return &out, nil
}

// Books lists every book, newest first, without chapters.
func (c *Catalog) Books(ctx context.Context) ([]Book, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT b.id, b.title, b.author, b.source_dir, b.created_at, COUNT(ch.chapter_id)
		FROM books b LEFT JOIN chapters ch ON ch.book_id = b.id
		GROUP BY b.id
		ORDER BY b.created_at DESC, b.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	defer rows.Close()

	books := []Book{}
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.SourceDir, &b.CreatedAt, &b.ChapterCount); err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// Book returns one book with its ordered chapter list.
func (c *Catalog) Book(ctx context.Context, bookID string) (*Book, error) {
	var b Book
	err := c.db.QueryRowContext(ctx,
		`SELECT id, title, author, source_dir, created_at FROM books WHERE id = ?`, bookID,
	).Scan(&b.ID, &b.Title, &b.Author, &b.SourceDir, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("book %s: %w", bookID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get book: %w", err)
	}

	chapters, err := c.Chapters(ctx, bookID)
	if err != nil {
		return nil, err
	}
	b.Chapters = chapters
	b.ChapterCount = len(chapters)
	return &b, nil
}

// Chapters returns the chapters of a book in reading order.
func (c *Catalog) Chapters(ctx context.Context, bookID string) ([]Chapter, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT chapter_id, title, position FROM chapters WHERE book_id = ? ORDER BY position`, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}
	defer rows.Close()

	chapters := []Chapter{}
	for rows.Next() {
		var ch Chapter
		if err := rows.Scan(&ch.ID, &ch.Title, &ch.Position); err != nil {
			return nil, fmt.Errorf("failed to scan chapter: %w", err)
		}
		chapters = append(chapters, ch)
	}
	return chapters, rows.Err()
}

// ChapterContent implements ChapterSource.
func (c *Catalog) ChapterContent(ctx context.Context, bookID, chapterID string) (string, error) {
	var content string
	err := c.db.QueryRowContext(ctx,
		`SELECT content FROM chapters WHERE book_id = ? AND chapter_id = ?`, bookID, chapterID,
	).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("chapter %s of book %s: %w", chapterID, bookID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read chapter: %w", err)
	}
	return content, nil
}

// DeleteBook removes a book and its chapters.
func (c *Catalog) DeleteBook(ctx context.Context, bookID string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chapters WHERE book_id = ?`, bookID); err != nil {
		return fmt.Errorf("failed to delete chapters: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, bookID)
	if err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("book %s: %w", bookID, ErrNotFound)
	}
	return tx.Commit()
}

var _ ChapterSource = (*Catalog)(nil)
