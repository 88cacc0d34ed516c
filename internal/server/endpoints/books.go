package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/narrate/internal/api"
	"github.com/jackzampolin/narrate/internal/library"
	"github.com/jackzampolin/narrate/internal/svcctx"
	"github.com/jackzampolin/narrate/internal/textnorm"
)

// ImportBookRequest is the request body for importing a book directory.
type ImportBookRequest struct {
	Dir    string `json:"dir"`
	BookID string `json:"book_id,omitempty"`
	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"`
}

// ImportBookEndpoint handles POST /api/books/import.
type ImportBookEndpoint struct{}

func (e *ImportBookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/books/import", e.handler
}

func (e *ImportBookEndpoint) RequiresInit() bool { return true }

func (e *ImportBookEndpoint) Group() string { return "books" }

func (e *ImportBookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req ImportBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Dir == "" {
		writeError(w, http.StatusBadRequest, "dir is required")
		return
	}

	catalog := svcctx.CatalogFrom(r.Context())
	if catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog not initialized")
		return
	}

	book, err := catalog.ImportDir(r.Context(), req.Dir, library.ImportOptions{
		BookID: req.BookID,
		Title:  req.Title,
		Author: req.Author,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (e *ImportBookEndpoint) Command(getServerURL func() string) *cobra.Command {
	var req ImportBookRequest
	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Import a directory of XHTML chapters as a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// The server resolves the path, so send it absolute.
			abs, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("invalid path: %w", err)
			}
			req.Dir = abs

			client := api.NewClient(getServerURL())
			var book library.Book
			if err := client.Post(cmd.Context(), "/api/books/import", req, &book); err != nil {
				return err
			}
			return api.Output(book)
		},
	}
	cmd.Flags().StringVar(&req.BookID, "id", "", "Book ID (generated when empty)")
	cmd.Flags().StringVar(&req.Title, "title", "", "Book title (defaults to the directory name)")
	cmd.Flags().StringVar(&req.Author, "author", "", "Book author")
	return cmd
}

// ListBooksResponse is the response for listing books.
type ListBooksResponse struct {
	Books []library.Book `json:"books"`
}

// ListBooksEndpoint handles GET /api/books.
type ListBooksEndpoint struct{}

func (e *ListBooksEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books", e.handler
}

func (e *ListBooksEndpoint) RequiresInit() bool { return true }

func (e *ListBooksEndpoint) Group() string { return "books" }

func (e *ListBooksEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	catalog := svcctx.CatalogFrom(r.Context())
	if catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog not initialized")
		return
	}

	books, err := catalog.Books(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if books == nil {
		books = []library.Book{}
	}
	writeJSON(w, http.StatusOK, ListBooksResponse{Books: books})
}

func (e *ListBooksEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List books",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListBooksResponse
			if err := client.Get(cmd.Context(), "/api/books", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// GetBookEndpoint handles GET /api/books/{book_id}.
type GetBookEndpoint struct{}

func (e *GetBookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{book_id}", e.handler
}

func (e *GetBookEndpoint) RequiresInit() bool { return true }

func (e *GetBookEndpoint) Group() string { return "books" }

func (e *GetBookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	catalog := svcctx.CatalogFrom(r.Context())
	if catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog not initialized")
		return
	}

	book, err := catalog.Book(r.Context(), r.PathValue("book_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (e *GetBookEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <book_id>",
		Short: "Get a book and its chapters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var book library.Book
			if err := client.Get(cmd.Context(), "/api/books/"+url.PathEscape(args[0]), &book); err != nil {
				return err
			}
			return api.Output(book)
		},
	}
}

// DeleteBookEndpoint handles DELETE /api/books/{book_id}.
// Generated translations and audio are left in place.
type DeleteBookEndpoint struct{}

func (e *DeleteBookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/books/{book_id}", e.handler
}

func (e *DeleteBookEndpoint) RequiresInit() bool { return true }

func (e *DeleteBookEndpoint) Group() string { return "books" }

func (e *DeleteBookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	catalog := svcctx.CatalogFrom(r.Context())
	if catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog not initialized")
		return
	}

	if err := catalog.DeleteBook(r.Context(), r.PathValue("book_id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *DeleteBookEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <book_id>",
		Short: "Remove a book from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if err := client.Delete(cmd.Context(), "/api/books/"+url.PathEscape(args[0]), nil, nil); err != nil {
				return err
			}
			fmt.Printf("Deleted book %s\n", args[0])
			return nil
		},
	}
}

// ChapterContentResponse carries a chapter's source markup and the plain
// text the translator sees.
type ChapterContentResponse struct {
	BookID    string `json:"book_id"`
	ChapterID string `json:"chapter_id"`
	Content   string `json:"content"`
	Text      string `json:"text"`
}

// GetChapterEndpoint handles GET /api/books/{book_id}/chapters/{chapter_id...}.
type GetChapterEndpoint struct{}

func (e *GetChapterEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{book_id}/chapters/{chapter_id...}", e.handler
}

func (e *GetChapterEndpoint) RequiresInit() bool { return true }

func (e *GetChapterEndpoint) Group() string { return "chapters" }

func (e *GetChapterEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	catalog := svcctx.CatalogFrom(r.Context())
	if catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog not initialized")
		return
	}

	bookID, chapterID := r.PathValue("book_id"), r.PathValue("chapter_id")
	content, err := catalog.ChapterContent(r.Context(), bookID, chapterID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ChapterContentResponse{
		BookID:    bookID,
		ChapterID: chapterID,
		Content:   content,
		Text:      textnorm.CleanHTML(content),
	})
}

func (e *GetChapterEndpoint) Command(getServerURL func() string) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show <book_id> <chapter_id>",
		Short: "Show the text of a source chapter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ChapterContentResponse
			path := "/api/books/" + url.PathEscape(args[0]) + "/chapters/" + escapeChapter(args[1])
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(resp)
			}
			if raw {
				fmt.Println(resp.Content)
			} else {
				fmt.Println(resp.Text)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the source markup instead of plain text")
	return cmd
}
