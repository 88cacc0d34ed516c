package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/narrate/internal/api"
	"github.com/jackzampolin/narrate/internal/jobs/book_audio"
	"github.com/jackzampolin/narrate/internal/storage"
	"github.com/jackzampolin/narrate/internal/svcctx"
)

// ExportEPUBRequest tunes an EPUB export. Audio is included unless
// NoAudio is set.
type ExportEPUBRequest struct {
	Language string `json:"language,omitempty"`
	Narrator string `json:"narrator,omitempty"`
	NoAudio  bool   `json:"no_audio,omitempty"`
}

// ExportEPUBEndpoint handles POST /api/books/{book_id}/export/epub.
type ExportEPUBEndpoint struct{}

func (e *ExportEPUBEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/books/{book_id}/export/epub", e.handler
}

func (e *ExportEPUBEndpoint) RequiresInit() bool { return true }

func (e *ExportEPUBEndpoint) Group() string { return "books" }

func (e *ExportEPUBEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	extendWriteDeadline(w, syncWriteTimeout)

	var req ExportEPUBRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	svc := svcctx.BookAudioFrom(r.Context())
	if svc == nil {
		writeError(w, http.StatusServiceUnavailable, "book audio not initialized")
		return
	}

	exp, err := svc.ExportEPUB(r.Context(), r.PathValue("book_id"), book_audio.ExportOptions{
		Language:     req.Language,
		Narrator:     req.Narrator,
		IncludeAudio: !req.NoAudio,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

func (e *ExportEPUBEndpoint) Command(getServerURL func() string) *cobra.Command {
	var req ExportEPUBRequest
	var out string
	cmd := &cobra.Command{
		Use:   "export <book_id>",
		Short: "Export the translated book as an EPUB with narration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var exp book_audio.Export
			path := "/api/books/" + url.PathEscape(args[0]) + "/export/epub"
			if err := client.Post(cmd.Context(), path, req, &exp); err != nil {
				return err
			}
			if out == "" {
				return api.Output(exp)
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", out, err)
			}
			defer f.Close()
			n, err := client.Download(cmd.Context(), storage.ExportURL(url.PathEscape(exp.Filename)), f)
			if err != nil {
				os.Remove(out)
				return err
			}
			fmt.Printf("Wrote %s (%d bytes, %d of %d chapters narrated)\n", out, n, exp.NarratedChapters, exp.Chapters)
			return nil
		},
	}
	cmd.Flags().BoolVar(&req.NoAudio, "no-audio", false, "Export text only")
	cmd.Flags().StringVar(&req.Narrator, "narrator", "", "Narrator recorded in the book metadata")
	cmd.Flags().StringVar(&req.Language, "language", "", "Book language (default zh)")
	cmd.Flags().StringVarP(&out, "file", "f", "", "Download the EPUB to this path")
	return cmd
}

// ExportFileEndpoint handles GET /storage/exports/{file}.
type ExportFileEndpoint struct{}

func (e *ExportFileEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", storage.ExportURLPrefix + "{file}", e.handler
}

func (e *ExportFileEndpoint) RequiresInit() bool { return true }

func (e *ExportFileEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	extendWriteDeadline(w, syncWriteTimeout)

	st := svcctx.StorageFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "storage not initialized")
		return
	}

	key := storage.ExportKey(r.PathValue("file"))
	if _, err := st.Stat(key); err != nil {
		writeServiceError(w, err)
		return
	}
	p, err := st.Path(key)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/epub+zip")
	http.ServeFile(w, r, p)
}

func (e *ExportFileEndpoint) Command(getServerURL func() string) *cobra.Command {
	return nil
}
