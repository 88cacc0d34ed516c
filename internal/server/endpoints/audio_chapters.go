package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/narrate/internal/api"
	"github.com/jackzampolin/narrate/internal/jobs/book_audio"
	"github.com/jackzampolin/narrate/internal/jobs/chapter_audio"
	"github.com/jackzampolin/narrate/internal/storage"
	"github.com/jackzampolin/narrate/internal/svcctx"
	"github.com/jackzampolin/narrate/internal/tasks"
)

// GenerateChapterAudioEndpoint handles POST /api/books/{book_id}/audio/generate/{chapter_id...}.
type GenerateChapterAudioEndpoint struct{}

func (e *GenerateChapterAudioEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/books/{book_id}/audio/generate/{chapter_id...}", e.handler
}

func (e *GenerateChapterAudioEndpoint) RequiresInit() bool { return true }

func (e *GenerateChapterAudioEndpoint) Group() string { return "chapters" }

func (e *GenerateChapterAudioEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	bookID, chapterID := r.PathValue("book_id"), r.PathValue("chapter_id")
	if chapterID == "" {
		writeError(w, http.StatusBadRequest, "chapter id is required")
		return
	}

	orch := svcctx.ChapterAudioFrom(r.Context())
	if orch == nil {
		writeError(w, http.StatusServiceUnavailable, "audio generation not initialized")
		return
	}

	taskID, err := orch.GenerateChapterAudio(r.Context(), bookID, chapterID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, TaskResponse{TaskID: taskID, Status: tasks.StatusPending})
}

func (e *GenerateChapterAudioEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "narrate <book_id> <chapter_id>",
		Short: "Start generating audio for a translated chapter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp TaskResponse
			path := "/api/books/" + url.PathEscape(args[0]) + "/audio/generate/" + escapeChapter(args[1])
			if err := client.Post(cmd.Context(), path, nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ChapterAudioInfoEndpoint handles GET /api/books/{book_id}/audio/chapters/{chapter_id...}.
type ChapterAudioInfoEndpoint struct{}

func (e *ChapterAudioInfoEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{book_id}/audio/chapters/{chapter_id...}", e.handler
}

func (e *ChapterAudioInfoEndpoint) RequiresInit() bool { return true }

func (e *ChapterAudioInfoEndpoint) Group() string { return "chapters" }

func (e *ChapterAudioInfoEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	orch := svcctx.ChapterAudioFrom(r.Context())
	if orch == nil {
		writeError(w, http.StatusServiceUnavailable, "audio generation not initialized")
		return
	}

	info, err := orch.ChapterAudioInfo(r.Context(), r.PathValue("book_id"), r.PathValue("chapter_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (e *ChapterAudioInfoEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "audio <book_id> <chapter_id>",
		Short: "Show the merged audio of a chapter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp chapter_audio.ChapterAudio
			path := "/api/books/" + url.PathEscape(args[0]) + "/audio/chapters/" + escapeChapter(args[1])
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// SplitChapterRequest is the request body for splitting chapter audio.
type SplitChapterRequest struct {
	SegmentSeconds int `json:"segment_seconds,omitempty"`
}

// SplitChapterResponse lists the pieces of a split chapter.
type SplitChapterResponse struct {
	BookID    string                 `json:"book_id"`
	ChapterID string                 `json:"chapter_id"`
	Files     []book_audio.SplitFile `json:"files"`
}

// SplitChapterEndpoint handles POST /api/books/{book_id}/audio/split/{chapter_id...}.
type SplitChapterEndpoint struct{}

func (e *SplitChapterEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/books/{book_id}/audio/split/{chapter_id...}", e.handler
}

func (e *SplitChapterEndpoint) RequiresInit() bool { return true }

func (e *SplitChapterEndpoint) Group() string { return "chapters" }

func (e *SplitChapterEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	extendWriteDeadline(w, syncWriteTimeout)

	var req SplitChapterRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SegmentSeconds < 0 {
		writeError(w, http.StatusBadRequest, "segment_seconds must be positive")
		return
	}

	svc := svcctx.BookAudioFrom(r.Context())
	if svc == nil {
		writeError(w, http.StatusServiceUnavailable, "book audio not initialized")
		return
	}

	bookID, chapterID := r.PathValue("book_id"), r.PathValue("chapter_id")
	files, err := svc.SplitChapter(r.Context(), bookID, chapterID, req.SegmentSeconds)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SplitChapterResponse{BookID: bookID, ChapterID: chapterID, Files: files})
}

func (e *SplitChapterEndpoint) Command(getServerURL func() string) *cobra.Command {
	var req SplitChapterRequest
	cmd := &cobra.Command{
		Use:   "split <book_id> <chapter_id>",
		Short: "Cut a chapter's audio into pieces for progressive loading",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SplitChapterResponse
			path := "/api/books/" + url.PathEscape(args[0]) + "/audio/split/" + escapeChapter(args[1])
			if err := client.Post(cmd.Context(), path, req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().IntVar(&req.SegmentSeconds, "seconds", book_audio.DefaultSegmentSeconds, "Maximum piece length in seconds")
	return cmd
}

// AudioFileEndpoint handles GET /storage/audio/{file}.
type AudioFileEndpoint struct{}

func (e *AudioFileEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", storage.AudioURLPrefix + "{file}", e.handler
}

func (e *AudioFileEndpoint) RequiresInit() bool { return true }

func (e *AudioFileEndpoint) Group() string { return "chapters" }

func (e *AudioFileEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	extendWriteDeadline(w, syncWriteTimeout)

	st := svcctx.StorageFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "storage not initialized")
		return
	}

	key := storage.AudioKey(r.PathValue("file"))
	if _, err := st.Stat(key); err != nil {
		writeServiceError(w, err)
		return
	}
	p, err := st.Path(key)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	http.ServeFile(w, r, p)
}

func (e *AudioFileEndpoint) Command(getServerURL func() string) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "download <book_id> <chapter_id>",
		Short: "Download a chapter's merged audio",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := storage.ChapterAudioFile(args[0], args[1])
			if out == "" {
				out = filename
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", out, err)
			}
			defer f.Close()

			client := api.NewClient(getServerURL())
			n, err := client.Download(cmd.Context(), storage.AudioURL(url.PathEscape(filename)), f)
			if err != nil {
				os.Remove(out)
				return err
			}
			fmt.Printf("Wrote %s (%d bytes)\n", out, n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "file", "f", "", "Output path (defaults to the server file name)")
	return cmd
}
