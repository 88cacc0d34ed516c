package endpoints

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/narrate/internal/api"
	"github.com/jackzampolin/narrate/internal/jobs/book_audio"
	"github.com/jackzampolin/narrate/internal/storage"
	"github.com/jackzampolin/narrate/internal/svcctx"
)

// ChapterIDsRequest names chapters of a book. Empty means all of them.
type ChapterIDsRequest struct {
	ChapterIDs []string `json:"chapter_ids,omitempty"`
}

// MergeBookResponse describes a merged book.
type MergeBookResponse struct {
	book_audio.Metadata `yaml:",inline"`
	AudioURL            string `json:"audio_url"`
}

// MergeBookEndpoint handles POST /api/books/{book_id}/audio/merge.
type MergeBookEndpoint struct{}

func (e *MergeBookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/books/{book_id}/audio/merge", e.handler
}

func (e *MergeBookEndpoint) RequiresInit() bool { return true }

func (e *MergeBookEndpoint) Group() string { return "books" }

func (e *MergeBookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	extendWriteDeadline(w, syncWriteTimeout)

	var req ChapterIDsRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	svc := svcctx.BookAudioFrom(r.Context())
	if svc == nil {
		writeError(w, http.StatusServiceUnavailable, "book audio not initialized")
		return
	}

	meta, err := svc.MergeBook(r.Context(), r.PathValue("book_id"), req.ChapterIDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MergeBookResponse{Metadata: *meta, AudioURL: storage.AudioURL(meta.MergedFilename)})
}

func (e *MergeBookEndpoint) Command(getServerURL func() string) *cobra.Command {
	var req ChapterIDsRequest
	cmd := &cobra.Command{
		Use:   "merge <book_id>",
		Short: "Merge chapter audio into one audiobook file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp MergeBookResponse
			path := "/api/books/" + url.PathEscape(args[0]) + "/audio/merge"
			if err := client.Post(cmd.Context(), path, req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringSliceVar(&req.ChapterIDs, "chapters", nil, "Chapter IDs in merge order (defaults to catalog order)")
	return cmd
}

// PlaylistEndpoint handles GET /api/books/{book_id}/playlist.
type PlaylistEndpoint struct{}

func (e *PlaylistEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{book_id}/playlist", e.handler
}

func (e *PlaylistEndpoint) RequiresInit() bool { return true }

func (e *PlaylistEndpoint) Group() string { return "books" }

func (e *PlaylistEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc := svcctx.BookAudioFrom(r.Context())
	if svc == nil {
		writeError(w, http.StatusServiceUnavailable, "book audio not initialized")
		return
	}

	playlist, err := svc.Playlist(r.Context(), r.PathValue("book_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, playlist)
}

func (e *PlaylistEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "playlist <book_id>",
		Short: "List the chapters of a book that have audio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp book_audio.Playlist
			if err := client.Get(cmd.Context(), "/api/books/"+url.PathEscape(args[0])+"/playlist", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// AudioStatsEndpoint handles GET /api/books/{book_id}/audio/stats.
type AudioStatsEndpoint struct{}

func (e *AudioStatsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{book_id}/audio/stats", e.handler
}

func (e *AudioStatsEndpoint) RequiresInit() bool { return true }

func (e *AudioStatsEndpoint) Group() string { return "books" }

func (e *AudioStatsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc := svcctx.BookAudioFrom(r.Context())
	if svc == nil {
		writeError(w, http.StatusServiceUnavailable, "book audio not initialized")
		return
	}

	stats, err := svc.Stats(r.Context(), r.PathValue("book_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (e *AudioStatsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <book_id>",
		Short: "Summarize the audio files of a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp book_audio.Stats
			if err := client.Get(cmd.Context(), "/api/books/"+url.PathEscape(args[0])+"/audio/stats", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// CleanupAudioResponse lists removed files.
type CleanupAudioResponse struct {
	DeletedFiles []string `json:"deleted_files"`
}

// CleanupAudioEndpoint handles DELETE /api/books/{book_id}/audio.
type CleanupAudioEndpoint struct{}

func (e *CleanupAudioEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/books/{book_id}/audio", e.handler
}

func (e *CleanupAudioEndpoint) RequiresInit() bool { return true }

func (e *CleanupAudioEndpoint) Group() string { return "books" }

func (e *CleanupAudioEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req ChapterIDsRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	svc := svcctx.BookAudioFrom(r.Context())
	if svc == nil {
		writeError(w, http.StatusServiceUnavailable, "book audio not initialized")
		return
	}

	deleted, err := svc.Cleanup(r.Context(), r.PathValue("book_id"), req.ChapterIDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if deleted == nil {
		deleted = []string{}
	}
	writeJSON(w, http.StatusOK, CleanupAudioResponse{DeletedFiles: deleted})
}

func (e *CleanupAudioEndpoint) Command(getServerURL func() string) *cobra.Command {
	var req ChapterIDsRequest
	cmd := &cobra.Command{
		Use:   "cleanup <book_id>",
		Short: "Delete generated audio of a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp CleanupAudioResponse
			if err := client.Delete(cmd.Context(), "/api/books/"+url.PathEscape(args[0])+"/audio", req, &resp); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(resp)
			}
			fmt.Printf("Deleted %d files\n", len(resp.DeletedFiles))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&req.ChapterIDs, "chapters", nil, "Only delete audio of these chapters")
	return cmd
}
