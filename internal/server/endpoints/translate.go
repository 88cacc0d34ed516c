package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/narrate/internal/api"
	"github.com/jackzampolin/narrate/internal/jobs/translate_chapter"
	"github.com/jackzampolin/narrate/internal/svcctx"
	"github.com/jackzampolin/narrate/internal/tasks"
)

// TaskResponse is returned when a background task is started.
type TaskResponse struct {
	TaskID string       `json:"task_id"`
	Status tasks.Status `json:"status"`
}

// TranslateChapterEndpoint handles POST /api/books/{book_id}/translate/{chapter_id...}.
type TranslateChapterEndpoint struct{}

func (e *TranslateChapterEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/books/{book_id}/translate/{chapter_id...}", e.handler
}

func (e *TranslateChapterEndpoint) RequiresInit() bool { return true }

func (e *TranslateChapterEndpoint) Group() string { return "chapters" }

func (e *TranslateChapterEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bookID, chapterID := r.PathValue("book_id"), r.PathValue("chapter_id")
	if chapterID == "" {
		writeError(w, http.StatusBadRequest, "chapter id is required")
		return
	}

	orch := svcctx.TranslatorFrom(ctx)
	catalog := svcctx.CatalogFrom(ctx)
	if orch == nil || catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "translation not initialized")
		return
	}

	// Reject unknown chapters up front rather than failing the task later.
	if _, err := catalog.ChapterContent(ctx, bookID, chapterID); err != nil {
		writeServiceError(w, err)
		return
	}

	taskID, err := orch.TranslateChapter(ctx, bookID, chapterID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, TaskResponse{TaskID: taskID, Status: tasks.StatusPending})
}

func (e *TranslateChapterEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "translate <book_id> <chapter_id>",
		Short: "Start translating a chapter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp TaskResponse
			path := "/api/books/" + url.PathEscape(args[0]) + "/translate/" + escapeChapter(args[1])
			if err := client.Post(cmd.Context(), path, nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// TranslationResponse is a persisted chapter translation.
type TranslationResponse struct {
	BookID         string `json:"book_id"`
	ChapterID      string `json:"chapter_id"`
	TranslatedText string `json:"translated_text"`
}

// GetTranslationEndpoint handles GET /api/translations/{book_id}/{chapter_id...}.
type GetTranslationEndpoint struct{}

func (e *GetTranslationEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/translations/{book_id}/{chapter_id...}", e.handler
}

func (e *GetTranslationEndpoint) RequiresInit() bool { return true }

func (e *GetTranslationEndpoint) Group() string { return "chapters" }

func (e *GetTranslationEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	bookID, chapterID := r.PathValue("book_id"), r.PathValue("chapter_id")

	orch := svcctx.TranslatorFrom(r.Context())
	if orch == nil {
		writeError(w, http.StatusServiceUnavailable, "translation not initialized")
		return
	}

	text, err := orch.Result(r.Context(), bookID, chapterID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TranslationResponse{BookID: bookID, ChapterID: chapterID, TranslatedText: text})
}

func (e *GetTranslationEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "translation <book_id> <chapter_id>",
		Short: "Print a finished chapter translation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp TranslationResponse
			path := "/api/translations/" + url.PathEscape(args[0]) + "/" + escapeChapter(args[1])
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(resp)
			}
			fmt.Println(resp.TranslatedText)
			return nil
		},
	}
}

// TranslateTextRequest is the request body for a direct translation.
type TranslateTextRequest struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

// TranslateTextEndpoint handles POST /api/translate.
type TranslateTextEndpoint struct{}

func (e *TranslateTextEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/translate", e.handler
}

func (e *TranslateTextEndpoint) RequiresInit() bool { return true }

func (e *TranslateTextEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	extendWriteDeadline(w, syncWriteTimeout)

	var req TranslateTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	orch := svcctx.TranslatorFrom(r.Context())
	if orch == nil {
		writeError(w, http.StatusServiceUnavailable, "translation not initialized")
		return
	}

	result, err := orch.TranslateText(r.Context(), req.Text, req.Model)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, fmt.Sprintf("translation failed: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (e *TranslateTextEndpoint) Command(getServerURL func() string) *cobra.Command {
	var model string
	cmd := &cobra.Command{
		Use:   "translate <text>",
		Short: "Translate a piece of text synchronously",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp translate_chapter.TextResult
			req := TranslateTextRequest{Text: strings.Join(args, " "), Model: model}
			if err := client.Post(cmd.Context(), "/api/translate", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "Override the configured translation model")
	return cmd
}
