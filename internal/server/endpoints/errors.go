package endpoints

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jackzampolin/narrate/internal/jobs"
	"github.com/jackzampolin/narrate/internal/jobs/book_audio"
	"github.com/jackzampolin/narrate/internal/jobs/chapter_audio"
	"github.com/jackzampolin/narrate/internal/library"
	"github.com/jackzampolin/narrate/internal/storage"
	"github.com/jackzampolin/narrate/internal/tasks"
)

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, library.ErrNotFound),
		errors.Is(err, storage.ErrNotFound),
		errors.Is(err, tasks.ErrNotFound),
		errors.Is(err, chapter_audio.ErrTranslationMissing),
		errors.Is(err, book_audio.ErrNothingTranslated):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrInvalidKey):
		return http.StatusBadRequest
	case errors.Is(err, jobs.ErrWorkerQueueFull), errors.Is(err, jobs.ErrPoolStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes err with the status statusFor picks.
func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

// decodeOptional decodes a JSON body into v. An empty body leaves v unchanged.
func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// escapeChapter escapes a chapter ID for use in a {chapter_id...} path
// wildcard, keeping its slashes.
func escapeChapter(chapterID string) string {
	parts := strings.Split(chapterID, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
