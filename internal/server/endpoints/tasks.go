package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/narrate/internal/api"
	"github.com/jackzampolin/narrate/internal/svcctx"
	"github.com/jackzampolin/narrate/internal/tasks"
)

// ListTasksResponse is the response for listing tasks.
type ListTasksResponse struct {
	Tasks []tasks.Task `json:"tasks"`
}

// ListTasksEndpoint handles GET /api/tasks.
type ListTasksEndpoint struct{}

func (e *ListTasksEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/tasks", e.handler
}

func (e *ListTasksEndpoint) RequiresInit() bool { return true }

func (e *ListTasksEndpoint) Group() string { return "tasks" }

func (e *ListTasksEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.TasksFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "task registry not initialized")
		return
	}

	q := r.URL.Query()
	filter := tasks.Filter{
		Kind:      tasks.Kind(q.Get("kind")),
		BookID:    q.Get("book_id"),
		ChapterID: q.Get("chapter_id"),
		Status:    tasks.Status(q.Get("status")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid status %q", filter.Status))
		return
	}
	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "active must be a boolean")
			return
		}
		filter.Active = active
	}

	list := store.List(filter)
	if list == nil {
		list = []tasks.Task{}
	}
	writeJSON(w, http.StatusOK, ListTasksResponse{Tasks: list})
}

func (e *ListTasksEndpoint) Command(getServerURL func() string) *cobra.Command {
	var kind, bookID, status string
	var active bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())

			params := url.Values{}
			if kind != "" {
				params.Set("kind", kind)
			}
			if bookID != "" {
				params.Set("book_id", bookID)
			}
			if status != "" {
				params.Set("status", status)
			}
			if active {
				params.Set("active", "true")
			}
			path := "/api/tasks"
			if len(params) > 0 {
				path += "?" + params.Encode()
			}

			var resp ListTasksResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Filter by kind (translation, audio)")
	cmd.Flags().StringVar(&bookID, "book", "", "Filter by book ID")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().BoolVar(&active, "active", false, "Only pending and in-progress tasks")
	return cmd
}

// GetTaskEndpoint handles GET /api/tasks/{task_id}.
type GetTaskEndpoint struct{}

func (e *GetTaskEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/tasks/{task_id}", e.handler
}

func (e *GetTaskEndpoint) RequiresInit() bool { return true }

func (e *GetTaskEndpoint) Group() string { return "tasks" }

func (e *GetTaskEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("task_id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "task id is required")
		return
	}

	store := svcctx.TasksFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "task registry not initialized")
		return
	}

	task, err := store.Get(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (e *GetTaskEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <task_id>",
		Short: "Get a task by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var task tasks.Task
			if err := client.Get(cmd.Context(), "/api/tasks/"+url.PathEscape(args[0]), &task); err != nil {
				return err
			}
			return api.Output(task)
		},
	}
}
