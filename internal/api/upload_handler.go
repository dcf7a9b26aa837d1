package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/uploadq/internal/api/shared"
	"github.com/phrazzld/uploadq/internal/history"
	"github.com/phrazzld/uploadq/internal/upload"
)

// Submitter enqueues a batch of files and returns their task ids
type Submitter interface {
	Submit(ctx context.Context, paths []string) []int64
}

// QueueView is the read and cancel side of the upload queue
type QueueView interface {
	Abort(taskID int64)
	Busy() bool
	Snapshot() []upload.TaskInfo
}

// EnqueueRequest is the body of POST /api/uploads
type EnqueueRequest struct {
	Paths []string `json:"paths" validate:"required,min=1,max=1000,dive,required"`
}

// EnqueueResponse lists the ids assigned to the enqueued files, in request order
type EnqueueResponse struct {
	TaskIDs []int64 `json:"task_ids"`
}

// QueueResponse describes the queue contents
type QueueResponse struct {
	Busy  bool              `json:"busy"`
	Tasks []upload.TaskInfo `json:"tasks"`
}

// HistoryResponse lists completed uploads, most recent first
type HistoryResponse struct {
	Records []history.Record `json:"records"`
}

// UploadHandler handles upload queue HTTP requests
type UploadHandler struct {
	submitter Submitter
	queue     QueueView
	history   history.Store
	logger    *slog.Logger
}

// NewUploadHandler creates a new UploadHandler
func NewUploadHandler(
	submitter Submitter,
	queue QueueView,
	store history.Store,
	logger *slog.Logger,
) *UploadHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for UploadHandler")
	}

	return &UploadHandler{
		submitter: submitter,
		queue:     queue,
		history:   store,
		logger:    logger.With(slog.String("component", "upload_handler")),
	}
}

// Enqueue handles POST /api/uploads
func (h *UploadHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	ids := h.submitter.Submit(r.Context(), req.Paths)

	h.logger.InfoContext(r.Context(), "files enqueued",
		slog.String("trace_id", shared.GetTraceID(r.Context())),
		slog.Int("count", len(ids)))

	shared.RespondWithJSON(w, r, http.StatusAccepted, EnqueueResponse{TaskIDs: ids})
}

// Abort handles DELETE /api/uploads/{id}. Unknown and finished ids are not
// an error.
func (h *UploadHandler) Abort(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathTaskID(r)
	if err != nil {
		h.logger.WarnContext(r.Context(), "invalid task id",
			slog.String("value", chi.URLParam(r, "id")))
		HandleAPIError(w, r, err, "")
		return
	}

	h.queue.Abort(taskID)

	h.logger.InfoContext(r.Context(), "abort requested", slog.Int64("task_id", taskID))
	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /api/uploads
func (h *UploadHandler) List(w http.ResponseWriter, r *http.Request) {
	resp := QueueResponse{
		Busy:  h.queue.Busy(),
		Tasks: h.queue.Snapshot(),
	}
	if resp.Tasks == nil {
		resp.Tasks = []upload.TaskInfo{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// History handles GET /api/uploads/history
func (h *UploadHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	records, err := h.history.List(r.Context(), limit)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load upload history")
		return
	}
	if records == nil {
		records = []history.Record{}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, HistoryResponse{Records: records})
}

// pathTaskID parses the {id} path parameter as a positive task id
func pathTaskID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTaskID, raw)
	}
	return id, nil
}

// queryLimit parses the optional limit query parameter. An absent limit is
// zero, which the store maps to its default.
func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > history.MaxListLimit {
		return 0, fmt.Errorf("%w: must be between 1 and %d", ErrInvalidLimit, history.MaxListLimit)
	}
	return limit, nil
}
