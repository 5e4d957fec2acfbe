package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/streamgate/streamgate/internal/models"
	"github.com/streamgate/streamgate/internal/session"
	"github.com/streamgate/streamgate/internal/supervise"
)

// SeekHandler implements the advisory seek endpoints. These are raw chi
// handlers: their wire format (including error bodies) predates the typed
// API layer and existing clients depend on it.
type SeekHandler struct {
	registry *session.Registry
}

// NewSeekHandler creates a seek handler.
func NewSeekHandler(registry *session.Registry) *SeekHandler {
	return &SeekHandler{registry: registry}
}

// Register mounts the seek routes on the router.
func (h *SeekHandler) Register(r chi.Router) {
	r.Post("/seek/{id}", h.Seek)
	r.Get("/seek-info/{id}", h.SeekInfo)
}

type seekBody struct {
	Time    *float64 `json:"time"`
	Segment *int     `json:"segment"`
}

type seekResponse struct {
	Success                   bool   `json:"success"`
	CurrentSegment            int    `json:"currentSegment"`
	PlaybackPosition          int    `json:"playbackPosition"`
	PlaybackPositionFormatted string `json:"playbackPositionFormatted"`
	Message                   string `json:"message"`
}

// Seek updates the session's advisory playback cursor.
func (h *SeekHandler) Seek(w http.ResponseWriter, r *http.Request) {
	sess, err := h.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	var body seekBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, serr := supervise.Seek(sess, supervise.SeekRequest{
		Time:    body.Time,
		Segment: body.Segment,
	})
	if serr != nil {
		writeError(w, statusForKind(serr.Kind), serr.Message)
		return
	}

	writeJSON(w, http.StatusOK, seekResponse{
		Success:                   true,
		CurrentSegment:            result.CurrentSegment,
		PlaybackPosition:          result.PlaybackPosition,
		PlaybackPositionFormatted: result.PositionFormatted,
		Message:                   "seek position updated",
	})
}

// SeekInfo returns the cursor plus a window of nearby segment descriptors.
func (h *SeekHandler) SeekInfo(w http.ResponseWriter, r *http.Request) {
	sess, err := h.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	writeJSON(w, http.StatusOK, supervise.Info(sess))
}

// writeJSON writes a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the legacy {"error": "..."} body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusForKind translates the error taxonomy to HTTP statuses.
func statusForKind(kind models.ErrorKind) int {
	switch kind {
	case models.KindBadRequest, models.KindOutOfRange:
		return http.StatusBadRequest
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindAccessDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
