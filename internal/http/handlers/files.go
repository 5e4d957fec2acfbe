package handlers

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/streamgate/streamgate/internal/session"
)

// FileHandler serves session output: HLS playlists and segments, the direct
// byte-range source stream, and extracted subtitle files.
type FileHandler struct {
	registry *session.Registry
}

// NewFileHandler creates a file handler.
func NewFileHandler(registry *session.Registry) *FileHandler {
	return &FileHandler{registry: registry}
}

// Register mounts the streaming routes on the router.
func (h *FileHandler) Register(r chi.Router) {
	r.Get("/hls/{id}/*", h.ServeHLS)
	r.Get("/stream/{id}", h.ServeSource)
	r.Head("/stream/{id}", h.ServeSource)
	r.Get("/subtitles/{id}/{filename}", h.ServeSubtitle)
}

// resolveInFolder joins name onto the session folder and rejects any path
// whose cleaned form escapes it.
func resolveInFolder(folder, name string) (string, bool) {
	path := filepath.Join(folder, name)
	if path == folder || !strings.HasPrefix(path, folder+string(filepath.Separator)) {
		return "", false
	}
	return path, true
}

// ServeHLS serves the playlist or a segment as a static file. Evicted
// segments return 404; HLS clients tolerate that and move on.
func (h *FileHandler) ServeHLS(w http.ResponseWriter, r *http.Request) {
	sess, err := h.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	name := chi.URLParam(r, "*")
	path, ok := resolveInFolder(sess.Folder, name)
	if !ok {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".m3u8":
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	case ".ts":
		w.Header().Set("Content-Type", "video/mp2t")
	}
	w.Header().Set("Cache-Control", "no-cache")

	http.ServeFile(w, r, path)
}

// ServeSource streams the source file directly with byte-range semantics.
func (h *FileHandler) ServeSource(w http.ResponseWriter, r *http.Request) {
	sess, err := h.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	src := sess.Source()
	if src == nil {
		writeError(w, http.StatusServiceUnavailable, "source not resolved yet")
		return
	}

	_, extracted := sess.Subtitles()
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("X-Stream-Ready", strconv.FormatBool(sess.State() == session.StateReady))
	w.Header().Set("X-Subtitle-Count", strconv.Itoa(len(extracted)))

	size := src.Length
	start, end, isRange, valid := parseRange(r.Header.Get("Range"), size)
	if !valid {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	length := end - start + 1
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	if isRange {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	}

	status := http.StatusOK
	if isRange {
		status = http.StatusPartialContent
	}

	if r.Method == http.MethodHead {
		w.WriteHeader(status)
		return
	}

	reader, err := src.OpenRange(start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "opening source stream")
		return
	}
	defer reader.Close()

	w.WriteHeader(status)
	_, _ = io.CopyN(w, reader, length)
}

// parseRange parses a Range header against the file size. Returns the
// inclusive byte range, whether a range was requested, and whether it is
// satisfiable. No header at all means the full body.
func parseRange(header string, size int64) (start, end int64, isRange, valid bool) {
	if header == "" {
		return 0, size - 1, false, size > 0
	}

	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return 0, 0, true, false
	}
	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return 0, 0, true, false
	}

	start = 0
	if startStr != "" {
		v, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil {
			return 0, 0, true, false
		}
		start = v
	}

	end = size - 1
	if endStr != "" {
		v, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return 0, 0, true, false
		}
		end = v
	}

	if start < 0 || start >= size || end >= size || start > end {
		return 0, 0, true, false
	}
	return start, end, true, true
}

// ServeSubtitle serves an extracted subtitle file.
func (h *FileHandler) ServeSubtitle(w http.ResponseWriter, r *http.Request) {
	sess, err := h.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	filename := chi.URLParam(r, "filename")
	path, ok := resolveInFolder(sess.Folder, filename)
	if !ok {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}

	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "subtitle not found")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.Copy(w, f)
}
