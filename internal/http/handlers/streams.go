// Package handlers provides HTTP API handlers for streamgate.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/streamgate/streamgate/internal/gateway"
	"github.com/streamgate/streamgate/internal/models"
	"github.com/streamgate/streamgate/internal/session"
)

// StreamHandler handles stream creation, status, and teardown.
type StreamHandler struct {
	gw *gateway.Gateway
}

// NewStreamHandler creates a stream handler.
func NewStreamHandler(gw *gateway.Gateway) *StreamHandler {
	return &StreamHandler{gw: gw}
}

// StreamCreated is the response to a stream submission.
type StreamCreated struct {
	StreamID  string `json:"stream_id"`
	HLSURL    string `json:"hls_url"`
	MP4URL    string `json:"mp4_url"`
	StatusURL string `json:"status_url"`
}

// CreateTorrentInput is the body for POST /stream.
type CreateTorrentInput struct {
	Body struct {
		Magnet string `json:"magnet" doc:"Magnet URI of the torrent to stream"`
	}
}

// CreateURLInput is the body for POST /stream-yt.
type CreateURLInput struct {
	Body struct {
		URL string `json:"url" doc:"Remote video URL to download and stream"`
	}
}

// CreateOutput wraps the stream creation response.
type CreateOutput struct {
	Body StreamCreated
}

// SessionIDInput captures the session id path parameter.
type SessionIDInput struct {
	ID string `path:"id" doc:"8-hex session identifier"`
}

// StatusOutput wraps a session status snapshot.
type StatusOutput struct {
	Body session.Status
}

// DeleteOutput confirms session teardown.
type DeleteOutput struct {
	Body struct {
		Success bool `json:"success"`
	}
}

// Register registers the stream routes with the API.
func (h *StreamHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "createStream",
		Method:      http.MethodPost,
		Path:        "/stream",
		Summary:     "Start streaming a torrent",
		Tags:        []string{"Streams"},
	}, h.CreateTorrent)

	huma.Register(api, huma.Operation{
		OperationID: "createStreamFromURL",
		Method:      http.MethodPost,
		Path:        "/stream-yt",
		Summary:     "Start streaming a remote URL",
		Tags:        []string{"Streams"},
	}, h.CreateURL)

	huma.Register(api, huma.Operation{
		OperationID: "getStatus",
		Method:      http.MethodGet,
		Path:        "/status/{id}",
		Summary:     "Session status snapshot",
		Tags:        []string{"Streams"},
	}, h.GetStatus)

	huma.Register(api, huma.Operation{
		OperationID: "deleteStream",
		Method:      http.MethodDelete,
		Path:        "/stream/{id}",
		Summary:     "Tear down a session and delete its folder",
		Tags:        []string{"Streams"},
	}, h.DeleteStream)
}

// CreateTorrent starts a torrent session.
func (h *StreamHandler) CreateTorrent(_ context.Context, input *CreateTorrentInput) (*CreateOutput, error) {
	if input.Body.Magnet == "" {
		return nil, huma.Error400BadRequest("magnet is required")
	}

	sess, err := h.gw.StartTorrent(input.Body.Magnet)
	if err != nil {
		return nil, huma.Error500InternalServerError("creating session", err)
	}
	return createdResponse(sess), nil
}

// CreateURL starts a URL download session.
func (h *StreamHandler) CreateURL(_ context.Context, input *CreateURLInput) (*CreateOutput, error) {
	if input.Body.URL == "" {
		return nil, huma.Error400BadRequest("url is required")
	}

	sess, err := h.gw.StartURL(input.Body.URL)
	if err != nil {
		return nil, huma.Error500InternalServerError("creating session", err)
	}
	return createdResponse(sess), nil
}

func createdResponse(sess *session.Session) *CreateOutput {
	out := &CreateOutput{}
	out.Body = StreamCreated{
		StreamID:  sess.ID,
		HLSURL:    fmt.Sprintf("/hls/%s/playlist.m3u8", sess.ID),
		MP4URL:    fmt.Sprintf("/stream/%s", sess.ID),
		StatusURL: fmt.Sprintf("/status/%s", sess.ID),
	}
	return out
}

// GetStatus returns a point-in-time session snapshot.
func (h *StreamHandler) GetStatus(_ context.Context, input *SessionIDInput) (*StatusOutput, error) {
	sess, err := h.gw.Registry.Get(input.ID)
	if err != nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("unknown session %s", input.ID))
	}
	return &StatusOutput{Body: sess.Snapshot()}, nil
}

// DeleteStream closes the session and removes its folder.
func (h *StreamHandler) DeleteStream(_ context.Context, input *SessionIDInput) (*DeleteOutput, error) {
	err := h.gw.Registry.Remove(input.ID, true)
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("unknown session %s", input.ID))
		}
		return nil, huma.Error500InternalServerError("removing session", err)
	}
	out := &DeleteOutput{}
	out.Body.Success = true
	return out, nil
}
