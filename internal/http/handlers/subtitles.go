package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/streamgate/streamgate/internal/session"
)

// supportedLanguages are the 3-letter codes the filename detector can emit.
var supportedLanguages = []string{
	"eng", "hin", "tam", "tel", "kan", "mal", "mar", "ben",
	"spa", "fra", "deu", "por", "rus", "jpn", "zho", "ara", "tha",
}

// SubtitleHandler lists a session's subtitles.
type SubtitleHandler struct {
	registry *session.Registry
}

// NewSubtitleHandler creates a subtitle handler.
func NewSubtitleHandler(registry *session.Registry) *SubtitleHandler {
	return &SubtitleHandler{registry: registry}
}

// SubtitleListOutput is the subtitle inventory for a session.
type SubtitleListOutput struct {
	Body struct {
		Available         []session.SubtitleInfo      `json:"available"`
		Extracted         []session.ExtractedSubtitle `json:"extracted"`
		LanguageSupported []string                    `json:"languageSupported"`
	}
}

// Register registers the subtitle routes with the API.
func (h *SubtitleHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listSubtitles",
		Method:      http.MethodGet,
		Path:        "/subtitles-list/{id}",
		Summary:     "List detected and extracted subtitles",
		Tags:        []string{"Subtitles"},
	}, h.List)
}

// List returns the session's subtitle inventory.
func (h *SubtitleHandler) List(_ context.Context, input *SessionIDInput) (*SubtitleListOutput, error) {
	sess, err := h.registry.Get(input.ID)
	if err != nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("unknown session %s", input.ID))
	}

	detected, extracted := sess.Subtitles()
	out := &SubtitleListOutput{}
	out.Body.Available = detected
	out.Body.Extracted = extracted
	out.Body.LanguageSupported = supportedLanguages
	return out, nil
}
