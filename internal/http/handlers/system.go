package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dustin/go-humanize"

	"github.com/streamgate/streamgate/internal/gateway"
	"github.com/streamgate/streamgate/internal/sysres"
	"github.com/streamgate/streamgate/internal/transcode"
)

// SystemHandler serves health and resource introspection.
type SystemHandler struct {
	gw        *gateway.Gateway
	version   string
	startTime time.Time
}

// NewSystemHandler creates a system handler.
func NewSystemHandler(gw *gateway.Gateway, version string) *SystemHandler {
	return &SystemHandler{
		gw:        gw,
		version:   version,
		startTime: time.Now(),
	}
}

// HealthOutput is the /health response.
type HealthOutput struct {
	Body struct {
		Status        string          `json:"status"`
		Version       string          `json:"version"`
		Uptime        string          `json:"uptime"`
		UptimeSeconds float64         `json:"uptimeSeconds"`
		FFmpeg        bool            `json:"ffmpeg"`
		FFprobe       bool            `json:"ffprobe"`
		ActiveStreams int             `json:"activeStreams"`
		Features      map[string]bool `json:"features"`
	}
}

// ResourcesOutput is the /resources response.
type ResourcesOutput struct {
	Body struct {
		Limits         sysres.Limits            `json:"limits"`
		MemoryReadable string                   `json:"memoryReadable"`
		Tuning         sysres.Tuning            `json:"tuning"`
		Scheduler      transcode.SchedulerStats `json:"scheduler"`
	}
}

// Register registers the system routes with the API.
func (h *SystemHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"System"},
	}, h.GetHealth)

	huma.Register(api, huma.Operation{
		OperationID: "getResources",
		Method:      http.MethodGet,
		Path:        "/resources",
		Summary:     "Detected resources and scheduler stats",
		Tags:        []string{"System"},
	}, h.GetResources)
}

// GetHealth reports service liveness and tool availability.
func (h *SystemHandler) GetHealth(_ context.Context, _ *struct{}) (*HealthOutput, error) {
	uptime := time.Since(h.startTime)
	bins := h.gw.Binaries

	out := &HealthOutput{}
	out.Body.Status = "healthy"
	out.Body.Version = h.version
	out.Body.Uptime = uptime.Round(time.Second).String()
	out.Body.UptimeSeconds = uptime.Seconds()
	out.Body.FFmpeg = bins.FFmpegFound
	out.Body.FFprobe = bins.FFprobeFound
	out.Body.ActiveStreams = h.gw.Registry.ActiveCount()
	out.Body.Features = map[string]bool{
		"torrent":       true,
		"urlDownload":   bins.DownloaderFound,
		"subtitles":     true,
		"seek":          true,
		"rangeRequests": true,
	}
	return out, nil
}

// GetResources reports the probed limits, derived tuning, and scheduler
// occupancy.
func (h *SystemHandler) GetResources(_ context.Context, _ *struct{}) (*ResourcesOutput, error) {
	limits := h.gw.Limits()

	out := &ResourcesOutput{}
	out.Body.Limits = limits
	out.Body.MemoryReadable = humanize.IBytes(uint64(limits.MemoryMB) * 1024 * 1024)
	out.Body.Tuning = h.gw.Tuning()
	out.Body.Scheduler = h.gw.SchedulerStats()
	return out, nil
}
