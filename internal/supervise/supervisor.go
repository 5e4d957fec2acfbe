// Package supervise watches each session's output directory: it flips the
// session to Ready when the transcoder has produced usable output, enforces
// the rolling-window disk budget, and answers seek queries.
package supervise

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/streamgate/streamgate/internal/session"
)

// PlaylistName is the HLS playlist filename inside every session folder.
const PlaylistName = "playlist.m3u8"

// minPlaylistBytes is the readiness threshold: a playlist at or below this
// size is still a stub ffmpeg has not finished writing.
const minPlaylistBytes = 100

// segmentPattern matches transcoder-produced segment files.
var segmentPattern = regexp.MustCompile(`^segment_(\d+)\.ts$`)

// Config holds supervisor cadences and the retention budget.
type Config struct {
	ReadinessPollInterval  time.Duration
	SegmentMonitorInterval time.Duration
	RetentionInterval      time.Duration
	MaxStorageBytes        int64
	KeepSegments           int
}

// Supervisor runs per-session watchers.
type Supervisor struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a supervisor.
func New(cfg Config, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReadinessPollInterval <= 0 {
		cfg.ReadinessPollInterval = time.Second
	}
	if cfg.SegmentMonitorInterval <= 0 {
		cfg.SegmentMonitorInterval = 5 * time.Second
	}
	if cfg.RetentionInterval <= 0 {
		cfg.RetentionInterval = 15 * time.Second
	}
	if cfg.KeepSegments < 1 {
		cfg.KeepSegments = 5
	}
	return &Supervisor{cfg: cfg, logger: logger}
}

// Watch starts the readiness poll and retention loop for a session. The
// watchers stop when the session closes or the parent context ends.
func (sv *Supervisor) Watch(parent context.Context, sess *session.Session) {
	ctx, cancel := context.WithCancel(parent)
	sess.SetStopWatch(cancel)

	go sv.readinessLoop(ctx, sess)
	go sv.retentionLoop(ctx, sess)
}

// readinessLoop polls on a tight cadence until the session is Ready, then
// relaxes to the segment monitor cadence to keep the segment count fresh.
func (sv *Supervisor) readinessLoop(ctx context.Context, sess *session.Session) {
	ticker := time.NewTicker(sv.cfg.ReadinessPollInterval)
	defer ticker.Stop()

	ready := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		segments := sv.observeOutput(sess)
		if !ready && segments > 0 && playlistUsable(sess.Folder) {
			if err := sess.Transition(session.StateReady); err == nil {
				sess.MarkPlaylistReady(time.Now())
				sv.logger.Info("session ready",
					slog.String("session_id", sess.ID),
					slog.Int("segments", segments),
				)
			}
			// Whether this watcher won the transition or another already
			// had, the session is now readable.
			ready = true
			ticker.Reset(sv.cfg.SegmentMonitorInterval)
		}
	}
}

// observeOutput refreshes the monotonic segment count from disk.
func (sv *Supervisor) observeOutput(sess *session.Session) int {
	segments, err := countSegments(sess.Folder)
	if err != nil {
		// Transient listing failures self-heal on the next tick.
		return 0
	}
	sess.ObserveSegments(segments)
	return segments
}

// countSegments returns the number of segment indices present. The count is
// derived from the highest index plus one rather than the file count, so
// retention-evicted early segments still count toward the total.
func countSegments(folder string) (int, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return 0, err
	}
	highest := -1
	for _, entry := range entries {
		m := segmentPattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		var idx int
		for _, c := range m[1] {
			idx = idx*10 + int(c-'0')
		}
		if idx > highest {
			highest = idx
		}
	}
	return highest + 1, nil
}

// playlistUsable applies the readiness rule: the playlist exists and has
// real content behind the header.
func playlistUsable(folder string) bool {
	info, err := os.Stat(filepath.Join(folder, PlaylistName))
	if err != nil {
		return false
	}
	return info.Size() > minPlaylistBytes
}
