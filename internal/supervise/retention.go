package supervise

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/streamgate/streamgate/internal/session"
)

// retentionLoop enforces the rolling-window disk budget for the session's
// whole lifetime, not just while transcoding.
func (sv *Supervisor) retentionLoop(ctx context.Context, sess *session.Session) {
	ticker := time.NewTicker(sv.cfg.RetentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := RetentionPass(sess.Folder, sv.cfg.MaxStorageBytes, sv.cfg.KeepSegments)
			if err != nil {
				sv.logger.Warn("retention pass failed",
					slog.String("session_id", sess.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			if deleted > 0 {
				sv.logger.Info("retention trimmed session folder",
					slog.String("session_id", sess.ID),
					slog.Int("files_deleted", deleted),
				)
			}
		}
	}
}

type retainedFile struct {
	name    string
	size    int64
	modTime time.Time
	segment bool
	index   int
}

// RetentionPass trims the folder to the byte budget. Deletion order is
// deterministic: oldest unprotected segments first, then oldest other files;
// the playlist and the newest keepSegments segments are never deleted. Files
// go one at a time with a size re-check between deletions, so the pass stops
// as early as possible.
//
// Returns how many files were deleted.
func RetentionPass(folder string, maxBytes int64, keepSegments int) (int, error) {
	files, total, err := scanFolder(folder)
	if err != nil {
		return 0, err
	}
	if total <= maxBytes {
		return 0, nil
	}

	victims := deletionOrder(files, keepSegments)

	deleted := 0
	for _, f := range victims {
		if total <= maxBytes {
			break
		}
		path := filepath.Join(folder, f.name)
		if err := os.Remove(path); err != nil {
			// Skip and keep trimming; the next pass retries.
			continue
		}
		total -= f.size
		deleted++
	}
	return deleted, nil
}

// scanFolder lists regular files with sizes; total is the folder byte sum.
func scanFolder(folder string) ([]retainedFile, int64, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, 0, err
	}

	var files []retainedFile
	var total int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		f := retainedFile{
			name:    entry.Name(),
			size:    info.Size(),
			modTime: info.ModTime(),
		}
		if m := segmentPattern.FindStringSubmatch(f.name); m != nil {
			f.segment = true
			for _, c := range m[1] {
				f.index = f.index*10 + int(c-'0')
			}
		}
		files = append(files, f)
		total += f.size
	}
	return files, total, nil
}

// deletionOrder produces the deterministic victim list: unprotected segments
// by ascending index, then non-playlist others by ascending mtime.
func deletionOrder(files []retainedFile, keepSegments int) []retainedFile {
	var segments, others []retainedFile
	for _, f := range files {
		switch {
		case f.segment:
			segments = append(segments, f)
		case f.name == PlaylistName:
			// Never a victim.
		default:
			others = append(others, f)
		}
	}

	sort.Slice(segments, func(i, j int) bool { return segments[i].index < segments[j].index })
	sort.Slice(others, func(i, j int) bool { return others[i].modTime.Before(others[j].modTime) })

	protectFrom := len(segments) - keepSegments
	if protectFrom < 0 {
		protectFrom = 0
	}
	victims := append([]retainedFile{}, segments[:protectFrom]...)
	victims = append(victims, others...)
	return victims
}
