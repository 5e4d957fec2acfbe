package gateway

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
)

// sessionDirPattern matches the 8-hex session folder names the registry
// creates.
var sessionDirPattern = regexp.MustCompile(`^[0-9a-f]{8}$`)

// CleanupOrphanedFolders removes session folders left behind by a previous
// run. Sessions do not survive restarts, so a folder matching the naming
// scheme is stale; it is removed only if its contents also look like session
// output (see looksLikeSessionFolder). Returns how many folders were removed.
func CleanupOrphanedFolders(streamDir string, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	entries, err := os.ReadDir(streamDir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !sessionDirPattern.MatchString(entry.Name()) {
			continue
		}
		path := filepath.Join(streamDir, entry.Name())
		if !looksLikeSessionFolder(path) {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			logger.Warn("failed to remove orphaned session folder",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		removed++
	}
	return removed, nil
}

// looksLikeSessionFolder guards against deleting an unrelated 8-hex
// directory: a stale session folder is empty or contains transcoder output.
func looksLikeSessionFolder(path string) bool {
	entries, err := os.ReadDir(path)
	if err != nil {
		return false
	}
	if len(entries) == 0 {
		return true
	}
	for _, entry := range entries {
		name := entry.Name()
		if name == "playlist.m3u8" || segmentFilePattern.MatchString(name) ||
			subtitleFilePattern.MatchString(name) {
			return true
		}
	}
	return false
}

var (
	segmentFilePattern  = regexp.MustCompile(`^segment_\d+\.ts$`)
	subtitleFilePattern = regexp.MustCompile(`^subtitle_[a-z]+`)
)
