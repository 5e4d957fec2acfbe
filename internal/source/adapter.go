// Package source resolves a client-submitted stream source (magnet URI or
// remote URL) into a readable byte source behind a common interface, and
// detects subtitle side-files along the way.
package source

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/streamgate/streamgate/internal/session"
)

// Resolver turns a raw source reference into a resolved session source.
// Implementations set the session's SourceFile (the torrent variant also
// sets subtitles and the stats hook); resolution failures are recorded on
// the session by the caller.
type Resolver interface {
	Resolve(ctx context.Context, sess *session.Session, ref string) error
}

// playableExts are the container extensions accepted as the primary stream.
var playableExts = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".webm": true,
	".mov":  true,
	".avi":  true,
	".flv":  true,
}

// subtitleExts are the side-file extensions scanned for subtitles.
var subtitleExts = map[string]bool{
	".srt":  true,
	".vtt":  true,
	".ass":  true,
	".ssa":  true,
	".sub":  true,
	".sbv":  true,
	".json": true,
}

// IsPlayable reports whether the filename has a playable container extension.
func IsPlayable(name string) bool {
	return playableExts[strings.ToLower(filepath.Ext(name))]
}

// IsSubtitle reports whether the filename has a subtitle extension.
func IsSubtitle(name string) bool {
	return subtitleExts[strings.ToLower(filepath.Ext(name))]
}
