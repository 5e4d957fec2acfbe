package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/streamgate/streamgate/internal/models"
	"github.com/streamgate/streamgate/internal/session"
)

// Downloader resolves remote URLs by staging the file through yt-dlp.
// Unlike the torrent variant the file is complete on disk before the
// transcoder starts.
type Downloader struct {
	binPath string
	logger  *slog.Logger
}

// NewDownloader creates a URL resolver using the given downloader binary.
func NewDownloader(binPath string, logger *slog.Logger) *Downloader {
	if binPath == "" {
		binPath = "yt-dlp"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Downloader{binPath: binPath, logger: logger}
}

// Resolve downloads the URL into the session folder and selects the staged
// playable file.
func (d *Downloader) Resolve(ctx context.Context, sess *session.Session, url string) error {
	outTemplate := filepath.Join(sess.Folder, "%(title)s.%(ext)s")
	cmd := exec.CommandContext(ctx, d.binPath, "-f", "best", "-o", outTemplate, url)

	var stderr strings.Builder
	cmd.Stderr = &stderr

	d.logger.Info("downloading url source",
		slog.String("session_id", sess.ID),
		slog.String("url", url),
	)

	if err := cmd.Run(); err != nil {
		return models.WrapStreamError(models.KindExternalToolFailed,
			fmt.Errorf("downloader exited: %w: %s", err, tail(stderr.String(), 500)))
	}

	path, size, err := findStagedFile(sess.Folder)
	if err != nil {
		return err
	}

	d.logger.Info("url source staged",
		slog.String("session_id", sess.ID),
		slog.String("file", filepath.Base(path)),
		slog.Int64("length", size),
	)

	sess.SetSource(&session.SourceFile{
		Name:   filepath.Base(path),
		Length: size,
		OpenRange: func(start, end int64) (io.ReadCloser, error) {
			return openFileRange(path, start, end)
		},
	}, nil)

	return nil
}

// findStagedFile scans the folder for the first playable file.
func findStagedFile(folder string) (string, int64, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return "", 0, models.WrapStreamError(models.KindStorageError,
			fmt.Errorf("scanning session folder: %w", err))
	}
	for _, entry := range entries {
		if entry.IsDir() || !IsPlayable(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		return filepath.Join(folder, entry.Name()), info.Size(), nil
	}
	return "", 0, models.NewStreamError(models.KindNoPlayableFile,
		"download produced no playable file")
}

// openFileRange opens [start, end] of a staged file; end < 0 reads to EOF.
func openFileRange(path string, start, end int64) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	if end < 0 {
		return f, nil
	}
	return &limitedReadCloser{Reader: io.LimitReader(f, end-start+1), closer: f}, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
