package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/anacrolix/torrent"

	"github.com/streamgate/streamgate/internal/models"
	"github.com/streamgate/streamgate/internal/session"
)

// startupPiecePriority is how many leading pieces get boosted priority so
// the transcoder can start before the swarm warms up.
const startupPiecePriority = 10

// TorrentEngine resolves magnet URIs through a single shared torrent client.
type TorrentEngine struct {
	client          *torrent.Client
	logger          *slog.Logger
	metadataTimeout time.Duration

	speedMu sync.Mutex
	speeds  map[string]speedSample
}

type speedSample struct {
	bytes int64
	at    time.Time
}

// TorrentConfig configures the shared torrent client.
type TorrentConfig struct {
	DataDir         string
	MaxConns        int
	MetadataTimeout time.Duration
}

// NewTorrentEngine creates the shared torrent client.
func NewTorrentEngine(cfg TorrentConfig, logger *slog.Logger) (*TorrentEngine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	clientConfig := torrent.NewDefaultClientConfig()
	if cfg.DataDir != "" {
		clientConfig.DataDir = cfg.DataDir
	}
	if cfg.MaxConns > 0 {
		clientConfig.EstablishedConnsPerTorrent = cfg.MaxConns
	}

	client, err := torrent.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("creating torrent client: %w", err)
	}
	timeout := cfg.MetadataTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &TorrentEngine{
		client:          client,
		logger:          logger,
		metadataTimeout: timeout,
		speeds:          make(map[string]speedSample),
	}, nil
}

// Close shuts down the torrent client and all its torrents.
func (e *TorrentEngine) Close() {
	e.client.Close()
}

// Resolve adds the magnet, waits for metadata, selects the playable file,
// detects and extracts subtitles, and installs the streaming reader on the
// session. The file is never staged on disk: the transcoder reads the live
// torrent byte-stream.
func (e *TorrentEngine) Resolve(ctx context.Context, sess *session.Session, magnet string) error {
	t, err := e.client.AddMagnet(magnet)
	if err != nil {
		return models.WrapStreamError(models.KindTorrentError, fmt.Errorf("adding magnet: %w", err))
	}

	metaCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		metaCtx, cancel = context.WithTimeout(ctx, e.metadataTimeout)
		defer cancel()
	}

	select {
	case <-t.GotInfo():
	case <-metaCtx.Done():
		t.Drop()
		return models.WrapStreamError(models.KindTorrentError,
			fmt.Errorf("waiting for magnet metadata: %w", metaCtx.Err()))
	}

	file := selectPlayableFile(t.Files())
	if file == nil {
		t.Drop()
		return models.NewStreamError(models.KindNoPlayableFile,
			fmt.Sprintf("torrent %q contains no playable file", t.Name()))
	}

	e.logger.Info("torrent resolved",
		slog.String("session_id", sess.ID),
		slog.String("torrent", t.Name()),
		slog.String("file", file.DisplayPath()),
		slog.Int64("length", file.Length()),
	)

	prioritizeStreamingStart(file)

	subs := detectSubtitles(t.Files())
	sess.SetSubtitlesDetected(subs)
	e.extractSubtitles(sess, t.Files(), subs)

	sess.SetSource(&session.SourceFile{
		Name:   filepath.Base(file.DisplayPath()),
		Length: file.Length(),
		OpenRange: func(start, end int64) (io.ReadCloser, error) {
			return openTorrentRange(file, start, end)
		},
	}, t.Drop)
	sess.SetStatsFunc(func() *session.TorrentStats { return e.torrentStats(sess.ID, t) })

	return nil
}

// selectPlayableFile picks the first file with a playable extension.
func selectPlayableFile(files []*torrent.File) *torrent.File {
	for _, f := range files {
		if IsPlayable(f.DisplayPath()) {
			return f
		}
	}
	return nil
}

// prioritizeStreamingStart boosts the leading pieces of the file so playback
// can begin before the rest arrives.
func prioritizeStreamingStart(f *torrent.File) {
	f.SetPriority(torrent.PiecePriorityNormal)
	t := f.Torrent()
	numPieces := t.NumPieces()
	if numPieces == 0 || t.Length() == 0 {
		return
	}
	boost := startupPiecePriority
	if numPieces < boost {
		boost = numPieces
	}
	firstPiece := int(f.Offset() * int64(numPieces) / t.Length())
	for i := firstPiece; i < firstPiece+boost && i < numPieces; i++ {
		t.Piece(i).SetPriority(torrent.PiecePriorityNow)
	}
}

// detectSubtitles scans all torrent files for subtitle extensions.
func detectSubtitles(files []*torrent.File) []session.SubtitleInfo {
	var subs []session.SubtitleInfo
	for _, f := range files {
		name := filepath.Base(f.DisplayPath())
		if !IsSubtitle(name) {
			continue
		}
		subs = append(subs, session.SubtitleInfo{
			Name:     name,
			Ext:      strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), "."),
			Size:     f.Length(),
			Language: DetectLanguage(name),
		})
	}
	return subs
}

// extractSubtitles streams each detected subtitle into the session folder
// concurrently. Failures are logged and skipped; subtitles are never fatal.
func (e *TorrentEngine) extractSubtitles(sess *session.Session, files []*torrent.File, subs []session.SubtitleInfo) {
	byName := make(map[string]*torrent.File, len(files))
	for _, f := range files {
		byName[filepath.Base(f.DisplayPath())] = f
	}

	var wg sync.WaitGroup
	langCount := make(map[string]int)

	for _, sub := range subs {
		f := byName[sub.Name]
		if f == nil {
			continue
		}

		n := langCount[sub.Language]
		langCount[sub.Language]++

		target := fmt.Sprintf("subtitle_%s.%s", sub.Language, sub.Ext)
		if n > 0 {
			target = fmt.Sprintf("subtitle_%s_%d.%s", sub.Language, n, sub.Ext)
		}

		wg.Add(1)
		go func(sub session.SubtitleInfo, f *torrent.File, target string) {
			defer wg.Done()
			path := filepath.Join(sess.Folder, target)
			size, err := copyTorrentFile(f, path)
			if err != nil {
				e.logger.Warn("subtitle extraction failed",
					slog.String("session_id", sess.ID),
					slog.String("subtitle", sub.Name),
					slog.String("error", err.Error()),
				)
				return
			}
			sess.AddExtractedSubtitle(session.ExtractedSubtitle{
				Name:     target,
				Path:     path,
				Language: sub.Language,
				Ext:      sub.Ext,
				Size:     size,
			})
		}(sub, f, target)
	}
	wg.Wait()
}

func copyTorrentFile(f *torrent.File, path string) (int64, error) {
	f.SetPriority(torrent.PiecePriorityNow)
	r := f.NewReader()
	defer r.Close()

	out, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	n, err := io.Copy(out, r)
	if err != nil {
		os.Remove(path)
		return 0, err
	}
	return n, nil
}

// openTorrentRange returns a reader over [start, end] of the file; end < 0
// reads to the end of the file.
func openTorrentRange(f *torrent.File, start, end int64) (io.ReadCloser, error) {
	if start < 0 || start >= f.Length() {
		return nil, fmt.Errorf("range start %d outside file of %d bytes", start, f.Length())
	}
	r := f.NewReader()
	r.SetReadahead(f.Length() / 100)
	if _, err := r.Seek(start, io.SeekStart); err != nil {
		r.Close()
		return nil, fmt.Errorf("seeking torrent reader: %w", err)
	}
	if end < 0 {
		return r, nil
	}
	return &limitedReadCloser{Reader: io.LimitReader(r, end-start+1), closer: r}, nil
}

type limitedReadCloser struct {
	io.Reader
	closer io.Closer
}

func (l *limitedReadCloser) Close() error { return l.closer.Close() }

// torrentStats builds a live statistics view, computing download speed from
// successive byte counts.
func (e *TorrentEngine) torrentStats(sessionID string, t *torrent.Torrent) *session.TorrentStats {
	stats := t.Stats()
	completed := t.BytesCompleted()
	total := t.Length()

	var progress float64
	if total > 0 {
		progress = float64(completed) / float64(total) * 100
	}

	read := stats.BytesReadData.Int64()
	written := stats.BytesWrittenData.Int64()
	var ratio float64
	if read > 0 {
		ratio = float64(written) / float64(read)
	}

	e.speedMu.Lock()
	last, ok := e.speeds[sessionID]
	now := time.Now()
	var speed float64
	if ok {
		if dt := now.Sub(last.at).Seconds(); dt > 0 {
			speed = float64(read-last.bytes) / dt
			if speed < 0 {
				speed = 0
			}
		}
	}
	e.speeds[sessionID] = speedSample{bytes: read, at: now}
	e.speedMu.Unlock()

	return &session.TorrentStats{
		Name:          t.Name(),
		InfoHash:      t.InfoHash().HexString(),
		NumPeers:      stats.ActivePeers,
		Progress:      progress,
		DownloadSpeed: speed,
		Ratio:         ratio,
	}
}
