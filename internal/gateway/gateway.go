// Package gateway wires the stream pipeline together: session creation,
// source resolution, transcoder scheduling, and output supervision.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/robfig/cron/v3"

	"github.com/streamgate/streamgate/internal/config"
	"github.com/streamgate/streamgate/internal/models"
	"github.com/streamgate/streamgate/internal/session"
	"github.com/streamgate/streamgate/internal/source"
	"github.com/streamgate/streamgate/internal/supervise"
	"github.com/streamgate/streamgate/internal/sysres"
	"github.com/streamgate/streamgate/internal/transcode"
	"github.com/streamgate/streamgate/pkg/format"
)

// Gateway owns the process-wide streaming state: the session registry, the
// shared torrent engine, the transcoder scheduler, and the output
// supervisor. HTTP handlers hold a reference and translate requests into
// its operations.
type Gateway struct {
	cfg    *config.Config
	logger *slog.Logger

	Registry   *session.Registry
	Binaries   transcode.Binaries
	scheduler  *transcode.Scheduler
	supervisor *supervise.Supervisor
	probe      *sysres.Probe
	prober     *transcode.Prober
	torrents   *source.TorrentEngine
	downloader *source.Downloader
	cron       *cron.Cron

	ctx context.Context
}

// New assembles a gateway. ctx bounds all background work; cancel it during
// shutdown before closing sessions.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	binaries := transcode.DetectBinaries(
		cfg.Transcode.FFmpegPath, cfg.Transcode.FFprobePath, cfg.Transcode.DownloaderPath)
	if !binaries.FFmpegFound {
		logger.Warn("ffmpeg not found; sessions will fail until it is installed")
	}

	torrents, err := source.NewTorrentEngine(source.TorrentConfig{
		DataDir:         cfg.Torrent.DataDir,
		MaxConns:        cfg.Torrent.MaxConns,
		MetadataTimeout: cfg.Torrent.MetadataTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("starting torrent engine: %w", err)
	}

	g := &Gateway{
		cfg:        cfg,
		logger:     logger,
		Registry:   session.NewRegistry(cfg.Storage.StreamDir),
		Binaries:   binaries,
		probe:      sysres.NewProbe(logger),
		prober:     transcode.NewProber(binaries.FFprobe),
		torrents:   torrents,
		downloader: source.NewDownloader(binaries.Downloader, logger),
		ctx:        ctx,
	}
	g.scheduler = transcode.NewScheduler(func() int { return g.Tuning().MaxConcurrent }, logger)
	g.supervisor = supervise.New(supervise.Config{
		ReadinessPollInterval:  cfg.Monitor.ReadinessPollInterval,
		SegmentMonitorInterval: cfg.Monitor.SegmentMonitorInterval,
		RetentionInterval:      cfg.Monitor.RetentionInterval,
		MaxStorageBytes:        cfg.Storage.MaxStreamStorageBytes,
		KeepSegments:           cfg.Storage.KeepSegments,
	}, logger)

	// The probe re-runs on the resource watch cadence so cgroup limit
	// changes (container resizes) feed back into the tuning policy.
	g.cron = cron.New()
	if _, err := g.cron.AddFunc(fmt.Sprintf("@every %s", cfg.Monitor.ResourceWatchInterval), g.probe.Refresh); err != nil {
		return nil, fmt.Errorf("scheduling resource probe: %w", err)
	}
	g.cron.Start()

	return g, nil
}

// Tuning derives the current transcoder policy from detected limits and the
// live session count.
func (g *Gateway) Tuning() sysres.Tuning {
	return sysres.Derive(g.probe.Limits(), g.Registry.ActiveCount(), sysres.TuningInputs{
		MinSegmentSecs:        g.cfg.Transcode.MinSegmentSecs,
		MaxSegmentSecs:        g.cfg.Transcode.MaxSegmentSecs,
		TargetPerSegment:      g.cfg.Transcode.TargetPerSegment,
		MaxConcurrentOverride: g.cfg.Transcode.MaxConcurrent,
		ThreadsOverride:       g.cfg.Transcode.Threads,
	})
}

// Limits returns the most recent resource probe reading.
func (g *Gateway) Limits() sysres.Limits {
	return g.probe.Limits()
}

// SchedulerStats returns transcoder pool occupancy.
func (g *Gateway) SchedulerStats() transcode.SchedulerStats {
	return g.scheduler.Stats()
}

// StartTorrent creates a session for a magnet URI and launches its pipeline.
func (g *Gateway) StartTorrent(magnet string) (*session.Session, error) {
	sess, err := g.Registry.Create(session.KindTorrent)
	if err != nil {
		return nil, err
	}
	go g.runPipeline(sess, g.torrents, magnet)
	return sess, nil
}

// StartURL creates a session for a remote URL and launches its pipeline.
func (g *Gateway) StartURL(url string) (*session.Session, error) {
	sess, err := g.Registry.Create(session.KindURL)
	if err != nil {
		return nil, err
	}
	go g.runPipeline(sess, g.downloader, url)
	return sess, nil
}

// runPipeline drives one session from Pending to a queued transcoder job.
// Failures are recorded on the session; the pipeline never panics the
// process.
func (g *Gateway) runPipeline(sess *session.Session, resolver source.Resolver, ref string) {
	if err := sess.Transition(session.StateResolving); err != nil {
		return
	}

	if !g.Binaries.FFmpegFound {
		sess.Fail(models.NewStreamError(models.KindExternalToolMissing, "ffmpeg_missing"))
		return
	}

	if err := resolver.Resolve(g.ctx, sess, ref); err != nil {
		sess.Fail(asStreamError(err, sess.Kind))
		return
	}

	g.probeMedia(sess)

	if err := sess.Transition(session.StateQueued); err != nil {
		return
	}

	tuning := g.Tuning()
	if err := sess.SetSegmentDuration(tuning.SegmentSeconds); err != nil {
		sess.Fail(models.WrapStreamError(models.KindTranscoderError, err))
		return
	}

	g.supervisor.Watch(g.ctx, sess)
	g.scheduler.Submit(sess, func() (transcode.Runner, error) {
		return g.buildJob(sess, tuning.Threads)
	})
}

// probeMedia records duration and codec when the prober can see them.
// Probe failures are expected for containers with trailing indexes and are
// never fatal.
func (g *Gateway) probeMedia(sess *session.Session) {
	if !g.Binaries.FFprobeFound {
		return
	}
	src := sess.Source()
	if src == nil {
		return
	}

	var probe *transcode.MediaProbe
	var err error
	if sess.Kind == session.KindURL {
		probe, err = g.prober.ProbeFile(g.ctx, filepath.Join(sess.Folder, src.Name))
	} else {
		var r io.ReadCloser
		r, err = src.OpenRange(0, -1)
		if err == nil {
			probe, err = g.prober.ProbeStream(g.ctx, r)
		}
	}
	if err != nil {
		g.logger.Debug("media probe failed",
			slog.String("session_id", sess.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	sess.SetVideoCodec(probe.VideoCodec)
	if probe.DurationSeconds > 0 {
		sess.SetMediaInfo(&session.MediaInfo{
			DurationSeconds:   probe.DurationSeconds,
			DurationFormatted: format.Timecode(int(probe.DurationSeconds)),
		})
	}
}

// buildJob constructs the transcoder job for an admitted session.
func (g *Gateway) buildJob(sess *session.Session, threads int) (transcode.Runner, error) {
	src := sess.Source()
	if src == nil {
		return nil, models.ErrNoSourceFile
	}

	mode := transcode.SelectMode(src.Name, sess.VideoCodec())
	builder := transcode.NewCommandBuilder(g.Binaries.FFmpeg)

	var stdin io.ReadCloser
	if sess.Kind == session.KindTorrent {
		// The transcoder reads the live torrent byte-stream; nothing is
		// staged on disk first.
		r, err := src.OpenRange(0, -1)
		if err != nil {
			return nil, fmt.Errorf("opening source stream: %w", err)
		}
		stdin = r
		builder.Stdin()
	} else {
		builder.InputFile(filepath.Join(sess.Folder, src.Name))
	}

	switch mode {
	case transcode.ModeCopyMux:
		builder.CopyMux()
	default:
		builder.NoBuffer().BaselineEncode()
	}
	builder.Threads(threads).HLS(sess.SegmentDuration(), sess.Folder)

	g.logger.Info("transcode job built",
		slog.String("session_id", sess.ID),
		slog.String("mode", mode.String()),
		slog.Int("segment_seconds", sess.SegmentDuration()),
		slog.Int("threads", threads),
	)

	return transcode.NewJob(sess.ID, builder.Binary(), builder.Args(), stdin, g.logger), nil
}

// Close shuts down the gateway: background jobs, then all sessions, then
// the torrent engine.
func (g *Gateway) Close() {
	g.cron.Stop()
	g.Registry.CloseAll()
	g.torrents.Close()
}

// asStreamError normalizes resolver errors to the session error taxonomy.
func asStreamError(err error, kind session.Kind) *models.StreamError {
	var serr *models.StreamError
	if errors.As(err, &serr) {
		return serr
	}
	if kind == session.KindTorrent {
		return models.WrapStreamError(models.KindTorrentError, err)
	}
	return models.WrapStreamError(models.KindExternalToolFailed, err)
}
