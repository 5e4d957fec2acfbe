// Package session implements the stream session registry: one record per
// client-submitted stream, from creation to teardown.
package session

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/streamgate/streamgate/internal/models"
)

// Kind identifies where a session's bytes come from.
type Kind string

// Source kinds.
const (
	KindTorrent Kind = "torrent"
	KindURL     Kind = "url"
)

// State is a session lifecycle state.
type State string

// Session states. Ready is sticky: once reached, a session never regresses
// to Transcoding; only Closed ends it.
const (
	StatePending     State = "Pending"
	StateResolving   State = "Resolving"
	StateQueued      State = "Queued"
	StateTranscoding State = "Transcoding"
	StateReady       State = "Ready"
	StateFailed      State = "Failed"
	StateClosed      State = "Closed"
)

// allowedTransitions is the session state machine. Closed is reachable from
// every state and is absorbing.
var allowedTransitions = map[State][]State{
	StatePending:     {StateResolving, StateFailed},
	StateResolving:   {StateQueued, StateFailed},
	StateQueued:      {StateTranscoding, StateFailed},
	StateTranscoding: {StateReady, StateFailed},
	StateReady:       {StateReady},
	StateFailed:      {},
	StateClosed:      {},
}

// SourceFile is the resolved playable file behind a session. OpenRange
// returns a reader over [start, end] inclusive; end < 0 means "to the end".
type SourceFile struct {
	Name      string
	Length    int64
	OpenRange func(start, end int64) (io.ReadCloser, error)
}

// SubtitleInfo describes a subtitle side-file discovered in the source.
type SubtitleInfo struct {
	Name     string `json:"name"`
	Ext      string `json:"ext"`
	Size     int64  `json:"size"`
	Language string `json:"language"`
}

// ExtractedSubtitle describes a subtitle written into the session folder.
type ExtractedSubtitle struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Language string `json:"language"`
	Ext      string `json:"ext"`
	Size     int64  `json:"size"`
}

// MediaInfo holds probed media metadata.
type MediaInfo struct {
	DurationSeconds   float64 `json:"duration"`
	DurationFormatted string  `json:"durationFormatted"`
}

// TorrentStats is a live view of the torrent behind a torrent session.
type TorrentStats struct {
	Name          string
	InfoHash      string
	NumPeers      int
	Progress      float64 // 0-100
	DownloadSpeed float64 // bytes/s
	Ratio         float64
}

// Session is one stream session record. Mutations go through methods that
// take the per-record lock; immutable identity fields are exported directly.
type Session struct {
	ID        string
	Kind      Kind
	CreatedAt time.Time
	Folder    string

	mu sync.Mutex

	state           State
	source          *SourceFile
	videoCodec      string
	subsDetected    []SubtitleInfo
	subsExtracted   []ExtractedSubtitle
	mediaInfo       *MediaInfo
	segmentDuration int
	totalSegments   int
	currentSegment  int
	playbackPos     int
	playlistReadyAt *time.Time
	err             *models.StreamError

	statsFn   func() *TorrentStats
	releaseFn func() // releases the source (torrent drop / reader close)
	killFn    func() // kills a live transcoder subprocess
	stopWatch func() // stops readiness and retention watchers
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transition moves the session to the given state, enforcing the state
// machine. Ready->Ready is an idempotent no-op; any state may move to Closed.
func (s *Session) Transition(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(to)
}

func (s *Session) transitionLocked(to State) error {
	if s.state == StateClosed {
		if to == StateClosed {
			return nil
		}
		return models.ErrSessionClosed
	}
	if to == StateClosed {
		s.state = StateClosed
		return nil
	}
	if s.state == to && s.state == StateReady {
		return nil
	}
	for _, next := range allowedTransitions[s.state] {
		if next == to {
			s.state = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s for session %s", models.ErrInvalidTransition, s.state, to, s.ID)
}

// Fail records a terminal error and moves the session to Failed. The first
// recorded error wins; later calls are ignored so the original cause is
// preserved. A session that already reached Ready stays Ready: clients can
// keep playing the segments that exist.
func (s *Session) Fail(serr *models.StreamError) {
	if serr == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil || s.state == StateClosed || s.state == StateReady {
		return
	}
	s.err = serr
	s.state = StateFailed
}

// Err returns the recorded terminal error, if any.
func (s *Session) Err() *models.StreamError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// SetSource records the resolved source file and its release hook.
func (s *Session) SetSource(sf *SourceFile, release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = sf
	s.releaseFn = release
}

// Source returns the resolved source file, or nil before resolution.
func (s *Session) Source() *SourceFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// SetVideoCodec records the probed video codec hint used for transcode mode
// selection.
func (s *Session) SetVideoCodec(codec string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videoCodec = codec
}

// VideoCodec returns the probed video codec, or "" if not probed.
func (s *Session) VideoCodec() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videoCodec
}

// SetStatsFunc installs the live torrent statistics provider.
func (s *Session) SetStatsFunc(fn func() *TorrentStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statsFn = fn
}

// SetSubtitlesDetected records the subtitle side-files found in the source.
func (s *Session) SetSubtitlesDetected(subs []SubtitleInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subsDetected = subs
}

// AddExtractedSubtitle appends one successfully extracted subtitle.
func (s *Session) AddExtractedSubtitle(sub ExtractedSubtitle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subsExtracted = append(s.subsExtracted, sub)
}

// Subtitles returns the detected and extracted subtitle lists.
func (s *Session) Subtitles() ([]SubtitleInfo, []ExtractedSubtitle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	detected := make([]SubtitleInfo, len(s.subsDetected))
	copy(detected, s.subsDetected)
	extracted := make([]ExtractedSubtitle, len(s.subsExtracted))
	copy(extracted, s.subsExtracted)
	return detected, extracted
}

// SetMediaInfo records probed duration metadata.
func (s *Session) SetMediaInfo(info *MediaInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mediaInfo = info
}

// SetSegmentDuration fixes the HLS segment length for this session. It can
// be set only once: segment timestamps on disk are derived from it, so a
// later change would desync every existing segment.
func (s *Session) SetSegmentDuration(seconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.segmentDuration != 0 {
		return fmt.Errorf("segment duration already fixed at %ds for session %s", s.segmentDuration, s.ID)
	}
	if seconds < 1 {
		return fmt.Errorf("segment duration %d invalid", seconds)
	}
	s.segmentDuration = seconds
	return nil
}

// SegmentDuration returns the fixed segment length, or 0 before transcoding.
func (s *Session) SegmentDuration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.segmentDuration
}

// ObserveSegments updates the segment count. The count is monotonic
// non-decreasing; retention deleting old files never shrinks it.
func (s *Session) ObserveSegments(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if count > s.totalSegments {
		s.totalSegments = count
	}
}

// TotalSegments returns the high-water segment count.
func (s *Session) TotalSegments() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalSegments
}

// MarkPlaylistReady records the first time the playlist became usable.
func (s *Session) MarkPlaylistReady(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playlistReadyAt == nil {
		s.playlistReadyAt = &at
	}
}

// PlaylistReadyAt returns when the playlist first became usable, or nil.
func (s *Session) PlaylistReadyAt() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playlistReadyAt
}

// Seek sets the advisory playback cursor to the given segment, maintaining
// the invariant playbackPos == segment * segmentDuration.
func (s *Session) Seek(segment int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentSegment = segment
	s.playbackPos = segment * s.segmentDuration
}

// Position returns the advisory cursor: current segment and playback
// position in seconds.
func (s *Session) Position() (segment, positionSecs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentSegment, s.playbackPos
}

// SetKillFunc installs the hook that kills a live transcoder subprocess.
func (s *Session) SetKillFunc(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.killFn = fn
}

// SetStopWatch installs the hook that stops the readiness/retention watchers.
func (s *Session) SetStopWatch(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopWatch = fn
}

// TorrentStats returns live torrent statistics, or nil for URL sessions or
// before resolution.
func (s *Session) TorrentStats() *TorrentStats {
	s.mu.Lock()
	fn := s.statsFn
	s.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn()
}

// Close transitions the session to Closed and releases everything it owns:
// watchers, the transcoder subprocess, and the source reader. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	stopWatch := s.stopWatch
	kill := s.killFn
	release := s.releaseFn
	s.stopWatch = nil
	s.killFn = nil
	s.releaseFn = nil
	s.statsFn = nil
	s.mu.Unlock()

	if stopWatch != nil {
		stopWatch()
	}
	if kill != nil {
		kill()
	}
	if release != nil {
		release()
	}
}
