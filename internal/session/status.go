package session

import (
	"math"
	"time"
)

// SeekControl describes the advisory playback cursor in a status snapshot.
type SeekControl struct {
	CurrentPosition      int  `json:"currentPosition"`
	CurrentSegment       int  `json:"currentSegment"`
	TotalSegments        int  `json:"totalSegments"`
	SegmentDuration      int  `json:"segmentDuration"`
	SupportRangeRequests bool `json:"supportRangeRequests"`
	CanSeek              bool `json:"canSeek"`
}

// Status is a point-in-time view of a session for HTTP consumers.
type Status struct {
	Ready          bool                `json:"ready"`
	State          string              `json:"state"`
	Folder         string              `json:"folder"`
	File           string              `json:"file,omitempty"`
	Error          string              `json:"error,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
	ElapsedSeconds float64             `json:"elapsedSeconds"`
	TorrentName    string              `json:"torrentName,omitempty"`
	TorrentHash    string              `json:"torrentHash,omitempty"`
	NumPeers       int                 `json:"numPeers"`
	Progress       float64             `json:"progress"`
	DownloadSpeed  float64             `json:"downloadSpeed"`
	Ratio          float64             `json:"ratio"`
	HLSReadyAt     *time.Time          `json:"hlsReadyAt,omitempty"`
	MediaInfo      *MediaInfo          `json:"mediaInfo,omitempty"`
	AvailableSubs  []SubtitleInfo      `json:"availableSubtitles"`
	ExtractedSubs  []ExtractedSubtitle `json:"extractedSubtitles"`
	SeekControl    SeekControl         `json:"seekControl"`
}

// Snapshot assembles a consistent status view. It never blocks transcoding:
// the record lock is held only for field copies, and torrent statistics are
// read outside it.
func (s *Session) Snapshot() Status {
	s.mu.Lock()
	st := Status{
		Ready:          s.state == StateReady,
		State:          string(s.state),
		Folder:         s.Folder,
		CreatedAt:      s.CreatedAt,
		ElapsedSeconds: time.Since(s.CreatedAt).Seconds(),
		HLSReadyAt:     s.playlistReadyAt,
		MediaInfo:      s.mediaInfo,
		SeekControl: SeekControl{
			CurrentPosition:      s.playbackPos,
			CurrentSegment:       s.currentSegment,
			TotalSegments:        s.totalSegments,
			SegmentDuration:      s.segmentDuration,
			SupportRangeRequests: s.source != nil,
			CanSeek:              s.totalSegments > 0,
		},
	}
	if s.source != nil {
		st.File = s.source.Name
	}
	if s.err != nil {
		st.Error = s.err.Error()
	}
	st.AvailableSubs = make([]SubtitleInfo, len(s.subsDetected))
	copy(st.AvailableSubs, s.subsDetected)
	st.ExtractedSubs = make([]ExtractedSubtitle, len(s.subsExtracted))
	copy(st.ExtractedSubs, s.subsExtracted)
	statsFn := s.statsFn
	s.mu.Unlock()

	if statsFn != nil {
		if stats := statsFn(); stats != nil {
			st.TorrentName = stats.Name
			st.TorrentHash = stats.InfoHash
			st.NumPeers = stats.NumPeers
			st.Progress = math.Round(stats.Progress*100) / 100
			st.DownloadSpeed = stats.DownloadSpeed
			st.Ratio = stats.Ratio
		}
	}
	return st
}
