package supervise

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/streamgate/streamgate/internal/models"
	"github.com/streamgate/streamgate/internal/session"
	"github.com/streamgate/streamgate/pkg/format"
)

// seekWindowSize is how many segment descriptors Info returns, centred on
// the current segment.
const seekWindowSize = 20

// SeekRequest is a client seek: by absolute time or by segment index.
// Exactly one should be set; segment wins when both are.
type SeekRequest struct {
	Time    *float64
	Segment *int
}

// SeekResult reports the cursor after a successful seek.
type SeekResult struct {
	CurrentSegment    int
	PlaybackPosition  int
	PositionFormatted string
}

// Seek updates the session's advisory cursor. The cursor invariant
// position == segment * segmentDuration always holds afterwards.
func Seek(sess *session.Session, req SeekRequest) (*SeekResult, *models.StreamError) {
	if req.Time == nil && req.Segment == nil {
		return nil, models.NewStreamError(models.KindBadRequest,
			"seek requires either time or segment")
	}

	segDur := sess.SegmentDuration()
	if segDur <= 0 {
		return nil, models.NewStreamError(models.KindBadRequest,
			"session has not started transcoding")
	}

	var target int
	if req.Segment != nil {
		target = *req.Segment
	} else {
		if *req.Time < 0 {
			return nil, models.NewStreamError(models.KindBadRequest,
				fmt.Sprintf("invalid time %v", *req.Time))
		}
		target = int(*req.Time) / segDur
	}

	total := sess.TotalSegments()
	if target < 0 || (total > 0 && target >= total) {
		upper := total - 1
		if upper < 0 {
			upper = 0
		}
		return nil, models.NewStreamError(models.KindOutOfRange,
			fmt.Sprintf("invalid segment %d, valid range: 0-%d", target, upper))
	}

	sess.Seek(target)
	seg, pos := sess.Position()
	return &SeekResult{
		CurrentSegment:    seg,
		PlaybackPosition:  pos,
		PositionFormatted: format.Timecode(pos),
	}, nil
}

// SegmentDescriptor describes one segment in a seek-info window.
type SegmentDescriptor struct {
	Index        int    `json:"index"`
	Name         string `json:"name"`
	StartSeconds int    `json:"startSeconds"`
	Available    bool   `json:"available"`
}

// SeekInfo is the current cursor plus a window of nearby segments.
type SeekInfo struct {
	CurrentPosition   int                 `json:"currentPosition"`
	PositionFormatted string              `json:"currentPositionFormatted"`
	CurrentSegment    int                 `json:"currentSegment"`
	TotalSegments     int                 `json:"totalSegments"`
	SegmentDuration   int                 `json:"segmentDuration"`
	Segments          []SegmentDescriptor `json:"segments"`
}

// Info returns the cursor and up to seekWindowSize segments centred on it,
// each annotated with on-disk availability (retention may have evicted older
// ones).
func Info(sess *session.Session) SeekInfo {
	seg, pos := sess.Position()
	total := sess.TotalSegments()
	segDur := sess.SegmentDuration()

	info := SeekInfo{
		CurrentPosition:   pos,
		PositionFormatted: format.Timecode(pos),
		CurrentSegment:    seg,
		TotalSegments:     total,
		SegmentDuration:   segDur,
	}

	if total == 0 {
		return info
	}

	start := seg - seekWindowSize/2
	if start+seekWindowSize > total {
		start = total - seekWindowSize
	}
	if start < 0 {
		start = 0
	}
	end := start + seekWindowSize
	if end > total {
		end = total
	}

	for i := start; i < end; i++ {
		name := fmt.Sprintf("segment_%03d.ts", i)
		_, err := os.Stat(filepath.Join(sess.Folder, name))
		info.Segments = append(info.Segments, SegmentDescriptor{
			Index:        i,
			Name:         name,
			StartSeconds: i * segDur,
			Available:    err == nil,
		})
	}
	return info
}
