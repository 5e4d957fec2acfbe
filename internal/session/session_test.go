package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamgate/streamgate/internal/models"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	r := NewRegistry(t.TempDir())
	s, err := r.Create(KindTorrent)
	require.NoError(t, err)
	return s
}

func TestTransition_HappyPath(t *testing.T) {
	s := newTestSession(t)
	assert.Equal(t, StatePending, s.State())

	for _, next := range []State{StateResolving, StateQueued, StateTranscoding, StateReady} {
		require.NoError(t, s.Transition(next))
		assert.Equal(t, next, s.State())
	}

	// Ready is idempotent.
	require.NoError(t, s.Transition(StateReady))
	assert.Equal(t, StateReady, s.State())
}

func TestTransition_ReadyIsSticky(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.Transition(StateResolving))
	require.NoError(t, s.Transition(StateQueued))
	require.NoError(t, s.Transition(StateTranscoding))
	require.NoError(t, s.Transition(StateReady))

	err := s.Transition(StateTranscoding)
	require.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Equal(t, StateReady, s.State())
}

func TestTransition_IllegalJump(t *testing.T) {
	s := newTestSession(t)
	err := s.Transition(StateTranscoding)
	require.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestTransition_AnyToClosed(t *testing.T) {
	for _, from := range []State{StatePending, StateResolving, StateQueued, StateTranscoding, StateReady, StateFailed} {
		s := newTestSession(t)
		s.mu.Lock()
		s.state = from
		s.mu.Unlock()
		require.NoError(t, s.Transition(StateClosed), "from %s", from)
		assert.Equal(t, StateClosed, s.State())
	}
}

func TestTransition_ClosedIsAbsorbing(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.Transition(StateClosed))
	require.NoError(t, s.Transition(StateClosed))
	assert.ErrorIs(t, s.Transition(StateReady), models.ErrSessionClosed)
}

func TestFail_FirstErrorWins(t *testing.T) {
	s := newTestSession(t)
	s.Fail(models.NewStreamError(models.KindNoPlayableFile, "no media extension"))
	s.Fail(models.NewStreamError(models.KindTranscoderError, "later"))

	assert.Equal(t, StateFailed, s.State())
	require.NotNil(t, s.Err())
	assert.Equal(t, models.KindNoPlayableFile, s.Err().Kind)
}

func TestSegmentDuration_Immutable(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.SetSegmentDuration(4))
	assert.Error(t, s.SetSegmentDuration(6))
	assert.Equal(t, 4, s.SegmentDuration())
}

func TestObserveSegments_Monotonic(t *testing.T) {
	s := newTestSession(t)
	s.ObserveSegments(7)
	s.ObserveSegments(3)
	assert.Equal(t, 7, s.TotalSegments())
}

func TestSeek_MaintainsInvariant(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.SetSegmentDuration(4))
	s.Seek(4)
	seg, pos := s.Position()
	assert.Equal(t, 4, seg)
	assert.Equal(t, 16, pos)
}

func TestClose_ReleasesEverything(t *testing.T) {
	s := newTestSession(t)
	var killed, released, stopped bool
	s.SetKillFunc(func() { killed = true })
	s.SetSource(&SourceFile{Name: "a.mp4", Length: 1}, func() { released = true })
	s.SetStopWatch(func() { stopped = true })

	s.Close()
	s.Close() // idempotent

	assert.True(t, killed)
	assert.True(t, released)
	assert.True(t, stopped)
	assert.Equal(t, StateClosed, s.State())
}

func TestSnapshot_Fields(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.SetSegmentDuration(4))
	s.SetSource(&SourceFile{Name: "movie.mkv", Length: 100}, nil)
	s.SetMediaInfo(&MediaInfo{DurationSeconds: 120, DurationFormatted: "00:02:00"})
	s.ObserveSegments(10)
	s.Seek(2)
	s.SetStatsFunc(func() *TorrentStats {
		return &TorrentStats{Name: "movie", InfoHash: "abcd", NumPeers: 3, Progress: 41.2345, DownloadSpeed: 1024, Ratio: 0.5}
	})
	ready := time.Now()
	s.MarkPlaylistReady(ready)

	st := s.Snapshot()
	assert.False(t, st.Ready)
	assert.Equal(t, "movie.mkv", st.File)
	assert.Equal(t, "movie", st.TorrentName)
	assert.Equal(t, 41.23, st.Progress)
	assert.Equal(t, 3, st.NumPeers)
	assert.Equal(t, 2, st.SeekControl.CurrentSegment)
	assert.Equal(t, 8, st.SeekControl.CurrentPosition)
	assert.Equal(t, 10, st.SeekControl.TotalSegments)
	assert.True(t, st.SeekControl.CanSeek)
	require.NotNil(t, st.HLSReadyAt)
}

func TestRegistry_CreateGetRemove(t *testing.T) {
	r := NewRegistry(t.TempDir())

	s, err := r.Create(KindURL)
	require.NoError(t, err)
	assert.Len(t, s.ID, 8)
	assert.DirExists(t, s.Folder)

	got, err := r.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = r.Get("deadbeef")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)

	require.NoError(t, r.Remove(s.ID, true))
	assert.NoDirExists(t, s.Folder)
	_, err = r.Get(s.ID)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestRegistry_ActiveCount(t *testing.T) {
	r := NewRegistry(t.TempDir())
	a, _ := r.Create(KindTorrent)
	b, _ := r.Create(KindTorrent)
	c, _ := r.Create(KindURL)

	assert.Equal(t, 3, r.ActiveCount())

	a.Fail(models.NewStreamError(models.KindTorrentError, "tracker down"))
	b.Close()
	_ = c

	assert.Equal(t, 1, r.ActiveCount())
}
