package supervise

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamgate/streamgate/internal/session"
)

func newTranscodingSession(t *testing.T) *session.Session {
	t.Helper()
	r := session.NewRegistry(t.TempDir())
	s, err := r.Create(session.KindTorrent)
	require.NoError(t, err)
	require.NoError(t, s.Transition(session.StateResolving))
	require.NoError(t, s.Transition(session.StateQueued))
	require.NoError(t, s.Transition(session.StateTranscoding))
	return s
}

func writeSegment(t *testing.T, folder string, index, size int) {
	t.Helper()
	name := fmt.Sprintf("segment_%03d.ts", index)
	require.NoError(t, os.WriteFile(filepath.Join(folder, name), make([]byte, size), 0o644))
}

func writePlaylist(t *testing.T, folder string, size int) {
	t.Helper()
	content := make([]byte, size)
	copy(content, "#EXTM3U\n")
	require.NoError(t, os.WriteFile(filepath.Join(folder, PlaylistName), content, 0o644))
}

func TestPlaylistUsable(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, playlistUsable(dir), "missing playlist")

	writePlaylist(t, dir, 50)
	assert.False(t, playlistUsable(dir), "stub playlist")

	writePlaylist(t, dir, 200)
	assert.True(t, playlistUsable(dir))
}

func TestCountSegments_UsesHighestIndex(t *testing.T) {
	dir := t.TempDir()
	// Early segments already evicted by retention.
	writeSegment(t, dir, 7, 10)
	writeSegment(t, dir, 9, 10)

	n, err := countSegments(dir)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestWatch_MarksReady(t *testing.T) {
	sess := newTranscodingSession(t)
	sv := New(Config{
		ReadinessPollInterval:  10 * time.Millisecond,
		SegmentMonitorInterval: 10 * time.Millisecond,
		RetentionInterval:      time.Hour,
		MaxStorageBytes:        1 << 30,
		KeepSegments:           5,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sv.Watch(ctx, sess)

	// Not ready until both conditions hold.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, session.StateTranscoding, sess.State())

	writePlaylist(t, sess.Folder, 200)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, session.StateTranscoding, sess.State(), "playlist alone is not readiness")

	writeSegment(t, sess.Folder, 0, 100)

	require.Eventually(t, func() bool {
		return sess.State() == session.StateReady
	}, time.Second, 10*time.Millisecond)

	assert.NotNil(t, sess.PlaylistReadyAt())
	assert.GreaterOrEqual(t, sess.TotalSegments(), 1)
}

func TestRetentionPass_UnderBudgetNoop(t *testing.T) {
	dir := t.TempDir()
	writePlaylist(t, dir, 200)
	writeSegment(t, dir, 0, 1000)

	deleted, err := RetentionPass(dir, 1<<20, 3)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestRetentionPass_TrimsOldestSegmentsFirst(t *testing.T) {
	dir := t.TempDir()
	writePlaylist(t, dir, 200)
	for i := range 50 {
		writeSegment(t, dir, i, 1_000)
	}

	// Budget fits roughly three segments plus the playlist.
	_, err := RetentionPass(dir, 3_500, 3)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}

	assert.Contains(t, names, PlaylistName)
	assert.Contains(t, names, "segment_047.ts")
	assert.Contains(t, names, "segment_048.ts")
	assert.Contains(t, names, "segment_049.ts")
	assert.NotContains(t, names, "segment_000.ts")
	assert.NotContains(t, names, "segment_046.ts")
}

func TestRetentionPass_PlaylistNeverDeleted(t *testing.T) {
	dir := t.TempDir()
	writePlaylist(t, dir, 5_000)

	deleted, err := RetentionPass(dir, 1_000, 3)
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.FileExists(t, filepath.Join(dir, PlaylistName))
}

func TestRetentionPass_OthersAfterSegments(t *testing.T) {
	dir := t.TempDir()
	writePlaylist(t, dir, 200)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "subtitle_eng.srt"), make([]byte, 2_000), 0o644))
	for i := range 6 {
		writeSegment(t, dir, i, 1_000)
	}

	// 6 segments + 2000 sub + 200 playlist = 8200. Budget 5000 with 5
	// protected: only segment_000 is an unprotected segment (frees 1000),
	// then the subtitle goes.
	_, err := RetentionPass(dir, 5_000, 5)
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(dir, "segment_000.ts"))
	assert.NoFileExists(t, filepath.Join(dir, "subtitle_eng.srt"))
	assert.FileExists(t, filepath.Join(dir, "segment_001.ts"))
	assert.FileExists(t, filepath.Join(dir, PlaylistName))
}

func TestRetentionPass_StopsAtBudget(t *testing.T) {
	dir := t.TempDir()
	writePlaylist(t, dir, 200)
	for i := range 10 {
		writeSegment(t, dir, i, 1_000)
	}

	// Deleting two oldest segments brings 10200 to 8200 <= 8500.
	_, err := RetentionPass(dir, 8_500, 3)
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(dir, "segment_000.ts"))
	assert.NoFileExists(t, filepath.Join(dir, "segment_001.ts"))
	assert.FileExists(t, filepath.Join(dir, "segment_002.ts"))
}
