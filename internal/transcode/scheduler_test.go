package transcode

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamgate/streamgate/internal/models"
	"github.com/streamgate/streamgate/internal/session"
)

// fakeRunner implements Runner without spawning a subprocess.
type fakeRunner struct {
	mu       sync.Mutex
	terminal func(err error)
	started  bool
}

func (f *fakeRunner) OnTerminal(fn func(err error)) { f.terminal = fn }

func (f *fakeRunner) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return nil
}

func (f *fakeRunner) Kill() {}

func (f *fakeRunner) finish(err error) {
	f.terminal(err)
}

func newQueuedSession(t *testing.T, r *session.Registry) *session.Session {
	t.Helper()
	s, err := r.Create(session.KindTorrent)
	require.NoError(t, err)
	require.NoError(t, s.Transition(session.StateResolving))
	require.NoError(t, s.Transition(session.StateQueued))
	return s
}

func TestScheduler_AdmitsUpToCap(t *testing.T) {
	reg := session.NewRegistry(t.TempDir())
	sched := NewScheduler(func() int { return 2 }, nil)

	var runners []*fakeRunner
	var sessions []*session.Session
	for range 5 {
		s := newQueuedSession(t, reg)
		r := &fakeRunner{}
		runners = append(runners, r)
		sessions = append(sessions, s)
		sched.Submit(s, func() (Runner, error) { return r, nil })
	}

	stats := sched.Stats()
	assert.Equal(t, 2, stats.Active)
	assert.Equal(t, 3, stats.Queued)

	assert.Equal(t, session.StateTranscoding, sessions[0].State())
	assert.Equal(t, session.StateTranscoding, sessions[1].State())
	assert.Equal(t, session.StateQueued, sessions[2].State())
}

func TestScheduler_FIFOOnRelease(t *testing.T) {
	reg := session.NewRegistry(t.TempDir())
	sched := NewScheduler(func() int { return 1 }, nil)

	var runners []*fakeRunner
	var sessions []*session.Session
	for range 3 {
		s := newQueuedSession(t, reg)
		r := &fakeRunner{}
		runners = append(runners, r)
		sessions = append(sessions, s)
		sched.Submit(s, func() (Runner, error) { return r, nil })
	}

	require.Equal(t, session.StateTranscoding, sessions[0].State())
	require.Equal(t, session.StateQueued, sessions[1].State())

	// Completing the head admits exactly the next in queue order.
	runners[0].finish(nil)
	assert.Equal(t, session.StateTranscoding, sessions[1].State())
	assert.Equal(t, session.StateQueued, sessions[2].State())

	stats := sched.Stats()
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, 1, stats.Queued)
}

func TestScheduler_FailureMarksSessionAndReleases(t *testing.T) {
	reg := session.NewRegistry(t.TempDir())
	sched := NewScheduler(func() int { return 1 }, nil)

	s1 := newQueuedSession(t, reg)
	s2 := newQueuedSession(t, reg)
	r1 := &fakeRunner{}
	r2 := &fakeRunner{}
	sched.Submit(s1, func() (Runner, error) { return r1, nil })
	sched.Submit(s2, func() (Runner, error) { return r2, nil })

	r1.finish(assertableError("segment write failed"))

	require.NotNil(t, s1.Err())
	assert.Equal(t, models.KindTranscoderError, s1.Err().Kind)
	assert.Equal(t, session.StateFailed, s1.State())

	// Capacity was released to the next job.
	assert.Equal(t, session.StateTranscoding, s2.State())
}

func TestScheduler_SkipsClosedSessions(t *testing.T) {
	reg := session.NewRegistry(t.TempDir())
	sched := NewScheduler(func() int { return 1 }, nil)

	s1 := newQueuedSession(t, reg)
	s2 := newQueuedSession(t, reg)
	s1.Close()

	r2 := &fakeRunner{}
	sched.Submit(s1, func() (Runner, error) { t.Fatal("closed session must not build"); return nil, nil })
	sched.Submit(s2, func() (Runner, error) { return r2, nil })

	assert.Equal(t, session.StateClosed, s1.State())
	assert.Equal(t, session.StateTranscoding, s2.State())
	assert.Equal(t, 1, sched.Stats().Active)
}

func TestScheduler_CapGrowthAdmitsQueued(t *testing.T) {
	reg := session.NewRegistry(t.TempDir())

	var mu sync.Mutex
	limit := 1
	sched := NewScheduler(func() int {
		mu.Lock()
		defer mu.Unlock()
		return limit
	}, nil)

	var sessions []*session.Session
	for range 3 {
		s := newQueuedSession(t, reg)
		sessions = append(sessions, s)
		sched.Submit(s, func() (Runner, error) { return &fakeRunner{}, nil })
	}
	require.Equal(t, 1, sched.Stats().Active)

	mu.Lock()
	limit = 3
	mu.Unlock()

	// Any admission attempt re-reads the cap.
	sched.Submit(newQueuedSession(t, reg), func() (Runner, error) { return &fakeRunner{}, nil })

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if sched.Stats().Active == 3 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 3, sched.Stats().Active)
}

type assertableError string

func (e assertableError) Error() string { return string(e) }
