package transcode

import (
	"log/slog"
	"sync"

	"github.com/streamgate/streamgate/internal/models"
	"github.com/streamgate/streamgate/internal/session"
)

// Runner is the scheduler's view of a transcoder job: three lifecycle
// edges and a kill switch.
type Runner interface {
	OnTerminal(fn func(err error))
	Start() error
	Kill()
}

// BuildFunc constructs a ready-to-start job for a session once the
// scheduler admits it.
type BuildFunc func() (Runner, error)

type pendingJob struct {
	sess  *session.Session
	build BuildFunc
}

// Scheduler admits transcoder jobs from a strict FIFO queue, bounded by the
// tuning policy's live concurrency cap. One scheduler exists per process.
type Scheduler struct {
	mu     sync.Mutex
	active int
	queue  []pendingJob

	maxConcurrent func() int
	logger        *slog.Logger
}

// SchedulerStats is a point-in-time view for /resources.
type SchedulerStats struct {
	Active        int `json:"active"`
	Queued        int `json:"queued"`
	MaxConcurrent int `json:"max_concurrent"`
}

// NewScheduler creates the scheduler. maxConcurrent is consulted on every
// admission decision so cap changes take effect without restarts.
func NewScheduler(maxConcurrent func() int, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		maxConcurrent: maxConcurrent,
		logger:        logger,
	}
}

// Submit enqueues a job and immediately attempts admission.
func (s *Scheduler) Submit(sess *session.Session, build BuildFunc) {
	s.mu.Lock()
	s.queue = append(s.queue, pendingJob{sess: sess, build: build})
	s.mu.Unlock()

	s.logger.Debug("transcode job queued", slog.String("session_id", sess.ID))
	s.admit()
}

// admit starts queued jobs while capacity allows. Non-blocking: subprocess
// startup happens off the scheduler lock.
func (s *Scheduler) admit() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 || s.active >= s.maxConcurrent() {
			s.mu.Unlock()
			return
		}
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.active++
		s.mu.Unlock()

		s.start(next)
	}
}

// start transitions the session and launches its subprocess. Every exit path
// that does not leave a live subprocess must release the slot.
func (s *Scheduler) start(p pendingJob) {
	if err := p.sess.Transition(session.StateTranscoding); err != nil {
		// Session was closed or failed while queued; drop it.
		s.logger.Debug("skipping queued job",
			slog.String("session_id", p.sess.ID),
			slog.String("error", err.Error()),
		)
		s.release()
		return
	}

	job, err := p.build()
	if err != nil {
		p.sess.Fail(models.WrapStreamError(models.KindTranscoderError, err))
		s.release()
		return
	}

	job.OnTerminal(func(err error) {
		if err != nil {
			p.sess.Fail(models.WrapStreamError(models.KindTranscoderError, err))
		}
		s.release()
	})
	p.sess.SetKillFunc(job.Kill)

	if err := job.Start(); err != nil {
		p.sess.Fail(models.WrapStreamError(models.KindTranscoderError, err))
		s.release()
		return
	}
}

// release frees a slot and re-runs admission for the queue head.
func (s *Scheduler) release() {
	s.mu.Lock()
	if s.active > 0 {
		s.active--
	}
	s.mu.Unlock()
	s.admit()
}

// Stats returns current scheduler occupancy.
func (s *Scheduler) Stats() SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SchedulerStats{
		Active:        s.active,
		Queued:        len(s.queue),
		MaxConcurrent: s.maxConcurrent(),
	}
}
