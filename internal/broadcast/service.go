package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/pborman/uuid"
	log "github.com/sirupsen/logrus"

	errs "github.com/wardenbot/warden/internal/errors"
)

// Service owns the single process-wide broadcast slot. At most one job is
// running at any time; a second start is rejected synchronously, not queued.
type Service struct {
	send         Sender
	sendInterval time.Duration

	mu      sync.Mutex
	current *job
	status  JobStatus
	last    *JobStatus

	onFinish func(JobStatus)

	runMutex  sync.Mutex
	started   bool
	runCtx    context.Context
	runCancel context.CancelFunc
	workersWg sync.WaitGroup
}

func NewService(send Sender, sendInterval time.Duration) *Service {
	return &Service{
		send:         send,
		sendInterval: sendInterval,
	}
}

// OnFinish registers a hook invoked with the final status of every job.
// Must be called before Start.
func (s *Service) OnFinish(fn func(JobStatus)) {
	s.onFinish = fn
}

func (s *Service) Start(ctx context.Context) error {
	s.runMutex.Lock()
	defer s.runMutex.Unlock()
	if s.started {
		return nil
	}
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	s.started = true
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	s.runMutex.Lock()
	if !s.started {
		s.runMutex.Unlock()
		return nil
	}
	s.started = false
	cancel := s.runCancel
	s.runMutex.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.workersWg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// StartJob launches a new broadcast. Recipients are attempted strictly in
// order by a single background dispatch loop.
func (s *Service) StartJob(payload string, recipients []int64, initiator int64) (string, error) {
	s.runMutex.Lock()
	if !s.started {
		s.runMutex.Unlock()
		return "", errs.ErrNotRunning
	}
	runCtx := s.runCtx
	s.runMutex.Unlock()

	s.mu.Lock()
	if s.current != nil {
		s.mu.Unlock()
		return "", errs.ErrAlreadyRunning
	}

	j := &job{
		id:         uuid.New(),
		initiator:  initiator,
		payload:    payload,
		recipients: append([]int64(nil), recipients...),
		stop:       make(chan struct{}),
	}
	s.current = j
	s.status = JobStatus{
		ID:        j.id,
		Initiator: initiator,
		State:     StateRunning,
		Total:     len(j.recipients),
		StartedAt: time.Now(),
	}
	s.mu.Unlock()

	s.getLogEntry().WithFields(log.Fields{
		"job":       j.id,
		"initiator": initiator,
		"total":     len(j.recipients),
	}).Info("broadcast job started")

	s.workersWg.Add(1)
	go func() {
		defer s.workersWg.Done()
		s.dispatch(runCtx, j)
	}()

	return j.id, nil
}

// Cancel requests a cooperative stop of the running job. It returns
// immediately; callers observe the eventual cancelled state via Status.
func (s *Service) Cancel(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return errs.ErrNotRunning
	}
	if s.current.id != jobID {
		return errs.ErrWrongJob
	}
	s.current.requestStop()
	return nil
}

// CancelCurrent cancels whatever job is running, if any.
func (s *Service) CancelCurrent() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return "", errs.ErrNotRunning
	}
	s.current.requestStop()
	return s.current.id, nil
}

// Status reports a snapshot for the given job, running or last finished.
// It never blocks on the dispatch loop.
func (s *Service) Status(jobID string) (JobStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.current.id == jobID {
		return s.status, true
	}
	if s.last != nil && s.last.ID == jobID {
		return *s.last, true
	}
	return JobStatus{}, false
}

// Current reports the running job's snapshot, or the last finished one.
func (s *Service) Current() (JobStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return s.status, true
	}
	if s.last != nil {
		return *s.last, true
	}
	return JobStatus{}, false
}

func (s *Service) getLogEntry() *log.Entry {
	return log.WithField("context", "broadcast")
}
