package broadcast

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"github.com/wardenbot/warden/internal/observability"
)

// dispatch processes the recipient list in order, one send at a time. The
// stop flag is observed at iteration boundaries only, so a send already in
// flight is never interrupted by a cancel.
func (s *Service) dispatch(ctx context.Context, j *job) {
	entry := s.getLogEntry().WithField("job", j.id)

	cancelled := false
	for i, chatID := range j.recipients {
		if stopRequested(ctx, j) {
			cancelled = true
			break
		}

		err := s.send(ctx, chatID, j.payload)

		s.mu.Lock()
		s.status.Cursor = i + 1
		if err != nil {
			s.status.Failed++
		} else {
			s.status.Sent++
		}
		s.mu.Unlock()

		if err != nil {
			observability.RecordBroadcastSend("failed")
			entry.WithFields(log.Fields{
				"chat_id": chatID,
				"error":   err.Error(),
			}).Warn("broadcast send failed")
		} else {
			observability.RecordBroadcastSend("sent")
		}
		observability.Logger.Debug("broadcast send",
			zap.String("job", j.id),
			zap.Int64("chat_id", chatID),
			zap.Bool("ok", err == nil),
		)

		if i < len(j.recipients)-1 && s.sendInterval > 0 {
			if !sleepInterruptible(ctx, j, s.sendInterval) {
				// A cancel during the pause stops before the next send.
				cancelled = true
				break
			}
		}
	}

	s.mu.Lock()
	if cancelled {
		s.status.State = StateCancelled
	} else {
		s.status.State = StateCompleted
	}
	s.status.FinishedAt = time.Now()
	final := s.status
	s.last = &final
	s.current = nil
	s.mu.Unlock()

	entry.WithFields(log.Fields{
		"state":  string(final.State),
		"sent":   final.Sent,
		"failed": final.Failed,
		"total":  final.Total,
	}).Info("broadcast job finished")

	if s.onFinish != nil {
		s.onFinish(final)
	}
}

func stopRequested(ctx context.Context, j *job) bool {
	select {
	case <-j.stop:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// sleepInterruptible waits out the send interval, reporting false when a
// stop arrives first.
func sleepInterruptible(ctx context.Context, j *job, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-j.stop:
		return false
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
