package broadcast

import (
	"context"
	"sync"
	"time"
)

type State string

const (
	StateRunning   State = "running"
	StateCancelled State = "cancelled"
	StateCompleted State = "completed"
)

// Sender delivers the payload to a single recipient chat. The payload is
// opaque to the controller; failures are per-recipient and non-fatal.
type Sender func(ctx context.Context, chatID int64, payload string) error

type JobStatus struct {
	ID         string
	Initiator  int64
	State      State
	Sent       int
	Failed     int
	Total      int
	Cursor     int
	StartedAt  time.Time
	FinishedAt time.Time
}

type job struct {
	id         string
	initiator  int64
	payload    string
	recipients []int64

	// stop is closed by Cancel; the dispatch loop observes it before each
	// send, never mid-send.
	stop     chan struct{}
	stopOnce sync.Once
}

func (j *job) requestStop() {
	j.stopOnce.Do(func() { close(j.stop) })
}
