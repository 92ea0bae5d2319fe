// Package ledger tracks join timestamps per (chat, user) pair.
//
// The ledger is deliberately in-memory only: an entry is created on an
// observed join and consumed by the leave that follows it, so there is
// nothing worth persisting across restarts. A join the bot never saw simply
// produces no entry, and the decision engine treats that as "no evidence".
package ledger

import (
	"sync"
	"time"
)

type key struct {
	chatID int64
	userID int64
}

type Record struct {
	ChatID   int64
	UserID   int64
	JoinedAt time.Time
}

type Ledger struct {
	mu      sync.Mutex
	records map[key]Record
}

func New() *Ledger {
	return &Ledger{
		records: make(map[key]Record),
	}
}

// RecordJoin upserts the join timestamp for the pair. A second join before
// any leave overwrites the previous one, resetting the window.
func (l *Ledger) RecordJoin(chatID, userID int64, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[key{chatID: chatID, userID: userID}] = Record{
		ChatID:   chatID,
		UserID:   userID,
		JoinedAt: at,
	}
}

// TakeOnLeave atomically reads and removes the record for the pair. The
// second take in a row for the same pair reports absent.
func (l *Ledger) TakeOnLeave(chatID, userID int64) (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := key{chatID: chatID, userID: userID}
	record, ok := l.records[k]
	if ok {
		delete(l.records, k)
	}
	return record, ok
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
