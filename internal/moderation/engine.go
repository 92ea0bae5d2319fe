// Package moderation decides and executes bans for members who leave a chat
// shortly after joining.
package moderation

import (
	"time"

	"github.com/wardenbot/warden/internal/ledger"
)

const (
	ReasonNoTrackedJoin    = "no tracked join"
	ReasonLeftWithinWindow = "left within grace window"
	ReasonStayedPastWindow = "stayed past grace window"
)

type LeaveEvent struct {
	ChatID   int64
	UserID   int64
	Username string
	At       time.Time
}

type Decision struct {
	Ban      bool
	Reason   string
	JoinedAt time.Time
	Elapsed  time.Duration
}

// Engine is a pure decision function over the ledger: no network, no side
// effects beyond consuming the ledger entry.
type Engine struct {
	ledger      *ledger.Ledger
	graceWindow time.Duration
}

func NewEngine(l *ledger.Ledger, graceWindow time.Duration) *Engine {
	return &Engine{
		ledger:      l,
		graceWindow: graceWindow,
	}
}

// Evaluate consumes the ledger entry for the leaving pair and decides whether
// the member must be banned. The entry is consumed regardless of the outcome,
// so a later rejoin starts a fresh window.
func (e *Engine) Evaluate(ev LeaveEvent) Decision {
	record, ok := e.ledger.TakeOnLeave(ev.ChatID, ev.UserID)
	if !ok {
		return Decision{Ban: false, Reason: ReasonNoTrackedJoin}
	}

	elapsed := ev.At.Sub(record.JoinedAt)
	decision := Decision{
		JoinedAt: record.JoinedAt,
		Elapsed:  elapsed,
	}
	if elapsed <= e.graceWindow {
		decision.Ban = true
		decision.Reason = ReasonLeftWithinWindow
		return decision
	}
	decision.Reason = ReasonStayedPastWindow
	return decision
}
