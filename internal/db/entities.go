package db

import (
	"time"
)

type (
	// KnownChat is a chat the bot has seen and can broadcast to.
	KnownChat struct {
		ID           int64     `db:"id"`
		Title        string    `db:"title"`
		Type         string    `db:"type"`
		RegisteredAt time.Time `db:"registered_at"`
	}

	// BanRecord is the audit trail of an executed auto-ban.
	BanRecord struct {
		ID       int64     `db:"id"`
		ChatID   int64     `db:"chat_id"`
		UserID   int64     `db:"user_id"`
		Username string    `db:"username"`
		JoinedAt time.Time `db:"joined_at"`
		LeftAt   time.Time `db:"left_at"`
		Reason   string    `db:"reason"`
		BannedAt time.Time `db:"banned_at"`
	}
)
