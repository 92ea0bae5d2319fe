package sqlite

import (
	"context"

	"github.com/iamwavecut/tool"

	"github.com/wardenbot/warden/internal/db"
)

func (c *sqliteClient) AddBanRecord(ctx context.Context, record *db.BanRecord) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO ban_records (chat_id, user_id, username, joined_at, left_at, reason, banned_at)
		VALUES (:chat_id, :user_id, :username, :joined_at, :left_at, :reason, :banned_at)
	`
	return tool.Err(c.db.NamedExecContext(ctx, query, record))
}

func (c *sqliteClient) CountBanRecords(ctx context.Context) (int64, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var count int64
	err := c.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM ban_records")
	return count, err
}
