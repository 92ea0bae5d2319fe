package sqlite

import (
	"context"
	"fmt"

	"github.com/iamwavecut/tool"

	"github.com/wardenbot/warden/internal/db"
)

func (c *sqliteClient) UpsertKnownChat(ctx context.Context, chat *db.KnownChat) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO known_chats (id, title, type, registered_at)
		VALUES (:id, :title, :type, :registered_at)
		ON CONFLICT(id) DO UPDATE SET
		title=excluded.title,
		type=excluded.type;
	`
	return tool.Err(c.db.NamedExecContext(ctx, query, chat))
}

func (c *sqliteClient) DeleteKnownChat(ctx context.Context, chatID int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, "DELETE FROM known_chats WHERE id = ?", chatID)
	return err
}

func (c *sqliteClient) GetKnownChatIDs(ctx context.Context) ([]int64, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var chatIDs []int64
	err := c.db.SelectContext(ctx, &chatIDs, "SELECT id FROM known_chats ORDER BY registered_at, id")
	if err != nil {
		return nil, fmt.Errorf("select known chats: %w", err)
	}
	return chatIDs, nil
}

func (c *sqliteClient) CountKnownChats(ctx context.Context) (int64, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var count int64
	err := c.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM known_chats")
	return count, err
}
