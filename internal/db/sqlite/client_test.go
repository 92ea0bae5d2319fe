package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/wardenbot/warden/internal/db"
)

func newTestClient(t *testing.T) *sqliteClient {
	t.Helper()

	client, err := NewSQLiteClient(context.Background(), t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestBanRecordsIndexesExistAfterMigrations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)

	rows, err := client.db.QueryContext(ctx, "PRAGMA index_list('ban_records')")
	if err != nil {
		t.Fatalf("query index_list: %v", err)
	}
	defer rows.Close()

	indexes := make(map[string]struct{})
	for rows.Next() {
		var (
			seq     int
			name    string
			unique  int
			origin  string
			partial int
		)
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			t.Fatalf("scan index row: %v", err)
		}
		indexes[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iterate index rows: %v", err)
	}

	required := []string{"idx_ban_records_chat_user", "idx_ban_records_banned_at"}
	for _, name := range required {
		if _, ok := indexes[name]; !ok {
			t.Fatalf("required index %q not found", name)
		}
	}
}

func TestKnownChatUpsertAndList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)

	chat := &db.KnownChat{ID: -1001, Title: "test group", Type: "supergroup", RegisteredAt: time.Now()}
	if err := client.UpsertKnownChat(ctx, chat); err != nil {
		t.Fatalf("upsert known chat: %v", err)
	}

	chat.Title = "renamed group"
	if err := client.UpsertKnownChat(ctx, chat); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	count, err := client.CountKnownChats(ctx)
	if err != nil {
		t.Fatalf("count known chats: %v", err)
	}
	if count != 1 {
		t.Fatalf("upsert must not duplicate rows: got %d", count)
	}

	ids, err := client.GetKnownChatIDs(ctx)
	if err != nil {
		t.Fatalf("get known chat ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != -1001 {
		t.Fatalf("unexpected chat ids: %v", ids)
	}

	if err := client.DeleteKnownChat(ctx, -1001); err != nil {
		t.Fatalf("delete known chat: %v", err)
	}
	ids, err = client.GetKnownChatIDs(ctx)
	if err != nil {
		t.Fatalf("get known chat ids after delete: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("chat should be gone, got %v", ids)
	}
}

func TestBanRecordsRoundtrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)

	now := time.Now()
	record := &db.BanRecord{
		ChatID:   -1001,
		UserID:   42,
		Username: "quickleaver",
		JoinedAt: now.Add(-10 * time.Minute),
		LeftAt:   now,
		Reason:   "left within grace window",
		BannedAt: now,
	}
	if err := client.AddBanRecord(ctx, record); err != nil {
		t.Fatalf("add ban record: %v", err)
	}

	count, err := client.CountBanRecords(ctx)
	if err != nil {
		t.Fatalf("count ban records: %v", err)
	}
	if count != 1 {
		t.Fatalf("unexpected ban record count: %d", count)
	}
}

func TestKVRoundtrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)

	value, err := client.GetKV(ctx, "missing")
	if err != nil {
		t.Fatalf("get missing key: %v", err)
	}
	if value != "" {
		t.Fatalf("missing key must yield empty value, got %q", value)
	}

	if err := client.SetKV(ctx, "last_broadcast_id", "bc-1"); err != nil {
		t.Fatalf("set kv: %v", err)
	}
	if err := client.SetKV(ctx, "last_broadcast_id", "bc-2"); err != nil {
		t.Fatalf("overwrite kv: %v", err)
	}

	value, err = client.GetKV(ctx, "last_broadcast_id")
	if err != nil {
		t.Fatalf("get kv: %v", err)
	}
	if value != "bc-2" {
		t.Fatalf("unexpected kv value: %q", value)
	}
}
