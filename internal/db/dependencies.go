package db

import (
	"context"
)

type Client interface {
	Close() error

	UpsertKnownChat(ctx context.Context, chat *KnownChat) error
	DeleteKnownChat(ctx context.Context, chatID int64) error
	GetKnownChatIDs(ctx context.Context) ([]int64, error)
	CountKnownChats(ctx context.Context) (int64, error)

	AddBanRecord(ctx context.Context, record *BanRecord) error
	CountBanRecords(ctx context.Context) (int64, error)

	GetKV(ctx context.Context, key string) (string, error)
	SetKV(ctx context.Context, key string, value string) error
}
