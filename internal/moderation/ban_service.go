package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamwavecut/tool"
	log "github.com/sirupsen/logrus"

	"github.com/wardenbot/warden/internal/db"
	errs "github.com/wardenbot/warden/internal/errors"
	"github.com/wardenbot/warden/internal/i18n"
	"github.com/wardenbot/warden/internal/observability"
)

const (
	MsgNoPrivileges = "not enough rights to restrict/unrestrict chat member"

	banNoticeTemplate = `🚫 {{ .header }}

• {{ .user_name }} ({{ .user_id }})
• {{ .elapsed }} in chat
• {{ .reason }}`
)

type BanService interface {
	ExecuteBan(ctx context.Context, ev LeaveEvent, decision Decision) error
}

type banStore interface {
	AddBanRecord(ctx context.Context, record *db.BanRecord) error
}

type defaultBanService struct {
	bot      *api.BotAPI
	store    banStore
	language string
}

func NewBanService(bot *api.BotAPI, store banStore, language string) BanService {
	return &defaultBanService{
		bot:      bot,
		store:    store,
		language: language,
	}
}

// ExecuteBan performs the platform ban for a positive decision. The ledger
// entry is already consumed by the engine, so a platform failure here leaves
// no state to roll back; it is surfaced as a distinct error kind instead.
func (s *defaultBanService) ExecuteBan(ctx context.Context, ev LeaveEvent, decision Decision) error {
	entry := s.getLogEntry().WithFields(log.Fields{
		"chat_id": ev.ChatID,
		"user_id": ev.UserID,
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if _, err := s.bot.Request(api.BanChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{
				ChatID: ev.ChatID,
			},
			UserID: ev.UserID,
		},
		RevokeMessages: false,
	}); err != nil {
		observability.RecordBan("failed")
		s.notifyBanFailure(ev)
		return withPrivilegeError(err, "ban")
	}
	observability.RecordBan("banned")
	entry.WithField("reason", decision.Reason).Info("banned quick leaver")

	if err := s.store.AddBanRecord(ctx, &db.BanRecord{
		ChatID:   ev.ChatID,
		UserID:   ev.UserID,
		Username: ev.Username,
		JoinedAt: decision.JoinedAt,
		LeftAt:   ev.At,
		Reason:   decision.Reason,
		BannedAt: time.Now(),
	}); err != nil {
		entry.WithField("error", err.Error()).Error("failed to add ban record")
	}

	notice := renderBanNotice(ev, decision, s.language)
	if _, err := s.bot.Send(api.NewMessage(ev.ChatID, notice)); err != nil {
		entry.WithField("error", err.Error()).Warn("failed to send ban notice")
	}

	return nil
}

func (s *defaultBanService) notifyBanFailure(ev LeaveEvent) {
	text := i18n.Get("Could not ban user, make sure the bot has admin permissions", s.language)
	if _, err := s.bot.Send(api.NewMessage(ev.ChatID, text)); err != nil {
		s.getLogEntry().WithField("error", err.Error()).Warn("failed to send ban failure notice")
	}
}

func renderBanNotice(ev LeaveEvent, decision Decision, language string) string {
	name := ev.Username
	if name == "" {
		name = fmt.Sprintf("id%d", ev.UserID)
	}
	return tool.ExecTemplate(banNoticeTemplate, map[string]any{
		"header":    i18n.Get("User banned for leaving right after joining", language),
		"user_name": name,
		"user_id":   ev.UserID,
		"elapsed":   decision.Elapsed.Round(time.Second).String(),
		"reason":    i18n.Get(decision.Reason, language),
	})
}

func withPrivilegeError(err error, operation string) error {
	if strings.Contains(err.Error(), MsgNoPrivileges) {
		return errs.ErrNoPrivileges
	}
	return fmt.Errorf("failed to %s user: %w", operation, err)
}

func (s *defaultBanService) getLogEntry() *log.Entry {
	return log.WithField("context", "ban_service")
}
