package handlers

import (
	"context"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/wardenbot/warden/internal/bot"
	"github.com/wardenbot/warden/internal/db"
	errs "github.com/wardenbot/warden/internal/errors"
	"github.com/wardenbot/warden/internal/ledger"
	"github.com/wardenbot/warden/internal/moderation"
)

// Membership classifies chat_member transitions into joins and leaves,
// keeps the join ledger current and executes ban decisions on leaves.
type Membership struct {
	ledger     *ledger.Ledger
	engine     *moderation.Engine
	banService moderation.BanService
	store      membershipStore
}

type membershipStore interface {
	UpsertKnownChat(ctx context.Context, chat *db.KnownChat) error
	DeleteKnownChat(ctx context.Context, chatID int64) error
}

// Status sets mirror the platform's member state machine. "restricted" on
// the old side still counts as joining, a restricted member re-admitted is a
// fresh arrival for the grace window.
var (
	joinedOldStatuses = map[string]struct{}{
		"left":       {},
		"kicked":     {},
		"restricted": {},
	}
	joinedNewStatuses = map[string]struct{}{
		"member":        {},
		"administrator": {},
		"creator":       {},
	}
	leftOldStatuses = map[string]struct{}{
		"member":        {},
		"administrator": {},
		"restricted":    {},
	}
	leftNewStatuses = map[string]struct{}{
		"left":   {},
		"kicked": {},
	}
)

func NewMembership(l *ledger.Ledger, engine *moderation.Engine, banService moderation.BanService, store membershipStore) *Membership {
	return &Membership{
		ledger:     l,
		engine:     engine,
		banService: banService,
		store:      store,
	}
}

func (h *Membership) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	if u == nil || chat == nil {
		return true, nil
	}

	switch {
	case u.MyChatMember != nil:
		return false, h.handleOwnMembership(ctx, u.MyChatMember)
	case u.ChatMember != nil:
		return false, h.handleMemberTransition(ctx, u.ChatMember)
	case u.Message != nil && (chat.IsGroup() || chat.IsSuperGroup()):
		// Any group activity keeps the chat registered as a broadcast
		// recipient.
		h.registerChat(ctx, chat)
		return true, nil
	}
	return true, nil
}

func (h *Membership) handleOwnMembership(ctx context.Context, mc *api.ChatMemberUpdated) error {
	entry := h.getLogEntry().WithField("chat_id", mc.Chat.ID)

	status := mc.NewChatMember.Status
	if _, gone := leftNewStatuses[status]; gone {
		entry.Info("removed from chat, dropping from known chats")
		if err := h.store.DeleteKnownChat(ctx, mc.Chat.ID); err != nil {
			return errors.WithMessage(err, "cant delete known chat")
		}
		return nil
	}
	if mc.Chat.IsGroup() || mc.Chat.IsSuperGroup() {
		h.registerChat(ctx, &mc.Chat)
	}
	entry.WithField("status", status).Debug("own membership updated")
	return nil
}

func (h *Membership) handleMemberTransition(ctx context.Context, mc *api.ChatMemberUpdated) error {
	member := mc.NewChatMember.User
	if member == nil || member.IsBot {
		return nil
	}
	eventTime := time.Unix(int64(mc.Date), 0)
	entry := h.getLogEntry().WithFields(log.Fields{
		"chat_id": mc.Chat.ID,
		"user_id": member.ID,
	})

	oldStatus := mc.OldChatMember.Status
	newStatus := mc.NewChatMember.Status

	_, wasOut := joinedOldStatuses[oldStatus]
	_, nowIn := joinedNewStatuses[newStatus]
	if wasOut && nowIn {
		h.ledger.RecordJoin(mc.Chat.ID, member.ID, eventTime)
		h.registerChat(ctx, &mc.Chat)
		entry.WithField("joined_at", eventTime).Debug("tracked join")
		return nil
	}

	_, wasIn := leftOldStatuses[oldStatus]
	_, nowOut := leftNewStatuses[newStatus]
	if wasIn && nowOut {
		return h.handleLeave(ctx, mc, member, eventTime)
	}

	return nil
}

func (h *Membership) handleLeave(ctx context.Context, mc *api.ChatMemberUpdated, member *api.User, eventTime time.Time) error {
	entry := h.getLogEntry().WithFields(log.Fields{
		"chat_id": mc.Chat.ID,
		"user_id": member.ID,
	})

	ev := moderation.LeaveEvent{
		ChatID:   mc.Chat.ID,
		UserID:   member.ID,
		Username: bot.GetUN(member),
		At:       eventTime,
	}
	decision := h.engine.Evaluate(ev)
	entry.WithFields(log.Fields{
		"ban":    decision.Ban,
		"reason": decision.Reason,
	}).Info("leave evaluated")

	if !decision.Ban {
		return nil
	}

	if err := h.banService.ExecuteBan(ctx, ev, decision); err != nil {
		if errors.Is(err, errs.ErrNoPrivileges) {
			entry.Warn("cant ban quick leaver without admin rights")
			return nil
		}
		return errors.WithMessage(err, "cant execute ban")
	}
	return nil
}

func (h *Membership) registerChat(ctx context.Context, chat *api.Chat) {
	if err := h.store.UpsertKnownChat(ctx, &db.KnownChat{
		ID:           chat.ID,
		Title:        chat.Title,
		Type:         chat.Type,
		RegisteredAt: time.Now(),
	}); err != nil {
		h.getLogEntry().WithFields(log.Fields{
			"chat_id": chat.ID,
			"error":   err.Error(),
		}).Error("failed to register known chat")
	}
}

func (h *Membership) getLogEntry() *log.Entry {
	return log.WithField("context", "membership")
}
