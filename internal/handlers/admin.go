package handlers

import (
	"context"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamwavecut/tool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/wardenbot/warden/internal/auth"
	"github.com/wardenbot/warden/internal/broadcast"
	errs "github.com/wardenbot/warden/internal/errors"
	"github.com/wardenbot/warden/internal/i18n"
)

// KVLastBroadcast is the kv_store key holding the final summary of the most
// recent broadcast; it survives restarts, unlike the controller's snapshot.
const KVLastBroadcast = "last_broadcast"

const (
	broadcastStartedTemplate = `📣 {{ .header }}

• {{ .job_label }}: {{ .job_id }}
• {{ .total_label }}: {{ .total }}`

	statsTemplate = `📊 {{ .header }}

• {{ .tracked_label }}: {{ .tracked }}
• {{ .chats_label }}: {{ .chats }}
• {{ .bans_label }}: {{ .bans }}
• {{ .broadcast_label }}: {{ .broadcast }}`
)

type broadcaster interface {
	StartJob(payload string, recipients []int64, initiator int64) (string, error)
	CancelCurrent() (string, error)
	Current() (broadcast.JobStatus, bool)
}

type adminStore interface {
	GetKnownChatIDs(ctx context.Context) ([]int64, error)
	CountKnownChats(ctx context.Context) (int64, error)
	CountBanRecords(ctx context.Context) (int64, error)
	GetKV(ctx context.Context, key string) (string, error)
}

type trackedReporter interface {
	Len() int
}

type replySender interface {
	Send(c api.Chattable) (api.Message, error)
}

// Admin serves operator commands. Privileged commands are gated on the
// configured admin list; everyone else gets a refusal and no state changes.
type Admin struct {
	bot        replySender
	authorizer *auth.Authorizer
	broadcasts broadcaster
	store      adminStore
	tracked    trackedReporter
	language   string
}

func NewAdmin(bot replySender, authorizer *auth.Authorizer, broadcasts broadcaster, store adminStore, tracked trackedReporter, language string) *Admin {
	return &Admin{
		bot:        bot,
		authorizer: authorizer,
		broadcasts: broadcasts,
		store:      store,
		tracked:    tracked,
		language:   language,
	}
}

func (a *Admin) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (proceed bool, err error) {
	if chat == nil || user == nil {
		return true, nil
	}

	switch {
	case
		u.Message == nil,
		user.IsBot,
		!u.Message.IsCommand():
		return true, nil
	}
	m := u.Message
	entry := a.getLogEntry().WithFields(log.Fields{
		"command": m.Command(),
		"user_id": user.ID,
	})

	switch m.Command() {
	case "start", "help":
		a.reply(chat.ID, i18n.Get("I ban members who leave right after joining and deliver admin broadcasts", a.language))
		return false, nil

	case "broadcast", "cancel", "stats":
		if !a.authorizer.IsAuthorized(user.ID) {
			entry.Warn("unauthorized command attempt")
			a.reply(chat.ID, i18n.Get("You are not authorized to use this command", a.language))
			return false, nil
		}
	default:
		entry.Trace("unknown command")
		return true, nil
	}

	switch m.Command() {
	case "broadcast":
		return false, a.handleBroadcast(ctx, m, user)
	case "cancel":
		return false, a.handleCancel(m)
	case "stats":
		return false, a.handleStats(ctx, m)
	}
	return true, nil
}

func (a *Admin) handleBroadcast(ctx context.Context, m *api.Message, user *api.User) error {
	payload := strings.TrimSpace(m.CommandArguments())
	if payload == "" {
		a.reply(m.Chat.ID, i18n.Get("Usage", a.language)+": /broadcast <message>")
		return nil
	}

	recipients, err := a.store.GetKnownChatIDs(ctx)
	if err != nil {
		return errors.WithMessage(err, "cant list known chats")
	}
	if len(recipients) == 0 {
		a.reply(m.Chat.ID, i18n.Get("No chats to broadcast to yet", a.language))
		return nil
	}

	jobID, err := a.broadcasts.StartJob(payload, recipients, user.ID)
	switch {
	case errors.Is(err, errs.ErrAlreadyRunning):
		a.reply(m.Chat.ID, i18n.Get("A broadcast is already in progress, cancel it first", a.language))
		return nil
	case err != nil:
		return errors.WithMessage(err, "cant start broadcast")
	}

	a.getLogEntry().WithFields(log.Fields{
		"job":   jobID,
		"total": len(recipients),
	}).Info("broadcast requested")

	a.reply(m.Chat.ID, tool.ExecTemplate(broadcastStartedTemplate, map[string]any{
		"header":      i18n.Get("Broadcast started", a.language),
		"job_label":   i18n.Get("Job", a.language),
		"job_id":      jobID,
		"total_label": i18n.Get("Recipients", a.language),
		"total":       len(recipients),
	}))
	return nil
}

func (a *Admin) handleCancel(m *api.Message) error {
	jobID, err := a.broadcasts.CancelCurrent()
	switch {
	case errors.Is(err, errs.ErrNotRunning):
		a.reply(m.Chat.ID, i18n.Get("No broadcast is running", a.language))
		return nil
	case err != nil:
		return errors.WithMessage(err, "cant cancel broadcast")
	}

	a.reply(m.Chat.ID, i18n.Get("Cancellation requested, in-flight delivery will finish first", a.language)+" ("+jobID+")")
	return nil
}

func (a *Admin) handleStats(ctx context.Context, m *api.Message) error {
	chats, err := a.store.CountKnownChats(ctx)
	if err != nil {
		return errors.WithMessage(err, "cant count known chats")
	}
	bans, err := a.store.CountBanRecords(ctx)
	if err != nil {
		return errors.WithMessage(err, "cant count ban records")
	}

	broadcastLine := i18n.Get("idle", a.language)
	if status, ok := a.broadcasts.Current(); ok {
		broadcastLine = tool.ExecTemplate("{{ .state }} {{ .sent }}/{{ .total }} ({{ .failed }} failed)", map[string]any{
			"state":  string(status.State),
			"sent":   status.Sent,
			"total":  status.Total,
			"failed": status.Failed,
		})
	} else if last, err := a.store.GetKV(ctx, KVLastBroadcast); err == nil && last != "" {
		// Controller memory is gone after a restart; the durable summary is
		// the next best answer.
		broadcastLine = last
	}

	a.reply(m.Chat.ID, tool.ExecTemplate(statsTemplate, map[string]any{
		"header":          i18n.Get("Warden stats", a.language),
		"tracked_label":   i18n.Get("Tracked joins", a.language),
		"tracked":         a.tracked.Len(),
		"chats_label":     i18n.Get("Known chats", a.language),
		"chats":           chats,
		"bans_label":      i18n.Get("Bans issued", a.language),
		"bans":            bans,
		"broadcast_label": i18n.Get("Broadcast", a.language),
		"broadcast":       broadcastLine,
	}))
	return nil
}

func (a *Admin) reply(chatID int64, text string) {
	msg := api.NewMessage(chatID, text)
	msg.DisableNotification = true
	if _, err := a.bot.Send(msg); err != nil {
		a.getLogEntry().WithField("error", err.Error()).Warn("failed to send reply")
	}
}

func (a *Admin) getLogEntry() *log.Entry {
	return log.WithField("context", "admin")
}
