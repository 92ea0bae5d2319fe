package bot

import (
	"context"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/wardenbot/warden/internal/config"
	"github.com/wardenbot/warden/internal/observability"
)

const (
	UpdateTimeout = 5 * time.Minute
)

// Handler defines the interface for all update handlers in the system
type Handler interface {
	Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (proceed bool, err error)
}

type UpdateProcessor struct {
	updateHandlers []Handler
}

var registeredHandlers = make(map[string]Handler)

func RegisterUpdateHandler(title string, handler Handler) {
	registeredHandlers[title] = handler
}

func NewUpdateProcessor() *UpdateProcessor {
	enabledHandlers := make([]Handler, 0)
	for _, handlerName := range config.Get().EnabledHandlers {
		if _, ok := registeredHandlers[handlerName]; !ok || registeredHandlers[handlerName] == nil {
			log.Warnf("no registered handler: %s", handlerName)
			continue
		}
		enabledHandlers = append(enabledHandlers, registeredHandlers[handlerName])
	}

	return &UpdateProcessor{
		updateHandlers: enabledHandlers,
	}
}

// Process routes one update through the enabled handlers in registration
// order. Updates arrive from a single channel, so events for the same
// (chat, user) pair keep their arrival order.
func (up *UpdateProcessor) Process(ctx context.Context, u *api.Update) error {
	if u == nil {
		return errors.New("update is nil")
	}

	observe := observability.StartUpdateProcessing()

	select {
	case <-ctx.Done():
		observe("cancelled")
		return ctx.Err()
	default:
		var updateTime time.Time
		switch {
		case u.Message != nil:
			updateTime = time.Unix(int64(u.Message.Date), 0)
		case u.ChatMember != nil:
			updateTime = time.Unix(int64(u.ChatMember.Date), 0)
		case u.MyChatMember != nil:
			updateTime = time.Unix(int64(u.MyChatMember.Date), 0)
		default:
			updateTime = time.Now()
		}

		if time.Since(updateTime) > UpdateTimeout {
			log.WithFields(log.Fields{
				"update_time": updateTime,
				"age":         time.Since(updateTime),
			}).Debug("Skipping outdated update")
			observe("outdated")
			return nil
		}

		chat := u.FromChat()
		if chat == nil {
			switch {
			case u.MyChatMember != nil:
				chat = &u.MyChatMember.Chat
			case u.ChatMember != nil:
				chat = &u.ChatMember.Chat
			}
		}

		user := u.SentFrom()
		if user == nil {
			switch {
			case u.MyChatMember != nil:
				user = &u.MyChatMember.From
			case u.ChatMember != nil:
				user = &u.ChatMember.From
			}
		}

		for _, handler := range up.updateHandlers {
			if handler == nil {
				continue
			}
			select {
			case <-ctx.Done():
				observe("cancelled")
				return ctx.Err()
			default:
				proceed, err := handler.Handle(ctx, u, chat, user)
				if err != nil {
					observe("error")
					return errors.WithMessage(err, "handling error")
				}
				if !proceed {
					log.Trace("not proceeding")
					observe("handled")
					return nil
				}
			}
		}
		observe("handled")
		return nil
	}
}

// GetUpdatesChan starts long polling for the update types warden consumes.
func GetUpdatesChan(bot *api.BotAPI, timeout int) api.UpdatesChannel {
	updateConfig := api.NewUpdate(0)
	updateConfig.Timeout = timeout
	updateConfig.AllowedUpdates = []string{"message", "chat_member", "my_chat_member"}
	return bot.GetUpdatesChan(updateConfig)
}

func SendChatMessage(ctx context.Context, bot *api.BotAPI, chatID int64, text string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		if _, err := bot.Send(api.NewMessage(chatID, text)); err != nil {
			return err
		}
		return nil
	}
}

// GetUN returns the best human-readable name for a user.
func GetUN(user *api.User) string {
	if user == nil {
		return ""
	}
	if user.UserName != "" {
		return user.UserName
	}
	return user.FirstName
}
