package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/wardenbot/warden/internal/auth"
	"github.com/wardenbot/warden/internal/bot"
	"github.com/wardenbot/warden/internal/broadcast"
	"github.com/wardenbot/warden/internal/config"
	"github.com/wardenbot/warden/internal/db/sqlite"
	"github.com/wardenbot/warden/internal/handlers"
	"github.com/wardenbot/warden/internal/infra"
	"github.com/wardenbot/warden/internal/ledger"
	"github.com/wardenbot/warden/internal/lifecycle"
	"github.com/wardenbot/warden/internal/moderation"
	"github.com/wardenbot/warden/internal/observability"
)

const maxMainRecoveries = 3

func main() {
	cfg := config.Get()
	log.SetFormatter(&config.WdFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.Level(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra.GoRecoverable(maxMainRecoveries, "main", func() {
		if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Errorln("exiting")
			time.Sleep(1 * time.Second)
			os.Exit(1)
		}
		stop()
	})

	<-ctx.Done()
	log.Infoln("shut down cleanly")
}

func run(ctx context.Context, cfg config.Config) error {
	if err := observability.Init(ctx, cfg.MetricsAddr); err != nil {
		return errors.WithMessage(err, "cant initialize observability")
	}

	botAPI, err := api.NewBotAPI(cfg.TelegramAPIToken)
	if err != nil {
		return errors.WithMessage(err, "cant initialize bot api")
	}
	if log.Level(cfg.LogLevel) == log.TraceLevel {
		botAPI.Debug = true
	}
	defer botAPI.StopReceivingUpdates()

	dbClient, err := sqlite.NewSQLiteClient(ctx, infra.GetWorkDir(), "warden.db")
	if err != nil {
		return errors.WithMessage(err, "cant open database")
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.WithError(err).Warnln("cant close database")
		}
	}()

	joins := ledger.New()
	engine := moderation.NewEngine(joins, cfg.GraceWindow)
	banService := moderation.NewBanService(botAPI, dbClient, cfg.DefaultLanguage)

	broadcasts := broadcast.NewService(func(ctx context.Context, chatID int64, payload string) error {
		return bot.SendChatMessage(ctx, botAPI, chatID, payload)
	}, cfg.Broadcast.SendInterval)
	broadcasts.OnFinish(func(status broadcast.JobStatus) {
		report := fmt.Sprintf(
			"Broadcast %s %s: %d sent, %d failed of %d",
			status.ID, status.State, status.Sent, status.Failed, status.Total,
		)
		if err := bot.SendChatMessage(ctx, botAPI, status.Initiator, report); err != nil {
			log.WithError(err).Warnln("cant report broadcast result to initiator")
		}
		if err := dbClient.SetKV(ctx, handlers.KVLastBroadcast, report); err != nil {
			log.WithError(err).Warnln("cant persist broadcast result")
		}
	})

	runtime := lifecycle.NewRuntime(broadcasts)
	if err := runtime.Start(ctx); err != nil {
		return errors.WithMessage(err, "cant start components")
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := runtime.Stop(stopCtx); err != nil {
			log.WithError(err).Warnln("cant stop components")
		}
	}()

	authorizer := auth.NewAuthorizer(cfg.AdminIDs)
	bot.RegisterUpdateHandler("admin",
		handlers.NewAdmin(botAPI, authorizer, broadcasts, dbClient, joins, cfg.DefaultLanguage))
	bot.RegisterUpdateHandler("membership",
		handlers.NewMembership(joins, engine, banService, dbClient))

	updateProcessor := bot.NewUpdateProcessor()
	updates := bot.GetUpdatesChan(botAPI, 60)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Single consumer loop: updates for the same (chat, user) pair are
		// handled strictly in arrival order.
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case u, ok := <-updates:
				if !ok {
					return errors.New("updates channel closed")
				}
				if err := updateProcessor.Process(gctx, &u); err != nil {
					log.WithError(err).Errorln("cant process update")
				}
			}
		}
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return gctx.Err()
		case <-infra.MonitorExecutable(gctx):
			return errors.New("executable file was modified")
		}
	})
	return g.Wait()
}
