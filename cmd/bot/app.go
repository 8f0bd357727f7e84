package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"clan_helper_bot/internal/app"
	"clan_helper_bot/internal/domain/schedule"
	"clan_helper_bot/internal/infra/config"
	idb "clan_helper_bot/internal/infra/database"
	"clan_helper_bot/internal/infra/logger"
	"clan_helper_bot/internal/infra/scheduler"
	"clan_helper_bot/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// allowedUpdates must list chat_member and poll_answer explicitly; Telegram omits them by default.
var allowedUpdates = []string{"message", "edited_message", "callback_query", "poll_answer", "chat_member", "my_chat_member"}

type application struct {
	cfg *config.AppConfig
	db  *sql.DB
	bot *telebot.Bot

	adminService        *app.AdminService
	memberService       *app.MemberService
	registrationService *app.RegistrationService
	collectionService   *app.CollectionServiceImpl
	calloutService      *app.CalloutServiceImpl
	pollService         *app.PollServiceImpl
	warnService         *app.WarnServiceImpl
	scheduler           *scheduler.Scheduler
}

// bootstrap loads configuration, connects to Postgres and Telegram and builds
// every service. The poller is only attached when the bot serves updates.
func bootstrap(ctx context.Context, withPoller bool) (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("could not load application configuration: %w", err)
	}
	logger.Init(cfg)
	if err := schedule.SetFallbackTimezone(cfg.DefaultTimezone); err != nil {
		return nil, err
	}

	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	if err := idb.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	logger.Log.Info("Database connection established, schema is up to date")

	groupRepo := idb.NewPostgresGroupRepository(db)
	collectionRepo := idb.NewPostgresCollectionRepository(db)
	attendanceRepo := idb.NewPostgresAttendanceRepository(db)
	memberRepo := idb.NewPostgresMemberRepository(db)
	warnRepo := idb.NewPostgresWarnRepository(db)
	botLogRepo := idb.NewPostgresBotLogRepository(db)
	calloutRepo := idb.NewPostgresCalloutRepository(db)

	base := logrus.NewEntry(logger.Log)

	bot, err := telebot.NewBot(telebot.Settings{
		Token:  cfg.TelegramToken,
		Client: &http.Client{Timeout: cfg.TelegramTimeout},
		OnError: func(err error, c telebot.Context) {
			entry := logger.Log.WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithFields(logrus.Fields{"sender_id": c.Sender().ID, "chat_id": c.Chat().ID})
			}
			entry.Error("Telegram handler failed")
		},
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create Telegram bot: %w", err)
	}
	logger.Log.WithField("username", bot.Me.Username).Info("Telegram bot authorized")
	adapter := telegram.NewTelebotAdapter(bot, cfg.TelegramRate)

	now := time.Now
	memberService := app.NewMemberService(memberRepo, base)
	registrationService := app.NewRegistrationService(memberRepo, adapter, base)
	pollService := app.NewPollService(attendanceRepo, memberRepo, adapter, base)
	leaderboardService := app.NewLeaderboardService(attendanceRepo, memberRepo, adapter, base)
	reminderService := app.NewReminderService(attendanceRepo, memberRepo, botLogRepo, adapter, base)
	warnService := app.NewWarnService(attendanceRepo, memberRepo, warnRepo, botLogRepo, adapter, base)
	dailyCycle := app.NewDailyCycleService(groupRepo, botLogRepo, pollService, leaderboardService, reminderService, warnService, base, now)
	calloutService := app.NewCalloutService(calloutRepo, memberRepo, botLogRepo, adapter, base)
	collectionService := app.NewCollectionService(groupRepo, collectionRepo, attendanceRepo, botLogRepo, calloutService, adapter, base, now)
	retentionService := app.NewRetentionService(attendanceRepo, botLogRepo, calloutRepo, base, now)
	adminService := app.NewAdminService(groupRepo, pollService, leaderboardService, adapter, base, now)

	if withPoller {
		filter := telegram.NewUpdateFilter(cfg.AllowedGroupIDs, adminService, base)
		bot.Poller = filter.Wrap(newPoller(cfg))
	}

	sched := scheduler.New(collectionService, dailyCycle, retentionService, base, scheduler.Options{
		TickSpec:    cfg.CronSpecTick,
		CleanupSpec: cfg.CronSpecCleanup,
		TickTimeout: cfg.TickTimeout,
		Retention:   cfg.PollRetention,
	})

	return &application{
		cfg:                 cfg,
		db:                  db,
		bot:                 bot,
		adminService:        adminService,
		memberService:       memberService,
		registrationService: registrationService,
		collectionService:   collectionService,
		calloutService:      calloutService,
		pollService:         pollService,
		warnService:         warnService,
		scheduler:           sched,
	}, nil
}

func (a *application) close() {
	if err := a.db.Close(); err != nil {
		logger.Log.WithError(err).Warn("Failed to close database")
	}
}

func newPoller(cfg *config.AppConfig) telebot.Poller {
	if cfg.WebhookURL != "" {
		logger.Log.WithFields(logrus.Fields{"url": cfg.WebhookURL, "listen": cfg.WebhookListen}).Info("Using webhook")
		return &telebot.Webhook{
			Listen:         cfg.WebhookListen,
			AllowedUpdates: allowedUpdates,
			Endpoint:       &telebot.WebhookEndpoint{PublicURL: cfg.WebhookURL},
		}
	}
	return &telebot.LongPoller{Timeout: 10 * time.Second, AllowedUpdates: allowedUpdates}
}
