// Command clanbot runs the clan helper Telegram bot.
//
// Usage:
//
//	clanbot            # same as "clanbot serve"
//	clanbot serve
//	clanbot tick       # run one scheduler tick and exit
//	clanbot cleanup    # delete polls, markers and rosters older than POLL_RETENTION_DAYS
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clan_helper_bot/internal/infra/httpapi"
	"clan_helper_bot/internal/infra/logger"
	"clan_helper_bot/internal/infra/telegram"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "clanbot",
		Short:         "Clan helper Telegram bot",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	root.AddCommand(serveCmd(), tickCmd(), cleanupCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "clanbot: %v\n", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot, the scheduler and the optional HTTP status server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func tickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run one scheduler tick immediately and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := bootstrap(ctx, false)
			if err != nil {
				return err
			}
			defer a.close()

			tickCtx, tickCancel := context.WithTimeout(ctx, a.cfg.TickTimeout)
			defer tickCancel()
			if err := a.scheduler.RunTick(tickCtx); err != nil {
				return fmt.Errorf("tick finished with errors: %w", err)
			}
			st := a.scheduler.Status()
			logger.Log.WithField("duration", st.LastTickDuration).Info("Tick completed")
			return nil
		},
	}
}

func cleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete polls, job markers and rosters older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := bootstrap(ctx, false)
			if err != nil {
				return err
			}
			defer a.close()
			return a.scheduler.RunCleanup(ctx)
		},
	}
}

func runServe() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := bootstrap(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	telegram.RegisterAdminHandlers(ctx, a.bot, a.adminService, logger.Component("admin_handlers"))
	telegram.RegisterBotCommands(ctx, a.bot, a.warnService, a.memberService, logger.Component("bot_commands"))
	telegram.RegisterCollectionHandlers(ctx, a.bot, a.collectionService, a.pollService, logger.Component("collection_handlers"))
	telegram.RegisterCalloutHandlers(ctx, a.bot, a.calloutService, logger.Component("callout_handlers"))
	telegram.RegisterMemberHandlers(ctx, a.bot, a.memberService, a.registrationService, logger.Component("member_handlers"))
	logger.Log.Info("Telegram handlers registered")

	if err := a.scheduler.Start(); err != nil {
		return fmt.Errorf("could not start scheduler: %w", err)
	}

	var statusServer *httpapi.Server
	if a.cfg.HTTPAddr != "" {
		router := httpapi.NewRouter(a.db, a.scheduler, logger.Component("httpapi"))
		statusServer = httpapi.NewServer(a.cfg.HTTPAddr, router, logger.Component("httpapi"))
		statusServer.Start()
	}

	// Start bot in a goroutine so it doesn't block graceful shutdown handling
	go a.bot.Start()
	logger.Log.Info("Bot started")

	<-ctx.Done()
	logger.Log.Info("Shutting down application...")

	a.bot.Stop()
	a.scheduler.Stop()
	if statusServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := statusServer.Shutdown(shutdownCtx); err != nil {
			logger.Log.WithError(err).Error("HTTP server shutdown error")
		}
	}
	logger.Log.Info("Application shut down gracefully")
	return nil
}
