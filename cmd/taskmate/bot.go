package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"taskmate/internal/bot"
	"taskmate/internal/config"
	"taskmate/internal/notify"
	"taskmate/internal/repository"
)

func botCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot with periodic reports and reminders",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if err := cfg.RequireTelegram(); err != nil {
				return err
			}
			return runBot(cmd.Context(), cfg)
		},
	}
}

func runBot(parent context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := repository.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer backend.Close()

	scheduler := notify.NewScheduler(cfg.Location)
	telegramBot, err := bot.New(cfg.TelegramToken, backend.Users, backend.Tasks, scheduler, &cfg)
	if err != nil {
		return fmt.Errorf("bot: %w", err)
	}

	if cfg.ReportInterval > 0 {
		if _, err := scheduler.ScheduleInterval(cfg.ReportInterval, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := telegramBot.SendDailyReports(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("report: %v", err)
			}
		}); err != nil {
			return fmt.Errorf("schedule reports: %w", err)
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	log.Println("Taskmate bot started.")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bot stopped with error: %w", err)
	}
	log.Println("Shutdown complete.")
	return nil
}
