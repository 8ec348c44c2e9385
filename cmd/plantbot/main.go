package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"plant-care-bot/internal/bot"
	"plant-care-bot/internal/catalog"
	"plant-care-bot/internal/config"
	"plant-care-bot/internal/notify"
	"plant-care-bot/internal/repository"
	"plant-care-bot/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	plantRepo := repository.NewPlantRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	scheduler := notify.NewScheduler(time.Local)
	reminderSvc := service.NewReminderService(taskRepo, plantRepo, userRepo, scheduler, cfg.ReminderTime)
	plantSvc := service.NewPlantService(plantRepo, taskRepo, reminderSvc, cfg.HorizonDays, cfg.ReminderTime)
	taskSvc := service.NewTaskService(taskRepo, plantRepo, reminderSvc, cfg.UpcomingWindow)
	catalogClient := catalog.NewClient(cfg.CatalogURL, cfg.CatalogKey)

	telegramBot, err := bot.New(cfg.TelegramToken, userRepo, plantSvc, taskSvc, reminderSvc, catalogClient)
	if err != nil {
		log.Fatalf("bot: %v", err)
	}
	scheduler.SetSender(telegramBot)

	// The scheduled alert set does not survive restarts; rebuild it from the
	// task store before taking traffic.
	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if _, err := reminderSvc.RescheduleAll(startCtx, time.Now()); err != nil {
		log.Printf("startup reconcile: %v", err)
	}
	cancel()

	if _, err := scheduler.Every(cfg.ReconcileInterval, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := reminderSvc.RescheduleAll(jobCtx, time.Now()); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("reconcile: %v", err)
		}
	}); err != nil {
		log.Fatalf("schedule reconcile: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	log.Println("Plant care bot started.")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bot stopped with error: %v", err)
	}
	log.Println("Shutdown complete.")
}
