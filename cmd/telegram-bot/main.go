package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meal-planner/internal/app"
	"meal-planner/internal/config"
	"meal-planner/internal/telegram"
)

func main() {
	// 1. Load Configuration
	if err := config.LoadDotEnv(); err != nil {
		log.Printf("Warning: %v", err)
	}
	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.RequireTelegram(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	// 2. Wire the API session, storage and auto-fill. The session is shared
	// with the CLI through the token file.
	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}
	defer a.Close()

	pending := telegram.NewPendingRepository(a.DB().SQL)

	// 3. Initialize Telegram Bot
	bot, err := telegram.NewBot(cfg, a, pending)
	if err != nil {
		log.Fatalf("Failed to initialize Telegram Bot: %v", err)
	}

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go cleanupPending(janitorCtx, pending, cfg.TelegramPendingTTL)

	// 4. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           bot.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Telegram Bot Server listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}

func cleanupPending(ctx context.Context, pending *telegram.PendingRepository, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := pending.CleanupExpired(ctx)
			if err != nil {
				log.Printf("Error cleaning up previews: %v", err)
			} else if n > 0 {
				log.Printf("Removed %d expired previews", n)
			}
		}
	}
}
