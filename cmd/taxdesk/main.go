package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rcalloway/taxdesk/internal/billing"
	"github.com/rcalloway/taxdesk/internal/database"
	"github.com/rcalloway/taxdesk/internal/docstore"
	"github.com/rcalloway/taxdesk/internal/email"
	"github.com/rcalloway/taxdesk/internal/logging"
	"github.com/rcalloway/taxdesk/internal/server"
	"github.com/rcalloway/taxdesk/internal/sms"
)

func main() {
	port := os.Getenv("TAXDESK_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("TAXDESK_DB_PATH")
	if dbPath == "" {
		dbPath = "taxdesk.db"
	}

	baseURL := os.Getenv("TAXDESK_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:" + port
	}

	logger := logging.Setup(os.Getenv("TAXDESK_LOG_LEVEL"))

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	emailClient := email.NewClient(
		os.Getenv("TAXDESK_POSTMARK_TOKEN"),
		os.Getenv("TAXDESK_FROM_EMAIL"),
		baseURL,
	)
	smsClient := sms.NewClient(
		os.Getenv("TAXDESK_TWILIO_SID"),
		os.Getenv("TAXDESK_TWILIO_TOKEN"),
		os.Getenv("TAXDESK_TWILIO_FROM"),
	)

	trialDays := int64(14)
	if v := os.Getenv("TAXDESK_TRIAL_DAYS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			trialDays = n
		}
	}
	billingCfg := billing.Config{
		SecretKey:     os.Getenv("TAXDESK_STRIPE_SECRET_KEY"),
		WebhookSecret: os.Getenv("TAXDESK_STRIPE_WEBHOOK_SECRET"),
		PriceID:       os.Getenv("TAXDESK_STRIPE_PRICE_ID"),
		TrialDays:     trialDays,
	}

	storageCfg := docstore.Config{
		Endpoint:  os.Getenv("TAXDESK_S3_ENDPOINT"),
		Bucket:    os.Getenv("TAXDESK_S3_BUCKET"),
		Region:    os.Getenv("TAXDESK_S3_REGION"),
		AccessKey: os.Getenv("TAXDESK_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("TAXDESK_S3_SECRET_KEY"),
	}

	vapid := server.VAPIDConfig{
		PublicKey:  os.Getenv("TAXDESK_VAPID_PUBLIC_KEY"),
		PrivateKey: os.Getenv("TAXDESK_VAPID_PRIVATE_KEY"),
		Subscriber: os.Getenv("TAXDESK_VAPID_SUBSCRIBER"),
	}

	srv := server.New(db, emailClient, smsClient, billingCfg, storageCfg, vapid, baseURL, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv.ReminderScheduler().Start(ctx)
	defer srv.ReminderScheduler().Stop()

	// Hourly sweep for expired sessions, device trust, invites, and stale
	// rate limiter buckets.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Error("session cleanup", "error", err)
				} else if n > 0 {
					logger.Info("expired sessions removed", "count", n)
				}
				if _, err := srv.DeviceTrustStore().DeleteExpired(); err != nil {
					logger.Error("device trust cleanup", "error", err)
				}
				if _, err := srv.InviteStore().DeleteExpired(); err != nil {
					logger.Error("invite cleanup", "error", err)
				}
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("TaxDesk running at %s\n", baseURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
