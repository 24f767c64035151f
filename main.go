package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"propmarket/api"
	"propmarket/config"
	"propmarket/logging"
	"propmarket/models"
	"propmarket/scheduler"
	"propmarket/services"
	"propmarket/storage"
	"propmarket/workers"
)

var (
	rematchNow = flag.Bool("rematch", false, "Rematch every open request once and exit")
	tokenFor   = flag.String("token", "", "Print a signed token for this user id and exit")
	tokenRole  = flag.String("role", "user", "Role for -token (user or admin)")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	if *tokenFor != "" {
		if err := printToken(cfg, *tokenFor, *tokenRole); err != nil {
			log.Fatalf("Failed to sign token: %v", err)
		}
		return
	}

	log.Println("Starting propmarket...")
	if cfg.Auth.JWTSecret == "" {
		log.Fatalf("JWT_SECRET is required")
	}
	if cfg.Pricing.RequestUnlock <= 0 || len(cfg.Pricing.MatchUnlock) == 0 {
		log.Println("Warning: pricing is incomplete, unlocks without a configured fee will be refused")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	health := services.NewHealthcheckService(store)

	var locker storage.Locker = storage.NewLocalLocker()
	if cfg.RedisURL != "" {
		client, err := storage.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Printf("Warning: redis unavailable, using in-process locks: %v", err)
		} else {
			defer client.Close()
			locker = storage.NewRedisLocker(client, 30*time.Second)
			health.Register("redis", services.PingFunc(func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			}))
			log.Printf("Redis locks: %s", maskConnectionString(cfg.RedisURL))
		}
	}

	var uploader storage.Uploader = storage.NoOpUploader{}
	s3cfg := storage.S3Config(cfg.S3)
	if s3cfg.Enabled() {
		s3u, err := storage.NewS3Uploader(ctx, s3cfg)
		if err != nil {
			log.Printf("Warning: S3 unavailable, photos will not be stored: %v", err)
		} else {
			uploader = s3u
			log.Printf("Photo storage: s3://%s", s3cfg.Bucket)
		}
	} else {
		log.Println("Photo storage: disabled (S3 not configured)")
	}

	// Initialize services
	users := services.NewUserService(store)
	matchService := services.NewMatchService(store, locker, cfg.Matching.MinPercent)
	svc := api.Services{
		Store:     store,
		Users:     users,
		Listings:  services.NewListingService(store, users),
		Media:     services.NewMediaService(store, uploader, locker),
		Requests:  services.NewRequestService(store, users),
		Match:     matchService,
		Inquiries: services.NewInquiryService(store, locker, matchService),
		Payments:  services.NewPaymentService(store, locker, cfg.Pricing),
		Health:    health,
	}
	log.Println("Services initialized")

	storeLogger := workers.NewStoreLogger(store)
	matchWorker := workers.NewMatchWorker(matchService)
	matchWorker.SetLogger(storeLogger)

	// Handle one-shot commands
	if *rematchNow {
		log.Println("Running rematch...")
		processed, failed, err := matchWorker.RunOnce(ctx)
		if err != nil {
			log.Fatalf("Rematch failed: %v", err)
		}
		log.Printf("Rematch complete: %d processed, %d failed", processed, failed)
		return
	}

	go matchWorker.Run(ctx, 0)
	log.Println("Match worker started")

	healthWorker := workers.NewHealthWorker(health)
	healthWorker.SetLogger(storeLogger)
	go healthWorker.Run(ctx, time.Minute)
	log.Println("Health worker started")

	sched := scheduler.New(cfg.Scheduler, store, matchService)
	sched.SetWorkers(matchWorker, healthWorker)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewRouter(svc, cfg.Auth),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("HTTP listening on %s", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: HTTP shutdown: %v", err)
	}
	sched.Stop()
	cancel()
	log.Println("Goodbye!")
}

// openStore uses Postgres when DATABASE_URL is set and SQLite otherwise
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.DatabaseURL != "" {
		pg, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.DatabaseURL))
		return pg, nil
	}

	sqlite, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	log.Printf("SQLite database: %s", cfg.DBPath)
	return sqlite, nil
}

func printToken(cfg *config.Config, userID, role string) error {
	if cfg.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	id, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("bad user id: %w", err)
	}
	tok, err := api.SignToken([]byte(cfg.Auth.JWTSecret), id, models.UserRole(role), 24*time.Hour)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	// Simple mask - find :// and mask until @
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	// Find : after user
	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
