// Package main provides the main entry point for the ChatCepat dispatch system
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/muhammad-febriansyah/chatcepat-sub007/app/handlers"
	"github.com/muhammad-febriansyah/chatcepat-sub007/app/middleware"
	"github.com/muhammad-febriansyah/chatcepat-sub007/app/progress"
	"github.com/muhammad-febriansyah/chatcepat-sub007/app/router"
	"github.com/muhammad-febriansyah/chatcepat-sub007/app/scheduler"
	"github.com/muhammad-febriansyah/chatcepat-sub007/app/services"
	businessflow "github.com/muhammad-febriansyah/chatcepat-sub007/business_flow"
	"github.com/muhammad-febriansyah/chatcepat-sub007/config"
	"github.com/muhammad-febriansyah/chatcepat-sub007/models"
	"github.com/muhammad-febriansyah/chatcepat-sub007/repository"
	"github.com/muhammad-febriansyah/chatcepat-sub007/utils"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting ChatCepat dispatch application...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.Campaign{},
		&models.ChatMessage{},
		&models.Contact{},
		&models.AutoReplyRule{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Cache client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeLogger builds the shared application logger, writing to stdout
// and a persistent file under the configured log directory when available
func initializeLogger(cfg config.LoggingConfig) *log.Logger {
	var writers []io.Writer
	if cfg.Stdout {
		writers = append(writers, os.Stdout)
	}
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err == nil {
			logPath := filepath.Join(cfg.Dir, "app.log")
			if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
				writers = append(writers, f)
			}
		}
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}
	return log.New(io.MultiWriter(writers...), "app ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc == nil {
		return nil, fmt.Errorf("redis is required for send-path rate limiting")
	}

	cancel := startCacheHealthMonitor(context.Background(), rc, cfg.Cache.CleanupInterval)
	stopFuncs = append(stopFuncs, cancel)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	messageRepo := repository.NewChatMessageRepository(db)
	contactRepo := repository.NewContactRepository(db)
	ruleRepo := repository.NewAutoReplyRuleRepository(db)

	// Provider transports shared by the dispatcher and auto-reply
	transports := services.NewTransportRegistry(utils.DefaultProviderTimeout)

	// Send-path rate limiter backed by redis
	rateLimiter := businessflow.NewRedisRateLimiter(rc, &cfg.Cache, &cfg.RateLimit)

	appLogger := initializeLogger(cfg.Logging)

	// Realtime progress fan-out
	hub := progress.NewHub(appLogger)
	if cfg.Progress.Enabled {
		wsServer := progress.NewWSServer(hub, campaignRepo, appLogger)
		stopWS := wsServer.Start(context.Background(), progress.Addr(cfg.Progress.Host, cfg.Progress.Port))
		stopFuncs = append(stopFuncs, stopWS)
	}

	// Campaign dispatcher and scanner
	dispatcher := scheduler.NewDispatcher(
		campaignRepo,
		sessionRepo,
		userRepo,
		messageRepo,
		transports,
		rateLimiter,
		hub,
		cfg.Dispatch,
		nil, // logger comes from the scanner
		middleware.RecordBroadcastSend,
		middleware.RecordCampaignFinished,
	)
	scanner := scheduler.NewCampaignScanner(campaignRepo, dispatcher, cfg.Dispatch)
	if cfg.Dispatch.Enabled {
		stopScanner := scanner.Start(context.Background())
		stopFuncs = append(stopFuncs, stopScanner)
	}

	// Initialize flows
	autoReplyFlow := businessflow.NewAutoReplyFlow(ruleRepo, messageRepo, transports, appLogger)
	webhookFlow := businessflow.NewWebhookFlow(
		sessionRepo,
		messageRepo,
		contactRepo,
		autoReplyFlow,
		middleware.RecordWebhookEvent,
		appLogger,
	)
	campaignFlow := businessflow.NewCampaignFlow(
		campaignRepo,
		sessionRepo,
		userRepo,
		ruleRepo,
		contactRepo,
		dispatcher,
		db,
	)

	// Initialize handlers
	campaignHandler := handlers.NewCampaignHandler(campaignFlow)
	webhookHandler := handlers.NewWebhookHandler(webhookFlow, cfg.Webhook)

	// Initialize auth middleware
	authMiddleware := middleware.NewAuthMiddleware(userRepo)

	// Initialize router
	appRouter := router.NewFiberRouter(&cfg.Server, campaignHandler, webhookHandler, authMiddleware)

	application := &Application{
		router:    appRouter,
		config:    cfg,
		server:    appRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}
