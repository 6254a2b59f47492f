package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"moderator/internal/auth"
	"moderator/internal/bot"
	"moderator/internal/chats"
	"moderator/internal/config"
	"moderator/internal/logger"
	"moderator/internal/moderation"
	"moderator/internal/panel"
	"moderator/internal/recent"
	"moderator/internal/storage"
	"moderator/internal/storage/ch"
	"moderator/internal/storage/pg"
	"moderator/internal/storage/stubs"
	"moderator/internal/telegram"
)

const shutdownTimeout = 5 * time.Second

// App represents the application
type App struct {
	config *config.Config
	logger *zap.Logger
	db     storage.Storage
	client *telegram.Client
	chats  *chats.Service
	bot    *bot.Bot
	server *http.Server
}

// New creates and initializes a new application instance
func New() (*App, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load configuration from environment variables
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	zapLogger, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	app := &App{config: cfg, logger: zapLogger}

	app.logger.Info("Starting moderation bot...")

	// Initialize database
	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	// Initialize bot
	if err := app.initBot(); err != nil {
		app.db.Close()
		return nil, err
	}

	return app, nil
}

// initDatabase opens the configured storage backend
func (a *App) initDatabase() error {
	ctx := context.Background()

	var db storage.Storage
	switch {
	case a.config.UseMockDB:
		a.logger.Info("Using mock database")
		db = stubs.NewMockDB()
	case a.config.StorageDriver == config.DriverPostgres:
		a.logger.Info("Connecting to PostgreSQL")
		postgresDB, err := pg.NewPostgresDB(ctx, a.config.PostgresDSN, a.config.AutoMigrate)
		if err != nil {
			return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		db = postgresDB
	default:
		a.logger.Info("Connecting to ClickHouse",
			zap.String("host", a.config.ClickHouseHost),
			zap.Int("port", a.config.ClickHousePort),
			zap.String("database", a.config.ClickHouseDatabase),
			zap.String("user", a.config.ClickHouseUser),
			zap.Bool("tls", a.config.ClickHouseUseTLS),
		)
		clickhouseDB, err := ch.NewClickHouseDB(ch.Options{
			Host:        a.config.ClickHouseHost,
			Port:        a.config.ClickHousePort,
			Database:    a.config.ClickHouseDatabase,
			User:        a.config.ClickHouseUser,
			Password:    a.config.ClickHousePassword,
			UseTLS:      a.config.ClickHouseUseTLS,
			AutoMigrate: a.config.AutoMigrate,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		db = clickhouseDB
	}

	// Initialize database schema
	if err := db.Initialize(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.logger.Info("Database initialized successfully", zap.Bool("auto_migrate", a.config.AutoMigrate))

	a.db = db
	return nil
}

// initBot wires the transport, the domain services and the HTTP surface
func (a *App) initBot() error {
	client, err := telegram.NewClient(a.config.TelegramToken, a.config.TelegramTimeout, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	a.client = client

	a.chats = chats.NewService(a.db, recent.New(a.config.RecentCapacity), a.logger)
	checker := auth.NewAdminChecker(client, a.config.TelegramTimeout, a.logger)
	executor := moderation.NewExecutor(a.chats, checker, client, a.db, a.config.MuteDuration, a.logger)
	assembler := panel.NewAssembler(a.chats, client, a.db, a.config.PanelProfilePhotos, a.logger)

	a.bot = bot.NewBot(client, a.chats, executor, checker, bot.Options{
		WebAppURL: a.config.WebAppURL,
		OwnerID:   a.config.OwnerID,
	}, a.logger)

	httpConfig := bot.HTTPConfig{
		AllowedOrigin: bot.OriginOf(a.config.WebAppURL),
		RateLimit:     a.config.PanelRateLimit,
	}
	if a.config.WebhookMode {
		httpConfig.WebhookPath = a.config.WebhookPath
		httpConfig.WebhookSecret = a.config.WebhookSecret
	}
	authenticator := auth.NewAuthenticator(a.config.TelegramToken, a.config.InitDataMaxAge)
	httpServer := bot.NewHTTPServer(a.bot, authenticator, assembler, httpConfig, a.logger)

	a.server = &http.Server{
		Addr:         ":" + a.config.Port,
		Handler:      httpServer.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	a.registerMetrics()

	a.logger.Info("Bot created successfully",
		zap.String("bot_username", client.Username()),
		zap.Bool("webhook_mode", a.config.WebhookMode),
		zap.Bool("owner_notifications", a.config.OwnerID != 0),
	)
	return nil
}

func (a *App) registerMetrics() {
	cached := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "moderator_recent_cache_chats",
		Help: "Number of chats with recently seen members in memory.",
	}, func() float64 {
		return float64(a.chats.CachedChats())
	})
	if err := prometheus.Register(cached); err != nil {
		a.logger.Warn("Failed to register cache metric", zap.Error(err))
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run() error {
	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("Starting HTTP server", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		// Start bot in appropriate mode
		if a.config.WebhookMode {
			if err := a.bot.StartWebhook(ctx, a.client, a.config.WebhookEndpoint(), a.config.WebhookSecret); err != nil {
				return fmt.Errorf("failed to setup webhook: %w", err)
			}
			<-ctx.Done()
			return nil
		}
		return a.bot.Start(ctx, a.client)
	})

	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
		return nil
	})

	runErr := g.Wait()
	if err := a.Shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Shutdown waits for in-flight updates and releases storage
func (a *App) Shutdown() error {
	a.bot.Wait()

	// Close database
	if err := a.db.Close(); err != nil {
		a.logger.Error("Error closing database", zap.Error(err))
		return err
	}

	a.logger.Info("Shutdown complete")
	_ = a.logger.Sync()
	return nil
}
