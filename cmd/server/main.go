package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gatekeeper.backend/internal/config"
	"gatekeeper.backend/internal/domain/repositories"
	"gatekeeper.backend/internal/infrastructure/blockchain"
	"gatekeeper.backend/internal/infrastructure/datasources/postgres"
	"gatekeeper.backend/internal/infrastructure/jobs"
	repoimpl "gatekeeper.backend/internal/infrastructure/repositories"
	"gatekeeper.backend/internal/infrastructure/telegram"
	"gatekeeper.backend/internal/interfaces/http/handlers"
	"gatekeeper.backend/internal/interfaces/http/middleware"
	"gatekeeper.backend/internal/usecases"
	"gatekeeper.backend/pkg/logger"
	"gatekeeper.backend/pkg/metrics"
	"gatekeeper.backend/pkg/redis"
	"gatekeeper.backend/pkg/walletauth"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ledgerClient interface {
	usecases.TokenLedger
	Close()
}

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	initRedis  = redis.Init
	openDB     = func(cfg config.DatabaseConfig) (*gorm.DB, error) {
		sqlDB, err := postgres.NewConnection(cfg)
		if err != nil {
			return nil, err
		}
		return postgres.NewGorm(sqlDB)
	}
	newLedger = func(ctx context.Context, rpcURL string) (ledgerClient, error) {
		client, err := blockchain.NewEVMClient(ctx, rpcURL)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	runServer = func(srv *http.Server) error { return srv.ListenAndServe() }
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	// Load .env file
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()

	initLog(cfg.Server.Env)
	defer logger.Sync()
	logger.Info(context.Background(), "Logger initialized", zap.String("env", cfg.Server.Env))

	if err := initRedis(cfg.Redis.URL, cfg.Redis.PASSWORD); err != nil {
		logger.Error(context.Background(), "Failed to initialize Redis", zap.Error(err))
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	logger.Info(context.Background(), "Redis initialized")

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The audit log is optional; gating keeps working without it.
	var eventRepo repositories.MembershipEventRepository
	db, err := openDB(cfg.Database)
	if err != nil {
		logger.Warn(ctx, "Database not available, membership audit log disabled", zap.Error(err))
	} else {
		events := repoimpl.NewMembershipEventRepository(db)
		if err := events.AutoMigrate(); err != nil {
			return fmt.Errorf("failed to migrate membership events: %w", err)
		}
		eventRepo = events
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		logger.Info(ctx, "Connected to PostgreSQL via GORM")
	}

	ledger, err := newLedger(ctx, cfg.Blockchain.RPCURL)
	if err != nil {
		return fmt.Errorf("failed to connect to ledger: %w", err)
	}
	defer ledger.Close()

	platform := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.APIURL, cfg.Telegram.Timeout)
	bot := registerBot(ctx, platform, cfg.Telegram)

	m := metrics.New()

	// Repositories
	redisClient := redis.GetClient()
	portalRepo := repoimpl.NewPortalRepository(redisClient)
	invitationRepo := repoimpl.NewInvitationRepository(redisClient)
	memberRepo := repoimpl.NewMemberRepository(redisClient)
	inputStateRepo := repoimpl.NewInputStateRepository(redisClient)

	// Usecases
	oracle := usecases.NewAssetOracle(ledger, cfg.Blockchain.Timeout)
	portalUsecase := usecases.NewPortalUsecase(portalRepo)
	joinUsecase := usecases.NewJoinUsecase(portalUsecase, oracle, platform, invitationRepo, cfg.Gate.InvitationTTL, m)
	admissionUsecase := usecases.NewAdmissionUsecase(invitationRepo, memberRepo, eventRepo, platform, m)
	reconcileUsecase := usecases.NewReconcileUsecase(portalUsecase, memberRepo, eventRepo, oracle, platform, cfg.Gate.SweepConcurrency, m)
	setupUsecase := usecases.NewSetupUsecase(portalUsecase, oracle, inputStateRepo, platform, cfg.Server.PublicDomain, cfg.Gate.InputStateTTL)

	walletAuth := walletauth.NewService(walletauth.Config{
		Secret:   cfg.WalletAuth.Secret,
		Issuer:   cfg.WalletAuth.Issuer,
		Audience: cfg.WalletAuth.Audience,
		TTL:      cfg.WalletAuth.ChallengeTTL,
	}, redis.NewReplayStore(""))

	// Handlers
	joinHandler := handlers.NewJoinHandler(joinUsecase)
	walletAuthHandler := handlers.NewWalletAuthHandler(walletAuth)
	cronHandler := handlers.NewCronHandler(reconcileUsecase, eventRepo)
	botHandler := handlers.NewBotHandler(setupUsecase, admissionUsecase, cfg.Telegram.WebhookSecret, bot)

	var sweepJob *jobs.MembershipSweepJob
	if cfg.Gate.SweepEnabled {
		sweepJob = jobs.NewMembershipSweepJob(reconcileUsecase, cfg.Gate.SweepInterval)
		go sweepJob.Start(ctx)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())

	applyCORSMiddleware(r)
	registerHealthRoute(r)
	registerMetricsRoute(r, m)
	registerAPIV1Routes(r, routeDeps{
		joinHandler:          joinHandler,
		walletAuthHandler:    walletAuthHandler,
		cronHandler:          cronHandler,
		botHandler:           botHandler,
		walletAuthMiddleware: middleware.WalletAuthMiddleware(walletAuth),
		cronAuthMiddleware:   middleware.CronAuthMiddleware(cfg.Gate.CronSecret),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info(ctx, "Gatekeeper starting",
		zap.String("port", cfg.Server.Port),
		zap.Bool("sweep_enabled", cfg.Gate.SweepEnabled),
		zap.Int("routes", len(r.Routes())),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- runServer(srv) }()

	select {
	case err = <-errCh:
	case <-ctx.Done():
		logger.Info(context.Background(), "Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err = srv.Shutdown(shutdownCtx)
	}
	if sweepJob != nil {
		sweepJob.Stop()
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

type botRegistrar interface {
	GetMe(ctx context.Context) (*telegram.User, error)
	SetWebhook(ctx context.Context, url string) error
}

// registerBot resolves the bot's identity and points the platform's webhook
// at this server. Failures are logged; the HTTP surface still starts.
func registerBot(ctx context.Context, platform botRegistrar, cfg config.TelegramConfig) handlers.BotIdentity {
	if cfg.BotToken == "" {
		logger.Warn(ctx, "TELEGRAM_BOT_TOKEN not set, bot updates will not be delivered")
		return handlers.BotIdentity{}
	}

	var bot handlers.BotIdentity
	if me, err := platform.GetMe(ctx); err != nil {
		logger.Warn(ctx, "Failed to resolve bot identity", zap.Error(err))
	} else {
		bot = handlers.BotIdentity{ID: me.ID, Username: me.Username}
	}

	if cfg.WebhookURL != "" && cfg.WebhookSecret != "" {
		url := strings.TrimRight(cfg.WebhookURL, "/") + "/api/v1/bot/" + cfg.WebhookSecret
		if err := platform.SetWebhook(ctx, url); err != nil {
			logger.Warn(ctx, "Failed to register bot webhook", zap.Error(err))
		} else {
			logger.Info(ctx, "Bot webhook registered", zap.String("bot", bot.Username))
		}
	}
	return bot
}
