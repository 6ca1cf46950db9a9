package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"gatekeeper.backend/internal/config"
	"gatekeeper.backend/internal/domain/entities"
	"gatekeeper.backend/internal/domain/repositories"
	"gatekeeper.backend/internal/infrastructure/blockchain"
	"gatekeeper.backend/internal/infrastructure/datasources/postgres"
	repoimpl "gatekeeper.backend/internal/infrastructure/repositories"
	"gatekeeper.backend/internal/infrastructure/telegram"
	"gatekeeper.backend/internal/usecases"
	"gatekeeper.backend/pkg/logger"
	"gatekeeper.backend/pkg/redis"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type sweepRuntime interface {
	Sweep(ctx context.Context) (*entities.SweepReport, error)
}

type sweepDeps struct {
	loadEnv func() error
	loadCfg func() *config.Config
	prepare func(ctx context.Context, cfg *config.Config) (sweepRuntime, io.Closer, error)
	out     io.Writer
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// sweepOutput is the report as printed on stdout.
type sweepOutput struct {
	*entities.SweepReport
	DurationMs int64 `json:"durationMs"`
}

func defaultSweepDeps() sweepDeps {
	return sweepDeps{
		loadEnv: func() error { return godotenv.Load() },
		loadCfg: config.Load,
		prepare: prepareSweep,
		out:     os.Stdout,
	}
}

func prepareSweep(ctx context.Context, cfg *config.Config) (sweepRuntime, io.Closer, error) {
	if err := redis.Init(cfg.Redis.URL, cfg.Redis.PASSWORD); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	var closers []func() error
	closeAll := closerFunc(func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	})

	// Evictions are still applied when the audit log is unreachable.
	var eventRepo repositories.MembershipEventRepository
	if sqlDB, err := postgres.NewConnection(cfg.Database); err != nil {
		logger.Warn(ctx, "Database not available, sweep events will not be recorded", zap.Error(err))
	} else {
		closers = append(closers, sqlDB.Close)
		db, err := postgres.NewGorm(sqlDB)
		if err != nil {
			_ = closeAll.Close()
			return nil, nil, fmt.Errorf("failed to init gorm: %w", err)
		}
		events := repoimpl.NewMembershipEventRepository(db)
		if err := events.AutoMigrate(); err != nil {
			_ = closeAll.Close()
			return nil, nil, fmt.Errorf("failed to migrate membership events: %w", err)
		}
		eventRepo = events
	}

	ledger, err := blockchain.NewEVMClient(ctx, cfg.Blockchain.RPCURL)
	if err != nil {
		_ = closeAll.Close()
		return nil, nil, fmt.Errorf("failed to connect to ledger: %w", err)
	}
	closers = append(closers, func() error { ledger.Close(); return nil })

	platform := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.APIURL, cfg.Telegram.Timeout)
	redisClient := redis.GetClient()
	portals := usecases.NewPortalUsecase(repoimpl.NewPortalRepository(redisClient))
	oracle := usecases.NewAssetOracle(ledger, cfg.Blockchain.Timeout)
	reconcile := usecases.NewReconcileUsecase(
		portals,
		repoimpl.NewMemberRepository(redisClient),
		eventRepo,
		oracle,
		platform,
		cfg.Gate.SweepConcurrency,
		nil,
	)
	return reconcile, closeAll, nil
}

func runSweep(args []string, deps sweepDeps) error {
	if deps.loadEnv == nil {
		deps.loadEnv = func() error { return godotenv.Load() }
	}
	if deps.loadCfg == nil {
		deps.loadCfg = config.Load
	}
	if deps.prepare == nil {
		deps.prepare = prepareSweep
	}
	if deps.out == nil {
		deps.out = os.Stdout
	}

	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	timeout := fs.Duration("timeout", 10*time.Minute, "upper bound for the whole sweep")
	strict := fs.Bool("strict", false, "exit non-zero when any eviction or balance lookup failed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *timeout <= 0 {
		return fmt.Errorf("--timeout must be positive")
	}

	if err := deps.loadEnv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := deps.loadCfg()
	logger.Init(cfg.Server.Env)
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = logger.WithComponent(ctx, "sweep_cli")

	runtime, closer, err := deps.prepare(ctx, cfg)
	if err != nil {
		return err
	}
	if closer == nil {
		closer = nopCloser{}
	}
	defer closer.Close()

	report, err := runtime.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	enc := json.NewEncoder(deps.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sweepOutput{SweepReport: report, DurationMs: report.Duration.Milliseconds()}); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if *strict && (report.FailedKick > 0 || report.FailedLookup > 0) {
		return fmt.Errorf("sweep finished with %d failed evictions and %d failed lookups", report.FailedKick, report.FailedLookup)
	}
	return nil
}

func main() {
	if err := runSweep(os.Args[1:], defaultSweepDeps()); err != nil {
		log.Fatal(err)
	}
}
