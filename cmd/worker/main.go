// Package main - точка входа фонового воркера EcoQuest Hub.
//
// Воркер отвечает за периодические задачи платформы:
// - Пересборка снапшота лидерборда и прогрев кеша
// - Аудит серий (проактивный сброс после пропущенного дня)
// - Очистка устаревших снапшотов лидерборда
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ecoquest-hub/ecoquest-hub/config"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/leaderboard"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/ledger"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
	"github.com/ecoquest-hub/ecoquest-hub/internal/infrastructure/messaging"
	"github.com/ecoquest-hub/ecoquest-hub/internal/infrastructure/persistence/postgres"
	"github.com/ecoquest-hub/ecoquest-hub/internal/infrastructure/persistence/redis"
	"github.com/ecoquest-hub/ecoquest-hub/internal/infrastructure/scheduler"
	"github.com/ecoquest-hub/ecoquest-hub/internal/infrastructure/scheduler/jobs"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting EcoQuest Hub worker",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
	)

	if !cfg.Scheduler.Enabled {
		return fmt.Errorf("worker started with SCHEDULER_ENABLED=false, nothing to do")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Воркер тоже накатывает миграции: он может стартовать раньше API.
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ИНИЦИАЛИЗАЦИЯ REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, cache warming disabled", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS
	// События воркера (rank_changed, streak_broken, leaderboard.rebuilt)
	// уходят через Redis Pub/Sub к API-инстансам, если Redis доступен.
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log

	var eventBus interface {
		shared.EventBus
		Close() error
	}
	if redisCache != nil {
		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         redisCache.Client(),
			LocalBusConfig: busCfg,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("failed to create event bus: %w", err)
		}
		eventBus = redisBus
	} else {
		eventBus = messaging.NewInMemoryEventBus(busCfg)
	}
	defer func() {
		_ = eventBus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 6. РЕПОЗИТОРИИ И ЗАДАЧИ
	// ─────────────────────────────────────────────────────────────────────────
	gameStateRepo := postgres.NewGameStateRepository(dbConn)
	profileRepo := postgres.NewProfileRepository(dbConn)
	leaderboardRepo := postgres.NewLeaderboardRepository(dbConn)

	var (
		boardCache *redis.LeaderboardCache
		seeder     jobs.ScoreSeeder
	)
	if redisCache != nil {
		boardCache = redis.NewLeaderboardCache(redisCache)
		seeder = boardCache
	}

	rebuildJob := jobs.NewRebuildLeaderboardJob(
		profileRepo,
		gameStateRepo,
		leaderboardRepo,
		cacheOrNil(boardCache),
		seeder,
		eventBus,
		jobs.RebuildLeaderboardConfig{
			MaxParticipants:   cfg.Scheduler.MaxParticipants,
			CachedTopSize:     cfg.Scheduler.CachedTopSize,
			CacheTTL:          cfg.Scheduler.CacheTTL,
			SignificantChange: cfg.Scheduler.SignificantChange,
		},
		log,
	)

	auditJob := jobs.NewStreakAuditJob(gameStateRepo, streakPolicy(cfg), eventBus, log)
	cleanupJob := jobs.NewCleanupSnapshotsJob(leaderboardRepo, cfg.Scheduler.SnapshotRetention, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(log)

	if err := sched.Register(rebuildJob, scheduler.NewIntervalSchedule(cfg.Scheduler.LeaderboardInterval)); err != nil {
		return fmt.Errorf("failed to register rebuild job: %w", err)
	}
	if err := sched.Register(auditJob, scheduler.NewDailySchedule(cfg.Scheduler.StreakAuditHour, cfg.Scheduler.StreakAuditMinute)); err != nil {
		return fmt.Errorf("failed to register streak audit job: %w", err)
	}
	if err := sched.Register(cleanupJob, scheduler.MustParseCronExpression(scheduler.EveryDay3AM)); err != nil {
		return fmt.Errorf("failed to register cleanup job: %w", err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	for _, info := range sched.ListJobs() {
		log.Info("job scheduled",
			"job", info.Name,
			"schedule", info.Schedule,
			"next_run", info.NextRun,
		)
	}

	// Первый снапшот не ждёт интервала: пустой лидерборд сразу после
	// деплоя выглядит как поломка.
	if _, err := sched.RunNow(ctx, rebuildJob.Name()); err != nil {
		log.Warn("initial leaderboard rebuild failed", "error", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("EcoQuest Hub worker is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())

	if err := sched.Stop(); err != nil {
		log.Error("scheduler stop failed", "error", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// cacheOrNil обходит ловушку типизированного nil: *LeaderboardCache(nil)
// внутри интерфейса leaderboard.Cache перестаёт быть nil.
func cacheOrNil(c *redis.LeaderboardCache) leaderboard.Cache {
	if c == nil {
		return nil
	}
	return c
}

func streakPolicy(cfg *config.Config) ledger.StreakPolicy {
	if cfg.Game.StreakPolicy == "reset_to_one" {
		return ledger.ResetToOne
	}
	return ledger.ResetToZero
}

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" || cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}
