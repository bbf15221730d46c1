// Package main - точка входа API-сервера EcoQuest Hub.
//
// Сервер обслуживает REST API школьной эко-платформы: прогресс и настройки
// учеников, сюжетный режим, недельные челленджи, лидерборд, эко-ассистента
// и редакторские операции преподавателей.
//
// Архитектура следует принципам Clean Architecture и DDD:
// - Domain: чистая бизнес-логика без внешних зависимостей
// - Application: оркестрация use cases (Commands/Queries)
// - Infrastructure: реализация репозиториев, внешние API
// - Interface: HTTP handlers
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
	"github.com/ecoquest-hub/ecoquest-hub/internal/application/command"
	"github.com/ecoquest-hub/ecoquest-hub/internal/application/eventhandler"
	"github.com/ecoquest-hub/ecoquest-hub/internal/application/query"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/assistant"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/ledger"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
	"github.com/ecoquest-hub/ecoquest-hub/internal/infrastructure/messaging"
	"github.com/ecoquest-hub/ecoquest-hub/internal/infrastructure/persistence/postgres"
	"github.com/ecoquest-hub/ecoquest-hub/internal/infrastructure/persistence/redis"
	"github.com/ecoquest-hub/ecoquest-hub/internal/infrastructure/supabase"
	httpserver "github.com/ecoquest-hub/ecoquest-hub/internal/interface/http"
	"github.com/ecoquest-hub/ecoquest-hub/pkg/logger"
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
	log := setupSlog(cfg)
	httpLog := setupHTTPLogger(cfg)

	log.Info("starting EcoQuest Hub API server",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
		"debug", cfg.App.Debug,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ (PostgreSQL/Supabase)
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
	log.Info("database connection established")

	log.Info("checking database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

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
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, degrading to in-memory fallbacks", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS + DISPATCHER
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
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	dispatcherCfg := messaging.DefaultDispatcherConfig(eventBus)
	dispatcherCfg.Logger = log
	dispatcher := messaging.NewDispatcher(dispatcherCfg)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. РЕПОЗИТОРИИ И КЛИЕНТЫ
	// ─────────────────────────────────────────────────────────────────────────
	gameStateRepo := postgres.NewGameStateRepository(dbConn)
	badgeCatalog := postgres.NewBadgeCatalogRepository(dbConn)
	profileRepo := postgres.NewProfileRepository(dbConn)
	preferencesRepo := postgres.NewPreferencesRepository(dbConn)
	episodeRepo := postgres.NewEpisodeRepository(dbConn)
	challengeRepo := postgres.NewChallengeRepository(dbConn)
	taskRepo := postgres.NewTaskRepository(dbConn)
	leaderboardRepo := postgres.NewLeaderboardRepository(dbConn)

	var (
		leaderboardCache *redis.LeaderboardCache
		deduper          command.RewardDeduper
	)
	if redisCache != nil {
		leaderboardCache = redis.NewLeaderboardCache(redisCache)
		deduper = redis.NewRewardDeduper(redisCache)
	} else {
		deduper = redis.NewMemoryRewardDeduper()
	}

	supabaseCfg := supabase.DefaultConfig(cfg.Supabase.ProjectURL, cfg.Supabase.AnonKey)
	supabaseCfg.ServiceKey = cfg.Supabase.ServiceKey
	supabaseCfg.AvatarBucket = cfg.Supabase.AvatarBucket
	supabaseCfg.Timeout = cfg.Supabase.RequestTimeout
	supabaseCfg.Logger = log
	supabaseCfg.Debug = cfg.App.Debug

	identityClient := supabase.NewIdentityClient(supabaseCfg)
	storageClient := supabase.NewStorageClient(supabaseCfg)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	ledgerCfg := ledger.Config{
		PointsPerLevel: cfg.Game.PointsPerLevel,
		StreakPolicy:   streakPolicy(cfg),
	}

	sessions := command.NewLedgerSessions(gameStateRepo, ledgerCfg)

	addPoints := command.NewAddPointsHandler(sessions, profileRepo, deduper, eventBus)
	unlockBadge := command.NewUnlockBadgeHandler(sessions, badgeCatalog, eventBus)
	recordActivity := command.NewRecordActivityHandler(sessions, eventBus)
	completeTask := command.NewCompleteTaskHandler(taskRepo, addPoints, recordActivity, eventBus)
	completeEpisode := command.NewCompleteEpisodeHandler(episodeRepo, taskRepo, addPoints, eventBus)
	joinChallenge := command.NewJoinChallengeHandler(challengeRepo, eventBus)
	advanceChallenge := command.NewAdvanceChallengeHandler(challengeRepo, addPoints, eventBus)
	updatePreferences := command.NewUpdatePreferencesHandler(preferencesRepo)
	updateAvatar := command.NewUpdateAvatarHandler(profileRepo, storageClient)

	getProgress := query.NewGetProgressHandler(profileRepo, gameStateRepo, taskRepo, ledgerCfg)
	getStory := query.NewGetStoryHandler(episodeRepo, taskRepo)
	getChallenges := query.NewGetChallengesHandler(challengeRepo)

	getLeaderboard := query.NewGetLeaderboardHandler(leaderboardRepo, nil)
	if leaderboardCache != nil {
		getLeaderboard = query.NewGetLeaderboardHandler(leaderboardRepo, leaderboardCache)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. EVENT HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	handlerDeps := eventhandler.Dependencies{
		Snapshots:    gameStateRepo,
		Catalog:      badgeCatalog,
		Tasks:        taskRepo,
		UnlockBadge:  unlockBadge,
		LedgerConfig: ledgerCfg,
		Logger:       log,
	}
	if leaderboardCache != nil {
		handlerDeps.Cache = leaderboardCache
	}
	if err := eventhandler.RegisterAll(dispatcher, handlerDeps); err != nil {
		return fmt.Errorf("failed to register event handlers: %w", err)
	}
	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpserver.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.ShutdownTimeout = cfg.App.ShutdownTimeout
	serverCfg.EnableCORS = cfg.HTTP.EnableCORS
	serverCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	serverCfg.MaxUploadBytes = cfg.HTTP.MaxUploadBytes

	server := httpserver.NewServer(serverCfg, httpserver.Dependencies{
		Progress:    getProgress,
		Story:       getStory,
		Challenges:  getChallenges,
		Leaderboard: getLeaderboard,

		CompleteTask:     completeTask,
		CompleteEpisode:  completeEpisode,
		JoinChallenge:    joinChallenge,
		AdvanceChallenge: advanceChallenge,
		RecordActivity:   recordActivity,
		UpdatePrefs:      updatePreferences,
		UpdateAvatar:     updateAvatar,

		Preferences: preferencesRepo,
		Episodes:    episodeRepo,
		Tasks:       taskRepo,
		Board:       leaderboardRepo,

		Assistant: assistant.DefaultMatcher(),
		Identity:  supabaseVerifier{client: identityClient},

		Health: dbConn,
	}, httpLog)

	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 10. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("EcoQuest Hub API server is running", "address", serverCfg.Address())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	if err := server.Shutdown(context.Background()); err != nil {
		log.Error("http shutdown failed", "error", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// supabaseVerifier адаптирует Supabase identity клиент к контракту HTTP-слоя.
type supabaseVerifier struct {
	client *supabase.IdentityClient
}

func (v supabaseVerifier) Verify(ctx context.Context, accessToken string) (httpserver.Identity, error) {
	identity, err := v.client.CurrentUser(ctx, accessToken)
	if err != nil {
		return httpserver.Identity{}, err
	}
	return httpserver.Identity{ID: identity.ID, Email: identity.Email, Role: identity.Role}, nil
}

func (v supabaseVerifier) SignOut(ctx context.Context, accessToken string) error {
	return v.client.SignOut(ctx, accessToken)
}

func streakPolicy(cfg *config.Config) ledger.StreakPolicy {
	if cfg.Game.StreakPolicy == "reset_to_one" {
		return ledger.ResetToOne
	}
	return ledger.ResetToZero
}

// setupSlog настраивает структурированное логирование инфраструктуры.
func setupSlog(cfg *config.Config) *slog.Logger {
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

// setupHTTPLogger настраивает логгер HTTP-слоя.
func setupHTTPLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	return logger.New(opts)
}
