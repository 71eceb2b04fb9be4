package commands

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"confluence-backend/internal/config"
	deliveryhttp "confluence-backend/internal/delivery/http"
	"confluence-backend/internal/domain"
	"confluence-backend/internal/infrastructure/binance"
	"confluence-backend/internal/infrastructure/cache"
	"confluence-backend/internal/infrastructure/db"
	"confluence-backend/internal/infrastructure/fcm"
	"confluence-backend/internal/infrastructure/firebase"
	"confluence-backend/internal/infrastructure/messaging"
	"confluence-backend/internal/repository"
	"confluence-backend/internal/usecase"
)

// app holds the wired components of a running server.
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	service *usecase.AnalysisService
	tracker *usecase.PerformanceTracker
	devices *repository.TokenRepository
	scanner *usecase.Scanner
	checks  map[string]deliveryhttp.HealthCheck
	closers []func() error
}

// newAnalyzer builds the engine from the engine settings and an optional
// tolerance cache.
func newAnalyzer(cfg config.EngineConfig, tolCache domain.ToleranceCache) (*usecase.Analyzer, error) {
	var table []domain.RatioSpec
	if cfg.LevelsFile != "" {
		t, err := config.LoadLevels(cfg.LevelsFile)
		if err != nil {
			return nil, err
		}
		table = t
	}
	gen, err := usecase.NewLevelGenerator(table)
	if err != nil {
		return nil, err
	}
	defaults, err := cfg.AnalysisConfig()
	if err != nil {
		return nil, err
	}
	return usecase.NewAnalyzer(gen, tolCache, defaults), nil
}

func newApp(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*app, error) {
	a := &app{
		cfg:     cfg,
		log:     log,
		devices: repository.NewTokenRepository(),
		checks:  make(map[string]deliveryhttp.HealthCheck),
	}
	if err := a.wire(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg, log := a.cfg, a.log

	var tolCache domain.ToleranceCache = cache.NewMemoryToleranceCache(cfg.Redis.CacheTTL, 10000)
	var redisClient *cache.RedisClient
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisClient(ctx, cfg.Redis, log)
		if err != nil {
			return err
		}
		redisClient = rc
		tolCache = rc.ToleranceCache()
		a.checks["redis"] = rc.Health
		a.closers = append(a.closers, rc.Close)
		log.WithField("addr", cfg.GetRedisAddr()).Info("Redis connected")
	}

	analyzer, err := newAnalyzer(cfg.Engine, tolCache)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	a.service = usecase.NewAnalysisService(analyzer, repository.NewInMemoryAnalysisRepository(), log)
	if redisClient != nil {
		a.service.WithMirror(redisClient.Analyses())
	}

	fbApp, err := firebase.NewApp(ctx, cfg.Firebase)
	if err != nil {
		return err
	}
	if cfg.Firebase.FirestoreEnabled && fbApp != nil {
		fs, err := firebase.NewFirestoreAnalysisRepository(ctx, fbApp, cfg.Firebase.FirestoreCollection, log)
		if err != nil {
			return err
		}
		a.service.WithMirror(fs)
		a.closers = append(a.closers, fs.Close)
		log.WithField("collection", cfg.Firebase.FirestoreCollection).Info("Firestore mirror enabled")
	}

	if cfg.NATS.Enabled {
		nc, err := messaging.NewNATSClient(cfg.NATS, log)
		if err != nil {
			return err
		}
		a.service.WithPublisher(nc)
		a.checks["nats"] = func(context.Context) error {
			if !nc.IsConnected() {
				return fmt.Errorf("not connected")
			}
			return nil
		}
		a.closers = append(a.closers, nc.Close)
	}

	var store domain.SignalRecordStore = repository.NewInMemorySignalRecordRepository()
	if cfg.Database.URL != "" {
		pool, err := db.NewPool(ctx, cfg.Database.URL, db.PoolConfigFrom(cfg.Database))
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		if err := db.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
		store = repository.NewPostgresSignalRecordRepository(pool)
		a.checks["postgres"] = pool.Ping
		log.Info("Signal records stored in Postgres")
	} else {
		log.Warn("DB_URL not set, signal records kept in memory")
	}
	a.tracker = usecase.NewPerformanceTracker(store)

	if cfg.Scanner.Enabled {
		fcmClient, err := fcm.NewClient(ctx, fbApp, log)
		if err != nil {
			return err
		}
		minStrength, err := domain.ParseZoneStrength(cfg.Scanner.NotifyStrength)
		if err != nil {
			return err
		}
		notifier := usecase.NewZoneNotifier(fcmClient, a.devices, minStrength, cfg.Firebase.NotifyCooldown, log)
		a.scanner = usecase.NewScanner(binance.NewClient(cfg.Binance), a.service, cfg.Scanner, log).
			WithNotifier(notifier).
			WithTracker(a.tracker)
	}
	return nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.WithError(err).Warn("close failed")
		}
	}
	a.closers = nil
}
