package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"confluence-backend/internal/config"
	"confluence-backend/internal/domain"
)

const (
	analysisKeyPrefix = "analysis:"
	analysisSymbolSet = "analysis:symbols"
)

// RedisClient wraps the connection shared by the tolerance cache and the
// latest-analysis store.
type RedisClient struct {
	client *redis.Client
	logger *logrus.Entry
	ttl    time.Duration
}

// RedisToleranceCache memoises tolerance results with the configured TTL.
type RedisToleranceCache struct {
	rc *RedisClient
}

// RedisAnalysisStore keeps the latest analysis per symbol.
type RedisAnalysisStore struct {
	rc *RedisClient
}

var (
	_ domain.ToleranceCache     = (*RedisToleranceCache)(nil)
	_ domain.AnalysisRepository = (*RedisAnalysisStore)(nil)
)

// NewRedisClient creates a new Redis client and pings it.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, logger *logrus.Logger) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  4 * time.Second,
		MaxRetries:   2,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &RedisClient{
		client: client,
		logger: logger.WithField("component", "redis"),
		ttl:    cfg.CacheTTL,
	}, nil
}

// Close closes the Redis connection
func (rc *RedisClient) Close() error {
	return rc.client.Close()
}

// Health checks Redis health
func (rc *RedisClient) Health(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// ToleranceCache returns the tolerance cache view of the client.
func (rc *RedisClient) ToleranceCache() *RedisToleranceCache {
	return &RedisToleranceCache{rc: rc}
}

// Analyses returns the latest-analysis store view of the client.
func (rc *RedisClient) Analyses() *RedisAnalysisStore {
	return &RedisAnalysisStore{rc: rc}
}

// ToleranceKeyString renders a tolerance cache key. The window hash keeps
// entries for stale windows from ever matching.
func ToleranceKeyString(key domain.ToleranceKey) string {
	return fmt.Sprintf("tolerance:%s:%s:%016x:%s:%g:%d",
		key.Symbol, key.Timeframe, key.WindowHash, key.Type, key.BaseTolerance, key.ATRPeriod)
}

// Get returns a cached tolerance. Redis failures are logged and treated as a miss.
func (c *RedisToleranceCache) Get(ctx context.Context, key domain.ToleranceKey) (domain.ToleranceSpec, bool) {
	rc := c.rc
	data, err := rc.client.Get(ctx, ToleranceKeyString(key)).Bytes()
	if err == redis.Nil {
		return domain.ToleranceSpec{}, false
	}
	if err != nil {
		rc.logger.WithError(err).Warn("tolerance cache read failed")
		return domain.ToleranceSpec{}, false
	}

	var spec domain.ToleranceSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		rc.logger.WithError(err).Warn("tolerance cache entry corrupt")
		return domain.ToleranceSpec{}, false
	}
	return spec, true
}

func (c *RedisToleranceCache) Set(ctx context.Context, key domain.ToleranceKey, spec domain.ToleranceSpec) {
	rc := c.rc
	data, err := json.Marshal(spec)
	if err != nil {
		rc.logger.WithError(err).Warn("failed to marshal tolerance")
		return
	}
	if err := rc.client.Set(ctx, ToleranceKeyString(key), data, rc.ttl).Err(); err != nil {
		rc.logger.WithError(err).Warn("tolerance cache write failed")
	}
}

// Save stores the latest analysis for its symbol.
func (s *RedisAnalysisStore) Save(ctx context.Context, result domain.AnalysisResult) error {
	rc := s.rc
	symbol := domain.NormalizeSymbol(result.Symbol)
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis for %s: %w", symbol, err)
	}

	pipe := rc.client.TxPipeline()
	pipe.Set(ctx, analysisKeyPrefix+symbol, data, 0)
	pipe.SAdd(ctx, analysisSymbolSet, symbol)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store analysis for %s: %w", symbol, err)
	}
	return nil
}

func (s *RedisAnalysisStore) Get(ctx context.Context, symbol string) (domain.AnalysisResult, bool, error) {
	return s.rc.getAnalysis(ctx, domain.NormalizeSymbol(symbol))
}

func (rc *RedisClient) getAnalysis(ctx context.Context, symbol string) (domain.AnalysisResult, bool, error) {
	data, err := rc.client.Get(ctx, analysisKeyPrefix+symbol).Bytes()
	if err == redis.Nil {
		return domain.AnalysisResult{}, false, nil
	}
	if err != nil {
		return domain.AnalysisResult{}, false, fmt.Errorf("failed to get analysis: %w", err)
	}

	var res domain.AnalysisResult
	if err := json.Unmarshal(data, &res); err != nil {
		return domain.AnalysisResult{}, false, fmt.Errorf("failed to unmarshal analysis: %w", err)
	}
	return res, true, nil
}

// List returns all stored analyses ordered by symbol.
func (s *RedisAnalysisStore) List(ctx context.Context) ([]domain.AnalysisResult, error) {
	rc := s.rc
	symbols, err := rc.client.SMembers(ctx, analysisSymbolSet).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis symbols: %w", err)
	}
	sort.Strings(symbols)

	out := make([]domain.AnalysisResult, 0, len(symbols))
	for _, sym := range symbols {
		res, ok, err := rc.getAnalysis(ctx, sym)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, res)
		}
	}
	return out, nil
}
