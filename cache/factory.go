package cache

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/anoixa/engi-tracker/cache/memory"
	"github.com/anoixa/engi-tracker/cache/redis"
	"github.com/anoixa/engi-tracker/cache/types"
	"github.com/anoixa/engi-tracker/config"
)

// New 根据配置创建缓存提供者
// Redis 不可用时回退到内存缓存，令牌缓存丢失只影响性能
func New(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (types.Cache, error) {
	logger = logger.Named("cache")
	switch cfg.CacheType {
	case "redis":
		c, err := redis.NewRedis(ctx, redis.Config{
			Addr:     cfg.CacheRedisAddr,
			Password: cfg.CacheRedisPassword,
			DB:       cfg.CacheRedisDB,
		})
		if err == nil {
			logger.Infof("Using redis cache at %s", cfg.CacheRedisAddr)
			return c, nil
		}
		logger.Warnf("Redis unavailable (%v), falling back to memory cache", err)
	case "", "memory":
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.CacheType)
	}

	c, err := memory.NewMemory(memory.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	logger.Info("Using memory cache")
	return c, nil
}
