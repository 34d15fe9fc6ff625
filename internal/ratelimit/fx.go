package ratelimit

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/summitmech/invoicepay/internal/config"
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewLimiter),
)

// NewLimiter picks the backend from config: a shared Redis token bucket
// when REDIS_ADDR is set, a per-process window otherwise.
func NewLimiter(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) Limiter {
	if cfg.RedisAddr == "" {
		log.Info("rate limiting with in-memory windows; set REDIS_ADDR for shared buckets")
		return NewMemoryLimiter()
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	log.Info("rate limiting with redis token buckets", zap.String("addr", cfg.RedisAddr))
	return NewTokenBucket(client)
}
