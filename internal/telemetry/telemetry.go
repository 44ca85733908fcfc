package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisEmitter counts bundle outcomes in Redis and logs them. Like the rest
// of the system, it tolerates Redis being absent at runtime.
type RedisEmitter struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewRedisEmitter(client *redis.Client, log zerolog.Logger) *RedisEmitter {
	return &RedisEmitter{client: client, log: log}
}

func (e *RedisEmitter) EmitBundleAttempt(ctx context.Context, documentID uint64) {
	e.log.Info().Uint64("document", documentID).Msg("bundle apply attempted")
	e.incr(ctx, "telemetry:bundles:attempted")
}

func (e *RedisEmitter) EmitBundleSuccess(ctx context.Context, documentID uint64, sectionCount int, elapsed time.Duration) {
	e.log.Info().
		Uint64("document", documentID).
		Int("sections", sectionCount).
		Dur("elapsed", elapsed).
		Msg("bundle applied")
	e.incr(ctx, "telemetry:bundles:applied")
}

func (e *RedisEmitter) EmitBundleFailure(ctx context.Context, documentID uint64, reason string) {
	e.log.Info().
		Uint64("document", documentID).
		Str("reason", reason).
		Msg("bundle rejected")
	e.incr(ctx, "telemetry:bundles:rejected")
	e.incr(ctx, fmt.Sprintf("telemetry:bundles:rejected:%s", reason))
}

func (e *RedisEmitter) incr(ctx context.Context, key string) {
	if e.client == nil {
		return
	}
	if err := e.client.Incr(ctx, key).Err(); err != nil {
		e.log.Warn().Err(err).Str("key", key).Msg("failed to bump telemetry counter")
	}
}
