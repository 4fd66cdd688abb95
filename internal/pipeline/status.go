// internal/pipeline/status.go
package pipeline

import (
	"context"
	"encoding/json"

	"stylist-pipeline/internal/common/config"
	"stylist-pipeline/internal/common/database"
)

// StatusObserver receives state transitions for a request. Implementations
// must be best effort: a lost update never fails the pipeline.
type StatusObserver interface {
	Publish(ctx context.Context, update StatusUpdate)
}

// StatusKey names the retained copy of a request's latest update.
func StatusKey(prefix, requestID string) string {
	return prefix + requestID
}

// RedisStatusObserver pushes updates over pub/sub and retains the latest
// one under the same key so late subscribers can still read the outcome.
type RedisStatusObserver struct {
	redis  *database.RedisClient
	config config.StatusConfig
	logger Logger
}

func NewRedisStatusObserver(redis *database.RedisClient, cfg config.StatusConfig, log Logger) *RedisStatusObserver {
	return &RedisStatusObserver{
		redis:  redis,
		config: cfg,
		logger: log.With(map[string]interface{}{"component": "status-observer"}),
	}
}

func (o *RedisStatusObserver) Publish(ctx context.Context, update StatusUpdate) {
	payload, err := json.Marshal(update)
	if err != nil {
		o.logger.Warn("dropping unmarshalable status update", map[string]interface{}{
			"requestId": update.RequestID,
			"error":     err.Error(),
		})
		return
	}

	key := StatusKey(o.config.ChannelPrefix, update.RequestID)

	if err := o.redis.Publish(ctx, key, payload); err != nil {
		o.logger.Warn("status publish failed", map[string]interface{}{
			"requestId": update.RequestID,
			"state":     string(update.State),
			"error":     err.Error(),
		})
	}

	// Terminal updates stick around for pollers; transitions are ephemeral.
	if update.State.Terminal() {
		ttl := config.GetDuration(o.config.RetainTTL)
		if err := o.redis.Set(ctx, key, payload, ttl); err != nil {
			o.logger.Warn("status retain failed", map[string]interface{}{
				"requestId": update.RequestID,
				"error":     err.Error(),
			})
		}
	}
}

// NoopStatusObserver drops every update. Used when status publishing is
// disabled in config.
type NoopStatusObserver struct{}

func (NoopStatusObserver) Publish(context.Context, StatusUpdate) {}
