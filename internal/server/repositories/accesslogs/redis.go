package accesslogs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/voidnote/voidnote/internal/server/models"
)

var _ Recorder = (*RedisRecorder)(nil)

// RedisRecorder appends JSON-encoded entries to a per-secret list via
// RPUSH, the append-only primitive. The list carries a TTL refreshed on
// every write so it lapses together with its secret's record key.
type RedisRecorder struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRecorder(client *redis.Client, ttl time.Duration) *RedisRecorder {
	return &RedisRecorder{client: client, ttl: ttl}
}

func (r *RedisRecorder) Record(ctx context.Context, e *models.AccessLogEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}

	key := "accesslog:" + e.SecretID
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

func (r *RedisRecorder) ListBySecret(ctx context.Context, secretID string) ([]*models.AccessLogEntry, error) {
	raw, err := r.client.LRange(ctx, "accesslog:"+secretID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	result := make([]*models.AccessLogEntry, 0, len(raw))
	for _, item := range raw {
		var e models.AccessLogEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("unmarshal log entry: %w", err)
		}
		result = append(result, &e)
	}
	return result, nil
}
