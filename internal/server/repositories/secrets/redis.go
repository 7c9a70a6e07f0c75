package secrets

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/voidnote/voidnote/internal/common"
	"github.com/voidnote/voidnote/internal/server/models"
)

var _ Repository = (*RedisRepository)(nil)

const consumeRetries = 3

// RedisRepository stores gob-encoded secret records under per-record
// keys with a TTL of expiry plus retention, so redis itself destroys
// what the sweeper would. ConsumeView runs as an optimistic WATCH
// transaction retried on contention, which preserves the at-most-N
// contract without any server-side locking.
type RedisRepository struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisRepository verifies connectivity and returns a repository.
// The retention window controls how long destroyed records stay
// observable (so repeat attempts still see "burned" rather than
// "not found") before their keys lapse.
func NewRedisRepository(ctx context.Context, opts *redis.Options, retention time.Duration) (*RedisRepository, error) {
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisRepository{client: client, retention: retention}, nil
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// Client exposes the underlying connection so collaborators (the audit
// recorder) can share it.
func (r *RedisRepository) Client() *redis.Client {
	return r.client
}

func (r *RedisRepository) Create(ctx context.Context, s *models.Secret) error {
	ttl := time.Until(s.ExpiresAt) + r.retention
	if ttl <= 0 {
		return common.ErrExpired
	}

	data, err := encodeSecret(s)
	if err != nil {
		return err
	}

	// SETNX on the short-id index enforces public-id uniqueness.
	ok, err := r.client.SetNX(ctx, shortKey(s.ShortID), s.ID, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if !ok {
		return common.ErrShortIDTaken
	}

	if err := r.client.Set(ctx, secretKey(s.ID), data, ttl).Err(); err != nil {
		// Release the claimed short id so it does not dangle with no
		// record behind it.
		r.client.Del(ctx, shortKey(s.ShortID))
		return fmt.Errorf("redis: %w", err)
	}

	if s.FileRef != "" {
		// Blob collection is keyed by record expiry.
		if err := r.addBlobGC(ctx, s.ID, s.FileRef, s.ExpiresAt); err != nil {
			return err
		}
	}
	return nil
}

func (r *RedisRepository) GetByShortID(ctx context.Context, shortID string) (*models.Secret, error) {
	id, err := r.client.Get(ctx, shortKey(shortID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("redis: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *RedisRepository) GetByID(ctx context.Context, id string) (*models.Secret, error) {
	data, err := r.client.Get(ctx, secretKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("redis: %w", err)
	}
	return decodeSecret(data)
}

func (r *RedisRepository) ConsumeView(ctx context.Context, id string, now time.Time) (*ConsumeResult, error) {
	key := secretKey(id)
	var result *ConsumeResult

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return common.ErrNotFound
			}
			return err
		}

		s, err := decodeSecret(data)
		if err != nil {
			return err
		}

		switch {
		case s.IsBurned:
			return common.ErrAlreadyBurned
		case s.ExpiredAt(now):
			return common.ErrExpired
		case s.ViewsExhausted():
			return common.ErrViewLimitReached
		}

		s.ViewCount++
		if s.MaxViews != models.UnlimitedViews && s.ViewCount >= s.MaxViews {
			s.IsBurned = true
		}

		newData, err := encodeSecret(s)
		if err != nil {
			return err
		}

		ttl := tx.TTL(ctx, key).Val()
		if s.IsBurned && ttl > r.retention {
			ttl = r.retention
		}
		if ttl <= 0 {
			ttl = r.retention
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newData, ttl)
			if s.IsBurned && s.FileRef != "" {
				pipe.ZAdd(ctx, blobGCKey, redis.Z{Score: 0, Member: gcMember(s.ID, s.FileRef)})
			}
			return nil
		})
		if err != nil {
			return err
		}

		result = &ConsumeResult{ViewCount: s.ViewCount, Burned: s.IsBurned}
		return nil
	}

	for i := 0; i < consumeRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return result, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, common.ErrNotFound),
			errors.Is(err, common.ErrAlreadyBurned),
			errors.Is(err, common.ErrExpired),
			errors.Is(err, common.ErrViewLimitReached):
			return nil, err
		default:
			return nil, fmt.Errorf("%w: %s", common.ErrStoreUnavailable, err)
		}
	}
	return nil, fmt.Errorf("%w: transaction contention", common.ErrStoreUnavailable)
}

func (r *RedisRepository) Burn(ctx context.Context, id string) error {
	key := secretKey(id)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return common.ErrNotFound
			}
			return err
		}
		s, err := decodeSecret(data)
		if err != nil {
			return err
		}
		if s.IsBurned {
			return common.ErrAlreadyBurned
		}
		s.IsBurned = true

		newData, err := encodeSecret(s)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newData, r.retention)
			if s.FileRef != "" {
				pipe.ZAdd(ctx, blobGCKey, redis.Z{Score: 0, Member: gcMember(s.ID, s.FileRef)})
			}
			return nil
		})
		return err
	}

	err := r.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: transaction contention", common.ErrStoreUnavailable)
	}
	return err
}

func (r *RedisRepository) ExtendExpiry(ctx context.Context, id string, newExpiry, now time.Time) error {
	key := secretKey(id)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return common.ErrNotFound
			}
			return err
		}
		s, err := decodeSecret(data)
		if err != nil {
			return err
		}
		if s.IsBurned {
			return common.ErrAlreadyBurned
		}
		if s.ExpiredAt(now) {
			return common.ErrExpired
		}
		s.ExpiresAt = newExpiry

		newData, err := encodeSecret(s)
		if err != nil {
			return err
		}

		ttl := time.Until(newExpiry) + r.retention
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newData, ttl)
			pipe.Expire(ctx, shortKey(s.ShortID), ttl)
			if s.FileRef != "" {
				pipe.ZAdd(ctx, blobGCKey, redis.Z{
					Score:  float64(newExpiry.Unix()),
					Member: gcMember(s.ID, s.FileRef),
				})
			}
			return nil
		})
		return err
	}

	err := r.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: transaction contention", common.ErrStoreUnavailable)
	}
	return err
}

func (r *RedisRepository) Delete(ctx context.Context, id string) error {
	s, err := r.GetByID(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, secretKey(id), shortKey(s.ShortID), logKey(id))
		if s.FileRef != "" {
			pipe.ZAdd(ctx, blobGCKey, redis.Z{Score: 0, Member: gcMember(id, s.FileRef)})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

// DeleteDestroyed drains the blob-collection set. Record and log keys
// destroy themselves through their TTLs; only external blob references
// need explicit collection.
func (r *RedisRepository) DeleteDestroyed(ctx context.Context, now time.Time, retention time.Duration) ([]DestroyedSecret, error) {
	max := strconv.FormatInt(now.Add(-retention).Unix(), 10)
	members, err := r.client.ZRangeByScore(ctx, blobGCKey, &redis.ZRangeBy{Min: "-inf", Max: max}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	result := make([]DestroyedSecret, 0, len(members))
	rem := make([]any, 0, len(members))
	for _, m := range members {
		id, ref, ok := strings.Cut(m, "|")
		if !ok {
			continue
		}
		result = append(result, DestroyedSecret{ID: id, FileRef: ref})
		rem = append(rem, m)
	}
	if err := r.client.ZRem(ctx, blobGCKey, rem...).Err(); err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return result, nil
}

func (r *RedisRepository) addBlobGC(ctx context.Context, id, ref string, expiresAt time.Time) error {
	err := r.client.ZAdd(ctx, blobGCKey, redis.Z{
		Score:  float64(expiresAt.Unix()),
		Member: gcMember(id, ref),
	}).Err()
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

const blobGCKey = "blobgc"

func secretKey(id string) string     { return "secret:" + id }
func shortKey(sid string) string     { return "short:" + sid }
func logKey(id string) string        { return "accesslog:" + id }
func gcMember(id, ref string) string { return id + "|" + ref }

func encodeSecret(s *models.Secret) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeSecret(data []byte) (*models.Secret, error) {
	var s models.Secret
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}
