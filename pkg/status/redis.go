package status

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// field is the hash field holding the JSON record.
const field = "status"

// RedisStore keeps status records in Redis hashes shared by every worker.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a RedisStore on client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Get returns the record under key. Records written without an expiry by
// older deployments are deleted and reported as absent.
func (s *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	raw, err := s.client.HGet(ctx, key, field).Result()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if ttl == -1 {
		return nil, s.client.Del(ctx, key).Err()
	}

	rec, err := decode(raw)
	if err != nil {
		return nil, s.client.Del(ctx, key).Err()
	}
	return rec, nil
}

// TryAcquire sets the pending field if absent and its expiry in one
// transaction.
func (s *RedisStore) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	acquired := false
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.HExists(ctx, key, field).Result()
		if err != nil || exists {
			return err
		}
		var set *redis.BoolCmd
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			set = p.HSetNX(ctx, key, field, encode(pendingRecord()))
			p.Expire(ctx, key, ttl)
			return nil
		})
		if err != nil {
			return err
		}
		acquired = set.Val()
		return nil
	}, key)
	if stderrors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	return acquired, err
}

// Renew extends the expiry of a pending record.
func (s *RedisStore) Renew(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	renewed := false
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, field).Result()
		if stderrors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if rec, err := decode(raw); err != nil || rec.State != StatePending {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Expire(ctx, key, ttl)
			return nil
		})
		renewed = err == nil
		return err
	}, key)
	if stderrors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	return renewed, err
}

// Release deletes the record.
func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// Fail stores an error record expiring after ttl.
func (s *RedisStore) Fail(ctx context.Context, key string, err error, ttl time.Duration) error {
	_, txErr := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, field, encode(errorRecord(err)))
		p.Expire(ctx, key, ttl)
		return nil
	})
	return txErr
}

var _ Store = (*RedisStore)(nil)
