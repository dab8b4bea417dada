package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis stores records as JSON strings under "<kind>:<id>" and keeps each
// ordering index in a list under "<kind>s:list".
type Redis struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedis creates a Redis-backed store from an existing client.
func NewRedis(client *redis.Client, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{client: client, logger: logger}
}

// Get returns the record or ErrNotFound.
func (s *Redis) Get(ctx context.Context, kind Kind, id string) ([]byte, error) {
	data, err := s.client.Get(ctx, kind.RecordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", kind.RecordKey(id), err)
	}
	return data, nil
}

// GetMany fetches records with a single MGET.
func (s *Redis) GetMany(ctx context.Context, kind Kind, ids []string) ([][]byte, error) {
	out := make([][]byte, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = kind.RecordKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget %s: %w", kind, err)
	}
	for i, v := range vals {
		if str, ok := v.(string); ok {
			out[i] = []byte(str)
		}
	}
	return out, nil
}

// Put overwrites the record.
func (s *Redis) Put(ctx context.Context, kind Kind, id string, data []byte) error {
	if err := s.client.Set(ctx, kind.RecordKey(id), data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", kind.RecordKey(id), err)
	}
	return nil
}

// Insert uses SETNX so concurrent writers cannot both create the same id.
func (s *Redis) Insert(ctx context.Context, kind Kind, id string, data []byte) error {
	ok, err := s.client.SetNX(ctx, kind.RecordKey(id), data, 0).Result()
	if err != nil {
		return fmt.Errorf("setnx %s: %w", kind.RecordKey(id), err)
	}
	if !ok {
		return ErrExists
	}
	return nil
}

// Update runs fn inside WATCH/MULTI and retries when another client wrote
// the key in between.
func (s *Redis) Update(ctx context.Context, kind Kind, id string, fn UpdateFunc) error {
	key := kind.RecordKey(id)
	txf := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		next, err := fn(cur)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}
	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			s.logger.Debug("optimistic update retry", zap.String("key", key), zap.Int("attempt", attempt+1))
			continue
		}
		return err
	}
	return ErrConflict
}

// Delete removes the record.
func (s *Redis) Delete(ctx context.Context, kind Kind, id string) error {
	n, err := s.client.Del(ctx, kind.RecordKey(id)).Result()
	if err != nil {
		return fmt.Errorf("del %s: %w", kind.RecordKey(id), err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListIDs returns the full ordering list.
func (s *Redis) ListIDs(ctx context.Context, kind Kind) ([]string, error) {
	ids, err := s.client.LRange(ctx, kind.ListKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", kind.ListKey(), err)
	}
	return ids, nil
}

// AppendID pushes id unless the list already holds it, keeping the first
// position like the other backends. The LPOS check and the push run under
// WATCH so two writers cannot both push.
func (s *Redis) AppendID(ctx context.Context, kind Kind, id string) error {
	key := kind.ListKey()
	txf := func(tx *redis.Tx) error {
		_, err := tx.LPos(ctx, key, id, redis.LPosArgs{}).Result()
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.Nil) {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, key, id)
			return nil
		})
		return err
	}
	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return fmt.Errorf("append %s: %w", key, err)
	}
	return fmt.Errorf("append %s: %w", key, ErrConflict)
}

// RemoveID drops all occurrences of id.
func (s *Redis) RemoveID(ctx context.Context, kind Kind, id string) error {
	if err := s.client.LRem(ctx, kind.ListKey(), 0, id).Err(); err != nil {
		return fmt.Errorf("lrem %s: %w", kind.ListKey(), err)
	}
	return nil
}
