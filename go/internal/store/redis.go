package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store over a single Redis instance shared by every
// server process. Update maps onto WATCH/MULTI/EXEC.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

var _ Store = (*RedisStore)(nil)

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", &UnavailableError{Op: "get", Key: key, Err: err}
	}
	return val, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return &UnavailableError{Op: "set", Key: key, Err: err}
	}
	return nil
}

func (s *RedisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, &UnavailableError{Op: "setnx", Key: key, Err: err}
	}
	return ok, nil
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return &UnavailableError{Op: "del", Key: keys[0], Err: err}
	}
	return nil
}

func (s *RedisStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if err := s.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return &UnavailableError{Op: "hset", Key: key, Err: err}
	}
	return nil
}

func (s *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	fields, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, &UnavailableError{Op: "hgetall", Key: key, Err: err}
	}
	// HGETALL on a missing key returns an empty map, not redis.Nil.
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return fields, nil
}

func (s *RedisStore) HIncrBy(ctx context.Context, key, field string, by int64) (int64, error) {
	val, err := s.rdb.HIncrBy(ctx, key, field, by).Result()
	if err != nil {
		return 0, &UnavailableError{Op: "hincrby", Key: key, Err: err}
	}
	return val, nil
}

func (s *RedisStore) SAdd(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := s.rdb.SAdd(ctx, key, args...).Err(); err != nil {
		return &UnavailableError{Op: "sadd", Key: key, Err: err}
	}
	return nil
}

func (s *RedisStore) SRem(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := s.rdb.SRem(ctx, key, args...).Err(); err != nil {
		return &UnavailableError{Op: "srem", Key: key, Err: err}
	}
	return nil
}

func (s *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := s.rdb.SMembers(ctx, key).Result()
	if err != nil {
		return nil, &UnavailableError{Op: "smembers", Key: key, Err: err}
	}
	return members, nil
}

func (s *RedisStore) SCard(ctx context.Context, key string) (int64, error) {
	n, err := s.rdb.SCard(ctx, key).Result()
	if err != nil {
		return 0, &UnavailableError{Op: "scard", Key: key, Err: err}
	}
	return n, nil
}

// redisReader is the read surface shared by *redis.Client and *redis.Tx.
type redisReader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

func (s *RedisStore) Update(ctx context.Context, fn func(tx Tx) error, watchKeys ...string) error {
	run := func(reader redisReader, pipelined func(context.Context, func(redis.Pipeliner) error) ([]redis.Cmder, error)) error {
		view := &redisTx{ctx: ctx, reader: reader}
		if err := fn(view); err != nil {
			// Callback errors (including failed reads) pass through unwrapped.
			return &callbackError{err: err}
		}
		_, err := pipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, op := range view.ops {
				op(pipe)
			}
			return nil
		})
		return err
	}

	var err error
	if len(watchKeys) == 0 {
		// No optimistic check needed; MULTI/EXEC alone makes the batch atomic.
		err = run(s.rdb, s.rdb.TxPipelined)
	} else {
		err = s.rdb.Watch(ctx, func(rtx *redis.Tx) error {
			return run(rtx, rtx.TxPipelined)
		}, watchKeys...)
	}

	var cb *callbackError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &cb):
		return cb.err
	case errors.Is(err, redis.TxFailedErr):
		return ErrConflict
	default:
		return &UnavailableError{Op: "update", Key: firstKey(watchKeys), Err: err}
	}
}

type callbackError struct{ err error }

func (e *callbackError) Error() string { return e.err.Error() }
func (e *callbackError) Unwrap() error { return e.err }

func firstKey(keys []string) string {
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}

// redisTx reads through the transaction connection and records writes to
// replay inside MULTI/EXEC.
type redisTx struct {
	ctx    context.Context
	reader redisReader
	ops    []func(redis.Pipeliner)
}

var _ Tx = (*redisTx)(nil)

func (t *redisTx) Get(ctx context.Context, key string) (string, error) {
	val, err := t.reader.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", &UnavailableError{Op: "get", Key: key, Err: err}
	}
	return val, nil
}

func (t *redisTx) Exists(ctx context.Context, key string) (bool, error) {
	n, err := t.reader.Exists(ctx, key).Result()
	if err != nil {
		return false, &UnavailableError{Op: "exists", Key: key, Err: err}
	}
	return n > 0, nil
}

func (t *redisTx) Set(key, value string) {
	t.ops = append(t.ops, func(pipe redis.Pipeliner) { pipe.Set(t.ctx, key, value, 0) })
}

func (t *redisTx) Incr(key string) {
	t.ops = append(t.ops, func(pipe redis.Pipeliner) { pipe.Incr(t.ctx, key) })
}

func (t *redisTx) HSet(key string, fields map[string]string) {
	t.ops = append(t.ops, func(pipe redis.Pipeliner) { pipe.HSet(t.ctx, key, fields) })
}

func (t *redisTx) HIncrBy(key, field string, by int64) {
	t.ops = append(t.ops, func(pipe redis.Pipeliner) { pipe.HIncrBy(t.ctx, key, field, by) })
}

func (t *redisTx) SAdd(key string, members ...string) {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	t.ops = append(t.ops, func(pipe redis.Pipeliner) { pipe.SAdd(t.ctx, key, args...) })
}

func (t *redisTx) SRem(key string, members ...string) {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	t.ops = append(t.ops, func(pipe redis.Pipeliner) { pipe.SRem(t.ctx, key, args...) })
}

func (t *redisTx) Del(keys ...string) {
	t.ops = append(t.ops, func(pipe redis.Pipeliner) { pipe.Del(t.ctx, keys...) })
}
