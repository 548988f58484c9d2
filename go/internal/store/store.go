package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound: the key (or hash) is absent. Absence is a normal state,
	// not a failure.
	ErrNotFound = errors.New("store: key not found")

	// ErrConflict: an Update lost the optimistic race; a watched key changed
	// between read and commit. The caller decides whether to retry.
	ErrConflict = errors.New("store: transaction conflict")

	// ErrUnavailable marks a transient store failure (timeout, connection
	// reset). Callers must treat it as retryable-or-report, never swallow it.
	ErrUnavailable = errors.New("store: unavailable")
)

// UnavailableError wraps a transport-level failure with the operation and
// key that hit it. errors.Is(err, ErrUnavailable) matches it.
type UnavailableError struct {
	Op  string
	Key string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("store: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

// Store is the cross-process coordination backend: the single source of
// truth for live-game state. No implementation caches; every call is a
// network round trip that may fail transiently.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// SetNX sets key only if absent; reports whether it was set. This is
	// the check-and-set behind the per-(connection, question) idempotency
	// marker. A zero ttl means no expiry.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error

	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HIncrBy(ctx context.Context, key, field string, by int64) (int64, error)

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)

	// Update runs fn against a transaction view: reads observe committed
	// state, writes are queued and land atomically on commit: either the
	// whole batch is visible or none of it. If any watched key is written
	// by another client between fn's first read and the commit, Update
	// returns ErrConflict and nothing is applied. With no watch keys the
	// batch is still atomic but unconditional.
	Update(ctx context.Context, fn func(tx Tx) error, watchKeys ...string) error
}

// Tx is the view passed to Update callbacks. Reads go to the store; writes
// queue until commit. fn returning an error discards the queued writes.
type Tx interface {
	Get(ctx context.Context, key string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)

	Set(key, value string)
	Incr(key string)
	HSet(key string, fields map[string]string)
	HIncrBy(key, field string, by int64)
	SAdd(key string, members ...string)
	SRem(key string, members ...string)
	Del(keys ...string)
}
