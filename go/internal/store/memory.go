package store

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by tests. It keeps the same
// semantics as the Redis implementation where they matter: per-key version
// counters make Update's optimistic conflicts reproducible, and FailOp
// injects transient failures per operation.
type MemoryStore struct {
	mu       sync.Mutex
	scalars  map[string]string
	hashes   map[string]map[string]string
	sets     map[string]map[string]struct{}
	versions map[string]uint64
	failures map[string]error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		scalars:  make(map[string]string),
		hashes:   make(map[string]map[string]string),
		sets:     make(map[string]map[string]struct{}),
		versions: make(map[string]uint64),
		failures: make(map[string]error),
	}
}

var _ Store = (*MemoryStore)(nil)

// FailOp makes every subsequent call of the named operation ("get", "set",
// "setnx", "del", "hset", "hgetall", "hincrby", "sadd", "srem", "smembers",
// "scard", "update") return err until cleared with a nil err.
func (m *MemoryStore) FailOp(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

func (m *MemoryStore) failure(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures[op]
}

func (m *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	if err := m.failure("get"); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.scalars[key]
	if !ok {
		return "", ErrNotFound
	}
	return val, nil
}

func (m *MemoryStore) Set(ctx context.Context, key, value string) error {
	if err := m.failure("set"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(key, value)
	return nil
}

func (m *MemoryStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if err := m.failure("setnx"); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scalars[key]; ok {
		return false, nil
	}
	m.setLocked(key, value)
	return true, nil
}

func (m *MemoryStore) Del(ctx context.Context, keys ...string) error {
	if err := m.failure("del"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		m.delLocked(key)
	}
	return nil
}

func (m *MemoryStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if err := m.failure("hset"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hsetLocked(key, fields)
	return nil
}

func (m *MemoryStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if err := m.failure("hgetall"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	hash, ok := m.hashes[key]
	if !ok || len(hash) == 0 {
		return nil, ErrNotFound
	}
	out := make(map[string]string, len(hash))
	for f, v := range hash {
		out[f] = v
	}
	return out, nil
}

func (m *MemoryStore) HIncrBy(ctx context.Context, key, field string, by int64) (int64, error) {
	if err := m.failure("hincrby"); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hincrLocked(key, field, by), nil
}

func (m *MemoryStore) SAdd(ctx context.Context, key string, members ...string) error {
	if err := m.failure("sadd"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saddLocked(key, members)
	return nil
}

func (m *MemoryStore) SRem(ctx context.Context, key string, members ...string) error {
	if err := m.failure("srem"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sremLocked(key, members)
	return nil
}

func (m *MemoryStore) SMembers(ctx context.Context, key string) ([]string, error) {
	if err := m.failure("smembers"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	members := make([]string, 0, len(m.sets[key]))
	for member := range m.sets[key] {
		members = append(members, member)
	}
	return members, nil
}

func (m *MemoryStore) SCard(ctx context.Context, key string) (int64, error) {
	if err := m.failure("scard"); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.sets[key])), nil
}

func (m *MemoryStore) Update(ctx context.Context, fn func(tx Tx) error, watchKeys ...string) error {
	if err := m.failure("update"); err != nil {
		return err
	}

	m.mu.Lock()
	start := make(map[string]uint64, len(watchKeys))
	for _, key := range watchKeys {
		start[key] = m.versions[key]
	}
	m.mu.Unlock()

	tx := &memTx{store: m}
	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range watchKeys {
		if m.versions[key] != start[key] {
			return ErrConflict
		}
	}
	for _, op := range tx.ops {
		op(m)
	}
	return nil
}

// Locked mutators; callers hold m.mu.

func (m *MemoryStore) setLocked(key, value string) {
	m.scalars[key] = value
	m.versions[key]++
}

func (m *MemoryStore) incrLocked(key string) {
	n, _ := strconv.ParseInt(m.scalars[key], 10, 64)
	m.scalars[key] = strconv.FormatInt(n+1, 10)
	m.versions[key]++
}

func (m *MemoryStore) hsetLocked(key string, fields map[string]string) {
	hash, ok := m.hashes[key]
	if !ok {
		hash = make(map[string]string)
		m.hashes[key] = hash
	}
	for f, v := range fields {
		hash[f] = v
	}
	m.versions[key]++
}

func (m *MemoryStore) hincrLocked(key, field string, by int64) int64 {
	hash, ok := m.hashes[key]
	if !ok {
		hash = make(map[string]string)
		m.hashes[key] = hash
	}
	n, _ := strconv.ParseInt(hash[field], 10, 64)
	n += by
	hash[field] = strconv.FormatInt(n, 10)
	m.versions[key]++
	return n
}

func (m *MemoryStore) saddLocked(key string, members []string) {
	set, ok := m.sets[key]
	if !ok {
		set = make(map[string]struct{})
		m.sets[key] = set
	}
	for _, member := range members {
		set[member] = struct{}{}
	}
	m.versions[key]++
}

func (m *MemoryStore) sremLocked(key string, members []string) {
	set := m.sets[key]
	for _, member := range members {
		delete(set, member)
	}
	m.versions[key]++
}

func (m *MemoryStore) delLocked(key string) {
	delete(m.scalars, key)
	delete(m.hashes, key)
	delete(m.sets, key)
	m.versions[key]++
}

type memTx struct {
	store *MemoryStore
	ops   []func(*MemoryStore)
}

var _ Tx = (*memTx)(nil)

func (t *memTx) Get(ctx context.Context, key string) (string, error) {
	return t.store.Get(ctx, key)
}

func (t *memTx) Exists(ctx context.Context, key string) (bool, error) {
	if err := t.store.failure("get"); err != nil {
		return false, err
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if _, ok := t.store.scalars[key]; ok {
		return true, nil
	}
	if h, ok := t.store.hashes[key]; ok && len(h) > 0 {
		return true, nil
	}
	if s, ok := t.store.sets[key]; ok && len(s) > 0 {
		return true, nil
	}
	return false, nil
}

func (t *memTx) Set(key, value string) {
	t.ops = append(t.ops, func(m *MemoryStore) { m.setLocked(key, value) })
}

func (t *memTx) Incr(key string) {
	t.ops = append(t.ops, func(m *MemoryStore) { m.incrLocked(key) })
}

func (t *memTx) HSet(key string, fields map[string]string) {
	copied := make(map[string]string, len(fields))
	for f, v := range fields {
		copied[f] = v
	}
	t.ops = append(t.ops, func(m *MemoryStore) { m.hsetLocked(key, copied) })
}

func (t *memTx) HIncrBy(key, field string, by int64) {
	t.ops = append(t.ops, func(m *MemoryStore) { m.hincrLocked(key, field, by) })
}

func (t *memTx) SAdd(key string, members ...string) {
	t.ops = append(t.ops, func(m *MemoryStore) { m.saddLocked(key, members) })
}

func (t *memTx) SRem(key string, members ...string) {
	t.ops = append(t.ops, func(m *MemoryStore) { m.sremLocked(key, members) })
}

func (t *memTx) Del(keys ...string) {
	t.ops = append(t.ops, func(m *MemoryStore) {
		for _, key := range keys {
			m.delLocked(key)
		}
	})
}
