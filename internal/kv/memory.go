package kv

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"
)

// MemoryStore provides an in-memory implementation of Store for testing.
// Expiry is evaluated lazily against the Now hook, so tests can advance
// time without sleeping.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memEntry

	// Now reports the current time. Overridable in tests.
	Now func() time.Time
}

type memEntry struct {
	str      string
	hash     map[string]string
	set      map[string]struct{}
	zset     map[string]float64
	list     []string
	deadline time.Time // zero means no expiry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memEntry),
		Now:     time.Now,
	}
}

// live returns the entry for key, dropping it first if expired.
// Callers must hold mu.
func (s *MemoryStore) live(key string) *memEntry {
	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	if !e.deadline.IsZero() && !s.Now().Before(e.deadline) {
		delete(s.entries, key)
		return nil
	}
	return e
}

func (s *MemoryStore) ensure(key string) *memEntry {
	if e := s.live(key); e != nil {
		return e
	}
	e := &memEntry{}
	s.entries[key] = e
	return e
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(key)
	if e == nil {
		return "", false, nil
	}
	return e.str, true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &memEntry{str: value}
	if ttl > 0 {
		e.deadline = s.Now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

func (s *MemoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.entries, k)
	}
	return nil
}

func (s *MemoryStore) Incr(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.ensure(key)
	n, err := parseIntOrZero(e.str)
	if err != nil {
		return 0, err
	}
	n++
	e.str = strconv.FormatInt(n, 10)
	return n, nil
}

func (s *MemoryStore) IncrByFloat(ctx context.Context, key string, delta float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.ensure(key)
	f := 0.0
	if e.str != "" {
		var err error
		f, err = strconv.ParseFloat(e.str, 64)
		if err != nil {
			return 0, fmt.Errorf("value is not a float: %q", e.str)
		}
	}
	f += delta
	e.str = strconv.FormatFloat(f, 'f', -1, 64)
	return f, nil
}

func (s *MemoryStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.live(key); e != nil {
		e.deadline = s.Now().Add(ttl)
	}
	return nil
}

func (s *MemoryStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string)
	if e := s.live(key); e != nil {
		for k, v := range e.hash {
			out[k] = v
		}
	}
	return out, nil
}

func (s *MemoryStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.ensure(key)
	if e.hash == nil {
		e.hash = make(map[string]string)
	}
	for k, v := range fields {
		e.hash[k] = v
	}
	return nil
}

func (s *MemoryStore) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.ensure(key)
	if e.hash == nil {
		e.hash = make(map[string]string)
	}
	n, err := parseIntOrZero(e.hash[field])
	if err != nil {
		return 0, err
	}
	n += delta
	e.hash[field] = strconv.FormatInt(n, 10)
	return n, nil
}

func (s *MemoryStore) SAdd(ctx context.Context, key string, members ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.ensure(key)
	if e.set == nil {
		e.set = make(map[string]struct{})
	}
	var added int64
	for _, m := range members {
		if _, ok := e.set[m]; !ok {
			e.set[m] = struct{}{}
			added++
		}
	}
	return added, nil
}

func (s *MemoryStore) SRem(ctx context.Context, key string, members ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(key)
	if e == nil || e.set == nil {
		return 0, nil
	}
	var removed int64
	for _, m := range members {
		if _, ok := e.set[m]; ok {
			delete(e.set, m)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) SIsMember(ctx context.Context, key, member string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(key)
	if e == nil || e.set == nil {
		return false, nil
	}
	_, ok := e.set[member]
	return ok, nil
}

func (s *MemoryStore) SCard(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(key)
	if e == nil {
		return 0, nil
	}
	return int64(len(e.set)), nil
}

func (s *MemoryStore) SMembers(ctx context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(key)
	if e == nil {
		return nil, nil
	}
	out := make([]string, 0, len(e.set))
	for m := range e.set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.ensure(key)
	if e.zset == nil {
		e.zset = make(map[string]float64)
	}
	e.zset[member] = score
	return nil
}

func (s *MemoryStore) ZIncrBy(ctx context.Context, key string, delta float64, member string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.ensure(key)
	if e.zset == nil {
		e.zset = make(map[string]float64)
	}
	e.zset[member] += delta
	return e.zset[member], nil
}

func (s *MemoryStore) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	scored, err := s.ZRevRangeWithScores(ctx, key, start, stop)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(scored))
	for i, m := range scored {
		out[i] = m.Member
	}
	return out, nil
}

func (s *MemoryStore) ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(key)
	if e == nil {
		return nil, nil
	}
	all := make([]ScoredMember, 0, len(e.zset))
	for m, sc := range e.zset {
		all = append(all, ScoredMember{Member: m, Score: sc})
	}
	// Highest score first; equal scores in reverse lexical order, matching
	// the remote store's ZREVRANGE ordering.
	sort.Slice(all, func(i, j int) bool {
		if all[i].Score != all[j].Score {
			return all[i].Score > all[j].Score
		}
		return all[i].Member > all[j].Member
	})
	return sliceRange(all, start, stop), nil
}

func (s *MemoryStore) LPush(ctx context.Context, key string, values ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.ensure(key)
	for _, v := range values {
		e.list = append([]string{v}, e.list...)
	}
	return nil
}

func (s *MemoryStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(key)
	if e == nil {
		return nil, nil
	}
	return sliceRange(e.list, start, stop), nil
}

func (s *MemoryStore) LTrim(ctx context.Context, key string, start, stop int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(key)
	if e == nil {
		return nil
	}
	e.list = sliceRange(e.list, start, stop)
	return nil
}

func parseIntOrZero(v string) (int64, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("value is not an integer: %q", v)
	}
	return n, nil
}

// sliceRange applies Redis-style inclusive start/stop indexing, where
// negative indices count back from the end.
func sliceRange[T any](in []T, start, stop int64) []T {
	n := int64(len(in))
	if start < 0 {
		start = n + start
	}
	if stop < 0 {
		stop = n + stop
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return nil
	}
	out := make([]T, stop-start+1)
	copy(out, in[start:stop+1])
	return out
}
