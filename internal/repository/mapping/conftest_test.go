package mapping

import (
	"context"
	"sort"
	"strings"

	"github.com/kailas-cloud/querydex/internal/db"
)

// memStore is an in-memory stand-in for the hash store.
type memStore struct {
	hashes     map[string]map[string]string
	err        error
	multiCalls int
}

func newMemStore() *memStore {
	return &memStore{hashes: map[string]map[string]string{}}
}

func (s *memStore) HSet(_ context.Context, key string, fields map[string]string) error {
	if s.err != nil {
		return s.err
	}
	h := s.hashes[key]
	if h == nil {
		h = map[string]string{}
		s.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (s *memStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	s.multiCalls++
	for _, item := range items {
		if err := s.HSet(ctx, item.Key, item.Fields); err != nil {
			return err
		}
	}
	return nil
}

func (s *memStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.hashes[key], nil
}

func (s *memStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	out := make([]map[string]string, 0, len(keys))
	for _, key := range keys {
		h, err := s.HGetAll(ctx, key)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

func (s *memStore) Exists(_ context.Context, key string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	_, ok := s.hashes[key]
	return ok, nil
}

func (s *memStore) Scan(_ context.Context, pattern string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for key := range s.hashes {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
