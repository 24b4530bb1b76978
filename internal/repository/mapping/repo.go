// Package mapping persists canonical field mappings as hashes in the
// key-value store.
package mapping

import (
	"context"
	"fmt"
	"sort"

	"github.com/kailas-cloud/querydex/internal/db"
	dommap "github.com/kailas-cloud/querydex/internal/domain/mapping"
)

// store is the consumer interface for mapping persistence (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo implements usecase/registry.Repository.
type Repo struct {
	store     store
	keyPrefix string
}

// New creates a mapping repository. keyPrefix namespaces every key, e.g.
// "querydex:".
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix}
}

// LoadAll returns every stored mapping, soft-deleted ones included, sorted
// by canonical name.
func (r *Repo) LoadAll(ctx context.Context) ([]dommap.Mapping, error) {
	keys, err := r.store.Scan(ctx, r.key("*"))
	if err != nil {
		return nil, fmt.Errorf("scan mappings: %w", err)
	}
	if len(keys) == 0 {
		return []dommap.Mapping{}, nil
	}

	results, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi mappings: %w", err)
	}

	mappings := make([]dommap.Mapping, 0, len(results))
	for i, h := range results {
		if len(h) == 0 {
			continue
		}
		m, err := mappingFromHash(h)
		if err != nil {
			return nil, fmt.Errorf("parse mapping %s: %w", keys[i], err)
		}
		mappings = append(mappings, m)
	}

	sort.Slice(mappings, func(i, j int) bool {
		return mappings[i].CanonicalName() < mappings[j].CanonicalName()
	})
	return mappings, nil
}

// Save upserts one mapping. Soft deletes arrive here as is_active=false
// writes, so history survives a delete.
func (r *Repo) Save(ctx context.Context, m dommap.Mapping) error {
	h, err := mappingToHash(m)
	if err != nil {
		return err
	}
	if err := r.store.HSet(ctx, r.key(m.CanonicalName()), h); err != nil {
		return fmt.Errorf("hset mapping %s: %w", m.CanonicalName(), err)
	}
	return nil
}

// Seed writes the system mappings that do not exist yet in one pipelined
// round-trip. Existing keys are left untouched so operator edits survive
// restarts.
func (r *Repo) Seed(ctx context.Context, mappings []dommap.Mapping) (int, error) {
	items := make([]db.HashSetItem, 0, len(mappings))
	for _, m := range mappings {
		exists, err := r.store.Exists(ctx, r.key(m.CanonicalName()))
		if err != nil {
			return 0, fmt.Errorf("check mapping %s: %w", m.CanonicalName(), err)
		}
		if exists {
			continue
		}
		h, err := mappingToHash(m)
		if err != nil {
			return 0, err
		}
		items = append(items, db.HashSetItem{Key: r.key(m.CanonicalName()), Fields: h})
	}
	if len(items) == 0 {
		return 0, nil
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return 0, fmt.Errorf("seed mappings: %w", err)
	}
	return len(items), nil
}

func (r *Repo) key(name string) string {
	return fmt.Sprintf("%smapping:%s", r.keyPrefix, name)
}
