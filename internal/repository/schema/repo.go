// Package schema serves template field metadata out of the key-value
// store, behind a read cache with explicit refresh.
package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kailas-cloud/querydex/internal/domain"
	domschema "github.com/kailas-cloud/querydex/internal/domain/schema"
)

// store is the consumer interface for template metadata (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// fieldRow is the JSON-serializable representation of a template field.
type fieldRow struct {
	Type    string   `json:"type"`
	Aliases []string `json:"aliases,omitempty"`
	Hints   []string `json:"hints,omitempty"`
}

type snapshot struct {
	templates map[string]*domschema.TemplateContext
}

// Provider caches template metadata. Reads go through an atomic snapshot;
// Refresh rebuilds it from storage.
type Provider struct {
	store     store
	keyPrefix string
	logger    *zap.Logger

	mu    sync.Mutex
	cache atomic.Value
}

// New creates a schema metadata provider with an empty cache; call Refresh
// before serving.
func New(s store, keyPrefix string, logger *zap.Logger) *Provider {
	p := &Provider{store: s, keyPrefix: keyPrefix, logger: logger}
	p.cache.Store(&snapshot{templates: map[string]*domschema.TemplateContext{}})
	return p
}

// Refresh reloads every template from storage and swaps the cache. On
// failure the previous snapshot stays in place.
func (p *Provider) Refresh(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	keys, err := p.store.Scan(ctx, p.key("*"))
	if err != nil {
		return fmt.Errorf("scan templates: %w", err)
	}

	templates := make(map[string]*domschema.TemplateContext, len(keys))
	if len(keys) > 0 {
		results, err := p.store.HGetAllMulti(ctx, keys)
		if err != nil {
			return fmt.Errorf("hgetall multi templates: %w", err)
		}
		for i, h := range results {
			if len(h) == 0 {
				continue
			}
			tmpl, err := templateFromHash(h)
			if err != nil {
				return fmt.Errorf("parse template %s: %w", keys[i], err)
			}
			templates[tmpl.Name] = tmpl
		}
	}

	p.cache.Store(&snapshot{templates: templates})
	p.logger.Info("Template metadata refreshed", zap.Int("templates", len(templates)))
	return nil
}

// SaveTemplate persists template metadata and publishes it to the cache.
func (p *Provider) SaveTemplate(ctx context.Context, tmpl *domschema.TemplateContext) error {
	if tmpl == nil || tmpl.Name == "" {
		return fmt.Errorf("template name is required: %w", domain.ErrValidation)
	}

	rows := make(map[string]fieldRow, len(tmpl.Fields))
	for name, info := range tmpl.Fields {
		rows[name] = fieldRow{
			Type:    string(info.Type),
			Aliases: info.Aliases,
			Hints:   info.Hints,
		}
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("marshal fields for %s: %w", tmpl.Name, err)
	}

	if err := p.store.HSet(ctx, p.key(tmpl.Name), map[string]string{
		"name":        tmpl.Name,
		"fields_json": string(raw),
	}); err != nil {
		return fmt.Errorf("save template %s: %w", tmpl.Name, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	prev := p.snapshot()
	templates := make(map[string]*domschema.TemplateContext, len(prev.templates)+1)
	for name, t := range prev.templates {
		templates[name] = t
	}
	stored := &domschema.TemplateContext{Name: tmpl.Name, Fields: tmpl.Fields}
	stored.AllFieldNames = stored.FieldNames()
	templates[tmpl.Name] = stored
	p.cache.Store(&snapshot{templates: templates})
	return nil
}

// FieldContext returns the field metadata for one template.
func (p *Provider) FieldContext(ctx context.Context, template string) (*domschema.TemplateContext, error) {
	snap := p.snapshot()
	if tmpl, ok := snap.templates[template]; ok {
		return tmpl, nil
	}

	// Cache miss falls through to storage so a freshly created template
	// is usable before the next refresh.
	h, err := p.store.HGetAll(ctx, p.key(template))
	if err != nil {
		return nil, fmt.Errorf("hgetall template %s: %w", template, err)
	}
	if len(h) == 0 {
		return nil, fmt.Errorf("template %q: %w", template, domain.ErrNotFound)
	}
	return templateFromHash(h)
}

// AllTemplates returns every cached template, sorted by name.
func (p *Provider) AllTemplates(_ context.Context) ([]*domschema.TemplateContext, error) {
	snap := p.snapshot()
	out := make([]*domschema.TemplateContext, 0, len(snap.templates))
	for _, tmpl := range snap.templates {
		out = append(out, tmpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CanonicalFieldMap folds the declared per-field aliases across all cached
// templates into alias -> concrete field names, sorted.
func (p *Provider) CanonicalFieldMap(_ context.Context) map[string][]string {
	snap := p.snapshot()
	seen := map[string]map[string]struct{}{}
	for _, tmpl := range snap.templates {
		for name, info := range tmpl.Fields {
			for _, alias := range info.Aliases {
				if seen[alias] == nil {
					seen[alias] = map[string]struct{}{}
				}
				seen[alias][name] = struct{}{}
			}
		}
	}

	out := make(map[string][]string, len(seen))
	for alias, fields := range seen {
		names := make([]string, 0, len(fields))
		for f := range fields {
			names = append(names, f)
		}
		sort.Strings(names)
		out[alias] = names
	}
	return out
}

func (p *Provider) snapshot() *snapshot {
	return p.cache.Load().(*snapshot)
}

func (p *Provider) key(name string) string {
	return fmt.Sprintf("%stemplate:%s", p.keyPrefix, name)
}

// templateFromHash hydrates a TemplateContext from an HGETALL result map.
func templateFromHash(h map[string]string) (*domschema.TemplateContext, error) {
	name := h["name"]
	if name == "" {
		return nil, fmt.Errorf("missing template name")
	}

	fields := map[string]domschema.FieldInfo{}
	if raw := h["fields_json"]; raw != "" {
		var rows map[string]fieldRow
		if err := json.Unmarshal([]byte(raw), &rows); err != nil {
			return nil, fmt.Errorf("unmarshal fields for %s: %w", name, err)
		}
		for fname, row := range rows {
			fields[fname] = domschema.FieldInfo{
				Type:    domschema.FieldType(row.Type),
				Aliases: row.Aliases,
				Hints:   row.Hints,
			}
		}
	}

	tmpl := &domschema.TemplateContext{Name: name, Fields: fields}
	tmpl.AllFieldNames = tmpl.FieldNames()
	return tmpl, nil
}
