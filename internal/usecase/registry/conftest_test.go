package registry

import (
	"context"

	"github.com/kailas-cloud/querydex/internal/domain/analysis"
	"github.com/kailas-cloud/querydex/internal/domain/mapping"
)

// mockRepo records saves and serves a fixed load result.
type mockRepo struct {
	stored  []mapping.Mapping
	loadErr error
	saveErr error
	saved   []mapping.Mapping
}

func (m *mockRepo) LoadAll(_ context.Context) ([]mapping.Mapping, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.stored, nil
}

func (m *mockRepo) Save(_ context.Context, mp mapping.Mapping) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, mp)
	return nil
}

func (m *mockRepo) lastSaved() (mapping.Mapping, bool) {
	if len(m.saved) == 0 {
		return mapping.Mapping{}, false
	}
	return m.saved[len(m.saved)-1], true
}

func mustMapping(
	name string, fields map[string]string, agg analysis.AggregationType,
	aliases []string, system bool,
) mapping.Mapping {
	m, err := mapping.New(name, fields, agg, aliases, system)
	if err != nil {
		panic(err)
	}
	return m
}
