package resolve

import (
	"github.com/kailas-cloud/querydex/internal/domain/mapping"
)

// stubRegistry serves a fixed set of mappings keyed by canonical name,
// with alias lookup derived from the mappings themselves.
type stubRegistry struct {
	byName map[string]mapping.Mapping
}

func newStubRegistry(mappings ...mapping.Mapping) *stubRegistry {
	s := &stubRegistry{byName: map[string]mapping.Mapping{}}
	for _, m := range mappings {
		s.byName[m.CanonicalName()] = m
	}
	return s
}

func (s *stubRegistry) ResolveCanonicalName(nameOrAlias string) (string, bool) {
	if _, ok := s.byName[nameOrAlias]; ok {
		return nameOrAlias, true
	}
	for name, m := range s.byName {
		if m.HasAlias(nameOrAlias) {
			return name, true
		}
	}
	return "", false
}

func (s *stubRegistry) GetMapping(nameOrAlias string) (mapping.Mapping, bool) {
	canonical, ok := s.ResolveCanonicalName(nameOrAlias)
	if !ok {
		return mapping.Mapping{}, false
	}
	return s.byName[canonical], true
}

func mustMapping(
	name string, fields map[string]string, aliases []string,
) mapping.Mapping {
	m, err := mapping.New(name, fields, "", aliases, false)
	if err != nil {
		panic(err)
	}
	return m
}
