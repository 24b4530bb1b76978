package chi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"

	chirouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/querydex/internal/domain"
	"github.com/kailas-cloud/querydex/internal/domain/analysis"
	dommap "github.com/kailas-cloud/querydex/internal/domain/mapping"
	"github.com/kailas-cloud/querydex/internal/domain/query"
	"github.com/kailas-cloud/querydex/internal/usecase/analyze"
	"github.com/kailas-cloud/querydex/internal/usecase/answercache"
	"github.com/kailas-cloud/querydex/internal/usecase/compare"
	"github.com/kailas-cloud/querydex/internal/usecase/compile"
	"github.com/kailas-cloud/querydex/internal/usecase/health"
	"github.com/kailas-cloud/querydex/internal/usecase/registry"
	"github.com/kailas-cloud/querydex/internal/usecase/resolve"
	"github.com/kailas-cloud/querydex/internal/usecase/search"
)

// memRepo is an in-memory mapping repository.
type memRepo struct {
	byName map[string]dommap.Mapping
}

func newMemRepo(mappings ...dommap.Mapping) *memRepo {
	r := &memRepo{byName: map[string]dommap.Mapping{}}
	for _, m := range mappings {
		r.byName[m.CanonicalName()] = m
	}
	return r
}

func (r *memRepo) LoadAll(_ context.Context) ([]dommap.Mapping, error) {
	out := make([]dommap.Mapping, 0, len(r.byName))
	for _, m := range r.byName {
		out = append(out, m)
	}
	return out, nil
}

func (r *memRepo) Save(_ context.Context, m dommap.Mapping) error {
	r.byName[m.CanonicalName()] = m
	return nil
}

// stubBackend serves one canned execution result for both search and
// comparison paths.
type stubBackend struct {
	result search.ExecuteResult
	err    error
}

func (s *stubBackend) Execute(_ context.Context, _ search.ExecuteRequest) (search.ExecuteResult, error) {
	if s.err != nil {
		return search.ExecuteResult{}, s.err
	}
	return s.result, nil
}

func (s *stubBackend) Aggregate(
	_ context.Context, _ string, _ query.Node, _ []compare.AggregationRequest,
) (map[string]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return map[string]float64{}, nil
}

func (s *stubBackend) AggregateGroups(
	_ context.Context, _ string, _ query.Node, _ string, _ compare.AggregationRequest,
) (map[string]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return map[string]float64{}, nil
}

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(_ context.Context) error { return s.err }

func mustMapping(name string, aliases []string, system bool) dommap.Mapping {
	m, err := dommap.New(name, map[string]string{"invoices": name}, analysis.AggSum, aliases, system)
	if err != nil {
		panic(err)
	}
	return m
}

// newTestServer wires real usecases over in-memory stubs and returns the
// routed handler.
func newTestServer(backend *stubBackend, mappings ...dommap.Mapping) http.Handler {
	logger := zap.NewNop()

	reg := registry.New(newMemRepo(mappings...), nil, logger)
	_ = reg.RefreshCache(context.Background())

	resolver := resolve.New(reg)
	analyzer := analyze.New(analyze.DefaultConfig())
	compiler := compile.New(compile.DefaultConfig(), analyzer, resolver, nil, nil, logger)
	cache := answercache.New(answercache.DefaultConfig(), nil, logger)
	searchSvc := search.New(compiler, backend, nil, nil, cache, logger)
	compareSvc := compare.New(resolver, backend, nil, logger)
	healthSvc := health.New(stubPinger{}, nil, nil)

	srv := NewServer(analyzer, compiler, searchSvc, compareSvc, reg, cache, healthSvc, nil, nil, logger)
	r := chirouter.NewRouter()
	srv.Routes(r)
	return r
}

func doJSON(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func backendErr(msg string) error {
	return fmt.Errorf("%s: %w", msg, domain.ErrSearchBackend)
}
