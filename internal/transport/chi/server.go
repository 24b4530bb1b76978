// Package chi is the HTTP transport: routing, request decoding, and the
// domain-error to status-code mapping.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	chirouter "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/querydex/internal/domain"
	"github.com/kailas-cloud/querydex/internal/domain/analysis"
	"github.com/kailas-cloud/querydex/internal/domain/query"
	"github.com/kailas-cloud/querydex/internal/domain/schema"
	"github.com/kailas-cloud/querydex/internal/usecase/answercache"
	"github.com/kailas-cloud/querydex/internal/usecase/compare"
	"github.com/kailas-cloud/querydex/internal/usecase/compile"
	"github.com/kailas-cloud/querydex/internal/usecase/health"
	"github.com/kailas-cloud/querydex/internal/usecase/lineage"
	"github.com/kailas-cloud/querydex/internal/usecase/registry"
	"github.com/kailas-cloud/querydex/internal/usecase/search"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Analyzer classifies query text for the analyze endpoint.
type Analyzer interface {
	Analyze(queryText string, availableFields []string) analysis.QueryAnalysis
}

// TemplateProvider supplies field metadata for a template.
type TemplateProvider interface {
	FieldContext(ctx context.Context, template string) (*schema.TemplateContext, error)
}

// SchemaRefresher reloads template metadata from storage.
type SchemaRefresher interface {
	Refresh(ctx context.Context) error
}

// Server wires the usecases to HTTP handlers.
type Server struct {
	analyzer      Analyzer
	compiler      *compile.Compiler
	search        *search.Service
	compare       *compare.Service
	registry      *registry.Registry
	cache         *answercache.Cache
	health        *health.Service
	templates     TemplateProvider
	schemas       SchemaRefresher
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. templates and schemas may be nil.
func NewServer(
	analyzer Analyzer,
	compiler *compile.Compiler,
	searchSvc *search.Service,
	compareSvc *compare.Service,
	reg *registry.Registry,
	cache *answercache.Cache,
	healthSvc *health.Service,
	templates TemplateProvider,
	schemas SchemaRefresher,
	logger *zap.Logger,
) *Server {
	s := &Server{
		analyzer:  analyzer,
		compiler:  compiler,
		search:    searchSvc,
		compare:   compareSvc,
		registry:  reg,
		cache:     cache,
		health:    healthSvc,
		templates: templates,
		schemas:   schemas,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrDuplicateAlias, http.StatusConflict, codeDuplicateAlias),
		sentinelHandler(domain.ErrSystemMapping, http.StatusForbidden, codeSystemMapping),
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrTemplateUnknown, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrSearchBackend, http.StatusBadGateway, codeBackendError),
		sentinelHandler(domain.ErrCompilerUnavailable, http.StatusBadGateway, codeCompilerUnavailable),
	}
	return s
}

// Routes registers all API routes on a router.
func (s *Server) Routes(r chirouter.Router) {
	r.Route("/v1", func(r chirouter.Router) {
		r.Post("/query/analyze", s.AnalyzeQuery)
		r.Post("/query/compile", s.CompileQuery)
		r.Post("/search", s.Search)
		r.Post("/compare/periods", s.ComparePeriods)
		r.Post("/compare/groups", s.CompareGroups)

		r.Route("/fields", func(r chirouter.Router) {
			r.Get("/", s.ListFields)
			r.Post("/", s.CreateField)
			r.Post("/refresh", s.RefreshFields)
			r.Route("/{name}", func(r chirouter.Router) {
				r.Get("/", s.GetField)
				r.Put("/", s.UpdateField)
				r.Delete("/", s.DeleteField)
				r.Post("/aliases", s.AddAlias)
				r.Delete("/aliases/{alias}", s.RemoveAlias)
			})
		})

		r.Get("/cache/stats", s.CacheStats)
	})
	r.Get("/healthz", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// AnalyzeQuery handles POST /v1/query/analyze.
func (s *Server) AnalyzeQuery(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "Query is required")
		return
	}

	fields, err := s.templateFields(r.Context(), req.Template)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	qa := s.analyzer.Analyze(req.Query, fields)
	writeJSON(w, http.StatusOK, analysisToDTO(qa))
}

// CompileQuery handles POST /v1/query/compile.
func (s *Server) CompileQuery(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	tmpl, err := s.templateContext(r.Context(), req.Template)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	out, err := s.compiler.Compile(r.Context(), req.Query, tmpl)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	aggs, err := s.compiler.ResolveAggregations(out.Analysis, tmpl)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	lin := lineage.Extract(out.Query)
	writeJSON(w, http.StatusOK, compileResponse{
		Query:        query.ToMap(out.Query),
		Analysis:     analysisToDTO(out.Analysis),
		Escalated:    out.Escalated,
		Degraded:     out.Degraded,
		Aggregations: resolvedAggsToDTO(aggs),
		Lineage:      search.ToLineage(lin),
	})
}

// Search handles POST /v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req search.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	resp, err := s.search.Search(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ComparePeriods handles POST /v1/compare/periods.
func (s *Server) ComparePeriods(w http.ResponseWriter, r *http.Request) {
	var req compare.PeriodsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	res, err := s.compare.ComparePeriods(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CompareGroups handles POST /v1/compare/groups.
func (s *Server) CompareGroups(w http.ResponseWriter, r *http.Request) {
	var req compare.GroupsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	res, err := s.compare.CompareGroups(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListFields handles GET /v1/fields.
func (s *Server) ListFields(w http.ResponseWriter, r *http.Request) {
	mappings := s.registry.ListMappings()
	items := make([]mappingDTO, len(mappings))
	for i, m := range mappings {
		items[i] = mappingToDTO(m)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// GetField handles GET /v1/fields/{name}.
func (s *Server) GetField(w http.ResponseWriter, r *http.Request) {
	name := chirouter.URLParam(r, "name")
	m, ok := s.registry.GetMapping(name)
	if !ok {
		writeError(w, http.StatusNotFound, codeNotFound, "unknown canonical field")
		return
	}
	writeJSON(w, http.StatusOK, mappingToDTO(m))
}

// CreateField handles POST /v1/fields.
func (s *Server) CreateField(w http.ResponseWriter, r *http.Request) {
	var req createMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	m, err := mappingFromCreate(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	if err := s.registry.CreateMapping(r.Context(), m); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mappingToDTO(m))
}

// UpdateField handles PUT /v1/fields/{name}.
func (s *Server) UpdateField(w http.ResponseWriter, r *http.Request) {
	name := chirouter.URLParam(r, "name")

	var req updateMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	err := s.registry.UpdateMapping(
		r.Context(), name, req.FieldMappings, analysis.AggregationType(req.Aggregation))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	m, _ := s.registry.GetMapping(name)
	writeJSON(w, http.StatusOK, mappingToDTO(m))
}

// DeleteField handles DELETE /v1/fields/{name}.
func (s *Server) DeleteField(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.DeleteMapping(r.Context(), chirouter.URLParam(r, "name")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddAlias handles POST /v1/fields/{name}/aliases.
func (s *Server) AddAlias(w http.ResponseWriter, r *http.Request) {
	name := chirouter.URLParam(r, "name")

	var req addAliasRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Alias == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "Alias is required")
		return
	}

	if err := s.registry.AddAlias(r.Context(), name, req.Alias); err != nil {
		s.handleDomainError(w, err)
		return
	}

	m, _ := s.registry.GetMapping(name)
	writeJSON(w, http.StatusOK, mappingToDTO(m))
}

// RemoveAlias handles DELETE /v1/fields/{name}/aliases/{alias}.
func (s *Server) RemoveAlias(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.RemoveAlias(r.Context(), chirouter.URLParam(r, "alias")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RefreshFields handles POST /v1/fields/refresh: reloads the registry and,
// when wired, the template metadata cache.
func (s *Server) RefreshFields(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.RefreshCache(r.Context()); err != nil {
		s.handleDomainError(w, err)
		return
	}
	if s.schemas != nil {
		if err := s.schemas.Refresh(r.Context()); err != nil {
			s.handleDomainError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"refreshed": true})
}

// CacheStats handles GET /v1/cache/stats.
func (s *Server) CacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cache.Stats())
}

// HealthCheck handles GET /healthz.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == health.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) templateContext(ctx context.Context, template string) (*schema.TemplateContext, error) {
	if template == "" || s.templates == nil {
		return nil, nil
	}
	return s.templates.FieldContext(ctx, template)
}

func (s *Server) templateFields(ctx context.Context, template string) ([]string, error) {
	tmpl, err := s.templateContext(ctx, template)
	if err != nil || tmpl == nil {
		return nil, err
	}
	return tmpl.FieldNames(), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrDuplicateAlias,
		domain.ErrSystemMapping,
		domain.ErrValidation,
		domain.ErrNotFound,
		domain.ErrTemplateUnknown,
		domain.ErrUnresolvedField,
		domain.ErrSearchBackend,
		domain.ErrCompilerUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
