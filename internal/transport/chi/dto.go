package chi

import (
	"fmt"

	"github.com/kailas-cloud/querydex/internal/domain/analysis"
	dommap "github.com/kailas-cloud/querydex/internal/domain/mapping"
	"github.com/kailas-cloud/querydex/internal/usecase/compile"
)

// Error codes returned to clients.
const (
	codeBadRequest          = "bad_request"
	codeUnauthorized        = "unauthorized"
	codeValidationFailed    = "validation_failed"
	codeNotFound            = "not_found"
	codeDuplicateAlias      = "duplicate_alias"
	codeSystemMapping       = "system_mapping_readonly"
	codeBackendError        = "backend_error"
	codeCompilerUnavailable = "compiler_unavailable"
	codeInternalError       = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type analyzeRequest struct {
	Query    string `json:"query"`
	Template string `json:"template,omitempty"`
}

type filterDTO struct {
	Kind    string   `json:"kind"`
	Field   string   `json:"field,omitempty"`
	GTE     *float64 `json:"gte,omitempty"`
	LTE     *float64 `json:"lte,omitempty"`
	DateGTE string   `json:"date_gte,omitempty"`
	DateLTE string   `json:"date_lte,omitempty"`
	Keyword string   `json:"keyword,omitempty"`
	Days    int      `json:"days,omitempty"`
	Value   string   `json:"value,omitempty"`
}

type aggregationDTO struct {
	Field string `json:"field,omitempty"`
	Type  string `json:"type"`
}

type sortDTO struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

type analysisDTO struct {
	Intent           string           `json:"intent"`
	Confidence       float64          `json:"confidence"`
	QueryType        string           `json:"query_type"`
	RequiresFullText bool             `json:"requires_full_text"`
	Filters          []filterDTO      `json:"filters,omitempty"`
	Aggregations     []aggregationDTO `json:"aggregations,omitempty"`
	Sort             *sortDTO         `json:"sort,omitempty"`
	Terms            []string         `json:"terms,omitempty"`
}

type compileResponse struct {
	Query        map[string]any        `json:"query"`
	Analysis     analysisDTO           `json:"analysis"`
	Escalated    bool                  `json:"escalated"`
	Degraded     bool                  `json:"degraded,omitempty"`
	Aggregations []resolvedAggregation `json:"aggregations,omitempty"`
	Lineage      any                   `json:"lineage"`
}

// resolvedAggregation is a concrete per-field aggregation request ready for
// the backend, all semantic tokens expanded.
type resolvedAggregation struct {
	Name  string `json:"name"`
	Field string `json:"field,omitempty"`
	Type  string `json:"type"`
}

type mappingDTO struct {
	CanonicalName string            `json:"canonical_name"`
	FieldMappings map[string]string `json:"field_mappings"`
	Aggregation   string            `json:"aggregation,omitempty"`
	Aliases       []string          `json:"aliases,omitempty"`
	IsSystem      bool              `json:"is_system"`
	IsActive      bool              `json:"is_active"`
}

type createMappingRequest struct {
	CanonicalName string            `json:"canonical_name"`
	FieldMappings map[string]string `json:"field_mappings"`
	Aggregation   string            `json:"aggregation,omitempty"`
	Aliases       []string          `json:"aliases,omitempty"`
}

type updateMappingRequest struct {
	FieldMappings map[string]string `json:"field_mappings"`
	Aggregation   string            `json:"aggregation,omitempty"`
}

type addAliasRequest struct {
	Alias string `json:"alias"`
}

func analysisToDTO(qa analysis.QueryAnalysis) analysisDTO {
	dto := analysisDTO{
		Intent:           string(qa.Intent()),
		Confidence:       qa.Confidence(),
		QueryType:        string(qa.QueryType()),
		RequiresFullText: qa.RequiresFullText(),
		Terms:            qa.Terms(),
	}

	for _, f := range qa.Filters() {
		dto.Filters = append(dto.Filters, filterToDTO(f))
	}
	for _, a := range qa.Aggregations() {
		dto.Aggregations = append(dto.Aggregations, aggregationDTO{
			Field: a.Field,
			Type:  string(a.Type),
		})
	}
	if s := qa.Sort(); s != nil {
		dto.Sort = &sortDTO{Field: s.Field, Direction: string(s.Direction)}
	}
	return dto
}

func filterToDTO(f analysis.FilterSpec) filterDTO {
	dto := filterDTO{
		Kind:  string(f.Kind()),
		Field: f.Field(),
	}
	switch f.Kind() {
	case analysis.KindRange:
		dto.GTE = f.GTE()
		dto.LTE = f.LTE()
	case analysis.KindDateRange:
		dto.Keyword = string(f.Keyword())
		dto.Days = f.Days()
		dto.DateGTE, dto.DateLTE = f.DateBounds()
	case analysis.KindTerm, analysis.KindPhrase:
		dto.Value = f.Value()
	}
	return dto
}

func resolvedAggsToDTO(aggs []compile.Aggregation) []resolvedAggregation {
	if len(aggs) == 0 {
		return nil
	}
	out := make([]resolvedAggregation, len(aggs))
	for i, a := range aggs {
		out[i] = resolvedAggregation{Name: a.Name, Field: a.Field, Type: string(a.Type)}
	}
	return out
}

func mappingToDTO(m dommap.Mapping) mappingDTO {
	return mappingDTO{
		CanonicalName: m.CanonicalName(),
		FieldMappings: m.FieldMappings(),
		Aggregation:   string(m.Aggregation()),
		Aliases:       m.Aliases(),
		IsSystem:      m.IsSystem(),
		IsActive:      m.IsActive(),
	}
}

func mappingFromCreate(req createMappingRequest) (dommap.Mapping, error) {
	m, err := dommap.New(
		req.CanonicalName,
		req.FieldMappings,
		analysis.AggregationType(req.Aggregation),
		req.Aliases,
		false,
	)
	if err != nil {
		return dommap.Mapping{}, fmt.Errorf("build mapping: %w", err)
	}
	return m, nil
}
