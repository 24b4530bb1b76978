// Package compare builds period-over-period and group-over-group
// aggregation requests by composing the field resolver with the search
// execution backend.
package compare

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/querydex/internal/domain"
	"github.com/kailas-cloud/querydex/internal/domain/analysis"
	"github.com/kailas-cloud/querydex/internal/domain/query"
	"github.com/kailas-cloud/querydex/internal/domain/schema"
)

// defaultDateField is the semantic token used when a period comparison
// names no date field.
const defaultDateField = "date"

// PeriodsRequest compares one metric across the current and the preceding
// period. Period is a relative-date keyword ("this_month", "last_week",
// "last_n_days" with Days set).
type PeriodsRequest struct {
	Template  string                   `json:"template"`
	Metric    string                   `json:"metric"`
	Type      analysis.AggregationType `json:"type"`
	DateField string                   `json:"date_field"`
	Period    string                   `json:"period"`
	Days      int                      `json:"days"`
}

// MetricComparison is one field's current-versus-previous result.
type MetricComparison struct {
	Field          string   `json:"field"`
	Current        float64  `json:"current"`
	Previous       float64  `json:"previous"`
	AbsoluteChange float64  `json:"absolute_change"`
	// PercentChange is nil when the previous value is zero.
	PercentChange *float64 `json:"percent_change,omitempty"`
}

// PeriodsResult is the full period comparison.
type PeriodsResult struct {
	Metric      string             `json:"metric"`
	Type        string             `json:"type"`
	CurrentGTE  string             `json:"current_gte"`
	CurrentLTE  string             `json:"current_lte"`
	PreviousGTE string             `json:"previous_gte"`
	PreviousLTE string             `json:"previous_lte"`
	Comparisons []MetricComparison `json:"comparisons"`
}

// GroupsRequest splits one metric by a grouping field.
type GroupsRequest struct {
	Template   string                   `json:"template"`
	Metric     string                   `json:"metric"`
	Type       analysis.AggregationType `json:"type"`
	GroupField string                   `json:"group_field"`
}

// GroupValue is one bucket of a group comparison.
type GroupValue struct {
	Group string  `json:"group"`
	Value float64 `json:"value"`
}

// GroupsResult is the full group comparison, buckets sorted by value
// descending.
type GroupsResult struct {
	Metric string       `json:"metric"`
	Type   string       `json:"type"`
	Field  string       `json:"field"`
	Groups []GroupValue `json:"groups"`
}

// Service runs comparisons. Unresolved semantic fields are hard
// validation errors, never empty results.
type Service struct {
	resolver  FieldResolver
	backend   SearchBackend
	templates TemplateProvider
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a comparison service. templates may be nil when callers
// operate without template metadata.
func New(resolver FieldResolver, backend SearchBackend, templates TemplateProvider, logger *zap.Logger) *Service {
	return &Service{
		resolver:  resolver,
		backend:   backend,
		templates: templates,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the period-resolution clock (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ComparePeriods aggregates the metric over the requested period and the
// period immediately before it, and reports the change per resolved field.
func (s *Service) ComparePeriods(ctx context.Context, req PeriodsRequest) (PeriodsResult, error) {
	if req.Metric == "" {
		return PeriodsResult{}, fmt.Errorf("metric is required: %w", domain.ErrValidation)
	}
	aggType := req.Type
	if aggType == "" {
		aggType = analysis.AggSum
	}

	tmpl, err := s.templateContext(ctx, req.Template)
	if err != nil {
		return PeriodsResult{}, err
	}

	metricFields, err := s.resolver.ResolveStrict(req.Metric, tmpl)
	if err != nil {
		return PeriodsResult{}, fmt.Errorf("metric %q: %w: %w", req.Metric, domain.ErrValidation, err)
	}
	if err := validateAggregation(tmpl, metricFields, aggType); err != nil {
		return PeriodsResult{}, err
	}
	dateToken := req.DateField
	if dateToken == "" {
		dateToken = defaultDateField
	}
	dateFields, err := s.resolver.ResolveStrict(dateToken, tmpl)
	if err != nil {
		return PeriodsResult{}, fmt.Errorf("date field %q: %w: %w", dateToken, domain.ErrValidation, err)
	}

	curGTE, curLTE, err := analysis.DateBounds(analysis.DateKeyword(req.Period), req.Days, s.now())
	if err != nil {
		return PeriodsResult{}, fmt.Errorf("period %q: %w: %w", req.Period, domain.ErrValidation, err)
	}
	prevGTE, prevLTE, err := previousBounds(analysis.DateKeyword(req.Period), curGTE, curLTE)
	if err != nil {
		return PeriodsResult{}, fmt.Errorf("period %q: %w", req.Period, err)
	}

	aggs := metricAggs(metricFields, aggType)

	current, err := s.backend.Aggregate(ctx, req.Template, dateRangeNode(dateFields, curGTE, curLTE), aggs)
	if err != nil {
		return PeriodsResult{}, fmt.Errorf("current period: %w", err)
	}
	previous, err := s.backend.Aggregate(ctx, req.Template, dateRangeNode(dateFields, prevGTE, prevLTE), aggs)
	if err != nil {
		return PeriodsResult{}, fmt.Errorf("previous period: %w", err)
	}

	comparisons := make([]MetricComparison, 0, len(aggs))
	for _, a := range aggs {
		cur := current[a.Name]
		prev := previous[a.Name]
		c := MetricComparison{
			Field:          a.Field,
			Current:        cur,
			Previous:       prev,
			AbsoluteChange: cur - prev,
		}
		if prev != 0 {
			pct := (cur - prev) / prev * 100
			c.PercentChange = &pct
		}
		comparisons = append(comparisons, c)
	}

	return PeriodsResult{
		Metric:      req.Metric,
		Type:        string(aggType),
		CurrentGTE:  curGTE,
		CurrentLTE:  curLTE,
		PreviousGTE: prevGTE,
		PreviousLTE: prevLTE,
		Comparisons: comparisons,
	}, nil
}

// CompareGroups runs a terms split of the metric by the grouping field.
func (s *Service) CompareGroups(ctx context.Context, req GroupsRequest) (GroupsResult, error) {
	if req.Metric == "" || req.GroupField == "" {
		return GroupsResult{}, fmt.Errorf("metric and group_field are required: %w", domain.ErrValidation)
	}
	aggType := req.Type
	if aggType == "" {
		aggType = analysis.AggSum
	}

	tmpl, err := s.templateContext(ctx, req.Template)
	if err != nil {
		return GroupsResult{}, err
	}

	metricFields, err := s.resolver.ResolveStrict(req.Metric, tmpl)
	if err != nil {
		return GroupsResult{}, fmt.Errorf("metric %q: %w: %w", req.Metric, domain.ErrValidation, err)
	}
	if err := validateAggregation(tmpl, metricFields, aggType); err != nil {
		return GroupsResult{}, err
	}
	groupFields, err := s.resolver.ResolveStrict(req.GroupField, tmpl)
	if err != nil {
		return GroupsResult{}, fmt.Errorf("group field %q: %w: %w", req.GroupField, domain.ErrValidation, err)
	}

	// A grouping split carries exactly one metric and one grouping field;
	// ambiguity on either side would silently merge unrelated numbers.
	if len(metricFields) != 1 {
		return GroupsResult{}, fmt.Errorf(
			"metric %q resolves to %d fields: %w", req.Metric, len(metricFields), domain.ErrValidation)
	}
	if len(groupFields) != 1 {
		return GroupsResult{}, fmt.Errorf(
			"group field %q resolves to %d fields: %w", req.GroupField, len(groupFields), domain.ErrValidation)
	}

	metricField := metricFields[0]
	metric := AggregationRequest{
		Name:  fmt.Sprintf("%s_%s", aggType, metricField),
		Field: metricField,
		Type:  aggType,
	}

	values, err := s.backend.AggregateGroups(ctx, req.Template, query.MatchAll{}, groupFields[0], metric)
	if err != nil {
		return GroupsResult{}, err
	}

	groups := make([]GroupValue, 0, len(values))
	for key, v := range values {
		groups = append(groups, GroupValue{Group: key, Value: v})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Value != groups[j].Value {
			return groups[i].Value > groups[j].Value
		}
		return groups[i].Group < groups[j].Group
	})

	return GroupsResult{
		Metric: req.Metric,
		Type:   string(aggType),
		Field:  metricField,
		Groups: groups,
	}, nil
}

func (s *Service) templateContext(ctx context.Context, template string) (*schema.TemplateContext, error) {
	if template == "" || s.templates == nil {
		return nil, nil
	}
	tmpl, err := s.templates.FieldContext(ctx, template)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", template, err)
	}
	return tmpl, nil
}

func metricAggs(fields []string, aggType analysis.AggregationType) []AggregationRequest {
	out := make([]AggregationRequest, 0, len(fields))
	for _, f := range fields {
		out = append(out, AggregationRequest{
			Name:  fmt.Sprintf("%s_%s", aggType, f),
			Field: f,
			Type:  aggType,
		})
	}
	return out
}

// dateRangeNode filters on the date field, expanding multiple candidates
// into a should-disjunction.
func dateRangeNode(fields []string, gte, lte string) query.Node {
	leaf := func(field string) query.Node {
		return query.Range{Field: field, GTE: gte, LTE: lte}
	}
	if len(fields) == 1 {
		return query.Bool{Filter: []query.Node{leaf(fields[0])}}
	}
	should := make([]query.Node, 0, len(fields))
	for _, f := range fields {
		should = append(should, leaf(f))
	}
	return query.Bool{Filter: []query.Node{
		query.Bool{Should: should, MinimumShouldMatch: 1},
	}}
}

// previousBounds returns the closed interval immediately before [gte, lte].
// Month, quarter and year keywords shift by their calendar unit so that the
// period before July is all of June, not a 31-day window ending June 30.
// Everything else shifts back by the interval's own span.
func previousBounds(kw analysis.DateKeyword, gte, lte string) (string, string, error) {
	start, err := time.Parse(analysis.DateLayout, gte)
	if err != nil {
		return "", "", fmt.Errorf("parse gte: %w", err)
	}
	end, err := time.Parse(analysis.DateLayout, lte)
	if err != nil {
		return "", "", fmt.Errorf("parse lte: %w", err)
	}

	prevEnd := start.AddDate(0, 0, -1)
	var prevStart time.Time
	switch kw {
	case analysis.DateThisMonth, analysis.DateLastMonth:
		prevStart = start.AddDate(0, -1, 0)
	case analysis.DateLastQuarter:
		prevStart = start.AddDate(0, -3, 0)
	case analysis.DateThisYear, analysis.DateLastYear:
		prevStart = start.AddDate(-1, 0, 0)
	default:
		span := end.Sub(start) + 24*time.Hour
		prevStart = prevEnd.Add(-span + 24*time.Hour)
	}
	return prevStart.Format(analysis.DateLayout), prevEnd.Format(analysis.DateLayout), nil
}

// validateAggregation rejects aggregation types the field's declared type
// cannot serve, when template metadata is available to check against.
func validateAggregation(tmpl *schema.TemplateContext, fields []string, aggType analysis.AggregationType) error {
	if tmpl == nil {
		return nil
	}
	for _, f := range fields {
		info, ok := tmpl.Fields[f]
		if !ok {
			continue
		}
		if !schema.Supports(info.Type, aggType) {
			return fmt.Errorf("aggregation %s on %s field %q: %w",
				aggType, info.Type, f, domain.ErrValidation)
		}
	}
	return nil
}

