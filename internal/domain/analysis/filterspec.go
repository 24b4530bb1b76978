package analysis

import "fmt"

// FilterKind discriminates the FilterSpec union.
type FilterKind string

// Filter kinds.
const (
	KindRange     FilterKind = "range"
	KindDateRange FilterKind = "date_range"
	KindTerm      FilterKind = "term"
	KindPhrase    FilterKind = "phrase"
)

// DateKeyword is a relative date range from the fixed vocabulary.
type DateKeyword string

// Relative date range keywords.
const (
	DateToday       DateKeyword = "today"
	DateYesterday   DateKeyword = "yesterday"
	DateThisWeek    DateKeyword = "this_week"
	DateThisMonth   DateKeyword = "this_month"
	DateThisYear    DateKeyword = "this_year"
	DateLastWeek    DateKeyword = "last_week"
	DateLastMonth   DateKeyword = "last_month"
	DateLastQuarter DateKeyword = "last_quarter"
	DateLastYear    DateKeyword = "last_year"
	DateLastNDays   DateKeyword = "last_n_days"
)

// FilterSpec is a single extracted filter. The field may hold a semantic
// token ("amount", "date") resolved later by the field resolver.
type FilterSpec struct {
	kind    FilterKind
	field   string
	gte     *float64
	lte     *float64
	keyword DateKeyword
	days    int
	gteDate string
	lteDate string
	value   string
}

// NewRangeFilter creates a numeric range filter. At least one bound required.
func NewRangeFilter(field string, gte, lte *float64) (FilterSpec, error) {
	if field == "" {
		return FilterSpec{}, fmt.Errorf("range filter field is required")
	}
	if gte == nil && lte == nil {
		return FilterSpec{}, fmt.Errorf("range filter needs at least one bound")
	}
	return FilterSpec{kind: KindRange, field: field, gte: gte, lte: lte}, nil
}

// NewDateKeywordFilter creates a date range filter from a relative keyword.
// days is only meaningful for DateLastNDays.
func NewDateKeywordFilter(field string, kw DateKeyword, days int) (FilterSpec, error) {
	if field == "" {
		return FilterSpec{}, fmt.Errorf("date filter field is required")
	}
	if kw == "" {
		return FilterSpec{}, fmt.Errorf("date keyword is required")
	}
	if kw == DateLastNDays && days <= 0 {
		return FilterSpec{}, fmt.Errorf("last_n_days requires a positive day count")
	}
	return FilterSpec{kind: KindDateRange, field: field, keyword: kw, days: days}, nil
}

// NewDateBoundsFilter creates a date range filter with explicit ISO bounds.
func NewDateBoundsFilter(field, gte, lte string) (FilterSpec, error) {
	if field == "" {
		return FilterSpec{}, fmt.Errorf("date filter field is required")
	}
	if gte == "" && lte == "" {
		return FilterSpec{}, fmt.Errorf("date filter needs at least one bound")
	}
	return FilterSpec{kind: KindDateRange, field: field, gteDate: gte, lteDate: lte}, nil
}

// NewTermFilter creates an exact term filter.
func NewTermFilter(field, value string) (FilterSpec, error) {
	if field == "" {
		return FilterSpec{}, fmt.Errorf("term filter field is required")
	}
	if value == "" {
		return FilterSpec{}, fmt.Errorf("term value is required for field %q", field)
	}
	return FilterSpec{kind: KindTerm, field: field, value: value}, nil
}

// NewPhraseFilter creates an exact phrase filter over the content field.
func NewPhraseFilter(value string) (FilterSpec, error) {
	if value == "" {
		return FilterSpec{}, fmt.Errorf("phrase value is required")
	}
	return FilterSpec{kind: KindPhrase, value: value}, nil
}

// Kind returns the filter discriminator.
func (f FilterSpec) Kind() FilterKind { return f.kind }

// Field returns the (possibly semantic) field token.
func (f FilterSpec) Field() string { return f.field }

// GTE returns the numeric lower bound.
func (f FilterSpec) GTE() *float64 { return f.gte }

// LTE returns the numeric upper bound.
func (f FilterSpec) LTE() *float64 { return f.lte }

// Keyword returns the relative date keyword.
func (f FilterSpec) Keyword() DateKeyword { return f.keyword }

// Days returns the day count for last_n_days keywords.
func (f FilterSpec) Days() int { return f.days }

// DateBounds returns the explicit ISO date bounds.
func (f FilterSpec) DateBounds() (gte, lte string) { return f.gteDate, f.lteDate }

// Value returns the term or phrase value.
func (f FilterSpec) Value() string { return f.value }

// String renders a stable representation used in cache keys.
func (f FilterSpec) String() string {
	switch f.kind {
	case KindRange:
		gte, lte := "", ""
		if f.gte != nil {
			gte = fmt.Sprintf("%g", *f.gte)
		}
		if f.lte != nil {
			lte = fmt.Sprintf("%g", *f.lte)
		}
		return fmt.Sprintf("range:%s:%s:%s", f.field, gte, lte)
	case KindDateRange:
		if f.keyword != "" {
			return fmt.Sprintf("date:%s:%s:%d", f.field, f.keyword, f.days)
		}
		return fmt.Sprintf("date:%s:%s:%s", f.field, f.gteDate, f.lteDate)
	case KindTerm:
		return fmt.Sprintf("term:%s:%s", f.field, f.value)
	case KindPhrase:
		return fmt.Sprintf("phrase:%s", f.value)
	}
	return ""
}

// AggregationType names a supported aggregation.
type AggregationType string

// Aggregation types.
const (
	AggSum           AggregationType = "sum"
	AggAvg           AggregationType = "avg"
	AggCount         AggregationType = "count"
	AggCardinality   AggregationType = "cardinality"
	AggMin           AggregationType = "min"
	AggMax           AggregationType = "max"
	AggTerms         AggregationType = "terms"
	AggDateHistogram AggregationType = "date_histogram"
)

// AggregationSpec is a detected aggregation request. The field may be a
// semantic token resolved before execution.
type AggregationSpec struct {
	Field string
	Type  AggregationType
}
