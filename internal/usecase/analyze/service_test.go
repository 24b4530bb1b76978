package analyze

import (
	"reflect"
	"testing"

	"github.com/kailas-cloud/querydex/internal/domain/analysis"
)

func newAnalyzer() *Analyzer {
	return New(DefaultConfig())
}

func TestAnalyze_EmptyQuery(t *testing.T) {
	qa := newAnalyzer().Analyze("", nil)

	if qa.Intent() != analysis.IntentRetrieve {
		t.Errorf("Intent = %s, want retrieve", qa.Intent())
	}
	if qa.Confidence() != 0 {
		t.Errorf("Confidence = %v, want 0", qa.Confidence())
	}
}

func TestAnalyze_OverAmount(t *testing.T) {
	qa := newAnalyzer().Analyze("invoices over $1000", nil)

	if qa.Intent() != analysis.IntentFilter {
		t.Errorf("Intent = %s, want filter", qa.Intent())
	}

	filters := qa.Filters()
	if len(filters) != 1 {
		t.Fatalf("len(Filters) = %d, want 1", len(filters))
	}
	f := filters[0]
	if f.Kind() != analysis.KindRange || f.Field() != "amount" {
		t.Errorf("filter = %s on %s", f.Kind(), f.Field())
	}
	if f.GTE() == nil || *f.GTE() != 1000 {
		t.Errorf("GTE = %v, want 1000", f.GTE())
	}
	if f.LTE() != nil {
		t.Errorf("LTE = %v, want nil", f.LTE())
	}

	if got, want := qa.Terms(), []string{"invoices"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Terms = %v, want %v", got, want)
	}
}

func TestAnalyze_UnderAmount(t *testing.T) {
	qa := newAnalyzer().Analyze("contracts under 500", nil)

	filters := qa.Filters()
	if len(filters) != 1 {
		t.Fatalf("len(Filters) = %d, want 1", len(filters))
	}
	if filters[0].LTE() == nil || *filters[0].LTE() != 500 {
		t.Errorf("LTE = %v, want 500", filters[0].LTE())
	}
	if filters[0].GTE() != nil {
		t.Errorf("GTE = %v, want nil", filters[0].GTE())
	}
}

func TestAnalyze_BetweenAmounts(t *testing.T) {
	qa := newAnalyzer().Analyze("invoices between $1,000 and $5,000", nil)

	filters := qa.Filters()
	if len(filters) != 1 {
		t.Fatalf("len(Filters) = %d, want 1", len(filters))
	}
	f := filters[0]
	if f.GTE() == nil || *f.GTE() != 1000 {
		t.Errorf("GTE = %v, want 1000", f.GTE())
	}
	if f.LTE() == nil || *f.LTE() != 5000 {
		t.Errorf("LTE = %v, want 5000", f.LTE())
	}
}

func TestAnalyze_DateKeywords(t *testing.T) {
	tests := []struct {
		query string
		want  analysis.DateKeyword
	}{
		{"invoices from last week", analysis.DateLastWeek},
		{"invoices from last month", analysis.DateLastMonth},
		{"reports this year", analysis.DateThisYear},
		{"deliveries yesterday", analysis.DateYesterday},
	}

	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			qa := newAnalyzer().Analyze(tc.query, nil)

			var found bool
			for _, f := range qa.Filters() {
				if f.Kind() == analysis.KindDateRange && f.Keyword() == tc.want {
					found = true
				}
			}
			if !found {
				t.Errorf("no date filter with keyword %s in %v", tc.want, qa.Filters())
			}
		})
	}
}

func TestAnalyze_LastNDays(t *testing.T) {
	qa := newAnalyzer().Analyze("invoices from the past 30 days", nil)

	filters := qa.Filters()
	if len(filters) != 1 {
		t.Fatalf("len(Filters) = %d, want 1", len(filters))
	}
	if filters[0].Keyword() != analysis.DateLastNDays || filters[0].Days() != 30 {
		t.Errorf("filter = %s/%d, want last_n_days/30", filters[0].Keyword(), filters[0].Days())
	}
}

func TestAnalyze_IsoDateBounds(t *testing.T) {
	qa := newAnalyzer().Analyze("invoices from 2026-01-01 to 2026-03-31", nil)

	filters := qa.Filters()
	if len(filters) != 1 {
		t.Fatalf("len(Filters) = %d, want 1", len(filters))
	}
	gte, lte := filters[0].DateBounds()
	if gte != "2026-01-01" || lte != "2026-03-31" {
		t.Errorf("bounds = [%s, %s]", gte, lte)
	}
}

func TestAnalyze_StatusTerm(t *testing.T) {
	qa := newAnalyzer().Analyze("unpaid invoices", nil)

	var found bool
	for _, f := range qa.Filters() {
		if f.Kind() == analysis.KindTerm && f.Field() == "status" && f.Value() == "unpaid" {
			found = true
		}
	}
	if !found {
		t.Errorf("no status term filter in %v", qa.Filters())
	}
}

func TestAnalyze_QuotedPhrase(t *testing.T) {
	qa := newAnalyzer().Analyze(`"acme corporation"`, nil)

	if qa.QueryType() != analysis.TypeExact {
		t.Errorf("QueryType = %s, want exact", qa.QueryType())
	}
	filters := qa.Filters()
	if len(filters) != 1 || filters[0].Kind() != analysis.KindPhrase {
		t.Fatalf("Filters = %v, want one phrase", filters)
	}
	if filters[0].Value() != "acme corporation" {
		t.Errorf("Value = %q", filters[0].Value())
	}
}

func TestAnalyze_Aggregations(t *testing.T) {
	tests := []struct {
		query     string
		wantType  analysis.AggregationType
		wantField string
	}{
		{"total amount of invoices", analysis.AggSum, "amount"},
		{"average invoice amount", analysis.AggAvg, "amount"},
		{"how many invoices", analysis.AggCount, ""},
		{"unique vendors", analysis.AggCardinality, "entity_name"},
	}

	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			qa := newAnalyzer().Analyze(tc.query, nil)

			if qa.Intent() != analysis.IntentAggregate {
				t.Errorf("Intent = %s, want aggregate", qa.Intent())
			}
			var found bool
			for _, a := range qa.Aggregations() {
				if a.Type == tc.wantType && a.Field == tc.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("no %s aggregation on %q in %v", tc.wantType, tc.wantField, qa.Aggregations())
			}
		})
	}
}

func TestAnalyze_CompareIntent(t *testing.T) {
	qa := newAnalyzer().Analyze("this month vs last month spending", nil)

	if qa.Intent() != analysis.IntentCompare {
		t.Errorf("Intent = %s, want compare", qa.Intent())
	}
}

func TestAnalyze_SortDetection(t *testing.T) {
	qa := newAnalyzer().Analyze("most recent invoices", []string{"vendor_name", "invoice_date"})

	sort := qa.Sort()
	if sort == nil {
		t.Fatal("expected sort")
	}
	if sort.Field != "invoice_date" || sort.Direction != analysis.SortDesc {
		t.Errorf("sort = %s %s, want invoice_date desc", sort.Field, sort.Direction)
	}
}

func TestAnalyze_SortOldestAscending(t *testing.T) {
	qa := newAnalyzer().Analyze("oldest contracts", []string{"signed_at", "vendor_name"})

	sort := qa.Sort()
	if sort == nil {
		t.Fatal("expected sort")
	}
	if sort.Field != "signed_at" || sort.Direction != analysis.SortAsc {
		t.Errorf("sort = %s %s, want signed_at asc", sort.Field, sort.Direction)
	}
}

func TestAnalyze_SortDroppedWithoutTimestampField(t *testing.T) {
	// A semantic token must never reach the backend as a sort field.
	if qa := newAnalyzer().Analyze("most recent invoices", nil); qa.Sort() != nil {
		t.Errorf("sort = %+v, want none without a timestamp field", qa.Sort())
	}
	qa := newAnalyzer().Analyze("oldest contracts", []string{"vendor_name", "status"})
	if qa.Sort() != nil {
		t.Errorf("sort = %+v, want none when no field looks like a timestamp", qa.Sort())
	}
}

func TestAnalyze_FullTextFallback(t *testing.T) {
	qa := newAnalyzer().Analyze(
		"documents mentioning cloud migration projects started before budget approval", nil)

	if !qa.RequiresFullText() {
		t.Error("expected full-text requirement for long unstructured query")
	}
	if qa.QueryType() != analysis.TypeFullText {
		t.Errorf("QueryType = %s, want fulltext", qa.QueryType())
	}
}

func TestAnalyze_ShortQueryStaysHybrid(t *testing.T) {
	qa := newAnalyzer().Analyze("acme invoices", nil)

	if qa.RequiresFullText() {
		t.Error("short query must not require full text")
	}
	if qa.QueryType() != analysis.TypeHybrid {
		t.Errorf("QueryType = %s, want hybrid", qa.QueryType())
	}
}

func TestAnalyze_ConfidenceAccumulates(t *testing.T) {
	a := newAnalyzer()

	low := a.Analyze("stuff", nil).Confidence()
	high := a.Analyze("unpaid invoices over $1000 from last month", nil).Confidence()

	if high <= low {
		t.Errorf("confidence %v not above baseline %v", high, low)
	}
}

func TestAnalyze_AmbiguousNumbersPenalized(t *testing.T) {
	a := newAnalyzer()

	qa := a.Analyze("invoices $1000 $5000", nil)

	var hasRange bool
	for _, f := range qa.Filters() {
		if f.Kind() == analysis.KindRange {
			hasRange = true
			if f.GTE() == nil || *f.GTE() != 1000 {
				t.Errorf("GTE = %v, want 1000", f.GTE())
			}
		}
	}
	if !hasRange {
		t.Fatal("expected a range filter for bare numbers")
	}

	clear := a.Analyze("invoices over $1000", nil)
	if qa.Confidence() >= clear.Confidence() {
		t.Errorf("ambiguous confidence %v not below clear %v", qa.Confidence(), clear.Confidence())
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	a := newAnalyzer()
	query := "unpaid invoices over $1000 from last month"

	first := a.Analyze(query, nil)
	second := a.Analyze(query, nil)

	if first.Intent() != second.Intent() || first.Confidence() != second.Confidence() {
		t.Error("same input produced different analyses")
	}
	if !reflect.DeepEqual(first.Filters(), second.Filters()) {
		t.Error("same input produced different filters")
	}
}
