package analysis

import "testing"

func f64(v float64) *float64 { return &v }

func TestNewRangeFilter(t *testing.T) {
	f, err := NewRangeFilter("amount", f64(1000), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Kind() != KindRange || f.Field() != "amount" {
		t.Errorf("filter = %s on %s", f.Kind(), f.Field())
	}
	if f.GTE() == nil || *f.GTE() != 1000 {
		t.Errorf("GTE = %v, want 1000", f.GTE())
	}
	if f.LTE() != nil {
		t.Errorf("LTE = %v, want nil", f.LTE())
	}
}

func TestNewRangeFilter_Invalid(t *testing.T) {
	if _, err := NewRangeFilter("", f64(1), nil); err == nil {
		t.Error("expected error for empty field")
	}
	if _, err := NewRangeFilter("amount", nil, nil); err == nil {
		t.Error("expected error for no bounds")
	}
}

func TestNewDateKeywordFilter(t *testing.T) {
	f, err := NewDateKeywordFilter("date", DateLastWeek, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Kind() != KindDateRange || f.Keyword() != DateLastWeek {
		t.Errorf("filter = %s keyword %s", f.Kind(), f.Keyword())
	}
}

func TestNewDateKeywordFilter_LastNDaysNeedsCount(t *testing.T) {
	if _, err := NewDateKeywordFilter("date", DateLastNDays, 0); err == nil {
		t.Fatal("expected error for last_n_days without count")
	}
	f, err := NewDateKeywordFilter("date", DateLastNDays, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Days() != 30 {
		t.Errorf("Days = %d, want 30", f.Days())
	}
}

func TestNewDateBoundsFilter(t *testing.T) {
	f, err := NewDateBoundsFilter("date", "2026-01-01", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gte, lte := f.DateBounds()
	if gte != "2026-01-01" || lte != "" {
		t.Errorf("bounds = [%s, %s]", gte, lte)
	}

	if _, err := NewDateBoundsFilter("date", "", ""); err == nil {
		t.Error("expected error for no bounds")
	}
}

func TestNewTermFilter(t *testing.T) {
	f, err := NewTermFilter("status", "paid")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Value() != "paid" {
		t.Errorf("Value = %q, want paid", f.Value())
	}

	if _, err := NewTermFilter("status", ""); err == nil {
		t.Error("expected error for empty value")
	}
}

func TestFilterSpec_String(t *testing.T) {
	rangeF, _ := NewRangeFilter("amount", f64(100), f64(500))
	dateF, _ := NewDateKeywordFilter("date", DateThisMonth, 0)
	boundsF, _ := NewDateBoundsFilter("date", "2026-01-01", "2026-01-31")
	termF, _ := NewTermFilter("status", "paid")
	phraseF, _ := NewPhraseFilter("exact words")

	tests := []struct {
		f    FilterSpec
		want string
	}{
		{rangeF, "range:amount:100:500"},
		{dateF, "date:date:this_month:0"},
		{boundsF, "date:date:2026-01-01:2026-01-31"},
		{termF, "term:status:paid"},
		{phraseF, "phrase:exact words"},
	}

	for _, tc := range tests {
		if got := tc.f.String(); got != tc.want {
			t.Errorf("String() = %q, want %q", got, tc.want)
		}
	}
}
