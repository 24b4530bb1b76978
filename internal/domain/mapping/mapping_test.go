package mapping

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/kailas-cloud/querydex/internal/domain/analysis"
)

func TestNew_Valid(t *testing.T) {
	m, err := New("amount",
		map[string]string{"invoices": "total_amount"},
		analysis.AggSum,
		[]string{"total", "cost"},
		false,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.CanonicalName() != "amount" {
		t.Errorf("CanonicalName = %q", m.CanonicalName())
	}
	if !m.IsActive() {
		t.Error("new mapping must be active")
	}
	if m.IsSystem() {
		t.Error("IsSystem = true, want false")
	}
	if f, ok := m.FieldFor("invoices"); !ok || f != "total_amount" {
		t.Errorf("FieldFor(invoices) = %q, %v", f, ok)
	}
	if got, want := m.Aliases(), []string{"cost", "total"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Aliases = %v, want %v", got, want)
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		run     func() error
	}{
		{"empty name", func() error {
			_, err := New("", nil, "", nil, false)
			return err
		}},
		{"empty alias", func() error {
			_, err := New("amount", nil, "", []string{""}, false)
			return err
		}},
		{"alias shadows name", func() error {
			_, err := New("amount", nil, "", []string{"amount"}, false)
			return err
		}},
		{"empty template in mapping", func() error {
			_, err := New("amount", map[string]string{"": "f"}, "", nil, false)
			return err
		}},
		{"empty field in mapping", func() error {
			_, err := New("amount", map[string]string{"t": ""}, "", nil, false)
			return err
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.run() == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNew_TooManyAliases(t *testing.T) {
	aliases := make([]string, MaxAliases+1)
	for i := range aliases {
		aliases[i] = fmt.Sprintf("alias%d", i)
	}

	if _, err := New("amount", nil, "", aliases, false); err == nil {
		t.Fatal("expected error for too many aliases")
	}
}

func TestAllFields_Deduplicated(t *testing.T) {
	m, _ := New("amount", map[string]string{
		"invoices":  "total_amount",
		"contracts": "total_amount",
		"receipts":  "sum_total",
	}, analysis.AggSum, nil, false)

	got := m.AllFields()
	want := []string{"sum_total", "total_amount"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AllFields = %v, want %v", got, want)
	}
}

func TestWithAlias(t *testing.T) {
	m, _ := New("amount", nil, "", []string{"total"}, false)

	updated, err := m.WithAlias("cost")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated.HasAlias("cost") {
		t.Error("updated mapping missing new alias")
	}
	if m.HasAlias("cost") {
		t.Error("original mapping mutated")
	}
}

func TestWithAlias_Invalid(t *testing.T) {
	m, _ := New("amount", nil, "", nil, false)

	if _, err := m.WithAlias(""); err == nil {
		t.Error("expected error for empty alias")
	}
	if _, err := m.WithAlias("amount"); err == nil {
		t.Error("expected error for alias shadowing canonical name")
	}
}

func TestWithoutAlias(t *testing.T) {
	m, _ := New("amount", nil, "", []string{"total", "cost"}, false)

	updated := m.WithoutAlias("total")
	if updated.HasAlias("total") {
		t.Error("alias still present after removal")
	}
	if !updated.HasAlias("cost") {
		t.Error("unrelated alias removed")
	}
	if !m.HasAlias("total") {
		t.Error("original mapping mutated")
	}
}

func TestWithFieldMappings(t *testing.T) {
	m, _ := New("amount", map[string]string{"invoices": "old"}, analysis.AggSum, nil, false)

	updated, err := m.WithFieldMappings(map[string]string{"invoices": "new"}, analysis.AggAvg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f, _ := updated.FieldFor("invoices"); f != "new" {
		t.Errorf("FieldFor = %q, want new", f)
	}
	if updated.Aggregation() != analysis.AggAvg {
		t.Errorf("Aggregation = %s, want avg", updated.Aggregation())
	}
	if f, _ := m.FieldFor("invoices"); f != "old" {
		t.Error("original mapping mutated")
	}
}

func TestWithFieldMappings_KeepsAggregationWhenEmpty(t *testing.T) {
	m, _ := New("amount", nil, analysis.AggSum, nil, false)

	updated, err := m.WithFieldMappings(map[string]string{"t": "f"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Aggregation() != analysis.AggSum {
		t.Errorf("Aggregation = %s, want sum", updated.Aggregation())
	}
}

func TestDeactivated(t *testing.T) {
	m, _ := New("amount", nil, "", nil, false)

	deleted := m.Deactivated()
	if deleted.IsActive() {
		t.Error("deactivated mapping still active")
	}
	if !m.IsActive() {
		t.Error("original mapping mutated")
	}
}

func TestReconstruct(t *testing.T) {
	m := Reconstruct("date", map[string]string{"invoices": "invoice_date"},
		analysis.AggDateHistogram, []string{"when"}, true, false)

	if !m.IsSystem() {
		t.Error("IsSystem = false, want true")
	}
	if m.IsActive() {
		t.Error("IsActive = true, want false")
	}
	if !m.HasAlias("when") {
		t.Error("missing alias")
	}
}
