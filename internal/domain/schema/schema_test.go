package schema

import (
	"reflect"
	"testing"

	"github.com/kailas-cloud/querydex/internal/domain/analysis"
)

func TestFieldNames_DerivedWhenEmpty(t *testing.T) {
	tmpl := TemplateContext{
		Fields: map[string]FieldInfo{
			"vendor_name":  {Type: TypeKeyword},
			"total_amount": {Type: TypeNumber},
			"invoice_date": {Type: TypeDate},
		},
	}
	want := []string{"invoice_date", "total_amount", "vendor_name"}
	if got := tmpl.FieldNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("FieldNames = %v, want %v", got, want)
	}

	tmpl.AllFieldNames = []string{"vendor_name"}
	if got := tmpl.FieldNames(); !reflect.DeepEqual(got, []string{"vendor_name"}) {
		t.Errorf("FieldNames = %v, want precomputed list", got)
	}
}

func TestTextFields(t *testing.T) {
	tmpl := TemplateContext{
		Fields: map[string]FieldInfo{
			"description":  {Type: TypeText},
			"vendor_name":  {Type: TypeKeyword},
			"total_amount": {Type: TypeNumber},
			"invoice_date": {Type: TypeDate},
		},
	}
	want := []string{"description", "vendor_name"}
	if got := tmpl.TextFields(); !reflect.DeepEqual(got, want) {
		t.Errorf("TextFields = %v, want %v", got, want)
	}
}

func TestSupports(t *testing.T) {
	tests := []struct {
		ft   FieldType
		agg  analysis.AggregationType
		want bool
	}{
		{TypeNumber, analysis.AggSum, true},
		{TypeNumber, analysis.AggTerms, false},
		{TypeDate, analysis.AggDateHistogram, true},
		{TypeDate, analysis.AggSum, false},
		{TypeKeyword, analysis.AggTerms, true},
		{TypeKeyword, analysis.AggAvg, false},
		{TypeText, analysis.AggCount, true},
		{TypeText, analysis.AggCardinality, false},
		{FieldType("geo"), analysis.AggCount, false},
	}
	for _, tc := range tests {
		if got := Supports(tc.ft, tc.agg); got != tc.want {
			t.Errorf("Supports(%s, %s) = %v, want %v", tc.ft, tc.agg, got, tc.want)
		}
	}
}
