package resolve

import (
	"errors"
	"reflect"
	"testing"

	"github.com/kailas-cloud/querydex/internal/domain"
	"github.com/kailas-cloud/querydex/internal/domain/schema"
)

func invoiceTemplate() *schema.TemplateContext {
	return &schema.TemplateContext{
		Name: "invoices",
		Fields: map[string]schema.FieldInfo{
			"invoice_id":   {Type: schema.TypeKeyword},
			"vendor_name":  {Type: schema.TypeKeyword},
			"total_amount": {Type: schema.TypeNumber},
			"invoice_date": {Type: schema.TypeDate},
			"created":      {Type: schema.TypeDate},
			"status":       {Type: schema.TypeKeyword},
		},
	}
}

func TestResolve_LiteralFieldWins(t *testing.T) {
	reg := newStubRegistry(mustMapping("total_amount",
		map[string]string{"invoices": "somewhere_else"}, nil))
	r := New(reg)

	got := r.Resolve("total_amount", invoiceTemplate())
	if !reflect.DeepEqual(got, []string{"total_amount"}) {
		t.Errorf("Resolve = %v, want literal field", got)
	}
}

func TestResolve_RegistryNameForTemplate(t *testing.T) {
	reg := newStubRegistry(mustMapping("amount",
		map[string]string{"invoices": "total_amount", "contracts": "contract_value"}, nil))
	r := New(reg)

	got := r.Resolve("amount", invoiceTemplate())
	if !reflect.DeepEqual(got, []string{"total_amount"}) {
		t.Errorf("Resolve = %v, want [total_amount]", got)
	}
}

func TestResolve_RegistryAlias(t *testing.T) {
	reg := newStubRegistry(mustMapping("amount",
		map[string]string{"invoices": "total_amount"}, []string{"spend"}))
	r := New(reg)

	got := r.Resolve("spend", invoiceTemplate())
	if !reflect.DeepEqual(got, []string{"total_amount"}) {
		t.Errorf("Resolve = %v, want [total_amount]", got)
	}
}

func TestResolve_AllFieldsWhenTemplateUnbound(t *testing.T) {
	reg := newStubRegistry(mustMapping("amount",
		map[string]string{"contracts": "contract_value", "receipts": "total"}, nil))
	r := New(reg)

	got := r.Resolve("amount", invoiceTemplate())
	want := []string{"contract_value", "total"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve = %v, want %v", got, want)
	}
}

func TestResolve_InferredCategoryHitsRegistry(t *testing.T) {
	reg := newStubRegistry(mustMapping("amount",
		map[string]string{"invoices": "total_amount"}, nil))
	r := New(reg)

	// "cost" has no registry entry of its own but infers the amount
	// category, which does.
	got := r.Resolve("cost", invoiceTemplate())
	if !reflect.DeepEqual(got, []string{"total_amount"}) {
		t.Errorf("Resolve = %v, want [total_amount]", got)
	}
}

func TestResolve_PatternInferenceOverTemplateFields(t *testing.T) {
	r := New(newStubRegistry())

	got := r.Resolve("vendor", invoiceTemplate())
	if !reflect.DeepEqual(got, []string{"vendor_name"}) {
		t.Errorf("Resolve = %v, want [vendor_name]", got)
	}
}

func TestResolve_DateCategoryIncludesTypedFields(t *testing.T) {
	r := New(newStubRegistry())

	// "created" carries no date keyword in its name; its declared type
	// pulls it into the date category anyway.
	got := r.Resolve("when", invoiceTemplate())
	want := []string{"created", "invoice_date"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve = %v, want %v", got, want)
	}
}

func TestResolve_NothingFits(t *testing.T) {
	r := New(newStubRegistry())

	if got := r.Resolve("frobnicator", invoiceTemplate()); got != nil {
		t.Errorf("Resolve = %v, want nil", got)
	}
	if got := r.Resolve("", invoiceTemplate()); got != nil {
		t.Errorf("Resolve(empty) = %v, want nil", got)
	}
}

func TestResolve_NilTemplate(t *testing.T) {
	reg := newStubRegistry(mustMapping("amount",
		map[string]string{"invoices": "total_amount"}, nil))
	r := New(reg)

	got := r.Resolve("amount", nil)
	if !reflect.DeepEqual(got, []string{"total_amount"}) {
		t.Errorf("Resolve = %v, want all mapped fields", got)
	}

	// Inference without a template has nothing to match against.
	if got := r.Resolve("vendor", nil); got != nil {
		t.Errorf("Resolve(vendor, nil) = %v, want nil", got)
	}
}

func TestResolveStrict(t *testing.T) {
	r := New(newStubRegistry())

	if _, err := r.ResolveStrict("vendor", invoiceTemplate()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	_, err := r.ResolveStrict("frobnicator", invoiceTemplate())
	if !errors.Is(err, domain.ErrUnresolvedField) {
		t.Errorf("error = %v, want ErrUnresolvedField", err)
	}
}

func TestInferCategory(t *testing.T) {
	tests := []struct {
		token string
		want  string
		ok    bool
	}{
		{"total", "amount", true},
		{"price", "amount", true},
		{"vendor", "entity_name", true},
		{"customer_id", "entity_name", true},
		{"start_date", "start_date", true},
		{"effective", "start_date", true},
		{"due", "end_date", true},
		{"expiration", "end_date", true},
		{"when", "date", true},
		{"state", "status", true},
		{"frobnicator", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.token, func(t *testing.T) {
			got, ok := InferCategory(tc.token)
			if got != tc.want || ok != tc.ok {
				t.Errorf("InferCategory(%q) = %q, %v; want %q, %v",
					tc.token, got, ok, tc.want, tc.ok)
			}
		})
	}
}
