package chi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/kailas-cloud/querydex/internal/usecase/search"
)

func decodeBody(t *testing.T, body *bytes.Buffer, v any) {
	t.Helper()
	if err := json.NewDecoder(body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestAnalyzeQuery(t *testing.T) {
	h := newTestServer(&stubBackend{})

	rr := doJSON(h, http.MethodPost, "/v1/query/analyze",
		`{"query": "invoices over $1000"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp analysisDTO
	decodeBody(t, rr.Body, &resp)
	if resp.Intent != "filter" {
		t.Errorf("intent = %q, want filter", resp.Intent)
	}
	if len(resp.Filters) != 1 || resp.Filters[0].Kind != "range" {
		t.Errorf("filters = %+v, want one range", resp.Filters)
	}
}

func TestAnalyzeQuery_MissingQuery(t *testing.T) {
	h := newTestServer(&stubBackend{})

	rr := doJSON(h, http.MethodPost, "/v1/query/analyze", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}

	var resp errorResponse
	decodeBody(t, rr.Body, &resp)
	if resp.Code != codeValidationFailed {
		t.Errorf("code = %q, want %s", resp.Code, codeValidationFailed)
	}
}

func TestCompileQuery(t *testing.T) {
	h := newTestServer(&stubBackend{}, mustMapping("amount", []string{"total"}, true))

	rr := doJSON(h, http.MethodPost, "/v1/query/compile",
		`{"query": "invoices over $1000"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp compileResponse
	decodeBody(t, rr.Body, &resp)
	if len(resp.Query) == 0 {
		t.Error("compiled query missing")
	}
	if resp.Escalated {
		t.Error("escalated without an escalator wired")
	}
}

func TestCompileQuery_EmptyQuery(t *testing.T) {
	h := newTestServer(&stubBackend{})

	rr := doJSON(h, http.MethodPost, "/v1/query/compile", `{"query": ""}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestSearch(t *testing.T) {
	backend := &stubBackend{result: search.ExecuteResult{
		Total:     3,
		Documents: []search.Document{{ID: "doc-1", Score: 1.0}},
	}}
	h := newTestServer(backend, mustMapping("amount", nil, true))

	rr := doJSON(h, http.MethodPost, "/v1/search",
		`{"query": "invoices over $1000", "size": 10}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp search.Response
	decodeBody(t, rr.Body, &resp)
	if resp.Total != 3 || len(resp.Documents) != 1 {
		t.Errorf("total = %d, docs = %d", resp.Total, len(resp.Documents))
	}
}

func TestSearch_BackendFailureIs502(t *testing.T) {
	backend := &stubBackend{err: backendErr("backend down")}
	h := newTestServer(backend, mustMapping("amount", nil, true))

	rr := doJSON(h, http.MethodPost, "/v1/search", `{"query": "invoices over $1000"}`)
	if rr.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rr.Code)
	}

	var resp errorResponse
	decodeBody(t, rr.Body, &resp)
	if resp.Code != codeBackendError {
		t.Errorf("code = %q, want %s", resp.Code, codeBackendError)
	}
}

func TestComparePeriods_MissingMetricIs400(t *testing.T) {
	h := newTestServer(&stubBackend{})

	rr := doJSON(h, http.MethodPost, "/v1/compare/periods", `{"period": "last_month"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestComparePeriods(t *testing.T) {
	h := newTestServer(&stubBackend{},
		mustMapping("amount", nil, true), mustMapping("date", nil, true))

	rr := doJSON(h, http.MethodPost, "/v1/compare/periods",
		`{"metric": "amount", "period": "last_month"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
}

func TestFieldCRUD(t *testing.T) {
	h := newTestServer(&stubBackend{})

	rr := doJSON(h, http.MethodPost, "/v1/fields",
		`{"canonical_name": "amount", "field_mappings": {"invoices": "total_amount"}, "aliases": ["total"]}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(h, http.MethodGet, "/v1/fields/total", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}
	var dto mappingDTO
	decodeBody(t, rr.Body, &dto)
	if dto.CanonicalName != "amount" {
		t.Errorf("canonical_name = %q, want amount", dto.CanonicalName)
	}

	rr = doJSON(h, http.MethodPost, "/v1/fields/amount/aliases", `{"alias": "spend"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("add alias status = %d, body = %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(h, http.MethodDelete, "/v1/fields/amount/aliases/spend", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("remove alias status = %d", rr.Code)
	}

	rr = doJSON(h, http.MethodDelete, "/v1/fields/amount", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rr.Code)
	}

	rr = doJSON(h, http.MethodGet, "/v1/fields/amount", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rr.Code)
	}
}

func TestCreateField_DuplicateAliasIs409(t *testing.T) {
	h := newTestServer(&stubBackend{}, mustMapping("amount", []string{"total"}, false))

	rr := doJSON(h, http.MethodPost, "/v1/fields",
		`{"canonical_name": "grand_total", "aliases": ["total"]}`)
	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rr.Code)
	}

	var resp errorResponse
	decodeBody(t, rr.Body, &resp)
	if resp.Code != codeDuplicateAlias {
		t.Errorf("code = %q, want %s", resp.Code, codeDuplicateAlias)
	}
}

func TestDeleteField_SystemIs403(t *testing.T) {
	h := newTestServer(&stubBackend{}, mustMapping("date", nil, true))

	rr := doJSON(h, http.MethodDelete, "/v1/fields/date", "")
	if rr.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rr.Code)
	}

	var resp errorResponse
	decodeBody(t, rr.Body, &resp)
	if resp.Code != codeSystemMapping {
		t.Errorf("code = %q, want %s", resp.Code, codeSystemMapping)
	}
}

func TestListFields(t *testing.T) {
	h := newTestServer(&stubBackend{},
		mustMapping("amount", nil, true), mustMapping("date", nil, true))

	rr := doJSON(h, http.MethodGet, "/v1/fields", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var resp struct {
		Items []mappingDTO `json:"items"`
	}
	decodeBody(t, rr.Body, &resp)
	if len(resp.Items) != 2 {
		t.Errorf("items = %d, want 2", len(resp.Items))
	}
}

func TestRefreshFields(t *testing.T) {
	h := newTestServer(&stubBackend{}, mustMapping("amount", nil, true))

	rr := doJSON(h, http.MethodPost, "/v1/fields/refresh", "")
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
}

func TestCacheStats(t *testing.T) {
	h := newTestServer(&stubBackend{})

	rr := doJSON(h, http.MethodGet, "/v1/cache/stats", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var resp map[string]any
	decodeBody(t, rr.Body, &resp)
	if _, ok := resp["max_size"]; !ok {
		t.Errorf("stats = %v, want max_size", resp)
	}
}

func TestHealthz(t *testing.T) {
	h := newTestServer(&stubBackend{})

	rr := doJSON(h, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var resp map[string]any
	decodeBody(t, rr.Body, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
}
