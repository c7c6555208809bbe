package types

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGetQueryFromRequest_Get(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/search?q=rioja&sort_by=newest&page=2&size=20&7=12&brand=bodega-norte", nil)
	sr, err := GetQueryFromRequest(r)
	if err != nil {
		t.Fatalf("Expected no error but got %v", err)
	}
	if sr.Query != "rioja" || sr.Sort != "newest" || sr.Page != 2 || sr.PageSize != 20 {
		t.Errorf("Expected decoded request but got %+v", sr)
	}
	if sr.Data.Get("7") != "12" || sr.Data.Get("brand") != "bodega-norte" {
		t.Errorf("Expected facet data but got %v", sr.Data)
	}
	if sr.Data.Has("q") || sr.Data.Has("sort_by") || sr.Data.Has("page") || sr.Data.Has("size") {
		t.Errorf("Expected reserved keys stripped from facet data but got %v", sr.Data)
	}
}

func TestGetQueryFromRequest_GetDefaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/search", nil)
	sr, err := GetQueryFromRequest(r)
	if err != nil {
		t.Fatalf("Expected no error but got %v", err)
	}
	if sr.PageSize != 40 || sr.Page != 0 {
		t.Errorf("Expected default paging but got %+v", sr)
	}
	if sr.Data == nil {
		t.Error("Expected empty facet data but got nil")
	}
}

func TestGetQueryFromRequest_PostBody(t *testing.T) {
	body := `{"q":"rioja","sort_by":"price-asc","size":10,"facets":{"7":["12"]}}`
	r := httptest.NewRequest("POST", "/api/search", strings.NewReader(body))
	sr, err := GetQueryFromRequest(r)
	if err != nil {
		t.Fatalf("Expected no error but got %v", err)
	}
	if sr.Query != "rioja" || sr.Sort != "price-asc" || sr.PageSize != 10 {
		t.Errorf("Expected decoded request but got %+v", sr)
	}
	if got := sr.Data.List("7"); len(got) != 1 || got[0] != "12" {
		t.Errorf("Expected facet data but got %v", sr.Data)
	}
}

func TestSanitize_Clamps(t *testing.T) {
	sr := &SearchRequest{Page: 500, PageSize: 100000}
	sr.Sanitize()
	if sr.Page != 100 || sr.PageSize != 1000 {
		t.Errorf("Expected clamped paging but got %+v", sr)
	}

	sr = &SearchRequest{Page: -1, PageSize: 0}
	sr.Sanitize()
	if sr.Page != 0 || sr.PageSize != 1 {
		t.Errorf("Expected clamped paging but got %+v", sr)
	}
}

func TestCompareValues(t *testing.T) {
	if CompareValues("2", "10") >= 0 {
		t.Error("Expected numeric comparison for numeric values")
	}
	if CompareValues("abc", "abd") >= 0 {
		t.Error("Expected lexicographic comparison for text values")
	}
	if CompareValues("1.50", "1.5") != 0 {
		t.Error("Expected equal decimals to compare equal")
	}
}

func TestNormalizeDecimal(t *testing.T) {
	cases := map[string]string{
		"12.50": "12.5",
		"12.00": "12",
		"12":    "12",
		"wine":  "wine",
	}
	for raw, want := range cases {
		if got := NormalizeDecimal(raw); got != want {
			t.Errorf("Expected %q for %q but got %q", want, raw, got)
		}
	}
}
