package types

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/gorilla/schema"
)

// RequestData is the raw facet parameter multimap. Facet fields read their
// active selection from it by code.
type RequestData url.Values

func (d RequestData) Get(key string) string {
	values, ok := d[key]
	if !ok || len(values) == 0 {
		return ""
	}
	return values[0]
}

func (d RequestData) List(key string) []string {
	return d[key]
}

func (d RequestData) Has(key string) bool {
	_, ok := d[key]
	return ok
}

type SearchRequest struct {
	Query    string `json:"q" schema:"q"`
	Sort     string `json:"sort_by" schema:"sort_by"`
	Page     int    `json:"page" schema:"page"`
	PageSize int    `json:"size" schema:"size,default:40"`

	Data RequestData `json:"facets" schema:"-"`
}

var decoder = schema.NewDecoder()

func init() {
	decoder.IgnoreUnknownKeys(true)
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func (s *SearchRequest) Sanitize() {
	s.Page = clamp(s.Page, 0, 100)
	s.PageSize = clamp(s.PageSize, 1, 1000)
	if s.Data == nil {
		s.Data = RequestData{}
	}
}

func makeBaseSearchRequest() *SearchRequest {
	return &SearchRequest{
		PageSize: 40,
		Data:     RequestData{},
	}
}

// GetQueryFromRequest decodes a search request from the url query on GET
// and from a json body otherwise.
func GetQueryFromRequest(r *http.Request) (*SearchRequest, error) {
	sr := makeBaseSearchRequest()
	var err error
	if r.Method == http.MethodGet {
		err = queryFromRequestQuery(r.URL.Query(), sr)
	} else {
		err = json.NewDecoder(r.Body).Decode(sr)
	}
	sr.Sanitize()
	return sr, err
}

func queryFromRequestQuery(query url.Values, result *SearchRequest) error {
	if err := decoder.Decode(result, query); err != nil {
		return err
	}
	data := RequestData{}
	for key, values := range query {
		switch key {
		case "q", "sort_by", "page", "size":
			continue
		}
		data[key] = values
	}
	result.Data = data
	return nil
}
