package search

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/snake-soft/pg-search/pkg/filter"
	"github.com/snake-soft/pg-search/pkg/sorting"
	"github.com/snake-soft/pg-search/pkg/types"
)

// Product ranking: weighted trigram similarity over the identifier and
// text fields, rows below the threshold are kept only when they belong to
// the inferred category scope.
const productRankThreshold = 0.1

// Category inference uses a higher bar and keeps matches at or above it.
const categoryRankThreshold = 0.17

func productRank(query string) types.Rank {
	return types.Rank{
		Query: query,
		Terms: []types.RankTerm{
			{Field: "upc", Weight: 1},
			{Field: "title", Weight: 1},
			{Field: "meta_description", Weight: 2},
			{Field: "meta_title", Weight: 2},
		},
	}
}

func categoryRank(query string) types.Rank {
	return types.Rank{
		Query: query,
		Terms: []types.RankTerm{
			{Field: "name", Weight: 1},
			{Field: "description", Weight: 1},
			{Field: "meta_description", Weight: 1},
			{Field: "meta_title", Weight: 2},
		},
	}
}

// NormalizeQuery cleans the raw free-text parameter. The literal "None"
// guards against upstream parameter serialization bugs, the comma
// replacement accepts the locale decimal separator.
func NormalizeQuery(raw string) string {
	q := strings.TrimSpace(raw)
	if q == "None" {
		return ""
	}
	return strings.ReplaceAll(q, ",", ".")
}

// Composer derives the base candidate set for a request: free-text
// ranking with exact-identifier short-circuit, category inference, facet
// resolution and ordering.
type Composer struct {
	Source types.CatalogSource
	Config filter.Config
	// Strict makes a missing similarity capability a hard error instead
	// of passing the set through unranked.
	Strict bool
}

// Result is everything the surrounding application needs: the ordered
// result set, the pruned facet groups and the active search parameters
// for pagination links.
type Result struct {
	Collection types.Collection
	Groups     []filter.GroupResult
	Query      string
	Sort       sorting.Strategy
	Categories []types.CategoryId
	Manager    *filter.Manager
}

// Params serializes the active search parameters for pagination links.
func (r *Result) Params() string {
	params := ""
	if r.Query != "" {
		params += "&q=" + url.QueryEscape(r.Query)
	}
	if r.Sort != nil {
		params += "&sort_by=" + r.Sort.Code()
	}
	return params
}

// Search runs the full pipeline for one request.
func (c *Composer) Search(v *types.Viewer, req *types.SearchRequest, pricer types.Pricer) (*Result, error) {
	query := NormalizeQuery(req.Query)
	sort := sorting.ForRequest(v, req.Sort, pricer)

	qs := c.Source.VisibleProducts(v)
	categories := c.inferCategories(query)

	qs = sort.PreUnion(qs, query)

	qs, err := c.searchProducts(qs, query, categories)
	if err != nil {
		return nil, err
	}

	mgr, err := filter.NewManager(c.Source, qs, v, req.Data, c.Config)
	if err != nil {
		return nil, err
	}
	groups, err := mgr.Resolve()
	if err != nil {
		return nil, err
	}
	qs = mgr.Result()

	qs = sort.PostUnion(qs, query)
	qs = sort.Ordered(qs, query)

	return &Result{
		Collection: qs,
		Groups:     groups,
		Query:      query,
		Sort:       sort,
		Categories: categories,
		Manager:    mgr,
	}, nil
}

// searchProducts applies the free-text step. An exact identifier match
// short-circuits so an exact hit is never drowned in fuzzy noise.
func (c *Composer) searchProducts(qs types.Collection, query string, categories []types.CategoryId) (types.Collection, error) {
	if query == "" {
		return qs.Filter(types.CategoryIn{Categories: categories}), nil
	}

	exact := qs.Filter(types.Or{
		types.FieldIn{Code: "upc", Values: []string{query}},
		types.FieldIn{Code: "alt_upc", Values: []string{query}},
	})
	if exact.Exists() {
		return exact, nil
	}

	if !c.Source.SupportsSimilarity() {
		if c.Strict {
			return nil, fmt.Errorf("%w: similarity ranking requires trigram support", types.ErrCapability)
		}
		// Degraded mode, pass the category-scoped set through unranked.
		return qs.Filter(types.CategoryIn{Categories: categories}), nil
	}

	rank := productRank(query)
	qs = qs.Annotate("rank", types.RankAnnotation{Rank: rank})
	return qs.Filter(types.Or{
		types.RankAbove{Rank: rank, Threshold: productRankThreshold},
		types.CategoryIn{Categories: categories},
	}), nil
}

// inferCategories expands the single best fuzzy category match to its
// descendants and itself, without a query every browsable category is in
// scope.
func (c *Composer) inferCategories(query string) []types.CategoryId {
	if query == "" || !c.Source.SupportsSimilarity() {
		return c.Source.BrowsableCategories()
	}
	best, ok := c.Source.BestCategoryMatch(categoryRank(query), categoryRankThreshold)
	if !ok {
		return nil
	}
	return c.Source.DescendantsAndSelf(best)
}
