package sorting

import (
	"github.com/snake-soft/pg-search/pkg/types"
)

const (
	RelevancySort = "relevancy"
	NewestSort    = "newest"
	UpdatedSort   = "updated"
	TitleAscSort  = "title-asc"
	TitleDescSort = "title-desc"
	PriceAscSort  = "price-asc"
	PriceDescSort = "price-desc"
)

// Strategy is one ordering variant. PreUnion runs on every subset before
// subsets are combined, PostUnion on the combined set, Ordered applies
// the final field sort and deduplicates.
type Strategy interface {
	Code() string
	Name() string
	PreUnion(qs types.Collection, query string) types.Collection
	PostUnion(qs types.Collection, query string) types.Collection
	Ordered(qs types.Collection, query string) types.Collection
}

// FieldStrategy sorts by a plain field term.
type FieldStrategy struct {
	code string
	name string
	term types.OrderTerm
}

func NewFieldStrategy(code, name string, term types.OrderTerm) *FieldStrategy {
	return &FieldStrategy{code: code, name: name, term: term}
}

func (s *FieldStrategy) Code() string { return s.code }

func (s *FieldStrategy) Name() string { return s.name }

func (s *FieldStrategy) PreUnion(qs types.Collection, query string) types.Collection {
	return qs
}

func (s *FieldStrategy) PostUnion(qs types.Collection, query string) types.Collection {
	return qs
}

func (s *FieldStrategy) Ordered(qs types.Collection, query string) types.Collection {
	return qs.OrderBy(s.term).Distinct()
}

// RankStrategy orders by the similarity rank when a query is present.
// Without a query it falls back to priority then recency so the default
// listing is never unordered.
type RankStrategy struct{}

func (s *RankStrategy) Code() string { return RelevancySort }

func (s *RankStrategy) Name() string { return "Relevancy" }

func (s *RankStrategy) PreUnion(qs types.Collection, query string) types.Collection {
	if query == "" {
		return qs.OrderBy(
			types.OrderTerm{Field: "priority", Desc: true},
			types.OrderTerm{Field: "date_created", Desc: true},
		)
	}
	return qs
}

func (s *RankStrategy) PostUnion(qs types.Collection, query string) types.Collection {
	return qs
}

func (s *RankStrategy) Ordered(qs types.Collection, query string) types.Collection {
	if query != "" {
		qs = qs.OrderBy(types.OrderTerm{Field: "rank", Desc: true})
	}
	return qs.Distinct()
}

// PriceStrategy needs the externally supplied pricing step. It annotates
// each subset before union and drops rows without a resolvable price.
type PriceStrategy struct {
	code   string
	name   string
	desc   bool
	pricer types.Pricer
}

func NewPriceStrategy(code, name string, desc bool, pricer types.Pricer) *PriceStrategy {
	return &PriceStrategy{code: code, name: name, desc: desc, pricer: pricer}
}

func (s *PriceStrategy) Code() string { return s.code }

func (s *PriceStrategy) Name() string { return s.name }

func (s *PriceStrategy) PreUnion(qs types.Collection, query string) types.Collection {
	qs = qs.Annotate("price", types.PriceAnnotation{Pricer: s.pricer})
	return qs.Filter(types.Annotated{Name: "price"})
}

func (s *PriceStrategy) PostUnion(qs types.Collection, query string) types.Collection {
	return qs
}

func (s *PriceStrategy) Ordered(qs types.Collection, query string) types.Collection {
	return qs.OrderBy(types.OrderTerm{Field: "price", Desc: s.desc}).Distinct()
}

// Choices returns the strategies offered to a viewer, price sorts only
// when the viewer may see prices.
func Choices(v *types.Viewer, pricer types.Pricer) []Strategy {
	options := []Strategy{
		&RankStrategy{},
		NewFieldStrategy(NewestSort, "Newest", types.OrderTerm{Field: "date_created", Desc: true}),
		NewFieldStrategy(UpdatedSort, "Last updated", types.OrderTerm{Field: "date_updated", Desc: true}),
		NewFieldStrategy(TitleAscSort, "Title A to Z", types.OrderTerm{Field: "title"}),
		NewFieldStrategy(TitleDescSort, "Title Z to A", types.OrderTerm{Field: "title", Desc: true}),
	}
	if v == nil || !v.HidePrice {
		options = append(options,
			NewPriceStrategy(PriceAscSort, "Price low to high", false, pricer),
			NewPriceStrategy(PriceDescSort, "Price high to low", true, pricer),
		)
	}
	return options
}

// SortOption is the wire form of an offered strategy.
type SortOption struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func Options(v *types.Viewer, pricer types.Pricer) []SortOption {
	strategies := Choices(v, pricer)
	options := make([]SortOption, len(strategies))
	for i, s := range strategies {
		options[i] = SortOption{Code: s.Code(), Name: s.Name()}
	}
	return options
}

// ForRequest picks the strategy for a sort code, unknown codes fall back
// to the first offered strategy.
func ForRequest(v *types.Viewer, code string, pricer types.Pricer) Strategy {
	options := Choices(v, pricer)
	for _, o := range options {
		if o.Code() == code {
			return o
		}
	}
	return options[0]
}
