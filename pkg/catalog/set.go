package catalog

import (
	"sort"
	"time"

	"github.com/snake-soft/pg-search/pkg/types"
)

// Set is the memory backend's Collection. Every operation derives a new
// Set, the filter engine depends on the base never mutating.
type Set struct {
	store *Store
	ids   []types.ProductId
	has   map[types.ProductId]struct{}
	ann   map[string]map[types.ProductId]float64
}

func newSet(store *Store, ids []types.ProductId) *Set {
	has := make(map[types.ProductId]struct{}, len(ids))
	for _, id := range ids {
		has[id] = struct{}{}
	}
	return &Set{store: store, ids: ids, has: has, ann: map[string]map[types.ProductId]float64{}}
}

func (s *Set) clone(ids []types.ProductId) *Set {
	out := newSet(s.store, ids)
	for name, values := range s.ann {
		kept := make(map[types.ProductId]float64, len(values))
		for _, id := range ids {
			if v, ok := values[id]; ok {
				kept[id] = v
			}
		}
		out.ann[name] = kept
	}
	return out
}

func (s *Set) Filter(p types.Predicate) types.Collection {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	kept := make([]types.ProductId, 0, len(s.ids))
	for _, id := range s.ids {
		if s.match(id, p) {
			kept = append(kept, id)
		}
	}
	return s.clone(kept)
}

func (s *Set) Union(other types.Collection) types.Collection {
	present := make(map[types.ProductId]struct{}, len(s.ids))
	ids := make([]types.ProductId, 0, len(s.ids))
	for _, id := range s.ids {
		if _, ok := present[id]; ok {
			continue
		}
		present[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, id := range other.Ids() {
		if _, ok := present[id]; ok {
			continue
		}
		present[id] = struct{}{}
		ids = append(ids, id)
	}
	merged := s.clone(ids)
	if o, ok := other.(*Set); ok {
		for name, values := range o.ann {
			if merged.ann[name] == nil {
				merged.ann[name] = map[types.ProductId]float64{}
			}
			for _, id := range ids {
				if v, exists := values[id]; exists {
					if _, already := merged.ann[name][id]; !already {
						merged.ann[name][id] = v
					}
				}
			}
		}
	}
	return merged
}

func (s *Set) OrderBy(terms ...types.OrderTerm) types.Collection {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	ids := make([]types.ProductId, len(s.ids))
	copy(ids, s.ids)
	sort.SliceStable(ids, func(i, j int) bool {
		for _, term := range terms {
			c := s.compare(ids[i], ids[j], term.Field)
			if c == 0 {
				continue
			}
			if term.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return s.clone(ids)
}

func (s *Set) Annotate(name string, a types.Annotation) types.Collection {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	out := s.clone(s.ids)
	values := map[types.ProductId]float64{}
	switch ann := a.(type) {
	case types.RankAnnotation:
		for _, id := range s.ids {
			values[id] = s.store.rankOf(s.store.products[id], ann.Rank)
		}
	case types.PriceAnnotation:
		if ann.Pricer != nil {
			for _, id := range s.ids {
				if price, ok := ann.Pricer.Price(id); ok {
					values[id] = price
				}
			}
		}
	}
	out.ann[name] = values
	return out
}

func (s *Set) Distinct() types.Collection {
	seen := make(map[types.ProductId]struct{}, len(s.ids))
	ids := make([]types.ProductId, 0, len(s.ids))
	for _, id := range s.ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return s.clone(ids)
}

func (s *Set) Exists() bool {
	return len(s.ids) > 0
}

func (s *Set) Count() int {
	return len(s.ids)
}

func (s *Set) Contains(id types.ProductId) bool {
	_, ok := s.has[id]
	return ok
}

func (s *Set) Ids() []types.ProductId {
	ids := make([]types.ProductId, len(s.ids))
	copy(ids, s.ids)
	return ids
}

func (s *Set) annotation(id types.ProductId, name string) (float64, bool) {
	values, ok := s.ann[name]
	if !ok {
		return 0, false
	}
	v, ok := values[id]
	return v, ok
}

func (s *Set) compare(a, b types.ProductId, field string) int {
	switch field {
	case "rank", "price":
		va, okA := s.annotation(a, field)
		vb, okB := s.annotation(b, field)
		if !okA {
			va = 0
		}
		if !okB {
			vb = 0
		}
		return compareFloats(va, vb)
	}
	pa := s.store.products[a]
	pb := s.store.products[b]
	switch field {
	case "title":
		return compareStrings(pa.Title, pb.Title)
	case "priority":
		return compareFloats(pa.Priority, pb.Priority)
	case "date_created":
		return compareTimes(pa.DateCreated, pb.DateCreated)
	case "date_updated":
		return compareTimes(pa.DateUpdated, pb.DateUpdated)
	}
	return compareValues(pa.Fields[field], pb.Fields[field])
}

// match evaluates one predicate against one row, holding the store lock.
func (s *Set) match(id types.ProductId, pred types.Predicate) bool {
	p := s.store.products[id]
	switch q := pred.(type) {
	case types.And:
		for _, inner := range q {
			if !s.match(id, inner) {
				return false
			}
		}
		return true
	case types.Or:
		for _, inner := range q {
			if s.match(id, inner) {
				return true
			}
		}
		return false
	case types.Not:
		return !s.match(id, q.Inner)
	case types.FieldIn:
		raw, ok := p.Fields[q.Code]
		if !ok {
			raw = p.fieldText(q.Code)
		}
		if raw == "" {
			return false
		}
		for _, v := range q.Values {
			if types.DecimalEquals(raw, v) {
				return true
			}
		}
		return false
	case types.ForeignKeyIn:
		ref, ok := p.Refs[q.Code]
		if !ok {
			return false
		}
		for _, want := range q.Ids {
			if ref == want {
				return true
			}
		}
		return false
	case types.AttributeValueIn:
		return s.store.hasAttributeValue(id, q)
	case types.OptionIn:
		return s.store.hasOption(id, q)
	case types.CategoryIn:
		for _, c := range p.Categories {
			for _, want := range q.Categories {
				if c == want {
					return true
				}
			}
		}
		return false
	case types.RangeIn:
		for _, rid := range q.Ranges {
			if r, ok := s.store.ranges[rid]; ok && r.contains(id) {
				return true
			}
		}
		return false
	case types.WishlistIn:
		for _, w := range s.store.wishlists {
			for _, want := range q.Wishlists {
				if w.Id == want && containsProduct(w.Products, id) {
					return true
				}
			}
		}
		return false
	case types.OrderIn:
		for _, o := range s.store.orders {
			for _, want := range q.Orders {
				if o.Id == want && containsProduct(o.Products, id) {
					return true
				}
			}
		}
		return false
	case types.RankAbove:
		return s.store.rankOf(p, q.Rank) > q.Threshold
	case types.Annotated:
		_, ok := s.annotation(id, q.Name)
		return ok
	}
	return false
}

func (s *Store) hasAttributeValue(id types.ProductId, q types.AttributeValueIn) bool {
	for _, vid := range s.valueOrder {
		v := s.values[vid]
		if v.Product != id || v.Attribute != q.Attribute {
			continue
		}
		for _, content := range q.Contents {
			if types.DecimalEquals(v.Content, content) {
				return true
			}
		}
	}
	return false
}

func (s *Store) hasOption(id types.ProductId, q types.OptionIn) bool {
	for _, vid := range s.valueOrder {
		v := s.values[vid]
		if v.Product != id || v.Attribute != q.Attribute {
			continue
		}
		linked := []types.OptionId{}
		if q.Multi {
			linked = v.MultiOptions
		} else if v.Option != 0 {
			linked = []types.OptionId{v.Option}
		}
		for _, oid := range linked {
			for _, want := range q.Options {
				if oid == want {
					return true
				}
			}
			if len(q.Codes) > 0 {
				if o, ok := s.options[oid]; ok {
					for _, code := range q.Codes {
						if o.Code == code {
							return true
						}
					}
				}
			}
		}
	}
	return false
}

func (s *Store) rankOf(p *Product, rank types.Rank) float64 {
	total := 0.0
	for _, term := range rank.Terms {
		total += term.Weight * Similarity(p.fieldText(term.Field), rank.Query)
	}
	return total
}

func containsProduct(ids []types.ProductId, id types.ProductId) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}
