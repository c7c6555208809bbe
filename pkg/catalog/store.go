package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/snake-soft/pg-search/pkg/types"
)

// Store is the in-memory catalogue backend. It serves tests and small
// deployments, the production counterpart lives in pkg/storage. All reads
// take the lock, mutation only happens through Add* methods.
type Store struct {
	mu sync.RWMutex

	products   map[types.ProductId]*Product
	order      []types.ProductId
	categories map[types.CategoryId]*Category
	catOrder   []types.CategoryId
	attributes map[types.AttributeId]*Attribute
	values     map[types.ValueId]*AttributeValue
	valueOrder []types.ValueId
	options    map[types.OptionId]*Option
	ranges     map[uint]*Range
	fields     map[string]types.FieldInfo
	fieldOrder []string
	related    map[string]map[uint]string
	wishlists  []*types.WishlistEntry
	orders     []*types.OrderEntry

	// ViewerRanges is the optional per-viewer range resolution hook, used
	// when no partner scope applies.
	ViewerRanges func(v *types.Viewer) []uint
}

func NewStore() *Store {
	return &Store{
		products:   map[types.ProductId]*Product{},
		categories: map[types.CategoryId]*Category{},
		attributes: map[types.AttributeId]*Attribute{},
		values:     map[types.ValueId]*AttributeValue{},
		options:    map[types.OptionId]*Option{},
		ranges:     map[uint]*Range{},
		fields:     map[string]types.FieldInfo{},
		related:    map[string]map[uint]string{},
	}
}

func (s *Store) AddProduct(p *Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.Id]; !ok {
		s.order = append(s.order, p.Id)
	}
	s.products[p.Id] = p
}

func (s *Store) AddCategory(c *Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[c.Id]; !ok {
		s.catOrder = append(s.catOrder, c.Id)
	}
	s.categories[c.Id] = c
}

func (s *Store) AddAttribute(a *Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attributes[a.Id] = a
}

func (s *Store) AddOption(o *Option) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.options[o.Id] = o
}

func (s *Store) AddValue(v *AttributeValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[v.Id]; !ok {
		s.valueOrder = append(s.valueOrder, v.Id)
	}
	s.values[v.Id] = v
}

func (s *Store) AddRange(r *Range) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ranges[r.Id] = r
}

// RegisterField declares a filterable product-intrinsic field. Labels for
// FieldRelated codes come from RegisterRelated.
func (s *Store) RegisterField(info types.FieldInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fields[info.Code]; !ok {
		s.fieldOrder = append(s.fieldOrder, info.Code)
	}
	s.fields[info.Code] = info
}

func (s *Store) RegisterRelated(code string, id uint, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.related[code] == nil {
		s.related[code] = map[uint]string{}
	}
	s.related[code][id] = label
}

func (s *Store) AddWishlist(w *types.WishlistEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wishlists = append(s.wishlists, w)
}

func (s *Store) AddOrder(o *types.OrderEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, o)
}

func (s *Store) VisibleProducts(v *types.Viewer) types.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]types.ProductId, 0, len(s.order))
	for _, id := range s.order {
		p := s.products[id]
		if !p.Browsable {
			continue
		}
		if p.PartnerId != 0 && (v == nil || v.Partner == nil || v.Partner.Id != p.PartnerId) {
			continue
		}
		ids = append(ids, id)
	}
	return newSet(s, ids)
}

func (s *Store) SupportsSimilarity() bool {
	return true
}

func (s *Store) BrowsableCategories() []types.CategoryId {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]types.CategoryId, 0, len(s.catOrder))
	for _, id := range s.catOrder {
		if s.categories[id].Browsable {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *Store) BestCategoryMatch(rank types.Rank, threshold float64) (types.CategoryId, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *Category
	var bestRank float64
	for _, id := range s.catOrder {
		c := s.categories[id]
		if !c.Browsable {
			continue
		}
		score := 0.0
		for _, term := range rank.Terms {
			score += term.Weight * Similarity(c.fieldText(term.Field), rank.Query)
		}
		if score < threshold {
			continue
		}
		if best == nil || c.Depth < best.Depth || (c.Depth == best.Depth && score > bestRank) {
			best = c
			bestRank = score
		}
	}
	if best == nil {
		return 0, false
	}
	return best.Id, true
}

func (s *Store) DescendantsAndSelf(id types.CategoryId) []types.CategoryId {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := []types.CategoryId{id}
	frontier := []types.CategoryId{id}
	for len(frontier) > 0 {
		next := []types.CategoryId{}
		for _, cid := range s.catOrder {
			c := s.categories[cid]
			for _, parent := range frontier {
				if c.Parent == parent {
					result = append(result, cid)
					next = append(next, cid)
				}
			}
		}
		frontier = next
	}
	return result
}

func (s *Store) FilterableAttributes(in types.Collection, disabled []string) ([]types.AttributeInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	off := map[string]struct{}{}
	for _, code := range disabled {
		off[code] = struct{}{}
	}
	withValues := map[types.AttributeId]struct{}{}
	for _, vid := range s.valueOrder {
		v := s.values[vid]
		if in.Contains(v.Product) {
			withValues[v.Attribute] = struct{}{}
		}
	}
	candidates := make([]*Attribute, 0, len(withValues))
	for id := range withValues {
		a := s.attributes[id]
		if a == nil || !a.FilterEnabled {
			continue
		}
		if _, ok := off[a.Code]; ok {
			continue
		}
		candidates = append(candidates, a)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Name != candidates[j].Name {
			return candidates[i].Name < candidates[j].Name
		}
		if candidates[i].OptionGroup != candidates[j].OptionGroup {
			return candidates[i].OptionGroup < candidates[j].OptionGroup
		}
		return candidates[i].Id < candidates[j].Id
	})
	result := make([]types.AttributeInfo, 0, len(candidates))
	var lastName string
	var lastGroup uint
	for i, a := range candidates {
		if i > 0 && a.Name == lastName && a.OptionGroup == lastGroup {
			continue
		}
		lastName, lastGroup = a.Name, a.OptionGroup
		result = append(result, a.AttributeInfo)
	}
	return result, nil
}

func (s *Store) ProductField(code string) (types.FieldInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.fields[code]
	if !ok {
		return types.FieldInfo{}, fmt.Errorf("%w: product field %q has no backing relation", types.ErrConfiguration, code)
	}
	return info, nil
}

func (s *Store) AttributeValueContents(attr types.AttributeId, valueIds []string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	contents := []string{}
	for _, raw := range valueIds {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			continue
		}
		v, ok := s.values[types.ValueId(id)]
		if !ok || v.Attribute != attr {
			continue
		}
		contents = append(contents, v.Content)
	}
	return contents
}

func (s *Store) DistinctAttributeValues(attr types.AttributeId, in types.Collection) []types.Choice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matching := []*AttributeValue{}
	for _, vid := range s.valueOrder {
		v := s.values[vid]
		if v.Attribute == attr && in.Contains(v.Product) {
			matching = append(matching, v)
		}
	}
	sort.Slice(matching, func(i, j int) bool {
		if c := compareValues(matching[i].Content, matching[j].Content); c != 0 {
			return c < 0
		}
		return matching[i].Id < matching[j].Id
	})
	choices := []types.Choice{}
	seen := map[string]struct{}{}
	for _, v := range matching {
		canon := types.NormalizeDecimal(v.Content)
		if _, ok := seen[canon]; ok {
			continue
		}
		seen[canon] = struct{}{}
		choices = append(choices, types.Choice{
			Value: strconv.FormatUint(uint64(v.Id), 10),
			Label: v.Content,
		})
	}
	return choices
}

func (s *Store) OptionsInUse(attr types.AttributeId, group uint, in types.Collection, multi bool) []types.Choice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	used := map[types.OptionId]struct{}{}
	for _, vid := range s.valueOrder {
		v := s.values[vid]
		if v.Attribute != attr || !in.Contains(v.Product) {
			continue
		}
		if multi {
			for _, oid := range v.MultiOptions {
				used[oid] = struct{}{}
			}
		} else if v.Option != 0 {
			used[v.Option] = struct{}{}
		}
	}
	opts := []*Option{}
	for oid := range used {
		o := s.options[oid]
		if o != nil && o.Group == group {
			opts = append(opts, o)
		}
	}
	sort.Slice(opts, func(i, j int) bool {
		if opts[i].Label != opts[j].Label {
			return opts[i].Label < opts[j].Label
		}
		return opts[i].Id < opts[j].Id
	})
	choices := []types.Choice{}
	seen := map[string]struct{}{}
	for _, o := range opts {
		if !multi {
			// Single-option relation collapses duplicate labels, first
			// occurrence wins. Kept as observed behavior.
			if _, ok := seen[o.Label]; ok {
				continue
			}
			seen[o.Label] = struct{}{}
		}
		choices = append(choices, types.Choice{
			Value: strconv.FormatUint(uint64(o.Id), 10),
			Label: o.Label,
		})
	}
	return choices
}

func (s *Store) DistinctFieldValues(code string, in types.Collection) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]struct{}{}
	values := []string{}
	for _, id := range s.order {
		if !in.Contains(id) {
			continue
		}
		v := s.products[id].Fields[code]
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool {
		return compareValues(values[i], values[j]) < 0
	})
	return values
}

func (s *Store) RelatedChoices(code string, in types.Collection) ([]types.Choice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	labels, ok := s.related[code]
	if !ok {
		return nil, fmt.Errorf("%w: no related records for field %q", types.ErrConfiguration, code)
	}
	seen := map[uint]struct{}{}
	choices := []types.Choice{}
	for _, id := range s.order {
		if !in.Contains(id) {
			continue
		}
		ref, ok := s.products[id].Refs[code]
		if !ok {
			continue
		}
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		choices = append(choices, types.Choice{
			Value: strconv.FormatUint(uint64(ref), 10),
			Label: labels[ref],
		})
	}
	sort.Slice(choices, func(i, j int) bool {
		return choices[i].Label < choices[j].Label
	})
	return choices, nil
}

func (s *Store) ActiveRanges(v *types.Viewer) []uint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v != nil && v.Partner != nil {
		return s.rangeIds(func(r *Range) bool {
			return r.Active && r.Partner == v.Partner.Id
		})
	}
	if s.ViewerRanges != nil {
		return s.ViewerRanges(v)
	}
	return s.rangeIds(func(r *Range) bool {
		return r.Active && r.SpecialPrice
	})
}

func (s *Store) rangeIds(keep func(*Range) bool) []uint {
	ids := []uint{}
	for id, r := range s.ranges {
		if keep(r) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Store) WishlistChoices(v *types.Viewer) []types.Choice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	asLink := v != nil && v.Partner != nil && v.Partner.WishlistAsLink
	choices := []types.Choice{}
	if asLink {
		choices = append(choices, types.Choice{Value: "", Label: "jump to list"})
	}
	for _, w := range s.wishlists {
		if v == nil || w.OwnerId != v.Id {
			continue
		}
		if asLink {
			choices = append(choices, types.Choice{Value: w.Key, Label: w.Name})
		} else {
			choices = append(choices, types.Choice{
				Value: strconv.FormatUint(uint64(w.Id), 10),
				Label: w.Name,
			})
		}
	}
	if asLink && len(choices) == 1 {
		return nil
	}
	return choices
}

func (s *Store) OrderChoices(v *types.Viewer) []types.Choice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	choices := []types.Choice{}
	for _, o := range s.orders {
		if v == nil || o.OwnerId != v.Id {
			continue
		}
		choices = append(choices, types.Choice{
			Value: strconv.FormatUint(uint64(o.Id), 10),
			Label: fmt.Sprintf("%s (%s)", o.Number, o.DatePlaced.Format("2006-01-02")),
		})
	}
	return choices
}

func compareValues(a, b string) int {
	return types.CompareValues(a, b)
}
