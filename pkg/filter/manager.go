package filter

import (
	"github.com/snake-soft/pg-search/pkg/types"
)

// ResolvedField is the rendered form of a facet field after resolution.
type ResolvedField struct {
	Code     string         `json:"code"`
	Label    string         `json:"label"`
	Choices  []types.Choice `json:"choices"`
	Selected []string       `json:"selected,omitempty"`
}

// GroupResult is one filter section after resolution, pruned to fields
// that kept at least one choice.
type GroupResult struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Fields []ResolvedField `json:"fields"`
}

// Manager owns the filter groups, computes the fully filtered result and
// implements the drill-down recomputation. The heavy part is
// ResultExcluding: for any field, the result with every predicate except
// that field's own, memoized per field identity for the request.
type Manager struct {
	base    types.Collection
	groups  []Group
	entries []QueryEntry
	result  types.Collection
	memo    map[Field]types.Collection

	resolved []GroupResult
	done     bool
}

// NewManager constructs all groups and fields (no choices yet) and
// applies every active predicate to the base set.
func NewManager(src types.CatalogSource, base types.Collection, v *types.Viewer, data types.RequestData, cfg Config) (*Manager, error) {
	product, err := NewProductGroup(src, base, v, data, cfg)
	if err != nil {
		return nil, err
	}
	user := NewUserGroup(src, v, data)

	m := &Manager{
		base:   base,
		groups: []Group{product, user},
		memo:   map[Field]types.Collection{},
	}
	for _, g := range m.groups {
		m.entries = append(m.entries, g.Queries()...)
	}
	result := base
	for _, e := range m.entries {
		result = result.Filter(e.Query)
	}
	m.result = result
	return m, nil
}

// Result is the fully filtered set, every group's predicates applied.
func (m *Manager) Result() types.Collection {
	return m.result
}

// ResultExcluding recomputes the result from the base applying every
// predicate except the given field's own. Exclusion compares field
// identity, not predicate value, so two fields that happen to build equal
// predicates stay independent.
func (m *Manager) ResultExcluding(f Field) types.Collection {
	if cached, ok := m.memo[f]; ok {
		return cached
	}
	qs := m.base
	for _, e := range m.entries {
		if e.Field == f {
			continue
		}
		qs = qs.Filter(e.Query)
	}
	m.memo[f] = qs
	return qs
}

// Resolve computes every field's choices and prunes fields that ended up
// empty. Pruning happens after all fields of a group computed choices so
// a removal can not change a sibling's exclude-self result.
func (m *Manager) Resolve() ([]GroupResult, error) {
	if m.done {
		return m.resolved, nil
	}
	results := make([]GroupResult, 0, len(m.groups))
	for _, g := range m.groups {
		fields := g.Fields()
		choices := make([][]types.Choice, len(fields))
		for i, f := range fields {
			c, err := f.Choices(m)
			if err != nil {
				return nil, err
			}
			choices[i] = c
		}
		gr := GroupResult{Code: g.Code(), Name: g.Name()}
		for i, f := range fields {
			if len(choices[i]) == 0 {
				continue
			}
			gr.Fields = append(gr.Fields, ResolvedField{
				Code:     f.Code(),
				Label:    f.Label(),
				Choices:  choices[i],
				Selected: f.Selected(),
			})
		}
		results = append(results, gr)
	}
	m.resolved = results
	m.done = true
	return results, nil
}

// Groups exposes the owned groups, mostly for tests.
func (m *Manager) Groups() []Group {
	return m.groups
}
