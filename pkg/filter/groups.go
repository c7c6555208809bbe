package filter

import (
	"fmt"

	"github.com/snake-soft/pg-search/pkg/types"
)

// Config carries the filter assembly settings of the surrounding
// application.
type Config struct {
	// AttachedFields are product-intrinsic field codes in render order.
	AttachedFields []string
	// DisabledFields excludes field and attribute codes from filtering.
	DisabledFields []string
}

func (c Config) enabledAttached() []string {
	off := map[string]struct{}{}
	for _, code := range c.DisabledFields {
		off[code] = struct{}{}
	}
	codes := []string{}
	for _, code := range c.AttachedFields {
		if _, ok := off[code]; !ok {
			codes = append(codes, code)
		}
	}
	return codes
}

// QueryEntry binds a predicate to the field it originated from. Entries
// with a nil Field are group-level and are never excluded by drill-down.
type QueryEntry struct {
	Field Field
	Query types.Predicate
}

// Group is one filter section owning an ordered set of fields.
type Group interface {
	Code() string
	Name() string
	Fields() []Field
	Queries() []QueryEntry
}

// ProductGroup assembles, in order: the offer field when any active range
// exists, the configured intrinsic fields, then the attribute fields
// discovered from the candidate set.
type ProductGroup struct {
	fields []Field
}

func NewProductGroup(src types.CatalogSource, base types.Collection, v *types.Viewer, data types.RequestData, cfg Config) (*ProductGroup, error) {
	g := &ProductGroup{}

	offer := NewOfferField(src, v, data)
	if offer.HasRanges() {
		g.fields = append(g.fields, offer)
	}

	for _, code := range cfg.enabledAttached() {
		info, err := src.ProductField(code)
		if err != nil {
			return nil, err
		}
		if info.Kind == types.FieldRelated {
			g.fields = append(g.fields, NewForeignKeyField(src, info, data))
		} else {
			g.fields = append(g.fields, NewProductField(src, info, data))
		}
	}

	attrs, err := src.FilterableAttributes(base, cfg.DisabledFields)
	if err != nil {
		return nil, err
	}
	for _, attr := range attrs {
		switch attr.Type {
		case types.AttributeText, types.AttributeFloat, types.AttributeInteger:
			g.fields = append(g.fields, NewScalarField(src, attr, data))
		case types.AttributeOption, types.AttributeMultiOption:
			g.fields = append(g.fields, NewOptionField(src, attr, data))
		default:
			// The schema carries an attribute the engine has no field
			// variant for, resolution must abort.
			return nil, fmt.Errorf("%w: no facet field for attribute type %q", types.ErrConfiguration, attr.Type)
		}
	}
	return g, nil
}

func (g *ProductGroup) Code() string {
	return "filter"
}

func (g *ProductGroup) Name() string {
	return "Product Filter"
}

func (g *ProductGroup) Fields() []Field {
	return g.fields
}

func (g *ProductGroup) Queries() []QueryEntry {
	entries := []QueryEntry{}
	for _, f := range g.fields {
		if q := f.Query(); q != nil {
			entries = append(entries, QueryEntry{Field: f, Query: q})
		}
	}
	return entries
}

// UserGroup owns the personal-collection fields. Unauthenticated viewers
// get zero fields. The combined predicate is an OR, a product matches
// when it is in any selected wishlist or any selected order.
type UserGroup struct {
	fields []Field
	data   types.RequestData
}

func NewUserGroup(src types.CatalogSource, v *types.Viewer, data types.RequestData) *UserGroup {
	g := &UserGroup{data: data}
	if v == nil || !v.Authenticated {
		return g
	}
	g.fields = []Field{
		NewWishlistField(src, v, data),
		NewOrderField(src, v, data),
	}
	return g
}

func (g *UserGroup) Code() string {
	return "user"
}

func (g *UserGroup) Name() string {
	return "My Shop"
}

func (g *UserGroup) Fields() []Field {
	return g.fields
}

func (g *UserGroup) Queries() []QueryEntry {
	parts := types.Or{}
	if g.data.Has("wishlist") {
		if ids := parseIds(g.data.List("wishlist")); len(ids) > 0 {
			parts = append(parts, types.WishlistIn{Wishlists: ids})
		}
	}
	if g.data.Has("order") {
		if ids := parseIds(g.data.List("order")); len(ids) > 0 {
			parts = append(parts, types.OrderIn{Orders: ids})
		}
	}
	if len(parts) == 0 {
		return nil
	}
	return []QueryEntry{{Query: parts}}
}
