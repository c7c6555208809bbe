package filter

import (
	"github.com/snake-soft/pg-search/pkg/types"
)

// WishlistField offers the viewer's own wish lists. Choices are a plain
// owned-record lookup, there is no cross-field drill-down for personal
// collections.
type WishlistField struct {
	src    types.CatalogSource
	data   types.RequestData
	viewer *types.Viewer
}

func NewWishlistField(src types.CatalogSource, v *types.Viewer, data types.RequestData) *WishlistField {
	return &WishlistField{src: src, data: data, viewer: v}
}

func (f *WishlistField) Code() string {
	return "wishlist"
}

func (f *WishlistField) Label() string {
	return "Wish lists"
}

func (f *WishlistField) Selected() []string {
	return f.data.List("wishlist")
}

func (f *WishlistField) Query() types.Predicate {
	if !f.data.Has("wishlist") {
		return nil
	}
	ids := parseIds(f.data.List("wishlist"))
	if len(ids) == 0 {
		return nil
	}
	return types.WishlistIn{Wishlists: ids}
}

func (f *WishlistField) Choices(r Resolver) ([]types.Choice, error) {
	return f.src.WishlistChoices(f.viewer), nil
}

// OrderField offers the viewer's previous orders.
type OrderField struct {
	src    types.CatalogSource
	data   types.RequestData
	viewer *types.Viewer
}

func NewOrderField(src types.CatalogSource, v *types.Viewer, data types.RequestData) *OrderField {
	return &OrderField{src: src, data: data, viewer: v}
}

func (f *OrderField) Code() string {
	return "order"
}

func (f *OrderField) Label() string {
	return "Previous orders"
}

func (f *OrderField) Selected() []string {
	return f.data.List("order")
}

func (f *OrderField) Query() types.Predicate {
	if !f.data.Has("order") {
		return nil
	}
	ids := parseIds(f.data.List("order"))
	if len(ids) == 0 {
		return nil
	}
	return types.OrderIn{Orders: ids}
}

func (f *OrderField) Choices(r Resolver) ([]types.Choice, error) {
	return f.src.OrderChoices(f.viewer), nil
}
