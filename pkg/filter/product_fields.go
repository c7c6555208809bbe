package filter

import (
	"math"
	"strconv"

	"github.com/snake-soft/pg-search/pkg/types"
)

// ProductField filters by a product-intrinsic scalar field like weight or
// volume.
type ProductField struct {
	src  types.CatalogSource
	info types.FieldInfo
	data types.RequestData
}

func NewProductField(src types.CatalogSource, info types.FieldInfo, data types.RequestData) *ProductField {
	return &ProductField{src: src, info: info, data: data}
}

func (f *ProductField) Code() string {
	return f.info.Code
}

func (f *ProductField) Label() string {
	return f.info.Label
}

func (f *ProductField) Selected() []string {
	return f.data.List(f.info.Code)
}

func (f *ProductField) Query() types.Predicate {
	values := f.data.List(f.info.Code)
	if len(values) == 0 {
		return nil
	}
	return types.FieldIn{Code: f.info.Code, Values: values}
}

func (f *ProductField) Choices(r Resolver) ([]types.Choice, error) {
	excl := r.ResultExcluding(f)

	if f.info.Kind == types.FieldEnumerated {
		observed := map[string]struct{}{}
		for _, v := range f.src.DistinctFieldValues(f.info.Code, excl) {
			observed[types.NormalizeDecimal(v)] = struct{}{}
		}
		choices := []types.Choice{}
		for _, c := range f.info.Enum {
			if _, ok := observed[types.NormalizeDecimal(c.Value)]; ok {
				choices = append(choices, c)
			}
		}
		return choices, nil
	}

	if f.info.Kind == types.FieldRelated {
		return f.src.RelatedChoices(f.info.Code, excl)
	}

	choices := []types.Choice{}
	seen := map[string]struct{}{}
	for _, raw := range f.src.DistinctFieldValues(f.info.Code, excl) {
		if raw == "" {
			continue
		}
		canon := types.NormalizeDecimal(raw)
		if _, ok := seen[canon]; ok {
			continue
		}
		seen[canon] = struct{}{}
		choices = append(choices, types.Choice{Value: canon, Label: cleanValue(f.info.Code, canon)})
	}
	return choices, nil
}

// cleanValue formats a raw field value for display, weight below one unit
// switches to the small unit.
func cleanValue(code, value string) string {
	switch code {
	case "weight":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return value
		}
		if v < 1 {
			// Gram labels carry no fraction.
			return strconv.FormatFloat(math.Round(v*1000), 'f', -1, 64) + "g"
		}
		return value + "kg"
	case "volume":
		return value + "l"
	}
	return value
}

// ForeignKeyField filters by a product field that links another record,
// like manufacturer.
type ForeignKeyField struct {
	src  types.CatalogSource
	info types.FieldInfo
	data types.RequestData
}

func NewForeignKeyField(src types.CatalogSource, info types.FieldInfo, data types.RequestData) *ForeignKeyField {
	return &ForeignKeyField{src: src, info: info, data: data}
}

func (f *ForeignKeyField) Code() string {
	return f.info.Code
}

func (f *ForeignKeyField) Label() string {
	return f.info.Label
}

func (f *ForeignKeyField) Selected() []string {
	return f.data.List(f.info.Code)
}

func (f *ForeignKeyField) Query() types.Predicate {
	ids := parseIds(f.data.List(f.info.Code))
	if len(ids) == 0 {
		return nil
	}
	return types.ForeignKeyIn{Code: f.info.Code, Ids: ids}
}

func (f *ForeignKeyField) Choices(r Resolver) ([]types.Choice, error) {
	excl := r.ResultExcluding(f)
	return f.src.RelatedChoices(f.info.Code, excl)
}

// OfferField is the single checkbox that restricts the result to products
// inside an active promotional range. It has no sub-options, the whole
// facet appears or disappears.
type OfferField struct {
	src    types.CatalogSource
	data   types.RequestData
	viewer *types.Viewer
	ranges []uint
}

func NewOfferField(src types.CatalogSource, v *types.Viewer, data types.RequestData) *OfferField {
	return &OfferField{src: src, data: data, viewer: v, ranges: src.ActiveRanges(v)}
}

func (f *OfferField) Code() string {
	return "offer_only"
}

func (f *OfferField) Label() string {
	return "Offers only"
}

func (f *OfferField) HasRanges() bool {
	return len(f.ranges) > 0
}

func (f *OfferField) active() bool {
	return f.data.Get("offer_only") == "on"
}

func (f *OfferField) Selected() []string {
	if f.active() {
		return []string{"on"}
	}
	return nil
}

func (f *OfferField) Query() types.Predicate {
	if !f.active() {
		return nil
	}
	return types.RangeIn{Ranges: f.ranges}
}

func (f *OfferField) Choices(r Resolver) ([]types.Choice, error) {
	excl := r.ResultExcluding(f)
	if !excl.Filter(types.RangeIn{Ranges: f.ranges}).Exists() {
		return nil, nil
	}
	return []types.Choice{{Value: "on", Label: f.Label()}}, nil
}
