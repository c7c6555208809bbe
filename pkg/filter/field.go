package filter

import (
	"strconv"

	"github.com/snake-soft/pg-search/pkg/types"
)

// Resolver is the narrow view of the manager passed into choice
// computation, fields never hold a back-reference to the engine.
type Resolver interface {
	// ResultExcluding returns the result with every field predicate
	// applied except the given field's own. Exclusion is by field
	// identity, two fields producing equal predicates stay independent.
	ResultExcluding(f Field) types.Collection
}

// Field is one unit of filterable state. Fields are constructed without
// choices, choices are computed exactly once during resolution because
// they depend on every sibling predicate.
type Field interface {
	Code() string
	Label() string
	// Selected returns the raw active parameter values for rendering.
	Selected() []string
	// Query derives a predicate from the active selection, nil when the
	// field has no active selection.
	Query() types.Predicate
	// Choices computes the drill-down options against the exclude-self
	// result.
	Choices(r Resolver) ([]types.Choice, error)
}

// convertCodes are the grandfathered filter codes that may arrive as
// literal option codes under the code parameter name instead of option
// ids under the attribute id. Consider deprecated, kept for compatibility.
var convertCodes = []string{"brand", "vessel"}

func isConvertCode(code string) bool {
	for _, c := range convertCodes {
		if c == code {
			return true
		}
	}
	return false
}

func parseIds(raw []string) []uint {
	ids := []uint{}
	for _, v := range raw {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids
}

// OptionField filters by option-valued attributes, both the single and
// the many-valued relation.
type OptionField struct {
	src  types.CatalogSource
	attr types.AttributeInfo
	data types.RequestData
}

func NewOptionField(src types.CatalogSource, attr types.AttributeInfo, data types.RequestData) *OptionField {
	return &OptionField{src: src, attr: attr, data: data}
}

func (f *OptionField) Code() string {
	return strconv.FormatUint(uint64(f.attr.Id), 10)
}

func (f *OptionField) Label() string {
	return f.attr.Name
}

func (f *OptionField) multi() bool {
	return f.attr.Type == types.AttributeMultiOption
}

// selection reads the active values, preferring the legacy literal-code
// spelling when the attribute code is grandfathered and present.
func (f *OptionField) selection() (values []string, literal bool) {
	if isConvertCode(f.attr.Code) && f.data.Has(f.attr.Code) {
		return f.data.List(f.attr.Code), true
	}
	return f.data.List(f.Code()), false
}

func (f *OptionField) Selected() []string {
	values, _ := f.selection()
	return values
}

func (f *OptionField) Query() types.Predicate {
	values, literal := f.selection()
	if len(values) == 0 {
		return nil
	}
	if literal {
		return types.OptionIn{Attribute: f.attr.Id, Codes: values, Multi: f.multi()}
	}
	ids := parseIds(values)
	options := make([]types.OptionId, 0, len(ids))
	for _, id := range ids {
		options = append(options, types.OptionId(id))
	}
	if len(options) == 0 {
		return nil
	}
	return types.OptionIn{Attribute: f.attr.Id, Options: options, Multi: f.multi()}
}

func (f *OptionField) Choices(r Resolver) ([]types.Choice, error) {
	excl := r.ResultExcluding(f)
	return f.src.OptionsInUse(f.attr.Id, f.attr.OptionGroup, excl, f.multi()), nil
}

// ScalarField filters by text, float and integer typed attributes. The
// selection carries attribute-value record ids, the predicate matches any
// row whose attached value equals one of the selected records' contents.
type ScalarField struct {
	src  types.CatalogSource
	attr types.AttributeInfo
	data types.RequestData
}

func NewScalarField(src types.CatalogSource, attr types.AttributeInfo, data types.RequestData) *ScalarField {
	return &ScalarField{src: src, attr: attr, data: data}
}

func (f *ScalarField) Code() string {
	return strconv.FormatUint(uint64(f.attr.Id), 10)
}

func (f *ScalarField) Label() string {
	return f.attr.Name
}

func (f *ScalarField) Selected() []string {
	return f.data.List(f.Code())
}

func (f *ScalarField) Query() types.Predicate {
	if !f.data.Has(f.Code()) {
		return nil
	}
	contents := f.src.AttributeValueContents(f.attr.Id, f.data.List(f.Code()))
	return types.AttributeValueIn{Attribute: f.attr.Id, Type: f.attr.Type, Contents: contents}
}

func (f *ScalarField) Choices(r Resolver) ([]types.Choice, error) {
	excl := r.ResultExcluding(f)
	return f.src.DistinctAttributeValues(f.attr.Id, excl), nil
}
