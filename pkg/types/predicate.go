package types

// Predicate is a boolean condition over the rows of a Collection. The set
// of variants is closed, every backend must handle all of them.
type Predicate interface {
	predicate()
}

type And []Predicate

type Or []Predicate

type Not struct {
	Inner Predicate
}

// FieldIn matches products whose intrinsic field value is one of Values.
// Decimal values compare numerically.
type FieldIn struct {
	Code   string
	Values []string
}

// ForeignKeyIn matches products whose linked record id is in Ids.
type ForeignKeyIn struct {
	Code string
	Ids  []uint
}

// AttributeValueIn matches products with an attached attribute value whose
// scalar content equals one of Contents.
type AttributeValueIn struct {
	Attribute AttributeId
	Type      AttributeType
	Contents  []string
}

// OptionIn matches products linked to one of the given options. When Codes
// is set the match is on option codes instead of ids (legacy parameter
// spelling). Multi selects the many-valued relation.
type OptionIn struct {
	Attribute AttributeId
	Options   []OptionId
	Codes     []string
	Multi     bool
}

// CategoryIn matches products assigned to one of the categories.
type CategoryIn struct {
	Categories []CategoryId
}

// RangeIn matches products that belong to one of the promotional ranges.
type RangeIn struct {
	Ranges []uint
}

// WishlistIn and OrderIn match membership of personal collections.
type WishlistIn struct {
	Wishlists []uint
}

type OrderIn struct {
	Orders []uint
}

// RankAbove keeps rows whose weighted similarity rank is strictly greater
// than Threshold.
type RankAbove struct {
	Rank      Rank
	Threshold float64
}

// Annotated keeps rows that carry the named annotation, price ordering
// uses it to drop rows without a resolvable price.
type Annotated struct {
	Name string
}

func (And) predicate()              {}
func (Or) predicate()               {}
func (Not) predicate()              {}
func (FieldIn) predicate()          {}
func (ForeignKeyIn) predicate()     {}
func (AttributeValueIn) predicate() {}
func (OptionIn) predicate()         {}
func (CategoryIn) predicate()       {}
func (RangeIn) predicate()          {}
func (WishlistIn) predicate()       {}
func (OrderIn) predicate()          {}
func (RankAbove) predicate()        {}
func (Annotated) predicate()        {}

// RankTerm is one weighted similarity term against a named text field.
type RankTerm struct {
	Field  string
	Weight float64
}

// Rank is a weighted sum of per-field similarity scores for a query.
type Rank struct {
	Query string
	Terms []RankTerm
}
