package types

// OrderTerm orders by an intrinsic field or an annotation name.
type OrderTerm struct {
	Field string
	Desc  bool
}

// Annotation computes a derived per-row value. The concrete variants are
// interpreted by each backend.
type Annotation interface {
	annotation()
}

// RankAnnotation attaches the weighted similarity rank under the given
// annotation name.
type RankAnnotation struct {
	Rank Rank
}

// PriceAnnotation attaches a comparable price via the externally supplied
// pricing step.
type PriceAnnotation struct {
	Pricer Pricer
}

func (RankAnnotation) annotation()  {}
func (PriceAnnotation) annotation() {}

// Collection is the candidate set contract. Every operation is pure and
// derives a new collection, the engine filters the same base repeatedly
// with different predicate subsets and relies on that.
type Collection interface {
	Filter(p Predicate) Collection
	Union(other Collection) Collection
	OrderBy(terms ...OrderTerm) Collection
	Annotate(name string, a Annotation) Collection
	Distinct() Collection
	Exists() bool
	Count() int
	Contains(id ProductId) bool
	Ids() []ProductId
}

// CatalogSource is the backing-store contract consumed by the filter
// engine and the query composer. Implementations must be safe for
// concurrent reads.
type CatalogSource interface {
	// VisibleProducts returns the base set of records visible to the
	// viewer. Visibility rules are the store's business.
	VisibleProducts(v *Viewer) Collection

	// SupportsSimilarity reports whether the store can evaluate trigram
	// similarity expressions.
	SupportsSimilarity() bool

	BrowsableCategories() []CategoryId
	// BestCategoryMatch returns the single best fuzzy category match at or
	// above the threshold, ordered by hierarchy depth then descending rank.
	BestCategoryMatch(rank Rank, threshold float64) (CategoryId, bool)
	DescendantsAndSelf(id CategoryId) []CategoryId

	// FilterableAttributes returns distinct (name, option group) attribute
	// definitions with at least one value attached to a row of the set,
	// minus disabled codes and those not flagged filterable.
	FilterableAttributes(in Collection, disabled []string) ([]AttributeInfo, error)
	ProductField(code string) (FieldInfo, error)

	// AttributeValueContents resolves selected attribute-value record ids
	// to their scalar contents. Unknown ids are dropped.
	AttributeValueContents(attr AttributeId, valueIds []string) []string
	// DistinctAttributeValues lists attached values for rows of the set,
	// ordered by content then id, one row per distinct content.
	DistinctAttributeValues(attr AttributeId, in Collection) []Choice
	// OptionsInUse lists the option group's options linked from rows of
	// the set, ordered by label. For the single-option relation duplicate
	// labels collapse to the first occurrence.
	OptionsInUse(attr AttributeId, group uint, in Collection, multi bool) []Choice

	DistinctFieldValues(code string, in Collection) []string
	RelatedChoices(code string, in Collection) ([]Choice, error)

	// ActiveRanges resolves the promotional ranges for the viewer:
	// partner scope first, then per-viewer ranges, then the default
	// active special-price set.
	ActiveRanges(v *Viewer) []uint

	WishlistChoices(v *Viewer) []Choice
	OrderChoices(v *Viewer) []Choice
}
