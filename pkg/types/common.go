package types

import (
	"strconv"
	"strings"
	"time"
)

type ProductId uint
type CategoryId uint
type AttributeId uint
type OptionId uint
type ValueId uint

// Choice is one selectable facet option, Value is what goes back into the
// query parameters, Label is what gets rendered.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type AttributeType string

const (
	AttributeText        AttributeType = "text"
	AttributeFloat       AttributeType = "float"
	AttributeInteger     AttributeType = "integer"
	AttributeOption      AttributeType = "option"
	AttributeMultiOption AttributeType = "multi_option"
)

// AttributeInfo describes one product attribute definition as the backing
// store knows it.
type AttributeInfo struct {
	Id          AttributeId   `json:"id"`
	Code        string        `json:"code"`
	Name        string        `json:"name"`
	Type        AttributeType `json:"type"`
	OptionGroup uint          `json:"optionGroup,omitempty"`
}

type FieldKind int

const (
	FieldPlain FieldKind = iota
	FieldEnumerated
	FieldRelated
)

// FieldInfo describes one product-intrinsic field (weight, volume, ...).
// Enum is only set for FieldEnumerated kinds.
type FieldInfo struct {
	Code  string
	Label string
	Kind  FieldKind
	Enum  []Choice
}

// Partner is an optional tenant scope on the viewer. Active offers and the
// wishlist rendering mode can depend on it.
type Partner struct {
	Id             uint
	Name           string
	WishlistAsLink bool
}

// Viewer is the identity/session context for one request.
type Viewer struct {
	Id            uint
	Authenticated bool
	HidePrice     bool
	Partner       *Partner
}

// Pricer adds a comparable price to rows, supplied by the pricing strategy
// of the surrounding application.
type Pricer interface {
	Price(id ProductId) (float64, bool)
}

// WishlistEntry and OrderEntry are the personal collections the user
// filter group offers as choices.
type WishlistEntry struct {
	Id       uint
	Key      string
	Name     string
	OwnerId  uint
	Products []ProductId
}

type OrderEntry struct {
	Id         uint
	Number     string
	OwnerId    uint
	DatePlaced time.Time
	Products   []ProductId
}

// NormalizeDecimal strips trailing fraction zeros so "0.50" and "0.5"
// compare equal, matching numeric equality in the backing store.
func NormalizeDecimal(v string) string {
	if !strings.Contains(v, ".") {
		return v
	}
	v = strings.TrimRight(v, "0")
	return strings.TrimSuffix(v, ".")
}

// DecimalEquals compares two raw field values the way the backing store
// compares columns, numerically when both are decimal.
func DecimalEquals(a, b string) bool {
	if a == b {
		return true
	}
	return NormalizeDecimal(a) == NormalizeDecimal(b)
}

// CompareValues orders raw field values the way the backing store orders
// columns, numerically when both parse as decimals.
func CompareValues(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
