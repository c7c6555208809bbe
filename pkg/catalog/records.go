package catalog

import (
	"time"

	"github.com/snake-soft/pg-search/pkg/types"
)

type Product struct {
	Id              types.ProductId
	UPC             string
	AltUPC          string
	Title           string
	Slug            string
	Description     string
	MetaTitle       string
	MetaDescription string
	Priority        float64
	DateCreated     time.Time
	DateUpdated     time.Time
	Categories      []types.CategoryId
	// Fields holds intrinsic scalar values by field code (weight, volume).
	Fields map[string]string
	// Refs holds foreign-key field values by field code (manufacturer).
	Refs      map[string]uint
	Browsable bool
	PartnerId uint
}

func (p *Product) fieldText(field string) string {
	switch field {
	case "upc":
		return p.UPC
	case "alt_upc":
		return p.AltUPC
	case "title":
		return p.Title
	case "slug":
		return p.Slug
	case "description":
		return p.Description
	case "meta_title":
		return p.MetaTitle
	case "meta_description":
		return p.MetaDescription
	}
	return ""
}

type Category struct {
	Id              types.CategoryId
	Parent          types.CategoryId
	Depth           int
	Name            string
	Description     string
	MetaTitle       string
	MetaDescription string
	Browsable       bool
}

func (c *Category) fieldText(field string) string {
	switch field {
	case "name":
		return c.Name
	case "description":
		return c.Description
	case "meta_title":
		return c.MetaTitle
	case "meta_description":
		return c.MetaDescription
	}
	return ""
}

type Attribute struct {
	types.AttributeInfo
	FilterEnabled bool
}

type Option struct {
	Id    types.OptionId
	Group uint
	Code  string
	Label string
}

type AttributeValue struct {
	Id        types.ValueId
	Product   types.ProductId
	Attribute types.AttributeId
	// Content is the scalar content for text/float/integer attributes.
	Content string
	// Option links the single-valued option relation, MultiOptions the
	// many-valued one.
	Option       types.OptionId
	MultiOptions []types.OptionId
}

// Range is a promotional product range, products in an active range are
// what the offer-only facet matches.
type Range struct {
	Id           uint
	Partner      uint
	Active       bool
	SpecialPrice bool
	Products     []types.ProductId
}

func (r *Range) contains(id types.ProductId) bool {
	for _, p := range r.Products {
		if p == id {
			return true
		}
	}
	return false
}
