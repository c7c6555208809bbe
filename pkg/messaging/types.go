package messaging

import "github.com/snake-soft/pg-search/pkg/types"

type ChangeTopic string

const (
	ProductsChanged ChangeTopic = "products_changed"
	RangesChanged   ChangeTopic = "ranges_changed"
)

// ProductChange is the payload published when catalogue rows change,
// consumers drop cached search results for the affected products.
type ProductChange struct {
	Ids     []types.ProductId `json:"ids"`
	Deleted bool              `json:"deleted,omitempty"`
}

// RangeChange is the payload published when offer ranges change, an
// activation flip moves the offer facet in every cached result.
type RangeChange struct {
	Ids     []uint `json:"ids"`
	Deleted bool   `json:"deleted,omitempty"`
}

type RabbitConfig struct {
	Url    string
	VHost  string
	Prefix string
}
