package storage

import (
	"context"
	"database/sql"
	"log"

	"github.com/snake-soft/pg-search/pkg/types"
)

// StockPricer resolves prices from stock records, the cheapest record
// wins when several partners stock the same product.
type StockPricer struct {
	Db DB
}

func (p *StockPricer) Price(id types.ProductId) (float64, bool) {
	var price sql.NullFloat64
	err := p.Db.QueryRowContext(context.Background(),
		"SELECT MIN(price) FROM stock_records WHERE product_id = $1 AND price IS NOT NULL",
		int64(id)).Scan(&price)
	if err != nil || !price.Valid {
		return 0, false
	}
	return price.Float64, true
}

// Summary is the wire form of one result row.
type Summary struct {
	Id    types.ProductId `json:"id"`
	Upc   string          `json:"upc"`
	Title string          `json:"title"`
	Slug  string          `json:"slug"`
}

// SummaryLoader renders result ids as product summaries, preserving the
// incoming order.
type SummaryLoader struct {
	Db DB
}

func (l *SummaryLoader) Load(ids []types.ProductId) []any {
	if len(ids) == 0 {
		return []any{}
	}
	rows, err := l.Db.QueryContext(context.Background(),
		"SELECT id, upc, title, slug FROM products WHERE id = ANY($1)",
		productIdArray(ids))
	if err != nil {
		log.Printf("storage: summary query failed: %v", err)
		return []any{}
	}
	defer rows.Close()
	byId := map[types.ProductId]Summary{}
	for rows.Next() {
		var s Summary
		var id int64
		if err := rows.Scan(&id, &s.Upc, &s.Title, &s.Slug); err != nil {
			log.Printf("storage: summary scan failed: %v", err)
			return []any{}
		}
		s.Id = types.ProductId(id)
		byId[s.Id] = s
	}
	items := make([]any, 0, len(ids))
	for _, id := range ids {
		if s, ok := byId[id]; ok {
			items = append(items, s)
		}
	}
	return items
}
