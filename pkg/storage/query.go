package storage

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/snake-soft/pg-search/pkg/types"
)

var identPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// cond is one SQL fragment with its arguments, placeholders are written
// as ? and renumbered to $n when the statement is rendered.
type cond struct {
	sql  string
	args []interface{}
}

var (
	condTrue  = cond{sql: "TRUE"}
	condFalse = cond{sql: "FALSE"}
)

func allOf(conds ...cond) cond {
	if len(conds) == 0 {
		return condTrue
	}
	parts := make([]string, 0, len(conds))
	args := []interface{}{}
	for _, c := range conds {
		parts = append(parts, "("+c.sql+")")
		args = append(args, c.args...)
	}
	return cond{sql: strings.Join(parts, " AND "), args: args}
}

func anyOf(conds ...cond) cond {
	if len(conds) == 0 {
		return condFalse
	}
	parts := make([]string, 0, len(conds))
	args := []interface{}{}
	for _, c := range conds {
		parts = append(parts, "("+c.sql+")")
		args = append(args, c.args...)
	}
	return cond{sql: strings.Join(parts, " OR "), args: args}
}

// rebind rewrites ? placeholders to numbered $n placeholders.
func rebind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// rankExpr renders the weighted trigram similarity sum for rows of the
// aliased table. Every term contributes one query argument.
func rankExpr(alias string, r types.Rank) cond {
	parts := []string{}
	args := []interface{}{}
	for _, t := range r.Terms {
		if !identPattern.MatchString(t.Field) {
			log.Printf("storage: refusing rank field %q", t.Field)
			continue
		}
		weight := strconv.FormatFloat(t.Weight, 'f', -1, 64)
		parts = append(parts, fmt.Sprintf("similarity(coalesce(%s.%s, ''), ?) * %s", alias, t.Field, weight))
		args = append(args, r.Query)
	}
	if len(parts) == 0 {
		return cond{sql: "0"}
	}
	return cond{sql: "(" + strings.Join(parts, " + ") + ")", args: args}
}

func uintArray(ids []uint) interface{} {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return pq.Array(out)
}

func productIdArray(ids []types.ProductId) interface{} {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return pq.Array(out)
}

func allNumeric(values []string) bool {
	for _, v := range values {
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return false
		}
	}
	return len(values) > 0
}

// querySet is the SQL-backed Collection. Operations are pure, each one
// derives a new set with an extended WHERE clause. Rows are only fetched
// by the terminal calls.
type querySet struct {
	src      *Source
	where    cond
	anns     map[string]cond
	order    []types.OrderTerm
	distinct bool

	// priced holds the materialized price annotation, the pricing step
	// runs outside the database.
	priced map[types.ProductId]float64
}

func (s *Source) newQuerySet(where cond) *querySet {
	return &querySet{src: s, where: where}
}

func (q *querySet) clone() *querySet {
	out := &querySet{
		src:      q.src,
		where:    q.where,
		order:    q.order,
		distinct: q.distinct,
		priced:   q.priced,
	}
	if q.anns != nil {
		out.anns = map[string]cond{}
		for k, v := range q.anns {
			out.anns[k] = v
		}
	}
	return out
}

func (q *querySet) Filter(p types.Predicate) types.Collection {
	out := q.clone()
	out.where = allOf(out.where, q.compile(p))
	return out
}

func (q *querySet) Union(other types.Collection) types.Collection {
	out := q.clone()
	if o, ok := other.(*querySet); ok && o.src == q.src {
		out.where = anyOf(q.where, o.where)
		for k, v := range o.anns {
			if out.anns == nil {
				out.anns = map[string]cond{}
			}
			if _, dup := out.anns[k]; !dup {
				out.anns[k] = v
			}
		}
		if out.priced == nil {
			out.priced = o.priced
		} else if o.priced != nil {
			merged := map[types.ProductId]float64{}
			for id, p := range out.priced {
				merged[id] = p
			}
			for id, p := range o.priced {
				if _, dup := merged[id]; !dup {
					merged[id] = p
				}
			}
			out.priced = merged
		}
		return out
	}
	if other == nil {
		return out
	}
	out.where = anyOf(q.where, cond{sql: "p.id = ANY(?)", args: []interface{}{productIdArray(other.Ids())}})
	return out
}

func (q *querySet) OrderBy(terms ...types.OrderTerm) types.Collection {
	out := q.clone()
	out.order = terms
	return out
}

func (q *querySet) Annotate(name string, a types.Annotation) types.Collection {
	out := q.clone()
	switch ann := a.(type) {
	case types.RankAnnotation:
		if out.anns == nil {
			out.anns = map[string]cond{}
		}
		out.anns[name] = rankExpr("p", ann.Rank)
	case types.PriceAnnotation:
		priced := map[types.ProductId]float64{}
		for _, id := range q.Ids() {
			if price, ok := ann.Pricer.Price(id); ok {
				priced[id] = price
			}
		}
		out.priced = priced
	}
	return out
}

func (q *querySet) Distinct() types.Collection {
	out := q.clone()
	out.distinct = true
	return out
}

func (q *querySet) Exists() bool {
	query := "SELECT EXISTS (SELECT 1 FROM products p WHERE " + q.where.sql + ")"
	var exists bool
	err := q.src.db.QueryRowContext(context.Background(), rebind(query), q.where.args...).Scan(&exists)
	if err != nil {
		log.Printf("storage: exists query failed: %v", err)
		return false
	}
	return exists
}

func (q *querySet) Count() int {
	query := "SELECT COUNT(DISTINCT p.id) FROM products p WHERE " + q.where.sql
	var count int
	err := q.src.db.QueryRowContext(context.Background(), rebind(query), q.where.args...).Scan(&count)
	if err != nil {
		log.Printf("storage: count query failed: %v", err)
		return 0
	}
	return count
}

func (q *querySet) Contains(id types.ProductId) bool {
	query := "SELECT EXISTS (SELECT 1 FROM products p WHERE (" + q.where.sql + ") AND p.id = ?)"
	args := append(append([]interface{}{}, q.where.args...), int64(id))
	var exists bool
	err := q.src.db.QueryRowContext(context.Background(), rebind(query), args...).Scan(&exists)
	if err != nil {
		log.Printf("storage: contains query failed: %v", err)
		return false
	}
	return exists
}

func (q *querySet) Ids() []types.ProductId {
	query, args, priceTerm := q.buildSelect()
	rows, err := q.src.db.QueryContext(context.Background(), rebind(query), args...)
	if err != nil {
		log.Printf("storage: select query failed: %v", err)
		return nil
	}
	defer rows.Close()

	ids := []types.ProductId{}
	for rows.Next() {
		var id int64
		dest := []interface{}{&id}
		// Annotation columns added for DISTINCT ordering are discarded.
		for i := 1; i < q.selectWidth(); i++ {
			var sink interface{}
			dest = append(dest, &sink)
		}
		if err := rows.Scan(dest...); err != nil {
			log.Printf("storage: row scan failed: %v", err)
			return nil
		}
		ids = append(ids, types.ProductId(id))
	}
	if err := rows.Err(); err != nil {
		log.Printf("storage: row iteration failed: %v", err)
	}

	if priceTerm != nil {
		desc := priceTerm.Desc
		sort.SliceStable(ids, func(i, j int) bool {
			a, b := q.priced[ids[i]], q.priced[ids[j]]
			if desc {
				return a > b
			}
			return a < b
		})
	}
	return ids
}

// selectWidth is the number of columns buildSelect emits.
func (q *querySet) selectWidth() int {
	width := 1
	if !q.distinct {
		return width
	}
	for _, t := range q.order {
		if t.Field == "price" && q.priced != nil {
			continue
		}
		if _, ok := q.anns[t.Field]; ok {
			width++
			continue
		}
		if t.Field != "id" && identPattern.MatchString(t.Field) {
			width++
		}
	}
	return width
}

// buildSelect renders the id query. Price ordering cannot run in the
// database, the matching term is returned for a Go-side sort instead.
func (q *querySet) buildSelect() (string, []interface{}, *types.OrderTerm) {
	columns := []string{"p.id"}
	orderParts := []string{}
	args := append([]interface{}{}, q.where.args...)
	exprArgs := []interface{}{}
	var priceTerm *types.OrderTerm

	for _, t := range q.order {
		t := t
		if t.Field == "price" && q.priced != nil {
			priceTerm = &t
			continue
		}
		dir := "ASC"
		if t.Desc {
			dir = "DESC"
		}
		if expr, ok := q.anns[t.Field]; ok {
			if q.distinct {
				alias := "ann_" + t.Field
				columns = append(columns, expr.sql+" AS "+alias)
				orderParts = append(orderParts, alias+" "+dir)
			} else {
				orderParts = append(orderParts, expr.sql+" "+dir)
			}
			exprArgs = append(exprArgs, expr.args...)
			continue
		}
		if !identPattern.MatchString(t.Field) {
			log.Printf("storage: refusing order field %q", t.Field)
			continue
		}
		if q.distinct && t.Field != "id" {
			// DISTINCT requires every ORDER BY column in the select list.
			columns = append(columns, "p."+t.Field)
		}
		orderParts = append(orderParts, "p."+t.Field+" "+dir)
	}

	selectKeyword := "SELECT"
	if q.distinct {
		selectKeyword = "SELECT DISTINCT"
	}
	query := selectKeyword + " " + strings.Join(columns, ", ") +
		" FROM products p WHERE " + q.where.sql

	if q.distinct {
		// Annotation expressions appear in the select list, arguments
		// bind in select-list order ahead of the WHERE clause.
		args = append(exprArgs, args...)
	} else {
		args = append(args, exprArgs...)
	}
	if len(orderParts) > 0 {
		query += " ORDER BY " + strings.Join(orderParts, ", ")
	}
	return query, args, priceTerm
}

// compile lowers a predicate to a WHERE fragment over products p.
func (q *querySet) compile(p types.Predicate) cond {
	switch t := p.(type) {
	case types.And:
		conds := make([]cond, len(t))
		for i, inner := range t {
			conds[i] = q.compile(inner)
		}
		return allOf(conds...)
	case types.Or:
		conds := make([]cond, len(t))
		for i, inner := range t {
			conds[i] = q.compile(inner)
		}
		return anyOf(conds...)
	case types.Not:
		inner := q.compile(t.Inner)
		return cond{sql: "NOT (" + inner.sql + ")", args: inner.args}
	case types.FieldIn:
		return compileFieldIn(t)
	case types.ForeignKeyIn:
		if !identPattern.MatchString(t.Code) {
			log.Printf("storage: refusing foreign key code %q", t.Code)
			return condFalse
		}
		if len(t.Ids) == 0 {
			return condFalse
		}
		return cond{
			sql:  fmt.Sprintf("p.%s_id = ANY(?)", t.Code),
			args: []interface{}{uintArray(t.Ids)},
		}
	case types.AttributeValueIn:
		return compileAttributeValueIn(t)
	case types.OptionIn:
		return compileOptionIn(t)
	case types.CategoryIn:
		if len(t.Categories) == 0 {
			return condFalse
		}
		ids := make([]uint, len(t.Categories))
		for i, id := range t.Categories {
			ids[i] = uint(id)
		}
		return cond{
			sql:  "EXISTS (SELECT 1 FROM product_categories pc WHERE pc.product_id = p.id AND pc.category_id = ANY(?))",
			args: []interface{}{uintArray(ids)},
		}
	case types.RangeIn:
		if len(t.Ranges) == 0 {
			return condFalse
		}
		return cond{
			sql:  "EXISTS (SELECT 1 FROM range_products rp WHERE rp.product_id = p.id AND rp.range_id = ANY(?))",
			args: []interface{}{uintArray(t.Ranges)},
		}
	case types.WishlistIn:
		if len(t.Wishlists) == 0 {
			return condFalse
		}
		return cond{
			sql:  "EXISTS (SELECT 1 FROM wishlist_lines wl WHERE wl.product_id = p.id AND wl.wishlist_id = ANY(?))",
			args: []interface{}{uintArray(t.Wishlists)},
		}
	case types.OrderIn:
		if len(t.Orders) == 0 {
			return condFalse
		}
		return cond{
			sql:  "EXISTS (SELECT 1 FROM order_lines ol WHERE ol.product_id = p.id AND ol.order_id = ANY(?))",
			args: []interface{}{uintArray(t.Orders)},
		}
	case types.RankAbove:
		expr := rankExpr("p", t.Rank)
		return cond{
			sql:  expr.sql + " > ?",
			args: append(expr.args, t.Threshold),
		}
	case types.Annotated:
		if t.Name == "price" && q.priced != nil {
			ids := make([]types.ProductId, 0, len(q.priced))
			for id := range q.priced {
				ids = append(ids, id)
			}
			return cond{sql: "p.id = ANY(?)", args: []interface{}{productIdArray(ids)}}
		}
		if _, ok := q.anns[t.Name]; ok {
			return condTrue
		}
		return condFalse
	default:
		log.Printf("storage: unhandled predicate %T", p)
		return condFalse
	}
}

func compileFieldIn(t types.FieldIn) cond {
	if !identPattern.MatchString(t.Code) {
		log.Printf("storage: refusing field code %q", t.Code)
		return condFalse
	}
	if len(t.Values) == 0 {
		return condFalse
	}
	if allNumeric(t.Values) {
		return cond{
			sql:  fmt.Sprintf("p.%s::numeric = ANY(?::numeric[])", t.Code),
			args: []interface{}{pq.Array(t.Values)},
		}
	}
	return cond{
		sql:  fmt.Sprintf("p.%s = ANY(?)", t.Code),
		args: []interface{}{pq.Array(t.Values)},
	}
}

func compileAttributeValueIn(t types.AttributeValueIn) cond {
	if len(t.Contents) == 0 {
		return condFalse
	}
	content := "av.content = ANY(?)"
	if t.Type == types.AttributeFloat || t.Type == types.AttributeInteger {
		content = "av.content::numeric = ANY(?::numeric[])"
	}
	return cond{
		sql: "EXISTS (SELECT 1 FROM attribute_values av" +
			" WHERE av.product_id = p.id AND av.attribute_id = ? AND " + content + ")",
		args: []interface{}{int64(t.Attribute), pq.Array(t.Contents)},
	}
}

func compileOptionIn(t types.OptionIn) cond {
	attr := int64(t.Attribute)
	if t.Multi {
		if len(t.Codes) > 0 {
			return cond{
				sql: "EXISTS (SELECT 1 FROM attribute_values av" +
					" JOIN attribute_value_options avo ON avo.value_id = av.id" +
					" JOIN options o ON o.id = avo.option_id" +
					" WHERE av.product_id = p.id AND av.attribute_id = ? AND o.code = ANY(?))",
				args: []interface{}{attr, pq.Array(t.Codes)},
			}
		}
		if len(t.Options) == 0 {
			return condFalse
		}
		ids := make([]uint, len(t.Options))
		for i, id := range t.Options {
			ids[i] = uint(id)
		}
		return cond{
			sql: "EXISTS (SELECT 1 FROM attribute_values av" +
				" JOIN attribute_value_options avo ON avo.value_id = av.id" +
				" WHERE av.product_id = p.id AND av.attribute_id = ? AND avo.option_id = ANY(?))",
			args: []interface{}{attr, uintArray(ids)},
		}
	}
	if len(t.Codes) > 0 {
		return cond{
			sql: "EXISTS (SELECT 1 FROM attribute_values av" +
				" JOIN options o ON o.id = av.option_id" +
				" WHERE av.product_id = p.id AND av.attribute_id = ? AND o.code = ANY(?))",
			args: []interface{}{attr, pq.Array(t.Codes)},
		}
	}
	if len(t.Options) == 0 {
		return condFalse
	}
	ids := make([]uint, len(t.Options))
	for i, id := range t.Options {
		ids[i] = uint(id)
	}
	return cond{
		sql: "EXISTS (SELECT 1 FROM attribute_values av" +
			" WHERE av.product_id = p.id AND av.attribute_id = ? AND av.option_id = ANY(?))",
		args: []interface{}{attr, uintArray(ids)},
	}
}
