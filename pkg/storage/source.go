package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"

	"github.com/lib/pq"

	"github.com/snake-soft/pg-search/pkg/types"
)

// DB is the connection surface the source needs, satisfied by *sql.DB
// and *sql.Tx.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Relation names the lookup table behind a related product field, the
// choice labels come from its LabelColumn.
type Relation struct {
	Table       string
	LabelColumn string
}

// Source is the Postgres catalogue backend. Ranking runs on pg_trgm, the
// memory backend in pkg/catalog mirrors the same scores.
type Source struct {
	db DB

	mu         sync.RWMutex
	fields     map[string]types.FieldInfo
	fieldOrder []string
	related    map[string]Relation

	// ViewerRanges is the optional per-viewer range resolution hook, used
	// when no partner scope applies.
	ViewerRanges func(v *types.Viewer) []uint

	trgmOnce sync.Once
	trgm     bool
}

func NewSource(db DB) *Source {
	return &Source{
		db:      db,
		fields:  map[string]types.FieldInfo{},
		related: map[string]Relation{},
	}
}

// RegisterField declares a filterable product-intrinsic field backed by a
// products column of the same code.
func (s *Source) RegisterField(info types.FieldInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fields[info.Code]; !ok {
		s.fieldOrder = append(s.fieldOrder, info.Code)
	}
	s.fields[info.Code] = info
}

// RegisterRelation declares the lookup table behind a FieldRelated code.
func (s *Source) RegisterRelation(code string, rel Relation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.related[code] = rel
}

func (s *Source) VisibleProducts(v *types.Viewer) types.Collection {
	where := cond{sql: "p.browsable"}
	if v != nil && v.Partner != nil {
		where = allOf(where, cond{
			sql:  "(p.partner_id = 0 OR p.partner_id = ?)",
			args: []interface{}{int64(v.Partner.Id)},
		})
	} else {
		where = allOf(where, cond{sql: "p.partner_id = 0"})
	}
	return s.newQuerySet(where)
}

func (s *Source) SupportsSimilarity() bool {
	s.trgmOnce.Do(func() {
		var count int
		err := s.db.QueryRowContext(context.Background(),
			"SELECT COUNT(*) FROM pg_extension WHERE extname = 'pg_trgm'").Scan(&count)
		if err != nil {
			log.Printf("storage: pg_trgm probe failed: %v", err)
			return
		}
		s.trgm = count > 0
	})
	return s.trgm
}

func (s *Source) BrowsableCategories() []types.CategoryId {
	rows, err := s.db.QueryContext(context.Background(),
		"SELECT id FROM categories WHERE browsable ORDER BY id")
	if err != nil {
		log.Printf("storage: browsable categories query failed: %v", err)
		return nil
	}
	defer rows.Close()
	ids := []types.CategoryId{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			log.Printf("storage: category scan failed: %v", err)
			return nil
		}
		ids = append(ids, types.CategoryId(id))
	}
	return ids
}

func (s *Source) BestCategoryMatch(rank types.Rank, threshold float64) (types.CategoryId, bool) {
	expr := rankExpr("c", rank)
	query := "SELECT c.id FROM categories c WHERE c.browsable AND " + expr.sql + " >= ?" +
		" ORDER BY c.depth ASC, " + expr.sql + " DESC LIMIT 1"
	args := append([]interface{}{}, expr.args...)
	args = append(args, threshold)
	args = append(args, expr.args...)
	var id int64
	err := s.db.QueryRowContext(context.Background(), rebind(query), args...).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false
	}
	if err != nil {
		log.Printf("storage: category match query failed: %v", err)
		return 0, false
	}
	return types.CategoryId(id), true
}

func (s *Source) DescendantsAndSelf(id types.CategoryId) []types.CategoryId {
	query := `
		WITH RECURSIVE tree AS (
			SELECT id FROM categories WHERE id = $1
			UNION ALL
			SELECT c.id FROM categories c JOIN tree t ON c.parent_id = t.id
		)
		SELECT id FROM tree`
	rows, err := s.db.QueryContext(context.Background(), query, int64(id))
	if err != nil {
		log.Printf("storage: descendants query failed: %v", err)
		return []types.CategoryId{id}
	}
	defer rows.Close()
	ids := []types.CategoryId{}
	for rows.Next() {
		var cid int64
		if err := rows.Scan(&cid); err != nil {
			log.Printf("storage: descendants scan failed: %v", err)
			return []types.CategoryId{id}
		}
		ids = append(ids, types.CategoryId(cid))
	}
	return ids
}

// memberCond restricts a row column to members of the collection. Sets
// from the same source embed as a subquery, foreign sets fall back to an
// id list.
func (s *Source) memberCond(column string, in types.Collection) cond {
	if qs, ok := in.(*querySet); ok && qs.src == s {
		return cond{
			sql:  column + " IN (SELECT p.id FROM products p WHERE " + qs.where.sql + ")",
			args: qs.where.args,
		}
	}
	return cond{sql: column + " = ANY(?)", args: []interface{}{productIdArray(in.Ids())}}
}

func (s *Source) FilterableAttributes(in types.Collection, disabled []string) ([]types.AttributeInfo, error) {
	member := s.memberCond("av.product_id", in)
	query := `
		SELECT DISTINCT ON (a.name, COALESCE(a.option_group_id, 0))
			a.id, a.code, a.name, a.type, COALESCE(a.option_group_id, 0)
		FROM attributes a
		WHERE a.filter_enabled
		  AND NOT (a.code = ANY(?))
		  AND EXISTS (SELECT 1 FROM attribute_values av WHERE av.attribute_id = a.id AND ` + member.sql + `)
		ORDER BY a.name, COALESCE(a.option_group_id, 0), a.id`
	args := append([]interface{}{pq.Array(disabled)}, member.args...)
	rows, err := s.db.QueryContext(context.Background(), rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("filterable attributes: %w", err)
	}
	defer rows.Close()
	result := []types.AttributeInfo{}
	for rows.Next() {
		var info types.AttributeInfo
		var id, group int64
		if err := rows.Scan(&id, &info.Code, &info.Name, &info.Type, &group); err != nil {
			return nil, fmt.Errorf("filterable attributes: %w", err)
		}
		info.Id = types.AttributeId(id)
		info.OptionGroup = uint(group)
		result = append(result, info)
	}
	return result, rows.Err()
}

func (s *Source) ProductField(code string) (types.FieldInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.fields[code]
	if !ok {
		return types.FieldInfo{}, fmt.Errorf("%w: product field %q has no backing relation", types.ErrConfiguration, code)
	}
	return info, nil
}

func (s *Source) AttributeValueContents(attr types.AttributeId, valueIds []string) []string {
	parsed := []int64{}
	for _, raw := range valueIds {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		parsed = append(parsed, id)
	}
	if len(parsed) == 0 {
		return []string{}
	}
	rows, err := s.db.QueryContext(context.Background(),
		"SELECT id, content FROM attribute_values WHERE attribute_id = $1 AND id = ANY($2)",
		int64(attr), pq.Array(parsed))
	if err != nil {
		log.Printf("storage: value contents query failed: %v", err)
		return []string{}
	}
	defer rows.Close()
	byId := map[int64]string{}
	for rows.Next() {
		var id int64
		var content string
		if err := rows.Scan(&id, &content); err != nil {
			log.Printf("storage: value contents scan failed: %v", err)
			return []string{}
		}
		byId[id] = content
	}
	contents := []string{}
	for _, id := range parsed {
		if content, ok := byId[id]; ok {
			contents = append(contents, content)
		}
	}
	return contents
}

func (s *Source) DistinctAttributeValues(attr types.AttributeId, in types.Collection) []types.Choice {
	member := s.memberCond("av.product_id", in)
	query := "SELECT av.id, av.content FROM attribute_values av" +
		" WHERE av.attribute_id = ? AND " + member.sql
	args := append([]interface{}{int64(attr)}, member.args...)
	rows, err := s.db.QueryContext(context.Background(), rebind(query), args...)
	if err != nil {
		log.Printf("storage: distinct values query failed: %v", err)
		return nil
	}
	defer rows.Close()
	type row struct {
		id      int64
		content string
	}
	matching := []row{}
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.content); err != nil {
			log.Printf("storage: distinct values scan failed: %v", err)
			return nil
		}
		matching = append(matching, r)
	}
	sort.Slice(matching, func(i, j int) bool {
		if c := types.CompareValues(matching[i].content, matching[j].content); c != 0 {
			return c < 0
		}
		return matching[i].id < matching[j].id
	})
	choices := []types.Choice{}
	seen := map[string]struct{}{}
	for _, r := range matching {
		canon := types.NormalizeDecimal(r.content)
		if _, ok := seen[canon]; ok {
			continue
		}
		seen[canon] = struct{}{}
		choices = append(choices, types.Choice{
			Value: strconv.FormatInt(r.id, 10),
			Label: r.content,
		})
	}
	return choices
}

func (s *Source) OptionsInUse(attr types.AttributeId, group uint, in types.Collection, multi bool) []types.Choice {
	member := s.memberCond("av.product_id", in)
	var query string
	if multi {
		query = "SELECT DISTINCT o.id, o.label FROM options o" +
			" JOIN attribute_value_options avo ON avo.option_id = o.id" +
			" JOIN attribute_values av ON av.id = avo.value_id" +
			" WHERE av.attribute_id = ? AND o.group_id = ? AND " + member.sql +
			" ORDER BY o.label, o.id"
	} else {
		query = "SELECT DISTINCT o.id, o.label FROM options o" +
			" JOIN attribute_values av ON av.option_id = o.id" +
			" WHERE av.attribute_id = ? AND o.group_id = ? AND " + member.sql +
			" ORDER BY o.label, o.id"
	}
	args := append([]interface{}{int64(attr), int64(group)}, member.args...)
	rows, err := s.db.QueryContext(context.Background(), rebind(query), args...)
	if err != nil {
		log.Printf("storage: options query failed: %v", err)
		return nil
	}
	defer rows.Close()
	choices := []types.Choice{}
	seen := map[string]struct{}{}
	for rows.Next() {
		var id int64
		var label string
		if err := rows.Scan(&id, &label); err != nil {
			log.Printf("storage: options scan failed: %v", err)
			return nil
		}
		if !multi {
			// Single-option relation collapses duplicate labels, first
			// occurrence wins. Kept as observed behavior.
			if _, ok := seen[label]; ok {
				continue
			}
			seen[label] = struct{}{}
		}
		choices = append(choices, types.Choice{
			Value: strconv.FormatInt(id, 10),
			Label: label,
		})
	}
	return choices
}

func (s *Source) DistinctFieldValues(code string, in types.Collection) []string {
	if !identPattern.MatchString(code) {
		log.Printf("storage: refusing field code %q", code)
		return nil
	}
	member := s.memberCond("p.id", in)
	query := fmt.Sprintf("SELECT DISTINCT p.%s FROM products p"+
		" WHERE COALESCE(p.%s, '') <> '' AND %s", code, code, member.sql)
	rows, err := s.db.QueryContext(context.Background(), rebind(query), member.args...)
	if err != nil {
		log.Printf("storage: field values query failed: %v", err)
		return nil
	}
	defer rows.Close()
	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			log.Printf("storage: field values scan failed: %v", err)
			return nil
		}
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool {
		return types.CompareValues(values[i], values[j]) < 0
	})
	return values
}

func (s *Source) RelatedChoices(code string, in types.Collection) ([]types.Choice, error) {
	s.mu.RLock()
	rel, ok := s.related[code]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no related records for field %q", types.ErrConfiguration, code)
	}
	if !identPattern.MatchString(code) || !identPattern.MatchString(rel.Table) || !identPattern.MatchString(rel.LabelColumn) {
		return nil, fmt.Errorf("%w: invalid relation for field %q", types.ErrConfiguration, code)
	}
	member := s.memberCond("p.id", in)
	query := fmt.Sprintf("SELECT DISTINCT r.id, r.%s FROM %s r"+
		" JOIN products p ON p.%s_id = r.id WHERE %s ORDER BY r.%s",
		rel.LabelColumn, rel.Table, code, member.sql, rel.LabelColumn)
	rows, err := s.db.QueryContext(context.Background(), rebind(query), member.args...)
	if err != nil {
		return nil, fmt.Errorf("related choices: %w", err)
	}
	defer rows.Close()
	choices := []types.Choice{}
	for rows.Next() {
		var id int64
		var label string
		if err := rows.Scan(&id, &label); err != nil {
			return nil, fmt.Errorf("related choices: %w", err)
		}
		choices = append(choices, types.Choice{
			Value: strconv.FormatInt(id, 10),
			Label: label,
		})
	}
	return choices, rows.Err()
}

func (s *Source) ActiveRanges(v *types.Viewer) []uint {
	if v != nil && v.Partner != nil {
		return s.rangeIds("SELECT id FROM ranges WHERE is_active AND partner_id = $1 ORDER BY id", int64(v.Partner.Id))
	}
	if s.ViewerRanges != nil {
		return s.ViewerRanges(v)
	}
	return s.rangeIds("SELECT id FROM ranges WHERE is_active AND special_price ORDER BY id")
}

func (s *Source) rangeIds(query string, args ...interface{}) []uint {
	rows, err := s.db.QueryContext(context.Background(), query, args...)
	if err != nil {
		log.Printf("storage: ranges query failed: %v", err)
		return nil
	}
	defer rows.Close()
	ids := []uint{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			log.Printf("storage: ranges scan failed: %v", err)
			return nil
		}
		ids = append(ids, uint(id))
	}
	return ids
}

func (s *Source) WishlistChoices(v *types.Viewer) []types.Choice {
	if v == nil {
		return nil
	}
	asLink := v.Partner != nil && v.Partner.WishlistAsLink
	rows, err := s.db.QueryContext(context.Background(),
		"SELECT id, key, name FROM wishlists WHERE owner_id = $1 ORDER BY id", int64(v.Id))
	if err != nil {
		log.Printf("storage: wishlists query failed: %v", err)
		return nil
	}
	defer rows.Close()
	choices := []types.Choice{}
	if asLink {
		choices = append(choices, types.Choice{Value: "", Label: "jump to list"})
	}
	for rows.Next() {
		var id int64
		var key, name string
		if err := rows.Scan(&id, &key, &name); err != nil {
			log.Printf("storage: wishlists scan failed: %v", err)
			return nil
		}
		if asLink {
			choices = append(choices, types.Choice{Value: key, Label: name})
		} else {
			choices = append(choices, types.Choice{
				Value: strconv.FormatInt(id, 10),
				Label: name,
			})
		}
	}
	if asLink && len(choices) == 1 {
		return nil
	}
	return choices
}

func (s *Source) OrderChoices(v *types.Viewer) []types.Choice {
	if v == nil {
		return nil
	}
	rows, err := s.db.QueryContext(context.Background(),
		"SELECT id, number, date_placed FROM orders WHERE owner_id = $1 ORDER BY date_placed DESC, id DESC",
		int64(v.Id))
	if err != nil {
		log.Printf("storage: orders query failed: %v", err)
		return nil
	}
	defer rows.Close()
	choices := []types.Choice{}
	for rows.Next() {
		var id int64
		var number string
		var placed sql.NullTime
		if err := rows.Scan(&id, &number, &placed); err != nil {
			log.Printf("storage: orders scan failed: %v", err)
			return nil
		}
		choices = append(choices, types.Choice{
			Value: strconv.FormatInt(id, 10),
			Label: fmt.Sprintf("%s (%s)", number, placed.Time.Format("2006-01-02")),
		})
	}
	return choices
}
