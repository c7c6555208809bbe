package catalog

import (
	"reflect"
	"testing"

	"github.com/snake-soft/pg-search/pkg/types"
)

type fixedPricer map[types.ProductId]float64

func (p fixedPricer) Price(id types.ProductId) (float64, bool) {
	v, ok := p[id]
	return v, ok
}

func TestSetFilter_DoesNotMutateBase(t *testing.T) {
	s := testStore()
	base := s.VisibleProducts(nil)
	before := base.Ids()

	base.Filter(types.FieldIn{Code: "weight", Values: []string{"0.5"}})

	if !reflect.DeepEqual(base.Ids(), before) {
		t.Errorf("Expected base unchanged but got %v", base.Ids())
	}
}

func TestSetFilter_FieldInDecimalEquality(t *testing.T) {
	s := testStore()
	got := s.VisibleProducts(nil).Filter(types.FieldIn{Code: "weight", Values: []string{"0.50"}}).Ids()
	if !reflect.DeepEqual(got, []types.ProductId{1}) {
		t.Errorf("Expected [1] but got %v", got)
	}
}

func TestSetFilter_FieldInIntrinsicUpc(t *testing.T) {
	s := testStore()
	got := s.VisibleProducts(nil).Filter(types.FieldIn{Code: "upc", Values: []string{"1002"}}).Ids()
	if !reflect.DeepEqual(got, []types.ProductId{2}) {
		t.Errorf("Expected [2] but got %v", got)
	}
}

func TestSetUnion_KeepsLeftOrderAndDeduplicates(t *testing.T) {
	s := testStore()
	left := s.VisibleProducts(nil).Filter(types.FieldIn{Code: "volume", Values: []string{"0.75"}})
	right := s.VisibleProducts(nil)

	got := left.Union(right).Ids()
	want := []types.ProductId{1, 2}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v but got %v", want, got)
	}
}

func TestSetOrderBy_Priority(t *testing.T) {
	s := testStore()
	got := s.VisibleProducts(nil).OrderBy(
		types.OrderTerm{Field: "priority", Desc: true},
		types.OrderTerm{Field: "date_created", Desc: true},
	).Ids()
	want := []types.ProductId{1, 2}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v but got %v", want, got)
	}
}

func TestSetAnnotate_PriceFiltersUnpriced(t *testing.T) {
	s := testStore()
	pricer := fixedPricer{1: 9.95}
	qs := s.VisibleProducts(nil).
		Annotate("price", types.PriceAnnotation{Pricer: pricer}).
		Filter(types.Annotated{Name: "price"})
	if got := qs.Ids(); !reflect.DeepEqual(got, []types.ProductId{1}) {
		t.Errorf("Expected [1] but got %v", got)
	}
}

func TestSetOrderBy_PriceAscending(t *testing.T) {
	s := testStore()
	pricer := fixedPricer{1: 9.95, 2: 4.5}
	got := s.VisibleProducts(nil).
		Annotate("price", types.PriceAnnotation{Pricer: pricer}).
		OrderBy(types.OrderTerm{Field: "price"}).Ids()
	want := []types.ProductId{2, 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v but got %v", want, got)
	}
}

func TestSetFilter_RankAbove(t *testing.T) {
	s := testStore()
	rank := types.Rank{Query: "rioja reserva", Terms: []types.RankTerm{{Field: "title", Weight: 1}}}
	got := s.VisibleProducts(nil).Filter(types.RankAbove{Rank: rank, Threshold: 0.1}).Ids()
	if !reflect.DeepEqual(got, []types.ProductId{1}) {
		t.Errorf("Expected [1] but got %v", got)
	}
}

func TestSetFilter_OptionInByCode(t *testing.T) {
	s := testStore()
	s.AddAttribute(&Attribute{
		AttributeInfo: types.AttributeInfo{Id: 8, Code: "grape", Name: "Grape", Type: types.AttributeOption, OptionGroup: 1},
		FilterEnabled: true,
	})
	s.AddOption(&Option{Id: 1, Group: 1, Code: "tempranillo", Label: "Tempranillo"})
	s.AddValue(&AttributeValue{Id: 3, Product: 1, Attribute: 8, Option: 1})

	got := s.VisibleProducts(nil).
		Filter(types.OptionIn{Attribute: 8, Codes: []string{"tempranillo"}}).Ids()
	if !reflect.DeepEqual(got, []types.ProductId{1}) {
		t.Errorf("Expected [1] but got %v", got)
	}
}

func TestSetFilter_WishlistAndOrder(t *testing.T) {
	s := testStore()
	s.AddWishlist(&types.WishlistEntry{Id: 1, OwnerId: 7, Products: []types.ProductId{1}})
	s.AddOrder(&types.OrderEntry{Id: 2, OwnerId: 7, Products: []types.ProductId{2}})

	or := types.Or{
		types.WishlistIn{Wishlists: []uint{1}},
		types.OrderIn{Orders: []uint{2}},
	}
	got := s.VisibleProducts(nil).Filter(or).Ids()
	want := []types.ProductId{1, 2}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v but got %v", want, got)
	}
}

func TestSetFilter_EmptyAttributeValueInMatchesNothing(t *testing.T) {
	s := testStore()
	got := s.VisibleProducts(nil).
		Filter(types.AttributeValueIn{Attribute: 7, Type: types.AttributeText}).Ids()
	if len(got) != 0 {
		t.Errorf("Expected empty result but got %v", got)
	}
}
