package catalog

import (
	"reflect"
	"testing"
	"time"

	"github.com/snake-soft/pg-search/pkg/types"
)

func testStore() *Store {
	s := NewStore()
	s.AddCategory(&Category{Id: 1, Depth: 0, Name: "Wine", Browsable: true})
	s.AddCategory(&Category{Id: 10, Parent: 1, Depth: 1, Name: "Red wine", Browsable: true})
	s.AddCategory(&Category{Id: 11, Parent: 1, Depth: 1, Name: "White wine", Browsable: true})
	s.AddCategory(&Category{Id: 12, Parent: 10, Depth: 2, Name: "Rioja", Browsable: true})
	s.AddCategory(&Category{Id: 99, Depth: 0, Name: "Archive", Browsable: false})

	s.AddProduct(&Product{
		Id: 1, UPC: "1001", Title: "Rioja Reserva", Browsable: true,
		Categories:  []types.CategoryId{10, 12},
		Fields:      map[string]string{"weight": "0.5", "volume": "0.75"},
		Refs:        map[string]uint{"brand": 1},
		Priority:    2,
		DateCreated: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	})
	s.AddProduct(&Product{
		Id: 2, UPC: "1002", Title: "Chablis", Browsable: true,
		Categories:  []types.CategoryId{11},
		Fields:      map[string]string{"weight": "1.5", "volume": "0.75"},
		Refs:        map[string]uint{"brand": 2},
		Priority:    1,
		DateCreated: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	s.AddProduct(&Product{
		Id: 3, UPC: "1003", Title: "Partner exclusive", Browsable: true,
		Categories: []types.CategoryId{10},
		PartnerId:  5,
	})
	s.AddProduct(&Product{
		Id: 4, UPC: "1004", Title: "Retired", Browsable: false,
	})

	s.RegisterField(types.FieldInfo{Code: "weight", Label: "Weight"})
	s.RegisterField(types.FieldInfo{Code: "volume", Label: "Volume"})
	s.RegisterRelated("brand", 1, "Bodega Norte")
	s.RegisterRelated("brand", 2, "Domaine Sud")
	return s
}

func idsOf(c types.Collection) []types.ProductId {
	return c.Ids()
}

func TestVisibleProducts_SkipsUnbrowsable(t *testing.T) {
	s := testStore()
	got := idsOf(s.VisibleProducts(nil))
	want := []types.ProductId{1, 2}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v but got %v", want, got)
	}
}

func TestVisibleProducts_PartnerScope(t *testing.T) {
	s := testStore()
	v := &types.Viewer{Partner: &types.Partner{Id: 5}}
	got := idsOf(s.VisibleProducts(v))
	want := []types.ProductId{1, 2, 3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v but got %v", want, got)
	}
}

func TestBestCategoryMatch_PrefersShallowDepth(t *testing.T) {
	s := testStore()
	rank := types.Rank{Query: "wine", Terms: []types.RankTerm{{Field: "name", Weight: 1}}}
	id, ok := s.BestCategoryMatch(rank, 0.17)
	if !ok {
		t.Fatalf("Expected a match")
	}
	// "Wine" at depth 0 wins over the deeper red/white categories even
	// though all score above the threshold.
	if id != 1 {
		t.Errorf("Expected category 1 but got %d", id)
	}
}

func TestBestCategoryMatch_BelowThreshold(t *testing.T) {
	s := testStore()
	rank := types.Rank{Query: "zzzz", Terms: []types.RankTerm{{Field: "name", Weight: 1}}}
	if _, ok := s.BestCategoryMatch(rank, 0.17); ok {
		t.Errorf("Expected no match")
	}
}

func TestDescendantsAndSelf(t *testing.T) {
	s := testStore()
	got := s.DescendantsAndSelf(10)
	want := []types.CategoryId{10, 12}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v but got %v", want, got)
	}
}

func TestDistinctAttributeValues_DecimalDedupe(t *testing.T) {
	s := testStore()
	s.AddAttribute(&Attribute{
		AttributeInfo: types.AttributeInfo{Id: 7, Code: "alcohol", Name: "Alcohol", Type: types.AttributeFloat},
		FilterEnabled: true,
	})
	s.AddValue(&AttributeValue{Id: 1, Product: 1, Attribute: 7, Content: "12.50"})
	s.AddValue(&AttributeValue{Id: 2, Product: 2, Attribute: 7, Content: "12.5"})

	choices := s.DistinctAttributeValues(7, s.VisibleProducts(nil))
	if len(choices) != 1 {
		t.Fatalf("Expected 1 choice but got %v", choices)
	}
	// Lowest record id wins, its raw content is the label.
	if choices[0].Value != "1" || choices[0].Label != "12.50" {
		t.Errorf("Expected {1 12.50} but got %v", choices[0])
	}
}

func TestOptionsInUse_DuplicateLabelFirstWins(t *testing.T) {
	s := testStore()
	s.AddAttribute(&Attribute{
		AttributeInfo: types.AttributeInfo{Id: 8, Code: "grape", Name: "Grape", Type: types.AttributeOption, OptionGroup: 1},
		FilterEnabled: true,
	})
	s.AddOption(&Option{Id: 1, Group: 1, Code: "tempranillo", Label: "Tempranillo"})
	s.AddOption(&Option{Id: 2, Group: 1, Code: "tempranillo-2", Label: "Tempranillo"})
	s.AddValue(&AttributeValue{Id: 3, Product: 1, Attribute: 8, Option: 1})
	s.AddValue(&AttributeValue{Id: 4, Product: 2, Attribute: 8, Option: 2})

	choices := s.OptionsInUse(8, 1, s.VisibleProducts(nil), false)
	if len(choices) != 1 {
		t.Fatalf("Expected 1 choice but got %v", choices)
	}
	if choices[0].Value != "1" {
		t.Errorf("Expected first option to win but got %v", choices[0])
	}
}

func TestOptionsInUse_MultiKeepsDuplicateLabels(t *testing.T) {
	s := testStore()
	s.AddAttribute(&Attribute{
		AttributeInfo: types.AttributeInfo{Id: 9, Code: "style", Name: "Style", Type: types.AttributeMultiOption, OptionGroup: 2},
		FilterEnabled: true,
	})
	s.AddOption(&Option{Id: 5, Group: 2, Code: "dry", Label: "Dry"})
	s.AddOption(&Option{Id: 6, Group: 2, Code: "dry-2", Label: "Dry"})
	s.AddValue(&AttributeValue{Id: 5, Product: 1, Attribute: 9, MultiOptions: []types.OptionId{5, 6}})

	choices := s.OptionsInUse(9, 2, s.VisibleProducts(nil), true)
	if len(choices) != 2 {
		t.Errorf("Expected 2 choices but got %v", choices)
	}
}

func TestWishlistChoices_LinkMode(t *testing.T) {
	s := testStore()
	s.AddWishlist(&types.WishlistEntry{Id: 1, Key: "abc", Name: "Favourites", OwnerId: 7})
	v := &types.Viewer{Id: 7, Authenticated: true, Partner: &types.Partner{Id: 5, WishlistAsLink: true}}

	choices := s.WishlistChoices(v)
	if len(choices) != 2 {
		t.Fatalf("Expected 2 choices but got %v", choices)
	}
	if choices[0].Value != "" || choices[0].Label != "jump to list" {
		t.Errorf("Expected leading jump entry but got %v", choices[0])
	}
	if choices[1].Value != "abc" {
		t.Errorf("Expected key value but got %v", choices[1])
	}
}

func TestWishlistChoices_LinkModeWithoutLists(t *testing.T) {
	s := testStore()
	v := &types.Viewer{Id: 7, Authenticated: true, Partner: &types.Partner{Id: 5, WishlistAsLink: true}}
	if choices := s.WishlistChoices(v); choices != nil {
		t.Errorf("Expected nil but got %v", choices)
	}
}

func TestWishlistChoices_IdMode(t *testing.T) {
	s := testStore()
	s.AddWishlist(&types.WishlistEntry{Id: 3, Key: "abc", Name: "Favourites", OwnerId: 7})
	s.AddWishlist(&types.WishlistEntry{Id: 4, Key: "def", Name: "Other", OwnerId: 8})
	v := &types.Viewer{Id: 7, Authenticated: true}

	choices := s.WishlistChoices(v)
	if len(choices) != 1 || choices[0].Value != "3" {
		t.Errorf("Expected owned list only but got %v", choices)
	}
}

func TestOrderChoices_LabelFormat(t *testing.T) {
	s := testStore()
	s.AddOrder(&types.OrderEntry{
		Id: 9, Number: "A-100", OwnerId: 7,
		DatePlaced: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	})
	v := &types.Viewer{Id: 7, Authenticated: true}
	choices := s.OrderChoices(v)
	if len(choices) != 1 {
		t.Fatalf("Expected 1 choice but got %v", choices)
	}
	if choices[0].Label != "A-100 (2024-05-01)" {
		t.Errorf("Expected formatted label but got %q", choices[0].Label)
	}
}

func TestActiveRanges_PartnerScope(t *testing.T) {
	s := testStore()
	s.AddRange(&Range{Id: 1, Active: true, SpecialPrice: true})
	s.AddRange(&Range{Id: 2, Active: true, Partner: 5})
	s.AddRange(&Range{Id: 3, Active: false, SpecialPrice: true})

	if got := s.ActiveRanges(nil); !reflect.DeepEqual(got, []uint{1}) {
		t.Errorf("Expected [1] but got %v", got)
	}
	v := &types.Viewer{Partner: &types.Partner{Id: 5}}
	if got := s.ActiveRanges(v); !reflect.DeepEqual(got, []uint{2}) {
		t.Errorf("Expected [2] but got %v", got)
	}
}

func TestFilterableAttributes_DistinctByNameAndGroup(t *testing.T) {
	s := testStore()
	s.AddAttribute(&Attribute{
		AttributeInfo: types.AttributeInfo{Id: 20, Code: "grape_a", Name: "Grape", Type: types.AttributeOption, OptionGroup: 1},
		FilterEnabled: true,
	})
	s.AddAttribute(&Attribute{
		AttributeInfo: types.AttributeInfo{Id: 21, Code: "grape_b", Name: "Grape", Type: types.AttributeOption, OptionGroup: 1},
		FilterEnabled: true,
	})
	s.AddAttribute(&Attribute{
		AttributeInfo: types.AttributeInfo{Id: 22, Code: "hidden", Name: "Hidden", Type: types.AttributeText},
		FilterEnabled: false,
	})
	s.AddValue(&AttributeValue{Id: 10, Product: 1, Attribute: 20, Option: 1})
	s.AddValue(&AttributeValue{Id: 11, Product: 2, Attribute: 21, Option: 2})
	s.AddValue(&AttributeValue{Id: 12, Product: 1, Attribute: 22, Content: "x"})

	attrs, err := s.FilterableAttributes(s.VisibleProducts(nil), nil)
	if err != nil {
		t.Fatalf("Unexpected error %v", err)
	}
	if len(attrs) != 1 {
		t.Fatalf("Expected 1 attribute but got %v", attrs)
	}
	if attrs[0].Id != 20 {
		t.Errorf("Expected lowest id to represent the pair but got %v", attrs[0])
	}
}

func TestProductField_Unknown(t *testing.T) {
	s := testStore()
	if _, err := s.ProductField("nope"); err == nil {
		t.Errorf("Expected error for unknown field")
	}
}
