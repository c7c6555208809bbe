package filter

import (
	"errors"
	"reflect"
	"strconv"
	"testing"

	"github.com/snake-soft/pg-search/pkg/catalog"
	"github.com/snake-soft/pg-search/pkg/types"
)

func testCatalog() *catalog.Store {
	s := catalog.NewStore()
	s.AddCategory(&catalog.Category{Id: 1, Name: "Wine", Browsable: true})
	s.AddProduct(&catalog.Product{
		Id: 1, UPC: "1001", Title: "Rioja Reserva", Browsable: true,
		Categories: []types.CategoryId{1},
		Fields:     map[string]string{"weight": "0.5", "volume": "0.75"},
	})
	s.AddProduct(&catalog.Product{
		Id: 2, UPC: "1002", Title: "Chablis", Browsable: true,
		Categories: []types.CategoryId{1},
		Fields:     map[string]string{"weight": "1.5"},
	})
	s.RegisterField(types.FieldInfo{Code: "weight", Label: "Weight"})
	s.RegisterField(types.FieldInfo{Code: "volume", Label: "Volume"})
	return s
}

func testConfig() Config {
	return Config{AttachedFields: []string{"weight", "volume"}}
}

func fieldByCode(t *testing.T, m *Manager, code string) Field {
	t.Helper()
	for _, g := range m.Groups() {
		for _, f := range g.Fields() {
			if f.Code() == code {
				return f
			}
		}
	}
	t.Fatalf("Expected a field with code %q but found none", code)
	return nil
}

func TestManager_ResultAppliesSelections(t *testing.T) {
	s := testCatalog()
	data := types.RequestData{"weight": {"0.5"}}
	m, err := NewManager(s, s.VisibleProducts(nil), nil, data, testConfig())
	if err != nil {
		t.Fatalf("Expected no error but got %v", err)
	}
	if got := m.Result().Ids(); !reflect.DeepEqual(got, []types.ProductId{1}) {
		t.Errorf("Expected [1] but got %v", got)
	}
}

func TestManager_ResultExcludingRestoresOwnField(t *testing.T) {
	s := testCatalog()
	data := types.RequestData{"weight": {"0.5"}}
	m, err := NewManager(s, s.VisibleProducts(nil), nil, data, testConfig())
	if err != nil {
		t.Fatalf("Expected no error but got %v", err)
	}
	weight := fieldByCode(t, m, "weight")
	got := m.ResultExcluding(weight).Ids()
	want := []types.ProductId{1, 2}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v but got %v", want, got)
	}
}

func TestManager_SelectedFieldKeepsAllChoices(t *testing.T) {
	s := testCatalog()
	data := types.RequestData{"weight": {"0.5"}}
	m, err := NewManager(s, s.VisibleProducts(nil), nil, data, testConfig())
	if err != nil {
		t.Fatalf("Expected no error but got %v", err)
	}
	groups, err := m.Resolve()
	if err != nil {
		t.Fatalf("Expected no error but got %v", err)
	}
	var weight *ResolvedField
	for i := range groups[0].Fields {
		if groups[0].Fields[i].Code == "weight" {
			weight = &groups[0].Fields[i]
		}
	}
	if weight == nil {
		t.Fatal("Expected the weight field to survive resolution")
	}
	want := []types.Choice{{Value: "0.5", Label: "500g"}, {Value: "1.5", Label: "1.5kg"}}
	if !reflect.DeepEqual(weight.Choices, want) {
		t.Errorf("Expected %v but got %v", want, weight.Choices)
	}
	if !reflect.DeepEqual(weight.Selected, []string{"0.5"}) {
		t.Errorf("Expected selection [0.5] but got %v", weight.Selected)
	}
}

func TestManager_ResolvePrunesEmptyFields(t *testing.T) {
	s := testCatalog()
	data := types.RequestData{"weight": {"1.5"}}
	m, err := NewManager(s, s.VisibleProducts(nil), nil, data, testConfig())
	if err != nil {
		t.Fatalf("Expected no error but got %v", err)
	}
	groups, err := m.Resolve()
	if err != nil {
		t.Fatalf("Expected no error but got %v", err)
	}
	codes := []string{}
	for _, f := range groups[0].Fields {
		codes = append(codes, f.Code)
	}
	// Only product 2 remains for the volume field's drill-down set and it
	// has no volume, the facet must disappear.
	if !reflect.DeepEqual(codes, []string{"weight"}) {
		t.Errorf("Expected [weight] but got %v", codes)
	}
}

func TestUserGroup_UnauthenticatedHasNoFields(t *testing.T) {
	s := testCatalog()
	m, err := NewManager(s, s.VisibleProducts(nil), nil, types.RequestData{}, testConfig())
	if err != nil {
		t.Fatalf("Expected no error but got %v", err)
	}
	user := m.Groups()[1]
	if len(user.Fields()) != 0 {
		t.Errorf("Expected no user fields but got %d", len(user.Fields()))
	}
}

func TestUserGroup_QueryAppliesWithoutFields(t *testing.T) {
	s := testCatalog()
	s.AddWishlist(&types.WishlistEntry{Id: 4, OwnerId: 7, Products: []types.ProductId{2}})
	data := types.RequestData{"wishlist": {"4"}}
	m, err := NewManager(s, s.VisibleProducts(nil), nil, data, testConfig())
	if err != nil {
		t.Fatalf("Expected no error but got %v", err)
	}
	if got := m.Result().Ids(); !reflect.DeepEqual(got, []types.ProductId{2}) {
		t.Errorf("Expected [2] but got %v", got)
	}
}

func TestUserGroup_WishlistOrOrderCombinesAsUnion(t *testing.T) {
	s := testCatalog()
	s.AddWishlist(&types.WishlistEntry{Id: 4, OwnerId: 7, Products: []types.ProductId{1}})
	s.AddOrder(&types.OrderEntry{Id: 9, OwnerId: 7, Number: "A-1", Products: []types.ProductId{2}})
	v := &types.Viewer{Id: 7, Authenticated: true}
	data := types.RequestData{"wishlist": {"4"}, "order": {"9"}}
	m, err := NewManager(s, s.VisibleProducts(v), v, data, testConfig())
	if err != nil {
		t.Fatalf("Expected no error but got %v", err)
	}
	got := m.Result().Ids()
	want := []types.ProductId{1, 2}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v but got %v", want, got)
	}
}

func TestOfferField_OnlyPresentWithActiveRanges(t *testing.T) {
	s := testCatalog()
	m, err := NewManager(s, s.VisibleProducts(nil), nil, types.RequestData{}, testConfig())
	if err != nil {
		t.Fatalf("Expected no error but got %v", err)
	}
	for _, f := range m.Groups()[0].Fields() {
		if f.Code() == "offer_only" {
			t.Error("Expected no offer field without active ranges")
		}
	}

	s.AddRange(&catalog.Range{Id: 1, Active: true, SpecialPrice: true, Products: []types.ProductId{1}})
	m, err = NewManager(s, s.VisibleProducts(nil), nil, types.RequestData{}, testConfig())
	if err != nil {
		t.Fatalf("Expected no error but got %v", err)
	}
	if f := m.Groups()[0].Fields()[0]; f.Code() != "offer_only" {
		t.Errorf("Expected offer_only first but got %v", f.Code())
	}
}

func TestOfferField_RestrictsToRangeProducts(t *testing.T) {
	s := testCatalog()
	s.AddRange(&catalog.Range{Id: 1, Active: true, SpecialPrice: true, Products: []types.ProductId{1}})
	data := types.RequestData{"offer_only": {"on"}}
	m, err := NewManager(s, s.VisibleProducts(nil), nil, data, testConfig())
	if err != nil {
		t.Fatalf("Expected no error but got %v", err)
	}
	if got := m.Result().Ids(); !reflect.DeepEqual(got, []types.ProductId{1}) {
		t.Errorf("Expected [1] but got %v", got)
	}
}

func TestScalarField_InvalidSelectionMatchesNothing(t *testing.T) {
	s := testCatalog()
	s.AddAttribute(&catalog.Attribute{
		AttributeInfo: types.AttributeInfo{Id: 7, Code: "alcohol", Name: "Alcohol", Type: types.AttributeFloat},
		FilterEnabled: true,
	})
	s.AddValue(&catalog.AttributeValue{Id: 1, Product: 1, Attribute: 7, Content: "12.5"})

	data := types.RequestData{"7": {"9999"}}
	m, err := NewManager(s, s.VisibleProducts(nil), nil, data, testConfig())
	if err != nil {
		t.Fatalf("Expected no error but got %v", err)
	}
	if got := m.Result().Ids(); len(got) != 0 {
		t.Errorf("Expected empty result but got %v", got)
	}
}

func TestOptionField_LegacyLiteralCodes(t *testing.T) {
	s := testCatalog()
	s.AddAttribute(&catalog.Attribute{
		AttributeInfo: types.AttributeInfo{Id: 30, Code: "brand", Name: "Brand", Type: types.AttributeOption, OptionGroup: 3},
		FilterEnabled: true,
	})
	s.AddOption(&catalog.Option{Id: 1, Group: 3, Code: "bodega-norte", Label: "Bodega Norte"})
	s.AddOption(&catalog.Option{Id: 2, Group: 3, Code: "domaine-sud", Label: "Domaine Sud"})
	s.AddValue(&catalog.AttributeValue{Id: 1, Product: 1, Attribute: 30, Option: 1})
	s.AddValue(&catalog.AttributeValue{Id: 2, Product: 2, Attribute: 30, Option: 2})

	data := types.RequestData{"brand": {"bodega-norte"}}
	m, err := NewManager(s, s.VisibleProducts(nil), nil, data, testConfig())
	if err != nil {
		t.Fatalf("Expected no error but got %v", err)
	}
	if got := m.Result().Ids(); !reflect.DeepEqual(got, []types.ProductId{1}) {
		t.Errorf("Expected [1] but got %v", got)
	}
}

func TestManager_ExclusionComparesIdentityNotValue(t *testing.T) {
	s := testCatalog()
	data := types.RequestData{"weight": {"0.5"}}
	f1 := NewProductField(s, types.FieldInfo{Code: "weight", Label: "Weight"}, data)
	f2 := NewProductField(s, types.FieldInfo{Code: "weight", Label: "Weight"}, data)
	m := &Manager{
		base: s.VisibleProducts(nil),
		memo: map[Field]types.Collection{},
		entries: []QueryEntry{
			{Field: f1, Query: f1.Query()},
			{Field: f2, Query: f2.Query()},
		},
	}
	// Both fields derive equal predicates, excluding one must still apply
	// the other's.
	got := m.ResultExcluding(f1).Ids()
	if !reflect.DeepEqual(got, []types.ProductId{1}) {
		t.Errorf("Expected [1] but got %v", got)
	}
}

func TestManager_ResolveIsIdempotent(t *testing.T) {
	s := testCatalog()
	m, err := NewManager(s, s.VisibleProducts(nil), nil, types.RequestData{}, testConfig())
	if err != nil {
		t.Fatalf("Expected no error but got %v", err)
	}
	first, err := m.Resolve()
	if err != nil {
		t.Fatalf("Expected no error but got %v", err)
	}
	second, err := m.Resolve()
	if err != nil {
		t.Fatalf("Expected no error but got %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical results but got %v and %v", first, second)
	}
}

func TestOptionField_IdSpellingMatchesLikeLegacyCodes(t *testing.T) {
	s := testCatalog()
	s.AddAttribute(&catalog.Attribute{
		AttributeInfo: types.AttributeInfo{Id: 30, Code: "brand", Name: "Brand", Type: types.AttributeOption, OptionGroup: 3},
		FilterEnabled: true,
	})
	s.AddOption(&catalog.Option{Id: 1, Group: 3, Code: "bodega-norte", Label: "Bodega Norte"})
	s.AddValue(&catalog.AttributeValue{Id: 1, Product: 1, Attribute: 30, Option: 1})

	data := types.RequestData{"30": {"1"}}
	m, err := NewManager(s, s.VisibleProducts(nil), nil, data, testConfig())
	if err != nil {
		t.Fatalf("Expected no error but got %v", err)
	}
	if got := m.Result().Ids(); !reflect.DeepEqual(got, []types.ProductId{1}) {
		t.Errorf("Expected [1] but got %v", got)
	}
}

func TestCleanValue_WeightGramsAreWholeNumbers(t *testing.T) {
	cases := map[string]string{
		"0.5":    "500g",
		"0.5114": "511g",
		"1.5":    "1.5kg",
	}
	for value, want := range cases {
		if got := cleanValue("weight", value); got != want {
			t.Errorf("Expected %q for %q but got %q", want, value, got)
		}
	}
}

func TestManager_SelectionsNeverGrowTheResult(t *testing.T) {
	s := testCatalog()
	resultFor := func(data types.RequestData) []types.ProductId {
		m, err := NewManager(s, s.VisibleProducts(nil), nil, data, testConfig())
		if err != nil {
			t.Fatalf("Expected no error but got %v", err)
		}
		return m.Result().Ids()
	}
	subset := func(narrow, wide []types.ProductId) bool {
		in := map[types.ProductId]bool{}
		for _, id := range wide {
			in[id] = true
		}
		for _, id := range narrow {
			if !in[id] {
				return false
			}
		}
		return true
	}

	all := resultFor(types.RequestData{})
	one := resultFor(types.RequestData{"weight": {"0.5"}})
	two := resultFor(types.RequestData{"weight": {"0.5"}, "volume": {"0.75"}})

	if !subset(one, all) {
		t.Errorf("Expected %v to be a subset of %v", one, all)
	}
	if !subset(two, one) {
		t.Errorf("Expected %v to be a subset of %v", two, one)
	}
}

func TestOfferField_SurvivesSiblingOptionSelection(t *testing.T) {
	s := catalog.NewStore()
	s.AddCategory(&catalog.Category{Id: 1, Name: "Wine", Browsable: true})
	s.AddAttribute(&catalog.Attribute{
		AttributeInfo: types.AttributeInfo{Id: 30, Code: "colour", Name: "Colour", Type: types.AttributeOption, OptionGroup: 3},
		FilterEnabled: true,
	})
	s.AddOption(&catalog.Option{Id: 1, Group: 3, Code: "red", Label: "Red"})
	s.AddOption(&catalog.Option{Id: 2, Group: 3, Code: "white", Label: "White"})
	for i := 1; i <= 10; i++ {
		s.AddProduct(&catalog.Product{
			Id: types.ProductId(i), UPC: strconv.Itoa(1000 + i), Title: "Wine " + strconv.Itoa(i),
			Browsable: true, Categories: []types.CategoryId{1},
		})
		option := types.OptionId(2)
		if i <= 3 {
			option = 1
		}
		s.AddValue(&catalog.AttributeValue{
			Id: types.ValueId(i), Product: types.ProductId(i), Attribute: 30, Option: option,
		})
	}
	s.AddRange(&catalog.Range{Id: 1, Active: true, SpecialPrice: true, Products: []types.ProductId{1, 2}})

	m, err := NewManager(s, s.VisibleProducts(nil), nil, types.RequestData{"colour": {"red"}}, Config{})
	if err != nil {
		t.Fatalf("Expected no error but got %v", err)
	}
	groups, err := m.Resolve()
	if err != nil {
		t.Fatalf("Expected no error but got %v", err)
	}
	found := false
	for _, g := range groups {
		for _, f := range g.Fields {
			if f.Code == "offer_only" {
				found = true
			}
		}
	}
	if !found {
		t.Error("Expected the offer field to survive the colour selection")
	}

	data := types.RequestData{"colour": {"red"}, "offer_only": {"on"}}
	m, err = NewManager(s, s.VisibleProducts(nil), nil, data, Config{})
	if err != nil {
		t.Fatalf("Expected no error but got %v", err)
	}
	if got := m.Result().Ids(); !reflect.DeepEqual(got, []types.ProductId{1, 2}) {
		t.Errorf("Expected [1 2] but got %v", got)
	}
}

func TestNewManager_UnknownAttributeTypeFails(t *testing.T) {
	s := testCatalog()
	s.AddAttribute(&catalog.Attribute{
		AttributeInfo: types.AttributeInfo{Id: 40, Code: "vintage", Name: "Vintage", Type: "date"},
		FilterEnabled: true,
	})
	s.AddValue(&catalog.AttributeValue{Id: 1, Product: 1, Attribute: 40, Content: "2019-01-01"})

	_, err := NewManager(s, s.VisibleProducts(nil), nil, types.RequestData{}, testConfig())
	if !errors.Is(err, types.ErrConfiguration) {
		t.Errorf("Expected a configuration error but got %v", err)
	}
}
