package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/tour_booking/internal/model"
)

func tiers() []model.SlotType {
	return []model.SlotType{
		{Name: "Adult", Price: 100},
		{Name: "Child", Price: 50},
	}
}

func TestPrice_FlatRateWhenCatalogEmpty(t *testing.T) {
	r := Resolver{FlatRate: 50}

	price, err := r.Price(model.Slot{Type: "anything"})
	require.NoError(t, err)
	assert.Equal(t, 50.0, price)

	price, err = r.Price(model.Slot{})
	require.NoError(t, err)
	assert.Equal(t, 50.0, price)
}

func TestPrice_TierPrice(t *testing.T) {
	r := Resolver{Catalog: tiers(), FlatRate: 999}

	price, err := r.Price(model.Slot{Type: "Child"})
	require.NoError(t, err)
	assert.Equal(t, 50.0, price)
}

func TestPrice_UnresolvedTier(t *testing.T) {
	r := Resolver{Catalog: tiers()}

	_, err := r.Price(model.Slot{Type: "Senior"})
	assert.ErrorIs(t, err, ErrInvalidTier)

	_, err = r.Price(model.Slot{})
	assert.ErrorIs(t, err, ErrInvalidTier)
}

func TestResize_GrowAndShrink(t *testing.T) {
	r := Resolver{Catalog: tiers()}
	slots := []model.Slot{
		{Type: "Child", Price: 50, Values: map[string]string{"name": "Ann"}},
		{Type: "Adult", Price: 100},
	}

	grown := r.Resize(slots, 4)
	require.Len(t, grown, 4)
	assert.Equal(t, "Ann", grown[0].Value("name"))
	assert.Equal(t, "Child", grown[0].Type)
	assert.Equal(t, model.Slot{Type: "Adult", Price: 100}, grown[2])
	assert.Equal(t, model.Slot{Type: "Adult", Price: 100}, grown[3])

	shrunk := r.Resize(slots, 1)
	require.Len(t, shrunk, 1)
	assert.Equal(t, "Child", shrunk[0].Type)

	assert.Empty(t, r.Resize(slots, -3))
}

func TestResize_NoCatalogAddsEmptySlots(t *testing.T) {
	r := Resolver{FlatRate: 50}

	out := r.Resize(nil, 2)
	assert.Equal(t, []model.Slot{{}, {}}, out)
}

func TestResize_Idempotent(t *testing.T) {
	r := Resolver{Catalog: tiers()}
	slots := []model.Slot{{Type: "Child", Price: 50}}

	for _, n := range []int{0, 1, 3, 7} {
		once := r.Resize(slots, n)
		twice := r.Resize(once, n)
		assert.Equal(t, once, twice, "n=%d", n)
	}
}

func TestResize_DoesNotAliasInput(t *testing.T) {
	r := Resolver{}
	slots := []model.Slot{{Values: map[string]string{"diet": "vegan"}}}

	out := r.Resize(slots, 1)
	out[0].Values["diet"] = "none"

	assert.Equal(t, "vegan", slots[0].Values["diet"])
}

func TestValidate(t *testing.T) {
	fields := []model.SlotField{
		{Name: "name", Required: true},
		{Name: "diet", Required: false},
	}

	t.Run("type required", func(t *testing.T) {
		r := Resolver{Catalog: tiers(), Fields: fields}
		errs := r.Validate(model.Slot{Values: map[string]string{"name": "Bob"}})
		require.Len(t, errs, 1)
		assert.Equal(t, MsgTypeRequired, errs[0].Msg)
	})

	t.Run("invalid type", func(t *testing.T) {
		r := Resolver{Catalog: tiers(), Fields: fields}
		errs := r.Validate(model.Slot{Type: "Senior", Values: map[string]string{"name": "Bob"}})
		require.Len(t, errs, 1)
		assert.Equal(t, MsgInvalidType, errs[0].Msg)
	})

	t.Run("missing required field", func(t *testing.T) {
		r := Resolver{Catalog: tiers(), Fields: fields}
		errs := r.Validate(model.Slot{Type: "Adult", Values: map[string]string{"name": "  "}})
		require.Len(t, errs, 1)
		assert.Equal(t, "name", errs[0].Field)
	})

	t.Run("no catalog ignores type", func(t *testing.T) {
		r := Resolver{Fields: fields}
		assert.True(t, r.IsComplete(model.Slot{Values: map[string]string{"name": "Bob"}}))
	})

	t.Run("removed tier stays invalid", func(t *testing.T) {
		r := Resolver{Catalog: []model.SlotType{{Name: "Adult", Price: 100}}}
		slot := model.Slot{Type: "Child", Price: 50}
		assert.False(t, r.IsComplete(slot))
		assert.Equal(t, []model.Slot{slot}, r.Resize([]model.Slot{slot}, 1))
	})
}

func TestValidateAll_PrefixesIndex(t *testing.T) {
	r := Resolver{Catalog: tiers()}
	errs := r.ValidateAll([]model.Slot{{Type: "Adult"}, {Type: "Nope"}})

	require.Len(t, errs, 1)
	assert.Equal(t, "slot_details[1].type", errs[0].Field)
}

func TestQuote_ScenarioA(t *testing.T) {
	r := Resolver{FlatRate: 50}
	slots := r.Resize(nil, 3)
	products := []model.BookedProduct{
		{ID: "p1", Quantity: 2, UnitPrice: 10},
		{ID: "p2", Quantity: 1, UnitPrice: 5},
	}

	q, err := r.Quote(slots, products, 0)
	require.NoError(t, err)
	assert.Equal(t, 150.0, q.SlotTotal)
	assert.Equal(t, 25.0, q.ProductTotal)
	assert.Equal(t, 175.0, q.Total)
}

func TestQuote_ScenarioB(t *testing.T) {
	r := Resolver{Catalog: tiers()}
	slots := []model.Slot{{Type: "Adult"}, {Type: "Child"}, {Type: "Adult"}}

	q, err := r.Quote(slots, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 250.0, q.SlotTotal)
	assert.Equal(t, 250.0, q.Total)
}

func TestQuote_DiscountNeverNegative(t *testing.T) {
	r := Resolver{FlatRate: 10}

	q, err := r.Quote(r.Resize(nil, 1), nil, 25)
	require.NoError(t, err)
	assert.Equal(t, 0.0, q.Total)
}

func TestQuote_InvalidTier(t *testing.T) {
	r := Resolver{Catalog: tiers()}

	_, err := r.Quote([]model.Slot{{Type: "Ghost"}}, nil, 0)
	assert.ErrorIs(t, err, ErrInvalidTier)
}

func TestValidateProducts(t *testing.T) {
	errs := ValidateProducts([]model.BookedProduct{
		{ID: "a", Quantity: 1, UnitPrice: 3},
		{ID: "a", Quantity: 0, UnitPrice: -1},
		{Quantity: 1},
	})

	fields := make([]string, 0, len(errs))
	for _, e := range errs {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{
		"booked_products[1].id",
		"booked_products[1].quantity",
		"booked_products[1].unit_price",
		"booked_products[2].id",
	}, fields)
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(1999), ToMinorUnits(19.99))
	assert.Equal(t, int64(1), ToMinorUnits(0.005))
	assert.Equal(t, int64(-1), ToMinorUnits(-0.005))
	assert.Equal(t, int64(1000), ToMinorUnits(10))
}
