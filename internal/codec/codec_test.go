package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/tour_booking/internal/model"
)

func TestSlots_RoundTrip(t *testing.T) {
	slots := []model.Slot{
		{Type: "Adult", Price: 100, Values: map[string]string{"name": "Ann", "diet": "vegan"}},
		{Type: "Child", Price: 50},
		{},
	}

	text, err := EncodeSlots(slots)
	require.NoError(t, err)

	got, w := DecodeSlots(text)
	require.Nil(t, w)
	require.Len(t, got, len(slots))
	assert.Equal(t, slots, got)
}

func TestSlots_LegacyBareArray(t *testing.T) {
	got, w := DecodeSlots(`[{"type":"Adult","price":100,"name":"Ann","age":7}]`)
	require.Nil(t, w)
	require.Len(t, got, 1)
	assert.Equal(t, "Ann", got[0].Value("name"))
	assert.Equal(t, "7", got[0].Value("age"))
}

func TestSlots_MalformedFallsBackToEmpty(t *testing.T) {
	for _, text := range []string{
		`[{"type":"Adult"`,
		`{"v":2,"items":[]}`,
		`{"v":1,"items":[1,2]}`,
		`{"v":1,"items":[{"type":"A","price":-1}]}`,
		`{"v":1,"items":[],"extra":true}`,
		`"just a string"`,
	} {
		got, w := DecodeSlots(text)
		assert.NotNil(t, got, text)
		assert.Empty(t, got, text)
		require.NotNil(t, w, text)
		assert.Equal(t, KindSlots, w.Kind)
	}
}

func TestEmptyTextIsNotAWarning(t *testing.T) {
	got, w := DecodeProducts("  ")
	assert.Nil(t, w)
	assert.Empty(t, got)

	got, w = DecodeProducts("null")
	assert.Nil(t, w)
	assert.Empty(t, got)
}

func TestProducts_RoundTripAndSchema(t *testing.T) {
	products := []model.BookedProduct{{ID: "p1", Name: "Water", Quantity: 2, UnitPrice: 1.5}}
	text, err := EncodeProducts(products)
	require.NoError(t, err)

	got, w := DecodeProducts(text)
	require.Nil(t, w)
	assert.Equal(t, products, got)

	_, w = DecodeProducts(`[{"quantity":1}]`)
	assert.NotNil(t, w)
}

func TestSlotTypesAndFields(t *testing.T) {
	types := []model.SlotType{{Name: "Adult", Price: 100, Description: "18+"}}
	text, err := EncodeSlotTypes(types)
	require.NoError(t, err)
	gotTypes, w := DecodeSlotTypes(text)
	require.Nil(t, w)
	assert.Equal(t, types, gotTypes)

	fields := []model.SlotField{{Name: "diet", Type: "select", Options: []string{"none", "vegan"}}}
	text, err = EncodeSlotFields(fields)
	require.NoError(t, err)
	gotFields, w := DecodeSlotFields(text)
	require.Nil(t, w)
	assert.Equal(t, fields, gotFields)

	_, w = DecodeSlotTypes(`[{"name":"","price":1}]`)
	assert.NotNil(t, w)
}

func TestSchedule_RoundTrip(t *testing.T) {
	schedule := model.TourSchedule{
		time.Monday:   {"09:00", "13:30"},
		time.Saturday: {"10:00"},
	}

	text, err := EncodeSchedule(schedule)
	require.NoError(t, err)

	got, w := DecodeSchedule(text)
	require.Nil(t, w)
	assert.Equal(t, schedule, got)
}

func TestSchedule_Legacy(t *testing.T) {
	got, w := DecodeSchedule(`{"Monday":["09:00"],"friday":[]}`)
	require.Nil(t, w)
	assert.Equal(t, model.TourSchedule{time.Monday: {"09:00"}}, got)
}

func TestSchedule_Malformed(t *testing.T) {
	for _, text := range []string{
		`{"monday":["9am"]}`,
		`{"funday":["09:00"]}`,
		`{"v":1,"items":[{"weekday":9,"times":["09:00"]}]}`,
		`[{"weekday":1,"times":["25:00"]}]`,
	} {
		got, w := DecodeSchedule(text)
		assert.Empty(t, got, text)
		assert.NotNil(t, w, text)
	}
}

func TestWarnings(t *testing.T) {
	out := Warnings(nil, &Warning{Kind: KindProducts, Reason: "bad"}, nil)
	assert.Equal(t, []string{"booked_products: bad"}, out)
}
