package availability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Freeeeeet/tour_booking/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type counterMock struct {
	mu        sync.Mutex
	committed map[string]int
	calls     int
	err       error
}

func (c *counterMock) CommittedSlots(_ context.Context, _ int64, date, startTime string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return 0, c.err
	}
	return c.committed[date+" "+startTime], nil
}

func date(s string) time.Time {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestActiveWeekdays(t *testing.T) {
	schedule := model.TourSchedule{
		time.Tuesday:  {"09:00"},
		time.Thursday: {},
		time.Saturday: {"10:00", "14:00"},
	}

	active := ActiveWeekdays(schedule)
	assert.True(t, active.Has(time.Tuesday))
	assert.True(t, active.Has(time.Saturday))
	assert.False(t, active.Has(time.Thursday))
	assert.False(t, active.Has(time.Monday))
}

func TestIsDateUnavailable(t *testing.T) {
	active := WeekdaySet{time.Tuesday: {}}

	// 2026-10-13 вторник, 2026-10-12 понедельник
	assert.False(t, IsDateUnavailable(date("2026-10-13"), active, nil))
	assert.True(t, IsDateUnavailable(date("2026-10-13"), active, NewDateSet([]string{"2026-10-13"})))
	assert.True(t, IsDateUnavailable(date("2026-10-12"), active, nil))
	assert.True(t, IsDateUnavailable(date("2026-10-12"), active, NewDateSet([]string{"2026-10-13"})))
	assert.True(t, IsDateUnavailable(date("2026-10-12"), active, NewDateSet([]string{"2026-10-12"})))
}

func TestRemainingSlots(t *testing.T) {
	tour := &model.Tour{ID: 1, Capacity: 10}
	counter := &counterMock{committed: map[string]int{
		"2026-10-13 09:00": 4,
		"2026-10-13 11:00": 12,
	}}

	left, err := RemainingSlots(context.Background(), counter, tour, "2026-10-13", "09:00")
	require.NoError(t, err)
	assert.Equal(t, 6, left)

	left, err = RemainingSlots(context.Background(), counter, tour, "2026-10-13", "11:00")
	require.NoError(t, err)
	assert.Equal(t, 0, left)
}

func TestMonth_ScenarioD_InactiveMondays(t *testing.T) {
	tour := &model.Tour{
		ID:       1,
		Capacity: 5,
		Schedule: model.TourSchedule{
			time.Tuesday:   {"09:00"},
			time.Wednesday: {"09:00"},
			time.Thursday:  {"09:00"},
			time.Friday:    {"09:00"},
			time.Saturday:  {"09:00"},
			time.Sunday:    {"09:00"},
		},
	}
	counter := &counterMock{}

	cal, err := Month(context.Background(), counter, tour, 2026, time.November, 3)
	require.NoError(t, err)

	mondays := []string{"2026-11-02", "2026-11-09", "2026-11-16", "2026-11-23", "2026-11-30"}
	assert.Equal(t, mondays, cal.Unavailable)
	for _, m := range mondays {
		assert.True(t, cal.IsDisabled(m), m)
	}
	assert.Empty(t, cal.FullyBooked)
	assert.Equal(t, 30-len(mondays), counter.calls)
}

func TestMonth_FullyBookedAndDisabled(t *testing.T) {
	tour := &model.Tour{
		ID:            1,
		Capacity:      4,
		Schedule:      model.TourSchedule{time.Tuesday: {"09:00", "13:00"}},
		DisabledDates: []string{"2026-10-20"},
	}
	counter := &counterMock{committed: map[string]int{
		"2026-10-06 09:00": 4,
		"2026-10-06 13:00": 4,
		"2026-10-13 09:00": 4,
	}}

	cal, err := Month(context.Background(), counter, tour, 2026, time.October, 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"2026-10-06"}, cal.FullyBooked)
	assert.Contains(t, cal.Unavailable, "2026-10-20")
	assert.NotContains(t, cal.Disabled(), "2026-10-13")
	assert.Equal(t, []Remain{{Time: "09:00", Remaining: 0}, {Time: "13:00", Remaining: 4}}, cal.Remaining["2026-10-13"])
	assert.Len(t, cal.Unavailable, 31-3)
}

func TestMonth_PropagatesCounterError(t *testing.T) {
	tour := &model.Tour{ID: 1, Capacity: 4, Schedule: model.TourSchedule{time.Friday: {"09:00"}}}
	boom := errors.New("db down")

	_, err := Month(context.Background(), &counterMock{err: boom}, tour, 2026, time.October, 2)
	assert.ErrorIs(t, err, boom)
}

func TestValidateReschedule(t *testing.T) {
	tour := &model.Tour{
		Capacity:      10,
		Schedule:      model.TourSchedule{time.Tuesday: {"09:00"}},
		DisabledDates: []string{"2026-10-20"},
	}

	assert.NoError(t, ValidateReschedule(tour, "2026-10-13", "09:00", 3, 3))
	assert.True(t, model.IsValidation(ValidateReschedule(tour, "2026-10-12", "09:00", 1, 10)))
	assert.True(t, model.IsValidation(ValidateReschedule(tour, "2026-10-20", "09:00", 1, 10)))
	assert.True(t, model.IsValidation(ValidateReschedule(tour, "2026-10-13", "10:00", 1, 10)))
	assert.True(t, model.IsValidation(ValidateReschedule(tour, "13.10.2026", "09:00", 1, 10)))
	assert.True(t, model.IsCapacityConflict(ValidateReschedule(tour, "2026-10-13", "09:00", 4, 3)))
}

func TestWeeklySchedule_ConflictRegardlessOfOrder(t *testing.T) {
	for _, order := range [][]string{{"09:00", "14:00"}, {"14:00", "09:00"}} {
		w := NewWeeklySchedule(nil)
		for _, start := range order {
			require.NoError(t, w.Add(time.Monday, start))
		}

		before := w.Schedule()
		for _, start := range order {
			err := w.Add(time.Monday, start)
			assert.ErrorIs(t, err, ErrTimeSlotConflict, fmt.Sprint(order))
		}
		assert.Equal(t, before, w.Schedule())
	}
}

func TestWeeklySchedule_SameTimeOnOtherDayIsFine(t *testing.T) {
	w := NewWeeklySchedule(model.TourSchedule{time.Monday: {"09:00"}})
	require.NoError(t, w.Add(time.Tuesday, "09:00"))
	assert.Equal(t, []string{"09:00"}, w.Schedule()[time.Tuesday])
}

func TestWeeklySchedule_Update(t *testing.T) {
	w := NewWeeklySchedule(model.TourSchedule{time.Monday: {"09:00", "12:00"}})

	// обновление на собственное значение не конфликт
	require.NoError(t, w.Update(time.Monday, 0, "09:00"))

	err := w.Update(time.Monday, 0, "12:00")
	assert.ErrorIs(t, err, ErrTimeSlotConflict)
	assert.Equal(t, []string{"09:00", "12:00"}, w.Schedule()[time.Monday])

	require.NoError(t, w.Update(time.Monday, 1, "08:00"))
	assert.Equal(t, []string{"08:00", "09:00"}, w.Schedule()[time.Monday])

	assert.ErrorIs(t, w.Update(time.Monday, 5, "10:00"), ErrSlotIndex)
	assert.ErrorIs(t, w.Update(time.Monday, 0, "9am"), ErrInvalidTime)
}

func TestWeeklySchedule_RemoveDeactivatesEmptyDay(t *testing.T) {
	original := model.TourSchedule{time.Friday: {"10:00"}}
	w := NewWeeklySchedule(original)

	require.NoError(t, w.Remove(time.Friday, 0))
	assert.False(t, ActiveWeekdays(w.Schedule()).Has(time.Friday))
	assert.Equal(t, []string{"10:00"}, original[time.Friday])
}
