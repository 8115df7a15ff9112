package availability

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Freeeeeet/tour_booking/internal/codec"
	"github.com/Freeeeeet/tour_booking/internal/model"
)

var (
	// ErrTimeSlotConflict такое время начала уже есть в этот день
	ErrTimeSlotConflict = errors.New("time slot conflict")
	ErrInvalidTime      = errors.New("invalid start time, expected HH:MM")
	ErrSlotIndex        = errors.New("time slot index out of range")
)

// WeeklySchedule редактор недельного расписания. Любая отклонённая операция
// оставляет расписание без изменений.
type WeeklySchedule struct {
	days model.TourSchedule
}

// NewWeeklySchedule создаёт редактор поверх копии расписания
func NewWeeklySchedule(s model.TourSchedule) *WeeklySchedule {
	if s == nil {
		s = model.TourSchedule{}
	}
	return &WeeklySchedule{days: s.Clone()}
}

// Schedule возвращает копию текущего расписания
func (w *WeeklySchedule) Schedule() model.TourSchedule {
	return w.days.Clone()
}

// Conflicts два слота одного дня конфликтуют, если их время начала совпадает как текст
func Conflicts(times []string, start string, skip int) bool {
	for i, t := range times {
		if i == skip {
			continue
		}
		if t == start {
			return true
		}
	}
	return false
}

// Add добавляет время начала в день недели
func (w *WeeklySchedule) Add(day time.Weekday, start string) error {
	if !codec.IsValidTime(start) {
		return fmt.Errorf("%w: %q", ErrInvalidTime, start)
	}
	if Conflicts(w.days[day], start, -1) {
		return fmt.Errorf("%w: %s already exists on %s", ErrTimeSlotConflict, start, day)
	}

	times := append(append([]string(nil), w.days[day]...), start)
	sort.Strings(times)
	w.days[day] = times
	return nil
}

// Update меняет время начала по индексу
func (w *WeeklySchedule) Update(day time.Weekday, index int, start string) error {
	times := w.days[day]
	if index < 0 || index >= len(times) {
		return ErrSlotIndex
	}
	if !codec.IsValidTime(start) {
		return fmt.Errorf("%w: %q", ErrInvalidTime, start)
	}
	if Conflicts(times, start, index) {
		return fmt.Errorf("%w: %s already exists on %s", ErrTimeSlotConflict, start, day)
	}

	updated := append([]string(nil), times...)
	updated[index] = start
	sort.Strings(updated)
	w.days[day] = updated
	return nil
}

// Remove удаляет время по индексу. Пустой день становится неактивным.
func (w *WeeklySchedule) Remove(day time.Weekday, index int) error {
	times := w.days[day]
	if index < 0 || index >= len(times) {
		return ErrSlotIndex
	}

	updated := make([]string, 0, len(times)-1)
	updated = append(updated, times[:index]...)
	updated = append(updated, times[index+1:]...)
	if len(updated) == 0 {
		delete(w.days, day)
		return nil
	}
	w.days[day] = updated
	return nil
}
