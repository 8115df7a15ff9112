// Package availability вычисляет доступность тура по недельному расписанию:
// активные дни недели, оставшиеся места и занятые даты месяца.
package availability

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Freeeeeet/tour_booking/internal/model"
)

// DateLayout формат даты в бронированиях и списке отключённых дат
const DateLayout = "2006-01-02"

// DefaultBatchLimit сколько запросов остатка мест выполняется параллельно
const DefaultBatchLimit = 8

// SlotCounter возвращает, сколько мест уже занято на дату и время
// (сумма слотов неотменённых бронирований). Реализуется хранилищем.
type SlotCounter interface {
	CommittedSlots(ctx context.Context, tourID int64, date, startTime string) (int, error)
}

// WeekdaySet множество активных дней недели
type WeekdaySet map[time.Weekday]struct{}

// Has проверяет день недели
func (s WeekdaySet) Has(day time.Weekday) bool {
	_, ok := s[day]
	return ok
}

// DateSet множество дат в формате YYYY-MM-DD
type DateSet map[string]struct{}

// NewDateSet строит множество из списка
func NewDateSet(dates []string) DateSet {
	set := make(DateSet, len(dates))
	for _, d := range dates {
		set[d] = struct{}{}
	}
	return set
}

// Has проверяет дату
func (s DateSet) Has(date time.Time) bool {
	_, ok := s[date.Format(DateLayout)]
	return ok
}

// ActiveWeekdays дни недели, для которых настроено хотя бы одно время
func ActiveWeekdays(schedule model.TourSchedule) WeekdaySet {
	set := make(WeekdaySet)
	for day, times := range schedule {
		if len(times) > 0 {
			set[day] = struct{}{}
		}
	}
	return set
}

// IsDateUnavailable дата недоступна, если её день недели неактивен или она явно отключена.
// Любого из условий достаточно.
func IsDateUnavailable(date time.Time, active WeekdaySet, disabled DateSet) bool {
	if !active.Has(date.Weekday()) {
		return true
	}
	return disabled.Has(date)
}

// RemainingSlots свободные места на дату и время: вместимость тура минус занятые
func RemainingSlots(ctx context.Context, counter SlotCounter, tour *model.Tour, date, startTime string) (int, error) {
	committed, err := counter.CommittedSlots(ctx, tour.ID, date, startTime)
	if err != nil {
		return 0, fmt.Errorf("committed slots: %w", err)
	}
	remaining := tour.Capacity - committed
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Calendar доступность тура на месяц
type Calendar struct {
	Year        int
	Month       time.Month
	Unavailable []string            // неактивный день недели или отключённая дата
	FullyBooked []string            // активные даты, где на всё время мест не осталось
	Remaining   map[string][]Remain // остаток по времени для активных дат
}

// Remain остаток мест на конкретное время
type Remain struct {
	Time      string
	Remaining int
}

// Disabled все даты, которые нужно заблокировать в календаре
func (c Calendar) Disabled() []string {
	out := make([]string, 0, len(c.Unavailable)+len(c.FullyBooked))
	out = append(out, c.Unavailable...)
	out = append(out, c.FullyBooked...)
	return out
}

// IsDisabled проверяет дату
func (c Calendar) IsDisabled(date string) bool {
	for _, d := range c.Disabled() {
		if d == date {
			return true
		}
	}
	return false
}

// Month перебирает все даты месяца, для активных запрашивает остаток мест пачкой
// и помечает даты без свободных мест как полностью занятые.
func Month(ctx context.Context, counter SlotCounter, tour *model.Tour, year int, month time.Month, limit int) (Calendar, error) {
	if limit <= 0 {
		limit = DefaultBatchLimit
	}

	cal := Calendar{Year: year, Month: month, Remaining: make(map[string][]Remain)}
	active := ActiveWeekdays(tour.Schedule)
	disabled := NewDateSet(tour.DisabledDates)

	type cell struct {
		date  string
		times []string
	}
	var cells []cell

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	for d := first; d.Month() == month; d = d.AddDate(0, 0, 1) {
		if IsDateUnavailable(d, active, disabled) {
			cal.Unavailable = append(cal.Unavailable, d.Format(DateLayout))
			continue
		}
		cells = append(cells, cell{date: d.Format(DateLayout), times: tour.Schedule.Times(d.Weekday())})
	}

	results := make([][]Remain, len(cells))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, c := range cells {
		results[i] = make([]Remain, len(c.times))
		for j, t := range c.times {
			g.Go(func() error {
				left, err := RemainingSlots(gctx, counter, tour, c.date, t)
				if err != nil {
					return fmt.Errorf("%s %s: %w", c.date, t, err)
				}
				results[i][j] = Remain{Time: t, Remaining: left}
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return Calendar{}, err
	}

	for i, c := range cells {
		total := 0
		for _, r := range results[i] {
			total += r.Remaining
		}
		cal.Remaining[c.date] = results[i]
		if total == 0 {
			cal.FullyBooked = append(cal.FullyBooked, c.date)
		}
	}

	return cal, nil
}

// ValidateReschedule проверяет новую дату и время до обращения к хранилищу.
// remaining остаток мест на новое время без учёта самого бронирования.
func ValidateReschedule(tour *model.Tour, date, startTime string, slots, remaining int) error {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return model.NewValidationError("date", "invalid date")
	}

	if IsDateUnavailable(d, ActiveWeekdays(tour.Schedule), NewDateSet(tour.DisabledDates)) {
		return model.NewValidationError("date", "date is not available")
	}

	found := false
	for _, t := range tour.Schedule.Times(d.Weekday()) {
		if t == startTime {
			found = true
			break
		}
	}
	if !found {
		return model.NewValidationError("time", "time is not in the schedule")
	}

	if remaining < slots {
		return model.CapacityConflict{Date: date, Time: startTime, Requested: slots, Remaining: remaining}
	}
	return nil
}
