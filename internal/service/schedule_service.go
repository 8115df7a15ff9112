package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/tour_booking/internal/availability"
	"github.com/Freeeeeet/tour_booking/internal/model"
)

// ScheduleStore хранилище расписаний туров
type ScheduleStore interface {
	GetByID(ctx context.Context, id int64) (*model.Tour, error)
	CommittedSlots(ctx context.Context, tourID int64, date, startTime string) (int, error)
	UpdateSchedule(ctx context.Context, id int64, schedule model.TourSchedule) error
	UpdateDisabledDates(ctx context.Context, id int64, dates []string) error
}

type ScheduleService struct {
	tours      ScheduleStore
	batchLimit int
	logger     *zap.Logger

	mu sync.Mutex // правки расписаний последовательны
}

func NewScheduleService(tours ScheduleStore, batchLimit int, logger *zap.Logger) *ScheduleService {
	return &ScheduleService{
		tours:      tours,
		batchLimit: batchLimit,
		logger:     logger,
	}
}

func (s *ScheduleService) tour(ctx context.Context, id int64) (*model.Tour, error) {
	tour, err := s.tours.GetByID(ctx, id)
	if err != nil {
		return nil, model.RemoteFailure{Op: "fetch tour", Err: err}
	}
	if tour == nil {
		return nil, fmt.Errorf("tour %d: %w", id, model.ErrNotFound)
	}
	return tour, nil
}

// editSchedule применяет правку к копии расписания и сохраняет её.
// При конфликте или неверном времени хранилище не вызывается.
func (s *ScheduleService) editSchedule(ctx context.Context, tourID int64, op string, edit func(w *availability.WeeklySchedule) error) (model.TourSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tour, err := s.tour(ctx, tourID)
	if err != nil {
		return nil, err
	}

	w := availability.NewWeeklySchedule(tour.Schedule)
	if err := edit(w); err != nil {
		return nil, err
	}

	schedule := w.Schedule()
	if err := s.tours.UpdateSchedule(ctx, tourID, schedule); err != nil {
		return nil, model.RemoteFailure{Op: "update schedule", Err: err}
	}

	s.logger.Info("Tour schedule updated",
		zap.Int64("tour_id", tourID),
		zap.String("op", op),
	)
	return schedule, nil
}

// AddTime добавляет время начала в день недели
func (s *ScheduleService) AddTime(ctx context.Context, tourID int64, day time.Weekday, start string) (model.TourSchedule, error) {
	return s.editSchedule(ctx, tourID, "add", func(w *availability.WeeklySchedule) error {
		return w.Add(day, start)
	})
}

// UpdateTime меняет время начала по индексу
func (s *ScheduleService) UpdateTime(ctx context.Context, tourID int64, day time.Weekday, index int, start string) (model.TourSchedule, error) {
	return s.editSchedule(ctx, tourID, "update", func(w *availability.WeeklySchedule) error {
		return w.Update(day, index, start)
	})
}

// RemoveTime удаляет время начала; день без времени становится неактивным
func (s *ScheduleService) RemoveTime(ctx context.Context, tourID int64, day time.Weekday, index int) (model.TourSchedule, error) {
	return s.editSchedule(ctx, tourID, "remove", func(w *availability.WeeklySchedule) error {
		return w.Remove(day, index)
	})
}

// SetDateDisabled закрывает или открывает конкретную дату
func (s *ScheduleService) SetDateDisabled(ctx context.Context, tourID int64, date string, disabled bool) ([]string, error) {
	if _, err := time.Parse(availability.DateLayout, date); err != nil {
		return nil, model.NewValidationError("date", "invalid date")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tour, err := s.tour(ctx, tourID)
	if err != nil {
		return nil, err
	}

	dates := slices.DeleteFunc(slices.Clone(tour.DisabledDates), func(d string) bool { return d == date })
	if disabled {
		dates = append(dates, date)
	}
	slices.Sort(dates)

	if err := s.tours.UpdateDisabledDates(ctx, tourID, dates); err != nil {
		return nil, model.RemoteFailure{Op: "update disabled dates", Err: err}
	}
	return dates, nil
}

// Month календарь доступности тура на месяц
func (s *ScheduleService) Month(ctx context.Context, tourID int64, year int, month time.Month) (*model.Tour, availability.Calendar, error) {
	tour, err := s.tour(ctx, tourID)
	if err != nil {
		return nil, availability.Calendar{}, err
	}

	cal, err := availability.Month(ctx, s.tours, tour, year, month, s.batchLimit)
	if err != nil {
		return nil, availability.Calendar{}, model.RemoteFailure{Op: "fetch remaining slots", Err: err}
	}

	return tour, cal, nil
}
