package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeeeeet/tour_booking/internal/codec"
	"github.com/Freeeeeet/tour_booking/internal/model"
	"github.com/Freeeeeet/tour_booking/internal/repository/base"
)

type TourRepository struct {
	*base.Repository
}

func NewTourRepository(pool *pgxpool.Pool) *TourRepository {
	return &TourRepository{Repository: base.NewRepository(pool)}
}

// GetByID получает тур вместе с расписанием и закрытыми датами
func (r *TourRepository) GetByID(ctx context.Context, id int64) (*model.Tour, error) {
	query := `
		SELECT id, name, description, location, image_url, price::float8, capacity,
			schedule, disabled_dates, is_active, created_at
		FROM tours
		WHERE id = $1
	`

	var (
		tour              model.Tour
		schedule, dates   string
		scheduleW, datesW *codec.Warning
	)
	err := r.QueryRow(ctx, query, id).Scan(
		&tour.ID,
		&tour.Name,
		&tour.Description,
		&tour.Location,
		&tour.ImageURL,
		&tour.Price,
		&tour.Capacity,
		&schedule,
		&dates,
		&tour.IsActive,
		&tour.CreatedAt,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get tour by id: %w", err)
	}

	tour.Schedule, scheduleW = codec.DecodeSchedule(schedule)
	tour.DisabledDates, datesW = codec.DecodeDates(dates)
	tour.Warnings = codec.Warnings(scheduleW, datesW)

	return &tour, nil
}

// CommittedSlots сумма мест неотменённых бронирований на дату и время
func (r *TourRepository) CommittedSlots(ctx context.Context, tourID int64, date, startTime string) (int, error) {
	return committedSlots(ctx, r.Pool(), tourID, date, startTime, 0)
}

// UpdateSchedule сохраняет недельное расписание
func (r *TourRepository) UpdateSchedule(ctx context.Context, id int64, schedule model.TourSchedule) error {
	text, err := codec.EncodeSchedule(schedule)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}

	affected, err := r.ExecAffected(ctx, `UPDATE tours SET schedule = $1 WHERE id = $2`, text, id)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update schedule: %w", model.ErrNotFound)
	}

	return nil
}

// UpdateDisabledDates сохраняет список закрытых дат
func (r *TourRepository) UpdateDisabledDates(ctx context.Context, id int64, dates []string) error {
	text, err := codec.EncodeDates(dates)
	if err != nil {
		return fmt.Errorf("update disabled dates: %w", err)
	}

	affected, err := r.ExecAffected(ctx, `UPDATE tours SET disabled_dates = $1 WHERE id = $2`, text, id)
	if err != nil {
		return fmt.Errorf("update disabled dates: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update disabled dates: %w", model.ErrNotFound)
	}

	return nil
}
