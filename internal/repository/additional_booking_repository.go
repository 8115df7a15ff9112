package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeeeeet/tour_booking/internal/codec"
	"github.com/Freeeeeet/tour_booking/internal/model"
	"github.com/Freeeeeet/tour_booking/internal/repository/base"
)

type AdditionalBookingRepository struct {
	*base.Repository
}

func NewAdditionalBookingRepository(pool *pgxpool.Pool) *AdditionalBookingRepository {
	return &AdditionalBookingRepository{Repository: base.NewRepository(pool)}
}

// ListByBooking получает дополнительные бронирования, привязанные к основному по ID или токену.
// Одна запись может попасть в выборку дважды; дубликаты убирает сервис.
func (r *AdditionalBookingRepository) ListByBooking(ctx context.Context, bookingID int64, manageToken string) ([]model.AdditionalBooking, error) {
	query := `
		SELECT id, booking_id, manage_token, slots, slot_details, booked_products,
			amount_paid::float8, payment_status, created_at
		FROM additional_bookings
		WHERE booking_id = $1
		UNION ALL
		SELECT id, booking_id, manage_token, slots, slot_details, booked_products,
			amount_paid::float8, payment_status, created_at
		FROM additional_bookings
		WHERE manage_token = $2
		ORDER BY created_at
	`

	rows, err := r.Query(ctx, query, bookingID, manageToken)
	if err != nil {
		return nil, fmt.Errorf("list additional bookings: %w", err)
	}
	defer rows.Close()

	var list []model.AdditionalBooking
	for rows.Next() {
		ab, err := scanAdditionalBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan additional booking: %w", err)
		}
		list = append(list, ab)
	}

	return list, rows.Err()
}

func scanAdditionalBooking(row pgx.Row) (model.AdditionalBooking, error) {
	var (
		ab              model.AdditionalBooking
		slots, products string
	)
	err := row.Scan(
		&ab.ID,
		&ab.BookingID,
		&ab.ManageToken,
		&ab.Slots,
		&slots,
		&products,
		&ab.AmountPaid,
		&ab.PaymentStatus,
		&ab.CreatedAt,
	)
	if err != nil {
		return ab, err
	}

	var ws [2]*codec.Warning
	ab.SlotDetails, ws[0] = codec.DecodeSlots(slots)
	ab.BookedProducts, ws[1] = codec.DecodeProducts(products)
	ab.Warnings = codec.Warnings(ws[:]...)

	return ab, nil
}
