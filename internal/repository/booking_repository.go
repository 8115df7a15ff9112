package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeeeeet/tour_booking/internal/codec"
	"github.com/Freeeeeet/tour_booking/internal/model"
	"github.com/Freeeeeet/tour_booking/internal/repository/base"
)

const bookingColumns = `
	id, tour_id, customer_name, customer_email, customer_phone,
	to_char(booking_date, 'YYYY-MM-DD'), start_time, slots,
	slot_details, custom_slot_types, custom_slot_fields, booked_products,
	payment_status, booking_status, amount_paid::float8, discount_amount::float8,
	promo_code, payment_link, charge_id, manage_token, created_at, updated_at`

type BookingRepository struct {
	*base.Repository
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{Repository: base.NewRepository(pool)}
}

// Create создаёт бронирование; вложенные коллекции кодируются в текст.
// Без токена управления генерируется новый.
func (r *BookingRepository) Create(ctx context.Context, b *model.Booking) error {
	if b.ManageToken == "" {
		b.ManageToken = uuid.NewString()
	}

	docs, err := encodeBookingDocs(b)
	if err != nil {
		return fmt.Errorf("create booking: %w", err)
	}

	query := `
		INSERT INTO bookings (
			tour_id, customer_name, customer_email, customer_phone, booking_date, start_time,
			slots, slot_details, custom_slot_types, custom_slot_fields, booked_products,
			payment_status, booking_status, amount_paid, discount_amount, promo_code,
			payment_link, charge_id, manage_token
		)
		VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id, created_at, updated_at
	`

	err = r.QueryRow(
		ctx, query,
		b.TourID, b.CustomerName, b.CustomerEmail, b.CustomerPhone, b.Date, b.Time,
		b.Slots, docs.slots, docs.types, docs.fields, docs.products,
		b.PaymentStatus, b.BookingStatus, b.AmountPaid, b.DiscountAmount, b.PromoCode,
		b.PaymentLink, b.ChargeID, b.ManageToken,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create booking: %w", err)
	}

	return nil
}

// GetByID получает бронирование по ID
func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking by id: %w", err)
	}

	return booking, nil
}

// GetByManageToken получает бронирование по токену управления
func (r *BookingRepository) GetByManageToken(ctx context.Context, token string) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE manage_token = $1`

	booking, err := scanBooking(r.QueryRow(ctx, query, token))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking by manage token: %w", err)
	}

	return booking, nil
}

// ListByPaymentStatus получает бронирования с заданным статусом оплаты
func (r *BookingRepository) ListByPaymentStatus(ctx context.Context, status model.PaymentStatus) ([]*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE payment_status = $1 ORDER BY updated_at`

	rows, err := r.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("list bookings by payment status: %w", err)
	}
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}

	return bookings, rows.Err()
}

// UpdateSlots сохраняет слоты и пересчитанную сумму. Если мест стало больше,
// свободная вместимость перепроверяется под блокировкой тура.
func (r *BookingRepository) UpdateSlots(ctx context.Context, id int64, slots []model.Slot, amountPaid float64) error {
	text, err := codec.EncodeSlots(slots)
	if err != nil {
		return fmt.Errorf("update slots: %w", err)
	}

	return r.InTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		cur, err := lockBooking(ctx, tx, id)
		if err != nil {
			return err
		}
		if !cur.editable() {
			return model.ErrNotAllowed
		}

		if len(slots) > cur.slots {
			if err := checkCapacity(ctx, tx, cur, cur.date, cur.time, len(slots)); err != nil {
				return err
			}
		}

		_, err = tx.Exec(ctx, `
			UPDATE bookings
			SET slots = $1, slot_details = $2, amount_paid = $3, updated_at = NOW()
			WHERE id = $4 AND payment_status = $5
		`, len(slots), text, amountPaid, id, model.PaymentStatusPending)
		if err != nil {
			return fmt.Errorf("update slots: %w", err)
		}
		return nil
	})
}

// UpdateSlotCount меняет количество мест; slots уже приведены к новой длине
func (r *BookingRepository) UpdateSlotCount(ctx context.Context, id int64, count int, slots []model.Slot, amountPaid float64) error {
	if count != len(slots) {
		return fmt.Errorf("update slot count: %d slots for count %d", len(slots), count)
	}
	return r.UpdateSlots(ctx, id, slots, amountPaid)
}

// UpdateProducts сохраняет продукты и пересчитанную сумму
func (r *BookingRepository) UpdateProducts(ctx context.Context, id int64, products []model.BookedProduct, amountPaid float64) error {
	text, err := codec.EncodeProducts(products)
	if err != nil {
		return fmt.Errorf("update products: %w", err)
	}

	affected, err := r.ExecAffected(ctx, `
		UPDATE bookings
		SET booked_products = $1, amount_paid = $2, updated_at = NOW()
		WHERE id = $3 AND payment_status = $4 AND booking_status <> $5
	`, text, amountPaid, id, model.PaymentStatusPending, model.BookingStatusCancelled)
	if err != nil {
		return fmt.Errorf("update products: %w", err)
	}
	if affected == 0 {
		return r.rejected(ctx, "update products", id)
	}

	return nil
}

// UpdatePersonalInfo обновляет контактные данные клиента
func (r *BookingRepository) UpdatePersonalInfo(ctx context.Context, id int64, info model.PersonalInfo) error {
	affected, err := r.ExecAffected(ctx, `
		UPDATE bookings
		SET customer_name = $1, customer_email = $2, customer_phone = $3, updated_at = NOW()
		WHERE id = $4
	`, info.Name, info.Email, info.Phone, id)
	if err != nil {
		return fmt.Errorf("update personal info: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update personal info: %w", model.ErrNotFound)
	}

	return nil
}

// Reschedule переносит бронирование на новые дату и время и ставит статус rescheduled.
// Вместимость нового времени проверяется в той же транзакции.
func (r *BookingRepository) Reschedule(ctx context.Context, id int64, date, startTime string) error {
	return r.InTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		cur, err := lockBooking(ctx, tx, id)
		if err != nil {
			return err
		}
		if !cur.reschedulable() {
			return model.ErrNotAllowed
		}

		if cur.date != date || cur.time != startTime {
			if err := checkCapacity(ctx, tx, cur, date, startTime, cur.slots); err != nil {
				return err
			}
		}

		_, err = tx.Exec(ctx, `
			UPDATE bookings
			SET booking_date = $1::date, start_time = $2, booking_status = $3, updated_at = NOW()
			WHERE id = $4
		`, date, startTime, model.BookingStatusRescheduled, id)
		if err != nil {
			return fmt.Errorf("reschedule booking: %w", err)
		}
		return nil
	})
}

// SetPaymentSession сохраняет ссылку на checkout-сессию и сбрасывает статус оплаты в pending
func (r *BookingRepository) SetPaymentSession(ctx context.Context, id int64, checkoutURL string) error {
	affected, err := r.ExecAffected(ctx, `
		UPDATE bookings
		SET payment_link = $1, payment_status = $2, updated_at = NOW()
		WHERE id = $3 AND payment_status IN ($2, $4) AND booking_status <> $5
	`, checkoutURL, model.PaymentStatusPending, id, model.PaymentStatusFailed, model.BookingStatusCancelled)
	if err != nil {
		return fmt.Errorf("set payment session: %w", err)
	}
	if affected == 0 {
		return r.rejected(ctx, "set payment session", id)
	}

	return nil
}

// MarkCancelled фиксирует отмену
func (r *BookingRepository) MarkCancelled(ctx context.Context, id int64, paymentStatus model.PaymentStatus) error {
	affected, err := r.ExecAffected(ctx, `
		UPDATE bookings
		SET booking_status = $1, payment_status = $2, updated_at = NOW()
		WHERE id = $3
	`, model.BookingStatusCancelled, paymentStatus, id)
	if err != nil {
		return fmt.Errorf("mark cancelled: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("mark cancelled: %w", model.ErrNotFound)
	}

	return nil
}

// rejected объясняет, почему условный UPDATE не затронул строк
func (r *BookingRepository) rejected(ctx context.Context, op string, id int64) error {
	var exists bool
	err := r.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return fmt.Errorf("%s: %w", op, model.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, model.ErrNotAllowed)
}

type lockedBooking struct {
	id            int64
	tourID        int64
	date          string
	time          string
	slots         int
	additional    int
	paymentStatus model.PaymentStatus
	bookingStatus model.BookingStatus
}

func (c lockedBooking) gate() *model.Booking {
	return &model.Booking{PaymentStatus: c.paymentStatus, BookingStatus: c.bookingStatus}
}

// editable слоты и продукты меняются только до оплаты
func (c lockedBooking) editable() bool {
	b := c.gate()
	return b.CanEditSlots() && !b.IsCancelled()
}

func (c lockedBooking) reschedulable() bool {
	b := c.gate()
	return b.CanReschedule() && !b.IsCancelled()
}

// lockBooking блокирует строку бронирования и тура. Порядок блокировок всегда тур, затем бронирование.
func lockBooking(ctx context.Context, tx pgx.Tx, id int64) (lockedBooking, error) {
	cur := lockedBooking{id: id}

	err := tx.QueryRow(ctx, `SELECT tour_id FROM bookings WHERE id = $1`, id).Scan(&cur.tourID)
	if err != nil {
		if base.IsNotFound(err) {
			return cur, model.ErrNotFound
		}
		return cur, fmt.Errorf("get booking tour: %w", err)
	}

	if _, err := tx.Exec(ctx, `SELECT id FROM tours WHERE id = $1 FOR UPDATE`, cur.tourID); err != nil {
		return cur, fmt.Errorf("lock tour: %w", err)
	}

	err = tx.QueryRow(ctx, `
		SELECT to_char(booking_date, 'YYYY-MM-DD'), start_time, slots,
			COALESCE((SELECT SUM(slots) FROM additional_bookings WHERE booking_id = $1), 0),
			payment_status, booking_status
		FROM bookings
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&cur.date, &cur.time, &cur.slots, &cur.additional, &cur.paymentStatus, &cur.bookingStatus)
	if err != nil {
		return cur, fmt.Errorf("lock booking: %w", err)
	}

	return cur, nil
}

// checkCapacity проверяет, что на дату и время хватает мест для slots основного бронирования
// вместе с его дополнительными бронированиями. Само бронирование в занятые не входит.
func checkCapacity(ctx context.Context, q base.Querier, cur lockedBooking, date, startTime string, slots int) error {
	var capacity, committed int
	err := q.QueryRow(ctx, `SELECT capacity FROM tours WHERE id = $1`, cur.tourID).Scan(&capacity)
	if err != nil {
		return fmt.Errorf("get tour capacity: %w", err)
	}

	committed, err = committedSlots(ctx, q, cur.tourID, date, startTime, cur.id)
	if err != nil {
		return err
	}

	remaining := capacity - committed
	if remaining < 0 {
		remaining = 0
	}
	requested := slots + cur.additional
	if requested > remaining {
		return model.CapacityConflict{
			Date:      date,
			Time:      startTime,
			Requested: requested,
			Remaining: remaining,
		}
	}

	return nil
}

// committedSlots сумма мест неотменённых бронирований на дату и время, кроме excludeID
func committedSlots(ctx context.Context, q base.Querier, tourID int64, date, startTime string, excludeID int64) (int, error) {
	query := `
		SELECT
			COALESCE(SUM(b.slots), 0) + COALESCE((
				SELECT SUM(a.slots)
				FROM additional_bookings a
				JOIN bookings p ON p.id = a.booking_id
				WHERE p.tour_id = $1 AND p.booking_date = $2::date AND p.start_time = $3
					AND p.booking_status <> 'cancelled' AND p.id <> $4
			), 0)
		FROM bookings b
		WHERE b.tour_id = $1 AND b.booking_date = $2::date AND b.start_time = $3
			AND b.booking_status <> 'cancelled' AND b.id <> $4
	`

	var committed int
	if err := q.QueryRow(ctx, query, tourID, date, startTime, excludeID).Scan(&committed); err != nil {
		return 0, fmt.Errorf("count committed slots: %w", err)
	}
	return committed, nil
}

type bookingDocs struct {
	slots, types, fields, products string
}

func encodeBookingDocs(b *model.Booking) (bookingDocs, error) {
	var (
		docs bookingDocs
		err  error
	)
	if docs.slots, err = codec.EncodeSlots(b.SlotDetails); err != nil {
		return docs, err
	}
	if docs.types, err = codec.EncodeSlotTypes(b.CustomSlotTypes); err != nil {
		return docs, err
	}
	if docs.fields, err = codec.EncodeSlotFields(b.CustomSlotFields); err != nil {
		return docs, err
	}
	if docs.products, err = codec.EncodeProducts(b.BookedProducts); err != nil {
		return docs, err
	}
	return docs, nil
}

// scanBooking читает строку и раскодирует вложенные документы.
// Повреждённый документ становится пустой коллекцией с предупреждением.
func scanBooking(row pgx.Row) (*model.Booking, error) {
	var (
		b    model.Booking
		docs bookingDocs
	)

	err := row.Scan(
		&b.ID,
		&b.TourID,
		&b.CustomerName,
		&b.CustomerEmail,
		&b.CustomerPhone,
		&b.Date,
		&b.Time,
		&b.Slots,
		&docs.slots,
		&docs.types,
		&docs.fields,
		&docs.products,
		&b.PaymentStatus,
		&b.BookingStatus,
		&b.AmountPaid,
		&b.DiscountAmount,
		&b.PromoCode,
		&b.PaymentLink,
		&b.ChargeID,
		&b.ManageToken,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	var ws [4]*codec.Warning
	b.SlotDetails, ws[0] = codec.DecodeSlots(docs.slots)
	b.CustomSlotTypes, ws[1] = codec.DecodeSlotTypes(docs.types)
	b.CustomSlotFields, ws[2] = codec.DecodeSlotFields(docs.fields)
	b.BookedProducts, ws[3] = codec.DecodeProducts(docs.products)
	b.Warnings = codec.Warnings(ws[:]...)

	return &b, nil
}
