package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/mail"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tour_booking/internal/availability"
	"github.com/Freeeeeet/tour_booking/internal/model"
	"github.com/Freeeeeet/tour_booking/internal/payment"
	"github.com/Freeeeeet/tour_booking/internal/pricing"
)

// BookingStore хранилище бронирований
type BookingStore interface {
	GetByID(ctx context.Context, id int64) (*model.Booking, error)
	GetByManageToken(ctx context.Context, token string) (*model.Booking, error)
	UpdateSlots(ctx context.Context, id int64, slots []model.Slot, amountPaid float64) error
	UpdateSlotCount(ctx context.Context, id int64, count int, slots []model.Slot, amountPaid float64) error
	UpdateProducts(ctx context.Context, id int64, products []model.BookedProduct, amountPaid float64) error
	UpdatePersonalInfo(ctx context.Context, id int64, info model.PersonalInfo) error
	Reschedule(ctx context.Context, id int64, date, startTime string) error
}

// TourStore хранилище туров
type TourStore interface {
	GetByID(ctx context.Context, id int64) (*model.Tour, error)
	CommittedSlots(ctx context.Context, tourID int64, date, startTime string) (int, error)
}

// AdditionalBookingStore хранилище дополнительных бронирований
type AdditionalBookingStore interface {
	ListByBooking(ctx context.Context, bookingID int64, manageToken string) ([]model.AdditionalBooking, error)
}

// PaymentSyncer синхронизирует checkout-сессию
type PaymentSyncer interface {
	Sync(ctx context.Context, b *model.Booking, tour *model.Tour, update bool) (payment.Session, error)
}

// Phase фаза конвейера изменения бронирования
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseValidating
	PhaseMutating
	PhaseSyncing
	PhaseRefreshing
)

func (p Phase) String() string {
	switch p {
	case PhaseValidating:
		return "validating"
	case PhaseMutating:
		return "mutating"
	case PhaseSyncing:
		return "syncing"
	case PhaseRefreshing:
		return "refreshing"
	default:
		return "idle"
	}
}

// ResyncError изменение сохранено, но checkout-сессия не обновлена.
// Откат не выполняется; сессию нужно пересоздать через ResyncPayment.
type ResyncError struct {
	BookingID int64
	Err       error
}

func (e *ResyncError) Error() string {
	return fmt.Sprintf("booking %d updated but payment session resync failed: %v", e.BookingID, e.Err)
}

func (e *ResyncError) Unwrap() error { return e.Err }

// IsResync проверяет, что изменение сохранено, а синхронизация оплаты нет
func IsResync(err error) bool {
	var target *ResyncError
	return errors.As(err, &target)
}

// bookingState состояние одного бронирования в процессе
type bookingState struct {
	pipeline sync.Mutex // конвейеры одного бронирования строго последовательны
	phase    atomic.Int32
	issued   atomic.Uint64

	mu         sync.Mutex
	applied    uint64
	projection *model.Booking
}

func (st *bookingState) setPhase(p Phase) {
	st.phase.Store(int32(p))
}

// apply заменяет проекцию, если ответ новее последнего применённого
func (st *bookingState) apply(gen uint64, b *model.Booking) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if gen <= st.applied {
		return model.ErrStaleResponse
	}
	st.applied = gen
	st.projection = b
	return nil
}

func (st *bookingState) current() *model.Booking {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.projection
}

type BookingService struct {
	bookings   BookingStore
	tours      TourStore
	additional AdditionalBookingStore
	payments   PaymentSyncer
	logger     *zap.Logger

	mu     sync.Mutex
	states map[int64]*bookingState
}

func NewBookingService(
	bookings BookingStore,
	tours TourStore,
	additional AdditionalBookingStore,
	payments PaymentSyncer,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		bookings:   bookings,
		tours:      tours,
		additional: additional,
		payments:   payments,
		logger:     logger,
		states:     make(map[int64]*bookingState),
	}
}

func (s *BookingService) state(id int64) *bookingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[id]
	if !ok {
		st = &bookingState{}
		s.states[id] = st
	}
	return st
}

// Phase текущая фаза конвейера бронирования
func (s *BookingService) Phase(id int64) Phase {
	return Phase(s.state(id).phase.Load())
}

// Get возвращает локальную проекцию бронирования, загружая её при первом обращении
func (s *BookingService) Get(ctx context.Context, id int64) (*model.Booking, error) {
	if b := s.state(id).current(); b != nil {
		return b, nil
	}
	return s.Refresh(ctx, id)
}

// GetByManageToken находит бронирование по токену клиента и обновляет проекцию
func (s *BookingService) GetByManageToken(ctx context.Context, token string) (*model.Booking, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, model.NewValidationError("manage_token", "required")
	}

	b, err := s.bookings.GetByManageToken(ctx, token)
	if err != nil {
		return nil, model.RemoteFailure{Op: "fetch booking", Err: err}
	}
	if b == nil {
		return nil, model.ErrNotFound
	}

	st := s.state(b.ID)
	if err := st.apply(st.issued.Add(1), b); err != nil {
		// уже применён более новый ответ
		return st.current(), nil
	}
	s.logWarnings(b)
	return b, nil
}

// Refresh перечитывает бронирование и заменяет проекцию. Каждый вызов получает
// следующее поколение; ответ не новее уже применённого отбрасывается с ErrStaleResponse.
func (s *BookingService) Refresh(ctx context.Context, id int64) (*model.Booking, error) {
	st := s.state(id)
	gen := st.issued.Add(1)

	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, model.RemoteFailure{Op: "fetch booking", Err: err}
	}
	if b == nil {
		return nil, model.ErrNotFound
	}

	if err := st.apply(gen, b); err != nil {
		s.logger.Debug("Discarded stale booking response",
			zap.Int64("booking_id", id),
			zap.Uint64("generation", gen))
		return nil, err
	}

	s.logWarnings(b)
	return b, nil
}

func (s *BookingService) logWarnings(b *model.Booking) {
	for _, w := range b.Warnings {
		s.logger.Warn("Booking document recovered as empty",
			zap.Int64("booking_id", b.ID),
			zap.String("warning", w))
	}
}

// mutation удалённое изменение, подготовленное после успешной валидации
type mutation func(ctx context.Context) error

// prepareFunc проверяет изменение по проекции и возвращает удалённый вызов
type prepareFunc func(ctx context.Context, b *model.Booking, tour *model.Tour) (mutation, error)

// run выполняет конвейер: валидация, изменение, синхронизация оплаты, обновление проекции.
// Вызовы хранилища и шлюза не прерываются отменой ctx вызывающего.
func (s *BookingService) run(ctx context.Context, id int64, op string, prepare prepareFunc) (*model.Booking, error) {
	ctx = context.WithoutCancel(ctx)

	st := s.state(id)
	st.pipeline.Lock()
	defer st.pipeline.Unlock()
	defer st.setPhase(PhaseIdle)

	// 1. локальная валидация
	st.setPhase(PhaseValidating)

	// проверки идут по свежему состоянию: проекция могла устареть, например после оплаты
	b, err := s.Refresh(ctx, id)
	if errors.Is(err, model.ErrStaleResponse) {
		b, err = st.current(), nil
	}
	if err != nil {
		return nil, err
	}

	tour, err := s.tours.GetByID(ctx, b.TourID)
	if err != nil {
		return nil, model.RemoteFailure{Op: "fetch tour", Err: err}
	}
	if tour == nil {
		return nil, fmt.Errorf("tour %d: %w", b.TourID, model.ErrNotFound)
	}

	mutate, err := prepare(ctx, b, tour)
	if err != nil {
		s.logger.Info("Booking change rejected",
			zap.Int64("booking_id", id),
			zap.String("op", op),
			zap.Error(err))
		return nil, err
	}

	// 2. удалённое изменение
	st.setPhase(PhaseMutating)
	if err := mutate(ctx); err != nil {
		s.logger.Error("Booking change failed",
			zap.Int64("booking_id", id),
			zap.String("op", op),
			zap.Error(err))
		if model.IsCapacityConflict(err) || errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrNotAllowed) {
			return nil, err
		}
		return nil, model.RemoteFailure{Op: op, Err: err}
	}

	// 3. синхронизация checkout-сессии
	// оплаченная сессия не пересоздаётся: это вернуло бы статус в pending
	var resyncErr error
	if b.HasPaymentSession() && b.PaymentStatus == model.PaymentStatusPending {
		st.setPhase(PhaseSyncing)
		if err := s.sync(ctx, id, tour); err != nil {
			resyncErr = &ResyncError{BookingID: id, Err: err}
		}
	}

	// 4. обновление проекции
	st.setPhase(PhaseRefreshing)
	refreshed, err := s.Refresh(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrStaleResponse) {
			refreshed, err = st.current(), nil
		} else {
			s.logger.Error("Failed to refresh booking after change",
				zap.Int64("booking_id", id),
				zap.String("op", op),
				zap.Error(err))
		}
	}

	s.logger.Info("Booking changed",
		zap.Int64("booking_id", id),
		zap.String("op", op),
		zap.Bool("resync_failed", resyncErr != nil),
	)

	if resyncErr != nil {
		return refreshed, resyncErr
	}
	return refreshed, err
}

// sync перечитывает бронирование после изменения и обновляет сессию
func (s *BookingService) sync(ctx context.Context, id int64, tour *model.Tour) error {
	fresh, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return model.RemoteFailure{Op: "fetch booking", Err: err}
	}
	if fresh == nil {
		return model.ErrNotFound
	}
	_, err = s.payments.Sync(ctx, fresh, tour, true)
	return err
}

// UpdateSlots заменяет слоты бронирования. Цены берутся из каталога, сумма пересчитывается.
func (s *BookingService) UpdateSlots(ctx context.Context, id int64, slots []model.Slot) (*model.Booking, error) {
	return s.run(ctx, id, "update slots", func(_ context.Context, b *model.Booking, tour *model.Tour) (mutation, error) {
		if !b.CanEditSlots() {
			return nil, model.ErrNotAllowed
		}
		if len(slots) == 0 {
			return nil, model.NewValidationError("slots", "at least one slot required")
		}

		resolver := pricing.NewResolver(b, tour.Price)
		if errs := resolver.ValidateAll(slots); len(errs) > 0 {
			return nil, model.ValidationError{Fields: errs}
		}

		priced, amount, err := amountFor(resolver, slots, b.BookedProducts, b.DiscountAmount)
		if err != nil {
			return nil, err
		}

		return func(ctx context.Context) error {
			return s.bookings.UpdateSlots(ctx, id, priced, amount)
		}, nil
	})
}

// UpdateSlotCount меняет только количество мест: список дополняется слотами по умолчанию
// или обрезается с конца
func (s *BookingService) UpdateSlotCount(ctx context.Context, id int64, count int) (*model.Booking, error) {
	return s.run(ctx, id, "update slot count", func(_ context.Context, b *model.Booking, tour *model.Tour) (mutation, error) {
		if !b.CanEditSlots() {
			return nil, model.ErrNotAllowed
		}
		if count < 1 {
			return nil, model.NewValidationError("slots", "at least one slot required")
		}

		resolver := pricing.NewResolver(b, tour.Price)
		resized := resolver.Resize(b.SlotDetails, count)

		priced, amount, err := amountFor(resolver, resized, b.BookedProducts, b.DiscountAmount)
		if err != nil {
			return nil, err
		}

		return func(ctx context.Context) error {
			return s.bookings.UpdateSlotCount(ctx, id, count, priced, amount)
		}, nil
	})
}

// UpdateProducts заменяет дополнительные продукты
func (s *BookingService) UpdateProducts(ctx context.Context, id int64, products []model.BookedProduct) (*model.Booking, error) {
	return s.run(ctx, id, "update products", func(_ context.Context, b *model.Booking, tour *model.Tour) (mutation, error) {
		if !b.CanEditProducts() {
			return nil, model.ErrNotAllowed
		}
		if errs := pricing.ValidateProducts(products); len(errs) > 0 {
			return nil, model.ValidationError{Fields: errs}
		}

		_, amount, err := amountFor(pricing.NewResolver(b, tour.Price), b.SlotDetails, products, b.DiscountAmount)
		if err != nil {
			return nil, err
		}

		return func(ctx context.Context) error {
			return s.bookings.UpdateProducts(ctx, id, products, amount)
		}, nil
	})
}

// UpdatePersonalInfo меняет контактные данные. Статус оплаты не ограничивает это изменение.
func (s *BookingService) UpdatePersonalInfo(ctx context.Context, id int64, info model.PersonalInfo) (*model.Booking, error) {
	return s.run(ctx, id, "update personal info", func(_ context.Context, b *model.Booking, _ *model.Tour) (mutation, error) {
		if b.IsCancelled() {
			return nil, model.ErrNotAllowed
		}

		info = model.PersonalInfo{
			Name:  strings.TrimSpace(info.Name),
			Email: strings.TrimSpace(info.Email),
			Phone: strings.TrimSpace(info.Phone),
		}

		var errs []model.FieldError
		if info.Name == "" {
			errs = append(errs, model.FieldError{Field: "customer_name", Msg: pricing.MsgFieldRequired})
		}
		if info.Email == "" {
			errs = append(errs, model.FieldError{Field: "customer_email", Msg: pricing.MsgFieldRequired})
		} else if addr, err := mail.ParseAddress(info.Email); err != nil || addr.Address != info.Email {
			errs = append(errs, model.FieldError{Field: "customer_email", Msg: "invalid email"})
		}
		if len(errs) > 0 {
			return nil, model.ValidationError{Fields: errs}
		}

		return func(ctx context.Context) error {
			return s.bookings.UpdatePersonalInfo(ctx, id, info)
		}, nil
	})
}

// Reschedule переносит бронирование. Дата и время проверяются по расписанию тура,
// затем по остатку мест; окончательная проверка вместимости выполняется в хранилище.
func (s *BookingService) Reschedule(ctx context.Context, id int64, date, startTime string) (*model.Booking, error) {
	return s.run(ctx, id, "reschedule", func(ctx context.Context, b *model.Booking, tour *model.Tour) (mutation, error) {
		if !b.CanReschedule() || b.IsCancelled() {
			return nil, model.ErrNotAllowed
		}

		if err := availability.ValidateReschedule(tour, date, startTime, b.Slots, math.MaxInt); err != nil {
			return nil, err
		}

		// дополнительные бронирования переезжают вместе с основным
		extra, err := s.additionalSlots(ctx, b)
		if err != nil {
			return nil, err
		}
		needed := b.Slots + extra

		remaining, err := availability.RemainingSlots(ctx, s.tours, tour, date, startTime)
		if err != nil {
			return nil, model.RemoteFailure{Op: "fetch remaining slots", Err: err}
		}
		if date == b.Date && startTime == b.Time {
			remaining += needed
		}
		if err := availability.ValidateReschedule(tour, date, startTime, needed, remaining); err != nil {
			return nil, err
		}

		return func(ctx context.Context) error {
			return s.bookings.Reschedule(ctx, id, date, startTime)
		}, nil
	})
}

// ResyncPayment повторно создаёт checkout-сессию после неудачной синхронизации
func (s *BookingService) ResyncPayment(ctx context.Context, id int64) (*model.Booking, error) {
	ctx = context.WithoutCancel(ctx)

	st := s.state(id)
	st.pipeline.Lock()
	defer st.pipeline.Unlock()
	defer st.setPhase(PhaseIdle)

	st.setPhase(PhaseSyncing)
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, model.RemoteFailure{Op: "fetch booking", Err: err}
	}
	if b == nil {
		return nil, model.ErrNotFound
	}
	if b.PaymentStatus != model.PaymentStatusPending || b.IsCancelled() {
		return nil, model.ErrNotAllowed
	}

	tour, err := s.tours.GetByID(ctx, b.TourID)
	if err != nil {
		return nil, model.RemoteFailure{Op: "fetch tour", Err: err}
	}
	if tour == nil {
		return nil, fmt.Errorf("tour %d: %w", b.TourID, model.ErrNotFound)
	}

	if _, err := s.payments.Sync(ctx, b, tour, true); err != nil {
		return nil, err
	}

	st.setPhase(PhaseRefreshing)
	refreshed, err := s.Refresh(ctx, id)
	if errors.Is(err, model.ErrStaleResponse) {
		return st.current(), nil
	}
	return refreshed, err
}

// Exclusive выполняет fn под блокировкой конвейера бронирования,
// чтобы внешние изменения не пересекались с правками клиента
func (s *BookingService) Exclusive(ctx context.Context, id int64, fn func(ctx context.Context) error) error {
	ctx = context.WithoutCancel(ctx)

	st := s.state(id)
	st.pipeline.Lock()
	defer st.pipeline.Unlock()
	defer st.setPhase(PhaseIdle)

	st.setPhase(PhaseMutating)
	return fn(ctx)
}

// AdditionalBookings дополнительные бронирования без дубликатов по ID
func (s *BookingService) AdditionalBookings(ctx context.Context, id int64) ([]model.AdditionalBooking, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.listAdditional(ctx, b)
}

func (s *BookingService) listAdditional(ctx context.Context, b *model.Booking) ([]model.AdditionalBooking, error) {
	list, err := s.additional.ListByBooking(ctx, b.ID, b.ManageToken)
	if err != nil {
		return nil, model.RemoteFailure{Op: "fetch additional bookings", Err: err}
	}

	return lo.UniqBy(list, func(ab model.AdditionalBooking) string {
		return ab.ID
	}), nil
}

// additionalSlots места дополнительных бронирований
func (s *BookingService) additionalSlots(ctx context.Context, b *model.Booking) (int, error) {
	list, err := s.listAdditional(ctx, b)
	if err != nil {
		return 0, err
	}
	return lo.SumBy(list, func(ab model.AdditionalBooking) int { return ab.Slots }), nil
}

// Quote текущая стоимость бронирования по проекции
func (s *BookingService) Quote(ctx context.Context, id int64) (pricing.Quote, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return pricing.Quote{}, err
	}
	tour, err := s.tours.GetByID(ctx, b.TourID)
	if err != nil {
		return pricing.Quote{}, model.RemoteFailure{Op: "fetch tour", Err: err}
	}
	if tour == nil {
		return pricing.Quote{}, model.ErrNotFound
	}
	return pricing.NewResolver(b, tour.Price).Quote(b.SlotDetails, b.BookedProducts, b.DiscountAmount)
}

// amountFor возвращает слоты с ценами из каталога и итог к оплате
func amountFor(r pricing.Resolver, slots []model.Slot, products []model.BookedProduct, discount float64) ([]model.Slot, float64, error) {
	priced, err := r.Priced(slots)
	if err != nil {
		return nil, 0, model.NewValidationError("slot_details", pricing.MsgInvalidType)
	}
	q, err := r.Quote(priced, products, discount)
	if err != nil {
		return nil, 0, model.NewValidationError("slot_details", pricing.MsgInvalidType)
	}
	return priced, q.Total, nil
}
