package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Freeeeeet/tour_booking/internal/gateway"
	"github.com/Freeeeeet/tour_booking/internal/model"
	"github.com/Freeeeeet/tour_booking/internal/refund"
)

// CancelPlan путь отмены
type CancelPlan string

const (
	PlanDirect         CancelPlan = "direct"          // отмена без возврата
	PlanRefundRequired CancelPlan = "refund_required" // нужен выбор суммы возврата
)

// CancellationStore хранилище для отмены
type CancellationStore interface {
	GetByID(ctx context.Context, id int64) (*model.Booking, error)
	MarkCancelled(ctx context.Context, id int64, paymentStatus model.PaymentStatus) error
	ListByPaymentStatus(ctx context.Context, status model.PaymentStatus) ([]*model.Booking, error)
}

// CancelGateway отправляет отмену во внешний шлюз
type CancelGateway interface {
	CancelBooking(ctx context.Context, req gateway.CancelRequest) (gateway.CancelResult, error)
}

// BookingPipeline последовательность изменений одного бронирования
type BookingPipeline interface {
	Refresh(ctx context.Context, id int64) (*model.Booking, error)
	Exclusive(ctx context.Context, id int64, fn func(ctx context.Context) error) error
}

// Notifier сообщает администратору о результатах
type Notifier interface {
	NotifyCancellation(ctx context.Context, outcome CancelOutcome)
}

// CancelOutcome результат отмены
type CancelOutcome struct {
	BookingID int64
	Plan      CancelPlan
	Refund    *float64
	Message   string
	Booking   *model.Booking
}

type CancellationService struct {
	store    CancellationStore
	gateway  CancelGateway
	pipeline BookingPipeline
	notifier Notifier
	logger   *zap.Logger
}

func NewCancellationService(
	store CancellationStore,
	gw CancelGateway,
	pipeline BookingPipeline,
	notifier Notifier,
	logger *zap.Logger,
) *CancellationService {
	return &CancellationService{
		store:    store,
		gateway:  gw,
		pipeline: pipeline,
		notifier: notifier,
		logger:   logger,
	}
}

// Plan определяет путь отмены: оплаченное бронирование с платежом требует возврата
func Plan(b *model.Booking) CancelPlan {
	if b.CanCancelWithRefund() && b.ChargeID != "" {
		return PlanRefundRequired
	}
	return PlanDirect
}

// Prepare загружает бронирование и определяет путь отмены
func (s *CancellationService) Prepare(ctx context.Context, id int64) (*model.Booking, CancelPlan, error) {
	b, err := s.load(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return b, Plan(b), nil
}

func (s *CancellationService) load(ctx context.Context, id int64) (*model.Booking, error) {
	b, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, model.RemoteFailure{Op: "fetch booking", Err: err}
	}
	if b == nil {
		return nil, model.ErrNotFound
	}
	if b.IsCancelled() {
		return nil, model.ErrNotAllowed
	}
	return b, nil
}

// Cancel отменяет бронирование. Для пути с возвратом нужна подтверждаемая котировка;
// её сумма перепроверяется по актуальной оплаченной сумме.
func (s *CancellationService) Cancel(ctx context.Context, id int64, quote *refund.Quote) (CancelOutcome, error) {
	var outcome CancelOutcome

	err := s.pipeline.Exclusive(ctx, id, func(ctx context.Context) error {
		b, err := s.load(ctx, id)
		if err != nil {
			return err
		}

		plan := Plan(b)
		req := gateway.CancelRequest{BookingID: b.ID}
		status := model.PaymentStatusCancelled

		if plan == PlanRefundRequired {
			amount, err := confirmRefund(quote, b.AmountPaid)
			if err != nil {
				return err
			}
			req.ChargeID = b.ChargeID
			req.Amount = &amount
			status = model.PaymentStatusRefunding
		}

		res, err := s.gateway.CancelBooking(ctx, req)
		if err != nil {
			return model.RemoteFailure{Op: "cancel booking", Err: err}
		}
		if !res.Success {
			msg := res.Message
			if msg == "" {
				msg = "cancellation declined"
			}
			return model.RemoteFailure{Op: "cancel booking", Err: errors.New(msg)}
		}

		if err := s.store.MarkCancelled(ctx, id, status); err != nil {
			s.logger.Error("Gateway cancelled booking but status was not saved",
				zap.Int64("booking_id", id),
				zap.String("payment_status", string(status)),
				zap.Error(err))
			return model.RemoteFailure{Op: "mark cancelled", Err: err}
		}

		outcome = CancelOutcome{
			BookingID: id,
			Plan:      plan,
			Refund:    req.Amount,
			Message:   res.Message,
		}
		return nil
	})
	if err != nil {
		return CancelOutcome{}, err
	}

	refreshed, err := s.pipeline.Refresh(ctx, id)
	if err != nil && !errors.Is(err, model.ErrStaleResponse) {
		s.logger.Warn("Failed to refresh cancelled booking", zap.Int64("booking_id", id), zap.Error(err))
	}
	outcome.Booking = refreshed

	s.logger.Info("Booking cancelled",
		zap.Int64("booking_id", id),
		zap.String("plan", string(outcome.Plan)),
	)
	s.notifier.NotifyCancellation(ctx, outcome)

	return outcome, nil
}

// Refunding бронирования, ожидающие завершения возврата во внешней системе
func (s *CancellationService) Refunding(ctx context.Context) ([]*model.Booking, error) {
	list, err := s.store.ListByPaymentStatus(ctx, model.PaymentStatusRefunding)
	if err != nil {
		return nil, fmt.Errorf("list refunding bookings: %w", err)
	}
	return list, nil
}

func confirmRefund(quote *refund.Quote, paid float64) (float64, error) {
	if quote == nil {
		return 0, model.NewValidationError("refund", "refund option required")
	}
	if !quote.CanConfirm {
		msg := "refund amount is not confirmable"
		if quote.Err != nil {
			msg = quote.Err.Error()
		}
		return 0, model.NewValidationError("refund", msg)
	}

	custom := quote.Amount
	amount, err := refund.Amount(quote.Option, paid, &custom)
	if err != nil {
		return 0, model.NewValidationError("refund", err.Error())
	}
	if amount <= 0 {
		return 0, model.NewValidationError("refund", refund.ErrInvalidAmount.Error())
	}
	return amount, nil
}
