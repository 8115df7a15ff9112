// Package payment синхронизирует внешнюю checkout-сессию с текущим содержимым бронирования.
package payment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Freeeeeet/tour_booking/internal/model"
)

// SessionRequest запрос на создание или замену сессии
type SessionRequest struct {
	Snapshot Snapshot
	// PriorSession ссылка на предыдущую сессию; шлюз заменяет её, а не создаёт дубликат
	PriorSession string
}

// Session ответ шлюза
type Session struct {
	CheckoutURL string `json:"checkoutUrl"`
}

// Gateway внешний платёжный шлюз
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
}

// SessionStore сохраняет ссылку на сессию и сбрасывает статус оплаты в pending
type SessionStore interface {
	SetPaymentSession(ctx context.Context, bookingID int64, checkoutURL string) error
}

// Synchronizer создаёт или заменяет checkout-сессию бронирования
type Synchronizer struct {
	gateway  Gateway
	store    SessionStore
	currency string
	logger   *zap.Logger
}

// NewSynchronizer создаёт синхронизатор
func NewSynchronizer(gateway Gateway, store SessionStore, currency string, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{
		gateway:  gateway,
		store:    store,
		currency: currency,
		logger:   logger,
	}
}

// Sync строит слепок и отправляет его в шлюз. При update и наличии прежней сессии
// передаёт её ссылку, чтобы шлюз заменил сессию. При ошибке шлюза бронирование не меняется.
func (s *Synchronizer) Sync(ctx context.Context, b *model.Booking, tour *model.Tour, update bool) (Session, error) {
	snapshot, err := BuildSnapshot(b, tour, s.currency)
	if err != nil {
		return Session{}, model.ValidationError{Fields: []model.FieldError{{Field: "slot_details", Msg: err.Error()}}}
	}

	req := SessionRequest{Snapshot: snapshot}
	if update && b.HasPaymentSession() {
		req.PriorSession = b.PaymentLink
	}

	session, err := s.gateway.CreateSession(ctx, req)
	if err != nil {
		s.logger.Error("Failed to create payment session",
			zap.Int64("booking_id", b.ID),
			zap.Bool("replace", req.PriorSession != ""),
			zap.Error(err))
		return Session{}, model.RemoteFailure{Op: "create payment session", Err: err}
	}
	if session.CheckoutURL == "" {
		return Session{}, model.RemoteFailure{Op: "create payment session", Err: fmt.Errorf("empty checkout url")}
	}

	if err := s.store.SetPaymentSession(ctx, b.ID, session.CheckoutURL); err != nil {
		return Session{}, model.RemoteFailure{Op: "save payment session", Err: err}
	}

	s.logger.Info("Payment session synced",
		zap.Int64("booking_id", b.ID),
		zap.Bool("replaced", req.PriorSession != ""),
		zap.Int64("total", snapshot.Total),
	)

	return session, nil
}
