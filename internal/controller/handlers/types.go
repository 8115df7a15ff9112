package handlers

import (
	"context"

	"github.com/Freeeeeet/tour_booking/internal/controller/state"
	"github.com/Freeeeeet/tour_booking/internal/model"
	"github.com/Freeeeeet/tour_booking/internal/service"
	"go.uber.org/zap"
)

// LinkNotifier сообщает администратору о новой ссылке на оплату
type LinkNotifier interface {
	NotifyCheckoutLink(ctx context.Context, b *model.Booking)
}

// Handlers содержит все зависимости для обработки команд
type Handlers struct {
	bookingService      *service.BookingService
	cancellationService *service.CancellationService
	scheduleService     *service.ScheduleService
	stateManager        *state.Manager
	notifier            LinkNotifier
	adminChatID         int64
	logger              *zap.Logger
}

// NewHandlers создаёт новый обработчик команд
func NewHandlers(
	bookingService *service.BookingService,
	cancellationService *service.CancellationService,
	scheduleService *service.ScheduleService,
	stateManager *state.Manager,
	notifier LinkNotifier,
	adminChatID int64,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		bookingService:      bookingService,
		cancellationService: cancellationService,
		scheduleService:     scheduleService,
		stateManager:        stateManager,
		notifier:            notifier,
		adminChatID:         adminChatID,
		logger:              logger,
	}
}
