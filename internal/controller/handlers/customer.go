package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tour_booking/internal/controller/view"
	"github.com/Freeeeeet/tour_booking/internal/model"
	"github.com/Freeeeeet/tour_booking/internal/service"
)

// Команды клиента. Бронирование определяется по коду управления, код и есть доступ.

// bookingMutation одно изменение бронирования через сервис
type bookingMutation func(ctx context.Context, booking *model.Booking) (*model.Booking, error)

// HandleReschedule /reschedule <код> <ГГГГ-ММ-ДД> <ЧЧ:ММ>
func (h *Handlers) HandleReschedule(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.customerCommand(ctx, b, update, 3, "Использование: /reschedule <код> <ГГГГ-ММ-ДД> <ЧЧ:ММ>",
		func(args []string) (bookingMutation, error) {
			return func(ctx context.Context, booking *model.Booking) (*model.Booking, error) {
				return h.bookingService.Reschedule(ctx, booking.ID, args[0], args[1])
			}, nil
		})
}

// HandleSlots /slots <код> <количество>
func (h *Handlers) HandleSlots(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.customerCommand(ctx, b, update, 2, "Использование: /slots <код> <количество мест>",
		func(args []string) (bookingMutation, error) {
			count, err := strconv.Atoi(args[0])
			if err != nil || count < 1 {
				return nil, errUsage
			}
			return func(ctx context.Context, booking *model.Booking) (*model.Booking, error) {
				return h.bookingService.UpdateSlotCount(ctx, booking.ID, count)
			}, nil
		})
}

// HandleSlotType /slottype <код> <номер места> <тариф>
func (h *Handlers) HandleSlotType(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.customerCommand(ctx, b, update, 3, "Использование: /slottype <код> <номер места> <тариф>",
		func(args []string) (bookingMutation, error) {
			idx, err := parseIndex(args[0])
			if err != nil {
				return nil, err
			}
			return func(ctx context.Context, booking *model.Booking) (*model.Booking, error) {
				slots, err := withSlotType(booking.SlotDetails, idx, args[1])
				if err != nil {
					return nil, err
				}
				return h.bookingService.UpdateSlots(ctx, booking.ID, slots)
			}, nil
		})
}

// HandleProduct /product <код> <id продукта> <количество>
func (h *Handlers) HandleProduct(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.customerCommand(ctx, b, update, 3, "Использование: /product <код> <id продукта> <количество, 0 убирает>",
		func(args []string) (bookingMutation, error) {
			qty, err := strconv.Atoi(args[1])
			if err != nil || qty < 0 {
				return nil, errUsage
			}
			return func(ctx context.Context, booking *model.Booking) (*model.Booking, error) {
				products, err := withProductQuantity(booking.BookedProducts, args[0], qty)
				if err != nil {
					return nil, err
				}
				return h.bookingService.UpdateProducts(ctx, booking.ID, products)
			}, nil
		})
}

// HandleContact /contact <код> <email> <телефон|-> <имя>
func (h *Handlers) HandleContact(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.customerCommand(ctx, b, update, -4, "Использование: /contact <код> <email> <телефон или -> <имя>",
		func(args []string) (bookingMutation, error) {
			info, err := parseContact(args)
			if err != nil {
				return nil, err
			}
			return func(ctx context.Context, booking *model.Booking) (*model.Booking, error) {
				return h.bookingService.UpdatePersonalInfo(ctx, booking.ID, info)
			}, nil
		})
}

// customerCommand общий разбор: первый аргумент код, остальное отдаётся parse.
// arity > 0 точное число аргументов с кодом, arity < 0 минимальное.
func (h *Handlers) customerCommand(
	ctx context.Context,
	b *bot.Bot,
	update *models.Update,
	arity int,
	usage string,
	parse func(args []string) (bookingMutation, error),
) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	args := commandArgs(update.Message.Text)
	if (arity > 0 && len(args) != arity) || (arity < 0 && len(args) < -arity) {
		h.sendError(ctx, b, chatID, usage)
		return
	}

	mutate, err := parse(args[1:])
	if err != nil {
		h.sendError(ctx, b, chatID, usage)
		return
	}

	booking, err := h.bookingService.GetByManageToken(ctx, args[0])
	if err != nil {
		h.logger.Warn("Failed to load booking by token", zap.Error(err))
		h.sendError(ctx, b, chatID, errorText(err))
		return
	}

	updated, err := mutate(ctx, booking)
	switch {
	case errors.Is(err, errUsage):
		h.sendError(ctx, b, chatID, usage)
		return
	case errors.Is(err, errUnknownProduct):
		h.sendError(ctx, b, chatID, "❌ В бронировании нет такого продукта.")
		return
	case service.IsResync(err):
		h.logger.Warn("Booking changed without payment resync",
			zap.Int64("booking_id", booking.ID), zap.Error(err))
		h.sendMessage(ctx, b, chatID, errorText(err), view.PaymentKeyboard(booking.ManageToken, ""))
		return
	case err != nil:
		h.logger.Warn("Booking change rejected", zap.Int64("booking_id", booking.ID), zap.Error(err))
		h.sendError(ctx, b, chatID, errorText(err))
		return
	}

	h.logger.Info("Booking changed by customer", zap.Int64("booking_id", updated.ID))
	h.showBooking(ctx, b, chatID, updated)
}

// showBooking карточка бронирования с кнопками оплаты, пока она ожидается
func (h *Handlers) showBooking(ctx context.Context, b *bot.Bot, chatID int64, booking *model.Booking) {
	quote, err := h.bookingService.Quote(ctx, booking.ID)
	if err != nil {
		h.logger.Warn("Failed to price booking", zap.Int64("booking_id", booking.ID), zap.Error(err))
	}

	additional, err := h.bookingService.AdditionalBookings(ctx, booking.ID)
	if err != nil {
		h.logger.Warn("Failed to load additional bookings", zap.Int64("booking_id", booking.ID), zap.Error(err))
	}

	var markup models.ReplyMarkup
	if booking.PaymentStatus == model.PaymentStatusPending && !booking.IsCancelled() {
		markup = view.PaymentKeyboard(booking.ManageToken, booking.PaymentLink)
	}

	h.sendMessage(ctx, b, chatID, view.FormatBooking(booking, quote, additional), markup)
}
