package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tour_booking/internal/controller/state"
	"github.com/Freeeeeet/tour_booking/internal/controller/view"
	"github.com/Freeeeeet/tour_booking/internal/refund"
	"github.com/Freeeeeet/tour_booking/internal/service"
)

// HandleCallbackQuery обрабатывает нажатия на inline кнопки
func (h *Handlers) HandleCallbackQuery(ctx context.Context, b *bot.Bot, update *models.Update) {
	callback := update.CallbackQuery
	if callback == nil {
		return
	}

	cb, err := view.ParseCallback(callback.Data)
	if err != nil {
		h.logger.Warn("Unknown callback", zap.String("data", callback.Data))
		h.answer(ctx, b, callback.ID, "Неизвестная команда")
		return
	}

	msg := callback.Message.Message
	if msg == nil {
		h.answer(ctx, b, callback.ID, "Сообщение устарело")
		return
	}
	chatID := msg.Chat.ID

	// кнопка несёт код управления, а не ID: доступ к бронированию даёт только код
	if cb.Prefix == view.Resync {
		booking, err := h.bookingService.GetByManageToken(ctx, cb.Token)
		if err != nil {
			h.logger.Warn("Resync by unknown token", zap.Int64("chat_id", chatID), zap.Error(err))
			h.answer(ctx, b, callback.ID, "Бронирование не найдено")
			return
		}
		h.answer(ctx, b, callback.ID, "Обновляем ссылку...")
		h.resync(ctx, b, chatID, booking.ID)
		return
	}

	if chatID != h.adminChatID {
		h.answer(ctx, b, callback.ID, "Доступно только администратору")
		return
	}

	switch cb.Prefix {
	case view.RefundOption:
		h.handleRefundOption(ctx, b, callback.ID, chatID, msg.ID, cb)
	case view.RefundConfirm:
		h.handleRefundConfirm(ctx, b, callback.ID, chatID, msg.ID, cb.BookingID)
	case view.RefundAbort:
		h.stateManager.Clear(chatID)
		h.answer(ctx, b, callback.ID, "")
		h.editText(ctx, b, chatID, msg.ID, fmt.Sprintf("Отмена бронирования #%d закрыта.", cb.BookingID))
	}
}

func (h *Handlers) handleRefundOption(ctx context.Context, b *bot.Bot, callbackID string, chatID int64, messageID int, cb view.Callback) {
	d, ok := h.stateManager.Get(chatID)
	if !ok || d.BookingID != cb.BookingID {
		h.answer(ctx, b, callbackID, "Окно устарело, откройте /cancel заново")
		return
	}

	h.stateManager.Update(chatID, cb.BookingID, func(d *state.Dialog) {
		d.MessageID = messageID
		if cb.Option == refund.OptionCustom {
			d.State = state.StateRefundCustomAmount
			d.Quote = nil
			return
		}
		q := refund.NewQuote(cb.Option, d.TotalPaid, nil)
		d.State = state.StateRefundChoosing
		d.Quote = &q
	})

	text := ""
	if cb.Option == refund.OptionCustom {
		text = "Введите сумму сообщением"
	}
	h.answer(ctx, b, callbackID, text)

	d, _ = h.stateManager.Get(chatID)
	h.renderRefundWindow(ctx, b, chatID, d)
}

func (h *Handlers) handleRefundConfirm(ctx context.Context, b *bot.Bot, callbackID string, chatID int64, messageID int, bookingID int64) {
	var quote *refund.Quote
	if d, ok := h.stateManager.Get(chatID); ok && d.BookingID == bookingID {
		quote = d.Quote
	}

	h.answer(ctx, b, callbackID, "Отменяем...")

	outcome, err := h.cancellationService.Cancel(ctx, bookingID, quote)
	if err != nil {
		h.logger.Warn("Cancellation failed", zap.Int64("booking_id", bookingID), zap.Error(err))
		h.sendError(ctx, b, chatID, errorText(err))
		return
	}

	h.stateManager.Clear(chatID)

	text := fmt.Sprintf("✅ Бронирование #%d отменено.", bookingID)
	if outcome.Plan == service.PlanRefundRequired && outcome.Refund != nil {
		text = fmt.Sprintf("✅ Бронирование #%d отменено.\nВозврат %s запрошен.",
			bookingID, view.FormatPrice(*outcome.Refund))
	}
	h.editText(ctx, b, chatID, messageID, text)
}

func (h *Handlers) answer(ctx context.Context, b *bot.Bot, callbackID, text string) {
	_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
	if err != nil {
		h.logger.Warn("Failed to answer callback", zap.Error(err))
	}
}

func (h *Handlers) editText(ctx context.Context, b *bot.Bot, chatID int64, messageID int, text string) {
	_, err := b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
	})
	if err != nil {
		h.logger.Warn("Failed to edit message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
