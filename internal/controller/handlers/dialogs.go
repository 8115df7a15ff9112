package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tour_booking/internal/controller/state"
	"github.com/Freeeeeet/tour_booking/internal/refund"
)

// HandleTextMessage обрабатывает текст вне команд: ввод своей суммы возврата
func (h *Handlers) HandleTextMessage(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || strings.HasPrefix(update.Message.Text, "/") {
		return
	}
	chatID := update.Message.Chat.ID

	d, ok := h.stateManager.Get(chatID)
	if !ok || d.State != state.StateRefundCustomAmount {
		return
	}

	amount, err := refund.ParseCustomAmount(update.Message.Text)
	if err != nil {
		h.sendError(ctx, b, chatID, "❌ Не удалось разобрать сумму. Пример: 25.50")
		return
	}

	quote := refund.NewQuote(refund.OptionCustom, d.TotalPaid, &amount)
	updated := h.stateManager.Update(chatID, d.BookingID, func(d *state.Dialog) {
		d.Quote = &quote
		d.State = state.StateRefundChoosing
	})
	if !updated {
		return
	}

	h.logger.Info("Custom refund amount entered",
		zap.Int64("booking_id", d.BookingID),
		zap.Float64("amount", amount),
		zap.Bool("confirmable", quote.CanConfirm))

	d, _ = h.stateManager.Get(chatID)
	h.renderRefundWindow(ctx, b, chatID, d)
}

// renderRefundWindow перерисовывает окно возврата в исходном сообщении
func (h *Handlers) renderRefundWindow(ctx context.Context, b *bot.Bot, chatID int64, d state.Dialog) {
	text, markup := refundWindow(d)

	if d.MessageID != 0 {
		_, err := b.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:      chatID,
			MessageID:   d.MessageID,
			Text:        text,
			ReplyMarkup: markup,
		})
		if err == nil {
			return
		}
		h.logger.Warn("Failed to edit refund window, sending new one",
			zap.Int64("booking_id", d.BookingID),
			zap.Error(err))
	}

	msg, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: markup,
	})
	if err != nil {
		h.logger.Error("Failed to send refund window", zap.Int64("booking_id", d.BookingID), zap.Error(err))
		return
	}
	h.stateManager.Update(chatID, d.BookingID, func(d *state.Dialog) {
		d.MessageID = msg.ID
	})
}
