package handlers

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tour_booking/internal/controller/state"
	"github.com/Freeeeeet/tour_booking/internal/controller/view"
	"github.com/Freeeeeet/tour_booking/internal/refund"
	"github.com/Freeeeeet/tour_booking/internal/service"
)

// HandleStart обрабатывает команду /start
func (h *Handlers) HandleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	name := ""
	if update.Message.From != nil {
		name = update.Message.From.FirstName
	}

	welcomeText := fmt.Sprintf(
		"👋 Привет, %s!\n\n"+
			"Это бот бронирования туров.\n\n"+
			"Доступные команды:\n"+
			"/booking <код> - Моё бронирование\n"+
			"/reschedule, /slots, /contact - Изменить бронирование\n"+
			"/calendar <тур> [ГГГГ-ММ] - Свободные даты\n"+
			"/help - Справка",
		name,
	)

	h.sendMessage(ctx, b, update.Message.Chat.ID, welcomeText, nil)
}

// HandleHelp обрабатывает команду /help
func (h *Handlers) HandleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	helpText := "📚 Справка по командам:\n\n" +
		"/booking <код> - Бронирование по коду управления\n" +
		"/calendar <тур> [ГГГГ-ММ] - Календарь свободных дат\n\n" +
		"Изменение бронирования (до оплаты):\n" +
		"/slots <код> <количество> - Число мест\n" +
		"/slottype <код> <номер места> <тариф> - Тариф места\n" +
		"/product <код> <id> <количество> - Количество продукта, 0 убирает\n\n" +
		"И после оплаты:\n" +
		"/reschedule <код> <ГГГГ-ММ-ДД> <ЧЧ:ММ> - Перенести\n" +
		"/contact <код> <email> <телефон или -> <имя> - Контакты\n\n" +
		"Для администратора:\n" +
		"/cancel <id> - Отменить бронирование\n" +
		"/resync <id> - Обновить ссылку на оплату\n" +
		"/addtime <тур> <день 1-7> <ЧЧ:ММ> - Добавить время\n" +
		"/edittime <тур> <день 1-7> <номер> <ЧЧ:ММ> - Изменить время\n" +
		"/removetime <тур> <день 1-7> <номер> - Удалить время\n" +
		"/disabledate <тур> <ГГГГ-ММ-ДД> - Закрыть дату\n" +
		"/enabledate <тур> <ГГГГ-ММ-ДД> - Открыть дату"

	h.sendMessage(ctx, b, update.Message.Chat.ID, helpText, nil)
}

// HandleBooking показывает бронирование по коду управления
func (h *Handlers) HandleBooking(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	args := commandArgs(update.Message.Text)
	if len(args) != 1 {
		h.sendError(ctx, b, chatID, "Использование: /booking <код бронирования>")
		return
	}

	booking, err := h.bookingService.GetByManageToken(ctx, args[0])
	if err != nil {
		h.logger.Warn("Failed to load booking by token", zap.Error(err))
		h.sendError(ctx, b, chatID, errorText(err))
		return
	}

	h.showBooking(ctx, b, chatID, booking)
}

// HandleCalendar отправляет картинку месяца с доступностью тура
func (h *Handlers) HandleCalendar(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	args := commandArgs(update.Message.Text)
	if len(args) < 1 || len(args) > 2 {
		h.sendError(ctx, b, chatID, "Использование: /calendar <id тура> [ГГГГ-ММ]")
		return
	}

	tourID, err := parseID(args[0])
	if err != nil {
		h.sendError(ctx, b, chatID, "❌ Неверный ID тура.")
		return
	}

	monthArg := ""
	if len(args) == 2 {
		monthArg = args[1]
	}
	now := time.Now()
	year, month, err := parseMonth(monthArg, now)
	if err != nil {
		h.sendError(ctx, b, chatID, "❌ Месяц указывается в формате ГГГГ-ММ, например 2026-11.")
		return
	}

	tour, cal, err := h.scheduleService.Month(ctx, tourID, year, month)
	if err != nil {
		h.logger.Error("Failed to build calendar",
			zap.Int64("tour_id", tourID),
			zap.Int("year", year),
			zap.Int("month", int(month)),
			zap.Error(err))
		h.sendError(ctx, b, chatID, errorText(err))
		return
	}

	image, err := view.GenerateMonthImage(cal, tour.Capacity, now)
	if err != nil {
		h.logger.Error("Failed to render calendar image", zap.Int64("tour_id", tourID), zap.Error(err))
		h.sendMessage(ctx, b, chatID, view.FormatCalendar(tour, cal), nil)
		return
	}

	_, err = b.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID: chatID,
		Photo: &models.InputFileUpload{
			Filename: fmt.Sprintf("calendar_%d_%d_%02d.png", tourID, year, month),
			Data:     bytes.NewReader(image),
		},
		Caption: view.FormatCalendar(tour, cal),
	})
	if err != nil {
		h.logger.Error("Failed to send calendar image", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// HandleCancelBooking открывает окно отмены бронирования
func (h *Handlers) HandleCancelBooking(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !h.requireAdmin(ctx, b, update) {
		return
	}
	chatID := update.Message.Chat.ID

	args := commandArgs(update.Message.Text)
	if len(args) != 1 {
		h.sendError(ctx, b, chatID, "Использование: /cancel <id бронирования>")
		return
	}
	bookingID, err := parseID(args[0])
	if err != nil {
		h.sendError(ctx, b, chatID, "❌ Неверный ID бронирования.")
		return
	}

	booking, plan, err := h.cancellationService.Prepare(ctx, bookingID)
	if err != nil {
		h.sendError(ctx, b, chatID, errorText(err))
		return
	}

	text := fmt.Sprintf("❓ Отменить бронирование #%d без возврата?", booking.ID)
	var markup models.ReplyMarkup = view.DirectCancelKeyboard(booking.ID)
	if plan == service.PlanRefundRequired {
		text = view.FormatRefundQuote(booking.ID, booking.AmountPaid, 0, false, "")
		markup = view.RefundKeyboard(booking.ID, "", false)
	}

	msg, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: markup,
	})
	if err != nil {
		h.logger.Error("Failed to send cancel window", zap.Int64("booking_id", booking.ID), zap.Error(err))
		return
	}

	h.stateManager.Open(chatID, booking.ID, booking.AmountPaid, msg.ID)

	h.logger.Info("Cancel window opened",
		zap.Int64("booking_id", booking.ID),
		zap.String("plan", string(plan)))
}

// HandleResync вручную пересоздаёт ссылку на оплату
func (h *Handlers) HandleResync(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !h.requireAdmin(ctx, b, update) {
		return
	}
	chatID := update.Message.Chat.ID

	args := commandArgs(update.Message.Text)
	if len(args) != 1 {
		h.sendError(ctx, b, chatID, "Использование: /resync <id бронирования>")
		return
	}
	bookingID, err := parseID(args[0])
	if err != nil {
		h.sendError(ctx, b, chatID, "❌ Неверный ID бронирования.")
		return
	}

	h.resync(ctx, b, chatID, bookingID)
}

func (h *Handlers) resync(ctx context.Context, b *bot.Bot, chatID, bookingID int64) {
	booking, err := h.bookingService.ResyncPayment(ctx, bookingID)
	if err != nil {
		h.logger.Warn("Manual payment resync failed", zap.Int64("booking_id", bookingID), zap.Error(err))
		h.sendError(ctx, b, chatID, errorText(err))
		return
	}

	h.sendMessage(ctx, b, chatID,
		fmt.Sprintf("✅ Ссылка на оплату бронирования #%d обновлена.", booking.ID),
		view.PaymentKeyboard(booking.ManageToken, booking.PaymentLink))

	if chatID != h.adminChatID {
		h.notifier.NotifyCheckoutLink(ctx, booking)
	}
}

// refundWindow текст и клавиатура окна возврата для текущей котировки
func refundWindow(d state.Dialog) (string, *models.InlineKeyboardMarkup) {
	if d.Quote == nil {
		reason := ""
		if d.State == state.StateRefundCustomAmount {
			reason = "Введите сумму возврата сообщением, например 25.50"
		}
		return view.FormatRefundQuote(d.BookingID, d.TotalPaid, 0, false, reason),
			view.RefundKeyboard(d.BookingID, refund.OptionCustom, false)
	}

	q := d.Quote
	reason := ""
	if q.Err != nil {
		reason = fmt.Sprintf("Сумма должна быть больше нуля и не больше %s", view.FormatPrice(d.TotalPaid))
	}
	return view.FormatRefundQuote(d.BookingID, d.TotalPaid, q.Amount, q.CanConfirm, reason),
		view.RefundKeyboard(d.BookingID, q.Option, q.CanConfirm)
}
