package controller

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tour_booking/internal/controller/view"
	"github.com/Freeeeeet/tour_booking/internal/model"
	"github.com/Freeeeeet/tour_booking/internal/service"
)

// Notifier отправляет уведомления в чат администратора
type Notifier struct {
	bot         *bot.Bot
	adminChatID int64
	logger      *zap.Logger
}

func NewNotifier(botInstance *bot.Bot, adminChatID int64, logger *zap.Logger) *Notifier {
	return &Notifier{
		bot:         botInstance,
		adminChatID: adminChatID,
		logger:      logger,
	}
}

// NotifyCancellation сообщает о результате отмены
func (n *Notifier) NotifyCancellation(ctx context.Context, outcome service.CancelOutcome) {
	n.send(ctx, FormatCancellation(outcome))
}

// NotifyCheckoutLink сообщает о новой ссылке на оплату
func (n *Notifier) NotifyCheckoutLink(ctx context.Context, b *model.Booking) {
	n.send(ctx, fmt.Sprintf("💳 Бронирование #%d: новая ссылка на оплату\n%s", b.ID, b.PaymentLink))
}

// ReportRefunding отчёт о бронированиях, ожидающих завершения возврата
func (n *Notifier) ReportRefunding(ctx context.Context, bookings []*model.Booking) {
	if len(bookings) == 0 {
		return
	}
	n.send(ctx, FormatRefundingReport(bookings))
}

func (n *Notifier) send(ctx context.Context, text string) {
	if n.adminChatID == 0 {
		n.logger.Debug("Admin chat not configured, notification skipped")
		return
	}

	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: n.adminChatID,
		Text:   text,
	})
	if err != nil {
		n.logger.Error("Failed to send admin notification", zap.Error(err))
	}
}

// FormatCancellation текст уведомления об отмене
func FormatCancellation(outcome service.CancelOutcome) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "❌ Бронирование #%d отменено\n", outcome.BookingID)
	if outcome.Refund != nil {
		fmt.Fprintf(&sb, "↩️ Запрошен возврат: %s\n", view.FormatPrice(*outcome.Refund))
	} else {
		sb.WriteString("Без возврата\n")
	}
	if outcome.Booking != nil {
		b := outcome.Booking
		fmt.Fprintf(&sb, "👤 %s\n📅 %s %s\n", b.CustomerName, b.Date, b.Time)
		fmt.Fprintf(&sb, "Статус оплаты: %s\n", view.GetPaymentStatusDisplay(b.PaymentStatus).Text)
	}
	if outcome.Message != "" {
		fmt.Fprintf(&sb, "💬 %s\n", outcome.Message)
	}

	return sb.String()
}

// FormatRefundingReport список бронирований в статусе возврата
func FormatRefundingReport(bookings []*model.Booking) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "⏳ Возвраты в обработке: %d\n\n", len(bookings))
	for _, b := range bookings {
		fmt.Fprintf(&sb, "#%d %s, %s %s, оплачено %s\n",
			b.ID, b.CustomerName, b.Date, b.Time, view.FormatPrice(b.AmountPaid))
	}

	return sb.String()
}
