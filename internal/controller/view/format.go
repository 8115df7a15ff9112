package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/tour_booking/internal/availability"
	"github.com/Freeeeeet/tour_booking/internal/model"
	"github.com/Freeeeeet/tour_booking/internal/pricing"
)

// FormatPrice форматирует сумму в долларах
func FormatPrice(amount float64) string {
	return fmt.Sprintf("$%.2f", pricing.RoundCents(amount))
}

// StatusDisplay emoji и текст статуса
type StatusDisplay struct {
	Emoji string
	Text  string
}

// GetPaymentStatusDisplay возвращает emoji и текст для статуса оплаты
func GetPaymentStatusDisplay(status model.PaymentStatus) StatusDisplay {
	displays := map[model.PaymentStatus]StatusDisplay{
		model.PaymentStatusPending:       {"⏳", "Ожидает оплаты"},
		model.PaymentStatusPaid:          {"✅", "Оплачено"},
		model.PaymentStatusRefunding:     {"🔄", "Возврат в процессе"},
		model.PaymentStatusRefunded:      {"↩️", "Возвращено"},
		model.PaymentStatusPartialRefund: {"↪️", "Возвращено частично"},
		model.PaymentStatusFailed:        {"🚫", "Оплата не прошла"},
		model.PaymentStatusCancelled:     {"❌", "Отменено"},
	}

	if display, ok := displays[status]; ok {
		return display
	}
	return StatusDisplay{"❓", "Неизвестно"}
}

// GetBookingStatusDisplay возвращает emoji и текст для статуса бронирования
func GetBookingStatusDisplay(status model.BookingStatus) StatusDisplay {
	displays := map[model.BookingStatus]StatusDisplay{
		model.BookingStatusPending:     {"⏳", "Ожидает подтверждения"},
		model.BookingStatusConfirmed:   {"✅", "Подтверждено"},
		model.BookingStatusRescheduled: {"📆", "Перенесено"},
		model.BookingStatusCancelled:   {"❌", "Отменено"},
	}

	if display, ok := displays[status]; ok {
		return display
	}
	return StatusDisplay{"❓", "Неизвестно"}
}

// FormatBooking карточка бронирования с составом, итогами и дополнительными бронированиями
func FormatBooking(b *model.Booking, quote pricing.Quote, additional []model.AdditionalBooking) string {
	var sb strings.Builder

	booking := GetBookingStatusDisplay(b.BookingStatus)
	paymentStatus := GetPaymentStatusDisplay(b.PaymentStatus)

	fmt.Fprintf(&sb, "%s Бронирование #%d\n\n", booking.Emoji, b.ID)
	fmt.Fprintf(&sb, "👤 %s, %s\n", b.CustomerName, b.CustomerEmail)
	fmt.Fprintf(&sb, "📅 %s %s\n", b.Date, b.Time)
	fmt.Fprintf(&sb, "📊 Статус: %s\n", booking.Text)
	fmt.Fprintf(&sb, "%s Оплата: %s\n", paymentStatus.Emoji, paymentStatus.Text)

	fmt.Fprintf(&sb, "\n👥 Места (%d):\n", b.Slots)
	for i, s := range b.SlotDetails {
		label := s.Type
		if label == "" {
			label = "Участник"
		}
		fmt.Fprintf(&sb, "  %d. %s", i+1, label)
		if name := s.Value("name"); name != "" {
			fmt.Fprintf(&sb, " (%s)", name)
		}
		sb.WriteString("\n")
	}

	if len(b.BookedProducts) > 0 {
		sb.WriteString("\n🛍 Продукты:\n")
		for _, p := range b.BookedProducts {
			fmt.Fprintf(&sb, "  • %s × %d = %s\n", p.Name, p.Quantity, FormatPrice(p.Subtotal()))
		}
	}

	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Места: %s\n", FormatPrice(quote.SlotTotal))
	if quote.ProductTotal > 0 {
		fmt.Fprintf(&sb, "Продукты: %s\n", FormatPrice(quote.ProductTotal))
	}
	if quote.Discount > 0 {
		fmt.Fprintf(&sb, "Скидка: -%s", FormatPrice(quote.Discount))
		if b.PromoCode != "" {
			fmt.Fprintf(&sb, " (%s)", b.PromoCode)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "💰 Итого: %s\n", FormatPrice(quote.Total))

	if len(additional) > 0 {
		sb.WriteString("\n➕ Дополнительные бронирования:\n")
		for _, ab := range additional {
			fmt.Fprintf(&sb, "  • %d мест, %s, %s\n",
				ab.Slots, FormatPrice(ab.AmountPaid), GetPaymentStatusDisplay(ab.PaymentStatus).Text)
			for _, w := range ab.Warnings {
				fmt.Fprintf(&sb, "    ⚠️ %s\n", w)
			}
		}
	}

	if b.HasPaymentSession() && b.PaymentStatus == model.PaymentStatusPending {
		fmt.Fprintf(&sb, "\n🔗 Оплата: %s\n", b.PaymentLink)
	}

	if len(b.Warnings) > 0 {
		sb.WriteString("\n⚠️ Часть данных повреждена и показана пустой:\n")
		for _, w := range b.Warnings {
			fmt.Fprintf(&sb, "  • %s\n", w)
		}
	}

	return sb.String()
}

// FormatCalendar подпись к картинке календаря
func FormatCalendar(tour *model.Tour, cal availability.Calendar) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "🗓 %s: %s %d\n", tour.Name, cal.Month, cal.Year)
	fmt.Fprintf(&sb, "👥 Мест на одно время: %d\n", tour.Capacity)

	if len(cal.FullyBooked) > 0 {
		fmt.Fprintf(&sb, "\n🔴 Мест нет: %s\n", strings.Join(cal.FullyBooked, ", "))
	}
	fmt.Fprintf(&sb, "⚫️ Недоступно дат: %d\n", len(cal.Unavailable))

	return sb.String()
}

// FormatRefundQuote текст окна возврата
func FormatRefundQuote(bookingID int64, totalPaid, amount float64, canConfirm bool, reason string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "↩️ Отмена бронирования #%d\n\n", bookingID)
	fmt.Fprintf(&sb, "Оплачено: %s\n", FormatPrice(totalPaid))

	if canConfirm {
		fmt.Fprintf(&sb, "К возврату: %s\n", FormatPrice(amount))
	} else if reason != "" {
		fmt.Fprintf(&sb, "⚠️ %s\n", reason)
	} else {
		sb.WriteString("Выберите сумму возврата\n")
	}

	return sb.String()
}

var weekdayOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

var weekdayNames = map[time.Weekday]string{
	time.Monday:    "Пн",
	time.Tuesday:   "Вт",
	time.Wednesday: "Ср",
	time.Thursday:  "Чт",
	time.Friday:    "Пт",
	time.Saturday:  "Сб",
	time.Sunday:    "Вс",
}

// FormatSchedule недельное расписание с номерами времён для правки
func FormatSchedule(schedule model.TourSchedule) string {
	var sb strings.Builder
	sb.WriteString("🗓 Расписание:\n")

	for i, day := range weekdayOrder {
		times := schedule.Times(day)
		if len(times) == 0 {
			fmt.Fprintf(&sb, "%d. %s: выходной\n", i+1, weekdayNames[day])
			continue
		}
		parts := make([]string, 0, len(times))
		for j, t := range times {
			parts = append(parts, fmt.Sprintf("%d) %s", j+1, t))
		}
		fmt.Fprintf(&sb, "%d. %s: %s\n", i+1, weekdayNames[day], strings.Join(parts, ", "))
	}

	return sb.String()
}
