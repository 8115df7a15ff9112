package view

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/Freeeeeet/tour_booking/internal/refund"
)

// Форматы callback data
const (
	RefundOption  = "refund_opt:"   // refund_opt:123:40
	RefundConfirm = "refund_ok:"    // refund_ok:123
	RefundAbort   = "refund_abort:" // refund_abort:123
	Resync        = "resync:"       // resync:<код управления>
)

var ErrBadCallback = errors.New("invalid callback data")

// Callback разобранные callback data
type Callback struct {
	Prefix    string
	BookingID int64
	Option    refund.Option
	Token     string
}

// лимит callback data в Telegram 64 байта
const maxTokenLen = 64 - len(Resync)

// ParseCallback разбирает callback data кнопок бронирования
func ParseCallback(data string) (Callback, error) {
	for _, prefix := range []string{RefundOption, RefundConfirm, RefundAbort, Resync} {
		rest, ok := strings.CutPrefix(data, prefix)
		if !ok {
			continue
		}

		cb := Callback{Prefix: prefix}
		if prefix == Resync {
			if !validToken(rest) {
				return Callback{}, ErrBadCallback
			}
			cb.Token = rest
			return cb, nil
		}

		idPart := rest
		if prefix == RefundOption {
			var optPart string
			idPart, optPart, ok = strings.Cut(rest, ":")
			if !ok {
				return Callback{}, ErrBadCallback
			}
			opt, err := refund.ParseOption(optPart)
			if err != nil {
				return Callback{}, fmt.Errorf("%w: %v", ErrBadCallback, err)
			}
			cb.Option = opt
		}

		id, err := strconv.ParseInt(idPart, 10, 64)
		if err != nil || id <= 0 {
			return Callback{}, ErrBadCallback
		}
		cb.BookingID = id
		return cb, nil
	}

	return Callback{}, ErrBadCallback
}

func validToken(s string) bool {
	if s == "" || len(s) > maxTokenLen {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// Builder упрощает создание inline клавиатур
type Builder struct {
	rows [][]models.InlineKeyboardButton
}

// NewBuilder создаёт новый builder клавиатуры
func NewBuilder() *Builder {
	return &Builder{}
}

// Row добавляет ряд кнопок
func (b *Builder) Row(buttons ...models.InlineKeyboardButton) *Builder {
	if len(buttons) > 0 {
		b.rows = append(b.rows, buttons)
	}
	return b
}

// Build создаёт клавиатуру
func (b *Builder) Build() *models.InlineKeyboardMarkup {
	rows := b.rows
	if rows == nil {
		rows = [][]models.InlineKeyboardButton{}
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// Button создаёт кнопку
func Button(text, callbackData string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{Text: text, CallbackData: callbackData}
}

// URLButton создаёт кнопку со ссылкой
func URLButton(text, url string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{Text: text, URL: url}
}

var optionLabels = map[refund.Option]string{
	refund.OptionFull:   "100%",
	refund.OptionHalf:   "50%",
	refund.OptionForty:  "40%",
	refund.OptionCustom: "Своя сумма",
}

// RefundKeyboard варианты возврата; выбранный отмечен, подтверждение только для корректной суммы
func RefundKeyboard(bookingID int64, selected refund.Option, canConfirm bool) *models.InlineKeyboardMarkup {
	kb := NewBuilder()

	var options []models.InlineKeyboardButton
	for _, opt := range refund.Options {
		label := optionLabels[opt]
		if opt == selected {
			label = "• " + label
		}
		options = append(options, Button(label, fmt.Sprintf("%s%d:%s", RefundOption, bookingID, opt)))
	}
	kb.Row(options...)

	if canConfirm {
		kb.Row(Button("✅ Подтвердить возврат", fmt.Sprintf("%s%d", RefundConfirm, bookingID)))
	}
	kb.Row(Button("✖️ Закрыть", fmt.Sprintf("%s%d", RefundAbort, bookingID)))

	return kb.Build()
}

// DirectCancelKeyboard подтверждение отмены без возврата
func DirectCancelKeyboard(bookingID int64) *models.InlineKeyboardMarkup {
	return NewBuilder().
		Row(
			Button("✅ Отменить", fmt.Sprintf("%s%d", RefundConfirm, bookingID)),
			Button("✖️ Закрыть", fmt.Sprintf("%s%d", RefundAbort, bookingID)),
		).
		Build()
}

// PaymentKeyboard ссылка на оплату и повтор синхронизации
func PaymentKeyboard(manageToken, checkoutURL string) *models.InlineKeyboardMarkup {
	kb := NewBuilder()
	if checkoutURL != "" {
		kb.Row(URLButton("💳 Оплатить", checkoutURL))
	}
	if manageToken != "" {
		kb.Row(Button("🔄 Обновить ссылку", Resync+manageToken))
	}
	return kb.Build()
}
