package refund

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Freeeeeet/tour_booking/internal/pricing"
)

// Option вариант возврата
type Option string

const (
	OptionFull   Option = "100"
	OptionHalf   Option = "50"
	OptionForty  Option = "40"
	OptionCustom Option = "custom"
)

var (
	ErrUnknownOption = errors.New("unknown refund option")
	// ErrInvalidAmount сумма вне диапазона (0, оплачено]; подтверждение недоступно
	ErrInvalidAmount = errors.New("refund amount must be greater than zero and not exceed the amount paid")
)

// Options варианты в порядке показа
var Options = []Option{OptionFull, OptionHalf, OptionForty, OptionCustom}

var percents = map[Option]float64{
	OptionFull:  1.0,
	OptionHalf:  0.5,
	OptionForty: 0.4,
}

// ParseOption разбирает вариант возврата
func ParseOption(s string) (Option, error) {
	o := Option(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := percents[o]; ok || o == OptionCustom {
		return o, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOption, s)
}

// Amount сумма возврата. Для процентных вариантов custom игнорируется.
// Сумма вне (0, totalPaid] не обрезается, а возвращается ошибкой.
func Amount(option Option, totalPaid float64, custom *float64) (float64, error) {
	if option == OptionCustom {
		if custom == nil {
			return 0, ErrInvalidAmount
		}
		// границы проверяются до округления, иначе 200.004 при оплате 200 прошло бы
		if *custom <= 0 || *custom > totalPaid {
			return 0, ErrInvalidAmount
		}
		amount := pricing.RoundCents(*custom)
		if amount <= 0 {
			return 0, ErrInvalidAmount
		}
		return amount, nil
	}

	pct, ok := percents[option]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownOption, option)
	}
	raw := math.Round(totalPaid*pct*10000) / 10000
	return pricing.RoundCents(raw), nil
}

// Quote состояние окна возврата
type Quote struct {
	Option     Option
	TotalPaid  float64
	Amount     float64
	CanConfirm bool
	Err        error
}

// NewQuote считает сумму для выбранного варианта. Ошибка не возвращается,
// а сохраняется в Quote: окно показывает её и блокирует подтверждение.
func NewQuote(option Option, totalPaid float64, custom *float64) Quote {
	q := Quote{Option: option, TotalPaid: totalPaid}
	amount, err := Amount(option, totalPaid, custom)
	if err != nil {
		q.Err = err
		return q
	}
	q.Amount = amount
	q.CanConfirm = amount > 0
	return q
}

// ParseCustomAmount разбирает сумму, введённую пользователем ("12.50" или "12,50")
func ParseCustomAmount(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	s = strings.TrimPrefix(s, "$")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrInvalidAmount
	}
	return v, nil
}
