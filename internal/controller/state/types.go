package state

import "github.com/Freeeeeet/tour_booking/internal/refund"

// DialogState текущий шаг диалога администратора
type DialogState string

const (
	StateNone DialogState = "" // Нет активного диалога

	StateRefundChoosing     DialogState = "refund_choosing"      // окно возврата открыто
	StateRefundCustomAmount DialogState = "refund_custom_amount" // ждём ввода своей суммы
)

// Dialog данные открытого окна возврата
type Dialog struct {
	State     DialogState
	BookingID int64
	TotalPaid float64
	Quote     *refund.Quote
	MessageID int // сообщение с окном, которое редактируется
}
