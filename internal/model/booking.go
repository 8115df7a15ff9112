package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending       PaymentStatus = "pending"        // Ожидает оплаты
	PaymentStatusPaid          PaymentStatus = "paid"           // Оплачено
	PaymentStatusRefunding     PaymentStatus = "refunding"      // Возврат в процессе
	PaymentStatusRefunded      PaymentStatus = "refunded"       // Возвращено полностью
	PaymentStatusPartialRefund PaymentStatus = "partial_refund" // Возвращено частично
	PaymentStatusFailed        PaymentStatus = "failed"         // Оплата не прошла
	PaymentStatusCancelled     PaymentStatus = "cancelled"      // Отменено без оплаты
)

type BookingStatus string

const (
	BookingStatusPending     BookingStatus = "pending"
	BookingStatusConfirmed   BookingStatus = "confirmed"
	BookingStatusRescheduled BookingStatus = "rescheduled"
	BookingStatusCancelled   BookingStatus = "cancelled"
)

// Booking бронирование тура. Вложенные коллекции хранятся в БД как закодированный текст
// и раскодируются при чтении (см. internal/codec).
type Booking struct {
	ID            int64  `json:"id"`
	TourID        int64  `json:"tour_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
	Date          string `json:"date"` // YYYY-MM-DD
	Time          string `json:"time"` // HH:MM

	Slots            int             `json:"slots"`
	SlotDetails      []Slot          `json:"slot_details"`
	CustomSlotTypes  []SlotType      `json:"custom_slot_types"`
	CustomSlotFields []SlotField     `json:"custom_slot_fields"`
	BookedProducts   []BookedProduct `json:"booked_products"`

	PaymentStatus  PaymentStatus `json:"payment_status"`
	BookingStatus  BookingStatus `json:"booking_status"`
	AmountPaid     float64       `json:"amount_paid"`
	DiscountAmount float64       `json:"discount_amount"`
	PromoCode      string        `json:"promo_code"`
	PaymentLink    string        `json:"payment_link"` // ссылка на текущую checkout-сессию
	ChargeID       string        `json:"charge_id"`    // внешний идентификатор платежа
	ManageToken    string        `json:"manage_token"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Предупреждения, собранные при чтении повреждённых вложенных документов (не из БД)
	Warnings []string `json:"-"`
}

// PersonalInfo контактные данные клиента
type PersonalInfo struct {
	Name  string `json:"customer_name"`
	Email string `json:"customer_email"`
	Phone string `json:"customer_phone"`
}

// HasPaymentSession проверяет, есть ли у бронирования живая checkout-сессия
func (b *Booking) HasPaymentSession() bool {
	return b.PaymentLink != ""
}

// CanEditSlots слоты можно менять только до оплаты
func (b *Booking) CanEditSlots() bool {
	return b.PaymentStatus == PaymentStatusPending
}

// CanEditProducts продукты можно менять только до оплаты
func (b *Booking) CanEditProducts() bool {
	return b.PaymentStatus == PaymentStatusPending
}

// CanEditFields значения дополнительных полей можно менять только до оплаты
func (b *Booking) CanEditFields() bool {
	return b.PaymentStatus == PaymentStatusPending
}

// CanReschedule перенос запрещён, пока идёт или завершён возврат
func (b *Booking) CanReschedule() bool {
	switch b.PaymentStatus {
	case PaymentStatusRefunding, PaymentStatusRefunded, PaymentStatusPartialRefund:
		return false
	default:
		return true
	}
}

// CanCancelWithRefund отмена с возвратом доступна после оплаты
func (b *Booking) CanCancelWithRefund() bool {
	return b.PaymentStatus == PaymentStatusPaid
}

// IsCancelled проверяет, отменено ли бронирование
func (b *Booking) IsCancelled() bool {
	return b.BookingStatus == BookingStatusCancelled
}

// AdditionalBooking дополнительное бронирование, привязанное к основному через manage token
type AdditionalBooking struct {
	ID             string          `json:"id"`
	BookingID      int64           `json:"booking_id"`
	ManageToken    string          `json:"manage_token"`
	Slots          int             `json:"slots"`
	SlotDetails    []Slot          `json:"slot_details"`
	BookedProducts []BookedProduct `json:"booked_products"`
	AmountPaid     float64         `json:"amount_paid"`
	PaymentStatus  PaymentStatus   `json:"payment_status"`
	CreatedAt      time.Time       `json:"created_at"`

	// Warnings повреждённые документы, показанные пустыми
	Warnings []string `json:"-"`
}
