package payment

import (
	"fmt"

	"github.com/Freeeeeet/tour_booking/internal/model"
	"github.com/Freeeeeet/tour_booking/internal/pricing"
)

// Snapshot платёжный слепок бронирования, из которого шлюз строит checkout-сессию.
// Суммы в минимальных единицах валюты (центах).
type Snapshot struct {
	BookingID   int64  `json:"booking_id"`
	ManageToken string `json:"manage_token"`
	Currency    string `json:"currency"`

	Customer Customer `json:"customer"`

	Slots      []SlotLine        `json:"slots"`
	SlotCount  int               `json:"slot_count"`
	SlotTypes  []model.SlotType  `json:"custom_slot_types"`
	SlotFields []model.SlotField `json:"custom_slot_fields"`
	Products   []ProductLine     `json:"products"`
	Discount   int64             `json:"discount_amount"`
	PromoCode  string            `json:"promo_code,omitempty"`
	Total      int64             `json:"total_amount"`
	Tour       TourInfo          `json:"tour"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// SlotLine одно место с ценой
type SlotLine struct {
	Type       string            `json:"type"`
	UnitAmount int64             `json:"unit_amount"`
	Values     map[string]string `json:"values,omitempty"`
}

// ProductLine позиция дополнительного продукта
type ProductLine struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	UnitAmount int64  `json:"unit_amount"`
	Image      string `json:"image,omitempty"`
}

type TourInfo struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Date        string `json:"date"`
	Time        string `json:"time"`
}

// BuildSnapshot собирает слепок из актуального бронирования и тура.
// Ошибка возвращается, если слот ссылается на несуществующий тариф.
func BuildSnapshot(b *model.Booking, tour *model.Tour, currency string) (Snapshot, error) {
	resolver := pricing.NewResolver(b, tour.Price)

	slots := make([]SlotLine, 0, len(b.SlotDetails))
	for i, s := range b.SlotDetails {
		price, err := resolver.Price(s)
		if err != nil {
			return Snapshot{}, fmt.Errorf("slot %d: %w", i, err)
		}
		slots = append(slots, SlotLine{
			Type:       s.Type,
			UnitAmount: pricing.ToMinorUnits(price),
			Values:     s.Clone().Values,
		})
	}

	products := make([]ProductLine, 0, len(b.BookedProducts))
	for _, p := range b.BookedProducts {
		products = append(products, ProductLine{
			ID:         p.ID,
			Name:       p.Name,
			Quantity:   p.Quantity,
			UnitAmount: pricing.ToMinorUnits(p.UnitPrice),
			Image:      p.Image,
		})
	}

	quote, err := resolver.Quote(b.SlotDetails, b.BookedProducts, b.DiscountAmount)
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		BookingID:   b.ID,
		ManageToken: b.ManageToken,
		Currency:    currency,
		Customer: Customer{
			Name:  b.CustomerName,
			Email: b.CustomerEmail,
			Phone: b.CustomerPhone,
		},
		Slots:      slots,
		SlotCount:  b.Slots,
		SlotTypes:  b.CustomSlotTypes,
		SlotFields: b.CustomSlotFields,
		Products:   products,
		Discount:   pricing.ToMinorUnits(b.DiscountAmount),
		PromoCode:  b.PromoCode,
		Total:      pricing.ToMinorUnits(quote.Total),
		Tour: TourInfo{
			ID:          tour.ID,
			Name:        tour.Name,
			Description: tour.Description,
			Location:    tour.Location,
			ImageURL:    tour.ImageURL,
			Date:        b.Date,
			Time:        b.Time,
		},
		Metadata: map[string]string{
			"booking_id": fmt.Sprint(b.ID),
			"tour_id":    fmt.Sprint(tour.ID),
		},
	}, nil
}
