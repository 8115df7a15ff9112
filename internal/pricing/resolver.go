// Package pricing считает цену и проверяет слоты бронирования относительно
// каталога тарифов. Все функции чистые и не меняют входные данные.
package pricing

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/samber/lo"

	"github.com/Freeeeeet/tour_booking/internal/model"
)

// ErrInvalidTier тип слота не найден в непустом каталоге
var ErrInvalidTier = errors.New("invalid slot tier")

const (
	MsgTypeRequired  = "type required"
	MsgInvalidType   = "invalid type"
	MsgFieldRequired = "required"
)

// Resolver каталог тарифов, определения полей и базовая цена тура
type Resolver struct {
	Catalog  []model.SlotType
	Fields   []model.SlotField
	FlatRate float64
}

// NewResolver собирает резолвер из бронирования и базовой цены тура
func NewResolver(b *model.Booking, flatRate float64) Resolver {
	return Resolver{
		Catalog:  b.CustomSlotTypes,
		Fields:   b.CustomSlotFields,
		FlatRate: flatRate,
	}
}

// HasCatalog есть ли у бронирования тарифы
func (r Resolver) HasCatalog() bool {
	return len(r.Catalog) > 0
}

// Tier ищет тариф по имени
func (r Resolver) Tier(name string) (model.SlotType, bool) {
	for _, t := range r.Catalog {
		if t.Name == name {
			return t, true
		}
	}
	return model.SlotType{}, false
}

// DefaultSlot слот, которым дополняется список при увеличении количества
func (r Resolver) DefaultSlot() model.Slot {
	if r.HasCatalog() {
		first := r.Catalog[0]
		return model.Slot{Type: first.Name, Price: first.Price}
	}
	return model.Slot{}
}

// Resize приводит список слотов к нужной длине: дополняет слотами по умолчанию
// или обрезает с конца. Сохранённые слоты и их порядок не меняются.
func (r Resolver) Resize(slots []model.Slot, n int) []model.Slot {
	if n < 0 {
		n = 0
	}

	out := make([]model.Slot, 0, n)
	for i := 0; i < n && i < len(slots); i++ {
		out = append(out, slots[i].Clone())
	}
	for len(out) < n {
		out = append(out, r.DefaultSlot())
	}
	return out
}

// Price цена слота
func (r Resolver) Price(slot model.Slot) (float64, error) {
	if !r.HasCatalog() {
		return r.FlatRate, nil
	}
	tier, ok := r.Tier(slot.Type)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTier, slot.Type)
	}
	return tier.Price, nil
}

// Validate проверяет один слот и возвращает ошибки по полям
func (r Resolver) Validate(slot model.Slot) []model.FieldError {
	var errs []model.FieldError

	if r.HasCatalog() {
		switch {
		case strings.TrimSpace(slot.Type) == "":
			errs = append(errs, model.FieldError{Field: "type", Msg: MsgTypeRequired})
		default:
			if _, ok := r.Tier(slot.Type); !ok {
				errs = append(errs, model.FieldError{Field: "type", Msg: MsgInvalidType})
			}
		}
	}

	for _, f := range r.Fields {
		if !f.Required {
			continue
		}
		if strings.TrimSpace(slot.Value(f.Name)) == "" {
			errs = append(errs, model.FieldError{Field: f.Name, Msg: MsgFieldRequired})
		}
	}

	return errs
}

// IsComplete слот прошёл все проверки
func (r Resolver) IsComplete(slot model.Slot) bool {
	return len(r.Validate(slot)) == 0
}

// ValidateAll проверяет все слоты; имена полей получают префикс slot_details[i]
func (r Resolver) ValidateAll(slots []model.Slot) []model.FieldError {
	var errs []model.FieldError
	for i, slot := range slots {
		for _, fe := range r.Validate(slot) {
			errs = append(errs, model.FieldError{
				Field: fmt.Sprintf("slot_details[%d].%s", i, fe.Field),
				Msg:   fe.Msg,
			})
		}
	}
	return errs
}

// Priced возвращает копию слотов с ценами из каталога (или базовой ценой)
func (r Resolver) Priced(slots []model.Slot) ([]model.Slot, error) {
	out := make([]model.Slot, len(slots))
	for i, s := range slots {
		price, err := r.Price(s)
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", i, err)
		}
		out[i] = s.Clone()
		out[i].Price = price
	}
	return out, nil
}

// Quote итоговая стоимость бронирования
type Quote struct {
	SlotTotal    float64
	ProductTotal float64
	Discount     float64
	Total        float64
}

// Quote считает стоимость слотов, продуктов и итог к оплате с учётом скидки
func (r Resolver) Quote(slots []model.Slot, products []model.BookedProduct, discount float64) (Quote, error) {
	var q Quote
	for i, s := range slots {
		price, err := r.Price(s)
		if err != nil {
			return Quote{}, fmt.Errorf("slot %d: %w", i, err)
		}
		q.SlotTotal += price
	}
	q.ProductTotal = ProductTotal(products)
	q.SlotTotal = RoundCents(q.SlotTotal)
	q.Discount = RoundCents(discount)
	q.Total = RoundCents(q.SlotTotal + q.ProductTotal - q.Discount)
	if q.Total < 0 {
		q.Total = 0
	}
	return q, nil
}

// ProductTotal сумма по продуктам
func ProductTotal(products []model.BookedProduct) float64 {
	return RoundCents(lo.SumBy(products, func(p model.BookedProduct) float64 {
		return p.Subtotal()
	}))
}

// ValidateProducts проверяет список продуктов перед отправкой
func ValidateProducts(products []model.BookedProduct) []model.FieldError {
	var errs []model.FieldError
	seen := make(map[string]struct{}, len(products))
	for i, p := range products {
		prefix := fmt.Sprintf("booked_products[%d]", i)
		if strings.TrimSpace(p.ID) == "" {
			errs = append(errs, model.FieldError{Field: prefix + ".id", Msg: MsgFieldRequired})
		} else if _, dup := seen[p.ID]; dup {
			errs = append(errs, model.FieldError{Field: prefix + ".id", Msg: "duplicate product"})
		}
		seen[p.ID] = struct{}{}
		if p.Quantity <= 0 {
			errs = append(errs, model.FieldError{Field: prefix + ".quantity", Msg: "must be positive"})
		}
		if p.UnitPrice < 0 {
			errs = append(errs, model.FieldError{Field: prefix + ".unit_price", Msg: "must not be negative"})
		}
	}
	return errs
}

// RoundCents округляет сумму до центов
func RoundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// ToMinorUnits переводит сумму в минимальные единицы валюты (центы),
// округляя половину от нуля
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
