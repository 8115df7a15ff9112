package model

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Slot место одного участника: тип (ценовой тариф), цена и значения дополнительных полей.
// В JSON значения полей лежат на одном уровне с type и price.
type Slot struct {
	Type   string
	Price  float64
	Values map[string]string
}

// Value возвращает значение дополнительного поля
func (s Slot) Value(name string) string {
	if s.Values == nil {
		return ""
	}
	return s.Values[name]
}

// Clone копирует слот вместе с map значений
func (s Slot) Clone() Slot {
	out := Slot{Type: s.Type, Price: s.Price}
	if s.Values != nil {
		out.Values = make(map[string]string, len(s.Values))
		for k, v := range s.Values {
			out.Values[k] = v
		}
	}
	return out
}

func (s Slot) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(s.Values)+2)
	for k, v := range s.Values {
		flat[k] = v
	}
	flat["type"] = s.Type
	flat["price"] = s.Price
	return json.Marshal(flat)
}

func (s *Slot) UnmarshalJSON(data []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	if flat == nil {
		return fmt.Errorf("slot must be an object")
	}

	*s = Slot{}
	if raw, ok := flat["type"]; ok {
		if err := json.Unmarshal(raw, &s.Type); err != nil {
			return fmt.Errorf("slot type: %w", err)
		}
	}
	if raw, ok := flat["price"]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &s.Price); err != nil {
			return fmt.Errorf("slot price: %w", err)
		}
	}

	keys := make([]string, 0, len(flat))
	for k := range flat {
		if k != "type" && k != "price" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		var str string
		if err := json.Unmarshal(flat[k], &str); err != nil {
			// Нестроковые значения (числа, bool) храним в исходном виде
			str = string(flat[k])
		}
		if s.Values == nil {
			s.Values = make(map[string]string, len(keys))
		}
		s.Values[k] = str
	}
	return nil
}

// SlotType ценовой тариф (например, Взрослый / Детский)
type SlotType struct {
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description,omitempty"`
}

// SlotField определение дополнительного поля, собираемого для каждого участника
type SlotField struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"` // text, number, select, ...
	Required    bool     `json:"required"`
	Label       string   `json:"label,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
	Options     []string `json:"options,omitempty"`
}

// BookedProduct дополнительный продукт в бронировании
type BookedProduct struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Image     string  `json:"image,omitempty"`
}

// Subtotal стоимость позиции
func (p BookedProduct) Subtotal() float64 {
	return float64(p.Quantity) * p.UnitPrice
}
