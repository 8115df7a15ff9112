// Package codec кодирует вложенные документы бронирования и тура, которые хранятся
// в БД текстом: тарифы, определения полей, слоты, продукты и недельное расписание.
//
// Формат записи: {"v":1,"items":[...]}. При чтении принимаются и старые записи в виде
// голого массива. Любая ошибка разбора или нарушение схемы даёт пустую коллекцию и
// Warning, чтобы экран не падал из-за одной повреждённой записи.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Freeeeeet/tour_booking/internal/model"
)

// Version текущая версия формата
const Version = 1

// Типы документов
const (
	KindSlotTypes  = "custom_slot_types"
	KindSlotFields = "custom_slot_fields"
	KindSlots      = "slot_details"
	KindProducts   = "booked_products"
	KindSchedule   = "schedule"
	KindDates      = "disabled_dates"
)

var timeOfDay = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Warning описывает документ, который не удалось прочитать
type Warning struct {
	Kind   string
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Kind, w.Reason)
}

type envelope struct {
	V     int             `json:"v"`
	Items json.RawMessage `json:"items"`
}

func encode(items any) (string, error) {
	raw, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(envelope{V: Version, Items: raw})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// unwrap достаёт полезную нагрузку из конверта или возвращает текст как есть (старый формат)
func unwrap(text string) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace([]byte(text))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed, nil
	}

	var env envelope
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.V != Version {
		return nil, fmt.Errorf("unsupported version %d", env.V)
	}
	if len(env.Items) == 0 {
		return json.RawMessage("[]"), nil
	}
	return env.Items, nil
}

func decodeList[T any](kind, text string, check func(int, T) error) ([]T, *Warning) {
	if strings.TrimSpace(text) == "" {
		return []T{}, nil
	}

	payload, err := unwrap(text)
	if err != nil {
		return []T{}, &Warning{Kind: kind, Reason: err.Error()}
	}
	if string(payload) == "null" {
		return []T{}, nil
	}

	var items []T
	if err := json.Unmarshal(payload, &items); err != nil {
		return []T{}, &Warning{Kind: kind, Reason: err.Error()}
	}
	for i, item := range items {
		if err := check(i, item); err != nil {
			return []T{}, &Warning{Kind: kind, Reason: err.Error()}
		}
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// EncodeSlots кодирует слоты
func EncodeSlots(slots []model.Slot) (string, error) {
	if slots == nil {
		slots = []model.Slot{}
	}
	return encode(slots)
}

// DecodeSlots раскодирует слоты
func DecodeSlots(text string) ([]model.Slot, *Warning) {
	return decodeList(KindSlots, text, func(i int, s model.Slot) error {
		if s.Price < 0 {
			return fmt.Errorf("item %d: negative price", i)
		}
		return nil
	})
}

// EncodeSlotTypes кодирует каталог тарифов
func EncodeSlotTypes(types []model.SlotType) (string, error) {
	if types == nil {
		types = []model.SlotType{}
	}
	return encode(types)
}

// DecodeSlotTypes раскодирует каталог тарифов
func DecodeSlotTypes(text string) ([]model.SlotType, *Warning) {
	return decodeList(KindSlotTypes, text, func(i int, t model.SlotType) error {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("item %d: empty name", i)
		}
		if t.Price < 0 {
			return fmt.Errorf("item %d: negative price", i)
		}
		return nil
	})
}

// EncodeSlotFields кодирует определения полей
func EncodeSlotFields(fields []model.SlotField) (string, error) {
	if fields == nil {
		fields = []model.SlotField{}
	}
	return encode(fields)
}

// DecodeSlotFields раскодирует определения полей
func DecodeSlotFields(text string) ([]model.SlotField, *Warning) {
	return decodeList(KindSlotFields, text, func(i int, f model.SlotField) error {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("item %d: empty name", i)
		}
		return nil
	})
}

// EncodeProducts кодирует продукты
func EncodeProducts(products []model.BookedProduct) (string, error) {
	if products == nil {
		products = []model.BookedProduct{}
	}
	return encode(products)
}

// DecodeProducts раскодирует продукты
func DecodeProducts(text string) ([]model.BookedProduct, *Warning) {
	return decodeList(KindProducts, text, func(i int, p model.BookedProduct) error {
		if p.ID == "" && p.Name == "" {
			return fmt.Errorf("item %d: product without id and name", i)
		}
		if p.Quantity < 0 || p.UnitPrice < 0 {
			return fmt.Errorf("item %d: negative quantity or price", i)
		}
		return nil
	})
}

// EncodeDates кодирует список отключённых дат
func EncodeDates(dates []string) (string, error) {
	if dates == nil {
		dates = []string{}
	}
	return encode(dates)
}

// DecodeDates раскодирует список отключённых дат
func DecodeDates(text string) ([]string, *Warning) {
	return decodeList(KindDates, text, func(i int, d string) error {
		if len(d) != len("2006-01-02") {
			return fmt.Errorf("item %d: bad date %q", i, d)
		}
		return nil
	})
}

// scheduleDay строка расписания в формате v1
type scheduleDay struct {
	Weekday int      `json:"weekday"` // 0 = воскресенье
	Times   []string `json:"times"`
}

var weekdayNames = map[string]int{
	"sunday": 0, "monday": 1, "tuesday": 2, "wednesday": 3,
	"thursday": 4, "friday": 5, "saturday": 6,
}

// EncodeSchedule кодирует недельное расписание, дни по порядку
func EncodeSchedule(schedule model.TourSchedule) (string, error) {
	days := make([]scheduleDay, 0, len(schedule))
	for wd := 0; wd < 7; wd++ {
		times := schedule.Times(time.Weekday(wd))
		if len(times) == 0 {
			continue
		}
		days = append(days, scheduleDay{Weekday: wd, Times: append([]string(nil), times...)})
	}
	return encode(days)
}

// DecodeSchedule раскодирует расписание. Старый формат: {"monday":["09:00"], ...}
func DecodeSchedule(text string) (model.TourSchedule, *Warning) {
	schedule := model.TourSchedule{}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return schedule, nil
	}

	var days []scheduleDay
	if isLegacySchedule(trimmed) {
		legacy := map[string][]string{}
		if err := json.Unmarshal([]byte(trimmed), &legacy); err != nil {
			return model.TourSchedule{}, &Warning{Kind: KindSchedule, Reason: err.Error()}
		}
		for name, times := range legacy {
			wd, ok := weekdayNames[strings.ToLower(name)]
			if !ok {
				return model.TourSchedule{}, &Warning{Kind: KindSchedule, Reason: fmt.Sprintf("unknown weekday %q", name)}
			}
			days = append(days, scheduleDay{Weekday: wd, Times: times})
		}
	} else {
		var w *Warning
		days, w = decodeList(KindSchedule, trimmed, func(i int, d scheduleDay) error {
			if d.Weekday < 0 || d.Weekday > 6 {
				return fmt.Errorf("item %d: weekday out of range", i)
			}
			return nil
		})
		if w != nil {
			return model.TourSchedule{}, w
		}
	}

	for _, d := range days {
		for _, t := range d.Times {
			if !timeOfDay.MatchString(t) {
				return model.TourSchedule{}, &Warning{Kind: KindSchedule, Reason: fmt.Sprintf("bad time %q", t)}
			}
		}
		if len(d.Times) > 0 {
			schedule[time.Weekday(d.Weekday)] = append(schedule[time.Weekday(d.Weekday)], d.Times...)
		}
	}
	return schedule, nil
}

// isLegacySchedule объект без поля "v" считается старым форматом
func isLegacySchedule(text string) bool {
	if !strings.HasPrefix(text, "{") {
		return false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return false
	}
	_, versioned := fields["v"]
	return !versioned
}

// IsValidTime проверяет формат HH:MM
func IsValidTime(t string) bool {
	return timeOfDay.MatchString(t)
}

// Warnings собирает непустые предупреждения в строки
func Warnings(ws ...*Warning) []string {
	var out []string
	for _, w := range ws {
		if w != nil {
			out = append(out, w.String())
		}
	}
	return out
}
