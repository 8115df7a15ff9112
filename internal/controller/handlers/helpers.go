package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Freeeeeet/tour_booking/internal/availability"
	"github.com/Freeeeeet/tour_booking/internal/model"
	"github.com/Freeeeeet/tour_booking/internal/service"
)

var (
	errUsage          = errors.New("usage")
	errUnknownProduct = errors.New("unknown product")
)

// commandArgs аргументы команды без самой команды
func commandArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) <= 1 {
		return nil
	}
	return fields[1:]
}

// parseID разбирает положительный ID
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errUsage
	}
	return id, nil
}

// parseMonth разбирает YYYY-MM; пустая строка означает текущий месяц
func parseMonth(s string, now time.Time) (int, time.Month, error) {
	if s == "" {
		return now.Year(), now.Month(), nil
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, 0, errUsage
	}
	return t.Year(), t.Month(), nil
}

// errorText текст для пользователя по типу ошибки
func errorText(err error) string {
	var (
		verr     model.ValidationError
		conflict model.CapacityConflict
	)

	switch {
	case service.IsResync(err):
		return "⚠️ Изменения сохранены, но ссылку на оплату обновить не удалось.\nНажмите «🔄 Обновить ссылку», чтобы повторить."
	case errors.As(err, &verr):
		parts := make([]string, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			parts = append(parts, "• "+f.Error())
		}
		return "❌ Проверьте данные:\n" + strings.Join(parts, "\n")
	case errors.As(err, &conflict):
		return fmt.Sprintf("❌ Недостаточно мест на %s %s: осталось %d, нужно %d.",
			conflict.Date, conflict.Time, conflict.Remaining, conflict.Requested)
	case errors.Is(err, availability.ErrTimeSlotConflict):
		return "❌ Такое время уже есть в этот день."
	case errors.Is(err, availability.ErrInvalidTime):
		return "❌ Время указывается в формате ЧЧ:ММ."
	case errors.Is(err, availability.ErrSlotIndex):
		return "❌ Нет времени с таким номером."
	case errors.Is(err, model.ErrNotFound):
		return "❌ Не найдено."
	case errors.Is(err, model.ErrNotAllowed):
		return "❌ Операция недоступна для текущего статуса бронирования."
	case model.IsRemote(err):
		return "❌ Сервис временно недоступен. Попробуйте позже."
	default:
		return "❌ Произошла ошибка. Попробуйте позже."
	}
}

// parseWeekday день недели 1-7, где 1 понедельник
func parseWeekday(s string) (time.Weekday, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 7 {
		return 0, errUsage
	}
	return time.Weekday(n % 7), nil
}

// parseIndex номер времени в списке дня, начиная с 1
func parseIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, errUsage
	}
	return n - 1, nil
}

// parseContact разбирает <email> <телефон|-> <имя...>
func parseContact(args []string) (model.PersonalInfo, error) {
	if len(args) < 3 {
		return model.PersonalInfo{}, errUsage
	}
	phone := args[1]
	if phone == "-" {
		phone = ""
	}
	return model.PersonalInfo{
		Name:  strings.Join(args[2:], " "),
		Email: args[0],
		Phone: phone,
	}, nil
}

// withSlotType копия слотов, где у слота idx новый тариф; цену назначит сервис
func withSlotType(slots []model.Slot, idx int, slotType string) ([]model.Slot, error) {
	if idx < 0 || idx >= len(slots) {
		return nil, errUsage
	}
	out := make([]model.Slot, len(slots))
	for i, s := range slots {
		out[i] = s.Clone()
	}
	out[idx].Type = slotType
	return out, nil
}

// withProductQuantity копия продуктов с новым количеством; 0 убирает позицию
func withProductQuantity(products []model.BookedProduct, id string, qty int) ([]model.BookedProduct, error) {
	if qty < 0 {
		return nil, errUsage
	}
	out := make([]model.BookedProduct, 0, len(products))
	found := false
	for _, p := range products {
		if p.ID == id {
			found = true
			if qty == 0 {
				continue
			}
			p.Quantity = qty
		}
		out = append(out, p)
	}
	if !found {
		return nil, errUnknownProduct
	}
	return out, nil
}
