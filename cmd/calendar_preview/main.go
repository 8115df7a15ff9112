package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Freeeeeet/tour_booking/internal/availability"
	"github.com/Freeeeeet/tour_booking/internal/controller/view"
	"github.com/Freeeeeet/tour_booking/internal/model"
)

// committed фиксированная занятость для превью
type committed map[string]int

func (c committed) CommittedSlots(_ context.Context, _ int64, date, startTime string) (int, error) {
	return c[date+" "+startTime], nil
}

func main() {
	now := time.Now()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	// Тестовый тур: вторник, четверг и суббота, одна дата закрыта
	tour := &model.Tour{
		ID:       1,
		Name:     "Preview tour",
		Capacity: 8,
		Schedule: model.TourSchedule{
			time.Tuesday:  {"09:00", "14:00"},
			time.Thursday: {"10:00"},
			time.Saturday: {"11:00", "16:00"},
		},
		DisabledDates: []string{first.AddDate(0, 0, 14).Format(availability.DateLayout)},
	}

	// Занятость: первая активная дата заполнена полностью, следующая наполовину
	usage := committed{}
	filled := 0
	for d := first; d.Month() == first.Month() && filled < 2; d = d.AddDate(0, 0, 1) {
		times := tour.Schedule.Times(d.Weekday())
		if len(times) == 0 {
			continue
		}
		for _, t := range times {
			usage[d.Format(availability.DateLayout)+" "+t] = tour.Capacity / (filled + 1)
		}
		filled++
	}

	cal, err := availability.Month(context.Background(), usage, tour, first.Year(), first.Month(), 0)
	if err != nil {
		fmt.Printf("Ошибка расчёта календаря: %v\n", err)
		os.Exit(1)
	}

	imageData, err := view.GenerateMonthImage(cal, tour.Capacity, now)
	if err != nil {
		fmt.Printf("Ошибка генерации изображения: %v\n", err)
		os.Exit(1)
	}

	filename := "calendar.png"
	if err := os.WriteFile(filename, imageData, 0644); err != nil {
		fmt.Printf("Ошибка сохранения файла: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Изображение успешно сохранено в %s\n", filename)
	fmt.Print(view.FormatCalendar(tour, cal))
}
