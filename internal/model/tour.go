package model

import (
	"time"
)

// Tour экскурсия с недельным расписанием
type Tour struct {
	ID            int64        `json:"id"`
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	Location      string       `json:"location"`
	ImageURL      string       `json:"image_url"`
	Price         float64      `json:"price"`    // базовая цена за место, если тарифов нет
	Capacity      int          `json:"capacity"` // мест на одно время
	Schedule      TourSchedule `json:"schedule"`
	DisabledDates []string     `json:"disabled_dates"` // YYYY-MM-DD
	IsActive      bool         `json:"is_active"`
	CreatedAt     time.Time    `json:"created_at"`

	Warnings []string `json:"-"`
}

// TourSchedule день недели -> упорядоченный список времени начала (HH:MM)
type TourSchedule map[time.Weekday][]string

// Times возвращает времена начала для дня недели
func (s TourSchedule) Times(day time.Weekday) []string {
	if s == nil {
		return nil
	}
	return s[day]
}

// Clone делает глубокую копию расписания
func (s TourSchedule) Clone() TourSchedule {
	out := make(TourSchedule, len(s))
	for day, times := range s {
		out[day] = append([]string(nil), times...)
	}
	return out
}
