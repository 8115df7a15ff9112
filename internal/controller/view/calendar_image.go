package view

import (
	"bytes"
	"image/color"
	"strconv"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/Freeeeeet/tour_booking/internal/availability"
)

// Константы размеров и отступов
const (
	imageWidth   = 700
	imageHeight  = 560
	headerHeight = 70
	weekdayRow   = 30
	gridPadding  = 20
	cellRadius   = 6.0
	daysInWeek   = 7
	maxWeekRows  = 6
)

// Цветовая схема
var (
	bgColor          = color.RGBA{245, 246, 248, 255}
	textColor        = color.RGBA{80, 85, 90, 220}
	availableColor   = color.RGBA{133, 193, 85, 220}
	fewLeftColor     = color.RGBA{255, 196, 87, 230}
	fullyBookedColor = color.RGBA{255, 182, 193, 255}
	unavailableColor = color.RGBA{200, 200, 200, 200}
	todayBorderColor = color.NRGBA{255, 80, 80, 200}
	cellTextColor    = color.RGBA{20, 24, 28, 230}
)

// fewLeftShare доля свободных мест, ниже которой день подсвечивается как почти занятый
const fewLeftShare = 0.25

// GenerateMonthImage рисует календарь месяца: недоступные, полностью занятые и свободные даты
// с остатком мест. Неделя начинается с понедельника.
func GenerateMonthImage(cal availability.Calendar, capacity int, today time.Time) ([]byte, error) {
	dc := gg.NewContext(imageWidth, imageHeight)
	dc.SetColor(bgColor)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	dc.SetColor(textColor)
	dc.DrawStringAnchored(cal.Month.String()+" "+strconv.Itoa(cal.Year), imageWidth/2, headerHeight/2, 0.5, 0.5)

	cellW := float64(imageWidth-2*gridPadding) / daysInWeek
	cellH := float64(imageHeight-headerHeight-weekdayRow-2*gridPadding) / maxWeekRows
	top := float64(headerHeight + weekdayRow)

	for i, name := range weekdayShortNames {
		x := gridPadding + cellW*float64(i) + cellW/2
		dc.DrawStringAnchored(name, x, float64(headerHeight)+weekdayRow/2, 0.5, 0.5)
	}

	unavailable := make(map[string]struct{}, len(cal.Unavailable))
	for _, d := range cal.Unavailable {
		unavailable[d] = struct{}{}
	}
	fullyBooked := make(map[string]struct{}, len(cal.FullyBooked))
	for _, d := range cal.FullyBooked {
		fullyBooked[d] = struct{}{}
	}

	first := time.Date(cal.Year, cal.Month, 1, 0, 0, 0, 0, time.UTC)
	todayKey := today.Format(availability.DateLayout)

	for d := first; d.Month() == cal.Month; d = d.AddDate(0, 0, 1) {
		col, row := cellPosition(d)
		x := gridPadding + cellW*float64(col) + 3
		y := top + cellH*float64(row) + 3
		w, h := cellW-6, cellH-6

		key := d.Format(availability.DateLayout)
		left := totalRemaining(cal.Remaining[key])

		var fill color.Color
		switch {
		case has(unavailable, key):
			fill = unavailableColor
		case has(fullyBooked, key):
			fill = fullyBookedColor
		case capacity > 0 && float64(left) < float64(capacity*len(cal.Remaining[key]))*fewLeftShare:
			fill = fewLeftColor
		default:
			fill = availableColor
		}

		dc.SetColor(fill)
		dc.DrawRoundedRectangle(x, y, w, h, cellRadius)
		dc.Fill()

		if key == todayKey {
			dc.SetColor(todayBorderColor)
			dc.SetLineWidth(3)
			dc.DrawRoundedRectangle(x, y, w, h, cellRadius)
			dc.Stroke()
		}

		dc.SetColor(cellTextColor)
		dc.DrawString(strconv.Itoa(d.Day()), x+8, y+18)
		if _, ok := cal.Remaining[key]; ok && !has(unavailable, key) {
			dc.DrawStringAnchored(strconv.Itoa(left)+" left", x+w/2, y+h-14, 0.5, 0.5)
		}
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// cellPosition колонка (Пн = 0) и строка даты в сетке месяца
func cellPosition(d time.Time) (col, row int) {
	col = (int(d.Weekday()) + 6) % 7
	first := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, d.Location())
	offset := (int(first.Weekday()) + 6) % 7
	row = (d.Day() - 1 + offset) / 7
	return col, row
}

func totalRemaining(rs []availability.Remain) int {
	total := 0
	for _, r := range rs {
		total += r.Remaining
	}
	return total
}

func has(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}

// короткие дни недели
var weekdayShortNames = [...]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
