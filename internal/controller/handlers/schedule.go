package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tour_booking/internal/controller/view"
	"github.com/Freeeeeet/tour_booking/internal/model"
)

// HandleAddTime /addtime <тур> <день> <ЧЧ:ММ>
func (h *Handlers) HandleAddTime(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.editSchedule(ctx, b, update, 3, "Использование: /addtime <id тура> <день 1-7> <ЧЧ:ММ>",
		func(ctx context.Context, tourID int64, args []string) (model.TourSchedule, error) {
			day, err := parseWeekday(args[0])
			if err != nil {
				return nil, err
			}
			return h.scheduleService.AddTime(ctx, tourID, day, args[1])
		})
}

// HandleEditTime /edittime <тур> <день> <номер> <ЧЧ:ММ>
func (h *Handlers) HandleEditTime(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.editSchedule(ctx, b, update, 4, "Использование: /edittime <id тура> <день 1-7> <номер> <ЧЧ:ММ>",
		func(ctx context.Context, tourID int64, args []string) (model.TourSchedule, error) {
			day, err := parseWeekday(args[0])
			if err != nil {
				return nil, err
			}
			index, err := parseIndex(args[1])
			if err != nil {
				return nil, err
			}
			return h.scheduleService.UpdateTime(ctx, tourID, day, index, args[2])
		})
}

// HandleRemoveTime /removetime <тур> <день> <номер>
func (h *Handlers) HandleRemoveTime(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.editSchedule(ctx, b, update, 3, "Использование: /removetime <id тура> <день 1-7> <номер>",
		func(ctx context.Context, tourID int64, args []string) (model.TourSchedule, error) {
			day, err := parseWeekday(args[0])
			if err != nil {
				return nil, err
			}
			index, err := parseIndex(args[1])
			if err != nil {
				return nil, err
			}
			return h.scheduleService.RemoveTime(ctx, tourID, day, index)
		})
}

func (h *Handlers) editSchedule(
	ctx context.Context,
	b *bot.Bot,
	update *models.Update,
	argc int,
	usage string,
	edit func(ctx context.Context, tourID int64, args []string) (model.TourSchedule, error),
) {
	if !h.requireAdmin(ctx, b, update) {
		return
	}
	chatID := update.Message.Chat.ID

	args := commandArgs(update.Message.Text)
	if len(args) != argc {
		h.sendError(ctx, b, chatID, usage)
		return
	}
	tourID, err := parseID(args[0])
	if err != nil {
		h.sendError(ctx, b, chatID, "❌ Неверный ID тура.")
		return
	}

	schedule, err := edit(ctx, tourID, args[1:])
	if err != nil {
		if errors.Is(err, errUsage) {
			h.sendError(ctx, b, chatID, usage)
			return
		}
		h.logger.Warn("Schedule edit failed",
			zap.Int64("tour_id", tourID),
			zap.String("command", update.Message.Text),
			zap.Error(err))
		h.sendError(ctx, b, chatID, errorText(err))
		return
	}

	h.sendMessage(ctx, b, chatID, "✅ Расписание обновлено.\n\n"+view.FormatSchedule(schedule), nil)
}

// HandleDisableDate /disabledate <тур> <ГГГГ-ММ-ДД>
func (h *Handlers) HandleDisableDate(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.setDateDisabled(ctx, b, update, true)
}

// HandleEnableDate /enabledate <тур> <ГГГГ-ММ-ДД>
func (h *Handlers) HandleEnableDate(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.setDateDisabled(ctx, b, update, false)
}

func (h *Handlers) setDateDisabled(ctx context.Context, b *bot.Bot, update *models.Update, disabled bool) {
	if !h.requireAdmin(ctx, b, update) {
		return
	}
	chatID := update.Message.Chat.ID

	args := commandArgs(update.Message.Text)
	if len(args) != 2 {
		h.sendError(ctx, b, chatID, "Использование: /disabledate или /enabledate <id тура> <ГГГГ-ММ-ДД>")
		return
	}
	tourID, err := parseID(args[0])
	if err != nil {
		h.sendError(ctx, b, chatID, "❌ Неверный ID тура.")
		return
	}

	dates, err := h.scheduleService.SetDateDisabled(ctx, tourID, args[1], disabled)
	if err != nil {
		h.sendError(ctx, b, chatID, errorText(err))
		return
	}

	text := "✅ Все даты открыты."
	if len(dates) > 0 {
		text = fmt.Sprintf("✅ Закрытые даты:\n%s", strings.Join(dates, "\n"))
	}
	h.sendMessage(ctx, b, chatID, text, nil)
}
