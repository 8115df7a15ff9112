package controller

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tour_booking/internal/controller/handlers"
	"github.com/Freeeeeet/tour_booking/internal/controller/state"
	"github.com/Freeeeeet/tour_booking/internal/controller/view"
	"github.com/Freeeeeet/tour_booking/internal/service"
)

type BotController struct {
	bot      *bot.Bot
	handlers *handlers.Handlers
	logger   *zap.Logger
}

func NewBotController(
	botInstance *bot.Bot,
	bookingService *service.BookingService,
	cancellationService *service.CancellationService,
	scheduleService *service.ScheduleService,
	notifier *Notifier,
	adminChatID int64,
	logger *zap.Logger,
) *BotController {
	// Создаём менеджер состояний
	stateManager := state.NewManager()

	// Создаём обработчики команд
	cmdHandlers := handlers.NewHandlers(
		bookingService,
		cancellationService,
		scheduleService,
		stateManager,
		notifier,
		adminChatID,
		logger,
	)

	return &BotController{
		bot:      botInstance,
		handlers: cmdHandlers,
		logger:   logger,
	}
}

// RegisterHandlers регистрирует все обработчики команд
func (c *BotController) RegisterHandlers(ctx context.Context) error {
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, c.handlers.HandleStart)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypeExact, c.handlers.HandleHelp)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/booking", bot.MatchTypePrefix, c.handlers.HandleBooking)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/calendar", bot.MatchTypePrefix, c.handlers.HandleCalendar)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/reschedule", bot.MatchTypePrefix, c.handlers.HandleReschedule)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/slots", bot.MatchTypePrefix, c.handlers.HandleSlots)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/slottype", bot.MatchTypePrefix, c.handlers.HandleSlotType)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/product", bot.MatchTypePrefix, c.handlers.HandleProduct)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/contact", bot.MatchTypePrefix, c.handlers.HandleContact)

	// Команды администратора
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/cancel", bot.MatchTypePrefix, c.handlers.HandleCancelBooking)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/resync", bot.MatchTypePrefix, c.handlers.HandleResync)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/addtime", bot.MatchTypePrefix, c.handlers.HandleAddTime)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/edittime", bot.MatchTypePrefix, c.handlers.HandleEditTime)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/removetime", bot.MatchTypePrefix, c.handlers.HandleRemoveTime)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/disabledate", bot.MatchTypePrefix, c.handlers.HandleDisableDate)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/enabledate", bot.MatchTypePrefix, c.handlers.HandleEnableDate)

	// Обработчик текстовых сообщений (ввод своей суммы возврата)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "", bot.MatchTypePrefix, c.handlers.HandleTextMessage)

	// Обработчики нажатий на inline кнопки
	for _, prefix := range []string{view.RefundOption, view.RefundConfirm, view.RefundAbort, view.Resync} {
		c.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, prefix, bot.MatchTypePrefix, c.handlers.HandleCallbackQuery)
	}

	// Устанавливаем меню команд
	return c.setCommands(ctx)
}

// setCommands устанавливает список команд в меню бота
func (c *BotController) setCommands(ctx context.Context) error {
	commands := []models.BotCommand{
		{Command: "start", Description: "🚀 Начать работу с ботом"},
		{Command: "help", Description: "❓ Справка по командам"},
		{Command: "booking", Description: "🎫 Моё бронирование по коду"},
		{Command: "calendar", Description: "🗓 Свободные даты тура"},
		{Command: "reschedule", Description: "📅 Перенести бронирование"},
		{Command: "slots", Description: "👥 Изменить число мест"},
		{Command: "slottype", Description: "🎟 Изменить тариф места"},
		{Command: "product", Description: "🛍 Изменить продукты"},
		{Command: "contact", Description: "✏️ Изменить контакты"},
		{Command: "cancel", Description: "↩️ Отменить бронирование (админ)"},
		{Command: "resync", Description: "🔄 Обновить ссылку на оплату (админ)"},
	}

	_, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: commands,
	})

	if err != nil {
		c.logger.Error("Failed to set bot commands", zap.Error(err))
		return err
	}

	c.logger.Info("✅ Bot commands menu set")
	return nil
}

// Start запускает бота
func (c *BotController) Start(ctx context.Context) error {
	c.logger.Info("Starting bot...")
	c.bot.Start(ctx)
	return nil
}
