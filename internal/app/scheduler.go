package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/tour_booking/internal/model"
)

// RefundingSource бронирования, ожидающие завершения возврата
type RefundingSource interface {
	Refunding(ctx context.Context) ([]*model.Booking, error)
}

// RefundingReporter отправляет отчёт администратору
type RefundingReporter interface {
	ReportRefunding(ctx context.Context, bookings []*model.Booking)
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	source   RefundingSource
	reporter RefundingReporter
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	done     chan struct{}
}

// NewScheduler создаёт новый планировщик
func NewScheduler(source RefundingSource, reporter RefundingReporter, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Scheduler{
		source:   source,
		reporter: reporter,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler", zap.Duration("interval", s.interval))

	go s.runRefundingReportTask(ctx)
}

// Stop останавливает фоновые задачи и ждёт их завершения
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background scheduler")
	close(s.stopChan)
	<-s.done
}

// runRefundingReportTask периодически сообщает о зависших возвратах.
// Статус refunding меняет только внешняя система, здесь он лишь отображается.
func (s *Scheduler) runRefundingReportTask(ctx context.Context) {
	defer close(s.done)

	// Первый запуск сразу при старте
	s.reportRefunding(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reportRefunding(ctx)
		case <-s.stopChan:
			s.logger.Info("Refunding report task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Refunding report task cancelled")
			return
		}
	}
}

func (s *Scheduler) reportRefunding(ctx context.Context) {
	bookings, err := s.source.Refunding(ctx)
	if err != nil {
		s.logger.Error("Failed to list refunding bookings", zap.Error(err))
		return
	}

	s.logger.Info("Refunding report", zap.Int("count", len(bookings)))
	s.reporter.ReportRefunding(ctx, bookings)
}
