// Package scheduler запускает периодические задачи сервиса по cron-расписанию
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"healthytag-service/internal/metrics"
	"healthytag-service/internal/models"
)

// JobTimeout предельное время одного запуска задачи
const JobTimeout = 2 * time.Minute

// Имена задач
const (
	JobOfflineSweep   = "offline_sweep"
	JobInsightRefresh = "insight_refresh"
	JobFleetMetrics   = "fleet_metrics"
)

// FleetMetricsSpec расписание обновления метрик парка
const FleetMetricsSpec = "@every 30s"

// Jobs операции, которые выполняются по расписанию
type Jobs interface {
	SweepOffline(ctx context.Context) (int, error)
	RefreshInsights(ctx context.Context) (int, error)
	FleetStats(ctx context.Context) (models.FleetStats, error)
}

// Scheduler управляет cron-задачами
type Scheduler struct {
	cron      *cron.Cron
	logger    *zap.Logger
	jobMap    map[string]cron.EntryID
	jobMapMux sync.RWMutex
}

// NewScheduler создает планировщик. Пересекающиеся запуски одной задачи пропускаются.
func NewScheduler(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{logger: logger.Sugar()}
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		logger: logger,
		jobMap: make(map[string]cron.EntryID),
	}
}

// Start запускает планировщик
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Cron scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop останавливает планировщик и ждет завершения выполняющихся задач
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron scheduler stopped")
}

// AddJob регистрирует именованную задачу
func (s *Scheduler) AddJob(name, spec string, fn func(ctx context.Context) error) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(spec, s.wrap(name, fn))
	if err != nil {
		return 0, fmt.Errorf("failed to schedule %s with %q: %w", name, spec, err)
	}

	s.jobMapMux.Lock()
	s.jobMap[name] = id
	s.jobMapMux.Unlock()
	return id, nil
}

// HasJob сообщает, зарегистрирована ли задача
func (s *Scheduler) HasJob(name string) bool {
	s.jobMapMux.RLock()
	defer s.jobMapMux.RUnlock()
	_, ok := s.jobMap[name]
	return ok
}

func (s *Scheduler) wrap(name string, fn func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), JobTimeout)
		defer cancel()

		start := time.Now()
		if err := fn(ctx); err != nil {
			metrics.SchedulerRuns.WithLabelValues(name, "error").Inc()
			s.logger.Error("Scheduled job failed", zap.String("job", name), zap.Error(err))
			return
		}
		metrics.SchedulerRuns.WithLabelValues(name, "ok").Inc()
		s.logger.Debug("Scheduled job finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
	}
}

// RegisterJobs добавляет задачи сервиса: поиск молчащих устройств,
// обновление отчетов и метрик парка
func RegisterJobs(s *Scheduler, jobs Jobs, offlineSpec, insightsSpec string) error {
	if _, err := s.AddJob(JobOfflineSweep, offlineSpec, func(ctx context.Context) error {
		changed, err := jobs.SweepOffline(ctx)
		if err != nil {
			return err
		}
		if changed > 0 {
			s.logger.Info("Offline sweep finished", zap.Int("devices_changed", changed))
		}
		return nil
	}); err != nil {
		return err
	}

	if _, err := s.AddJob(JobInsightRefresh, insightsSpec, func(ctx context.Context) error {
		submitted, err := jobs.RefreshInsights(ctx)
		if err != nil {
			return err
		}
		s.logger.Info("Insight refresh queued", zap.Int("jobs", submitted))
		return nil
	}); err != nil {
		return err
	}

	_, err := s.AddJob(JobFleetMetrics, FleetMetricsSpec, func(ctx context.Context) error {
		_, err := jobs.FleetStats(ctx)
		return err
	})
	return err
}

// cronLogger адаптер zap для cron.Logger
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
