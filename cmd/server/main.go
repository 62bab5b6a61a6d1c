// Package main запускает сервис мониторинга холодильного оборудования HealthyTag.
// Сервис реализует:
// - HTTP и MQTT прием показаний температуры и влажности от IoT-устройств
// - классификацию состояния с защелкой тревоги до ручного сброса
// - фоновую аналитику (аномалии, прогноз отказов, паттерны) в пуле воркеров
// - хранение в Redis, публикацию оповещений в Kafka
// - экспорт метрик в Prometheus
package main

import (
	"context"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"healthytag-service/internal/analytics"
	"healthytag-service/internal/config"
	"healthytag-service/internal/handlers"
	"healthytag-service/internal/ingest"
	"healthytag-service/internal/logger"
	"healthytag-service/internal/metrics"
	"healthytag-service/internal/mqtt"
	"healthytag-service/internal/notify"
	"healthytag-service/internal/scheduler"
	"healthytag-service/internal/store"
)

// alertPublisher notifier с освобождением ресурсов
type alertPublisher interface {
	ingest.AlertNotifier
	Close() error
}

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	log.Info("Starting HealthyTag service",
		zap.String("go_version", runtime.Version()),
		zap.Int("num_cpu", runtime.NumCPU()),
	)

	// Хранилище: Redis с повторами, при недоступности - память процесса
	st, redisStore := connectStore(cfg, log)

	// Инициализируем анализатор
	analyzer := analytics.NewAnalyzer(cfg.BufferSize)
	analyzer.Start(cfg.WorkerCount)
	log.Info("Analytics engine started", zap.Int("workers", cfg.WorkerCount))

	notifier := newNotifier(cfg, log)

	service := ingest.NewService(st, notifier, analyzer, log, cfg.HistoryLimit)

	// Запускаем горутину для обработки результатов анализа
	resultsDone := make(chan struct{})
	go func() {
		defer close(resultsDone)
		processInsightReports(analyzer, service, log)
	}()

	// Планировщик фоновых задач
	sched := scheduler.NewScheduler(log)
	if err := scheduler.RegisterJobs(sched, service, cfg.OfflineSweepCron, cfg.InsightsCron); err != nil {
		log.Fatal("Failed to register scheduled jobs", zap.Error(err))
	}
	sched.Start()

	// MQTT подписка на телеметрию
	var subscriber *mqtt.Subscriber
	if cfg.MQTTEnabled() {
		client, err := mqtt.NewClient(cfg.MQTTBroker, cfg.MQTTClientID)
		if err != nil {
			log.Warn("Failed to connect to MQTT broker, MQTT ingestion disabled",
				zap.String("broker", cfg.MQTTBroker), zap.Error(err))
		} else {
			subscriber = mqtt.NewSubscriber(client, cfg.MQTTTopic, service, log)
			if err := subscriber.Start(); err != nil {
				log.Warn("MQTT subscription failed", zap.Error(err))
			}
		}
	}

	// Создаем обработчики
	var pinger handlers.Pinger
	if redisStore != nil {
		pinger = redisStore
	}
	handler := handlers.NewHandler(service, pinger, log)

	// Настраиваем маршруты
	router := mux.NewRouter()
	handler.Routes(router)

	// Prometheus метрики
	router.Handle("/prometheus", promhttp.Handler())

	// pprof для профилирования
	router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	// Middleware для логирования
	router.Use(loggingMiddleware(log))

	// Создаем HTTP сервер с настройками таймаутов
	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      gorillahandlers.RecoveryHandler(gorillahandlers.PrintRecoveryStack(true))(router),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Запускаем горутину для обновления метрик
	metricsCtx, stopMetrics := context.WithCancel(context.Background())
	go updateMetricsLoop(metricsCtx)

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Запускаем сервер в горутине
	go func() {
		log.Info("Server listening", zap.String("addr", cfg.ServerAddr))
		log.Info("Endpoints: POST /telemetry, PUT|GET /devices/{id}, POST|GET /devices/{id}/readings, " +
			"POST /devices/{id}/readings/batch, GET /devices/{id}/insights, POST /devices/{id}/reset, " +
			"GET /devices/{id}/alerts, GET /stats, GET /health, GET /prometheus")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server error", zap.Error(err))
		}
	}()

	// Ожидаем сигнал завершения
	<-stop
	log.Info("Shutting down server...")

	// Контекст с таймаутом для завершения
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Сначала прекращаем прием новых показаний
	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}
	if subscriber != nil {
		subscriber.Stop()
	}
	sched.Stop()
	stopMetrics()

	// Останавливаем анализатор и дожидаемся сохранения оставшихся отчетов
	analyzer.Stop()
	<-resultsDone

	if err := notifier.Close(); err != nil {
		log.Error("Failed to close notifier", zap.Error(err))
	}
	if err := st.Close(); err != nil {
		log.Error("Failed to close store", zap.Error(err))
	}

	log.Info("Server stopped")
}

// connectStore подключается к Redis с повторами. Если Redis недоступен,
// возвращает хранилище в памяти и nil вместо RedisStore.
func connectStore(cfg *config.Config, log *zap.Logger) (store.Store, *store.RedisStore) {
	var redisStore *store.RedisStore
	var err error

	// Пробуем подключиться к Redis с повторами
	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.HistoryLimit)
		cancel()
		if err == nil {
			log.Info("Connected to Redis", zap.String("addr", cfg.RedisAddr))
			return redisStore, redisStore
		}
		log.Warn("Redis connection attempt failed", zap.Int("attempt", i+1), zap.Error(err))
		if i < 4 {
			time.Sleep(time.Duration(i+1) * time.Second)
		}
	}

	log.Warn("Failed to connect to Redis, running with in-memory store", zap.Error(err))
	return store.NewMemoryStore(int(cfg.HistoryLimit)), nil
}

// newNotifier выбирает канал доставки оповещений
func newNotifier(cfg *config.Config, log *zap.Logger) alertPublisher {
	if !cfg.KafkaEnabled() {
		log.Info("Kafka brokers not configured, alerts are logged only")
		return notify.NewLogNotifier(log)
	}
	publisher, err := notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaAlertTopic, log)
	if err != nil {
		log.Warn("Kafka publisher disabled", zap.Error(err))
		return notify.NewLogNotifier(log)
	}
	log.Info("Publishing alerts to Kafka",
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.KafkaAlertTopic),
	)
	return publisher
}

// loggingMiddleware логирует HTTP запросы
func loggingMiddleware(log *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debug("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("took", time.Since(start)),
			)
		})
	}
}

// updateMetricsLoop периодически обновляет метрики Prometheus
func updateMetricsLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.ActiveGoroutines.Set(float64(runtime.NumGoroutine()))
		case <-ctx.Done():
			return
		}
	}
}

// processInsightReports сохраняет отчеты анализатора до закрытия канала результатов
func processInsightReports(analyzer *analytics.Analyzer, service *ingest.Service, log *zap.Logger) {
	for report := range analyzer.Results() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := service.SaveReport(ctx, report); err != nil {
			log.Error("Failed to save insight report", zap.String("device_id", report.DeviceID), zap.Error(err))
		} else if len(report.Insights.Alerts) > 0 {
			log.Warn("Insight report contains alerts",
				zap.String("device_id", report.DeviceID),
				zap.Int("health_score", report.Insights.HealthScore),
				zap.Strings("alerts", report.Insights.Alerts),
			)
		}
		cancel()
	}
}
