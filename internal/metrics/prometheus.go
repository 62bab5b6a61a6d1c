// Package metrics реализует экспорт метрик в Prometheus
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"healthytag-service/internal/models"
)

// Prometheus метрики
var (
	// RequestsTotal общее количество запросов
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthytag_requests_total",
			Help: "Total number of requests processed",
		},
		[]string{"endpoint", "method", "status"},
	)

	// RequestDuration длительность запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "healthytag_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"endpoint", "method"},
	)

	// ReadingsIngested количество принятых показаний
	ReadingsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "healthytag_readings_ingested_total",
			Help: "Total number of device readings ingested",
		},
	)

	// HealthStatusTotal итоговые статусы показаний
	HealthStatusTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthytag_health_status_total",
			Help: "Readings by resulting health status",
		},
		[]string{"status"},
	)

	// AlertsRaised созданные оповещения по типам
	AlertsRaised = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthytag_alerts_raised_total",
			Help: "Total number of alerts raised",
		},
		[]string{"type"},
	)

	// InsightReports количество построенных фоновых отчетов
	InsightReports = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "healthytag_insight_reports_total",
			Help: "Total number of insight reports produced by workers",
		},
	)

	// InsightQueueDropped задания, не попавшие в очередь анализатора
	InsightQueueDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "healthytag_insight_queue_dropped_total",
			Help: "Insight jobs dropped because the queue was full",
		},
	)

	// InsightLatency время построения отчета
	InsightLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "healthytag_insight_latency_seconds",
			Help:    "Insight generation latency in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05},
		},
	)

	// StoreErrors ошибки хранилища по операциям
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthytag_store_errors_total",
			Help: "Store operation failures",
		},
		[]string{"operation"},
	)

	// MQTTMessages сообщения MQTT по результату обработки
	MQTTMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthytag_mqtt_messages_total",
			Help: "MQTT telemetry messages by processing result",
		},
		[]string{"result"},
	)

	// AlertsPublished оповещения, отправленные в Kafka
	AlertsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthytag_alerts_published_total",
			Help: "Alerts published to the message bus",
		},
		[]string{"result"},
	)

	// SchedulerRuns запуски фоновых задач
	SchedulerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthytag_scheduler_runs_total",
			Help: "Scheduled job runs by job and result",
		},
		[]string{"job", "result"},
	)

	// DevicesByStatus устройства парка по статусам
	DevicesByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "healthytag_devices",
			Help: "Number of devices by health status",
		},
		[]string{"status"},
	)

	// LatchedDevices устройства, ожидающие ручного сброса
	LatchedDevices = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "healthytag_latched_devices",
			Help: "Devices waiting for operator reset",
		},
	)

	// ComplianceRate доля исправных устройств, %
	ComplianceRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "healthytag_compliance_rate",
			Help: "Share of healthy devices in percent",
		},
	)

	// ActiveGoroutines количество активных горутин
	ActiveGoroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "healthytag_active_goroutines",
			Help: "Number of active goroutines",
		},
	)
)

// UpdateFleetMetrics обновляет метрики парка устройств
func UpdateFleetMetrics(stats models.FleetStats) {
	DevicesByStatus.WithLabelValues(string(models.StatusHealthy)).Set(float64(stats.HealthyDevices))
	DevicesByStatus.WithLabelValues(string(models.StatusWarning)).Set(float64(stats.WarningDevices))
	DevicesByStatus.WithLabelValues(string(models.StatusNotHealthy)).Set(float64(stats.UnhealthyDevices))
	DevicesByStatus.WithLabelValues(string(models.StatusOffline)).Set(float64(stats.OfflineDevices))
	LatchedDevices.Set(float64(stats.LatchedDevices))
	ComplianceRate.Set(float64(stats.ComplianceRate))
}
