// Package handlers содержит HTTP обработчики для API
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"healthytag-service/internal/ingest"
	"healthytag-service/internal/metrics"
	"healthytag-service/internal/models"
)

const (
	defaultReadingsCount = 50
	maxReadingsCount     = 1000
	maxBatchSize         = 500
)

// Pinger проверка доступности внешнего хранилища
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler содержит зависимости для HTTP обработчиков
type Handler struct {
	service   *ingest.Service
	redis     Pinger
	logger    *zap.Logger
	startTime time.Time
}

// NewHandler создает новый обработчик. redis может быть nil, если сервис
// работает на хранилище в памяти.
func NewHandler(service *ingest.Service, redis Pinger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service:   service,
		redis:     redis,
		logger:    logger,
		startTime: time.Now(),
	}
}

// Routes регистрирует эндпоинты API
func (h *Handler) Routes(router *mux.Router) {
	router.HandleFunc("/telemetry", h.TelemetryHandler).Methods(http.MethodPost)
	router.HandleFunc("/devices/{id}", h.RegisterDeviceHandler).Methods(http.MethodPut)
	router.HandleFunc("/devices/{id}", h.DeviceHandler).Methods(http.MethodGet)
	router.HandleFunc("/devices/{id}/readings", h.ReadingHandler).Methods(http.MethodPost)
	router.HandleFunc("/devices/{id}/readings/batch", h.BatchReadingsHandler).Methods(http.MethodPost)
	router.HandleFunc("/devices/{id}/readings", h.LatestReadingsHandler).Methods(http.MethodGet)
	router.HandleFunc("/devices/{id}/insights", h.InsightsHandler).Methods(http.MethodGet)
	router.HandleFunc("/devices/{id}/reset", h.ResetHandler).Methods(http.MethodPost)
	router.HandleFunc("/devices/{id}/alerts", h.AlertsHandler).Methods(http.MethodGet)
	router.HandleFunc("/stats", h.StatsHandler).Methods(http.MethodGet)
	router.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)
}

// TelemetryHandler обрабатывает POST /telemetry - показание с device_id в теле
func (h *Handler) TelemetryHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/telemetry"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	var payload ingest.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.respondError(w, r, endpoint, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.service.Ingest(r.Context(), payload.DeviceID, payload)
	if err != nil {
		h.respondServiceError(w, r, endpoint, err)
		return
	}
	h.respondJSON(w, r, endpoint, result, http.StatusOK)
}

// RegisterDeviceHandler обрабатывает PUT /devices/{id} - регистрация устройства
func (h *Handler) RegisterDeviceHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/devices/{id}"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	var cfg ingest.DeviceConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		h.respondError(w, r, endpoint, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	device, err := h.service.RegisterDevice(r.Context(), mux.Vars(r)["id"], cfg)
	if err != nil {
		h.respondServiceError(w, r, endpoint, err)
		return
	}
	h.respondJSON(w, r, endpoint, device, http.StatusOK)
}

// DeviceHandler обрабатывает GET /devices/{id} - снимок устройства
func (h *Handler) DeviceHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/devices/{id}"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	device, err := h.service.Device(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondServiceError(w, r, endpoint, err)
		return
	}
	h.respondJSON(w, r, endpoint, device, http.StatusOK)
}

// ReadingHandler обрабатывает POST /devices/{id}/readings - прием показания
func (h *Handler) ReadingHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/devices/{id}/readings"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	var payload ingest.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.respondError(w, r, endpoint, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.service.Ingest(r.Context(), mux.Vars(r)["id"], payload)
	if err != nil {
		h.respondServiceError(w, r, endpoint, err)
		return
	}
	h.respondJSON(w, r, endpoint, result, http.StatusOK)
}

// BatchReadingsHandler обрабатывает POST /devices/{id}/readings/batch -
// выгрузка буфера показаний после восстановления связи
func (h *Handler) BatchReadingsHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/devices/{id}/readings/batch"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	var batch struct {
		Readings []ingest.Payload `json:"readings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		h.respondError(w, r, endpoint, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(batch.Readings) > maxBatchSize {
		h.respondError(w, r, endpoint, "Batch too large, max "+strconv.Itoa(maxBatchSize), http.StatusBadRequest)
		return
	}

	deviceID := mux.Vars(r)["id"]
	results := make([]*ingest.Result, 0, len(batch.Readings))
	rejected := 0

	for _, payload := range batch.Readings {
		result, err := h.service.Ingest(r.Context(), deviceID, payload)
		if errors.Is(err, ingest.ErrInvalidReading) {
			rejected++
			continue
		}
		if err != nil {
			h.respondServiceError(w, r, endpoint, err)
			return
		}
		results = append(results, result)
	}

	response := map[string]interface{}{
		"processed": len(results),
		"rejected":  rejected,
		"results":   results,
	}
	h.respondJSON(w, r, endpoint, response, http.StatusOK)
}

// LatestReadingsHandler обрабатывает GET /devices/{id}/readings?count=N
func (h *Handler) LatestReadingsHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/devices/{id}/readings"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	count := int64(defaultReadingsCount)
	if countStr := r.URL.Query().Get("count"); countStr != "" {
		if c, err := strconv.ParseInt(countStr, 10, 64); err == nil && c > 0 && c <= maxReadingsCount {
			count = c
		}
	}

	readings, err := h.service.Readings(r.Context(), mux.Vars(r)["id"], count)
	if err != nil {
		h.respondServiceError(w, r, endpoint, err)
		return
	}
	h.respondJSON(w, r, endpoint, readings, http.StatusOK)
}

// InsightsHandler обрабатывает GET /devices/{id}/insights[?refresh=true]
func (h *Handler) InsightsHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/devices/{id}/insights"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	report, err := h.service.Insights(r.Context(), mux.Vars(r)["id"], refresh)
	if err != nil {
		h.respondServiceError(w, r, endpoint, err)
		return
	}
	h.respondJSON(w, r, endpoint, report, http.StatusOK)
}

// ResetHandler обрабатывает POST /devices/{id}/reset - ручной сброс тревоги
func (h *Handler) ResetHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/devices/{id}/reset"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	device, err := h.service.Reset(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondServiceError(w, r, endpoint, err)
		return
	}
	h.respondJSON(w, r, endpoint, device, http.StatusOK)
}

// AlertsHandler обрабатывает GET /devices/{id}/alerts - активные оповещения
func (h *Handler) AlertsHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/devices/{id}/alerts"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	alerts, err := h.service.Alerts(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondServiceError(w, r, endpoint, err)
		return
	}
	h.respondJSON(w, r, endpoint, alerts, http.StatusOK)
}

// StatsHandler обрабатывает GET /stats - статистика парка
func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/stats"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	// Обновляем метрику горутин
	metrics.ActiveGoroutines.Set(float64(runtime.NumGoroutine()))

	stats, err := h.service.FleetStats(r.Context())
	if err != nil {
		h.respondServiceError(w, r, endpoint, err)
		return
	}
	h.respondJSON(w, r, endpoint, stats, http.StatusOK)
}

// HealthHandler обрабатывает GET /health - проверка здоровья
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	redisStatus := "disconnected"
	if h.redis != nil && h.redis.Ping(r.Context()) == nil {
		redisStatus = "connected"
	}

	status := models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Redis:     redisStatus,
		Uptime:    time.Since(h.startTime).String(),
	}

	h.respondJSON(w, r, "/health", status, http.StatusOK)
}

// respondServiceError переводит ошибку конвейера в HTTP статус
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	switch {
	case errors.Is(err, ingest.ErrUnknownDevice):
		h.respondError(w, r, endpoint, err.Error(), http.StatusNotFound)
	case errors.Is(err, ingest.ErrInvalidReading), errors.Is(err, ingest.ErrInvalidDevice):
		h.respondError(w, r, endpoint, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("Request failed",
			zap.String("endpoint", endpoint),
			zap.String("method", r.Method),
			zap.Error(err),
		)
		h.respondError(w, r, endpoint, "Internal server error", http.StatusInternalServerError)
	}
}

// respondJSON отправляет JSON ответ
func (h *Handler) respondJSON(w http.ResponseWriter, r *http.Request, endpoint string, data interface{}, status int) {
	metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, strconv.Itoa(status)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError отправляет ошибку в JSON формате
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, endpoint, message string, status int) {
	h.respondJSON(w, r, endpoint, map[string]string{"error": message}, status)
}
