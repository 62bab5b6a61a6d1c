// Package ingest реализует конвейер приема показаний: проверка, классификация,
// защелка тревоги, сохранение, оповещения и постановка аналитики в очередь
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"healthytag-service/internal/analytics"
	"healthytag-service/internal/health"
	"healthytag-service/internal/metrics"
	"healthytag-service/internal/models"
	"healthytag-service/internal/store"
)

const (
	// InsightEvery отчет строится на каждом InsightEvery-м показании устройства
	InsightEvery = 10
	// InsightMinHistory минимальное число показаний для фонового отчета
	InsightMinHistory = 20
)

var (
	// ErrUnknownDevice устройство не зарегистрировано
	ErrUnknownDevice = errors.New("unknown device")
	// ErrInvalidReading показание не прошло проверку
	ErrInvalidReading = errors.New("invalid reading")
	// ErrInvalidDevice некорректная конфигурация устройства
	ErrInvalidDevice = errors.New("invalid device config")
)

// DeviceStore хранилище, необходимое конвейеру
type DeviceStore interface {
	SaveDevice(ctx context.Context, d models.Device) error
	GetDevice(ctx context.Context, id string) (*models.Device, error)
	ListDevices(ctx context.Context) ([]models.Device, error)
	AppendReading(ctx context.Context, r models.Reading) (int64, error)
	RecentReadings(ctx context.Context, deviceID string, count int64) ([]models.Reading, error)
	RaiseAlert(ctx context.Context, a models.Alert) (bool, error)
	ActiveAlerts(ctx context.Context, deviceID string) ([]models.Alert, error)
	ResolveAlerts(ctx context.Context, deviceID string) error
	SaveInsights(ctx context.Context, report analytics.InsightReport) error
	GetInsights(ctx context.Context, deviceID string) (analytics.InsightReport, bool, error)
	Counters(ctx context.Context) (readings, alerts int64, err error)
}

// AlertNotifier доставляет новые оповещения внешним потребителям
type AlertNotifier interface {
	PublishAlert(ctx context.Context, alert models.Alert) error
}

// InsightSubmitter очередь фоновой аналитики
type InsightSubmitter interface {
	Submit(job analytics.InsightJob) bool
}

// Result ответ устройству на принятое показание
type Result struct {
	Success   bool                `json:"success"`
	Status    models.HealthStatus `json:"status"`
	Icon      string              `json:"icon"`
	Message   string              `json:"message"`
	ReadingID string              `json:"reading_id"`
}

// DeviceConfig параметры регистрации устройства
type DeviceConfig struct {
	Type        models.DeviceType `json:"type"`
	TempMin     *float64          `json:"temp_min,omitempty"`
	TempMax     *float64          `json:"temp_max,omitempty"`
	HumidityMin *float64          `json:"humidity_min,omitempty"`
	HumidityMax *float64          `json:"humidity_max,omitempty"`
	InstallDate *time.Time        `json:"install_date,omitempty"`
	Position    *models.Position  `json:"position,omitempty"`
}

// Service конвейер приема показаний
type Service struct {
	store        DeviceStore
	notifier     AlertNotifier
	insights     InsightSubmitter
	logger       *zap.Logger
	locks        *deviceLocks
	historyLimit int64
	now          func() time.Time
}

// NewService создает конвейер. notifier и insights могут быть nil.
func NewService(st DeviceStore, notifier AlertNotifier, insights InsightSubmitter, logger *zap.Logger, historyLimit int64) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if historyLimit <= 0 {
		historyLimit = store.DefaultHistoryLimit
	}
	return &Service{
		store:        st,
		notifier:     notifier,
		insights:     insights,
		logger:       logger,
		locks:        newDeviceLocks(),
		historyLimit: historyLimit,
		now:          time.Now,
	}
}

// RegisterDevice создает устройство или обновляет конфигурацию существующего.
// Состояние (статус, защелка, последние значения) при обновлении сохраняется.
func (s *Service) RegisterDevice(ctx context.Context, deviceID string, cfg DeviceConfig) (*models.Device, error) {
	if err := validateConfig(deviceID, cfg); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(deviceID)
	defer unlock()

	device, err := s.store.GetDevice(ctx, deviceID)
	switch {
	case errors.Is(err, store.ErrDeviceNotFound):
		device = &models.Device{ID: deviceID, HealthStatus: models.StatusHealthy}
	case err != nil:
		return nil, s.storeError("get_device", err)
	}

	device.Type = cfg.Type
	device.TempMin = cfg.TempMin
	device.TempMax = cfg.TempMax
	device.HumidityMin = cfg.HumidityMin
	device.HumidityMax = cfg.HumidityMax
	if cfg.InstallDate != nil {
		device.InstallDate = cfg.InstallDate
	}
	if cfg.Position != nil {
		device.LastPosition = cfg.Position
	}

	if err := s.store.SaveDevice(ctx, *device); err != nil {
		return nil, s.storeError("save_device", err)
	}
	s.logger.Info("Device registered",
		zap.String("device_id", deviceID),
		zap.String("type", string(device.Type)),
	)
	return device, nil
}

func validateConfig(deviceID string, cfg DeviceConfig) error {
	if strings.TrimSpace(deviceID) == "" {
		return fmt.Errorf("%w: device id is required", ErrInvalidDevice)
	}
	if cfg.Type != models.DeviceFridge && cfg.Type != models.DeviceFreezer {
		return fmt.Errorf("%w: unsupported device type %q", ErrInvalidDevice, cfg.Type)
	}
	th := health.ThresholdsFor(models.Device{
		Type:        cfg.Type,
		TempMin:     cfg.TempMin,
		TempMax:     cfg.TempMax,
		HumidityMin: cfg.HumidityMin,
		HumidityMax: cfg.HumidityMax,
	})
	if th.TempMin >= th.TempMax {
		return fmt.Errorf("%w: temp_min must be below temp_max", ErrInvalidDevice)
	}
	if th.HumidityMin >= th.HumidityMax {
		return fmt.Errorf("%w: humidity_min must be below humidity_max", ErrInvalidDevice)
	}
	return nil
}

// Device возвращает снимок устройства
func (s *Service) Device(ctx context.Context, deviceID string) (*models.Device, error) {
	device, err := s.store.GetDevice(ctx, deviceID)
	if errors.Is(err, store.ErrDeviceNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	if err != nil {
		return nil, s.storeError("get_device", err)
	}
	return device, nil
}

// Ingest принимает одно показание устройства.
// Показания одного устройства обрабатываются строго последовательно.
func (s *Service) Ingest(ctx context.Context, deviceID string, payload Payload) (*Result, error) {
	if strings.TrimSpace(deviceID) == "" {
		return nil, fmt.Errorf("%w: device id is required", ErrInvalidReading)
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(deviceID)
	defer unlock()

	device, err := s.Device(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	recent, err := s.store.RecentReadings(ctx, deviceID, health.ContextWindow)
	if err != nil {
		return nil, s.storeError("recent_readings", err)
	}

	now := s.now()
	reading := models.Reading{
		ID:           uuid.NewString(),
		DeviceID:     deviceID,
		Temperature:  *payload.Temperature,
		Humidity:     *payload.Humidity,
		Timestamp:    now,
		Position:     payload.Position(),
		GSMSignal:    payload.GSMSignal,
		BatteryLevel: payload.BatteryLevel,
	}
	if payload.Timestamp != nil && !payload.Timestamp.IsZero() {
		reading.Timestamp = *payload.Timestamp
	}

	check := health.Classify(reading, *device, recent, now)
	status, latched := health.ApplyClassification(*device, check)
	reading.HealthStatus = status

	count, err := s.store.AppendReading(ctx, reading)
	if err != nil {
		return nil, s.storeError("append_reading", err)
	}

	previousPosition := device.LastPosition
	device.HealthStatus = status
	device.NeedsManualReset = latched
	device.LastSeenAt = &now
	device.LastTemperature = &reading.Temperature
	device.LastHumidity = &reading.Humidity
	if reading.Position != nil {
		device.LastPosition = reading.Position
	}
	if err := s.store.SaveDevice(ctx, *device); err != nil {
		return nil, s.storeError("save_device", err)
	}

	metrics.ReadingsIngested.Inc()
	metrics.HealthStatusTotal.WithLabelValues(string(status)).Inc()

	if reading.Position != nil && health.HasMoved(previousPosition, *reading.Position, health.DefaultMoveThresholdMeters) {
		s.raiseAlert(ctx, models.Alert{
			DeviceID: deviceID,
			Type:     models.AlertGPSMoved,
			Severity: models.AlertSeverityHigh,
			Title:    "Device Location Changed",
			Message: fmt.Sprintf("Location changed from (%.6f, %.6f) to (%.6f, %.6f)",
				previousPosition.Lat, previousPosition.Lon, reading.Position.Lat, reading.Position.Lon),
		})
	}

	if check.Status == models.StatusNotHealthy {
		s.raiseReasonAlerts(ctx, *device, reading, check.Reasons)
	}

	if count >= InsightMinHistory && count%InsightEvery == 0 {
		s.submitInsights(ctx, *device, now)
	}

	message := "OK"
	if len(check.Reasons) > 0 {
		message = check.Reasons[0]
	}

	s.logger.Debug("Reading ingested",
		zap.String("device_id", deviceID),
		zap.String("status", string(status)),
		zap.Bool("latched", latched),
		zap.Float64("temperature", reading.Temperature),
		zap.Float64("humidity", reading.Humidity),
	)

	return &Result{
		Success:   true,
		Status:    status,
		Icon:      status.Icon(),
		Message:   message,
		ReadingID: reading.ID,
	}, nil
}

// raiseReasonAlerts создает по одному CRITICAL оповещению на каждую причину
// с распознанным типом
func (s *Service) raiseReasonAlerts(ctx context.Context, device models.Device, reading models.Reading, reasons []string) {
	th := health.ThresholdsFor(device)
	for _, reason := range reasons {
		alertType, ok := alertTypeFor(reason)
		if !ok {
			continue
		}

		trigger := reading.Temperature
		var threshold float64
		switch alertType {
		case models.AlertTemperatureHigh:
			threshold = th.TempMax
		case models.AlertTemperatureLow:
			threshold = th.TempMin
		case models.AlertHumidityHigh:
			trigger, threshold = reading.Humidity, th.HumidityMax
		case models.AlertHumidityLow:
			trigger, threshold = reading.Humidity, th.HumidityMin
		}

		s.raiseAlert(ctx, models.Alert{
			DeviceID:       device.ID,
			Type:           alertType,
			Severity:       models.AlertSeverityCritical,
			Title:          "Temperature/Humidity Alert",
			Message:        reason,
			TriggerValue:   &trigger,
			ThresholdValue: &threshold,
		})
	}
}

// alertTypeFor определяет тип оповещения по тексту причины классификатора
func alertTypeFor(reason string) (models.AlertType, bool) {
	humidity := strings.HasPrefix(reason, "Humidity")
	switch {
	case humidity && strings.Contains(reason, "exceeds maximum"):
		return models.AlertHumidityHigh, true
	case humidity && strings.Contains(reason, "below minimum"):
		return models.AlertHumidityLow, true
	case strings.Contains(reason, "exceeds maximum"):
		return models.AlertTemperatureHigh, true
	case strings.Contains(reason, "below minimum"):
		return models.AlertTemperatureLow, true
	default:
		return "", false
	}
}

// raiseAlert сохраняет оповещение, если активного оповещения того же типа нет,
// и передает его в notifier
func (s *Service) raiseAlert(ctx context.Context, alert models.Alert) {
	alert.ID = uuid.NewString()
	alert.CreatedAt = s.now()

	created, err := s.store.RaiseAlert(ctx, alert)
	if err != nil {
		s.storeError("raise_alert", err)
		return
	}
	if !created {
		return
	}

	metrics.AlertsRaised.WithLabelValues(string(alert.Type)).Inc()
	s.logger.Warn("Alert raised",
		zap.String("device_id", alert.DeviceID),
		zap.String("type", string(alert.Type)),
		zap.String("severity", string(alert.Severity)),
		zap.String("message", alert.Message),
	)

	if s.notifier == nil {
		return
	}
	if err := s.notifier.PublishAlert(ctx, alert); err != nil {
		s.logger.Error("Failed to publish alert",
			zap.String("device_id", alert.DeviceID),
			zap.String("alert_id", alert.ID),
			zap.Error(err),
		)
	}
}

// submitInsights ставит построение отчета в очередь анализатора
func (s *Service) submitInsights(ctx context.Context, device models.Device, now time.Time) bool {
	if s.insights == nil {
		return false
	}
	history, err := s.store.RecentReadings(ctx, device.ID, s.historyLimit)
	if err != nil {
		s.storeError("recent_readings", err)
		return false
	}

	ok := s.insights.Submit(analytics.InsightJob{
		DeviceID:      device.ID,
		DeviceType:    device.Type,
		DeviceAgeDays: device.AgeDays(now),
		Readings:      history,
	})
	if !ok {
		metrics.InsightQueueDropped.Inc()
		s.logger.Warn("Insight queue is full, job dropped", zap.String("device_id", device.ID))
	}
	return ok
}

// Reset ручной сброс оператором: статус HEALTHY, защелка снята,
// активные оповещения закрыты
func (s *Service) Reset(ctx context.Context, deviceID string) (*models.Device, error) {
	unlock := s.locks.lock(deviceID)
	defer unlock()

	device, err := s.Device(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	device.HealthStatus, device.NeedsManualReset = health.ClearLatch()
	if err := s.store.SaveDevice(ctx, *device); err != nil {
		return nil, s.storeError("save_device", err)
	}
	if err := s.store.ResolveAlerts(ctx, deviceID); err != nil {
		return nil, s.storeError("resolve_alerts", err)
	}

	s.logger.Info("Device reset by operator", zap.String("device_id", deviceID))
	return device, nil
}

// SweepOffline переводит в OFFLINE устройства, молчащие дольше health.OfflineTimeout.
// Возвращает количество устройств, у которых сменился статус.
func (s *Service) SweepOffline(ctx context.Context) (int, error) {
	devices, err := s.store.ListDevices(ctx)
	if err != nil {
		return 0, s.storeError("list_devices", err)
	}

	changed := 0
	for _, d := range devices {
		if d.LastSeenAt == nil || d.HealthStatus == models.StatusOffline {
			continue
		}
		ok, err := s.markOffline(ctx, d.ID)
		if err != nil {
			s.logger.Error("Offline sweep failed for device", zap.String("device_id", d.ID), zap.Error(err))
			continue
		}
		if ok {
			changed++
		}
	}
	return changed, nil
}

func (s *Service) markOffline(ctx context.Context, deviceID string) (bool, error) {
	unlock := s.locks.lock(deviceID)
	defer unlock()

	// Снимок перечитывается под мьютексом: показание могло прийти после ListDevices
	device, err := s.Device(ctx, deviceID)
	if err != nil {
		return false, err
	}
	now := s.now()
	if device.LastSeenAt == nil || now.Sub(*device.LastSeenAt) <= health.OfflineTimeout {
		return false, nil
	}

	check := health.Classify(models.Reading{}, *device, nil, now)
	status, latched := health.ApplyClassification(*device, check)
	changed := status != device.HealthStatus
	if changed {
		device.HealthStatus = status
		device.NeedsManualReset = latched
		if err := s.store.SaveDevice(ctx, *device); err != nil {
			return false, s.storeError("save_device", err)
		}
	}

	// Оповещение дедуплицируется хранилищем, поэтому для зафиксированных
	// устройств оно тоже создается один раз
	silence := now.Sub(*device.LastSeenAt)
	minutes := silence.Minutes()
	s.raiseAlert(ctx, models.Alert{
		DeviceID:     deviceID,
		Type:         models.AlertOffline,
		Severity:     models.AlertSeverityHigh,
		Title:        "Device Offline",
		Message:      check.Reasons[0],
		TriggerValue: &minutes,
	})
	if changed {
		s.logger.Info("Device marked offline",
			zap.String("device_id", deviceID),
			zap.Duration("silence", silence),
			zap.String("status", string(status)),
		)
	}
	return changed, nil
}

// RefreshInsights ставит в очередь отчеты по всем устройствам с достаточной историей.
// Возвращает количество принятых заданий.
func (s *Service) RefreshInsights(ctx context.Context) (int, error) {
	devices, err := s.store.ListDevices(ctx)
	if err != nil {
		return 0, s.storeError("list_devices", err)
	}

	now := s.now()
	submitted := 0
	for _, d := range devices {
		if d.LastSeenAt == nil {
			continue
		}
		if s.submitInsights(ctx, d, now) {
			submitted++
		}
	}
	return submitted, nil
}

// Insights возвращает кэшированный отчет или строит его синхронно.
// refresh=true игнорирует кэш.
func (s *Service) Insights(ctx context.Context, deviceID string, refresh bool) (analytics.InsightReport, error) {
	device, err := s.Device(ctx, deviceID)
	if err != nil {
		return analytics.InsightReport{}, err
	}

	if !refresh {
		report, ok, err := s.store.GetInsights(ctx, deviceID)
		if err != nil {
			s.storeError("get_insights", err)
		} else if ok {
			return report, nil
		}
	}

	history, err := s.store.RecentReadings(ctx, deviceID, s.historyLimit)
	if err != nil {
		return analytics.InsightReport{}, s.storeError("recent_readings", err)
	}

	start := s.now()
	report := analytics.InsightReport{
		DeviceID:    deviceID,
		GeneratedAt: start,
		Insights:    analytics.GenerateInsights(history, device.Type, device.AgeDays(start)),
	}
	report.Duration = s.now().Sub(start)
	metrics.InsightLatency.Observe(report.Duration.Seconds())

	if err := s.store.SaveInsights(ctx, report); err != nil {
		s.storeError("save_insights", err)
	}
	return report, nil
}

// Readings возвращает до count последних показаний устройства
func (s *Service) Readings(ctx context.Context, deviceID string, count int64) ([]models.Reading, error) {
	if _, err := s.Device(ctx, deviceID); err != nil {
		return nil, err
	}
	readings, err := s.store.RecentReadings(ctx, deviceID, count)
	if err != nil {
		return nil, s.storeError("recent_readings", err)
	}
	return readings, nil
}

// Alerts возвращает активные оповещения устройства
func (s *Service) Alerts(ctx context.Context, deviceID string) ([]models.Alert, error) {
	if _, err := s.Device(ctx, deviceID); err != nil {
		return nil, err
	}
	alerts, err := s.store.ActiveAlerts(ctx, deviceID)
	if err != nil {
		return nil, s.storeError("active_alerts", err)
	}
	return alerts, nil
}

// FleetStats считает устройства по статусам и долю исправных
func (s *Service) FleetStats(ctx context.Context) (models.FleetStats, error) {
	devices, err := s.store.ListDevices(ctx)
	if err != nil {
		return models.FleetStats{}, s.storeError("list_devices", err)
	}

	stats := models.FleetStats{TotalDevices: len(devices)}
	statuses := make([]models.HealthStatus, 0, len(devices))
	for _, d := range devices {
		statuses = append(statuses, d.HealthStatus)
		switch d.HealthStatus {
		case models.StatusHealthy:
			stats.HealthyDevices++
		case models.StatusWarning:
			stats.WarningDevices++
		case models.StatusNotHealthy:
			stats.UnhealthyDevices++
		case models.StatusOffline:
			stats.OfflineDevices++
		}
		if health.LatchStateOf(d) == health.LatchLatched {
			stats.LatchedDevices++
		}
	}
	stats.ComplianceRate = health.ComplianceRate(statuses)

	stats.ReadingsTotal, stats.AlertsTotal, err = s.store.Counters(ctx)
	if err != nil {
		return models.FleetStats{}, s.storeError("counters", err)
	}

	metrics.UpdateFleetMetrics(stats)
	return stats, nil
}

// SaveReport сохраняет отчет, построенный анализатором
func (s *Service) SaveReport(ctx context.Context, report analytics.InsightReport) error {
	if err := s.store.SaveInsights(ctx, report); err != nil {
		return s.storeError("save_insights", err)
	}
	metrics.InsightReports.Inc()
	metrics.InsightLatency.Observe(report.Duration.Seconds())

	if len(report.Insights.Alerts) == 0 {
		return nil
	}
	s.raiseAlert(ctx, models.Alert{
		DeviceID: report.DeviceID,
		Type:     models.AlertPredictive,
		Severity: models.AlertSeverityHigh,
		Title:    "Predictive Maintenance Alert",
		Message:  strings.Join(report.Insights.Alerts, "; "),
	})
	return nil
}

func (s *Service) storeError(op string, err error) error {
	metrics.StoreErrors.WithLabelValues(op).Inc()
	s.logger.Error("Store operation failed", zap.String("operation", op), zap.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}
