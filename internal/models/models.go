// Package models содержит структуры данных устройств, показаний и результатов анализа
package models

import "time"

// DeviceType тип холодильного оборудования
type DeviceType string

const (
	DeviceFridge  DeviceType = "FRIDGE"
	DeviceFreezer DeviceType = "FREEZER"
)

// HealthStatus состояние устройства
type HealthStatus string

const (
	StatusHealthy    HealthStatus = "HEALTHY"
	StatusWarning    HealthStatus = "WARNING"
	StatusNotHealthy HealthStatus = "NOT_HEALTHY"
	StatusOffline    HealthStatus = "OFFLINE"
)

// Icon возвращает значок статуса для TFT-дисплея устройства
func (s HealthStatus) Icon() string {
	switch s {
	case StatusHealthy:
		return "✅"
	case StatusWarning:
		return "⚠️"
	case StatusNotHealthy:
		return "❌"
	case StatusOffline:
		return "📡"
	default:
		return "❓"
	}
}

// Severity уровень серьезности результата проверки
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Position географические координаты устройства
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Reading одно показание датчика
type Reading struct {
	ID           string       `json:"id,omitempty"`
	DeviceID     string       `json:"device_id,omitempty"`
	Temperature  float64      `json:"temperature"`
	Humidity     float64      `json:"humidity"`
	Timestamp    time.Time    `json:"timestamp"`
	Position     *Position    `json:"position,omitempty"`
	GSMSignal    *int         `json:"gsm_signal,omitempty"`
	BatteryLevel *int         `json:"battery_level,omitempty"`
	HealthStatus HealthStatus `json:"health_status,omitempty"`
}

// Device снимок конфигурации и состояния устройства
type Device struct {
	ID               string       `json:"id"`
	Type             DeviceType   `json:"type"`
	TempMin          *float64     `json:"temp_min,omitempty"`
	TempMax          *float64     `json:"temp_max,omitempty"`
	HumidityMin      *float64     `json:"humidity_min,omitempty"`
	HumidityMax      *float64     `json:"humidity_max,omitempty"`
	HealthStatus     HealthStatus `json:"health_status"`
	NeedsManualReset bool         `json:"needs_manual_reset"`
	LastSeenAt       *time.Time   `json:"last_seen_at,omitempty"`
	LastPosition     *Position    `json:"last_position,omitempty"`
	LastTemperature  *float64     `json:"last_temperature,omitempty"`
	LastHumidity     *float64     `json:"last_humidity,omitempty"`
	InstallDate      *time.Time   `json:"install_date,omitempty"`
}

// AgeDays возвращает возраст устройства в днях на момент now
func (d Device) AgeDays(now time.Time) float64 {
	if d.InstallDate == nil {
		return 0
	}
	return now.Sub(*d.InstallDate).Hours() / 24
}

// HealthCheckResult результат классификации одного показания
type HealthCheckResult struct {
	Status          HealthStatus `json:"status"`
	Reasons         []string     `json:"reasons"`
	Severity        Severity     `json:"severity"`
	Recommendations []string     `json:"recommendations"`
}

// AnomalyType тип обнаруженной аномалии
type AnomalyType string

const (
	AnomalyNone        AnomalyType = ""
	AnomalyTemperature AnomalyType = "TEMPERATURE_ANOMALY"
	AnomalyHumidity    AnomalyType = "HUMIDITY_ANOMALY"
	AnomalyRapidChange AnomalyType = "RAPID_CHANGE"
)

// AnomalyResult результат детекции аномалий
type AnomalyResult struct {
	IsAnomaly   bool        `json:"is_anomaly"`
	Score       float64     `json:"score"`
	Type        AnomalyType `json:"type,omitempty"`
	Description string      `json:"description,omitempty"`
}

// CompressorPattern форма температурного ряда, связанная с отказом компрессора
type CompressorPattern string

const (
	CompressorNone             CompressorPattern = ""
	CompressorGradualRise      CompressorPattern = "GRADUAL_RISE"
	CompressorExcessiveCycling CompressorPattern = "EXCESSIVE_CYCLING"
	CompressorStrugglingToCool CompressorPattern = "STRUGGLING_TO_COOL"
)

// CompressorCheck результат проверки компрессора
type CompressorCheck struct {
	HasIssue bool              `json:"has_issue"`
	Pattern  CompressorPattern `json:"pattern,omitempty"`
}

// FailureType прогнозируемый тип отказа
type FailureType string

const (
	FailureNone       FailureType = ""
	FailureCompressor FailureType = "COMPRESSOR"
	FailureDoorSeal   FailureType = "DOOR_SEAL"
)

// PredictionResult прогноз отказа оборудования
type PredictionResult struct {
	FailureProbability float64     `json:"failure_probability"`
	PredictedFailure   bool        `json:"predicted_failure"`
	FailureType        FailureType `json:"failure_type,omitempty"`
	// TimeToFailureHours равен нулю, если оценка не выставлена
	TimeToFailureHours float64     `json:"time_to_failure_hours,omitempty"`
	Confidence         float64     `json:"confidence"`
	Recommendations    []string    `json:"recommendations"`
}

// Pattern распознанный эксплуатационный паттерн
type Pattern string

const (
	PatternNone             Pattern = ""
	PatternDoorLeftOpen     Pattern = "DOOR_LEFT_OPEN"
	PatternPowerInstability Pattern = "POWER_INSTABILITY"
	PatternDefrostIssues    Pattern = "DEFROST_ISSUES"
)

// PatternResult результат распознавания паттернов
type PatternResult struct {
	Pattern     Pattern `json:"pattern,omitempty"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description,omitempty"`
}

// Range числовой диапазон
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Baseline выученный нормальный режим устройства
type Baseline struct {
	NormalTempRange  Range   `json:"normal_temp_range"`
	NormalHumidRange Range   `json:"normal_humid_range"`
	TypicalVariance  float64 `json:"typical_variance"`
	PeakHours        []int   `json:"peak_hours"`
}

// Insights сводный отчет по устройству
type Insights struct {
	Summary     string   `json:"summary"`
	HealthScore int      `json:"health_score"`
	Insights    []string `json:"insights"`
	Alerts      []string `json:"alerts"`
}

// AlertType тип оповещения
type AlertType string

const (
	AlertTemperatureHigh AlertType = "TEMPERATURE_HIGH"
	AlertTemperatureLow  AlertType = "TEMPERATURE_LOW"
	AlertHumidityHigh    AlertType = "HUMIDITY_HIGH"
	AlertHumidityLow     AlertType = "HUMIDITY_LOW"
	AlertGPSMoved        AlertType = "GPS_MOVED"
	AlertOffline         AlertType = "OFFLINE"
	AlertPredictive      AlertType = "PREDICTIVE"
)

// AlertSeverity серьезность оповещения
type AlertSeverity string

const (
	AlertSeverityHigh     AlertSeverity = "HIGH"
	AlertSeverityCritical AlertSeverity = "CRITICAL"
)

// Alert оповещение, сформированное вызывающей стороной из результатов движка
type Alert struct {
	ID             string        `json:"id"`
	DeviceID       string        `json:"device_id"`
	Type           AlertType     `json:"type"`
	Severity       AlertSeverity `json:"severity"`
	Title          string        `json:"title"`
	Message        string        `json:"message"`
	TriggerValue   *float64      `json:"trigger_value,omitempty"`
	ThresholdValue *float64      `json:"threshold_value,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// HealthResponse ответ проверки здоровья сервиса
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Redis     string    `json:"redis"`
	Uptime    string    `json:"uptime"`
}

// FleetStats статистика парка устройств
type FleetStats struct {
	TotalDevices     int   `json:"total_devices"`
	HealthyDevices   int   `json:"healthy_devices"`
	WarningDevices   int   `json:"warning_devices"`
	UnhealthyDevices int   `json:"unhealthy_devices"`
	OfflineDevices   int   `json:"offline_devices"`
	LatchedDevices   int   `json:"latched_devices"`
	ComplianceRate   int   `json:"compliance_rate"`
	ReadingsTotal    int64 `json:"readings_total"`
	AlertsTotal      int64 `json:"alerts_total"`
}
