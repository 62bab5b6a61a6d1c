// Package health реализует классификацию состояния холодильного оборудования:
// пороговые проверки показаний, детекцию офлайна, геозону и защелку тревоги
package health

import (
	"strconv"
	"time"

	"healthytag-service/internal/models"
)

const (
	// WarningBuffer ширина зоны предупреждения у границ диапазона (°C)
	WarningBuffer = 1.0
	// OfflineTimeout время без данных, после которого устройство считается офлайн
	OfflineTimeout = 30 * time.Minute
	// RapidChangeWindow максимальный интервал между соседними показаниями для проверки скачка
	RapidChangeWindow = 5 * time.Minute
	// MaxTempVariance допустимое изменение температуры внутри RapidChangeWindow (°C)
	MaxTempVariance = 5.0
	// ContextWindow сколько последних показаний передается классификатору
	ContextWindow = 50

	DefaultHumidityMin = 30.0
	DefaultHumidityMax = 70.0
)

// Thresholds границы допустимого режима устройства
type Thresholds struct {
	TempMin     float64
	TempMax     float64
	HumidityMin float64
	HumidityMax float64
}

// DefaultThresholds возвращает границы по умолчанию для типа устройства.
// Неизвестный тип трактуется как холодильник.
func DefaultThresholds(t models.DeviceType) Thresholds {
	if t == models.DeviceFreezer {
		return Thresholds{TempMin: -25, TempMax: -18, HumidityMin: DefaultHumidityMin, HumidityMax: DefaultHumidityMax}
	}
	return Thresholds{TempMin: 2, TempMax: 8, HumidityMin: DefaultHumidityMin, HumidityMax: DefaultHumidityMax}
}

// ThresholdsFor дополняет незаданные границы устройства значениями по умолчанию
func ThresholdsFor(d models.Device) Thresholds {
	th := DefaultThresholds(d.Type)
	if d.TempMin != nil {
		th.TempMin = *d.TempMin
	}
	if d.TempMax != nil {
		th.TempMax = *d.TempMax
	}
	if d.HumidityMin != nil {
		th.HumidityMin = *d.HumidityMin
	}
	if d.HumidityMax != nil {
		th.HumidityMax = *d.HumidityMax
	}
	return th
}

// formatNumber печатает число без лишних нулей: 8 -> "8", 8.5 -> "8.5"
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
