package ingest

import (
	"fmt"
	"math"
	"time"

	"healthytag-service/internal/models"
)

// Payload телеметрия от устройства в формате прошивки
type Payload struct {
	DeviceID     string     `json:"device_id,omitempty"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
	Temperature  *float64   `json:"temp"`
	Humidity     *float64   `json:"humidity"`
	Lat          *float64   `json:"lat,omitempty"`
	Lon          *float64   `json:"lon,omitempty"`
	GSMSignal    *int       `json:"gsm_signal,omitempty"`
	BatteryLevel *int       `json:"battery_level,omitempty"`
}

// Validate проверяет обязательные поля показания
func (p Payload) Validate() error {
	if p.Temperature == nil || p.Humidity == nil {
		return fmt.Errorf("%w: temp and humidity are required", ErrInvalidReading)
	}
	if !finite(*p.Temperature) {
		return fmt.Errorf("%w: temperature is not a finite number", ErrInvalidReading)
	}
	if !finite(*p.Humidity) {
		return fmt.Errorf("%w: humidity is not a finite number", ErrInvalidReading)
	}
	return nil
}

// Position возвращает координаты, если переданы обе
func (p Payload) Position() *models.Position {
	if p.Lat == nil || p.Lon == nil || !finite(*p.Lat) || !finite(*p.Lon) {
		return nil
	}
	return &models.Position{Lat: *p.Lat, Lon: *p.Lon}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
