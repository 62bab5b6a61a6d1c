package health

import (
	"math"

	"healthytag-service/internal/models"
)

const (
	// EarthRadiusMeters радиус Земли для формулы гаверсинуса
	EarthRadiusMeters = 6371e3
	// DefaultMoveThresholdMeters порог смещения по умолчанию
	DefaultMoveThresholdMeters = 100.0
)

// DistanceMeters расстояние по большому кругу между двумя точками
func DistanceMeters(a, b models.Position) float64 {
	phi1 := a.Lat * math.Pi / 180
	phi2 := b.Lat * math.Pi / 180
	dPhi := (b.Lat - a.Lat) * math.Pi / 180
	dLambda := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// HasMoved сообщает, сместилось ли устройство дальше порога.
// Без известной предыдущей позиции смещение не фиксируется.
func HasMoved(prev *models.Position, next models.Position, thresholdMeters float64) bool {
	if prev == nil {
		return false
	}
	return DistanceMeters(*prev, next) > thresholdMeters
}
