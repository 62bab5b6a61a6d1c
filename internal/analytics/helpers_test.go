package analytics

import (
	"math"
	"time"

	"healthytag-service/internal/models"
)

var baseTime = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func series(temps []float64, humidity float64, step time.Duration) []models.Reading {
	readings := make([]models.Reading, len(temps))
	for i, temp := range temps {
		readings[i] = models.Reading{
			Temperature: temp,
			Humidity:    humidity,
			Timestamp:   baseTime.Add(time.Duration(i) * step),
		}
	}
	return readings
}

func constant(value float64, n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = value
	}
	return values
}

func rising(start, step float64, n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = start + float64(i)*step
	}
	return values
}

func alternating(a, b float64, n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		if i%2 == 0 {
			values[i] = a
		} else {
			values[i] = b
		}
	}
	return values
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
