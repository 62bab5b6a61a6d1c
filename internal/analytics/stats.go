// Package analytics реализует предиктивную аналитику по истории показаний:
// детекцию аномалий по z-score, прогноз отказов, распознавание паттернов,
// обучение базовой линии и сводные отчеты по устройству
package analytics

import (
	"math"

	"healthytag-service/internal/models"
)

// Stats статистика числовой последовательности (дисперсия генеральной совокупности)
type Stats struct {
	Mean     float64
	Variance float64
	StdDev   float64
	Min      float64
	Max      float64
}

// Summarize вычисляет статистику; для пустого ряда все поля нулевые
func Summarize(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	sum := 0.0
	min, max := values[0], values[0]
	for _, v := range values {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	mean := sum / float64(len(values))

	sumSq := 0.0
	for _, v := range values {
		sumSq += (v - mean) * (v - mean)
	}
	variance := sumSq / float64(len(values))

	return Stats{
		Mean:     mean,
		Variance: variance,
		StdDev:   math.Sqrt(variance),
		Min:      min,
		Max:      max,
	}
}

// ZScore модуль отклонения value от среднего в единицах stddev (0 при stddev == 0)
func (s Stats) ZScore(value float64) float64 {
	if s.StdDev <= 0 {
		return 0
	}
	return math.Abs((value - s.Mean) / s.StdDev)
}

func temperatures(readings []models.Reading) []float64 {
	values := make([]float64, len(readings))
	for i, r := range readings {
		values[i] = r.Temperature
	}
	return values
}

func humidities(readings []models.Reading) []float64 {
	values := make([]float64, len(readings))
	for i, r := range readings {
		values[i] = r.Humidity
	}
	return values
}
