package analytics

import (
	"sort"

	"healthytag-service/internal/models"
)

// BaselineMinReadings минимальная история для обучения базовой линии
const BaselineMinReadings = 50

// peakVarianceFactor во сколько раз дисперсия часа должна превышать среднюю
const peakVarianceFactor = 1.5

// DefaultBaseline базовая линия при недостатке данных
func DefaultBaseline() models.Baseline {
	return models.Baseline{
		NormalTempRange:  models.Range{Min: 2, Max: 8},
		NormalHumidRange: models.Range{Min: 30, Max: 70},
		TypicalVariance:  1,
		PeakHours:        []int{},
	}
}

// LearnBaseline определяет нормальные диапазоны (mean ± 2σ) и часы пиковой активности.
// Час берется из Timestamp в его собственной локации, поэтому вызывающая сторона
// переводит показания в локальное время устройства.
func LearnBaseline(readings []models.Reading) models.Baseline {
	if len(readings) < BaselineMinReadings {
		return DefaultBaseline()
	}

	temp := Summarize(temperatures(readings))
	humid := Summarize(humidities(readings))

	byHour := make(map[int][]float64)
	for _, r := range readings {
		hour := r.Timestamp.Hour()
		byHour[hour] = append(byHour[hour], r.Temperature)
	}

	// Суммируем в порядке часов, чтобы результат не зависел от обхода map
	hours := make([]int, 0, len(byHour))
	for hour := range byHour {
		hours = append(hours, hour)
	}
	sort.Ints(hours)

	hourVariance := make([]float64, len(hours))
	total := 0.0
	for i, hour := range hours {
		hourVariance[i] = Summarize(byHour[hour]).Variance
		total += hourVariance[i]
	}
	avg := total / float64(len(hours))

	peakHours := []int{}
	for i, hour := range hours {
		if hourVariance[i] > avg*peakVarianceFactor {
			peakHours = append(peakHours, hour)
		}
	}

	return models.Baseline{
		NormalTempRange:  models.Range{Min: temp.Mean - 2*temp.StdDev, Max: temp.Mean + 2*temp.StdDev},
		NormalHumidRange: models.Range{Min: humid.Mean - 2*humid.StdDev, Max: humid.Mean + 2*humid.StdDev},
		TypicalVariance:  temp.Variance,
		PeakHours:        peakHours,
	}
}
