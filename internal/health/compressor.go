package health

import (
	"sort"

	"healthytag-service/internal/models"
)

// CompressorMinReadings минимальное число показаний для анализа компрессора
const CompressorMinReadings = 10

// compressorRule одна проверка цепочки: первая сработавшая определяет паттерн
type compressorRule struct {
	pattern models.CompressorPattern
	match   func(temps []float64, tempMax float64) bool
}

var compressorRules = []compressorRule{
	{models.CompressorGradualRise, isGradualRise},
	{models.CompressorExcessiveCycling, isExcessiveCycling},
	{models.CompressorStrugglingToCool, isStrugglingToCool},
}

// DetectCompressorIssue ищет в температурном ряде признаки отказа компрессора.
// Верхняя граница берется из значений по умолчанию для типа устройства.
func DetectCompressorIssue(readings []models.Reading, deviceType models.DeviceType) models.CompressorCheck {
	if len(readings) < CompressorMinReadings {
		return models.CompressorCheck{}
	}

	temps := SortedTemperatures(readings)
	tempMax := DefaultThresholds(deviceType).TempMax

	for _, rule := range compressorRules {
		if rule.match(temps, tempMax) {
			return models.CompressorCheck{HasIssue: true, Pattern: rule.pattern}
		}
	}
	return models.CompressorCheck{}
}

// SortedTemperatures возвращает температуры, упорядоченные по времени показаний
func SortedTemperatures(readings []models.Reading) []float64 {
	sorted := SortAscending(readings)
	temps := make([]float64, len(sorted))
	for i, r := range sorted {
		temps[i] = r.Temperature
	}
	return temps
}

// SortAscending возвращает копию показаний, упорядоченную по возрастанию времени
func SortAscending(readings []models.Reading) []models.Reading {
	sorted := make([]models.Reading, len(readings))
	copy(sorted, readings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

// isGradualRise: рост между соседними точками больше чем в 80% случаев
// (доля считается от общего числа показаний)
func isGradualRise(temps []float64, _ float64) bool {
	rising := 0
	for i := 1; i < len(temps); i++ {
		if temps[i] > temps[i-1] {
			rising++
		}
	}
	return float64(rising) > float64(len(temps))*0.8
}

// isExcessiveCycling: локальных экстремумов больше половины ряда
func isExcessiveCycling(temps []float64, _ float64) bool {
	extrema := 0
	for i := 2; i < len(temps); i++ {
		prev, curr, next := temps[i-2], temps[i-1], temps[i]
		if (curr > prev && curr > next) || (curr < prev && curr < next) {
			extrema++
		}
	}
	return float64(extrema) > float64(len(temps))*0.5
}

// isStrugglingToCool: больше 70% показаний в пределах градуса от верхней границы
func isStrugglingToCool(temps []float64, tempMax float64) bool {
	near := 0
	for _, t := range temps {
		if t >= tempMax-1 {
			near++
		}
	}
	return float64(near) > float64(len(temps))*0.7
}
