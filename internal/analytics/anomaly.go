package analytics

import (
	"fmt"
	"math"

	"healthytag-service/internal/models"
)

const (
	// AnomalyMinHistory минимальная история для детекции аномалий
	AnomalyMinHistory = 10
	// ZScoreThreshold порог z-score для температуры и влажности (> 2.5σ)
	ZScoreThreshold = 2.5
	// RateWindowMinutes окно, в котором считается скорость изменения температуры
	RateWindowMinutes = 10.0
	// MaxRatePerMinute допустимая скорость изменения (°C/мин)
	MaxRatePerMinute = 0.5
	// AnomalyScoreThreshold балл, выше которого показание считается аномальным
	AnomalyScoreThreshold = 50.0
)

// anomalyBaseline статистика истории, общая для всех проверок
type anomalyBaseline struct {
	temp  Stats
	humid Stats
}

// anomalyCheck кандидат на аномалию; проверки выполняются по порядку,
// результат с большим баллом замещает предыдущий
type anomalyCheck func(current models.Reading, history []models.Reading, base anomalyBaseline) (models.AnomalyResult, bool)

var anomalyChecks = []anomalyCheck{
	temperatureOutlier,
	humidityOutlier,
	rapidTemperatureChange,
}

// DetectAnomalies сравнивает текущее показание с историей устройства.
// history упорядочена по возрастанию времени; последний элемент - предыдущее показание.
// Сообщается только один тип аномалии - с наибольшим баллом.
func DetectAnomalies(current models.Reading, history []models.Reading, deviceType models.DeviceType) models.AnomalyResult {
	if len(history) < AnomalyMinHistory {
		return models.AnomalyResult{}
	}

	base := anomalyBaseline{
		temp:  Summarize(temperatures(history)),
		humid: Summarize(humidities(history)),
	}

	best := models.AnomalyResult{}
	for _, check := range anomalyChecks {
		candidate, ok := check(current, history, base)
		if ok && candidate.Score > best.Score {
			best = candidate
		}
	}

	best.IsAnomaly = best.Score > AnomalyScoreThreshold
	best.Score = math.Round(best.Score)
	return best
}

func temperatureOutlier(current models.Reading, _ []models.Reading, base anomalyBaseline) (models.AnomalyResult, bool) {
	z := base.temp.ZScore(current.Temperature)
	if z <= ZScoreThreshold {
		return models.AnomalyResult{}, false
	}
	return models.AnomalyResult{
		Score:       math.Min(100, z/ZScoreThreshold*50),
		Type:        models.AnomalyTemperature,
		Description: fmt.Sprintf("Temperature %s°C is %.1f standard deviations from normal", formatNumber(current.Temperature), z),
	}, true
}

func humidityOutlier(current models.Reading, _ []models.Reading, base anomalyBaseline) (models.AnomalyResult, bool) {
	z := base.humid.ZScore(current.Humidity)
	if z <= ZScoreThreshold {
		return models.AnomalyResult{}, false
	}
	return models.AnomalyResult{
		Score:       math.Min(100, z/ZScoreThreshold*50),
		Type:        models.AnomalyHumidity,
		Description: fmt.Sprintf("Humidity %s%% is %.1f standard deviations from normal", formatNumber(current.Humidity), z),
	}, true
}

func rapidTemperatureChange(current models.Reading, history []models.Reading, _ anomalyBaseline) (models.AnomalyResult, bool) {
	if len(history) < 2 {
		return models.AnomalyResult{}, false
	}
	last := history[len(history)-1]
	minutes := current.Timestamp.Sub(last.Timestamp).Minutes()
	if minutes <= 0 || minutes > RateWindowMinutes {
		return models.AnomalyResult{}, false
	}

	rate := math.Abs(current.Temperature-last.Temperature) / minutes
	if rate <= MaxRatePerMinute {
		return models.AnomalyResult{}, false
	}
	return models.AnomalyResult{
		Score:       math.Min(100, rate*30),
		Type:        models.AnomalyRapidChange,
		Description: fmt.Sprintf("Temperature changing at %.1f°C/hour", rate*60),
	}, true
}
