package analytics

import (
	"math"

	"healthytag-service/internal/health"
	"healthytag-service/internal/models"
)

const (
	// PredictionMinReadings минимальная история для прогноза отказа
	PredictionMinReadings = 20
	// varianceWindow размер окна сравнения дисперсий
	varianceWindow = 20
	// endOfLifeDays возраст, после которого устройство близко к концу срока службы (5 лет)
	endOfLifeDays = 1825
	// agingDays возраст умеренного износа (3 года)
	agingDays = 1095
)

// compressorOutlook срок до отказа (часы) и рекомендации для паттерна компрессора
func compressorOutlook(pattern models.CompressorPattern) (float64, []string) {
	switch pattern {
	case models.CompressorGradualRise:
		return 48, []string{"Schedule compressor inspection immediately"}
	case models.CompressorExcessiveCycling:
		return 72, []string{"Check refrigerant levels", "Inspect thermostat"}
	case models.CompressorStrugglingToCool:
		return 24, []string{"Emergency maintenance required", "Prepare backup cold storage"}
	}
	return 0, nil
}

// prediction накапливает вклад независимых сигналов
type prediction struct {
	probability     float64
	failureType     models.FailureType
	hours           float64
	recommendations []string
}

// setOutlook выставляет тип и срок отказа, только если они еще не заданы
func (p *prediction) setOutlook(failureType models.FailureType, hours float64) {
	if p.failureType == models.FailureNone {
		p.failureType = failureType
	}
	if p.hours == 0 {
		p.hours = hours
	}
}

// PredictFailure оценивает вероятность отказа по истории показаний и возрасту устройства.
// Вероятность складывается из сигналов: паттерн компрессора, рост дисперсии,
// возраст и нестабильная влажность (уплотнитель двери).
func PredictFailure(readings []models.Reading, deviceType models.DeviceType, deviceAgeDays float64) models.PredictionResult {
	if len(readings) < PredictionMinReadings {
		return models.PredictionResult{
			Recommendations: []string{"Insufficient data for prediction"},
		}
	}

	sorted := health.SortAscending(readings)
	p := &prediction{recommendations: []string{}}

	if check := health.DetectCompressorIssue(sorted, deviceType); check.HasIssue {
		p.probability += 0.4
		p.failureType = models.FailureCompressor
		hours, recommendations := compressorOutlook(check.Pattern)
		p.hours = hours
		p.recommendations = append(p.recommendations, recommendations...)
	}

	if varianceEscalating(sorted) {
		p.probability += 0.2
		p.recommendations = append(p.recommendations, "Temperature stability degrading - inspect seals and sensors")
	}

	if deviceAgeDays > endOfLifeDays {
		p.probability += 0.15
		p.recommendations = append(p.recommendations, "Device approaching end of expected lifespan")
	} else if deviceAgeDays > agingDays {
		p.probability += 0.05
	}

	humid := Summarize(humidities(sorted))
	if humid.Mean > 65 && humid.StdDev > 10 {
		p.probability += 0.1
		p.setOutlook(models.FailureDoorSeal, 168)
		p.recommendations = append(p.recommendations, "Door seal may be degrading - high humidity fluctuations detected")
	}

	return models.PredictionResult{
		FailureProbability: math.Min(1, p.probability),
		PredictedFailure:   p.probability > 0.5,
		FailureType:        p.failureType,
		TimeToFailureHours: p.hours,
		Confidence:         predictionConfidence(len(sorted)),
		Recommendations:    p.recommendations,
	}
}

// varianceEscalating: дисперсия последних 20 показаний вдвое выше дисперсии
// предыдущих 20 (нужно не меньше 10 более старых показаний)
func varianceEscalating(sorted []models.Reading) bool {
	n := len(sorted)
	recent := sorted[n-varianceWindow:]
	olderStart := n - 2*varianceWindow
	if olderStart < 0 {
		olderStart = 0
	}
	older := sorted[olderStart : n-varianceWindow]
	if len(older) < 10 {
		return false
	}

	recentVariance := Summarize(temperatures(recent)).Variance
	olderVariance := Summarize(temperatures(older)).Variance
	return recentVariance > olderVariance*2
}

// predictionConfidence растет с объемом данных от 0.2 до 1.0
func predictionConfidence(count int) float64 {
	return math.Min(1, float64(count)/100)*0.8 + 0.2
}
