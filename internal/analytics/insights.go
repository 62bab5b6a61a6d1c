package analytics

import (
	"fmt"
	"math"
	"strings"

	"healthytag-service/internal/health"
	"healthytag-service/internal/models"
)

// InsightsMinReadings минимальная история для сводного отчета
const InsightsMinReadings = 10

// GenerateInsights объединяет все детекторы в оценку здоровья устройства (0-100),
// список наблюдений и тревог. Единственная точка входа аналитики для внешних вызовов.
func GenerateInsights(readings []models.Reading, deviceType models.DeviceType, deviceAgeDays float64) models.Insights {
	if len(readings) < InsightsMinReadings {
		return models.Insights{
			Summary:     "Insufficient data for AI analysis",
			HealthScore: 50,
			Insights:    []string{"Need more readings for comprehensive analysis"},
			Alerts:      []string{},
		}
	}

	sorted := health.SortAscending(readings)
	insights := []string{}
	alerts := []string{}
	score := 100.0

	current := sorted[len(sorted)-1]
	if anomaly := DetectAnomalies(current, sorted[:len(sorted)-1], deviceType); anomaly.IsAnomaly {
		description := anomaly.Description
		if description == "" {
			description = "Anomaly detected"
		}
		alerts = append(alerts, description)
		score -= anomaly.Score * 0.3
	}

	prediction := PredictFailure(sorted, deviceType, deviceAgeDays)
	if prediction.PredictedFailure {
		alerts = append(alerts, fmt.Sprintf("Potential %s failure predicted", prediction.FailureType))
		if prediction.TimeToFailureHours > 0 {
			alerts = append(alerts, fmt.Sprintf("Estimated time to failure: %s hours", formatNumber(prediction.TimeToFailureHours)))
		}
		score -= prediction.FailureProbability * 40
	}
	insights = append(insights, prediction.Recommendations...)

	if pattern := DetectPatterns(sorted, DefaultPatternRangeHours); pattern.Pattern != models.PatternNone {
		description := pattern.Description
		if description == "" {
			description = fmt.Sprintf("Pattern detected: %s", pattern.Pattern)
		}
		insights = append(insights, description)
		score -= (1 - pattern.Confidence) * 10
	}

	if baseline := LearnBaseline(sorted); len(baseline.PeakHours) > 0 {
		hours := make([]string, len(baseline.PeakHours))
		for i, h := range baseline.PeakHours {
			hours[i] = fmt.Sprintf("%d:00", h)
		}
		insights = append(insights, "High activity typically occurs at: "+strings.Join(hours, ", "))
	}

	return models.Insights{
		Summary:     summarize(score),
		HealthScore: clampScore(score),
		Insights:    insights,
		Alerts:      alerts,
	}
}

func summarize(score float64) string {
	switch {
	case score >= 90:
		return "Device operating optimally with no concerns"
	case score >= 70:
		return "Device mostly healthy with minor observations"
	case score >= 50:
		return "Device requires attention - some issues detected"
	default:
		return "Critical issues detected - immediate action required"
	}
}

func clampScore(score float64) int {
	return int(math.Max(0, math.Min(100, math.Round(score))))
}
