package analytics

import (
	"fmt"

	"healthytag-service/internal/health"
	"healthytag-service/internal/models"
)

const (
	// PatternMinReadings минимальное число показаний для распознавания паттернов
	PatternMinReadings = 10
	// DefaultPatternRangeHours окно, которое обычно покрывает переданная история
	DefaultPatternRangeHours = 24

	doorWindow      = 5
	doorSpikeDelta  = 3.0
	powerSpikeDelta = 5.0
	powerMinEvents  = 2
	defrostHumidity = 80.0
	defrostMinShare = 0.3
)

// patternRule одна проверка цепочки: первая сработавшая определяет результат
type patternRule func(sorted []models.Reading) (models.PatternResult, bool)

var patternRules = []patternRule{
	doorLeftOpen,
	powerInstability,
	defrostIssues,
}

// DetectPatterns ищет эксплуатационные паттерны во всей переданной истории.
// timeRangeHours описывает окно, из которого вызывающая сторона взяла показания;
// сами показания по времени не отбрасываются.
func DetectPatterns(readings []models.Reading, timeRangeHours int) models.PatternResult {
	sorted := health.SortAscending(readings)
	if len(sorted) < PatternMinReadings {
		return models.PatternResult{}
	}

	for _, rule := range patternRules {
		if result, ok := rule(sorted); ok {
			return result
		}
	}
	return models.PatternResult{}
}

// doorLeftOpen: резкий скачок с частичным (не полным) восстановлением.
// Проверяются индексы [doorWindow, n-doorWindow): окно после пика включает сам пик.
func doorLeftOpen(sorted []models.Reading) (models.PatternResult, bool) {
	for i := doorWindow; i < len(sorted)-doorWindow; i++ {
		before := Summarize(temperatures(sorted[i-doorWindow : i])).Mean
		peak := sorted[i].Temperature
		after := Summarize(temperatures(sorted[i : i+doorWindow])).Mean

		if peak > before+doorSpikeDelta && after < peak && after > before {
			return models.PatternResult{
				Pattern:     models.PatternDoorLeftOpen,
				Confidence:  0.8,
				Description: "Pattern indicates door was opened and left ajar, causing temperature spike with slow recovery",
			}, true
		}
	}
	return models.PatternResult{}, false
}

// powerInstability: кратковременные пики выше обоих соседей больше чем на 5°C
func powerInstability(sorted []models.Reading) (models.PatternResult, bool) {
	events := 0
	for i := 1; i < len(sorted)-1; i++ {
		prev, curr, next := sorted[i-1].Temperature, sorted[i].Temperature, sorted[i+1].Temperature
		if curr > prev+powerSpikeDelta && curr > next+powerSpikeDelta {
			events++
		}
	}
	if events < powerMinEvents {
		return models.PatternResult{}, false
	}
	return models.PatternResult{
		Pattern:     models.PatternPowerInstability,
		Confidence:  0.7,
		Description: fmt.Sprintf("Detected %d potential power interruption events", events),
	}, true
}

func defrostIssues(sorted []models.Reading) (models.PatternResult, bool) {
	humid := 0
	for _, r := range sorted {
		if r.Humidity > defrostHumidity {
			humid++
		}
	}
	if float64(humid) <= float64(len(sorted))*defrostMinShare {
		return models.PatternResult{}, false
	}
	return models.PatternResult{
		Pattern:     models.PatternDefrostIssues,
		Confidence:  0.6,
		Description: "Frequent high humidity readings suggest defrost cycle problems",
	}, true
}
