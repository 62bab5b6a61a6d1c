package health

import (
	"fmt"
	"math"
	"sort"
	"time"

	"healthytag-service/internal/models"
)

// Classify оценивает одно показание относительно конфигурации устройства.
// recent - последние показания устройства (до ContextWindow), now - момент оценки.
// Функция чистая: результат зависит только от аргументов.
func Classify(reading models.Reading, device models.Device, recent []models.Reading, now time.Time) models.HealthCheckResult {
	if device.LastSeenAt != nil {
		silence := now.Sub(*device.LastSeenAt)
		if silence > OfflineTimeout {
			return models.HealthCheckResult{
				Status:   models.StatusOffline,
				Reasons:  []string{fmt.Sprintf("No data received for %d minutes", int64(math.Round(silence.Minutes())))},
				Severity: models.SeverityHigh,
				Recommendations: []string{
					"Check device connectivity",
					"Verify GSM signal",
					"Inspect power supply",
				},
			}
		}
	}

	th := ThresholdsFor(device)
	c := &classification{
		severity:        models.SeverityLow,
		reasons:         []string{},
		recommendations: []string{},
	}

	temp := reading.Temperature
	tempStr := formatNumber(temp)

	// Выход за диапазон
	if temp > th.TempMax {
		c.reasons = append(c.reasons, fmt.Sprintf("Temperature %s°C exceeds maximum %s°C", tempStr, formatNumber(th.TempMax)))
		c.severity = models.SeverityCritical
		c.recommendations = append(c.recommendations, "Check door seal", "Verify compressor operation", "Reduce ambient temperature")
	} else if temp < th.TempMin {
		c.reasons = append(c.reasons, fmt.Sprintf("Temperature %s°C below minimum %s°C", tempStr, formatNumber(th.TempMin)))
		c.severity = models.SeverityCritical
		c.recommendations = append(c.recommendations, "Check thermostat settings", "Verify temperature sensor")
	}

	// Зона предупреждения
	if temp >= th.TempMax-WarningBuffer && temp <= th.TempMax {
		c.reasons = append(c.reasons, fmt.Sprintf("Temperature %s°C approaching upper limit", tempStr))
		c.escalate(models.SeverityMedium)
	} else if temp <= th.TempMin+WarningBuffer && temp >= th.TempMin {
		c.reasons = append(c.reasons, fmt.Sprintf("Temperature %s°C approaching lower limit", tempStr))
		c.escalate(models.SeverityMedium)
	}

	humidity := reading.Humidity
	if humidity > th.HumidityMax {
		c.reasons = append(c.reasons, fmt.Sprintf("Humidity %s%% exceeds maximum %s%%", formatNumber(humidity), formatNumber(th.HumidityMax)))
		c.escalate(models.SeverityMedium)
		c.recommendations = append(c.recommendations, "Check door gasket", "Reduce frequency of door opening")
	} else if humidity < th.HumidityMin {
		c.reasons = append(c.reasons, fmt.Sprintf("Humidity %s%% below minimum %s%%", formatNumber(humidity), formatNumber(th.HumidityMin)))
		c.escalate(models.SeverityMedium)
	}

	if change, minutes, ok := findRapidChange(recent); ok {
		c.reasons = append(c.reasons, fmt.Sprintf("Rapid temperature change detected: %.1f°C in %.0f minutes", change, minutes))
		c.severity = models.SeverityHigh
		c.recommendations = append(c.recommendations, "Check if door was left open", "Inspect for power fluctuations")
	}

	return models.HealthCheckResult{
		Status:          c.status(),
		Reasons:         c.reasons,
		Severity:        c.severity,
		Recommendations: c.recommendations,
	}
}

type classification struct {
	severity        models.Severity
	reasons         []string
	recommendations []string
}

// escalate поднимает серьезность, не понижая critical
func (c *classification) escalate(to models.Severity) {
	if c.severity != models.SeverityCritical {
		c.severity = to
	}
}

func (c *classification) status() models.HealthStatus {
	switch {
	case len(c.reasons) == 0:
		return models.StatusHealthy
	case c.severity == models.SeverityCritical:
		return models.StatusNotHealthy
	case c.severity == models.SeverityHigh || c.severity == models.SeverityMedium:
		return models.StatusWarning
	default:
		return models.StatusHealthy
	}
}

// findRapidChange ищет первую пару соседних (по убыванию времени) показаний
// в пределах RapidChangeWindow с перепадом больше MaxTempVariance
func findRapidChange(recent []models.Reading) (change, minutes float64, ok bool) {
	if len(recent) < 2 {
		return 0, 0, false
	}
	sorted := make([]models.Reading, len(recent))
	copy(sorted, recent)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	for i := 0; i < len(sorted)-1; i++ {
		gap := sorted[i].Timestamp.Sub(sorted[i+1].Timestamp)
		if gap > RapidChangeWindow {
			continue
		}
		delta := math.Abs(sorted[i].Temperature - sorted[i+1].Temperature)
		if delta > MaxTempVariance {
			return delta, gap.Minutes(), true
		}
	}
	return 0, 0, false
}

// ComplianceRate доля исправных устройств в процентах (100 для пустого парка)
func ComplianceRate(statuses []models.HealthStatus) int {
	if len(statuses) == 0 {
		return 100
	}
	healthy := 0
	for _, s := range statuses {
		if s == models.StatusHealthy {
			healthy++
		}
	}
	return int(math.Round(float64(healthy) / float64(len(statuses)) * 100))
}
