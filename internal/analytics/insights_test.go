package analytics

import (
	"reflect"
	"testing"
	"time"

	"healthytag-service/internal/models"
)

func TestGenerateInsights_InsufficientData(t *testing.T) {
	result := GenerateInsights(series(constant(4, 9), 50, time.Minute), models.DeviceFridge, 0)
	if result.HealthScore != 50 {
		t.Errorf("Expected score 50, got %d", result.HealthScore)
	}
	if result.Summary != "Insufficient data for AI analysis" {
		t.Errorf("Unexpected summary %q", result.Summary)
	}
	if result.Alerts == nil || len(result.Alerts) != 0 {
		t.Errorf("Expected empty alerts, got %#v", result.Alerts)
	}
}

func TestGenerateInsights_Optimal(t *testing.T) {
	result := GenerateInsights(series(constant(4, 30), 50, time.Minute), models.DeviceFridge, 0)
	if result.HealthScore != 100 {
		t.Errorf("Expected 100, got %d", result.HealthScore)
	}
	if result.Summary != "Device operating optimally with no concerns" {
		t.Errorf("Unexpected summary %q", result.Summary)
	}
	if len(result.Insights) != 0 || len(result.Alerts) != 0 {
		t.Errorf("Expected no insights or alerts, got %v %v", result.Insights, result.Alerts)
	}
}

func TestGenerateInsights_PredictedFailure(t *testing.T) {
	result := GenerateInsights(series(rising(2, 0.1, 20), 50, time.Minute), models.DeviceFridge, 2000)

	wantAlerts := []string{
		"Potential COMPRESSOR failure predicted",
		"Estimated time to failure: 48 hours",
	}
	if !reflect.DeepEqual(result.Alerts, wantAlerts) {
		t.Errorf("Expected alerts %v, got %v", wantAlerts, result.Alerts)
	}
	wantInsights := []string{
		"Schedule compressor inspection immediately",
		"Device approaching end of expected lifespan",
	}
	if !reflect.DeepEqual(result.Insights, wantInsights) {
		t.Errorf("Expected insights %v, got %v", wantInsights, result.Insights)
	}
	if result.HealthScore != 78 {
		t.Errorf("Expected 78, got %d", result.HealthScore)
	}
	if result.Summary != "Device mostly healthy with minor observations" {
		t.Errorf("Unexpected summary %q", result.Summary)
	}
}

func TestGenerateInsights_AnomalyAndPattern(t *testing.T) {
	temps := append(constant(4, 10), 4, 4, 12, 4, 4, 4, 12, 4, 4, 4, 4)
	temps = append(temps, 9)
	result := GenerateInsights(series(temps, 50, time.Minute), models.DeviceFridge, 0)

	wantAlerts := []string{"Temperature changing at 300.0°C/hour"}
	if !reflect.DeepEqual(result.Alerts, wantAlerts) {
		t.Fatalf("Expected alerts %v, got %v", wantAlerts, result.Alerts)
	}
	wantInsights := []string{
		"Pattern indicates door was opened and left ajar, causing temperature spike with slow recovery",
	}
	if !reflect.DeepEqual(result.Insights, wantInsights) {
		t.Errorf("Expected insights %v, got %v", wantInsights, result.Insights)
	}
	// 100 - 100*0.3 - (1-0.8)*10
	if result.HealthScore != 68 {
		t.Errorf("Expected 68, got %d", result.HealthScore)
	}
	if result.Summary != "Device requires attention - some issues detected" {
		t.Errorf("Unexpected summary %q", result.Summary)
	}
}

func TestGenerateInsights_PatternOutsideLastDay(t *testing.T) {
	// Открытая дверь на шестом часе из сорока
	temps := append(constant(4, 5), 9, 8, 7, 6, 5)
	temps = append(temps, constant(4, 30)...)
	result := GenerateInsights(series(temps, 50, time.Hour), models.DeviceFridge, 0)

	wantInsights := []string{
		"Pattern indicates door was opened and left ajar, causing temperature spike with slow recovery",
	}
	if !reflect.DeepEqual(result.Insights, wantInsights) {
		t.Errorf("Expected insights %v, got %v", wantInsights, result.Insights)
	}
	if result.HealthScore != 98 {
		t.Errorf("Expected 98, got %d", result.HealthScore)
	}
}

func TestSummarizeBuckets(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{95, "Device operating optimally with no concerns"},
		{90, "Device operating optimally with no concerns"},
		{70, "Device mostly healthy with minor observations"},
		{50, "Device requires attention - some issues detected"},
		{49.9, "Critical issues detected - immediate action required"},
	}
	for _, tt := range tests {
		if got := summarize(tt.score); got != tt.want {
			t.Errorf("score %.1f: expected %q, got %q", tt.score, tt.want, got)
		}
	}
	if clampScore(-12) != 0 {
		t.Error("Score must not go below zero")
	}
}
