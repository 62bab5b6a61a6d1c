package analytics

import (
	"testing"
	"time"

	"healthytag-service/internal/models"
)

func TestDetectPatterns_InsufficientData(t *testing.T) {
	result := DetectPatterns(series(constant(4, 9), 50, time.Minute), DefaultPatternRangeHours)
	if result.Pattern != models.PatternNone || result.Confidence != 0 {
		t.Errorf("Expected no pattern, got %+v", result)
	}
}

func TestDetectPatterns(t *testing.T) {
	tests := []struct {
		name       string
		temps      []float64
		humidity   []float64
		want       models.Pattern
		confidence float64
	}{
		{
			name:       "door left open",
			temps:      []float64{4, 4, 4, 4, 4, 9, 8, 7, 6, 5, 4, 4, 4, 4, 4},
			want:       models.PatternDoorLeftOpen,
			confidence: 0.8,
		},
		{
			name:       "power instability",
			temps:      []float64{4, 4, 12, 4, 4, 4, 12, 4, 4, 4, 4, 4},
			want:       models.PatternPowerInstability,
			confidence: 0.7,
		},
		{
			name:       "defrost issues",
			temps:      constant(4, 10),
			humidity:   []float64{85, 85, 85, 85, 50, 50, 50, 50, 50, 50},
			want:       models.PatternDefrostIssues,
			confidence: 0.6,
		},
		{
			name:  "stable",
			temps: constant(4, 20),
			want:  models.PatternNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			readings := series(tt.temps, 50, time.Minute)
			for i, h := range tt.humidity {
				readings[i].Humidity = h
			}
			result := DetectPatterns(readings, DefaultPatternRangeHours)
			if result.Pattern != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, result.Pattern)
			}
			if result.Confidence != tt.confidence {
				t.Errorf("Expected confidence %v, got %v", tt.confidence, result.Confidence)
			}
		})
	}
}

func TestDetectPatterns_PowerDescription(t *testing.T) {
	readings := series([]float64{4, 4, 12, 4, 4, 4, 12, 4, 4, 4, 4, 4}, 50, time.Minute)
	result := DetectPatterns(readings, DefaultPatternRangeHours)
	if result.Description != "Detected 2 potential power interruption events" {
		t.Errorf("Unexpected description %q", result.Description)
	}
}

func TestDetectPatterns_FullRecoveryIsNotDoor(t *testing.T) {
	// После пика температура возвращается ниже исходной
	readings := series([]float64{4, 4, 4, 4, 4, 9, 0, 0, 0, 0, 4, 4, 4, 4, 4}, 50, time.Minute)
	if result := DetectPatterns(readings, DefaultPatternRangeHours); result.Pattern == models.PatternDoorLeftOpen {
		t.Error("Full recovery must not be reported as door left open")
	}
}

func TestDetectPatterns_ScansWholeHistory(t *testing.T) {
	spikes := series([]float64{4, 12, 4, 4, 12, 4, 4, 4, 4, 4}, 50, time.Hour)
	stable := series(constant(4, 10), 50, time.Hour)
	for i := range stable {
		stable[i].Timestamp = stable[i].Timestamp.Add(48 * time.Hour)
	}
	readings := append(spikes, stable...)

	for _, hours := range []int{0, 24} {
		if result := DetectPatterns(readings, hours); result.Pattern != models.PatternPowerInstability {
			t.Errorf("range %d: expected power instability over full history, got %q", hours, result.Pattern)
		}
	}
}

func TestDetectPatterns_SlowReportingDevice(t *testing.T) {
	// Показания раз в 3 часа: за последние сутки их меньше десяти
	temps := []float64{4, 4, 4, 4, 4, 9, 8, 7, 6, 5, 4, 4}
	readings := series(temps, 50, 3*time.Hour)
	if result := DetectPatterns(readings, DefaultPatternRangeHours); result.Pattern != models.PatternDoorLeftOpen {
		t.Errorf("Expected door left open, got %q", result.Pattern)
	}
}

func TestDetectPatterns_DoorScanBoundary(t *testing.T) {
	tests := []struct {
		name  string
		temps []float64
		want  models.Pattern
	}{
		{
			// n=11: последний проверяемый индекс 5
			name:  "spike at last scanned index",
			temps: []float64{4, 4, 4, 4, 4, 9, 8, 7, 6, 5, 4},
			want:  models.PatternDoorLeftOpen,
		},
		{
			// n=10: индекс 5 уже за границей сканирования
			name:  "spike past scan range",
			temps: []float64{4, 4, 4, 4, 4, 9, 8, 7, 6, 5},
			want:  models.PatternNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DetectPatterns(series(tt.temps, 50, time.Minute), DefaultPatternRangeHours)
			if result.Pattern != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, result.Pattern)
			}
		})
	}
}
