package analytics

import (
	"reflect"
	"testing"
	"time"

	"healthytag-service/internal/models"
)

func TestLearnBaseline_Defaults(t *testing.T) {
	baseline := LearnBaseline(series(constant(4, 49), 50, time.Minute))
	if !reflect.DeepEqual(baseline, DefaultBaseline()) {
		t.Errorf("Expected default baseline, got %+v", baseline)
	}
}

func TestLearnBaseline_PeakHours(t *testing.T) {
	var readings []models.Reading
	for hour := 0; hour < 24; hour++ {
		temps := []float64{4, 4, 4}
		if hour == 3 {
			temps = []float64{2, 4, 6}
		}
		for i, temp := range temps {
			readings = append(readings, models.Reading{
				Temperature: temp,
				Humidity:    50,
				Timestamp:   baseTime.Add(time.Duration(hour)*time.Hour + time.Duration(i*10)*time.Minute),
			})
		}
	}

	baseline := LearnBaseline(readings)
	if !reflect.DeepEqual(baseline.PeakHours, []int{3}) {
		t.Errorf("Expected peak hours [3], got %v", baseline.PeakHours)
	}
	if !almostEqual(baseline.NormalTempRange.Min, 4-2.0/3) || !almostEqual(baseline.NormalTempRange.Max, 4+2.0/3) {
		t.Errorf("Unexpected temperature range %+v", baseline.NormalTempRange)
	}
	if baseline.NormalHumidRange != (models.Range{Min: 50, Max: 50}) {
		t.Errorf("Unexpected humidity range %+v", baseline.NormalHumidRange)
	}
	if !almostEqual(baseline.TypicalVariance, 1.0/9) {
		t.Errorf("Expected variance 1/9, got %v", baseline.TypicalVariance)
	}
}

func TestLearnBaseline_Idempotent(t *testing.T) {
	var readings []models.Reading
	for hour := 0; hour < 24; hour++ {
		for i := 0; i < 3; i++ {
			readings = append(readings, models.Reading{
				Temperature: 4 + 0.1*float64(hour%7) + 0.37*float64(i*hour%5),
				Humidity:    50 + float64(hour%3),
				Timestamp:   baseTime.Add(time.Duration(hour)*time.Hour + time.Duration(i*10)*time.Minute),
			})
		}
	}

	first := LearnBaseline(readings)
	for i := 0; i < 50; i++ {
		if again := LearnBaseline(readings); !reflect.DeepEqual(first, again) {
			t.Fatalf("Expected identical baselines, got %+v and %+v", first, again)
		}
	}
}
