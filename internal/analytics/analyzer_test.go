package analytics

import (
	"sync"
	"testing"
	"time"

	"healthytag-service/internal/models"
)

func TestAnalyzer_Run(t *testing.T) {
	analyzer := NewAnalyzer(10)
	report := analyzer.Run(InsightJob{
		DeviceID:   "HT-1",
		DeviceType: models.DeviceFridge,
		Readings:   series(constant(4, 30), 50, time.Minute),
	})

	if report.DeviceID != "HT-1" {
		t.Errorf("Expected device HT-1, got %s", report.DeviceID)
	}
	if report.Insights.HealthScore != 100 {
		t.Errorf("Expected score 100, got %d", report.Insights.HealthScore)
	}
}

func TestAnalyzer_Workers(t *testing.T) {
	analyzer := NewAnalyzer(100)
	analyzer.Start(4)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				analyzer.Submit(InsightJob{
					DeviceID:   "HT-" + string(rune('A'+worker)),
					DeviceType: models.DeviceFridge,
					Readings:   series(rising(2, 0.1, 20), 50, time.Minute),
				})
			}
		}(i)
	}
	wg.Wait()

	received := 0
	timeout := time.After(2 * time.Second)
	for received < 20 {
		select {
		case report := <-analyzer.Results():
			if len(report.Insights.Insights) == 0 {
				t.Errorf("Expected compressor insight for %s", report.DeviceID)
			}
			received++
		case <-timeout:
			t.Fatalf("Timed out after %d reports", received)
		}
	}

	analyzer.Stop()
	if _, ok := <-analyzer.Results(); ok {
		t.Error("Results channel must be closed after Stop")
	}
}

func TestAnalyzer_SubmitFull(t *testing.T) {
	analyzer := NewAnalyzer(1)
	if !analyzer.Submit(InsightJob{DeviceID: "a"}) {
		t.Fatal("Expected first submit to succeed")
	}
	if analyzer.Submit(InsightJob{DeviceID: "b"}) {
		t.Error("Expected submit to fail on a full queue")
	}
}

func BenchmarkGenerateInsights(b *testing.B) {
	readings := series(alternating(3.5, 4.5, 500), 50, time.Minute)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		GenerateInsights(readings, models.DeviceFridge, 400)
	}
}
