package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"healthytag-service/internal/ingest"
	"healthytag-service/internal/models"
	"healthytag-service/internal/store"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func newTestRouter(t *testing.T, pinger Pinger) *mux.Router {
	t.Helper()
	svc := ingest.NewService(store.NewMemoryStore(100), nil, nil, nil, 100)
	router := mux.NewRouter()
	NewHandler(svc, pinger, nil).Routes(router)
	return router
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

func TestReadingFlow(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := do(router, http.MethodPut, "/devices/HT-1", `{"type":"FRIDGE"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 on register, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(router, http.MethodPost, "/devices/HT-1/readings", `{"temp":10,"humidity":50}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 on ingest, got %d: %s", rec.Code, rec.Body.String())
	}
	var result ingest.Result
	decode(t, rec, &result)
	if result.Status != models.StatusNotHealthy || !result.Success {
		t.Errorf("Expected NOT_HEALTHY result, got %+v", result)
	}

	rec = do(router, http.MethodGet, "/devices/HT-1/alerts", "")
	var alerts []models.Alert
	decode(t, rec, &alerts)
	if len(alerts) != 1 || alerts[0].Type != models.AlertTemperatureHigh {
		t.Errorf("Expected TEMPERATURE_HIGH alert, got %+v", alerts)
	}

	rec = do(router, http.MethodPost, "/devices/HT-1/reset", "")
	var device models.Device
	decode(t, rec, &device)
	if device.HealthStatus != models.StatusHealthy || device.NeedsManualReset {
		t.Errorf("Expected reset device, got %+v", device)
	}

	rec = do(router, http.MethodGet, "/devices/HT-1/readings?count=5", "")
	var readings []models.Reading
	decode(t, rec, &readings)
	if len(readings) != 1 || readings[0].Temperature != 10 {
		t.Errorf("Expected the stored reading, got %+v", readings)
	}
}

func TestTelemetryHandler_UsesBodyDeviceID(t *testing.T) {
	router := newTestRouter(t, nil)
	do(router, http.MethodPut, "/devices/HT-7", `{"type":"FREEZER"}`)

	rec := do(router, http.MethodPost, "/telemetry", `{"device_id":"HT-7","temp":-20,"humidity":45,"gsm_signal":80}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result ingest.Result
	decode(t, rec, &result)
	if result.Status != models.StatusHealthy || result.Message != "OK" {
		t.Errorf("Expected healthy freezer reading, got %+v", result)
	}
}

func TestErrorMapping(t *testing.T) {
	router := newTestRouter(t, nil)
	do(router, http.MethodPut, "/devices/HT-1", `{"type":"FRIDGE"}`)

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		expected int
	}{
		{"unknown device", http.MethodGet, "/devices/nope", "", http.StatusNotFound},
		{"unknown device reading", http.MethodPost, "/devices/nope/readings", `{"temp":5,"humidity":50}`, http.StatusNotFound},
		{"invalid json", http.MethodPost, "/devices/HT-1/readings", `{"temp":`, http.StatusBadRequest},
		{"missing humidity", http.MethodPost, "/devices/HT-1/readings", `{"temp":5}`, http.StatusBadRequest},
		{"invalid device type", http.MethodPut, "/devices/HT-2", `{"type":"OVEN"}`, http.StatusBadRequest},
		{"reset unknown", http.MethodPost, "/devices/nope/reset", "", http.StatusNotFound},
		{"wrong method", http.MethodDelete, "/devices/HT-1", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(router, tt.method, tt.path, tt.body)
			if rec.Code != tt.expected {
				t.Errorf("Expected %d, got %d: %s", tt.expected, rec.Code, rec.Body.String())
			}
			if rec.Code != http.StatusMethodNotAllowed {
				var body map[string]string
				decode(t, rec, &body)
				if body["error"] == "" {
					t.Error("Expected error message in body")
				}
			}
		})
	}
}

func TestBatchReadingsHandler(t *testing.T) {
	router := newTestRouter(t, nil)
	do(router, http.MethodPut, "/devices/HT-1", `{"type":"FRIDGE"}`)

	body := `{"readings":[
		{"temp":5,"humidity":50,"timestamp":"2024-06-01T10:00:00Z"},
		{"temp":5.5,"humidity":51,"timestamp":"2024-06-01T10:01:00Z"},
		{"temp":6}
	]}`
	rec := do(router, http.MethodPost, "/devices/HT-1/readings/batch", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var response struct {
		Processed int `json:"processed"`
		Rejected  int `json:"rejected"`
	}
	decode(t, rec, &response)
	if response.Processed != 2 || response.Rejected != 1 {
		t.Errorf("Expected 2 processed and 1 rejected, got %+v", response)
	}
}

func TestStatsHandler(t *testing.T) {
	router := newTestRouter(t, nil)
	do(router, http.MethodPut, "/devices/HT-1", `{"type":"FRIDGE"}`)
	do(router, http.MethodPut, "/devices/HT-2", `{"type":"FRIDGE"}`)
	do(router, http.MethodPost, "/devices/HT-1/readings", `{"temp":5,"humidity":50}`)
	do(router, http.MethodPost, "/devices/HT-2/readings", `{"temp":7.5,"humidity":50}`)

	rec := do(router, http.MethodGet, "/stats", "")
	var stats models.FleetStats
	decode(t, rec, &stats)
	if stats.TotalDevices != 2 || stats.HealthyDevices != 1 || stats.WarningDevices != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if stats.ComplianceRate != 50 || stats.ReadingsTotal != 2 {
		t.Errorf("Expected compliance 50 and 2 readings, got %+v", stats)
	}
}

func TestInsightsHandler(t *testing.T) {
	router := newTestRouter(t, nil)
	do(router, http.MethodPut, "/devices/HT-1", `{"type":"FRIDGE"}`)

	rec := do(router, http.MethodGet, "/devices/HT-1/insights?refresh=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var report struct {
		DeviceID string          `json:"device_id"`
		Insights models.Insights `json:"insights"`
	}
	decode(t, rec, &report)
	if report.DeviceID != "HT-1" || report.Insights.HealthScore != 50 {
		t.Errorf("Expected insufficient-data report, got %+v", report)
	}
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name     string
		pinger   Pinger
		expected string
	}{
		{"memory store", nil, "disconnected"},
		{"redis up", stubPinger{}, "connected"},
		{"redis down", stubPinger{err: errors.New("refused")}, "disconnected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(newTestRouter(t, tt.pinger), http.MethodGet, "/health", "")
			var resp models.HealthResponse
			decode(t, rec, &resp)
			if resp.Status != "healthy" || resp.Redis != tt.expected {
				t.Errorf("Expected healthy/%s, got %+v", tt.expected, resp)
			}
		})
	}
}
