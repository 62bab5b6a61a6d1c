package mqtt

import (
	"context"
	"testing"

	"healthytag-service/internal/ingest"
	"healthytag-service/internal/models"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return qos }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type fakeIngester struct {
	deviceIDs []string
	payloads  []ingest.Payload
	err       error
}

func (f *fakeIngester) Ingest(_ context.Context, deviceID string, payload ingest.Payload) (*ingest.Result, error) {
	f.deviceIDs = append(f.deviceIDs, deviceID)
	f.payloads = append(f.payloads, payload)
	if f.err != nil {
		return nil, f.err
	}
	return &ingest.Result{Success: true, Status: models.StatusHealthy}, nil
}

func TestDeviceIDFromTopic(t *testing.T) {
	tests := []struct {
		topic    string
		expected string
	}{
		{"devices/HT-1/telemetry", "HT-1"},
		{"devices//telemetry", ""},
		{"sensors/HT-1/telemetry", ""},
		{"devices/HT-1", ""},
	}
	for _, tt := range tests {
		if got := DeviceIDFromTopic(tt.topic); got != tt.expected {
			t.Errorf("DeviceIDFromTopic(%q) = %q, expected %q", tt.topic, got, tt.expected)
		}
	}
}

func TestHandleMessage(t *testing.T) {
	ingester := &fakeIngester{}
	s := NewSubscriber(nil, "", ingester, nil)

	s.handleMessage(nil, fakeMessage{
		topic:   "devices/HT-1/telemetry",
		payload: []byte(`{"temp":4.5,"humidity":55,"battery_level":90}`),
	})

	if len(ingester.deviceIDs) != 1 || ingester.deviceIDs[0] != "HT-1" {
		t.Fatalf("Expected ingest for HT-1, got %v", ingester.deviceIDs)
	}
	p := ingester.payloads[0]
	if *p.Temperature != 4.5 || *p.Humidity != 55 || *p.BatteryLevel != 90 {
		t.Errorf("Unexpected payload: %+v", p)
	}
}

func TestHandleMessage_FallsBackToBodyDeviceID(t *testing.T) {
	ingester := &fakeIngester{}
	s := NewSubscriber(nil, "telemetry", ingester, nil)

	s.handleMessage(nil, fakeMessage{
		topic:   "telemetry",
		payload: []byte(`{"device_id":"HT-9","temp":4,"humidity":50}`),
	})
	if len(ingester.deviceIDs) != 1 || ingester.deviceIDs[0] != "HT-9" {
		t.Errorf("Expected ingest for HT-9, got %v", ingester.deviceIDs)
	}
}

func TestHandleMessage_InvalidJSON(t *testing.T) {
	ingester := &fakeIngester{}
	s := NewSubscriber(nil, "", ingester, nil)

	s.handleMessage(nil, fakeMessage{topic: "devices/HT-1/telemetry", payload: []byte(`{"temp":`)})
	if len(ingester.deviceIDs) != 0 {
		t.Error("Invalid JSON must not reach the ingester")
	}
}

func TestHandleMessage_IngestErrorsAreSwallowed(t *testing.T) {
	ingester := &fakeIngester{err: ingest.ErrUnknownDevice}
	s := NewSubscriber(nil, "", ingester, nil)

	s.handleMessage(nil, fakeMessage{topic: "devices/nope/telemetry", payload: []byte(`{"temp":4,"humidity":50}`)})
	if len(ingester.deviceIDs) != 1 {
		t.Errorf("Expected one ingest attempt, got %d", len(ingester.deviceIDs))
	}
}
