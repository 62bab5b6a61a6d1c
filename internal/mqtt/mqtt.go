// Package mqtt принимает телеметрию устройств из MQTT брокера
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"healthytag-service/internal/ingest"
	"healthytag-service/internal/metrics"
)

const (
	// DefaultTopic шаблон топика телеметрии, второй сегмент - id устройства
	DefaultTopic = "devices/+/telemetry"
	// IngestTimeout предельное время обработки одного сообщения
	IngestTimeout = 10 * time.Second
	qos           = 1
)

// Ingester конвейер приема показаний
type Ingester interface {
	Ingest(ctx context.Context, deviceID string, payload ingest.Payload) (*ingest.Result, error)
}

// NewClient подключается к брокеру
func NewClient(broker, clientID string) (paho.Client, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetCleanSession(false).
		SetConnectTimeout(10 * time.Second)
	c := paho.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return c, nil
}

// Subscriber передает сообщения телеметрии в конвейер и отвечает устройству
// статусом в топик devices/<id>/status
type Subscriber struct {
	client   paho.Client
	topic    string
	ingester Ingester
	logger   *zap.Logger
}

// NewSubscriber создает подписчика. Пустой topic заменяется на DefaultTopic.
func NewSubscriber(client paho.Client, topic string, ingester Ingester, logger *zap.Logger) *Subscriber {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subscriber{client: client, topic: topic, ingester: ingester, logger: logger}
}

// Start подписывается на топик телеметрии
func (s *Subscriber) Start() error {
	token := s.client.Subscribe(s.topic, qos, s.handleMessage)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.topic, token.Error())
	}
	s.logger.Info("Subscribed to telemetry topic", zap.String("topic", s.topic))
	return nil
}

// Stop отписывается и отключается от брокера
func (s *Subscriber) Stop() {
	if token := s.client.Unsubscribe(s.topic); token.Wait() && token.Error() != nil {
		s.logger.Warn("Failed to unsubscribe", zap.String("topic", s.topic), zap.Error(token.Error()))
	}
	s.client.Disconnect(250)
}

func (s *Subscriber) handleMessage(_ paho.Client, msg paho.Message) {
	var payload ingest.Payload
	if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
		metrics.MQTTMessages.WithLabelValues("invalid").Inc()
		s.logger.Warn("Invalid telemetry payload", zap.String("topic", msg.Topic()), zap.Error(err))
		return
	}

	deviceID := DeviceIDFromTopic(msg.Topic())
	if deviceID == "" {
		deviceID = payload.DeviceID
	}

	ctx, cancel := context.WithTimeout(context.Background(), IngestTimeout)
	defer cancel()

	result, err := s.ingester.Ingest(ctx, deviceID, payload)
	switch {
	case errors.Is(err, ingest.ErrInvalidReading):
		metrics.MQTTMessages.WithLabelValues("invalid").Inc()
		s.logger.Warn("Rejected telemetry", zap.String("device_id", deviceID), zap.Error(err))
		return
	case errors.Is(err, ingest.ErrUnknownDevice):
		metrics.MQTTMessages.WithLabelValues("unknown_device").Inc()
		s.logger.Warn("Telemetry from unknown device", zap.String("device_id", deviceID))
		return
	case err != nil:
		metrics.MQTTMessages.WithLabelValues("error").Inc()
		s.logger.Error("Failed to ingest telemetry", zap.String("device_id", deviceID), zap.Error(err))
		return
	}

	metrics.MQTTMessages.WithLabelValues("ok").Inc()
	s.publishStatus(deviceID, result)
}

// publishStatus отправляет устройству статус для отображения на дисплее
func (s *Subscriber) publishStatus(deviceID string, result *ingest.Result) {
	if s.client == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		s.logger.Error("Failed to marshal status", zap.String("device_id", deviceID), zap.Error(err))
		return
	}
	// Ожидание подтверждения не блокирует обработчик сообщений
	s.client.Publish(StatusTopic(deviceID), qos, false, data)
}

// DeviceIDFromTopic извлекает id устройства из топика devices/<id>/telemetry
func DeviceIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "devices" {
		return ""
	}
	return parts[1]
}

// StatusTopic топик ответа устройству
func StatusTopic(deviceID string) string {
	return "devices/" + deviceID + "/status"
}
