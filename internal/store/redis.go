// Package store реализует хранение устройств, истории показаний и оповещений в Redis
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"healthytag-service/internal/analytics"
	"healthytag-service/internal/models"
)

const (
	// DeviceKeyPrefix префикс для снимков устройств
	DeviceKeyPrefix = "device:"
	// DevicesKey множество идентификаторов зарегистрированных устройств
	DevicesKey = "devices"
	// ReadingsKeyPrefix префикс списков показаний (новые слева)
	ReadingsKeyPrefix = "readings:"
	// ReadingCountKeyPrefix префикс счетчиков принятых показаний
	ReadingCountKeyPrefix = "readings_count:"
	// AlertsKeyPrefix префикс хэшей активных оповещений (поле - тип оповещения)
	AlertsKeyPrefix = "alerts:active:"
	// InsightsKeyPrefix префикс кэшированных отчетов
	InsightsKeyPrefix = "insights:"
	// ReadingsTotalKey общий счетчик показаний
	ReadingsTotalKey = "stats:readings_total"
	// AlertsTotalKey общий счетчик оповещений
	AlertsTotalKey = "stats:alerts_total"
	// InsightsTTL время жизни кэшированного отчета
	InsightsTTL = 2 * time.Hour
	// DefaultHistoryLimit сколько показаний хранится на устройство
	DefaultHistoryLimit = 500
)

// ErrDeviceNotFound устройство не зарегистрировано
var ErrDeviceNotFound = errors.New("device not found")

// raiseAlertScript атомарно создает оповещение и увеличивает общий счетчик
var raiseAlertScript = redis.NewScript(`
if redis.call("HSETNX", KEYS[1], ARGV[1], ARGV[2]) == 1 then
	redis.call("INCR", KEYS[2])
	return 1
end
return 0
`)

// RedisStore хранилище на базе Redis
type RedisStore struct {
	client       *redis.Client
	historyLimit int64
}

// NewRedisStore создает подключение к Redis и проверяет его
func NewRedisStore(ctx context.Context, addr, password string, db int, historyLimit int64) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     100,
		MinIdleConns: 10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}

	return &RedisStore{client: client, historyLimit: historyLimit}, nil
}

// SaveDevice сохраняет снимок устройства
func (s *RedisStore) SaveDevice(ctx context.Context, d models.Device) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal device: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, DeviceKeyPrefix+d.ID, data, 0)
	pipe.SAdd(ctx, DevicesKey, d.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save device %s: %w", d.ID, err)
	}
	return nil
}

// GetDevice возвращает снимок устройства или ErrDeviceNotFound
func (s *RedisStore) GetDevice(ctx context.Context, id string) (*models.Device, error) {
	data, err := s.client.Get(ctx, DeviceKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device %s: %w", id, err)
	}

	var d models.Device
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal device %s: %w", id, err)
	}
	return &d, nil
}

// ListDevices возвращает все зарегистрированные устройства
func (s *RedisStore) ListDevices(ctx context.Context) ([]models.Device, error) {
	ids, err := s.client.SMembers(ctx, DevicesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	if len(ids) == 0 {
		return []models.Device{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = DeviceKeyPrefix + id
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load devices: %w", err)
	}

	devices := make([]models.Device, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var d models.Device
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			continue
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// AppendReading добавляет показание в историю устройства.
// Возвращает порядковый номер показания для этого устройства.
func (s *RedisStore) AppendReading(ctx context.Context, r models.Reading) (int64, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal reading: %w", err)
	}

	key := ReadingsKeyPrefix + r.DeviceID
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, s.historyLimit-1)
	count := pipe.Incr(ctx, ReadingCountKeyPrefix+r.DeviceID)
	pipe.Incr(ctx, ReadingsTotalKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to append reading: %w", err)
	}
	return count.Val(), nil
}

// RecentReadings возвращает до count последних показаний по возрастанию времени
func (s *RedisStore) RecentReadings(ctx context.Context, deviceID string, count int64) ([]models.Reading, error) {
	if count <= 0 || count > s.historyLimit {
		count = s.historyLimit
	}
	data, err := s.client.LRange(ctx, ReadingsKeyPrefix+deviceID, 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get readings: %w", err)
	}

	readings := make([]models.Reading, 0, len(data))
	for i := len(data) - 1; i >= 0; i-- {
		var r models.Reading
		if err := json.Unmarshal([]byte(data[i]), &r); err != nil {
			continue
		}
		readings = append(readings, r)
	}
	return readings, nil
}

// RaiseAlert сохраняет оповещение, если активного оповещения того же типа еще нет.
// Возвращает true, если оповещение создано.
func (s *RedisStore) RaiseAlert(ctx context.Context, a models.Alert) (bool, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return false, fmt.Errorf("failed to marshal alert: %w", err)
	}

	keys := []string{AlertsKeyPrefix + a.DeviceID, AlertsTotalKey}
	created, err := raiseAlertScript.Run(ctx, s.client, keys, string(a.Type), data).Int()
	if err != nil {
		return false, fmt.Errorf("failed to raise alert: %w", err)
	}
	return created == 1, nil
}

// ActiveAlerts возвращает активные оповещения устройства
func (s *RedisStore) ActiveAlerts(ctx context.Context, deviceID string) ([]models.Alert, error) {
	values, err := s.client.HVals(ctx, AlertsKeyPrefix+deviceID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get alerts: %w", err)
	}

	alerts := make([]models.Alert, 0, len(values))
	for _, v := range values {
		var a models.Alert
		if err := json.Unmarshal([]byte(v), &a); err != nil {
			continue
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

// ResolveAlerts снимает все активные оповещения устройства
func (s *RedisStore) ResolveAlerts(ctx context.Context, deviceID string) error {
	return s.client.Del(ctx, AlertsKeyPrefix+deviceID).Err()
}

// SaveInsights кэширует отчет по устройству
func (s *RedisStore) SaveInsights(ctx context.Context, report analytics.InsightReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal insights: %w", err)
	}
	return s.client.Set(ctx, InsightsKeyPrefix+report.DeviceID, data, InsightsTTL).Err()
}

// GetInsights возвращает кэшированный отчет; ok=false, если его нет
func (s *RedisStore) GetInsights(ctx context.Context, deviceID string) (analytics.InsightReport, bool, error) {
	var report analytics.InsightReport
	data, err := s.client.Get(ctx, InsightsKeyPrefix+deviceID).Bytes()
	if err == redis.Nil {
		return report, false, nil
	}
	if err != nil {
		return report, false, fmt.Errorf("failed to get insights: %w", err)
	}
	if err := json.Unmarshal(data, &report); err != nil {
		return report, false, fmt.Errorf("failed to unmarshal insights: %w", err)
	}
	return report, true, nil
}

// Counters возвращает общее число показаний и оповещений
func (s *RedisStore) Counters(ctx context.Context) (readings, alerts int64, err error) {
	if readings, err = s.counter(ctx, ReadingsTotalKey); err != nil {
		return 0, 0, err
	}
	if alerts, err = s.counter(ctx, AlertsTotalKey); err != nil {
		return 0, 0, err
	}
	return readings, alerts, nil
}

func (s *RedisStore) counter(ctx context.Context, key string) (int64, error) {
	val, err := s.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return val, err
}

// Ping проверяет соединение с Redis
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close закрывает соединение
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// FlushDB очищает базу (только для тестов)
func (s *RedisStore) FlushDB(ctx context.Context) error {
	return s.client.FlushDB(ctx).Err()
}
