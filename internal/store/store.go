package store

import (
	"context"

	"healthytag-service/internal/analytics"
	"healthytag-service/internal/models"
)

// Store общий контракт хранилищ
type Store interface {
	SaveDevice(ctx context.Context, d models.Device) error
	GetDevice(ctx context.Context, id string) (*models.Device, error)
	ListDevices(ctx context.Context) ([]models.Device, error)
	AppendReading(ctx context.Context, r models.Reading) (int64, error)
	RecentReadings(ctx context.Context, deviceID string, count int64) ([]models.Reading, error)
	RaiseAlert(ctx context.Context, a models.Alert) (bool, error)
	ActiveAlerts(ctx context.Context, deviceID string) ([]models.Alert, error)
	ResolveAlerts(ctx context.Context, deviceID string) error
	SaveInsights(ctx context.Context, report analytics.InsightReport) error
	GetInsights(ctx context.Context, deviceID string) (analytics.InsightReport, bool, error)
	Counters(ctx context.Context) (readings, alerts int64, err error)
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*RedisStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
