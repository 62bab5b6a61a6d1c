package store

import (
	"context"
	"sort"
	"sync"

	"healthytag-service/internal/analytics"
	"healthytag-service/internal/models"
)

// MemoryStore хранилище в памяти процесса. Используется, когда Redis недоступен.
type MemoryStore struct {
	mu            sync.RWMutex
	historyLimit  int
	devices       map[string]models.Device
	readings      map[string][]models.Reading
	readingCounts map[string]int64
	alerts        map[string]map[models.AlertType]models.Alert
	insights      map[string]analytics.InsightReport
	readingsTotal int64
	alertsTotal   int64
}

// NewMemoryStore создает пустое хранилище
func NewMemoryStore(historyLimit int) *MemoryStore {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &MemoryStore{
		historyLimit:  historyLimit,
		devices:       make(map[string]models.Device),
		readings:      make(map[string][]models.Reading),
		readingCounts: make(map[string]int64),
		alerts:        make(map[string]map[models.AlertType]models.Alert),
		insights:      make(map[string]analytics.InsightReport),
	}
}

// SaveDevice сохраняет снимок устройства
func (m *MemoryStore) SaveDevice(_ context.Context, d models.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[d.ID] = d
	return nil
}

// GetDevice возвращает копию снимка устройства
func (m *MemoryStore) GetDevice(_ context.Context, id string) (*models.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return &d, nil
}

// ListDevices возвращает устройства, упорядоченные по идентификатору
func (m *MemoryStore) ListDevices(_ context.Context) ([]models.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	devices := make([]models.Device, 0, len(m.devices))
	for _, d := range m.devices {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices, nil
}

// AppendReading добавляет показание и возвращает число показаний устройства
func (m *MemoryStore) AppendReading(_ context.Context, r models.Reading) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	history := append(m.readings[r.DeviceID], r)
	if len(history) > m.historyLimit {
		history = history[len(history)-m.historyLimit:]
	}
	m.readings[r.DeviceID] = history
	m.readingCounts[r.DeviceID]++
	m.readingsTotal++
	return m.readingCounts[r.DeviceID], nil
}

// RecentReadings возвращает до count последних показаний по возрастанию времени
func (m *MemoryStore) RecentReadings(_ context.Context, deviceID string, count int64) ([]models.Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	history := m.readings[deviceID]
	if count > 0 && int(count) < len(history) {
		history = history[len(history)-int(count):]
	}
	out := make([]models.Reading, len(history))
	copy(out, history)
	return out, nil
}

// RaiseAlert сохраняет оповещение, если активного оповещения того же типа нет
func (m *MemoryStore) RaiseAlert(_ context.Context, a models.Alert) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	active, ok := m.alerts[a.DeviceID]
	if !ok {
		active = make(map[models.AlertType]models.Alert)
		m.alerts[a.DeviceID] = active
	}
	if _, exists := active[a.Type]; exists {
		return false, nil
	}
	active[a.Type] = a
	m.alertsTotal++
	return true, nil
}

// ActiveAlerts возвращает активные оповещения устройства
func (m *MemoryStore) ActiveAlerts(_ context.Context, deviceID string) ([]models.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	alerts := make([]models.Alert, 0, len(m.alerts[deviceID]))
	for _, a := range m.alerts[deviceID] {
		alerts = append(alerts, a)
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].Type < alerts[j].Type })
	return alerts, nil
}

// ResolveAlerts снимает все активные оповещения устройства
func (m *MemoryStore) ResolveAlerts(_ context.Context, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.alerts, deviceID)
	return nil
}

// SaveInsights сохраняет последний отчет устройства
func (m *MemoryStore) SaveInsights(_ context.Context, report analytics.InsightReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insights[report.DeviceID] = report
	return nil
}

// GetInsights возвращает последний отчет; ok=false, если его нет
func (m *MemoryStore) GetInsights(_ context.Context, deviceID string) (analytics.InsightReport, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	report, ok := m.insights[deviceID]
	return report, ok, nil
}

// Counters возвращает общее число показаний и оповещений
func (m *MemoryStore) Counters(_ context.Context) (int64, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.readingsTotal, m.alertsTotal, nil
}

// Ping всегда успешен
func (m *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Close ничего не освобождает
func (m *MemoryStore) Close() error {
	return nil
}
