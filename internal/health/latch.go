package health

import "healthytag-service/internal/models"

// LatchState состояние защелки тревоги устройства
type LatchState int

const (
	// LatchArmed защелка взведена: следующий NOT_HEALTHY ее зафиксирует
	LatchArmed LatchState = iota
	// LatchLatched тревога удерживается до ручного сброса оператором
	LatchLatched
)

func (s LatchState) String() string {
	if s == LatchLatched {
		return "latched"
	}
	return "armed"
}

// LatchStateOf возвращает текущее состояние защелки устройства
func LatchStateOf(d models.Device) LatchState {
	if d.NeedsManualReset {
		return LatchLatched
	}
	return LatchArmed
}

// ApplyClassification единственная функция перехода защелки.
// Возвращает итоговый статус для сохранения и новое значение needsManualReset.
// Пока защелка зафиксирована, а сохраненный статус NOT_HEALTHY, любой
// другой результат классификации заменяется на NOT_HEALTHY.
func ApplyClassification(device models.Device, result models.HealthCheckResult) (models.HealthStatus, bool) {
	if result.Status == models.StatusNotHealthy {
		return models.StatusNotHealthy, true
	}
	if device.NeedsManualReset && device.HealthStatus == models.StatusNotHealthy {
		return models.StatusNotHealthy, true
	}
	return result.Status, device.NeedsManualReset
}

// ClearLatch переход по явному действию оператора
func ClearLatch() (models.HealthStatus, bool) {
	return models.StatusHealthy, false
}
