package analytics

import (
	"sync"
	"time"

	"healthytag-service/internal/models"
)

// InsightJob задание на построение отчета по устройству
type InsightJob struct {
	DeviceID      string
	DeviceType    models.DeviceType
	DeviceAgeDays float64
	Readings      []models.Reading
}

// InsightReport результат выполнения InsightJob
type InsightReport struct {
	DeviceID    string          `json:"device_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	Duration    time.Duration   `json:"duration"`
	Insights    models.Insights `json:"insights"`
}

// Analyzer пул горутин, строящих отчеты асинхронно.
// Движок не хранит состояния между заданиями, поэтому воркеры не синхронизируются.
type Analyzer struct {
	jobsChan    chan InsightJob
	resultsChan chan InsightReport
	stopChan    chan struct{}
	wg          sync.WaitGroup
	now         func() time.Time
}

// NewAnalyzer создает пул с буферами заданного размера
func NewAnalyzer(bufferSize int) *Analyzer {
	return &Analyzer{
		jobsChan:    make(chan InsightJob, bufferSize),
		resultsChan: make(chan InsightReport, bufferSize),
		stopChan:    make(chan struct{}),
		now:         time.Now,
	}
}

// Start запускает воркеры
func (a *Analyzer) Start(numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		a.wg.Add(1)
		go a.worker()
	}
}

func (a *Analyzer) worker() {
	defer a.wg.Done()
	for {
		select {
		case job := <-a.jobsChan:
			report := a.Run(job)
			select {
			case a.resultsChan <- report:
			default:
				// Канал результатов переполнен, отчет отбрасывается
			}
		case <-a.stopChan:
			return
		}
	}
}

// Run синхронно строит отчет по заданию
func (a *Analyzer) Run(job InsightJob) InsightReport {
	start := a.now()
	insights := GenerateInsights(job.Readings, job.DeviceType, job.DeviceAgeDays)
	return InsightReport{
		DeviceID:    job.DeviceID,
		GeneratedAt: start,
		Duration:    a.now().Sub(start),
		Insights:    insights,
	}
}

// Submit ставит задание в очередь; false, если очередь заполнена
func (a *Analyzer) Submit(job InsightJob) bool {
	select {
	case a.jobsChan <- job:
		return true
	default:
		return false
	}
}

// Results возвращает канал готовых отчетов
func (a *Analyzer) Results() <-chan InsightReport {
	return a.resultsChan
}

// Stop останавливает воркеры и закрывает канал результатов
func (a *Analyzer) Stop() {
	close(a.stopChan)
	a.wg.Wait()
	close(a.resultsChan)
}
