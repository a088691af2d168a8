package models

import (
	"time"
)

// SyncJobStatus состояние задачи импорта снапшота остатков
type SyncJobStatus string

const (
	SyncJobPending    SyncJobStatus = "pending"
	SyncJobProcessing SyncJobStatus = "processing"
	SyncJobCompleted  SyncJobStatus = "completed"
	SyncJobFailed     SyncJobStatus = "failed"
	SyncJobCancelled  SyncJobStatus = "cancelled"
)

// ActiveStatuses состояния, которые осматривает опрос статусов
var ActiveStatuses = []SyncJobStatus{SyncJobPending, SyncJobProcessing}

// allowedTransitions допустимые переходы; терминальные состояния переходов не имеют
var allowedTransitions = map[SyncJobStatus][]SyncJobStatus{
	SyncJobPending:    {SyncJobProcessing, SyncJobFailed, SyncJobCancelled},
	SyncJobProcessing: {SyncJobCompleted, SyncJobFailed, SyncJobCancelled},
}

// IsValid проверяет, что статус известен
func (s SyncJobStatus) IsValid() bool {
	switch s {
	case SyncJobPending, SyncJobProcessing, SyncJobCompleted, SyncJobFailed, SyncJobCancelled:
		return true
	}
	return false
}

// IsTerminal возвращает true для completed, failed и cancelled
func (s SyncJobStatus) IsTerminal() bool {
	return s == SyncJobCompleted || s == SyncJobFailed || s == SyncJobCancelled
}

// CanTransitionTo проверяет допустимость перехода s -> next
func (s SyncJobStatus) CanTransitionTo(next SyncJobStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// SourcesFor возвращает состояния, из которых допустим переход в target
func SourcesFor(target SyncJobStatus) []SyncJobStatus {
	var sources []SyncJobStatus
	for _, from := range []SyncJobStatus{SyncJobPending, SyncJobProcessing} {
		if from.CanTransitionTo(target) {
			sources = append(sources, from)
		}
	}
	return sources
}

// SyncJob задача импорта одного снапшота по одному складу.
// Задачи не удаляются: терминальные записи остаются журналом аудита
type SyncJob struct {
	ID             string        `json:"id"`
	SnapshotID     string        `json:"snapshot_id"`
	RequestID      string        `json:"request_id,omitempty"`
	WarehouseID    int           `json:"warehouse_id"`
	Status         SyncJobStatus `json:"status"`
	TotalItems     int           `json:"total_items"`     // 0 - еще неизвестно
	ProcessedItems int           `json:"processed_items"` // записано позиций
	ErrorMessage   string        `json:"error_message,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	StartedAt      *time.Time    `json:"started_at,omitempty"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
}

// IsStale задача в активном состоянии дольше порога
func (j *SyncJob) IsStale(now time.Time, threshold time.Duration) bool {
	if j.Status.IsTerminal() {
		return false
	}
	return now.Sub(j.CreatedAt) > threshold
}

// ProcessingFor сколько задача находится в processing
func (j *SyncJob) ProcessingFor(now time.Time) time.Duration {
	if j.Status != SyncJobProcessing || j.StartedAt == nil {
		return 0
	}
	return now.Sub(*j.StartedAt)
}

// JobUpdate изменения, применяемые вместе с переходом состояния
type JobUpdate struct {
	Status         SyncJobStatus
	ErrorMessage   *string
	TotalItems     *int
	ProcessedItems *int
	At             time.Time // время перехода: started_at / completed_at
}

// JobFilter фильтр списка задач
type JobFilter struct {
	Statuses    []SyncJobStatus
	OldestFirst bool // по возрастанию created_at; иначе сначала новые
	Limit       int  // 0 - без ограничения
	Offset      int
}
