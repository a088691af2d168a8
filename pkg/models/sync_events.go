package models

import "time"

// Типы событий жизненного цикла задачи синхронизации остатков
const (
	SyncJobCreatedEvent   = "sync_job_created"
	SyncJobCompletedEvent = "sync_job_completed"
	SyncJobFailedEvent    = "sync_job_failed"
	SyncJobCancelledEvent = "sync_job_cancelled"
)

// Типы команд, принимаемых воркером синхронизации
const (
	TriggerSnapshotCommand      = "trigger_snapshot"
	PollJobsCommand             = "poll_jobs"
	IngestSnapshotCommand       = "ingest_snapshot"
	AbortSnapshotCommand        = "abort_snapshot"
	InvalidateWarehousesCommand = "invalidate_warehouses"
)

// SyncJobEvent публикуется при создании задачи и при ее переходе в терминальное состояние.
// Потребители (браузер остатков, печать этикеток) по нему узнают о свежих данных
type SyncJobEvent struct {
	EventType      string    `json:"event_type"`
	JobID          string    `json:"job_id"`
	SnapshotID     string    `json:"snapshot_id"`
	WarehouseID    int       `json:"warehouse_id"`
	Status         string    `json:"status"`
	TotalItems     int       `json:"total_items"`
	ProcessedItems int       `json:"processed_items"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// SyncCommand команда воркеру, приходящая из внешнего планировщика
type SyncCommand struct {
	CommandType string `json:"command_type"`
	WarehouseID *int   `json:"warehouse_id,omitempty"`
	SnapshotID  string `json:"snapshot_id,omitempty"`
	SnapshotURL string `json:"snapshot_url,omitempty"`
	JobID       string `json:"job_id,omitempty"`
	Reason      string `json:"reason,omitempty"`
}
