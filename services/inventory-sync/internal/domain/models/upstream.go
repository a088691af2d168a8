package models

import "time"

// UpstreamState классификация свободного текстового статуса внешней системы
type UpstreamState string

const (
	UpstreamReady   UpstreamState = "ready"
	UpstreamRunning UpstreamState = "running"
	UpstreamFailed  UpstreamState = "failed"
)

// SnapshotRequest результат запроса на генерацию снапшота
type SnapshotRequest struct {
	RequestID  string
	SnapshotID string
	Status     string
}

// SnapshotStatus состояние снапшота во внешней системе
type SnapshotStatus struct {
	RequestID   string
	SnapshotID  string
	WarehouseID string
	Status      string
	Error       string
	SnapshotURL string
	CreatedAt   *time.Time
	UpdatedAt   *time.Time
	ExpiresAt   *time.Time
}

// AbortResult ответ внешней системы на отмену снапшота
type AbortResult struct {
	RequestID  string
	SnapshotID string
	Status     string
	Error      string
}
