package upstream

import (
	"time"

	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/models"
)

const generateSnapshotMutation = `
mutation GenerateSnapshot($warehouse_id: String!) {
  inventory_generate_snapshot(data: { warehouse_id: $warehouse_id }) {
    request_id
    complexity
    snapshot {
      snapshot_id
      status
    }
  }
}`

const snapshotQuery = `
query InventorySnapshot($snapshot_id: String!) {
  inventory_snapshot(snapshot_id: $snapshot_id) {
    request_id
    complexity
    snapshot {
      snapshot_id
      warehouse_id
      status
      error
      created_at
      updated_at
      snapshot_url
      snapshot_expiration
    }
  }
}`

const abortSnapshotMutation = `
mutation AbortSnapshot($snapshot_id: String!, $reason: String) {
  inventory_abort_snapshot(data: { snapshot_id: $snapshot_id, reason: $reason }) {
    request_id
    complexity
    snapshot {
      snapshot_id
      status
      error
    }
  }
}`

type snapshotDTO struct {
	SnapshotID         string `json:"snapshot_id"`
	WarehouseID        string `json:"warehouse_id"`
	Status             string `json:"status"`
	Error              string `json:"error"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`
	SnapshotURL        string `json:"snapshot_url"`
	SnapshotExpiration string `json:"snapshot_expiration"`
}

func (d *snapshotDTO) toStatus() *models.SnapshotStatus {
	return &models.SnapshotStatus{
		SnapshotID:  d.SnapshotID,
		WarehouseID: d.WarehouseID,
		Status:      d.Status,
		Error:       d.Error,
		SnapshotURL: d.SnapshotURL,
		CreatedAt:   parseTime(d.CreatedAt),
		UpdatedAt:   parseTime(d.UpdatedAt),
		ExpiresAt:   parseTime(d.SnapshotExpiration),
	}
}

// timeLayouts форматы дат внешнего API
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
}

// parseTime разбирает дату; неизвестный формат дает nil
func parseTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
