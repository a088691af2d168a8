package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	pkgerrors "github.com/athebyme/gomarket-inventory/pkg/errors"
	"github.com/athebyme/gomarket-inventory/pkg/interfaces"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/models"
)

// MemoryStorage хранилище в памяти процесса для локального запуска и тестов.
// Повторяет семантику PostgresStorage: условные переходы и upsert с coalesce bin_id
type MemoryStorage struct {
	mu         sync.RWMutex
	jobs       map[string]*models.SyncJob
	jobSeq     map[string]int
	seq        int
	positions  map[models.PositionKey]models.InventoryPosition
	warehouses map[int]models.Warehouse
}

// NewMemoryStorage создает пустое хранилище
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		jobs:       make(map[string]*models.SyncJob),
		jobSeq:     make(map[string]int),
		positions:  make(map[models.PositionKey]models.InventoryPosition),
		warehouses: make(map[int]models.Warehouse),
	}
}

var (
	_ interfaces.StoragePort = (*MemoryStorage)(nil)
	_ interfaces.TxRunner    = (*MemoryStorage)(nil)
)

func (m *MemoryStorage) Ping(context.Context) error { return nil }

func (m *MemoryStorage) Close() error { return nil }

// Do выполняет fn без транзакции: каждая операция хранилища атомарна сама по себе
func (m *MemoryStorage) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *MemoryStorage) CreateJob(_ context.Context, job *models.SyncJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[job.ID]; exists {
		return fmt.Errorf("sync job %s already exists", job.ID)
	}
	stored := copyJob(job)
	m.jobs[job.ID] = stored
	m.seq++
	m.jobSeq[job.ID] = m.seq
	return nil
}

func (m *MemoryStorage) GetJob(_ context.Context, jobID string) (*models.SyncJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return nil, &pkgerrors.NotFoundError{Entity: "sync job", Key: jobID}
	}
	return copyJob(job), nil
}

func (m *MemoryStorage) GetJobBySnapshotID(_ context.Context, snapshotID string) (*models.SyncJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *models.SyncJob
	for _, job := range m.jobs {
		if job.SnapshotID != snapshotID {
			continue
		}
		if latest == nil || m.newer(job, latest) {
			latest = job
		}
	}
	if latest == nil {
		return nil, &pkgerrors.NotFoundError{Entity: "sync job for snapshot", Key: snapshotID}
	}
	return copyJob(latest), nil
}

func (m *MemoryStorage) ListJobs(_ context.Context, filter models.JobFilter) ([]*models.SyncJob, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*models.SyncJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, job.Status) {
			continue
		}
		matched = append(matched, job)
	}

	sort.Slice(matched, func(i, j int) bool {
		if filter.OldestFirst {
			return m.newer(matched[j], matched[i])
		}
		return m.newer(matched[i], matched[j])
	})

	total := len(matched)
	start := filter.Offset
	if start > total {
		start = total
	}
	end := total
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}

	out := make([]*models.SyncJob, 0, end-start)
	for _, job := range matched[start:end] {
		out = append(out, copyJob(job))
	}
	return out, total, nil
}

func (m *MemoryStorage) TransitionJob(_ context.Context, jobID string, from []models.SyncJobStatus, update models.JobUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok || !containsStatus(from, job.Status) {
		return false, nil
	}

	job.Status = update.Status
	if update.ErrorMessage != nil {
		job.ErrorMessage = *update.ErrorMessage
	}
	if update.TotalItems != nil {
		job.TotalItems = *update.TotalItems
	}
	if update.ProcessedItems != nil {
		job.ProcessedItems = *update.ProcessedItems
	}
	at := update.At
	if update.Status == models.SyncJobProcessing && job.StartedAt == nil {
		job.StartedAt = &at
	}
	if update.Status.IsTerminal() && job.CompletedAt == nil {
		job.CompletedAt = &at
	}
	return true, nil
}

func (m *MemoryStorage) UpdateJobProgress(_ context.Context, jobID string, processed, total int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok || job.Status != models.SyncJobProcessing {
		return nil
	}
	job.ProcessedItems = processed
	if total > 0 {
		job.TotalItems = total
	}
	return nil
}

func (m *MemoryStorage) UpsertPositions(_ context.Context, positions []models.InventoryPosition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range positions {
		key := p.Key()
		if existing, ok := m.positions[key]; ok && p.BinID == nil {
			p.BinID = existing.BinID
		}
		m.positions[key] = p
	}
	return nil
}

// ListPositions возвращает позиции склада, отсортированные по SKU и ячейке
func (m *MemoryStorage) ListPositions(_ context.Context, warehouseID int) ([]models.InventoryPosition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.InventoryPosition
	for _, p := range m.positions {
		if p.WarehouseID == warehouseID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SKU != out[j].SKU {
			return out[i].SKU < out[j].SKU
		}
		return out[i].BinName < out[j].BinName
	})
	return out, nil
}

func (m *MemoryStorage) ListWarehouses(_ context.Context, activeOnly bool) ([]models.Warehouse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Warehouse, 0, len(m.warehouses))
	for _, w := range m.warehouses {
		if activeOnly && !w.Active {
			continue
		}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStorage) GetWarehouse(_ context.Context, warehouseID int) (*models.Warehouse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.warehouses[warehouseID]
	if !ok {
		return nil, &pkgerrors.NotFoundError{Entity: "warehouse", Key: fmt.Sprint(warehouseID)}
	}
	return &w, nil
}

func (m *MemoryStorage) SaveWarehouse(_ context.Context, w models.Warehouse) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.warehouses[w.ID] = w
	return nil
}

// newer сравнивает задачи по created_at, при равенстве - по порядку вставки
func (m *MemoryStorage) newer(a, b *models.SyncJob) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return m.jobSeq[a.ID] > m.jobSeq[b.ID]
}

func containsStatus(statuses []models.SyncJobStatus, s models.SyncJobStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func copyJob(job *models.SyncJob) *models.SyncJob {
	c := *job
	if job.StartedAt != nil {
		t := *job.StartedAt
		c.StartedAt = &t
	}
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
