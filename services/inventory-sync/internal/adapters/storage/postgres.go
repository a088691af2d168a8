package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pkgerrors "github.com/athebyme/gomarket-inventory/pkg/errors"
	"github.com/athebyme/gomarket-inventory/pkg/interfaces"
	"github.com/athebyme/gomarket-inventory/pkg/tx"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const jobColumns = `id, snapshot_id, COALESCE(request_id, ''), warehouse_id, status, total_items,
	processed_items, COALESCE(error_message, ''), created_at, started_at, completed_at`

// PostgresStorage хранилище задач, позиций и реестра складов в PostgreSQL
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage создает хранилище поверх готового пула
func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool}
}

var _ interfaces.StoragePort = (*PostgresStorage)(nil)

// Ping проверяет соединение с БД
func (r *PostgresStorage) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close закрывает соединение с БД
func (r *PostgresStorage) Close() error {
	r.pool.Close()
	return nil
}

type executor interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	SendBatch(context.Context, *pgx.Batch) pgx.BatchResults
}

// getExecutor возвращает исполнителя запросов (транзакцию или пул)
func (r *PostgresStorage) getExecutor(ctx context.Context) executor {
	if t, ok := tx.GetTxFromContext(ctx); ok {
		return t
	}
	return r.pool
}

// CreateJob сохраняет новую задачу
func (r *PostgresStorage) CreateJob(ctx context.Context, job *models.SyncJob) error {
	query := `
		INSERT INTO inventory.sync_jobs
			(id, snapshot_id, request_id, warehouse_id, status, total_items, processed_items, error_message, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, NULLIF($8, ''), $9)
	`

	_, err := r.getExecutor(ctx).Exec(ctx, query,
		job.ID, job.SnapshotID, job.RequestID, job.WarehouseID, string(job.Status),
		job.TotalItems, job.ProcessedItems, job.ErrorMessage, job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync job: %w", err)
	}
	return nil
}

// isJobID ID задач - UUID, строка другого вида не может быть в таблице
func isJobID(jobID string) bool {
	_, err := uuid.Parse(jobID)
	return err == nil
}

// GetJob получает задачу по ID
func (r *PostgresStorage) GetJob(ctx context.Context, jobID string) (*models.SyncJob, error) {
	if !isJobID(jobID) {
		return nil, &pkgerrors.NotFoundError{Entity: "sync job", Key: jobID}
	}

	query := `SELECT ` + jobColumns + ` FROM inventory.sync_jobs WHERE id = $1`

	job, err := scanJob(r.getExecutor(ctx).QueryRow(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &pkgerrors.NotFoundError{Entity: "sync job", Key: jobID}
		}
		return nil, fmt.Errorf("failed to get sync job: %w", err)
	}
	return job, nil
}

// GetJobBySnapshotID получает последнюю задачу по ID снапшота
func (r *PostgresStorage) GetJobBySnapshotID(ctx context.Context, snapshotID string) (*models.SyncJob, error) {
	query := `SELECT ` + jobColumns + `
		FROM inventory.sync_jobs
		WHERE snapshot_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	job, err := scanJob(r.getExecutor(ctx).QueryRow(ctx, query, snapshotID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &pkgerrors.NotFoundError{Entity: "sync job for snapshot", Key: snapshotID}
		}
		return nil, fmt.Errorf("failed to get sync job by snapshot: %w", err)
	}
	return job, nil
}

// ListJobs возвращает задачи по фильтру с общим количеством
func (r *PostgresStorage) ListJobs(ctx context.Context, filter models.JobFilter) ([]*models.SyncJob, int, error) {
	exec := r.getExecutor(ctx)

	where := ""
	args := []interface{}{}
	if len(filter.Statuses) > 0 {
		args = append(args, statusStrings(filter.Statuses))
		where = "WHERE status = ANY($1)"
	}

	var total int
	if err := exec.QueryRow(ctx, `SELECT COUNT(*) FROM inventory.sync_jobs `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count sync jobs: %w", err)
	}
	if total == 0 {
		return []*models.SyncJob{}, 0, nil
	}

	order := "DESC"
	if filter.OldestFirst {
		order = "ASC"
	}

	var query strings.Builder
	query.WriteString(`SELECT ` + jobColumns + ` FROM inventory.sync_jobs `)
	query.WriteString(where)
	query.WriteString(` ORDER BY created_at ` + order + `, id ` + order)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)))
	}

	rows, err := exec.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sync jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*models.SyncJob, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan sync job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate sync jobs: %w", err)
	}

	return jobs, total, nil
}

// TransitionJob условный переход: строка меняется только если ее статус входит в from.
// started_at и completed_at выставляются один раз
func (r *PostgresStorage) TransitionJob(ctx context.Context, jobID string, from []models.SyncJobStatus, update models.JobUpdate) (bool, error) {
	if len(from) == 0 || !isJobID(jobID) {
		return false, nil
	}

	query := `
		UPDATE inventory.sync_jobs SET
			status          = $2,
			error_message   = COALESCE($3, error_message),
			total_items     = COALESCE($4, total_items),
			processed_items = COALESCE($5, processed_items),
			started_at      = CASE WHEN $2 = 'processing' THEN COALESCE(started_at, $6) ELSE started_at END,
			completed_at    = CASE WHEN $2 IN ('completed', 'failed', 'cancelled') THEN COALESCE(completed_at, $6) ELSE completed_at END
		WHERE id = $1 AND status = ANY($7)
	`

	tag, err := r.getExecutor(ctx).Exec(ctx, query,
		jobID, string(update.Status), update.ErrorMessage, update.TotalItems, update.ProcessedItems,
		update.At, statusStrings(from),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update sync job status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateJobProgress обновляет счетчики задачи в processing; total 0 не затирает известное значение
func (r *PostgresStorage) UpdateJobProgress(ctx context.Context, jobID string, processed, total int) error {
	if !isJobID(jobID) {
		return nil
	}

	query := `
		UPDATE inventory.sync_jobs SET
			processed_items = $2,
			total_items     = CASE WHEN $3 > 0 THEN $3 ELSE total_items END
		WHERE id = $1 AND status = 'processing'
	`

	if _, err := r.getExecutor(ctx).Exec(ctx, query, jobID, processed, total); err != nil {
		return fmt.Errorf("failed to update sync job progress: %w", err)
	}
	return nil
}

// UpsertPositions пишет позиции одним pgx.Batch в порядке входа,
// поэтому при повторе ключа в пакете побеждает последняя запись
func (r *PostgresStorage) UpsertPositions(ctx context.Context, positions []models.InventoryPosition) error {
	if len(positions) == 0 {
		return nil
	}

	query := `
		INSERT INTO inventory.inventory_positions (sku, warehouse_id, bin_name, bin_id, quantity, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (sku, warehouse_id, bin_name)
		DO UPDATE SET
			quantity   = EXCLUDED.quantity,
			bin_id     = COALESCE(EXCLUDED.bin_id, inventory_positions.bin_id),
			updated_at = EXCLUDED.updated_at
	`

	batch := &pgx.Batch{}
	for _, p := range positions {
		batch.Queue(query, p.SKU, p.WarehouseID, p.BinName, p.BinID, p.Quantity, p.UpdatedAt)
	}

	br := r.getExecutor(ctx).SendBatch(ctx, batch)
	for i := range positions {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("failed to upsert position %d (%s): %w", i, positions[i].SKU, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to close upsert batch: %w", err)
	}
	return nil
}

// ListPositions возвращает позиции склада, отсортированные по SKU и ячейке
func (r *PostgresStorage) ListPositions(ctx context.Context, warehouseID int) ([]models.InventoryPosition, error) {
	query := `
		SELECT sku, warehouse_id, bin_name, bin_id, quantity, updated_at
		FROM inventory.inventory_positions
		WHERE warehouse_id = $1
		ORDER BY sku, bin_name
	`

	rows, err := r.getExecutor(ctx).Query(ctx, query, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	defer rows.Close()

	var positions []models.InventoryPosition
	for rows.Next() {
		var p models.InventoryPosition
		if err := rows.Scan(&p.SKU, &p.WarehouseID, &p.BinName, &p.BinID, &p.Quantity, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan position row: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// ListWarehouses возвращает склады реестра
func (r *PostgresStorage) ListWarehouses(ctx context.Context, activeOnly bool) ([]models.Warehouse, error) {
	query := `SELECT id, name, active FROM inventory.warehouses`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY id`

	rows, err := r.getExecutor(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list warehouses: %w", err)
	}
	defer rows.Close()

	warehouses := make([]models.Warehouse, 0)
	for rows.Next() {
		var w models.Warehouse
		if err := rows.Scan(&w.ID, &w.Name, &w.Active); err != nil {
			return nil, fmt.Errorf("failed to scan warehouse row: %w", err)
		}
		warehouses = append(warehouses, w)
	}
	return warehouses, rows.Err()
}

// GetWarehouse возвращает склад по ID
func (r *PostgresStorage) GetWarehouse(ctx context.Context, warehouseID int) (*models.Warehouse, error) {
	var w models.Warehouse
	err := r.getExecutor(ctx).
		QueryRow(ctx, `SELECT id, name, active FROM inventory.warehouses WHERE id = $1`, warehouseID).
		Scan(&w.ID, &w.Name, &w.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &pkgerrors.NotFoundError{Entity: "warehouse", Key: fmt.Sprint(warehouseID)}
		}
		return nil, fmt.Errorf("failed to get warehouse: %w", err)
	}
	return &w, nil
}

// SaveWarehouse добавляет или обновляет запись реестра складов
func (r *PostgresStorage) SaveWarehouse(ctx context.Context, w models.Warehouse) error {
	query := `
		INSERT INTO inventory.warehouses (id, name, active, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id)
		DO UPDATE SET name = EXCLUDED.name, active = EXCLUDED.active, updated_at = now()
	`
	if _, err := r.getExecutor(ctx).Exec(ctx, query, w.ID, w.Name, w.Active); err != nil {
		return fmt.Errorf("failed to save warehouse: %w", err)
	}
	return nil
}

func scanJob(row pgx.Row) (*models.SyncJob, error) {
	var (
		job    models.SyncJob
		status string
	)
	err := row.Scan(
		&job.ID, &job.SnapshotID, &job.RequestID, &job.WarehouseID, &status, &job.TotalItems,
		&job.ProcessedItems, &job.ErrorMessage, &job.CreatedAt, &job.StartedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Status = models.SyncJobStatus(status)
	return &job, nil
}

func statusStrings(statuses []models.SyncJobStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
