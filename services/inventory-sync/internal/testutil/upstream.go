// Package testutil подставные реализации внешней складской системы для тестов
package testutil

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	pkgerrors "github.com/athebyme/gomarket-inventory/pkg/errors"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/codec"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/models"
)

// FakeUpstream внешняя система в памяти: снапшоты создаются в статусе queued,
// статус меняется через SetStatus
type FakeUpstream struct {
	mu sync.Mutex

	seq       int
	snapshots map[string]*models.SnapshotStatus

	// Generated закодированные ID складов в порядке запросов
	Generated []string
	// Aborted ID снапшотов, которые просили отменить
	Aborted []string

	// GenerateErrs ошибки запроса снапшота по закодированному ID склада
	GenerateErrs map[string]error
	// GetErr ошибка любого запроса статуса
	GetErr error
	// AbortErr ошибка отмены
	AbortErr error
}

// NewFakeUpstream создает пустую внешнюю систему
func NewFakeUpstream() *FakeUpstream {
	return &FakeUpstream{
		snapshots:    make(map[string]*models.SnapshotStatus),
		GenerateErrs: make(map[string]error),
	}
}

func (f *FakeUpstream) GenerateSnapshot(_ context.Context, warehouseToken string) (*models.SnapshotRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.GenerateErrs[warehouseToken]; ok {
		return nil, err
	}

	f.seq++
	id := fmt.Sprintf("snap-%d", f.seq)
	f.Generated = append(f.Generated, warehouseToken)
	f.snapshots[id] = &models.SnapshotStatus{
		RequestID:   fmt.Sprintf("req-%d", f.seq),
		SnapshotID:  id,
		WarehouseID: warehouseToken,
		Status:      "queued",
	}
	return &models.SnapshotRequest{RequestID: fmt.Sprintf("req-%d", f.seq), SnapshotID: id, Status: "queued"}, nil
}

func (f *FakeUpstream) GetSnapshot(_ context.Context, snapshotID string) (*models.SnapshotStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.GetErr != nil {
		return nil, f.GetErr
	}
	s, ok := f.snapshots[snapshotID]
	if !ok {
		return nil, &pkgerrors.UpstreamAPIError{
			Operation:  "get snapshot",
			StatusCode: http.StatusNotFound,
			Message:    "snapshot not found",
		}
	}
	cp := *s
	return &cp, nil
}

func (f *FakeUpstream) AbortSnapshot(_ context.Context, snapshotID, _ string) (*models.AbortResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Aborted = append(f.Aborted, snapshotID)
	if f.AbortErr != nil {
		return nil, f.AbortErr
	}
	if s, ok := f.snapshots[snapshotID]; ok {
		s.Status = "aborted"
	}
	return &models.AbortResult{SnapshotID: snapshotID, Status: "aborted"}, nil
}

// AddSnapshot регистрирует снапшот, заказанный в обход GenerateSnapshot
func (f *FakeUpstream) AddSnapshot(snapshotID, status, url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots[snapshotID] = &models.SnapshotStatus{SnapshotID: snapshotID, Status: status, SnapshotURL: url}
}

// SetStatus меняет статус снапшота и ссылку на файл
func (f *FakeUpstream) SetStatus(snapshotID, status, url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.snapshots[snapshotID]; ok {
		s.Status = status
		s.SnapshotURL = url
	}
}

// StaticTokens источник токена с фиксированным ответом
type StaticTokens struct {
	Token string
	Err   error
}

func (t StaticTokens) GetValidAccessToken(context.Context) (string, error) {
	if t.Err != nil {
		return "", t.Err
	}
	return t.Token, nil
}

// Bin остаток в ячейке для SnapshotDocument
type Bin struct {
	ID       int
	Name     string
	Quantity int
}

// Stock остатки SKU на складе для SnapshotDocument
type Stock struct {
	SKU         string
	WarehouseID int
	OnHand      int
	Bins        []Bin
}

// SnapshotDocument собирает файл снапшота в формате внешней системы (без обертки)
func SnapshotDocument(stocks ...Stock) string {
	grouped := make(map[string][]Stock)
	order := make([]string, 0, len(stocks))
	for _, s := range stocks {
		if _, ok := grouped[s.SKU]; !ok {
			order = append(order, s.SKU)
		}
		grouped[s.SKU] = append(grouped[s.SKU], s)
	}

	skus := make([]string, 0, len(order))
	for _, sku := range order {
		warehouses := make([]string, 0, len(grouped[sku]))
		for _, s := range grouped[sku] {
			bins := make([]string, 0, len(s.Bins))
			for _, b := range s.Bins {
				bins = append(bins, fmt.Sprintf(`%q: {"name": %q, "quantity": %d}`,
					codec.Encode("Bin", b.ID), b.Name, b.Quantity))
			}
			warehouses = append(warehouses, fmt.Sprintf(`%q: {"on_hand": %d, "item_bins": {%s}}`,
				codec.Encode("Warehouse", s.WarehouseID), s.OnHand, strings.Join(bins, ", ")))
		}
		skus = append(skus, fmt.Sprintf(`%q: {"warehouse_products": {%s}}`, sku, strings.Join(warehouses, ", ")))
	}
	return "{" + strings.Join(skus, ", ") + "}"
}
