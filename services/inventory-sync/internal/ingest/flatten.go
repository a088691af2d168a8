package ingest

import (
	"fmt"

	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/codec"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/models"
)

// Warning некритичная проблема записи снапшота, импорт продолжается
type Warning struct {
	SKU          string `json:"sku"`
	WarehouseKey string `json:"warehouse_key,omitempty"`
	BinKey       string `json:"bin_key,omitempty"`
	Message      string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("sku %q warehouse %q bin %q: %s", w.SKU, w.WarehouseKey, w.BinKey, w.Message)
}

// Flatten раскладывает запись SKU на позиции (SKU, склад, ячейка).
// Позиции с количеством <= 0 не возвращаются
func Flatten(entry *SKUEntry) ([]models.InventoryPosition, []Warning) {
	if entry == nil {
		return nil, nil
	}

	var (
		positions []models.InventoryPosition
		warnings  []Warning
	)

	for _, wh := range entry.WarehouseProducts {
		warehouseID, err := codec.DecodeWarehouse(wh.Key)
		if err != nil {
			warnings = append(warnings, Warning{
				SKU:          entry.SKU,
				WarehouseKey: wh.Key,
				Message:      "undecodable warehouse identifier",
			})
			continue
		}

		if len(wh.Value.ItemBins) == 0 {
			if wh.Value.OnHand > 0 {
				positions = append(positions, models.InventoryPosition{
					SKU:         entry.SKU,
					WarehouseID: warehouseID,
					BinName:     models.DefaultBinName,
					Quantity:    int(wh.Value.OnHand),
				})
			}
			continue
		}

		var (
			unlabeled    int
			unlabeledIDs []string
		)
		for _, bin := range wh.Value.ItemBins {
			if bin.Value.Quantity <= 0 {
				continue
			}

			label := bin.Value.Label()
			if label == "" {
				warnings = append(warnings, Warning{
					SKU:          entry.SKU,
					WarehouseKey: wh.Key,
					BinKey:       bin.Key,
					Message:      "bin has no name or location, counted under " + models.UnlabeledBinName,
				})
				unlabeled += int(bin.Value.Quantity)
				unlabeledIDs = append(unlabeledIDs, bin.Key)
				continue
			}

			positions = append(positions, models.InventoryPosition{
				SKU:         entry.SKU,
				WarehouseID: warehouseID,
				BinName:     label,
				BinID:       decodeBinID(bin.Key),
				Quantity:    int(bin.Value.Quantity),
			})
		}

		// ячейки без названия сливаются в одну позицию, иначе они затрут друг друга по ключу
		if unlabeled > 0 {
			var binID *int
			if len(unlabeledIDs) == 1 {
				binID = decodeBinID(unlabeledIDs[0])
			}
			positions = append(positions, models.InventoryPosition{
				SKU:         entry.SKU,
				WarehouseID: warehouseID,
				BinName:     models.UnlabeledBinName,
				BinID:       binID,
				Quantity:    unlabeled,
			})
		}
	}

	return positions, warnings
}

// decodeBinID best-effort: nil, если идентификатор ячейки не декодируется
func decodeBinID(key string) *int {
	id, err := codec.DecodeBin(key)
	if err != nil {
		return nil
	}
	return &id
}
