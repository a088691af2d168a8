package ingest

import (
	"encoding/json"
	"testing"

	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryFromJSON(t *testing.T, sku, body string) *SKUEntry {
	t.Helper()
	entry, err := decodeSKU(sku, json.RawMessage(body), 0)
	require.NoError(t, err)
	return entry
}

func TestFlattenDefaultBinWhenNoBreakdown(t *testing.T) {
	entry := entryFromJSON(t, "SKU2", `{"warehouse_products": {"`+b64("Warehouse:7")+`": {"on_hand": "12"}}}`)

	positions, warnings := Flatten(entry)

	assert.Empty(t, warnings)
	require.Len(t, positions, 1)
	assert.Equal(t, models.DefaultBinName, positions[0].BinName)
	assert.Nil(t, positions[0].BinID)
	assert.Equal(t, 7, positions[0].WarehouseID)
	assert.Equal(t, 12, positions[0].Quantity)
}

func TestFlattenDropsNonPositiveAggregate(t *testing.T) {
	entry := entryFromJSON(t, "SKU2", `{"warehouse_products": {"`+b64("Warehouse:7")+`": {"on_hand": 0, "item_bins": {}}}}`)

	positions, warnings := Flatten(entry)

	assert.Empty(t, positions)
	assert.Empty(t, warnings)
}

func TestFlattenUndecodableWarehouseIsWarning(t *testing.T) {
	entry := entryFromJSON(t, "SKU3", `{"warehouse_products": {
		"%%%": {"on_hand": 3},
		"`+b64("Warehouse:2")+`": {"on_hand": 3}
	}}`)

	positions, warnings := Flatten(entry)

	require.Len(t, warnings, 1)
	assert.Equal(t, "%%%", warnings[0].WarehouseKey)
	require.Len(t, positions, 1)
	assert.Equal(t, 2, positions[0].WarehouseID)
}

func TestFlattenBinLabelAndBestEffortBinID(t *testing.T) {
	entry := entryFromJSON(t, "SKU4", `{"warehouse_products": {"`+b64("Warehouse:1")+`": {"on_hand": 9, "item_bins": {
		"garbage-id": {"location_name": "B-02", "quantity": 4},
		"`+b64("Bin:33")+`": {"location": "C-03", "quantity": 5},
		"`+b64("Bin:34")+`": {"quantity": 2},
		"`+b64("Bin:35")+`": {"name": "D-04", "quantity": -1}
	}}}}`)

	positions, warnings := Flatten(entry)

	require.Len(t, positions, 3)
	assert.Equal(t, "B-02", positions[0].BinName)
	assert.Nil(t, positions[0].BinID)
	assert.Equal(t, "C-03", positions[1].BinName)
	require.NotNil(t, positions[1].BinID)
	assert.Equal(t, 33, *positions[1].BinID)
	assert.Equal(t, models.UnlabeledBinName, positions[2].BinName)
	assert.Equal(t, 2, positions[2].Quantity)
	require.NotNil(t, positions[2].BinID)
	assert.Equal(t, 34, *positions[2].BinID)

	require.Len(t, warnings, 1)
	assert.Equal(t, b64("Bin:34"), warnings[0].BinKey)
}

func TestFlattenMergesUnlabeledBins(t *testing.T) {
	entry := entryFromJSON(t, "SKU6", `{"warehouse_products": {"`+b64("Warehouse:3")+`": {"item_bins": {
		"`+b64("Bin:1")+`": {"quantity": 2},
		"`+b64("Bin:2")+`": {"name": "  ", "quantity": 3},
		"`+b64("Bin:3")+`": {"quantity": 0},
		"`+b64("Bin:4")+`": {"name": "A-01", "quantity": 1}
	}}}}`)

	positions, warnings := Flatten(entry)

	require.Len(t, positions, 2)
	assert.Equal(t, "A-01", positions[0].BinName)
	assert.Equal(t, models.InventoryPosition{
		SKU:         "SKU6",
		WarehouseID: 3,
		BinName:     models.UnlabeledBinName,
		Quantity:    5,
	}, positions[1])
	assert.Len(t, warnings, 2)
}

func TestFlattenOneRecordPerPositiveBin(t *testing.T) {
	entry := entryFromJSON(t, "SKU5", `{"warehouse_products": {
		"`+b64("Warehouse:1")+`": {"item_bins": {"`+b64("Bin:1")+`": {"name": "A", "quantity": 1}, "`+b64("Bin:2")+`": {"name": "B", "quantity": 0}}},
		"`+b64("Warehouse:2")+`": {"item_bins": {"`+b64("Bin:3")+`": {"name": "A", "quantity": 2.0}}}
	}}`)

	positions, _ := Flatten(entry)

	require.Len(t, positions, 2)
	assert.Equal(t, models.PositionKey{SKU: "SKU5", WarehouseID: 1, BinName: "A"}, positions[0].Key())
	assert.Equal(t, models.PositionKey{SKU: "SKU5", WarehouseID: 2, BinName: "A"}, positions[1].Key())
	assert.Equal(t, 2, positions[1].Quantity)
}
