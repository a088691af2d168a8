package models

import "time"

// DefaultBinName условное имя ячейки для остатка без разбивки по ячейкам
const DefaultBinName = "DEFAULT"

// UnlabeledBinName условное имя ячейки для остатка из ячеек без названия и адреса
const UnlabeledBinName = "UNLABELED"

// InventoryPosition остаток SKU в ячейке склада.
// Ключ - (SKU, WarehouseID, BinName); хранятся только положительные количества
type InventoryPosition struct {
	SKU         string    `json:"sku"`
	WarehouseID int       `json:"warehouse_id"`
	BinName     string    `json:"bin_name"`
	BinID       *int      `json:"bin_id,omitempty"`
	Quantity    int       `json:"quantity"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PositionKey составной ключ позиции
type PositionKey struct {
	SKU         string
	WarehouseID int
	BinName     string
}

// Key возвращает составной ключ позиции
func (p InventoryPosition) Key() PositionKey {
	return PositionKey{SKU: p.SKU, WarehouseID: p.WarehouseID, BinName: p.BinName}
}
