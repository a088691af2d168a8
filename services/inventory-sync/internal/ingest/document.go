// Package ingest разбирает файл снапшота остатков потоково и раскладывает его
// на плоские позиции (SKU, склад, ячейка).
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DocumentShape форма документа снапшота
type DocumentShape int

const (
	// ShapeUnknown форма еще не определена
	ShapeUnknown DocumentShape = iota
	// ShapeWrapped {"products": {"SKU": {...}}}
	ShapeWrapped
	// ShapeLegacy SKU лежат ключами верхнего уровня
	ShapeLegacy
)

func (s DocumentShape) String() string {
	switch s {
	case ShapeWrapped:
		return "wrapped"
	case ShapeLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// Quantity количество, принимающее число или числовую строку
type Quantity int

// UnmarshalJSON разбирает 5, 5.0, "5" и null
func (q *Quantity) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		*q = 0
		return nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		*q = Quantity(n)
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*q = 0
		return nil
	}
	*q = Quantity(int(f))
	return nil
}

// Member пара ключ-значение объекта JSON
type Member[T any] struct {
	Key   string
	Value T
}

// OrderedObject объект JSON, сохраняющий порядок ключей из файла
type OrderedObject[T any] []Member[T]

// UnmarshalJSON читает объект, сохраняя порядок ключей. null и пустой объект дают пустой срез
func (o *OrderedObject[T]) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*o = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		// массивы и скаляры на месте объекта считаем отсутствием данных
		*o = nil
		return nil
	}

	members := make(OrderedObject[T], 0)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected object key %v", keyTok)
		}
		var value T
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("member %q: %w", key, err)
		}
		members = append(members, Member[T]{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*o = members
	return nil
}

// BinEntry остаток в ячейке склада
type BinEntry struct {
	Name         string   `json:"name"`
	LocationName string   `json:"location_name"`
	Location     string   `json:"location"`
	Quantity     Quantity `json:"quantity"`
}

// Label человекочитаемое имя ячейки, только из явных полей payload
func (b BinEntry) Label() string {
	for _, candidate := range []string{b.Name, b.LocationName, b.Location} {
		if label := strings.TrimSpace(candidate); label != "" {
			return label
		}
	}
	return ""
}

// WarehouseEntry остатки SKU на одном складе
type WarehouseEntry struct {
	OnHand   Quantity                 `json:"on_hand"`
	ItemBins OrderedObject[BinEntry] `json:"item_bins"`
}

// SKUEntry одна запись товара из снапшота
type SKUEntry struct {
	SKU               string
	WarehouseProducts OrderedObject[WarehouseEntry]
}

type skuPayload struct {
	WarehouseProducts OrderedObject[WarehouseEntry] `json:"warehouse_products"`
}
