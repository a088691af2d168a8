// Package codec кодирует и декодирует непрозрачные идентификаторы внешней системы:
// base64 от строки "Тип:число", например "Warehouse:123".
package codec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Типы сущностей внешней системы
const (
	TypeWarehouse = "Warehouse"
	TypeBin       = "Bin"
)

// ErrInvalidIdentifier идентификатор не удалось декодировать
var ErrInvalidIdentifier = errors.New("invalid opaque identifier")

var encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// Encode кодирует пару (тип, id) в непрозрачный идентификатор
func Encode(typeName string, id int) string {
	return base64.StdEncoding.EncodeToString([]byte(typeName + ":" + strconv.Itoa(id)))
}

// EncodeWarehouse кодирует числовой ID склада
func EncodeWarehouse(id int) string {
	return Encode(TypeWarehouse, id)
}

// Decode возвращает тип и числовой ID из непрозрачного идентификатора.
// Строка из одних цифр принимается как уже декодированный ID без типа.
// ID неотрицательные: Decode обращает Encode для любого id >= 0
func Decode(token string) (string, int, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", 0, fmt.Errorf("%w: empty", ErrInvalidIdentifier)
	}

	for _, enc := range encodings {
		raw, err := enc.DecodeString(token)
		if err != nil {
			continue
		}
		if typeName, id, ok := splitTyped(string(raw)); ok {
			return typeName, id, nil
		}
	}

	if id, err := strconv.Atoi(token); err == nil && id >= 0 {
		return "", id, nil
	}

	return "", 0, fmt.Errorf("%w: %q", ErrInvalidIdentifier, token)
}

// DecodeAs декодирует идентификатор и проверяет его тип
func DecodeAs(token, expectedType string) (int, error) {
	typeName, id, err := Decode(token)
	if err != nil {
		return 0, err
	}
	if typeName != "" && expectedType != "" && typeName != expectedType {
		return 0, fmt.Errorf("%w: expected %s, got %s", ErrInvalidIdentifier, expectedType, typeName)
	}
	return id, nil
}

// DecodeWarehouse декодирует идентификатор склада
func DecodeWarehouse(token string) (int, error) {
	return DecodeAs(token, TypeWarehouse)
}

// DecodeBin декодирует идентификатор ячейки
func DecodeBin(token string) (int, error) {
	return DecodeAs(token, TypeBin)
}

// splitTyped разбирает "Тип:id"; id - неотрицательное целое, как в Encode
func splitTyped(raw string) (string, int, bool) {
	idx := strings.LastIndexByte(raw, ':')
	if idx <= 0 || idx == len(raw)-1 {
		return "", 0, false
	}
	typeName := raw[:idx]
	for _, r := range typeName {
		if !(r == '_' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return "", 0, false
		}
	}
	id, err := strconv.Atoi(raw[idx+1:])
	if err != nil || id < 0 {
		return "", 0, false
	}
	return typeName, id, true
}
