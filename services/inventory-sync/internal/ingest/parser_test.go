package ingest

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	pkgerrors "github.com/athebyme/gomarket-inventory/pkg/errors"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func skuBody(quantity int) string {
	return fmt.Sprintf(`{"warehouse_products": {%q: {"on_hand": 5, "item_bins": {%q: {"name": "A-01", "quantity": %d}}}}}`,
		b64("Warehouse:1"), b64("Bin:10"), quantity)
}

func parseAll(t *testing.T, doc string) ([]models.InventoryPosition, []Warning, DocumentShape) {
	t.Helper()
	p := NewParser(strings.NewReader(doc))
	var (
		positions []models.InventoryPosition
		warnings  []Warning
	)
	for {
		entry, err := p.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got, warn := Flatten(entry)
		positions = append(positions, got...)
		warnings = append(warnings, warn...)
	}
	return positions, warnings, p.Shape()
}

func TestParseLegacySingleBin(t *testing.T) {
	doc := fmt.Sprintf(`{"SKU1": %s}`, skuBody(5))

	positions, warnings, shape := parseAll(t, doc)

	assert.Equal(t, ShapeLegacy, shape)
	assert.Empty(t, warnings)
	require.Len(t, positions, 1)
	binID := 10
	assert.Equal(t, models.InventoryPosition{
		SKU:         "SKU1",
		WarehouseID: 1,
		BinName:     "A-01",
		BinID:       &binID,
		Quantity:    5,
	}, positions[0])
}

func TestParseZeroQuantityEmitsNothing(t *testing.T) {
	doc := fmt.Sprintf(`{"SKU1": %s}`, skuBody(0))

	positions, _, _ := parseAll(t, doc)

	assert.Empty(t, positions)
}

func TestParseWrappedMatchesLegacy(t *testing.T) {
	legacy := fmt.Sprintf(`{"SKU1": %s}`, skuBody(5))
	wrapped := fmt.Sprintf(`{"snapshot_id": "abc", "products": {"SKU1": %s}, "total": 1}`, skuBody(5))

	legacyPositions, _, legacyShape := parseAll(t, legacy)
	wrappedPositions, _, wrappedShape := parseAll(t, wrapped)

	assert.Equal(t, ShapeLegacy, legacyShape)
	assert.Equal(t, ShapeWrapped, wrappedShape)
	assert.Equal(t, legacyPositions, wrappedPositions)
}

func TestParseKeepsInputOrder(t *testing.T) {
	doc := fmt.Sprintf(`{"products": {"B": %s, "A": %s, "C": %s}}`, skuBody(1), skuBody(2), skuBody(3))

	positions, _, _ := parseAll(t, doc)

	require.Len(t, positions, 3)
	assert.Equal(t, []string{"B", "A", "C"}, []string{positions[0].SKU, positions[1].SKU, positions[2].SKU})
	assert.Equal(t, []int{1, 2, 3}, []int{positions[0].Quantity, positions[1].Quantity, positions[2].Quantity})
}

func TestParseEmptyDocuments(t *testing.T) {
	for _, doc := range []string{`{}`, `{"products": {}}`, `{"products": null}`, `{"snapshot_id": "x"}`} {
		positions, warnings, _ := parseAll(t, doc)
		assert.Empty(t, positions, doc)
		assert.Empty(t, warnings, doc)
	}
}

func TestParseMalformedDocument(t *testing.T) {
	for _, doc := range []string{``, `[]`, `{"SKU1": {"warehouse_products": `, `{"SKU1" 1}`} {
		p := NewParser(strings.NewReader(doc))
		var err error
		for err == nil {
			_, err = p.Next()
		}
		var parseErr *pkgerrors.ParseError
		assert.True(t, errors.As(err, &parseErr), "doc %q: %v", doc, err)
	}
}

func TestParseSkipsProductsArrayInLegacyDetection(t *testing.T) {
	doc := fmt.Sprintf(`{"products": [1, [2], {"x": 3}], "SKU9": %s}`, skuBody(4))

	positions, _, shape := parseAll(t, doc)

	assert.Equal(t, ShapeLegacy, shape)
	require.Len(t, positions, 1)
	assert.Equal(t, "SKU9", positions[0].SKU)
}

func TestParseWrappedAfterObjectMetadata(t *testing.T) {
	doc := fmt.Sprintf(`{"meta": {"account": "x"}, "export": {"format": 2}, "products": {"SKU1": %s}}`, skuBody(5))

	positions, warnings, shape := parseAll(t, doc)

	assert.Equal(t, ShapeWrapped, shape)
	assert.Empty(t, warnings)
	require.Len(t, positions, 1)
	assert.Equal(t, "SKU1", positions[0].SKU)
	assert.Equal(t, 5, positions[0].Quantity)
}

func TestParseLegacyAfterObjectMetadata(t *testing.T) {
	doc := fmt.Sprintf(`{"meta": {"account": "x"}, "SKU1": %s, "SKU2": {"warehouse_products": null}}`, skuBody(3))

	positions, _, shape := parseAll(t, doc)

	assert.Equal(t, ShapeLegacy, shape)
	require.Len(t, positions, 1)
	assert.Equal(t, "SKU1", positions[0].SKU)
}
