package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	pkgerrors "github.com/athebyme/gomarket-inventory/pkg/errors"
)

// productsKey ключ обертки в новом формате снапшота
const productsKey = "products"

// Parser потоково читает документ снапшота и отдает по одной записи SKU.
// В памяти одновременно находится только один объект SKU
type Parser struct {
	dec        *json.Decoder
	shape      DocumentShape
	started    bool
	inProducts bool
	done       bool
}

// NewParser создает парсер поверх потока
func NewParser(r io.Reader) *Parser {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &Parser{dec: dec}
}

// Shape форма документа: wrapped при объекте products, legacy при первом объекте
// верхнего уровня с warehouse_products. Прочие объекты до этого момента - метаданные
func (p *Parser) Shape() DocumentShape {
	return p.shape
}

// Next возвращает следующую запись SKU или io.EOF по окончании документа.
// Ошибки синтаксиса возвращаются как *errors.ParseError
func (p *Parser) Next() (*SKUEntry, error) {
	if p.done {
		return nil, io.EOF
	}
	if !p.started {
		if err := p.expectDelim('{'); err != nil {
			return nil, err
		}
		p.started = true
	}

	for {
		if p.inProducts {
			if p.dec.More() {
				return p.readSKU()
			}
			if err := p.expectDelim('}'); err != nil {
				return nil, err
			}
			p.inProducts = false
			continue
		}

		if !p.dec.More() {
			if err := p.expectDelim('}'); err != nil {
				return nil, err
			}
			p.done = true
			return nil, io.EOF
		}

		key, err := p.readKey()
		if err != nil {
			return nil, err
		}

		if key == productsKey && p.shape != ShapeLegacy {
			isObject, err := p.enterObjectOrSkip()
			if err != nil {
				return nil, err
			}
			if isObject {
				p.shape = ShapeWrapped
				p.inProducts = true
			}
			continue
		}

		var raw json.RawMessage
		if err := p.dec.Decode(&raw); err != nil {
			return nil, p.parseError(err)
		}
		if !isObject(raw) || p.shape == ShapeWrapped {
			// метаданные снапшота (snapshot_id, created_at...) и посторонние объекты обертки
			continue
		}
		if p.shape == ShapeUnknown && !hasWarehouseProducts(raw) {
			// объект без warehouse_products до первого SKU - метаданные ("meta": {...}),
			// форма остается неопределенной, и обертка products после него распознается
			continue
		}
		p.shape = ShapeLegacy
		return decodeSKU(key, raw, p.dec.InputOffset())
	}
}

// hasWarehouseProducts есть ли в объекте член warehouse_products, хотя бы null
func hasWarehouseProducts(raw json.RawMessage) bool {
	var head struct {
		WarehouseProducts json.RawMessage `json:"warehouse_products"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		// битый объект разберет decodeSKU и вернет ParseError
		return true
	}
	return head.WarehouseProducts != nil
}

func (p *Parser) readSKU() (*SKUEntry, error) {
	key, err := p.readKey()
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := p.dec.Decode(&raw); err != nil {
		return nil, p.parseError(err)
	}
	if !isObject(raw) {
		return &SKUEntry{SKU: key}, nil
	}
	return decodeSKU(key, raw, p.dec.InputOffset())
}

func decodeSKU(key string, raw json.RawMessage, offset int64) (*SKUEntry, error) {
	var payload skuPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &pkgerrors.ParseError{Offset: offset, Err: fmt.Errorf("sku %q: %w", key, err)}
	}
	return &SKUEntry{SKU: key, WarehouseProducts: payload.WarehouseProducts}, nil
}

func (p *Parser) readKey() (string, error) {
	tok, err := p.dec.Token()
	if err != nil {
		return "", p.parseError(err)
	}
	key, ok := tok.(string)
	if !ok {
		return "", p.parseError(fmt.Errorf("expected object key, got %v", tok))
	}
	return key, nil
}

// enterObjectOrSkip входит в объект, если значение - объект, иначе пропускает значение целиком
func (p *Parser) enterObjectOrSkip() (bool, error) {
	tok, err := p.dec.Token()
	if err != nil {
		return false, p.parseError(err)
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return false, nil
	}
	if delim == '{' {
		return true, nil
	}
	// массив: пропускаем до парной скобки
	depth := 1
	for depth > 0 {
		tok, err := p.dec.Token()
		if err != nil {
			return false, p.parseError(err)
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return false, nil
}

func (p *Parser) expectDelim(want json.Delim) error {
	tok, err := p.dec.Token()
	if err != nil {
		return p.parseError(err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != want {
		return p.parseError(fmt.Errorf("expected %q, got %v", want, tok))
	}
	return nil
}

func (p *Parser) parseError(err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return &pkgerrors.ParseError{Offset: p.dec.InputOffset(), Err: err}
}

func isObject(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}
