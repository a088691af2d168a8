package interfaces

import (
	"context"
)

// TxRunner выполняет функцию в рамках одной транзакции хранилища.
// Реализация для PostgreSQL - tx.TxManager, для памяти - последовательный вызов под мьютексом
type TxRunner interface {
	// Do выполняет fn в транзакции: ошибка fn приводит к откату, успех - к фиксации
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// StoragePort определяет общий интерфейс постоянного хранилища данных
type StoragePort interface {
	// Ping проверяет доступность хранилища
	Ping(ctx context.Context) error

	// Close закрывает соединение с хранилищем
	Close() error
}
