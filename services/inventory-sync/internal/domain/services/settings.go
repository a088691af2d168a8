package services

import (
	"context"
	"time"
)

const (
	// DefaultBatchSize размер пакета записи позиций
	DefaultBatchSize = 1000
	// DefaultStaleAfter возраст активной задачи, после которого она принудительно проваливается
	DefaultStaleAfter = 2 * time.Hour
	// DefaultRetryProcessingAfter через сколько повторять импорт зависшей processing задачи
	DefaultRetryProcessingAfter = 5 * time.Minute
	// DefaultRequestDelay пауза между запросами снапшотов по разным складам
	DefaultRequestDelay = time.Second
	// DefaultPollDelay пауза между запросами статусов при опросе
	DefaultPollDelay = 500 * time.Millisecond
	// DefaultProgressEveryBatches как часто сохранять прогресс импорта
	DefaultProgressEveryBatches = 10
	// DefaultProgressBytes как часто логировать объем скачанного файла
	DefaultProgressBytes = 10 << 20
)

// Settings параметры конвейера синхронизации
type Settings struct {
	BatchSize            int
	StaleAfter           time.Duration
	RetryProcessingAfter time.Duration
	RequestDelay         time.Duration
	PollDelay            time.Duration
	ProgressEveryBatches int
	ProgressBytes        int64
}

// DefaultSettings возвращает настройки по умолчанию
func DefaultSettings() Settings {
	return Settings{
		BatchSize:            DefaultBatchSize,
		StaleAfter:           DefaultStaleAfter,
		RetryProcessingAfter: DefaultRetryProcessingAfter,
		RequestDelay:         DefaultRequestDelay,
		PollDelay:            DefaultPollDelay,
		ProgressEveryBatches: DefaultProgressEveryBatches,
		ProgressBytes:        DefaultProgressBytes,
	}
}

// withDefaults заполняет незаданные поля значениями по умолчанию.
// Нулевые паузы допустимы и не заменяются
func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.BatchSize <= 0 {
		s.BatchSize = d.BatchSize
	}
	if s.StaleAfter <= 0 {
		s.StaleAfter = d.StaleAfter
	}
	if s.RetryProcessingAfter <= 0 {
		s.RetryProcessingAfter = d.RetryProcessingAfter
	}
	if s.RequestDelay < 0 {
		s.RequestDelay = 0
	}
	if s.PollDelay < 0 {
		s.PollDelay = 0
	}
	if s.ProgressEveryBatches <= 0 {
		s.ProgressEveryBatches = d.ProgressEveryBatches
	}
	if s.ProgressBytes <= 0 {
		s.ProgressBytes = d.ProgressBytes
	}
	return s
}

// sleepCtx пауза с учетом отмены контекста
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
