package interfaces

import "context"

// LogField представляет дополнительное поле в логе
type LogField struct {
	Key   string
	Value interface{}
}

// ContextKey тип ключей контекста, из которых логгер извлекает поля
type ContextKey string

// Ключи контекста, которые попадают в каждую запись *WithContext
const (
	RequestIDKey  ContextKey = "request_id"
	TraceIDKey    ContextKey = "trace_id"
	JobIDKey      ContextKey = "job_id"
	SnapshotIDKey ContextKey = "snapshot_id"
	OperatorKey   ContextKey = "operator"
)

// LoggerPort определяет интерфейс для системы логирования
// Реализация может использовать любую библиотеку логирования (Zap, Logrus, Zerolog и т.д.)
type LoggerPort interface {
	// Debug логирует сообщение с уровнем Debug
	Debug(msg string, args ...interface{})

	// Info логирует сообщение с уровнем Info
	Info(msg string, args ...interface{})

	// Warn логирует сообщение с уровнем Warn
	Warn(msg string, args ...interface{})

	// Error логирует сообщение с уровнем Error
	Error(msg string, args ...interface{})

	// Fatal логирует сообщение с уровнем Fatal и завершает программу
	Fatal(msg string, args ...interface{})

	// DebugWithContext логирует сообщение с полями из контекста
	DebugWithContext(ctx context.Context, msg string, args ...interface{})

	// InfoWithContext логирует сообщение с полями из контекста
	InfoWithContext(ctx context.Context, msg string, args ...interface{})

	// WarnWithContext логирует сообщение с полями из контекста
	WarnWithContext(ctx context.Context, msg string, args ...interface{})

	// ErrorWithContext логирует сообщение с полями из контекста
	ErrorWithContext(ctx context.Context, msg string, args ...interface{})

	// WithFields возвращает новый логгер с добавленными полями
	WithFields(fields ...LogField) LoggerPort

	// WithField возвращает новый логгер с добавленным полем
	WithField(key string, value interface{}) LoggerPort

	// WithJob возвращает новый логгер, привязанный к задаче синхронизации
	WithJob(jobID string) LoggerPort

	// Sync сбрасывает буферы логгера
	Sync() error
}

// WithJobID кладет идентификатор задачи в контекст для логирования
func WithJobID(ctx context.Context, jobID string) context.Context {
	if jobID == "" {
		return ctx
	}
	return context.WithValue(ctx, JobIDKey, jobID)
}

// WithSnapshotID кладет идентификатор снапшота в контекст для логирования
func WithSnapshotID(ctx context.Context, snapshotID string) context.Context {
	if snapshotID == "" {
		return ctx
	}
	return context.WithValue(ctx, SnapshotIDKey, snapshotID)
}

// WithOperator кладет имя оператора, запустившего операцию, в контекст для логирования
func WithOperator(ctx context.Context, operator string) context.Context {
	if operator == "" {
		return ctx
	}
	return context.WithValue(ctx, OperatorKey, operator)
}
