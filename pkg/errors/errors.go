// Package errors содержит общую таксономию ошибок сервиса синхронизации остатков.
// Классификация выполняется через errors.Is / errors.As стандартной библиотеки.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ----------------- sentinel ------------------
var (
	// ErrCacheMiss значение в кэше отсутствует
	ErrCacheMiss = errors.New("cache miss")

	// ErrAuthExpired токен доступа к внешнему API истек или истекает в ближайшие минуты
	ErrAuthExpired = errors.New("upstream access token expired")

	// ErrNotFound запрошенная сущность (задача, снапшот) не найдена
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition недопустимый переход состояния задачи
	ErrInvalidTransition = errors.New("invalid sync job status transition")
)

// ConfigError отсутствует или некорректна конфигурация подключения к зависимостям.
// Фатальна для всего запроса.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError создает ConfigError
func NewConfigError(field, reason string) error {
	return &ConfigError{Field: field, Reason: reason}
}

// AuthExpiredError уточняет ErrAuthExpired: через сколько истекает токен и откуда он получен
type AuthExpiredError struct {
	Source string
	Detail string
}

func (e *AuthExpiredError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s (%s)", ErrAuthExpired.Error(), e.Source)
	}
	return fmt.Sprintf("%s (%s): %s", ErrAuthExpired.Error(), e.Source, e.Detail)
}

// Is позволяет сравнивать AuthExpiredError с ErrAuthExpired
func (e *AuthExpiredError) Is(target error) bool {
	return target == ErrAuthExpired
}

// UpstreamAPIError ошибка внешнего API, не связанная с авторизацией
type UpstreamAPIError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *UpstreamAPIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream %s failed (status %d): %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream %s failed: %s", e.Operation, e.Message)
}

// Is считает ошибку "не найдено" внешнего API разновидностью ErrNotFound
func (e *UpstreamAPIError) Is(target error) bool {
	return target == ErrNotFound && e.IsNotFound()
}

// IsNotFound проверяет, что внешний API сообщил об отсутствии сущности
func (e *UpstreamAPIError) IsNotFound() bool {
	if e.StatusCode == http.StatusNotFound {
		return true
	}
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist")
}

// Temporary сообщает, имеет ли смысл повторять вызов
func (e *UpstreamAPIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// NotFoundError "нет ожидающей задачи / снапшота" - определенный пустой результат, а не сбой
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %q not found", e.Entity, e.Key)
}

// Is позволяет сравнивать NotFoundError с ErrNotFound
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ParseError некорректный файл снапшота, проваливает только текущий импорт
type ParseError struct {
	Offset int64
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("snapshot parse error at offset %d: %v", e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// BatchFailure описывает неудачную запись одного пакета
type BatchFailure struct {
	BatchIndex int
	Records    int
	Err        error
}

func (f BatchFailure) Error() string {
	return fmt.Sprintf("batch %d (%d records): %v", f.BatchIndex, f.Records, f.Err)
}

// PartialBatchError часть пакетов не записана; успешно записанные пакеты не откатываются
type PartialBatchError struct {
	Failures []BatchFailure
	Total    int
}

func (e *PartialBatchError) Error() string {
	return fmt.Sprintf("%d of %d batches failed", len(e.Failures), e.Total)
}

// IsAuthExpired сокращение для errors.Is(err, ErrAuthExpired)
func IsAuthExpired(err error) bool {
	return errors.Is(err, ErrAuthExpired)
}

// IsNotFound сокращение для errors.Is(err, ErrNotFound)
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConfig проверяет, что ошибка вызвана конфигурацией
func IsConfig(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

// HTTPStatus сопоставляет ошибку с HTTP статусом ответа
func HTTPStatus(err error) int {
	var (
		parseErr    *ParseError
		upstreamErr *UpstreamAPIError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case IsAuthExpired(err):
		return http.StatusUnauthorized
	case IsConfig(err):
		return http.StatusInternalServerError
	case IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict
	case errors.As(err, &parseErr):
		return http.StatusInternalServerError
	case errors.As(err, &upstreamErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
