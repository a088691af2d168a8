package utils

import (
	"errors"

	pkgerrors "github.com/athebyme/gomarket-inventory/pkg/errors"
)

// ----------------- storage ------------------
var (
	ErrStorageEmptyHostName       = errors.New("host name is empty")
	ErrStorageInvalidPortNumber   = errors.New("port number is invalid")
	ErrStorageEmptyUsername       = errors.New("username is empty")
	ErrStorageEmptyPassword       = errors.New("password is empty")
	ErrStorageInvalidDatabaseName = errors.New("database name is empty")
	ErrStorageInvalidSslMode      = errors.New("SSL mode is invalid")
	ErrStorageInvalidPoolSize     = errors.New("pool size is invalid")
	ErrStorageInvalidTimeout      = errors.New("timeout is invalid")
)

func storageConfigError(field string, err error) error {
	return &pkgerrors.ConfigError{Field: "postgres." + field, Reason: err.Error(), Err: err}
}
