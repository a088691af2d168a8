package utils

import (
	"strconv"
	"strings"
	"time"
)

var validSSLModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// GenerateConnectionString собирает DSN PostgreSQL в формате key=value.
// Ошибки возвращаются как errors.ConfigError
func GenerateConnectionString(
	host, user, password, dbName, sslMode string,
	port, poolSize int,
	timeout time.Duration,
) (string, error) {
	var conStr strings.Builder

	if host == "" {
		return "", storageConfigError("host", ErrStorageEmptyHostName)
	}
	if port <= 0 || port > 65535 {
		return "", storageConfigError("port", ErrStorageInvalidPortNumber)
	}
	if user == "" {
		return "", storageConfigError("user", ErrStorageEmptyUsername)
	}
	if password == "" {
		return "", storageConfigError("password", ErrStorageEmptyPassword)
	}
	if dbName == "" {
		return "", storageConfigError("dbname", ErrStorageInvalidDatabaseName)
	}
	if !validSSLModes[sslMode] {
		return "", storageConfigError("sslmode", ErrStorageInvalidSslMode)
	}
	if timeout < 0 {
		return "", storageConfigError("timeout", ErrStorageInvalidTimeout)
	}
	if poolSize < 0 {
		return "", storageConfigError("poolSize", ErrStorageInvalidPoolSize)
	}

	conStr.WriteString("host=")
	conStr.WriteString(quoteValue(host))
	conStr.WriteString(" port=")
	conStr.WriteString(strconv.Itoa(port))
	conStr.WriteString(" user=")
	conStr.WriteString(quoteValue(user))
	conStr.WriteString(" password=")
	conStr.WriteString(quoteValue(password))
	conStr.WriteString(" dbname=")
	conStr.WriteString(quoteValue(dbName))
	conStr.WriteString(" sslmode=")
	conStr.WriteString(sslMode)

	if timeout > 0 {
		conStr.WriteString(" connect_timeout=")
		conStr.WriteString(strconv.Itoa(int(timeout.Seconds())))
	}
	if poolSize > 0 {
		conStr.WriteString(" pool_max_conns=")
		conStr.WriteString(strconv.Itoa(poolSize))
	}

	return conStr.String(), nil
}

// quoteValue экранирует значение, если в нем есть пробелы, кавычки или обратный слэш
func quoteValue(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
