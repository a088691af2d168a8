package utils

import (
	"errors"
	"testing"
	"time"

	pkgerrors "github.com/athebyme/gomarket-inventory/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateConnectionString(t *testing.T) {
	dsn, err := GenerateConnectionString("db", "sync", "secret", "inventory", "disable", 5432, 20, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "host=db port=5432 user=sync password=secret dbname=inventory sslmode=disable connect_timeout=5 pool_max_conns=20", dsn)
}

func TestGenerateConnectionStringQuotes(t *testing.T) {
	dsn, err := GenerateConnectionString("db", "sync", `it's a pass`, "inventory", "require", 5432, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, `host=db port=5432 user=sync password='it\'s a pass' dbname=inventory sslmode=require`, dsn)
}

func TestGenerateConnectionStringErrors(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		port    int
		sslMode string
		want    error
	}{
		{name: "empty host", host: "", port: 5432, sslMode: "disable", want: ErrStorageEmptyHostName},
		{name: "bad port", host: "db", port: 70000, sslMode: "disable", want: ErrStorageInvalidPortNumber},
		{name: "bad ssl mode", host: "db", port: 5432, sslMode: "sometimes", want: ErrStorageInvalidSslMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GenerateConnectionString(tt.host, "sync", "secret", "inventory", tt.sslMode, tt.port, 10, time.Second)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want))
			assert.True(t, pkgerrors.IsConfig(err))
		})
	}
}
