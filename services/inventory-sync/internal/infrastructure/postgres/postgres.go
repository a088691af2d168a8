package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-inventory/pkg/interfaces"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool создает пул соединений и проверяет доступность БД
func NewPool(ctx context.Context, connectionString string, maxConns int, logger interfaces.LoggerPort) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	logger.Info("Пул соединений PostgreSQL создан",
		interfaces.LogField{Key: "max_conns", Value: cfg.MaxConns},
	)
	return pool, nil
}
