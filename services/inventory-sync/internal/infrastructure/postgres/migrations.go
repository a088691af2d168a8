package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/athebyme/gomarket-inventory/pkg/interfaces"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migration одна версия схемы; файлы называются <номер>_<описание>.sql
type Migration struct {
	ID   int
	Name string
	SQL  string
}

// ReadMigrations читает миграции из fsys, отсортированные по номеру
func ReadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations dir: %w", err)
	}

	migrations := make([]Migration, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		id, err := strconv.Atoi(strings.SplitN(entry.Name(), "_", 2)[0])
		if err != nil {
			return nil, fmt.Errorf("invalid migration name %q: %w", entry.Name(), err)
		}

		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %q: %w", entry.Name(), err)
		}

		migrations = append(migrations, Migration{ID: id, Name: entry.Name(), SQL: string(data)})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].ID < migrations[j].ID })
	return migrations, nil
}

// Migrate применяет встроенные миграции схемы inventory.
// Если схема уже актуальна, ничего не делает
func Migrate(ctx context.Context, pool *pgxpool.Pool, logger interfaces.LoggerPort) error {
	start := time.Now()

	migrations, err := ReadMigrations(migrationsFS, "migrations")
	if err != nil {
		return err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for migrations: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `CREATE SEQUENCE IF NOT EXISTS inventory_sync_schema_version START WITH 0 MINVALUE 0`); err != nil {
		return fmt.Errorf("failed to create schema version sequence: %w", err)
	}

	var version int
	if err := conn.QueryRow(ctx, `SELECT last_value FROM inventory_sync_schema_version`).Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	logger.Info("Текущая версия схемы БД", interfaces.LogField{Key: "version", Value: version})

	for _, m := range migrations {
		if m.ID <= version {
			continue
		}

		tx, err := conn.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin migration %s: %w", m.Name, err)
		}
		if _, err := tx.Exec(ctx, m.SQL); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to apply migration %s: %w", m.Name, err)
		}
		if _, err := tx.Exec(ctx, `SELECT setval('inventory_sync_schema_version', $1)`, m.ID); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to set schema version %d: %w", m.ID, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", m.Name, err)
		}

		logger.Info("Применена миграция", interfaces.LogField{Key: "migration", Value: m.Name})
		version = m.ID
	}

	logger.Info("Схема БД обновлена",
		interfaces.LogField{Key: "version", Value: version},
		interfaces.LogField{Key: "duration", Value: time.Since(start).String()},
	)
	return nil
}

// EmbeddedMigrations возвращает встроенные миграции
func EmbeddedMigrations() ([]Migration, error) {
	return ReadMigrations(migrationsFS, "migrations")
}
