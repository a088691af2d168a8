// Package cli команды syncctl: запуск шагов синхронизации из cron и вручную
package cli

import (
	"context"
	"encoding/json"
	"io"

	"github.com/athebyme/gomarket-inventory/services/inventory-sync/config"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/adapters/logger"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/bootstrap"
	"github.com/spf13/cobra"
)

// RootOptions общие флаги команд
type RootOptions struct {
	ConfigPath string
	LogLevel   string

	// Open собирает сервис по конфигурации; подменяется в тестах
	Open func(ctx context.Context, opts *RootOptions) (*bootstrap.App, error)
}

// NewRootCommand создает корневую команду syncctl
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{Open: openApp})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "syncctl",
		Short: "Синхронизация остатков с внешней складской системой",
		Long: `Запуск шагов синхронизации остатков: запрос снапшотов, опрос статусов,
импорт файла, отмена и просмотр журнала задач. Результат печатается в stdout как JSON.`,
		SilenceUsage:  true,
		SilenceErrors: true, // ошибку печатает main
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "путь к файлу конфигурации")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "уровень логирования (по умолчанию из конфигурации)")

	cmd.AddCommand(NewTriggerCommand(opts))
	cmd.AddCommand(NewPollCommand(opts))
	cmd.AddCommand(NewIngestCommand(opts))
	cmd.AddCommand(NewAbortCommand(opts))
	cmd.AddCommand(NewJobsCommand(opts))
	cmd.AddCommand(NewWarehouseCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	return cfg, nil
}

func openApp(ctx context.Context, opts *RootOptions) (*bootstrap.App, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	log, err := logger.NewConsoleLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return bootstrap.New(ctx, cfg, log)
}

// withApp открывает сервис на время одной команды
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, app *bootstrap.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := opts.Open(ctx, opts)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	return fn(ctx, app)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
