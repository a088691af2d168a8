package cli

import (
	"context"
	"fmt"

	"github.com/athebyme/gomarket-inventory/pkg/utils"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/adapters/logger"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/bootstrap"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/models"
	"github.com/spf13/cobra"
)

// NewJobsCommand журнал задач
func NewJobsCommand(opts *RootOptions) *cobra.Command {
	var (
		status   string
		page     int
		pageSize int
	)

	cmd := &cobra.Command{
		Use:   "jobs [job-id]",
		Short: "Показать журнал задач синхронизации или одну задачу",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := models.JobFilter{}
			pagination := utils.NewPagination(page, pageSize)
			filter.Limit = pagination.GetLimit()
			filter.Offset = pagination.GetOffset()
			if status != "" {
				s := models.SyncJobStatus(status)
				if !s.IsValid() {
					return fmt.Errorf("unknown job status %q", status)
				}
				filter.Statuses = []models.SyncJobStatus{s}
			}

			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				if len(args) == 1 {
					job, err := app.Sync.GetJob(ctx, args[0])
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), job)
				}

				jobs, total, err := app.Sync.ListJobs(ctx, filter)
				if err != nil {
					return err
				}
				if jobs == nil {
					jobs = []*models.SyncJob{}
				}
				pagination.SetTotal(int64(total))
				return printJSON(cmd.OutOrStdout(), utils.NewPagedResult(jobs, pagination))
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "фильтр по статусу")
	cmd.Flags().IntVar(&page, "page", 1, "номер страницы")
	cmd.Flags().IntVar(&pageSize, "page-size", utils.DefaultPageSize, "размер страницы")
	return cmd
}

// NewWarehouseCommand локальное зеркало реестра складов
func NewWarehouseCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warehouse",
		Short: "Управление локальным зеркалом реестра складов",
	}

	var (
		id       int
		name     string
		inactive bool
	)
	upsert := &cobra.Command{
		Use:   "upsert",
		Short: "Добавить или обновить склад",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if id <= 0 {
				return fmt.Errorf("--id must be positive")
			}
			if name == "" {
				name = fmt.Sprintf("Склад %d", id)
			}
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				warehouse := models.Warehouse{ID: id, Name: name, Active: !inactive}
				if err := app.Store.SaveWarehouse(ctx, warehouse); err != nil {
					return err
				}
				if err := app.Sync.InvalidateWarehouses(ctx); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), warehouse)
			})
		},
	}
	upsert.Flags().IntVar(&id, "id", 0, "ID склада")
	upsert.Flags().StringVar(&name, "name", "", "название склада")
	upsert.Flags().BoolVar(&inactive, "inactive", false, "исключить склад из синхронизации")
	_ = upsert.MarkFlagRequired("id")

	list := &cobra.Command{
		Use:   "list",
		Short: "Показать склады",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				warehouses, err := app.Store.ListWarehouses(ctx, false)
				if err != nil {
					return err
				}
				if warehouses == nil {
					warehouses = []models.Warehouse{}
				}
				return printJSON(cmd.OutOrStdout(), warehouses)
			})
		},
	}

	cmd.AddCommand(upsert, list)
	return cmd
}

// NewMigrateCommand применяет миграции схемы без запуска сервиса
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Применить миграции схемы PostgreSQL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			log, err := logger.NewConsoleLogger(cfg.LogLevel)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			store, _, err := bootstrap.OpenStore(ctx, cfg, log, true)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			_, err = fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return err
		},
	}
}
