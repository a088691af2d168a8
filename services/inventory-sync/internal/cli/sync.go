package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/bootstrap"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/services"
	"github.com/spf13/cobra"
)

// ErrPartialIngest импорт завершился, но часть пакетов не записана
var ErrPartialIngest = errors.New("snapshot ingested with batch errors")

// NewTriggerCommand запрос снапшотов
func NewTriggerCommand(opts *RootOptions) *cobra.Command {
	var warehouseID int

	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Запросить снапшоты остатков по складу или по всем активным складам",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var target *int
			if cmd.Flags().Changed("warehouse") {
				target = &warehouseID
			}
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				result, err := app.Sync.TriggerSnapshot(ctx, target)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}

	cmd.Flags().IntVarP(&warehouseID, "warehouse", "w", 0, "ID склада")
	return cmd
}

// NewPollCommand один цикл опроса статусов
func NewPollCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Проверить активные задачи и импортировать готовые снапшоты",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				result, err := app.Sync.PollJobs(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
}

// NewIngestCommand ручной импорт файла снапшота
func NewIngestCommand(opts *RootOptions) *cobra.Command {
	var req services.IngestRequest

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Импортировать файл снапшота по ссылке",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				outcome, err := app.Sync.IngestSnapshot(ctx, req)
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), outcome); err != nil {
					return err
				}
				if !outcome.Success {
					return ErrPartialIngest
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&req.SnapshotURL, "url", "", "ссылка на файл снапшота")
	cmd.Flags().StringVar(&req.JobID, "job", "", "ID задачи, которую завершит импорт")
	cmd.Flags().StringVar(&req.SnapshotID, "snapshot", "", "ID снапшота, по которому найти задачу")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

// NewAbortCommand отмена снапшота
func NewAbortCommand(opts *RootOptions) *cobra.Command {
	var snapshotID, reason string

	cmd := &cobra.Command{
		Use:   "abort",
		Short: "Отменить снапшот или самую свежую ожидающую задачу",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				outcome, err := app.Sync.AbortSnapshot(ctx, snapshotID, reason)
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), outcome); err != nil {
					return err
				}
				if !outcome.Success {
					return fmt.Errorf("abort rejected: %s", outcome.Message)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&snapshotID, "snapshot", "", "ID снапшота")
	cmd.Flags().StringVar(&reason, "reason", "", "причина отмены")
	return cmd
}
