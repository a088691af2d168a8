// Package metrics метрики Prometheus сервиса синхронизации остатков
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP
var (
	HTTPDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_durations_seconds",
		Help:    "Длительность HTTP запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method", "status"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Общее количество HTTP запросов",
	}, []string{"path", "method", "status"})

	HTTPActiveRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "http_active_requests",
		Help: "Количество активных HTTP запросов",
	})
)

// Кэш
var CacheOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cache_operations_total",
	Help: "Количество операций с кэшем",
}, []string{"operation", "status"})

// Конвейер синхронизации
var (
	JobTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_sync_job_transitions_total",
		Help: "Переходы задач синхронизации по целевому состоянию",
	}, []string{"status"})

	SnapshotRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_sync_snapshot_requests_total",
		Help: "Запросы снапшотов по складам",
	}, []string{"result"})

	PollOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_sync_poll_outcomes_total",
		Help: "Результаты проверки задач при опросе статусов",
	}, []string{"outcome"})

	IngestRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_sync_ingest_records_total",
		Help: "Записано позиций остатков",
	})

	IngestBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_sync_ingest_batches_total",
		Help: "Пакеты записи позиций по результату",
	}, []string{"result"})

	IngestBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_sync_ingest_bytes_total",
		Help: "Скачано байт файлов снапшотов",
	})

	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inventory_sync_ingest_duration_seconds",
		Help:    "Длительность импорта одного снапшота",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	})

	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_sync_upstream_requests_total",
		Help: "Вызовы внешнего складского API",
	}, []string{"operation", "result"})
)

// Воркер
var (
	WorkerMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_messages_processed_total",
		Help: "Общее количество обработанных сообщений",
	}, []string{"topic", "status"})

	WorkerProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "worker_message_processing_duration_seconds",
		Help:    "Длительность обработки сообщений",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
	}, []string{"topic"})

	WorkerActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "worker_active_goroutines",
		Help: "Количество активных горутин-обработчиков",
	})
)
