package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	pkgerrors "github.com/athebyme/gomarket-inventory/pkg/errors"
	"github.com/spf13/viper"
)

// Драйверы хранилища
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config содержит все настройки сервиса
type Config struct {
	AppName  string
	Version  string
	LogLevel string
	ENV      string

	Server struct {
		Host            string
		Port            int
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
		RequestTimeout  time.Duration // таймаут обработки запроса; импорт снапшота идет синхронно
		BodyLimit       int           // максимальный размер запроса в МБ
	}

	Storage struct {
		Driver      string // postgres или memory
		AutoMigrate bool
	}

	Postgres struct {
		Host     string
		Port     int
		User     string
		Password string
		DBName   string
		SSLMode  string
		Timeout  time.Duration
		PoolSize int // размер пула соединений
	}

	Redis struct {
		Enabled  bool
		Host     string
		Port     int
		Password string
		DB       int
		Prefix   string
	}

	Kafka struct {
		Enabled         bool
		Brokers         []string
		GroupID         string
		ClientID        string
		EventsTopic     string
		CommandsTopic   string
		DeadLetterTopic string
	}

	Metrics struct {
		Enabled  bool
		Endpoint string
		Port     int
	}

	Security struct {
		CORSAllowOrigins []string
	}

	Keycloak KeycloakConfig

	Upstream UpstreamConfig

	Sync struct {
		BatchSize            int
		StaleAfter           time.Duration
		RetryProcessingAfter time.Duration
		RequestDelay         time.Duration
		PollDelay            time.Duration
		ProgressEveryBatches int
		WarehouseCacheTTL    time.Duration
	}
}

// UpstreamConfig подключение к внешнему складскому API.
// Токен задается либо статически, либо через OAuth2 refresh token
type UpstreamConfig struct {
	URL          string
	Token        string
	TokenURL     string
	ClientID     string
	ClientSecret string
	RefreshToken string
	Timeout      time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
}

// UsesOAuth2 true, если токен нужно получать через OAuth2
func (u UpstreamConfig) UsesOAuth2() bool {
	return u.TokenURL != "" && u.RefreshToken != ""
}

// Validate проверяет, что внешний API сконфигурирован
func (u UpstreamConfig) Validate() error {
	if u.URL == "" {
		return pkgerrors.NewConfigError("upstream.url", "адрес внешнего API не задан")
	}
	if u.Token == "" && !u.UsesOAuth2() {
		return pkgerrors.NewConfigError("upstream.token", "не задан ни токен, ни параметры OAuth2 (tokenURL, refreshToken)")
	}
	return nil
}

// Validate проверяет настройки, без которых сервис не запустится
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return pkgerrors.NewConfigError("storage.driver", fmt.Sprintf("неизвестный драйвер %q", c.Storage.Driver))
	}
	if c.Sync.BatchSize <= 0 {
		return pkgerrors.NewConfigError("sync.batchSize", "размер пакета должен быть положительным")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return pkgerrors.NewConfigError("kafka.brokers", "список брокеров пуст")
	}
	if c.Keycloak.Enabled && (c.Keycloak.ServerURL == "" || c.Keycloak.Realm == "") {
		return pkgerrors.NewConfigError("keycloak", "не заданы serverURL или realm")
	}
	return nil
}

// Load загружает конфигурацию из файла и переменных окружения.
// configPath - имя конфига в стандартных каталогах или путь к yaml файлу
func Load(configPath string) (*Config, error) {
	v := viper.New()

	switch {
	case configPath == "":
		v.SetConfigName("config")
	case filepath.Ext(configPath) != "":
		v.SetConfigFile(configPath)
	default:
		v.SetConfigName(configPath)
	}

	// Настройка Viper
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")
	v.AddConfigPath("../../config")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Чтение конфигурационного файла
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
		}
		// Продолжаем, если файл не найден, будем использовать только переменные окружения
	}

	setDefaults(v)
	bindEnvVariables(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка десериализации конфигурации: %w", err)
	}

	// Получаем окружение
	if cfg.ENV == "" {
		cfg.ENV = "development"
		if envVar := os.Getenv("APP_ENV"); envVar != "" {
			cfg.ENV = envVar
		}
	}

	return &cfg, nil
}

// setDefaults устанавливает значения по умолчанию
func setDefaults(v *viper.Viper) {
	// Основные настройки
	v.SetDefault("appName", "inventory-sync")
	v.SetDefault("version", "1.0.0")
	v.SetDefault("logLevel", "info")
	v.SetDefault("env", "development")

	// Настройки сервера
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", "10s")
	v.SetDefault("server.writeTimeout", "30m")
	v.SetDefault("server.shutdownTimeout", "15s")
	v.SetDefault("server.requestTimeout", "30m")
	v.SetDefault("server.bodyLimit", 1) // 1 МБ, тела запросов маленькие

	// Хранилище
	v.SetDefault("storage.driver", StorageDriverPostgres)
	v.SetDefault("storage.autoMigrate", true)

	// Настройки Postgres
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "postgres")
	v.SetDefault("postgres.dbname", "inventory")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.timeout", "5s")
	v.SetDefault("postgres.poolSize", 10)

	// Настройки Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "inventory-sync:")

	// Настройки Kafka
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.groupID", "inventory-sync")
	v.SetDefault("kafka.clientID", "inventory-sync")
	v.SetDefault("kafka.eventsTopic", "inventory-sync-events")
	v.SetDefault("kafka.commandsTopic", "inventory-sync-commands")
	v.SetDefault("kafka.deadLetterTopic", "inventory-sync-commands-dlq")

	// Настройки метрик
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.endpoint", "/metrics")
	v.SetDefault("metrics.port", 9090)

	// Настройки безопасности
	v.SetDefault("security.corsAllowOrigins", []string{"*"})

	// Keycloak
	v.SetDefault("keycloak.enabled", false)
	v.SetDefault("keycloak.realm", "gomarket")
	v.SetDefault("keycloak.clientID", "inventory-sync")
	v.SetDefault("keycloak.roles", []string{"inventory-admin", "inventory-sync"})

	// Внешний API
	v.SetDefault("upstream.url", "")
	v.SetDefault("upstream.token", "")
	v.SetDefault("upstream.tokenURL", "")
	v.SetDefault("upstream.clientID", "")
	v.SetDefault("upstream.clientSecret", "")
	v.SetDefault("upstream.refreshToken", "")
	v.SetDefault("upstream.timeout", "60s")
	v.SetDefault("upstream.maxRetries", 3)
	v.SetDefault("upstream.retryDelay", "500ms")

	// Синхронизация
	v.SetDefault("sync.batchSize", 1000)
	v.SetDefault("sync.staleAfter", "2h")
	v.SetDefault("sync.retryProcessingAfter", "5m")
	v.SetDefault("sync.requestDelay", "1s")
	v.SetDefault("sync.pollDelay", "500ms")
	v.SetDefault("sync.progressEveryBatches", 10)
	v.SetDefault("sync.warehouseCacheTTL", "10m")
}

// bindEnvVariables привязывает переменные окружения, имена которых
// не выводятся из ключа автоматически
func bindEnvVariables(v *viper.Viper) {
	// Основные настройки
	_ = v.BindEnv("appName", "APP_NAME")
	_ = v.BindEnv("version", "APP_VERSION")
	_ = v.BindEnv("logLevel", "LOG_LEVEL")
	_ = v.BindEnv("env", "APP_ENV")

	// Настройки сервера
	_ = v.BindEnv("server.readTimeout", "SERVER_READ_TIMEOUT")
	_ = v.BindEnv("server.writeTimeout", "SERVER_WRITE_TIMEOUT")
	_ = v.BindEnv("server.shutdownTimeout", "SERVER_SHUTDOWN_TIMEOUT")
	_ = v.BindEnv("server.requestTimeout", "SERVER_REQUEST_TIMEOUT")
	_ = v.BindEnv("server.bodyLimit", "SERVER_BODY_LIMIT")

	// Хранилище
	_ = v.BindEnv("storage.driver", "STORAGE_DRIVER")
	_ = v.BindEnv("storage.autoMigrate", "STORAGE_AUTO_MIGRATE")

	// Настройки Postgres
	_ = v.BindEnv("postgres.dbname", "POSTGRES_DBNAME")
	_ = v.BindEnv("postgres.sslmode", "POSTGRES_SSLMODE")
	_ = v.BindEnv("postgres.poolSize", "POSTGRES_POOL_SIZE")

	// Настройки Kafka
	_ = v.BindEnv("kafka.groupID", "KAFKA_GROUP_ID")
	_ = v.BindEnv("kafka.clientID", "KAFKA_CLIENT_ID")
	_ = v.BindEnv("kafka.eventsTopic", "KAFKA_EVENTS_TOPIC")
	_ = v.BindEnv("kafka.commandsTopic", "KAFKA_COMMANDS_TOPIC")
	_ = v.BindEnv("kafka.deadLetterTopic", "KAFKA_DEAD_LETTER_TOPIC")

	// Настройки безопасности
	_ = v.BindEnv("security.corsAllowOrigins", "CORS_ALLOW_ORIGINS")

	// Keycloak
	_ = v.BindEnv("keycloak.serverURL", "KEYCLOAK_SERVER_URL")
	_ = v.BindEnv("keycloak.clientID", "KEYCLOAK_CLIENT_ID")

	// Внешний API
	_ = v.BindEnv("upstream.url", "UPSTREAM_URL")
	_ = v.BindEnv("upstream.token", "UPSTREAM_TOKEN")
	_ = v.BindEnv("upstream.tokenURL", "UPSTREAM_TOKEN_URL")
	_ = v.BindEnv("upstream.clientID", "UPSTREAM_CLIENT_ID")
	_ = v.BindEnv("upstream.clientSecret", "UPSTREAM_CLIENT_SECRET")
	_ = v.BindEnv("upstream.refreshToken", "UPSTREAM_REFRESH_TOKEN")
	_ = v.BindEnv("upstream.maxRetries", "UPSTREAM_MAX_RETRIES")
	_ = v.BindEnv("upstream.retryDelay", "UPSTREAM_RETRY_DELAY")

	// Синхронизация
	_ = v.BindEnv("sync.batchSize", "SYNC_BATCH_SIZE")
	_ = v.BindEnv("sync.staleAfter", "SYNC_STALE_AFTER")
	_ = v.BindEnv("sync.retryProcessingAfter", "SYNC_RETRY_PROCESSING_AFTER")
	_ = v.BindEnv("sync.requestDelay", "SYNC_REQUEST_DELAY")
	_ = v.BindEnv("sync.pollDelay", "SYNC_POLL_DELAY")
	_ = v.BindEnv("sync.progressEveryBatches", "SYNC_PROGRESS_EVERY_BATCHES")
	_ = v.BindEnv("sync.warehouseCacheTTL", "SYNC_WAREHOUSE_CACHE_TTL")
}
