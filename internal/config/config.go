package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jwalitptl/intake-api/internal/repository/postgres"
	"github.com/jwalitptl/intake-api/pkg/blobstore"
	"github.com/jwalitptl/intake-api/pkg/messaging/redis"
)

const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
)

type Config struct {
	Env      string         `mapstructure:"env"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Store    StoreConfig    `mapstructure:"store"`
	Blob     BlobConfig     `mapstructure:"blob"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Security SecurityConfig `mapstructure:"security"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type PipelineConfig struct {
	CollaboratorTimeout time.Duration `mapstructure:"collaborator_timeout"`
}

type StoreConfig struct {
	Driver          string        `mapstructure:"driver"`
	DatabaseURL     string        `mapstructure:"database_url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type BlobConfig struct {
	Provider         string        `mapstructure:"provider"`
	Container        string        `mapstructure:"container"`
	AzureAccountName string        `mapstructure:"azure_account_name"`
	AzureAccountKey  string        `mapstructure:"azure_account_key"`
	AzureServiceURL  string        `mapstructure:"azure_service_url"`
	S3Region         string        `mapstructure:"s3_region"`
	S3Endpoint       string        `mapstructure:"s3_endpoint"`
	S3AccessKey      string        `mapstructure:"s3_access_key"`
	S3SecretKey      string        `mapstructure:"s3_secret_key"`
	S3UsePathStyle   bool          `mapstructure:"s3_use_path_style"`
	StatusCacheTTL   time.Duration `mapstructure:"status_cache_ttl"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	Channel      string        `mapstructure:"channel"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type SecurityConfig struct {
	PHIEncryptionKey string `mapstructure:"phi_encryption_key"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

// envBindings maps config keys to environment variables, first match wins.
// The VITE_ names are what the browser build of the dashboard shares with
// the server in .env files.
var envBindings = map[string][]string{
	"env":                           {"ENV"},
	"server.port":                   {"PORT"},
	"server.request_timeout":        {"REQUEST_TIMEOUT"},
	"server.shutdown_timeout":       {"SHUTDOWN_TIMEOUT"},
	"server.max_body_size":          {"MAX_BODY_SIZE"},
	"server.cors_origins":           {"CORS_ORIGINS"},
	"log.level":                     {"LOG_LEVEL"},
	"log.format":                    {"LOG_FORMAT"},
	"pipeline.collaborator_timeout": {"COLLABORATOR_TIMEOUT"},
	"store.driver":                  {"STORE_DRIVER"},
	"store.database_url":            {"DATABASE_URL"},
	"store.max_open_conns":          {"DB_MAX_OPEN_CONNS"},
	"store.max_idle_conns":          {"DB_MAX_IDLE_CONNS"},
	"store.conn_max_lifetime":       {"DB_CONN_MAX_LIFETIME"},
	"store.auto_migrate":            {"DB_AUTO_MIGRATE"},
	"blob.provider":                 {"BLOB_PROVIDER"},
	"blob.container":                {"AZURE_CONTAINER_NAME", "VITE_AZURE_CONTAINER_NAME"},
	"blob.azure_account_name":       {"AZURE_STORAGE_ACCOUNT_NAME", "VITE_AZURE_STORAGE_ACCOUNT_NAME"},
	"blob.azure_account_key":        {"AZURE_STORAGE_ACCOUNT_KEY", "VITE_AZURE_STORAGE_ACCOUNT_KEY"},
	"blob.azure_service_url":        {"AZURE_STORAGE_SERVICE_URL"},
	"blob.s3_region":                {"S3_REGION"},
	"blob.s3_endpoint":              {"S3_ENDPOINT"},
	"blob.s3_access_key":            {"S3_ACCESS_KEY_ID"},
	"blob.s3_secret_key":            {"S3_SECRET_ACCESS_KEY"},
	"blob.s3_use_path_style":        {"S3_USE_PATH_STYLE"},
	"blob.status_cache_ttl":         {"STATUS_CACHE_TTL"},
	"openai.api_key":                {"OPENAI_API_KEY", "VITE_OPENAI_API_KEY"},
	"openai.model":                  {"OPENAI_MODEL"},
	"openai.base_url":               {"OPENAI_BASE_URL"},
	"redis.url":                     {"REDIS_URL"},
	"redis.channel":                 {"REDIS_CHANNEL"},
	"redis.max_retries":             {"REDIS_MAX_RETRIES"},
	"redis.retry_backoff":           {"REDIS_RETRY_BACKOFF"},
	"redis.pool_size":               {"REDIS_POOL_SIZE"},
	"redis.min_idle_conns":          {"REDIS_MIN_IDLE_CONNS"},
	"security.phi_encryption_key":   {"PHI_ENCRYPTION_KEY"},
	"metrics.namespace":             {"METRICS_NAMESPACE"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")

	v.SetDefault("server.port", 5000)
	v.SetDefault("server.request_timeout", 2*time.Minute)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.max_body_size", 64<<10)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("pipeline.collaborator_timeout", 60*time.Second)

	v.SetDefault("store.driver", StoreDriverMemory)
	v.SetDefault("store.max_open_conns", 10)
	v.SetDefault("store.max_idle_conns", 5)
	v.SetDefault("store.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("store.auto_migrate", true)

	v.SetDefault("blob.provider", blobstore.ProviderAzure)
	v.SetDefault("blob.container", "patient-data")
	v.SetDefault("blob.status_cache_ttl", 30*time.Second)

	v.SetDefault("openai.model", "gpt-4o")

	v.SetDefault("redis.channel", "intake.events")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("metrics.namespace", "intake")
}

// LoadConfig reads defaults, then an optional config.yaml, then the
// environment. file, when set, names the config file explicitly and must
// exist.
func LoadConfig(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, envs := range envBindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.Server.CORSOrigins = splitList(config.Server.CORSOrigins)

	return &config, nil
}

// Validate rejects combinations the service cannot start with. Missing
// Azure or OpenAI credentials are not among them: those calls fail at
// request time instead.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Server.Port))
	}
	if c.Pipeline.CollaboratorTimeout <= 0 {
		errs = append(errs, errors.New("collaborator timeout must be positive"))
	}

	switch c.Store.Driver {
	case StoreDriverMemory:
	case StoreDriverPostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}

	switch strings.ToLower(c.Blob.Provider) {
	case blobstore.ProviderAzure, blobstore.ProviderS3, blobstore.ProviderMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown blob provider %q", c.Blob.Provider))
	}

	if k := c.Security.PHIEncryptionKey; k != "" && len(k) < 16 {
		errs = append(errs, errors.New("PHI_ENCRYPTION_KEY must be at least 16 characters"))
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *BlobConfig) ToBlobstoreConfig() blobstore.Config {
	return blobstore.Config{
		Provider:         c.Provider,
		Container:        c.Container,
		AzureAccountName: c.AzureAccountName,
		AzureAccountKey:  c.AzureAccountKey,
		AzureServiceURL:  c.AzureServiceURL,
		S3Region:         c.S3Region,
		S3Endpoint:       c.S3Endpoint,
		S3AccessKey:      c.S3AccessKey,
		S3SecretKey:      c.S3SecretKey,
		S3UsePathStyle:   c.S3UsePathStyle,
	}
}

func (c *RedisConfig) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}

func (c *StoreConfig) ToPoolConfig() postgres.PoolConfig {
	return postgres.PoolConfig{
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}
}

// splitList accepts both a YAML list and a single comma separated value.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
