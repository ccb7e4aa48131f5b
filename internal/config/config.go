package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/straye-as/offer-pipeline-api/internal/secrets"
	"go.uber.org/zap"
)

// Config holds all application configuration
type Config struct {
	App           AppConfig
	Database      DatabaseConfig
	DataWarehouse DataWarehouseConfig
	Auth          AuthConfig
	Pipeline      PipelineConfig
	Cache         CacheConfig
	Tracing       TracingConfig
	Metrics       MetricsConfig
	Jobs          JobsConfig
	Storage       StorageConfig
	Secrets       SecretsConfig
	Logging       LoggingConfig
	Server        ServerConfig
	CORS          CORSConfig
	Security      SecurityConfig
	RateLimit     RateLimitConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Port        int
}

type DatabaseConfig struct {
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	// ConnectAttempts bounds the startup connection retries
	ConnectAttempts int
}

// DataWarehouseConfig holds configuration for the SAP reporting warehouse (MS SQL Server).
// The connection is optional and read-only.
type DataWarehouseConfig struct {
	Enabled         bool
	URL             string // host:port/database
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	QueryTimeout    int
	// SyncCron schedules the SAP booking date sync job
	SyncCron string
}

// AuthConfig controls bearer token and API key validation
type AuthConfig struct {
	Issuer     string
	Audience   string
	JWTSecret  string
	APIKey     string
	SecretName string
}

// PipelineConfig holds the offer stage policy and orchestrator settings
type PipelineConfig struct {
	// RestrictLostSources limits entry into LOST to PROPOSAL_SENT, NEGOTIATION and FINAL_APPROVAL
	RestrictLostSources bool
	// AllowRegression permits moving an offer back to an earlier stage
	AllowRegression bool
	// MaxRetries is the number of retries for transient storage failures
	MaxRetries int
	// RetryBaseDelayMs is the initial backoff between retries
	RetryBaseDelayMs int
}

// CacheConfig selects the report cache backend ("memory" or "redis")
type CacheConfig struct {
	Mode       string
	Addr       string
	Password   string
	DB         int
	TTLSeconds int
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

type MetricsConfig struct {
	Enabled bool
}

// JobsConfig holds background job schedules
type JobsConfig struct {
	ArchiveEnabled bool
	ArchiveCron    string
}

type StorageConfig struct {
	Mode                  string
	LocalBasePath         string
	CloudConnectionString string
	CloudContainer        string
}

type SecretsConfig struct {
	// Source determines where secrets are loaded from: "environment", "vault", or "auto"
	Source       string
	KeyVaultName string
	CacheEnabled bool
	CacheTTL     int // seconds
}

type LoggingConfig struct {
	Level  string
	Format string
}

type ServerConfig struct {
	ReadTimeout    int
	WriteTimeout   int
	RequestTimeout int
	EnableSwagger  bool
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// SecurityConfig holds security header configuration
type SecurityConfig struct {
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	HSTSPreload           bool
	ContentSecurityPolicy string
	FrameOptions          string
	ContentTypeNosniff    bool
	XSSProtection         string
	ReferrerPolicy        string
	PermissionsPolicy     string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled bool
	// RequestsPerMinute applies per IP before authentication
	RequestsPerMinute int
	// RequestsPerMinuteAuth applies per authenticated user
	RequestsPerMinuteAuth int
	WhitelistIPs          []string
	WhitelistPaths        []string
}

// ConnectionString builds PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// ReadTimeoutDuration returns read timeout as duration
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns write timeout as duration
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// RequestTimeoutDuration returns request timeout as duration
func (s *ServerConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// ConnMaxLifetimeDuration returns connection max lifetime as duration
func (d *DatabaseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(d.ConnMaxLifetime) * time.Second
}

// ConnMaxLifetimeDuration returns connection max lifetime as duration
func (d *DataWarehouseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(d.ConnMaxLifetime) * time.Second
}

// QueryTimeoutDuration returns query timeout as duration
func (d *DataWarehouseConfig) QueryTimeoutDuration() time.Duration {
	return time.Duration(d.QueryTimeout) * time.Second
}

// RetryBaseDelay returns the orchestrator's initial backoff
func (p *PipelineConfig) RetryBaseDelay() time.Duration {
	return time.Duration(p.RetryBaseDelayMs) * time.Millisecond
}

// TTL returns the report cache entry lifetime
func (c *CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// Load loads configuration from file and environment variables.
// Use LoadWithSecrets for vault-backed secret resolution.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override config file
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Auth.APIKey == "" {
		cfg.Auth.APIKey = v.GetString("ADMIN_API_KEY")
	}
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = v.GetString("JWT_SECRET")
	}
	if cfg.Secrets.KeyVaultName == "" {
		cfg.Secrets.KeyVaultName = v.GetString("AZURE_KEY_VAULT_NAME")
	}
	if v.GetBool("DATAWAREHOUSE_ENABLED") {
		cfg.DataWarehouse.Enabled = true
	}

	return &cfg, nil
}

// LoadWithSecrets loads configuration and resolves secrets from the configured source.
//
// Key Vault is used when USE_AZURE_KEY_VAULT=true and the environment is staging or
// production. Everywhere else secrets come from environment variables.
func LoadWithSecrets(ctx context.Context, logger *zap.Logger) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	useKeyVault := strings.ToLower(os.Getenv("USE_AZURE_KEY_VAULT")) == "true"
	isValidEnv := cfg.App.Environment == "staging" || cfg.App.Environment == "production"

	if !useKeyVault {
		logger.Info("USE_AZURE_KEY_VAULT not enabled, using environment variables for secrets",
			zap.String("environment", cfg.App.Environment),
		)
		return cfg, nil
	}

	if !isValidEnv {
		logger.Warn("USE_AZURE_KEY_VAULT is enabled outside staging/production, using environment variables",
			zap.String("environment", cfg.App.Environment),
		)
		return cfg, nil
	}

	if cfg.Secrets.KeyVaultName == "" {
		return nil, fmt.Errorf("AZURE_KEY_VAULT_NAME is required when USE_AZURE_KEY_VAULT=true")
	}

	provider, err := secrets.NewProvider(&secrets.ProviderConfig{
		Source:       secrets.SourceVault,
		VaultName:    cfg.Secrets.KeyVaultName,
		Environment:  cfg.App.Environment,
		CacheEnabled: cfg.Secrets.CacheEnabled,
		CacheTTL:     time.Duration(cfg.Secrets.CacheTTL) * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secrets provider: %w", err)
	}

	logger.Info("Loading secrets from Azure Key Vault",
		zap.String("key_vault_name", cfg.Secrets.KeyVaultName),
	)

	resolve := func(secretName, envName string, target *string) {
		if value, err := provider.GetSecretOrEnv(ctx, secretName, envName); err == nil && value != "" {
			*target = value
		}
	}

	resolve("POSTGRES-MAIN-HOST", "DATABASE_HOST", &cfg.Database.Host)
	resolve("POSTGRES-MAIN-USER", "DATABASE_USER", &cfg.Database.User)
	resolve("POSTGRES-MAIN-PASSWORD", "DATABASE_PASSWORD", &cfg.Database.Password)
	resolve("jwt-signing-secret", "JWT_SECRET", &cfg.Auth.JWTSecret)
	resolve("admin-api-key", "ADMIN_API_KEY", &cfg.Auth.APIKey)
	resolve("redis-password", "CACHE_PASSWORD", &cfg.Cache.Password)
	resolve("storage-connection-string", "STORAGE_CLOUDCONNECTIONSTRING", &cfg.Storage.CloudConnectionString)

	if cfg.DataWarehouse.Enabled {
		resolve("WAREHOUSE-URL", "DATAWAREHOUSE_URL", &cfg.DataWarehouse.URL)
		resolve("WAREHOUSE-USERNAME", "DATAWAREHOUSE_USER", &cfg.DataWarehouse.User)
		resolve("WAREHOUSE-PASSWORD", "DATAWAREHOUSE_PASSWORD", &cfg.DataWarehouse.Password)
	}

	if sslMode := os.Getenv("DATABASE_SSLMODE"); sslMode != "" {
		cfg.Database.SSLMode = sslMode
	}

	logger.Info("Secrets loaded from vault successfully")
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "Offer Pipeline API")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.port", 8080)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "offers")
	v.SetDefault("database.user", "offers_user")
	v.SetDefault("database.password", "offers_password")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", 300)
	v.SetDefault("database.connectAttempts", 5)

	v.SetDefault("dataWarehouse.enabled", false)
	v.SetDefault("dataWarehouse.maxOpenConns", 10)
	v.SetDefault("dataWarehouse.maxIdleConns", 2)
	v.SetDefault("dataWarehouse.connMaxLifetime", 300)
	v.SetDefault("dataWarehouse.queryTimeout", 30)
	v.SetDefault("dataWarehouse.syncCron", "0 15 * * * *") // minute 15 of every hour

	v.SetDefault("auth.issuer", "offer-pipeline")
	v.SetDefault("auth.audience", "offer-pipeline-api")

	// LOST may be entered from any open stage unless restricted
	v.SetDefault("pipeline.restrictLostSources", false)
	v.SetDefault("pipeline.allowRegression", true)
	v.SetDefault("pipeline.maxRetries", 3)
	v.SetDefault("pipeline.retryBaseDelayMs", 50)

	v.SetDefault("cache.mode", "memory")
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttlSeconds", 60)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("tracing.serviceName", "offer-pipeline-api")

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("jobs.archiveEnabled", true)
	v.SetDefault("jobs.archiveCron", "0 30 1 * * *") // 01:30 daily

	v.SetDefault("secrets.source", "auto")
	v.SetDefault("secrets.cacheEnabled", true)
	v.SetDefault("secrets.cacheTTL", 300)

	v.SetDefault("storage.mode", "local")
	v.SetDefault("storage.localBasePath", "./storage")
	v.SetDefault("storage.cloudContainer", "activity-archive")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.requestTimeout", 60)
	v.SetDefault("server.enableSwagger", true)

	v.SetDefault("cors.allowedOrigins", []string{})
	v.SetDefault("cors.allowedMethods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowedHeaders", []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"})
	v.SetDefault("cors.exposedHeaders", []string{"Location", "X-Request-ID"})
	v.SetDefault("cors.allowCredentials", true)
	v.SetDefault("cors.maxAge", 300)

	v.SetDefault("security.enableHSTS", false)
	v.SetDefault("security.hstsMaxAge", 31536000)
	v.SetDefault("security.hstsIncludeSubdomains", true)
	v.SetDefault("security.hstsPreload", false)
	v.SetDefault("security.contentSecurityPolicy", "default-src 'self'")
	v.SetDefault("security.frameOptions", "DENY")
	v.SetDefault("security.contentTypeNosniff", true)
	v.SetDefault("security.xssProtection", "1; mode=block")
	v.SetDefault("security.referrerPolicy", "strict-origin-when-cross-origin")
	v.SetDefault("security.permissionsPolicy", "geolocation=(), microphone=(), camera=()")

	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.requestsPerMinute", 60)
	v.SetDefault("rateLimit.requestsPerMinuteAuth", 120)
	v.SetDefault("rateLimit.whitelistIPs", []string{"127.0.0.1", "::1"})
	v.SetDefault("rateLimit.whitelistPaths", []string{"/health", "/health/db", "/health/ready", "/metrics"})
}
