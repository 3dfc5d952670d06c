package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/straye-as/travel-crm-api/internal/secrets"
	"go.uber.org/zap"
)

// Cache TTL bounds in seconds. Cached lookups are allowed to be 5 to 10 minutes stale.
const (
	MinCacheTTLSeconds = 300
	MaxCacheTTLSeconds = 600
)

// Config holds all application configuration
type Config struct {
	App             AppConfig
	Database        DatabaseConfig
	Auth            AuthConfig
	Cache           CacheConfig
	Redis           RedisConfig
	Storage         StorageConfig
	OperatorCatalog OperatorCatalogConfig
	Jobs            JobsConfig
	Secrets         SecretsConfig
	Logging         LoggingConfig
	Server          ServerConfig
	CORS            CORSConfig
	Security        SecurityConfig
	RateLimit       RateLimitConfig
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
}

// AuthConfig holds session token and API key settings
type AuthConfig struct {
	// JWTSecret signs and verifies HS256 session tokens
	JWTSecret string
	// Issuer is the expected "iss" claim; empty disables the check
	Issuer string
	// CookieName is the session cookie read when no Authorization header is sent
	CookieName string
	// APIKey authenticates system integrations through the x-api-key header
	APIKey string
	// APIKeyAgencyID is the agency system requests act in when no X-Agency-ID header is set
	APIKeyAgencyID string
}

// CacheConfig controls the lookup cache
type CacheConfig struct {
	// Backend is "memory" or "redis"
	Backend string
	// TTL is the entry lifetime in seconds, clamped to 300..600
	TTL int
	// CleanupInterval is how often expired in-memory entries are purged (seconds)
	CleanupInterval int
	// KeyPrefix namespaces keys in a shared Redis
	KeyPrefix string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

type StorageConfig struct {
	Mode                  string
	LocalBasePath         string
	CloudConnectionString string
	CloudContainer        string
	MaxUploadSizeMB       int64
}

// OperatorCatalogConfig holds configuration for the read-only MS SQL operator catalog
type OperatorCatalogConfig struct {
	// Enabled controls whether the warehouse connection is attempted
	Enabled bool
	// URL is the connection URL in format host:port/database
	URL string
	// User is the database username
	User string
	// Password is the database password
	Password string
	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int
	// MaxIdleConns is the maximum number of connections in the idle connection pool
	MaxIdleConns int
	// ConnMaxLifetime is the maximum amount of time a connection may be reused (seconds)
	ConnMaxLifetime int
	// QueryTimeout is the default timeout for queries (seconds)
	QueryTimeout int
}

// JobsConfig controls background jobs
type JobsConfig struct {
	Enabled bool
	// StaleBookingsCron is the schedule of the stale pending_documents reminder
	StaleBookingsCron string
	// StaleBookingsDays is how long a booking may wait for documents before a reminder
	StaleBookingsDays int
	// OperatorSyncCron is the schedule of the operator catalog sync
	OperatorSyncCron string
	// OperatorSyncOnStartup runs one sync in the background when the API starts
	OperatorSyncOnStartup bool
	// Timeout bounds a single job run (seconds)
	Timeout int
}

type SecretsConfig struct {
	// Source determines where secrets are loaded from: "environment", "vault", or "auto"
	// "auto" uses environment in development, vault in staging/production
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
	ReferrerPolicy        string
	PermissionsPolicy     string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled bool
	// RequestsPerMinute is the limit for unauthenticated requests (per IP)
	RequestsPerMinute int
	// RequestsPerMinuteAuth is the limit for authenticated requests (per user)
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

// ConnMaxLifetimeDuration returns connection max lifetime as duration
func (d *DatabaseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(d.ConnMaxLifetime) * time.Second
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

// TTLDuration returns the cache TTL clamped to the allowed window
func (c *CacheConfig) TTLDuration() time.Duration {
	ttl := c.TTL
	if ttl < MinCacheTTLSeconds {
		ttl = MinCacheTTLSeconds
	}
	if ttl > MaxCacheTTLSeconds {
		ttl = MaxCacheTTLSeconds
	}
	return time.Duration(ttl) * time.Second
}

// CleanupIntervalDuration returns the in-memory cleanup interval as duration
func (c *CacheConfig) CleanupIntervalDuration() time.Duration {
	if c.CleanupInterval <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.CleanupInterval) * time.Second
}

// Addr returns the host:port address of the Redis server
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// ConnMaxLifetimeDuration returns connection max lifetime as duration
func (o *OperatorCatalogConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(o.ConnMaxLifetime) * time.Second
}

// QueryTimeoutDuration returns query timeout as duration
func (o *OperatorCatalogConfig) QueryTimeoutDuration() time.Duration {
	return time.Duration(o.QueryTimeout) * time.Second
}

// TimeoutDuration returns the per-run job timeout as duration
func (j *JobsConfig) TimeoutDuration() time.Duration {
	return time.Duration(j.Timeout) * time.Second
}

// StaleAfter returns how long a booking may stay in pending_documents
func (j *JobsConfig) StaleAfter() time.Duration {
	return time.Duration(j.StaleBookingsDays) * 24 * time.Hour
}

// Load loads configuration from file and environment variables
// This is a basic load that doesn't fetch secrets from vault
// Use LoadWithSecrets for full secret resolution
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
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

	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = v.GetString("JWT_SECRET")
	}
	if cfg.Auth.APIKey == "" {
		cfg.Auth.APIKey = v.GetString("ADMIN_API_KEY")
	}
	if cfg.Secrets.KeyVaultName == "" {
		cfg.Secrets.KeyVaultName = v.GetString("AZURE_KEY_VAULT_NAME")
	}
	if v.GetBool("OPERATOR_CATALOG_ENABLED") {
		cfg.OperatorCatalog.Enabled = true
	}

	return &cfg, nil
}

// LoadWithSecrets loads configuration and resolves secrets from the configured source.
// Key Vault is used when USE_AZURE_KEY_VAULT=true and the environment is staging or production;
// otherwise secrets come from environment variables already read by Load.
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
		logger.Warn("USE_AZURE_KEY_VAULT is enabled but environment is not staging or production, using environment variables for secrets",
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

	if err := applySecrets(ctx, cfg, provider); err != nil {
		return nil, err
	}

	logger.Info("Secrets loaded from vault successfully")
	return cfg, nil
}

// secretSource is the subset of the secrets provider used to fill the config
type secretSource interface {
	GetSecret(ctx context.Context, secretName string) (string, error)
	GetSecretOrEnv(ctx context.Context, secretName, envName string) (string, error)
}

func applySecrets(ctx context.Context, cfg *Config, provider secretSource) error {
	if host, err := provider.GetSecretOrEnv(ctx, "POSTGRES-HOST", "DATABASE_HOST"); err == nil && host != "" {
		cfg.Database.Host = host
	}
	if user, err := provider.GetSecretOrEnv(ctx, "POSTGRES-USER", "DATABASE_USER"); err == nil && user != "" {
		cfg.Database.User = user
	}
	if password, err := provider.GetSecretOrEnv(ctx, "POSTGRES-PASSWORD", "DATABASE_PASSWORD"); err == nil && password != "" {
		cfg.Database.Password = password
	}
	if sslMode := os.Getenv("DATABASE_SSLMODE"); sslMode != "" {
		cfg.Database.SSLMode = sslMode
	}

	jwtSecret, err := provider.GetSecretOrEnv(ctx, "session-jwt-secret", "JWT_SECRET")
	if err != nil || jwtSecret == "" {
		return fmt.Errorf("session JWT secret is required: %w", err)
	}
	cfg.Auth.JWTSecret = jwtSecret

	if apiKey, err := provider.GetSecretOrEnv(ctx, "admin-api-key", "ADMIN_API_KEY"); err == nil && apiKey != "" {
		cfg.Auth.APIKey = apiKey
	}
	if connStr, err := provider.GetSecretOrEnv(ctx, "storage-connection-string", "STORAGE_CLOUDCONNECTIONSTRING"); err == nil && connStr != "" {
		cfg.Storage.CloudConnectionString = connStr
	}
	if redisPassword, err := provider.GetSecretOrEnv(ctx, "redis-password", "REDIS_PASSWORD"); err == nil && redisPassword != "" {
		cfg.Redis.Password = redisPassword
	}

	// Warehouse credentials only come from the vault
	if cfg.OperatorCatalog.Enabled {
		url, err := provider.GetSecret(ctx, "CATALOG-URL")
		if err != nil {
			return fmt.Errorf("failed to get CATALOG-URL from Key Vault: %w", err)
		}
		cfg.OperatorCatalog.URL = url

		user, err := provider.GetSecret(ctx, "CATALOG-USERNAME")
		if err != nil {
			return fmt.Errorf("failed to get CATALOG-USERNAME from Key Vault: %w", err)
		}
		cfg.OperatorCatalog.User = user

		password, err := provider.GetSecret(ctx, "CATALOG-PASSWORD")
		if err != nil {
			return fmt.Errorf("failed to get CATALOG-PASSWORD from Key Vault: %w", err)
		}
		cfg.OperatorCatalog.Password = password
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "Travel CRM API")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.port", 8080)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "travelcrm")
	v.SetDefault("database.user", "travelcrm")
	v.SetDefault("database.password", "travelcrm")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", 300)

	// Auth defaults
	v.SetDefault("auth.issuer", "travel-crm")
	v.SetDefault("auth.cookieName", "session")

	// Cache defaults
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", 300)
	v.SetDefault("cache.cleanupInterval", 30)
	v.SetDefault("cache.keyPrefix", "travelcrm:")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.poolSize", 10)

	// Operator catalog defaults (MS SQL Server - optional, read-only)
	v.SetDefault("operatorCatalog.enabled", false)
	v.SetDefault("operatorCatalog.maxOpenConns", 5)
	v.SetDefault("operatorCatalog.maxIdleConns", 1)
	v.SetDefault("operatorCatalog.connMaxLifetime", 300)
	v.SetDefault("operatorCatalog.queryTimeout", 30)

	// Job defaults
	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.staleBookingsCron", "0 0 7 * * *") // 07:00 every day
	v.SetDefault("jobs.staleBookingsDays", 7)
	v.SetDefault("jobs.operatorSyncCron", "0 30 * * * *")
	v.SetDefault("jobs.operatorSyncOnStartup", true)
	v.SetDefault("jobs.timeout", 300)

	// Secrets defaults
	v.SetDefault("secrets.source", "auto")
	v.SetDefault("secrets.cacheEnabled", true)
	v.SetDefault("secrets.cacheTTL", 300)

	// Storage defaults
	v.SetDefault("storage.mode", "local")
	v.SetDefault("storage.localBasePath", "./storage")
	v.SetDefault("storage.cloudContainer", "booking-documents")
	v.SetDefault("storage.maxUploadSizeMB", 20)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	// Server defaults
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.requestTimeout", 60)
	v.SetDefault("server.enableSwagger", true)

	// CORS defaults - restrictive by default
	v.SetDefault("cors.allowedOrigins", []string{})
	v.SetDefault("cors.allowedMethods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowedHeaders", []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Agency-ID", "X-Request-ID"})
	v.SetDefault("cors.exposedHeaders", []string{"Location", "X-Request-ID"})
	v.SetDefault("cors.allowCredentials", true)
	v.SetDefault("cors.maxAge", 300)

	// Security header defaults
	v.SetDefault("security.enableHSTS", false)
	v.SetDefault("security.hstsMaxAge", 31536000)
	v.SetDefault("security.hstsIncludeSubdomains", true)
	v.SetDefault("security.hstsPreload", false)
	v.SetDefault("security.contentSecurityPolicy", "default-src 'self'")
	v.SetDefault("security.frameOptions", "DENY")
	v.SetDefault("security.contentTypeNosniff", true)
	v.SetDefault("security.referrerPolicy", "strict-origin-when-cross-origin")
	v.SetDefault("security.permissionsPolicy", "geolocation=(), microphone=(), camera=()")

	// Rate limiting defaults
	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.requestsPerMinute", 60)
	v.SetDefault("rateLimit.requestsPerMinuteAuth", 120)
	v.SetDefault("rateLimit.whitelistIPs", []string{"127.0.0.1", "::1"})
	v.SetDefault("rateLimit.whitelistPaths", []string{"/health", "/health/db", "/health/ready"})
}
