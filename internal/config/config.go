// Package config provides configuration loading and management for the sync orchestrator.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/dbsync-orchestrator/internal/logger"
	"github.com/stacklok/dbsync-orchestrator/internal/telemetry"
)

// EnvPrefix is the prefix of environment variables overriding configuration values
const EnvPrefix = "DBSYNC"

const (
	// StorageTypeMemory keeps tasks in process memory
	StorageTypeMemory = "memory"

	// StorageTypeDatabase keeps tasks in PostgreSQL
	StorageTypeDatabase = "database"
)

const (
	// LockTypeLocal serializes per-task operations inside this process
	LockTypeLocal = "local"

	// LockTypeRedis serializes per-task operations across replicas
	LockTypeRedis = "redis"
)

const (
	defaultConnectURL          = "http://localhost:8083"
	defaultConnectTimeout      = 10 * time.Second
	defaultProbeTimeout        = 5 * time.Second
	defaultKafkaBootstrap      = "localhost:9092"
	defaultReconcileInterval   = 2 * time.Minute
	defaultReconcileWorkers    = 4
	defaultPersistGracePeriod  = 10 * time.Second
	defaultLockTTL             = 2 * time.Minute
	defaultRestartInterval     = time.Minute
	defaultRestartBurst        = 3
	defaultBreakerFailures     = 5
	defaultBreakerOpenDuration = 30 * time.Second
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Storage      StorageConfig      `yaml:"storage"`
	Database     *DatabaseConfig    `yaml:"database,omitempty"`
	Connect      ConnectConfig      `yaml:"connect"`
	Builder      BuilderConfig      `yaml:"builder"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Reconcile    ReconcileConfig    `yaml:"reconcile"`
	Lock         LockConfig         `yaml:"lock"`
	Telemetry    *telemetry.Config  `yaml:"telemetry,omitempty"`
	Logging      logger.Config      `yaml:"logging"`
}

// StorageConfig selects the task store implementation
type StorageConfig struct {
	// Type is "memory" (default) or "database"
	Type string `yaml:"type,omitempty"`
}

// ConnectConfig defines how the Kafka Connect REST API is reached
type ConnectConfig struct {
	// URL is the base URL of the Kafka Connect REST API
	URL string `yaml:"url,omitempty"`

	// Timeout bounds every REST call (e.g., "10s")
	Timeout string `yaml:"timeout,omitempty"`

	// ValidateBeforeCreate runs the plugin config validation endpoint before creating connectors
	ValidateBeforeCreate bool `yaml:"validateBeforeCreate,omitempty"`

	// Breaker configures the circuit breaker around REST calls
	Breaker *BreakerConfig `yaml:"breaker,omitempty"`
}

// BreakerConfig configures the Kafka Connect circuit breaker
type BreakerConfig struct {
	// ConsecutiveFailures trips the breaker
	ConsecutiveFailures uint32 `yaml:"consecutiveFailures,omitempty"`

	// OpenDuration is how long the breaker stays open (e.g., "30s")
	OpenDuration string `yaml:"openDuration,omitempty"`
}

// BuilderConfig configures connector configuration builders
type BuilderConfig struct {
	// ProbeTimeout bounds the source reachability probe
	ProbeTimeout string `yaml:"probeTimeout,omitempty"`

	// KafkaBootstrapServers is the default schema history bootstrap servers list
	KafkaBootstrapServers string `yaml:"kafkaBootstrapServers,omitempty"`
}

// OrchestratorConfig configures the sync task orchestrator
type OrchestratorConfig struct {
	// PersistGracePeriod bounds the asynchronous write after a deadline expired
	PersistGracePeriod string `yaml:"persistGracePeriod,omitempty"`

	// RestartInterval is the refill interval of the per-task restart budget
	RestartInterval string `yaml:"restartInterval,omitempty"`

	// RestartBurst is the number of restarts allowed in a burst; 0 uses the default, -1 disables the guard
	RestartBurst int `yaml:"restartBurst,omitempty"`
}

// ReconcileConfig configures the periodic health reconciliation
type ReconcileConfig struct {
	// Enabled turns the background reconciler on
	Enabled bool `yaml:"enabled"`

	// Interval is the base interval between passes (e.g., "2m")
	Interval string `yaml:"interval,omitempty"`

	// Concurrency bounds parallel health checks within a pass
	Concurrency int `yaml:"concurrency,omitempty"`
}

// LockConfig configures per-task serialization
type LockConfig struct {
	// Type is "local" (default) or "redis"
	Type string `yaml:"type,omitempty"`

	// RedisAddress is the host:port of the Redis server
	RedisAddress string `yaml:"redisAddress,omitempty"`

	// RedisDB selects the Redis database
	RedisDB int `yaml:"redisDB,omitempty"`

	// TTL bounds how long a lock may be held (e.g., "2m")
	TTL string `yaml:"ttl,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// MigrationUser is the user applying migrations, defaults to User
	MigrationUser string `yaml:"migrationUser,omitempty"`

	// PasswordFile is the path to a file containing the database password
	// The file should contain only the password with optional trailing whitespace
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty"`

	// MaxIdleConns is the minimum number of idle connections kept in the pool
	MaxIdleConns int32 `yaml:"maxIdleConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from DBSYNC_DATABASE_PASSWORD environment variable
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		cleanPath := filepath.Clean(d.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}

		return strings.TrimSpace(string(data)), nil
	}

	if envPassword := os.Getenv(EnvPrefix + "_DATABASE_PASSWORD"); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or %s_DATABASE_PASSWORD environment variable",
		EnvPrefix,
	)
}

// GetMigrationUser returns the user applying migrations
func (d *DatabaseConfig) GetMigrationUser() string {
	if d.MigrationUser != "" {
		return d.MigrationUser
	}
	return d.User
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	return d.connectionString(d.User)
}

// GetMigrationConnectionString builds the connection string used by migrations
func (d *DatabaseConfig) GetMigrationConnectionString() (string, error) {
	return d.connectionString(d.GetMigrationUser())
}

func (d *DatabaseConfig) connectionString(user string) (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(user),
		url.QueryEscape(password),
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	), nil
}

// LoadConfig loads and parses configuration from a YAML file, then applies
// DBSYNC_* environment overrides.
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	config.applyEnvOverrides(newEnvViper())

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func newEnvViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// applyEnvOverrides lets deployments override the most commonly changed settings
func (c *Config) applyEnvOverrides(v *viper.Viper) {
	if s := v.GetString("storage.type"); s != "" {
		c.Storage.Type = s
	}
	if s := v.GetString("connect.url"); s != "" {
		c.Connect.URL = s
	}
	if s := v.GetString("connect.timeout"); s != "" {
		c.Connect.Timeout = s
	}
	if s := v.GetString("builder.kafkabootstrapservers"); s != "" {
		c.Builder.KafkaBootstrapServers = s
	}
	if s := v.GetString("lock.type"); s != "" {
		c.Lock.Type = s
	}
	if s := v.GetString("lock.redisaddress"); s != "" {
		c.Lock.RedisAddress = s
	}
	if s := v.GetString("logging.level"); s != "" {
		c.Logging.Level = s
	}
	if c.Database != nil {
		if s := v.GetString("database.host"); s != "" {
			c.Database.Host = s
		}
		if p := v.GetInt("database.port"); p != 0 {
			c.Database.Port = p
		}
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	switch c.GetStorageType() {
	case StorageTypeMemory:
	case StorageTypeDatabase:
		if err := validateDatabaseConfig(c.Database, "database"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("storage.type must be %q or %q, got %q", StorageTypeMemory, StorageTypeDatabase, c.Storage.Type)
	}

	if c.Connect.URL != "" {
		u, err := url.Parse(c.Connect.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("connect.url must be an absolute URL, got %q", c.Connect.URL)
		}
	}

	durations := map[string]string{
		"connect.timeout":                 c.Connect.Timeout,
		"builder.probeTimeout":            c.Builder.ProbeTimeout,
		"orchestrator.persistGracePeriod": c.Orchestrator.PersistGracePeriod,
		"orchestrator.restartInterval":    c.Orchestrator.RestartInterval,
		"reconcile.interval":              c.Reconcile.Interval,
		"lock.ttl":                        c.Lock.TTL,
	}
	if c.Connect.Breaker != nil {
		durations["connect.breaker.openDuration"] = c.Connect.Breaker.OpenDuration
	}
	for field, value := range durations {
		if err := validateDuration(value, field); err != nil {
			return err
		}
	}

	if c.Reconcile.Concurrency < 0 {
		return fmt.Errorf("reconcile.concurrency must not be negative")
	}

	switch c.GetLockType() {
	case LockTypeLocal:
	case LockTypeRedis:
		if c.Lock.RedisAddress == "" {
			return fmt.Errorf("lock.redisAddress is required when lock.type is %q", LockTypeRedis)
		}
	default:
		return fmt.Errorf("lock.type must be %q or %q, got %q", LockTypeLocal, LockTypeRedis, c.Lock.Type)
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	return nil
}

func validateDatabaseConfig(db *DatabaseConfig, prefix string) error {
	if db == nil {
		return fmt.Errorf("%s: configuration is required when storage.type is %q", prefix, StorageTypeDatabase)
	}
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Port == 0 {
		return fmt.Errorf("%s.port is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Database == "" {
		return fmt.Errorf("%s.database is required", prefix)
	}
	return validateDuration(db.ConnMaxLifetime, prefix+".connMaxLifetime")
}

func validateDuration(value, field string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s must be a valid duration (e.g., '30s', '5m'): %w", field, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive", field)
	}
	return nil
}

// parseDurationOr parses an already validated duration, falling back to def when empty
func parseDurationOr(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// GetStorageType returns the storage type, using memory if not specified
func (c *Config) GetStorageType() string {
	if c.Storage.Type == "" {
		return StorageTypeMemory
	}
	return c.Storage.Type
}

// GetLockType returns the lock type, using local if not specified
func (c *Config) GetLockType() string {
	if c.Lock.Type == "" {
		return LockTypeLocal
	}
	return c.Lock.Type
}

// GetLockTTL returns the maximum lock hold time
func (c *Config) GetLockTTL() time.Duration {
	return parseDurationOr(c.Lock.TTL, defaultLockTTL)
}

// GetURL returns the Kafka Connect base URL
func (c *ConnectConfig) GetURL() string {
	if c.URL == "" {
		return defaultConnectURL
	}
	return strings.TrimRight(c.URL, "/")
}

// GetTimeout returns the REST call timeout
func (c *ConnectConfig) GetTimeout() time.Duration {
	return parseDurationOr(c.Timeout, defaultConnectTimeout)
}

// GetBreakerFailures returns the number of consecutive failures that open the breaker
func (c *ConnectConfig) GetBreakerFailures() uint32 {
	if c.Breaker == nil || c.Breaker.ConsecutiveFailures == 0 {
		return defaultBreakerFailures
	}
	return c.Breaker.ConsecutiveFailures
}

// GetBreakerOpenDuration returns how long the breaker stays open
func (c *ConnectConfig) GetBreakerOpenDuration() time.Duration {
	if c.Breaker == nil {
		return defaultBreakerOpenDuration
	}
	return parseDurationOr(c.Breaker.OpenDuration, defaultBreakerOpenDuration)
}

// GetProbeTimeout returns the source reachability probe timeout
func (c *BuilderConfig) GetProbeTimeout() time.Duration {
	return parseDurationOr(c.ProbeTimeout, defaultProbeTimeout)
}

// GetKafkaBootstrapServers returns the default schema history bootstrap servers
func (c *BuilderConfig) GetKafkaBootstrapServers() string {
	if c.KafkaBootstrapServers == "" {
		return defaultKafkaBootstrap
	}
	return c.KafkaBootstrapServers
}

// GetPersistGracePeriod returns the bound of the post-deadline persistence attempt
func (c *OrchestratorConfig) GetPersistGracePeriod() time.Duration {
	return parseDurationOr(c.PersistGracePeriod, defaultPersistGracePeriod)
}

// GetRestartInterval returns the refill interval of the restart budget
func (c *OrchestratorConfig) GetRestartInterval() time.Duration {
	return parseDurationOr(c.RestartInterval, defaultRestartInterval)
}

// GetRestartBurst returns the restart burst; a negative value disables the guard
func (c *OrchestratorConfig) GetRestartBurst() int {
	if c.RestartBurst == 0 {
		return defaultRestartBurst
	}
	return c.RestartBurst
}

// GetInterval returns the base reconcile interval
func (c *ReconcileConfig) GetInterval() time.Duration {
	return parseDurationOr(c.Interval, defaultReconcileInterval)
}

// GetConcurrency returns the maximum number of parallel health checks
func (c *ReconcileConfig) GetConcurrency() int {
	if c.Concurrency == 0 {
		return defaultReconcileWorkers
	}
	return c.Concurrency
}
