package domain

// APIConfig holds settings for the remote HAMU backend.
type APIConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// PostgresConfig holds PostgreSQL-specific settings
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"username"`
	Pass     string `mapstructure:"password"`
	SslMode  string `mapstructure:"ssl_mode"`
}

// DatabaseConfig holds general database settings and nested specific configs
type DatabaseConfig struct {
	Type     string         `mapstructure:"type"`
	Postgres PostgresConfig `mapstructure:"postgres"` // Nested struct for [database.postgres]
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Path           string `mapstructure:"path"`
	Level          string `mapstructure:"level"`
	MaxFileSize    int    `mapstructure:"max_file_size"`
	MaxBackupCount int    `mapstructure:"max_backup_count"`
}

// NetworkConfig holds reachability probe settings
type NetworkConfig struct {
	ProbeURL             string `mapstructure:"probe_url"`
	ProbeIntervalSeconds int    `mapstructure:"probe_interval_seconds"`
}

// SyncConfig holds settings for the queue drain loop and scheduled jobs
type SyncConfig struct {
	Auto                 bool `mapstructure:"auto"`
	SweepIntervalMinutes int  `mapstructure:"sweep_interval_minutes"`
	FailedRetentionDays  int  `mapstructure:"failed_retention_days"`
}

// CacheConfig holds collection cache settings
type CacheConfig struct {
	TTLMinutes          int `mapstructure:"ttl_minutes"`
	StaleRefreshMinutes int `mapstructure:"stale_refresh_minutes"`
}

// Config holds the application's configuration, mapped from config.toml
type Config struct {
	Version     string // No tag needed, not from config file
	ConfigPath  string // No tag needed, internal use
	DataDir     string `mapstructure:"data_dir"`
	VaultSecret string `mapstructure:"vault_secret"`

	API      APIConfig      `mapstructure:"api"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Network  NetworkConfig  `mapstructure:"network"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Cache    CacheConfig    `mapstructure:"cache"`
}
