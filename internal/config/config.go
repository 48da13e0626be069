package config

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"log"
	"os"
	"path"
	"path/filepath"
	"sync"
	"text/template"

	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/domain"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/logger"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/pkg/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var configTemplate = `# config.toml

# Directory for the local database and downloaded files.
# If empty, the config directory is used.
# Optional.
# Default: ""
data_dir = ""

# Secret used to derive the encryption key for stored credentials.
# Generated automatically on first run.
# Default: "{{ .vaultSecret }}" (dynamically generated)
vault_secret = "{{ .vaultSecret }}"

[api]
  # Base URL of the HAMU backend, including the trailing slash.
  # Default: "http://127.0.0.1:8000/api/"
  base_url = "http://127.0.0.1:8000/api/"

  # Request timeout in seconds.
  # Default: 30
  timeout_seconds = 30

[database]
  # Database type to use for local persistence.
  # Supported: "sqlite", "postgres"
  # Optional.
  # Default: "sqlite"
  type = "sqlite"

  # --- PostgreSQL Settings ---
  # These settings are only used if database.type is set to "postgres".
  [database.postgres]
    # Hostname or IP address of the PostgreSQL server.
    # Optional.
    # Default: "localhost"
    host = "localhost"

    # Port of the PostgreSQL server.
    # Optional.
    # Default: 5432
    port = 5432

    # Name of the PostgreSQL database.
    # Optional.
    # Default: "postgres"
    database = "postgres"

    # Username for connecting to the PostgreSQL database.
    # Optional.
    # Default: "postgres"
    username = "postgres"

    # Password for the PostgreSQL user.
    # Optional.
    # Default: "postgres"
    password = "postgres"

    # PostgreSQL SSL mode.
    # Options: "disable", "allow", "prefer", "require", "verify-ca", "verify-full"
    # Optional.
    # Default: "disable"
    ssl_mode = "disable"

[logging]
  # Log file path.
  # If empty or not set, logs will be written to standard output (stdout).
  # Use forward slashes for paths (e.g., "log/").
  # Optional.
  # Default: ""
  path = "log/"

  # Log level.
  # Determines the verbosity of logs.
  # Options: "ERROR", "WARN", "INFO", "DEBUG", "TRACE"
  # Default: "DEBUG"
  level = "DEBUG"

  # Maximum size of a log file in megabytes (MB) before it is rotated.
  # Default: 50
  max_file_size = 50

  # Maximum number of old log files to keep.
  # Default: 3
  max_backup_count = 3

[network]
  # URL probed to decide whether the backend is reachable.
  # If empty, the api base_url is probed.
  # Optional.
  # Default: ""
  probe_url = ""

  # Seconds between reachability probes.
  # Default: 15
  probe_interval_seconds = 15

[sync]
  # Drain the offline queue automatically whenever connectivity returns.
  # Default: true
  auto = true

  # Minutes between scheduled sweep passes over the queue.
  # Default: 15
  sweep_interval_minutes = 15

  # Days a failed queue item is kept before the prune job discards it.
  # Default: 7
  failed_retention_days = 7

[cache]
  # Minutes before a cached collection is considered stale.
  # Staleness only schedules refreshes; reads always return cached data.
  # Default: 30
  ttl_minutes = 30

  # Minutes between scheduled stale-cache refresh passes.
  # Default: 60
  stale_refresh_minutes = 60
`

var generateRandomString = func(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func writeConfig(configPath string, configFile string) error {
	cfgPath := filepath.Join(configPath, configFile)

	// check if configPath exists, if not create it
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		err := os.MkdirAll(configPath, os.ModePerm)
		if err != nil {
			log.Println(err)
			return err
		}
	}

	// check if config exists, if not create it
	if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
		f, createErr := os.Create(cfgPath)
		if createErr != nil {
			log.Printf("error creating file: %q", createErr)
			return createErr
		}
		defer func(f *os.File) {
			errClose := f.Close()
			if errClose != nil {
				log.Printf("error closing file: %q", errClose)
			}
		}(f)

		vaultSecretVal, secretErr := generateRandomString(16)
		if secretErr != nil {
			log.Printf("Failed to generate vault secret: %v. Using a default placeholder.", secretErr)
			vaultSecretVal = "fallback-please-replace-this-secret-immediately"
		}

		tmpl, tmplErr := template.New("config").Parse(configTemplate)
		if tmplErr != nil {
			return errors.Wrap(tmplErr, "could not create config template")
		}

		tmplVars := map[string]string{
			"vaultSecret": vaultSecretVal,
		}

		var buffer bytes.Buffer
		if execErr := tmpl.Execute(&buffer, &tmplVars); execErr != nil {
			return errors.Wrap(execErr, "could not write config template output")
		}

		if _, writeErr := f.WriteString(buffer.String()); writeErr != nil {
			log.Printf("error writing contents to file: %v %q", configPath, writeErr)
			return writeErr
		}

		return f.Sync()
	}

	return nil
}

type AppConfig struct {
	Config *domain.Config
	m      sync.Mutex
}

func New(configPath string, version string) *AppConfig {
	c := &AppConfig{}
	c.defaults()
	c.Config.Version = version
	c.Config.ConfigPath = configPath

	c.load(configPath)

	return c
}

func (c *AppConfig) defaults() {
	c.Config = &domain.Config{
		Version:     "dev", // Internal, not from toml
		ConfigPath:  "",    // Internal, not from toml
		DataDir:     "",
		VaultSecret: "insecure-vault-secret",
		API: domain.APIConfig{
			BaseURL:        "http://127.0.0.1:8000/api/",
			TimeoutSeconds: 30,
		},
		Database: domain.DatabaseConfig{
			Type: "sqlite",
			Postgres: domain.PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "postgres",
				User:     "postgres",
				Pass:     "postgres",
				SslMode:  "disable",
			},
		},
		Logging: domain.LoggingConfig{
			Path:           "",
			Level:          "DEBUG",
			MaxFileSize:    50,
			MaxBackupCount: 3,
		},
		Network: domain.NetworkConfig{
			ProbeURL:             "",
			ProbeIntervalSeconds: 15,
		},
		Sync: domain.SyncConfig{
			Auto:                 true,
			SweepIntervalMinutes: 15,
			FailedRetentionDays:  7,
		},
		Cache: domain.CacheConfig{
			TTLMinutes:          30,
			StaleRefreshMinutes: 60,
		},
	}
}

func (c *AppConfig) load(configPath string) {
	viper.SetConfigType("toml")
	configPath = path.Clean(configPath)

	if configPath != "" {
		if err := writeConfig(configPath, "config.toml"); err != nil {
			log.Printf("writeConfig error during load: %q", err)
			// Continue to attempt reading, defaults might be used or file might exist partially
		}
		viper.SetConfigFile(path.Join(configPath, "config.toml"))
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/hamud")
		viper.AddConfigPath("$HOME/.hamud")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Config file not found, using defaults: %s", viper.ConfigFileUsed())
		} else {
			log.Printf("Config read error: %q. Using defaults.", err)
		}
	}

	if err := viper.Unmarshal(&c.Config); err != nil {
		log.Fatalf("Could not unmarshal config file into struct: %v. Config file used: %s", err, viper.ConfigFileUsed())
	}
}

func (c *AppConfig) DynamicReload(log logger.Logger) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		c.m.Lock()
		defer c.m.Unlock()

		log.Info().Msgf("Config file changed: %s. Reloading configuration.", e.Name)

		// Re-read and unmarshal the entire config to capture all changes accurately
		if err := viper.ReadInConfig(); err != nil {
			log.Error().Err(err).Msg("Error reading config file during dynamic reload")
			return
		}

		var newConfig domain.Config
		// Preserve version and configPath as they are not from the file
		newConfig.Version = c.Config.Version
		newConfig.ConfigPath = c.Config.ConfigPath

		if err := viper.Unmarshal(&newConfig); err != nil {
			log.Error().Err(err).Msg("Error unmarshalling config during dynamic reload")
			return
		}

		// Atomically update the config
		c.Config = &newConfig

		// Update logger level if it changed
		log.SetLogLevel(c.Config.Logging.Level)

		log.Debug().Msg("Configuration reloaded successfully!")
	})
	viper.WatchConfig()
}
