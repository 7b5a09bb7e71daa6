package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	StoreDriverSQLite    = "sqlite"
	StoreDriverFirestore = "firestore"
)

type Config struct {
	ServerPort  string `toml:"server_port"`
	Environment string `toml:"environment"`
	LogLevel    string `toml:"log_level"`

	FirebaseProject            string `toml:"firebase_project_id"`
	FirebaseServiceAccountJSON string `toml:"-"`
	FirebaseServiceAccountPath string `toml:"firebase_service_account_path"`

	StoreDriver string `toml:"store_driver"`
	SQLitePath  string `toml:"sqlite_path"`

	SyncMaxAttempts          int           `toml:"sync_max_attempts"`
	SyncHousekeepingInterval time.Duration `toml:"-"`
	SyncCompletedRetention   time.Duration `toml:"-"`

	PushEnabled  bool `toml:"push_enabled"`
	WSSendBuffer int  `toml:"ws_send_buffer"`

	// Durations are read as strings from TOML and parsed once.
	HousekeepingInterval string `toml:"sync_housekeeping_interval"`
	CompletedRetention   string `toml:"sync_completed_retention"`
}

func defaults() *Config {
	return &Config{
		ServerPort:           "8080",
		Environment:          "development",
		LogLevel:             "info",
		StoreDriver:          StoreDriverSQLite,
		SQLitePath:           "pasarlive.db",
		SyncMaxAttempts:      3,
		PushEnabled:          false,
		WSSendBuffer:         256,
		HousekeepingInterval: "1h",
		CompletedRetention:   "168h",
	}
}

// Load builds the configuration from defaults, an optional TOML file named by
// CONFIG_FILE, a .env file and finally the process environment.
func Load() (*Config, error) {
	godotenv.Load()

	config := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, config); err != nil {
			return nil, fmt.Errorf("decode config file %s: %w", path, err)
		}
	}

	config.ServerPort = getEnv("SERVER_PORT", config.ServerPort)
	config.Environment = getEnv("ENVIRONMENT", config.Environment)
	config.LogLevel = getEnv("LOG_LEVEL", config.LogLevel)
	config.FirebaseProject = getEnv("FIREBASE_PROJECT_ID", config.FirebaseProject)
	config.FirebaseServiceAccountJSON = getEnv("FIREBASE_SERVICE_ACCOUNT_JSON", "")
	config.FirebaseServiceAccountPath = getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", config.FirebaseServiceAccountPath)
	config.StoreDriver = getEnv("STORE_DRIVER", config.StoreDriver)
	config.SQLitePath = getEnv("SQLITE_PATH", config.SQLitePath)
	config.HousekeepingInterval = getEnv("SYNC_HOUSEKEEPING_INTERVAL", config.HousekeepingInterval)
	config.CompletedRetention = getEnv("SYNC_COMPLETED_RETENTION", config.CompletedRetention)

	var err error
	if config.SyncMaxAttempts, err = getEnvAsInt("SYNC_MAX_ATTEMPTS", config.SyncMaxAttempts); err != nil {
		return nil, err
	}
	if config.WSSendBuffer, err = getEnvAsInt("WS_SEND_BUFFER", config.WSSendBuffer); err != nil {
		return nil, err
	}
	if config.PushEnabled, err = getEnvAsBool("PUSH_ENABLED", config.PushEnabled); err != nil {
		return nil, err
	}

	if config.SyncHousekeepingInterval, err = time.ParseDuration(config.HousekeepingInterval); err != nil {
		return nil, fmt.Errorf("invalid SYNC_HOUSEKEEPING_INTERVAL %q: %w", config.HousekeepingInterval, err)
	}
	if config.SyncCompletedRetention, err = time.ParseDuration(config.CompletedRetention); err != nil {
		return nil, fmt.Errorf("invalid SYNC_COMPLETED_RETENTION %q: %w", config.CompletedRetention, err)
	}

	switch config.StoreDriver {
	case StoreDriverSQLite, StoreDriverFirestore:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", config.StoreDriver)
	}
	if config.SyncMaxAttempts <= 0 {
		return nil, fmt.Errorf("SYNC_MAX_ATTEMPTS must be positive, got %d", config.SyncMaxAttempts)
	}

	return config, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return intValue, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return boolValue, nil
}
