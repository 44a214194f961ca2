package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Persistence drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Config is the application configuration.
type Config struct {
	Server ServerConfig `toml:"server"`
	DSL    DSLConfig    `toml:"dsl"`
	Data   DataConfig   `toml:"data"`
	Log    LogConfig    `toml:"log"`
	Action ActionConfig `toml:"action"`
}

type ServerConfig struct {
	Port        string   `toml:"port"`
	Mode        string   `toml:"mode"`
	CORSOrigins []string `toml:"cors_origins"`
}

// DSLConfig points at the ontology and seed documents. Empty paths select
// the bundled TMHNA ontology.
type DSLConfig struct {
	FilePath string `toml:"file_path"`
	SeedPath string `toml:"seed_path"`
}

type DataConfig struct {
	RootPath      string `toml:"root_path"`
	PersistDriver string `toml:"persist_driver"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type ActionConfig struct {
	MaxRetries int `toml:"max_retries"`
}

var globalConfig *Config

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", Mode: "debug", CORSOrigins: []string{"*"}},
		Data:   DataConfig{RootPath: "./data", PersistDriver: DriverMemory},
		Log:    LogConfig{Level: "info"},
		Action: ActionConfig{MaxRetries: 3},
	}
}

// Load builds the configuration from defaults, then the TOML file named by
// CONFIG_FILE, then environment variables. A .env file is read first when
// present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Server.Port = getEnv("SERVER_PORT", cfg.Server.Port)
	cfg.Server.Mode = getEnv("SERVER_MODE", cfg.Server.Mode)
	cfg.Server.CORSOrigins = getEnvList("CORS_ORIGINS", cfg.Server.CORSOrigins)
	cfg.DSL.FilePath = getEnv("DSL_FILE_PATH", cfg.DSL.FilePath)
	cfg.DSL.SeedPath = getEnv("SEED_FILE_PATH", cfg.DSL.SeedPath)
	cfg.Data.RootPath = getEnv("DATA_ROOT_PATH", cfg.Data.RootPath)
	cfg.Data.PersistDriver = strings.ToLower(getEnv("PERSIST_DRIVER", cfg.Data.PersistDriver))
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Action.MaxRetries = getEnvInt("ACTION_MAX_RETRIES", cfg.Action.MaxRetries)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	globalConfig = cfg
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse TOML: %w", err)
	}
	return nil
}

// Validate checks values that have a closed set of choices.
func (c *Config) Validate() error {
	switch c.Data.PersistDriver {
	case DriverMemory, DriverFile, DriverSQLite:
	default:
		return fmt.Errorf("unknown persist driver '%s' (want memory, file or sqlite)", c.Data.PersistDriver)
	}
	if c.Action.MaxRetries < 1 {
		return fmt.Errorf("action max retries must be at least 1, got %d", c.Action.MaxRetries)
	}
	return nil
}

// Get returns the configuration loaded by Load.
func Get() *Config {
	if globalConfig == nil {
		log.Fatal("Config not loaded. Call config.Load() first.")
	}
	return globalConfig
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
