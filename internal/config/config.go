package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings
type Config struct {
	// Bolt connection to the graph store
	Neo4j Neo4jConfig `yaml:"neo4j" mapstructure:"neo4j"`

	// Spatial extension (HTTP)
	Spatial SpatialConfig `yaml:"spatial" mapstructure:"spatial"`

	// Change stream replay
	Sync SyncConfig `yaml:"sync" mapstructure:"sync"`

	// Dead letters for swallowed commit failures
	DeadLetter DeadLetterConfig `yaml:"dead_letter" mapstructure:"dead_letter"`

	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

type Neo4jConfig struct {
	URI         string `yaml:"uri" mapstructure:"uri"`
	User        string `yaml:"user" mapstructure:"user"`
	Password    string `yaml:"password" mapstructure:"password"`
	Database    string `yaml:"database" mapstructure:"database"`
	MaxPoolSize int    `yaml:"max_pool_size" mapstructure:"max_pool_size"`

	// Applied to every transaction; zero keeps the server default
	TxTimeout time.Duration `yaml:"tx_timeout" mapstructure:"tx_timeout"`
}

type SpatialConfig struct {
	Enabled        bool   `yaml:"enabled" mapstructure:"enabled"`
	HTTPURL        string `yaml:"http_url" mapstructure:"http_url"` // e.g. http://localhost:7474/db/data
	Auth           string `yaml:"auth" mapstructure:"auth"`         // "user:password"
	Layer          string `yaml:"layer" mapstructure:"layer"`
	Lat            string `yaml:"lat" mapstructure:"lat"`
	Lon            string `yaml:"lon" mapstructure:"lon"`
	StampBatchSize int    `yaml:"stamp_batch_size" mapstructure:"stamp_batch_size"`
}

type SyncConfig struct {
	CheckpointPath string  `yaml:"checkpoint_path" mapstructure:"checkpoint_path"`
	Bulk           bool    `yaml:"bulk" mapstructure:"bulk"`
	BulkSize       int     `yaml:"bulk_size" mapstructure:"bulk_size"`
	RateLimit      float64 `yaml:"rate_limit" mapstructure:"rate_limit"` // writes per second, 0 = unlimited
	Burst          int     `yaml:"burst" mapstructure:"burst"`
}

type DeadLetterConfig struct {
	// SQLite path or postgres:// DSN; empty disables dead letters
	DSN string `yaml:"dsn" mapstructure:"dsn"`
}

type LoggingConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	File  string `yaml:"file" mapstructure:"file"`
	JSON  bool   `yaml:"json" mapstructure:"json"`
}

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Neo4j: Neo4jConfig{
			URI:         "bolt://localhost:7687",
			User:        "neo4j",
			Database:    "neo4j",
			MaxPoolSize: 50,
		},
		Spatial: SpatialConfig{
			Enabled:        true,
			HTTPURL:        "http://localhost:7474/db/data",
			Layer:          "geom",
			Lat:            "lat",
			Lon:            "lon",
			StampBatchSize: 1000,
		},
		Sync: SyncConfig{
			CheckpointPath: filepath.Join(homeDir, ".docgraph", "checkpoints.db"),
			BulkSize:       1000,
			Burst:          1,
		},
		DeadLetter: DeadLetterConfig{
			DSN: filepath.Join(homeDir, ".docgraph", "dead_letters.db"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from file, .env files and the environment.
// Precedence: explicit env overrides, DOCGRAPH_* variables, config file, defaults.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	setDefaults(v, cfg)

	// DOCGRAPH_NEO4J_URI -> neo4j.uri
	v.SetEnvPrefix("DOCGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".docgraph")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".docgraph"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg, NewKeyringManager())

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	defaults := map[string]any{
		"neo4j.uri":                cfg.Neo4j.URI,
		"neo4j.user":               cfg.Neo4j.User,
		"neo4j.password":           cfg.Neo4j.Password,
		"neo4j.database":           cfg.Neo4j.Database,
		"neo4j.max_pool_size":      cfg.Neo4j.MaxPoolSize,
		"neo4j.tx_timeout":         cfg.Neo4j.TxTimeout,
		"spatial.enabled":          cfg.Spatial.Enabled,
		"spatial.http_url":         cfg.Spatial.HTTPURL,
		"spatial.auth":             cfg.Spatial.Auth,
		"spatial.layer":            cfg.Spatial.Layer,
		"spatial.lat":              cfg.Spatial.Lat,
		"spatial.lon":              cfg.Spatial.Lon,
		"spatial.stamp_batch_size": cfg.Spatial.StampBatchSize,
		"sync.checkpoint_path":     cfg.Sync.CheckpointPath,
		"sync.bulk":                cfg.Sync.Bulk,
		"sync.bulk_size":           cfg.Sync.BulkSize,
		"sync.rate_limit":          cfg.Sync.RateLimit,
		"sync.burst":               cfg.Sync.Burst,
		"dead_letter.dsn":          cfg.DeadLetter.DSN,
		"logging.level":            cfg.Logging.Level,
		"logging.file":             cfg.Logging.File,
		"logging.json":             cfg.Logging.JSON,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// loadEnvFiles loads .env files in order of precedence
func loadEnvFiles() {
	envFiles := []string{
		".env.local", // Local overrides (highest precedence)
		".env",
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			// godotenv never overwrites variables that are already set
			_ = godotenv.Load(file)
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".docgraph", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		_ = godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies the connector's conventional variables on top of the loaded config
func applyEnvOverrides(cfg *Config, km *KeyringManager) {
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		cfg.Neo4j.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		cfg.Neo4j.User = user
	}
	if db := os.Getenv("NEO4J_DATABASE"); db != "" {
		cfg.Neo4j.Database = db
	}
	if size := os.Getenv("NEO4J_MAX_POOL_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil {
			cfg.Neo4j.MaxPoolSize = n
		}
	}
	if timeout := os.Getenv("NEO4J_TX_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.Neo4j.TxTimeout = d
		}
	}
	if url := os.Getenv("NEO4J_HTTP_URL"); url != "" {
		cfg.Spatial.HTTPURL = url
	}

	// Credentials
	// Precedence: 1. Env var (highest) 2. Keychain 3. Config file (lowest)
	if password := os.Getenv("NEO4J_PASSWORD"); password != "" {
		cfg.Neo4j.Password = password
	} else if km != nil && km.IsAvailable() {
		if stored, err := km.GetPassword(); err == nil && stored != "" {
			cfg.Neo4j.Password = stored
		}
	}

	if auth := os.Getenv("NEO4J_AUTH"); auth != "" {
		cfg.Spatial.Auth = auth
	} else if km != nil && km.IsAvailable() {
		if stored, err := km.GetHTTPAuth(); err == nil && stored != "" {
			cfg.Spatial.Auth = stored
		}
	}

	// The HTTP endpoint accepts the Bolt credentials when no separate pair is given
	if cfg.Spatial.Auth == "" && cfg.Neo4j.User != "" && cfg.Neo4j.Password != "" {
		cfg.Spatial.Auth = cfg.Neo4j.User + ":" + cfg.Neo4j.Password
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if dsn := os.Getenv("DLQ_DSN"); dsn != "" {
		cfg.DeadLetter.DSN = expandPath(dsn)
	}
	cfg.Sync.CheckpointPath = expandPath(cfg.Sync.CheckpointPath)
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Save saves configuration to file. Secrets are never written.
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	neo4j := c.Neo4j
	neo4j.Password = ""
	spatial := c.Spatial
	spatial.Auth = ""

	v.Set("neo4j", neo4j)
	v.Set("spatial", spatial)
	v.Set("sync", c.Sync)
	v.Set("dead_letter", c.DeadLetter)
	v.Set("logging", c.Logging)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
