package config

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/soundprediction/go-lineage/pkg/tabular"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Record input
	Input InputConfig `mapstructure:"input"`

	// Table output
	Output OutputConfig `mapstructure:"output"`

	// Table dialect shared by writer and reader
	Table TableConfig `mapstructure:"table"`

	Dedupe DedupeConfig `mapstructure:"dedupe"`

	// Institution conflict resolution
	Conflict ConflictConfig `mapstructure:"conflict"`

	// Optional sinks
	Export ExportConfig `mapstructure:"export"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
	Color bool   `mapstructure:"color"`
}

// InputConfig holds record loading configuration
type InputConfig struct {
	Dir         string `mapstructure:"dir"`
	Parallelism int    `mapstructure:"parallelism"`
}

// OutputConfig holds table output configuration
type OutputConfig struct {
	Dir          string `mapstructure:"dir"`
	SlicesDir    string `mapstructure:"slices_dir"`
	WriteFlagged bool   `mapstructure:"write_flagged"`
}

// TableConfig holds the table dialect
type TableConfig struct {
	Delimiter string          `mapstructure:"delimiter"`
	Headers   tabular.Headers `mapstructure:"headers"`
}

// DedupeConfig holds edge deduplication configuration
type DedupeConfig struct {
	FlagThreshold int `mapstructure:"flag_threshold"`
}

// ConflictConfig holds conflict resolution configuration
type ConflictConfig struct {
	Strategy    string `mapstructure:"strategy"` // prefer-first, prefer-non-empty, prefer-longest, interactive
	MaxAttempts int    `mapstructure:"max_attempts"`
	MemoPath    string `mapstructure:"memo_path"` // empty keeps decisions in memory
}

// ExportConfig holds sink configuration
type ExportConfig struct {
	DuckDB DuckDBConfig `mapstructure:"duckdb"`
	Neo4j  Neo4jConfig  `mapstructure:"neo4j"`
}

// DuckDBConfig holds DuckDB sink configuration
type DuckDBConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Neo4jConfig holds Neo4j sink configuration
type Neo4jConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	URI              string `mapstructure:"uri"`
	Username         string `mapstructure:"username"`
	Password         string `mapstructure:"password"`
	Database         string `mapstructure:"database"`
	BatchSize        int    `mapstructure:"batch_size"`
	FailureThreshold uint32 `mapstructure:"failure_threshold"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	// Set defaults
	setDefaults()

	viper.SetEnvPrefix("LINEAGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Override with environment variables if present
	overrideWithEnv(config)

	if _, err := config.Table.Format(); err != nil {
		return nil, err
	}

	return config, nil
}

// Format returns the tabular dialect described by the config.
func (t TableConfig) Format() (tabular.Format, error) {
	delim := t.Delimiter
	switch delim {
	case "", `\t`, "tab":
		delim = "\t"
	}
	if utf8.RuneCountInString(delim) != 1 {
		return tabular.Format{}, fmt.Errorf("delimiter must be a single character, got %q", t.Delimiter)
	}
	r, _ := utf8.DecodeRuneInString(delim)
	return tabular.Format{Delimiter: r, Headers: t.Headers}, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.color", true)

	viper.SetDefault("input.dir", "records")
	viper.SetDefault("input.parallelism", 4)

	viper.SetDefault("output.dir", "output")
	viper.SetDefault("output.slices_dir", "output/slices")
	viper.SetDefault("output.write_flagged", true)

	// Table defaults
	h := tabular.DefaultHeaders()
	viper.SetDefault("table.delimiter", `\t`)
	viper.SetDefault("table.headers.id", h.ID)
	viper.SetDefault("table.headers.label", h.Label)
	viper.SetDefault("table.headers.source", h.Source)
	viper.SetDefault("table.headers.target", h.Target)
	viper.SetDefault("table.headers.year", h.Year)
	viper.SetDefault("table.headers.institution", h.Institution)

	viper.SetDefault("dedupe.flag_threshold", 2)

	viper.SetDefault("conflict.strategy", "prefer-non-empty")
	viper.SetDefault("conflict.max_attempts", 3)
	viper.SetDefault("conflict.memo_path", "")

	// Sink defaults
	viper.SetDefault("export.duckdb.enabled", false)
	viper.SetDefault("export.duckdb.path", "output/lineage.duckdb")
	viper.SetDefault("export.neo4j.enabled", false)
	viper.SetDefault("export.neo4j.uri", "bolt://localhost:7687")
	viper.SetDefault("export.neo4j.username", "neo4j")
	viper.SetDefault("export.neo4j.password", "password")
	viper.SetDefault("export.neo4j.database", "neo4j")
	viper.SetDefault("export.neo4j.batch_size", 500)
	viper.SetDefault("export.neo4j.failure_threshold", 3)

	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	// Column headers
	headers := []struct {
		env   string
		field *string
	}{
		{"NODE_CODE_COLUMN_HEADER", &config.Table.Headers.ID},
		{"NODE_LABEL_COLUMN_HEADER", &config.Table.Headers.Label},
		{"SOURCE_CODE_COLUMN_HEADER", &config.Table.Headers.Source},
		{"TARGET_CODE_COLUMN_HEADER", &config.Table.Headers.Target},
		{"YEAR_COLUMN_HEADER", &config.Table.Headers.Year},
		{"INSTITUTION_COLUMN_HEADER", &config.Table.Headers.Institution},
	}
	for _, h := range headers {
		if v := os.Getenv(h.env); v != "" {
			*h.field = v
		}
	}

	// Database credentials
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Export.Neo4j.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Export.Neo4j.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Export.Neo4j.Password = pass
	}

	// Server settings
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
}
