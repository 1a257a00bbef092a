package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "kitchen360.cfg.json"

// ServerConfig holds HTTP and WebSocket listener settings
type ServerConfig struct {
	Addr            string        `json:"addr" mapstructure:"addr"`
	AllowedOrigins  []string      `json:"allowedOrigins" mapstructure:"allowedOrigins"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout" mapstructure:"shutdownTimeout"`
	MaxUploadBytes  int64         `json:"maxUploadBytes" mapstructure:"maxUploadBytes"`
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings. An empty Path keeps the
// database in memory and dumps it to DumpPath every DumpInterval.
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// PostgresConfig holds PostgreSQL connection settings
type PostgresConfig struct {
	Host         string `json:"host" mapstructure:"host"`
	Port         string `json:"port" mapstructure:"port"`
	Username     string `json:"username" mapstructure:"username"`
	Password     string `json:"password" mapstructure:"password"`
	Database     string `json:"database" mapstructure:"database"`
	MaxOpenConns int    `json:"maxOpenConns" mapstructure:"maxOpenConns"`
}

// DSN renders the connection string for gorm's postgres driver.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		c.Host, c.Port, c.Username, c.Password, c.Database)
}

// StorageConfig selects and configures the storage backend
type StorageConfig struct {
	Type     string         `json:"type" mapstructure:"type"`
	Memory   MemoryConfig   `json:"memory" mapstructure:"memory"`
	SQLite   SQLiteConfig   `json:"sqlite" mapstructure:"sqlite"`
	Postgres PostgresConfig `json:"postgres" mapstructure:"postgres"`
}

// ViewerConfig holds panorama viewer defaults
type ViewerConfig struct {
	DefaultZoom  float64       `json:"defaultZoom" mapstructure:"defaultZoom"`
	Navbar       []string      `json:"navbar" mapstructure:"navbar"`
	HitRadius    float64       `json:"hitRadius" mapstructure:"hitRadius"`
	LoadTimeout  time.Duration `json:"loadTimeout" mapstructure:"loadTimeout"`
	ImageBaseURL string        `json:"imageBaseUrl" mapstructure:"imageBaseUrl"`
}

// OTelConfig holds OpenTelemetry log pipeline settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// InfluxConfig holds the activity sink settings
type InfluxConfig struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	Host       string `json:"host" mapstructure:"host"`
	Port       string `json:"port" mapstructure:"port"`
	Protocol   string `json:"protocol" mapstructure:"protocol"`
	Token      string `json:"token" mapstructure:"token"`
	Org        string `json:"org" mapstructure:"org"`
	Bucket     string `json:"bucket" mapstructure:"bucket"`
	BackupPath string `json:"backupPath" mapstructure:"backupPath"`
}

// SetDefaults registers a default for every known key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("server.addr", ":8360")
	viper.SetDefault("server.allowedOrigins", []string{})
	viper.SetDefault("server.shutdownTimeout", "10s")
	viper.SetDefault("server.maxUploadBytes", 32<<20)

	viper.SetDefault("storage.type", "sqlite")
	viper.SetDefault("storage.memory.outputDir", "./catalog")
	viper.SetDefault("storage.memory.compressOutput", false)
	viper.SetDefault("storage.sqlite.path", "")
	viper.SetDefault("storage.sqlite.dumpPath", "./kitchen360.db")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.username", "postgres")
	viper.SetDefault("storage.postgres.password", "postgres")
	viper.SetDefault("storage.postgres.database", "kitchen360")
	viper.SetDefault("storage.postgres.maxOpenConns", 10)

	viper.SetDefault("viewer.defaultZoom", 50)
	viper.SetDefault("viewer.navbar", []string{"zoom", "move", "download", "fullscreen"})
	viper.SetDefault("viewer.hitRadius", 16)
	viper.SetDefault("viewer.loadTimeout", "15s")
	viper.SetDefault("viewer.imageBaseUrl", "")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "kitchen360")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "kitchen360")
	viper.SetDefault("influx.bucket", "catalog_activity")
	viper.SetDefault("influx.backupPath", "./logs/activity.lp.gz")
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. Environment variables
// prefixed KITCHEN360_ override file values (KITCHEN360_STORAGE_TYPE for storage.type).
func Load(configDir string) error {
	SetDefaults()

	viper.SetEnvPrefix("KITCHEN360")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetServerConfig returns the listener settings.
func GetServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            viper.GetString("server.addr"),
		AllowedOrigins:  viper.GetStringSlice("server.allowedOrigins"),
		ShutdownTimeout: viper.GetDuration("server.shutdownTimeout"),
		MaxUploadBytes:  viper.GetInt64("server.maxUploadBytes"),
	}
}

// GetStorageConfig returns the storage backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		Postgres: PostgresConfig{
			Host:         viper.GetString("storage.postgres.host"),
			Port:         viper.GetString("storage.postgres.port"),
			Username:     viper.GetString("storage.postgres.username"),
			Password:     viper.GetString("storage.postgres.password"),
			Database:     viper.GetString("storage.postgres.database"),
			MaxOpenConns: viper.GetInt("storage.postgres.maxOpenConns"),
		},
	}
}

// GetViewerConfig returns the panorama viewer defaults.
func GetViewerConfig() ViewerConfig {
	return ViewerConfig{
		DefaultZoom:  viper.GetFloat64("viewer.defaultZoom"),
		Navbar:       viper.GetStringSlice("viewer.navbar"),
		HitRadius:    viper.GetFloat64("viewer.hitRadius"),
		LoadTimeout:  viper.GetDuration("viewer.loadTimeout"),
		ImageBaseURL: viper.GetString("viewer.imageBaseUrl"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns the activity sink settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:    viper.GetBool("influx.enabled"),
		Host:       viper.GetString("influx.host"),
		Port:       viper.GetString("influx.port"),
		Protocol:   viper.GetString("influx.protocol"),
		Token:      viper.GetString("influx.token"),
		Org:        viper.GetString("influx.org"),
		Bucket:     viper.GetString("influx.bucket"),
		BackupPath: viper.GetString("influx.backupPath"),
	}
}
