// Package config loads the application configuration from the environment.
//
// Variables are read with the RESTAPI_ prefix (a `.env` file is loaded first when
// present), mapped onto the Config struct with koanf and checked with
// go-playground/validator plus a few cross-field rules in Validate.
//
// Nested keys are separated by a double underscore:
//
//	RESTAPI_SERVER__PORT=8080        -> server.port
//	RESTAPI_STORE__DRIVER=sqlite     -> store.driver
//	RESTAPI_OBSERVABILITY__LOGGING__LEVEL=debug
//
// List values (e.g. server.cors_allowed_origins) are comma separated.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	// Loads `.env` into the process environment before anything reads it.
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is the prefix of every environment variable read by Load.
	EnvPrefix = "RESTAPI_"

	// ServiceName tags logs, traces and metrics.
	ServiceName = "nhl-stenden-restapi"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Schema sources.
const (
	SchemaSourceFS = "fs"
	SchemaSourceS3 = "s3"
)

// Config is the root configuration object.
//
// Every block has defaults from Default; the few settings that only matter for one
// driver are checked in Validate.
type Config struct {
	Primary       Primary              `koanf:"primary" validate:"required"`
	Server        ServerConfig         `koanf:"server" validate:"required"`
	Store         StoreConfig          `koanf:"store" validate:"required"`
	Database      DatabaseConfig       `koanf:"database"`
	Redis         RedisConfig          `koanf:"redis"`
	Schema        SchemaConfig         `koanf:"schema" validate:"required"`
	Auth          AuthConfig           `koanf:"auth"`
	Integration   IntegrationConfig    `koanf:"integration"`
	Observability *ObservabilityConfig `koanf:"observability"`
}

// Primary holds the runtime environment name (local, development, production...).
type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

// ServerConfig configures the HTTP server. Timeouts are in seconds.
type ServerConfig struct {
	Port               string   `koanf:"port" validate:"required"`
	ReadTimeout        int      `koanf:"read_timeout" validate:"required,min=1"`
	WriteTimeout       int      `koanf:"write_timeout" validate:"required,min=1"`
	IdleTimeout        int      `koanf:"idle_timeout" validate:"required,min=1"`
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins" validate:"required"`

	// RateLimit is the allowed requests per second per client IP. Zero disables it.
	RateLimit float64 `koanf:"rate_limit" validate:"min=0"`
}

// StoreConfig selects the entity store backend.
type StoreConfig struct {
	Driver string `koanf:"driver" validate:"required,oneof=memory sqlite postgres redis"`

	// SQLitePath is the database file for the sqlite driver.
	SQLitePath string `koanf:"sqlite_path"`

	// SeedFile is a YAML file with initial records. Empty disables seeding.
	SeedFile string `koanf:"seed_file"`
}

// DatabaseConfig holds PostgreSQL connection parameters; used by the postgres driver.
type DatabaseConfig struct {
	Host            string `koanf:"host"`
	Port            int    `koanf:"port"`
	User            string `koanf:"user"`
	Password        string `koanf:"password"`
	Name            string `koanf:"name"`
	SSLMode         string `koanf:"ssl_mode"`
	MaxOpenConns    int    `koanf:"max_open_conns"`
	MaxIdleConns    int    `koanf:"max_idle_conns"`
	ConnMaxLifetime int    `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime int    `koanf:"conn_max_idle_time"`
}

// RedisConfig holds the Redis address ("host:port").
// It backs the redis store driver and the background job queue.
type RedisConfig struct {
	Address string `koanf:"address"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

// SchemaConfig locates the XML Schema and JSON Schema documents.
// Paths are relative to Root (fs) or Prefix (s3).
type SchemaConfig struct {
	Source   string         `koanf:"source" validate:"required,oneof=fs s3"`
	Root     string         `koanf:"root"`
	XSDPath  string         `koanf:"xsd_path" validate:"required"`
	JSONPath string         `koanf:"json_path" validate:"required"`
	S3       SchemaS3Config `koanf:"s3"`
}

// SchemaS3Config points at a bucket holding the schema documents.
type SchemaS3Config struct {
	Bucket    string `koanf:"bucket"`
	Prefix    string `koanf:"prefix"`
	Region    string `koanf:"region"`
	Endpoint  string `koanf:"endpoint"`
	PathStyle bool   `koanf:"path_style"`
}

// AuthConfig holds the Clerk secret key. Empty leaves the API unauthenticated.
type AuthConfig struct {
	SecretKey string `koanf:"secret_key"`
}

// Enabled reports whether write routes require authentication.
func (a AuthConfig) Enabled() bool {
	return a.SecretKey != ""
}

// IntegrationConfig configures outbound integrations.
type IntegrationConfig struct {
	// ResendAPIKey enables e-mail notifications through Resend.
	ResendAPIKey string `koanf:"resend_api_key"`

	// SalesNotifyEmail receives a notification for every recorded sale.
	SalesNotifyEmail string `koanf:"sales_notify_email" validate:"omitempty,email"`

	// FromEmail is the sender address of notifications.
	FromEmail string `koanf:"from_email" validate:"omitempty,email"`
}

// Default returns a configuration that runs locally with the in-memory store.
func Default() *Config {
	return &Config{
		Primary: Primary{Env: "development"},
		Server: ServerConfig{
			Port:               "8080",
			ReadTimeout:        30,
			WriteTimeout:       30,
			IdleTimeout:        60,
			CORSAllowedOrigins: []string{"*"},
		},
		Store: StoreConfig{
			Driver:     StoreMemory,
			SQLitePath: "data/restapi.db",
			SeedFile:   "data/seed.yaml",
		},
		Database: DatabaseConfig{
			Port:            5432,
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 3600,
			ConnMaxIdleTime: 300,
		},
		Schema: SchemaConfig{
			Source:   SchemaSourceFS,
			Root:     "schemas",
			XSDPath:  "xsd/dataset.xsd",
			JSONPath: "json/dataset.json",
		},
		Integration: IntegrationConfig{
			FromEmail: "onboarding@resend.dev",
		},
		Observability: DefaultObservabilityConfig(),
	}
}

// Validate applies rules that depend on the selected drivers.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite driver")
		}
	case StorePostgres:
		d := c.Database
		if d.Host == "" || d.Port == 0 || d.User == "" || d.Name == "" {
			return fmt.Errorf("database.host, database.port, database.user and database.name are required for the postgres driver")
		}
	case StoreRedis:
		if !c.Redis.Enabled() {
			return fmt.Errorf("redis.address is required for the redis driver")
		}
	}

	if c.Schema.Source == SchemaSourceS3 && c.Schema.S3.Bucket == "" {
		return fmt.Errorf("schema.s3.bucket is required for the s3 schema source")
	}

	return nil
}

// envKey maps RESTAPI_SERVER__PORT to server.port.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// listKeys hold comma separated values in the environment.
var listKeys = map[string]bool{
	"server.cors_allowed_origins":        true,
	"observability.health_checks.checks": true,
}

func envKeyValue(key, value string) (string, interface{}) {
	k := envKey(key)
	if !listKeys[k] {
		return k, value
	}

	items := []string{}
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return k, items
}

// Load reads the configuration from the environment on top of Default, validates it
// and fills in observability defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKeyValue), nil); err != nil {
		return nil, fmt.Errorf("could not load env variables: %w", err)
	}

	mainConfig := Default()

	// Unmarshal only overwrites keys present in the environment, so defaults survive.
	if err := k.Unmarshal("", mainConfig); err != nil {
		return nil, fmt.Errorf("could not unmarshal main config: %w", err)
	}

	mainConfig.Observability.ServiceName = ServiceName
	mainConfig.Observability.Environment = mainConfig.Primary.Env

	validate := validator.New()
	if err := validate.Struct(mainConfig); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if err := mainConfig.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if err := mainConfig.Observability.Validate(); err != nil {
		return nil, fmt.Errorf("invalid observability config: %w", err)
	}

	return mainConfig, nil
}
