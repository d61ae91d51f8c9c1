package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StatusPolicyPermissive = "permissive"
	StatusPolicyStrict     = "strict"
)

type Config struct {
	Env         string            `yaml:"env"`
	HTTP        HTTPConfig        `yaml:"http"`
	Session     SessionConfig     `yaml:"session"`
	Database    DatabaseConfig    `yaml:"database"`
	DocStore    DocStoreConfig    `yaml:"docstore"`
	AWS         AWSConfig         `yaml:"aws"`
	Functions   FunctionsConfig   `yaml:"functions"`
	Orders      OrdersConfig      `yaml:"orders"`
	Aggregation AggregationConfig `yaml:"aggregation"`
	Export      ExportConfig      `yaml:"export"`
	Admin       AdminConfig       `yaml:"admin"`
	Log         LogConfig         `yaml:"log"`
}

type HTTPConfig struct {
	Port          string `yaml:"port"`
	GinMode       string `yaml:"gin_mode"`
	AllowedOrigin string `yaml:"allowed_origin"`
}

type SessionConfig struct {
	Secret    string        `yaml:"secret"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	UnixSocket      string        `yaml:"unix_socket"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type DocStoreConfig struct {
	Driver        string        `yaml:"driver"`
	MongoURI      string        `yaml:"mongo_uri"`
	MongoDatabase string        `yaml:"mongo_database"`
	TablePrefix   string        `yaml:"table_prefix"`
	Timeout       time.Duration `yaml:"timeout"`
}

type AWSConfig struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type FunctionsConfig struct {
	StatsURL         string        `yaml:"stats_url"`
	ExportURL        string        `yaml:"export_url"`
	InternalToken    string        `yaml:"internal_token"`
	InternalTokenKMS string        `yaml:"internal_token_kms"`
	Timeout          time.Duration `yaml:"timeout"`
}

type OrdersConfig struct {
	StatusPolicy string `yaml:"status_policy"`
}

type AggregationConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
}

type ExportConfig struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

type AdminConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaults() Config {
	return Config{
		Env: "development",
		HTTP: HTTPConfig{
			Port:          "8080",
			GinMode:       "debug",
			AllowedOrigin: "http://127.0.0.1:5500",
		},
		Session: SessionConfig{
			Secret:    "dev-secret-change-me",
			JWTSecret: "dev-jwt-secret-change-me",
			TokenTTL:  24 * time.Hour,
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "diner.db",
			Port:            3306,
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
		},
		DocStore: DocStoreConfig{
			Driver:        "memory",
			MongoURI:      "mongodb://localhost:27017",
			MongoDatabase: "diner",
			Timeout:       10 * time.Second,
		},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		Functions: FunctionsConfig{
			Timeout: 5 * time.Second,
		},
		Orders: OrdersConfig{
			StatusPolicy: StatusPolicyPermissive,
		},
		Aggregation: AggregationConfig{
			MaxAttempts: 5,
		},
		Export: ExportConfig{
			Prefix: "exports/",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE and finally the environment (.env is loaded first if present).
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Env = getString("APP_ENV", cfg.Env)

	cfg.HTTP.Port = getString("PORT", cfg.HTTP.Port)
	cfg.HTTP.GinMode = getString("GIN_MODE", cfg.HTTP.GinMode)
	cfg.HTTP.AllowedOrigin = getString("ALLOWED_ORIGIN", cfg.HTTP.AllowedOrigin)

	cfg.Session.Secret = getString("SECRET_KEY", cfg.Session.Secret)
	cfg.Session.JWTSecret = getString("JWT_SECRET", cfg.Session.JWTSecret)
	cfg.Session.TokenTTL = getDuration("TOKEN_TTL", cfg.Session.TokenTTL)

	cfg.Database.Driver = getString("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = getString("DB_DSN", cfg.Database.DSN)
	cfg.Database.Host = getString("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getInt("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getString("DB_USER", cfg.Database.User)
	cfg.Database.Password = getString("DB_PASS", cfg.Database.Password)
	cfg.Database.Name = getString("DB_NAME", cfg.Database.Name)
	if instance := os.Getenv("INSTANCE_CONNECTION_NAME"); instance != "" {
		cfg.Database.UnixSocket = "/cloudsql/" + instance
	}
	cfg.Database.UnixSocket = getString("DB_UNIX_SOCKET", cfg.Database.UnixSocket)
	cfg.Database.MaxOpenConns = getInt("DB_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = getInt("DB_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)
	cfg.Database.ConnMaxLifetime = getDuration("DB_CONN_MAX_LIFETIME", cfg.Database.ConnMaxLifetime)

	cfg.DocStore.Driver = getString("DOCSTORE_DRIVER", cfg.DocStore.Driver)
	cfg.DocStore.MongoURI = getString("MONGO_URI", cfg.DocStore.MongoURI)
	cfg.DocStore.MongoDatabase = getString("MONGO_DATABASE", cfg.DocStore.MongoDatabase)
	cfg.DocStore.TablePrefix = getString("DYNAMO_TABLE_PREFIX", cfg.DocStore.TablePrefix)
	cfg.DocStore.Timeout = getDuration("DOCSTORE_TIMEOUT", cfg.DocStore.Timeout)

	cfg.AWS.Region = getString("AWS_REGION", cfg.AWS.Region)
	cfg.AWS.Endpoint = getString("AWS_ENDPOINT_URL", cfg.AWS.Endpoint)
	cfg.AWS.AccessKeyID = getString("AWS_ACCESS_KEY_ID", cfg.AWS.AccessKeyID)
	cfg.AWS.SecretAccessKey = getString("AWS_SECRET_ACCESS_KEY", cfg.AWS.SecretAccessKey)

	cfg.Functions.StatsURL = getString("STATS_FUNCTION_URL", cfg.Functions.StatsURL)
	cfg.Functions.ExportURL = getString("EXPORT_FUNCTION_URL", cfg.Functions.ExportURL)
	cfg.Functions.InternalToken = getString("INTERNAL_TOKEN", cfg.Functions.InternalToken)
	cfg.Functions.InternalTokenKMS = getString("INTERNAL_TOKEN_KMS", cfg.Functions.InternalTokenKMS)
	cfg.Functions.Timeout = getDuration("FUNCTION_TIMEOUT", cfg.Functions.Timeout)

	cfg.Orders.StatusPolicy = getString("ORDER_STATUS_POLICY", cfg.Orders.StatusPolicy)
	cfg.Aggregation.MaxAttempts = getInt("AGGREGATE_MAX_ATTEMPTS", cfg.Aggregation.MaxAttempts)

	cfg.Export.Bucket = getString("EXPORT_BUCKET", cfg.Export.Bucket)
	cfg.Export.Prefix = getString("EXPORT_PREFIX", cfg.Export.Prefix)

	cfg.Admin.Username = getString("ADMIN_USER", cfg.Admin.Username)
	cfg.Admin.Password = getString("ADMIN_PASS", cfg.Admin.Password)

	cfg.Log.Level = getString("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getString("LOG_FORMAT", cfg.Log.Format)
}

func (c Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	switch c.DocStore.Driver {
	case "memory", "mongo", "dynamodb":
	default:
		return fmt.Errorf("unsupported DOCSTORE_DRIVER %q", c.DocStore.Driver)
	}
	switch c.Orders.StatusPolicy {
	case StatusPolicyPermissive, StatusPolicyStrict:
	default:
		return fmt.Errorf("unsupported ORDER_STATUS_POLICY %q", c.Orders.StatusPolicy)
	}
	if c.Aggregation.MaxAttempts < 1 {
		return errors.New("AGGREGATE_MAX_ATTEMPTS must be at least 1")
	}
	if c.Functions.Timeout <= 0 {
		return errors.New("FUNCTION_TIMEOUT must be positive")
	}
	return nil
}
