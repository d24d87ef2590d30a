package config

import (
	"fmt"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/publishflow/publishflow/internal/database"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Publish   PublishConfig
	Redis     RedisConfig
	Keycloak  KeycloakConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	MinIO     MinIOConfig
	NATS      NATSConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	LogLevel     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// MongoDBConfig is the connection this instance edits documents in.
type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// PublishConfig configures the publish workflow and its live database.
type PublishConfig struct {
	// ConnectionString points at the live database documents are published to.
	ConnectionString string
	// LiveDatabase is used when ConnectionString carries no database name.
	LiveDatabase string
	LiveURL      string
	PreviewURL   string

	ShowLiveContentURL             bool
	PublishCheckedByDefault        bool
	ForcePublishRegardlessOfStatus bool

	SchemaFile string
	LockTTL    time.Duration
	LockWait   time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type KeycloakConfig struct {
	URL      string
	Realm    string
	ClientID string
}

type JWTConfig struct {
	Secret        string
	AllowInsecure bool
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

// MinIOConfig holds the snapshot archive connection.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5010")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MONGODB_DATABASE", "publishflow")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("PUBLISH_LIVE_DATABASE", "publishflow_live")
	viper.SetDefault("PUBLISH_SHOW_LIVE_CONTENT_URL", true)
	viper.SetDefault("PUBLISH_SCHEMA_FILE", "lists.yaml")
	viper.SetDefault("PUBLISH_LOCK_TTL", 30)
	viper.SetDefault("PUBLISH_LOCK_WAIT", 5)
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("RATE_LIMIT_RPS", 10.0)
	viper.SetDefault("RATE_LIMIT_BURST", 20)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	viper.SetDefault("MINIO_BUCKET", "publishflow-snapshots")
	viper.SetDefault("NATS_SUBJECT_PREFIX", "publishflow")

	// MONGO_URI wins over MONGODB_URI so deployments that share the
	// host CMS environment keep working.
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		uri = viper.GetString("MONGODB_URI")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			LogLevel:     viper.GetString("LOG_LEVEL"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      uri,
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Publish: PublishConfig{
			ConnectionString:               viper.GetString("PUBLISH_CONNECTION_STRING"),
			LiveDatabase:                   viper.GetString("PUBLISH_LIVE_DATABASE"),
			LiveURL:                        viper.GetString("PUBLISH_LIVE_URL"),
			PreviewURL:                     viper.GetString("PUBLISH_PREVIEW_URL"),
			ShowLiveContentURL:             viper.GetBool("PUBLISH_SHOW_LIVE_CONTENT_URL"),
			PublishCheckedByDefault:        viper.GetBool("PUBLISH_CHECKED_BY_DEFAULT"),
			ForcePublishRegardlessOfStatus: viper.GetBool("PUBLISH_FORCE_REGARDLESS_OF_STATUS"),
			SchemaFile:                     viper.GetString("PUBLISH_SCHEMA_FILE"),
			LockTTL:                        time.Duration(viper.GetInt("PUBLISH_LOCK_TTL")) * time.Second,
			LockWait:                       time.Duration(viper.GetInt("PUBLISH_LOCK_WAIT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0,
		},
		Keycloak: KeycloakConfig{
			URL:      viper.GetString("KEYCLOAK_URL"),
			Realm:    viper.GetString("KEYCLOAK_REALM"),
			ClientID: viper.GetString("KEYCLOAK_CLIENT_ID"),
		},
		JWT: JWTConfig{
			Secret:        os.Getenv("JWT_SECRET"),
			AllowInsecure: viper.GetBool("ALLOW_INSECURE_TOKEN"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		MinIO: MinIOConfig{
			Endpoint:  viper.GetString("MINIO_ENDPOINT"),
			AccessKey: viper.GetString("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			UseSSL:    viper.GetBool("MINIO_USE_SSL"),
			Bucket:    viper.GetString("MINIO_BUCKET"),
		},
		NATS: NATSConfig{
			URL:           viper.GetString("NATS_URL"),
			SubjectPrefix: viper.GetString("NATS_SUBJECT_PREFIX"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks required settings and URL shapes.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.MongoDB,
		validation.Field(&c.MongoDB.URI, validation.Required.Error("MONGO_URI or MONGODB_URI is required")),
		validation.Field(&c.MongoDB.Database, validation.Required),
	); err != nil {
		return err
	}
	if err := validation.ValidateStruct(&c.Publish,
		validation.Field(&c.Publish.ConnectionString, validation.Required.Error("PUBLISH_CONNECTION_STRING is required")),
		validation.Field(&c.Publish.LiveURL, is.URL),
		validation.Field(&c.Publish.PreviewURL, is.URL),
		validation.Field(&c.Publish.LockTTL, validation.Min(time.Second)),
	); err != nil {
		return err
	}
	return validation.ValidateStruct(&c.RateLimit,
		validation.Field(&c.RateLimit.RPS, validation.When(c.RateLimit.Enabled, validation.Required)),
		validation.Field(&c.RateLimit.Burst, validation.Min(0)),
	)
}

// IsLiveDatabase reports whether this instance edits the live database
// directly, in which case every list is view only.
func (c *Config) IsLiveDatabase() bool {
	return database.IsLiveDatabase(c.MongoDB.URI, c.Publish.ConnectionString)
}
