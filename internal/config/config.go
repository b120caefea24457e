package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Wuchinator/learning-analytics/pkg/kafka"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string        `yaml:"environment"`
	LogLevel    string        `yaml:"log_level"`
	GRPCPort    string        `yaml:"grpc_port"`
	HTTPPort    string        `yaml:"http_port"`
	MetricsPort string        `yaml:"metrics_port"`
	Timezone    string        `yaml:"timezone"`
	Store       StoreConfig   `yaml:"store"`
	SQL         SQLConfig     `yaml:"sql"`
	Kafka       KafkaConfig   `yaml:"kafka"`
	Limits      LimitsConfig  `yaml:"limits"`
	Sources     SourcesConfig `yaml:"sources"`
	Session     SessionConfig `yaml:"session"`
}

type StoreConfig struct {
	Backend       string        `yaml:"backend"` // memory | mongo
	MongoURI      string        `yaml:"mongo_uri"`
	MongoDatabase string        `yaml:"mongo_database"`
	MongoTimeout  time.Duration `yaml:"mongo_timeout"`
}

type SQLConfig struct {
	Driver          string        `yaml:"driver"` // postgres | pgx | mysql
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	Database        string        `yaml:"database"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type KafkaConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Brokers          []string      `yaml:"brokers"`
	IngestTopic      string        `yaml:"ingest_topic"`
	TrackedTopic     string        `yaml:"tracked_topic"`
	ConsumerGroup    string        `yaml:"consumer_group"`
	ProducerRetries  int           `yaml:"producer_retries"`
	ProducerTimeout  time.Duration `yaml:"producer_timeout"`
	RequiredAcks     int           `yaml:"required_acks"`
	CompressionType  string        `yaml:"compression"`
	MaxMessageBytes  int           `yaml:"max_message_bytes"`
	IdempotentWrites bool          `yaml:"idempotent_writes"`
}

// Producer returns the producer settings for writing to topic.
func (k KafkaConfig) Producer(topic string) kafka.ProducerConfig {
	return kafka.ProducerConfig{
		Brokers:          k.Brokers,
		Topic:            topic,
		Retries:          k.ProducerRetries,
		Timeout:          k.ProducerTimeout,
		RequiredAcks:     k.RequiredAcks,
		Compression:      k.CompressionType,
		IdempotentWrites: k.IdempotentWrites,
		MaxMessageBytes:  k.MaxMessageBytes,
	}
}

type LimitsConfig struct {
	MaxProfiles     int           `yaml:"max_profiles"`
	MaxEvents       int           `yaml:"max_events"`
	MaxPathEvents   int           `yaml:"max_path_events"`
	MaxQuizAttempts int           `yaml:"max_quiz_attempts"`
	MaxRollupKeys   int           `yaml:"max_rollup_keys"`
	TopN            int           `yaml:"top_n"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
}

type SourcesConfig struct {
	Profiles string `yaml:"profiles"` // store | sql
}

type SessionConfig struct {
	Estimator string        `yaml:"estimator"` // first_last | idle_gap
	IdleGap   time.Duration `yaml:"idle_gap"`
}

func Default() *Config {
	return &Config{
		Environment: "development",
		LogLevel:    "info",
		GRPCPort:    "50051",
		HTTPPort:    "8080",
		MetricsPort: "9090",
		Timezone:    "UTC",
		Store: StoreConfig{
			Backend:       "memory",
			MongoURI:      "mongodb://localhost:27017",
			MongoDatabase: "learning_analytics",
			MongoTimeout:  10 * time.Second,
		},
		SQL: SQLConfig{
			Driver:          "postgres",
			Host:            "localhost",
			Port:            "5432",
			Database:        "lms",
			Username:        "admin",
			Password:        "password",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:          []string{"localhost:9092"},
			IngestTopic:      "learning-events",
			TrackedTopic:     "learning-events-tracked",
			ConsumerGroup:    "learning-events-ingest",
			ProducerRetries:  3,
			ProducerTimeout:  10 * time.Second,
			RequiredAcks:     -1, // all ISR replicas
			CompressionType:  "snappy",
			MaxMessageBytes:  1000000,
			IdempotentWrites: true,
		},
		Limits: LimitsConfig{
			MaxProfiles:     1000,
			MaxEvents:       10000,
			MaxPathEvents:   1000,
			MaxQuizAttempts: 10000,
			MaxRollupKeys:   500,
			TopN:            10,
			QueryTimeout:    10 * time.Second,
		},
		Sources: SourcesConfig{Profiles: "store"},
		Session: SessionConfig{
			Estimator: "first_last",
			IdleGap:   30 * time.Minute,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// ANALYTICS_CONFIG_FILE, and finally environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path := os.Getenv("ANALYTICS_CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.GRPCPort = getEnv("EVENT_SERVICE_PORT", cfg.GRPCPort)
	cfg.HTTPPort = getEnv("QUERY_SERVICE_PORT", cfg.HTTPPort)
	cfg.MetricsPort = getEnv("METRICS_PORT", cfg.MetricsPort)
	cfg.Timezone = getEnv("ANALYTICS_TIMEZONE", cfg.Timezone)

	cfg.Store.Backend = getEnv("STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.MongoURI = getEnv("MONGO_URI", cfg.Store.MongoURI)
	cfg.Store.MongoDatabase = getEnv("MONGO_DATABASE", cfg.Store.MongoDatabase)
	cfg.Store.MongoTimeout = getEnvAsDuration("MONGO_TIMEOUT", cfg.Store.MongoTimeout)

	cfg.SQL.Driver = getEnv("SQL_DRIVER", cfg.SQL.Driver)
	cfg.SQL.Host = getEnv("SQL_HOST", cfg.SQL.Host)
	cfg.SQL.Port = getEnv("SQL_PORT", cfg.SQL.Port)
	cfg.SQL.Database = getEnv("SQL_DB", cfg.SQL.Database)
	cfg.SQL.Username = getEnv("SQL_USER", cfg.SQL.Username)
	cfg.SQL.Password = getEnv("SQL_PASSWORD", cfg.SQL.Password)
	cfg.SQL.SSLMode = getEnv("SQL_SSL_MODE", cfg.SQL.SSLMode)
	cfg.SQL.MaxOpenConns = getEnvAsInt("SQL_MAX_OPEN_CONNS", cfg.SQL.MaxOpenConns)
	cfg.SQL.MaxIdleConns = getEnvAsInt("SQL_MAX_IDLE_CONNS", cfg.SQL.MaxIdleConns)
	cfg.SQL.ConnMaxLifetime = getEnvAsDuration("SQL_CONN_MAX_LIFETIME", cfg.SQL.ConnMaxLifetime)

	cfg.Kafka.Enabled = getEnvAsBool("KAFKA_ENABLED", cfg.Kafka.Enabled)
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	cfg.Kafka.IngestTopic = getEnv("KAFKA_TOPIC_INGEST", cfg.Kafka.IngestTopic)
	cfg.Kafka.TrackedTopic = getEnv("KAFKA_TOPIC_TRACKED", cfg.Kafka.TrackedTopic)
	cfg.Kafka.ConsumerGroup = getEnv("KAFKA_CONSUMER_GROUP", cfg.Kafka.ConsumerGroup)
	cfg.Kafka.ProducerRetries = getEnvAsInt("KAFKA_PRODUCER_RETRIES", cfg.Kafka.ProducerRetries)
	cfg.Kafka.ProducerTimeout = getEnvAsDuration("KAFKA_PRODUCER_TIMEOUT", cfg.Kafka.ProducerTimeout)
	cfg.Kafka.RequiredAcks = getEnvAsInt("KAFKA_REQUIRED_ACKS", cfg.Kafka.RequiredAcks)
	cfg.Kafka.CompressionType = getEnv("KAFKA_COMPRESSION", cfg.Kafka.CompressionType)
	cfg.Kafka.IdempotentWrites = getEnvAsBool("KAFKA_IDEMPOTENT", cfg.Kafka.IdempotentWrites)
	cfg.Kafka.MaxMessageBytes = getEnvAsInt("KAFKA_MAX_MESSAGE_BYTES", cfg.Kafka.MaxMessageBytes)

	cfg.Limits.MaxProfiles = getEnvAsInt("LIMIT_MAX_PROFILES", cfg.Limits.MaxProfiles)
	cfg.Limits.MaxEvents = getEnvAsInt("LIMIT_MAX_EVENTS", cfg.Limits.MaxEvents)
	cfg.Limits.MaxPathEvents = getEnvAsInt("LIMIT_MAX_PATH_EVENTS", cfg.Limits.MaxPathEvents)
	cfg.Limits.MaxQuizAttempts = getEnvAsInt("LIMIT_MAX_QUIZ_ATTEMPTS", cfg.Limits.MaxQuizAttempts)
	cfg.Limits.MaxRollupKeys = getEnvAsInt("LIMIT_MAX_ROLLUP_KEYS", cfg.Limits.MaxRollupKeys)
	cfg.Limits.TopN = getEnvAsInt("LIMIT_TOP_N", cfg.Limits.TopN)
	cfg.Limits.QueryTimeout = getEnvAsDuration("QUERY_TIMEOUT", cfg.Limits.QueryTimeout)

	cfg.Sources.Profiles = getEnv("PROFILE_SOURCE", cfg.Sources.Profiles)
	cfg.Session.Estimator = getEnv("SESSION_ESTIMATOR", cfg.Session.Estimator)
	cfg.Session.IdleGap = getEnvAsDuration("SESSION_IDLE_GAP", cfg.Session.IdleGap)
}

// Location is the calendar used for event dates and period resolution.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *SQLConfig) DSN() string {
	switch c.Driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
			c.Username, c.Password, c.Host, c.Port, c.Database)
	default:
		return fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
