package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PostgresConfig holds the identity-store connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// TimescaleConfig holds the time-series store connection settings.
type TimescaleConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// MongoConfig holds the document-store connection settings.
type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// ElasticsearchConfig holds the search-index connection settings.
type ElasticsearchConfig struct {
	Addresses []string `yaml:"addresses"`
}

// CassandraConfig holds the wide-column store connection settings.
type CassandraConfig struct {
	Hosts []string `yaml:"hosts"`
}

// RedisConfig holds the cache connection settings.
type RedisConfig struct {
	Addr string `yaml:"addr"`
}

// KafkaConfig holds the bulk-ingest broker settings.
type KafkaConfig struct {
	Brokers string `yaml:"brokers"`
	Topic   string `yaml:"topic"`
	Group   string `yaml:"group"`
}

// ServerConfig holds the HTTP and worker-pool settings.
type ServerConfig struct {
	Port            string  `yaml:"port"`
	WorkerCount     int     `yaml:"worker_count"`
	BatchSize       int     `yaml:"batch_size"`
	SearchRate      float64 `yaml:"search_rate"`
	SearchRateBurst int     `yaml:"search_rate_burst"`
}

// Config is the complete application configuration.
type Config struct {
	Postgres      PostgresConfig      `yaml:"postgres"`
	Timescale     TimescaleConfig     `yaml:"timescale"`
	Mongo         MongoConfig         `yaml:"mongo"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Cassandra     CassandraConfig     `yaml:"cassandra"`
	Redis         RedisConfig         `yaml:"redis"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Server        ServerConfig        `yaml:"server"`
}

// Load reads and validates the YAML configuration at configPath.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.WorkerCount == 0 {
		c.Server.WorkerCount = 4
	}
	if c.Server.BatchSize == 0 {
		c.Server.BatchSize = 100
	}
	if c.Server.SearchRate == 0 {
		c.Server.SearchRate = 1
	}
	if c.Server.SearchRateBurst == 0 {
		c.Server.SearchRateBurst = 1
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "mydatabase"
	}
	if c.Mongo.Collection == "" {
		c.Mongo.Collection = "sensors"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "sensor-data"
	}
	if c.Kafka.Group == "" {
		c.Kafka.Group = "senser-ingest"
	}
	if c.Postgres.SSLMode == "" {
		c.Postgres.SSLMode = "disable"
	}
	if c.Timescale.SSLMode == "" {
		c.Timescale.SSLMode = "disable"
	}
}

// Validate checks that every store has enough configuration to connect.
func (c *Config) Validate() error {
	if c.Postgres.Host == "" {
		return fmt.Errorf("postgres host is required")
	}
	if c.Postgres.User == "" {
		return fmt.Errorf("postgres user is required")
	}
	if c.Postgres.DBName == "" {
		return fmt.Errorf("postgres database name is required")
	}
	if c.Timescale.Host == "" {
		return fmt.Errorf("timescale host is required")
	}
	if c.Timescale.User == "" {
		return fmt.Errorf("timescale user is required")
	}
	if c.Timescale.DBName == "" {
		return fmt.Errorf("timescale database name is required")
	}
	if c.Mongo.URI == "" {
		return fmt.Errorf("mongo uri is required")
	}
	if len(c.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("at least one elasticsearch address is required")
	}
	if len(c.Cassandra.Hosts) == 0 {
		return fmt.Errorf("at least one cassandra host is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}
	return nil
}

// PostgresDSN returns the identity-store connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Postgres.Host, c.Postgres.Port, c.Postgres.User,
		c.Postgres.Password, c.Postgres.DBName, c.Postgres.SSLMode)
}

// TimescaleDSN returns the time-series store connection string.
func (c *Config) TimescaleDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Timescale.Host, c.Timescale.Port, c.Timescale.User,
		c.Timescale.Password, c.Timescale.DBName, c.Timescale.SSLMode)
}
