package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config represents the entire application configuration
type Config struct {
	Env        string           `json:"env"`
	Port       int              `json:"port"`
	AppName    string           `json:"app_name"`
	Structurer StructurerConfig `json:"structurer"`
	S3         S3Config         `json:"s3"`
	MongoDB    MongoDBConfig    `json:"mongodb"`
	RabbitMQ   RabbitMQConfig   `json:"rabbitmq"`
	Redis      RedisConfig      `json:"redis"`
	Ingest     IngestConfig     `json:"ingest"`
	Logging    LoggingConfig    `json:"logging"`
	CORS       CORSConfig       `json:"cors"`
}

// StructurerConfig contains settings for the remote document-structuring service
type StructurerConfig struct {
	APIKey            string `json:"api_key"`
	BaseURL           string `json:"base_url"`
	RequestsPerMinute int    `json:"requests_per_minute"`
	Cache             bool   `json:"cache"`
	DefaultCacheTTL   int    `json:"default_cache_ttl"` // seconds, applied to completed-job artifact reads
}

// S3Config contains object storage connection details
type S3Config struct {
	AccessKey    string `json:"access_key"`
	SecretKey    string `json:"secret_key"`
	Bucket       string `json:"bucket"`
	Region       string `json:"region"`
	SourcePrefix string `json:"source_prefix"` // where input PDFs live
	OutputPrefix string `json:"output_prefix"` // where parent documents and manifests are written
}

// MongoDBConfig contains MongoDB connection details
type MongoDBConfig struct {
	URI      string `json:"uri"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       string `json:"db"`
}

// RabbitMQConfig contains messaging connection details
type RabbitMQConfig struct {
	Host          string `json:"host"`
	Port          int    `json:"port"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	VHost         string `json:"vhost"`
	Exchange      string `json:"exchange"`
	PrefetchCount int    `json:"prefetch_count"`
}

type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
}

// IngestConfig tunes the batch orchestration engine
type IngestConfig struct {
	BatchSize            int `json:"batch_size"`
	MaxConcurrentUploads int `json:"max_concurrent_uploads"`
	MaxConcurrentPolls   int `json:"max_concurrent_polls"`
	PollIntervalMS       int `json:"poll_interval_ms"`
	MaxPolls             int `json:"max_polls"`
}

// LoggingConfig contains logging-related configurations
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age,omitempty"`
}

// LoadConfig reads configuration from the specified file path
func LoadConfig(filePath string) (*Config, error) {
	configData, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(configData, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// The API key may come from the environment instead of the config file
	if key := os.Getenv("STRUCTURER_API_KEY"); key != "" {
		config.Structurer.APIKey = key
	}

	config.Ingest.ApplyDefaults()

	return &config, nil
}

// ApplyDefaults fills unset ingest tunables with their defaults
func (c *IngestConfig) ApplyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.MaxConcurrentUploads <= 0 {
		c.MaxConcurrentUploads = 5
	}
	if c.MaxConcurrentPolls <= 0 {
		c.MaxConcurrentPolls = 10
	}
	if c.PollIntervalMS <= 0 {
		c.PollIntervalMS = 5000
	}
	if c.MaxPolls <= 0 {
		c.MaxPolls = 60
	}
}

// Validate checks the values required before any batch can start
func (c *Config) Validate() error {
	if c.Structurer.APIKey == "" {
		return fmt.Errorf("structurer api key is missing: set structurer.api_key or STRUCTURER_API_KEY")
	}
	if c.Structurer.BaseURL == "" {
		return fmt.Errorf("structurer base_url is missing")
	}
	return nil
}
