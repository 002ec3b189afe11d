// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the ClouSec service.
type Config struct {
	// Findings store
	StoreURI   string
	Database   string
	ArangoUser string
	ArangoPass string
	Port       string
	LogLevel   string
	PolicyFile string
	AWSRegion  string

	// Scanning
	AllowedRegions  []string
	ScanInterval    time.Duration
	ScanWorkers     int
	ResourceTimeout time.Duration

	// Event dispatch
	EventQueueSize int
	EventWorkers   int
	RedisURL       string
	DebounceWindow time.Duration

	// Event transports
	KafkaBrokers   []string
	KafkaTopic     string
	KafkaAPIKey    string
	KafkaAPISecret string
	NatsURL        string
	NatsSubject    string

	parseErrs []error
}

var envPaths = []string{".env", "/app/.env"}

// Load reads an optional .env file, then the environment, and validates the result.
func Load() (*Config, error) {
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (*Config, error) {
	c := &Config{
		StoreURI:   getEnvOrDefault("FINDINGS_STORE_URI", getEnvOrDefault("MONGO_URI", "memory://")),
		Database:   getEnvOrDefault("FINDINGS_DATABASE", "clousec_prod"),
		ArangoUser: getEnvOrDefault("ARANGO_USER", "root"),
		ArangoPass: os.Getenv("ARANGO_PASS"),
		Port:       getEnvOrDefault("MS_PORT", "5000"),
		LogLevel:   getEnvOrDefault("LOG_LEVEL", "info"),
		PolicyFile: os.Getenv("SEVERITY_POLICY_FILE"),
		AWSRegion:  os.Getenv("AWS_REGION"),

		KafkaTopic:     getEnvOrDefault("KAFKA_TOPIC", "cloud-events"),
		KafkaAPIKey:    os.Getenv("KAFKA_API_KEY"),
		KafkaAPISecret: os.Getenv("KAFKA_API_SECRET"),
		NatsURL:        os.Getenv("NATS_URL"),
		NatsSubject:    getEnvOrDefault("NATS_SUBJECT", "clousec.events"),
		RedisURL:       os.Getenv("REDIS_URL"),
	}

	c.AllowedRegions = splitList(os.Getenv("ALLOWED_REGIONS"))
	c.KafkaBrokers = splitList(os.Getenv("KAFKA_BROKERS"))

	c.ScanInterval = c.duration("SCAN_INTERVAL", 15*time.Minute)
	c.ResourceTimeout = c.duration("SCAN_RESOURCE_TIMEOUT", 30*time.Second)
	c.DebounceWindow = c.duration("EVENT_DEBOUNCE_WINDOW", 30*time.Second)
	c.ScanWorkers = c.integer("SCAN_WORKERS", 8)
	c.EventQueueSize = c.integer("EVENT_QUEUE_SIZE", 256)
	c.EventWorkers = c.integer("EVENT_WORKERS", 4)

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	errs := append([]error(nil), c.parseErrs...)

	if c.Port == "" {
		errs = append(errs, errors.New("MS_PORT is required"))
	}
	if c.ScanInterval < 0 {
		errs = append(errs, errors.New("SCAN_INTERVAL must not be negative"))
	}
	if c.ResourceTimeout <= 0 {
		errs = append(errs, errors.New("SCAN_RESOURCE_TIMEOUT must be positive"))
	}
	if c.ScanWorkers < 1 {
		errs = append(errs, errors.New("SCAN_WORKERS must be at least 1"))
	}
	if c.EventQueueSize < 1 {
		errs = append(errs, errors.New("EVENT_QUEUE_SIZE must be at least 1"))
	}
	if c.EventWorkers < 1 {
		errs = append(errs, errors.New("EVENT_WORKERS must be at least 1"))
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		errs = append(errs, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set"))
	}

	return errors.Join(errs...)
}

// KafkaEnabled reports whether Kafka ingestion is configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// NatsEnabled reports whether NATS ingestion is configured.
func (c *Config) NatsEnabled() bool {
	return c.NatsURL != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (c *Config) duration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if value == "0" {
		return 0
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		c.parseErrs = append(c.parseErrs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return d
}

func (c *Config) integer(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		c.parseErrs = append(c.parseErrs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return n
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
