package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the service reads from the environment.
type Config struct {
	Port     int
	LogLevel string
	Env      string

	// StoreBackend selects the order registry implementation:
	// "postgres" or "memory". The memory backend boots with the demo
	// dataset and exists for local development and tests.
	StoreBackend string

	// StrictTransitions enforces the order and payment lifecycle tables.
	StrictTransitions bool

	DB       DBConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Notifier NotifierConfig
	Rate     RateConfig
}

// DBConfig holds the Postgres connection settings.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// KafkaConfig holds broker addresses and the topics the outbox publishes to.
type KafkaConfig struct {
	Brokers       []string
	ConsumerGroup string
	Enabled       bool
}

// AuthConfig holds the JWT settings used to resolve the acting user.
type AuthConfig struct {
	JWTSecret string
	// SystemActor identifies automated changes when no token is present.
	SystemActorID   string
	SystemActorName string
}

// NotifierConfig points at the customer notification gateway.
type NotifierConfig struct {
	BaseURL string
	Timeout time.Duration
}

// RateConfig tunes the HTTP rate limiter.
type RateConfig struct {
	GlobalCapacity    float64
	GlobalRefillRate  float64
	IPCapacity        float64
	IPRefillRate      float64
	TrustForwardedFor bool
}

// getEnv retrieves the value of an environment variable or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}

	return defaultValue
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}

	return parsed, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return parsed, nil
}

// Load reads the configuration from environment variables and returns a Config struct.
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	strict, err := getEnvBool("STRICT_TRANSITIONS", true)
	if err != nil {
		return nil, err
	}

	kafkaEnabled, err := getEnvBool("KAFKA_ENABLED", true)
	if err != nil {
		return nil, err
	}

	trustXFF, err := getEnvBool("RATE_TRUST_FORWARDED_FOR", false)
	if err != nil {
		return nil, err
	}

	notifierTimeout, err := time.ParseDuration(getEnv("NOTIFIER_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid NOTIFIER_TIMEOUT: %w", err)
	}

	globalCap, err := getEnvFloat("RATE_GLOBAL_CAPACITY", 200)
	if err != nil {
		return nil, err
	}
	globalRate, err := getEnvFloat("RATE_GLOBAL_REFILL", 100)
	if err != nil {
		return nil, err
	}
	ipCap, err := getEnvFloat("RATE_IP_CAPACITY", 30)
	if err != nil {
		return nil, err
	}
	ipRate, err := getEnvFloat("RATE_IP_REFILL", 10)
	if err != nil {
		return nil, err
	}

	backend := getEnv("STORE_BACKEND", "postgres")
	if backend != "postgres" && backend != "memory" {
		return nil, fmt.Errorf("invalid STORE_BACKEND %q", backend)
	}

	return &Config{
		Port:              port,
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		Env:               getEnv("APP_ENV", "development"),
		StoreBackend:      backend,
		StrictTransitions: strict,
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "bolo_orders"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Kafka: KafkaConfig{
			Brokers:       strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "order-service"),
			Enabled:       kafkaEnabled,
		},
		Auth: AuthConfig{
			JWTSecret:       getEnv("JWT_SECRET", "dev-secret-change-me"),
			SystemActorID:   getEnv("SYSTEM_ACTOR_ID", "SYSTEM"),
			SystemActorName: getEnv("SYSTEM_ACTOR_NAME", "Système"),
		},
		Notifier: NotifierConfig{
			BaseURL: getEnv("NOTIFIER_URL", "http://localhost:8090"),
			Timeout: notifierTimeout,
		},
		Rate: RateConfig{
			GlobalCapacity:    globalCap,
			GlobalRefillRate:  globalRate,
			IPCapacity:        ipCap,
			IPRefillRate:      ipRate,
			TrustForwardedFor: trustXFF,
		},
	}, nil
}

// GetDBConnString returns the database connection string.
func (c *Config) GetDBConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode)
}
