package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	domainconfig "mindboard/domain/config"
	"mindboard/pkg/utils"
)

// Store backends
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StoreDynamoDB = "dynamodb"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"serverAddress" validate:"required"`
	Environment   string `yaml:"environment" validate:"oneof=development staging production test"`

	// Remote board store
	StoreBackend  string `yaml:"storeBackend" validate:"oneof=memory sqlite dynamodb"`
	SQLitePath    string `yaml:"sqlitePath" validate:"required_if=StoreBackend sqlite"`
	AWSRegion     string `yaml:"awsRegion"`
	DynamoDBTable string `yaml:"dynamoDBTable" validate:"required_if=StoreBackend dynamodb"`
	IndexName     string `yaml:"indexName"` // GSI1 - board listing

	// Circuit breaker around the remote store
	BreakerMaxFailures uint32        `yaml:"breakerMaxFailures" validate:"min=1"`
	BreakerTimeout     time.Duration `yaml:"breakerTimeout"`
	StoreTimeout       time.Duration `yaml:"storeTimeout"`

	// Local cache mirror; an empty dir keeps the cache in memory
	CacheEnabled bool   `yaml:"cacheEnabled"`
	CacheDir     string `yaml:"cacheDir"`

	// Writer lease; an empty address disables it
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"-"`
	LockPrefix    string `yaml:"lockPrefix"`

	// Board events; an empty bus disables publishing
	EventBusName string `yaml:"eventBusName"`
	EventSource  string `yaml:"eventSource"`

	// AI collaborator
	OpenAIAPIKey  string `yaml:"-"`
	OpenAIBaseURL string `yaml:"openAIBaseURL" validate:"omitempty,url"`
	OpenAIModel   string `yaml:"openAIModel"`

	// Suggestion requests allowed per session per minute; 0 disables the limit
	SuggestRateLimit int `yaml:"suggestRateLimit" validate:"min=0"`

	// Lambda configuration
	IsLambda           bool   `yaml:"isLambda"`
	LambdaFunctionName string `yaml:"-"`

	// Logging
	LogLevel string `yaml:"logLevel" validate:"oneof=debug info warn error"`

	// Feature flags
	EnableMetrics bool     `yaml:"enableMetrics"`
	EnableTracing bool     `yaml:"enableTracing"`
	EnableCORS    bool     `yaml:"enableCORS"`
	CORSOrigins   []string `yaml:"corsOrigins"`

	// ConfigFile is the YAML overlay this configuration was read from
	ConfigFile string `yaml:"-"`

	// Engine tunables, hot-reloadable from the overlay's engine section
	Engine *domainconfig.DomainConfig `yaml:"engine"`
}

// LoadConfig loads configuration from the optional YAML file named by
// CONFIG_FILE, then applies environment variables on top
func LoadConfig() (*Config, error) {
	environment := getEnv("ENVIRONMENT", "development")
	cfg := defaults(environment)

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlay(path); err != nil {
			return nil, err
		}
		cfg.ConfigFile = path
	}
	cfg.applyEnv()

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load is an alias for LoadConfig for backwards compatibility
func Load() (*Config, error) {
	return LoadConfig()
}

func defaults(environment string) *Config {
	return &Config{
		ServerAddress:      ":8080",
		Environment:        environment,
		StoreBackend:       StoreMemory,
		SQLitePath:         "mindboard.db",
		AWSRegion:          "us-west-2",
		DynamoDBTable:      "mindboard",
		IndexName:          "BoardIndex",
		BreakerMaxFailures: 5,
		BreakerTimeout:     30 * time.Second,
		StoreTimeout:       10 * time.Second,
		CacheEnabled:       true,
		LockPrefix:         "mindboard:lease:",
		EventBusName:       "",
		EventSource:        "mindboard.boards",
		OpenAIModel:        "gpt-4o-mini",
		SuggestRateLimit:   10,
		LogLevel:           "info",
		EnableMetrics:      true,
		EnableCORS:         true,
		CORSOrigins:        []string{"*"},
		Engine:             domainconfig.LoadDomainConfig(environment),
	}
}

// overlay reads a YAML file over the current values. Keys missing from the
// file keep their defaults.
func (c *Config) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if c.Engine == nil {
		c.Engine = domainconfig.LoadDomainConfig(c.Environment)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.StoreBackend = getEnv("STORE_BACKEND", c.StoreBackend)
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.DynamoDBTable = getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", c.DynamoDBTable))
	c.IndexName = getEnv("INDEX_NAME", c.IndexName)
	c.BreakerMaxFailures = uint32(getEnvInt("BREAKER_MAX_FAILURES", int(c.BreakerMaxFailures)))
	c.BreakerTimeout = getEnvDuration("BREAKER_TIMEOUT", c.BreakerTimeout)
	c.StoreTimeout = getEnvDuration("STORE_TIMEOUT", c.StoreTimeout)
	c.CacheEnabled = getEnvBool("CACHE_ENABLED", c.CacheEnabled)
	c.CacheDir = getEnv("CACHE_DIR", c.CacheDir)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.LockPrefix = getEnv("LOCK_PREFIX", c.LockPrefix)
	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)
	c.EventSource = getEnv("EVENT_SOURCE", c.EventSource)
	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.OpenAIModel = getEnv("OPENAI_MODEL", c.OpenAIModel)
	c.SuggestRateLimit = getEnvInt("SUGGEST_RATE_LIMIT", c.SuggestRateLimit)
	c.IsLambda = getEnvBool("IS_LAMBDA", c.IsLambda)
	c.LambdaFunctionName = getEnv("AWS_LAMBDA_FUNCTION_NAME", c.LambdaFunctionName)
	c.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", c.LogLevel))
	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.EnableCORS = getEnvBool("ENABLE_CORS", c.EnableCORS)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.CORSOrigins = strings.Split(origins, ",")
	}
	if c.LambdaFunctionName != "" {
		c.IsLambda = true
	}
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}
	if c.Engine == nil {
		return fmt.Errorf("engine configuration is missing")
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("invalid engine configuration: %w", err)
	}
	if c.IsProduction() && c.StoreBackend == StoreMemory {
		return fmt.Errorf("STORE_BACKEND=memory is not allowed in production")
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable such as "30s"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
