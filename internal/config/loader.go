package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"lyftr/internal/constants"
)

// LoadConfig resolves configuration from defaults, an optional YAML file and
// the environment, in increasing order of precedence.
func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", constants.DefaultPort)
	viper.SetDefault("server.read_timeout_seconds", constants.DefaultReadTimeoutSeconds)
	viper.SetDefault("server.write_timeout_seconds", constants.DefaultWriteTimeoutSeconds)
	viper.SetDefault("server.rate_limit.enabled", false)
	viper.SetDefault("server.rate_limit.rps", 50.0)
	viper.SetDefault("server.rate_limit.burst", 100)
	viper.SetDefault("server.rate_limit.cleanup_interval", 300)
	viper.SetDefault("server.rate_limit.max_age", 600)

	viper.SetDefault("webhook.signature_header", constants.SignatureHeader)
	viper.SetDefault("webhook.max_body_bytes", constants.DefaultMaxBodyBytes)

	viper.SetDefault("logging.level", "INFO")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("circuit_breaker.enabled", false)
	viper.SetDefault("circuit_breaker.max_requests", 3)
	viper.SetDefault("circuit_breaker.interval", "60s")
	viper.SetDefault("circuit_breaker.timeout", "30s")
	viper.SetDefault("circuit_breaker.failure_ratio", 0.5)
	viper.SetDefault("circuit_breaker.min_requests", 5)

	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.service_name", constants.ServiceName)
	viper.SetDefault("tracing.sampler.type", "parentbased_always_on")
	viper.SetDefault("tracing.sampler.param", 1.0)
}

func bindEnvVariables() {
	// Bare names are the service's documented deployment contract.
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("webhook.secret", "WEBHOOK_SECRET")
	viper.BindEnv("logging.level", "LOG_LEVEL", "LOGGING_LEVEL")

	viper.BindEnv("webhook.signature_header", "WEBHOOK_SIGNATURE_HEADER")
	viper.BindEnv("webhook.max_body_bytes", "WEBHOOK_MAX_BODY_BYTES")

	viper.BindEnv("server.port", "SERVER_PORT", "PORT")
	viper.BindEnv("server.read_timeout_seconds", "SERVER_READ_TIMEOUT_SECONDS")
	viper.BindEnv("server.write_timeout_seconds", "SERVER_WRITE_TIMEOUT_SECONDS")
	viper.BindEnv("server.rate_limit.enabled", "SERVER_RATE_LIMIT_ENABLED")
	viper.BindEnv("server.rate_limit.rps", "SERVER_RATE_LIMIT_RPS")
	viper.BindEnv("server.rate_limit.burst", "SERVER_RATE_LIMIT_BURST")

	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("broker.type", "BROKER_TYPE")
	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.message_topic", "BROKER_KAFKA_MESSAGE_TOPIC")

	viper.BindEnv("circuit_breaker.enabled", "CIRCUIT_BREAKER_ENABLED")

	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
}

func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))

	return nil
}

// SQLitePath extracts the file path from a sqlite:/// database URL.
func SQLitePath(databaseURL string) (string, error) {
	if !strings.HasPrefix(databaseURL, constants.SQLiteURLPrefix) {
		return "", fmt.Errorf("invalid DATABASE_URL format: %s", databaseURL)
	}
	path := strings.TrimPrefix(databaseURL, constants.SQLiteURLPrefix)
	if path == "" {
		return "", fmt.Errorf("DATABASE_URL has no file path: %s", databaseURL)
	}
	return path, nil
}
