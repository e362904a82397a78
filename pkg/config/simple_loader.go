package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// FORCEBRIDGE_CREDENTIALS_USERNAME.
const EnvPrefix = "FORCEBRIDGE"

// Load loads a configuration from a YAML file
func Load(filePath string, config interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: File path is controlled by caller
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	content := substituteEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(content), config); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// Save saves a configuration to a YAML file. Secrets are blanked first.
func Save(filePath string, config *BaseConfig) error {
	redacted := *config
	redacted.Credentials.Password = ""
	redacted.Credentials.SecurityToken = ""
	redacted.Credentials.ClientSecret = ""

	data, err := yaml.Marshal(&redacted)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// NewViper returns a viper instance that knows every BaseConfig key, with
// defaults taken from defaults and FORCEBRIDGE_* environment overrides.
func NewViper(defaults *BaseConfig) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("name", defaults.Name)
	v.SetDefault("type", defaults.Type)
	v.SetDefault("version", defaults.Version)

	v.SetDefault("credentials.username", defaults.Credentials.Username)
	v.SetDefault("credentials.password", defaults.Credentials.Password)
	v.SetDefault("credentials.security_token", defaults.Credentials.SecurityToken)
	v.SetDefault("credentials.domain", defaults.Credentials.Domain)
	v.SetDefault("credentials.client_id", defaults.Credentials.ClientID)
	v.SetDefault("credentials.client_secret", defaults.Credentials.ClientSecret)

	v.SetDefault("salesforce.api_version", defaults.Salesforce.APIVersion)
	v.SetDefault("salesforce.object", defaults.Salesforce.Object)
	v.SetDefault("salesforce.query", defaults.Salesforce.Query)
	v.SetDefault("salesforce.fields", defaults.Salesforce.Fields)
	v.SetDefault("salesforce.include_deleted", defaults.Salesforce.IncludeDeleted)
	v.SetDefault("salesforce.operation", defaults.Salesforce.Operation)
	v.SetDefault("salesforce.id_field", defaults.Salesforce.IDField)

	v.SetDefault("timeouts.request", defaults.Timeouts.Request)
	v.SetDefault("timeouts.connection", defaults.Timeouts.Connection)
	v.SetDefault("timeouts.run", defaults.Timeouts.Run)

	v.SetDefault("reliability.retry_attempts", defaults.Reliability.RetryAttempts)
	v.SetDefault("reliability.retry_delay", defaults.Reliability.RetryDelay)
	v.SetDefault("reliability.max_retry_delay", defaults.Reliability.MaxRetryDelay)
	v.SetDefault("reliability.circuit_breaker", defaults.Reliability.CircuitBreaker)
	v.SetDefault("reliability.rate_limit_per_sec", defaults.Reliability.RateLimitPerSec)

	v.SetDefault("observability.enable_metrics", defaults.Observability.EnableMetrics)
	v.SetDefault("observability.enable_tracing", defaults.Observability.EnableTracing)
	v.SetDefault("observability.log_level", defaults.Observability.LogLevel)
	v.SetDefault("observability.log_format", defaults.Observability.LogFormat)

	v.SetDefault("output.format", defaults.Output.Format)
	v.SetDefault("output.compression", defaults.Output.Compression)
	v.SetDefault("output.directory", defaults.Output.Directory)
	v.SetDefault("output.expand", defaults.Output.Expand)

	return v
}

// LoadViper reads an optional YAML file into v and decodes the merged view
// (flags > env > file > defaults) into a BaseConfig.
func LoadViper(v *viper.Viper, filePath string) (*BaseConfig, error) {
	if filePath != "" {
		data, err := os.ReadFile(filePath) //nolint:gosec // G304: File path is controlled by caller
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		v.SetConfigType("yaml")
		if err := v.MergeConfig(strings.NewReader(substituteEnvVars(string(data)))); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	cfg := &BaseConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return cfg, nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	return os.Expand(content, func(name string) string {
		return os.Getenv(name)
	})
}
