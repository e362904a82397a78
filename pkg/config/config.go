package config

import (
	"strings"
	"time"

	"github.com/ajitpratap0/forcebridge/pkg/errors"
)

// Node kinds accepted in BaseConfig.Type.
const (
	KindExtract  = "salesforce_extract"
	KindLoad     = "salesforce_load"
	KindMetadata = "salesforce_metadata"
)

// DefaultAPIVersion is the REST API version used when none is configured.
const DefaultAPIVersion = "59.0"

// BaseConfig is the single configuration structure every node uses.
type BaseConfig struct {
	// Name identifies the run in logs and metrics
	Name string `yaml:"name" json:"name" mapstructure:"name"`
	// Type selects the node kind (salesforce_extract, salesforce_load, salesforce_metadata)
	Type string `yaml:"type" json:"type" mapstructure:"type"`
	// Version indicates the configuration version
	Version string `yaml:"version" json:"version" mapstructure:"version"`

	Credentials   CredentialsConfig   `yaml:"credentials" json:"credentials" mapstructure:"credentials"`
	Salesforce    SalesforceConfig    `yaml:"salesforce" json:"salesforce" mapstructure:"salesforce"`
	Timeouts      TimeoutConfig       `yaml:"timeouts" json:"timeouts" mapstructure:"timeouts"`
	Reliability   ReliabilityConfig   `yaml:"reliability" json:"reliability" mapstructure:"reliability"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability" mapstructure:"observability"`
	Output        OutputConfig        `yaml:"output" json:"output" mapstructure:"output"`
}

// CredentialsConfig holds the login tuple. Values are only ever read for the
// duration of one run and are never written back to disk by forcebridge.
type CredentialsConfig struct {
	Username      string `yaml:"username" json:"username" mapstructure:"username"`
	Password      string `yaml:"password" json:"-" mapstructure:"password"`
	SecurityToken string `yaml:"security_token" json:"-" mapstructure:"security_token"`
	// Domain is "login", "test", a My Domain prefix, or a full URL
	Domain string `yaml:"domain" json:"domain" mapstructure:"domain"`
	// ClientID and ClientSecret switch login to the OAuth2 password flow
	ClientID     string `yaml:"client_id" json:"client_id" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret" json:"-" mapstructure:"client_secret"`
}

// SalesforceConfig holds the node parameters.
type SalesforceConfig struct {
	APIVersion string `yaml:"api_version" json:"api_version" mapstructure:"api_version"`
	// Object is the sObject name (extract without query, and load)
	Object string `yaml:"object" json:"object" mapstructure:"object"`
	// Query is a custom SOQL query; when non-empty it overrides Object
	Query string `yaml:"query" json:"query" mapstructure:"query"`
	// Fields restricts the synthesized SELECT list
	Fields []string `yaml:"fields" json:"fields" mapstructure:"fields"`
	// IncludeDeleted runs the query through queryAll
	IncludeDeleted bool `yaml:"include_deleted" json:"include_deleted" mapstructure:"include_deleted"`
	// Operation is insert, update or delete (load only)
	Operation string `yaml:"operation" json:"operation" mapstructure:"operation"`
	// IDField names the record identifier column (load only)
	IDField string `yaml:"id_field" json:"id_field" mapstructure:"id_field"`
}

// TimeoutConfig contains all timeout-related settings.
type TimeoutConfig struct {
	// Request timeout for individual API calls
	Request time.Duration `yaml:"request" json:"request" mapstructure:"request"`
	// Connection timeout for establishing connections
	Connection time.Duration `yaml:"connection" json:"connection" mapstructure:"connection"`
	// Run bounds a whole node invocation (0 = unbounded)
	Run time.Duration `yaml:"run" json:"run" mapstructure:"run"`
}

// ReliabilityConfig contains reliability and error handling settings.
type ReliabilityConfig struct {
	// RetryAttempts bounds attempts for read-only calls (1 = no retry)
	RetryAttempts int `yaml:"retry_attempts" json:"retry_attempts" mapstructure:"retry_attempts"`
	// RetryDelay is the initial delay between retries
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay" mapstructure:"retry_delay"`
	// MaxRetryDelay caps the maximum retry delay
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" json:"max_retry_delay" mapstructure:"max_retry_delay"`
	// CircuitBreaker enables circuit breaker pattern
	CircuitBreaker bool `yaml:"circuit_breaker" json:"circuit_breaker" mapstructure:"circuit_breaker"`
	// RateLimitPerSec limits API calls per second (0 = unlimited)
	RateLimitPerSec int `yaml:"rate_limit_per_sec" json:"rate_limit_per_sec" mapstructure:"rate_limit_per_sec"`
}

// ObservabilityConfig contains monitoring and observability settings.
type ObservabilityConfig struct {
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics" mapstructure:"enable_metrics"`
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing" mapstructure:"enable_tracing"`
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level" mapstructure:"log_level"`
	// LogFormat is json or console
	LogFormat string `yaml:"log_format" json:"log_format" mapstructure:"log_format"`
}

// OutputConfig controls how result tables are written.
type OutputConfig struct {
	// Format is csv or json
	Format string `yaml:"format" json:"format" mapstructure:"format"`
	// Compression is none, gzip, zstd, lz4, snappy or s2
	Compression string `yaml:"compression" json:"compression" mapstructure:"compression"`
	// Directory receives the output files
	Directory string `yaml:"directory" json:"directory" mapstructure:"directory"`
	// Expand adds a one-row-per-record table to extract output
	Expand bool `yaml:"expand" json:"expand" mapstructure:"expand"`
}

// NewBaseConfig creates a new BaseConfig with sensible defaults.
func NewBaseConfig(name, nodeType string) *BaseConfig {
	return &BaseConfig{
		Name:    name,
		Type:    nodeType,
		Version: "1.0.0",
		Credentials: CredentialsConfig{
			Domain: "login",
		},
		Salesforce: SalesforceConfig{
			APIVersion: DefaultAPIVersion,
			IDField:    "Id",
		},
		Timeouts: TimeoutConfig{
			Request:    2 * time.Minute,
			Connection: 10 * time.Second,
		},
		Reliability: ReliabilityConfig{
			RetryAttempts:   1,
			RetryDelay:      time.Second,
			MaxRetryDelay:   30 * time.Second,
			CircuitBreaker:  true,
			RateLimitPerSec: 0,
		},
		Observability: ObservabilityConfig{
			EnableMetrics: true,
			EnableTracing: false,
			LogLevel:      "info",
			LogFormat:     "json",
		},
		Output: OutputConfig{
			Format:      "csv",
			Compression: "none",
			Directory:   ".",
		},
	}
}

// Validate checks the fields every node needs plus the fields the node kind
// in Type needs.
func (bc *BaseConfig) Validate() error {
	if bc.Type == "" {
		return errors.New(errors.ErrorTypeConfig, "type is required")
	}
	if err := bc.Credentials.Validate(); err != nil {
		return err
	}
	if bc.Reliability.RetryAttempts < 0 {
		return errors.New(errors.ErrorTypeConfig, "retry_attempts cannot be negative")
	}
	if bc.Reliability.RateLimitPerSec < 0 {
		return errors.New(errors.ErrorTypeConfig, "rate_limit_per_sec cannot be negative")
	}

	switch bc.Type {
	case KindExtract:
		if strings.TrimSpace(bc.Salesforce.Query) == "" && strings.TrimSpace(bc.Salesforce.Object) == "" {
			return errors.New(errors.ErrorTypeConfig, "either query or object is required")
		}
	case KindLoad:
		if strings.TrimSpace(bc.Salesforce.Object) == "" {
			return errors.New(errors.ErrorTypeConfig, "object is required")
		}
		if strings.TrimSpace(bc.Salesforce.Operation) == "" {
			return errors.New(errors.ErrorTypeConfig, "operation is required")
		}
	case KindMetadata:
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown node type %q", bc.Type)
	}
	return nil
}

// Validate checks the login tuple.
func (c *CredentialsConfig) Validate() error {
	if c.Username == "" {
		return errors.New(errors.ErrorTypeConfig, "username is required")
	}
	if c.Password == "" {
		return errors.New(errors.ErrorTypeConfig, "password is required")
	}
	if (c.ClientID == "") != (c.ClientSecret == "") {
		return errors.New(errors.ErrorTypeConfig, "client_id and client_secret must be set together")
	}
	return nil
}

// UsesOAuth2 reports whether the OAuth2 password flow should be used.
func (c *CredentialsConfig) UsesOAuth2() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// APIVersionOrDefault returns the configured API version without a leading
// "v", or DefaultAPIVersion.
func (s *SalesforceConfig) APIVersionOrDefault() string {
	v := strings.TrimPrefix(strings.TrimSpace(s.APIVersion), "v")
	if v == "" {
		return DefaultAPIVersion
	}
	return v
}

// IDFieldOrDefault returns the identifier column name.
func (s *SalesforceConfig) IDFieldOrDefault() string {
	if s.IDField == "" {
		return "Id"
	}
	return s.IDField
}

// IsRateLimited returns true if rate limiting is enabled
func (r *ReliabilityConfig) IsRateLimited() bool {
	return r.RateLimitPerSec > 0
}
