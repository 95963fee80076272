package llmgateway

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider labels in their fixed failover priority order.
const (
	ProviderAzure   = "azure"
	ProviderBedrock = "bedrock"
	ProviderVertex  = "vertex"
)

// ProviderOrder is the documented priority order used to build the registry.
var ProviderOrder = []string{ProviderAzure, ProviderBedrock, ProviderVertex}

// DefaultProviderLabel is used for model resolution when no provider is configured.
const DefaultProviderLabel = ProviderAzure

// Config is the immutable gateway configuration. Build it once and pass it by
// value to the constructors.
type Config struct {
	Defaults       Defaults                     `yaml:"defaults"`
	RateLimit      RateLimitConfig              `yaml:"rate_limit"`
	Budget         BudgetConfig                 `yaml:"budget"`
	Providers      ProvidersConfig              `yaml:"providers"`
	Aliases        map[string]map[string]string `yaml:"aliases"`
	CircuitBreaker CircuitBreakerConfig         `yaml:"circuit_breaker"`
}

// Defaults fills unset request fields and bounds each provider attempt.
type Defaults struct {
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
}

// RateLimitConfig sizes the per-principal token bucket.
type RateLimitConfig struct {
	Capacity int           `yaml:"capacity"`
	Window   time.Duration `yaml:"window"`
}

// BudgetConfig sizes the per-principal daily token budget.
type BudgetConfig struct {
	DailyTokens int64 `yaml:"daily_tokens"`
}

// ProvidersConfig holds per-provider credentials. A provider is enabled iff
// its required credentials are present.
type ProvidersConfig struct {
	Azure   AzureConfig   `yaml:"azure"`
	Bedrock BedrockConfig `yaml:"bedrock"`
	Vertex  VertexConfig  `yaml:"vertex"`
}

// AzureConfig configures Azure OpenAI.
type AzureConfig struct {
	APIKey     string `yaml:"api_key"`
	Endpoint   string `yaml:"endpoint"`
	APIVersion string `yaml:"api_version"`
}

// Configured reports whether the Azure credentials are present.
func (c AzureConfig) Configured() bool { return c.APIKey != "" && c.Endpoint != "" }

// BedrockConfig configures AWS Bedrock through its OpenAI-compatible endpoint.
type BedrockConfig struct {
	APIKey  string `yaml:"api_key"`
	Region  string `yaml:"region"`
	BaseURL string `yaml:"base_url"`
}

// Configured reports whether the Bedrock credentials are present.
func (c BedrockConfig) Configured() bool { return c.APIKey != "" }

// VertexConfig configures GCP Vertex AI.
type VertexConfig struct {
	ProjectID       string `yaml:"project_id"`
	Location        string `yaml:"location"`
	CredentialsFile string `yaml:"credentials_file"`
	BaseURL         string `yaml:"base_url"`
}

// Configured reports whether a Vertex project is set.
func (c VertexConfig) Configured() bool { return c.ProjectID != "" }

// Available returns the labels of providers with credentials, in ProviderOrder.
func (p ProvidersConfig) Available() []string {
	var names []string
	for _, name := range ProviderOrder {
		var ok bool
		switch name {
		case ProviderAzure:
			ok = p.Azure.Configured()
		case ProviderBedrock:
			ok = p.Bedrock.Configured()
		case ProviderVertex:
			ok = p.Vertex.Configured()
		}
		if ok {
			names = append(names, name)
		}
	}
	return names
}

// CircuitBreakerConfig configures the optional per-provider circuit breaker.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	OpenTimeout time.Duration `yaml:"open_timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// DefaultConfig returns a Config with the documented defaults.
func DefaultConfig() Config {
	return Config{
		Defaults: Defaults{
			Model:       "gpt-4",
			MaxTokens:   1000,
			Temperature: 0.7,
			Timeout:     30 * time.Second,
			RetryDelay:  time.Second,
		},
		RateLimit: RateLimitConfig{
			Capacity: 60,
			Window:   time.Minute,
		},
		Budget: BudgetConfig{
			DailyTokens: 100000,
		},
		Providers: ProvidersConfig{
			Azure:   AzureConfig{APIVersion: "2024-02-15-preview"},
			Bedrock: BedrockConfig{Region: "us-east-1"},
			Vertex:  VertexConfig{Location: "us-central1"},
		},
		CircuitBreaker: CircuitBreakerConfig{
			MaxFailures: 5,
			OpenTimeout: 30 * time.Second,
			Interval:    5 * time.Minute,
		},
	}
}

// LoadConfig reads and parses a YAML config file on top of DefaultConfig.
// Environment variables in the format ${VAR} are expanded before parsing.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("llmgateway: read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("llmgateway: parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ConfigFromEnv builds a Config from DefaultConfig overridden by environment
// variables. Timeouts and delays are given in (fractional) seconds.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	envString("AZURE_OPENAI_API_KEY", &cfg.Providers.Azure.APIKey)
	envString("AZURE_OPENAI_ENDPOINT", &cfg.Providers.Azure.Endpoint)
	envString("AZURE_OPENAI_API_VERSION", &cfg.Providers.Azure.APIVersion)
	envString("AWS_BEARER_TOKEN_BEDROCK", &cfg.Providers.Bedrock.APIKey)
	envString("AWS_REGION", &cfg.Providers.Bedrock.Region)
	envString("GCP_PROJECT_ID", &cfg.Providers.Vertex.ProjectID)
	envString("GCP_LOCATION", &cfg.Providers.Vertex.Location)
	envString("GCP_CREDENTIALS_PATH", &cfg.Providers.Vertex.CredentialsFile)
	envString("DEFAULT_LLM_MODEL", &cfg.Defaults.Model)

	var errs []error
	errs = append(errs,
		envInt("DEFAULT_MAX_TOKENS", &cfg.Defaults.MaxTokens),
		envFloat("DEFAULT_TEMPERATURE", &cfg.Defaults.Temperature),
		envSeconds("LLM_REQUEST_TIMEOUT", &cfg.Defaults.Timeout),
		envSeconds("LLM_RETRY_DELAY", &cfg.Defaults.RetryDelay),
		envInt("RATE_LIMIT_PER_MINUTE", &cfg.RateLimit.Capacity),
		envInt64("TOKEN_BUDGET_DAILY", &cfg.Budget.DailyTokens),
	)
	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("llmgateway: config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the config for required fields and consistency. An empty
// provider set is valid; it surfaces per request as ErrNoProvidersConfigured.
func (c Config) Validate() error {
	if c.Defaults.Model == "" {
		return fmt.Errorf("llmgateway: config: defaults.model is required")
	}
	if c.Defaults.MaxTokens <= 0 {
		return fmt.Errorf("llmgateway: config: defaults.max_tokens must be positive, got %d", c.Defaults.MaxTokens)
	}
	if c.Defaults.Temperature < 0 || c.Defaults.Temperature > 2 {
		return fmt.Errorf("llmgateway: config: defaults.temperature must be in [0, 2], got %g", c.Defaults.Temperature)
	}
	if c.Defaults.Timeout <= 0 {
		return fmt.Errorf("llmgateway: config: defaults.timeout must be positive")
	}
	if c.Defaults.RetryDelay < 0 {
		return fmt.Errorf("llmgateway: config: defaults.retry_delay must not be negative")
	}
	if c.RateLimit.Capacity <= 0 {
		return fmt.Errorf("llmgateway: config: rate_limit.capacity must be positive, got %d", c.RateLimit.Capacity)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("llmgateway: config: rate_limit.window must be positive")
	}
	if c.Budget.DailyTokens <= 0 {
		return fmt.Errorf("llmgateway: config: budget.daily_tokens must be positive, got %d", c.Budget.DailyTokens)
	}

	for provider, table := range c.Aliases {
		if provider == "" {
			return fmt.Errorf("llmgateway: config: aliases: provider label is required")
		}
		for alias, target := range table {
			if alias == "" || target == "" {
				return fmt.Errorf("llmgateway: config: aliases[%s]: empty alias or target", provider)
			}
		}
	}

	return nil
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envInt64(key string, dst *int64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envFloat(key string, dst *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func envSeconds(key string, dst *time.Duration) error {
	var secs float64
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	if err := envFloat(key, &secs); err != nil {
		return err
	}
	*dst = time.Duration(secs * float64(time.Second))
	return nil
}
