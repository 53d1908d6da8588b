package engine

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/germanamz/relnotes/pkg/confluence"
	"github.com/germanamz/relnotes/pkg/credential"
	"github.com/germanamz/relnotes/pkg/jira"
	"github.com/germanamz/relnotes/pkg/modeladapter"
	"github.com/germanamz/relnotes/pkg/output"
	"github.com/germanamz/relnotes/pkg/providers/openai"
)

// EnvPrefix prefixes environment overrides, e.g. RELNOTES_JIRA_URL.
const EnvPrefix = "RELNOTES"

// Config is the top-level engine configuration. It is immutable once passed
// to New.
type Config struct {
	Environment        string                     `mapstructure:"environment"`
	SSLVerify          bool                       `mapstructure:"ssl_verify"`
	MaxResults         int                        `mapstructure:"max_results"`
	Concurrency        int                        `mapstructure:"concurrency"`
	Timeout            time.Duration              `mapstructure:"timeout"`
	DiagnosticsTimeout time.Duration              `mapstructure:"diagnostics_timeout"`
	Provider           openai.Config              `mapstructure:"provider"`
	RateLimit          modeladapter.RateLimitOpts `mapstructure:"rate_limit"`
	Params             map[string]any             `mapstructure:"params"`
	ProfilesFile       string                     `mapstructure:"profiles_file"`
	PromptBudget       int                        `mapstructure:"prompt_budget"`
	Jira               jira.Config                `mapstructure:"jira"`
	WriteBack          WriteBackConfig            `mapstructure:"write_back"`
	Confluence         ConfluenceConfig           `mapstructure:"confluence"`
	Output             OutputConfig               `mapstructure:"output"`
	History            HistoryConfig              `mapstructure:"history"`
	Cache              CacheConfig                `mapstructure:"cache"`
	Credentials        CredentialsConfig          `mapstructure:"credentials"`
	Server             ServerConfig               `mapstructure:"server"`
}

// WriteBackConfig controls the comment and label added to enriched issues.
type WriteBackConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Label   string `mapstructure:"label"`
}

// ConfluenceConfig enables page publishing.
type ConfluenceConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	confluence.Config `mapstructure:",squash"`
}

// OutputConfig controls local report files.
type OutputConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Dir     string   `mapstructure:"dir"`
	Formats []string `mapstructure:"formats"`
}

// HistoryConfig locates the run history database.
type HistoryConfig struct {
	Path string `mapstructure:"path"`
}

// CacheConfig locates the analysis cache. An empty path disables caching.
type CacheConfig struct {
	Path string        `mapstructure:"path"`
	TTL  time.Duration `mapstructure:"ttl"`
}

// CredentialsConfig enables reading missing API keys from the OS keyring.
type CredentialsConfig struct {
	Keyring bool   `mapstructure:"keyring"`
	Dir     string `mapstructure:"dir"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string `mapstructure:"addr"`
	APIKey       string `mapstructure:"api_key"` //nolint:gosec // configuration field, not a hardcoded secret
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"`
}

// envBindings maps config keys to the environment variables the service has
// always read, in addition to the RELNOTES_ prefixed form.
var envBindings = map[string][]string{
	"environment":          {"ENVIRONMENT"},
	"ssl_verify":           {"SSL_VERIFY"},
	"max_results":          {"MAX_RESULTS"},
	"provider.api_key":     {"AZURE_OPENAI_KEY"},
	"provider.endpoint":    {"AZURE_OPENAI_ENDPOINT"},
	"provider.deployment":  {"AZURE_OPENAI_GPT_DEPLOYMENT"},
	"provider.model":       {"AZURE_OPENAI_MODEL"},
	"provider.api_version": {"AZURE_OPENAI_CHAT_COMPLETIONS_API_VERSION"},
	"jira.url":             {"ATLASSIAN_URL"},
	"jira.username":        {"ATLASSIAN_USERNAME"},
	"jira.api_key":         {"ATLASSIAN_API_KEY"},
	"output.enabled":       {"CREATE_LOCAL_FILES"},
	"confluence.enabled":   {"CREATE_CONFLUENCE_PAGES"},
	"confluence.url":       {"CONFLUENCE_URL"},
	"confluence.space":     {"CONFLUENCE_SPACE", "CONFLUENCE_SPACE_KEY"},
	"confluence.parent_id": {"CONFLUENCE_PARENT_ID"},
	"server.api_key":       {"FUNCTIONS_KEY"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("ssl_verify", true)
	v.SetDefault("max_results", 2)
	v.SetDefault("concurrency", 4)
	v.SetDefault("timeout", 300*time.Second)
	v.SetDefault("diagnostics_timeout", 60*time.Second)
	v.SetDefault("provider.kind", string(openai.KindAzure))
	v.SetDefault("provider.api_version", "2024-12-01-preview")
	v.SetDefault("provider.timeout", 10*time.Minute)
	v.SetDefault("prompt_budget", 12000)
	v.SetDefault("write_back.enabled", true)
	v.SetDefault("write_back.label", "ai-enriched")
	v.SetDefault("confluence.enabled", false)
	v.SetDefault("output.enabled", true)
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.formats", []string{"json"})
	v.SetDefault("history.path", "relnotes.db")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.max_body_bytes", 1<<20)
}

// DefaultParams are the completion parameters used when none are configured.
func DefaultParams() map[string]any {
	return map[string]any{
		modeladapter.ParamTemperature:    0.2,
		modeladapter.ParamMaxTokens:      1000,
		modeladapter.ParamResponseFormat: "json_object",
	}
}

// LoadConfig builds a Config from defaults, the optional YAML file at path
// and the environment. ${VAR} references in the file are expanded before
// parsing, so secrets can stay in the environment (or a .env file).
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range envBindings {
		args := append([]string{key, EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(args...); err != nil {
			return Config{}, fmt.Errorf("engine: config: bind %s: %w", key, err)
		}
	}

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
		if err != nil {
			return Config{}, fmt.Errorf("engine: load config: %w", err)
		}

		if err := v.ReadConfig(bytes.NewReader([]byte(os.ExpandEnv(string(data))))); err != nil {
			return Config{}, fmt.Errorf("engine: parse config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("engine: parse config: %w", err)
	}

	if len(cfg.Params) == 0 {
		cfg.Params = DefaultParams()
	}

	cfg.applyShared()

	return cfg, nil
}

// applyShared propagates settings that apply to every outbound client.
// Confluence reuses the Atlassian account unless configured otherwise.
func (c *Config) applyShared() {
	c.Provider.SSLVerify = c.SSLVerify
	c.Jira.SSLVerify = c.SSLVerify
	c.Confluence.SSLVerify = c.SSLVerify

	if c.Confluence.URL == "" {
		c.Confluence.URL = c.Jira.URL
	}

	if c.Confluence.Username == "" {
		c.Confluence.Username = c.Jira.Username
	}

	if c.Confluence.APIKey == "" {
		c.Confluence.APIKey = c.Jira.APIKey
	}
}

// FillSecrets reads empty API keys from the keyring.
func (c *Config) FillSecrets(s *credential.Store) error {
	err := s.Fill(map[string]*string{
		credential.AzureOpenAIKey:  &c.Provider.APIKey,
		credential.AtlassianAPIKey: &c.Jira.APIKey,
	})
	if err != nil {
		return fmt.Errorf("engine: config: %w", err)
	}

	c.applyShared()

	return nil
}

// Validate reports every missing or invalid setting in one
// *modeladapter.ConfigurationError.
func (c Config) Validate() error {
	var problems []string

	need := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	need(c.Provider.APIKey != "", "provider.api_key (AZURE_OPENAI_KEY) is required")
	need(c.Provider.APIVersion != "", "provider.api_version is required")

	if c.Provider.Kind == openai.KindAzure || c.Provider.Kind == "" {
		need(c.Provider.Endpoint != "", "provider.endpoint (AZURE_OPENAI_ENDPOINT) is required")
		need(c.Provider.Deployment != "", "provider.deployment (AZURE_OPENAI_GPT_DEPLOYMENT) is required")
	}

	need(c.Jira.URL != "", "jira.url (ATLASSIAN_URL) is required")
	need(c.Jira.Username != "", "jira.username (ATLASSIAN_USERNAME) is required")
	need(c.Jira.APIKey != "", "jira.api_key (ATLASSIAN_API_KEY) is required")
	need(c.MaxResults >= 1 && c.MaxResults <= maxResultsLimit, fmt.Sprintf("max_results must be between 1 and %d", maxResultsLimit))
	need(c.Concurrency >= 1, "concurrency must be at least 1")

	if _, err := output.ParseFormats(c.Output.Formats); err != nil {
		problems = append(problems, err.Error())
	}

	if c.Confluence.Enabled {
		if err := c.Confluence.Validate(); err != nil {
			problems = append(problems, err.Error())
		}
	}

	if len(problems) == 0 {
		return nil
	}

	return &modeladapter.ConfigurationError{
		Model:  c.Provider.Model,
		Reason: "invalid configuration",
		Err:    errors.New(strings.Join(problems, "; ")),
	}
}

// ModelID returns the model id used for profile lookup: the configured model,
// or the deployment name when none is set.
func (c Config) ModelID() string {
	if m := strings.TrimSpace(c.Provider.Model); m != "" {
		return m
	}

	return c.Provider.Deployment
}

// Redacted returns a copy safe to log or return in diagnostics.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}

		return "***"
	}

	c.Provider.APIKey = mask(c.Provider.APIKey)
	c.Jira.APIKey = mask(c.Jira.APIKey)
	c.Confluence.APIKey = mask(c.Confluence.APIKey)
	c.Server.APIKey = mask(c.Server.APIKey)

	return c
}
