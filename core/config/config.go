package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Providers accepted in AI.Provider.
const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
)

// Config is the complete devchat configuration. Values come from Default,
// then an optional YAML file, then the environment.
type Config struct {
	AI          AI          `yaml:"ai"`
	Sessions    Sessions    `yaml:"sessions"`
	Files       Files       `yaml:"files"`
	Attachments Attachments `yaml:"attachments"`
	Log         Log         `yaml:"log"`
}

// AI selects and configures the model provider.
type AI struct {
	Provider    string  `yaml:"provider" env:"AI_PROVIDER"`
	BaseURL     string  `yaml:"base_url" env:"AI_BASE_URL"` // OpenAI-compatible providers only
	APIKey      string  `yaml:"api_key" env:"AI_API_KEY"`
	Model       string  `yaml:"model" env:"AI_MODEL"`
	Temperature float64 `yaml:"temperature" env:"AI_TEMPERATURE"`
}

// Sessions configures eviction in the session registry. Zero disables.
type Sessions struct {
	MaxSessions int           `yaml:"max_sessions" env:"DEVCHAT_MAX_SESSIONS"`
	IdleTTL     time.Duration `yaml:"idle_ttl" env:"DEVCHAT_SESSION_TTL"`
}

// Files selects where the project tree comes from. ServiceURL wins when
// both are set.
type Files struct {
	ProjectRoot string `yaml:"project_root" env:"DEVCHAT_PROJECT_ROOT"`
	ServiceURL  string `yaml:"service_url" env:"DEVCHAT_FILE_SERVICE_URL"`
}

type Attachments struct {
	HTMLAsMarkdown bool `yaml:"html_as_markdown" env:"DEVCHAT_HTML_DOCS_AS_MARKDOWN"`
}

type Log struct {
	Format string `yaml:"format" env:"DEVCHAT_LOG_FORMAT"`
	Level  string `yaml:"level" env:"DEVCHAT_LOG_LEVEL"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		AI: AI{
			Provider:    ProviderOpenAI,
			Temperature: 0.7,
		},
		Files: Files{
			ProjectRoot: ".",
		},
		Log: Log{
			Format: "compact",
			Level:  "info",
		},
	}
}

// Load reads path (skipped when empty), applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = ProviderOpenAI
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every problem at once, joined and wrapped in ErrInvalid.
func (c *Config) Validate() error {
	var problems []error

	switch c.AI.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderOpenRouter, ProviderGemini:
	default:
		problems = append(problems, fmt.Errorf("ai.provider %q is not one of openai, anthropic, gemini, openrouter", c.AI.Provider))
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 1 {
		problems = append(problems, fmt.Errorf("ai.temperature %v is outside [0, 1]", c.AI.Temperature))
	}
	if strings.TrimSpace(c.AI.APIKey) == "" {
		problems = append(problems, errors.New("ai.api_key is required"))
	}
	if c.Sessions.MaxSessions < 0 {
		problems = append(problems, fmt.Errorf("sessions.max_sessions %d is negative", c.Sessions.MaxSessions))
	}
	if c.Sessions.IdleTTL < 0 {
		problems = append(problems, fmt.Errorf("sessions.idle_ttl %v is negative", c.Sessions.IdleTTL))
	}
	if c.Files.ProjectRoot == "" && c.Files.ServiceURL == "" {
		problems = append(problems, errors.New("one of files.project_root or files.service_url is required"))
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(problems...))
}
