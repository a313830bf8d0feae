// Package config holds the explicit service configuration. It is loaded
// once by the entrypoint and passed into constructors; nothing in the repo
// reads the environment at import time.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written as "30s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Sessions SessionsConfig `yaml:"sessions"`
	LLM      LLMConfig      `yaml:"llm"`
}

type ServiceConfig struct {
	Name     string `yaml:"name"`
	LogJSON  bool   `yaml:"log_json"`
	LogLevel string `yaml:"log_level"`
}

type HTTPConfig struct {
	Address        string   `yaml:"address"`
	ReadTimeout    Duration `yaml:"read_timeout"`
	WriteTimeout   Duration `yaml:"write_timeout"`
	IdleTimeout    Duration `yaml:"idle_timeout"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	DSN             string   `yaml:"dsn"`
	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxIdleTime Duration `yaml:"conn_max_idle_time"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
}

// SessionsConfig selects where run snapshots are kept. Backend is one of
// "sqlite" or "memory"; Path is the sqlite database file.
type SessionsConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// LLMConfig configures the chat model behind the translator and renderer,
// plus the instruction template files.
type LLMConfig struct {
	Provider    string   `yaml:"provider"`
	BaseURL     string   `yaml:"base_url"`
	APIKey      string   `yaml:"api_key"`
	Model       string   `yaml:"model"`
	Temperature *float32 `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
	Timeout     Duration `yaml:"timeout"`

	// SQLPromptPath and AnswerPromptPath point at the translator and
	// renderer instruction templates. SchemaPath points at a plain-text
	// description of the database structure appended to the translator
	// instructions.
	SQLPromptPath    string `yaml:"sql_prompt_path"`
	AnswerPromptPath string `yaml:"answer_prompt_path"`
	SchemaPath       string `yaml:"schema_path"`
}

// Default returns the configuration used when a field is not set.
func Default() Config {
	return Config{
		Service: ServiceConfig{
			Name:     "sqlchat",
			LogLevel: "info",
		},
		HTTP: HTTPConfig{
			Address:      ":8000",
			ReadTimeout:  Duration(10 * time.Second),
			WriteTimeout: Duration(120 * time.Second),
			IdleTimeout:  Duration(60 * time.Second),
		},
		Sessions: SessionsConfig{
			Backend: "sqlite",
			Path:    "sessions.db",
		},
	}
}

// Load reads a YAML config file, applies defaults and validates the result.
// Environment references like ${OPENAI_API_KEY} are expanded, so secrets
// stay out of the file itself.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	data = []byte(os.ExpandEnv(string(data)))
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks for configuration mistakes that would only surface later
// as confusing runtime failures.
func (c Config) Validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("service name required")
	}
	switch c.Sessions.Backend {
	case "sqlite":
		if c.Sessions.Path == "" {
			return fmt.Errorf("sessions path required for sqlite backend")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown sessions backend %q", c.Sessions.Backend)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn required")
	}
	if c.LLM.Provider == "" {
		return fmt.Errorf("llm provider required")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm model required")
	}
	if c.LLM.SQLPromptPath == "" || c.LLM.AnswerPromptPath == "" {
		return fmt.Errorf("llm prompt paths required")
	}
	return nil
}
