// Package config loads and validates the service configuration from YAML.
// Environment variables referenced as ${VAR} or $VAR are expanded before
// parsing, so secrets stay out of the config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the callflow service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Telephony TelephonyConfig `yaml:"telephony"`
	Agent     AgentConfig     `yaml:"agent"`
	Session   SessionConfig   `yaml:"session"`
	Records   RecordsConfig   `yaml:"records"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures the HTTP ingress.
type ServerConfig struct {
	// Host to bind. Default: 0.0.0.0
	Host string `yaml:"host"`

	// Port to listen on. Default: 8080
	Port int `yaml:"port"`

	// ShutdownTimeout bounds graceful shutdown. Default: 10s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelephonyConfig configures the call automation provider.
type TelephonyConfig struct {
	// BaseURL of the call automation REST endpoint (required).
	BaseURL string `yaml:"base_url"`

	// Token authenticates against the provider (required).
	Token string `yaml:"token"`

	// CallbackURL is the public webhook URL the provider posts events to
	// (required).
	CallbackURL string `yaml:"callback_url"`

	// CallerID is the outbound caller phone number (required).
	CallerID string `yaml:"caller_id"`

	// Voice is the TTS voice name. Default: en-US-JennyNeural
	Voice string `yaml:"voice"`

	// FallbackVoice is tried when the primary voice fails.
	// Default: en-US-GuyNeural
	FallbackVoice string `yaml:"fallback_voice"`

	// Language for speech recognition. Default: en-US
	Language string `yaml:"language"`
}

// AgentConfig selects and configures the conversational agent.
type AgentConfig struct {
	// Provider is "openai" or "anthropic". Default: openai
	Provider string `yaml:"provider"`

	// APIKey for the selected provider (required).
	APIKey string `yaml:"api_key"`

	// Model overrides the provider default model.
	Model string `yaml:"model"`

	// SystemPrompt overrides the built-in call framing prompt.
	SystemPrompt string `yaml:"system_prompt"`
}

// SessionConfig tunes session lifecycle handling.
type SessionConfig struct {
	// TTL is how long an idle session lives before the reaper removes it.
	// Default: 30m
	TTL time.Duration `yaml:"ttl"`

	// GreetingDelay is the settle pause between session readiness and the
	// greeting. Default: 500ms
	GreetingDelay time.Duration `yaml:"greeting_delay"`
}

// RecordsConfig configures patient and outcome storage.
type RecordsConfig struct {
	// Path to the SQLite database file. Empty uses an in-memory database.
	Path string `yaml:"path"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level: debug, info, warn, error. Default: info
	Level string `yaml:"level"`

	// Format: json or text. Default: json
	Format string `yaml:"format"`
}

// Load reads, expands, parses, and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses config bytes after environment expansion.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Telephony.Voice == "" {
		c.Telephony.Voice = "en-US-JennyNeural"
	}
	if c.Telephony.FallbackVoice == "" {
		c.Telephony.FallbackVoice = "en-US-GuyNeural"
	}
	if c.Telephony.Language == "" {
		c.Telephony.Language = "en-US"
	}
	if c.Agent.Provider == "" {
		c.Agent.Provider = "openai"
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = 30 * time.Minute
	}
	if c.Session.GreetingDelay == 0 {
		c.Session.GreetingDelay = 500 * time.Millisecond
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Validate checks that required fields are present. Missing configuration
// is the one fatal error class; everything else degrades at runtime.
func (c *Config) Validate() error {
	var errs []error
	if c.Telephony.BaseURL == "" {
		errs = append(errs, errors.New("telephony.base_url is required"))
	}
	if c.Telephony.Token == "" {
		errs = append(errs, errors.New("telephony.token is required"))
	}
	if c.Telephony.CallbackURL == "" {
		errs = append(errs, errors.New("telephony.callback_url is required"))
	}
	if c.Telephony.CallerID == "" {
		errs = append(errs, errors.New("telephony.caller_id is required"))
	}
	if c.Agent.Provider != "openai" && c.Agent.Provider != "anthropic" {
		errs = append(errs, fmt.Errorf("agent.provider %q is not supported", c.Agent.Provider))
	}
	if c.Agent.APIKey == "" {
		errs = append(errs, errors.New("agent.api_key is required"))
	}
	if c.Session.TTL < 0 {
		errs = append(errs, errors.New("session.ttl must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Addr returns the host:port the server binds.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
