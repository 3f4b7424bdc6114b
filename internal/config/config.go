package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all muza configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Graph    GraphConfig    `yaml:"graph"`
	LLM      LLMConfig      `yaml:"llm"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Bind        string   `yaml:"bind" validate:"required"`
	Port        int      `yaml:"port" validate:"min=1,max=65535"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"oneof=sqlite postgres"`
	Path   string `yaml:"path"` // sqlite; resolved at runtime via store.DefaultDBPath() when empty
	URL    string `yaml:"url" validate:"required_if=Driver postgres"`
}

type GraphConfig struct {
	// StorageKey is versioned. Bumping it orphans the old graph; there is no migration.
	StorageKey      string        `yaml:"storage_key" validate:"required"`
	EvolveInterval  time.Duration `yaml:"evolve_interval" validate:"gt=0"`
	ReflectInterval time.Duration `yaml:"reflect_interval" validate:"gte=0"` // 0 disables reflection
	FrameInterval   time.Duration `yaml:"frame_interval" validate:"gt=0"`    // websocket tick rate
	Seed            int64         `yaml:"seed"`                              // 0 seeds from the clock
}

type LLMConfig struct {
	Provider     string        `yaml:"provider" validate:"omitempty,oneof=local gemini anthropic ollama"`
	Model        string        `yaml:"model"`
	Temperature  float64       `yaml:"temperature" validate:"gte=0,lte=2"`
	Timeout      time.Duration `yaml:"timeout" validate:"gt=0"`
	OllamaURL    string        `yaml:"ollama_url" validate:"omitempty,url"`
	GeminiKey    string        `yaml:"gemini_key"`
	AnthropicKey string        `yaml:"anthropic_key"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37778,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
		},
		Graph: GraphConfig{
			StorageKey:      "muza_logos_v34_final",
			EvolveInterval:  60 * time.Second,
			ReflectInterval: 60 * time.Second,
			FrameInterval:   50 * time.Millisecond,
		},
		LLM: LLMConfig{
			Provider:    "local",
			Temperature: 0.7,
			Timeout:     60 * time.Second,
			OllamaURL:   "http://localhost:11434",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, an
// optional .env file and finally the process environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	// .env is a development convenience; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Bind, "MUZA_BIND")
	setString(&c.Database.Driver, "MUZA_DB_DRIVER")
	setString(&c.Database.Path, "MUZA_DB_PATH")
	setString(&c.Database.URL, "MUZA_DB_URL")
	setString(&c.Graph.StorageKey, "MUZA_STORAGE_KEY")
	setString(&c.LLM.Model, "MUZA_LLM_MODEL")
	setString(&c.LLM.OllamaURL, "OLLAMA_URL")
	setString(&c.Log.Level, "MUZA_LOG_LEVEL")

	if v := os.Getenv("MUZA_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MUZA_PORT: %w", err)
		}
		c.Server.Port = port
	}

	// An API key in the environment selects its provider unless one was set explicitly.
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.GeminiKey = key
		if c.LLM.Provider == "" || c.LLM.Provider == "local" {
			c.LLM.Provider = "gemini"
		}
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.LLM.AnthropicKey = key
		if c.LLM.Provider == "" || c.LLM.Provider == "local" {
			c.LLM.Provider = "anthropic"
		}
	}
	setString(&c.LLM.Provider, "MUZA_LLM_PROVIDER")
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

var validate = validator.New()

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
