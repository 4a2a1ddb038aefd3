// Package config handles reading and writing .codetrek/config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/codetrek/codetrek/internal/session"
)

// Config is the top-level structure for .codetrek/config.yaml.
type Config struct {
	Version int           `yaml:"version"`
	Backend BackendConfig `yaml:"backend" envPrefix:"BACKEND_"`
	Session SessionConfig `yaml:"session" envPrefix:"SESSION_"`
	Sandbox SandboxConfig `yaml:"sandbox" envPrefix:"SANDBOX_"`
	Health  HealthConfig  `yaml:"health" envPrefix:"HEALTH_"`
	Server  ServerConfig  `yaml:"server" envPrefix:"SERVER_"`
	Feed    FeedConfig    `yaml:"feed" envPrefix:"FEED_"`
	Logging LoggingConfig `yaml:"logging" envPrefix:"LOGGING_"`
}

// BackendConfig points the client at the tutoring backend.
type BackendConfig struct {
	BaseURL        string `yaml:"base_url" env:"BASE_URL"`
	Token          string `yaml:"token,omitempty" env:"TOKEN"`
	TimeoutSeconds int    `yaml:"timeout_seconds" env:"TIMEOUT_SECONDS"`
}

// SessionConfig holds tutoring session defaults.
type SessionConfig struct {
	DefaultLevel string   `yaml:"default_level" env:"DEFAULT_LEVEL"`
	Topics       []string `yaml:"topics" env:"TOPICS" envSeparator:","`
	StarterCode  string   `yaml:"starter_code" env:"STARTER_CODE"`
}

// SandboxConfig controls code execution.
type SandboxConfig struct {
	Engine       string   `yaml:"engine" env:"ENGINE"` // "interpreter" | "node"
	TimeoutMs    int      `yaml:"timeout_ms" env:"TIMEOUT_MS"`
	MaxCallStack int      `yaml:"max_call_stack" env:"MAX_CALL_STACK"`
	MemoryMB     int      `yaml:"memory_mb" env:"MEMORY_MB"`
	NodePath     string   `yaml:"node_path,omitempty" env:"NODE_PATH"`
	Denylist     []string `yaml:"denylist" env:"DENYLIST" envSeparator:","`
}

// HealthConfig controls backend reachability tracking.
type HealthConfig struct {
	FailureThreshold int `yaml:"failure_threshold" env:"FAILURE_THRESHOLD"`
}

// ServerConfig configures `codetrek serve`.
type ServerConfig struct {
	Addr        string `yaml:"addr" env:"ADDR"`
	DBPath      string `yaml:"db_path" env:"DB_PATH"`
	DatasetPath string `yaml:"dataset_path,omitempty" env:"DATASET_PATH"`
}

// FeedConfig configures the WebSocket transcript feed. Empty Addr disables it.
type FeedConfig struct {
	Addr string `yaml:"addr,omitempty" env:"ADDR"`
}

// LoggingConfig controls diagnostics and the event journal.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"LEVEL"`
	DiagPath   string `yaml:"diag_path" env:"DIAG_PATH"`
	EventsPath string `yaml:"events_path" env:"EVENTS_PATH"`
}

const configDir = ".codetrek"
const configFile = "config.yaml"

// EnvPrefix prefixes every environment override, e.g. CODETREK_BACKEND_TOKEN.
const EnvPrefix = "CODETREK_"

// Dir returns the .codetrek directory inside root.
func Dir(root string) string { return filepath.Join(root, configDir) }

// Path returns the config file path inside root.
func Path(root string) string { return filepath.Join(root, configDir, configFile) }

// ReadConfig reads .codetrek/config.yaml from the given directory.
// Fields missing from the file keep their default values.
// Returns an error if the file is not found or YAML is malformed.
func ReadConfig(dir string) (*Config, error) {
	data, err := os.ReadFile(Path(dir))
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// WriteConfig writes cfg to .codetrek/config.yaml in the given directory.
// Creates the .codetrek/ directory if it does not exist.
func WriteConfig(dir string, cfg *Config) error {
	if err := os.MkdirAll(Dir(dir), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	if err := os.WriteFile(Path(dir), data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Load reads the config in dir, falling back to defaults when no file
// exists, then applies CODETREK_* environment overrides and validates.
func Load(dir string) (*Config, error) {
	cfg, err := ReadConfig(dir)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = DefaultConfig(), nil
	}
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg fields from CODETREK_* environment variables.
// Unset variables leave fields untouched.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}
	return nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	var errs []error
	if c.Backend.BaseURL == "" {
		errs = append(errs, errors.New("backend.base_url is required"))
	}
	if c.Backend.TimeoutSeconds < 0 {
		errs = append(errs, errors.New("backend.timeout_seconds must not be negative"))
	}
	if _, err := session.ParseLevel(c.Session.DefaultLevel); err != nil {
		errs = append(errs, fmt.Errorf("session.default_level: %w", err))
	}
	if len(c.Session.Topics) == 0 {
		errs = append(errs, errors.New("session.topics must not be empty"))
	}
	switch c.Sandbox.Engine {
	case EngineInterpreter, EngineNode:
	default:
		errs = append(errs, fmt.Errorf("sandbox.engine %q (want %s or %s)", c.Sandbox.Engine, EngineInterpreter, EngineNode))
	}
	if c.Sandbox.TimeoutMs <= 0 {
		errs = append(errs, errors.New("sandbox.timeout_ms must be positive"))
	}
	if c.Sandbox.MemoryMB < 0 {
		errs = append(errs, errors.New("sandbox.memory_mb must not be negative"))
	}
	return errors.Join(errs...)
}

// Sandbox engines.
const (
	EngineInterpreter = "interpreter"
	EngineNode        = "node"
)

// DefaultTopics lists the topics offered by the topic picker.
var DefaultTopics = []string{
	"Arrays",
	"Linked Lists",
	"Sorting",
	"Dynamic Programming",
	"Trees",
	"Graphs",
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Backend: BackendConfig{
			BaseURL:        "http://localhost:8001",
			TimeoutSeconds: 60,
		},
		Session: SessionConfig{
			DefaultLevel: string(session.LevelEasy),
			Topics:       append([]string(nil), DefaultTopics...),
			StarterCode:  "// Start coding here...",
		},
		Sandbox: SandboxConfig{
			Engine:       EngineInterpreter,
			TimeoutMs:    2000,
			MaxCallStack: 1024,
			MemoryMB:     256,
			Denylist:     []string{"import", "require"},
		},
		Health: HealthConfig{
			FailureThreshold: 3,
		},
		Server: ServerConfig{
			Addr:   "127.0.0.1:8001",
			DBPath: filepath.Join(configDir, "codetrek.db"),
		},
		Logging: LoggingConfig{
			Level:      "info",
			DiagPath:   filepath.Join(configDir, "debug.log"),
			EventsPath: filepath.Join(configDir, "events.jsonl"),
		},
	}
}

// Resolve returns p unchanged when absolute, otherwise joined onto root.
func Resolve(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// TopicNames returns the configured topics with blanks removed.
func (c *Config) TopicNames() []string {
	var out []string
	for _, t := range c.Session.Topics {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
