// Package config loads the robot brain's settings from
// ~/.robot-brain/config.yaml with ROBOT_BRAIN_* environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/rcliao/robot-brain/internal/brain"
	"github.com/rcliao/robot-brain/internal/embedding"
	"github.com/rcliao/robot-brain/internal/explore"
	"github.com/rcliao/robot-brain/internal/logging"
	"github.com/rcliao/robot-brain/internal/mode"
	"github.com/rcliao/robot-brain/internal/openai"
	"github.com/rcliao/robot-brain/internal/robot"
)

// EnvPrefix prefixes environment overrides, e.g. ROBOT_BRAIN_LLM_API_KEY.
const EnvPrefix = "ROBOT_BRAIN"

// Config holds all application configuration.
type Config struct {
	LLM          openai.Config      `mapstructure:"llm" yaml:"llm"`
	Memory       MemoryConfig       `mapstructure:"memory" yaml:"memory"`
	Conversation ConversationConfig `mapstructure:"conversation" yaml:"conversation"`
	Modes        mode.Config        `mapstructure:"modes" yaml:"modes"`
	Explore      explore.Config     `mapstructure:"explore" yaml:"explore"`
	Brain        brain.Config       `mapstructure:"brain" yaml:"brain"`
	Retry        robot.RetryPolicy  `mapstructure:"retry" yaml:"retry"`
	Joystick     JoystickConfig     `mapstructure:"joystick" yaml:"joystick"`
	Metrics      MetricsConfig      `mapstructure:"metrics" yaml:"metrics"`
	Logging      logging.Config     `mapstructure:"logging" yaml:"logging"`
	Persona      PersonaConfig      `mapstructure:"persona" yaml:"persona"`
	Embedding    embedding.Config   `mapstructure:"embedding" yaml:"embedding"`
}

// MemoryConfig selects the observation store backend.
type MemoryConfig struct {
	Backend      string `mapstructure:"backend" yaml:"backend"` // json | sqlite
	Path         string `mapstructure:"path" yaml:"path"`
	MaxPerEntity int    `mapstructure:"max_per_entity" yaml:"max_per_entity"`
}

// ConversationConfig tunes the exchange pipeline.
type ConversationConfig struct {
	HistoryPairs int           `mapstructure:"history_pairs" yaml:"history_pairs"`
	ActionPause  time.Duration `mapstructure:"action_pause" yaml:"action_pause"`
}

// JoystickConfig controls the phone controller listener.
type JoystickConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	Addr    string        `mapstructure:"addr" yaml:"addr"`
	Stale   time.Duration `mapstructure:"stale" yaml:"stale"`
}

// MetricsConfig controls the Prometheus endpoint. An empty address disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// PersonaConfig points at a persona file. Empty uses the built-in persona.
type PersonaConfig struct {
	Path  string `mapstructure:"path" yaml:"path"`
	Watch bool   `mapstructure:"watch" yaml:"watch"`
}

// DataDir returns ~/.robot-brain.
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".robot-brain")
}

// DefaultPath returns ~/.robot-brain/config.yaml.
func DefaultPath() string {
	return filepath.Join(DataDir(), "config.yaml")
}

// Default returns a Config with the standard values.
func Default() *Config {
	return &Config{
		LLM: openai.DefaultConfig(),
		Memory: MemoryConfig{
			Backend:      "json",
			Path:         filepath.Join(DataDir(), "memory.json"),
			MaxPerEntity: 20,
		},
		Conversation: ConversationConfig{
			HistoryPairs: 10,
			ActionPause:  300 * time.Millisecond,
		},
		Modes:   mode.DefaultConfig(),
		Explore: explore.DefaultConfig(),
		Brain:   brain.DefaultConfig(),
		Retry:   robot.DefaultRetryPolicy(),
		Joystick: JoystickConfig{
			Enabled: true,
			Addr:    ":8765",
			Stale:   500 * time.Millisecond,
		},
		Logging:   logging.DefaultConfig(),
		Embedding: embedding.Config{Provider: "hash", Dims: 256},
	}
}

// Load reads configuration from the default location.
func Load() (*Config, error) {
	return LoadFromPath(DefaultPath())
}

// LoadFromPath reads configuration from path and merges environment
// variables. If the file doesn't exist it is created with default values.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	cfg.Memory.Path = expandPath(cfg.Memory.Path)
	cfg.Logging.File = expandPath(cfg.Logging.File)
	cfg.Persona.Path = expandPath(cfg.Persona.Path)
	return cfg, nil
}

// SaveToPath writes the configuration to path.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return writeConfigFile(path, c)
}

// Validate checks the configuration for out-of-range values.
func (c *Config) Validate() error {
	switch c.Memory.Backend {
	case "json", "sqlite":
	default:
		return fmt.Errorf("invalid memory.backend '%s', must be json or sqlite", c.Memory.Backend)
	}
	if c.Memory.Path == "" {
		return fmt.Errorf("memory.path cannot be empty")
	}
	if c.Memory.MaxPerEntity < 1 {
		return fmt.Errorf("memory.max_per_entity must be at least 1")
	}

	m := c.Modes
	if !(m.CriticalBattery < m.LowBattery && m.LowBattery < m.RecoverBattery && m.RecoverBattery <= 100) {
		return fmt.Errorf("modes battery levels must satisfy critical < low < recover <= 100")
	}
	if m.ManualControlTimeout <= 0 {
		return fmt.Errorf("modes.manual_control_timeout must be positive")
	}

	e := c.Explore
	if e.DangerDistance <= 0 || e.DangerDistance >= e.SafeDistance {
		return fmt.Errorf("explore distances must satisfy 0 < danger_distance < safe_distance")
	}
	if e.Speed < 0 || e.Speed > 100 || e.BackupSpeed < 0 || e.BackupSpeed > 100 {
		return fmt.Errorf("explore speeds must be between 0 and 100")
	}
	if e.ThoughtMax < e.ThoughtMin {
		return fmt.Errorf("explore.thought_max cannot be less than thought_min")
	}
	if e.NoveltyThreshold < 0 || e.NoveltyThreshold > 1 {
		return fmt.Errorf("explore.novelty_threshold must be between 0 and 1")
	}

	if c.Retry.Attempts < 1 {
		return fmt.Errorf("retry.attempts must be at least 1")
	}
	if c.Brain.MaxFailures < 1 {
		return fmt.Errorf("brain.max_failures must be at least 1")
	}

	switch c.Embedding.Provider {
	case "", "hash", "ollama", "openai":
	default:
		return fmt.Errorf("invalid embedding.provider '%s', must be hash, ollama or openai", c.Embedding.Provider)
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
