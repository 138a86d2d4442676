package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/sokinpui/gfix/internal/history"
	"github.com/sokinpui/gfix/internal/llm"
)

// ErrNoAPIKey is returned by Validate when no credential is configured.
var ErrNoAPIKey = errors.New("missing GEMINI_API_KEY")

// MissingKeyMessage is shown to the user once at startup for ErrNoAPIKey.
const MissingKeyMessage = "Missing GEMINI_API_KEY in .env file"

// Config stores all configuration of the application.
// The values are read by viper from a config file, a .env file, or
// environment variables.
type Config struct {
	APIKey        string        `mapstructure:"api_key"`
	Model         string        `mapstructure:"model"`
	LogFile       string        `mapstructure:"log_file"`
	TestCasesFile string        `mapstructure:"test_cases_file"`
	History       HistoryConfig `mapstructure:"history"`
}

// HistoryConfig controls the debugging conversation log.
type HistoryConfig struct {
	// MaxTurns caps retained turns; 0 keeps everything.
	MaxTurns int `mapstructure:"max_turns"`
}

// DefaultPath returns ~/.config/gfix/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "gfix", "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model", llm.DefaultModel)
	v.SetDefault("log_file", "")
	v.SetDefault("test_cases_file", "generatedTestCases.txt")
	v.SetDefault("history.max_turns", history.DefaultMaxTurns)
}

// Load reads configuration from path (or the default location when empty)
// and from a .env file in dir, then applies environment overrides.
// A missing API key is not an error here; see Validate.
func Load(path, dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if err := v.BindEnv("api_key", "GEMINI_API_KEY"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("model", "GFIX_MODEL"); err != nil {
		return nil, err
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if explicit || !isNotExist(err) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	if err := mergeDotEnv(v, dir); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// mergeDotEnv lets GEMINI_API_KEY come from a .env file in dir. Real
// environment variables still win because of BindEnv.
func mergeDotEnv(v *viper.Viper, dir string) error {
	envPath := filepath.Join(dir, ".env")
	if _, err := os.Stat(envPath); err != nil {
		return nil
	}

	env := viper.New()
	env.SetConfigFile(envPath)
	env.SetConfigType("env")
	if err := env.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read %s: %w", envPath, err)
	}
	if key := env.GetString("GEMINI_API_KEY"); key != "" && v.GetString("api_key") == "" {
		v.Set("api_key", key)
	}
	if m := env.GetString("GFIX_MODEL"); m != "" && os.Getenv("GFIX_MODEL") == "" {
		v.Set("model", m)
	}
	return nil
}

func isNotExist(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.Is(err, fs.ErrNotExist) || errors.As(err, &nf)
}

// Validate reports configuration problems that should be shown to the user
// without stopping the program.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	return nil
}
