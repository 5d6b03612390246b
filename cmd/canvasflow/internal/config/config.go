// Package config loads the canvasflow CLI configuration.
//
// The config file lives under os.UserConfigDir()/canvasflow/config.yaml:
//
//	~/Library/Application Support/canvasflow/config.yaml   (macOS)
//	~/.config/canvasflow/config.yaml                       (Linux)
//	%AppData%/canvasflow/config.yaml                       (Windows)
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/canvasflow/canvasflow/pkg/layout"
	"github.com/canvasflow/canvasflow/pkg/llmsource"
)

const (
	appDir     = "canvasflow"
	configFile = "config.yaml"
)

// Config is the CLI configuration.
type Config struct {
	// OpenAI and Gemini hold provider credentials and model selection.
	OpenAI llmsource.OpenAIConfig `yaml:"openai,omitempty"`
	Gemini llmsource.GeminiConfig `yaml:"gemini,omitempty"`

	// Layout overrides the layout engine defaults. Zero fields keep the
	// built-in values.
	Layout layout.Config `yaml:"layout,omitempty"`

	// SystemPrompt replaces the embedded markup-grammar prompt.
	SystemPrompt string `yaml:"system_prompt,omitempty"`
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return filepath.Join(base, appDir, configFile), nil
}

// Load reads the configuration from path. An empty path uses the default
// location; a missing file yields an empty config, not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}
