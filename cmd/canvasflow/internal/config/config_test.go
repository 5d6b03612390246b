package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OpenAI.Model != "" || cfg.SystemPrompt != "" {
		t.Fatalf("missing file should yield empty config: %+v", cfg)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
openai:
  api_key: sk-test
  model: gpt-4o-mini
layout:
  node_width: 300
  vertical_gap: 32
system_prompt: custom prompt
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OpenAI.APIKey != "sk-test" || cfg.OpenAI.Model != "gpt-4o-mini" {
		t.Fatalf("openai section: %+v", cfg.OpenAI)
	}
	if cfg.Layout.NodeWidth != 300 || cfg.Layout.VerticalGap != 32 {
		t.Fatalf("layout section: %+v", cfg.Layout)
	}
	if cfg.SystemPrompt != "custom prompt" {
		t.Fatalf("system prompt: %q", cfg.SystemPrompt)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("openai: ["), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("malformed yaml accepted")
	}
}
