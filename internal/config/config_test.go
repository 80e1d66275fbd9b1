package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "storyloom.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
name: my-story
generator:
  command: ./generate.sh
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ArtifactsDir != filepath.Join(".storyloom", "artifacts") {
		t.Fatalf("artifacts-dir = %q", cfg.ArtifactsDir)
	}
	if cfg.Generator.Timeout != 10 {
		t.Fatalf("generator.timeout = %d", cfg.Generator.Timeout)
	}
	if cfg.Review.Command != "./generate.sh" {
		t.Fatalf("review.command = %q, want generator fallback", cfg.Review.Command)
	}
	if cfg.Review.Timeout != 5 {
		t.Fatalf("review.timeout = %d", cfg.Review.Timeout)
	}
	if cfg.Review.BlockBelow != 70 {
		t.Fatalf("review.block-below = %d", cfg.Review.BlockBelow)
	}
	if cfg.MaxSteps != 500 {
		t.Fatalf("max-steps = %d", cfg.MaxSteps)
	}
	if !cfg.SequentialDefault() {
		t.Fatal("sequential should default to true")
	}
}

func TestLoad_Full(t *testing.T) {
	path := writeConfig(t, `
name: my-story
artifacts-dir: out/artifacts
generator:
  command: storygen stage
  timeout: 30
review:
  command: storygen review
  timeout: 15
  block-below: 85
max-steps: 1000
sequential: false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Review.BlockBelow != 85 {
		t.Fatalf("block-below = %d", cfg.Review.BlockBelow)
	}
	if cfg.MaxSteps != 1000 {
		t.Fatalf("max-steps = %d", cfg.MaxSteps)
	}
	if cfg.SequentialDefault() {
		t.Fatal("sequential = true, want false")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"missing name", Config{Generator: Service{Command: "x"}}, "'name'"},
		{"missing command", Config{Name: "s"}, "'generator.command'"},
		{
			"negative timeout",
			Config{Name: "s", Generator: Service{Command: "x", Timeout: -1}},
			"generator.timeout",
		},
		{
			"block-below out of range",
			Config{Name: "s", Generator: Service{Command: "x"}, Review: ReviewPolicy{BlockBelow: 150}},
			"block-below",
		},
		{
			"negative max-steps",
			Config{Name: "s", Generator: Service{Command: "x"}, MaxSteps: -5},
			"max-steps",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "name: [unclosed")
	if _, err := Load(path); err == nil {
		t.Fatal("malformed YAML accepted")
	}
}
