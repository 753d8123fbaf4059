package workflow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Footer is the optional post-run record the engine writes next to a
// workflow document (§6: "optional post-run footer written by the engine
// records engine version and success flag").
type Footer struct {
	EngineVersion string `yaml:"engine_version"`
	Success       bool   `yaml:"success"`
	FatalErrors   []string `yaml:"fatal_errors,omitempty"`
	Warnings      []string `yaml:"warnings,omitempty"`
}

// WriteFooter serializes f as YAML to path, overwriting any existing
// content — a footer describes the most recent run only.
func WriteFooter(f Footer, path string) error {
	out, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("workflow: encode footer: %w", err)
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("workflow: write footer %s: %w", path, err)
	}
	return nil
}
