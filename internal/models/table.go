package models

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// tableFile is the on-disk shape of a selector table:
//
//	models:
//	  gpt-4o: gpt-4o
//	  fast: gpt-4o-mini
type tableFile struct {
	Models map[string]string `yaml:"models"`
}

// LoadTable reads a selector table from a YAML file. Validation happens in
// NewResolver.
func LoadTable(path string) (map[string]string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("models: resolve table path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("models: read table file %q: %w", absPath, err)
	}

	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("models: parse table file %q: %w", absPath, err)
	}
	if len(f.Models) == 0 {
		return nil, fmt.Errorf("models: table file %q defines no models", absPath)
	}
	return f.Models, nil
}
