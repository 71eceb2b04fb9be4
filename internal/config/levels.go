package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"confluence-backend/internal/domain"
)

// LevelsFile is the YAML layout of a custom ratio table.
type LevelsFile struct {
	Levels []domain.RatioSpec `yaml:"levels"`
}

// LoadLevels reads a ratio table from path. An empty path returns the built-in
// table. Unknown fields and invalid rows are rejected.
func LoadLevels(path string) ([]domain.RatioSpec, error) {
	if path == "" {
		return domain.DefaultRatioTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read levels file: %w", err)
	}
	return ParseLevels(data)
}

// ParseLevels decodes and validates a YAML ratio table.
func ParseLevels(data []byte) ([]domain.RatioSpec, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file LevelsFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: levels file: %v", domain.ErrInvalidConfiguration, err)
	}
	for i := range file.Levels {
		s, err := domain.ParseStrength(string(file.Levels[i].Strength))
		if err != nil {
			return nil, fmt.Errorf("level %q: %w", file.Levels[i].Key, err)
		}
		file.Levels[i].Strength = s
	}
	if err := domain.ValidateRatioTable(file.Levels); err != nil {
		return nil, err
	}
	return file.Levels, nil
}
