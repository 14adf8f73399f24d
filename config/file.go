package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrConfigExists is returned when writing defaults over an existing file.
var ErrConfigExists = errors.New("config file already exists")

// Dir returns the per-user directory, ~/.jwstascii.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".jwstascii"), nil
}

// DefaultPath returns ~/.jwstascii/config.yaml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Locate returns the config file to load: explicit if set, otherwise the
// default path if a file exists there, otherwise "" (defaults and
// environment only).
func Locate(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	configPath, err := DefaultPath()
	if err != nil {
		return "", err
	}

	// Check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return "", nil // File doesn't exist -- not an error
	}
	return configPath, nil
}

// LoadConfigFile loads the config at explicit, or at the default location
// when explicit is empty.
func LoadConfigFile(explicit string) (*Config, error) {
	configPath, err := Locate(explicit)
	if err != nil {
		return nil, err
	}
	return Load(configPath)
}

// WriteDefault writes the default configuration as YAML to path, creating
// parent directories. An existing file is only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)
	if err := encoder.Encode(Default()); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
