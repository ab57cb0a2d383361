package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	// PathEnvVar overrides the config file location.
	PathEnvVar = "KIMO_CONFIG"

	envPrefix = "KIMO_"
)

// FindConfigFile returns the first existing config file, or "" if none.
// An explicit $KIMO_CONFIG is returned even when it does not exist so the
// caller can report it.
func FindConfigFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		return p
	}
	candidates := []string{
		filepath.Join(DefaultDataDir(), "config.yaml"),
		"kimo.yaml",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Load reads configuration from the default locations.
func Load() (*Config, error) {
	return LoadFrom(FindConfigFile())
}

// LoadFrom reads configuration with path as the file layer. An empty path
// skips the file layer.
func LoadFrom(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, &ConfigNotFoundError{
				Path: path,
				Hint: "Run 'kimo config init' to create one, or unset " + PathEnvVar,
			}
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, &InvalidConfigError{
				Path:    path,
				Message: err.Error(),
				Hint:    "Check the YAML syntax",
				Err:     err,
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, &InvalidConfigError{Path: path, Message: err.Error(), Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, &InvalidConfigError{
			Path:    path,
			Message: err.Error(),
			Hint:    "Fix the listed fields in the config file or KIMO_ environment variables",
			Err:     err,
		}
	}
	return cfg, nil
}

// envTransformFunc maps KIMO_RANKING__DECAY_FACTOR to ranking.decay_factor.
func envTransformFunc(key string) string {
	key = strings.TrimPrefix(key, envPrefix)
	key = strings.ToLower(key)
	return strings.ReplaceAll(key, "__", ".")
}
