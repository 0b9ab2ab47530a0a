package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

type SourceType string

const (
	SourceDefault SourceType = "default"
	SourceYAML    SourceType = "yaml"
	SourceEnv     SourceType = "env"
	SourceCLI     SourceType = "cli"
)

// Source yields a nested or dot-keyed map of configuration values.
type Source interface {
	Load() (map[string]any, error)
	Type() SourceType
}

// loader applies layers in order: defaults, file sources, the environment,
// then CLI sources. Later layers win.
type loader struct {
	koanf     *koanf.Koanf
	validator *validator.Validate
	environ   func() []string
}

func newLoader() *loader {
	return &loader{
		koanf:     koanf.New("."),
		validator: validator.New(),
		environ:   os.Environ,
	}
}

// Load builds and validates the configuration from defaults, the provided
// sources and the process environment.
func Load(_ context.Context, sources ...Source) (*Config, error) {
	return newLoader().load(sources)
}

func (l *loader) load(sources []Source) (*Config, error) {
	if err := l.koanf.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	var cli []Source
	for _, source := range sources {
		if source == nil {
			continue
		}
		if source.Type() == SourceCLI {
			cli = append(cli, source)
			continue
		}
		if err := l.loadSource(source); err != nil {
			return nil, err
		}
	}
	if err := l.loadEnvironment(); err != nil {
		return nil, err
	}
	for _, source := range cli {
		if err := l.loadSource(source); err != nil {
			return nil, err
		}
	}
	return l.unmarshalAndValidate()
}

func (l *loader) loadSource(source Source) error {
	data, err := source.Load()
	if err != nil {
		return fmt.Errorf("failed to load from source %s: %w", source.Type(), err)
	}
	for key, value := range flattenMap("", data) {
		if err := l.koanf.Set(key, value); err != nil {
			return fmt.Errorf("failed to set key %s from source %s: %w", key, source.Type(), err)
		}
	}
	return nil
}

// loadEnvironment applies alias variables first so canonical names win.
func (l *loader) loadEnvironment() error {
	mappings := GenerateEnvMappings()
	aliases := make(map[string]string)
	canonical := make(map[string]string)
	for _, m := range mappings {
		if m.Alias {
			aliases[m.EnvVar] = m.ConfigPath
			continue
		}
		canonical[m.EnvVar] = m.ConfigPath
	}
	for _, table := range []map[string]string{aliases, canonical} {
		lookup := table
		provider := env.Provider(".", env.Opt{
			EnvironFunc: l.environ,
			TransformFunc: func(key string, value string) (string, any) {
				path, ok := lookup[key]
				if !ok || strings.TrimSpace(value) == "" {
					return "", nil
				}
				return path, value
			},
		})
		if err := l.koanf.Load(provider, nil); err != nil {
			return fmt.Errorf("failed to load environment variables: %w", err)
		}
	}
	return nil
}

func (l *loader) unmarshalAndValidate() (*Config, error) {
	var cfg Config
	if err := l.koanf.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := l.validator.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// flattenMap flattens a nested map into dot-notation keys
func flattenMap(prefix string, m map[string]any) map[string]any {
	result := make(map[string]any)
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			for fk, fv := range flattenMap(key, nested) {
				result[fk] = fv
			}
			continue
		}
		if v == nil {
			continue
		}
		result[key] = v
	}
	return result
}

// yamlProvider reads configuration from a YAML file. A missing file is not an error.
type yamlProvider struct {
	path string
}

func NewYAMLProvider(path string) Source {
	return &yamlProvider{path: path}
}

func (y *yamlProvider) Load() (map[string]any, error) {
	data, err := os.ReadFile(y.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("failed to read YAML file: %w", err)
	}
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse YAML file: %w", err)
	}
	return out, nil
}

func (y *yamlProvider) Type() SourceType { return SourceYAML }

// cliProvider carries flag overrides keyed by koanf path.
type cliProvider struct {
	flags map[string]any
}

func NewCLIProvider(flags map[string]any) Source {
	return &cliProvider{flags: flags}
}

func (c *cliProvider) Load() (map[string]any, error) {
	if c.flags == nil {
		return map[string]any{}, nil
	}
	return c.flags, nil
}

func (c *cliProvider) Type() SourceType { return SourceCLI }

// LoadEnvFile loads a dotenv file into the process environment. A missing
// file is ignored; variables already set are not overwritten.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}
