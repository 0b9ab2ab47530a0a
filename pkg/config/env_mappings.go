package config

import (
	"reflect"
	"strings"
	"sync"
)

// EnvMapping binds one environment variable to a koanf path.
type EnvMapping struct {
	EnvVar     string
	ConfigPath string
	Alias      bool
}

var (
	cachedMappings []EnvMapping
	mappingsOnce   sync.Once
)

// GenerateEnvMappings walks the Config struct tags and returns every
// `env` binding. A tag may list several comma separated names; the first one
// is canonical and the rest are accepted aliases.
func GenerateEnvMappings() []EnvMapping {
	mappingsOnce.Do(func() {
		cachedMappings = extractMappings(reflect.TypeOf(Config{}), "")
	})
	return cachedMappings
}

func extractMappings(t reflect.Type, prefix string) []EnvMapping {
	var mappings []EnvMapping
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		key := field.Tag.Get("koanf")
		if key == "" {
			continue
		}
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if field.Type.Kind() == reflect.Struct && field.Type.PkgPath() != "time" {
			mappings = append(mappings, extractMappings(field.Type, path)...)
			continue
		}
		envTag := field.Tag.Get("env")
		if envTag == "" {
			continue
		}
		for idx, name := range strings.Split(envTag, ",") {
			if name = strings.TrimSpace(name); name != "" {
				mappings = append(mappings, EnvMapping{EnvVar: name, ConfigPath: path, Alias: idx > 0})
			}
		}
	}
	return mappings
}

// IsSensitive reports whether the field at configPath is tagged sensitive.
func IsSensitive(configPath string) bool {
	return checkSensitiveField(reflect.TypeOf(Config{}), strings.Split(configPath, "."))
}

func checkSensitiveField(t reflect.Type, pathParts []string) bool {
	if len(pathParts) == 0 {
		return false
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Tag.Get("koanf") != pathParts[0] {
			continue
		}
		if len(pathParts) == 1 {
			return field.Tag.Get("sensitive") == "true"
		}
		if field.Type.Kind() == reflect.Struct && field.Type.PkgPath() != "time" {
			return checkSensitiveField(field.Type, pathParts[1:])
		}
		return false
	}
	return false
}
