package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/compozy/executor/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestWriteConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.Password = "hunter2"

	t.Run("Should redact sensitive values in JSON", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeConfig(&buf, cfg, "json"))
		assert.NotContains(t, buf.String(), "hunter2")
		var out map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
		redis := out["redis"].(map[string]any)
		assert.Equal(t, redacted, redis["password"])
		assert.Equal(t, "localhost:6379", redis["addr"])
	})
	t.Run("Should render durations as strings in YAML", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeConfig(&buf, cfg, "yaml"))
		var out map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &out))
		reconciler := out["reconciler"].(map[string]any)
		assert.Equal(t, "5s", reconciler["interval"])
	})
	t.Run("Should reject unknown formats", func(t *testing.T) {
		var buf bytes.Buffer
		assert.Error(t, writeConfig(&buf, cfg, "toml"))
	})
}

func TestWriteEnvMappings(t *testing.T) {
	t.Run("Should list canonical variables and aliases", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeEnvMappings(&buf))
		out := buf.String()
		assert.Contains(t, out, "EXECUTOR_TEMPORAL_HOST_PORT")
		assert.Contains(t, out, "TEMPORAL_URL")
		assert.Contains(t, out, "alias")
	})
}
