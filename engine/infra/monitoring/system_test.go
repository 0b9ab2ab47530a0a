package monitoring

import (
	"runtime"
	"testing"
	"time"

	buildversion "github.com/compozy/executor/pkg/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestSystemMetrics(t *testing.T) {
	t.Run("Should report build info and uptime", func(t *testing.T) {
		reader := sdkmetric.NewManualReader()
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		reg, err := registerSystemMetrics(provider.Meter("test"), time.Now().Add(-time.Minute))
		require.NoError(t, err)
		defer reg.Unregister()
		var rm metricdata.ResourceMetrics
		require.NoError(t, reader.Collect(t.Context(), &rm))
		var buildFound, uptimeFound bool
		for _, sm := range rm.ScopeMetrics {
			for _, m := range sm.Metrics {
				switch m.Name {
				case "executor_build_info":
					gauge, ok := m.Data.(metricdata.Gauge[int64])
					require.True(t, ok)
					require.Len(t, gauge.DataPoints, 1)
					assert.Equal(t, int64(1), gauge.DataPoints[0].Value)
					assert.Contains(t, gauge.DataPoints[0].Attributes.ToSlice(),
						attribute.String("go_version", runtime.Version()))
					buildFound = true
				case "executor_uptime_seconds":
					gauge, ok := m.Data.(metricdata.Gauge[float64])
					require.True(t, ok)
					require.Len(t, gauge.DataPoints, 1)
					assert.GreaterOrEqual(t, gauge.DataPoints[0].Value, 60.0)
					uptimeFound = true
				}
			}
		}
		assert.True(t, buildFound)
		assert.True(t, uptimeFound)
	})
}

func TestGetBuildInfo(t *testing.T) {
	t.Run("Should prefer injected build variables", func(t *testing.T) {
		origVersion, origCommit := buildversion.Version, buildversion.CommitHash
		t.Cleanup(func() { buildversion.Version, buildversion.CommitHash = origVersion, origCommit })
		buildversion.Version, buildversion.CommitHash = "v9.9.9", "abc123"
		version, commit, goVersion := getBuildInfo()
		assert.Equal(t, "v9.9.9", version)
		assert.Equal(t, "abc123", commit)
		assert.Equal(t, runtime.Version(), goVersion)
	})
}
