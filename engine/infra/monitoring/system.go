package monitoring

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/compozy/executor/engine/infra/monitoring/metrics"
	buildversion "github.com/compozy/executor/pkg/version"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// getBuildInfo returns build information with fallback strategies
func getBuildInfo() (version, commit, goVersion string) {
	version = buildversion.Version
	commit = buildversion.CommitHash
	if info, ok := debug.ReadBuildInfo(); ok {
		if version == "unknown" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
		if commit == "unknown" {
			for _, setting := range info.Settings {
				if setting.Key == "vcs.revision" {
					commit = setting.Value
					break
				}
			}
		}
	}
	return version, commit, runtime.Version()
}

// registerSystemMetrics exposes build info and process uptime as observable gauges.
func registerSystemMetrics(meter metric.Meter, started time.Time) (metric.Registration, error) {
	buildInfo, err := meter.Int64ObservableGauge(
		metrics.MetricName("build_info"),
		metric.WithDescription("Build information (value=1)"),
	)
	if err != nil {
		return nil, err
	}
	uptime, err := meter.Float64ObservableGauge(
		metrics.MetricName("uptime_seconds"),
		metric.WithDescription("Service uptime in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	version, commit, goVersion := getBuildInfo()
	attrs := metric.WithAttributes(
		attribute.String("version", version),
		attribute.String("commit_hash", commit),
		attribute.String("go_version", goVersion),
	)
	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(buildInfo, 1, attrs)
		o.ObserveFloat64(uptime, time.Since(started).Seconds())
		return nil
	}, buildInfo, uptime)
}
