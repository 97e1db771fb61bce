package observability

import (
	"context"
	stderrors "errors"
	"sync"
	"time"
)

// Config selects whether telemetry is exported and where.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string
	Insecure       bool
}

// ShutdownFunc flushes and stops the providers installed by Setup.
type ShutdownFunc func(context.Context) error

// Setup installs OTLP tracer and meter providers when cfg.Enabled is set.
// Otherwise it leaves the no-op globals in place and returns a no-op shutdown.
func Setup(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	tc := DefaultTracerConfig(cfg.ServiceName)
	tc.Endpoint, tc.Insecure = cfg.Endpoint, cfg.Insecure
	if cfg.ServiceVersion != "" {
		tc.ServiceVersion = cfg.ServiceVersion
	}
	if cfg.Environment != "" {
		tc.Environment = cfg.Environment
	}
	tp, err := InitTracer(ctx, tc)
	if err != nil {
		return nil, err
	}

	mc := DefaultMeterConfig(cfg.ServiceName)
	mc.Endpoint, mc.Insecure = cfg.Endpoint, cfg.Insecure
	mc.ServiceVersion, mc.Environment = tc.ServiceVersion, tc.Environment
	mp, err := InitMeter(ctx, mc)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return stderrors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns instruments bound to the global meter provider.
// They forward to whatever provider Setup installs later.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewMetrics(Meter(InstrumentationName))
		if err != nil {
			panic("observability: creating default metrics: " + err.Error())
		}
		defaultMetrics = m
	})
	return defaultMetrics
}
