package telemetry

import (
	"fmt"
	"io"

	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

func newTracerProvider(cfg Config, res *resource.Resource, w io.Writer) (*trace.TracerProvider, error) {
	opts := []trace.TracerProviderOption{
		trace.WithResource(res),
		trace.WithSampler(newSampler(cfg.Sampler)),
	}

	if cfg.Exporter.Type == ExporterStdout {
		exporterOpts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
		if cfg.Exporter.PrettyPrint {
			exporterOpts = append(exporterOpts, stdouttrace.WithPrettyPrint())
		}
		exporter, err := stdouttrace.New(exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("create stdout trace exporter failed: %w", err)
		}
		opts = append(opts, trace.WithBatcher(exporter))
	}

	return trace.NewTracerProvider(opts...), nil
}

func newSampler(cfg SamplerConfig) trace.Sampler {
	switch cfg.Type {
	case "always_on":
		return trace.AlwaysSample()
	case "always_off":
		return trace.NeverSample()
	case "trace_id_ratio":
		return trace.TraceIDRatioBased(cfg.Ratio)
	default:
		return trace.ParentBased(trace.AlwaysSample())
	}
}
