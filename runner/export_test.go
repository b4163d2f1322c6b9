package runner

import "github.com/rise-and-shine/dddbase/observability/tracing"

// SetTracerInit replaces the tracer bootstrap until restore is called.
func SetTracerInit(fn func(tracing.Config) (func() error, error)) (restore func()) {
	prev := initTracer
	initTracer = fn
	return func() { initTracer = prev }
}
