// Package tracing provides the opentracing tracers of the node. The tracers
// are built from the Jaeger environment variables (JAEGER_AGENT_HOST,
// JAEGER_SAMPLER_TYPE, ...) once tracing has been enabled, otherwise a no-op
// tracer is returned.
package tracing

import (
	"io"
	"sync"

	opentracing "github.com/opentracing/opentracing-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
	"golang.org/x/xerrors"
)

type key int

// OperationKey is the key used to denote an operation in a `context.Context`.
const OperationKey key = iota

var (
	// OperationTag is the span tag used for denoting an operation.
	OperationTag = "operation"
	// UndefinedOperation is the default OperationTag value used if no
	// OperationKey is present in the context.
	UndefinedOperation = "__UNDEFINED_OPERATION__"
)

type tracerCatalog struct {
	sync.Mutex
	enabled         bool
	tracerByService map[string]closableTracer
}

type closableTracer struct {
	tracer opentracing.Tracer
	closer io.Closer
}

var catalog = tracerCatalog{
	tracerByService: make(map[string]closableTracer),
}

// Enable turns on the creation of Jaeger tracers. It must be called before the
// first tracer is requested.
func Enable() {
	catalog.Lock()
	catalog.enabled = true
	catalog.Unlock()
}

// GetTracer returns an `opentracing.Tracer` instance for the given service.
// Since the tracers are cached, it returns an existing one if it has been
// initialized before.
func GetTracer(service string) (opentracing.Tracer, error) {
	catalog.Lock()
	defer catalog.Unlock()

	if !catalog.enabled {
		return opentracing.NoopTracer{}, nil
	}

	tc, ok := catalog.tracerByService[service]
	if ok {
		return tc.tracer, nil
	}

	cfg, err := jaegercfg.FromEnv()
	if err != nil {
		return nil, xerrors.Errorf("error parsing jaeger configuration from environment: %v", err)
	}

	cfg.ServiceName = service
	tracer, closer, err := cfg.NewTracer()
	if err != nil {
		return nil, xerrors.Errorf("error creating new tracer: %v", err)
	}

	catalog.tracerByService[service] = closableTracer{
		tracer: tracer,
		closer: closer,
	}

	return tracer, nil
}

// CloseAll closes all the tracer instances.
func CloseAll() error {
	catalog.Lock()
	defer catalog.Unlock()

	for service, tc := range catalog.tracerByService {
		err := tc.closer.Close()
		if err != nil {
			return xerrors.Errorf("failed to close tracer of %s: %v", service, err)
		}

		delete(catalog.tracerByService, service)
	}

	return nil
}
