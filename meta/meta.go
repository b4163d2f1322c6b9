// Package meta carries dispatch metadata (trace, service, saga, command and event
// identity) through context so that every diagnostic emitted while handling a
// command or event can be correlated.
package meta

import (
	"context"
	"sync"

	"github.com/code19m/errx"
)

// ContextKey is a type for keys used in context values for metadata.
type ContextKey string

const (
	// TraceID represents a unique identifier for tracing a dispatch across components.
	TraceID ContextKey = "trace_id"

	// ServiceKey identifies the name of current running service.
	ServiceKey ContextKey = "service_name"

	// VersionKey indicates the version of the service.
	VersionKey ContextKey = "service_version"

	// SagaID identifies the saga run a command or event belongs to.
	SagaID ContextKey = "saga_id"

	// CommandName is the routing name of the command being dispatched.
	CommandName ContextKey = "command_name"

	// EventName is the routing name of the event being published.
	EventName ContextKey = "event_name"

	// EventUUID is the identity of the event being published.
	EventUUID ContextKey = "event_uuid"
)

const (
	codeMetaKeyNotFound = "META_KEY_NOT_FOUND"
	codeMetaTypeInvalid = "META_TYPE_MISMATCH"
)

//nolint:gochecknoglobals // finite list of keys known to the extractor
var knownKeys = []ContextKey{
	TraceID,
	ServiceKey,
	VersionKey,
	SagaID,
	CommandName,
	EventName,
	EventUUID,
}

// InjectMetaToContext adds metadata from the provided map to the context.
// It only adds values that are not empty strings and returns a new context
// with the added values.
func InjectMetaToContext(ctx context.Context, data map[ContextKey]string) context.Context {
	for k, v := range data {
		if v != "" {
			ctx = context.WithValue(ctx, k, v) //nolint:fatcontext // allow due to finite number of keys
		}
	}
	return ctx
}

// ExtractMetaFromContext extracts all known metadata from the provided context.
// Only non-empty string values are included in the returned map.
func ExtractMetaFromContext(ctx context.Context) map[ContextKey]string {
	data := make(map[ContextKey]string)
	for _, k := range knownKeys {
		if v, ok := ctx.Value(k).(string); ok && v != "" {
			data[k] = v
		}
	}
	return data
}

// ShouldGetMeta returns the string stored under key or an error when the key
// is missing or holds a non-string value.
func ShouldGetMeta(ctx context.Context, key ContextKey) (string, error) {
	raw := ctx.Value(key)
	if raw == nil {
		return "", errx.New("[meta]: key not found", errx.WithCode(codeMetaKeyNotFound), errx.WithDetails(errx.D{
			"key": string(key),
		}))
	}

	v, ok := raw.(string)
	if !ok {
		return "", errx.New("[meta]: type mismatch", errx.WithCode(codeMetaTypeInvalid), errx.WithDetails(errx.D{
			"key": string(key),
		}))
	}

	return v, nil
}

var (
	serviceName    string    //nolint:gochecknoglobals // for minimizing dependency injection across codebase
	serviceVersion string    //nolint:gochecknoglobals // for minimizing dependency injection across codebase
	once           sync.Once //nolint:gochecknoglobals // ensures SetServiceInfo is called once
)

// SetServiceInfo sets the global service name and version.
// Subsequent calls are ignored.
func SetServiceInfo(name, version string) {
	once.Do(func() {
		serviceName = name
		serviceVersion = version
	})
}

// ServiceName returns the global service name.
func ServiceName() string {
	return serviceName
}

// ServiceVersion returns the global service version.
func ServiceVersion() string {
	return serviceVersion
}
