// Package alert escalates conditions that need operator attention, such as a
// saga compensation that could not be dispatched.
package alert

import (
	"context"

	"github.com/code19m/errx"
)

// Provider defines the interface for sending error alerts.
type Provider interface {
	// SendError reports errCode/msg raised while running operation. details
	// carries extra string context such as saga or command identifiers.
	SendError(ctx context.Context, errCode, msg, operation string, details map[string]string) error
}

// NewProvider builds the provider selected by cfg.Provider.
func NewProvider(cfg Config, serviceName, serviceVersion string) (Provider, error) {
	switch cfg.Provider {
	case providerNoop, "":
		return NewNoop(), nil
	case providerSentinel:
		return NewSentinelProvider(cfg, serviceName, serviceVersion)
	default:
		return nil, errx.New("[alert]: unknown provider: "+cfg.Provider, errx.WithType(errx.T_Validation))
	}
}

// NewNoop returns a provider that drops every alert.
func NewNoop() Provider {
	return noOpProvider{}
}

type noOpProvider struct{}

func (noOpProvider) SendError(context.Context, string, string, string, map[string]string) error {
	return nil
}
