package alert

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/code19m/errx"
)

//nolint:gochecknoglobals // global alert provider singleton
var (
	global   atomic.Value // stores Provider
	setOnce  sync.Once
	initOnce sync.Once
)

// SetGlobal installs p as the provider used by the package-level SendError.
// It may be called once; later calls return an error.
func SetGlobal(p Provider) error {
	called := false
	setOnce.Do(func() {
		initOnce.Do(func() {})
		global.Store(&p)
		called = true
	})
	if !called {
		return errx.New("[alert]: SetGlobal can only be called once")
	}
	return nil
}

// SendError sends an alert through the global provider. Without SetGlobal the
// alert is dropped.
func SendError(ctx context.Context, errCode, msg, operation string, details map[string]string) error {
	return getGlobal().SendError(ctx, errCode, msg, operation, details)
}

func getGlobal() Provider {
	initOnce.Do(func() {
		p := NewNoop()
		global.Store(&p)
	})
	p, ok := global.Load().(*Provider)
	if !ok {
		panic("[alert]: global contains invalid type")
	}
	return *p
}

// Global returns a Provider that forwards to whatever provider is installed
// globally at the time of each call.
func Global() Provider {
	return globalProvider{}
}

type globalProvider struct{}

func (globalProvider) SendError(ctx context.Context, errCode, msg, operation string, details map[string]string) error {
	return getGlobal().SendError(ctx, errCode, msg, operation, details)
}
