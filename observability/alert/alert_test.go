package alert_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/dddbase/observability/alert"
)

func TestNewProvider(t *testing.T) {
	p, err := alert.NewProvider(alert.Config{Provider: "noop"}, "svc", "v1")
	require.NoError(t, err)
	require.NoError(t, p.SendError(t.Context(), "CODE", "msg", "op", nil))

	_, err = alert.NewProvider(alert.Config{Provider: "pager"}, "svc", "v1")
	require.Error(t, err)
}

func TestSentinelProviderBuildsLazily(t *testing.T) {
	p, err := alert.NewProvider(alert.Config{
		Provider:     "sentinel",
		SentinelHost: "localhost",
		SentinelPort: 50051,
	}, "svc", "v1")
	require.NoError(t, err)

	sp, ok := p.(*alert.SentinelProvider)
	require.True(t, ok)
	assert.NoError(t, sp.Close())
}

func TestGlobalDefaultsToNoop(t *testing.T) {
	assert.NoError(t, alert.SendError(t.Context(), "CODE", "msg", "op", map[string]string{"k": "v"}))
}
