// Package meta_test contains tests for the meta package.
package meta_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/dddbase/meta"
)

func TestInjectMetaToContext(t *testing.T) {
	tests := []struct {
		name        string
		initialCtx  context.Context
		metaData    map[meta.ContextKey]string
		keyToVerify meta.ContextKey
		valueExpect string
		nilValue    bool
	}{
		{
			name:        "inject single value",
			initialCtx:  t.Context(),
			metaData:    map[meta.ContextKey]string{meta.SagaID: "saga-1"},
			keyToVerify: meta.SagaID,
			valueExpect: "saga-1",
		},
		{
			name:       "inject multiple values",
			initialCtx: t.Context(),
			metaData: map[meta.ContextKey]string{
				meta.CommandName: "Hotel.bookRoom",
				meta.SagaID:      "saga-1",
			},
			keyToVerify: meta.CommandName,
			valueExpect: "Hotel.bookRoom",
		},
		{
			name:        "skip empty values",
			initialCtx:  t.Context(),
			metaData:    map[meta.ContextKey]string{meta.EventUUID: ""},
			keyToVerify: meta.EventUUID,
			nilValue:    true,
		},
		{
			name:        "overwrite existing value",
			initialCtx:  context.WithValue(t.Context(), meta.TraceID, "old-trace-id"),
			metaData:    map[meta.ContextKey]string{meta.TraceID: "new-trace-id"},
			keyToVerify: meta.TraceID,
			valueExpect: "new-trace-id",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := meta.InjectMetaToContext(tc.initialCtx, tc.metaData)

			if tc.nilValue {
				assert.Nil(t, ctx.Value(tc.keyToVerify))
				return
			}
			assert.Equal(t, tc.valueExpect, ctx.Value(tc.keyToVerify))
		})
	}
}

func TestExtractMetaFromContext(t *testing.T) {
	tests := []struct {
		name     string
		ctxSetup func() context.Context
		expected map[meta.ContextKey]string
	}{
		{
			name: "extract dispatch keys",
			ctxSetup: func() context.Context {
				ctx := context.WithValue(t.Context(), meta.CommandName, "Hotel.bookRoom")
				return context.WithValue(ctx, meta.SagaID, "saga-7")
			},
			expected: map[meta.ContextKey]string{
				meta.CommandName: "Hotel.bookRoom",
				meta.SagaID:      "saga-7",
			},
		},
		{
			name: "ignore non-string values",
			ctxSetup: func() context.Context {
				ctx := context.WithValue(t.Context(), meta.TraceID, 12345)
				return context.WithValue(ctx, meta.EventName, "Hotel.roomBooked")
			},
			expected: map[meta.ContextKey]string{meta.EventName: "Hotel.roomBooked"},
		},
		{
			name: "ignore unknown keys",
			ctxSetup: func() context.Context {
				return context.WithValue(t.Context(), meta.ContextKey("custom"), "value")
			},
			expected: map[meta.ContextKey]string{},
		},
		{
			name:     "empty context",
			ctxSetup: t.Context,
			expected: map[meta.ContextKey]string{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, meta.ExtractMetaFromContext(tc.ctxSetup()))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	metadata := map[meta.ContextKey]string{
		meta.TraceID:     "trace-123",
		meta.SagaID:      "saga-1",
		meta.CommandName: "Hotel.bookRoom",
		meta.EventName:   "Hotel.roomBooked",
		meta.EventUUID:   "3f2c",
	}

	ctx := meta.InjectMetaToContext(t.Context(), metadata)

	assert.Equal(t, metadata, meta.ExtractMetaFromContext(ctx))
}

func TestShouldGetMeta(t *testing.T) {
	tests := []struct {
		name          string
		ctx           context.Context
		key           meta.ContextKey
		expectedValue string
		errorContains string
	}{
		{
			name:          "valid string value",
			ctx:           context.WithValue(t.Context(), meta.SagaID, "saga-xyz"),
			key:           meta.SagaID,
			expectedValue: "saga-xyz",
		},
		{
			name:          "key not found",
			ctx:           t.Context(),
			key:           meta.SagaID,
			errorContains: "key not found",
		},
		{
			name:          "type mismatch",
			ctx:           context.WithValue(t.Context(), meta.EventUUID, 12345),
			key:           meta.EventUUID,
			errorContains: "type mismatch",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			value, err := meta.ShouldGetMeta(tc.ctx, tc.key)

			if tc.errorContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errorContains)
				assert.Empty(t, value)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectedValue, value)
		})
	}
}
