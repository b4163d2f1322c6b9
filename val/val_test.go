package val_test

import (
	"testing"

	"github.com/code19m/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/dddbase/val"
)

type envelope struct {
	Name    string         `json:"name"    validate:"required,message_name"`
	Payload map[string]any `json:"payload"`
	Retries int            `json:"retries" validate:"gte=0,lte=10"`
	Mode    string         `json:"mode"    validate:"omitempty,oneof=sync async"`
	SagaID  string         `json:"saga_id" validate:"max=8"`
	Tags    []string       `json:"tags"    validate:"omitempty,min=2"`
}

func TestValidateSchema(t *testing.T) {
	tests := []struct {
		name    string
		input   envelope
		details map[string]string
	}{
		{name: "valid", input: envelope{Name: "Hotel.bookRoom", Retries: 2}},
		{
			name:    "missing name",
			input:   envelope{},
			details: map[string]string{"name": "This field is required"},
		},
		{
			name:    "malformed name",
			input:   envelope{Name: "Hotel book"},
			details: map[string]string{"name": "Must be a dotted name such as Entity.action"},
		},
		{
			name:  "several failures",
			input: envelope{Name: "ok", Retries: 11, Mode: "batch"},
			details: map[string]string{
				"retries": "Must be less than or equal to 10",
				"mode":    "Must be one of: sync, async",
			},
		},
		{
			name:  "size bounds",
			input: envelope{Name: "ok", SagaID: "saga-123456", Tags: []string{"a"}},
			details: map[string]string{
				"saga_id": "Must be at most 8 characters long",
				"tags":    "Must contain at least 2 items",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := val.ValidateSchema(tc.input)
			if tc.details == nil {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			e := errx.AsErrorX(err)
			assert.Equal(t, val.CodeValidationFailed, e.Code())
			assert.Equal(t, errx.T_Validation, e.Type())
			for field, desc := range tc.details {
				assert.Equal(t, desc, e.Details()[field])
			}
			assert.Len(t, e.Details(), len(tc.details))
		})
	}
}

func TestIsMessageName(t *testing.T) {
	for name, want := range map[string]bool{
		"Hotel.bookRoom":     true,
		"bookRoom":           true,
		"Saga.hotel.booking": true,
		"":                   false,
		"Hotel.":             false,
		".bookRoom":          false,
		"Hotel book":         false,
	} {
		assert.Equal(t, want, val.IsMessageName(name), name)
	}
}
