package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"wrapped not found", fmt.Errorf("user %q: %w", "x", ErrNotFound), KindNotFound},
		{"invalid code", ErrInvalidOrExpiredCode, KindInvalidOrExpiredCode},
		{"delivery", fmt.Errorf("enqueue: %w", ErrDeliveryFailed), KindDeliveryFailed},
		{"validation", fmt.Errorf("field 'Code' failed 'len': %w", ErrValidation), KindValidation},
		{"conflict", ErrConflict, KindConflict},
		{"config", fmt.Errorf("JWT_SECRET: %w", ErrConfig), KindConfig},
		{"unknown", errors.New("boom"), KindInternal},
		{"nil", nil, KindInternal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KindOf(tc.err))
		})
	}
}
