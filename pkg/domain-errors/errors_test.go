package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodedErrors(t *testing.T) {
	t.Run("new carries its code", func(t *testing.T) {
		err := New(CodeNotFound, "voucher not found")
		assert.True(t, Is(err, CodeNotFound))
		assert.False(t, Is(err, CodeConflict))
		assert.Equal(t, CodeNotFound, HasCode(err))
	})

	t.Run("wrap preserves the cause chain", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Wrap(cause, CodeInternal, "load voucher")

		assert.True(t, errors.Is(err, cause))
		assert.True(t, Is(err, CodeInternal))
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("is sees through further wrapping", func(t *testing.T) {
		inner := New(CodeExpired, "token has expired")
		outer := fmt.Errorf("verify credential: %w", inner)
		assert.True(t, Is(outer, CodeExpired))
	})

	t.Run("non-domain errors report internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, HasCode(errors.New("boom")))
		assert.False(t, Is(errors.New("boom"), CodeInternal))
	})

	t.Run("meta accumulates context", func(t *testing.T) {
		err := New(CodeConflict, "redemption lost to a concurrent attempt").
			WithMeta("voucher_id", "v-1").
			WithMeta("operation", "Redeem")
		assert.Equal(t, "v-1", err.Meta["voucher_id"])
		assert.Equal(t, "Redeem", err.Meta["operation"])
	})
}
