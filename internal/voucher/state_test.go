package voucher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "vouchercore/pkg/domain-errors"
)

func TestValidateTransition(t *testing.T) {
	t.Run("legal transitions", func(t *testing.T) {
		legal := []struct{ from, to State }{
			{StateDraft, StatePublished},
			{StatePublished, StateClaimed},
			{StatePublished, StateExpired},
			{StateClaimed, StateRedeemed},
			{StateClaimed, StateExpired},
			{StateRedeemed, StateExpired},
		}
		for _, tc := range legal {
			assert.NoError(t, ValidateTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
		}
	})

	t.Run("full lifecycle succeeds transition by transition", func(t *testing.T) {
		sequence := []State{StateDraft, StatePublished, StateClaimed, StateRedeemed}
		for i := 0; i < len(sequence)-1; i++ {
			assert.NoError(t, ValidateTransition(sequence[i], sequence[i+1]))
		}
	})

	t.Run("draft cannot jump to redeemed", func(t *testing.T) {
		err := ValidateTransition(StateDraft, StateRedeemed)
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeValidation))
		assert.Contains(t, err.Error(), "draft")
		assert.Contains(t, err.Error(), "redeemed")
		assert.Contains(t, err.Error(), "published")
	})

	t.Run("expired is terminal", func(t *testing.T) {
		for _, to := range []State{StateDraft, StatePublished, StateClaimed, StateRedeemed, StateExpired} {
			err := ValidateTransition(StateExpired, to)
			assert.True(t, dErrors.Is(err, dErrors.CodeValidation), "expired -> %s must fail", to)
		}
	})

	t.Run("self transitions are illegal", func(t *testing.T) {
		for _, state := range []State{StateDraft, StatePublished, StateClaimed, StateRedeemed} {
			assert.Error(t, ValidateTransition(state, state))
		}
	})

	t.Run("unknown states are rejected, not silently empty", func(t *testing.T) {
		err := ValidateTransition(State("archived"), StateRedeemed)
		assert.True(t, dErrors.Is(err, dErrors.CodeInvariantViolation))

		err = ValidateTransition(StateClaimed, State("finalized"))
		assert.True(t, dErrors.Is(err, dErrors.CodeInvariantViolation))
	})
}

func TestParseState(t *testing.T) {
	t.Run("accepts the five known states case-insensitively", func(t *testing.T) {
		for raw, want := range map[string]State{
			"draft":     StateDraft,
			"Published": StatePublished,
			"CLAIMED":   StateClaimed,
			"redeemed":  StateRedeemed,
			"expired":   StateExpired,
		} {
			got, err := ParseState(raw)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	})

	t.Run("rejects anything else", func(t *testing.T) {
		for _, raw := range []string{"", "void", "claimed ", "redeemable"} {
			_, err := ParseState(raw)
			assert.Error(t, err, "raw=%q", raw)
		}
	})
}

func TestReconstruct(t *testing.T) {
	valid := Fields{ID: "v-1", ProviderID: "p-1", State: "claimed", RedemptionCount: 2}

	t.Run("valid fields load", func(t *testing.T) {
		v, err := Reconstruct(valid)
		require.NoError(t, err)
		assert.Equal(t, "v-1", v.ID)
		assert.Equal(t, StateClaimed, v.State)
		assert.Equal(t, 2, v.RedemptionCount)
	})

	t.Run("every load validates invariants", func(t *testing.T) {
		missing := valid
		missing.ID = ""
		_, err := Reconstruct(missing)
		assert.True(t, dErrors.Is(err, dErrors.CodeInvariantViolation))

		noProvider := valid
		noProvider.ProviderID = ""
		_, err = Reconstruct(noProvider)
		assert.True(t, dErrors.Is(err, dErrors.CodeInvariantViolation))

		negative := valid
		negative.RedemptionCount = -1
		_, err = Reconstruct(negative)
		assert.True(t, dErrors.Is(err, dErrors.CodeInvariantViolation))

		badState := valid
		badState.State = "limbo"
		_, err = Reconstruct(badState)
		assert.Error(t, err)
	})
}
