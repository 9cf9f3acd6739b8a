package redemption

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vouchercore/internal/fraud"
	historyStore "vouchercore/internal/fraud/store/history"
	trailStore "vouchercore/internal/fraud/store/trail"
	"vouchercore/internal/shortcode"
	cacheStore "vouchercore/internal/shortcode/store/cache"
	staticStore "vouchercore/internal/shortcode/store/static"
	"vouchercore/internal/token"
	"vouchercore/internal/voucher"
	voucherStore "vouchercore/internal/voucher/store"
	dErrors "vouchercore/pkg/domain-errors"
	"vouchercore/pkg/platform/sentinel"
)

// =============================================================================
// Redemption Orchestrator Test Suite
// =============================================================================
// Wires real services over memory stores; only the external voucher store is
// substituted to provoke CAS races.

type RedemptionSuite struct {
	suite.Suite
	now      time.Time
	tokens   *token.Service
	codes    *shortcode.Service
	vouchers *voucherStore.MemoryStore
	service  *Service
}

func TestRedemptionSuite(t *testing.T) {
	suite.Run(t, new(RedemptionSuite))
}

func (s *RedemptionSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return s.now }

	privPEM, pubPEM := generateKeyPair(s.T())
	var err error
	s.tokens, err = token.New(privPEM, pubPEM, token.WithClock(clock))
	s.Require().NoError(err)

	s.codes, err = shortcode.New(
		cacheStore.NewMemoryStore(cacheStore.WithClock(clock)),
		staticStore.NewMemoryStore(),
		shortcode.DefaultConfig(),
		shortcode.WithClock(clock),
	)
	s.Require().NoError(err)

	engine, err := fraud.New(
		historyStore.NewMemoryStore(historyStore.WithClock(clock)),
		trailStore.NewMemoryStore(fraud.DefaultConfig().TrailCap),
		fraud.DefaultConfig(),
		fraud.WithClock(clock),
	)
	s.Require().NoError(err)

	s.vouchers = voucherStore.NewMemoryStore()

	s.service, err = New(s.tokens, s.codes, engine, s.vouchers, WithClock(clock))
	s.Require().NoError(err)
}

func (s *RedemptionSuite) seedVoucher(id string, state voucher.State) {
	s.vouchers.Put(&voucher.Voucher{ID: id, ProviderID: "p-1", State: state})
}

// =============================================================================
// Token Credential Tests
// =============================================================================

func (s *RedemptionSuite) TestRedeemWithToken() {
	ctx := context.Background()

	s.Run("claimed voucher redeems", func() {
		s.seedVoucher("v-1", voucher.StateClaimed)
		tok, err := s.tokens.Generate("v-1", "c-1", 5*time.Minute)
		s.Require().NoError(err)

		result, err := s.service.Redeem(ctx, tok, "c-1", nil)
		s.Require().NoError(err)
		s.Equal(voucher.StateRedeemed, result.Voucher.State)
		s.Equal(1, result.Voucher.RedemptionCount)

		stored, err := s.vouchers.GetVoucher(ctx, "v-1")
		s.Require().NoError(err)
		s.Equal(voucher.StateRedeemed, stored.State)
		s.Equal(1, stored.RedemptionCount)
	})

	s.Run("fraud result is always attached", func() {
		s.seedVoucher("v-2", voucher.StateClaimed)
		tok, err := s.tokens.Generate("v-2", "c-2", 5*time.Minute)
		s.Require().NoError(err)

		result, err := s.service.Redeem(ctx, tok, "c-2", nil)
		s.Require().NoError(err)
		s.Require().NotNil(result.Fraud)
		s.True(result.Fraud.Allowed)
	})

	s.Run("expired token fails fast", func() {
		s.seedVoucher("v-3", voucher.StateClaimed)
		tok, err := s.tokens.Generate("v-3", "c-3", time.Second)
		s.Require().NoError(err)

		s.now = s.now.Add(2 * time.Second)
		_, err = s.service.Redeem(ctx, tok, "c-3", nil)
		s.True(dErrors.Is(err, dErrors.CodeExpired))

		stored, err := s.vouchers.GetVoucher(ctx, "v-3")
		s.Require().NoError(err)
		s.Equal(voucher.StateClaimed, stored.State, "failed resolution must not touch the voucher")
	})

	s.Run("token bound to a different customer is rejected", func() {
		s.seedVoucher("v-4", voucher.StateClaimed)
		tok, err := s.tokens.Generate("v-4", "c-owner", 5*time.Minute)
		s.Require().NoError(err)

		_, err = s.service.Redeem(ctx, tok, "c-intruder", nil)
		s.True(dErrors.Is(err, dErrors.CodeUnauthorized))
	})
}

// =============================================================================
// Short Code Credential Tests
// =============================================================================

func (s *RedemptionSuite) TestRedeemWithShortCode() {
	ctx := context.Background()

	s.Run("dynamic code redeems and is invalidated", func() {
		s.seedVoucher("v-1", voucher.StateClaimed)
		code, err := s.codes.Generate(ctx, "v-1", "c-1", shortcode.KindDynamic)
		s.Require().NoError(err)

		result, err := s.service.Redeem(ctx, code, "c-1", nil)
		s.Require().NoError(err)
		s.Equal(voucher.StateRedeemed, result.Voucher.State)

		_, err = s.codes.Lookup(ctx, code)
		s.True(dErrors.Is(err, dErrors.CodeNotFound), "dynamic code must be invalidated after use")
	})

	s.Run("dynamic code bound to another customer is rejected", func() {
		s.seedVoucher("v-2", voucher.StateClaimed)
		code, err := s.codes.Generate(ctx, "v-2", "c-owner", shortcode.KindDynamic)
		s.Require().NoError(err)

		_, err = s.service.Redeem(ctx, code, "c-intruder", nil)
		s.True(dErrors.Is(err, dErrors.CodeUnauthorized))
	})

	s.Run("static code redeems for any customer and survives", func() {
		s.seedVoucher("v-3", voucher.StateClaimed)
		code, err := s.codes.GenerateStatic(ctx, "v-3", "CAMPAIGN1")
		s.Require().NoError(err)

		result, err := s.service.Redeem(ctx, code, "c-anyone", nil)
		s.Require().NoError(err)
		s.Equal(voucher.StateRedeemed, result.Voucher.State)

		_, err = s.codes.Lookup(ctx, code)
		s.NoError(err, "static codes are read many times until explicitly revoked")
	})

	s.Run("unknown code", func() {
		_, err := s.service.Redeem(ctx, "NOSUCH99", "c-1", nil)
		s.True(dErrors.Is(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// Lifecycle Enforcement Tests
// =============================================================================

func (s *RedemptionSuite) TestLifecycleEnforcement() {
	ctx := context.Background()

	s.Run("draft voucher cannot redeem", func() {
		s.seedVoucher("v-1", voucher.StateDraft)
		tok, err := s.tokens.Generate("v-1", "c-1", 5*time.Minute)
		s.Require().NoError(err)

		_, err = s.service.Redeem(ctx, tok, "c-1", nil)
		s.True(dErrors.Is(err, dErrors.CodeValidation))
	})

	s.Run("already redeemed voucher cannot redeem again", func() {
		s.seedVoucher("v-2", voucher.StateRedeemed)
		tok, err := s.tokens.Generate("v-2", "c-1", 5*time.Minute)
		s.Require().NoError(err)

		_, err = s.service.Redeem(ctx, tok, "c-1", nil)
		s.True(dErrors.Is(err, dErrors.CodeValidation))
	})

	s.Run("expired voucher is terminal", func() {
		s.seedVoucher("v-3", voucher.StateExpired)
		tok, err := s.tokens.Generate("v-3", "c-1", 5*time.Minute)
		s.Require().NoError(err)

		_, err = s.service.Redeem(ctx, tok, "c-1", nil)
		s.True(dErrors.Is(err, dErrors.CodeValidation))
	})

	s.Run("missing voucher", func() {
		tok, err := s.tokens.Generate("v-ghost", "c-1", 5*time.Minute)
		s.Require().NoError(err)

		_, err = s.service.Redeem(ctx, tok, "c-1", nil)
		s.True(dErrors.Is(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// Concurrency Tests
// =============================================================================

// conflictStore simulates a CAS race: the first SetState loses to a
// concurrent redemption.
type conflictStore struct {
	*voucherStore.MemoryStore
}

func (c *conflictStore) SetState(context.Context, string, voucher.State, voucher.State) error {
	return sentinel.ErrConflict
}

func (s *RedemptionSuite) TestConcurrentRedemption() {
	ctx := context.Background()

	s.seedVoucher("v-1", voucher.StateClaimed)
	racing, err := New(s.tokens, s.codes, s.mustEngine(), &conflictStore{s.vouchers},
		WithClock(func() time.Time { return s.now }))
	s.Require().NoError(err)

	tok, err := s.tokens.Generate("v-1", "c-1", 5*time.Minute)
	s.Require().NoError(err)

	_, err = racing.Redeem(ctx, tok, "c-1", nil)
	s.True(dErrors.Is(err, dErrors.CodeConflict), "a lost CAS race maps to Conflict")
}

func (s *RedemptionSuite) mustEngine() *fraud.Engine {
	engine, err := fraud.New(
		historyStore.NewMemoryStore(),
		trailStore.NewMemoryStore(fraud.DefaultConfig().TrailCap),
		fraud.DefaultConfig(),
	)
	s.Require().NoError(err)
	return engine
}

// =============================================================================
// Input Validation Tests
// =============================================================================

func (s *RedemptionSuite) TestInputValidation() {
	ctx := context.Background()

	s.Run("empty credential", func() {
		_, err := s.service.Redeem(ctx, "", "c-1", nil)
		s.True(dErrors.Is(err, dErrors.CodeBadRequest))
	})

	s.Run("empty customer", func() {
		_, err := s.service.Redeem(ctx, "SOMECODE", "", nil)
		s.True(dErrors.Is(err, dErrors.CodeBadRequest))
	})
}

// =============================================================================
// Credential Classification Tests
// =============================================================================

func TestIsTokenShaped(t *testing.T) {
	cases := map[string]bool{
		"aaa.bbb.ccc": true,
		"ABCD2345":    false,
		"a.b":         false,
		"a.b.c.d":     false,
		"..":          false,
		"a..c":        false,
	}
	for credential, want := range cases {
		if got := isTokenShaped(credential); got != want {
			t.Errorf("isTokenShaped(%q) = %v, want %v", credential, got, want)
		}
	}
}

// =============================================================================
// Helpers
// =============================================================================

func generateKeyPair(t *testing.T) (privPEM, pubPEM []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	privDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal private key: %v", err)
	}
	privPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privDER})

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pubPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	return privPEM, pubPEM
}
