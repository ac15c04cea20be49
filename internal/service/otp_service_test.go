package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajpalom13/move-meal-sub001/internal/domain"
	"github.com/rajpalom13/move-meal-sub001/pkg/id"
	xerrors "github.com/rajpalom13/move-meal-sub001/pkg/xerrors"
)

func newTestSnowflake(t *testing.T) *id.Snowflake {
	t.Helper()
	sf, err := id.NewSnowflake(1)
	require.NoError(t, err)
	return sf
}

func newTestOTPService(t *testing.T, limiter IssuanceLimiter) (*OTPService, *fakeCache, *fakeAudit) {
	t.Helper()
	cache := newFakeCache()
	audit := &fakeAudit{}
	svc := NewOTPService(cache, audit, limiter, newTestSnowflake(t), 10*time.Minute)
	return svc, cache, audit
}

func TestOTPIssueAndVerify(t *testing.T) {
	svc, _, audit := newTestOTPService(t, nil)
	ctx := context.Background()

	code, err := svc.IssueSystem(ctx, "u1", domain.OTPCollection, "fc1")
	require.NoError(t, err)
	require.Len(t, code, 6)

	ok, err := svc.Verify(ctx, "u1", code, domain.OTPCollection, "fc1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, audit.created, 1)
	assert.Equal(t, "u1", audit.created[0].UserID)
	assert.Equal(t, "fc1", audit.created[0].Scope)
	assert.Len(t, audit.verified, 1)
}

func TestOTPVerifyIsSingleUse(t *testing.T) {
	svc, _, _ := newTestOTPService(t, nil)
	ctx := context.Background()

	code, err := svc.IssueSystem(ctx, "u1", domain.OTPCollection, "fc1")
	require.NoError(t, err)

	ok, err := svc.Verify(ctx, "u1", code, domain.OTPCollection, "fc1")
	require.NoError(t, err)
	require.True(t, ok)

	// the code was burned on success
	ok, err = svc.Verify(ctx, "u1", code, domain.OTPCollection, "fc1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOTPWrongGuessLeavesCodeIntact(t *testing.T) {
	svc, _, _ := newTestOTPService(t, nil)
	ctx := context.Background()

	code, err := svc.IssueSystem(ctx, "u1", domain.OTPCollection, "fc1")
	require.NoError(t, err)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	ok, err := svc.Verify(ctx, "u1", wrong, domain.OTPCollection, "fc1")
	require.NoError(t, err)
	require.False(t, ok)

	// the real code still works after a failed guess
	ok, err = svc.Verify(ctx, "u1", code, domain.OTPCollection, "fc1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOTPReissueInvalidatesPrior(t *testing.T) {
	svc, _, _ := newTestOTPService(t, nil)
	ctx := context.Background()

	first, err := svc.IssueSystem(ctx, "u1", domain.OTPCollection, "fc1")
	require.NoError(t, err)
	second, err := svc.IssueSystem(ctx, "u1", domain.OTPCollection, "fc1")
	require.NoError(t, err)

	if first != second {
		ok, err := svc.Verify(ctx, "u1", first, domain.OTPCollection, "fc1")
		require.NoError(t, err)
		assert.False(t, ok, "first code must be dead after reissue")
	}

	ok, err := svc.Verify(ctx, "u1", second, domain.OTPCollection, "fc1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOTPScopesAreIndependent(t *testing.T) {
	svc, _, _ := newTestOTPService(t, nil)
	ctx := context.Background()

	code, err := svc.IssueSystem(ctx, "u1", domain.OTPCollection, "fc1")
	require.NoError(t, err)

	// same user, same kind, different cluster
	ok, err := svc.Verify(ctx, "u1", code, domain.OTPCollection, "fc2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOTPIssueRespectsLimiter(t *testing.T) {
	limiter := &fakeLimiter{err: xerrors.ErrTooManyOTPRequests}
	svc, _, _ := newTestOTPService(t, limiter)

	_, err := svc.Issue(context.Background(), "u1", domain.OTPLogin, "")
	assert.ErrorIs(t, err, xerrors.ErrTooManyOTPRequests)
	assert.Equal(t, 1, limiter.calls)
}

func TestOTPSystemIssueBypassesLimiter(t *testing.T) {
	limiter := &fakeLimiter{err: xerrors.ErrTooManyOTPRequests}
	svc, _, _ := newTestOTPService(t, limiter)

	_, err := svc.IssueSystem(context.Background(), "u1", domain.OTPCollection, "fc1")
	require.NoError(t, err)
	assert.Zero(t, limiter.calls)
}

func TestOTPExpiredCodeNeverVerifies(t *testing.T) {
	svc, cache, audit := newTestOTPService(t, nil)
	ctx := context.Background()

	code, err := svc.IssueSystem(ctx, "u1", domain.OTPCollection, "fc1")
	require.NoError(t, err)

	// past the 10 minute TTL the stored code is gone, used or not
	cache.advance(10*time.Minute + time.Second)

	ok, err := svc.Verify(ctx, "u1", code, domain.OTPCollection, "fc1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, audit.verified)

	// a fresh issuance after expiry works as usual
	code, err = svc.IssueSystem(ctx, "u1", domain.OTPCollection, "fc1")
	require.NoError(t, err)
	ok, err = svc.Verify(ctx, "u1", code, domain.OTPCollection, "fc1")
	require.NoError(t, err)
	assert.True(t, ok)
}
