package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rajpalom13/move-meal-sub001/internal/domain"
	"github.com/rajpalom13/move-meal-sub001/pkg/id"
)

const otpNamespace = "otp"

// OTPService issues and verifies single-use codes. The live copy lives in the
// cache under a TTL; issuing a new code overwrites the key, so one active code
// per (user, kind, scope) holds by construction. An audit row is kept in
// Postgres for every issuance.
type OTPService struct {
	cache   CodeCache
	audit   OTPAudit
	limiter IssuanceLimiter
	sf      *id.Snowflake
	ttl     time.Duration
}

func NewOTPService(cache CodeCache, audit OTPAudit, limiter IssuanceLimiter, sf *id.Snowflake, ttl time.Duration) *OTPService {
	return &OTPService{cache: cache, audit: audit, limiter: limiter, sf: sf, ttl: ttl}
}

func otpKey(userID string, kind domain.OTPKind, scope string) string {
	return fmt.Sprintf("%s:%s:%s", kind, scope, userID)
}

// Issue creates a code on a user-triggered path, subject to rate limiting.
func (s *OTPService) Issue(ctx context.Context, userID string, kind domain.OTPKind, scope string) (string, error) {
	if s.limiter != nil {
		if err := s.limiter.CanRequest(ctx, userID, string(kind)); err != nil {
			return "", err
		}
	}
	return s.issue(ctx, userID, kind, scope)
}

// IssueSystem creates a code on a lifecycle-triggered path (collection and
// delivery handoffs), bypassing the request limiter.
func (s *OTPService) IssueSystem(ctx context.Context, userID string, kind domain.OTPKind, scope string) (string, error) {
	return s.issue(ctx, userID, kind, scope)
}

func (s *OTPService) issue(ctx context.Context, userID string, kind domain.OTPKind, scope string) (string, error) {
	code := randomCode(6)
	key := otpKey(userID, kind, scope)

	if err := s.cache.Set(ctx, otpNamespace, key, code, s.ttl); err != nil {
		return "", err
	}
	log.Printf("Stored OTP | Key=%s | ExpiresIn=%s", key, s.ttl.String())

	if s.audit != nil {
		now := time.Now()
		if err := s.audit.DeactivatePrior(ctx, userID, kind, scope); err != nil {
			log.Printf("Failed to deactivate prior OTP rows: %v", err)
		}
		if err := s.audit.Create(ctx, &domain.UserOTP{
			ID:         s.sf.Generate(),
			UserID:     userID,
			Code:       code,
			Purpose:    kind,
			Scope:      scope,
			IssuedAt:   now,
			ValidUntil: now.Add(s.ttl),
			IsActive:   true,
			UpdatedAt:  now,
		}); err != nil {
			log.Printf("Failed to insert OTP audit row: %v", err)
		}
	}
	return code, nil
}

// Verify burns the code on success. A wrong guess leaves the stored code
// intact; a correct one claims it atomically (GetDel), so a second verify of
// the same code always fails.
func (s *OTPService) Verify(ctx context.Context, userID, code string, kind domain.OTPKind, scope string) (bool, error) {
	key := otpKey(userID, kind, scope)

	val, err := s.cache.Get(ctx, otpNamespace, key)
	if errors.Is(err, redis.Nil) {
		log.Printf("OTP not found or expired | Key=%s", key)
		return false, nil
	} else if err != nil {
		return false, err
	}
	if val != code {
		log.Printf("OTP verification failed | Key=%s", key)
		return false, nil
	}

	claimed, err := s.cache.GetDel(ctx, otpNamespace, key)
	if errors.Is(err, redis.Nil) || (err == nil && claimed != code) {
		// lost a race with another verify or a reissue
		return false, nil
	} else if err != nil {
		return false, err
	}

	if s.audit != nil {
		if err := s.audit.MarkVerified(ctx, userID, kind, scope, code); err != nil {
			log.Printf("OTP audit verify update failed: %v", err)
		}
	}
	log.Printf("OTP verified | Key=%s", key)
	return true, nil
}

func randomCode(digits int) string {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf("%0*d", digits, n.Int64())
}
