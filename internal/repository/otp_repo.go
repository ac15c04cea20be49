package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rajpalom13/move-meal-sub001/internal/domain"
)

// OTPRepo is the durable audit trail for issued codes. Live verification goes
// through Redis; these rows record issuance and outcome.
type OTPRepo struct {
	db *pgxpool.Pool
}

func NewOTPRepo(db *pgxpool.Pool) *OTPRepo {
	return &OTPRepo{db: db}
}

func (r *OTPRepo) Create(ctx context.Context, o *domain.UserOTP) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO user_otps (id, user_id, code, purpose, scope, issued_at, valid_until, is_verified, is_active, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, o.ID, o.UserID, o.Code, o.Purpose, o.Scope, o.IssuedAt, o.ValidUntil, o.IsVerified, o.IsActive, o.UpdatedAt)
	return err
}

// DeactivatePrior retires any still-active codes for the (user, purpose,
// scope) triple before a new one is issued.
func (r *OTPRepo) DeactivatePrior(ctx context.Context, userID string, purpose domain.OTPKind, scope string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE user_otps SET is_active=FALSE, updated_at=NOW()
		WHERE user_id=$1 AND purpose=$2 AND scope=$3 AND is_active=TRUE
	`, userID, purpose, scope)
	return err
}

// MarkVerified flips the matching active row after a successful live check.
func (r *OTPRepo) MarkVerified(ctx context.Context, userID string, purpose domain.OTPKind, scope, code string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE user_otps SET is_verified=TRUE, is_active=FALSE, updated_at=NOW()
		WHERE user_id=$1 AND purpose=$2 AND scope=$3 AND code=$4 AND is_active=TRUE
	`, userID, purpose, scope, code)
	return err
}

// ExpireStale sweeps codes whose validity lapsed without verification.
func (r *OTPRepo) ExpireStale(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE user_otps SET is_active=FALSE, updated_at=NOW()
		WHERE is_active=TRUE AND valid_until < $1
	`, time.Now())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
