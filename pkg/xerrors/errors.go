package xerrors

import (
	"errors"
	"fmt"
)

// Taxonomy roots. Every domain error wraps exactly one of these so the
// transport layer can map with errors.Is instead of enumerating sentinels.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal server error")
)

// Clusters
var (
	ErrClusterNotFound    = fmt.Errorf("%w: cluster", ErrNotFound)
	ErrMemberNotFound     = fmt.Errorf("%w: member", ErrNotFound)
	ErrClusterFull        = fmt.Errorf("%w: cluster is full", ErrConflict)
	ErrClusterNotJoinable = fmt.Errorf("%w: cluster is not open for joining", ErrConflict)
	ErrAlreadyMember      = fmt.Errorf("%w: already a member", ErrConflict)
	ErrInvalidTransition  = fmt.Errorf("%w: invalid status transition", ErrConflict)
	ErrNotEditable        = fmt.Errorf("%w: cluster is not in an editable state", ErrConflict)
	ErrCreatorCannotLeave = fmt.Errorf("%w: creator cannot leave while other members remain", ErrForbidden)
	ErrNotCreator         = fmt.Errorf("%w: only the cluster creator may do this", ErrForbidden)
	ErrFemaleOnly         = fmt.Errorf("%w: this ride is restricted to female members", ErrForbidden)
)

// Verification / OTP
var (
	ErrInvalidOTP         = fmt.Errorf("%w: invalid or expired otp", ErrForbidden)
	ErrTooManyOTPRequests = fmt.Errorf("%w: too many otp requests", ErrConflict)
	ErrAlreadyCollected   = fmt.Errorf("%w: order already collected", ErrConflict)
)

// Deliveries
var (
	ErrDeliveryNotFound = fmt.Errorf("%w: delivery", ErrNotFound)
	ErrDeliveryStarted  = fmt.Errorf("%w: delivery already started", ErrConflict)
)

// Token
var (
	ErrInvalidToken = fmt.Errorf("%w: invalid token", ErrUnauthorized)
	ErrExpiredToken = fmt.Errorf("%w: expired token", ErrUnauthorized)
)

// Validation builds a field-level validation error.
func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
