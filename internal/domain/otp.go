package domain

import "time"

// OTPKind scopes a code to the action it proves.
type OTPKind string

const (
	OTPLogin            OTPKind = "login"
	OTPVerification     OTPKind = "verification"
	OTPCollection       OTPKind = "collection"
	OTPDeliverySender   OTPKind = "delivery_sender"
	OTPDeliveryReceiver OTPKind = "delivery_receiver"
)

// UserOTP is the durable audit record; live verification goes through the
// TTL'd cache entry, not this row.
type UserOTP struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Code       string    `json:"otp_code"`
	Purpose    OTPKind   `json:"otp_purpose"`
	Scope      string    `json:"scope,omitempty"` // cluster/delivery the code is bound to
	IssuedAt   time.Time `json:"issued_at"`
	ValidUntil time.Time `json:"valid_until"`
	IsVerified bool      `json:"is_verified"`
	IsActive   bool      `json:"is_active"`
	UpdatedAt  time.Time `json:"updated_at"`
}
