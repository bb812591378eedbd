package domain

import "time"

// VerificationTypeTwoFactor is the sort key of the two-factor item in the user_verifications table.
const VerificationTypeTwoFactor = "two_factor"

// UserVerification stores a one-time code.
// PK: user_id, SK: type. ExpiresAt is a Unix timestamp in milliseconds. It is
// not a table TTL: an expired item must stay until the gate consumes it.
type UserVerification struct {
	UserID    string `json:"user_id" dynamodbav:"user_id"`
	Type      string `json:"type" dynamodbav:"type"`
	Code      string `json:"code" dynamodbav:"code"`
	ExpiresAt int64  `json:"expires_at" dynamodbav:"expires_at"`
}

// VerificationState is the two-factor state of an identity: NoCode or PendingCode.
// Use a type switch; there are no other implementations.
type VerificationState interface {
	isVerificationState()
}

// NoCode means no code is outstanding.
type NoCode struct{}

// PendingCode is an issued, not yet consumed code.
type PendingCode struct {
	Code      string
	ExpiresAt time.Time
}

func (NoCode) isVerificationState()      {}
func (PendingCode) isVerificationState() {}

// ExpiredAt reports whether the code can no longer be used at now.
func (p PendingCode) ExpiredAt(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// StateFromVerification converts a stored item into a state. A nil item is NoCode.
func StateFromVerification(v *UserVerification) VerificationState {
	if v == nil || v.Code == "" {
		return NoCode{}
	}
	return PendingCode{Code: v.Code, ExpiresAt: time.UnixMilli(v.ExpiresAt).UTC()}
}
