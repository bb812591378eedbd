package domain

import "time"

type Session struct {
	SessionID string    `json:"id" dynamodbav:"session_id"`
	UserID    string    `json:"user_id" dynamodbav:"user_id"`
	Enable    bool      `json:"enable" dynamodbav:"enable"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated" dynamodbav:"updated_at"`
	User      *User     `json:"user,omitempty" dynamodbav:"-"`

	// TwoFactorVerified is set once a code was verified from this session.
	// A session without it never passes the two-factor guard.
	TwoFactorVerified bool `json:"two_factor_verified" dynamodbav:"two_factor_verified"`
}

// Subject identifies the authenticated caller of a two-factor operation.
type Subject struct {
	UserID    string
	SessionID string

	// Verified mirrors Session.TwoFactorVerified as loaded by the auth layer.
	Verified bool
}
