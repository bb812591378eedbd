package dynamo

// Attribute names used in update and condition expressions.
const (
	fieldEnable    = "enable"
	fieldUpdatedAt = "updated_at"
	fieldCode      = "code"
	fieldVerified  = "two_factor_verified"

	fieldPasswordHash = "password_hash"
)
