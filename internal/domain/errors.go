package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")

	// ErrAllocationFailed means no unique slug could be committed for this request.
	// The request may be resubmitted.
	ErrAllocationFailed = errors.New("could not create unique identifier, try again")
	// ErrSlugConflict is a commit-time violation of the (type, slug) unique index.
	ErrSlugConflict = errors.New("slug already in use")
	// ErrLockTimeout is returned when a row or advisory lock could not be acquired in time.
	ErrLockTimeout = errors.New("lock timeout")

	// ErrTransportFailure is a delivery failure of the notifier. The issued code stays valid.
	ErrTransportFailure = errors.New("could not send code, try later")
)
