package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. ULIDs sort by creation time, which keeps
// record primary keys and session partition keys roughly insertion-ordered.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
