package formsync

import "github.com/google/uuid"

// KeyGenerator mints the per-questionnaire session key used as the
// idempotency key of the remote create.
// Implemented by UUIDv7Generator (production) and testutil.FixedKeyGenerator (tests).
type KeyGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 session keys.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
