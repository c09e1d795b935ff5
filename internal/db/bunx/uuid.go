package bunx

import "github.com/google/uuid"

// NewUUIDv7 generates a time-ordered UUIDv7 string for database primary keys.
// Time ordering keeps indexes append-mostly and works the same on PostgreSQL
// and SQLite (no gen_random_uuid() dependency).
//
// Panics only on catastrophic entropy failure, in which case nothing else in
// the process could generate IDs either.
func NewUUIDv7() string {
	return uuid.Must(uuid.NewV7()).String()
}
