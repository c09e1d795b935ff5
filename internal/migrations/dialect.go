package migrations

import (
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// IsPostgreSQL reports whether the migration runs against PostgreSQL.
// Constraint additions are gated on this; SQLite cannot alter constraints
// after table creation.
func IsPostgreSQL(db *bun.DB) bool {
	return db.Dialect().Name() == dialect.PG
}

// IsSQLite reports whether the migration runs against SQLite.
func IsSQLite(db *bun.DB) bool {
	return db.Dialect().Name() == dialect.SQLite
}
