// Package migrations holds the versioned schema migrations applied by the
// db subcommands. Each migration registers itself in init; files are named
// by timestamp so the registry applies them in order.
package migrations

import "github.com/uptrace/bun/migrate"

// Migrations is the registry every migration file registers into.
var Migrations = migrate.NewMigrations()
