// Package migrations embeds the campus schema and applies it with goose.
// The binary carries its own migrations, so a fresh deploy needs nothing
// but a writable database path.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var schemaFS embed.FS

// Run brings db up to the latest schema version. Safe to call on every
// startup; already-applied migrations are skipped.
func Run(db *sql.DB) error {
	goose.SetBaseFS(schemaFS)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
