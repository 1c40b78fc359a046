package db

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DemoSeedFile is the migration that loads the demo company and masters.
const DemoSeedFile = "002_seed_demo.sql"

// resetTables lists every application table. Order does not matter under CASCADE.
const resetTables = `inventory_movements, inventory_items, items, warehouses,
	document_lines, documents, journal_lines, journal_entries, document_sequences,
	document_prefixes, parties, account_rules, accounts, companies`

// ResetDemo wipes all application data and reloads the demo seed in one
// transaction. Sequences restart, so the next document of every prefix is 1.
// Use it when the demo data has been damaged; it never runs implicitly.
func ResetDemo(ctx context.Context, pool *pgxpool.Pool, files fs.FS, log zerolog.Logger) error {
	seed, err := fs.ReadFile(files, DemoSeedFile)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", DemoSeedFile, err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "TRUNCATE TABLE "+resetTables+" RESTART IDENTITY CASCADE"); err != nil {
		return fmt.Errorf("failed to clear tables: %w", err)
	}
	if _, err := tx.Exec(ctx, string(seed)); err != nil {
		return fmt.Errorf("failed to load seed: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}

	log.Warn().Str("seed", DemoSeedFile).Msg("demo data restored")
	return nil
}
