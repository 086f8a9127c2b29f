package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 4

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS users (
					id TEXT PRIMARY KEY,
					email TEXT UNIQUE NOT NULL,
					password_hash TEXT NOT NULL,
					business_name TEXT,
					tax_id TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					date DATETIME NOT NULL,
					description TEXT NOT NULL,
					amount TEXT NOT NULL,
					currency TEXT NOT NULL DEFAULT 'USD',
					merchant TEXT,
					category TEXT,
					reasoning TEXT,
					confidence REAL DEFAULT 0,
					is_business INTEGER NOT NULL DEFAULT 0,
					manually_overridden INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (user_id) REFERENCES users(id)
				)`,
				`CREATE INDEX idx_transactions_user ON transactions(user_id)`,
				`CREATE INDEX idx_transactions_date ON transactions(date)`,

				`CREATE TABLE IF NOT EXISTS classification_records (
					id TEXT PRIMARY KEY,
					transaction_id TEXT NOT NULL,
					class TEXT NOT NULL,
					reasoning TEXT,
					confidence REAL DEFAULT 0,
					user_override INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (transaction_id) REFERENCES transactions(id)
				)`,
				`CREATE INDEX idx_classification_records_transaction ON classification_records(transaction_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Index business flag for statistics queries",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_transactions_user_business ON transactions(user_id, is_business)`)
			return err
		},
	},
	{
		Version:     3,
		Description: "Index user email lookups",
		Up: func(tx *sql.Tx) error {
			// UNIQUE already indexes email; this covers case-insensitive login.
			_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_users_email_nocase ON users(email COLLATE NOCASE)`)
			return err
		},
	},
	{
		Version:     4,
		Description: "Content hash for duplicate upload detection",
		Up: func(tx *sql.Tx) error {
			// Rows created before this migration keep a NULL hash; SQLite
			// treats NULLs as distinct in unique indexes, so they are
			// unaffected.
			queries := []string{
				`ALTER TABLE transactions ADD COLUMN content_hash TEXT`,
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_user_content ON transactions(user_id, content_hash)`,
			}
			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
