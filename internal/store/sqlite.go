package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kitty/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteMirror is the durable backing store. It only ever sees full snapshots
// of the in-memory state, so transaction writes replace the table wholesale
// inside one database transaction.
type SQLiteMirror struct {
	db *sql.DB
}

// NewSQLiteMirror opens (creating if needed) the mirror database and brings
// its schema up to date.
func NewSQLiteMirror(dbPath string) (*SQLiteMirror, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteMirror{db: db}, nil
}

func (m *SQLiteMirror) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

// LoadConfig reads the configuration singleton; ok is false on first run.
func (m *SQLiteMirror) LoadConfig(ctx context.Context) (core.Config, bool, error) {
	var payload string
	err := m.db.QueryRowContext(ctx, `SELECT payload FROM config WHERE id = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Config{}, false, nil
	}
	if err != nil {
		return core.Config{}, false, fmt.Errorf("query config: %w", err)
	}

	var cfg core.Config
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return core.Config{}, false, fmt.Errorf("decode config payload: %w", err)
	}
	return cfg, true, nil
}

// LoadTransactions reads the full transaction collection.
func (m *SQLiteMirror) LoadTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, date, kind, participant_id, category_id, amount_cents, notes, created_at, updated_at
		FROM transactions`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			tx                        core.Transaction
			participantID, categoryID sql.NullString
			createdAt                 string
			updatedAt                 sql.NullString
		)
		if err := rows.Scan(&tx.ID, &tx.Date, &tx.Kind, &participantID, &categoryID,
			&tx.AmountCents, &tx.Notes, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.ParticipantID = participantID.String
		tx.CategoryID = categoryID.String
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			tx.CreatedAt = t
		}
		if updatedAt.Valid {
			if t, err := time.Parse(time.RFC3339Nano, updatedAt.String); err == nil {
				tx.UpdatedAt = &t
			}
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// Save replaces the mirrored snapshot atomically.
func (m *SQLiteMirror) Save(ctx context.Context, cfg core.Config, transactions []core.Transaction) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	dbTx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mirror write: %w", err)
	}
	defer dbTx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := dbTx.ExecContext(ctx, `
		INSERT INTO config (id, payload, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		string(payload), now); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	if _, err := dbTx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}

	stmt, err := dbTx.PrepareContext(ctx, `
		INSERT INTO transactions (id, date, kind, participant_id, category_id, amount_cents, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range transactions {
		var updatedAt any
		if t.UpdatedAt != nil {
			updatedAt = t.UpdatedAt.UTC().Format(time.RFC3339Nano)
		}
		if _, err := stmt.ExecContext(ctx,
			t.ID, t.Date, string(t.Kind),
			nullable(t.ParticipantID), nullable(t.CategoryID),
			t.AmountCents, t.Notes,
			t.CreatedAt.UTC().Format(time.RFC3339Nano), updatedAt); err != nil {
			return fmt.Errorf("insert transaction %q: %w", t.ID, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit mirror write: %w", err)
	}
	return nil
}

// LoadMeta reads one meta value; missing keys return the empty string.
func (m *SQLiteMirror) LoadMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := m.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query meta: %w", err)
	}
	return value, nil
}

// SaveMeta upserts one meta value.
func (m *SQLiteMirror) SaveMeta(ctx context.Context, key, value string) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
