// internal/storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"mcp-food-log/internal/models"
)

// MemoryDSN keeps the journal in process memory, so it ends with the process.
const MemoryDSN = ":memory:"

var ErrSessionNotFound = errors.New("session not found")

// SessionRecord is a stored session header.
type SessionRecord struct {
	ID          string
	StartedAt   time.Time
	PhotoSource string
}

// SQLiteStorage journals sessions and their logged items.
type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dbPath == "" {
		dbPath = MemoryDSN
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// every :memory: connection is its own database
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{db: db}
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) initSchema() error {
	schema := `
    PRAGMA foreign_keys = ON;

    CREATE TABLE IF NOT EXISTS sessions (
        id TEXT PRIMARY KEY,
        started_at TEXT NOT NULL,
        photo_source TEXT NOT NULL DEFAULT ''
    );

    CREATE TABLE IF NOT EXISTS items (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        session_id TEXT NOT NULL,
        label TEXT NOT NULL,
        food TEXT NOT NULL,
        unit TEXT NOT NULL,
        quantity REAL NOT NULL,
        grams REAL NOT NULL,
        calories REAL NOT NULL,
        protein REAL NOT NULL,
        carbs REAL NOT NULL,
        fat REAL NOT NULL,
        fiber REAL NOT NULL,
        logged_at TEXT NOT NULL,
        FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
    );

    CREATE INDEX IF NOT EXISTS idx_items_session_id ON items(session_id);
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) CreateSession(ctx context.Context, rec SessionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, photo_source) VALUES (?, ?, ?)`,
		rec.ID, rec.StartedAt.UTC().Format(time.RFC3339Nano), rec.PhotoSource)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	rec := &SessionRecord{}
	var startedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, photo_source FROM sessions WHERE id = ?`, id).
		Scan(&rec.ID, &startedAt, &rec.PhotoSource)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	if rec.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("failed to parse started_at: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStorage) SetPhotoSource(ctx context.Context, id, source string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET photo_source = ? WHERE id = ?`, source, id)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return requireRow(res, id)
}

// AppendItems stores items after those already logged for the session, keeping their order.
func (s *SQLiteStorage) AppendItems(ctx context.Context, sessionID string, items []models.LoggedItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	itemQuery := `
        INSERT INTO items (session_id, label, food, unit, quantity, grams, calories, protein, carbs, fat, fiber, logged_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	for _, item := range items {
		_, err = tx.ExecContext(ctx, itemQuery,
			sessionID, item.Label, item.Food, item.Unit, item.Quantity, item.Grams,
			item.Calories, item.Protein, item.Carbs, item.Fat, item.Fiber,
			item.LoggedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("failed to insert item: %w", err)
		}
	}

	return tx.Commit()
}

// GetItems returns a session's items in logging order.
func (s *SQLiteStorage) GetItems(ctx context.Context, sessionID string) ([]models.LoggedItem, error) {
	query := `
        SELECT label, food, unit, quantity, grams, calories, protein, carbs, fat, fiber, logged_at
        FROM items
        WHERE session_id = ?
        ORDER BY id
    `

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []models.LoggedItem
	for rows.Next() {
		item := models.LoggedItem{}
		var loggedAt string

		err := rows.Scan(
			&item.Label, &item.Food, &item.Unit, &item.Quantity, &item.Grams,
			&item.Calories, &item.Protein, &item.Carbs, &item.Fat, &item.Fiber, &loggedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		if item.LoggedAt, err = time.Parse(time.RFC3339Nano, loggedAt); err != nil {
			return nil, fmt.Errorf("failed to parse logged_at: %w", err)
		}

		items = append(items, item)
	}

	return items, rows.Err()
}

func (s *SQLiteStorage) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete items: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if err := requireRow(res, id); err != nil {
		return err
	}
	return tx.Commit()
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}
