package ledger

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store persists the ledger across sessions in a local sqlite database.
// Rows mirror cache entries one to one: (day, calendar_id) -> minutes.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS usage (
	day         TEXT NOT NULL,
	calendar_id TEXT NOT NULL,
	minutes     REAL NOT NULL,
	PRIMARY KEY (day, calendar_id)
);`

// OpenStore opens (creating if necessary) the ledger database at path.
func OpenStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("ledger store path is empty")
	}
	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// LoadAll reads every persisted entry, shaped for Cache.ReplaceAll.
func (s *Store) LoadAll(ctx context.Context) (map[string]map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT day, calendar_id, minutes FROM usage`)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	defer rows.Close()

	data := make(map[string]map[string]float64)
	for rows.Next() {
		var day, cal string
		var minutes float64
		if err := rows.Scan(&day, &cal, &minutes); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		sub := data[day]
		if sub == nil {
			sub = make(map[string]float64)
			data[day] = sub
		}
		sub[cal] = minutes
	}
	return data, rows.Err()
}

// SaveCalendarDays upserts one calendar's entries for the given days in
// a single transaction, typically right after a fold.
func (s *Store) SaveCalendarDays(ctx context.Context, calendarID string, entries map[string]float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO usage (day, calendar_id, minutes) VALUES (?, ?, ?)
		ON CONFLICT (day, calendar_id) DO UPDATE SET minutes = excluded.minutes`)
	if err != nil {
		return fmt.Errorf("prepare ledger upsert: %w", err)
	}
	defer stmt.Close()

	for day, minutes := range entries {
		if _, err := stmt.ExecContext(ctx, day, calendarID, minutes); err != nil {
			return fmt.Errorf("upsert ledger entry %s/%s: %w", day, calendarID, err)
		}
	}
	return tx.Commit()
}
