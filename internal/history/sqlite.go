package history

import (
	"context"
	"database/sql"
	"fmt"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS walks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		duration REAL NOT NULL,
		points INTEGER NOT NULL,
		date TEXT NOT NULL,
		difficulty TEXT NOT NULL
	)
`

type SQLiteStore struct {
	sqlDB *sql.DB
}

func NewSQLiteStore(ctx context.Context, sqlDB *sql.DB) (*SQLiteStore, error) {
	if _, err := sqlDB.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("create walks table: %w", err)
	}
	return &SQLiteStore{sqlDB: sqlDB}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, record Record) (Record, error) {
	res, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO walks (duration, points, date, difficulty)
		VALUES (?, ?, ?, ?)
	`, record.DurationMinutes, record.Points, record.Date, record.Difficulty)
	if err != nil {
		return Record{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Record{}, err
	}
	record.ID = id
	return record, nil
}

func (s *SQLiteStore) ListAll(ctx context.Context) ([]Record, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT id, duration, points, date, difficulty
		FROM walks
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.DurationMinutes, &r.Points, &r.Date, &r.Difficulty); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Remove(ctx context.Context, index int) error {
	if index < 0 {
		return ErrNotFound
	}
	res, err := s.sqlDB.ExecContext(ctx, `
		DELETE FROM walks
		WHERE id = (SELECT id FROM walks ORDER BY id LIMIT 1 OFFSET ?)
	`, index)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}
