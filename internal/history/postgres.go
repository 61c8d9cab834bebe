package history

import (
	"context"

	"spotwalk/internal/db"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS walks (
		id BIGSERIAL PRIMARY KEY,
		duration DOUBLE PRECISION NOT NULL,
		points INTEGER NOT NULL,
		date TEXT NOT NULL,
		difficulty TEXT NOT NULL
	)
`

type PostgresStore struct {
	db db.Querier
}

func NewPostgresStore(db db.Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, postgresSchema)
	return err
}

func (s *PostgresStore) Append(ctx context.Context, record Record) (Record, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO walks (duration, points, date, difficulty)
		VALUES ($1,$2,$3,$4)
		RETURNING id
	`, record.DurationMinutes, record.Points, record.Date, record.Difficulty)
	if err := row.Scan(&record.ID); err != nil {
		return Record{}, err
	}
	return record, nil
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]Record, error) {
	rows, err := s.db.Query(ctx, `
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

func (s *PostgresStore) Remove(ctx context.Context, index int) error {
	if index < 0 {
		return ErrNotFound
	}
	tag, err := s.db.Exec(ctx, `
		DELETE FROM walks
		WHERE id = (SELECT id FROM walks ORDER BY id LIMIT 1 OFFSET $1)
	`, index)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Close is a no-op; the pool belongs to the caller.
func (s *PostgresStore) Close() error {
	return nil
}
