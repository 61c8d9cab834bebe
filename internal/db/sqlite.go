package db

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"spotwalk/internal/config"

	_ "modernc.org/sqlite"
)

func OpenSQLite(cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.SQLitePath) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(cfg.SQLitePath) +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one writer keeps SQLITE_BUSY out of the picture
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return sqlDB, nil
}
