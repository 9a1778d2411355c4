package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// LastAnalyzed returns the most recent analysis time across all stored repositories
func (db *DB) LastAnalyzed(ctx context.Context) (time.Time, error) {
	var latest sql.NullTime
	query := `SELECT MAX(last_analyzed) AS last_analyzed FROM repositories`

	if err := db.conn.GetContext(ctx, &latest, query); err != nil {
		return time.Time{}, fmt.Errorf("failed to get last analysis time: %w", err)
	}

	if !latest.Valid {
		return time.Time{}, ErrNoRepositories
	}

	return latest.Time.UTC(), nil
}

// CountRepositories returns the number of stored repositories
func (db *DB) CountRepositories(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.GetContext(ctx, &count, `SELECT COUNT(*) FROM repositories`); err != nil {
		return 0, fmt.Errorf("failed to count repositories: %w", err)
	}
	return count, nil
}
