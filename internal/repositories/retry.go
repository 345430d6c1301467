package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/lidx/internal/models"
	"github.com/desertthunder/lidx/internal/shared"
)

const retryColumns = "id, sequence, download_id, album_id, succeeded, error, created_at"

// RetryRepository implements models.Repository[*models.RetryAttempt] for the retry ledger.
type RetryRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.RetryAttempt] = (*RetryRepository)(nil)

// NewRetryRepository creates a new RetryRepository with the given database connection
func NewRetryRepository(db *sql.DB) *RetryRepository {
	return &RetryRepository{db: db}
}

// Create inserts a new [models.RetryAttempt] with generated ID and sequence
func (r *RetryRepository) Create(attempt *models.RetryAttempt) error {
	attempt.SetID(shared.GenerateID())
	if err := attempt.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequence, err := NextSequence(tx, "retry_attempts")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	attempt.SetSequence(sequence)

	var albumID sql.NullInt64
	if attempt.AlbumID() > 0 {
		albumID = sql.NullInt64{Int64: int64(attempt.AlbumID()), Valid: true}
	}

	_, err = tx.Exec(`
		INSERT INTO retry_attempts (`+retryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		attempt.ID(),
		sequence,
		attempt.DownloadID(),
		albumID,
		attempt.Succeeded(),
		attempt.Error(),
		attempt.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert retry attempt: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit retry attempt: %w", err)
	}

	return nil
}

// Get retrieves a retry attempt by ID
func (r *RetryRepository) Get(id string) (*models.RetryAttempt, error) {
	row := r.db.QueryRow("SELECT "+retryColumns+" FROM retry_attempts WHERE id = ?", id)
	attempt, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("retry attempt not found: %s", id)
	}
	return attempt, err
}

// List retrieves attempts ordered by sequence.
//
// Supported criteria: "download_id" (int) and "succeeded" (bool).
func (r *RetryRepository) List(criteria map[string]any) ([]*models.RetryAttempt, error) {
	query := "SELECT " + retryColumns + " FROM retry_attempts WHERE 1 = 1"
	args := []any{}

	if downloadID, ok := criteria["download_id"].(int); ok {
		query += " AND download_id = ?"
		args = append(args, downloadID)
	}

	if succeeded, ok := criteria["succeeded"].(bool); ok {
		query += " AND succeeded = ?"
		args = append(args, succeeded)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query retry attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*models.RetryAttempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return attempts, nil
}

// CountByDownload returns the number of recorded attempts for each of the given downloads.
//
// Downloads without attempts are absent from the map.
func (r *RetryRepository) CountByDownload(ids ...int) (map[int]int, error) {
	counts := make(map[int]int, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.Query(
		"SELECT download_id, COUNT(*) FROM retry_attempts WHERE download_id IN ("+placeholders+") GROUP BY download_id",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count retry attempts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("failed to scan retry count: %w", err)
		}
		counts[id] = n
	}

	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAttempt(s scanner) (*models.RetryAttempt, error) {
	var (
		id         string
		sequence   int
		downloadID int
		albumID    sql.NullInt64
		succeeded  bool
		errMsg     string
		createdAt  time.Time
	)

	if err := s.Scan(&id, &sequence, &downloadID, &albumID, &succeeded, &errMsg, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan retry attempt: %w", err)
	}

	return models.RestoreRetryAttempt(id, sequence, downloadID, int(albumID.Int64), succeeded, errMsg, createdAt), nil
}
