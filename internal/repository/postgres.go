package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vigil-systems/vigil/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// InsertAlert appends one alert to the ledger. The store generates the ID;
// the row is never updated afterwards. No existence check is performed, so
// repeated detection runs may record the same IP more than once.
func (r *PostgresRepository) InsertAlert(ctx context.Context, a *models.Alert) error {
	query := `
		INSERT INTO alerts (type, ip, failures, window_label, created_at, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query,
		a.Type, a.IP, a.Failures, a.Window, a.CreatedAt, a.Status,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}

	return nil
}

// ListAlerts returns the alert history, newest first.
func (r *PostgresRepository) ListAlerts(ctx context.Context) ([]models.Alert, error) {
	query := `
		SELECT id, type, ip, failures, window_label, created_at, status
		FROM alerts
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	alerts := []models.Alert{}
	for rows.Next() {
		var a models.Alert
		if err := rows.Scan(&a.ID, &a.Type, &a.IP, &a.Failures, &a.Window, &a.CreatedAt, &a.Status); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return alerts, nil
}

// InsertUpload records one ingestion in the upload history.
func (r *PostgresRepository) InsertUpload(ctx context.Context, u *models.UploadRecord) error {
	query := `
		INSERT INTO uploads (filename, path, size, uploaded_at, source)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query,
		u.Filename, u.Path, u.Size, u.UploadedAt, u.Source,
	).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("failed to insert upload record: %w", err)
	}

	return nil
}

// ListUploads returns the upload history, newest first.
func (r *PostgresRepository) ListUploads(ctx context.Context) ([]models.UploadRecord, error) {
	query := `
		SELECT id, filename, path, size, uploaded_at, source
		FROM uploads
		ORDER BY uploaded_at DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	defer rows.Close()

	uploads := []models.UploadRecord{}
	for rows.Next() {
		var u models.UploadRecord
		if err := rows.Scan(&u.ID, &u.Filename, &u.Path, &u.Size, &u.UploadedAt, &u.Source); err != nil {
			return nil, fmt.Errorf("failed to scan upload record: %w", err)
		}
		uploads = append(uploads, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return uploads, nil
}

// Ping checks database reachability. Used by the readiness endpoint.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
