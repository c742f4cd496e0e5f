package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// objectsSchema keeps one current version per key. Older versions are not
// retained; an upsert replaces the row.
const objectsSchema = `
	CREATE TABLE IF NOT EXISTS objects (
		key          TEXT PRIMARY KEY,
		version_id   TEXT NOT NULL,
		body         BYTEA NOT NULL,
		content_type TEXT NOT NULL DEFAULT 'application/octet-stream',
		public_read  BOOLEAN NOT NULL DEFAULT FALSE,
		uploaded_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// PostgresObjectStore implements ObjectStore on a single PostgreSQL table
type PostgresObjectStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresObjectStore creates a PostgreSQL-backed object store and
// ensures its schema exists
func NewPostgresObjectStore(
	host string,
	port int,
	database, user, password, sslMode string,
	maxConns, minConns int,
	logger *zap.Logger,
) (ObjectStore, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s pool_max_conns=%d pool_min_conns=%d",
		host, port, database, user, password, sslMode, maxConns, minConns,
	)

	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(context.Background(), objectsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure objects table: %w", err)
	}

	return &PostgresObjectStore{
		pool:   pool,
		logger: logger,
	}, nil
}

// List returns the current version of every object under prefix
func (s *PostgresObjectStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	query := `
		SELECT key, version_id, length(body), uploaded_at
		FROM objects
		WHERE key LIKE $1 || '%'
		ORDER BY key
	`

	rows, err := s.pool.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	defer rows.Close()

	infos := make([]ObjectInfo, 0)
	for rows.Next() {
		var info ObjectInfo
		if err := rows.Scan(&info.Key, &info.VersionID, &info.Size, &info.UploadedAt); err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}

	return infos, rows.Err()
}

// Get fetches one object body. Only the current version exists in this
// backend, so a non-empty versionID must match it.
func (s *PostgresObjectStore) Get(ctx context.Context, key, versionID string) ([]byte, error) {
	query := `SELECT body FROM objects WHERE key = $1`
	args := []interface{}{key}
	if versionID != "" {
		query += ` AND version_id = $2`
		args = append(args, versionID)
	}

	var body []byte
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	return body, nil
}

// Put upserts the object row for key with a fresh version id
func (s *PostgresObjectStore) Put(ctx context.Context, key string, body []byte, opts PutOptions) error {
	query := `
		INSERT INTO objects (key, version_id, body, content_type, public_read, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (key) DO UPDATE
		SET version_id = EXCLUDED.version_id,
		    body = EXCLUDED.body,
		    content_type = EXCLUDED.content_type,
		    public_read = EXCLUDED.public_read,
		    uploaded_at = EXCLUDED.uploaded_at
	`

	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.pool.Exec(ctx, query, key, uuid.NewString(), body, contentType, opts.PublicRead)
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

// Ping checks the database connection
func (s *PostgresObjectStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool
func (s *PostgresObjectStore) Close() {
	s.pool.Close()
}
