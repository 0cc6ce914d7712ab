package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"call-audit-go/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS recordings (
	id               TEXT PRIMARY KEY,
	owner_id         TEXT NOT NULL DEFAULT '',
	filename         TEXT NOT NULL,
	status           TEXT NOT NULL,
	duration_seconds DOUBLE PRECISION,
	error_message    TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS recordings_owner_created_idx ON recordings (owner_id, created_at DESC);

CREATE TABLE IF NOT EXISTS analyses (
	recording_id TEXT PRIMARY KEY REFERENCES recordings(id) ON DELETE CASCADE,
	transcript   TEXT NOT NULL,
	result       JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// ConnectPostgres opens a pool and pings it, backing off for up to 30 seconds.
func ConnectPostgres(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(func() error { return pool.Ping(ctx) }, backoff.WithContext(bo, ctx)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the recordings and analyses tables when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schema)
	return err
}

// SaveResult inserts the recording and its analysis in one transaction.
func (s *PostgresStore) SaveResult(ctx context.Context, rec Record) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = StatusCompleted
	}

	var resultJSON []byte
	if rec.Analysis != nil {
		b, err := json.Marshal(rec.Analysis)
		if err != nil {
			return "", fmt.Errorf("marshal analysis: %w", err)
		}
		resultJSON = b
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO recordings (id, owner_id, filename, status, duration_seconds, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.OwnerID, rec.Filename, string(rec.Status),
		nullFloat(rec.DurationSeconds), nullString(rec.Error), rec.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert recording: %w", err)
	}

	if rec.Transcript != "" || resultJSON != nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO analyses (recording_id, transcript, result, created_at)
			VALUES ($1, $2, $3, $4)`,
			rec.ID, rec.Transcript, resultJSON, rec.CreatedAt,
		)
		if err != nil {
			return "", fmt.Errorf("insert analysis: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return rec.ID, nil
}

const selectRecords = `
	SELECT r.id, r.owner_id, r.filename, r.status, r.duration_seconds, r.error_message,
		r.created_at, a.transcript, a.result
	FROM recordings r
	LEFT JOIN analyses a ON a.recording_id = r.id`

func (s *PostgresStore) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	opts = opts.normalized()
	rows, err := s.db.Query(ctx, selectRecords+`
		WHERE ($1 = '' OR r.owner_id = $1)
		ORDER BY r.created_at DESC
		OFFSET $2 LIMIT $3`,
		opts.OwnerID, opts.Skip, opts.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get fetches one record. It returns pgx.ErrNoRows when id is unknown.
func (s *PostgresStore) Get(ctx context.Context, id string) (Record, error) {
	return scanRecord(s.db.QueryRow(ctx, selectRecords+` WHERE r.id = $1`, id))
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec        Record
		status     string
		duration   *float64
		errMsg     *string
		transcript *string
		resultJSON []byte
	)
	if err := row.Scan(&rec.ID, &rec.OwnerID, &rec.Filename, &status, &duration, &errMsg,
		&rec.CreatedAt, &transcript, &resultJSON); err != nil {
		return Record{}, err
	}
	rec.Status = Status(status)
	if duration != nil {
		rec.DurationSeconds = *duration
	}
	if errMsg != nil {
		rec.Error = *errMsg
	}
	if transcript != nil {
		rec.Transcript = *transcript
	}
	if len(resultJSON) > 0 {
		var res types.AnalysisResult
		if err := json.Unmarshal(resultJSON, &res); err != nil {
			return Record{}, fmt.Errorf("decode analysis %s: %w", rec.ID, err)
		}
		rec.Analysis = &res
	}
	return rec, nil
}

func (s *PostgresStore) Stats(ctx context.Context, ownerID string) (Stats, error) {
	rows, err := s.db.Query(ctx, `
		SELECT status, count(*) FROM recordings
		WHERE ($1 = '' OR owner_id = $1)
		GROUP BY status`, ownerID)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()

	var st Stats
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return Stats{}, err
		}
		st.add(Status(status), n)
	}
	return st, rows.Err()
}

func (s *PostgresStore) Close() {
	s.db.Close()
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullFloat(f float64) *float64 {
	if f == 0 {
		return nil
	}
	return &f
}
